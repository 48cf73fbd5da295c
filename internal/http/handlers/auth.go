package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pribylovaa/fromboo/internal/config"
	apierrors "github.com/pribylovaa/fromboo/internal/errors"
	"github.com/pribylovaa/fromboo/internal/http/middleware"
	"github.com/pribylovaa/fromboo/internal/models"
	"github.com/pribylovaa/fromboo/internal/pkg/redact"
	"github.com/pribylovaa/fromboo/internal/service"
)

// TokenResponse - тело ответа /login/token и /login/refresh.
// Refresh-токен в тело не попадает: только в HttpOnly cookie.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	Exp         time.Time `json:"exp"`
	TokenType   string    `json:"token_type"`
}

// LoginForAccessToken - POST /login/token (form: username, password).
func (h *Handlers) LoginForAccessToken(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.LoginForAccessToken"

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		fail(w, r, op, apierrors.ErrBadRequest)
		return
	}

	username := r.PostForm.Get("username")

	tp, err := h.svc.Login(r.Context(), username, r.PostForm.Get("password"), middleware.ClientIP(r))
	h.metrics.AuthEvent("login", result(err))
	if err != nil {
		fail(w, r, op, err, slog.String("email", redact.Email(username)))
		return
	}

	h.writeTokens(w, tp)
}

// RefreshToken - POST /login/refresh (cookie refresh_token).
func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.RefreshToken"

	c, err := r.Cookie(h.cookie.Name)
	if err != nil {
		h.metrics.AuthEvent("refresh", result(service.ErrUnauthenticated))
		fail(w, r, op, service.ErrUnauthenticated)
		return
	}

	tp, err := h.svc.Refresh(r.Context(), c.Value, middleware.ClientIP(r))
	h.metrics.AuthEvent("refresh", result(err))
	if err != nil {
		// истёкшую или заменённую cookie клиенту лучше забыть.
		if errors.Is(err, service.ErrUnauthenticated) {
			http.SetCookie(w, h.expiredCookie())
		}

		fail(w, r, op, err, slog.String("refresh_token", redact.Token()))
		return
	}

	h.writeTokens(w, tp)
}

func (h *Handlers) writeTokens(w http.ResponseWriter, tp *models.TokenPair) {
	http.SetCookie(w, h.refreshCookie(tp.RefreshToken, tp.RefreshExpiresAt))

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: tp.AccessToken,
		Exp:         tp.AccessExpiresAt.UTC(),
		TokenType:   "bearer",
	})
}

func (h *Handlers) refreshCookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		Expires:  expires.UTC(),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: sameSite(h.cookie),
	}
}

func (h *Handlers) expiredCookie() *http.Cookie {
	c := h.refreshCookie("", time.Unix(0, 0))
	c.MaxAge = -1
	return c
}

func sameSite(c config.CookieConfig) http.SameSite {
	switch strings.ToLower(c.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
