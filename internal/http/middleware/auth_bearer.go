package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/pribylovaa/fromboo/internal/errors"
	"github.com/pribylovaa/fromboo/internal/models"
	logctx "github.com/pribylovaa/fromboo/internal/pkg/log"
	"github.com/pribylovaa/fromboo/internal/service"
)

// AccessResolver разрешает access-токен в пользователя.
type AccessResolver interface {
	ResolveAccessToken(ctx context.Context, accessToken string) (*models.User, error)
}

// RequireAuth пропускает запрос только с действующим Bearer-токеном
// и кладёт пользователя в контекст (см. UserFrom), а его id в request-scoped логгер.
// Любой отказ - 401.
func RequireAuth(resolver AccessResolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := bearerToken(r)
			if !ok {
				apierrors.WriteError(w, r, service.ErrUnauthenticated)
				return
			}

			user, err := resolver.ResolveAccessToken(r.Context(), tok)
			if err != nil {
				lvl := slog.LevelDebug
				if !apierrors.IsAuth(err) && !errors.Is(err, context.Canceled) {
					lvl = slog.LevelError
				}
				logctx.From(r.Context()).LogAttrs(r.Context(), lvl, "access_token_rejected",
					slog.String("op", "middleware.RequireAuth"),
					slog.String("error", err.Error()),
				)

				apierrors.WriteError(w, r, err)
				return
			}

			// дальнейшие записи запроса помечаются пользователем.
			ctx := logctx.With(WithUser(r.Context(), user), slog.String("user_id", user.ID.String()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken извлекает токен из "Authorization: Bearer <token>" (схема без учёта регистра).
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	scheme, tok, found := strings.Cut(auth, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}
