package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pribylovaa/fromboo/internal/config"
	apierrors "github.com/pribylovaa/fromboo/internal/errors"
	"github.com/pribylovaa/fromboo/internal/metrics"
	"github.com/pribylovaa/fromboo/internal/models"
	logctx "github.com/pribylovaa/fromboo/internal/pkg/log"
)

// maxBodyBytes - предел размера тела запроса.
const maxBodyBytes = 1 << 20

// Service - операции сервисного слоя, нужные хендлерам.
type Service interface {
	Login(ctx context.Context, email, password, clientAddress string) (*models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken, clientAddress string) (*models.TokenPair, error)
	RegisterUser(ctx context.Context, name, email, password string) (*models.User, error)
}

// Handlers агрегирует зависимости хендлеров.
type Handlers struct {
	svc     Service
	cookie  config.CookieConfig
	metrics *metrics.Metrics
}

func New(svc Service, cookie config.CookieConfig, m *metrics.Metrics) *Handlers {
	return &Handlers{svc: svc, cookie: cookie, metrics: m}
}

// writeJSON - единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict - строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

// fail логирует ошибку один раз на границе и пишет унифицированный ответ.
// Отказы аутентификации - Info, серверные ошибки - Error.
func fail(w http.ResponseWriter, r *http.Request, op string, err error, attrs ...slog.Attr) {
	status, _ := apierrors.ToHTTP(err)

	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}

	attrs = append(attrs,
		slog.String("op", op),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
	logctx.From(r.Context()).LogAttrs(r.Context(), level, "request_failed", attrs...)

	apierrors.WriteError(w, r, err)
}

// result переводит ошибку в label результата для auth_events_total.
func result(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case apierrors.IsAuth(err):
		return metrics.ResultFailure
	default:
		return metrics.ResultError
	}
}
