package middleware

import (
	"log/slog"
	"net/http"

	apierrors "github.com/pribylovaa/fromboo/internal/errors"
	"github.com/pribylovaa/fromboo/internal/metrics"
	logctx "github.com/pribylovaa/fromboo/internal/pkg/log"
	"github.com/pribylovaa/fromboo/internal/ratelimit"
)

// RateLimit ограничивает частоту запросов по IP клиента.
// Ошибка лимитера (например, недоступен Redis) не блокирует запрос: пишется warn и запрос пропускается.
func RateLimit(l ratelimit.Limiter, m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := l.Allow(r.Context(), ClientIP(r))
			if err != nil {
				logctx.From(r.Context()).LogAttrs(r.Context(), slog.LevelWarn, "rate_limiter_unavailable",
					slog.String("op", "middleware.RateLimit"),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			if !ok {
				m.RateLimited(r.URL.Path)
				apierrors.WriteError(w, r, apierrors.ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
