package middleware

import (
	"log/slog"
	"net/http"
	"time"

	logctx "github.com/pribylovaa/fromboo/internal/pkg/log"
)

// Logging даёт каждому запросу свой логгер (с request_id, если он уже назначен)
// и по завершении пишет итоговую запись "http". Ответы 5xx пишутся на уровне Error.
func Logging(base *slog.Logger) Middleware {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := base
			if id := RequestIDFrom(r.Context()); id != "" {
				l = l.With(slog.String("request_id", id))
			}

			ctx := logctx.Into(r.Context(), l)
			sw := newStatusWriter(w)
			started := time.Now()

			next.ServeHTTP(sw, r.WithContext(ctx))

			lvl := slog.LevelInfo
			if sw.status >= http.StatusInternalServerError {
				lvl = slog.LevelError
			}

			l.LogAttrs(ctx, lvl, "http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("client_ip", ClientIP(r)),
				slog.Int("status", sw.status),
				slog.Int("bytes", sw.count),
				slog.Duration("dur", time.Since(started)),
			)
		})
	}
}
