package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	apierrors "github.com/pribylovaa/fromboo/internal/errors"
	logctx "github.com/pribylovaa/fromboo/internal/pkg/log"
)

// errPanic - причина 500 после перехваченной паники; клиенту уходит только "internal".
var errPanic = errors.New("handler panicked")

// Recover превращает панику обработчика в 500/internal и пишет её в лог со стеком.
// http.ErrAbortHandler пробрасывается дальше: им net/http обрывает ответ намеренно.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logctx.From(r.Context()).LogAttrs(r.Context(), slog.LevelError, "panic_recovered",
					slog.String("op", "middleware.Recover"),
					slog.String("path", r.URL.Path),
					slog.Any("reason", rec),
					slog.String("stack", string(debug.Stack())),
				)

				apierrors.WriteError(w, r, errPanic)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
