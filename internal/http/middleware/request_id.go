package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// maxRequestIDLen ограничивает принимаемый от клиента X-Request-Id.
const maxRequestIDLen = 128

// RequestID выдаёт каждому запросу идентификатор для логов и тела ошибки.
// Пришедший X-Request-Id принимается, если он короткий и из безопасных символов,
// иначе заменяется новым UUID. Итоговый id пишется в заголовки запроса и ответа
// и в контекст (RequestIDFrom).
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if !validRequestID(id) {
				id = uuid.NewString()
			}

			// errors.WriteError берёт id из заголовка запроса.
			r.Header.Set("X-Request-Id", id)
			w.Header().Set("X-Request-Id", id)

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxRequestID, id)))
		})
	}
}

// validRequestID пропускает только [A-Za-z0-9._-], чтобы id нельзя было
// использовать для подделки строк лога.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}

	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}

	return true
}
