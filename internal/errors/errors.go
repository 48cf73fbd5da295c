// errors стандартизирует ответы об ошибках HTTP-слоя fromboo.
// На вход он принимает ошибку сервисного слоя, а на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// Любая ошибка аутентификации превращается в один и тот же 401:
// клиент не различает неверный пароль, неизвестный email, истёкший
// или заменённый токен.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/pribylovaa/fromboo/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

var (
	// ErrBadRequest - тело запроса не удалось разобрать. HTTP 400.
	ErrBadRequest = stderrors.New("bad request")
	// ErrRateLimited - превышен лимит запросов. HTTP 429.
	ErrRateLimited = stderrors.New("rate limited")
	// ErrNotFound - маршрут не найден. HTTP 404.
	ErrNotFound = stderrors.New("not found")
	// ErrMethodNotAllowed - метод не поддерживается маршрутом. HTTP 405.
	ErrMethodNotAllowed = stderrors.New("method not allowed")
)

// APIError - единый формат для фронта.
// Code - короткий стабильный код для машиночитаемой обработки на FE.
// Message - безопасное человекочитаемое описание.
// RequestID - прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse - корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку сервисного слоя в HTTP-статус и унифицированный ответ.
//
// Поведение:
//   - err == nil - это программная ошибка вызова: 500/internal;
//   - ErrInvalidCredentials - 401 "invalid credentials";
//   - остальные ошибки аутентификации - 401 "unauthenticated";
//   - ErrStoreConflict - 503;
//   - неизвестные ошибки - 500/internal без деталей.
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := classify(err)
	return status, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

// WriteError - хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
// На 401 добавляет WWW-Authenticate: Bearer.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// IsAuth сообщает, относится ли ошибка к отказу в аутентификации (401).
func IsAuth(err error) bool {
	return stderrors.Is(err, service.ErrInvalidCredentials) ||
		stderrors.Is(err, service.ErrUnauthenticated) ||
		stderrors.Is(err, service.ErrInvalidSignature) ||
		stderrors.Is(err, service.ErrTokenExpired) ||
		stderrors.Is(err, service.ErrUserNotFound) ||
		stderrors.Is(err, service.ErrTokenNotFound)
}

// classify - маппинг ошибка -> HTTP/FE-код/сообщение.
func classify(err error) (int, string, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal", "internal error"
	case stderrors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "unauthenticated", "invalid credentials"
	case IsAuth(err):
		return http.StatusUnauthorized, "unauthenticated", "could not validate credentials"
	case stderrors.Is(err, service.ErrStoreConflict):
		return http.StatusServiceUnavailable, "unavailable", "service unavailable"
	case stderrors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "already_exists", "email already taken"
	case validationError(err) != nil:
		return http.StatusBadRequest, "invalid_argument", validationError(err).Error()
	case stderrors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case stderrors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "resource_exhausted", "too many requests"
	case stderrors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case stderrors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed"
	case stderrors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled"
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}

// validationError возвращает сентинел ошибки валидации без обёрток op.
func validationError(err error) error {
	for _, v := range []error{
		service.ErrInvalidEmail,
		service.ErrEmptyName,
		service.ErrEmptyPassword,
		service.ErrWeakPassword,
		service.ErrPasswordTooLong,
	} {
		if stderrors.Is(err, v) {
			return v
		}
	}

	return nil
}
