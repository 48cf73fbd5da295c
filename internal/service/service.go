// service содержит бизнес-логику аутентификации fromboo:
// вход по email+пароль, обновление сессии по refresh-токену,
// разрешение access/refresh-токенов в пользователя и регистрацию.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для конкурентного
//     использования, если переданное хранилище (storage.Storage) потокобезопасно.
//   - Ошибки возвращаются наверх и маппятся HTTP-слоем на статусы
//     (см. internal/errors и комментарии к переменным ниже).
package service

import (
	"errors"
	"sync"
	"time"

	"github.com/pribylovaa/fromboo/internal/config"
	"github.com/pribylovaa/fromboo/internal/pkg/password"
	"github.com/pribylovaa/fromboo/internal/storage"
	"github.com/pribylovaa/fromboo/internal/token"
)

var (
	// ErrInvalidCredentials - пользователь не найден или пароль неверен.
	// Оба случая неразличимы снаружи. HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated - обобщённый отказ в обновлении сессии. HTTP 401.
	// Оборачивается вместе с причиной: errors.Is срабатывает на обе ошибки.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidSignature - access-токен повреждён или подписан другим ключом. HTTP 401.
	ErrInvalidSignature = token.ErrInvalidSignature

	// ErrTokenExpired - срок access- или refresh-токена истёк. HTTP 401.
	ErrTokenExpired = token.ErrTokenExpired

	// ErrUserNotFound - владелец токена больше не существует. HTTP 401.
	ErrUserNotFound = errors.New("user not found")

	// ErrTokenNotFound - refresh-токен не распознан или уже заменён ротацией. HTTP 401.
	ErrTokenNotFound = errors.New("refresh token not found")

	// ErrStoreConflict - ротация refresh-токена не удалась после повтора. HTTP 503.
	ErrStoreConflict = errors.New("refresh token store conflict")

	// ErrEmailTaken - e-mail уже занят. HTTP 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrInvalidEmail - некорректный формат e-mail. HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrEmptyName - пустое имя пользователя. HTTP 400.
	ErrEmptyName = errors.New("name is empty")

	// ErrEmptyPassword - пароль пустой. HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrWeakPassword - пароль короче минимальной длины. HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrPasswordTooLong - пароль длиннее предела bcrypt (72 байта). HTTP 400.
	ErrPasswordTooLong = errors.New("password is too long")
)

// Service описывает бизнес-логику аутентификации.
type Service struct {
	storage storage.Storage
	codec   *token.Codec
	cfg     config.AuthConfig
	now     func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник времени (для тестов).
// Должен совпадать с часами Codec и хранилища, иначе границы истечения разъедутся.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, codec *token.Codec, cfg config.AuthConfig, opts ...Option) *Service {
	s := &Service{
		storage: storage,
		codec:   codec,
		cfg:     cfg,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// dummyHash - хэш для сравнения, когда пользователь не найден:
// вход с неизвестным email стоит столько же, сколько с неверным паролем.
var dummyHash = sync.OnceValue(func() string {
	h, err := password.Hash("fromboo-timing-equalizer")
	if err != nil {
		return ""
	}
	return h
})
