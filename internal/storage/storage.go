package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/fromboo/internal/models"
)

//go:generate mockgen -destination=../../mocks/mock_storage.go -package=mocks github.com/pribylovaa/fromboo/internal/storage Storage

var (
	// ErrNotFound - запись не найдена (пользователь/токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists - нарушение уникальности (email/id пользователя).
	ErrAlreadyExists = errors.New("already exists")
	// ErrConflict - ротация refresh-токена не удалась из-за конфликта уникальности
	// даже после повторной попытки со свежим значением.
	ErrConflict = errors.New("refresh token rotation conflict")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создает нового пользователя.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RefreshTokenStorage выполняет операции над refresh-токенами.
type RefreshTokenStorage interface {
	// RotateRefreshToken атомарно заменяет (или создаёт) единственную запись пользователя
	// новым случайным токеном со сроком now+ttl и адресом клиента.
	RotateRefreshToken(ctx context.Context, userID uuid.UUID, ttl time.Duration, clientAddress string) (*models.RefreshToken, error)
	// RefreshTokenByValue находит запись по значению токена. Только чтение.
	RefreshTokenByValue(ctx context.Context, token uuid.UUID) (*models.RefreshToken, error)
}

// Storage задает контракт хранилища.
type Storage interface {
	UserStorage
	RefreshTokenStorage
	// Ping проверяет доступность хранилища (readiness).
	Ping(ctx context.Context) error
	Close()
}
