// memory - реализация storage.Storage в памяти процесса.
// Используется в тестах и при DB_DRIVER=memory; данные не переживают перезапуск.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/fromboo/internal/models"
	"github.com/pribylovaa/fromboo/internal/storage"
)

const rotateAttempts = 2

// Storage хранит пользователей и refresh-токены под одним мьютексом.
type Storage struct {
	mu sync.RWMutex

	users        map[uuid.UUID]models.User
	usersByEmail map[string]uuid.UUID

	tokens        map[uuid.UUID]models.RefreshToken // token -> запись
	tokensByOwner map[uuid.UUID]uuid.UUID           // user_id -> token

	now      func() time.Time
	newToken func() (uuid.UUID, error)
}

// Option настраивает Storage.
type Option func(*Storage)

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTokenSource подменяет генератор значений refresh-токена (для тестов).
func WithTokenSource(next func() (uuid.UUID, error)) Option {
	return func(s *Storage) {
		if next != nil {
			s.newToken = next
		}
	}
}

// New создаёт пустое хранилище.
func New(opts ...Option) *Storage {
	s := &Storage{
		users:         make(map[uuid.UUID]models.User),
		usersByEmail:  make(map[string]uuid.UUID),
		tokens:        make(map[uuid.UUID]models.RefreshToken),
		tokensByOwner: make(map[uuid.UUID]uuid.UUID),
		now:           time.Now,
		newToken:      uuid.NewRandom,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// email сравнивается без учёта регистра, как CITEXT.
func emailKey(email string) string {
	return strings.ToLower(email)
}

func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.memory.SaveUser"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}

	key := emailKey(user.Email)
	if _, ok := s.usersByEmail[key]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}

	s.users[user.ID] = *user
	s.usersByEmail[key] = user.ID

	return nil
}

func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.memory.UserByEmail"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[emailKey(email)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	u := s.users[id]
	return &u, nil
}

func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.memory.UserByID"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return &u, nil
}

// DeleteUser удаляет пользователя вместе с его refresh-токеном (аналог ON DELETE CASCADE).
func (s *Storage) DeleteUser(ctx context.Context, id uuid.UUID) error {
	const op = "storage.memory.DeleteUser"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	delete(s.users, id)
	delete(s.usersByEmail, emailKey(u.Email))

	if tok, ok := s.tokensByOwner[id]; ok {
		delete(s.tokens, tok)
		delete(s.tokensByOwner, id)
	}

	return nil
}

// RotateRefreshToken повторяет семантику UPSERT по user_id под эксклюзивной блокировкой.
func (s *Storage) RotateRefreshToken(ctx context.Context, userID uuid.UUID, ttl time.Duration, clientAddress string) (*models.RefreshToken, error) {
	const op = "storage.memory.RotateRefreshToken"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	for attempt := 0; attempt < rotateAttempts; attempt++ {
		value, err := s.newToken()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if existing, ok := s.tokens[value]; ok && existing.UserID != userID {
			continue
		}

		if prev, ok := s.tokensByOwner[userID]; ok {
			delete(s.tokens, prev)
		}

		issuedAt := s.now().UTC()
		rt := models.RefreshToken{
			Token:         value,
			UserID:        userID,
			IssuedAt:      issuedAt,
			ExpiresAt:     issuedAt.Add(ttl),
			ClientAddress: clientAddress,
		}

		s.tokens[value] = rt
		s.tokensByOwner[userID] = value

		return &rt, nil
	}

	return nil, fmt.Errorf("%s: %w", op, storage.ErrConflict)
}

func (s *Storage) RefreshTokenByValue(ctx context.Context, token uuid.UUID) (*models.RefreshToken, error) {
	const op = "storage.memory.RefreshTokenByValue"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rt, ok := s.tokens[token]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return &rt, nil
}

// Ping всегда успешен.
func (s *Storage) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Storage) Close() {}

var _ storage.Storage = (*Storage)(nil)
