package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken - единственная активная запись refresh-токена пользователя.
//
// Инварианты:
//   - на пользователя приходится не более одной записи;
//   - ExpiresAt == IssuedAt + TTL, заданный при ротации;
//   - Token - случайный UUIDv4, уникальный глобально.
type RefreshToken struct {
	Token         uuid.UUID
	UserID        uuid.UUID
	IssuedAt      time.Time
	ExpiresAt     time.Time
	ClientAddress string
}

// ExpiredAt сообщает, истёк ли токен к моменту now (граница включительно).
func (t *RefreshToken) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
