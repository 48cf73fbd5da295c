package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenPair - пара токенов, выдаваемая при входе и обновлении сессии.
//
// Описание:
//   - AccessToken - короткоживущий JWT для доступа к API;
//   - RefreshToken - значение, которое клиент получает только в HttpOnly cookie
//     и предъявляет для выпуска новой пары;
//   - AccessExpiresAt/RefreshExpiresAt - моменты истечения (UTC).
type TokenPair struct {
	UserID           uuid.UUID
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
