package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/fromboo/internal/models"
	"github.com/pribylovaa/fromboo/internal/storage"
)

// rotateAttempts - первая попытка и один повтор со свежим значением токена.
const rotateAttempts = 2

// RotateRefreshToken заменяет (или создаёт) запись refresh-токена пользователя одним
// UPSERT по user_id. Конкурентные ротации одного пользователя сериализуются самой БД;
// проигравший получает токен, который сразу перестаёт находиться.
//
// Возвращает:
//
//	storage.ErrNotFound - пользователя не существует (нарушение FK);
//	storage.ErrConflict - нарушение уникальности повторилось после повтора.
func (s *Storage) RotateRefreshToken(ctx context.Context, userID uuid.UUID, ttl time.Duration, clientAddress string) (*models.RefreshToken, error) {
	const op = "storage.postgres.RotateRefreshToken"

	query := `
		INSERT INTO refresh_token(token, user_id, registered_at, expires_at, ip_address)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET token         = EXCLUDED.token,
		    registered_at = EXCLUDED.registered_at,
		    expires_at    = EXCLUDED.expires_at,
		    ip_address    = EXCLUDED.ip_address
		RETURNING token, user_id, registered_at, expires_at, ip_address
	`

	for attempt := 0; attempt < rotateAttempts; attempt++ {
		value, err := s.newToken()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		// timestamptz хранит микросекунды: усечение сохраняет expires_at == issued_at + ttl после чтения.
		issuedAt := s.now().UTC().Truncate(time.Microsecond)

		var rt models.RefreshToken
		err = s.db.QueryRow(ctx, query,
			value,
			userID,
			issuedAt,
			issuedAt.Add(ttl),
			clientAddress,
		).Scan(
			&rt.Token,
			&rt.UserID,
			&rt.IssuedAt,
			&rt.ExpiresAt,
			&rt.ClientAddress,
		)
		if err == nil {
			rt.IssuedAt = rt.IssuedAt.UTC()
			rt.ExpiresAt = rt.ExpiresAt.UTC()
			return &rt, nil
		}

		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			continue
		case pgerrcode.ForeignKeyViolation:
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		default:
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil, fmt.Errorf("%s: %w", op, storage.ErrConflict)
}

// RefreshTokenByValue находит refresh-токен по его значению.
func (s *Storage) RefreshTokenByValue(ctx context.Context, token uuid.UUID) (*models.RefreshToken, error) {
	const op = "storage.postgres.RefreshTokenByValue"

	query := `
		SELECT token, user_id, registered_at, expires_at, ip_address
		FROM refresh_token
		WHERE token = $1
	`

	var rt models.RefreshToken
	err := s.db.QueryRow(ctx, query, token).Scan(
		&rt.Token,
		&rt.UserID,
		&rt.IssuedAt,
		&rt.ExpiresAt,
		&rt.ClientAddress,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rt.IssuedAt = rt.IssuedAt.UTC()
	rt.ExpiresAt = rt.ExpiresAt.UTC()

	return &rt, nil
}
