package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pribylovaa/fromboo/internal/models"
	"github.com/pribylovaa/fromboo/internal/storage"
)

// ResolveAccessToken проверяет access-токен и загружает его владельца.
//
// Ошибки:
//
//	ErrInvalidSignature, ErrTokenExpired - от Codec;
//	ErrUserNotFound - пользователь удалён после выпуска токена.
func (s *Service) ResolveAccessToken(ctx context.Context, accessToken string) (*models.User, error) {
	const op = "service.session.ResolveAccessToken"

	payload, err := s.codec.Verify(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.UserByID(ctx, payload.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// ResolveRefreshToken находит запись refresh-токена и её владельца. Запись не изменяется.
//
// Ошибки:
//
//	ErrTokenNotFound - значение не UUID или записи нет (в т.ч. заменена ротацией);
//	ErrTokenExpired - expires_at <= now;
//	ErrUserNotFound - владелец записи не найден.
func (s *Service) ResolveRefreshToken(ctx context.Context, refreshToken string) (*models.User, error) {
	const op = "service.session.ResolveRefreshToken"

	value, err := uuid.Parse(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenNotFound)
	}

	rt, err := s.storage.RefreshTokenByValue(ctx, value)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if rt.ExpiredAt(s.now()) {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}

	user, err := s.UserByID(ctx, rt.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}
