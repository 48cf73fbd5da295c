package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pribylovaa/fromboo/internal/models"
	"github.com/pribylovaa/fromboo/internal/pkg/log"
	"github.com/pribylovaa/fromboo/internal/pkg/password"
	"github.com/pribylovaa/fromboo/internal/storage"
)

// Login выполняет вход по email+пароль и выпускает новую пару токенов.
// Предыдущий refresh-токен пользователя (если был) перестаёт действовать.
func (s *Service) Login(ctx context.Context, email, pass, clientAddress string) (*models.TokenPair, error) {
	const op = "service.auth.Login"

	normEmail := normalizeEmail(email)
	if normEmail == "" || pass == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			password.Verify(pass, dummyHash())
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !password.Verify(pass, user.PasswordHash) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	tp, err := s.issueTokenPair(ctx, user.ID, clientAddress)
	if err != nil {
		// пользователь удалён между проверкой пароля и ротацией.
		if errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tp, nil
}

// Refresh обменивает действующий refresh-токен на новую пару токенов.
// Ошибки разрешения токена оборачиваются в ErrUnauthenticated вместе с причиной.
func (s *Service) Refresh(ctx context.Context, refreshToken, clientAddress string) (*models.TokenPair, error) {
	const op = "service.auth.Refresh"

	if refreshToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	user, err := s.ResolveRefreshToken(ctx, refreshToken)
	if err != nil {
		if isResolveFailure(err) {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrUnauthenticated, err)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tp, err := s.issueTokenPair(ctx, user.ID, clientAddress)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrUnauthenticated, err)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tp, nil
}

// issueTokenPair выпускает access-токен и ротирует refresh-токен пользователя.
func (s *Service) issueTokenPair(ctx context.Context, userID uuid.UUID, clientAddress string) (*models.TokenPair, error) {
	const op = "service.auth.issueTokenPair"

	access, accessExp, err := s.codec.Issue(userID, s.cfg.AccessTTL())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rt, err := s.storage.RotateRefreshToken(ctx, userID, s.cfg.RefreshTTL(), clientAddress)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			log.From(ctx).Warn("refresh_rotation_conflict", "op", op, "user_id", userID.String())
			return nil, fmt.Errorf("%s: %w", op, ErrStoreConflict)
		case errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		default:
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return &models.TokenPair{
		UserID:           userID,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     rt.Token.String(),
		RefreshExpiresAt: rt.ExpiresAt,
	}, nil
}

func isResolveFailure(err error) bool {
	return errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrUserNotFound)
}

// normalizeEmail обрезает пробелы и приводит email к нижнему регистру.
func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
