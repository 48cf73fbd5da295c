package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/pribylovaa/fromboo/internal/models"
	"github.com/pribylovaa/fromboo/internal/pkg/password"
	"github.com/pribylovaa/fromboo/internal/storage"
)

const (
	// minPasswordLen - минимальная длина пароля в символах.
	minPasswordLen = 8
	// maxPasswordBytes - bcrypt не принимает пароли длиннее 72 байт.
	maxPasswordBytes = 72
)

// RegisterUser создаёт нового активного пользователя. Токены не выпускаются:
// после регистрации клиент выполняет обычный Login.
func (s *Service) RegisterUser(ctx context.Context, name, email, pass string) (*models.User, error) {
	const op = "service.user.RegisterUser"

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyName)
	}

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := validatePassword(pass); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := password.Hash(pass)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        normEmail,
		IsActive:     true,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByID возвращает пользователя по ID.
func (s *Service) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "service.user.UserByID"

	user, err := s.storage.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// validateEmail проверяет базовый формат email и нормализует его.
func validateEmail(raw string) (string, error) {
	email := normalizeEmail(raw)
	if email == "" {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}

	return email, nil
}

func validatePassword(pw string) error {
	if pw == "" {
		return ErrEmptyPassword
	}

	if len([]rune(pw)) < minPasswordLen {
		return ErrWeakPassword
	}

	if len(pw) > maxPasswordBytes {
		return ErrPasswordTooLong
	}

	return nil
}
