package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/fromboo/internal/models"
	"github.com/pribylovaa/fromboo/internal/pkg/password"
	"github.com/pribylovaa/fromboo/internal/storage"
)

func TestRegisterUser_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	var saved *models.User
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u *models.User) error {
		saved = u
		return nil
	})

	user, err := svc.RegisterUser(context.Background(), " Alice ", "Alice@Example.com", "correct-pw")
	require.NoError(t, err)
	require.Same(t, saved, user)
	require.NotEqual(t, uuid.Nil, user.ID)
	require.Equal(t, "Alice", user.Name)
	require.Equal(t, "alice@example.com", user.Email)
	require.True(t, user.IsActive)
	require.NotEqual(t, "correct-pw", user.PasswordHash)
	require.True(t, password.Verify("correct-pw", user.PasswordHash))
}

func TestRegisterUser_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		userName string
		email    string
		password string
		want     error
	}{
		{name: "empty_name", userName: "  ", email: "a@b.com", password: "correct-pw", want: ErrEmptyName},
		{name: "empty_email", userName: "A", email: "", password: "correct-pw", want: ErrInvalidEmail},
		{name: "bad_email", userName: "A", email: "not-an-email", password: "correct-pw", want: ErrInvalidEmail},
		{name: "display_name_email", userName: "A", email: "Alice <a@b.com>", password: "correct-pw", want: ErrInvalidEmail},
		{name: "empty_password", userName: "A", email: "a@b.com", password: "", want: ErrEmptyPassword},
		{name: "short_password", userName: "A", email: "a@b.com", password: "short", want: ErrWeakPassword},
		{name: "password_over_72_bytes", userName: "A", email: "a@b.com", password: strings.Repeat("x", 73), want: ErrPasswordTooLong},
		{name: "multibyte_password_over_72_bytes", userName: "A", email: "a@b.com", password: strings.Repeat("пароль", 7), want: ErrPasswordTooLong},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, _, ctrl := newSvc(t)
			defer ctrl.Finish()

			_, err := svc.RegisterUser(context.Background(), tt.userName, tt.email, tt.password)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRegisterUser_StorageErrors(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).Return(storage.ErrAlreadyExists)
	_, err := svc.RegisterUser(context.Background(), "Alice", "alice@example.com", "correct-pw")
	require.ErrorIs(t, err, ErrEmailTaken)

	boom := errors.New("insert failed")
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).Return(boom)
	_, err = svc.RegisterUser(context.Background(), "Alice", "alice@example.com", "correct-pw")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterUser_DuplicateEmail_Memory(t *testing.T) {
	t.Parallel()

	svc, _, _ := newMemSvc(t, testCfg())
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, "Alice", "alice@example.com", "correct-pw")
	require.NoError(t, err)

	_, err = svc.RegisterUser(ctx, "Other", "ALICE@example.com", "another-pw")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestUserByID(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	uid := uuid.New()
	st.EXPECT().UserByID(gomock.Any(), uid).Return(&models.User{ID: uid}, nil)
	u, err := svc.UserByID(context.Background(), uid)
	require.NoError(t, err)
	require.Equal(t, uid, u.ID)

	st.EXPECT().UserByID(gomock.Any(), uid).Return(nil, storage.ErrNotFound)
	_, err = svc.UserByID(context.Background(), uid)
	require.ErrorIs(t, err, ErrUserNotFound)
}
