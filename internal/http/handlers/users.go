package handlers

import (
	"net/http"

	"github.com/google/uuid"

	apierrors "github.com/pribylovaa/fromboo/internal/errors"
	"github.com/pribylovaa/fromboo/internal/http/middleware"
	"github.com/pribylovaa/fromboo/internal/models"
	"github.com/pribylovaa/fromboo/internal/service"
)

// CreateUserRequest - тело POST /user/.
type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse - публичное представление пользователя.
type UserResponse struct {
	UserID   uuid.UUID `json:"user_id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	IsActive bool      `json:"is_active"`
}

func userFromModel(u *models.User) UserResponse {
	return UserResponse{
		UserID:   u.ID,
		Name:     u.Name,
		Email:    u.Email,
		IsActive: u.IsActive,
	}
}

// CreateUser - POST /user/.
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.CreateUser"

	var in CreateUserRequest
	if err := decodeStrict(w, r, &in); err != nil {
		fail(w, r, op, apierrors.ErrBadRequest)
		return
	}

	user, err := h.svc.RegisterUser(r.Context(), in.Name, in.Email, in.Password)
	h.metrics.AuthEvent("register", result(err))
	if err != nil {
		fail(w, r, op, err)
		return
	}

	writeJSON(w, http.StatusOK, userFromModel(user))
}

// GetUser - GET /user/get-user (за RequireAuth).
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.GetUser"

	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		fail(w, r, op, service.ErrUnauthenticated)
		return
	}

	writeJSON(w, http.StatusOK, userFromModel(user))
}
