package dto

import (
	"time"

	dom "taskboard/internal/domain"
)

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest is the JSON body for POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=1,max=120"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=1"`
}

// UserResponse never carries a credential field.
type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthResponse is returned by login and register. Token is the bearer credential.
type AuthResponse struct {
	OK    bool         `json:"ok"`
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

func UserToResponse(u dom.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

func UsersToResponses(list []dom.User) []UserResponse {
	out := make([]UserResponse, len(list))
	for i := range list {
		out[i] = UserToResponse(list[i])
	}
	return out
}
