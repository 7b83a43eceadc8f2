package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"taskboard/internal/cache"
	dom "taskboard/internal/domain"
	"taskboard/internal/repo"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid email or password")
var ErrEmailTaken = errors.New("email already registered")

// UserService handles registration, login and the user directory.
type UserService struct {
	repo  repo.UserRepo
	cache ListCache
	cost  int
}

// NewUserService returns a new UserService. If c is nil, caching is disabled.
func NewUserService(repo repo.UserRepo, c *cache.TaskCache) *UserService {
	return &UserService{repo: repo, cache: listCache(c), cost: bcrypt.DefaultCost}
}

// ValidateCredentials checks email and password; returns user if valid.
func (s *UserService) ValidateCredentials(ctx context.Context, email, password string) (dom.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return dom.User{}, ErrInvalidCredentials
	}
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return dom.User{}, ErrInvalidCredentials
		}
		return dom.User{}, &dom.StoreError{Op: "find user", Err: err}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return dom.User{}, ErrInvalidCredentials
	}
	return u.Public(), nil
}

// Register creates a new user with hashed password.
func (s *UserService) Register(ctx context.Context, username, email, password string) (dom.User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	switch {
	case username == "":
		return dom.User{}, &dom.ValidationError{Field: "username", Msg: "is required"}
	case email == "":
		return dom.User{}, &dom.ValidationError{Field: "email", Msg: "is required"}
	case password == "":
		return dom.User{}, &dom.ValidationError{Field: "password", Msg: "is required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return dom.User{}, &dom.ValidationError{Field: "email", Msg: "is not a valid address"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return dom.User{}, err
	}
	u, err := s.repo.Create(ctx, username, email, string(hash))
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return dom.User{}, ErrEmailTaken
		}
		return dom.User{}, &dom.StoreError{Op: "create user", Err: err}
	}
	if s.cache != nil {
		_ = s.cache.InvalidateUsers(ctx)
	}
	return u.Public(), nil
}

// List returns all users without credentials.
func (s *UserService) List(ctx context.Context) ([]dom.User, error) {
	if s.cache == nil {
		return s.listUsers(ctx)
	}
	gen, err := s.cache.UsersGeneration(ctx)
	if err != nil {
		return s.listUsers(ctx)
	}
	if list, err := s.cache.GetUsers(ctx, gen); err == nil && list != nil {
		return list, nil
	}
	list, err := s.listUsers(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetUsers(ctx, gen, list)
	return list, nil
}

func (s *UserService) listUsers(ctx context.Context) ([]dom.User, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, &dom.StoreError{Op: "list users", Err: err}
	}
	for i := range list {
		list[i] = list[i].Public()
	}
	return list, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
