package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"gpu-market/internal/gpumarket/data"
)

const (
	minUsernameLength = 3
	minPasswordLength = 6
)

var (
	UserIDClaimName = "user_id"
)

type Credentials struct {
	Email    *string
	Username string
	Password string
}

type Session struct {
	Token string
	User  data.User
}

type Authorization struct {
	userRepository UserRepository
	tokenFactory   TokenFactory
	hashCost       int
}

func NewAuthorization(
	userRepository UserRepository,
	tokenFactory TokenFactory,
) *Authorization {
	return &Authorization{
		userRepository: userRepository,
		tokenFactory:   tokenFactory,
		hashCost:       bcrypt.DefaultCost,
	}
}

func (r *Authorization) Register(ctx context.Context, credentials Credentials) (Session, error) {
	username := strings.TrimSpace(credentials.Username)
	switch {
	case username == "" || credentials.Password == "":
		return Session{}, newValidationError("Username and password are required")
	case len([]rune(username)) < minUsernameLength:
		return Session{}, newValidationError("Username must be at least 3 characters long")
	case len(credentials.Password) < minPasswordLength:
		return Session{}, newValidationError("Password must be at least 6 characters long")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(credentials.Password), r.hashCost)
	if err != nil {
		return Session{}, fmt.Errorf("error hashing password: %w", err)
	}

	var email *string
	if credentials.Email != nil && strings.TrimSpace(*credentials.Email) != "" {
		e := strings.TrimSpace(*credentials.Email)
		email = &e
	}
	user := data.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := r.userRepository.InsertUser(ctx, &user); err != nil {
		var uniqueErr *data.UniqueViolationError
		switch {
		case errors.As(err, &uniqueErr) && uniqueErr.Constraint == data.UsersEmailConstraint:
			return Session{}, ErrEmailTaken
		case errors.Is(err, data.ErrUniqueConstraintViolation):
			return Session{}, ErrUsernameTaken
		default:
			return Session{}, fmt.Errorf("error inserting user: %w", err)
		}
	}

	return r.newSession(user)
}

func (r *Authorization) Login(ctx context.Context, username string, password string) (Session, error) {
	if username == "" || password == "" {
		return Session{}, newValidationError("Username and password are required")
	}
	user, err := r.userRepository.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		switch {
		case errors.Is(err, data.ErrNotFound):
			return Session{}, ErrInvalidCredentials
		default:
			return Session{}, fmt.Errorf("error getting user: %w", err)
		}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	return r.newSession(user)
}

func (r *Authorization) CurrentUser(ctx context.Context, userID int) (data.User, error) {
	user, err := r.userRepository.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return data.User{}, ErrUserNotFound
		}
		return data.User{}, fmt.Errorf("error getting user: %w", err)
	}
	return user, nil
}

func (r *Authorization) newSession(user data.User) (Session, error) {
	payload := map[string]string{
		UserIDClaimName: strconv.Itoa(user.ID),
	}
	token, err := r.tokenFactory.Generate(payload)
	if err != nil {
		return Session{}, fmt.Errorf("error generating token: %w", err)
	}
	return Session{
		Token: token,
		User:  user,
	}, nil
}
