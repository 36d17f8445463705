package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuthorization(store *memoryStore) *Authorization {
	a := NewAuthorization(store, fakeTokenFactory{})
	a.hashCost = bcrypt.MinCost
	return a
}

func TestAuthorization_Register(t *testing.T) {
	tests := []struct {
		name        string
		credentials Credentials
		wantMessage string
	}{
		{
			name:        "missing password",
			credentials: Credentials{Username: "alice"},
			wantMessage: "Username and password are required",
		},
		{
			name:        "short username",
			credentials: Credentials{Username: "al", Password: "secret1"},
			wantMessage: "Username must be at least 3 characters long",
		},
		{
			name:        "short password",
			credentials: Credentials{Username: "alice", Password: "12345"},
			wantMessage: "Password must be at least 6 characters long",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			_, err := newTestAuthorization(store).Register(context.Background(), tt.credentials)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.wantMessage, validationErr.Message)
			assert.Empty(t, store.users)
		})
	}

	t.Run("success and taken", func(t *testing.T) {
		store := newMemoryStore()
		auth := newTestAuthorization(store)
		session, err := auth.Register(context.Background(), Credentials{
			Username: "alice",
			Password: "secret1",
			Email:    strPtr("alice@example.com"),
		})
		require.NoError(t, err)
		assert.Equal(t, "token-for-1", session.Token)
		assert.Equal(t, "alice", session.User.Username)
		assert.NotEqual(t, "secret1", session.User.PasswordHash)

		_, err = auth.Register(context.Background(), Credentials{Username: "alice", Password: "another"})
		assert.ErrorIs(t, err, ErrUsernameTaken)

		_, err = auth.Register(context.Background(), Credentials{
			Username: "alice2",
			Password: "another",
			Email:    strPtr("alice@example.com"),
		})
		assert.ErrorIs(t, err, ErrEmailTaken)
		assert.NotErrorIs(t, err, ErrUsernameTaken)
	})
}

func TestAuthorization_Login(t *testing.T) {
	store := newMemoryStore()
	auth := newTestAuthorization(store)
	_, err := auth.Register(context.Background(), Credentials{Username: "bob", Password: "correct-horse"})
	require.NoError(t, err)

	session, err := auth.Login(context.Background(), "bob", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)

	_, err = auth.Login(context.Background(), "bob", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.Login(context.Background(), "nobody", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthorization_CurrentUser(t *testing.T) {
	store := newMemoryStore()
	user := store.addUser("carol", "12.50")
	auth := newTestAuthorization(store)

	got, err := auth.CurrentUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", got.Username)

	_, err = auth.CurrentUser(context.Background(), 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
