package jwtfactory

import (
	"fmt"
	"time"

	"github.com/go-chi/jwtauth/v5"
)

type TokenFactory struct {
	tokenAuth           *jwtauth.JWTAuth
	tokenExpirationTime time.Duration
}

func New(tokenAuth *jwtauth.JWTAuth, tokenExpirationTime time.Duration) *TokenFactory {
	return &TokenFactory{
		tokenAuth:           tokenAuth,
		tokenExpirationTime: tokenExpirationTime,
	}
}

// Generate signs a token holding extraClaims plus iat and exp.
func (tf *TokenFactory) Generate(extraClaims map[string]string) (string, error) {
	claims := make(map[string]any, len(extraClaims)+2)
	for k, v := range extraClaims {
		claims[k] = v
	}
	now := time.Now()
	jwtauth.SetIssuedAt(claims, now)
	jwtauth.SetExpiry(claims, now.Add(tf.tokenExpirationTime))

	_, tokenString, err := tf.tokenAuth.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("token encoding failed: %w", err)
	}
	return tokenString, nil
}

func (tf *TokenFactory) ExpirationTime() time.Duration {
	return tf.tokenExpirationTime
}
