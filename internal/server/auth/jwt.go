// Package auth mints and validates signed, expiring session tokens carrying
// the identity claims of an authenticated user.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pitchside/pitchside/internal/common"
)

// Credentials is the identity triple carried inside a session token and
// attached to a request once the authentication gate succeeds.
type Credentials struct {
	ID       string
	Email    string
	Username string
}

// Claims combines the registered claims with explicit identity fields.
// Identity is carried as structured claims rather than a single
// delimiter-joined string, so field values can never collide with a
// separator.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"uid"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// GenerateToken signs a Credentials triple into a compact HS256 token
// expiring after validityDuration.
func GenerateToken(creds Credentials, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
			// unique per token so two logins in the same second never
			// produce identical tokens
			ID: uuid.NewString(),
		},
		UserID:   creds.ID,
		Email:    creds.Email,
		Username: creds.Username,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetCredentialsFromToken verifies the signature and expiry of a session
// token and reconstructs the Credentials it carries. Any failure (bad
// signature, expired token, wrong algorithm, claims missing an identity
// field) yields common.ErrInvalidToken.
func GetCredentialsFromToken(tokenString string, secretKey []byte) (Credentials, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Credentials{}, common.ErrInvalidToken
	}

	if !token.Valid {
		return Credentials{}, common.ErrInvalidToken
	}

	if claims.UserID == "" || claims.Email == "" || claims.Username == "" {
		return Credentials{}, common.ErrInvalidToken
	}

	return Credentials{ID: claims.UserID, Email: claims.Email, Username: claims.Username}, nil
}
