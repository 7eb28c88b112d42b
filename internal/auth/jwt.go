package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SingleUserID is the user every connection authenticated with the
// single-user token acts as.
const SingleUserID = "single-user"

// RoleAdmin grants access to the hub administration API.
const RoleAdmin = "admin"

// Claims holds the JWT token payload. The uid and role claims match the
// tokens minted by the session service.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Role   string `json:"role"`
}

// ErrInvalidToken is returned when a JWT cannot be parsed or has expired.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// IssueToken creates a signed HS256 token. Sessions are minted by the
// service that owns user login; this exists for operators and tests.
func IssueToken(secret, userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "boardsync",
		},
		UserID: userID,
		Role:   role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("auth.IssueToken: %w", err)
	}

	return signed, nil
}

// ParseToken parses and validates a JWT token string. Returns the embedded claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("auth.ParseToken: %w", ErrInvalidToken)
	}

	if !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("auth.ParseToken: %w", ErrInvalidToken)
	}

	return claims, nil
}

// Validator resolves websocket AUTH tokens to user ids.
type Validator struct {
	secret          string
	singleUserToken string
}

// NewValidator creates a Validator. An empty singleUserToken disables
// single-user mode.
func NewValidator(secret, singleUserToken string) *Validator {
	return &Validator{secret: secret, singleUserToken: singleUserToken}
}

// ValidateToken returns the user id the token belongs to.
func (v *Validator) ValidateToken(ctx context.Context, token string) (string, error) {
	userID, _, err := v.Identify(ctx, token)
	if err != nil {
		return "", fmt.Errorf("auth.Validator.ValidateToken: %w", err)
	}
	return userID, nil
}

// Identify returns the user id and role carried by the token. The
// single-user token owns the whole server and is treated as an admin.
func (v *Validator) Identify(_ context.Context, token string) (string, string, error) {
	if token == "" {
		return "", "", ErrInvalidToken
	}

	if v.singleUserToken != "" &&
		subtle.ConstantTimeCompare([]byte(token), []byte(v.singleUserToken)) == 1 {
		return SingleUserID, RoleAdmin, nil
	}

	if v.secret == "" {
		return "", "", ErrInvalidToken
	}

	claims, err := ParseToken(v.secret, token)
	if err != nil {
		return "", "", err
	}
	// Only the single-user token may act as the single user.
	if claims.UserID == SingleUserID {
		return "", "", ErrInvalidToken
	}

	return claims.UserID, claims.Role, nil
}
