package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWT validation errors.
var (
	// ErrInvalidToken indicates a token is malformed or fails validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates a token has expired.
	ErrExpiredToken = errors.New("token expired")
	// ErrEmptySecret indicates a signing secret was not configured.
	ErrEmptySecret = errors.New("empty jwt secret")
)

// UserClaims defines JWT claims for wallet users.
type UserClaims struct {
	UserID uint64 `json:"user_id"`
	jwt.RegisteredClaims
}

// ManagerClaims defines JWT claims for managers.
type ManagerClaims struct {
	ManagerID uint64 `json:"manager_id"`
	jwt.RegisteredClaims
}

// GenerateUserToken signs a user JWT with the configured expiry.
func GenerateUserToken(secret string, userID uint64, expiry time.Duration) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	claims := UserClaims{UserID: userID, RegisteredClaims: registered(expiry)}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseUserToken validates a user JWT and returns its claims.
func ParseUserToken(secret string, tokenString string) (*UserClaims, error) {
	claims := &UserClaims{}
	if err := parse(secret, tokenString, claims); err != nil {
		return nil, err
	}
	if claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateManagerToken signs a manager JWT with the configured expiry.
func GenerateManagerToken(secret string, managerID uint64, expiry time.Duration) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	claims := ManagerClaims{ManagerID: managerID, RegisteredClaims: registered(expiry)}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseManagerToken validates a manager JWT and returns its claims.
func ParseManagerToken(secret string, tokenString string) (*ManagerClaims, error) {
	claims := &ManagerClaims{}
	if err := parse(secret, tokenString, claims); err != nil {
		return nil, err
	}
	if claims.ManagerID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func registered(expiry time.Duration) jwt.RegisteredClaims {
	now := time.Now().UTC()
	return jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
	}
}

func parse(secret, tokenString string, claims jwt.Claims) error {
	if secret == "" {
		return ErrEmptySecret
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
