package security

import (
	"errors"
	"testing"
	"time"
)

func TestUserTokenRoundTrip(t *testing.T) {
	token, err := GenerateUserToken("user-secret", 42, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseUserToken("user-secret", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 42 {
		t.Fatalf("user id = %d", claims.UserID)
	}
	if _, err := ParseUserToken("other-secret", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret: %v", err)
	}
}

func TestManagerTokenIsNotAUserToken(t *testing.T) {
	token, err := GenerateManagerToken("shared", 7, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseUserToken("shared", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("manager token accepted as user token: %v", err)
	}
	claims, err := ParseManagerToken("shared", token)
	if err != nil || claims.ManagerID != 7 {
		t.Fatalf("parse manager: %+v %v", claims, err)
	}
}

func TestExpiredToken(t *testing.T) {
	token, err := GenerateUserToken("s", 1, -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseUserToken("s", token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected expired, got %v", err)
	}
}

func TestEmptySecretRejected(t *testing.T) {
	if _, err := GenerateManagerToken("", 1, time.Hour); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected empty secret error, got %v", err)
	}
}
