package auth

import (
	"testing"
	"time"

	"github.com/directaid/backend/internal/rbac"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestGenerateAndParseJWT(t *testing.T) {
	secret := "test-secret"
	userID := uuid.New()

	token, err := GenerateJWT(secret, userID, rbac.RoleProvider, time.Hour)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	claims, err := ParseJWT(secret, token)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("user id = %s, want %s", claims.UserID, userID)
	}
	if claims.Role != rbac.RoleProvider {
		t.Errorf("role = %s, want %s", claims.Role, rbac.RoleProvider)
	}
}

func TestParseJWT_WrongSecret(t *testing.T) {
	token, err := GenerateJWT("secret-a", uuid.New(), rbac.RoleDonor, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseJWT("secret-b", token); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestParseJWT_Expired(t *testing.T) {
	claims := Claims{
		UserID: uuid.New(),
		Role:   rbac.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			Issuer:    issuer,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseJWT("s", token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestParseJWT_UnknownRole(t *testing.T) {
	claims := Claims{
		UserID: uuid.New(),
		Role:   "ROOT",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			Issuer:    issuer,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseJWT("s", token); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestGenerateJWT_RejectsUnknownRole(t *testing.T) {
	if _, err := GenerateJWT("s", uuid.New(), "SUPERUSER", time.Hour); err == nil {
		t.Fatal("expected error for unknown role")
	}
}
