package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func signHS256(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func signHS384(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestVerifyHS256(t *testing.T) {
	secret := []byte("test-secret")
	token := signHS256(t, secret, jwt.MapClaims{
		"sub":   "user-123",
		"email": "a@x.com",
		"aud":   "authenticated",
		"iss":   "https://project.supabase.co/auth/v1",
		"exp":   time.Now().Add(5 * time.Minute).Unix(),
		"nbf":   time.Now().Add(-time.Minute).Unix(),
		"iat":   time.Now().Add(-time.Minute).Unix(),
	})

	v := NewHS256Verifier(secret, "authenticated", "https://project.supabase.co/auth/v1")
	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("unexpected error verifying token: %v", err)
	}
	if claims.Subject != "user-123" || claims.Email != "a@x.com" {
		t.Fatalf("unexpected claims: %#v", claims)
	}
}

func TestVerifyRejects(t *testing.T) {
	secret := []byte("test-secret")
	valid := jwt.MapClaims{"sub": "u", "aud": "authenticated", "exp": time.Now().Add(5 * time.Minute).Unix()}
	tests := []struct {
		name   string
		token  string
		v      *Verifier
		errMsg string
	}{
		{name: "empty", token: "", v: NewHS256Verifier(secret, "", ""), errMsg: "missing token"},
		{name: "wrong secret", token: signHS256(t, []byte("other"), valid), v: NewHS256Verifier(secret, "", "")},
		{name: "audience", token: signHS256(t, secret, valid), v: NewHS256Verifier(secret, "api://other", ""), errMsg: "invalid audience"},
		{name: "issuer", token: signHS256(t, secret, valid), v: NewHS256Verifier(secret, "", "https://issuer/"), errMsg: "invalid issuer"},
		{name: "missing sub", token: signHS256(t, secret, jwt.MapClaims{"exp": time.Now().Add(5 * time.Minute).Unix()}), v: NewHS256Verifier(secret, "", ""), errMsg: "missing sub"},
		{name: "missing iss and aud", token: signHS256(t, secret, jwt.MapClaims{"sub": "u", "exp": time.Now().Add(5 * time.Minute).Unix()}), v: NewHS256Verifier(secret, "authenticated", "https://issuer/"), errMsg: "invalid audience"},
		{name: "missing exp", token: signHS256(t, secret, jwt.MapClaims{"sub": "u"}), v: NewHS256Verifier(secret, "", ""), errMsg: "token expired"},
		{name: "expired", token: signHS256(t, secret, jwt.MapClaims{"sub": "u", "exp": time.Now().Add(-5 * time.Minute).Unix()}), v: NewHS256Verifier(secret, "", ""), errMsg: "token expired"},
		{name: "not yet valid", token: signHS256(t, secret, jwt.MapClaims{"sub": "u", "exp": time.Now().Add(time.Hour).Unix(), "nbf": time.Now().Add(10 * time.Minute).Unix()}), v: NewHS256Verifier(secret, "", ""), errMsg: "token not valid yet"},
		{name: "wrong algorithm", token: signHS384(t, secret, valid), v: NewHS256Verifier(secret, "", "")},
		{name: "no jwks", token: signHS256(t, secret, valid), v: NewJWKSVerifier(nil, "", "", 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.v.Verify(tt.token)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tt.errMsg != "" && err.Error() != tt.errMsg {
				t.Fatalf("expected %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestVerifyToleratesClockSkew(t *testing.T) {
	secret := []byte("test-secret")
	v := NewHS256Verifier(secret, "", "")
	tests := []struct {
		name   string
		claims jwt.MapClaims
	}{
		{name: "expires soon", claims: jwt.MapClaims{"sub": "u", "exp": time.Now().Add(30 * time.Second).Unix()}},
		{name: "just expired", claims: jwt.MapClaims{"sub": "u", "exp": time.Now().Add(-30 * time.Second).Unix()}},
		{name: "issued ahead", claims: jwt.MapClaims{"sub": "u", "exp": time.Now().Add(time.Hour).Unix(), "iat": time.Now().Add(30 * time.Second).Unix(), "nbf": time.Now().Add(30 * time.Second).Unix()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Verify(signHS256(t, secret, tt.claims)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestVerifyRequiresConfiguredIssuer(t *testing.T) {
	secret := []byte("test-secret")
	token := signHS256(t, secret, jwt.MapClaims{"sub": "u", "aud": "authenticated", "exp": time.Now().Add(5 * time.Minute).Unix()})
	if _, err := NewHS256Verifier(secret, "authenticated", "").Verify(token); err != nil {
		t.Fatalf("unexpected error without issuer requirement: %v", err)
	}
	_, err := NewHS256Verifier(secret, "authenticated", "https://issuer/").Verify(token)
	if err == nil || err.Error() != "invalid issuer" {
		t.Fatalf("expected invalid issuer, got %v", err)
	}
}
