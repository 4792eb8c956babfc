package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"taskweb/domain"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewLocal(client, []byte("local-secret"), time.Hour)
	l.cost = bcrypt.MinCost
	return l
}

func TestLocalSignUpSignInSignOut(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	if err := l.SignUp(ctx, "a@x.com", "secret-pw"); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	grant, err := l.SignIn(ctx, "A@x.com", "secret-pw")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if grant.AccessToken == "" || grant.User.ID == "" || grant.User.Email != "a@x.com" {
		t.Fatalf("unexpected grant: %#v", grant)
	}
	claims, err := l.verifier.Verify(grant.AccessToken)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if claims.Subject != grant.User.ID {
		t.Fatalf("token subject %q does not match user %q", claims.Subject, grant.User.ID)
	}
	if err := l.SignOut(ctx, grant.AccessToken); err != nil {
		t.Fatalf("sign out: %v", err)
	}
}

func TestLocalAuthFailures(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()
	if err := l.SignUp(ctx, "a@x.com", "secret-pw"); err != nil {
		t.Fatalf("sign up: %v", err)
	}

	tests := []struct {
		name   string
		run    func() error
		reason string
	}{
		{name: "duplicate", run: func() error { return l.SignUp(ctx, "a@x.com", "another-pw") }, reason: "User already registered"},
		{name: "short password", run: func() error { return l.SignUp(ctx, "b@x.com", "123") }, reason: "Password should be at least 6 characters"},
		{name: "wrong password", run: func() error { _, err := l.SignIn(ctx, "a@x.com", "nope-nope"); return err }, reason: "Invalid login credentials"},
		{name: "unknown user", run: func() error { _, err := l.SignIn(ctx, "c@x.com", "secret-pw"); return err }, reason: "Invalid login credentials"},
		{name: "bad token", run: func() error { return l.SignOut(ctx, "not.a.token") }, reason: "Invalid access token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			var authErr *domain.AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("expected AuthError, got %v", err)
			}
			if authErr.Reason != tt.reason {
				t.Fatalf("expected reason %q, got %q", tt.reason, authErr.Reason)
			}
		})
	}
}
