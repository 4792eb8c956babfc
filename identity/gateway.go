// Package identity talks to the identity gateway that verifies credentials
// and issues access tokens.
package identity

import (
	"strings"

	"taskweb/domain"
)

// Grant is the result of a successful sign-in.
type Grant struct {
	AccessToken string
	User        domain.Identity
}

func authErr(reason string, err error) *domain.AuthError {
	return &domain.AuthError{Reason: reason, Err: err}
}

// checkGrant rejects grants whose token was not issued to the returned user.
func checkGrant(v *Verifier, g Grant) error {
	if v == nil {
		return nil
	}
	claims, err := v.Verify(g.AccessToken)
	if err != nil {
		return authErr("Invalid access token", err)
	}
	if claims.Subject != g.User.ID {
		return authErr("Access token does not belong to this user", nil)
	}
	if claims.Email != "" && !strings.EqualFold(claims.Email, g.User.Email) {
		return authErr("Access token does not belong to this user", nil)
	}
	return nil
}
