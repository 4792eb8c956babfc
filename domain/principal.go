package domain

// Identity is the user identity issued by the identity gateway.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Principal is the caller of a service operation, copied from the session of
// the current request.
type Principal struct {
	AccessToken string
	User        Identity
}

// Authenticated reports whether the principal holds an access token.
func (p Principal) Authenticated() bool {
	return p.AccessToken != ""
}

// Email returns the owner identity used to scope every record access.
func (p Principal) Email() string {
	return p.User.Email
}
