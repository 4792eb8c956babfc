package identity

import (
	"errors"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

const (
	defaultJWKSCacheTTL = 15 * time.Minute

	// clockSkew is tolerated between the gateway's clock and ours.
	clockSkew = time.Minute
)

// Claims are the verified token claims the application relies on.
type Claims struct {
	Subject string
	Email   string
}

type gatewayClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier validates access tokens issued by the identity gateway, either
// with an HS256 shared secret or with an RS256 key set. A non-empty Audience
// or Issuer must be present in the token.
type Verifier struct {
	Audience string
	Issuer   string

	parser *jwt.Parser
	key    jwt.Keyfunc
}

// NewHS256Verifier verifies tokens signed with a shared secret.
func NewHS256Verifier(secret []byte, audience, issuer string) *Verifier {
	return &Verifier{
		Audience: audience,
		Issuer:   issuer,
		parser:   newGatewayParser("HS256"),
		key:      func(*jwt.Token) (any, error) { return secret, nil },
	}
}

// NewJWKSVerifier verifies RS256 tokens against jwks. Resolved keys are cached
// by kid for cacheTTL; a non-positive TTL uses the default of 15 minutes.
func NewJWKSVerifier(jwks *keyfunc.JWKS, audience, issuer string, cacheTTL time.Duration) *Verifier {
	if cacheTTL <= 0 {
		cacheTTL = defaultJWKSCacheTTL
	}
	keys := &jwksKeys{jwks: jwks, ttl: cacheTTL, byKid: map[string]cachedKey{}}
	return &Verifier{
		Audience: audience,
		Issuer:   issuer,
		parser:   newGatewayParser("RS256"),
		key:      keys.lookup,
	}
}

// Time based claims are checked by Verify with clockSkew applied.
func newGatewayParser(method string) *jwt.Parser {
	return jwt.NewParser(jwt.WithValidMethods([]string{method}), jwt.WithoutClaimsValidation())
}

// Verify checks the token signature and claims and returns the subject and
// email it was issued for.
func (v *Verifier) Verify(tokenStr string) (Claims, error) {
	if tokenStr == "" {
		return Claims{}, errors.New("missing token")
	}
	var claims gatewayClaims
	if _, err := v.parser.ParseWithClaims(tokenStr, &claims, v.key); err != nil {
		return Claims{}, err
	}
	if err := v.check(&claims, time.Now()); err != nil {
		return Claims{}, err
	}
	return Claims{Subject: claims.Subject, Email: claims.Email}, nil
}

func (v *Verifier) check(c *gatewayClaims, now time.Time) error {
	if !c.VerifyExpiresAt(now.Add(-clockSkew), true) {
		return errors.New("token expired")
	}
	if !c.VerifyNotBefore(now.Add(clockSkew), false) {
		return errors.New("token not valid yet")
	}
	if !c.VerifyIssuedAt(now.Add(clockSkew), false) {
		return errors.New("token used before issued")
	}
	if v.Audience != "" && !c.VerifyAudience(v.Audience, true) {
		return errors.New("invalid audience")
	}
	if v.Issuer != "" && !c.VerifyIssuer(v.Issuer, true) {
		return errors.New("invalid issuer")
	}
	if c.Subject == "" {
		return errors.New("missing sub")
	}
	return nil
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

// jwksKeys memoizes key set lookups by kid.
type jwksKeys struct {
	jwks *keyfunc.JWKS
	ttl  time.Duration

	mu    sync.Mutex
	byKid map[string]cachedKey
}

func (k *jwksKeys) lookup(token *jwt.Token) (any, error) {
	if k.jwks == nil {
		return nil, errors.New("jwks not configured")
	}
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return k.jwks.Keyfunc(token)
	}

	k.mu.Lock()
	entry, ok := k.byKid[kid]
	k.mu.Unlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.key, nil
	}

	key, err := k.jwks.Keyfunc(token)
	if err != nil {
		return nil, err
	}
	k.mu.Lock()
	k.byKid[kid] = cachedKey{key: key, expiresAt: time.Now().Add(k.ttl)}
	k.mu.Unlock()
	return key, nil
}
