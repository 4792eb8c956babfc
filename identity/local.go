package identity

import (
	"context"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"taskweb/domain"
)

const (
	localIssuer       = "taskweb-local"
	minPasswordLength = 6
	userKeyPrefix     = "identity:user:"
)

// Local is a self-contained identity gateway for development. Accounts are
// kept in Redis with bcrypt password hashes and access tokens are HS256 JWTs.
type Local struct {
	client   *redis.Client
	secret   []byte
	tokenTTL time.Duration
	cost     int
	verifier *Verifier
}

// NewLocal creates a local gateway signing tokens with secret.
func NewLocal(client *redis.Client, secret []byte, tokenTTL time.Duration) *Local {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &Local{
		client:   client,
		secret:   secret,
		tokenTTL: tokenTTL,
		cost:     bcrypt.DefaultCost,
		verifier: NewHS256Verifier(secret, "", localIssuer),
	}
}

type localUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
}

func userKey(email string) string {
	return userKeyPrefix + strings.ToLower(strings.TrimSpace(email))
}

// SignUp registers a new account. Local accounts need no confirmation.
func (l *Local) SignUp(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return authErr("Email is required", nil)
	}
	if len(password) < minPasswordLength {
		return authErr("Password should be at least 6 characters", nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return authErr("Unable to register", err)
	}
	data, err := sonic.Marshal(localUser{ID: uuid.NewString(), Email: email, PasswordHash: string(hash)})
	if err != nil {
		return err
	}
	added, err := l.client.SetNX(ctx, userKey(email), data, 0).Result()
	if err != nil {
		return authErr("Identity provider unavailable", err)
	}
	if !added {
		return authErr("User already registered", nil)
	}
	return nil
}

// SignIn checks the password and issues an access token.
func (l *Local) SignIn(ctx context.Context, email, password string) (Grant, error) {
	data, err := l.client.Get(ctx, userKey(email)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Grant{}, authErr("Invalid login credentials", nil)
		}
		return Grant{}, authErr("Identity provider unavailable", err)
	}
	var u localUser
	if err := sonic.Unmarshal(data, &u); err != nil {
		return Grant{}, authErr("Identity provider unavailable", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Grant{}, authErr("Invalid login credentials", nil)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"iss":   localIssuer,
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(l.tokenTTL).Unix(),
	})
	signed, err := token.SignedString(l.secret)
	if err != nil {
		return Grant{}, authErr("Unable to issue access token", err)
	}
	g := Grant{AccessToken: signed, User: domain.Identity{ID: u.ID, Email: u.Email}}
	if err := checkGrant(l.verifier, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// SignOut checks that accessToken was issued by this gateway. Local tokens
// are stateless, so nothing is revoked.
func (l *Local) SignOut(_ context.Context, accessToken string) error {
	if _, err := l.verifier.Verify(accessToken); err != nil {
		return authErr("Invalid access token", err)
	}
	return nil
}
