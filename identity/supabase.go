package identity

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"taskweb/domain"
)

const maxResponseSize = 1 << 20

// Supabase is a client of the Supabase auth (GoTrue) REST API.
type Supabase struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	verifier *Verifier
}

// NewSupabase creates a client for the project at baseURL using the project
// API key. verifier may be nil.
func NewSupabase(baseURL, apiKey string, verifier *Verifier) *Supabase {
	return &Supabase{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
		verifier: verifier,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type supabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"`
	User        supabaseUser `json:"user"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e errorResponse) reason() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// SignIn exchanges email and password for an access token.
func (s *Supabase) SignIn(ctx context.Context, email, password string) (Grant, error) {
	var resp tokenResponse
	if err := s.do(ctx, "/auth/v1/token?grant_type=password", "", credentials{Email: email, Password: password}, &resp); err != nil {
		return Grant{}, err
	}
	if resp.AccessToken == "" || resp.User.ID == "" {
		return Grant{}, authErr("Identity provider returned an incomplete session", nil)
	}
	g := Grant{AccessToken: resp.AccessToken, User: domain.Identity{ID: resp.User.ID, Email: resp.User.Email}}
	if g.User.Email == "" {
		g.User.Email = email
	}
	if err := checkGrant(s.verifier, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// SignUp registers a new account. The account is pending until the user
// confirms the verification email.
func (s *Supabase) SignUp(ctx context.Context, email, password string) error {
	return s.do(ctx, "/auth/v1/signup", "", credentials{Email: email, Password: password}, nil)
}

// SignOut revokes the session of accessToken at the provider.
func (s *Supabase) SignOut(ctx context.Context, accessToken string) error {
	return s.do(ctx, "/auth/v1/logout", accessToken, nil, nil)
}

func (s *Supabase) do(ctx context.Context, path, bearer string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer == "" {
		bearer = s.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := s.client.Do(req)
	if err != nil {
		return authErr("Identity provider unavailable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return authErr("Identity provider unavailable", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var e errorResponse
		_ = sonic.Unmarshal(data, &e)
		reason := e.reason()
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return authErr(reason, fmt.Errorf("identity provider: status %d", resp.StatusCode))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return authErr("Identity provider returned an invalid response", err)
	}
	return nil
}
