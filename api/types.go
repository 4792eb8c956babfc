package api

import (
	"context"
	"time"

	"taskweb/domain"
	"taskweb/identity"
	"taskweb/session"
)

// Gateway is the identity gateway behind the login, register and logout pages.
type Gateway interface {
	SignIn(ctx context.Context, email, password string) (identity.Grant, error)
	// SignUp registers an account; success means verification is pending.
	SignUp(ctx context.Context, email, password string) error
	SignOut(ctx context.Context, accessToken string) error
}

// Sessions loads and persists browser sessions.
type Sessions interface {
	Load(ctx context.Context, id string) (*session.Session, error)
	Save(ctx context.Context, s *session.Session) error
	TTL() time.Duration
}

// Service is the ownership scoped record service used by the page handlers.
type Service interface {
	Dashboard(ctx context.Context, p domain.Principal) (domain.Dashboard, error)
	ListTasks(ctx context.Context, p domain.Principal) ([]domain.Task, error)
	CreateTask(ctx context.Context, p domain.Principal, in domain.NewTask) (domain.Task, error)
	ToggleTask(ctx context.Context, p domain.Principal, id string) (domain.Task, error)
	DeleteTask(ctx context.Context, p domain.Principal, id string) error
	ListNotes(ctx context.Context, p domain.Principal) ([]domain.Note, error)
	CreateNote(ctx context.Context, p domain.Principal, in domain.NewNote) (domain.Note, error)
	DeleteNote(ctx context.Context, p domain.Principal, id string) error
}

// Options tune the HTTP surface for the deployment.
type Options struct {
	// Debug disables secure cookies and HSTS.
	Debug bool
	// AllowedHosts lists accepted Host headers. A leading dot matches the
	// domain and all of its subdomains, "*" matches any host.
	AllowedHosts []string
}
