package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Service performs record operations on behalf of a principal. Every store
// call is scoped by the principal's email.
type Service struct {
	st       Storage
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a Service backed by st.
func NewService(st Storage) *Service {
	return &Service{
		st:       st,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) owner(p Principal) (string, error) {
	if !p.Authenticated() || p.Email() == "" {
		return "", ErrUnauthenticated
	}
	return p.Email(), nil
}

// touch returns the current time, strictly after prev so successive
// mutations always advance updated_at.
func (s *Service) touch(prev time.Time) time.Time {
	now := s.now().Truncate(time.Microsecond)
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

func (s *Service) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			return &ValidationError{Field: field, Reason: "is required"}
		case "max":
			return &ValidationError{Field: field, Reason: "must be at most " + fe.Param() + " characters"}
		default:
			return &ValidationError{Field: field, Reason: "is invalid"}
		}
	}
	return &ValidationError{Field: "input", Reason: err.Error()}
}

func storeErr(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
