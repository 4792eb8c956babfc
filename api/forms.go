package api

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"taskweb/domain"
)

// formValidator adapts validator/v10 to echo.Validator.
type formValidator struct {
	validate *validator.Validate
}

func newFormValidator() *formValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	return &formValidator{validate: v}
}

// Validate reports the first failing field as a *domain.ValidationError.
func (fv *formValidator) Validate(i any) error {
	err := fv.validate.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &domain.ValidationError{Field: "form", Reason: err.Error()}
	}
	fe := fieldErrs[0]
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return &domain.ValidationError{Field: field, Reason: "is required"}
	case "max":
		return &domain.ValidationError{Field: field, Reason: "must be at most " + fe.Param() + " characters"}
	default:
		return &domain.ValidationError{Field: field, Reason: "is invalid"}
	}
}

// The email is passed to the identity gateway as entered; it decides what a
// valid address is.
type loginForm struct {
	Email    string `form:"email" validate:"required"`
	Password string `form:"password" validate:"required"`
}

type registerForm struct {
	Email           string `form:"email" validate:"required"`
	Password        string `form:"password" validate:"required"`
	ConfirmPassword string `form:"confirm_password"`
}

type taskForm struct {
	Title       string `form:"title"`
	Description string `form:"description"`
	Priority    string `form:"priority"`
	DueDate     string `form:"due_date"`
}

// toNewTask converts the form. An unparsable due date is a validation error;
// an unknown priority is left to the service, which defaults it.
func (f taskForm) toNewTask() (domain.NewTask, error) {
	in := domain.NewTask{
		Title:       f.Title,
		Description: f.Description,
		Priority:    domain.Priority(f.Priority),
	}
	if s := strings.TrimSpace(f.DueDate); s != "" {
		due, err := time.Parse(domain.DateLayout, s)
		if err != nil {
			return domain.NewTask{}, &domain.ValidationError{Field: "due date", Reason: "must be a date in YYYY-MM-DD format"}
		}
		in.DueDate = &due
	}
	return in, nil
}

type noteForm struct {
	Title    string `form:"title"`
	Content  string `form:"content"`
	Category string `form:"category"`
}

func (f noteForm) toNewNote() domain.NewNote {
	return domain.NewNote{Title: f.Title, Content: f.Content, Category: f.Category}
}

// bindForm binds and, when the form declares rules, validates the request body.
func bindForm(c echo.Context, form any) error {
	if err := c.Bind(form); err != nil {
		return &domain.ValidationError{Field: "form", Reason: "could not be read"}
	}
	return c.Validate(form)
}
