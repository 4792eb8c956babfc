package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskweb/domain"
	"taskweb/session"
)

// Register wires up all page routes on the provided Echo instance.
func Register(e *echo.Echo, svc Service, gateway Gateway, sessions Sessions, logger *log.Logger, opts Options) error {
	renderer, err := NewRenderer()
	if err != nil {
		return err
	}
	e.Renderer = renderer
	e.Validator = newFormValidator()

	h := &handlers{svc: svc, gateway: gateway, logger: logger}
	page := []echo.MiddlewareFunc{observe(logger), sessionMiddleware(sessions, logger, !opts.Debug)}
	guarded := func(message string) []echo.MiddlewareFunc {
		return append(page[:len(page):len(page)], requireAuth(message))
	}

	e.GET("/", h.home, page...)
	e.GET("/login/", h.loginForm, page...)
	e.POST("/login/", h.login, page...)
	e.GET("/register/", h.registerForm, page...)
	e.POST("/register/", h.register, page...)
	e.GET("/logout/", h.logout, guarded("")...)

	e.GET("/dashboard/", h.dashboard, guarded("Please login to access the dashboard")...)

	e.GET("/tasks/", h.tasks, guarded("Please login to access tasks")...)
	e.POST("/tasks/", h.createTask, guarded("Please login to access tasks")...)
	e.POST("/tasks/:id/toggle/", h.toggleTask, guarded("")...)
	e.POST("/tasks/:id/delete/", h.deleteTask, guarded("")...)

	e.GET("/notes/", h.notes, guarded("Please login to access notes")...)
	e.POST("/notes/", h.createNote, guarded("Please login to access notes")...)
	e.POST("/notes/:id/delete/", h.deleteNote, guarded("")...)

	e.GET("/healthz", healthz)
	return nil
}

type handlers struct {
	svc     Service
	gateway Gateway
	logger  *log.Logger
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (h *handlers) home(c echo.Context) error {
	return render(c, http.StatusOK, "home", "Home", nil)
}

func (h *handlers) loginForm(c echo.Context) error {
	return render(c, http.StatusOK, "login", "Login", nil)
}

func (h *handlers) login(c echo.Context) error {
	sess := sessionFrom(c)
	var form loginForm
	if err := bindForm(c, &form); err != nil {
		metricsFrom(c).SetErrorStage("validation")
		sess.AddFlash(session.LevelError, "Login failed: "+err.Error())
		return render(c, http.StatusOK, "login", "Login", form)
	}

	start := time.Now()
	grant, err := h.gateway.SignIn(c.Request().Context(), form.Email, form.Password)
	metricsFrom(c).ObserveGateway(time.Since(start))
	if err != nil {
		metricsFrom(c).SetErrorStage("gateway")
		h.logger.WithError(err).WithField("route", c.Path()).Warn("sign in failed")
		sess.AddFlash(session.LevelError, "Login failed: "+authReason(err))
		return render(c, http.StatusOK, "login", "Login", form)
	}

	sess.SignIn(grant.AccessToken, grant.User)
	sess.AddFlash(session.LevelSuccess, "Successfully logged in!")
	return c.Redirect(http.StatusFound, "/dashboard/")
}

func (h *handlers) registerForm(c echo.Context) error {
	return render(c, http.StatusOK, "register", "Register", nil)
}

func (h *handlers) register(c echo.Context) error {
	sess := sessionFrom(c)
	var form registerForm
	if err := bindForm(c, &form); err != nil {
		metricsFrom(c).SetErrorStage("validation")
		sess.AddFlash(session.LevelError, "Registration failed: "+err.Error())
		return render(c, http.StatusOK, "register", "Register", form)
	}
	if form.Password != form.ConfirmPassword {
		metricsFrom(c).SetErrorStage("validation")
		sess.AddFlash(session.LevelError, "Passwords do not match!")
		return render(c, http.StatusOK, "register", "Register", form)
	}

	start := time.Now()
	err := h.gateway.SignUp(c.Request().Context(), form.Email, form.Password)
	metricsFrom(c).ObserveGateway(time.Since(start))
	if err != nil {
		metricsFrom(c).SetErrorStage("gateway")
		h.logger.WithError(err).WithField("route", c.Path()).Warn("sign up failed")
		sess.AddFlash(session.LevelError, "Registration failed: "+authReason(err))
		return render(c, http.StatusOK, "register", "Register", form)
	}

	sess.AddFlash(session.LevelSuccess, "Registration successful! Please check your email to verify your account.")
	return c.Redirect(http.StatusFound, loginPath)
}

// logout signs out at the gateway on a best effort basis; the local session
// is flushed regardless.
func (h *handlers) logout(c echo.Context) error {
	sess := sessionFrom(c)
	user := sess.Email()

	start := time.Now()
	err := h.gateway.SignOut(c.Request().Context(), sess.AccessToken)
	metricsFrom(c).ObserveGateway(time.Since(start))

	sess.Flush()
	if err != nil {
		metricsFrom(c).SetErrorStage("gateway")
		h.logger.WithError(err).WithField("user", user).Warn("sign out failed")
		sess.AddFlash(session.LevelError, "Logout error: "+authReason(err))
	} else {
		sess.AddFlash(session.LevelSuccess, "Successfully logged out!")
	}
	return c.Redirect(http.StatusFound, "/")
}

func (h *handlers) dashboard(c echo.Context) error {
	sess := sessionFrom(c)
	start := time.Now()
	d, err := h.svc.Dashboard(c.Request().Context(), sess.Principal())
	metricsFrom(c).ObserveStore(time.Since(start))
	if err != nil {
		if done, resp := h.reject(c, err); done {
			return resp
		}
		h.flashFailure(c, err, "loading dashboard")
	}
	metricsFrom(c).SetRecordsReturned(len(d.RecentTasks) + len(d.RecentNotes))
	return render(c, http.StatusOK, "dashboard", "Dashboard", d)
}

type tasksPage struct {
	Tasks      []domain.Task
	Priorities []domain.Priority
}

func (h *handlers) tasks(c echo.Context) error {
	return h.renderTasks(c)
}

func (h *handlers) renderTasks(c echo.Context) error {
	sess := sessionFrom(c)
	start := time.Now()
	tasks, err := h.svc.ListTasks(c.Request().Context(), sess.Principal())
	metricsFrom(c).ObserveStore(time.Since(start))
	if err != nil {
		if done, resp := h.reject(c, err); done {
			return resp
		}
		h.flashFailure(c, err, "loading tasks")
	}
	metricsFrom(c).SetRecordsReturned(len(tasks))
	return render(c, http.StatusOK, "tasks", "Tasks", tasksPage{Tasks: tasks, Priorities: domain.Priorities})
}

func (h *handlers) createTask(c echo.Context) error {
	sess := sessionFrom(c)
	var form taskForm
	err := bindForm(c, &form)
	var in domain.NewTask
	if err == nil {
		in, err = form.toNewTask()
	}
	if err == nil {
		start := time.Now()
		_, err = h.svc.CreateTask(c.Request().Context(), sess.Principal(), in)
		metricsFrom(c).ObserveStore(time.Since(start))
	}
	if err != nil {
		if done, resp := h.reject(c, err); done {
			return resp
		}
		h.flashFailure(c, err, "creating task")
		return h.renderTasks(c)
	}
	sess.AddFlash(session.LevelSuccess, "Task created successfully!")
	return c.Redirect(http.StatusFound, "/tasks/")
}

func (h *handlers) toggleTask(c echo.Context) error {
	sess := sessionFrom(c)
	start := time.Now()
	task, err := h.svc.ToggleTask(c.Request().Context(), sess.Principal(), c.Param("id"))
	metricsFrom(c).ObserveStore(time.Since(start))
	if err != nil {
		if done, resp := h.reject(c, err); done {
			return resp
		}
		h.flashFailure(c, err, "updating task")
		return c.Redirect(http.StatusFound, "/tasks/")
	}
	status := "reopened"
	if task.Completed {
		status = "completed"
	}
	sess.AddFlash(session.LevelSuccess, fmt.Sprintf("Task %s successfully!", status))
	return c.Redirect(http.StatusFound, "/tasks/")
}

func (h *handlers) deleteTask(c echo.Context) error {
	sess := sessionFrom(c)
	start := time.Now()
	err := h.svc.DeleteTask(c.Request().Context(), sess.Principal(), c.Param("id"))
	metricsFrom(c).ObserveStore(time.Since(start))
	if err != nil {
		if done, resp := h.reject(c, err); done {
			return resp
		}
		h.flashFailure(c, err, "deleting task")
		return c.Redirect(http.StatusFound, "/tasks/")
	}
	sess.AddFlash(session.LevelSuccess, "Task deleted successfully!")
	return c.Redirect(http.StatusFound, "/tasks/")
}

type notesPage struct {
	Notes []domain.Note
}

func (h *handlers) notes(c echo.Context) error {
	return h.renderNotes(c)
}

func (h *handlers) renderNotes(c echo.Context) error {
	sess := sessionFrom(c)
	start := time.Now()
	notes, err := h.svc.ListNotes(c.Request().Context(), sess.Principal())
	metricsFrom(c).ObserveStore(time.Since(start))
	if err != nil {
		if done, resp := h.reject(c, err); done {
			return resp
		}
		h.flashFailure(c, err, "loading notes")
	}
	metricsFrom(c).SetRecordsReturned(len(notes))
	return render(c, http.StatusOK, "notes", "Notes", notesPage{Notes: notes})
}

func (h *handlers) createNote(c echo.Context) error {
	sess := sessionFrom(c)
	var form noteForm
	err := bindForm(c, &form)
	if err == nil {
		start := time.Now()
		_, err = h.svc.CreateNote(c.Request().Context(), sess.Principal(), form.toNewNote())
		metricsFrom(c).ObserveStore(time.Since(start))
	}
	if err != nil {
		if done, resp := h.reject(c, err); done {
			return resp
		}
		h.flashFailure(c, err, "creating note")
		return h.renderNotes(c)
	}
	sess.AddFlash(session.LevelSuccess, "Note created successfully!")
	return c.Redirect(http.StatusFound, "/notes/")
}

func (h *handlers) deleteNote(c echo.Context) error {
	sess := sessionFrom(c)
	start := time.Now()
	err := h.svc.DeleteNote(c.Request().Context(), sess.Principal(), c.Param("id"))
	metricsFrom(c).ObserveStore(time.Since(start))
	if err != nil {
		if done, resp := h.reject(c, err); done {
			return resp
		}
		h.flashFailure(c, err, "deleting note")
		return c.Redirect(http.StatusFound, "/notes/")
	}
	sess.AddFlash(session.LevelSuccess, "Note deleted successfully!")
	return c.Redirect(http.StatusFound, "/notes/")
}

// reject answers errors that replace the page: a missing identity goes to the
// login page and a missing record is a 404.
func (h *handlers) reject(c echo.Context, err error) (bool, error) {
	switch domain.KindOf(err) {
	case domain.KindUnauthenticated:
		metricsFrom(c).SetErrorStage("auth")
		return true, redirectToLogin(c, sessionFrom(c), defaultLoginMsg)
	case domain.KindNotFound:
		metricsFrom(c).SetErrorStage("not_found")
		return true, render(c, http.StatusNotFound, "not_found", "Not found", nil)
	}
	return false, nil
}

// flashFailure queues the message for a failed operation. Validation messages
// are shown as is; anything else is logged and reported generically.
func (h *handlers) flashFailure(c echo.Context, err error, action string) {
	sess := sessionFrom(c)
	if domain.KindOf(err) == domain.KindValidation {
		metricsFrom(c).SetErrorStage("validation")
		sess.AddFlash(session.LevelError, fmt.Sprintf("Error %s: %s", action, err))
		return
	}
	metricsFrom(c).SetErrorStage("storage")
	h.logger.WithError(err).WithFields(log.Fields{
		"route": c.Path(),
		"user":  sess.Email(),
	}).Error(action + " failed")
	sess.AddFlash(session.LevelError, fmt.Sprintf("Error %s. Please try again.", action))
}

func authReason(err error) string {
	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		return authErr.Error()
	}
	return "unexpected error, please try again"
}
