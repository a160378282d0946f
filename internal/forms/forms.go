// Package forms validates the sign-up and sign-in forms and submits them to
// the session provider.
package forms

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/Ashfaaq98/casedesk/internal/backend"
	"github.com/Ashfaaq98/casedesk/internal/model"
	"github.com/Ashfaaq98/casedesk/internal/notify"
	"github.com/Ashfaaq98/casedesk/internal/session"
	"go.uber.org/zap"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// Validation failures. Their messages are shown verbatim in the form banner.
var (
	ErrMissingFields    = errors.New("Please fill in all required fields")
	ErrPasswordTooShort = errors.New("Password must be at least 6 characters")
	ErrPasswordMismatch = errors.New("Passwords do not match")
	ErrInvalidEmail     = errors.New("Please enter a valid email address")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidationError reports whether err is one of the validation failures.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingFields) ||
		errors.Is(err, ErrPasswordTooShort) ||
		errors.Is(err, ErrPasswordMismatch) ||
		errors.Is(err, ErrInvalidEmail)
}

// SignUpInput is the registration form.
type SignUpInput struct {
	Email     string
	Password  string
	Confirm   string
	FirstName string
	LastName  string
}

// Validate checks the form, stopping at the first failing rule.
func (in SignUpInput) Validate() error {
	if blank(in.Email) || in.Password == "" || in.Confirm == "" || blank(in.FirstName) || blank(in.LastName) {
		return ErrMissingFields
	}
	if len([]rune(in.Password)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if in.Password != in.Confirm {
		return ErrPasswordMismatch
	}
	if !emailPattern.MatchString(strings.TrimSpace(in.Email)) {
		return ErrInvalidEmail
	}
	return nil
}

// SignInInput is the login form.
type SignInInput struct {
	Email    string
	Password string
}

// Validate checks the form, stopping at the first failing rule.
func (in SignInInput) Validate() error {
	if blank(in.Email) || in.Password == "" {
		return ErrMissingFields
	}
	if len([]rune(in.Password)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if !emailPattern.MatchString(strings.TrimSpace(in.Email)) {
		return ErrInvalidEmail
	}
	return nil
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// Provider is the part of the session provider the forms submit to.
type Provider interface {
	SignUp(ctx context.Context, params backend.SignUpParams) (*model.User, error)
	SignIn(ctx context.Context, email, password string) (*model.User, error)
}

// Result is the outcome of a submitted form. Banner holds the inline error
// text when the submission failed; Route is where to navigate on success.
type Result struct {
	User   *model.User
	Route  session.Route
	Banner string
}

// Submitter sends validated forms to the provider.
type Submitter struct {
	Provider Provider
	Notifier notify.Notifier
	Logger   *zap.Logger
}

func (s Submitter) notifier() notify.Notifier {
	if s.Notifier == nil {
		return notify.Nop
	}
	return s.Notifier
}

func (s Submitter) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// SignUp validates in and registers the account. Validation failures never
// reach the provider and are neither logged nor notified.
func (s Submitter) SignUp(ctx context.Context, in SignUpInput) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{Banner: err.Error()}, err
	}
	user, err := s.Provider.SignUp(ctx, backend.SignUpParams{
		Email:     strings.TrimSpace(in.Email),
		Password:  in.Password,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
	})
	if err != nil {
		return s.failed("Registration failed", err)
	}
	s.notifier().Success("Account created successfully")
	return Result{User: user, Route: session.RouteDashboard}, nil
}

// SignIn validates in and authenticates.
func (s Submitter) SignIn(ctx context.Context, in SignInInput) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{Banner: err.Error()}, err
	}
	user, err := s.Provider.SignIn(ctx, strings.TrimSpace(in.Email), in.Password)
	if err != nil {
		return s.failed("Sign in failed", err)
	}
	s.notifier().Success("Signed in successfully")
	return Result{User: user, Route: session.RouteDashboard}, nil
}

func (s Submitter) failed(title string, err error) (Result, error) {
	msg := backend.Message(err)
	s.logger().Warn(strings.ToLower(title), zap.String("code", backend.CodeOf(err)), zap.Error(err))
	s.notifier().Failure(title + ": " + msg)
	return Result{Banner: msg}, err
}
