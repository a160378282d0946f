package backend

import (
	"context"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/model"
)

// Session is an authenticated session issued by the identity provider.
type Session struct {
	User         model.User `json:"user"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time  `json:"expires_at,omitempty"`
}

// SignUpParams carries the fields required to register an account.
type SignUpParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Auth is the identity/session provider.
type Auth interface {
	// SignUp registers a user and returns its first session.
	SignUp(ctx context.Context, params SignUpParams) (*Session, error)

	// SignIn authenticates with email and password.
	SignIn(ctx context.Context, email, password string) (*Session, error)

	// SignOut invalidates the session.
	SignOut(ctx context.Context, sess *Session) error

	// Restore validates a previously persisted session and returns the
	// session to continue with.
	Restore(ctx context.Context, sess *Session) (*Session, error)
}

// Rows is the row-storage service. Every operation is scoped to the owner.
type Rows interface {
	// ProfileByOwner returns the single profile owned by userID. When the
	// user has no profile the error satisfies IsNoRows.
	ProfileByOwner(ctx context.Context, userID string) (model.Profile, error)

	// CasesByOwner returns all cases owned by userID, newest first.
	CasesByOwner(ctx context.Context, userID string) ([]model.Case, error)

	// InsertCase inserts a case and returns the stored row.
	InsertCase(ctx context.Context, c model.NewCase) (model.Case, error)

	// SetProfilePro updates the Pro flag on the profile owned by userID.
	SetProfilePro(ctx context.Context, userID string, pro bool) error
}

// Client is the full hosted-backend contract.
type Client interface {
	Auth
	Rows
	Close() error
}
