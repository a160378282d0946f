package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/backend"
	"github.com/Ashfaaq98/casedesk/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithHashCost(bcrypt.MinCost)}, opts...)
	st, err := NewStore(":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func signUp(t *testing.T, st *Store, email string) *backend.Session {
	t.Helper()
	sess, err := st.SignUp(context.Background(), backend.SignUpParams{
		Email: email, Password: "secret1", FirstName: "Ada", LastName: "Lovelace",
	})
	require.NoError(t, err)
	return sess
}

func TestNewStore(t *testing.T) {
	st := newTestStore(t)

	var count int
	err := st.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table'").Scan(&count)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 5, "Expected users, sessions, profiles, cases and audit tables")
}

func TestNewStoreCreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "casedesk.db")
	st, err := NewStore(dbPath, WithHashCost(bcrypt.MinCost))
	require.NoError(t, err)
	defer st.Close()

	_, err = os.Stat(filepath.Dir(dbPath))
	assert.NoError(t, err)
}

func TestSignUpCreatesProfile(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sess := signUp(t, st, "Ada@Example.com ")
	assert.Equal(t, "ada@example.com", sess.User.Email)
	assert.NotEmpty(t, sess.AccessToken)

	p, err := st.ProfileByOwner(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.FirstName)
	assert.Equal(t, "Lovelace", p.LastName)
	assert.False(t, p.IsPro)

	_, err = st.SignUp(ctx, backend.SignUpParams{Email: "ada@example.com", Password: "another"})
	require.Error(t, err)
	assert.Equal(t, backend.CodeUserExists, backend.CodeOf(err))
}

func TestSignInSignOutRestore(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	signUp(t, st, "ada@example.com")

	_, err := st.SignIn(ctx, "ada@example.com", "wrong-pass")
	require.Error(t, err)
	assert.Equal(t, backend.CodeInvalidCredentials, backend.CodeOf(err))
	assert.Equal(t, "Invalid login credentials", backend.Message(err))

	_, err = st.SignIn(ctx, "nobody@example.com", "secret1")
	assert.Equal(t, backend.CodeInvalidCredentials, backend.CodeOf(err))

	sess, err := st.SignIn(ctx, "ADA@example.com", "secret1")
	require.NoError(t, err)

	restored, err := st.Restore(ctx, &backend.Session{AccessToken: sess.AccessToken})
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, restored.User.ID)

	require.NoError(t, st.SignOut(ctx, sess))
	_, err = st.Restore(ctx, sess)
	assert.Equal(t, backend.CodeUnauthorized, backend.CodeOf(err))
}

func TestRestoreExpiredSession(t *testing.T) {
	st := newTestStore(t, WithSessionTTL(time.Minute))
	sess := signUp(t, st, "ada@example.com")

	st.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err := st.Restore(context.Background(), sess)
	require.Error(t, err)
	assert.Equal(t, backend.CodeUnauthorized, backend.CodeOf(err))
}

func TestProfileNoRows(t *testing.T) {
	st := newTestStore(t)
	_, err := st.ProfileByOwner(context.Background(), "missing-user")
	require.Error(t, err)
	assert.True(t, backend.IsNoRows(err))
}

func TestInsertAndListCases(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ada := signUp(t, st, "ada@example.com")
	bob := signUp(t, st, "bob@example.com")

	first, err := st.InsertCase(ctx, model.NewCase{UserID: ada.User.ID, Title: "Older", Status: model.StatusActive})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())
	assert.Equal(t, "", first.Description)

	second, err := st.InsertCase(ctx, model.NewCase{UserID: ada.User.ID, Title: "Newer", Description: "desc", Status: model.StatusPending, FileCount: 3})
	require.NoError(t, err)

	_, err = st.InsertCase(ctx, model.NewCase{UserID: bob.User.ID, Title: "Bob's", Status: model.StatusActive})
	require.NoError(t, err)

	cases, err := st.CasesByOwner(ctx, ada.User.ID)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, second.ID, cases[0].ID, "newest first")
	assert.Equal(t, first.ID, cases[1].ID)
	assert.Equal(t, "desc", cases[0].Description)
	assert.Equal(t, 3, cases[0].FileCount)
	assert.Equal(t, model.StatusPending, cases[0].Status)

	none, err := st.CasesByOwner(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInsertCaseRejectsInvalidRows(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ada := signUp(t, st, "ada@example.com")

	_, err := st.InsertCase(ctx, model.NewCase{UserID: ada.User.ID, Title: "   "})
	require.Error(t, err)
	assert.Equal(t, "23514", backend.CodeOf(err))

	_, err = st.InsertCase(ctx, model.NewCase{UserID: ada.User.ID, Title: "x", Status: "archived"})
	require.Error(t, err)
	assert.False(t, backend.IsNoRows(err))
}

func TestSetProfilePro(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ada := signUp(t, st, "ada@example.com")

	require.NoError(t, st.SetProfilePro(ctx, ada.User.ID, true))
	p, err := st.ProfileByOwner(ctx, ada.User.ID)
	require.NoError(t, err)
	assert.True(t, p.IsPro)
	assert.Equal(t, "Ada", p.FirstName, "other fields preserved")

	// Matching no row is not an error.
	require.NoError(t, st.SetProfilePro(ctx, "nobody", true))
}

func TestAuditTrail(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ada := signUp(t, st, "ada@example.com")

	_, err := st.InsertCase(ctx, model.NewCase{UserID: ada.User.ID, Title: "Smith v. Jones", Status: model.StatusActive})
	require.NoError(t, err)
	require.NoError(t, st.SetProfilePro(ctx, ada.User.ID, true))

	entries, err := st.GetAuditEntries(ctx, ada.User.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, ActionProfileUpdate, entries[0].Action)
	assert.Equal(t, ActionCaseInsert, entries[1].Action)
	assert.Equal(t, "Smith v. Jones", entries[1].Details["title"])
	assert.Equal(t, ActionSignUp, entries[2].Action)

	limited, err := st.GetAuditEntries(ctx, ada.User.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, st.AddAuditEntry(ctx, AuditEntry{UserID: ada.User.ID, Action: "manual"}))
	entries, err = st.GetAuditEntries(ctx, ada.User.ID, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}
