package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Ashfaaq98/casedesk/internal/bus"
	"github.com/Ashfaaq98/casedesk/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
)

// testEnv points the CLI at a throwaway database and session file.
type testEnv struct {
	db      string
	session string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	return testEnv{
		db:      filepath.Join(dir, "data", "casedesk.db"),
		session: filepath.Join(dir, ".casedesk", "session.json"),
	}
}

// resetFlags restores every flag to its default so runs do not leak state.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func (te testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--db", te.db, "--session", te.session, "--log-level", "error"}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (te testEnv) signUp(t *testing.T, email string) {
	t.Helper()
	out, err := te.run(t, "", "signup", "--email", email, "--password", "secret1",
		"--first-name", "Ada", "--last-name", "Lovelace")
	require.NoError(t, err)
	require.Contains(t, out, "Signed in as "+email)
}

func TestAuthCommands(t *testing.T) {
	te := newTestEnv(t)

	_, err := te.run(t, "", "whoami")
	assert.ErrorIs(t, err, errNotSignedIn)

	_, err = te.run(t, "", "signup", "--email", "a@b.co", "--password", "secret1", "--confirm", "secret2",
		"--first-name", "Ada", "--last-name", "Lovelace")
	require.Error(t, err)
	assert.Equal(t, "Passwords do not match", err.Error())

	out, err := te.run(t, "", "signup", "--email", "a@b.co", "--password", "secret1",
		"--first-name", "Ada", "--last-name", "Lovelace")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Account created successfully")
	assert.FileExists(t, te.session)

	out, err = te.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Email: a@b.co")
	assert.Contains(t, out, "Name: Ada Lovelace")
	assert.Contains(t, out, "Plan: Free")

	out, err = te.run(t, "", "signout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out.")
	assert.NoFileExists(t, te.session)

	out, err = te.run(t, "", "signin", "--email", "a@b.co", "--password", "wrong-password")
	require.Error(t, err)
	assert.Equal(t, "Invalid login credentials", err.Error())
	assert.Contains(t, out, "✗ Sign in failed: Invalid login credentials")

	out, err = te.run(t, "", "signin", "--email", "A@B.co", "--password", "secret1")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Signed in successfully")
}

func TestCreateAndListCases(t *testing.T) {
	te := newTestEnv(t)
	te.signUp(t, "a@b.co")

	out, err := te.run(t, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No cases found.")

	_, err = te.run(t, "", "create", "--title", "   ")
	require.Error(t, err)
	assert.Equal(t, "Case title is required", err.Error())

	out, err = te.run(t, "", "create", "--title", "  Smith v. Jones  ")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Case created successfully")
	assert.Contains(t, out, "Title: Smith v. Jones")
	assert.Contains(t, out, "Status: active")
	assert.Contains(t, out, "Description: No description provided")

	_, err = te.run(t, "", "create", "--title", "Estate of Harper", "--description", "Probate filing")
	require.NoError(t, err)

	out, err = te.run(t, "", "list", "cases")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 2 cases (2 active, 0 pending, 0 closed)")
	harper, smith := strings.Index(out, "Estate of Harper"), strings.Index(out, "Smith v. Jones")
	require.True(t, harper >= 0 && smith >= 0)
	assert.Less(t, harper, smith, "newest case first")

	out, err = te.run(t, "", "list", "--query", "PROBATE")
	require.NoError(t, err)
	assert.Contains(t, out, "Estate of Harper")
	assert.NotContains(t, out, "Smith v. Jones")

	out, err = te.run(t, "", "list", "-q", "nothing-like-this")
	require.NoError(t, err)
	assert.Contains(t, out, "No cases match your search.")

	out, err = te.run(t, "", "list", "audit")
	require.NoError(t, err)
	assert.Contains(t, out, "[CASE_INSERT]")
	assert.Contains(t, out, "[SIGNUP]")

	_, err = te.run(t, "", "list", "events")
	assert.ErrorContains(t, err, "unknown list type")
}

func TestUpgradeCommand(t *testing.T) {
	te := newTestEnv(t)
	te.signUp(t, "a@b.co")

	out, err := te.run(t, "n\n", "upgrade", "--delay", "0s")
	require.NoError(t, err)
	assert.Contains(t, out, "CaseDesk Pro")
	assert.Contains(t, out, "Order summary")
	assert.Contains(t, out, "Upgrade cancelled.")

	out, err = te.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Plan: Free")

	out, err = te.run(t, "", "upgrade", "--yes", "--delay", "0s")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Welcome to Pro! Your account has been upgraded")

	out, err = te.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Plan: Pro")

	out, err = te.run(t, "", "upgrade", "--yes", "--delay", "0s")
	require.NoError(t, err)
	assert.Contains(t, out, "already a Pro member")
}

func TestSeedCommand(t *testing.T) {
	te := newTestEnv(t)

	out, err := te.run(t, "", "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Created 2 users and 3 cases")

	out, err = te.run(t, "", "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Created 0 users and 0 cases (2 existing users skipped)")

	_, err = te.run(t, "", "signin", "--email", "demo@casedesk.local", "--password", "demo123")
	require.NoError(t, err)
	out, err = te.run(t, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 3 cases (1 active, 1 pending, 1 closed)")

	_, err = te.run(t, "", "seed", "--fixtures", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read fixtures")
}

func TestResetCommand(t *testing.T) {
	te := newTestEnv(t)
	te.signUp(t, "a@b.co")
	require.FileExists(t, te.db)

	out, err := te.run(t, "no\n", "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Reset operation cancelled.")
	assert.FileExists(t, te.db)

	out, err = te.run(t, "", "reset", "--session-only", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "saved session")
	assert.NotContains(t, out, "SQLite database")
	assert.NoFileExists(t, te.session)
	assert.FileExists(t, te.db)

	out, err = te.run(t, "", "reset", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Database cleared successfully")
	assert.NoFileExists(t, te.db)
}

func TestBackendSelection(t *testing.T) {
	te := newTestEnv(t)

	_, err := te.run(t, "", "--backend", "carrier-pigeon", "whoami")
	assert.ErrorContains(t, err, "unknown backend mode")

	_, err = te.run(t, "", "--backend", "rest", "whoami")
	assert.ErrorContains(t, err, "endpoint required")

	_, err = te.run(t, "", "activity")
	assert.ErrorContains(t, err, "activity feed disabled")
}

func TestVersionCommand(t *testing.T) {
	te := newTestEnv(t)
	SetVersion("1.2.3", "2026-10-15")
	t.Cleanup(func() { SetVersion("", "") })

	out, err := te.run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "CaseDesk 1.2.3\nBuild Time: 2026-10-15\n", out)
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("DEBUG")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = newLogger("")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))

	_, err = newLogger("chatty")
	assert.ErrorContains(t, err, "invalid log level")

	path := filepath.Join(t.TempDir(), "serve.log")
	logger, err = newLogger("info", path)
	require.NoError(t, err)
	logger.Info("hello file")
	require.NoError(t, logger.Sync())
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "hello file")
}

func TestResolvePathRelativeToBase(t *testing.T) {
	assert.Equal(t, filepath.Join("/base", "data", "casedesk.db"), resolvePathRelativeToBase("/base", "./data/casedesk.db"))
	assert.Equal(t, "/abs/x.db", resolvePathRelativeToBase("/base", "/abs/x.db"))
	assert.Equal(t, ":memory:", resolvePathRelativeToBase("/base", ":memory:"))
}

func TestActivityPrinterStopsAfterMax(t *testing.T) {
	var out bytes.Buffer
	stopped := 0
	printer := activityPrinter(&out, 2, func() { stopped++ })

	ctx := context.Background()
	require.NoError(t, printer(ctx, bus.NewActivity(bus.KindCaseCreated, "u1", "c1", "Smith v. Jones")))
	assert.Equal(t, 0, stopped)
	require.NoError(t, printer(ctx, bus.NewActivity(bus.KindSignedOut, "u1", "", "")))
	assert.Equal(t, 1, stopped)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "case.created")
	assert.Contains(t, lines[0], "subject=c1")
	assert.Contains(t, lines[0], "Smith v. Jones")
	assert.NotContains(t, lines[1], "subject=")
}

func TestServiceCoordinatorRecordsSessionActivity(t *testing.T) {
	st, err := store.NewStore(":memory:", store.WithHashCost(bcrypt.MinCost))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	b := bus.NewNullBus(nil)
	sc := NewServiceCoordinator(ctx, b, st, zap.NewNop())

	require.NoError(t, sc.recordActivity(ctx, bus.NewActivity(bus.KindSignedIn, "u1", "", "a@b.co")))
	require.NoError(t, sc.recordActivity(ctx, bus.NewActivity(bus.KindCaseCreated, "u1", "c1", "Smith v. Jones")))
	require.NoError(t, sc.recordActivity(ctx, bus.NewActivity(bus.KindSignedOut, "u1", "", "a@b.co")))

	entries, err := st.GetAuditEntries(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2, "case activity is audited by the store itself")
	actions := []string{entries[0].Action, entries[1].Action}
	assert.ElementsMatch(t, []string{auditSignIn, auditSignOut}, actions)
	assert.Equal(t, "a@b.co", entries[0].Details["summary"])

	sc.Start()
	sc.Stop()

	// Without the embedded store activity is only logged.
	hosted := NewServiceCoordinator(ctx, b, nil, zap.NewNop())
	assert.NoError(t, hosted.recordActivity(ctx, bus.NewActivity(bus.KindSignedIn, "u2", "", "")))
}

func TestRecordActivityAcknowledgesFailedAudit(t *testing.T) {
	st, err := store.NewStore(":memory:", store.WithHashCost(bcrypt.MinCost))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	core, logs := observer.New(zapcore.ErrorLevel)
	ctx := context.Background()
	sc := NewServiceCoordinator(ctx, bus.NewNullBus(nil), st, zap.New(core))

	assert.NoError(t, sc.recordActivity(ctx, bus.NewActivity(bus.KindSignedIn, "u1", "", "a@b.co")),
		"an audit failure must not leave the message unacknowledged")
	entries := logs.FilterMessage("failed to audit activity").All()
	require.Len(t, entries, 1)
	assert.Equal(t, bus.KindSignedIn, entries[0].ContextMap()["kind"])
}
