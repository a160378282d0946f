package ui

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/Ashfaaq98/casedesk/internal/backend"
	"github.com/Ashfaaq98/casedesk/internal/dashboard"
	"github.com/Ashfaaq98/casedesk/internal/model"
	"github.com/Ashfaaq98/casedesk/internal/notify"
	"github.com/Ashfaaq98/casedesk/internal/session"
	"github.com/Ashfaaq98/casedesk/internal/store"
	"github.com/Ashfaaq98/casedesk/internal/upgrade"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestUI(t *testing.T) (*UI, *store.Store, *session.Provider) {
	t.Helper()
	st, err := store.NewStore(":memory:", store.WithHashCost(bcrypt.MinCost))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	prov := session.NewProvider(st)
	ui := NewUI(context.Background(), Deps{Provider: prov, Rows: st})
	t.Cleanup(ui.Stop)
	return ui, st, prov
}

// press activates a form button the way the Enter key does.
func press(t *testing.T, form *tview.Form, label string) {
	t.Helper()
	idx := form.GetButtonIndex(label)
	require.GreaterOrEqual(t, idx, 0, "button %q not found", label)
	form.GetButton(idx).InputHandler()(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), func(tview.Primitive) {})
}

func fill(t *testing.T, form *tview.Form, label, value string) {
	t.Helper()
	switch item := form.GetFormItemByLabel(label).(type) {
	case *tview.InputField:
		item.SetText(value)
	case *tview.TextArea:
		item.SetText(value, true)
	default:
		t.Fatalf("no field %q", label)
	}
}

func signUpThroughForm(t *testing.T, ui *UI, email string) {
	t.Helper()
	ui.Navigate(session.RouteSignUp)
	require.Equal(t, "signup", ui.CurrentPage())
	f := ui.signUp.form
	fill(t, f, "First name", "Ada")
	fill(t, f, "Last name", "Lovelace")
	fill(t, f, "Email", email)
	fill(t, f, "Password", "secret1")
	fill(t, f, "Confirm password", "secret1")
	press(t, f, "Create account")
}

func TestGateWhileLoadingAndSignedOut(t *testing.T) {
	ui, _, prov := newTestUI(t)

	ui.Navigate(session.RouteDashboard)
	assert.Equal(t, pageLoading, ui.CurrentPage(), "loading until the provider starts")

	require.NoError(t, prov.Start(context.Background()))
	assert.Equal(t, "signin", ui.CurrentPage(), "protected route redirects to sign in")

	ui.Navigate(session.RouteHome)
	assert.Equal(t, "home", ui.CurrentPage())
	assert.Contains(t, ui.statusBar.GetText(true), "Home", "page name is shown title-cased")
}

func TestSignUpFormValidationBanner(t *testing.T) {
	ui, _, prov := newTestUI(t)
	require.NoError(t, prov.Start(context.Background()))

	ui.Navigate(session.RouteSignUp)
	f := ui.signUp.form
	fill(t, f, "First name", "Ada")
	fill(t, f, "Last name", "Lovelace")
	fill(t, f, "Email", "a@b.co")
	fill(t, f, "Password", "secret1")
	fill(t, f, "Confirm password", "secret2")
	press(t, f, "Create account")

	assert.Equal(t, "signup", ui.CurrentPage())
	assert.Contains(t, ui.signUp.banner.GetText(true), "Passwords do not match")
	assert.Nil(t, prov.Snapshot().User)
	assert.Equal(t, notify.Message{}, ui.LastMessage(), "validation failures are not notified")
}

func TestSignUpLandsOnDashboard(t *testing.T) {
	ui, _, prov := newTestUI(t)
	require.NoError(t, prov.Start(context.Background()))

	signUpThroughForm(t, ui, "a@b.co")

	assert.Equal(t, "dashboard", ui.CurrentPage())
	require.NotNil(t, ui.dash)
	assert.Equal(t, dashboard.ViewReady, ui.dash.View())
	assert.Equal(t, notify.LevelSuccess, ui.LastMessage().Level)
	assert.Contains(t, ui.dashView.header.GetText(true), "Ada Lovelace")

	// Auth-only screens redirect a signed-in user.
	ui.Navigate(session.RouteSignIn)
	assert.Equal(t, "dashboard", ui.CurrentPage())
}

func TestSignInFailureShowsProviderMessage(t *testing.T) {
	ui, _, prov := newTestUI(t)
	require.NoError(t, prov.Start(context.Background()))

	ui.Navigate(session.RouteSignIn)
	f := ui.signIn.form
	fill(t, f, "Email", "nobody@b.co")
	fill(t, f, "Password", "secret1")
	press(t, f, "Sign in")

	assert.Equal(t, "signin", ui.CurrentPage())
	assert.Contains(t, ui.signIn.banner.GetText(true), "Invalid login credentials")
	assert.Equal(t, notify.LevelFailure, ui.LastMessage().Level)
}

func TestCreateCaseFromDashboard(t *testing.T) {
	ui, _, prov := newTestUI(t)
	require.NoError(t, prov.Start(context.Background()))
	signUpThroughForm(t, ui, "a@b.co")

	v := ui.dashView
	assert.Contains(t, v.table.GetCell(1, 0).Text, "No cases yet")

	v.openCreate()
	require.True(t, v.body.HasPage(pageCreateCase))
	fill(t, v.modal, "Title", "   ")
	press(t, v.modal, "Create")
	assert.True(t, v.body.HasPage(pageCreateCase), "blank title keeps the form open")
	assert.Contains(t, v.modalMsg.GetText(true), "Case title is required")

	fill(t, v.modal, "Title", "Smith v. Jones")
	press(t, v.modal, "Create")
	assert.False(t, v.body.HasPage(pageCreateCase))

	assert.Equal(t, "Smith v. Jones", v.table.GetCell(1, 0).Text)
	assert.Equal(t, "active", v.table.GetCell(1, 1).Text)
	assert.Equal(t, "0", v.table.GetCell(1, 2).Text)
	assert.Equal(t, "No description provided", v.table.GetCell(1, 3).Text)
	assert.Equal(t, "Case created successfully", ui.LastMessage().Text)

	v.search.SetText("jones")
	assert.Equal(t, "Smith v. Jones", v.table.GetCell(1, 0).Text)
	v.search.SetText("harper")
	assert.Contains(t, v.table.GetCell(1, 0).Text, "No cases match")
}

func TestDashboardWithoutProfile(t *testing.T) {
	ui, st, prov := newTestUI(t)
	ctx := context.Background()
	_, err := st.Seed(ctx, store.Fixtures{Users: []store.FixtureUser{
		{Email: "orphan@b.co", Password: "secret1", NoProfile: true},
	}})
	require.NoError(t, err)
	require.NoError(t, prov.Start(ctx))

	_, err = prov.SignIn(ctx, "orphan@b.co", "secret1")
	require.NoError(t, err)
	ui.Navigate(session.RouteDashboard)

	assert.Equal(t, "dashboard", ui.CurrentPage())
	assert.Equal(t, dashboard.ViewProfileMissing, ui.dash.View())
	assert.Contains(t, ui.dashView.notice.GetText(true), "No profile found")

	ui.Navigate(session.RouteUpgrade)
	assert.Equal(t, "dashboard", ui.CurrentPage(), "upgrade needs a profile")
	assert.Equal(t, notify.LevelFailure, ui.LastMessage().Level)
}

func TestUpgradeFlow(t *testing.T) {
	ui, st, prov := newTestUI(t)
	ctx := context.Background()
	require.NoError(t, prov.Start(ctx))
	signUpThroughForm(t, ui, "a@b.co")

	ui.Navigate(session.RouteUpgrade)
	require.Equal(t, "upgrade", ui.CurrentPage())
	v := ui.upView
	assert.Equal(t, upgrade.StepOffer, ui.flow.Step())

	press(t, v.form, "Upgrade now")
	assert.Equal(t, upgrade.StepPaying, ui.flow.Step())
	assert.Contains(t, v.content.GetText(true), "Order summary")

	press(t, v.form, "Back")
	assert.Equal(t, upgrade.StepOffer, ui.flow.Step())

	press(t, v.form, "Upgrade now")
	press(t, v.form, "Complete payment")
	assert.Equal(t, upgrade.StepSucceeded, ui.flow.Step())
	assert.Contains(t, v.content.GetText(true), "Welcome to Pro")

	p, ok := ui.dash.Profile()
	require.True(t, ok)
	assert.True(t, p.IsPro, "dashboard profile patched")

	stored, err := st.ProfileByOwner(ctx, prov.Snapshot().UserID())
	require.NoError(t, err)
	assert.True(t, stored.IsPro)

	press(t, v.form, "Go to dashboard")
	assert.Equal(t, "dashboard", ui.CurrentPage())
	assert.Contains(t, ui.dashView.header.GetText(true), "PRO")

	ui.Navigate(session.RouteUpgrade)
	assert.Equal(t, upgrade.StepAlreadyPro, ui.flow.Step())
	assert.Contains(t, ui.upView.content.GetText(true), "already a Pro member")
}

// stalledProfiles holds the first profile fetch after arm until release is
// closed.
type stalledProfiles struct {
	*store.Store
	armed   chan struct{}
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *stalledProfiles) ProfileByOwner(ctx context.Context, userID string) (model.Profile, error) {
	select {
	case <-s.armed:
		first := false
		s.once.Do(func() { first = true })
		if first {
			close(s.entered)
			<-s.release
		}
	default:
	}
	return s.Store.ProfileByOwner(ctx, userID)
}

func TestUpgradeKeyDuringDashboardLoad(t *testing.T) {
	st, err := store.NewStore(":memory:", store.WithHashCost(bcrypt.MinCost))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	ctx := context.Background()
	_, err = st.Seed(ctx, store.Fixtures{Users: []store.FixtureUser{
		{Email: "ada@b.co", Password: "secret1", FirstName: "Ada"},
	}})
	require.NoError(t, err)

	rows := &stalledProfiles{
		Store:   st,
		armed:   make(chan struct{}),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	prov := session.NewProvider(st)
	ui := NewUI(ctx, Deps{Provider: prov, Rows: rows})
	t.Cleanup(ui.Stop)
	require.NoError(t, prov.Start(ctx))
	_, err = prov.SignIn(ctx, "ada@b.co", "secret1")
	require.NoError(t, err)

	close(rows.armed)
	loaded := make(chan struct{})
	go func() {
		defer close(loaded)
		ui.Navigate(session.RouteDashboard)
	}()
	<-rows.entered

	ui.dashView.handleKey(tcell.NewEventKey(tcell.KeyRune, 'u', tcell.ModNone))
	assert.Equal(t, "upgrade", ui.CurrentPage(), "the profile still loads for the upgrade screen")
	require.NotNil(t, ui.flow)
	assert.Equal(t, upgrade.StepOffer, ui.flow.Step())
	assert.NotEqual(t, notify.LevelFailure, ui.LastMessage().Level)

	close(rows.release)
	<-loaded
	assert.Equal(t, "upgrade", ui.CurrentPage(), "the abandoned dashboard load does not pull the screen back")
}

func TestSignOutReturnsToSignIn(t *testing.T) {
	ui, _, prov := newTestUI(t)
	require.NoError(t, prov.Start(context.Background()))
	signUpThroughForm(t, ui, "a@b.co")
	require.NotNil(t, ui.dash)

	ui.signOut()
	assert.Nil(t, prov.Snapshot().User)
	assert.Nil(t, ui.dash, "dashboard state is dropped with the session")
	assert.Equal(t, "signin", ui.CurrentPage())
}

func TestNotifierAndTheme(t *testing.T) {
	ui, _, _ := newTestUI(t)

	ui.Failure("Failed to load cases: [boom]")
	assert.Equal(t, notify.Message{Level: notify.LevelFailure, Text: "Failed to load cases: [boom]"}, ui.LastMessage())
	assert.True(t, strings.Contains(ui.statusBar.GetText(true), "Failed to load cases"))

	assert.Equal(t, "dark", ui.themeName)
	ui.cycleTheme()
	assert.Equal(t, "light", ui.themeName)
	ui.cycleTheme()
	assert.Equal(t, "dark", ui.themeName)
}

func TestStatusColorByCaseStatus(t *testing.T) {
	th := themeDark()
	assert.Equal(t, th.StatusActive, th.statusColor("active"))
	assert.Equal(t, th.StatusPending, th.statusColor("pending"))
	assert.Equal(t, th.TableRow, th.statusColor("archived"))

	_, light := themeByName("LIGHT")
	assert.Equal(t, themeLight(), light)

	var _ backend.Rows = (*store.Store)(nil)
}
