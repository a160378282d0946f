package ui

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/backend"
	"github.com/Ashfaaq98/casedesk/internal/bus"
	"github.com/Ashfaaq98/casedesk/internal/dashboard"
	"github.com/Ashfaaq98/casedesk/internal/forms"
	"github.com/Ashfaaq98/casedesk/internal/notify"
	"github.com/Ashfaaq98/casedesk/internal/session"
	"github.com/Ashfaaq98/casedesk/internal/upgrade"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// pageLoading is shown while the session gate is waiting on the provider.
const pageLoading = "loading"

// Deps are the collaborators the screens work with.
type Deps struct {
	Provider     *session.Provider
	Rows         backend.Rows
	Bus          bus.Bus
	Logger       *zap.Logger
	UpgradeDelay time.Duration
	Theme        string
}

// UI represents the terminal user interface
type UI struct {
	app      *tview.Application
	provider *session.Provider
	rows     backend.Rows
	bus      bus.Bus
	logger   *zap.Logger
	delay    time.Duration

	// Layout components
	layout    *tview.Flex
	appTitle  *tview.TextView
	pages     *tview.Pages
	statusBar *tview.TextView

	// Theme state
	theme        Theme
	themeName    string
	hasTrueColor bool

	// Runtime
	running atomic.Bool

	// Navigation state, owned by the UI goroutine.
	requested session.Route
	current   string
	screenCtx context.Context
	screenEnd context.CancelFunc

	// Per-session screens
	dash     *dashboard.Dashboard
	dashView *dashboardScreen
	flow     *upgrade.Flow
	upView   *upgradeScreen
	signIn   *authScreen
	signUp   *authScreen

	statusMu    sync.Mutex
	lastMessage notify.Message

	unsubscribe func()

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc
}

var _ notify.Notifier = (*UI)(nil)

// NewUI assembles the screens. Nothing is shown until Start.
func NewUI(ctx context.Context, deps Deps) *UI {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	uiCtx, cancel := context.WithCancel(ctx)
	ui := &UI{
		app:          tview.NewApplication(),
		provider:     deps.Provider,
		rows:         deps.Rows,
		bus:          deps.Bus,
		logger:       logger.Named("ui"),
		delay:        deps.UpgradeDelay,
		hasTrueColor: detectTrueColor(),
		ctx:          uiCtx,
		cancel:       cancel,
		requested:    session.RouteHome,
	}
	ui.themeName, ui.theme = themeByName(deps.Theme)

	ui.setupLayout()
	ui.setupKeybindings()
	ui.applyTheme()

	ui.unsubscribe = ui.provider.Subscribe(func(s session.Snapshot) {
		ui.update(func() { ui.onSession(s) })
	})
	return ui
}

// Start runs the TUI until the user quits or ctx is cancelled.
func (ui *UI) Start(ctx context.Context) error {
	ui.logger.Info("starting TUI application")

	// Restore the persisted session in the background; the gate shows the
	// loading page meanwhile.
	ui.Navigate(session.RouteDashboard)
	go func() {
		if err := ui.provider.Start(ui.ctx); err != nil {
			ui.logger.Error("session start failed", zap.Error(err))
		}
	}()
	go func() {
		if err := ui.provider.Watch(ui.ctx); err != nil {
			ui.logger.Warn("session watcher stopped", zap.Error(err))
		}
	}()

	// Handle context cancellation for both external and internal contexts
	go func() {
		select {
		case <-ctx.Done():
			ui.logger.Debug("external context cancelled, stopping TUI")
		case <-ui.ctx.Done():
			ui.logger.Debug("UI context cancelled, stopping TUI")
		}
		ui.cancel()
		ui.app.Stop()
	}()

	ui.running.Store(true)
	err := ui.app.Run()
	ui.running.Store(false)
	ui.logger.Info("TUI application stopped", zap.Error(err))
	return err
}

// Stop stops the TUI application
func (ui *UI) Stop() {
	ui.logger.Info("stopping TUI application")
	if ui.unsubscribe != nil {
		ui.unsubscribe()
	}
	ui.endScreen()
	ui.cancel()
	ui.app.Stop()
}

// setupLayout creates the main layout
func (ui *UI) setupLayout() {
	ui.appTitle = tview.NewTextView()
	ui.appTitle.SetDynamicColors(true)

	ui.pages = tview.NewPages()

	ui.statusBar = tview.NewTextView()
	ui.statusBar.SetDynamicColors(true)

	loading := tview.NewTextView()
	loading.SetTextAlign(tview.AlignCenter)
	loading.SetText("\n\nLoading...")
	ui.pages.AddPage(pageLoading, loading, true, false)

	ui.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.appTitle, 1, 0, false).
		AddItem(ui.pages, 0, 1, true).
		AddItem(ui.statusBar, 1, 0, false)
	ui.app.SetRoot(ui.layout, true)
}

func (ui *UI) setupKeybindings() {
	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			ui.Stop()
			return nil
		}
		if ui.isDialogActive() {
			return event
		}
		switch event.Rune() {
		case 'q':
			ui.Stop()
			return nil
		case 't':
			ui.cycleTheme()
			return nil
		}
		return event
	})
}

// isDialogActive returns true when a form field is focused so typed runes
// are not taken as shortcuts.
func (ui *UI) isDialogActive() bool {
	focused := ui.app.GetFocus()
	if focused == nil {
		return false
	}
	switch focused.(type) {
	case *tview.InputField,
		*tview.TextArea,
		*tview.DropDown:
		return true
	default:
		return false
	}
}

// update runs fn on the UI goroutine. When the application is not running
// (e.g., unit tests) it runs fn directly.
func (ui *UI) update(fn func()) {
	if ui.running.Load() {
		ui.app.QueueUpdateDraw(fn)
		return
	}
	fn()
}

// async runs work off the UI goroutine and then applies the result with
// apply on the UI goroutine. The result is dropped if ctx ended meanwhile,
// which is how navigating away abandons in-flight work.
func (ui *UI) async(ctx context.Context, work func(ctx context.Context), apply func()) {
	if !ui.running.Load() {
		work(ctx)
		if ctx.Err() == nil && apply != nil {
			apply()
		}
		return
	}
	go func() {
		work(ctx)
		if ctx.Err() != nil || apply == nil {
			return
		}
		ui.app.QueueUpdateDraw(apply)
	}()
}

// Success shows a success message in the status bar.
func (ui *UI) Success(msg string) { ui.notify(notify.LevelSuccess, msg) }

// Failure shows a failure message in the status bar.
func (ui *UI) Failure(msg string) { ui.notify(notify.LevelFailure, msg) }

func (ui *UI) notify(level notify.Level, msg string) {
	ui.statusMu.Lock()
	ui.lastMessage = notify.Message{Level: level, Text: msg}
	ui.statusMu.Unlock()

	tag := ui.theme.TagSuccess
	if level == notify.LevelFailure {
		tag = ui.theme.TagError
	}
	ui.setStatus("[%s]%s[-]", tag, tview.Escape(msg))
}

// LastMessage returns the most recent notification.
func (ui *UI) LastMessage() notify.Message {
	ui.statusMu.Lock()
	defer ui.statusMu.Unlock()
	return ui.lastMessage
}

// setStatus updates the status bar
func (ui *UI) setStatus(format string, args ...interface{}) {
	statusText := ui.statusText(fmt.Sprintf(format, args...))
	ui.update(func() { ui.statusBar.SetText(statusText) })
}

// setStatusDirect updates the status bar immediately. Use this only from the
// UI goroutine.
func (ui *UI) setStatusDirect(format string, args ...interface{}) {
	ui.statusBar.SetText(ui.statusText(fmt.Sprintf(format, args...)))
}

func (ui *UI) statusText(message string) string {
	timestamp := time.Now().Format("15:04:05")
	return fmt.Sprintf("[%s]%s[-] [%s]|[-] %s [%s]|[-] %s",
		ui.theme.TagMuted, timestamp,
		ui.theme.TagTextPrimary,
		message,
		ui.theme.TagMuted,
		ui.shortcutHints())
}

func (ui *UI) shortcutHints() string {
	switch ui.current {
	case string(session.RouteDashboard):
		return "n:new case  /:search  r:reload  u:upgrade  o:sign out  t:theme  q:quit"
	case string(session.RouteUpgrade):
		return "Esc:dashboard  t:theme  q:quit"
	case string(session.RouteSignIn), string(session.RouteSignUp):
		return "Tab:next field  Esc:home"
	default:
		return "t:theme  q:quit"
	}
}

func (ui *UI) updateTitle() {
	user := ""
	if s := ui.provider.Snapshot(); s.User != nil {
		user = fmt.Sprintf("  [%s]%s[-]", ui.theme.TagMuted, tview.Escape(s.User.Email))
	}
	ui.appTitle.SetText(fmt.Sprintf(" [%s]CaseDesk[-]%s", ui.theme.TagAccent, user))
}

// onSession re-runs the gate whenever the session changes.
func (ui *UI) onSession(s session.Snapshot) {
	if ui.dash != nil && ui.dash.User().ID != s.UserID() {
		ui.logger.Debug("session changed, dropping dashboard state")
		ui.endScreen()
		ui.dash, ui.dashView, ui.flow, ui.upView = nil, nil, nil, nil
	}
	ui.updateTitle()
	ui.Navigate(ui.requested)
}

// Navigate shows route, subject to the session gate.
func (ui *UI) Navigate(route session.Route) {
	ui.requested = route
	snap := ui.provider.Snapshot()
	d := session.Gate(snap, route)
	switch d.Action {
	case session.ActionLoading:
		ui.show(pageLoading, nil)
	case session.ActionRedirect:
		ui.logger.Debug("gate redirect", zap.String("from", string(route)), zap.String("to", string(d.Route)))
		ui.Navigate(d.Route)
	case session.ActionRender:
		ui.render(route, snap)
	}
}

// CurrentPage returns the name of the page in front.
func (ui *UI) CurrentPage() string { return ui.current }

func (ui *UI) endScreen() {
	if ui.screenEnd != nil {
		ui.screenEnd()
		ui.screenEnd = nil
	}
}

// show brings page to the front. A non-nil primitive replaces the page.
func (ui *UI) show(name string, p tview.Primitive) {
	if p != nil {
		ui.pages.AddAndSwitchToPage(name, p, true)
	} else {
		ui.pages.SwitchToPage(name)
	}
	ui.current = name
	ui.updateTitle()
	ui.setStatusDirect("[%s]%s[-]", ui.theme.TagMuted, cases.Title(language.English).String(name))
}

func (ui *UI) render(route session.Route, snap session.Snapshot) {
	if ui.current != string(route) || ui.screenCtx == nil || ui.screenCtx.Err() != nil {
		ui.endScreen()
		ui.screenCtx, ui.screenEnd = context.WithCancel(ui.ctx)
	}
	ctx := ui.screenCtx

	switch route {
	case session.RouteHome:
		ui.show(string(route), ui.homeScreen(snap))
		ui.app.SetFocus(ui.pages)
	case session.RouteSignIn:
		if ui.signIn == nil {
			ui.signIn = ui.newSignInScreen()
		}
		ui.show(string(route), ui.signIn.root)
		ui.app.SetFocus(ui.signIn.form)
	case session.RouteSignUp:
		if ui.signUp == nil {
			ui.signUp = ui.newSignUpScreen()
		}
		ui.show(string(route), ui.signUp.root)
		ui.app.SetFocus(ui.signUp.form)
	case session.RouteDashboard:
		ui.openDashboard(ctx, snap)
	case session.RouteUpgrade:
		ui.openUpgrade(ctx, snap)
	}
}

// submitter is shared by the sign-in and sign-up screens.
func (ui *UI) submitter() forms.Submitter {
	return forms.Submitter{Provider: ui.provider, Notifier: ui, Logger: ui.logger}
}

// signOut ends the session; the gate then moves to sign-in.
func (ui *UI) signOut() {
	ui.async(ui.ctx, func(ctx context.Context) {
		if err := ui.provider.SignOut(ctx); err != nil {
			ui.Failure("Sign out failed: " + backend.Message(err))
			return
		}
		ui.Success("Signed out")
	}, nil)
}

func (ui *UI) applyTheme() {
	bg := ui.theme.Surface
	if !ui.hasTrueColor {
		bg = tcell.ColorDefault
	}
	ui.appTitle.SetBackgroundColor(bg)
	ui.appTitle.SetTextColor(ui.theme.TextPrimary)
	ui.pages.SetBackgroundColor(bg)
	ui.statusBar.SetBackgroundColor(bg)
	ui.statusBar.SetTextColor(ui.theme.TextPrimary)

	if ui.signIn != nil {
		ui.signIn.applyTheme(ui.theme)
	}
	if ui.signUp != nil {
		ui.signUp.applyTheme(ui.theme)
	}
	if ui.dashView != nil {
		ui.dashView.applyTheme(ui.theme)
		ui.dashView.refresh()
	}
	if ui.upView != nil {
		ui.upView.applyTheme(ui.theme)
	}
	ui.updateTitle()
}

// cycleTheme toggles between dark and light.
func (ui *UI) cycleTheme() {
	if ui.themeName == "dark" {
		ui.setTheme("light")
	} else {
		ui.setTheme("dark")
	}
}

func (ui *UI) setTheme(name string) {
	ui.themeName, ui.theme = themeByName(name)
	ui.applyTheme()
	ui.logger.Debug("theme applied", zap.String("theme", ui.themeName))
	ui.setStatusDirect("[%s]Theme: %s[-]", ui.theme.TagAccent, ui.themeName)
}

// themeForm applies the palette to a form, as every screen's forms share it.
func themeForm(form *tview.Form, t Theme) {
	form.SetBackgroundColor(t.Surface)
	form.SetFieldBackgroundColor(t.Bg)
	form.SetFieldTextColor(t.TextPrimary)
	form.SetLabelColor(t.TextPrimary)
	form.SetButtonBackgroundColor(t.SelectionBg)
	form.SetButtonTextColor(t.SelectionFg)
	form.SetBorderColor(t.FocusBorder)
	form.SetTitleColor(t.Accent)
}

// centered places p in the middle of the screen.
func centered(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}
