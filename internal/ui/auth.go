package ui

import (
	"context"
	"fmt"

	"github.com/Ashfaaq98/casedesk/internal/forms"
	"github.com/Ashfaaq98/casedesk/internal/session"
	"github.com/rivo/tview"
)

// authScreen is the sign-in or sign-up form with its inline error banner.
type authScreen struct {
	root   tview.Primitive
	form   *tview.Form
	banner *tview.TextView
	theme  Theme
	busy   bool

	signUp forms.SignUpInput
	signIn forms.SignInInput
}

func (s *authScreen) setBanner(msg string) {
	if msg == "" {
		s.banner.SetText("")
		return
	}
	s.banner.SetText(fmt.Sprintf("[%s]%s[-]", s.theme.TagError, tview.Escape(msg)))
}

func (s *authScreen) applyTheme(t Theme) {
	s.theme = t
	themeForm(s.form, t)
	s.banner.SetBackgroundColor(t.Surface)
}

func (ui *UI) newAuthScreen(title string, height int) *authScreen {
	s := &authScreen{theme: ui.theme}
	s.form = tview.NewForm()
	s.form.SetBorder(true)
	s.form.SetTitle(title)
	s.form.SetCancelFunc(func() { ui.Navigate(session.RouteHome) })

	s.banner = tview.NewTextView()
	s.banner.SetDynamicColors(true)
	s.banner.SetTextAlign(tview.AlignCenter)

	s.root = centered(tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.form, height, 0, true).
		AddItem(s.banner, 1, 0, false), 60, height+1)
	return s
}

func (ui *UI) newSignInScreen() *authScreen {
	s := ui.newAuthScreen(" Sign in ", 11)
	s.form.AddInputField("Email", "", 40, nil, func(text string) { s.signIn.Email = text })
	s.form.AddPasswordField("Password", "", 40, '*', func(text string) { s.signIn.Password = text })
	s.form.AddButton("Sign in", func() { ui.submitSignIn(s) })
	s.form.AddButton("Create account", func() { ui.Navigate(session.RouteSignUp) })
	s.applyTheme(ui.theme)
	return s
}

func (ui *UI) newSignUpScreen() *authScreen {
	s := ui.newAuthScreen(" Create account ", 17)
	s.form.AddInputField("First name", "", 30, nil, func(text string) { s.signUp.FirstName = text })
	s.form.AddInputField("Last name", "", 30, nil, func(text string) { s.signUp.LastName = text })
	s.form.AddInputField("Email", "", 40, nil, func(text string) { s.signUp.Email = text })
	s.form.AddPasswordField("Password", "", 40, '*', func(text string) { s.signUp.Password = text })
	s.form.AddPasswordField("Confirm password", "", 40, '*', func(text string) { s.signUp.Confirm = text })
	s.form.AddButton("Create account", func() { ui.submitSignUp(s) })
	s.form.AddButton("Sign in instead", func() { ui.Navigate(session.RouteSignIn) })
	s.applyTheme(ui.theme)
	return s
}

func (ui *UI) submitSignIn(s *authScreen) {
	if s.busy {
		return
	}
	in := s.signIn
	s.busy = true
	s.setBanner("")
	var res forms.Result
	ui.async(ui.ctx, func(ctx context.Context) {
		res, _ = ui.submitter().SignIn(ctx, in)
	}, func() {
		s.busy = false
		ui.finishAuth(s, res)
	})
}

func (ui *UI) submitSignUp(s *authScreen) {
	if s.busy {
		return
	}
	in := s.signUp
	s.busy = true
	s.setBanner("")
	var res forms.Result
	ui.async(ui.ctx, func(ctx context.Context) {
		res, _ = ui.submitter().SignUp(ctx, in)
	}, func() {
		s.busy = false
		ui.finishAuth(s, res)
	})
}

func (ui *UI) finishAuth(s *authScreen, res forms.Result) {
	if res.Banner != "" {
		s.setBanner(res.Banner)
		return
	}
	// Passwords are not kept on the screen once the session exists.
	if item, ok := s.form.GetFormItemByLabel("Password").(*tview.InputField); ok {
		item.SetText("")
	}
	if item, ok := s.form.GetFormItemByLabel("Confirm password").(*tview.InputField); ok {
		item.SetText("")
	}
	ui.Navigate(res.Route)
}
