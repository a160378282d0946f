package ui

import (
	"fmt"

	"github.com/Ashfaaq98/casedesk/internal/session"
	"github.com/rivo/tview"
)

// homeScreen is the public landing page.
func (ui *UI) homeScreen(snap session.Snapshot) tview.Primitive {
	intro := tview.NewTextView()
	intro.SetDynamicColors(true)
	intro.SetTextAlign(tview.AlignCenter)
	intro.SetText(fmt.Sprintf("\n[%s::b]CaseDesk[-::-]\n\n[%s]Legal case management for modern practices.\nTrack matters, files and status in one place.[-]",
		ui.theme.TagAccent, ui.theme.TagTextPrimary))
	intro.SetBackgroundColor(ui.theme.Surface)

	actions := tview.NewList()
	actions.SetBorder(true)
	actions.SetTitle(" Get started ")
	actions.SetBorderColor(ui.theme.Border)
	actions.SetBackgroundColor(ui.theme.Surface)
	actions.SetMainTextColor(ui.theme.TextPrimary)
	actions.SetSecondaryTextColor(ui.theme.TextMuted)
	actions.SetSelectedTextColor(ui.theme.SelectionFg)
	actions.SetSelectedBackgroundColor(ui.theme.SelectionBg)

	if snap.User != nil {
		actions.AddItem("Open dashboard", "Go to your cases", 'd', func() { ui.Navigate(session.RouteDashboard) })
		actions.AddItem("Sign out", snap.User.Email, 'o', ui.signOut)
	} else {
		actions.AddItem("Sign in", "Use an existing account", 's', func() { ui.Navigate(session.RouteSignIn) })
		actions.AddItem("Create account", "Start managing your cases", 'c', func() { ui.Navigate(session.RouteSignUp) })
	}
	actions.AddItem("Quit", "", 'x', ui.Stop)

	return tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(intro, 7, 0, false).
		AddItem(centered(actions, 50, 10), 0, 1, true)
}
