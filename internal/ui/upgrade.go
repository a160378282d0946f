package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ashfaaq98/casedesk/internal/dashboard"
	"github.com/Ashfaaq98/casedesk/internal/model"
	"github.com/Ashfaaq98/casedesk/internal/session"
	"github.com/Ashfaaq98/casedesk/internal/upgrade"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// upgradeScreen renders an upgrade.Flow.
type upgradeScreen struct {
	ui   *UI
	flow *upgrade.Flow

	root    *tview.Flex
	content *tview.TextView
	form    *tview.Form
	paying  bool
}

func (v *upgradeScreen) busy() bool { return v.paying || v.flow.Processing() }

// openUpgrade starts a new upgrade flow. The flow needs the profile, so it
// is loaded first when the dashboard has not done so yet.
func (ui *UI) openUpgrade(ctx context.Context, snap session.Snapshot) {
	if ui.dash == nil || ui.dash.User().ID != snap.UserID() {
		ui.dash = dashboard.New(*snap.User, ui.rows,
			dashboard.WithNotifier(ui),
			dashboard.WithBus(ui.bus),
			dashboard.WithLogger(ui.logger))
		ui.dashView = ui.newDashboardScreen(ui.dash)
	}
	d := ui.dash

	if p, ok := d.Profile(); ok {
		ui.startFlow(p)
		return
	}

	ui.show(pageLoading, nil)
	ui.async(ctx, func(ctx context.Context) {
		_ = d.LoadProfile(ctx)
	}, func() {
		p, ok := d.Profile()
		if !ok {
			ui.Failure("Your profile is not available yet; upgrade is disabled")
			ui.Navigate(session.RouteDashboard)
			return
		}
		ui.startFlow(p)
	})
}

func (ui *UI) startFlow(p model.Profile) {
	d := ui.dash
	ui.flow = upgrade.New(p, ui.rows,
		upgrade.WithDelay(ui.delay),
		upgrade.WithNotifier(ui),
		upgrade.WithBus(ui.bus),
		upgrade.WithLogger(ui.logger),
		upgrade.OnUpgraded(func(model.Profile) { d.SetPro(true) }))

	v := &upgradeScreen{ui: ui, flow: ui.flow}
	v.content = tview.NewTextView()
	v.content.SetDynamicColors(true)
	v.content.SetBorder(true)
	v.content.SetTitle(" Upgrade to Pro ")
	v.form = tview.NewForm()
	v.form.SetButtonsAlign(tview.AlignCenter)
	v.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.content, 0, 1, false).
		AddItem(v.form, 3, 0, true)
	v.root.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEsc && !v.busy() {
			ui.Navigate(session.RouteDashboard)
			return nil
		}
		return event
	})
	ui.upView = v

	v.applyTheme(ui.theme)
	v.render()
	ui.show(string(session.RouteUpgrade), v.root)
	ui.app.SetFocus(v.form)
}

func (v *upgradeScreen) applyTheme(t Theme) {
	v.content.SetBackgroundColor(t.Surface)
	v.content.SetTextColor(t.TextPrimary)
	v.content.SetBorderColor(t.Border)
	themeForm(v.form, t)
	v.render()
}

func bullets(tag string, items []string) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "   [%s]✓[-] %s\n", tag, tview.Escape(it))
	}
	return b.String()
}

// render redraws the content and actions for the current step.
func (v *upgradeScreen) render() {
	ui, t := v.ui, v.ui.theme
	v.form.ClearButtons()

	switch v.flow.Step() {
	case upgrade.StepOffer:
		plan := upgrade.Offer()
		v.content.SetText(fmt.Sprintf("\n [%s::b]%s[-::-]\n\n [::b]%s[::-][%s] / %s[-]\n\n%s",
			t.TagAccent, plan.Name, plan.Price, t.TagMuted, plan.Period, bullets(t.TagSuccess, plan.Features)))
		v.form.AddButton("Upgrade now", func() {
			if v.flow.Advance() == nil {
				v.render()
			}
		})
		v.form.AddButton("Back to dashboard", func() { ui.Navigate(session.RouteDashboard) })

	case upgrade.StepPaying:
		s := upgrade.Summary()
		status := "Card payments are simulated; no charge is made."
		if v.busy() {
			status = fmt.Sprintf("[%s]Processing payment...[-]", t.TagWarning)
		}
		v.content.SetText(fmt.Sprintf("\n [::b]Order summary[::-]\n\n   %-12s %s\n   %-12s %s\n   %-12s %s\n   %-12s %s\n   %-12s [::b]%s[::-]\n\n %s",
			"Plan", s.Item, "Billing", s.Billing, "Subtotal", s.Subtotal, "Tax", s.Tax, "Total", s.Total, status))
		if v.busy() {
			return
		}
		v.form.AddButton("Complete payment", v.pay)
		v.form.AddButton("Back", func() {
			if v.flow.Back() == nil {
				v.render()
			}
		})

	case upgrade.StepSucceeded:
		v.content.SetText(fmt.Sprintf("\n [%s::b]Welcome to Pro![-::-]\n\n You now have access to:\n\n%s",
			t.TagPro, bullets(t.TagSuccess, upgrade.Unlocked())))
		v.form.AddButton("Go to dashboard", func() { ui.Navigate(session.RouteDashboard) })

	case upgrade.StepAlreadyPro:
		v.content.SetText(fmt.Sprintf("\n [%s::b]You're already a Pro member[-::-]\n\n Every Pro feature is unlocked on your account:\n\n%s",
			t.TagPro, bullets(t.TagSuccess, upgrade.Unlocked())))
		v.form.AddButton("Go to dashboard", func() { ui.Navigate(session.RouteDashboard) })
	}
}

func (v *upgradeScreen) pay() {
	if v.busy() {
		return
	}
	ui := v.ui
	v.paying = true
	v.render()
	ui.async(ui.screenCtx, func(ctx context.Context) {
		_ = v.flow.Pay(ctx)
	}, func() {
		v.paying = false
		v.render()
	})
}
