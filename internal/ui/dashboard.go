package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Ashfaaq98/casedesk/internal/dashboard"
	"github.com/Ashfaaq98/casedesk/internal/model"
	"github.com/Ashfaaq98/casedesk/internal/session"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const pageCreateCase = "create-case"

// dashboardScreen renders a dashboard.Dashboard.
type dashboardScreen struct {
	ui     *UI
	dash   *dashboard.Dashboard
	create *dashboard.CreateForm

	root     *tview.Flex
	header   *tview.TextView
	search   *tview.InputField
	table    *tview.Table
	notice   *tview.TextView
	loading  *tview.TextView
	body     *tview.Pages
	modal    *tview.Form
	modalMsg *tview.TextView
}

// openDashboard shows the dashboard for the signed-in user, creating its
// state on first visit and reloading it on every visit.
func (ui *UI) openDashboard(ctx context.Context, snap session.Snapshot) {
	if ui.dash == nil || ui.dash.User().ID != snap.UserID() {
		ui.dash = dashboard.New(*snap.User, ui.rows,
			dashboard.WithNotifier(ui),
			dashboard.WithBus(ui.bus),
			dashboard.WithLogger(ui.logger))
		ui.dashView = ui.newDashboardScreen(ui.dash)
	}
	v := ui.dashView
	ui.show(string(session.RouteDashboard), v.root)
	v.refresh()
	ui.app.SetFocus(v.table)

	ui.async(ctx, func(ctx context.Context) {
		_ = v.dash.Load(ctx)
	}, v.refresh)
}

func (ui *UI) newDashboardScreen(d *dashboard.Dashboard) *dashboardScreen {
	v := &dashboardScreen{ui: ui, dash: d, create: d.NewCreateForm()}

	v.header = tview.NewTextView()
	v.header.SetDynamicColors(true)
	v.header.SetBorder(true)
	v.header.SetTitle(" Profile ")
	v.header.SetTitleAlign(tview.AlignLeft)

	v.search = tview.NewInputField()
	v.search.SetLabel(" Search: ")
	v.search.SetPlaceholder("title or description")
	v.search.SetChangedFunc(func(text string) {
		d.SetQuery(text)
		v.renderTable()
	})
	v.search.SetDoneFunc(func(key tcell.Key) {
		ui.app.SetFocus(v.table)
	})

	v.table = tview.NewTable()
	v.table.SetBorder(true)
	v.table.SetTitle(" Cases ")
	v.table.SetTitleAlign(tview.AlignLeft)
	v.table.SetSelectable(true, false)
	// Pin header row so it stays visible when selecting/scrolling.
	v.table.SetFixed(1, 0)
	v.table.SetInputCapture(v.handleKey)

	v.notice = tview.NewTextView()
	v.notice.SetDynamicColors(true)
	v.notice.SetTextAlign(tview.AlignCenter)

	v.loading = tview.NewTextView()
	v.loading.SetTextAlign(tview.AlignCenter)
	v.loading.SetText("\n\nLoading your cases...")

	main := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.header, 4, 0, false).
		AddItem(v.notice, 1, 0, false).
		AddItem(v.search, 1, 0, false).
		AddItem(v.table, 0, 1, true)

	v.body = tview.NewPages()
	v.body.AddPage("main", main, true, false)
	v.body.AddPage("loading", v.loading, true, true)

	v.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.body, 0, 1, true)

	v.applyTheme(ui.theme)
	return v
}

func (v *dashboardScreen) handleKey(event *tcell.EventKey) *tcell.EventKey {
	ui := v.ui
	switch event.Rune() {
	case 'n':
		v.openCreate()
		return nil
	case '/':
		ui.app.SetFocus(v.search)
		return nil
	case 'r':
		ui.async(ui.screenCtx, func(ctx context.Context) { _ = v.dash.Load(ctx) }, v.refresh)
		return nil
	case 'u':
		ui.Navigate(session.RouteUpgrade)
		return nil
	case 'o':
		ui.signOut()
		return nil
	case 'h':
		ui.Navigate(session.RouteHome)
		return nil
	}
	return event
}

func (v *dashboardScreen) applyTheme(t Theme) {
	for _, tv := range []*tview.TextView{v.header, v.notice, v.loading} {
		tv.SetBackgroundColor(t.Surface)
		tv.SetTextColor(t.TextPrimary)
	}
	v.header.SetBorderColor(t.Border)
	v.search.SetBackgroundColor(t.Surface)
	v.search.SetLabelColor(t.TextMuted)
	v.search.SetFieldBackgroundColor(t.Bg)
	v.search.SetFieldTextColor(t.TextPrimary)
	v.table.SetBorderColor(t.Border)
	v.table.SetBackgroundColor(t.Surface)
	v.table.SetSelectedStyle(tcell.StyleDefault.Background(t.SelectionBg).Foreground(t.SelectionFg))
	if v.modal != nil {
		themeForm(v.modal, t)
		v.modalMsg.SetBackgroundColor(t.Surface)
	}
}

// refresh re-renders from the dashboard state.
func (v *dashboardScreen) refresh() {
	t := v.ui.theme
	view := v.dash.View()
	if view == dashboard.ViewLoading {
		v.body.SwitchToPage("loading")
		return
	}
	v.body.SwitchToPage("main")

	stats := v.dash.Stats()
	counts := fmt.Sprintf("[%s]%d cases[-]  [%s]%d active[-]  [%s]%d pending[-]  [%s]%d closed[-]",
		t.TagTextPrimary, stats.Total, t.TagSuccess, stats.Active, t.TagWarning, stats.Pending, t.TagMuted, stats.Closed)

	if p, ok := v.dash.Profile(); ok {
		badge := fmt.Sprintf("[%s]Free plan[-]  [%s](u) upgrade[-]", t.TagMuted, t.TagAccent)
		if p.IsPro {
			badge = fmt.Sprintf("[%s::b]PRO[-::-]", t.TagPro)
		}
		v.header.SetText(fmt.Sprintf(" Welcome back, [::b]%s[::-]  %s\n %s",
			tview.Escape(p.DisplayName()), badge, counts))
		v.notice.SetText("")
	} else {
		v.header.SetText(fmt.Sprintf(" [::b]%s[::-]\n %s", tview.Escape(v.dash.User().Email), counts))
		v.notice.SetText(fmt.Sprintf("[%s]No profile found for this account. Contact support to finish setting it up.[-]", t.TagWarning))
	}
	v.renderTable()
}

var caseColumns = []string{"Title", "Status", "Files", "Description", "Created"}

func (v *dashboardScreen) renderTable() {
	t := v.ui.theme
	v.table.Clear()
	for col, header := range caseColumns {
		v.table.SetCell(0, col, tview.NewTableCell(header).
			SetTextColor(t.TableHeader).
			SetBackgroundColor(t.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false))
	}

	cases := v.dash.Visible()
	if len(cases) == 0 {
		msg := "No cases yet. Press n to create your first case."
		if v.dash.Query() != "" {
			msg = "No cases match your search."
		}
		v.table.SetCell(1, 0, tview.NewTableCell(msg).
			SetTextColor(t.TableRowMuted).
			SetSelectable(false))
		return
	}
	for i, c := range cases {
		row := i + 1
		descColor := t.TableRow
		if c.Description == "" {
			descColor = t.TableRowMuted
		}
		v.table.SetCell(row, 0, tview.NewTableCell(tview.Escape(c.Title)).SetTextColor(t.TableRow).SetExpansion(2))
		v.table.SetCell(row, 1, tview.NewTableCell(string(c.Status)).SetTextColor(t.statusColor(c.Status)))
		v.table.SetCell(row, 2, tview.NewTableCell(strconv.Itoa(c.FileCount)).SetTextColor(t.TableRow).SetAlign(tview.AlignRight))
		v.table.SetCell(row, 3, tview.NewTableCell(tview.Escape(c.DisplayDescription())).SetTextColor(descColor).SetExpansion(3).SetMaxWidth(60))
		v.table.SetCell(row, 4, tview.NewTableCell(formatDate(c)).SetTextColor(t.TableRowMuted))
	}
}

func formatDate(c model.Case) string {
	if c.CreatedAt.IsZero() {
		return ""
	}
	return c.CreatedAt.Local().Format("2006-01-02")
}

// openCreate shows the case creation form over the dashboard.
func (v *dashboardScreen) openCreate() {
	ui := v.ui
	v.create.Open()

	v.modal = tview.NewForm()
	v.modal.SetBorder(true)
	v.modal.SetTitle(" New case ")
	v.modal.AddInputField("Title", v.create.Title(), 50, nil, v.create.SetTitle)
	v.modal.AddTextArea("Description", v.create.Description(), 50, 4, 0, v.create.SetDescription)
	v.modal.AddButton("Create", v.submitCreate)
	v.modal.AddButton("Cancel", v.closeCreate)
	v.modal.SetCancelFunc(v.closeCreate)

	v.modalMsg = tview.NewTextView()
	v.modalMsg.SetDynamicColors(true)

	themeForm(v.modal, ui.theme)
	v.modalMsg.SetBackgroundColor(ui.theme.Surface)

	box := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.modal, 13, 0, true).
		AddItem(v.modalMsg, 1, 0, false)
	v.body.AddPage(pageCreateCase, centered(box, 70, 14), true, true)
	ui.app.SetFocus(v.modal)
}

func (v *dashboardScreen) closeCreate() {
	v.create.Close()
	v.body.RemovePage(pageCreateCase)
	v.modal = nil
	v.ui.app.SetFocus(v.table)
}

func (v *dashboardScreen) submitCreate() {
	if v.create.Busy() {
		return
	}
	ui := v.ui
	v.modalMsg.SetText(fmt.Sprintf("[%s]Creating case...[-]", ui.theme.TagMuted))
	var err error
	ui.async(ui.screenCtx, func(ctx context.Context) {
		_, err = v.create.Submit(ctx)
	}, func() {
		switch {
		case err == nil:
			v.closeCreate()
			v.refresh()
		case errors.Is(err, dashboard.ErrTitleRequired):
			v.modalMsg.SetText(fmt.Sprintf("[%s]%s[-]", ui.theme.TagError, err.Error()))
		default:
			// The notifier already reported it; keep the input for a retry.
			v.modalMsg.SetText("")
		}
	})
}
