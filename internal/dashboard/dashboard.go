// Package dashboard holds the signed-in user's profile and case list and the
// flows that load, filter and extend them.
package dashboard

import (
	"context"
	"errors"
	"sync"

	"github.com/Ashfaaq98/casedesk/internal/backend"
	"github.com/Ashfaaq98/casedesk/internal/bus"
	"github.com/Ashfaaq98/casedesk/internal/flight"
	"github.com/Ashfaaq98/casedesk/internal/model"
	"github.com/Ashfaaq98/casedesk/internal/notify"
	"go.uber.org/zap"
)

// View is what the dashboard screen should show.
type View int

const (
	// ViewLoading shows the loading indicator.
	ViewLoading View = iota
	// ViewReady shows the profile header and the case table.
	ViewReady
	// ViewProfileMissing shows the case table with a notice that the
	// account has no profile yet.
	ViewProfileMissing
)

func (v View) String() string {
	switch v {
	case ViewLoading:
		return "loading"
	case ViewReady:
		return "ready"
	case ViewProfileMissing:
		return "profile-missing"
	}
	return "unknown"
}

// Stats counts cases per status.
type Stats struct {
	Total   int
	Active  int
	Pending int
	Closed  int
}

// Dashboard is the state of one user's dashboard. It is bound to that user
// for its whole life; a new session gets a new Dashboard.
type Dashboard struct {
	user     model.User
	rows     backend.Rows
	notifier notify.Notifier
	bus      bus.Bus
	logger   *zap.Logger

	profileFlight *flight.Guard
	casesFlight   *flight.Guard

	mu             sync.RWMutex
	profile        *model.Profile
	profileMissing bool
	cases          []model.Case
	visible        []model.Case
	query          string
	loading        bool
}

// Option customizes a Dashboard.
type Option func(*Dashboard)

// WithNotifier routes success and failure messages to n.
func WithNotifier(n notify.Notifier) Option {
	return func(d *Dashboard) {
		if n != nil {
			d.notifier = n
		}
	}
}

// WithBus publishes case activity to b.
func WithBus(b bus.Bus) Option {
	return func(d *Dashboard) { d.bus = b }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dashboard) {
		if l != nil {
			d.logger = l
		}
	}
}

// New returns a dashboard for user in the loading state.
func New(user model.User, rows backend.Rows, opts ...Option) *Dashboard {
	d := &Dashboard{
		user:          user,
		rows:          rows,
		notifier:      notify.Nop,
		logger:        zap.NewNop(),
		profileFlight: flight.New(),
		casesFlight:   flight.New(),
		cases:         []model.Case{},
		visible:       []model.Case{},
		loading:       true,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(zap.String("user_id", user.ID))
	return d
}

// User returns the owner of the dashboard.
func (d *Dashboard) User() model.User { return d.user }

// Load runs the profile and case loaders one after the other.
func (d *Dashboard) Load(ctx context.Context) error {
	return errors.Join(d.LoadProfile(ctx), d.LoadCases(ctx))
}

// LoadProfile fetches the user's profile. A user without a profile is not
// an error. Other failures are reported and leave the profile untouched.
// A load whose ctx is cancelled is abandoned: its result is dropped and a
// later load may start at once.
func (d *Dashboard) LoadProfile(ctx context.Context) error {
	return d.profileFlight.Do(ctx, func(ctx context.Context) error {
		p, err := d.rows.ProfileByOwner(ctx, d.user.ID)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !backend.IsNoRows(err) {
			d.logger.Error("failed to load profile", zap.Error(err))
			d.notifier.Failure("Failed to load profile: " + backend.Message(err))
			return err
		}

		d.mu.Lock()
		defer d.mu.Unlock()
		// A newer visit may have taken the guard over since the fetch.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			d.logger.Debug("no profile row for user")
			if d.profile == nil {
				d.profileMissing = true
			}
			return nil
		}
		d.profile = &p
		d.profileMissing = false
		return nil
	})
}

// LoadCases fetches every case of the user, newest first, replacing the
// local list. The loading flag is cleared whatever the outcome.
func (d *Dashboard) LoadCases(ctx context.Context) error {
	return d.casesFlight.Do(ctx, func(ctx context.Context) error {
		cases, err := d.rows.CasesByOwner(ctx, d.user.ID)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			d.logger.Error("failed to load cases", zap.Error(err))
			d.notifier.Failure("Failed to load cases: " + backend.Message(err))
			d.mu.Lock()
			d.loading = false
			d.mu.Unlock()
			return err
		}
		if cases == nil {
			cases = []model.Case{}
		}

		d.mu.Lock()
		defer d.mu.Unlock()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.cases = cases
		d.visible = Filter(d.cases, d.query)
		d.loading = false
		d.logger.Debug("cases loaded", zap.Int("count", len(cases)))
		return nil
	})
}

// Profile returns the loaded profile.
func (d *Dashboard) Profile() (model.Profile, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.profile == nil {
		return model.Profile{}, false
	}
	return *d.profile, true
}

// SetPro flips the Pro flag on the local profile, keeping every other field.
func (d *Dashboard) SetPro(pro bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.profile != nil {
		d.profile.IsPro = pro
	}
}

// Cases returns the full local case list.
func (d *Dashboard) Cases() []model.Case {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]model.Case(nil), d.cases...)
}

// Visible returns the cases matching the current query.
func (d *Dashboard) Visible() []model.Case {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]model.Case(nil), d.visible...)
}

// SetQuery changes the search query and re-derives the visible cases.
func (d *Dashboard) SetQuery(q string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.query = q
	d.visible = Filter(d.cases, q)
}

// Query returns the current search query.
func (d *Dashboard) Query() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.query
}

// Loading reports whether the first case load is still outstanding.
func (d *Dashboard) Loading() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loading
}

// View decides what the screen shows. The main view needs the profile; a
// user confirmed to have none gets ViewProfileMissing instead of an endless
// loading indicator.
func (d *Dashboard) View() View {
	d.mu.RLock()
	defer d.mu.RUnlock()
	switch {
	case d.loading:
		return ViewLoading
	case d.profile != nil:
		return ViewReady
	case d.profileMissing:
		return ViewProfileMissing
	default:
		return ViewLoading
	}
}

// Stats counts the full case list by status.
func (d *Dashboard) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := Stats{Total: len(d.cases)}
	for _, c := range d.cases {
		switch c.Status {
		case model.StatusActive:
			s.Active++
		case model.StatusPending:
			s.Pending++
		case model.StatusClosed:
			s.Closed++
		}
	}
	return s
}

// prepend adds a newly created case at the head of the list.
func (d *Dashboard) prepend(c model.Case) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cases := make([]model.Case, 0, len(d.cases)+1)
	cases = append(cases, c)
	d.cases = append(cases, d.cases...)
	d.visible = Filter(d.cases, d.query)
}
