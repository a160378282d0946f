// Package upgrade implements the Pro upgrade flow: an offer, a simulated
// payment and a terminal success step.
package upgrade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/backend"
	"github.com/Ashfaaq98/casedesk/internal/bus"
	"github.com/Ashfaaq98/casedesk/internal/flight"
	"github.com/Ashfaaq98/casedesk/internal/model"
	"github.com/Ashfaaq98/casedesk/internal/notify"
	"go.uber.org/zap"
)

// DefaultDelay stands in for the payment gateway round trip.
const DefaultDelay = 2 * time.Second

// Step is a state of the flow.
type Step int

const (
	StepOffer Step = iota
	StepPaying
	StepSucceeded
	// StepAlreadyPro is the terminal view for a profile that is already Pro.
	StepAlreadyPro
)

func (s Step) String() string {
	switch s {
	case StepOffer:
		return "offer"
	case StepPaying:
		return "paying"
	case StepSucceeded:
		return "succeeded"
	case StepAlreadyPro:
		return "already-pro"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// Terminal reports whether no transition leaves s.
func (s Step) Terminal() bool {
	return s == StepSucceeded || s == StepAlreadyPro
}

// ErrInvalidTransition is returned for an action not allowed in the current step.
var ErrInvalidTransition = errors.New("action not available in this step")

// Flow is one visit to the upgrade screen.
type Flow struct {
	rows       backend.Rows
	delay      time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	notifier   notify.Notifier
	bus        bus.Bus
	logger     *zap.Logger
	onUpgraded func(model.Profile)

	guard *flight.Guard

	mu      sync.Mutex
	step    Step
	profile model.Profile
}

// Option customizes a Flow.
type Option func(*Flow)

// WithDelay sets the simulated payment delay. Zero pays at once; a negative
// delay keeps DefaultDelay.
func WithDelay(d time.Duration) Option {
	return func(f *Flow) {
		if d >= 0 {
			f.delay = d
		}
	}
}

// WithSleep replaces how the payment delay is waited out.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Flow) {
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

// WithNotifier routes success and failure messages to n.
func WithNotifier(n notify.Notifier) Option {
	return func(f *Flow) {
		if n != nil {
			f.notifier = n
		}
	}
}

// WithBus publishes upgrade activity to b.
func WithBus(b bus.Bus) Option {
	return func(f *Flow) { f.bus = b }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Flow) {
		if l != nil {
			f.logger = l
		}
	}
}

// OnUpgraded is called with the patched profile once the Pro flag is stored,
// before the flow reports success.
func OnUpgraded(fn func(model.Profile)) Option {
	return func(f *Flow) { f.onUpgraded = fn }
}

// New starts the flow for profile. A profile that is already Pro goes
// straight to StepAlreadyPro.
func New(profile model.Profile, rows backend.Rows, opts ...Option) *Flow {
	f := &Flow{
		rows:     rows,
		delay:    DefaultDelay,
		sleep:    sleepContext,
		notifier: notify.Nop,
		logger:   zap.NewNop(),
		guard:    flight.New(),
		profile:  profile,
		step:     StepOffer,
	}
	for _, opt := range opts {
		opt(f)
	}
	if profile.IsPro {
		f.step = StepAlreadyPro
	}
	f.logger = f.logger.With(zap.String("user_id", profile.UserID))
	return f
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Step returns the current step.
func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Profile returns the flow's copy of the profile.
func (f *Flow) Profile() model.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile
}

// Processing reports whether a payment is in flight.
func (f *Flow) Processing() bool { return f.guard.Busy() }

// Advance moves from the offer to the payment form.
func (f *Flow) Advance() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepOffer {
		return ErrInvalidTransition
	}
	f.step = StepPaying
	return nil
}

// Back returns from the payment form to the offer. It is refused while a
// payment is processing.
func (f *Flow) Back() error {
	if !f.guard.TryAcquire() {
		return flight.ErrInFlight
	}
	defer f.guard.Release()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepPaying {
		return ErrInvalidTransition
	}
	f.step = StepOffer
	return nil
}

// Pay completes the simulated payment and sets the Pro flag. The flow only
// reaches StepSucceeded after the local profile has been patched. On failure
// it stays in StepPaying so the user can retry.
func (f *Flow) Pay(ctx context.Context) error {
	if !f.guard.TryAcquire() {
		return flight.ErrInFlight
	}
	defer f.guard.Release()

	f.mu.Lock()
	step, userID := f.step, f.profile.UserID
	f.mu.Unlock()
	if step != StepPaying {
		return ErrInvalidTransition
	}

	if err := f.sleep(ctx, f.delay); err != nil {
		return err
	}

	if err := f.rows.SetProfilePro(ctx, userID, true); err != nil {
		f.logger.Error("failed to upgrade profile", zap.Error(err))
		f.notifier.Failure("Payment failed: " + backend.Message(err))
		return err
	}

	f.mu.Lock()
	f.profile.IsPro = true
	patched := f.profile
	f.mu.Unlock()

	if f.onUpgraded != nil {
		f.onUpgraded(patched)
	}

	f.mu.Lock()
	f.step = StepSucceeded
	f.mu.Unlock()

	f.logger.Info("profile upgraded to pro")
	f.notifier.Success("Welcome to Pro! Your account has been upgraded")
	bus.Publish(ctx, f.bus, f.logger, bus.NewActivity(bus.KindProfileUpgraded, userID, patched.ID, "upgraded to Pro"))
	return nil
}
