package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Ashfaaq98/casedesk/internal/backend"
	"github.com/Ashfaaq98/casedesk/internal/bus"
	"github.com/Ashfaaq98/casedesk/internal/flight"
	"github.com/Ashfaaq98/casedesk/internal/model"
	"go.uber.org/zap"
)

// ErrTitleRequired is returned when the case title is blank.
var ErrTitleRequired = errors.New("Case title is required")

// CreateForm is one case creation surface. Each form admits one submission
// at a time.
type CreateForm struct {
	dash  *Dashboard
	guard *flight.Guard

	mu          sync.Mutex
	open        bool
	title       string
	description string
}

// NewCreateForm returns a closed, empty creation form for d.
func (d *Dashboard) NewCreateForm() *CreateForm {
	return &CreateForm{dash: d, guard: flight.New()}
}

// Open shows the form.
func (f *CreateForm) Open() {
	f.mu.Lock()
	f.open = true
	f.mu.Unlock()
}

// Close hides the form, keeping its input.
func (f *CreateForm) Close() {
	f.mu.Lock()
	f.open = false
	f.mu.Unlock()
}

// IsOpen reports whether the form is shown.
func (f *CreateForm) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// SetTitle sets the title input.
func (f *CreateForm) SetTitle(s string) {
	f.mu.Lock()
	f.title = s
	f.mu.Unlock()
}

// SetDescription sets the description input.
func (f *CreateForm) SetDescription(s string) {
	f.mu.Lock()
	f.description = s
	f.mu.Unlock()
}

// Title returns the title input.
func (f *CreateForm) Title() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.title
}

// Description returns the description input.
func (f *CreateForm) Description() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.description
}

// Busy reports whether a submission is in flight.
func (f *CreateForm) Busy() bool { return f.guard.Busy() }

// Submit creates the case described by the form. A blank title fails with
// ErrTitleRequired before anything is sent. On success the case is put at
// the head of the dashboard list and the form is cleared and closed; on
// failure the form keeps its input so the user can retry.
func (f *CreateForm) Submit(ctx context.Context) (model.Case, error) {
	if !f.guard.TryAcquire() {
		return model.Case{}, flight.ErrInFlight
	}
	defer f.guard.Release()

	f.mu.Lock()
	title := strings.TrimSpace(f.title)
	description := strings.TrimSpace(f.description)
	f.mu.Unlock()

	if title == "" {
		return model.Case{}, ErrTitleRequired
	}

	d := f.dash
	c, err := d.rows.InsertCase(ctx, model.NewCase{
		UserID:      d.user.ID,
		Title:       title,
		Description: description,
		Status:      model.StatusActive,
		FileCount:   0,
	})
	if err != nil {
		d.logger.Error("failed to create case", zap.String("title", title), zap.Error(err))
		d.notifier.Failure("Failed to create case: " + backend.Message(err))
		return model.Case{}, err
	}

	d.prepend(c)

	f.mu.Lock()
	f.title = ""
	f.description = ""
	f.open = false
	f.mu.Unlock()

	d.notifier.Success("Case created successfully")
	d.logger.Info("case created", zap.String("case_id", c.ID))
	bus.Publish(ctx, d.bus, d.logger, bus.NewActivity(bus.KindCaseCreated, d.user.ID, c.ID, c.Title))
	return c, nil
}
