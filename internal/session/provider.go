package session

import (
	"context"
	"sync"

	"github.com/Ashfaaq98/casedesk/internal/backend"
	"github.com/Ashfaaq98/casedesk/internal/bus"
	"github.com/Ashfaaq98/casedesk/internal/model"
	"go.uber.org/zap"
)

// Provider tracks the current session. It starts in the loading state and
// leaves it once Start has restored (or failed to restore) the persisted
// session.
type Provider struct {
	auth   backend.Auth
	file   *File
	bus    bus.Bus
	logger *zap.Logger

	mu      sync.RWMutex
	sess    *backend.Session
	loading bool
	subs    map[int]func(Snapshot)
	nextSub int
}

// Option customizes a Provider.
type Option func(*Provider)

// WithFile persists sessions to f.
func WithFile(f *File) Option {
	return func(p *Provider) { p.file = f }
}

// WithBus publishes sign-in and sign-out activity to b.
func WithBus(b bus.Bus) Option {
	return func(p *Provider) { p.bus = b }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProvider returns a provider in the loading state.
func NewProvider(auth backend.Auth, opts ...Option) *Provider {
	p := &Provider{
		auth:    auth,
		file:    NewFile(""),
		logger:  zap.NewNop(),
		loading: true,
		subs:    make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot returns the current session state.
func (p *Provider) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked()
}

func (p *Provider) snapshotLocked() Snapshot {
	s := Snapshot{Loading: p.loading}
	if p.sess != nil {
		u := p.sess.User
		s.User = &u
	}
	return s
}

// Session returns the active backend session or nil.
func (p *Provider) Session() *backend.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.sess == nil {
		return nil
	}
	cp := *p.sess
	return &cp
}

// Subscribe registers fn to receive every state change. The returned
// function removes the subscription.
func (p *Provider) Subscribe(fn func(Snapshot)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// set swaps the session, leaves the loading state and notifies subscribers
// outside the lock.
func (p *Provider) set(sess *backend.Session) {
	p.mu.Lock()
	p.sess = sess
	p.loading = false
	snap := p.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// Start restores the persisted session, if any. Failing to restore is not
// an error: the provider simply ends up signed out.
func (p *Provider) Start(ctx context.Context) error {
	saved, err := p.file.Load()
	if err != nil {
		p.logger.Warn("ignoring unreadable session file", zap.Error(err))
		_ = p.file.Remove()
		p.set(nil)
		return nil
	}
	if saved == nil {
		p.set(nil)
		return nil
	}

	sess, err := p.auth.Restore(ctx, saved)
	if err != nil {
		p.logger.Info("persisted session not restored",
			zap.String("user_id", saved.User.ID), zap.Error(err))
		if backend.CodeOf(err) == backend.CodeUnauthorized {
			_ = p.file.Remove()
		}
		p.set(nil)
		return nil
	}
	p.logger.Debug("session restored", zap.String("user_id", sess.User.ID))
	p.set(sess)
	return nil
}

// SignUp registers an account and signs it in.
func (p *Provider) SignUp(ctx context.Context, params backend.SignUpParams) (*model.User, error) {
	sess, err := p.auth.SignUp(ctx, params)
	if err != nil {
		return nil, err
	}
	return p.begin(ctx, sess), nil
}

// SignIn authenticates and becomes the active session.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*model.User, error) {
	sess, err := p.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return p.begin(ctx, sess), nil
}

func (p *Provider) begin(ctx context.Context, sess *backend.Session) *model.User {
	if err := p.file.Save(sess); err != nil {
		p.logger.Warn("session not persisted", zap.Error(err))
	}
	p.set(sess)
	bus.Publish(ctx, p.bus, p.logger, bus.NewActivity(bus.KindSignedIn, sess.User.ID, sess.User.ID, sess.User.Email))
	u := sess.User
	return &u
}

// SignOut ends the session. Local state is cleared even when the backend
// rejects the call; the backend error is still returned.
func (p *Provider) SignOut(ctx context.Context) error {
	sess := p.Session()
	var err error
	if sess != nil {
		err = p.auth.SignOut(ctx, sess)
		if err != nil {
			p.logger.Warn("backend sign out failed", zap.Error(err))
		}
	}
	p.set(nil)
	if rmErr := p.file.Remove(); rmErr != nil {
		p.logger.Warn("session file not removed", zap.Error(rmErr))
	}
	if sess != nil {
		bus.Publish(ctx, p.bus, p.logger, bus.NewActivity(bus.KindSignedOut, sess.User.ID, sess.User.ID, sess.User.Email))
	}
	return err
}

// Watch clears the session when the session file is removed by another
// process, until ctx is done.
func (p *Provider) Watch(ctx context.Context) error {
	return p.file.watchRemoval(ctx, p.logger, func() {
		if p.Session() == nil {
			return
		}
		p.logger.Info("session file removed, signing out locally")
		p.set(nil)
	})
}
