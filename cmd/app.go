package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ashfaaq98/casedesk/internal/backend"
	"github.com/Ashfaaq98/casedesk/internal/bus"
	"github.com/Ashfaaq98/casedesk/internal/model"
	"github.com/Ashfaaq98/casedesk/internal/notify"
	"github.com/Ashfaaq98/casedesk/internal/session"
	"github.com/Ashfaaq98/casedesk/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// errNotSignedIn is returned by commands that need a persisted session.
var errNotSignedIn = errors.New("not signed in; run 'casedesk signin' first")

// env holds the collaborators shared by every command.
type env struct {
	cfg      Config
	logger   *zap.Logger
	client   backend.Client
	store    *store.Store // nil unless the embedded backend is in use
	bus      bus.Bus
	provider *session.Provider
}

// newLogger builds a zap logger at the configured level writing to paths
// (stderr when empty).
func newLogger(level string, paths ...string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if strings.TrimSpace(level) != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}
	if len(paths) == 0 {
		paths = []string{"stderr"}
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = paths
	config.ErrorOutputPaths = paths
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// openBackend selects the embedded store or the hosted REST client.
func openBackend(cfg Config, logger *zap.Logger) (backend.Client, *store.Store, error) {
	switch cfg.Backend.Mode {
	case "", ModeEmbedded:
		resolved := resolvePathRelativeToBase(getWorkingDir(), cfg.Database.Path)
		logger.Debug("using embedded backend", zap.String("db", resolved))
		st, err := store.NewStore(resolved)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize store: %w", err)
		}
		return st, st, nil
	case ModeREST:
		logger.Debug("using rest backend", zap.String("url", cfg.Backend.URL))
		rc, err := backend.NewREST(cfg.Backend.URL, cfg.Backend.AnonKey, logger.Named("rest"))
		if err != nil {
			return nil, nil, err
		}
		return rc, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend mode %q (use %q or %q)", cfg.Backend.Mode, ModeEmbedded, ModeREST)
	}
}

// openEnv wires the backend, activity bus and session provider.
func openEnv(logger *zap.Logger) (*env, error) {
	cfg := GetConfig()
	client, st, err := openBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	b := bus.NewBus(cfg.Redis.URL, logger.Named("bus"))
	prov := session.NewProvider(client,
		session.WithFile(session.NewFile(cfg.Session.Path)),
		session.WithBus(b),
		session.WithLogger(logger.Named("session")))
	return &env{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		store:    st,
		bus:      b,
		provider: prov,
	}, nil
}

// commandEnv opens the environment for a headless command, logging to stderr.
func commandEnv(cmd *cobra.Command) (*env, error) {
	logger, err := newLogger(GetConfig().Log.Level)
	if err != nil {
		return nil, err
	}
	e, err := openEnv(logger.Named(cmd.Name()))
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return e, nil
}

// notifier prints user-facing messages to out and mirrors them to the log.
func (e *env) notifier(out io.Writer) notify.Notifier {
	logged := notify.Log(e.logger)
	return notify.Func(func(level notify.Level, msg string) {
		mark := "✓"
		if level == notify.LevelFailure {
			mark = "✗"
		}
		fmt.Fprintf(out, "%s %s\n", mark, msg)
		if level == notify.LevelFailure {
			logged.Failure(msg)
		} else {
			logged.Success(msg)
		}
	})
}

func (e *env) Close() {
	defer e.logger.Sync()
	if err := e.bus.Close(); err != nil {
		e.logger.Debug("close bus", zap.Error(err))
	}
	if err := e.client.Close(); err != nil {
		e.logger.Warn("close backend", zap.Error(err))
	}
}

// currentUser restores the persisted session and returns its user.
func (e *env) currentUser(ctx context.Context) (model.User, error) {
	if err := e.provider.Start(ctx); err != nil {
		return model.User{}, err
	}
	snap := e.provider.Snapshot()
	if !snap.SignedIn() {
		return model.User{}, errNotSignedIn
	}
	return *snap.User, nil
}

// embeddedStore returns the embedded store or an error naming the command
// that needs it.
func (e *env) embeddedStore(what string) (*store.Store, error) {
	if e.store == nil {
		return nil, fmt.Errorf("%s requires the embedded backend (--backend %s)", what, ModeEmbedded)
	}
	return e.store, nil
}

func getExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

func getWorkingDir() string {
	if wd, err := os.Getwd(); err == nil && wd != "" {
		return wd
	}
	return getExecutableDir()
}

// resolvePathRelativeToBase resolves a possibly relative path against a base directory.
// Absolute paths and the in-memory database name are returned unchanged.
func resolvePathRelativeToBase(base, p string) string {
	if filepath.IsAbs(p) || p == ":memory:" {
		return p
	}
	// Normalize leading "./" for consistent joining
	p = strings.TrimPrefix(p, "./")
	return filepath.Join(base, p)
}
