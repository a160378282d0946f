package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/bus"
	"github.com/Ashfaaq98/casedesk/internal/store"
	"github.com/Ashfaaq98/casedesk/internal/ui"
	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	noTUI    bool
	forceTUI bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the terminal client",
	Long: `Start the CaseDesk terminal client which includes:

1. Sign in and registration screens
2. The case dashboard with search and case creation
3. The Pro upgrade checkout
4. An activity recorder that consumes the Redis activity feed

The serve command runs until you quit (q or Ctrl+C). In headless mode only
the activity recorder runs.

Examples:
  # Start with TUI (default)
  casedesk serve

  # Start without TUI (headless mode)
  casedesk serve --no-tui

  # Use the hosted backend
  casedesk serve --backend rest`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&noTUI, "no-tui", false, "Run in headless mode without TUI")
	serveCmd.Flags().BoolVar(&forceTUI, "force-tui", false, "Force TUI mode even in unsupported terminals")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()

	// TUI mode logs to a file to keep the terminal clean
	willUseTUI := determineTUIMode()
	var paths []string
	if willUseTUI {
		if logPath, err := setupLogFile(); err == nil {
			paths = []string{logPath}
		} else {
			paths = []string{"stderr"}
		}
	}
	logger, err := newLogger(config.Log.Level, paths...)
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger = logger.Named("serve")

	logger.Info("starting CaseDesk", zap.String("backend", config.Backend.Mode), zap.Bool("tui", willUseTUI))

	e, err := openEnv(logger)
	if err != nil {
		return err
	}
	defer e.Close()

	svcCtx, svcCancel := context.WithCancel(ctx)
	defer svcCancel()
	coordinator := NewServiceCoordinator(svcCtx, e.bus, e.store, logger)
	coordinator.Start()
	defer coordinator.Stop()

	if !willUseTUI {
		logger.Info("running in headless mode")
		<-ctx.Done()
		logger.Info("received shutdown signal")
		return nil
	}

	app := ui.NewUI(ctx, ui.Deps{
		Provider:     e.provider,
		Rows:         e.client,
		Bus:          e.bus,
		Logger:       logger,
		UpgradeDelay: config.Upgrade.Delay,
		Theme:        config.UI.Theme,
	})
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	logger.Info("TUI exited")
	return nil
}

// determineTUIMode reports whether serve should start the TUI.
func determineTUIMode() bool {
	if noTUI {
		return false
	}
	if forceTUI {
		return true
	}
	return isTerminal() && canInitializeTUI()
}

// canInitializeTUI tests if tcell can actually be initialized
func canInitializeTUI() bool {
	screen, err := tcell.NewScreen()
	if err != nil {
		return false
	}
	if err := screen.Init(); err != nil {
		return false
	}
	screen.Fini()
	return true
}

// isTerminal checks if stdout is a terminal with a usable size
func isTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil || fileInfo.Mode()&os.ModeCharDevice == 0 {
		return false
	}
	w, h := getTerminalSize()
	// Zero means unknown; let tcell decide.
	return (w == 0 && h == 0) || (w >= 40 && h >= 12)
}

// setupLogFile returns the path of the TUI log file, creating its directory.
func setupLogFile() (string, error) {
	logDir := filepath.Join(getWorkingDir(), "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(logDir, "casedesk-serve.log"), nil
}

// Audit actions recorded from the activity feed.
const (
	auditSignIn  = "signin"
	auditSignOut = "signout"
)

// ServiceCoordinator runs the background services next to the TUI.
type ServiceCoordinator struct {
	bus    bus.Bus
	store  *store.Store
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	healthInterval time.Duration
	retryDelay     time.Duration
}

// NewServiceCoordinator creates a coordinator. st may be nil when the hosted
// backend is in use; activity is then only logged.
func NewServiceCoordinator(ctx context.Context, b bus.Bus, st *store.Store, logger *zap.Logger) *ServiceCoordinator {
	ctx, cancel := context.WithCancel(ctx)
	return &ServiceCoordinator{
		bus:            b,
		store:          st,
		logger:         logger.Named("services"),
		ctx:            ctx,
		cancel:         cancel,
		healthInterval: 30 * time.Second,
		retryDelay:     5 * time.Second,
	}
}

// Start launches the activity recorder and the bus health monitor.
func (sc *ServiceCoordinator) Start() {
	sc.wg.Add(2)
	go sc.runActivityRecorder()
	go sc.runHealthMonitor()
}

// Stop cancels the services and waits for them to exit.
func (sc *ServiceCoordinator) Stop() {
	sc.cancel()
	sc.wg.Wait()
	sc.logger.Debug("background services stopped")
}

func (sc *ServiceCoordinator) runActivityRecorder() {
	defer sc.wg.Done()

	for {
		err := sc.bus.ReadActivityStream(sc.ctx, "casedesk", "recorder", sc.recordActivity)
		if sc.ctx.Err() != nil {
			return
		}
		sc.logger.Warn("activity stream reader stopped", zap.Error(err))
		select {
		case <-sc.ctx.Done():
			return
		case <-time.After(sc.retryDelay):
		}
	}
}

// recordActivity logs an activity message and, with the embedded backend,
// adds session events to the audit trail. Audit failures are logged, never
// returned, so every message is acknowledged. Case and profile changes are
// already audited by the store itself.
func (sc *ServiceCoordinator) recordActivity(ctx context.Context, msg bus.ActivityMessage) error {
	sc.logger.Info("activity",
		zap.String("kind", msg.Kind),
		zap.String("user_id", msg.UserID),
		zap.String("subject_id", msg.SubjectID))

	if sc.store == nil {
		return nil
	}
	var action string
	switch msg.Kind {
	case bus.KindSignedIn:
		action = auditSignIn
	case bus.KindSignedOut:
		action = auditSignOut
	default:
		return nil
	}
	err := sc.store.AddAuditEntry(ctx, store.AuditEntry{
		UserID:  msg.UserID,
		Action:  action,
		Details: map[string]interface{}{"summary": msg.Summary},
	})
	if err != nil {
		// The message is still acknowledged; a failed audit write is not retried.
		sc.logger.Error("failed to audit activity",
			zap.String("kind", msg.Kind), zap.String("user_id", msg.UserID), zap.Error(err))
	}
	return nil
}

func (sc *ServiceCoordinator) runHealthMonitor() {
	defer sc.wg.Done()

	ticker := time.NewTicker(sc.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sc.ctx.Done():
			return
		case <-ticker.C:
			sc.performHealthChecks()
		}
	}
}

func (sc *ServiceCoordinator) performHealthChecks() {
	ctx, cancel := context.WithTimeout(sc.ctx, 5*time.Second)
	defer cancel()

	if err := sc.bus.HealthCheck(ctx); err != nil {
		sc.logger.Warn("activity bus health check failed", zap.Error(err))
		return
	}
	stats, err := sc.bus.GetStats(ctx)
	if err != nil {
		sc.logger.Debug("activity bus stats unavailable", zap.Error(err))
		return
	}
	sc.logger.Debug("activity bus healthy", zap.Any("stats", stats))
}
