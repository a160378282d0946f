package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/bus"
	"github.com/spf13/cobra"
)

var (
	activityGroup    string
	activityConsumer string
	activityCount    int
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Follow the activity feed",
	Long: `Print activity messages (sign in and out, case creation, upgrades) as
they are published to the Redis activity stream. Requires --redis.

Examples:
  casedesk activity --redis redis://localhost:6379
  casedesk activity --redis redis://localhost:6379 --count 10`,
	RunE: runActivity,
}

func init() {
	rootCmd.AddCommand(activityCmd)

	host, _ := os.Hostname()
	activityCmd.Flags().StringVar(&activityGroup, "group", "casedesk-cli", "Consumer group to read as")
	activityCmd.Flags().StringVar(&activityConsumer, "consumer", "cli-"+host, "Consumer name within the group")
	activityCmd.Flags().IntVar(&activityCount, "count", 0, "Stop after this many messages (0 follows until interrupted)")
}

func runActivity(cmd *cobra.Command, args []string) error {
	e, err := commandEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if e.cfg.Redis.URL == "" {
		return errors.New("activity feed disabled: set --redis or redis.url")
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if err := e.bus.HealthCheck(ctx); err != nil {
		return fmt.Errorf("activity bus unavailable: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Following activity (Ctrl+C to stop)...")
	err = e.bus.ReadActivityStream(ctx, activityGroup, activityConsumer, activityPrinter(out, activityCount, cancel))
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// activityPrinter prints each message and calls stop once maxMessages have
// been seen. Zero never stops.
func activityPrinter(out io.Writer, maxMessages int, stop func()) func(context.Context, bus.ActivityMessage) error {
	seen := 0
	return func(ctx context.Context, msg bus.ActivityMessage) error {
		ts := time.Unix(msg.Timestamp, 0).Local().Format("2006-01-02 15:04:05")
		fmt.Fprintf(out, "%s  %-20s user=%s", ts, msg.Kind, msg.UserID)
		if msg.SubjectID != "" {
			fmt.Fprintf(out, " subject=%s", msg.SubjectID)
		}
		if msg.Summary != "" {
			fmt.Fprintf(out, "  %s", msg.Summary)
		}
		fmt.Fprintln(out)

		seen++
		if maxMessages > 0 && seen >= maxMessages {
			stop()
		}
		return nil
	}
}
