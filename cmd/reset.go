package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ashfaaq98/casedesk/internal/session"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	confirmReset bool
	resetRedis   bool
	resetDB      bool
	resetSession bool
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset Redis data, the database and the saved session",
	Long: `Reset command clears Redis data, the embedded SQLite database and the
saved session file.

By default, everything is reset. You can selectively reset only Redis, only
the database or only the session using the --redis-only, --db-only or
--session-only flags.

WARNING: This operation is irreversible and will permanently delete all data.

Examples:
  # Reset both Redis and database (requires confirmation)
  casedesk reset

  # Reset with automatic confirmation
  casedesk reset --yes

  # Reset only Redis data
  casedesk reset --redis-only

  # Reset only database
  casedesk reset --db-only

  # Forget the saved session
  casedesk reset --session-only --yes`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVarP(&confirmReset, "yes", "y", false, "Automatically confirm reset operation")
	resetCmd.Flags().BoolVar(&resetRedis, "redis-only", false, "Reset only Redis data")
	resetCmd.Flags().BoolVar(&resetDB, "db-only", false, "Reset only database")
	resetCmd.Flags().BoolVar(&resetSession, "session-only", false, "Reset only the saved session")
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	// Determine what to reset
	doRedis, doDB, doSession := resetRedis, resetDB, resetSession
	resetAll := !doRedis && !doDB && !doSession
	if resetAll {
		doRedis = viper.GetString("redis.url") != ""
		doDB = true
		doSession = true
	}

	// Show what will be reset
	var targets []string
	if doRedis {
		targets = append(targets, "Redis data")
	}
	if doDB {
		targets = append(targets, "SQLite database")
	}
	if doSession {
		targets = append(targets, "saved session")
	}

	fmt.Fprintf(out, "This will permanently delete: %s\n", strings.Join(targets, " and "))

	// Confirm operation unless --yes flag is used
	if !confirmReset {
		fmt.Fprint(out, "Are you sure you want to continue? (y/N): ")
		var response string
		fmt.Fscanln(cmd.InOrStdin(), &response)
		if strings.ToLower(response) != "y" && strings.ToLower(response) != "yes" {
			fmt.Fprintln(out, "Reset operation cancelled.")
			return nil
		}
	}

	// Reset Redis if requested
	if doRedis {
		if err := resetRedisData(ctx, out); err != nil {
			fmt.Fprintf(out, "Warning: Failed to reset Redis data: %v\n", err)

			// If user requested everything, offer to continue with the local data
			if resetAll && !confirmReset {
				fmt.Fprint(out, "Would you like to continue with the local reset only? (y/N): ")
				var response string
				fmt.Fscanln(cmd.InOrStdin(), &response)
				if strings.ToLower(response) != "y" && strings.ToLower(response) != "yes" {
					return fmt.Errorf("reset operation cancelled due to Redis connection failure")
				}
			} else if !doDB && !doSession {
				// If only Redis was requested and it failed, exit with error
				return fmt.Errorf("failed to reset Redis data: %w", err)
			}
			// If --yes flag was used or only DB reset continues, we continue silently
		} else {
			fmt.Fprintln(out, "✓ Redis data cleared successfully")
		}
	}

	// Reset database if requested
	if doDB {
		if err := resetDatabase(out); err != nil {
			return fmt.Errorf("failed to reset database: %w", err)
		}
		fmt.Fprintln(out, "✓ Database cleared successfully")
	}

	if doSession {
		if err := session.NewFile(GetConfig().Session.Path).Remove(); err != nil {
			return fmt.Errorf("failed to remove session file: %w", err)
		}
		fmt.Fprintln(out, "✓ Saved session removed")
	}

	fmt.Fprintln(out, "Reset operation completed successfully!")
	return nil
}

func resetRedisData(ctx context.Context, out io.Writer) error {
	// Get Redis configuration
	redisURL := viper.GetString("redis.url")
	if redisURL == "" {
		return fmt.Errorf("redis.url is not configured")
	}

	// Parse Redis URL and create client
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	defer client.Close()

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// Get all keys to understand what we're deleting
	keys, err := client.Keys(ctx, "*").Result()
	if err != nil {
		return fmt.Errorf("failed to get Redis keys: %w", err)
	}

	if len(keys) == 0 {
		fmt.Fprintln(out, "No Redis data found to clear")
		return nil
	}

	fmt.Fprintf(out, "Clearing %d Redis keys/streams...\n", len(keys))

	// Clear all Redis data
	if err := client.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("failed to flush Redis database: %w", err)
	}

	return nil
}

func resetDatabase(out io.Writer) error {
	// Get database path from configuration
	dbPath := viper.GetString("database.path")
	if dbPath == "" || dbPath == ":memory:" {
		fmt.Fprintln(out, "No database files found to remove")
		return nil
	}
	dbPath = resolvePathRelativeToBase(getWorkingDir(), dbPath)

	// Remove SQLite database files
	dbFiles := []string{
		dbPath,
		dbPath + "-shm", // Shared memory file
		dbPath + "-wal", // Write-ahead log file
	}

	var removedFiles []string
	for _, file := range dbFiles {
		if _, err := os.Stat(file); err == nil {
			if err := os.Remove(file); err != nil {
				return fmt.Errorf("failed to remove database file %s: %w", file, err)
			}
			removedFiles = append(removedFiles, filepath.Base(file))
		}
	}

	if len(removedFiles) == 0 {
		fmt.Fprintln(out, "No database files found to remove")
		return nil
	}

	fmt.Fprintf(out, "Removed database files: %s\n", strings.Join(removedFiles, ", "))
	return nil
}
