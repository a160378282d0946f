package cmd

import (
	"fmt"

	"github.com/Ashfaaq98/casedesk/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var fixturesPath string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo accounts and cases into the embedded database",
	Long: `Seed demo accounts and their cases into the embedded SQLite database.
This is useful for local testing when the database is empty. Accounts that
already exist are skipped.

Without --fixtures two demo accounts are created:
  demo@casedesk.local / demo123  (free plan, three cases)
  pro@casedesk.local  / demo123  (Pro plan, no cases)

Examples:
  casedesk seed
  casedesk seed --fixtures testdata/fixtures.yaml`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVar(&fixturesPath, "fixtures", "", "YAML fixtures file (default is the built-in demo data)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := commandEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	st, err := e.embeddedStore("seed")
	if err != nil {
		return err
	}

	fixtures := store.DefaultFixtures()
	if fixturesPath != "" {
		fixtures, err = store.LoadFixtures(fixturesPath)
		if err != nil {
			return err
		}
	}

	e.logger.Info("seeding sample data", zap.Int("users", len(fixtures.Users)))
	res, err := st.Seed(ctx, fixtures)
	if err != nil {
		return fmt.Errorf("failed to seed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %d users and %d cases", res.Users, res.Cases)
	if res.Skipped > 0 {
		fmt.Fprintf(out, " (%d existing users skipped)", res.Skipped)
	}
	fmt.Fprintln(out)
	return nil
}
