package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Ashfaaq98/casedesk/internal/dashboard"
	"github.com/Ashfaaq98/casedesk/internal/model"
	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list [cases|audit]",
	Short: "List your cases or audit trail",
	Long: `List the signed-in user's cases or audit trail in a simple text format.
This command works in any terminal environment and provides an alternative
to the TUI interface when terminal capabilities are limited.

Examples:
  # List all cases
  casedesk list cases

  # Search cases by title or description
  casedesk list cases --query jones

  # Show the 10 most recent audit entries (embedded backend only)
  casedesk list audit --limit 10`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

var (
	listType  string
	listQuery string
	limit     int
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listType, "type", "cases", "What to list: cases, audit")
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Only show cases whose title or description contains this text")
	listCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of items to show (0 for all)")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := commandEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	user, err := e.currentUser(ctx)
	if err != nil {
		return err
	}

	// Determine what to list from args or flags
	targetType := strings.ToLower(listType)
	if len(args) > 0 {
		targetType = strings.ToLower(args[0])
	}

	switch targetType {
	case "cases":
		return listCases(ctx, cmd.OutOrStdout(), e, user)
	case "audit":
		return listAudit(ctx, cmd.OutOrStdout(), e, user)
	default:
		return fmt.Errorf("unknown list type: %s (use 'cases' or 'audit')", targetType)
	}
}

func listCases(ctx context.Context, out io.Writer, e *env, user model.User) error {
	d := dashboard.New(user, e.client,
		dashboard.WithLogger(e.logger),
		dashboard.WithNotifier(e.notifier(out)))
	if err := d.LoadCases(ctx); err != nil {
		return fmt.Errorf("failed to list cases: %w", err)
	}
	d.SetQuery(listQuery)

	cases := d.Visible()
	if len(cases) == 0 {
		if listQuery != "" {
			fmt.Fprintln(out, "No cases match your search.")
		} else {
			fmt.Fprintln(out, "No cases found.")
		}
		return nil
	}

	stats := d.Stats()
	fmt.Fprintf(out, "Found %d cases (%d active, %d pending, %d closed):\n\n",
		stats.Total, stats.Active, stats.Pending, stats.Closed)
	if listQuery != "" {
		fmt.Fprintf(out, "Showing %d matching %q:\n\n", len(cases), listQuery)
	}

	for i, c := range cases {
		if limit > 0 && i >= limit {
			fmt.Fprintf(out, "... %d more\n", len(cases)-limit)
			break
		}
		fmt.Fprintf(out, "%d. [%s] %s\n", i+1, strings.ToUpper(string(c.Status)), c.Title)
		fmt.Fprintf(out, "   ID: %s\n", c.ID)
		fmt.Fprintf(out, "   Files: %d\n", c.FileCount)
		fmt.Fprintf(out, "   Created: %s\n", c.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "   Description: %s\n", c.DisplayDescription())
		fmt.Fprintln(out)
	}
	return nil
}

func listAudit(ctx context.Context, out io.Writer, e *env, user model.User) error {
	st, err := e.embeddedStore("list audit")
	if err != nil {
		return err
	}
	entries, err := st.GetAuditEntries(ctx, user.ID, limit)
	if err != nil {
		return fmt.Errorf("failed to get audit entries: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No audit entries found.")
		return nil
	}

	fmt.Fprintf(out, "Showing %d audit entries:\n\n", len(entries))
	for i, entry := range entries {
		fmt.Fprintf(out, "%d. [%s] %s\n", i+1, strings.ToUpper(entry.Action), entry.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		if entry.SubjectID != "" {
			fmt.Fprintf(out, "   Subject: %s\n", entry.SubjectID)
		}
		keys := make([]string, 0, len(entry.Details))
		for k := range entry.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "   %s: %v\n", k, entry.Details[k])
		}
		fmt.Fprintln(out)
	}
	return nil
}
