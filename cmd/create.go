package cmd

import (
	"errors"
	"fmt"

	"github.com/Ashfaaq98/casedesk/internal/dashboard"
	"github.com/spf13/cobra"
)

var (
	caseTitle       string
	caseDescription string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a case",
	Long: `Create a new case for the signed-in user. New cases start active with no
files attached.

Examples:
  casedesk create --title "Smith v. Jones" --description "Contract dispute"`,
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVarP(&caseTitle, "title", "t", "", "Case title (required)")
	createCmd.Flags().StringVarP(&caseDescription, "description", "d", "", "Case description")
}

func runCreate(cmd *cobra.Command, args []string) error {
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

	out := cmd.OutOrStdout()
	d := dashboard.New(user, e.client,
		dashboard.WithNotifier(e.notifier(out)),
		dashboard.WithBus(e.bus),
		dashboard.WithLogger(e.logger))
	form := d.NewCreateForm()
	form.Open()
	form.SetTitle(caseTitle)
	form.SetDescription(caseDescription)

	c, err := form.Submit(ctx)
	if errors.Is(err, dashboard.ErrTitleRequired) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to create case: %w", err)
	}

	fmt.Fprintf(out, "   ID: %s\n", c.ID)
	fmt.Fprintf(out, "   Title: %s\n", c.Title)
	fmt.Fprintf(out, "   Status: %s\n", c.Status)
	fmt.Fprintf(out, "   Description: %s\n", c.DisplayDescription())
	return nil
}
