package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Ashfaaq98/casedesk/internal/dashboard"
	"github.com/Ashfaaq98/casedesk/internal/upgrade"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var confirmUpgrade bool

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Upgrade the signed-in account to Pro",
	Long: `Walk through the Pro checkout: show the plan and order summary, then
complete the simulated payment. No card is charged.

Examples:
  # Review the offer and confirm interactively
  casedesk upgrade

  # Upgrade without prompting
  casedesk upgrade --yes --delay 0s`,
	RunE: runUpgrade,
}

func init() {
	rootCmd.AddCommand(upgradeCmd)

	upgradeCmd.Flags().BoolVarP(&confirmUpgrade, "yes", "y", false, "Automatically confirm the payment")
	upgradeCmd.Flags().Duration("delay", upgrade.DefaultDelay, "Simulated payment processing time")
	viper.BindPFlag("upgrade.delay", upgradeCmd.Flags().Lookup("delay"))
}

func runUpgrade(cmd *cobra.Command, args []string) error {
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
	notifier := e.notifier(out)
	d := dashboard.New(user, e.client, dashboard.WithNotifier(notifier), dashboard.WithLogger(e.logger))
	if err := d.LoadProfile(ctx); err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	profile, ok := d.Profile()
	if !ok {
		return errors.New("your profile is not available yet; upgrade is disabled")
	}

	flow := upgrade.New(profile, e.client,
		upgrade.WithDelay(e.cfg.Upgrade.Delay),
		upgrade.WithNotifier(notifier),
		upgrade.WithBus(e.bus),
		upgrade.WithLogger(e.logger))

	if flow.Step() == upgrade.StepAlreadyPro {
		fmt.Fprintln(out, "You're already a Pro member.")
		return nil
	}

	printOffer(out, upgrade.Offer())
	if err := flow.Advance(); err != nil {
		return err
	}
	printSummary(out, upgrade.Summary())

	if !confirmUpgrade {
		fmt.Fprint(out, "Complete payment? (y/N): ")
		var response string
		fmt.Fscanln(cmd.InOrStdin(), &response)
		if r := strings.ToLower(response); r != "y" && r != "yes" {
			fmt.Fprintln(out, "Upgrade cancelled.")
			return nil
		}
	}

	fmt.Fprintln(out, "Processing payment...")
	if err := flow.Pay(ctx); err != nil {
		return fmt.Errorf("payment failed: %w", err)
	}

	fmt.Fprintln(out, "\nYou now have access to:")
	for _, f := range upgrade.Unlocked() {
		fmt.Fprintf(out, "  ✓ %s\n", f)
	}
	return nil
}

func printOffer(out io.Writer, plan upgrade.Plan) {
	fmt.Fprintf(out, "%s  %s / %s\n\n", plan.Name, plan.Price, plan.Period)
	for _, f := range plan.Features {
		fmt.Fprintf(out, "  ✓ %s\n", f)
	}
	fmt.Fprintln(out)
}

func printSummary(out io.Writer, s upgrade.OrderSummary) {
	fmt.Fprintln(out, "Order summary")
	fmt.Fprintf(out, "  %-10s %s\n", "Plan", s.Item)
	fmt.Fprintf(out, "  %-10s %s\n", "Billing", s.Billing)
	fmt.Fprintf(out, "  %-10s %s\n", "Subtotal", s.Subtotal)
	fmt.Fprintf(out, "  %-10s %s\n", "Tax", s.Tax)
	fmt.Fprintf(out, "  %-10s %s\n\n", "Total", s.Total)
}
