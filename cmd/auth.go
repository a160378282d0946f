package cmd

import (
	"errors"
	"fmt"

	"github.com/Ashfaaq98/casedesk/internal/forms"
	"github.com/spf13/cobra"
)

var (
	authEmail     string
	authPassword  string
	authConfirm   string
	authFirstName string
	authLastName  string
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	Long: `Register a new account. The session is saved so later commands and
the TUI start signed in.

Examples:
  casedesk signup --email ada@example.com --password secret1 \
    --first-name Ada --last-name Lovelace`,
	RunE: runSignUp,
}

var signinCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in with email and password",
	RunE:  runSignIn,
}

var signoutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Sign out and forget the saved session",
	RunE:  runSignOut,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	RunE:  runWhoami,
}

func init() {
	rootCmd.AddCommand(signupCmd, signinCmd, signoutCmd, whoamiCmd)

	signupCmd.Flags().StringVar(&authEmail, "email", "", "Account email")
	signupCmd.Flags().StringVar(&authPassword, "password", "", "Account password (at least 6 characters)")
	signupCmd.Flags().StringVar(&authConfirm, "confirm", "", "Password confirmation (defaults to --password)")
	signupCmd.Flags().StringVar(&authFirstName, "first-name", "", "First name")
	signupCmd.Flags().StringVar(&authLastName, "last-name", "", "Last name")

	signinCmd.Flags().StringVar(&authEmail, "email", "", "Account email")
	signinCmd.Flags().StringVar(&authPassword, "password", "", "Account password")
}

func runSignUp(cmd *cobra.Command, args []string) error {
	e, err := commandEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	confirm := authConfirm
	if !cmd.Flags().Changed("confirm") {
		confirm = authPassword
	}
	sub := forms.Submitter{Provider: e.provider, Notifier: e.notifier(cmd.OutOrStdout()), Logger: e.logger}
	res, err := sub.SignUp(cmd.Context(), forms.SignUpInput{
		Email:     authEmail,
		Password:  authPassword,
		Confirm:   confirm,
		FirstName: authFirstName,
		LastName:  authLastName,
	})
	if err != nil {
		return errors.New(res.Banner)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", res.User.Email)
	return nil
}

func runSignIn(cmd *cobra.Command, args []string) error {
	e, err := commandEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	sub := forms.Submitter{Provider: e.provider, Notifier: e.notifier(cmd.OutOrStdout()), Logger: e.logger}
	res, err := sub.SignIn(cmd.Context(), forms.SignInInput{Email: authEmail, Password: authPassword})
	if err != nil {
		return errors.New(res.Banner)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", res.User.Email)
	return nil
}

func runSignOut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := commandEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if _, err := e.currentUser(ctx); err != nil {
		if errors.Is(err, errNotSignedIn) {
			fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
			return nil
		}
		return err
	}
	// The local session is dropped even when the backend call fails.
	if err := e.provider.SignOut(ctx); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Warning: backend sign out failed: %v\n", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
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
	fmt.Fprintf(out, "Email: %s\n", user.Email)
	fmt.Fprintf(out, "User ID: %s\n", user.ID)

	profile, err := e.client.ProfileByOwner(ctx, user.ID)
	if err != nil {
		fmt.Fprintf(out, "Profile: unavailable (%v)\n", err)
		return nil
	}
	plan := "Free"
	if profile.IsPro {
		plan = "Pro"
	}
	fmt.Fprintf(out, "Name: %s\n", profile.DisplayName())
	fmt.Fprintf(out, "Plan: %s\n", plan)
	return nil
}
