package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/planward/planward/internal/model"
)

var (
	loginEmail    string
	loginProvider string
)

var loginCmd = &cobra.Command{
	Use:     "login",
	GroupID: "auth",
	Short:   "Sign in with email/password or a federated provider",
	Long: `Sign in to the backend.

With --provider, a browser-based federated sign-in is started and pw
waits for the provider to redirect back. Otherwise email/password are
prompted for (or pass --email and enter the password when asked).

The session is cached locally, so subsequent commands run without
signing in again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()
		ctx := cmd.Context()
		app.start(ctx)

		if loginProvider != "" {
			return loginWithProvider(ctx, app, loginProvider)
		}

		email, password, err := promptCredentials(loginEmail)
		if err != nil {
			return err
		}
		if err := app.session.SignInWithPassword(ctx, email, password); err != nil {
			return err
		}
		fmt.Printf("Signed in as %s\n", email)
		return nil
	},
}

var signupCmd = &cobra.Command{
	Use:     "signup",
	GroupID: "auth",
	Short:   "Register a new email/password account",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()
		ctx := cmd.Context()
		app.start(ctx)

		email, password, err := promptCredentials(loginEmail)
		if err != nil {
			return err
		}
		if err := app.session.SignUp(ctx, email, password); err != nil {
			return err
		}
		if _, ok := app.session.Identity(); ok {
			fmt.Printf("Account created, signed in as %s\n", email)
		} else {
			fmt.Println("Account created. Check your email to confirm, then run: pw login")
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	GroupID: "auth",
	Short:   "Sign out and clear the cached session",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()
		ctx := cmd.Context()
		app.start(ctx)

		if _, ok := app.session.Identity(); !ok {
			fmt.Println("Not signed in")
			return nil
		}
		if err := app.session.SignOut(ctx); err != nil {
			return err
		}
		app.store.Unbind()
		fmt.Println("Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	GroupID: "auth",
	Short:   "Show the signed-in identity and profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()
		app.start(cmd.Context())

		ident, ok := app.session.Identity()
		if !ok {
			return fmt.Errorf("not signed in (run: pw login)")
		}
		fmt.Printf("%s (%s)\n", ident.Email, ident.ID)
		if profile, ok := app.session.Profile(); ok {
			fmt.Print(newRenderer(app).Profile(profile))
		}
		return nil
	},
}

var (
	profileName  string
	profilePhone string
)

var profileCmd = &cobra.Command{
	Use:     "profile",
	GroupID: "auth",
	Short:   "Update the profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		if profileName == "" && profilePhone == "" {
			return fmt.Errorf("nothing to update (use --name or --phone)")
		}
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()
		ctx := cmd.Context()
		app.start(ctx)
		if _, ok := app.session.Identity(); !ok {
			return fmt.Errorf("not signed in (run: pw login)")
		}

		var patch model.ProfilePatch
		if profileName != "" {
			patch.DisplayName = model.Ptr(profileName)
		}
		if profilePhone != "" {
			patch.PhoneNumber = model.Ptr(profilePhone)
		}
		if err := app.session.UpdateProfile(ctx, patch); err != nil {
			return err
		}
		fmt.Println("Profile updated")
		return nil
	},
}

func loginWithProvider(ctx context.Context, app *app, provider string) error {
	flow, err := app.client.StartOAuth(provider)
	if err != nil {
		return err
	}
	fmt.Printf("Open this URL in your browser to continue:\n\n  %s\n\nWaiting for %s...\n", flow.AuthorizeURL, provider)
	if err := app.client.Wait(ctx, flow); err != nil {
		return err
	}
	if ident, ok := app.session.Identity(); ok {
		fmt.Printf("Signed in as %s\n", ident.Email)
	} else {
		fmt.Println("Signed in")
	}
	return nil
}

// promptCredentials collects email and password. Interactive terminals get
// a form; otherwise the password is read without echo from stdin.
func promptCredentials(email string) (string, string, error) {
	var password string

	if term.IsTerminal(int(os.Stdin.Fd())) && email == "" {
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Email").Value(&email),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&password),
		))
		if err := form.Run(); err != nil {
			return "", "", err
		}
	} else {
		if email == "" {
			return "", "", fmt.Errorf("--email is required when not running interactively")
		}
		fmt.Fprint(os.Stderr, "Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		password = string(raw)
	}

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", "", fmt.Errorf("email and password are required")
	}
	return email, password, nil
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "email address")
	loginCmd.Flags().StringVar(&loginProvider, "provider", "", "federated provider (e.g. google)")
	signupCmd.Flags().StringVar(&loginEmail, "email", "", "email address")
	profileCmd.Flags().StringVar(&profileName, "name", "", "display name")
	profileCmd.Flags().StringVar(&profilePhone, "phone", "", "phone number")

	rootCmd.AddCommand(loginCmd, signupCmd, logoutCmd, whoamiCmd, profileCmd)
}
