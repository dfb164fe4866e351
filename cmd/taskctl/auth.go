package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	v1 "github.com/fyrsmithlabs/taskd/pkg/api/v1"
	"github.com/fyrsmithlabs/taskd/pkg/client"
)

func (a *app) loginCmd() *cobra.Command {
	var remember, create bool

	cmd := &cobra.Command{
		Use:   "login [email]",
		Short: "Log in with an email address",
		Long: `Log in with an email address. Without an argument the remembered email
is used.

If no account exists for the email you are asked whether to create one;
--create skips the question.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := a.session.snapshot().Email
			if len(args) == 1 {
				email = args[0]
			}
			if email == "" {
				return errors.New("no email given and none remembered")
			}

			ctx, cancel := a.ctx(cmd)
			defer cancel()

			resp, err := a.client.Login(ctx, email)
			if client.IsNotFound(err) {
				if !create && !confirm(cmd, fmt.Sprintf("No account for %s. Create one?", email)) {
					return fmt.Errorf("login failed: %w", err)
				}
				resp, err = a.client.Register(ctx, email)
			}
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			if remember {
				if err := a.session.update(func(d *sessionData) { d.Email = resp.User.Email }); err != nil {
					return err
				}
			}
			return a.printAuth(cmd, resp)
		},
	}
	cmd.Flags().BoolVar(&remember, "remember", false, "remember the email for the next login")
	cmd.Flags().BoolVar(&create, "create", false, "create the account if it does not exist")
	return cmd
}

func (a *app) registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <email>",
		Short: "Create an account and log in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			resp, err := a.client.Register(ctx, args[0])
			if err != nil {
				return fmt.Errorf("register failed: %w", err)
			}
			return a.printAuth(cmd, resp)
		},
	}
}

func (a *app) printAuth(cmd *cobra.Command, resp *v1.AuthResponse) error {
	if ok, err := a.printJSON(cmd.OutOrStdout(), resp.User); ok {
		return err
	}
	cmd.Printf("Logged in as %s (session expires %s)\n", resp.User.Email, resp.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.client.Logout(); err != nil {
				return err
			}
			cmd.Println("Logged out")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			u, err := a.client.Profile(ctx)
			if err != nil {
				return err
			}
			if ok, err := a.printJSON(cmd.OutOrStdout(), u); ok {
				return err
			}
			cmd.Printf("%s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
}

func (a *app) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the session token for a fresh one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			resp, err := a.client.RefreshToken(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("Session refreshed, expires %s\n", resp.ExpiresAt.Local().Format("2006-01-02 15:04"))
			return nil
		},
	}
}

func (a *app) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check taskd server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			h, err := a.client.Health(ctx)
			if err != nil {
				return err
			}
			if ok, err := a.printJSON(cmd.OutOrStdout(), h); ok {
				return err
			}
			cmd.Printf("Server Status: %s\n", h.Status)
			return nil
		},
	}
}
