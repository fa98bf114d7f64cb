package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Account commands",
	}

	cmd.AddCommand(newUserGuestCmd())
	cmd.AddCommand(newUserRegisterCmd())
	cmd.AddCommand(newUserLoginCmd())
	cmd.AddCommand(newUserMeCmd())
	cmd.AddCommand(newUserLogoutCmd())

	return cmd
}

// authenticate posts to an auth endpoint and keeps the returned token
func authenticate(cmd *cobra.Command, path string, req any) error {
	var result AuthResult
	if err := client.Post(cmd.Context(), path, req, &result); err != nil {
		return err
	}

	if err := cfg.SaveToken(result.Token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	return NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
}

func newUserGuestCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "guest",
		Short: "Create a guest identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return authenticate(cmd, "/api/v1/users/guest", map[string]string{"display_name": name})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newUserRegisterCmd() *cobra.Command {
	var name, user, pass string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return authenticate(cmd, "/api/v1/users/register", map[string]string{
				"display_name": name,
				"username":     user,
				"password":     pass,
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (required)")
	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newUserLoginCmd() *cobra.Command {
	var user, pass string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with an existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return authenticate(cmd, "/api/v1/users/login", map[string]string{
				"username": user,
				"password": pass,
			})
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newUserMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the current user",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result User
			if err := client.Get(cmd.Context(), "/api/v1/users/me", &result); err != nil {
				return err
			}
			return NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
		},
	}
}

func newUserLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the current token and forget it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Post(cmd.Context(), "/api/v1/users/logout", nil, nil); err != nil {
				return err
			}
			if err := cfg.ClearToken(); err != nil {
				return fmt.Errorf("failed to remove token: %w", err)
			}
			return NewOutput(cfg.Output, cmd.OutOrStdout()).PrintMessage("Logged out")
		},
	}
}
