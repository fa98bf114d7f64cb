package cli

import (
	"github.com/spf13/cobra"
)

func newClubCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "club",
		Short: "Club membership commands",
	}

	cmd.AddCommand(newClubCreateCmd())
	cmd.AddCommand(newClubJoinCmd())
	cmd.AddCommand(newClubMeCmd())

	return cmd
}

func newClubCreateCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a club and join it",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Club
			if err := client.Post(cmd.Context(), "/api/v1/clubs", map[string]string{"name": name}, &result); err != nil {
				return err
			}
			return NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Club name (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newClubJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <code>",
		Short: "Join a club by its join code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Club
			if err := client.Post(cmd.Context(), "/api/v1/clubs/join", map[string]string{"join_code": args[0]}, &result); err != nil {
				return err
			}
			return NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
		},
	}
}

func newClubMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show your club",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Club
			if err := client.Get(cmd.Context(), "/api/v1/clubs/me", &result); err != nil {
				return err
			}
			return NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
		},
	}
}
