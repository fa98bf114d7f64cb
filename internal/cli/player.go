package cli

import (
	"net/url"

	"github.com/spf13/cobra"
)

func newPlayerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "player",
		Short: "Session roster commands",
	}

	cmd.AddCommand(newPlayerAddCmd())
	cmd.AddCommand(newPlayerRemoveCmd())

	return cmd
}

func newPlayerAddCmd() *cobra.Command {
	var (
		name string
		self bool
	)

	cmd := &cobra.Command{
		Use:   "add <session-id>",
		Short: "Seat a player in a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{"name": name}
			if self {
				req["link_self"] = true
			}

			var result Player
			if err := client.Post(cmd.Context(), sessionPath(args[0], "players"), req, &result); err != nil {
				return err
			}
			return NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Player name (required)")
	cmd.Flags().BoolVar(&self, "self", false, "Link the player to your own account")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newPlayerRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <session-id> <player-id>",
		Short: "Remove a player with no recorded transactions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Delete(cmd.Context(), sessionPath(args[0], "players", url.PathEscape(args[1]))); err != nil {
				return err
			}
			return NewOutput(cfg.Output, cmd.OutOrStdout()).PrintMessage("Player removed")
		},
	}
}
