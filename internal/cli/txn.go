package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newTxnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "txn",
		Short: "Ledger commands",
	}

	cmd.AddCommand(newTxnRecordCmd("buyin", "Record a buy-in"))
	cmd.AddCommand(newTxnRecordCmd("cashout", "Record a cash-out"))
	cmd.AddCommand(newTxnListCmd())

	return cmd
}

func newTxnRecordCmd(kind, short string) *cobra.Command {
	return &cobra.Command{
		Use:   kind + " <session-id> <player-id> <amount>",
		Short: short,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[2])
			}

			req := map[string]any{
				"player_id": args[1],
				"type":      kind,
				"amount":    amount,
			}
			var result Transaction
			if err := client.Post(cmd.Context(), sessionPath(args[0], "transactions"), req, &result); err != nil {
				return err
			}
			return NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
		},
	}
}

func newTxnListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <session-id>",
		Short: "List a session's ledger in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []Transaction
			if err := client.Get(cmd.Context(), sessionPath(args[0], "transactions"), &result); err != nil {
				return err
			}
			return NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
		},
	}
}
