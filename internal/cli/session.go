package cli

import (
	"net/url"

	"github.com/spf13/cobra"
)

func sessionPath(id string, parts ...string) string {
	p := "/api/v1/sessions/" + url.PathEscape(id)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Session commands",
	}

	cmd.AddCommand(newSessionCreateCmd())
	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionGetCmd())
	cmd.AddCommand(newSessionStageCmd())
	cmd.AddCommand(newSessionTransitionCmd("start-chip-entry", "Move the session into chip entry", "chip-entry"))
	cmd.AddCommand(newSessionTransitionCmd("finalize", "Lock the session's settlement", "finalize"))

	return cmd
}

func newSessionCreateCmd() *cobra.Command {
	var name, currency string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session in your club",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"name": name}
			if currency != "" {
				req["currency"] = currency
			}

			var result Session
			if err := client.Post(cmd.Context(), "/api/v1/sessions", req, &result); err != nil {
				return err
			}
			return NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Session name (required)")
	cmd.Flags().StringVar(&currency, "currency", "", "Currency: USD, ILS or EUR (default: USD)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newSessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your club's sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []Session
			if err := client.Get(cmd.Context(), "/api/v1/sessions", &result); err != nil {
				return err
			}
			return NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
		},
	}
}

func newSessionGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <session-id>",
		Short: "Show a session with its roster, totals and stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result SessionDetail
			if err := client.Get(cmd.Context(), sessionPath(args[0]), &result); err != nil {
				return err
			}
			return NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
		},
	}
}

func newSessionStageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stage <session-id>",
		Short: "Show the derived stage and transition gates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result StageResult
			if err := client.Get(cmd.Context(), sessionPath(args[0], "stage"), &result); err != nil {
				return err
			}
			return NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
		},
	}
}

// newSessionTransitionCmd builds a command that posts a stage transition.
// A gate denial comes back as a GATE_DENIED error carrying the reason.
func newSessionTransitionCmd(use, short, endpoint string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <session-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result TransitionResult
			if err := client.Post(cmd.Context(), sessionPath(args[0], endpoint), nil, &result); err != nil {
				return err
			}
			return NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
		},
	}
}
