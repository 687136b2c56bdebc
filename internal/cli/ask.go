package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var threadID string
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the feed agent a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.loadApp(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			result, err := application.Chat.Ask(cmd.Context(), threadID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if opts.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "thread: %s\n\n%s\n", result.ThreadID, result.Text)
			if len(result.TurnRecords) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "\n(%d records retrieved this turn, %d in thread)\n", len(result.TurnRecords), len(result.Records))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", "", "thread id to continue (a new one is generated when empty)")
	return cmd
}
