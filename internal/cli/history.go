package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iago/feed-agent-back/internal/domain"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var threadID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the persisted messages of a thread",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.loadApp(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			state, err := application.Chat.History(cmd.Context(), threadID)
			if err != nil {
				return err
			}
			if opts.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), state)
			}
			for _, message := range state.Messages {
				fmt.Fprintln(cmd.OutOrStdout(), formatMessage(message))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d turns, %d records\n", state.Turns, len(state.Records))
			return nil
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", "", "thread id")
	_ = cmd.MarkFlagRequired("thread")
	return cmd
}

func formatMessage(message domain.Message) string {
	switch {
	case len(message.ToolCalls) > 0:
		names := make([]string, 0, len(message.ToolCalls))
		for _, call := range message.ToolCalls {
			names = append(names, fmt.Sprintf("%s(%s)", call.Name, string(call.Arguments)))
		}
		return fmt.Sprintf("[%s] calls %v", message.Role, names)
	case message.Role == domain.RoleTool:
		return fmt.Sprintf("[tool %s] %s", message.Name, message.Content)
	default:
		return fmt.Sprintf("[%s] %s", message.Role, message.Content)
	}
}
