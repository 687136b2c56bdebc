// Package cli implements the feedctl command line tool.
package cli

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iago/feed-agent-back/internal/app"
	"github.com/iago/feed-agent-back/internal/config"
	"github.com/iago/feed-agent-back/internal/logging"
)

type rootOptions struct {
	envFiles []string
	output   string
	logLevel string
}

// NewRootCmd returns the root command for feedctl.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "feedctl",
		Short:         "Ask questions about feed metrics and manage feed data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env", ".env.local"}, "dotenv files to load")
	rootCmd.PersistentFlags().StringVar(&opts.output, "output", "text", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	rootCmd.AddCommand(newAskCmd(opts))
	rootCmd.AddCommand(newSeedCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))

	return rootCmd
}

func (o *rootOptions) loadApp(cmd *cobra.Command) (*app.App, error) {
	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return nil, err
	}
	cfg := config.Load()
	logger := logging.New("feedctl", o.logLevel)
	logger.SetOutput(cmd.ErrOrStderr())
	return app.New(cmd.Context(), cfg, logger)
}

func (o *rootOptions) jsonOutput() bool {
	return strings.EqualFold(o.output, "json")
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
