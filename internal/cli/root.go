// Package cli implements the wiki command line interface.
package cli

import (
	"log/slog"

	"github.com/me/wikigo/internal/logging"
	"github.com/me/wikigo/pkg/confluence"
	"github.com/spf13/cobra"
)

var (
	flagBaseURL   string
	flagUser      string
	flagToken     string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *confluence.Client
)

// NewRootCmd creates the root cobra command for the wiki CLI.
func NewRootCmd() *cobra.Command {
	envCfg := confluence.ConfigFromEnv()

	root := &cobra.Command{
		Use:   "wiki",
		Short: "wiki — search and fetch Confluence content",
		Long:  "wiki searches a Confluence instance with CQL and performs raw authenticated API requests.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.New(logging.Options{Level: flagLogLevel, Format: flagLogFormat})

			cfg := confluence.DefaultConfig().
				WithBaseURL(flagBaseURL).
				WithCredentials(flagUser, flagToken)
			client = confluence.NewClient(cfg, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagBaseURL, "base-url", envCfg.BaseURL, "Confluence base URL (or CONFLUENCE_URL env)")
	root.PersistentFlags().StringVar(&flagUser, "user", envCfg.Username, "Username for Basic auth (or CONFLUENCE_USER env)")
	root.PersistentFlags().StringVar(&flagToken, "token", envCfg.APIToken, "API token for Basic auth (or CONFLUENCE_TOKEN env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newSearchCmd(),
		newGetCmd(),
		newSpacesCmd(),
	)

	return root
}
