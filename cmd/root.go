package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/mailworker/internal/config"
)

// NewRootCmd builds the command tree. cfg is shared by every subcommand and
// may be adjusted by their flags.
func NewRootCmd(cfg *config.AppConfig) *cobra.Command {
	root := &cobra.Command{
		Use:   "mailworker",
		Short: "Asynchronous email notification worker",
		Long: `mailworker consumes email send requests from Redis Streams or Kafka,
delivers them through SMTP, Amazon SES or the console, and reports each
status change on a separate channel.`,
		SilenceUsage: true,
	}
	root.AddCommand(NewWorkerCmd(cfg))
	root.AddCommand(NewSendCmd(cfg))
	root.AddCommand(NewVersionCmd())
	return root
}

// Execute loads configuration from the environment and runs the root command.
func Execute() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := NewRootCmd(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}
