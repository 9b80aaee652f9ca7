// Package cmd implements the jacinta command line.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "jacinta",
	Short: "Task runner that plans work with a model and executes it job by job",
	Long: `jacinta accepts free-form tasks, asks a language model to decompose each
task into research, code and ask_user jobs, and executes those jobs one at a
time. Progress is persisted after every job, so an interrupted task resumes
where it stopped on the next pass.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	configPath string
	logLevel   string
	logFormat  string
	serverURL  string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is .jacinta/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (overrides config)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "URL of a running `jacinta serve`; task commands use its API instead of the local store")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx available to every
// subcommand through cmd.Context().
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
