package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/jacinta/internal/task"
	"github.com/felixgeelhaar/jacinta/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of task progress",
	Long: `Show every task with its job progress, refreshing on an interval.

Keys: r refreshes now, a toggles finished tasks, q quits.`,
	Example: `  jacinta watch
  jacinta watch --server http://localhost:8080 --interval 5s`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var watchInterval time.Duration

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "refresh interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	return tui.Watch(ctx, func(ctx context.Context) ([]*task.Task, error) {
		return fetchAll(ctx, b)
	}, watchInterval)
}
