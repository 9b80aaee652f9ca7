package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/jacinta/internal/errors"
	"github.com/felixgeelhaar/jacinta/internal/tui"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
	Long: `Create, inspect, cancel and retry tasks.

Task commands use the local store configured in the config file. With
--server they call the API of a running "jacinta serve" instead.`,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Example: `  jacinta task list
  jacinta task list --status current
  jacinta task list --server http://localhost:8080 --json`,
	Args: cobra.NoArgs,
	RunE: runTaskList,
}

var taskNewCmd = &cobra.Command{
	Use:   "new [description]",
	Short: "Create a pending task",
	Long: `Create a pending task. The description may be given with --description
or as arguments. When it is missing and a terminal is attached, an
interactive form asks for it. An empty title is derived from the first line
of the description.`,
	Example: `  jacinta task new "Research Go worker pools and write a summary"
  jacinta task new --title "Blog post" --description "Write a post about context cancellation"`,
	RunE: runTaskNew,
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a task and its jobs",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskCancelCmd = &cobra.Command{
	Use:     "cancel <id>",
	Aliases: []string{"rm"},
	Short:   "Cancel and remove a task",
	Args:    cobra.ExactArgs(1),
	RunE:    runTaskCancel,
}

var taskRetryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Return a failed or current task to pending",
	Long: `Return a failed or current task to pending so the next pass claims it
again. Completed jobs keep their results; attempts and the last error are
reset.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskRetry,
}

var (
	taskJSON        bool
	taskStatus      string
	taskTitle       string
	taskDescription string
	taskYes         bool
)

func init() {
	taskCmd.PersistentFlags().BoolVar(&taskJSON, "json", false, "output as JSON")
	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "only list tasks with this status (pending, current, completed, failed)")
	taskNewCmd.Flags().StringVar(&taskTitle, "title", "", "task title")
	taskNewCmd.Flags().StringVarP(&taskDescription, "description", "d", "", "task description")
	taskCancelCmd.Flags().BoolVarP(&taskYes, "yes", "y", false, "do not ask for confirmation")

	taskCmd.AddCommand(taskListCmd, taskNewCmd, taskShowCmd, taskCancelCmd, taskRetryCmd)
	rootCmd.AddCommand(taskCmd)
}

func runTaskList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	summaries, err := b.List(ctx, taskStatus)
	if err != nil {
		return err
	}
	if taskJSON {
		return writeJSON(cmd.OutOrStdout(), summaries)
	}
	fmt.Fprintln(cmd.OutOrStdout(), tui.RenderSummaries(tui.DefaultStyles(), summaries))
	return nil
}

func runTaskNew(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	in := tui.TaskInput{Title: taskTitle, Description: taskDescription}
	if in.Description == "" {
		in.Description = strings.Join(args, " ")
	}
	if strings.TrimSpace(in.Description) == "" {
		if !interactive() {
			return errors.New(errors.ErrCodeTaskInvalid, "description is required").
				WithSuggestion(`Pass it as an argument: jacinta task new "describe the task"`)
		}
		var err error
		if in, err = tui.PromptTask(ctx, in); err != nil {
			return err
		}
	}

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	summary, err := b.Create(ctx, in.Title, in.Description)
	if err != nil {
		return err
	}
	if taskJSON {
		return writeJSON(cmd.OutOrStdout(), summary)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created task %s: %s\n", summary.ID, summary.Title)
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	t, err := b.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if taskJSON {
		return writeJSON(cmd.OutOrStdout(), t)
	}
	fmt.Fprintln(cmd.OutOrStdout(), tui.RenderTask(tui.DefaultStyles(), t))
	return nil
}

func runTaskCancel(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := args[0]

	if !taskYes && interactive() {
		ok, err := tui.Confirm(ctx, fmt.Sprintf("Cancel task %s? Its jobs and results are removed.", id), false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	msg, err := b.Cancel(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

func runTaskRetry(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	t, err := b.Retry(ctx, args[0])
	if err != nil {
		return err
	}
	if taskJSON {
		return writeJSON(cmd.OutOrStdout(), t)
	}
	done, total := t.Progress()
	fmt.Fprintf(cmd.OutOrStdout(), "Task %s is pending again (%d/%d jobs done)\n", t.ID, done, total)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
