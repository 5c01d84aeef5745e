package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/dataflows/internal/client"
	"github.com/shaiso/dataflows/internal/domain"
)

// EnqueueFunc ставит запуск flow в очередь брокера.
type EnqueueFunc func(ctx context.Context, flowName string, params map[string]string, idempotencyKey string) error

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(clientFn func() *client.Client, outputFn func() *Output, enqueueFn EnqueueFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunStartCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunTasksCmd(clientFn, outputFn),
		newRunEnqueueCmd(outputFn, enqueueFn),
	)

	return cmd
}

var runHeaders = []string{"ID", "FLOW", "STATUS", "TRIGGER", "STARTED", "FINISHED"}

func runRow(r domain.Run) []string {
	return []string{
		r.ID.String(), r.FlowName, string(r.Status), string(r.Trigger),
		formatTime(r.StartedAt), formatTime(r.FinishedAt),
	}
}

func newRunListCmd(clientFn func() *client.Client, outputFn func() *Output) *cobra.Command {
	var opts client.ListRunsOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			runs, err := clientFn().ListRuns(cmd.Context(), opts)
			if err != nil {
				return err
			}

			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = runRow(r)
			}

			out.Print(runHeaders, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.FlowName, "flow", "", "Filter by flow name")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED, CANCELLED)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Number of results to skip")

	return cmd
}

func newRunStartCmd(clientFn func() *client.Client, outputFn func() *Output) *cobra.Command {
	var params []string
	var req client.CreateRunRequest
	var wait bool

	cmd := &cobra.Command{
		Use:   "start NAME",
		Short: "Start a flow run on the scheduler",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := clientFn()
			out := outputFn()

			var err error
			if req.Params, err = parseParams(params); err != nil {
				return err
			}

			run, err := c.CreateRun(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Run started: %s", run.ID))

			if wait {
				result, err := c.Await(cmd.Context(), domain.RunHandle{RunID: run.ID, FlowName: run.FlowName})
				if err != nil {
					return err
				}
				out.Success(fmt.Sprintf("Run finished: %s", result.Status))

				if run, err = c.GetRun(cmd.Context(), run.ID); err != nil {
					return err
				}
			}

			out.Print(runHeaders, [][]string{runRow(*run)}, run)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&params, "param", nil, "Flow parameter as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&req.Project, "project", "", "Project to run the flow in")
	cmd.Flags().StringVar(&req.IdempotencyKey, "idempotency-key", "", "Return the existing run for a repeated key")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait until the run finishes")

	return cmd
}

func newRunShowCmd(clientFn func() *client.Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id: %w", err)
			}

			run, err := clientFn().GetRun(cmd.Context(), id)
			if err != nil {
				return err
			}

			out.Print(
				append(runHeaders, "ERROR"),
				[][]string{append(runRow(*run), run.Error)},
				run,
			)
			return nil
		},
	}
}

func newRunTasksCmd(clientFn func() *client.Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks RUN_ID",
		Short: "List tasks in a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id: %w", err)
			}

			tasks, err := clientFn().ListTasks(cmd.Context(), id)
			if err != nil {
				return err
			}

			headers := []string{"STEP_ID", "TYPE", "STATUS", "ATTEMPT", "DURATION", "ERROR"}
			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = []string{t.StepID, t.Type, string(t.Status), strconv.Itoa(t.Attempt), t.Duration().String(), t.Error}
			}

			out.Print(headers, rows, tasks)
			return nil
		},
	}
}

func newRunEnqueueCmd(outputFn func() *Output, enqueueFn EnqueueFunc) *cobra.Command {
	var params []string
	var key string

	cmd := &cobra.Command{
		Use:   "enqueue NAME",
		Short: "Publish a flow trigger to the message broker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			p, err := parseParams(params)
			if err != nil {
				return err
			}

			if err := enqueueFn(cmd.Context(), args[0], p, key); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow trigger published: %s", args[0]))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&params, "param", nil, "Flow parameter as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "Idempotency key for the run")

	return cmd
}
