package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/dataflows/internal/client"
	"github.com/shaiso/dataflows/internal/domain"
)

// ExecFunc выполняет flow синхронно в процессе CLI.
type ExecFunc func(ctx context.Context, flowName string, params map[string]string) (*domain.Run, error)

// NewFlowCmd создаёт группу команд для flows.
func NewFlowCmd(clientFn func() *client.Client, outputFn func() *Output, execFn ExecFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Inspect and execute flows",
	}

	cmd.AddCommand(
		newFlowListCmd(clientFn, outputFn),
		newFlowShowCmd(clientFn, outputFn),
		newFlowExecCmd(outputFn, execFn),
	)

	return cmd
}

func scheduleString(s *domain.ScheduleDef) string {
	switch {
	case s == nil:
		return ""
	case s.CronExpr != "":
		return s.CronExpr
	case s.IntervalSec > 0:
		return "every " + strconv.Itoa(s.IntervalSec) + "s"
	}
	return ""
}

func newFlowListCmd(clientFn func() *client.Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered flows",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			specs, err := clientFn().ListFlows(cmd.Context())
			if err != nil {
				return err
			}

			headers := []string{"NAME", "SCHEDULE", "STEPS"}
			rows := make([][]string, len(specs))
			for i, s := range specs {
				rows[i] = []string{s.Name, scheduleString(s.Schedule), strconv.Itoa(len(s.Steps))}
			}

			out.Print(headers, rows, specs)
			return nil
		},
	}
}

func newFlowShowCmd(clientFn func() *client.Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show flow steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			spec, err := clientFn().GetFlow(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			headers := []string{"STEP_ID", "TYPE", "DEPENDS_ON", "NAME"}
			rows := make([][]string, len(spec.Steps))
			for i, s := range spec.Steps {
				rows[i] = []string{s.ID, s.Type, strings.Join(s.DependsOn, ","), s.Name}
			}

			out.Print(headers, rows, spec)
			return nil
		},
	}
}

func newFlowExecCmd(outputFn func() *Output, execFn ExecFunc) *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "exec NAME",
		Short: "Execute a flow locally and wait for it to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			p, err := parseParams(params)
			if err != nil {
				return err
			}

			run, err := execFn(cmd.Context(), args[0], p)
			if run == nil {
				return err
			}

			out.Print(
				[]string{"ID", "FLOW", "STATUS", "DURATION", "ERROR"},
				[][]string{{run.ID.String(), run.FlowName, string(run.Status), run.Duration().String(), run.Error}},
				run,
			)
			if err != nil {
				return fmt.Errorf("flow %q: %w", run.FlowName, err)
			}

			out.Success(fmt.Sprintf("Flow finished: %s", run.Status))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&params, "param", nil, "Flow parameter as KEY=VALUE (repeatable)")

	return cmd
}
