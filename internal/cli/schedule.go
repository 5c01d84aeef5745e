package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/dataflows/internal/client"
)

// NewScheduleCmd создаёт группу команд для управления schedules.
func NewScheduleCmd(clientFn func() *client.Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage schedules",
	}

	cmd.AddCommand(
		newScheduleListCmd(clientFn, outputFn),
		newScheduleEnabledCmd(clientFn, outputFn, "enable", true),
		newScheduleEnabledCmd(clientFn, outputFn, "disable", false),
	)

	return cmd
}

func newScheduleListCmd(clientFn func() *client.Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			schedules, err := clientFn().ListSchedules(cmd.Context())
			if err != nil {
				return err
			}

			headers := []string{"FLOW", "CRON", "INTERVAL", "TIMEZONE", "ENABLED", "NEXT_DUE", "LAST_RUN"}
			rows := make([][]string, len(schedules))
			for i, s := range schedules {
				interval := ""
				if s.IntervalSec > 0 {
					interval = strconv.Itoa(s.IntervalSec) + "s"
				}
				rows[i] = []string{
					s.FlowName, s.CronExpr, interval, s.Timezone,
					strconv.FormatBool(s.Enabled), formatTime(s.NextDueAt), formatTime(s.LastRunAt),
				}
			}

			out.Print(headers, rows, schedules)
			return nil
		},
	}
}

func newScheduleEnabledCmd(clientFn func() *client.Client, outputFn func() *Output, use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " FLOW",
		Short: strings.ToUpper(use[:1]) + use[1:] + " the schedule of a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			schedule, err := clientFn().SetScheduleEnabled(cmd.Context(), args[0], enabled)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule %sd: %s", use, schedule.FlowName))
			return nil
		},
	}
}
