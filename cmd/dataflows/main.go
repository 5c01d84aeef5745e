// dataflows — инструмент командной строки для flows, runs и schedules.
//
// Использование:
//
//	dataflows [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	flow      Список flows и локальный запуск (flow exec)
//	run       Управление runs
//	schedule  Управление schedules
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/dataflows/internal/bootstrap"
	"github.com/shaiso/dataflows/internal/cli"
	"github.com/shaiso/dataflows/internal/client"
	"github.com/shaiso/dataflows/internal/config"
	"github.com/shaiso/dataflows/internal/domain"
	"github.com/shaiso/dataflows/internal/mq"
	"github.com/shaiso/dataflows/internal/runner"
	"github.com/shaiso/dataflows/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "dataflows",
		Short:         "dataflows CLI — candidate set and dbt flows",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr("SCHEDULER_API_URL", config.DefaultAPIURL), "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *client.Client {
		return client.New(client.Config{BaseURL: apiURL, Logger: telemetry.SetupLogger()})
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewFlowCmd(clientFn, outputFn, execFlow),
		cli.NewRunCmd(clientFn, outputFn, enqueueFlow),
		cli.NewScheduleCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// execFlow выполняет flow в процессе CLI, без записи в историю runs.
func execFlow(ctx context.Context, flowName string, params map[string]string) (*domain.Run, error) {
	logger := telemetry.SetupLogger()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	fl, err := bootstrap.NewFlows(ctx, cfg, nil, logger)
	if err != nil {
		return nil, err
	}
	defer fl.Close()

	r := runner.New(runner.Config{Flows: fl.Registry, Logger: logger})
	return r.RunFlow(ctx, flowName, domain.TriggerManual, params)
}

// enqueueFlow публикует flow.trigger в RabbitMQ.
func enqueueFlow(ctx context.Context, flowName string, params map[string]string, key string) error {
	logger := telemetry.SetupLogger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	conn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	defer conn.Close()

	if err := mq.SetupTopology(ctx, conn); err != nil {
		return fmt.Errorf("setup topology: %w", err)
	}

	return mq.NewPublisher(conn, logger).PublishFlowTrigger(ctx, mq.FlowTriggerPayload{
		FlowName:       flowName,
		Params:         params,
		IdempotencyKey: key,
	})
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
