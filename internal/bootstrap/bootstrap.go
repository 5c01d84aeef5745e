// Package bootstrap собирает реестр flows с внешними зависимостями
// для процессов dataflows (сервис и CLI).
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/dataflows/internal/client"
	"github.com/shaiso/dataflows/internal/config"
	"github.com/shaiso/dataflows/internal/featurestore"
	"github.com/shaiso/dataflows/internal/flows"
	"github.com/shaiso/dataflows/internal/telemetry"
	"github.com/shaiso/dataflows/internal/warehouse"
)

// connectTimeout — таймаут подключения к Snowflake при старте.
const connectTimeout = 30 * time.Second

// Flows — реестр flows и открытые для него подключения.
type Flows struct {
	Registry *flows.Registry

	snowflake *warehouse.Snowflake
}

// Close закрывает подключения.
func (f *Flows) Close() error {
	if f.snowflake == nil {
		return nil
	}
	return f.snowflake.Close()
}

// NewFlows подключает внешние системы и собирает реестр.
//
// Snowflake подключается, только если задан SNOWFLAKE_ACCOUNT: без него
// реестр собирается, а шаги query падают с flows.ErrNotConfigured.
func NewFlows(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics, logger *slog.Logger) (*Flows, error) {
	result := &Flows{}

	deps := flows.Deps{
		Config:  cfg,
		Metrics: metrics,
		Trigger: client.New(client.Config{
			BaseURL:      cfg.Scheduler.APIURL,
			PollInterval: cfg.Scheduler.PollInterval,
			Logger:       logger,
		}),
	}

	if cfg.Snowflake.Account != "" {
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		sf, err := warehouse.NewSnowflake(connectCtx, cfg.Snowflake, logger)
		if err != nil {
			return nil, err
		}
		result.snowflake = sf
		deps.Warehouse = sf
		logger.Info("connected to snowflake", "account", cfg.Snowflake.Account, "warehouse", cfg.Snowflake.Warehouse)
	} else {
		logger.Warn("SNOWFLAKE_ACCOUNT is not set, warehouse queries are disabled")
	}

	store, err := featurestore.NewFromConfig(ctx, cfg.FeatureStore, logger)
	if err != nil {
		result.Close()
		return nil, err
	}
	deps.Store = store

	registry, err := flows.Default(deps)
	if err != nil {
		result.Close()
		return nil, fmt.Errorf("build flows registry: %w", err)
	}
	result.Registry = registry

	logger.Info("flows registered", "count", registry.Count(), "flows", registry.Names())

	if cfg.SchedulerIsLocal() {
		if missing := flows.MissingChildFlows(registry); len(missing) > 0 {
			logger.Warn("SCHEDULER_API_URL points at the local dataflows API, which does not register the orchestrated flows; "+
				flows.DBTOrchestrationFlow+" will fail until it is set to the external scheduler",
				"api_url", cfg.Scheduler.APIURL,
				"missing_flows", missing,
			)
		}
	}

	return result, nil
}
