// dataflows-scheduler — сервис, выполняющий flows.
//
// В одном процессе работают:
//   - HTTP API (/api/v1/...), /healthz и /metrics;
//   - scheduler: запускает flows по расписанию, лидер выбирается
//     через pg advisory lock (несколько реплик безопасны);
//   - consumer очереди flows.trigger (если задан RABBITMQ_URL);
//   - runner, выполняющий runs в фоне.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/dataflows/internal/api"
	"github.com/shaiso/dataflows/internal/bootstrap"
	"github.com/shaiso/dataflows/internal/config"
	"github.com/shaiso/dataflows/internal/mq"
	"github.com/shaiso/dataflows/internal/repo"
	"github.com/shaiso/dataflows/internal/runner"
	"github.com/shaiso/dataflows/internal/scheduler"
	"github.com/shaiso/dataflows/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting dataflows-scheduler")

	if err := run(logger); err != nil {
		logger.Error("dataflows-scheduler failed", "error", err)
		os.Exit(1)
	}

	logger.Info("stopped")
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	runRepo := repo.NewRunRepo(pool)
	taskRepo := repo.NewTaskRepo(pool)
	scheduleRepo := repo.NewScheduleRepo(pool)

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	fl, err := bootstrap.NewFlows(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer fl.Close()

	// RabbitMQ необязателен: без него нет очереди flows.trigger и событий run.completed
	var (
		events runner.EventPublisher
		conn   *mq.Connection
	)
	if cfg.RabbitMQURL != "" {
		conn, err = mq.NewConnection(cfg.RabbitMQURL, logger)
		if err != nil {
			return fmt.Errorf("connect to rabbitmq: %w", err)
		}
		defer conn.Close()

		if err := mq.SetupTopology(ctx, conn); err != nil {
			return fmt.Errorf("setup topology: %w", err)
		}
		logger.Info("rabbitmq topology ready", "topology", mq.TopologyInfo())

		events = mq.NewPublisher(conn, logger)
	} else {
		logger.Warn("RABBITMQ_URL is not set, message queue is disabled")
	}

	flowRunner := runner.New(runner.Config{
		Flows:   fl.Registry,
		Runs:    runRepo,
		Tasks:   taskRepo,
		Events:  events,
		Metrics: metrics,
		Logger:  logger,
	})

	logger.Info("runner ready", "instance", flowRunner.Instance())

	// Runs упавших реплик завершает лидер по истечении heartbeat
	sched := scheduler.New(scheduler.Config{
		Schedules:  scheduleRepo,
		Runner:     flowRunner,
		Runs:       runRepo,
		StaleAfter: scheduler.DefaultStaleAfter,
		Metrics:    metrics,
		Logger:     logger,
	})
	if err := sched.Sync(ctx, fl.Registry); err != nil {
		return err
	}

	handler := api.NewHandler(api.Config{
		Flows:     fl.Registry,
		Runner:    flowRunner,
		Runs:      runRepo,
		Tasks:     taskRepo,
		Schedules: scheduleRepo,
		Project:   cfg.Scheduler.Project,
		Logger:    logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		sched.Run(gctx, repo.NewAdvisoryLock(pool, repo.SchedulerLockKey), scheduler.DefaultTickInterval)
		return nil
	})

	g.Go(func() error {
		flowRunner.Heartbeat(gctx, runner.DefaultHeartbeatInterval)
		return nil
	})

	if conn != nil {
		consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
			Queue:    mq.QueueFlowsTrigger,
			Handler:  mq.NewFlowTriggerHandler(flowRunner, logger),
			Prefetch: 4,
		})
		g.Go(func() error {
			if err := consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	// Ожидаем сигнал завершения или падение одной из горутин
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		shutdown(shutdownCtx, logger, flowRunner, server)
		return nil
	})

	return g.Wait()
}

// shutdowner — компонент с graceful shutdown.
type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdown останавливает runner, затем HTTP сервер.
// Пока runs дорабатывают, API отвечает на опрос статусов под-flows,
// а новые runs получают 503.
func shutdown(ctx context.Context, logger *slog.Logger, flowRunner, server shutdowner) {
	if err := flowRunner.Shutdown(ctx); err != nil {
		logger.Error("runner shutdown error", "error", err)
	}
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
}
