// Package telemetry — логирование и метрики dataflows.
//
// logging.go настраивает slog из LOG_LEVEL и LOG_FORMAT; логи идут в stderr.
// metrics.go объявляет Prometheus метрики runs, tasks, scheduler и feature store.
// Метрики регистрируются в переданном Registerer, в тестах — в отдельном
// prometheus.Registry.
package telemetry
