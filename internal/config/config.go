// Package config собирает конфигурацию dataflows из переменных окружения.
//
// Конфигурация читается один раз при старте процесса и передаётся
// явно в конструкторы flows и сервисов. Глобального состояния нет.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// ErrMissing — не задана обязательная переменная окружения.
var ErrMissing = errors.New("required environment variable is not set")

// Значения по умолчанию.
const (
	DefaultEnvironment  = "development"
	DefaultProject      = "dataflows"
	DefaultAPIPort      = "8080"
	DefaultAPIURL       = "http://localhost:8080"
	DefaultPollInterval = 5 * time.Second
	DefaultRegion       = "us-east-1"

	// candidateSetGroupSuffix — суффикс feature group для candidate sets.
	candidateSetGroupSuffix = "-corpus-candidate-sets-v1"
)

// Config — конфигурация процесса.
type Config struct {
	// Environment — тег окружения (ENVIRONMENT): "development", "production".
	// Входит в имя feature group.
	Environment string

	Analytics    Analytics
	Snowflake    Snowflake
	FeatureStore FeatureStore
	Scheduler    Scheduler

	// DBURL — строка подключения к PostgreSQL (DB_URL).
	DBURL string

	// RabbitMQURL — адрес брокера (RABBITMQ_URL).
	RabbitMQURL string

	// APIPort — порт HTTP API (API_PORT).
	APIPort string
}

// Analytics — расположение витрин dbt в хранилище.
type Analytics struct {
	// Database — SNOWFLAKE_ANALYTICS_DATABASE.
	Database string

	// DBTSchema — SNOWFLAKE_ANALYTICS_DBT_SCHEMA.
	DBTSchema string
}

// Snowflake — параметры подключения к хранилищу.
type Snowflake struct {
	Account   string
	User      string
	Password  string
	Role      string
	Warehouse string
}

// FeatureStore — параметры записи в feature store.
type FeatureStore struct {
	// Region — AWS регион (AWS_REGION).
	Region string

	// ArchiveBucket — S3 bucket для архивных копий записей (FEATURE_ARCHIVE_BUCKET).
	// Пусто — архив выключен.
	ArchiveBucket string

	// ArchivePrefix — префикс ключей в архиве (FEATURE_ARCHIVE_PREFIX).
	ArchivePrefix string
}

// Scheduler — параметры внешнего планировщика, в котором запускаются под-flows.
type Scheduler struct {
	// Project — проект (namespace) для запуска flows (SCHEDULER_PROJECT).
	Project string

	// APIURL — адрес HTTP API планировщика (SCHEDULER_API_URL).
	APIURL string

	// PollInterval — период опроса статуса run при ожидании (SCHEDULER_POLL_INTERVAL).
	PollInterval time.Duration
}

// Load читает конфигурацию из окружения процесса.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom читает конфигурацию через getenv.
func LoadFrom(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	poll := DefaultPollInterval
	if v := getenv("SCHEDULER_POLL_INTERVAL"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SCHEDULER_POLL_INTERVAL: %w", err)
		}
		poll = d
	}

	cfg := &Config{
		Environment: get("ENVIRONMENT", DefaultEnvironment),
		Analytics: Analytics{
			Database:  getenv("SNOWFLAKE_ANALYTICS_DATABASE"),
			DBTSchema: getenv("SNOWFLAKE_ANALYTICS_DBT_SCHEMA"),
		},
		Snowflake: Snowflake{
			Account:   getenv("SNOWFLAKE_ACCOUNT"),
			User:      getenv("SNOWFLAKE_USER"),
			Password:  getenv("SNOWFLAKE_PASSWORD"),
			Role:      getenv("SNOWFLAKE_ROLE"),
			Warehouse: getenv("SNOWFLAKE_WAREHOUSE"),
		},
		FeatureStore: FeatureStore{
			Region:        get("AWS_REGION", DefaultRegion),
			ArchiveBucket: getenv("FEATURE_ARCHIVE_BUCKET"),
			ArchivePrefix: get("FEATURE_ARCHIVE_PREFIX", "candidate-sets"),
		},
		Scheduler: Scheduler{
			Project:      get("SCHEDULER_PROJECT", DefaultProject),
			APIURL:       get("SCHEDULER_API_URL", DefaultAPIURL),
			PollInterval: poll,
		},
		DBURL:       getenv("DB_URL"),
		RabbitMQURL: getenv("RABBITMQ_URL"),
		APIPort:     get("API_PORT", DefaultAPIPort),
	}

	return cfg, nil
}

// parseDuration принимает Go duration ("5s") или число секунд ("5").
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("must be positive, got %d", secs)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", v)
	}
	return d, nil
}

// CandidateSetFeatureGroup возвращает имя feature group для candidate sets
// в текущем окружении.
func (c *Config) CandidateSetFeatureGroup() string {
	return c.Environment + candidateSetGroupSuffix
}

// RequireWarehouse проверяет, что заданы параметры хранилища.
func (c *Config) RequireWarehouse() error {
	required := []struct{ key, value string }{
		{"SNOWFLAKE_ACCOUNT", c.Snowflake.Account},
		{"SNOWFLAKE_USER", c.Snowflake.User},
		{"SNOWFLAKE_ANALYTICS_DATABASE", c.Analytics.Database},
		{"SNOWFLAKE_ANALYTICS_DBT_SCHEMA", c.Analytics.DBTSchema},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s", ErrMissing, r.key)
		}
	}
	return nil
}

// SchedulerIsLocal сообщает, указывает ли SCHEDULER_API_URL на API этого
// же процесса (localhost и порт API_PORT).
func (c *Config) SchedulerIsLocal() bool {
	u, err := url.Parse(c.Scheduler.APIURL)
	if err != nil {
		return false
	}

	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1", "":
	default:
		return false
	}

	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return port == c.APIPort
}

// RequireDB проверяет, что задан DB_URL.
func (c *Config) RequireDB() error {
	if c.DBURL == "" {
		return fmt.Errorf("%w: DB_URL", ErrMissing)
	}
	return nil
}
