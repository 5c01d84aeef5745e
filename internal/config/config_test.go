package config

import (
	"errors"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(envMap(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Environment != DefaultEnvironment {
		t.Errorf("expected environment %s, got %s", DefaultEnvironment, cfg.Environment)
	}
	if cfg.APIPort != DefaultAPIPort {
		t.Errorf("expected port %s, got %s", DefaultAPIPort, cfg.APIPort)
	}
	if cfg.Scheduler.PollInterval != DefaultPollInterval {
		t.Errorf("expected poll interval %s, got %s", DefaultPollInterval, cfg.Scheduler.PollInterval)
	}
	if cfg.FeatureStore.ArchiveBucket != "" {
		t.Error("archive should be disabled by default")
	}
}

func TestLoadFrom_Values(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{
		"ENVIRONMENT":                    "production",
		"SNOWFLAKE_ANALYTICS_DATABASE":   "ANALYTICS",
		"SNOWFLAKE_ANALYTICS_DBT_SCHEMA": "DBT",
		"SCHEDULER_PROJECT":              "prefect-v2",
		"SCHEDULER_POLL_INTERVAL":        "30",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Analytics.Database != "ANALYTICS" || cfg.Analytics.DBTSchema != "DBT" {
		t.Errorf("unexpected analytics config: %+v", cfg.Analytics)
	}
	if cfg.Scheduler.Project != "prefect-v2" {
		t.Errorf("expected project prefect-v2, got %s", cfg.Scheduler.Project)
	}
	if cfg.Scheduler.PollInterval != 30*time.Second {
		t.Errorf("expected 30s, got %s", cfg.Scheduler.PollInterval)
	}
	if got := cfg.CandidateSetFeatureGroup(); got != "production-corpus-candidate-sets-v1" {
		t.Errorf("unexpected feature group: %s", got)
	}
}

func TestLoadFrom_PollInterval(t *testing.T) {
	tests := []struct {
		value   string
		want    time.Duration
		wantErr bool
	}{
		{value: "5", want: 5 * time.Second},
		{value: "1500ms", want: 1500 * time.Millisecond},
		{value: "0", wantErr: true},
		{value: "-1s", wantErr: true},
		{value: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg, err := LoadFrom(envMap(map[string]string{"SCHEDULER_POLL_INTERVAL": tt.value}))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Scheduler.PollInterval != tt.want {
				t.Errorf("expected %s, got %s", tt.want, cfg.Scheduler.PollInterval)
			}
		})
	}
}

func TestRequireWarehouse(t *testing.T) {
	cfg, _ := LoadFrom(envMap(map[string]string{
		"SNOWFLAKE_ACCOUNT": "acc",
		"SNOWFLAKE_USER":    "user",
	}))

	err := cfg.RequireWarehouse()
	if !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}

	cfg.Analytics = Analytics{Database: "ANALYTICS", DBTSchema: "DBT"}
	if err := cfg.RequireWarehouse(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestSchedulerIsLocal(t *testing.T) {
	tests := []struct {
		name   string
		apiURL string
		port   string
		want   bool
	}{
		{name: "default", apiURL: "", port: "", want: true},
		{name: "loopback", apiURL: "http://127.0.0.1:9090", port: "9090", want: true},
		{name: "other port", apiURL: "http://localhost:9090", port: "8080", want: false},
		{name: "external", apiURL: "https://prefect.example.com/api", port: "443", want: false},
		{name: "default http port", apiURL: "http://localhost", port: "80", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := map[string]string{}
			if tt.apiURL != "" {
				env["SCHEDULER_API_URL"] = tt.apiURL
			}
			if tt.port != "" {
				env["API_PORT"] = tt.port
			}
			cfg, err := LoadFrom(envMap(env))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := cfg.SchedulerIsLocal(); got != tt.want {
				t.Errorf("SchedulerIsLocal() = %v, want %v", got, tt.want)
			}
		})
	}
}
