package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/chainkit/errors"
)

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc"}
		cfg.ApplyDefaults()
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if !cfg.Debug {
			t.Error("expected debug=true for development")
		}
		if cfg.Logging.ServiceName != "svc" {
			t.Errorf("expected logging service name 'svc', got %q", cfg.Logging.ServiceName)
		}
	})

	t.Run("production keeps debug false", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr string
	}{
		{"valid", ServiceConfig{Name: "svc", Environment: "staging"}, ""},
		{"missing name", ServiceConfig{Environment: "production"}, "config.name is required"},
		{"invalid environment", ServiceConfig{Name: "svc", Environment: "qa"}, "config.environment must be one of"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.Logging.ApplyDefaults()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{ServiceConfig: ServiceConfig{Name: "chainrun", Version: "2.0.0"}}
	cfg.Tracing.Enabled = true
	cfg.ApplyDefaults()

	if cfg.Stream.HighWaterMark != DefaultHighWaterMark {
		t.Errorf("expected high water mark %d, got %d", DefaultHighWaterMark, cfg.Stream.HighWaterMark)
	}
	if cfg.Tracing.ServiceName != "chainrun" || cfg.Tracing.ServiceVersion != "2.0.0" {
		t.Errorf("tracing identity not propagated: %+v", cfg.Tracing)
	}
	if cfg.Tracing.SampleRate != 1.0 {
		t.Errorf("expected sample rate 1.0, got %v", cfg.Tracing.SampleRate)
	}
	if cfg.Metrics.Environment != "development" {
		t.Errorf("expected metrics environment development, got %q", cfg.Metrics.Environment)
	}
	if cfg.Metrics.Interval != 15*time.Second {
		t.Errorf("expected 15s interval, got %v", cfg.Metrics.Interval)
	}
}

func validConfig() Config {
	cfg := Config{ServiceConfig: ServiceConfig{Name: "chainrun"}}
	cfg.ApplyDefaults()
	return cfg
}

func TestConfigValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		cfg := validConfig()
		if err := cfg.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("negative high water mark", func(t *testing.T) {
		cfg := validConfig()
		cfg.Stream.HighWaterMark = -1
		err := cfg.Validate()
		if !errors.IsCode(err, errors.ErrCodeInvalidConfig) {
			t.Fatalf("expected INVALID_CONFIG, got %v", err)
		}
		if !strings.Contains(err.Error(), "stream.high_water_mark") {
			t.Errorf("expected field path in %q", err.Error())
		}
	})

	t.Run("sample rate out of range", func(t *testing.T) {
		cfg := validConfig()
		cfg.Tracing.SampleRate = 2
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("enabled tracing needs endpoint", func(t *testing.T) {
		cfg := validConfig()
		cfg.Tracing.Enabled = true
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "tracing.endpoint: is required") {
			t.Fatalf("expected endpoint error, got %v", err)
		}
		cfg.Tracing.Endpoint = "localhost:4318"
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("stdout exporter needs no endpoint", func(t *testing.T) {
		cfg := validConfig()
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = "stdout"
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		cfg.Tracing.Exporter = "zipkin"
		if err := cfg.Validate(); err == nil {
			t.Error("expected unknown exporter to fail")
		}
	})

	t.Run("bad endpoint", func(t *testing.T) {
		cfg := validConfig()
		cfg.Metrics.Endpoint = "not an endpoint"
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestLoadWithYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := `
name: chainrun
environment: staging
logging:
  level: debug
  format: json
stream:
  high_water_mark: 4
pipeline:
  file: pipelines.yml
  name: squares
tracing:
  enabled: true
  endpoint: collector:4318
  sample_rate: 0.5
metrics:
  interval: 5s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load("chainrun-test", WithConfigFile(path), WithEnvFile(filepath.Join(dir, "none.env")))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Name != "chainrun" || cfg.Environment != "staging" {
		t.Errorf("unexpected service config %+v", cfg.ServiceConfig)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging config %+v", cfg.Logging)
	}
	if cfg.Stream.HighWaterMark != 4 {
		t.Errorf("expected high water mark 4, got %d", cfg.Stream.HighWaterMark)
	}
	if cfg.Pipeline.File != "pipelines.yml" || cfg.Pipeline.Name != "squares" {
		t.Errorf("unexpected pipeline config %+v", cfg.Pipeline)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Endpoint != "collector:4318" || cfg.Tracing.SampleRate != 0.5 {
		t.Errorf("unexpected tracing config %+v", cfg.Tracing)
	}
	if cfg.Metrics.Interval != 5*time.Second {
		t.Errorf("expected 5s, got %v", cfg.Metrics.Interval)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CHAINTEST_STREAM_HIGH_WATER_MARK", "32")
	t.Setenv("CHAINTEST_NAME", "from-env")

	cfg, err := Load("chaintest", WithFileSystem(&mockFS{}))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Stream.HighWaterMark != 32 {
		t.Errorf("expected 32 from env, got %d", cfg.Stream.HighWaterMark)
	}
	if cfg.Name != "from-env" {
		t.Errorf("expected name from env, got %q", cfg.Name)
	}
}

func TestLoadMissingFileUsesServiceName(t *testing.T) {
	cfg, err := Load("nonexistent-service", WithFileSystem(&mockFS{}))
	if err != nil {
		t.Fatalf("expected Load to succeed with no files, got %v", err)
	}
	if cfg.Name != "nonexistent-service" {
		t.Errorf("expected service name fallback, got %q", cfg.Name)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("name: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	var cfg Config
	if err := LoadConfig("svc", &cfg, WithConfigFile(path)); err == nil {
		t.Fatal("expected parse error")
	}
}

type mockFS struct {
	files  map[string]bool
	loaded []string
}

func (m *mockFS) Exists(path string) bool { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error {
	m.loaded = append(m.loaded, path)
	return nil
}

func TestResolverSearchOrder(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/chainrun/config.yml": true,
		"./config.yml":              true,
		"./.env":                    true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("chainrun", LoaderConfig{})
	if files.ConfigFile != "./cmd/chainrun/config.yml" {
		t.Errorf("expected cmd config first, got %q", files.ConfigFile)
	}
	if files.EnvFile != "./.env" {
		t.Errorf("expected ./.env, got %q", files.EnvFile)
	}
}

func TestResolverExplicitPaths(t *testing.T) {
	resolver := &Resolver{FileSystem: &mockFS{}}
	files := resolver.ResolveFiles("svc", LoaderConfig{ConfigFile: "/etc/c.yml", EnvFile: "/etc/.env"})
	if files.ConfigFile != "/etc/c.yml" || files.EnvFile != "/etc/.env" {
		t.Errorf("explicit paths not kept: %+v", files)
	}
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	fs := &mockFS{files: map[string]bool{"./.env": true}}
	var cfg Config
	if err := LoadConfig("svc", &cfg, WithFileSystem(fs)); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(fs.loaded, []string{"./.env"}) {
		t.Errorf("expected .env to be loaded, got %v", fs.loaded)
	}
}

func TestEnvPrefix(t *testing.T) {
	if got := EnvPrefix("chain-run"); got != "CHAIN_RUN_" {
		t.Errorf("got %q", got)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	got := envKeyVariants("STREAM_HIGH_WATER_MARK")
	for _, want := range []string{"stream_high_water_mark", "stream.high_water_mark", "stream.high.water.mark"} {
		if !slices.Contains(got, want) {
			t.Errorf("missing variant %q in %v", want, got)
		}
	}
	if got := envKeyVariants("NAME"); !slices.Equal(got, []string{"name"}) {
		t.Errorf("got %v", got)
	}
}

func TestOptions(t *testing.T) {
	var lc LoaderConfig
	WithFileSystem(&mockFS{})(&lc)
	WithConfigFile("/path/config.yml")(&lc)
	WithEnvFile("/path/.env")(&lc)
	if lc.FileSystem == nil || lc.ConfigFile != "/path/config.yml" || lc.EnvFile != "/path/.env" {
		t.Errorf("options not applied: %+v", lc)
	}
}
