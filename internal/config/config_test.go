package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/weather-viz-service/internal/chart"
)

const minimalEnvYAML = `
server:
  port: "8080"
upstream:
  forecast_url: "https://forecast.example.com/v1/forecast"
  archive_url: "https://archive.example.com/v1/archive"
  timeout: "2s"
request:
  timeout: "20s"
render:
  command: "chartgen"
  timeout: "5s"
  kill_grace: "1s"
  queue_timeout: "500ms"
shutdown:
  timeout: "10s"
`

// chdirTemp writes content as config/dev.yaml in a temp dir, makes it the working
// directory and clears the overrides Load reads.
func chdirTemp(t *testing.T, content string) string {
	t.Helper()
	for _, k := range []string{"ENV_NAME", "PORT", "FORECAST_API_URL", "ARCHIVE_API_URL", "RENDER_COMMAND"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	dir := t.TempDir()
	writeEnvFile(t, dir, "dev.yaml", content)
	chdir(t, dir)
	return dir
}

func TestLoad_Minimal(t *testing.T) {
	chdirTemp(t, minimalEnvYAML)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "https://forecast.example.com/v1/forecast", cfg.ForecastAPIURL)
	assert.Equal(t, "https://archive.example.com/v1/archive", cfg.ArchiveAPIURL)
	assert.Equal(t, 2*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 20*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "chartgen", cfg.RenderCommand)
	assert.Equal(t, chart.ContentType, cfg.RenderContentType)
	assert.Equal(t, 5*time.Second, cfg.RenderTimeout)
	assert.Equal(t, time.Second, cfg.RenderKillGrace)
	assert.Equal(t, 500*time.Millisecond, cfg.RenderQueueTimeout)
	assert.Equal(t, int64(4), cfg.RenderMaxConcurrent)
	assert.Equal(t, int64(10<<20), cfg.RenderMaxOutputBytes)
	assert.True(t, cfg.BreakerEnabled)
	assert.Equal(t, uint32(5), cfg.BreakerFailureThreshold)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t, "server:\n  port: \"9000\"\n")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.ServerPort)
	assert.Equal(t, "https://api.open-meteo.com/v1/forecast", cfg.ForecastAPIURL)
	assert.Equal(t, "https://archive-api.open-meteo.com/v1/archive", cfg.ArchiveAPIURL)
	assert.Equal(t, 5*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, "chartgen", cfg.RenderCommand)
	assert.Equal(t, time.Second, cfg.RenderQueueTimeout)
	assert.Equal(t, 60*time.Second, cfg.HealthWindow)
	assert.Equal(t, 5, cfg.DegradedErrorPct)
	assert.Equal(t, 10, cfg.OverloadRejectThreshold)
	assert.Equal(t, 100*time.Millisecond, cfg.InFlightCheckInterval)
}

func TestLoad_EnvFileNotFound(t *testing.T) {
	chdirTemp(t, minimalEnvYAML)
	t.Setenv("ENV_NAME", "nonexistent")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_InvalidYAML(t *testing.T) {
	chdirTemp(t, "server: [unclosed\n")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdirTemp(t, minimalEnvYAML)
	t.Setenv("PORT", "9999")
	t.Setenv("FORECAST_API_URL", "http://127.0.0.1:1/forecast")
	t.Setenv("ARCHIVE_API_URL", "http://127.0.0.1:1/archive")
	t.Setenv("RENDER_COMMAND", "/usr/local/bin/chart")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.ServerPort)
	assert.Equal(t, "http://127.0.0.1:1/forecast", cfg.ForecastAPIURL)
	assert.Equal(t, "http://127.0.0.1:1/archive", cfg.ArchiveAPIURL)
	assert.Equal(t, "/usr/local/bin/chart", cfg.RenderCommand)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdirTemp(t, minimalEnvYAML)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RENDER_COMMAND=/opt/chartgen\nPORT=7070\n"), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/opt/chartgen", cfg.RenderCommand)
	assert.Equal(t, "7070", cfg.ServerPort)
}

func TestLoad_ProcessEnvBeatsDotEnv(t *testing.T) {
	dir := chdirTemp(t, minimalEnvYAML)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PORT=7070\n"), 0644))
	t.Setenv("PORT", "6060")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "6060", cfg.ServerPort)
}

func TestLoad_RenderSection(t *testing.T) {
	chdirTemp(t, `
render:
  command: "chartgen"
  args: ["--theme", "light"]
  env:
    MPLBACKEND: "Agg"
    CHART_DPI: "96"
  content_type: "image/png"
  max_concurrent: 2
  queue_timeout: "0s"
  max_output_bytes: 2048
cors:
  allowed_origins: ["https://app.example.com"]
`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"--theme", "light"}, cfg.RenderArgs)
	assert.Equal(t, []string{"CHART_DPI=96", "MPLBACKEND=Agg"}, cfg.RenderEnv)
	assert.Equal(t, "image/png", cfg.RenderContentType)
	assert.Equal(t, int64(2), cfg.RenderMaxConcurrent)
	assert.Equal(t, time.Duration(0), cfg.RenderQueueTimeout)
	assert.Equal(t, int64(2048), cfg.RenderMaxOutputBytes)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoad_BreakerDisabled(t *testing.T) {
	chdirTemp(t, `
upstream:
  circuit_breaker:
    enabled: false
    failure_threshold: 3
    timeout: "45s"
`)
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.BreakerEnabled)
	assert.Equal(t, uint32(3), cfg.BreakerFailureThreshold)
	assert.Equal(t, 45*time.Second, cfg.BreakerOpenTimeout)
}

func TestLoad_RequestTimeoutAutoAdjusted(t *testing.T) {
	chdirTemp(t, `
upstream:
  timeout: "3s"
request:
  timeout: "2s"
render:
  timeout: "10s"
  kill_grace: "2s"
  queue_timeout: "1s"
`)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 14*time.Second, cfg.RequestTimeout)
	assert.Greater(t, cfg.WriteTimeout, cfg.RequestTimeout)
}

func TestLoad_NonPositiveUpstreamTimeout(t *testing.T) {
	chdirTemp(t, "upstream:\n  timeout: \"-1s\"\n")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream.timeout")
}

func TestLoad_RelativeUpstreamURL(t *testing.T) {
	chdirTemp(t, "upstream:\n  forecast_url: \"/v1/forecast\"\n")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream.forecast_url")
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", time.Second},
		{"garbage", time.Second},
		{"0s", time.Second},
		{"-5s", time.Second},
		{"250ms", 250 * time.Millisecond},
		{" 2m ", 2 * time.Minute},
	}
	for _, tt := range tests {
		if got := parseDuration(tt.in, time.Second); got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseDurationOrZero_KeepsZero(t *testing.T) {
	if got := parseDurationOrZero("0s", time.Second); got != 0 {
		t.Errorf("parseDurationOrZero(0s) = %v, want 0", got)
	}
}

func TestLoad_RepoDevConfig(t *testing.T) {
	root := findProjectRoot(t)
	for _, k := range []string{"ENV_NAME", "PORT", "FORECAST_API_URL", "ARCHIVE_API_URL", "RENDER_COMMAND"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	chdir(t, root)

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.ServerPort)
	assert.Greater(t, cfg.RequestTimeout, cfg.UpstreamTimeout)
}

func writeEnvFile(t *testing.T, dir, name, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "config", "dev.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("config/dev.yaml not found (run tests from project root)")
		}
		dir = parent
	}
}

// chdir changes the working directory for the test and restores it on cleanup
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
