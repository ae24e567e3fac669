package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/weather-viz-service/internal/chart"
)

// Open-Meteo endpoints used when neither YAML nor the environment names one.
const (
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	DefaultArchiveURL  = "https://archive-api.open-meteo.com/v1/archive"
)

// Config holds service configuration loaded from YAML, .env and the environment.
type Config struct {
	ServerPort   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	ForecastAPIURL  string
	ArchiveAPIURL   string
	UpstreamTimeout time.Duration

	BreakerEnabled          bool
	BreakerFailureThreshold uint32
	BreakerOpenTimeout      time.Duration

	RequestTimeout time.Duration

	RenderCommand        string
	RenderArgs           []string
	RenderEnv            []string
	RenderContentType    string
	RenderTimeout        time.Duration
	RenderKillGrace      time.Duration
	RenderMaxConcurrent  int64
	RenderQueueTimeout   time.Duration
	RenderMaxOutputBytes int64

	CORSAllowedOrigins []string

	HealthWindow            time.Duration
	DegradedErrorPct        int
	OverloadRejectThreshold int

	ShutdownTimeout       time.Duration
	InFlightTimeout       time.Duration
	InFlightCheckInterval time.Duration
}

type fileConfig struct {
	Server struct {
		Port         string `yaml:"port"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
	} `yaml:"server"`

	Upstream struct {
		ForecastURL    string `yaml:"forecast_url"`
		ArchiveURL     string `yaml:"archive_url"`
		Timeout        string `yaml:"timeout"`
		CircuitBreaker struct {
			Enabled          *bool  `yaml:"enabled"`
			FailureThreshold uint32 `yaml:"failure_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"upstream"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Render struct {
		Command        string            `yaml:"command"`
		Args           []string          `yaml:"args"`
		Env            map[string]string `yaml:"env"`
		ContentType    string            `yaml:"content_type"`
		Timeout        string            `yaml:"timeout"`
		KillGrace      string            `yaml:"kill_grace"`
		MaxConcurrent  int64             `yaml:"max_concurrent"`
		QueueTimeout   *string           `yaml:"queue_timeout"`
		MaxOutputBytes int64             `yaml:"max_output_bytes"`
	} `yaml:"render"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`

	Lifecycle struct {
		HealthWindow            string `yaml:"health_window"`
		DegradedErrorPct        int    `yaml:"degraded_error_pct"`
		OverloadRejectThreshold int    `yaml:"overload_reject_threshold"`
	} `yaml:"lifecycle"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev). A .env file in
// the working directory is loaded first; variables already set in the environment win.
// PORT, FORECAST_API_URL, ARCHIVE_API_URL and RENDER_COMMAND override the file.
// Call from project root.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = firstNonEmpty(os.Getenv("PORT"), fc.Server.Port, "8080")
	cfg.ReadTimeout = parseDuration(fc.Server.ReadTimeout, 10*time.Second)
	cfg.WriteTimeout = parseDuration(fc.Server.WriteTimeout, 30*time.Second)

	cfg.ForecastAPIURL = firstNonEmpty(os.Getenv("FORECAST_API_URL"), fc.Upstream.ForecastURL, DefaultForecastURL)
	cfg.ArchiveAPIURL = firstNonEmpty(os.Getenv("ARCHIVE_API_URL"), fc.Upstream.ArchiveURL, DefaultArchiveURL)
	cfg.UpstreamTimeout = parseDurationOrZero(fc.Upstream.Timeout, 5*time.Second)

	cfg.BreakerEnabled = true
	if fc.Upstream.CircuitBreaker.Enabled != nil {
		cfg.BreakerEnabled = *fc.Upstream.CircuitBreaker.Enabled
	}
	cfg.BreakerFailureThreshold = fc.Upstream.CircuitBreaker.FailureThreshold
	if cfg.BreakerFailureThreshold == 0 {
		cfg.BreakerFailureThreshold = 5
	}
	cfg.BreakerOpenTimeout = parseDuration(fc.Upstream.CircuitBreaker.Timeout, 30*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)

	cfg.RenderCommand = firstNonEmpty(os.Getenv("RENDER_COMMAND"), fc.Render.Command, "chartgen")
	cfg.RenderArgs = fc.Render.Args
	cfg.RenderEnv = envPairs(fc.Render.Env)
	cfg.RenderContentType = firstNonEmpty(fc.Render.ContentType, chart.ContentType)
	cfg.RenderTimeout = parseDuration(fc.Render.Timeout, 10*time.Second)
	cfg.RenderKillGrace = parseDuration(fc.Render.KillGrace, 2*time.Second)
	cfg.RenderMaxConcurrent = fc.Render.MaxConcurrent
	if cfg.RenderMaxConcurrent <= 0 {
		cfg.RenderMaxConcurrent = 4
	}
	cfg.RenderQueueTimeout = time.Second
	if fc.Render.QueueTimeout != nil {
		// "0s" is meaningful here: reject immediately when all slots are busy.
		cfg.RenderQueueTimeout = parseDurationOrZero(*fc.Render.QueueTimeout, time.Second)
	}
	cfg.RenderMaxOutputBytes = fc.Render.MaxOutputBytes
	if cfg.RenderMaxOutputBytes <= 0 {
		cfg.RenderMaxOutputBytes = 10 << 20
	}

	cfg.CORSAllowedOrigins = fc.CORS.AllowedOrigins

	cfg.HealthWindow = parseDuration(fc.Lifecycle.HealthWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 5
	}
	cfg.OverloadRejectThreshold = fc.Lifecycle.OverloadRejectThreshold
	if cfg.OverloadRejectThreshold <= 0 {
		cfg.OverloadRejectThreshold = 10
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.InFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.InFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// envPairs converts the render.env map into KEY=VALUE entries for exec.
func envPairs(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	pairs := make([]string, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return pairs
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
// RequestTimeout is raised above both the upstream timeout and the longest a
// render can take (queue wait + render timeout + kill grace).
func validate(cfg *Config) error {
	if cfg.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	for name, raw := range map[string]string{
		"upstream.forecast_url": cfg.ForecastAPIURL,
		"upstream.archive_url":  cfg.ArchiveAPIURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	if cfg.RenderQueueTimeout < 0 {
		return fmt.Errorf("render.queue_timeout must not be negative")
	}

	floor := cfg.UpstreamTimeout
	if render := cfg.RenderQueueTimeout + cfg.RenderTimeout + cfg.RenderKillGrace; render > floor {
		floor = render
	}
	if cfg.RequestTimeout <= floor {
		cfg.RequestTimeout = floor + time.Second
	}
	if cfg.WriteTimeout <= cfg.RequestTimeout {
		cfg.WriteTimeout = cfg.RequestTimeout + time.Second
	}
	return nil
}
