package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/grafana-toolbox/grafana-wtf/pkg/timeutil"
)

// Configuration keys. Command line flags use the same names.
const (
	KeyURL              = "grafana-url"
	KeyToken            = "grafana-token"
	KeyCacheTTL         = "cache-ttl"
	KeyConcurrency      = "concurrency"
	KeyRateLimit        = "rate-limit"
	KeyTimeout          = "timeout"
	KeySelectDashboards = "select-dashboard"
	KeyLogLevel         = "log-level"
	KeyDeploymentMode   = "deployment-mode"
	KeyPort             = "port"
	KeyOTLPEndpoint     = "otlp-endpoint"
)

const (
	GrafanaURL        = "GRAFANA_URL"
	GrafanaToken      = "GRAFANA_TOKEN"
	CacheTTLEnv       = "GRAFANA_WTF_CACHE_TTL"
	ConcurrencyEnv    = "GRAFANA_WTF_CONCURRENCY"
	RateLimitEnv      = "GRAFANA_WTF_RATE_LIMIT"
	TimeoutEnv        = "GRAFANA_WTF_TIMEOUT"
	SelectEnv         = "GRAFANA_WTF_SELECT_DASHBOARD"
	LogLevelEnv       = "LOG_LEVEL"
	DeploymentModeEnv = "DEPLOYMENT_MODE"
	PortEnv           = "PORT"
	OTLPEndpointEnv   = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

const (
	ModeLocal = "local"
	ModeCloud = "cloud"
)

var ErrMissingURL = errors.New(`No Grafana URL given. Please use "--grafana-url" option or environment variable "GRAFANA_URL".`)

type Config struct {
	URL            string        `mapstructure:"grafana-url"`
	Token          string        `mapstructure:"grafana-token"`
	CacheTTL       string        `mapstructure:"cache-ttl"`
	Concurrency    int           `mapstructure:"concurrency"`
	RateLimit      float64       `mapstructure:"rate-limit"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Dashboards     []string      `mapstructure:"select-dashboard"`
	LogLevel       string        `mapstructure:"log-level"`
	DeploymentMode string        `mapstructure:"deployment-mode"`
	Port           string        `mapstructure:"port"`
	OTLPEndpoint   string        `mapstructure:"otlp-endpoint"`
}

var envBindings = map[string]string{
	KeyURL:              GrafanaURL,
	KeyToken:            GrafanaToken,
	KeyCacheTTL:         CacheTTLEnv,
	KeyConcurrency:      ConcurrencyEnv,
	KeyRateLimit:        RateLimitEnv,
	KeyTimeout:          TimeoutEnv,
	KeySelectDashboards: SelectEnv,
	KeyLogLevel:         LogLevelEnv,
	KeyDeploymentMode:   DeploymentModeEnv,
	KeyPort:             PortEnv,
	KeyOTLPEndpoint:     OTLPEndpointEnv,
}

// Load resolves the configuration from, in increasing precedence, defaults,
// an optional YAML file, the environment (including a .env file in the
// working directory) and overrides, which carry explicitly given flags.
func Load(configFile string, overrides map[string]any) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetDefault(KeyCacheTTL, "300")
	v.SetDefault(KeyConcurrency, 5)
	v.SetDefault(KeyRateLimit, 0)
	v.SetDefault(KeyTimeout, 60*time.Second)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyDeploymentMode, ModeLocal)
	v.SetDefault(KeyPort, "8000")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", configFile, err)
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Dashboards = trimList(cfg.Dashboards)
	return &cfg, nil
}

// Validate checks the settings every Grafana operation needs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return ErrMissingURL
	}
	if _, err := c.TTL(); err != nil {
		return err
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("invalid concurrency %d: must be at least 1", c.Concurrency)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("invalid rate limit %v: must not be negative", c.RateLimit)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid timeout %v: must be positive", c.Timeout)
	}
	switch c.DeploymentMode {
	case ModeLocal, ModeCloud:
	default:
		return fmt.Errorf("invalid deployment mode %q: use %q or %q", c.DeploymentMode, ModeLocal, ModeCloud)
	}
	return nil
}

// TTL is the parsed cache expiry; 0 disables the cache.
func (c *Config) TTL() (time.Duration, error) {
	return timeutil.ParseTTL(c.CacheTTL)
}

// LoadConfig reads the MCP server settings from the environment.
func LoadConfig() (*Config, error) {
	cfg, err := Load(os.Getenv("GRAFANA_WTF_CONFIG"), nil)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func trimList(items []string) []string {
	var out []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
