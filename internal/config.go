package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Sandbox       SandboxConfig       `mapstructure:"sandbox"`
	Client        ClientConfig        `mapstructure:"client"`
	Events        EventsConfig        `mapstructure:"events"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type SandboxConfig struct {
	Policies      []PolicyConfig      `mapstructure:"policies"`
	DefaultPolicy DefaultPolicyConfig `mapstructure:"default_policy"`
	Storage       StorageConfig       `mapstructure:"storage"`
}

// PolicyConfig pins the outcome for one VPA or localpart@* pattern.
type PolicyConfig struct {
	VPA       string        `mapstructure:"vpa"`
	Succeeds  bool          `mapstructure:"succeeds"`
	Delay     time.Duration `mapstructure:"delay"`
	ErrorCode string        `mapstructure:"error_code"`
}

type DefaultPolicyConfig struct {
	SuccessRate float64       `mapstructure:"success_rate"`
	Delay       time.Duration `mapstructure:"delay"`
	ErrorCode   string        `mapstructure:"error_code"`
}

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

type StorageConfig struct {
	Driver          string        `mapstructure:"driver"`
	Source          string        `mapstructure:"source"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type ClientConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
}

type EventsConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ----------------- DEFAULTS -----------------

// ApplyDefaults fills zero values with the sandbox defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3001
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Sandbox.DefaultPolicy.SuccessRate == 0 && c.Sandbox.DefaultPolicy.Delay == 0 {
		c.Sandbox.DefaultPolicy.SuccessRate = 0.7
	}
	if c.Sandbox.DefaultPolicy.Delay == 0 {
		c.Sandbox.DefaultPolicy.Delay = time.Second
	}
	if c.Sandbox.Storage.Driver == "" {
		c.Sandbox.Storage.Driver = StorageMemory
	}
	if c.Client.BaseURL == "" {
		c.Client.BaseURL = fmt.Sprintf("http://localhost:%d/v1", c.Server.Port)
	}
	if c.Client.RequestTimeout == 0 {
		c.Client.RequestTimeout = 10 * time.Second
	}
	if c.Client.MaxAttempts == 0 {
		c.Client.MaxAttempts = 30
	}
	if c.Client.PollInterval == 0 {
		c.Client.PollInterval = 2 * time.Second
	}
	if c.Events.Kafka.Topic == "" {
		c.Events.Kafka.Topic = "upi.payments"
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

// LoadConfigFromEnv builds the configuration for container deployments where no config file exists.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_SERVER_PORT", 3001),
			AllowedOrigins:    getEnv("HTTP_SERVER_ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_SERVER_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_SERVER_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_SERVER_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout:   getEnvAsDuration("HTTP_SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Sandbox: SandboxConfig{
			DefaultPolicy: DefaultPolicyConfig{
				SuccessRate: getEnvAsFloat("SANDBOX_DEFAULT_SUCCESS_RATE", 0.7),
				Delay:       getEnvAsDuration("SANDBOX_DEFAULT_DELAY", time.Second),
				ErrorCode:   getEnv("SANDBOX_DEFAULT_ERROR_CODE", ""),
			},
			Storage: StorageConfig{
				Driver:       getEnv("SANDBOX_STORAGE_DRIVER", StorageMemory),
				Source:       getEnv("SANDBOX_STORAGE_SOURCE", ""),
				MaxOpenConns: getEnvAsInt("SANDBOX_STORAGE_MAX_OPEN_CONNS", 10),
				MaxIdleConns: getEnvAsInt("SANDBOX_STORAGE_MAX_IDLE_CONNS", 5),
			},
		},
		Client: ClientConfig{
			BaseURL:        getEnv("CLIENT_BASE_URL", "http://localhost:3001/v1"),
			RequestTimeout: getEnvAsDuration("CLIENT_REQUEST_TIMEOUT", 10*time.Second),
			MaxAttempts:    getEnvAsInt("CLIENT_MAX_ATTEMPTS", 30),
			PollInterval:   getEnvAsDuration("CLIENT_POLL_INTERVAL", 2*time.Second),
		},
		Events: EventsConfig{
			Kafka: KafkaConfig{
				Brokers: splitList(getEnv("EVENTS_KAFKA_BROKERS", "")),
				Topic:   getEnv("EVENTS_KAFKA_TOPIC", "upi.payments"),
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnv("OBSERVABILITY_METRICS_ENABLED", "true") == "true",
				Path:    getEnv("OBSERVABILITY_METRICS_PATH", "/metrics"),
			},
			Logging: LoggingConfig{
				Level:  getEnv("OBSERVABILITY_LOGGING_LEVEL", "info"),
				Format: getEnv("OBSERVABILITY_LOGGING_FORMAT", "json"),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Sandbox.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("sandbox config: %v", err))
	}

	if err := c.Client.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("client config: %v", err))
	}

	if err := c.Events.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("events config: %v", err))
	}

	if err := c.Observability.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("observability config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *SandboxConfig) Validate() error {
	for _, p := range c.Policies {
		if !strings.Contains(p.VPA, "@") {
			return fmt.Errorf("policy vpa %q must be a vpa or a localpart@* pattern", p.VPA)
		}
		if p.Delay < 0 {
			return fmt.Errorf("policy %q has negative delay", p.VPA)
		}
	}
	if c.DefaultPolicy.SuccessRate < 0 || c.DefaultPolicy.SuccessRate > 1 {
		return errors.New("default_policy.success_rate must be between 0 and 1")
	}
	if c.DefaultPolicy.Delay < 0 {
		return errors.New("default_policy.delay cannot be negative")
	}
	return c.Storage.Validate()
}

func (c *StorageConfig) Validate() error {
	switch c.Driver {
	case StorageMemory:
		return nil
	case StoragePostgres, StorageSQLite:
		if c.Source == "" {
			return fmt.Errorf("storage.source is required for driver %s", c.Driver)
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Driver)
	}
	if c.MaxIdleConns > c.MaxOpenConns && c.MaxOpenConns > 0 {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base_url %q", c.BaseURL)
	}
	if c.MaxAttempts < 1 {
		return errors.New("max_attempts must be at least 1")
	}
	if c.PollInterval < 0 {
		return errors.New("poll_interval cannot be negative")
	}
	return nil
}

func (c *EventsConfig) Validate() error {
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return errors.New("kafka.topic is required when brokers are set")
	}
	return nil
}

func (c *ObservabilityConfig) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging format %q", c.Logging.Format)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	return nil
}
