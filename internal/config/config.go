package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAggregateInterval = 2 * time.Second
	DefaultFocusedInterval   = 3 * time.Second
	DefaultTolerance         = 10 * time.Second
	DefaultPendingTimeout    = 30 * time.Second
	DefaultMaxBackoff        = 30 * time.Second
	DefaultJitter            = 0.1
	DefaultMaxUploadSize     = 10 << 20
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	Sync     SyncConfig     `yaml:"sync"`
	Client   ClientConfig   `yaml:"client"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type StorageConfig struct {
	Endpoint      string    `yaml:"endpoint"`
	ServiceKey    string    `yaml:"service_key"`
	Bucket        string    `yaml:"bucket"`
	MaxUploadSize SizeBytes `yaml:"max_upload_size"`
}

// SyncConfig tunes the client sync engine.
type SyncConfig struct {
	AggregateInterval time.Duration `yaml:"aggregate_interval"`
	FocusedInterval   time.Duration `yaml:"focused_interval"`
	Tolerance         time.Duration `yaml:"tolerance"`
	PendingTimeout    time.Duration `yaml:"pending_timeout"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	Jitter            float64       `yaml:"jitter"`
	RateLimitRPS      float64       `yaml:"rate_limit_rps"`
	RateLimitBurst    int           `yaml:"rate_limit_burst"`
}

type ClientConfig struct {
	ServerURL string `yaml:"server_url"`
	TokenFile string `yaml:"token_file"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// SizeBytes is a byte count read from strings like "10MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseSize(node.Value)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseSize(raw string) (SizeBytes, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		return SizeBytes(v), nil
	}
	return 0, fmt.Errorf("invalid size value: %q", raw)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

func (s SizeBytes) String() string { return humanize.Bytes(uint64(s)) }

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
			RateLimitRPS:    20,
			RateLimitBurst:  40,
		},
		Database: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     "5432",
			User:     "chatsync",
			Password: "chatsync_dev_password",
			Name:     "chatsync",
			SSLMode:  "disable",
		},
		Auth: AuthConfig{
			JWTSecret: "dev-secret-change-me",
			TokenTTL:  24 * time.Hour,
		},
		Storage: StorageConfig{
			Endpoint:      "http://localhost:54321",
			Bucket:        "attachments",
			MaxUploadSize: DefaultMaxUploadSize,
		},
		Sync: SyncConfig{
			AggregateInterval: DefaultAggregateInterval,
			FocusedInterval:   DefaultFocusedInterval,
			Tolerance:         DefaultTolerance,
			PendingTimeout:    DefaultPendingTimeout,
			MaxBackoff:        DefaultMaxBackoff,
			Jitter:            DefaultJitter,
			RateLimitRPS:      5,
			RateLimitBurst:    5,
		},
		Client: ClientConfig{
			ServerURL: "http://localhost:8080",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
			return nil, err
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)
	if v := getEnv("ALLOWED_ORIGINS", ""); v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)

	c.Storage.Endpoint = getEnv("STORAGE_ENDPOINT", c.Storage.Endpoint)
	c.Storage.ServiceKey = getEnv("STORAGE_SERVICE_KEY", c.Storage.ServiceKey)
	c.Storage.Bucket = getEnv("STORAGE_BUCKET", c.Storage.Bucket)
	if v := getEnv("MAX_UPLOAD_SIZE", ""); v != "" {
		size, err := ParseSize(v)
		if err != nil {
			return err
		}
		c.Storage.MaxUploadSize = size
	}

	var err error
	if c.Sync.AggregateInterval, err = getDuration("SYNC_AGGREGATE_INTERVAL", c.Sync.AggregateInterval); err != nil {
		return err
	}
	if c.Sync.FocusedInterval, err = getDuration("SYNC_FOCUSED_INTERVAL", c.Sync.FocusedInterval); err != nil {
		return err
	}
	if c.Sync.PendingTimeout, err = getDuration("SYNC_PENDING_TIMEOUT", c.Sync.PendingTimeout); err != nil {
		return err
	}
	if c.Sync.Tolerance, err = getDuration("SYNC_TOLERANCE", c.Sync.Tolerance); err != nil {
		return err
	}

	c.Client.ServerURL = getEnv("CHATSYNC_SERVER", c.Client.ServerURL)
	c.Client.TokenFile = getEnv("CHATSYNC_TOKEN_FILE", c.Client.TokenFile)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	if v := getEnv("RATE_LIMIT_RPS", ""); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
		c.Server.RateLimitRPS = f
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Sync.AggregateInterval <= 0 {
		errs = append(errs, errors.New("sync.aggregate_interval must be positive"))
	}
	if c.Sync.FocusedInterval <= 0 {
		errs = append(errs, errors.New("sync.focused_interval must be positive"))
	}
	if c.Sync.Tolerance < 0 {
		errs = append(errs, errors.New("sync.tolerance must not be negative"))
	}
	if c.Sync.PendingTimeout < 0 {
		errs = append(errs, errors.New("sync.pending_timeout must not be negative"))
	}
	if c.Sync.Jitter < 0 || c.Sync.Jitter >= 1 {
		errs = append(errs, errors.New("sync.jitter must be in [0, 1)"))
	}
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be postgres or memory", c.Database.Driver))
	}
	if c.Storage.MaxUploadSize <= 0 {
		errs = append(errs, errors.New("storage.max_upload_size must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val, exists := os.LookupEnv(key)
	if !exists || val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
