package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	ServerPort  string `koanf:"server_port"`
	ServerHost  string `koanf:"server_host"`
	CORSOrigins string `koanf:"cors_origins"`

	// Database configuration
	DatabaseURL  string `koanf:"database_url"`
	PgBouncerURL string `koanf:"pgbouncer_url"`
	UsePgBouncer bool   `koanf:"use_pgbouncer"`
	DBHost       string `koanf:"db_host"`
	DBPort       string `koanf:"db_port"`
	DBUser       string `koanf:"db_user"`
	DBPassword   string `koanf:"db_password"`
	DBName       string `koanf:"db_name"`
	DBSSLMode    string `koanf:"db_ssl_mode"`
	DBMinConns   int    `koanf:"db_min_conns"`
	DBMaxConns   int    `koanf:"db_max_conns"`

	// Redis configuration
	RedisURL string `koanf:"redis_url"`

	// JWT configuration
	JWTSecret string        `koanf:"jwt_secret"`
	JWTExpiry time.Duration `koanf:"jwt_expiry"`

	// AI provider configuration
	AIAPIKey         string        `koanf:"ai_api_key"`
	AIAPIURL         string        `koanf:"ai_api_url"`
	AIModel          string        `koanf:"ai_model"`
	AITimeout        time.Duration `koanf:"ai_timeout"`
	AIMaxConcurrent  int           `koanf:"ai_max_concurrent"`
	AIRateLimitHour  int           `koanf:"rate_limit_ai_per_hour"`
	BackupDir        string        `koanf:"backup_dir"`
	BackupRetention  int           `koanf:"backup_retention_days"`
	BackupS3Bucket   string        `koanf:"backup_s3_bucket"`
	AWSRegion        string        `koanf:"aws_region"`
	BackupSchedule   string        `koanf:"backup_schedule"`
	MaintenanceCron  string        `koanf:"maintenance_schedule"`
	CommandTimeout   time.Duration `koanf:"backup_command_timeout"`
	SchedulerEnabled bool          `koanf:"scheduler_enabled"`

	// Logging
	LogLevel  string `koanf:"log_level"`
	LogPretty bool   `koanf:"log_pretty"`
}

// LoadConfig creates a new Config instance from an optional config.yaml, environment variables
// and Docker secrets, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	currEnv := GetEnvironment()

	k := koanf.New(".")
	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(key), value
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}); err != nil {
		return nil, errors.Wrap(err, "unmarshal config failed")
	}

	// Docker secrets take precedence for sensitive values outside CI
	if currEnv != CI {
		overlaySecrets(cfg)
	}

	applyDefaults(cfg)

	if err := ValidateConfig(cfg, currEnv); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return cfg, nil
}

// DSN returns the connection string used for the GORM pool.
func (c *Config) DSN() string {
	if c.UsePgBouncer && c.PgBouncerURL != "" {
		return c.PgBouncerURL
	}
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	sslMode := c.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return "host=" + c.DBHost + " port=" + c.DBPort + " user=" + c.DBUser +
		" password=" + c.DBPassword + " dbname=" + c.DBName + " sslmode=" + sslMode
}

// DirectDSN always points at Postgres itself, bypassing PgBouncer. The monitor reads
// pg_stat views and needs a session-level connection.
func (c *Config) DirectDSN() string {
	direct := *c
	direct.UsePgBouncer = false
	return direct.DSN()
}

func applyDefaults(cfg *Config) {
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.DBHost == "" {
		cfg.DBHost = "localhost"
	}
	if cfg.DBPort == "" {
		cfg.DBPort = "5432"
	}
	if cfg.DBMinConns <= 0 {
		cfg.DBMinConns = 2
	}
	if cfg.DBMaxConns <= 0 {
		cfg.DBMaxConns = 20
	}
	if cfg.JWTExpiry <= 0 {
		cfg.JWTExpiry = 24 * time.Hour
	}
	if cfg.AIAPIURL == "" {
		cfg.AIAPIURL = "https://api.deepseek.com/v1/chat/completions"
	}
	if cfg.AIModel == "" {
		cfg.AIModel = "deepseek-chat"
	}
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = 60 * time.Second
	}
	if cfg.AIMaxConcurrent <= 0 {
		cfg.AIMaxConcurrent = 10
	}
	if cfg.AIRateLimitHour <= 0 {
		cfg.AIRateLimitHour = 20
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = "./backups"
	}
	if cfg.BackupRetention <= 0 {
		cfg.BackupRetention = 30
	}
	if cfg.BackupSchedule == "" {
		cfg.BackupSchedule = "0 2 * * *"
	}
	if cfg.MaintenanceCron == "" {
		cfg.MaintenanceCron = "0 3 * * 0"
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 30 * time.Minute
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.CORSOrigins == "" {
		cfg.CORSOrigins = "http://localhost:5173,http://frontend:5173"
	}
}

// overlaySecrets replaces sensitive values with Docker secrets when present
func overlaySecrets(cfg *Config) {
	if v := readSecret("db_password"); v != "" {
		cfg.DBPassword = v
	}
	if v := readSecret("jwt_secret"); v != "" {
		cfg.JWTSecret = v
	}
	if v := readSecret("ai_api_key"); v != "" {
		cfg.AIAPIKey = v
	}
	if v := readSecret("database_url"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := readSecret("redis_url"); v != "" {
		cfg.RedisURL = v
	}
}

func findConfigFile() string {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return path
	}
	for _, dir := range []string{".", "config", "../config"} {
		candidate := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	secretPath := filepath.Join(secretsDir, name)
	if data, err := os.ReadFile(secretPath); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}
