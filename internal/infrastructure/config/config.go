package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/tilver/backend/internal/domain/reconciliation"
)

// Config holds all application configuration
type Config struct {
	App            AppConfig
	HTTP           HTTPConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Log            LogConfig
	Telemetry      TelemetryConfig
	Reconciliation ReconciliationConfig
	Approval       ApprovalConfig
	Recurring      RecurringConfig
	Storage        StorageConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	MaxUploadSize    int64 // statement imports
	RequestTimeout   time.Duration
	// HeavyRateLimit caps imports and spreadsheet exports per tenant per minute; 0 disables it
	HeavyRateLimit   int
	CORSAllowOrigins []string
	TrustedProxies   []string
	SwaggerEnabled   bool
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	ServiceName       string
	CollectorEndpoint string // OTLP gRPC endpoint, e.g. "localhost:4317"
	Insecure          bool   // development only
	Tracing           TracingConfig
	Metrics           MetricsConfig
	Logs              LogsConfig
	Profiling         ProfilingConfig
}

// TracingConfig configures span export
type TracingConfig struct {
	Enabled           bool
	SamplingRatio     float64
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration
}

// MetricsConfig configures metric export
type MetricsConfig struct {
	Enabled        bool
	ExportInterval time.Duration
}

// LogsConfig configures the zap to OTEL log bridge
type LogsConfig struct {
	Enabled bool
}

// ProfilingConfig configures continuous profiling
type ProfilingConfig struct {
	Enabled       bool
	ServerAddress string
}

// ReconciliationConfig holds the match thresholds
type ReconciliationConfig struct {
	ExactThreshold   decimal.Decimal
	TolerancePercent decimal.Decimal // fraction, 0.05 = 5%
	MinTolerance     decimal.Decimal
	CandidateLimit   int
}

// ToleranceConfig converts the thresholds for the matcher
func (r ReconciliationConfig) ToleranceConfig() reconciliation.ToleranceConfig {
	return reconciliation.ToleranceConfig{
		ExactThreshold: r.ExactThreshold,
		Percent:        r.TolerancePercent,
		MinTolerance:   r.MinTolerance,
	}
}

// ApprovalConfig holds the expense approval policy
type ApprovalConfig struct {
	Threshold   decimal.Decimal
	AllowSystem bool
}

// RecurringConfig holds the recurring scheduler settings
type RecurringConfig struct {
	Enabled            bool
	Interval           time.Duration
	Workers            int
	QueueSize          int
	BatchSize          int
	MaxCatchUp         int
	JobTimeout         time.Duration
	LockTTL            time.Duration
	IdempotencyTTL     time.Duration
	IdempotencyBackend string // memory, redis
}

// StorageConfig holds S3 settings for the invoice archive
type StorageConfig struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UsePathStyle  bool
	ArchivePrefix string
}

// Enabled reports whether an archive bucket is configured
func (s StorageConfig) Enabled() bool {
	return s.Bucket != ""
}

// Load loads configuration from config.toml in the usual locations and
// environment variables.
// Priority (highest to lowest):
// 1. Environment variables with TLV_ prefix (e.g., TLV_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file; an empty path searches
// the default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/tilver")
		v.AddConfigPath("/app")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("TLV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			MaxUploadSize:    v.GetInt64("http.max_upload_size"),
			RequestTimeout:   v.GetDuration("http.request_timeout"),
			HeavyRateLimit:   v.GetInt("http.heavy_rate_limit"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			SwaggerEnabled:   v.GetBool("http.swagger_enabled"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			ServiceName:       v.GetString("telemetry.service_name"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			Insecure:          v.GetBool("telemetry.insecure"),
			Tracing: TracingConfig{
				Enabled:           v.GetBool("telemetry.tracing.enabled"),
				SamplingRatio:     v.GetFloat64("telemetry.tracing.sampling_ratio"),
				DBTraceEnabled:    v.GetBool("telemetry.tracing.db_trace_enabled"),
				DBLogFullSQL:      v.GetBool("telemetry.tracing.db_log_full_sql"),
				DBSlowQueryThresh: v.GetDuration("telemetry.tracing.db_slow_query_threshold"),
			},
			Metrics: MetricsConfig{
				Enabled:        v.GetBool("telemetry.metrics.enabled"),
				ExportInterval: v.GetDuration("telemetry.metrics.export_interval"),
			},
			Logs: LogsConfig{
				Enabled: v.GetBool("telemetry.logs.enabled"),
			},
			Profiling: ProfilingConfig{
				Enabled:       v.GetBool("telemetry.profiling.enabled"),
				ServerAddress: v.GetString("telemetry.profiling.server_address"),
			},
		},
		Approval: ApprovalConfig{
			AllowSystem: v.GetBool("approval.allow_system"),
		},
		Recurring: RecurringConfig{
			Enabled:            v.GetBool("recurring.enabled"),
			Interval:           v.GetDuration("recurring.interval"),
			Workers:            v.GetInt("recurring.workers"),
			QueueSize:          v.GetInt("recurring.queue_size"),
			BatchSize:          v.GetInt("recurring.batch_size"),
			MaxCatchUp:         v.GetInt("recurring.max_catch_up"),
			JobTimeout:         v.GetDuration("recurring.job_timeout"),
			LockTTL:            v.GetDuration("recurring.lock_ttl"),
			IdempotencyTTL:     v.GetDuration("recurring.idempotency_ttl"),
			IdempotencyBackend: v.GetString("recurring.idempotency_backend"),
		},
		Storage: StorageConfig{
			Bucket:        v.GetString("storage.bucket"),
			Region:        v.GetString("storage.region"),
			Endpoint:      v.GetString("storage.endpoint"),
			AccessKey:     v.GetString("storage.access_key"),
			SecretKey:     v.GetString("storage.secret_key"),
			UsePathStyle:  v.GetBool("storage.use_path_style"),
			ArchivePrefix: v.GetString("storage.archive_prefix"),
		},
	}

	amounts := []struct {
		key    string
		target *decimal.Decimal
	}{
		{"reconciliation.exact_threshold", &cfg.Reconciliation.ExactThreshold},
		{"reconciliation.tolerance_percent", &cfg.Reconciliation.TolerancePercent},
		{"reconciliation.min_tolerance", &cfg.Reconciliation.MinTolerance},
		{"approval.threshold", &cfg.Approval.Threshold},
	}
	for _, a := range amounts {
		raw := strings.TrimSpace(v.GetString(a.key))
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.key, err)
		}
		*a.target = d
	}
	cfg.Reconciliation.CandidateLimit = v.GetInt("reconciliation.candidate_limit")

	applyDefaults(cfg, v)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields. Booleans
// that default to true are only applied when the key is absent.
func applyDefaults(cfg *Config, v *viper.Viper) {
	if cfg.App.Name == "" {
		cfg.App.Name = "tilver-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}

	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 2 << 20 // 2MB
	}
	if cfg.HTTP.MaxUploadSize == 0 {
		cfg.HTTP.MaxUploadSize = 10 << 20 // 10MB
	}
	if cfg.HTTP.RequestTimeout == 0 {
		cfg.HTTP.RequestTimeout = 25 * time.Second
	}
	if !v.IsSet("http.heavy_rate_limit") {
		cfg.HTTP.HeavyRateLimit = 30
	}
	if !v.IsSet("http.swagger_enabled") {
		cfg.HTTP.SwaggerEnabled = cfg.App.Env != "production"
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "tilver"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.Tracing.SamplingRatio == 0 {
		cfg.Telemetry.Tracing.SamplingRatio = 1.0
	}
	if cfg.Telemetry.Tracing.DBSlowQueryThresh == 0 {
		cfg.Telemetry.Tracing.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.Metrics.ExportInterval == 0 {
		cfg.Telemetry.Metrics.ExportInterval = 60 * time.Second
	}
	if cfg.Telemetry.Profiling.ServerAddress == "" {
		cfg.Telemetry.Profiling.ServerAddress = "http://localhost:4040"
	}

	tol := reconciliation.DefaultToleranceConfig()
	if cfg.Reconciliation.ExactThreshold.IsZero() {
		cfg.Reconciliation.ExactThreshold = tol.ExactThreshold
	}
	if cfg.Reconciliation.TolerancePercent.IsZero() {
		cfg.Reconciliation.TolerancePercent = tol.Percent
	}
	if cfg.Reconciliation.MinTolerance.IsZero() {
		cfg.Reconciliation.MinTolerance = tol.MinTolerance
	}
	if cfg.Reconciliation.CandidateLimit == 0 {
		cfg.Reconciliation.CandidateLimit = 200
	}

	if cfg.Approval.Threshold.IsZero() {
		cfg.Approval.Threshold = decimal.NewFromInt(1000)
	}

	if !v.IsSet("recurring.enabled") {
		cfg.Recurring.Enabled = true
	}
	if cfg.Recurring.Interval == 0 {
		cfg.Recurring.Interval = 15 * time.Minute
	}
	if cfg.Recurring.Workers == 0 {
		cfg.Recurring.Workers = 4
	}
	if cfg.Recurring.QueueSize == 0 {
		cfg.Recurring.QueueSize = 100
	}
	if cfg.Recurring.BatchSize == 0 {
		cfg.Recurring.BatchSize = 500
	}
	if cfg.Recurring.MaxCatchUp == 0 {
		cfg.Recurring.MaxCatchUp = 24
	}
	if cfg.Recurring.JobTimeout == 0 {
		cfg.Recurring.JobTimeout = 5 * time.Minute
	}
	if cfg.Recurring.LockTTL == 0 {
		cfg.Recurring.LockTTL = 2 * time.Minute
	}
	if cfg.Recurring.IdempotencyTTL == 0 {
		cfg.Recurring.IdempotencyTTL = 72 * time.Hour
	}
	if cfg.Recurring.IdempotencyBackend == "" {
		cfg.Recurring.IdempotencyBackend = "memory"
	}

	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "eu-central-1"
	}
	if cfg.Storage.ArchivePrefix == "" {
		cfg.Storage.ArchivePrefix = "invoices"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if err := c.Reconciliation.ToleranceConfig().Validate(); err != nil {
		return fmt.Errorf("reconciliation: %w", err)
	}
	if c.Approval.Threshold.IsNegative() {
		return fmt.Errorf("approval.threshold cannot be negative")
	}

	if c.Recurring.Workers < 1 {
		return fmt.Errorf("recurring.workers must be at least 1")
	}
	if c.Recurring.MaxCatchUp < 1 {
		return fmt.Errorf("recurring.max_catch_up must be at least 1")
	}
	switch c.Recurring.IdempotencyBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("recurring.idempotency_backend must be memory or redis, got %q", c.Recurring.IdempotencyBackend)
	}
	if c.Recurring.LockTTL < time.Second {
		return fmt.Errorf("recurring.lock_ttl must be at least 1s")
	}

	if c.Storage.Enabled() && (c.Storage.AccessKey == "") != (c.Storage.SecretKey == "") {
		return fmt.Errorf("storage.access_key and storage.secret_key must be set together")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.Tracing.DBLogFullSQL {
			return fmt.Errorf("telemetry.tracing.db_log_full_sql must be false in production")
		}
	}

	if c.Telemetry.Tracing.SamplingRatio < 0.0 || c.Telemetry.Tracing.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.tracing.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.Tracing.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
