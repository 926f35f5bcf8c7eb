package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Scan         ScanConfig
	Detection    DetectionConfig
	Email        EmailConfig
	Sendgrid     SendgridConfig
	RateLimit    RateLimitConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if cfg.Scan.Timeout <= 0 {
		return nil, fmt.Errorf("%s must be positive", EnvScanTimeout)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"ALERA_APP_ENV" required:"true"`
	Port         string   `envconfig:"ALERA_APP_PORT" required:"true"`
	MetricsPort  string   `envconfig:"ALERA_METRICS_PORT" default:"9090"`
	LogLevel     string   `envconfig:"ALERA_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"ALERA_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"ALERA_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"ALERA_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ALERA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ALERA_DB_DSN"`
	Driver string `envconfig:"ALERA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ALERA_DB_HOST"`
	LegacyPort     int    `envconfig:"ALERA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ALERA_DB_USER"`
	LegacyPassword string `envconfig:"ALERA_DB_PASSWORD"`
	LegacyName     string `envconfig:"ALERA_DB_NAME"`
	LegacySSLMode  string `envconfig:"ALERA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ALERA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ALERA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ALERA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ALERA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite engine.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"ALERA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ALERA_REDIS_ADDR"`
	Password     string        `envconfig:"ALERA_REDIS_PASSWORD"`
	DB           int           `envconfig:"ALERA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ALERA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ALERA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ALERA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ALERA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ALERA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ALERA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ALERA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ALERA_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ALERA_AUTO_MIGRATE" default:"false"`
	AudioScan   bool `envconfig:"ALERA_AUDIO_SCAN_ENABLED" default:"true"`
}

// ScanConfig drives the audio-scan poller.
type ScanConfig struct {
	PollInterval time.Duration `envconfig:"ALERA_SCAN_POLL_INTERVAL" default:"5m"`
	Timeout      time.Duration `envconfig:"ALERA_SCAN_TIMEOUT" default:"1h"`
	BatchSize    int           `envconfig:"ALERA_SCAN_BATCH_SIZE" default:"100"`
	ClaimLease   time.Duration `envconfig:"ALERA_SCAN_CLAIM_LEASE" default:"10m"`
}

type DetectionConfig struct {
	APIKey  string        `envconfig:"ALERA_DETECTION_API_KEY"`
	BaseURL string        `envconfig:"ALERA_DETECTION_BASE_URL"`
	Timeout time.Duration `envconfig:"ALERA_DETECTION_TIMEOUT" default:"30s"`
}

type EmailConfig struct {
	DispatchInterval time.Duration `envconfig:"ALERA_EMAIL_DISPATCH_INTERVAL" default:"1m"`
	BatchSize        int           `envconfig:"ALERA_EMAIL_BATCH_SIZE" default:"50"`
	MaxAttempts      int           `envconfig:"ALERA_EMAIL_MAX_ATTEMPTS" default:"5"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"ALERA_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"ALERA_SENDGRID_FROM_EMAIL" default:"no-reply@alera.fm"`
}

// RateLimitConfig throttles scan submissions per artist.
type RateLimitConfig struct {
	ScanWindow time.Duration `envconfig:"ALERA_RATE_LIMIT_SCAN_WINDOW" default:"1m"`
	ScanLimit  int           `envconfig:"ALERA_RATE_LIMIT_SCAN_LIMIT" default:"30"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"ALERA_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	ReleaseEventsTopic string `envconfig:"ALERA_PUBSUB_RELEASE_EVENTS_TOPIC" default:"alera-release-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ALERA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ALERA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ALERA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"ALERA_OUTBOX_RETENTION_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
