package config

const EnvPrefix = "ALERA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv    = "ALERA_APP_ENV"
	EnvPort      = "ALERA_APP_PORT"
	EnvDBDSN     = "ALERA_DB_DSN"
	EnvDBDriver  = "ALERA_DB_DRIVER"
	EnvDBHost    = "ALERA_DB_HOST"
	EnvDBUser    = "ALERA_DB_USER"
	EnvDBName    = "ALERA_DB_NAME"
	EnvRedisURL  = "ALERA_REDIS_URL"
	EnvJWTSecret = "ALERA_JWT_SECRET"
	EnvJWTIssuer = "ALERA_JWT_ISSUER"

	EnvScanPollInterval   = "ALERA_SCAN_POLL_INTERVAL"
	EnvScanTimeout        = "ALERA_SCAN_TIMEOUT"
	EnvDetectionAPIKey    = "ALERA_DETECTION_API_KEY"
	EnvSendgridAPIKey     = "ALERA_SENDGRID_API_KEY"
	EnvPubSubReleaseTopic = "ALERA_PUBSUB_RELEASE_EVENTS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
