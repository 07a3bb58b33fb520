package config

const (
	EnvPrefix = "COURSEFORGE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "COURSEFORGE_APP_ENV"
	EnvPort     = "COURSEFORGE_APP_PORT"
	EnvLogLevel = "COURSEFORGE_LOG_LEVEL"

	EnvDBDSN  = "COURSEFORGE_DB_DSN"
	EnvDBHost = "COURSEFORGE_DB_HOST"
	EnvDBUser = "COURSEFORGE_DB_USER"
	EnvDBName = "COURSEFORGE_DB_NAME"

	EnvRedisURL = "COURSEFORGE_REDIS_URL"

	EnvJWTSecret  = "COURSEFORGE_JWT_SECRET"
	EnvJWTIssuer  = "COURSEFORGE_JWT_ISSUER"
	EnvJWTExpMins = "COURSEFORGE_JWT_EXPIRATION_MINUTES"

	EnvCommissionDefaultRate = "COURSEFORGE_COMMISSION_DEFAULT_RATE"

	EnvStripeWebhookSecret = "COURSEFORGE_STRIPE_WEBHOOK_SECRET"

	EnvUseSQLite = "COURSEFORGE_USE_SQLITE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
