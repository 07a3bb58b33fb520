package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Commission   CommissionConfig
	Stripe       StripeConfig
	Eventing     EventingConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Commission.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"COURSEFORGE_APP_ENV" required:"true"`
	Port         string `envconfig:"COURSEFORGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"COURSEFORGE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"COURSEFORGE_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"COURSEFORGE_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string      `envconfig:"COURSEFORGE_CORS_ALLOWED_ORIGINS"`
	ShutdownTimeout    time.Duration `envconfig:"COURSEFORGE_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"COURSEFORGE_DB_DSN"`
	Driver string `envconfig:"COURSEFORGE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COURSEFORGE_DB_HOST"`
	LegacyPort     int    `envconfig:"COURSEFORGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COURSEFORGE_DB_USER"`
	LegacyPassword string `envconfig:"COURSEFORGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"COURSEFORGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"COURSEFORGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COURSEFORGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COURSEFORGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COURSEFORGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COURSEFORGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"COURSEFORGE_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COURSEFORGE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"COURSEFORGE_REDIS_ADDR"`
	Password     string        `envconfig:"COURSEFORGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"COURSEFORGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COURSEFORGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COURSEFORGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COURSEFORGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COURSEFORGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COURSEFORGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"COURSEFORGE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"COURSEFORGE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"COURSEFORGE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// CommissionConfig holds the fallback used when no commission rate has been
// stored in the settings table.
type CommissionConfig struct {
	DefaultRate     string        `envconfig:"COURSEFORGE_COMMISSION_DEFAULT_RATE" default:"0.10"`
	PayoutLockTTL   time.Duration `envconfig:"COURSEFORGE_COMMISSION_PAYOUT_LOCK_TTL" default:"30s"`
	PayoutLockScope string        `envconfig:"COURSEFORGE_COMMISSION_PAYOUT_LOCK_SCOPE" default:"payout"`
}

// Rate parses DefaultRate. Load has already validated it.
func (c CommissionConfig) Rate() decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.DefaultRate))
	if err != nil {
		return decimal.NewFromFloat(0.10)
	}
	return rate
}

func (c CommissionConfig) validate() error {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.DefaultRate))
	if err != nil {
		return fmt.Errorf("%s must be a decimal fraction: %w", EnvCommissionDefaultRate, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be between 0 and 1, got %s", EnvCommissionDefaultRate, rate.String())
	}
	return nil
}

type StripeConfig struct {
	APIKey        string `envconfig:"COURSEFORGE_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"COURSEFORGE_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"COURSEFORGE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"COURSEFORGE_EVENTING_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"COURSEFORGE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"COURSEFORGE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = "file:courseforge.db?cache=shared"
		}
		return nil
	}
	if db.DSN != "" {
		return nil
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
