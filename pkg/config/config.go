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
	Settlement   SettlementConfig
	Paystack     PaystackConfig
	FeatureFlags FeatureFlagsConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KASUWA_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"KASUWA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KASUWA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"KASUWA_SERVICE_KIND" default:"settlement-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"KASUWA_DB_DSN"`
	Driver string `envconfig:"KASUWA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KASUWA_DB_HOST"`
	LegacyPort     int    `envconfig:"KASUWA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KASUWA_DB_USER"`
	LegacyPassword string `envconfig:"KASUWA_DB_PASSWORD"`
	LegacyName     string `envconfig:"KASUWA_DB_NAME"`
	LegacySSLMode  string `envconfig:"KASUWA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KASUWA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KASUWA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KASUWA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KASUWA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KASUWA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KASUWA_REDIS_ADDR"`
	Password     string        `envconfig:"KASUWA_REDIS_PASSWORD"`
	DB           int           `envconfig:"KASUWA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KASUWA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KASUWA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KASUWA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KASUWA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KASUWA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// SettlementConfig carries the money-movement policy knobs.
type SettlementConfig struct {
	Currency string `envconfig:"KASUWA_SETTLEMENT_CURRENCY" default:"NGN"`

	// Withdrawal fee policy: fee = max(amount * percent/100, minimum).
	WithdrawalFeePercent string `envconfig:"KASUWA_WITHDRAWAL_FEE_PERCENT" default:"1"`
	WithdrawalFeeMinimum string `envconfig:"KASUWA_WITHDRAWAL_FEE_MINIMUM" default:"100"`

	// Rolling withdrawal windows are evaluated against this timezone, not
	// the host wall clock.
	ReportingTimezone string `envconfig:"KASUWA_SETTLEMENT_REPORTING_TZ" default:"Africa/Lagos"`

	DefaultDailyWithdrawalLimit   string `envconfig:"KASUWA_WALLET_DAILY_WITHDRAWAL_LIMIT" default:"500000"`
	DefaultMonthlyWithdrawalLimit string `envconfig:"KASUWA_WALLET_MONTHLY_WITHDRAWAL_LIMIT" default:"5000000"`

	BankCacheTTL time.Duration `envconfig:"KASUWA_BANK_CACHE_TTL" default:"24h"`
}

type PaystackConfig struct {
	SecretKey string        `envconfig:"KASUWA_PAYSTACK_SECRET_KEY"`
	BaseURL   string        `envconfig:"KASUWA_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	Timeout   time.Duration `envconfig:"KASUWA_PAYSTACK_TIMEOUT" default:"15s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"KASUWA_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"KASUWA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"KASUWA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"KASUWA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	// Incoming gateway outcome events.
	PaymentsSubscription  string `envconfig:"KASUWA_PUBSUB_PAYMENTS_SUBSCRIPTION" default:"kasuwa-payment-outcomes"`
	TransfersSubscription string `envconfig:"KASUWA_PUBSUB_TRANSFERS_SUBSCRIPTION" default:"kasuwa-transfer-outcomes"`

	// Outgoing settlement domain events (drained from the outbox).
	SettlementsTopic        string `envconfig:"KASUWA_PUBSUB_SETTLEMENTS_TOPIC" default:"kasuwa-settlement-events"`
	SettlementsSubscription string `envconfig:"KASUWA_PUBSUB_SETTLEMENTS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"KASUWA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"KASUWA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"KASUWA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	IdempotencyTTL time.Duration `envconfig:"KASUWA_OUTBOX_IDEMPOTENCY_TTL" default:"72h"`
	RetentionDays  int           `envconfig:"KASUWA_OUTBOX_RETENTION_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN() error {
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
