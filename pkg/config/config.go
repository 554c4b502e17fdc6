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
	HTTP         HTTPConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Inventory    InventoryConfig
	Cron         CronConfig
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
	Env          string `envconfig:"STOCKLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"STOCKLEDGER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOCKLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOCKLEDGER_LOG_WARN_STACK" default:"false"`
	// MetricsAddr exposes /metrics on the background workers; blank keeps them dark.
	MetricsAddr string `envconfig:"STOCKLEDGER_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOCKLEDGER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOCKLEDGER_DB_DSN"`
	Driver string `envconfig:"STOCKLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOCKLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"STOCKLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOCKLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"STOCKLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOCKLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOCKLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOCKLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOCKLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOCKLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOCKLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"STOCKLEDGER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOCKLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"STOCKLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOCKLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOCKLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOCKLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOCKLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOCKLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOCKLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STOCKLEDGER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOCKLEDGER_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STOCKLEDGER_JWT_EXPIRATION_MINUTES" required:"true"`
}

// HTTPConfig covers the public API surface.
type HTTPConfig struct {
	CORSAllowedOrigins  []string      `envconfig:"STOCKLEDGER_CORS_ALLOWED_ORIGINS"`
	MutationRateLimit   int           `envconfig:"STOCKLEDGER_MUTATION_RATE_LIMIT" default:"120"`
	MutationRateWindow  time.Duration `envconfig:"STOCKLEDGER_MUTATION_RATE_WINDOW" default:"1m"`
	ShutdownGracePeriod time.Duration `envconfig:"STOCKLEDGER_HTTP_SHUTDOWN_GRACE" default:"15s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate     bool `envconfig:"STOCKLEDGER_AUTO_MIGRATE" default:"false"`
	LowStockAlerts  bool `envconfig:"STOCKLEDGER_FEATURE_LOW_STOCK_ALERTS" default:"true"`
	RequireIdemKeys bool `envconfig:"STOCKLEDGER_FEATURE_REQUIRE_IDEMPOTENCY_KEYS" default:"true"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"STOCKLEDGER_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOCKLEDGER_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOCKLEDGER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOCKLEDGER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	InventoryTopic        string `envconfig:"STOCKLEDGER_PUBSUB_INVENTORY_TOPIC" default:"stockledger-inventory-events"`
	InventorySubscription string `envconfig:"STOCKLEDGER_PUBSUB_INVENTORY_SUBSCRIPTION" default:"stockledger-inventory-movements"`
}

type BigQueryConfig struct {
	Dataset        string `envconfig:"STOCKLEDGER_BIGQUERY_DATASET" default:"stockledger"`
	MovementsTable string `envconfig:"STOCKLEDGER_BIGQUERY_MOVEMENTS_TABLE" default:"stock_movements"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STOCKLEDGER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STOCKLEDGER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STOCKLEDGER_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// InventoryConfig tunes the stock ledger engines and the low-stock side channel.
type InventoryConfig struct {
	MutationMaxRetries    int           `envconfig:"STOCKLEDGER_INVENTORY_MUTATION_MAX_RETRIES" default:"3"`
	LowStockQueueSize     int           `envconfig:"STOCKLEDGER_LOW_STOCK_QUEUE_SIZE" default:"256"`
	LowStockWorkers       int           `envconfig:"STOCKLEDGER_LOW_STOCK_WORKERS" default:"2"`
	LowStockAlertCooldown time.Duration `envconfig:"STOCKLEDGER_LOW_STOCK_ALERT_COOLDOWN" default:"0s"`
	DispatchTimeout       time.Duration `envconfig:"STOCKLEDGER_LOW_STOCK_DISPATCH_TIMEOUT" default:"10s"`
}

// CronConfig schedules the maintenance jobs. Interval is the reconcile cadence;
// the two retention sweeps run on CleanupInterval.
type CronConfig struct {
	Interval              time.Duration `envconfig:"STOCKLEDGER_CRON_INTERVAL" default:"1h"`
	CleanupInterval       time.Duration `envconfig:"STOCKLEDGER_CRON_CLEANUP_INTERVAL" default:"24h"`
	LockTTL               time.Duration `envconfig:"STOCKLEDGER_CRON_LOCK_TTL" default:"30m"`
	OutboxRetentionDays   int           `envconfig:"STOCKLEDGER_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	NotificationRetention int           `envconfig:"STOCKLEDGER_CRON_NOTIFICATION_RETENTION_DAYS" default:"30"`
	ReconcileBatchSize    int           `envconfig:"STOCKLEDGER_CRON_RECONCILE_BATCH_SIZE" default:"500"`
	ReconcileAlertOnDrift bool          `envconfig:"STOCKLEDGER_CRON_RECONCILE_ALERT_ON_DRIFT" default:"true"`
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
