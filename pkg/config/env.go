package config

// EnvPrefix is empty because every field carries its fully qualified variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "STOCKLEDGER_APP_ENV"
	EnvPort     = "STOCKLEDGER_APP_PORT"
	EnvLogLevel = "STOCKLEDGER_LOG_LEVEL"

	EnvDBDSN    = "STOCKLEDGER_DB_DSN"
	EnvDBDriver = "STOCKLEDGER_DB_DRIVER"
	EnvDBHost   = "STOCKLEDGER_DB_HOST"
	EnvDBPort   = "STOCKLEDGER_DB_PORT"
	EnvDBUser   = "STOCKLEDGER_DB_USER"
	EnvDBPass   = "STOCKLEDGER_DB_PASSWORD"
	EnvDBName   = "STOCKLEDGER_DB_NAME"

	EnvRedisURL = "STOCKLEDGER_REDIS_URL"

	EnvJWTSecret  = "STOCKLEDGER_JWT_SECRET"
	EnvJWTIssuer  = "STOCKLEDGER_JWT_ISSUER"
	EnvJWTExpMins = "STOCKLEDGER_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID          = "STOCKLEDGER_GCP_PROJECT_ID"
	EnvPubSubInventoryTopic  = "STOCKLEDGER_PUBSUB_INVENTORY_TOPIC"
	EnvPubSubInventorySub    = "STOCKLEDGER_PUBSUB_INVENTORY_SUBSCRIPTION"
	EnvBigQueryDataset       = "STOCKLEDGER_BIGQUERY_DATASET"
	EnvLowStockQueueSize     = "STOCKLEDGER_LOW_STOCK_QUEUE_SIZE"
	EnvLowStockAlertCooldown = "STOCKLEDGER_LOW_STOCK_ALERT_COOLDOWN"
	EnvMutationMaxRetries    = "STOCKLEDGER_INVENTORY_MUTATION_MAX_RETRIES"
	EnvCronInterval          = "STOCKLEDGER_CRON_INTERVAL"
	EnvCronNotificationDays  = "STOCKLEDGER_CRON_NOTIFICATION_RETENTION_DAYS"
	EnvCronCleanupInterval   = "STOCKLEDGER_CRON_CLEANUP_INTERVAL"
	EnvMetricsAddr           = "STOCKLEDGER_METRICS_ADDR"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
