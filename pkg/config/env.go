package config

const (
	EnvPrefix = "TAXSYNC"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "TAXSYNC_APP_ENV"
	EnvPort     = "TAXSYNC_APP_PORT"
	EnvLogLevel = "TAXSYNC_LOG_LEVEL"

	EnvDBDSN  = "TAXSYNC_DB_DSN"
	EnvDBHost = "TAXSYNC_DB_HOST"
	EnvDBUser = "TAXSYNC_DB_USER"
	EnvDBName = "TAXSYNC_DB_NAME"

	EnvRedisURL  = "TAXSYNC_REDIS_URL"
	EnvUseSQLite = "TAXSYNC_USE_SQLITE"

	EnvTaxMode           = "TAXSYNC_TAX_MODE"
	EnvTaxServiceURL     = "TAXSYNC_TAX_SERVICE_URL"
	EnvTaxAccount        = "TAXSYNC_TAX_SERVICE_ACCOUNT"
	EnvTaxLicense        = "TAXSYNC_TAX_SERVICE_LICENSE"
	EnvTaxCompanyCode    = "TAXSYNC_TAX_SERVICE_COMPANY_CODE"
	EnvTaxRegionCodes    = "TAXSYNC_TAX_REGION_FILTER_CODES"
	EnvTaxLogLifetime    = "TAXSYNC_TAX_LOG_LIFETIME_DAYS"
	EnvTaxFullStop       = "TAXSYNC_TAX_FULL_STOP_ON_ERROR"
	EnvTaxSubtotalDisply = "TAXSYNC_TAX_DISPLAY_CART_SUBTOTAL"

	// DefaultSQLiteDSN is used when sqlite is enabled without an explicit DSN.
	DefaultSQLiteDSN = "file:taxsync.db?cache=shared"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
