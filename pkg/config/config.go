package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/taxsync/pkg/enums"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Cron         CronConfig
	Queue        QueueConfig
	TaxService   TaxServiceConfig
	Tax          TaxConfig
	Telemetry    TelemetryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		if cfg.DB.DSN == "" {
			cfg.DB.DSN = DefaultSQLiteDSN
		}
		cfg.DB.Driver = "sqlite"
	} else if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Tax.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TAXSYNC_APP_ENV" required:"true"`
	Port         string `envconfig:"TAXSYNC_APP_PORT" default:"8081"`
	LogLevel     string `envconfig:"TAXSYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TAXSYNC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TAXSYNC_SERVICE_KIND" default:"cron-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"TAXSYNC_DB_DSN"`
	Driver string `envconfig:"TAXSYNC_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TAXSYNC_DB_HOST"`
	LegacyPort     int    `envconfig:"TAXSYNC_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TAXSYNC_DB_USER"`
	LegacyPassword string `envconfig:"TAXSYNC_DB_PASSWORD"`
	LegacyName     string `envconfig:"TAXSYNC_DB_NAME"`
	LegacySSLMode  string `envconfig:"TAXSYNC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TAXSYNC_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"TAXSYNC_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"TAXSYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TAXSYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// TraceQueries installs OpenTelemetry spans on every gorm statement.
	TraceQueries bool `envconfig:"TAXSYNC_DB_TRACE_QUERIES" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TAXSYNC_REDIS_URL"`
	Address      string        `envconfig:"TAXSYNC_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"TAXSYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"TAXSYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TAXSYNC_REDIS_POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"TAXSYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TAXSYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TAXSYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TAXSYNC_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TAXSYNC_AUTO_MIGRATE" default:"false"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"TAXSYNC_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"TAXSYNC_CRON_LOCK_TTL" default:"4m"`
}

type QueueConfig struct {
	BatchSize int `envconfig:"TAXSYNC_QUEUE_BATCH_SIZE" default:"50"`
}

// TelemetryConfig enables OTLP trace export. An empty endpoint disables it.
type TelemetryConfig struct {
	OTLPEndpoint string  `envconfig:"TAXSYNC_OTLP_ENDPOINT"`
	OTLPInsecure bool    `envconfig:"TAXSYNC_OTLP_INSECURE" default:"true"`
	SampleRatio  float64 `envconfig:"TAXSYNC_TRACE_SAMPLE_RATIO" default:"1"`
}

// TaxServiceConfig holds the credentials and endpoint of the external tax
// determination service. The validate tags are checked by diagnostics.
type TaxServiceConfig struct {
	URL         string        `envconfig:"TAXSYNC_TAX_SERVICE_URL" validate:"required,url"`
	Account     string        `envconfig:"TAXSYNC_TAX_SERVICE_ACCOUNT" validate:"required"`
	License     string        `envconfig:"TAXSYNC_TAX_SERVICE_LICENSE" validate:"required"`
	CompanyCode string        `envconfig:"TAXSYNC_TAX_SERVICE_COMPANY_CODE" validate:"required"`
	Timeout     time.Duration `envconfig:"TAXSYNC_TAX_SERVICE_TIMEOUT" default:"10s"`
}

// IsDevelopmentURL reports whether the configured endpoint is a sandbox.
func (t TaxServiceConfig) IsDevelopmentURL() bool {
	u := strings.ToLower(t.URL)
	return strings.Contains(u, "development") || strings.Contains(u, "sandbox")
}

type TaxConfig struct {
	Mode string `envconfig:"TAXSYNC_TAX_MODE" default:"calculate_only"`

	RegionFilterMode  string   `envconfig:"TAXSYNC_TAX_REGION_FILTER_MODE" default:"off"`
	RegionFilterScope string   `envconfig:"TAXSYNC_TAX_REGION_FILTER_SCOPE" default:"tax"`
	RegionFilterCodes []string `envconfig:"TAXSYNC_TAX_REGION_FILTER_CODES"`

	ShippingSKU            string `envconfig:"TAXSYNC_TAX_SHIPPING_SKU" default:"Shipping" validate:"required"`
	GiftWrapOrderSKU       string `envconfig:"TAXSYNC_TAX_GW_ORDER_SKU" default:"GwOrderAmount"`
	GiftWrapPrintedCardSKU string `envconfig:"TAXSYNC_TAX_GW_PRINTED_CARD_SKU" default:"GwPrintedCardAmount"`
	GiftWrapItemSKU        string `envconfig:"TAXSYNC_TAX_GW_ITEM_SKU" default:"GwItemsAmount"`
	AdjustmentPositiveSKU  string `envconfig:"TAXSYNC_TAX_ADJUSTMENT_POSITIVE_SKU" default:"positive-adjustment" validate:"required"`
	AdjustmentNegativeSKU  string `envconfig:"TAXSYNC_TAX_ADJUSTMENT_NEGATIVE_SKU" default:"negative-adjustment" validate:"required"`

	// LogLifetimeDays stays a string so diagnostics can report a bad value
	// instead of failing the whole load.
	LogLifetimeDays string `envconfig:"TAXSYNC_TAX_LOG_LIFETIME_DAYS" default:"30"`
	FullStopOnError bool   `envconfig:"TAXSYNC_TAX_FULL_STOP_ON_ERROR" default:"false"`

	PriceIncludesTax    bool   `envconfig:"TAXSYNC_TAX_PRICE_INCLUDES_TAX" default:"false"`
	DisplayCartSubtotal string `envconfig:"TAXSYNC_TAX_DISPLAY_CART_SUBTOTAL" default:"excl"`
	DisplayZeroTax      bool   `envconfig:"TAXSYNC_TAX_DISPLAY_ZERO_TAX" default:"false"`

	ErrorMessage             string `envconfig:"TAXSYNC_TAX_ERROR_MESSAGE" default:"Unfortunately, we could not calculate tax for your order. Please try again."`
	AddressErrorMessage      string `envconfig:"TAXSYNC_TAX_ADDRESS_ERROR_MESSAGE" default:"Address %s is not valid."`
	AddressNormalizedMessage string `envconfig:"TAXSYNC_TAX_ADDRESS_NORMALIZED_MESSAGE" default:"Your shipping address has been normalized."`
}

func (t TaxConfig) OperatingMode() enums.OperatingMode {
	mode, err := enums.ParseOperatingMode(t.Mode)
	if err != nil {
		return enums.ModeDisabled
	}
	return mode
}

// RegionFilter returns the parsed region filter. Invalid values were already
// rejected by Load.
func (t TaxConfig) RegionFilter() RegionFilter {
	mode, _ := enums.ParseRegionFilterMode(t.RegionFilterMode)
	scope, _ := enums.ParseRegionFilterScope(t.RegionFilterScope)
	codes := make([]string, 0, len(t.RegionFilterCodes))
	for _, c := range t.RegionFilterCodes {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			codes = append(codes, c)
		}
	}
	return RegionFilter{Mode: mode, Scope: scope, Codes: codes}
}

func (t TaxConfig) SubtotalDisplay() enums.SubtotalDisplay {
	d, err := enums.ParseSubtotalDisplay(t.DisplayCartSubtotal)
	if err != nil {
		return enums.SubtotalDisplayExclTax
	}
	return d
}

// LogRetentionDays parses LogLifetimeDays.
func (t TaxConfig) LogRetentionDays() (int, error) {
	days, err := strconv.Atoi(strings.TrimSpace(t.LogLifetimeDays))
	if err != nil {
		return 0, fmt.Errorf("%s must be numeric: %w", EnvTaxLogLifetime, err)
	}
	if days < 0 {
		return 0, fmt.Errorf("%s must not be negative", EnvTaxLogLifetime)
	}
	return days, nil
}

func (t TaxConfig) validate() error {
	if _, err := enums.ParseOperatingMode(t.Mode); err != nil {
		return fmt.Errorf("%s: %w", EnvTaxMode, err)
	}
	if _, err := enums.ParseRegionFilterMode(t.RegionFilterMode); err != nil {
		return err
	}
	if _, err := enums.ParseRegionFilterScope(t.RegionFilterScope); err != nil {
		return err
	}
	if _, err := enums.ParseSubtotalDisplay(t.DisplayCartSubtotal); err != nil {
		return fmt.Errorf("%s: %w", EnvTaxSubtotalDisply, err)
	}
	return nil
}

// RegionFilter restricts which destinations are sent to the tax service.
// Codes are either a country ("US") or a country-region pair ("US-NY").
type RegionFilter struct {
	Mode  enums.RegionFilterMode
	Scope enums.RegionFilterScope
	Codes []string
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
