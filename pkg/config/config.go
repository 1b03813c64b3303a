package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "studio"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Razorpay     RazorpayConfig
	SMTP         SMTPConfig
	Pricing      PricingConfig
	Shipping     ShippingConfig
	Challan      ChallanConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Razorpay.validate(cfg.App); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STUDIO_APP_ENV" required:"true"`
	Port         string `envconfig:"STUDIO_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"STUDIO_APP_BASE_URL" default:"http://localhost:8080"`
	LogLevel     string `envconfig:"STUDIO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STUDIO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STUDIO_DB_DSN"`
	Driver string `envconfig:"STUDIO_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STUDIO_DB_HOST"`
	Port     int    `envconfig:"STUDIO_DB_PORT" default:"5432"`
	User     string `envconfig:"STUDIO_DB_USER"`
	Password string `envconfig:"STUDIO_DB_PASSWORD"`
	Name     string `envconfig:"STUDIO_DB_NAME"`
	SSLMode  string `envconfig:"STUDIO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STUDIO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STUDIO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STUDIO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STUDIO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STUDIO_REDIS_URL"`
	Address      string        `envconfig:"STUDIO_REDIS_ADDR"`
	Password     string        `envconfig:"STUDIO_REDIS_PASSWORD"`
	DB           int           `envconfig:"STUDIO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STUDIO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STUDIO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STUDIO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STUDIO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STUDIO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STUDIO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STUDIO_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STUDIO_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STUDIO_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"STUDIO_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"STUDIO_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"STUDIO_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"STUDIO_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STUDIO_AUTO_MIGRATE" default:"false"`
}

// RazorpayConfig carries the gateway credentials. KeyID is publishable and is
// the only key that may appear in client payloads.
type RazorpayConfig struct {
	KeyID     string `envconfig:"STUDIO_RAZORPAY_KEY_ID"`
	KeySecret string `envconfig:"STUDIO_RAZORPAY_KEY_SECRET"`
	// AllowDemo skips signature verification for demo payments. Refused
	// outright in prod; see validate.
	AllowDemo bool `envconfig:"STUDIO_RAZORPAY_ALLOW_DEMO" default:"false"`
}

func (r RazorpayConfig) validate(app AppConfig) error {
	if r.KeyID == "" || r.KeySecret == "" {
		return fmt.Errorf("razorpay key id and secret are required")
	}
	if r.AllowDemo && app.IsProd() {
		return fmt.Errorf("demo payment bypass cannot be enabled in prod")
	}
	return nil
}

type SMTPConfig struct {
	Host     string `envconfig:"STUDIO_SMTP_HOST"`
	Port     int    `envconfig:"STUDIO_SMTP_PORT" default:"587"`
	Username string `envconfig:"STUDIO_SMTP_USERNAME"`
	Password string `envconfig:"STUDIO_SMTP_PASSWORD"`
	From     string `envconfig:"STUDIO_SMTP_FROM"`
}

// PricingConfig holds the design pricing rules. Base price and tax rate have
// no zero-defaults on purpose: an unset value is a fatal configuration error,
// not a free garment.
type PricingConfig struct {
	Currency           string           `envconfig:"STUDIO_PRICING_CURRENCY" default:"INR"`
	BasePriceCents     int64            `envconfig:"STUDIO_PRICING_BASE_PRICE_CENTS" required:"true"`
	TextElementCents   int64            `envconfig:"STUDIO_PRICING_TEXT_ELEMENT_CENTS" default:"2500"`
	ImageElementCents  int64            `envconfig:"STUDIO_PRICING_IMAGE_ELEMENT_CENTS" default:"5000"`
	BackPrintCents     int64            `envconfig:"STUDIO_PRICING_BACK_PRINT_CENTS" default:"7500"`
	SizePremiumsCents  map[string]int64 `envconfig:"STUDIO_PRICING_SIZE_PREMIUMS_CENTS" default:"XL:2000,XXL:3000,XXXL:4000"`
	TaxRateBps         int64            `envconfig:"STUDIO_PRICING_TAX_RATE_BPS" required:"true"`
	MaxQuantityPerSize int              `envconfig:"STUDIO_PRICING_MAX_QTY_PER_SIZE" default:"500"`
}

// ShippingConfig holds the flat base costs per method plus the bulk bracket
// rule: every started block of BulkStepUnits beyond BulkThresholdUnits adds
// BulkIncrementCents.
type ShippingConfig struct {
	StandardCents      int64 `envconfig:"STUDIO_SHIPPING_STANDARD_CENTS" default:"5000"`
	ExpressCents       int64 `envconfig:"STUDIO_SHIPPING_EXPRESS_CENTS" default:"12000"`
	PickupCents        int64 `envconfig:"STUDIO_SHIPPING_PICKUP_CENTS" default:"0"`
	BulkThresholdUnits int   `envconfig:"STUDIO_SHIPPING_BULK_THRESHOLD_UNITS" default:"10"`
	BulkStepUnits      int   `envconfig:"STUDIO_SHIPPING_BULK_STEP_UNITS" default:"10"`
	BulkIncrementCents int64 `envconfig:"STUDIO_SHIPPING_BULK_INCREMENT_CENTS" default:"2000"`
}

type ChallanConfig struct {
	Dir           string `envconfig:"STUDIO_CHALLAN_DIR" default:"./challans"`
	PublicBaseURL string `envconfig:"STUDIO_CHALLAN_PUBLIC_BASE_URL" default:"/challans"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	required := map[string]string{
		"STUDIO_DB_HOST": db.Host,
		"STUDIO_DB_USER": db.User,
		"STUDIO_DB_NAME": db.Name,
	}
	for _, env := range []string{"STUDIO_DB_HOST", "STUDIO_DB_USER", "STUDIO_DB_NAME"} {
		if required[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either STUDIO_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
