package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "GOSTANS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Checkout     CheckoutConfig
	PayPal       PayPalConfig
	Stripe       StripeConfig
	CORS         CORSConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"GOSTANS_APP_ENV" required:"true"`
	Port         string `envconfig:"GOSTANS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GOSTANS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GOSTANS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"GOSTANS_DB_DSN"`
	Driver string `envconfig:"GOSTANS_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"GOSTANS_DB_HOST"`
	Port     int    `envconfig:"GOSTANS_DB_PORT" default:"5432"`
	User     string `envconfig:"GOSTANS_DB_USER"`
	Password string `envconfig:"GOSTANS_DB_PASSWORD"`
	Name     string `envconfig:"GOSTANS_DB_NAME"`
	SSLMode  string `envconfig:"GOSTANS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GOSTANS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GOSTANS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GOSTANS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GOSTANS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GOSTANS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GOSTANS_REDIS_ADDR"`
	Password     string        `envconfig:"GOSTANS_REDIS_PASSWORD"`
	DB           int           `envconfig:"GOSTANS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GOSTANS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GOSTANS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GOSTANS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GOSTANS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GOSTANS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"GOSTANS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GOSTANS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"GOSTANS_JWT_EXPIRATION_MINUTES" default:"60"`
}

// CheckoutConfig tunes session lifetime and cart-sync throttling.
type CheckoutConfig struct {
	SessionTTL      time.Duration `envconfig:"GOSTANS_CHECKOUT_SESSION_TTL" default:"30m"`
	GuestCartTTL    time.Duration `envconfig:"GOSTANS_GUEST_CART_TTL" default:"720h"`
	SyncCooldown    time.Duration `envconfig:"GOSTANS_CART_SYNC_COOLDOWN" default:"10s"`
	ReturnBaseURL   string        `envconfig:"GOSTANS_CHECKOUT_RETURN_BASE_URL" required:"true"`
	BookingRefBytes int           `envconfig:"GOSTANS_BOOKING_REF_BYTES" default:"4"`
}

type PayPalConfig struct {
	ClientID string `envconfig:"GOSTANS_PAYPAL_CLIENT_ID"`
	Secret   string `envconfig:"GOSTANS_PAYPAL_SECRET"`
	Env      string `envconfig:"GOSTANS_PAYPAL_ENV" default:"sandbox"`
}

// Environment returns the normalized PayPal environment (sandbox/live).
func (p PayPalConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(p.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type StripeConfig struct {
	APIKey string `envconfig:"GOSTANS_STRIPE_API_KEY"`
	Env    string `envconfig:"GOSTANS_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"GOSTANS_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"GOSTANS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"GOSTANS_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	required := map[string]string{
		"GOSTANS_DB_HOST": db.Host,
		"GOSTANS_DB_USER": db.User,
		"GOSTANS_DB_NAME": db.Name,
	}
	for _, key := range []string{"GOSTANS_DB_HOST", "GOSTANS_DB_USER", "GOSTANS_DB_NAME"} {
		if required[key] == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either GOSTANS_DB_DSN or %s are required", strings.Join(missing, ", "))
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
