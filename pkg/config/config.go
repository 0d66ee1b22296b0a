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
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Wallet        WalletConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Wallet.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"IMIMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"IMIMARKET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"IMIMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"IMIMARKET_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"IMIMARKET_DB_DSN"`
	Driver string `envconfig:"IMIMARKET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"IMIMARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"IMIMARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"IMIMARKET_DB_USER"`
	LegacyPassword string `envconfig:"IMIMARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"IMIMARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"IMIMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"IMIMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"IMIMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"IMIMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"IMIMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"IMIMARKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"IMIMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"IMIMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"IMIMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"IMIMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"IMIMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"IMIMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"IMIMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"IMIMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"IMIMARKET_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"IMIMARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"IMIMARKET_JWT_EXPIRATION_MINUTES" default:"1440"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"IMIMARKET_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"IMIMARKET_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"IMIMARKET_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"IMIMARKET_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"IMIMARKET_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"IMIMARKET_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"IMIMARKET_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"IMIMARKET_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"IMIMARKET_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"IMIMARKET_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"IMIMARKET_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// WalletConfig carries the tunable business constants of the wallet core.
type WalletConfig struct {
	// LevelPercentages is the ordered referral commission vector; position i
	// pays upline level i+1. The vector length bounds the upline walk.
	LevelPercentages []string `envconfig:"IMIMARKET_MLM_LEVEL_PERCENTAGES" default:"0.08,0.04,0.04,0.04,0.04,0.03,0.03"`
}

// LevelRates parses the configured percentage vector into decimals.
func (w WalletConfig) LevelRates() ([]decimal.Decimal, error) {
	rates := make([]decimal.Decimal, 0, len(w.LevelPercentages))
	for _, raw := range w.LevelPercentages {
		rate, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid mlm level percentage %q: %w", raw, err)
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

func (w WalletConfig) validate() error {
	if len(w.LevelPercentages) == 0 {
		return fmt.Errorf("at least one mlm level percentage is required")
	}
	_, err := w.LevelRates()
	return err
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"IMIMARKET_AUTO_MIGRATE" default:"false"`
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
