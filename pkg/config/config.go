package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Monnify       MonnifyConfig
	Fees          FeesConfig
	Sweep         SweepConfig
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
	Env          string `envconfig:"AGM_APP_ENV" required:"true"`
	Port         string `envconfig:"AGM_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"AGM_APP_BASE_URL" default:"https://agmstore.app"`
	LogLevel     string `envconfig:"AGM_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AGM_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"AGM_DB_DSN"`
	Driver string `envconfig:"AGM_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"AGM_DB_HOST"`
	Port     int    `envconfig:"AGM_DB_PORT" default:"5432"`
	User     string `envconfig:"AGM_DB_USER"`
	Password string `envconfig:"AGM_DB_PASSWORD"`
	Name     string `envconfig:"AGM_DB_NAME"`
	SSLMode  string `envconfig:"AGM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AGM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AGM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AGM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AGM_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AGM_REDIS_URL"`
	Address      string        `envconfig:"AGM_REDIS_ADDR"`
	Password     string        `envconfig:"AGM_REDIS_PASSWORD"`
	DB           int           `envconfig:"AGM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AGM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AGM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AGM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AGM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AGM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AGM_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AGM_JWT_ISSUER" default:"agm-storebuilder"`
	ExpirationMinutes int    `envconfig:"AGM_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// Expiration returns the configured access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"AGM_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"AGM_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"AGM_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"AGM_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"AGM_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"AGM_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"AGM_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"AGM_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"AGM_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"AGM_AUTO_MIGRATE" default:"false"`
}

type MonnifyConfig struct {
	BaseURL       string        `envconfig:"AGM_MONNIFY_BASE_URL" default:"https://sandbox.monnify.com"`
	APIKey        string        `envconfig:"AGM_MONNIFY_API_KEY" required:"true"`
	SecretKey     string        `envconfig:"AGM_MONNIFY_SECRET_KEY" required:"true"`
	ContractCode  string        `envconfig:"AGM_MONNIFY_CONTRACT_CODE" required:"true"`
	WebhookSecret string        `envconfig:"AGM_MONNIFY_WEBHOOK_SECRET" required:"true"`
	WalletAccount string        `envconfig:"AGM_MONNIFY_WALLET_ACCOUNT" default:""`
	Timeout       time.Duration `envconfig:"AGM_MONNIFY_TIMEOUT" default:"30s"`
}

type FeesConfig struct {
	// AGMFeePercent is the platform commission recorded on each order.
	// Informational in the current model: it is not added to the total.
	AGMFeePercent float64 `envconfig:"AGM_FEE_PERCENT" default:"5"`
}

type SweepConfig struct {
	Interval       time.Duration `envconfig:"AGM_SWEEP_INTERVAL" default:"1m"`
	PaymentTTL     time.Duration `envconfig:"AGM_SWEEP_PAYMENT_TTL" default:"30m"`
	LockTTL        time.Duration `envconfig:"AGM_SWEEP_LOCK_TTL" default:"5m"`
	MetricsAddress string        `envconfig:"AGM_SWEEP_METRICS_ADDR" default:":9091"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
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
