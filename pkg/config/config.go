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
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GoogleMaps   GoogleMapsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Oracle       OracleConfig
	Matching     MatchingConfig
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
	if err := cfg.Matching.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SURPLUS_APP_ENV" required:"true"`
	Port         string `envconfig:"SURPLUS_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SURPLUS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SURPLUS_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"SURPLUS_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// AllowedOrigins splits the comma separated origin list.
func (a AppConfig) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

type ServiceConfig struct {
	Kind string `envconfig:"SURPLUS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SURPLUS_DB_DSN"`
	Driver string `envconfig:"SURPLUS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SURPLUS_DB_HOST"`
	LegacyPort     int    `envconfig:"SURPLUS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SURPLUS_DB_USER"`
	LegacyPassword string `envconfig:"SURPLUS_DB_PASSWORD"`
	LegacyName     string `envconfig:"SURPLUS_DB_NAME"`
	LegacySSLMode  string `envconfig:"SURPLUS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SURPLUS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SURPLUS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SURPLUS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SURPLUS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"SURPLUS_DB_SLOW_QUERY" default:"500ms"`
	TxRetries       int           `envconfig:"SURPLUS_DB_TX_RETRIES" default:"2"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SURPLUS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SURPLUS_REDIS_ADDR"`
	Password     string        `envconfig:"SURPLUS_REDIS_PASSWORD"`
	DB           int           `envconfig:"SURPLUS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SURPLUS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SURPLUS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SURPLUS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SURPLUS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SURPLUS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies access tokens issued by the identity provider.
type JWTConfig struct {
	Secret            string `envconfig:"SURPLUS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SURPLUS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SURPLUS_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate    bool `envconfig:"SURPLUS_AUTO_MIGRATE" default:"false"`
	AutoPropose    bool `envconfig:"SURPLUS_FEATURE_AUTO_PROPOSE" default:"true"`
	GeocodeAddress bool `envconfig:"SURPLUS_FEATURE_GEOCODE_ADDRESS" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"SURPLUS_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GoogleMapsConfig struct {
	APIKey string `envconfig:"SURPLUS_GOOGLE_MAPS_API_KEY"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"SURPLUS_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON string `envconfig:"SURPLUS_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	EventsTopic              string `envconfig:"SURPLUS_PUBSUB_EVENTS_TOPIC" default:"surplus-domain-events"`
	NotificationSubscription string `envconfig:"SURPLUS_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"SURPLUS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"SURPLUS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"SURPLUS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"SURPLUS_OUTBOX_RETENTION" default:"720h"`
}

// OracleConfig points at the external scoring and prediction service.
type OracleConfig struct {
	BaseURL        string        `envconfig:"SURPLUS_ORACLE_BASE_URL" default:"http://localhost:8000"`
	MatchTimeout   time.Duration `envconfig:"SURPLUS_ORACLE_MATCH_TIMEOUT" default:"15s"`
	PredictTimeout time.Duration `envconfig:"SURPLUS_ORACLE_PREDICT_TIMEOUT" default:"10s"`
	HealthTimeout  time.Duration `envconfig:"SURPLUS_ORACLE_HEALTH_TIMEOUT" default:"5s"`
}

type MatchingConfig struct {
	CandidateRadiusMeters float64       `envconfig:"SURPLUS_MATCHING_CANDIDATE_RADIUS_METERS" default:"50000"`
	CandidateCap          int           `envconfig:"SURPLUS_MATCHING_CANDIDATE_CAP" default:"20"`
	Workers               int           `envconfig:"SURPLUS_MATCHING_WORKERS" default:"4"`
	QueueSize             int           `envconfig:"SURPLUS_MATCHING_QUEUE_SIZE" default:"256"`
	TaskTimeout           time.Duration `envconfig:"SURPLUS_MATCHING_TASK_TIMEOUT" default:"20s"`
	RequestRateLimit      int           `envconfig:"SURPLUS_MATCHING_REQUEST_RATE_LIMIT" default:"30"`
	RequestRateWindow     time.Duration `envconfig:"SURPLUS_MATCHING_REQUEST_RATE_WINDOW" default:"1m"`
}

func (m MatchingConfig) validate() error {
	if m.CandidateRadiusMeters <= 0 {
		return fmt.Errorf("%s must be positive", EnvMatchingRadius)
	}
	if m.CandidateCap <= 0 {
		return fmt.Errorf("%s must be positive", EnvMatchingCap)
	}
	if m.Workers <= 0 {
		return fmt.Errorf("%s must be positive", EnvMatchingWorkers)
	}
	return nil
}

type CronConfig struct {
	Interval         time.Duration `envconfig:"SURPLUS_CRON_INTERVAL" default:"5m"`
	ExpiryBatchSize  int           `envconfig:"SURPLUS_CRON_EXPIRY_BATCH_SIZE" default:"200"`
	LockTTL          time.Duration `envconfig:"SURPLUS_CRON_LOCK_TTL" default:"4m"`
	MaintenanceEvery time.Duration `envconfig:"SURPLUS_CRON_MAINTENANCE_EVERY" default:"1h"`
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
