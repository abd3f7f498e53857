package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"gymsync" validate:"required"`
	Port                          int      `env:"PORT" env-default:"3004" validate:"min=1,max=65535"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"600"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"60"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5" validate:"min=1"`

	// PostgreSQL
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres" validate:"required"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost" validate:"required"`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432" validate:"required"`
	DatabaseUserName              string        `env:"DB_USER_NAME"`
	DatabasePassword              string        `env:"DB_PASSWORD"`
	DatabaseName                  string        `env:"DB_NAME" env-default:"gymsync" validate:"required"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
	DatabaseSlowQueryThreshold    time.Duration `env:"DB_SLOW_QUERY_THRESHOLD" env-default:"500ms"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH"` // empty runs the embedded migrations
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0" validate:"min=0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Redis (job locks and run records)
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost" validate:"required"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379" validate:"min=1,max=65535"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" env-default:"0" validate:"min=0"`

	// Kafka Producer settings
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"gym-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1" validate:"oneof=-1 0 1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`

	// Tracing (OTLP)
	TracingEnabled  bool          `env:"TRACING_ENABLED" env-default:"false"`
	TracingEndpoint string        `env:"TRACING_ENDPOINT" env-default:"localhost:4317"`
	TracingProtocol string        `env:"TRACING_PROTOCOL" env-default:"grpc" validate:"oneof=grpc http"`
	TracingInsecure bool          `env:"TRACING_INSECURE" env-default:"true"`
	TracingHeaders  []string      `env:"TRACING_HEADERS"` // key=value pairs
	TracingTimeout  time.Duration `env:"TRACING_TIMEOUT" env-default:"10s"`

	// Matching
	AutoLinkThreshold int    `env:"AUTO_LINK_THRESHOLD" env-default:"90" validate:"min=0,max=100"`
	ReviewThreshold   int    `env:"REVIEW_THRESHOLD" env-default:"70" validate:"min=0,max=100,ltefield=AutoLinkThreshold"`
	MatchStrategy     string `env:"MATCH_STRATEGY" env-default:"jaro_winkler" validate:"oneof=legacy jaro_winkler"`
	LexiconPath       string `env:"LEXICON_PATH"`

	// Scheduled jobs
	SyncJJWLInterval  time.Duration `env:"SYNC_JJWL_INTERVAL" env-default:"24h"`
	SyncIBJJFInterval time.Duration `env:"SYNC_IBJJF_INTERVAL" env-default:"168h"`
	SyncLockTTL       time.Duration `env:"SYNC_LOCK_TTL" env-default:"30m"`
	SyncRunOnStart    bool          `env:"SYNC_RUN_ON_START" env-default:"false"`

	// Roster refresh
	RosterBatchSize        int           `env:"ROSTER_BATCH_SIZE" env-default:"10" validate:"min=1"`
	RosterDelay            time.Duration `env:"ROSTER_DELAY" env-default:"1s"`
	RosterLookaheadDays    int           `env:"ROSTER_LOOKAHEAD_DAYS" env-default:"60" validate:"min=1"`
	RosterWishlistInterval time.Duration `env:"ROSTER_WISHLIST_INTERVAL" env-default:"6h"`
	RosterProfileInterval  time.Duration `env:"ROSTER_PROFILE_INTERVAL" env-default:"24h"`

	// Federation APIs
	FederationTimeout    time.Duration `env:"FEDERATION_TIMEOUT" env-default:"30s"`
	FederationUserAgent  string        `env:"FEDERATION_USER_AGENT" env-default:"gymsync/1.0"`
	JJWLBaseURL          string        `env:"JJWL_BASE_URL" env-default:"https://www.jjworldleague.com" validate:"required,url"`
	IBJJFBaseURL         string        `env:"IBJJF_BASE_URL" env-default:"https://ibjjf.com" validate:"required,url"`
	FederationConfigFile string        `env:"FEDERATION_CONFIG_FILE"` // see LoadFederations
}

// Load reads an optional .env file, then binds the environment onto Config
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// TracingHeaderMap splits TRACING_HEADERS entries on their first '='
func (c *Config) TracingHeaderMap() map[string]string {
	if len(c.TracingHeaders) == 0 {
		return nil
	}
	headers := make(map[string]string, len(c.TracingHeaders))
	for _, entry := range c.TracingHeaders {
		key, value, _ := strings.Cut(entry, "=")
		if key = strings.TrimSpace(key); key != "" {
			headers[key] = strings.TrimSpace(value)
		}
	}
	return headers
}
