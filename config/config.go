package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	NotifyKafka = "kafka"
	NotifyAMQP  = "amqp"
	NotifyLog   = "log"
)

type (
	Config struct {
		App             App
		HTTP            HTTP
		Log             Log
		Store           Store
		PG              PG
		Redis           Redis
		Auth            Auth
		RateLimit       RateLimit
		Kafka           Kafka
		Notify          Notify
		AMQP            AMQP
		S3              S3
		Dispatch        Dispatch
		OutboxRelay     OutboxRelay
		KafkaController KafkaController
		Maintenance     Maintenance
		Tracing         Tracing
		Swagger         Swagger
	}

	App struct {
		Name        string `env:"APP_NAME" envDefault:"reschedule-engine"`
		Environment string `env:"APP_ENV" envDefault:"local"`
	}

	HTTP struct {
		Port            string        `env:"HTTP_PORT,required"`
		UsePreforkMode  bool          `env:"HTTP_USE_PREFORK_MODE" envDefault:"false"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"5s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"3s"`
	}

	Log struct {
		Level string `env:"LOG_LEVEL,required"`
	}

	// Store selects the backend for every repository. memory keeps state in the
	// process and is meant for local runs.
	Store struct {
		Backend string `env:"STORE_BACKEND" envDefault:"postgres"`
	}

	PG struct {
		PoolMax int    `env:"PG_POOL_MAX" envDefault:"10"`
		URL     string `env:"PG_URL"`
	}

	// Redis, when enabled, holds the idempotency ledger instead of the store.
	Redis struct {
		Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
		Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
		Password string `env:"REDIS_PASSWORD"`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Auth struct {
		JWTSecret        string        `env:"AUTH_JWT_SECRET,required"`
		ServiceToken     string        `env:"AUTH_SERVICE_TOKEN"`
		ApprovalSecret   string        `env:"AUTH_APPROVAL_SECRET,required"`
		ApprovalTokenTTL time.Duration `env:"AUTH_APPROVAL_TOKEN_TTL" envDefault:"72h"`
	}

	RateLimit struct {
		RPS             float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
		Burst           int           `env:"RATE_LIMIT_BURST" envDefault:"40"`
		CleanupInterval time.Duration `env:"RATE_LIMIT_CLEANUP_INTERVAL" envDefault:"1m"`
	}

	Kafka struct {
		Brokers           []string      `env:"KAFKA_BROKERS"`
		GroupID           string        `env:"KAFKA_GROUP_ID" envDefault:"reschedule-engine"`
		IngestTopic       string        `env:"KAFKA_INGEST_TOPIC" envDefault:"connector.events"`
		NotificationTopic string        `env:"KAFKA_NOTIFICATION_TOPIC" envDefault:"engine.notifications"`
		DispatchTopic     string        `env:"KAFKA_DISPATCH_TOPIC" envDefault:"engine.dispatch"`
		MaxWait           time.Duration `env:"KAFKA_MAX_WAIT" envDefault:"500ms"`
		BatchTimeout      time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"10ms"`
	}

	Notify struct {
		Transport string `env:"NOTIFY_TRANSPORT" envDefault:"log"`
	}

	AMQP struct {
		URL      string `env:"AMQP_URL"`
		Exchange string `env:"AMQP_EXCHANGE" envDefault:"notifications"`
	}

	// S3 backs the audit export; without it the export endpoint answers 503.
	S3 struct {
		Enabled        bool          `env:"S3_ENABLED" envDefault:"false"`
		Endpoint       string        `env:"S3_ENDPOINT"`
		AccessKey      string        `env:"S3_ACCESS_KEY"`
		SecretKey      string        `env:"S3_SECRET_KEY"`
		Bucket         string        `env:"S3_BUCKET" envDefault:"audit"`
		Region         string        `env:"S3_REGION" envDefault:"garage"`
		PathStyle      bool          `env:"S3_PATH_STYLE" envDefault:"true"`
		CfgLoadTimeout time.Duration `env:"S3_LOAD_CFG_TIMEOUT" envDefault:"10s"`
	}

	Dispatch struct {
		Enabled             bool          `env:"DISPATCH_ENABLED" envDefault:"false"`
		Types               []string      `env:"DISPATCH_TYPES"`
		PollInterval        time.Duration `env:"DISPATCH_POLL_INTERVAL" envDefault:"2s"`
		ProcessBatchTimeout time.Duration `env:"DISPATCH_PROCESS_BATCH_TIMEOUT" envDefault:"15s"`
		ShutdownTimeout     time.Duration `env:"DISPATCH_SHUTDOWN_TIMEOUT" envDefault:"5s"`
		BatchSize           int           `env:"DISPATCH_BATCH_SIZE" envDefault:"50"`
	}

	OutboxRelay struct {
		Enabled             bool          `env:"OUTBOX_RELAY_ENABLED" envDefault:"true"`
		PollInterval        time.Duration `env:"OUTBOX_RELAY_POLL_INTERVAL" envDefault:"2s"`
		ProcessBatchTimeout time.Duration `env:"OUTBOX_RELAY_PROCESS_BATCH_TIMEOUT" envDefault:"15s"`
		ShutdownTimeout     time.Duration `env:"OUTBOX_RELAY_SHUTDOWN_TIMEOUT" envDefault:"5s"`
		BatchSize           int           `env:"OUTBOX_RELAY_BATCH_SIZE" envDefault:"100"`
		Concurrency         int           `env:"OUTBOX_RELAY_CONCURRENCY" envDefault:"4"`
	}

	KafkaController struct {
		Enabled         bool          `env:"KAFKA_CONTROLLER_ENABLED" envDefault:"false"`
		CommitTimeout   time.Duration `env:"KAFKA_CONTROLLER_COMMIT_TIMEOUT" envDefault:"2s"`
		ProcessTimeout  time.Duration `env:"KAFKA_CONTROLLER_PROCESS_TIMEOUT" envDefault:"15s"` // весь батч коннектора, включая запись в БД
		ShutdownTimeout time.Duration `env:"KAFKA_CONTROLLER_SHUTDOWN_TIMEOUT" envDefault:"5s"`
		Workers         int           `env:"KAFKA_CONTROLLER_WORKERS" envDefault:"4"`
	}

	// Maintenance intervals of zero disable the matching job.
	Maintenance struct {
		ResetStuckInterval time.Duration `env:"MAINTENANCE_RESET_STUCK_INTERVAL" envDefault:"1m"`
		StuckThreshold     time.Duration `env:"MAINTENANCE_STUCK_THRESHOLD" envDefault:"5m"`
		ExpireInterval     time.Duration `env:"MAINTENANCE_EXPIRE_INTERVAL" envDefault:"1m"`
		ExpireBatch        int           `env:"MAINTENANCE_EXPIRE_BATCH" envDefault:"100"`
		SweepInterval      time.Duration `env:"MAINTENANCE_SWEEP_INTERVAL" envDefault:"1h"`
		CleanupInterval    time.Duration `env:"MAINTENANCE_CLEANUP_INTERVAL" envDefault:"24h"`
		OutboxRetention    time.Duration `env:"MAINTENANCE_OUTBOX_RETENTION" envDefault:"168h"`
		ShutdownTimeout    time.Duration `env:"MAINTENANCE_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	}

	Tracing struct {
		Enabled     bool    `env:"TRACING_ENABLED" envDefault:"false"`
		Endpoint    string  `env:"TRACING_ENDPOINT"`
		Insecure    bool    `env:"TRACING_INSECURE" envDefault:"true"`
		SampleRatio float64 `env:"TRACING_SAMPLE_RATIO" envDefault:"1"`
	}

	Swagger struct {
		Enabled bool `env:"SWAGGER_ENABLED" envDefault:"false"`
	}
)

func New() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if c.PG.URL == "" {
			return fmt.Errorf("PG_URL is required for the %s store", StorePostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	switch c.Notify.Transport {
	case NotifyLog:
	case NotifyKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for the %s transport", NotifyKafka)
		}
	case NotifyAMQP:
		if c.AMQP.URL == "" {
			return fmt.Errorf("AMQP_URL is required for the %s transport", NotifyAMQP)
		}
	default:
		return fmt.Errorf("unknown NOTIFY_TRANSPORT %q", c.Notify.Transport)
	}

	if c.KafkaController.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_CONTROLLER_ENABLED is set")
	}

	if c.S3.Enabled && c.S3.Endpoint == "" {
		return fmt.Errorf("S3_ENDPOINT is required when S3_ENABLED is set")
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("TRACING_ENDPOINT is required when TRACING_ENABLED is set")
	}

	return nil
}
