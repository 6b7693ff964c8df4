package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/agentwars/arena-api/internal/logger"
	"github.com/agentwars/arena-api/internal/validator"
)

type PostgresConfig struct {
	User               string        `validate:"required"`
	Password           string        `validate:"required"`
	Host               string        `validate:"required"`
	Database           string        `validate:"required"`
	MaxIdleConnections int           `validate:"required" mapstructure:"max_idle_connections"`
	MaxOpenConnections int           `validate:"required" mapstructure:"max_open_connections"`
	ConnectionTTL      time.Duration `validate:"required" mapstructure:"connection_ttl"`
	Port               int16         `validate:"required"`
}

type SlogConfig struct {
	Level int `mapstructure:"level"`
}

type GormLogConfig struct {
	Level        int  `mapstructure:"level"`
	TraceQueries bool `mapstructure:"trace_queries"`
}

type LoggingConfig struct {
	Gorm    GormLogConfig `mapstructure:"gorm"`
	App     SlogConfig    `mapstructure:"app"`
	UseOTLP bool          `mapstructure:"use_otlp"`
}

type S3ArchiveConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	SSLEnabled      bool   `mapstructure:"ssl_enabled"`
	Enabled         bool   `mapstructure:"enabled"`
}

type RateLimitConfig struct {
	RedisHost       string `mapstructure:"redis_host"`
	SubmitPerMinute int64  `mapstructure:"submit_per_minute"`
	FailOpen        bool   `mapstructure:"fail_open"`
}

// Knobs for the tick evaluation worker. Per-call timeouts for git and setup
// commands are fixed in the worker; the per-project deadline is the only
// operator-facing budget (zero disables it).
type TickConfig struct {
	Workers         int           `mapstructure:"workers"          validate:"required,min=1"`
	ProjectDeadline time.Duration `mapstructure:"project_deadline"`
}

type ArenaConfig struct {
	Season     string `mapstructure:"season"      validate:"required"`
	OwnerEmail string `mapstructure:"owner_email" validate:"required,email"`
}

// See arena.yaml for an example config
type Config struct {
	Postgres             *PostgresConfig  `mapstructure:"postgres"              validate:"required"`
	Logging              *LoggingConfig   `mapstructure:"logging"               validate:"required"`
	S3Archive            *S3ArchiveConfig `mapstructure:"s3_archive"`
	RateLimit            *RateLimitConfig `mapstructure:"ratelimit"`
	Tick                 *TickConfig      `mapstructure:"tick"                  validate:"required"`
	Arena                *ArenaConfig     `mapstructure:"arena"                 validate:"required"`
	TempDir              *string          `mapstructure:"temp_dir"`
	ListenAddress        string           `mapstructure:"listen_address"        validate:"required"`
	GracefulShutdownSecs int64            `mapstructure:"graceful_shutdown_secs"`
}

const (
	AppLogLevel          string = "logging.app.level"
	EnvPrefix            string = "arena"
	UseOTLP              string = "logging.use_otlp"
	GormLogLevel         string = "logging.gorm.level"
	GormTraceQueries     string = "logging.gorm.trace_queries"
	ListenAddress        string = "listen_address"
	PostgresHost         string = "postgres.host"
	PostgresPort         string = "postgres.port"
	PostgresUser         string = "postgres.user"
	PostgresPassword     string = "postgres.password"
	PostgresDatabase     string = "postgres.database"
	PostgresMaxIdleConns string = "postgres.max_idle_connections"
	PostgresMaxOpenConns string = "postgres.max_open_connections"
	PostgresConnectonTTL string = "postgres.connection_ttl"
	S3ArchiveEnabled     string = "s3_archive.enabled"
	S3AccessKeyID        string = "s3_archive.access_key_id"
	S3SecretAccessKey    string = "s3_archive.secret_access_key"
	S3SSLEnabled         string = "s3_archive.ssl_enabled"
	RedisHost            string = "ratelimit.redis_host"
	SubmitPerMinute      string = "ratelimit.submit_per_minute"
	RateLimitFailOpen    string = "ratelimit.fail_open"
	TickWorkers          string = "tick.workers"
	TickProjectDeadline  string = "tick.project_deadline"
	ArenaSeason          string = "arena.season"
	ArenaOwnerEmail      string = "arena.owner_email"
	TempDir              string = "temp_dir"
	GracefulShutdownSecs string = "graceful_shutdown_secs"
)

var configReady = false
var config Config

func GetConfig() (*Config, error) {
	if configReady {
		logger.Logger.Debug("returning already-loaded config")
		return &config, nil
	}
	logger.Logger.Info("loading config")

	v := viper.New()

	v.SetConfigName("arena")

	v.AddConfigPath("/etc/arena/")
	v.AddConfigPath(".")

	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.AutomaticEnv()

	// workaround for https://github.com/spf13/viper/issues/761
	// bind env vars explicitly so they unmarshal into the nested struct
	err := v.BindEnv(PostgresPassword)
	if err != nil {
		return nil, err
	}

	err = v.BindEnv(S3AccessKeyID)
	if err != nil {
		return nil, err
	}

	err = v.BindEnv(S3SecretAccessKey)
	if err != nil {
		return nil, err
	}

	v.SetDefault(ListenAddress, "[::]:1323")
	v.SetDefault(PostgresHost, "localhost")
	v.SetDefault(PostgresPort, 5432)
	v.SetDefault(PostgresMaxIdleConns, 2)
	v.SetDefault(PostgresMaxOpenConns, 10)
	v.SetDefault(PostgresConnectonTTL, 10*time.Minute)
	v.SetDefault(GormLogLevel, int(slog.LevelDebug))
	v.SetDefault(GormTraceQueries, false)
	v.SetDefault(AppLogLevel, int(slog.LevelDebug))
	v.SetDefault(UseOTLP, false)

	v.SetDefault(S3ArchiveEnabled, false)
	v.SetDefault(S3SSLEnabled, true)

	v.SetDefault(RedisHost, "localhost")
	v.SetDefault(SubmitPerMinute, 0)
	v.SetDefault(RateLimitFailOpen, true)

	// Sequential by default, matching one-project-at-a-time evaluation.
	v.SetDefault(TickWorkers, 1)
	v.SetDefault(TickProjectDeadline, time.Duration(0))

	v.SetDefault(ArenaSeason, "season-1")
	v.SetDefault(ArenaOwnerEmail, "mvp-owner@agentwars.local")

	v.SetDefault(TempDir, "/tmp")
	v.SetDefault(GracefulShutdownSecs, 30)

	err = v.ReadInConfig()
	if err != nil {
		// ignore config file not found to allow pure env config
		if _, ok := err.(*viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	err = v.Unmarshal(&config)
	if err != nil {
		configReady = false
		return nil, err
	}

	valid := validator.Create()
	err = valid.Validate(&config)
	if err != nil {
		configReady = false
		return nil, err
	}

	configReady = true
	return &config, nil
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s",
		url.QueryEscape(c.Postgres.User),
		url.QueryEscape(c.Postgres.Password),
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.Database,
	)
}
