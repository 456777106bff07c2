package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	redisclient "github.com/yungbote/tastelab-backend/internal/clients/redis"
	"github.com/yungbote/tastelab-backend/internal/data/db"
	"github.com/yungbote/tastelab-backend/internal/observability"
	"github.com/yungbote/tastelab-backend/internal/platform/envutil"
	"github.com/yungbote/tastelab-backend/internal/realtime"
)

// Config is read from defaults, then the optional CONFIG_FILE YAML overlay,
// then environment variables. Later sources win.
type Config struct {
	Port        string `yaml:"port"`
	LogMode     string `yaml:"log_mode"`
	Environment string `yaml:"environment"`

	JWTSecretKey   string        `yaml:"jwt_secret_key"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`

	DBDriver         string `yaml:"db_driver"`
	PostgresDSN      string `yaml:"postgres_dsn"`
	PostgresHost     string `yaml:"postgres_host"`
	PostgresPort     string `yaml:"postgres_port"`
	PostgresUser     string `yaml:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password"`
	PostgresName     string `yaml:"postgres_name"`
	SQLitePath       string `yaml:"sqlite_path"`
	DBMaxOpenConns   int    `yaml:"db_max_open_conns"`
	DBMaxIdleConns   int    `yaml:"db_max_idle_conns"`

	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	UserCacheTTL  time.Duration `yaml:"user_cache_ttl"`

	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsAddr    string `yaml:"metrics_addr"`

	OtelEnabled     bool    `yaml:"otel_enabled"`
	OtelServiceName string  `yaml:"otel_service_name"`
	OtelEndpoint    string  `yaml:"otel_endpoint"`
	OtelHeaders     string  `yaml:"otel_headers"`
	OtelInsecure    bool    `yaml:"otel_insecure"`
	OtelSampleRatio float64 `yaml:"otel_sample_ratio"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	RealtimeOutboundBuffer  int           `yaml:"realtime_outbound_buffer"`
	RealtimeMaxMessageBytes int64         `yaml:"realtime_max_message_bytes"`
	RealtimeWriteTimeout    time.Duration `yaml:"realtime_write_timeout"`
	RealtimePongTimeout     time.Duration `yaml:"realtime_pong_timeout"`
}

func defaultConfig() Config {
	return Config{
		Port:            "8080",
		LogMode:         "development",
		Environment:     "local",
		AccessTokenTTL:  7 * 24 * time.Hour,
		DBDriver:        db.DriverPostgres,
		PostgresHost:    "localhost",
		PostgresPort:    "5432",
		PostgresUser:    "postgres",
		PostgresName:    "tastelab",
		SQLitePath:      "tastelab.db",
		UserCacheTTL:    10 * time.Minute,
		MetricsAddr:     ":9090",
		OtelServiceName: "tastelab-api",
		OtelSampleRatio: 1,
	}
}

// LoadConfig builds the process config. A missing CONFIG_FILE is an error;
// an unset one is not.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()
	if path := envutil.String("CONFIG_FILE", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = envutil.String("PORT", c.Port)
	c.LogMode = envutil.String("LOG_MODE", c.LogMode)
	c.Environment = envutil.String("ENVIRONMENT", c.Environment)

	c.JWTSecretKey = envutil.String("JWT_SECRET_KEY", c.JWTSecretKey)
	c.AccessTokenTTL = envutil.Duration("ACCESS_TOKEN_TTL", c.AccessTokenTTL)

	c.DBDriver = envutil.String("DB_DRIVER", c.DBDriver)
	c.PostgresDSN = envutil.String("POSTGRES_DSN", c.PostgresDSN)
	c.PostgresHost = envutil.String("POSTGRES_HOST", c.PostgresHost)
	c.PostgresPort = envutil.String("POSTGRES_PORT", c.PostgresPort)
	c.PostgresUser = envutil.String("POSTGRES_USER", c.PostgresUser)
	c.PostgresPassword = envutil.String("POSTGRES_PASSWORD", c.PostgresPassword)
	c.PostgresName = envutil.String("POSTGRES_NAME", c.PostgresName)
	c.SQLitePath = envutil.String("SQLITE_PATH", c.SQLitePath)
	c.DBMaxOpenConns = envutil.Int("DB_MAX_OPEN_CONNS", c.DBMaxOpenConns)
	c.DBMaxIdleConns = envutil.Int("DB_MAX_IDLE_CONNS", c.DBMaxIdleConns)

	c.RedisAddr = envutil.String("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = envutil.String("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = envutil.Int("REDIS_DB", c.RedisDB)
	c.UserCacheTTL = envutil.Duration("USER_CACHE_TTL", c.UserCacheTTL)

	c.MetricsEnabled = envutil.Bool("METRICS_ENABLED", c.MetricsEnabled)
	c.MetricsAddr = envutil.String("METRICS_ADDR", c.MetricsAddr)

	c.OtelEnabled = envutil.Bool("OTEL_ENABLED", c.OtelEnabled)
	c.OtelServiceName = envutil.String("OTEL_SERVICE_NAME", c.OtelServiceName)
	c.OtelEndpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", c.OtelEndpoint)
	c.OtelHeaders = envutil.String("OTEL_EXPORTER_OTLP_HEADERS", c.OtelHeaders)
	c.OtelInsecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", c.OtelInsecure)
	if raw := envutil.String("OTEL_SAMPLE_RATIO", ""); raw != "" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			c.OtelSampleRatio = f
		}
	}

	c.CORSAllowedOrigins = envutil.List("CORS_ALLOWED_ORIGINS", c.CORSAllowedOrigins)

	c.RealtimeOutboundBuffer = envutil.Int("REALTIME_OUTBOUND_BUFFER", c.RealtimeOutboundBuffer)
	c.RealtimeMaxMessageBytes = int64(envutil.Int("REALTIME_MAX_MESSAGE_BYTES", int(c.RealtimeMaxMessageBytes)))
	c.RealtimeWriteTimeout = envutil.Duration("REALTIME_WRITE_TIMEOUT", c.RealtimeWriteTimeout)
	c.RealtimePongTimeout = envutil.Duration("REALTIME_PONG_TIMEOUT", c.RealtimePongTimeout)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.DBDriver)) {
	case db.DriverPostgres, db.DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be positive")
	}
	return nil
}

func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func (c Config) DB() db.Config {
	return db.Config{
		Driver:           c.DBDriver,
		PostgresDSN:      c.PostgresDSN,
		PostgresHost:     c.PostgresHost,
		PostgresPort:     c.PostgresPort,
		PostgresUser:     c.PostgresUser,
		PostgresPassword: c.PostgresPassword,
		PostgresName:     c.PostgresName,
		SQLitePath:       c.SQLitePath,
		MaxOpenConns:     c.DBMaxOpenConns,
		MaxIdleConns:     c.DBMaxIdleConns,
	}
}

func (c Config) UserCache() redisclient.UserCacheConfig {
	return redisclient.UserCacheConfig{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
		TTL:      c.UserCacheTTL,
	}
}

func (c Config) Otel() observability.OtelConfig {
	return observability.OtelConfig{
		Enabled:     c.OtelEnabled,
		ServiceName: c.OtelServiceName,
		Environment: c.Environment,
		Endpoint:    c.OtelEndpoint,
		Headers:     observability.ParseHeaders(c.OtelHeaders),
		Insecure:    c.OtelInsecure,
		SampleRatio: c.OtelSampleRatio,
	}
}

func (c Config) Realtime() realtime.Config {
	return realtime.Config{
		OutboundBuffer:  c.RealtimeOutboundBuffer,
		MaxMessageBytes: c.RealtimeMaxMessageBytes,
		WriteTimeout:    c.RealtimeWriteTimeout,
		PongTimeout:     c.RealtimePongTimeout,
		AllowedOrigins:  c.CORSAllowedOrigins,
	}
}
