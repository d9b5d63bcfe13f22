package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Store     StoreConfig
	Scheduler SchedulerConfig
	Runs      RunsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StoreConfig selects where the domain document, timetables and run log live.
type StoreConfig struct {
	Driver      string
	Dir         string
	RedisPrefix string
}

// SchedulerConfig bounds the placement search and the persisted run log.
type SchedulerConfig struct {
	MaxAttempts           int
	DeterministicAttempts int
	PrefilterAttempts     int
	AvoidLunchAttempts    int
	Seed                  int64
	CommitPolicy          string
	RunTimeout            time.Duration
	LogCapacity           int
}

// RunsConfig governs asynchronous generation runs.
type RunsConfig struct {
	Workers    int
	Buffer     int
	MaxRetries int
	RetryDelay time.Duration
	TTL        time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Store = StoreConfig{
		Driver:      strings.ToLower(v.GetString("STORE_DRIVER")),
		Dir:         v.GetString("STORE_DIR"),
		RedisPrefix: v.GetString("STORE_REDIS_PREFIX"),
	}

	cfg.Scheduler = SchedulerConfig{
		MaxAttempts:           v.GetInt("SCHEDULER_MAX_ATTEMPTS"),
		DeterministicAttempts: v.GetInt("SCHEDULER_DETERMINISTIC_ATTEMPTS"),
		PrefilterAttempts:     v.GetInt("SCHEDULER_PREFILTER_ATTEMPTS"),
		AvoidLunchAttempts:    v.GetInt("SCHEDULER_AVOID_LUNCH_ATTEMPTS"),
		Seed:                  v.GetInt64("SCHEDULER_SEED"),
		CommitPolicy:          v.GetString("SCHEDULER_COMMIT_POLICY"),
		RunTimeout:            parseDuration(v.GetString("SCHEDULER_RUN_TIMEOUT"), 5*time.Minute),
		LogCapacity:           v.GetInt("SCHEDULER_LOG_CAPACITY"),
	}

	cfg.Runs = RunsConfig{
		Workers:    v.GetInt("RUN_WORKERS"),
		Buffer:     v.GetInt("RUN_QUEUE_BUFFER"),
		MaxRetries: v.GetInt("RUN_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("RUN_RETRY_DELAY"), 2*time.Second),
		TTL:        parseDuration(v.GetString("SCHEDULER_RUN_TTL"), 30*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sma_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORE_DRIVER", StoreFile)
	v.SetDefault("STORE_DIR", "./data")
	v.SetDefault("STORE_REDIS_PREFIX", "timetable:")

	v.SetDefault("SCHEDULER_MAX_ATTEMPTS", 50)
	v.SetDefault("SCHEDULER_DETERMINISTIC_ATTEMPTS", 5)
	v.SetDefault("SCHEDULER_PREFILTER_ATTEMPTS", 25)
	v.SetDefault("SCHEDULER_AVOID_LUNCH_ATTEMPTS", 25)
	v.SetDefault("SCHEDULER_SEED", 0)
	v.SetDefault("SCHEDULER_COMMIT_POLICY", "all_or_nothing")
	v.SetDefault("SCHEDULER_RUN_TIMEOUT", "5m")
	v.SetDefault("SCHEDULER_RUN_TTL", "30m")
	v.SetDefault("SCHEDULER_LOG_CAPACITY", 2000)

	v.SetDefault("RUN_WORKERS", 1)
	v.SetDefault("RUN_QUEUE_BUFFER", 8)
	v.SetDefault("RUN_MAX_RETRIES", 3)
	v.SetDefault("RUN_RETRY_DELAY", "2s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
