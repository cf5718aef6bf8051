package config

import (
	"fmt"
	"strings"
	"time"

	"bloodmatch/internal/common"
	"bloodmatch/pkg/sqldb"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ClassifierHTTP = "http"
	ClassifierExec = "exec"
	ClassifierNone = "none"
)

type Config struct {
	ServerAddress   string
	ShutdownTimeout time.Duration
	PublicBaseURL   string
	MaxUploadBytes  int64

	DBDriver         string
	PostgresConn     string
	PostgresDatabase string
	SQLitePath       string

	PredictThreshold  float64
	ClassifierMode    string
	ClassifierURL     string
	ClassifierCommand []string
	ClassifierTimeout time.Duration

	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	PredictionCacheTTL time.Duration

	// ExpirySweepInterval runs the expiry sweep in the background when positive.
	ExpirySweepInterval time.Duration

	LogLevel  string
	LogFormat string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_ADDRESS", ":8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", 30*time.Second)
	v.SetDefault("PUBLIC_BASE_URL", "")
	v.SetDefault("MAX_UPLOAD_BYTES", 16<<20)
	v.SetDefault("DB_DRIVER", sqldb.DriverPostgres)
	v.SetDefault("POSTGRES_CONN", "")
	v.SetDefault("POSTGRES_DATABASE", "postgres")
	v.SetDefault("SQLITE_PATH", "bloodmatch.db")
	v.SetDefault("PREDICT_THRESHOLD", common.DefaultThreshold)
	v.SetDefault("CLASSIFIER_MODE", ClassifierHTTP)
	v.SetDefault("CLASSIFIER_URL", "http://localhost:5001")
	v.SetDefault("CLASSIFIER_COMMAND", "")
	v.SetDefault("CLASSIFIER_TIMEOUT", 30*time.Second)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("PREDICTION_CACHE_TTL", 24*time.Hour)
	v.SetDefault("EXPIRY_SWEEP_INTERVAL", time.Duration(0))
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// Load reads an optional .env file, then the environment, then the file named
// by CONFIG_FILE if any. Environment variables win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		ServerAddress:       v.GetString("SERVER_ADDRESS"),
		ShutdownTimeout:     v.GetDuration("SHUTDOWN_TIMEOUT"),
		PublicBaseURL:       v.GetString("PUBLIC_BASE_URL"),
		MaxUploadBytes:      v.GetInt64("MAX_UPLOAD_BYTES"),
		DBDriver:            strings.ToLower(v.GetString("DB_DRIVER")),
		PostgresConn:        v.GetString("POSTGRES_CONN"),
		PostgresDatabase:    v.GetString("POSTGRES_DATABASE"),
		SQLitePath:          v.GetString("SQLITE_PATH"),
		PredictThreshold:    v.GetFloat64("PREDICT_THRESHOLD"),
		ClassifierMode:      strings.ToLower(v.GetString("CLASSIFIER_MODE")),
		ClassifierURL:       v.GetString("CLASSIFIER_URL"),
		ClassifierCommand:   strings.Fields(v.GetString("CLASSIFIER_COMMAND")),
		ClassifierTimeout:   v.GetDuration("CLASSIFIER_TIMEOUT"),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		RedisPassword:       v.GetString("REDIS_PASSWORD"),
		RedisDB:             v.GetInt("REDIS_DB"),
		PredictionCacheTTL:  v.GetDuration("PREDICTION_CACHE_TTL"),
		ExpirySweepInterval: v.GetDuration("EXPIRY_SWEEP_INTERVAL"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		LogFormat:           v.GetString("LOG_FORMAT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case sqldb.DriverPostgres:
		if c.PostgresConn == "" {
			return fmt.Errorf("POSTGRES_CONN is required for the %s driver", c.DBDriver)
		}
	case sqldb.DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the %s driver", c.DBDriver)
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}

	switch c.ClassifierMode {
	case ClassifierHTTP:
		if c.ClassifierURL == "" {
			return fmt.Errorf("CLASSIFIER_URL is required in %s mode", c.ClassifierMode)
		}
	case ClassifierExec:
		if len(c.ClassifierCommand) == 0 {
			return fmt.Errorf("CLASSIFIER_COMMAND is required in %s mode", c.ClassifierMode)
		}
	case ClassifierNone:
	default:
		return fmt.Errorf("unknown CLASSIFIER_MODE %q", c.ClassifierMode)
	}

	if c.PredictThreshold < 0 || c.PredictThreshold > 1 {
		return fmt.Errorf("PREDICT_THRESHOLD should be between 0 and 1, got %v", c.PredictThreshold)
	}
	if c.ClassifierTimeout <= 0 {
		return fmt.Errorf("CLASSIFIER_TIMEOUT should be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES should be positive")
	}

	return nil
}

// SQLiteDSN enables foreign keys, which sqlite leaves off per connection.
func (c *Config) SQLiteDSN() string {
	return fmt.Sprintf("file:%s?_foreign_keys=1&_busy_timeout=5000", c.SQLitePath)
}

func (c *Config) DSN() string {
	if c.DBDriver == sqldb.DriverSQLite {
		return c.SQLiteDSN()
	}

	return c.PostgresConn
}
