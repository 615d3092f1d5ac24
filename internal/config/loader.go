package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rpattn/wastelog/internal/consumer"
	"github.com/rpattn/wastelog/internal/db"
	"github.com/rpattn/wastelog/internal/logging"
	"github.com/rpattn/wastelog/internal/queue"
	"github.com/rpattn/wastelog/internal/storage"
	"github.com/rpattn/wastelog/internal/uploader"
)

// EnvPrefix namespaces environment overrides, e.g. WASTELOG_DATABASE_HOST.
const EnvPrefix = "WASTELOG"

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// QueueConfig names the command queue and its delivery settings.
type QueueConfig struct {
	Name              string        `mapstructure:"name"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
}

// RefDataConfig tunes registration lookups.
type RefDataConfig struct {
	BatchWait time.Duration `mapstructure:"batch_wait"`
}

// Config is the full process configuration.
type Config struct {
	Database db.Config        `mapstructure:"database"`
	HTTP     HTTPConfig       `mapstructure:"http"`
	Queue    QueueConfig      `mapstructure:"queue"`
	Worker   consumer.Config  `mapstructure:"worker"`
	Storage  storage.S3Config `mapstructure:"storage"`
	Uploader uploader.Config  `mapstructure:"uploader"`
	RefData  RefDataConfig    `mapstructure:"refdata"`
	Logging  logging.Config   `mapstructure:"logging"`
}

func setDefaults(v *viper.Viper) {
	database := db.DefaultConfig()
	v.SetDefault("database.host", database.Host)
	v.SetDefault("database.port", database.Port)
	v.SetDefault("database.user", database.User)
	v.SetDefault("database.password", database.Password)
	v.SetDefault("database.dbname", database.DBName)
	v.SetDefault("database.sslmode", database.SSLMode)
	v.SetDefault("database.max_conns", database.MaxConns)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("queue.name", "summary-log-commands")
	v.SetDefault("queue.visibility_timeout", queue.DefaultVisibilityTimeout)

	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.batch_size", 10)
	v.SetDefault("worker.max_receive_count", 3)
	v.SetDefault("worker.poll_interval", time.Second)
	v.SetDefault("worker.command_timeout", 5*time.Minute)

	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.region", "eu-west-2")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.use_ssl", false)

	v.SetDefault("uploader.base_url", "http://localhost:7337")
	v.SetDefault("uploader.timeout", 10*time.Second)
	v.SetDefault("uploader.rate_limit", 20.0)
	v.SetDefault("uploader.rate_burst", 5)

	v.SetDefault("refdata.batch_wait", 2*time.Millisecond)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}

// Load reads config.yaml from configPath when present and applies
// environment overrides on top of the defaults.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
