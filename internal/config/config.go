package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	Tracker TrackerConfig `mapstructure:"tracker"`
	Locale  LocaleConfig  `mapstructure:"locale"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// RedisConfig leaves Addr empty to run without the recent-analyses feed.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TTL       time.Duration `mapstructure:"ttl"`
	MaxRecent int64         `mapstructure:"max_recent"`
}

type IngestConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

type TrackerConfig struct {
	WindowSize      int     `mapstructure:"window_size"`
	ZScoreThreshold float64 `mapstructure:"z_score_threshold"`
}

type LocaleConfig struct {
	Default string `mapstructure:"default"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func (s ServerConfig) Addr() string {
	return ":" + s.Port
}

const envPrefix = "AIRQ"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", time.Hour)
	v.SetDefault("redis.max_recent", 1000)

	v.SetDefault("ingest.queue_size", 10000)

	v.SetDefault("tracker.window_size", 50)
	v.SetDefault("tracker.z_score_threshold", 2.0)

	v.SetDefault("locale.default", "en")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads defaults, then an optional YAML file, then the environment.
// Variables use the AIRQ_ prefix (AIRQ_REDIS_ADDR); PORT and REDIS_ADDR
// are also honoured. A .env file in the working directory is loaded first
// when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", envPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("redis.addr", envPrefix+"_REDIS_ADDR", "REDIS_ADDR"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port == "" {
		return errors.New("server port must be set")
	}
	if c.Ingest.QueueSize <= 0 {
		return fmt.Errorf("ingest queue size must be positive, got %d", c.Ingest.QueueSize)
	}
	if c.Tracker.WindowSize < 2 {
		return fmt.Errorf("tracker window must hold at least 2 scores, got %d", c.Tracker.WindowSize)
	}
	if c.Tracker.ZScoreThreshold <= 0 {
		return fmt.Errorf("tracker z-score threshold must be positive, got %v", c.Tracker.ZScoreThreshold)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
