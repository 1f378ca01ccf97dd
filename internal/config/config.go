package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bassista/go_dbproxy/internal/logger"
	"github.com/bassista/go_dbproxy/internal/proxy"
)

const envPrefix = "GO_DBPROXY"

type Config struct {
	Server ServerConfig  `mapstructure:"server"`
	Data   DataConfig    `mapstructure:"data"`
	Proxy  proxy.Options `mapstructure:"proxy"`
	Misc   MiscConfig    `mapstructure:"misc"`
}

type ServerConfig struct {
	Port               int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout" validate:"gt=0"`
	ShutDownTimeout    time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" validate:"gte=0"`
	PersistTimeout     time.Duration `mapstructure:"persist_timeout" validate:"gte=0"`
	CORSAllowedOrigins string        `mapstructure:"cors_allowed_origins"`
}

type DataConfig struct {
	FilePath        string        `mapstructure:"file_path" validate:"required"`
	PersistInterval time.Duration `mapstructure:"persist_interval" validate:"gt=0"`
	Watch           bool          `mapstructure:"watch"`
}

type MiscConfig struct {
	LogLevel string `mapstructure:"log_level"`
	GinMode  string `mapstructure:"gin_mode" validate:"omitempty,oneof=debug release test"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8084)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.request_timeout", time.Second)
	v.SetDefault("server.persist_timeout", 10*time.Second)
	v.SetDefault("server.cors_allowed_origins", "*")

	v.SetDefault("data.file_path", "./config/data/records.json")
	v.SetDefault("data.persist_interval", 5*time.Second)
	v.SetDefault("data.watch", true)

	v.SetDefault("proxy.encryption_key", "")
	v.SetDefault("proxy.cipher", proxy.DefaultCipher)

	v.SetDefault("misc.log_level", "info")
	v.SetDefault("misc.gin_mode", "release")
}

// LoadConfig reads config.yaml from confPath (if present), then a .env file
// from the working directory (if present), then GO_DBPROXY_* environment
// variables, e.g. GO_DBPROXY_PROXY_ENCRYPTION_KEY overrides proxy.encryption_key.
func LoadConfig(confPath string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		logger.WithComponent("config").Debug("loaded .env file")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(confPath)
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		logger.WithComponent("config").Info("no config file found, using defaults and env vars")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := proxy.New(c.Proxy); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
