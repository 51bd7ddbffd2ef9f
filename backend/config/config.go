package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SIGNAL"

var (
	ErrParse  = errors.New("failed to parse configuration")
	ErrFormat = errors.New("unknown log format")
)

type Config struct {
	APIListenAddr  string        `mapstructure:"api-listen-addr"`
	WSListenAddr   string        `mapstructure:"ws-listen-addr"`
	LogLevel       string        `mapstructure:"log-level"`
	LogFormat      string        `mapstructure:"log-format"`
	AllowedOrigins []string      `mapstructure:"allowed-origins"`
	MaxMessageSize int64         `mapstructure:"ws-max-message-size"`
	SendQueueSize  int           `mapstructure:"ws-send-queue"`
	PingInterval   time.Duration `mapstructure:"ws-ping-interval"`
	PongWait       time.Duration `mapstructure:"ws-pong-wait"`
	WriteTimeout   time.Duration `mapstructure:"ws-write-timeout"`
}

// Load resolves configuration from args, then SIGNAL_* environment
// variables, then the optional --config file, then flag defaults.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("main", pflag.ContinueOnError)

	configFile := fs.StringP("config", "c", "", "path to yaml config file")
	fs.StringP("api-listen-addr", "a", ":8080", "api listen address")
	fs.StringP("ws-listen-addr", "w", ":8888", "websocket signaling listen address")
	fs.StringP("log-level", "l", "debug", "log level")
	fs.String("log-format", "json", "log format: json or console")
	fs.StringSlice("allowed-origins", []string{"*"}, "allowed websocket origins (hosts or full origins), * allows any")
	fs.Int64("ws-max-message-size", 64*1024, "max inbound websocket message size in bytes")
	fs.Int("ws-send-queue", 256, "per-connection outbound frame queue length")
	fs.Duration("ws-ping-interval", 5*time.Second, "transport ping interval")
	fs.Duration("ws-pong-wait", 7*time.Second, "how long to wait for any inbound traffic before dropping a connection")
	fs.Duration("ws-write-timeout", 5*time.Second, "websocket write deadline")

	if err := fs.Parse(args); err != nil {
		return nil, errors.Join(ErrParse, err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Join(ErrParse, err)
	}
	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Join(ErrParse, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Join(ErrParse, err)
	}
	return &cfg, nil
}

func (cfg *Config) Level() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.NoLevel, errors.Join(ErrParse, err)
	}
	return lvl, nil
}

func (cfg *Config) Validate() error {
	switch cfg.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("%w: %q", ErrFormat, cfg.LogFormat)
	}
	if cfg.PongWait <= cfg.PingInterval {
		return fmt.Errorf("%w: ws-pong-wait (%s) must exceed ws-ping-interval (%s)",
			ErrParse, cfg.PongWait, cfg.PingInterval)
	}
	if _, err := cfg.Level(); err != nil {
		return err
	}
	return nil
}
