package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"ozzus/bell-gateway/internal/broadcast"
	"ozzus/bell-gateway/internal/domain"
)

type Config struct {
	Env       string          `mapstructure:"env"`
	Instance  string          `mapstructure:"instance"`
	Server    ServerConfig    `mapstructure:"server"`
	Bells     BellsConfig     `mapstructure:"bells"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// TriggerRate ограничивает частоту ручных запусков (в секунду)
	TriggerRate  float64 `mapstructure:"trigger_rate"`
	TriggerBurst int     `mapstructure:"trigger_burst"`
}

type BellsConfig struct {
	Endpoints  []string      `mapstructure:"endpoints"`
	Timeout    time.Duration `mapstructure:"timeout"`
	PingCount  int           `mapstructure:"ping_count"`
	Privileged bool          `mapstructure:"ping_privileged"`
}

type BackendConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	// при пустом CommandsTopic слушатель команд не запускается
	CommandsTopic string `mapstructure:"commands_topic"`
	GroupID       string `mapstructure:"group_id"`
}

type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Spec     string        `mapstructure:"spec"`
	Grace    time.Duration `mapstructure:"grace"`
	Timezone string        `mapstructure:"timezone"`
}

// Loader wraps a viper instance so the config file can be re-read on change.
type Loader struct {
	v *viper.Viper
}

func NewLoader() *Loader {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("local")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	return &Loader{v: v}
}

// Load reads configuration from defaults, an optional file and the environment.
func Load() (*Config, error) {
	return NewLoader().Load()
}

func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := l.v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Bells.Endpoints = compact(cfg.Bells.Endpoints)
	cfg.Kafka.Brokers = compact(cfg.Kafka.Brokers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Watch re-decodes the config file whenever it changes and hands valid
// results to onChange. Invalid edits are reported to onError and ignored.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// ConfigFile returns the file in use, empty when running from env only.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("instance", "bell-gateway-01")

	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.trigger_rate", 1.0)
	v.SetDefault("server.trigger_burst", 2)

	// Bells defaults
	v.SetDefault("bells.endpoints", []string{})
	v.SetDefault("bells.timeout", 5*time.Second)
	v.SetDefault("bells.ping_count", 3)
	v.SetDefault("bells.ping_privileged", false)

	// Backend defaults
	v.SetDefault("backend.url", "http://127.0.0.1:5000")
	v.SetDefault("backend.timeout", 10*time.Second)

	// Kafka defaults
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "bell-rings")
	v.SetDefault("kafka.commands_topic", "")
	v.SetDefault("kafka.group_id", "bell-gateway")

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.spec", "@every 1s")
	v.SetDefault("scheduler.grace", time.Minute)
	v.SetDefault("scheduler.timezone", "Local")
}

func (c *Config) Validate() error {
	if c.Bells.Timeout <= 0 {
		return fmt.Errorf("bells.timeout must be positive, got %s", c.Bells.Timeout)
	}

	if err := broadcast.ValidateEndpoints(c.Endpoints()); err != nil {
		return fmt.Errorf("bells.endpoints: %w", err)
	}

	if c.Server.TriggerRate <= 0 {
		return fmt.Errorf("server.trigger_rate must be positive, got %v", c.Server.TriggerRate)
	}

	if c.Server.TriggerBurst <= 0 {
		return fmt.Errorf("server.trigger_burst must be positive, got %d", c.Server.TriggerBurst)
	}

	if c.Backend.URL == "" {
		return errors.New("backend.url is required")
	}

	if c.Kafka.CommandsTopic != "" && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.commands_topic requires kafka.brokers")
	}

	if c.Scheduler.Enabled && c.Scheduler.Grace <= 0 {
		return fmt.Errorf("scheduler.grace must be positive, got %s", c.Scheduler.Grace)
	}

	return nil
}

func (c *Config) Endpoints() []domain.Endpoint {
	eps := make([]domain.Endpoint, len(c.Bells.Endpoints))
	for i, e := range c.Bells.Endpoints {
		eps[i] = domain.Endpoint(e)
	}
	return eps
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
