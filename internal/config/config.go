package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/billforge/billforge/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment   DeploymentConfig   `validate:"required"`
	Logging      LoggingConfig      `validate:"required"`
	Notification NotificationConfig `validate:"required"`
	Kafka        KafkaConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

// NotificationConfig tunes the subscription notification queue: the topic the
// scheduler publishes due notifications on and the retry policy applied by the
// consumer router before a message is parked on the poison queue.
type NotificationConfig struct {
	ServiceName     string `validate:"required"`
	Topic           string `validate:"required"`
	PollInterval    time.Duration
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/billforge")

	// Set up environment variables support
	v.SetEnvPrefix("BILLFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file if exists
	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.ModeLocal)
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("notification.servicename", "subscription-service")
	v.SetDefault("notification.topic", "subscription_notifications")
	v.SetDefault("notification.pollinterval", time.Second)
	v.SetDefault("notification.maxretries", 3)
	v.SetDefault("notification.initialinterval", 100*time.Millisecond)
	v.SetDefault("notification.maxinterval", 10*time.Second)
	v.SetDefault("notification.multiplier", 2.0)
	v.SetDefault("notification.maxelapsedtime", time.Minute)
}

func (c *Configuration) Validate() error {
	return validator.New().Struct(c)
}

// GetDefaultConfig returns a configuration suitable for tests and local tools.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelInfo},
		Notification: NotificationConfig{
			ServiceName:     "subscription-service",
			Topic:           "subscription_notifications",
			PollInterval:    10 * time.Millisecond,
			MaxRetries:      3,
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     time.Second,
			Multiplier:      2.0,
			MaxElapsedTime:  30 * time.Second,
		},
	}
}
