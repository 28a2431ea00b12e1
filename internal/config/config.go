// Package config loads mdpanel settings from defaults, an optional YAML
// file, a .env file and MDPANEL_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MDPANEL_DETECTOR_URL.
const EnvPrefix = "MDPANEL"

// Config is the complete mdpanel configuration.
type Config struct {
	Detector  DetectorConfig  `mapstructure:"detector"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Server    ServerConfig    `mapstructure:"server"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Log       LogConfig       `mapstructure:"log"`
}

// DetectorConfig locates the detector. An empty URL means discover it.
type DetectorConfig struct {
	URL             string        `mapstructure:"url" validate:"omitempty,url"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gte=5s"`
	IdentifierField int           `mapstructure:"identifier_field" validate:"gte=0"`
}

type RefreshConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
}

type ServerConfig struct {
	Addr        string  `mapstructure:"addr" validate:"required,hostname_port"`
	ActionRate  float64 `mapstructure:"action_rate" validate:"gt=0"`
	ActionBurst int     `mapstructure:"action_burst" validate:"gte=1"`
}

// MQTTConfig configures the optional alarm relay.
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker" validate:"required_if=Enabled true"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic" validate:"required_if=Enabled true"`
	QoS      int    `mapstructure:"qos" validate:"gte=0,lte=2"`
}

type DiscoveryConfig struct {
	Service        string        `mapstructure:"service"`
	InstancePrefix string        `mapstructure:"instance_prefix"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("detector.url", "")
	v.SetDefault("detector.timeout", 5*time.Second)
	v.SetDefault("detector.identifier_field", 1)
	v.SetDefault("refresh.interval", 5*time.Second)
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.action_rate", 5.0)
	v.SetDefault("server.action_burst", 10)
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "mdpanel")
	v.SetDefault("mqtt.topic", "maxdetector")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("discovery.service", "_http._tcp")
	v.SetDefault("discovery.instance_prefix", "maxdetector")
	v.SetDefault("discovery.timeout", 3*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads the configuration. path may be empty. A missing .env file in
// the working directory is not an error; variables already set in the
// environment win over .env entries.
func Load(path string) (*Config, error) {
	return load(path, ".env")
}

func load(path, dotenv string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field rule and reports all violations at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s: failed %q (%s)", fe.Namespace(), fe.Tag(), fe.Param())
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Settings returns the configuration as nested maps keyed like the YAML
// file, with durations in their string form.
func (c *Config) Settings() map[string]any {
	return map[string]any{
		"detector": map[string]any{
			"url":              c.Detector.URL,
			"timeout":          c.Detector.Timeout.String(),
			"identifier_field": c.Detector.IdentifierField,
		},
		"refresh": map[string]any{
			"interval": c.Refresh.Interval.String(),
		},
		"server": map[string]any{
			"addr":         c.Server.Addr,
			"action_rate":  c.Server.ActionRate,
			"action_burst": c.Server.ActionBurst,
		},
		"mqtt": map[string]any{
			"enabled":   c.MQTT.Enabled,
			"broker":    c.MQTT.Broker,
			"client_id": c.MQTT.ClientID,
			"topic":     c.MQTT.Topic,
			"qos":       c.MQTT.QoS,
		},
		"discovery": map[string]any{
			"service":         c.Discovery.Service,
			"instance_prefix": c.Discovery.InstancePrefix,
			"timeout":         c.Discovery.Timeout.String(),
		},
		"log": map[string]any{
			"level":       c.Log.Level,
			"development": c.Log.Development,
		},
	}
}
