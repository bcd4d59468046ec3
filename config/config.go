package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the dartsensord daemon configuration.
type Config struct {
	InstanceID string        `yaml:"instance_id"`
	Relay      RelayConfig   `yaml:"relay"`
	Storage    StorageConfig `yaml:"storage"`
	MQTT       MQTTConfig    `yaml:"mqtt"`
	TuningPath string        `yaml:"tuning_path"` // optional JSON tuning overrides
}

// RelayConfig locates the video transport relay.
type RelayConfig struct {
	Address string `yaml:"address"` // host:port of the frame relay
}

// StorageConfig contains persistence paths.
type StorageConfig struct {
	CalibrationDB string `yaml:"calibration_db"`
}

// MQTTConfig contains the scoring ledger broker settings.
type MQTTConfig struct {
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
	QoS    byte   `yaml:"qos"`
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %v", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and fills safe defaults.
func (c *Config) Validate() error {
	if c.Relay.Address == "" {
		return fmt.Errorf("relay.address is required")
	}
	if c.Storage.CalibrationDB == "" {
		c.Storage.CalibrationDB = "calibration.db"
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		return fmt.Errorf("mqtt.topic is required when mqtt.broker is set")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if c.InstanceID == "" {
		c.InstanceID = "dartsensor"
	}
	return nil
}
