package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	MqttCfg   *MqttConfig
	DeviceCfg *DeviceConfig

	DatabaseURL      string `env:"DATABASE_URL"`
	MigrationsFolder string `env:"MIGRATIONS_FOLDER" envDefault:"migrations"`
	ListenAddress    string `env:"LISTEN_ADDRESS" envDefault:":8080"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
}

type MqttConfig struct {
	Host     string `env:"MQTT_HOST" envDefault:"localhost"`
	Port     int    `env:"MQTT_PORT" envDefault:"1883"`
	Username string `env:"MQTT_USERNAME"`
	Password string `env:"MQTT_PASSWORD"`
	ClientID string `env:"MQTT_CLIENT_ID" envDefault:"petlibro-controller"`
}

type DeviceConfig struct {
	SerialNumber string        `env:"DEVICE_SERIAL"`
	Type         string        `env:"DEVICE_TYPE" envDefault:"feeder"`
	Name         string        `env:"DEVICE_NAME"`
	ScanInterval time.Duration `env:"SCAN_INTERVAL" envDefault:"60s"`
	// TimezoneOffset is the signed hour offset pushed to the device on
	// time sync. Unset means follow the host timezone.
	TimezoneOffset *int `env:"TIMEZONE_OFFSET"`
}

// FromEnv reads the full configuration from the environment.
func FromEnv() (*Config, error) {
	cfg := &Config{
		MqttCfg:   &MqttConfig{},
		DeviceCfg: &DeviceConfig{},
	}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := env.Parse(cfg.MqttCfg); err != nil {
		return nil, err
	}
	if err := env.Parse(cfg.DeviceCfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
