package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.MqttCfg.Host)
	assert.Equal(t, 1883, cfg.MqttCfg.Port)
	assert.Equal(t, "petlibro-controller", cfg.MqttCfg.ClientID)
	assert.Equal(t, "feeder", cfg.DeviceCfg.Type)
	assert.Equal(t, 60*time.Second, cfg.DeviceCfg.ScanInterval)
	assert.Nil(t, cfg.DeviceCfg.TimezoneOffset)
	assert.Equal(t, "migrations", cfg.MigrationsFolder)
	assert.Equal(t, ":8080", cfg.ListenAddress)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestFromEnv_ReadsEnvironment(t *testing.T) {
	t.Setenv("MQTT_HOST", "broker.home")
	t.Setenv("MQTT_PORT", "8883")
	t.Setenv("DEVICE_SERIAL", "PLAF3011234567")
	t.Setenv("DEVICE_TYPE", "fountain")
	t.Setenv("SCAN_INTERVAL", "30s")
	t.Setenv("TIMEZONE_OFFSET", "-5")
	t.Setenv("DATABASE_URL", "postgres://localhost/petlibro")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "broker.home", cfg.MqttCfg.Host)
	assert.Equal(t, 8883, cfg.MqttCfg.Port)
	assert.Equal(t, "PLAF3011234567", cfg.DeviceCfg.SerialNumber)
	assert.Equal(t, "fountain", cfg.DeviceCfg.Type)
	assert.Equal(t, 30*time.Second, cfg.DeviceCfg.ScanInterval)
	require.NotNil(t, cfg.DeviceCfg.TimezoneOffset)
	assert.Equal(t, -5, *cfg.DeviceCfg.TimezoneOffset)
	assert.Equal(t, "postgres://localhost/petlibro", cfg.DatabaseURL)
	assert.Equal(t, "debug", cfg.LogLevel)
}
