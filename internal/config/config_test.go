package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vitals_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, uint16(0x57), cfg.OpticalI2CAddr)
	assert.Equal(t, uint16(0x48), cfg.ADCI2CAddr)
	assert.Equal(t, uint16(0x3C), cfg.DisplayI2CAddr)
	assert.Equal(t, 100000, cfg.I2CSpeedHz)
	assert.Equal(t, 24.0, cfg.OpticalLEDCurrentMA)
	assert.Equal(t, 3, cfg.PrimeAttempts)
	assert.Equal(t, 10, cfg.PrimeDummyReads)
	assert.Equal(t, "adxl335", cfg.MotionDriver)
	assert.Equal(t, 3, cfg.FSRChannel)
	assert.Equal(t, 0, cfg.ReportPeriodMS)
	assert.Equal(t, 10000, cfg.ForceDurationMS)
	assert.Equal(t, 10, cfg.DistanceBatchSize)
	assert.Equal(t, "ble", cfg.Transport)
	assert.Equal(t, "json", cfg.Encoding)
	assert.Equal(t, "ESP32_Unified_Sensor", cfg.DeviceName)
	assert.False(t, cfg.DisplayEnabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
# node config
LOG_LEVEL=debug
TRANSPORT=mqtt
MQTT_BROKER=tcp://broker:1883
MQTT_TOPIC_PREFIX = lab/node1
OPTICAL_I2C_ADDR=0x57
REPORT_PERIOD_MS=500
ENCODING=msgpack
DISPLAY_ENABLED=true
ACCEL_SENSITIVITY=0.3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "mqtt", cfg.Transport)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTTBroker)
	assert.Equal(t, "lab/node1", cfg.MQTTTopicPrefix)
	assert.Equal(t, uint16(0x57), cfg.OpticalI2CAddr)
	assert.Equal(t, 500, cfg.ReportPeriodMS)
	assert.Equal(t, "msgpack", cfg.Encoding)
	assert.True(t, cfg.DisplayEnabled)
	assert.Equal(t, 0.3, cfg.AccelSensitivity)
	// untouched keys keep defaults
	assert.Equal(t, 3, cfg.PrimeAttempts)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "missing equals", body: "TRANSPORT\n", wantErr: "invalid config line 1"},
		{name: "unknown key", body: "NOPE=1\n", wantErr: "unknown config key"},
		{name: "bad int", body: "PRIME_ATTEMPTS=three\n", wantErr: "invalid PRIME_ATTEMPTS"},
		{name: "int out of range", body: "PRIME_ATTEMPTS=0\n", wantErr: "PRIME_ATTEMPTS must be 1-10"},
		{name: "bad channel", body: "FSR_CHANNEL=4\n", wantErr: "FSR_CHANNEL must be 0-3"},
		{name: "bad transport", body: "TRANSPORT=carrier-pigeon\n", wantErr: "TRANSPORT must be"},
		{name: "bad encoding", body: "ENCODING=xml\n", wantErr: "ENCODING must be"},
		{name: "bad motion driver", body: "MOTION_DRIVER=adxl345\n", wantErr: "MOTION_DRIVER must be"},
		{name: "bad log level", body: "LOG_LEVEL=loud\n", wantErr: "LOG_LEVEL"},
		{name: "channel clash", body: "FSR_CHANNEL=0\n", wantErr: "both use ADC channel 0"},
		{name: "led current", body: "OPTICAL_LED_CURRENT_MA=80\n", wantErr: "OPTICAL_LED_CURRENT_MA must be 0-50"},
		{name: "bad bool", body: "DISPLAY_ENABLED=maybe\n", wantErr: "invalid DISPLAY_ENABLED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open config file")
}

func TestConfig_NewLogger(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "warn"

	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	formatter, ok := logger.Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
	assert.True(t, formatter.FullTimestamp)
	assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
}

func TestMillis(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, Millis(500))
	assert.Equal(t, time.Duration(0), Millis(0))
}
