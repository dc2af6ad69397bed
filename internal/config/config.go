package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
)

// Config holds all node configuration values.
// Defaults come from the `default` tags; the config file only overrides.
type Config struct {
	// Logging
	LogLevel string `default:"info"`

	// I2C bus shared by the optical transceiver and the ADC
	I2CBus         string `default:""` // "" selects the first available bus
	I2CSpeedHz     int    `default:"100000"`
	OpticalI2CAddr uint16 `default:"87"` // 0x57

	// Optical sensor priming
	OpticalLEDCurrentMA  float64 `default:"24"`
	PrimeAttempts        int     `default:"3"`
	PrimeDummyReads      int     `default:"10"`
	PrimeReadIntervalMS  int     `default:"20"`
	PrimeTimeoutMS       int     `default:"500"`
	PrimeRetryDelayMS    int     `default:"100"`
	MemoryWarnBytes      uint64  `default:"30000"`
	MemoryLogIntervalMS  int     `default:"10000"`
	PulseOxSettleDelayMS int     `default:"200"`

	// Motion and force sensing
	// MotionDriver: "adxl335" (analog, through the ADS1115) or "mpu9250" (SPI)
	MotionDriver     string  `default:"adxl335"`
	ADCI2CAddr       uint16  `default:"72"` // 0x48
	ADCMaxMillivolts int     `default:"4096"`
	AccelChannelX    int     `default:"0"`
	AccelChannelY    int     `default:"1"`
	AccelChannelZ    int     `default:"2"`
	FSRChannel       int     `default:"3"`
	AccelZeroX       float64 `default:"1.65"` // volts at 0g
	AccelZeroY       float64 `default:"1.65"`
	AccelZeroZ       float64 `default:"1.65"`
	AccelSensitivity float64 `default:"0.33"` // volts per g
	IMUSPIDevice     string  `default:"/dev/spidev0.0"`
	IMUCSPin         string  `default:"8"`

	// Timing (milliseconds)
	// ReportPeriodMS collapses every mode to one cadence when non-zero.
	ReportPeriodMS      int `default:"0"`
	PollIntervalMS      int `default:"10"`
	TemperaturePeriodMS int `default:"1000"`
	ForceDurationMS     int `default:"10000"`
	DistanceBatchSize   int `default:"10"`
	StatusIntervalMS    int `default:"10000"`

	// Transport
	// Transport: "ble", "mqtt", "ws" or "serial"
	Transport       string `default:"ble"`
	Encoding        string `default:"json"` // "json" or "msgpack"
	DeviceName      string `default:"ESP32_Unified_Sensor"`
	MQTTBroker      string `default:"tcp://localhost:1883"`
	MQTTClientID    string `default:""`
	MQTTTopicPrefix string `default:"vitals"`
	WSListenAddr    string `default:":8080"`
	SerialPort      string `default:"/dev/ttyUSB0"`
	SerialBaudRate  int    `default:"115200"`

	// Display
	DisplayEnabled        bool   `default:"false"`
	DisplayI2CBus         string `default:""`
	DisplayI2CAddr        uint16 `default:"60"` // 0x3C
	DisplayUpdateInterval int    `default:"500"`
}

// Package-level singleton, same contract as before: InitGlobal sets it once,
// Get reads it under a read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config populated from the struct tag defaults only.
func Default() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads the configuration file and returns a Config struct.
// Keys that are not present keep their defaults.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseInt(key, value string, min, max int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, min, max, v)
	}
	return v, nil
}

func parseAddr(key, value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return uint16(addr), nil
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

const maxMS = 24 * 60 * 60 * 1000

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	case "LOG_LEVEL":
		c.LogLevel = value

	// I2C
	case "I2C_BUS":
		c.I2CBus = value
	case "I2C_SPEED_HZ":
		c.I2CSpeedHz, err = parseInt(key, value, 10000, 1000000)
	case "OPTICAL_I2C_ADDR":
		c.OpticalI2CAddr, err = parseAddr(key, value)

	// Optical sensor priming
	case "OPTICAL_LED_CURRENT_MA":
		c.OpticalLEDCurrentMA, err = parseFloat(key, value)
		if err == nil && (c.OpticalLEDCurrentMA < 0 || c.OpticalLEDCurrentMA > 50) {
			err = fmt.Errorf("OPTICAL_LED_CURRENT_MA must be 0-50, got %g", c.OpticalLEDCurrentMA)
		}
	case "PRIME_ATTEMPTS":
		c.PrimeAttempts, err = parseInt(key, value, 1, 10)
	case "PRIME_DUMMY_READS":
		c.PrimeDummyReads, err = parseInt(key, value, 0, 100)
	case "PRIME_READ_INTERVAL_MS":
		c.PrimeReadIntervalMS, err = parseInt(key, value, 0, 1000)
	case "PRIME_TIMEOUT_MS":
		c.PrimeTimeoutMS, err = parseInt(key, value, 1, 10000)
	case "PRIME_RETRY_DELAY_MS":
		c.PrimeRetryDelayMS, err = parseInt(key, value, 0, 10000)
	case "MEMORY_WARN_BYTES":
		var v uint64
		v, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			err = fmt.Errorf("invalid MEMORY_WARN_BYTES %q: %w", value, err)
		}
		c.MemoryWarnBytes = v
	case "MEMORY_LOG_INTERVAL_MS":
		c.MemoryLogIntervalMS, err = parseInt(key, value, 0, maxMS)
	case "PULSE_OX_SETTLE_DELAY_MS":
		c.PulseOxSettleDelayMS, err = parseInt(key, value, 0, 10000)

	// Motion and force sensing
	case "MOTION_DRIVER":
		c.MotionDriver = value
	case "ADC_I2C_ADDR":
		c.ADCI2CAddr, err = parseAddr(key, value)
	case "ADC_MAX_MILLIVOLTS":
		c.ADCMaxMillivolts, err = parseInt(key, value, 256, 6144)
	case "ACCEL_CHANNEL_X":
		c.AccelChannelX, err = parseInt(key, value, 0, 3)
	case "ACCEL_CHANNEL_Y":
		c.AccelChannelY, err = parseInt(key, value, 0, 3)
	case "ACCEL_CHANNEL_Z":
		c.AccelChannelZ, err = parseInt(key, value, 0, 3)
	case "FSR_CHANNEL":
		c.FSRChannel, err = parseInt(key, value, 0, 3)
	case "ACCEL_ZERO_X":
		c.AccelZeroX, err = parseFloat(key, value)
	case "ACCEL_ZERO_Y":
		c.AccelZeroY, err = parseFloat(key, value)
	case "ACCEL_ZERO_Z":
		c.AccelZeroZ, err = parseFloat(key, value)
	case "ACCEL_SENSITIVITY":
		c.AccelSensitivity, err = parseFloat(key, value)
		if err == nil && c.AccelSensitivity <= 0 {
			err = fmt.Errorf("ACCEL_SENSITIVITY must be positive, got %g", c.AccelSensitivity)
		}
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value

	// Timing
	case "REPORT_PERIOD_MS":
		c.ReportPeriodMS, err = parseInt(key, value, 0, maxMS)
	case "POLL_INTERVAL_MS":
		c.PollIntervalMS, err = parseInt(key, value, 1, 1000)
	case "TEMPERATURE_PERIOD_MS":
		c.TemperaturePeriodMS, err = parseInt(key, value, 1, maxMS)
	case "FORCE_DURATION_MS":
		c.ForceDurationMS, err = parseInt(key, value, 1, maxMS)
	case "DISTANCE_BATCH_SIZE":
		c.DistanceBatchSize, err = parseInt(key, value, 1, 10000)
	case "STATUS_INTERVAL_MS":
		c.StatusIntervalMS, err = parseInt(key, value, 0, maxMS)

	// Transport
	case "TRANSPORT":
		c.Transport = value
	case "ENCODING":
		c.Encoding = value
	case "DEVICE_NAME":
		c.DeviceName = value
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "MQTT_TOPIC_PREFIX":
		c.MQTTTopicPrefix = value
	case "WS_LISTEN_ADDR":
		c.WSListenAddr = value
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		c.SerialBaudRate, err = parseInt(key, value, 300, 4000000)

	// Display
	case "DISPLAY_ENABLED":
		c.DisplayEnabled, err = strconv.ParseBool(value)
		if err != nil {
			err = fmt.Errorf("invalid DISPLAY_ENABLED %q: %w", value, err)
		}
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_I2C_ADDR":
		c.DisplayI2CAddr, err = parseAddr(key, value)
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseInt(key, value, 10, maxMS)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// Validate checks cross-field constraints and enumerated values.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	switch c.MotionDriver {
	case "adxl335", "mpu9250":
	default:
		return fmt.Errorf("MOTION_DRIVER must be adxl335 or mpu9250, got %q", c.MotionDriver)
	}
	switch c.Transport {
	case "ble", "mqtt", "ws", "serial":
	default:
		return fmt.Errorf("TRANSPORT must be ble, mqtt, ws or serial, got %q", c.Transport)
	}
	switch c.Encoding {
	case "json", "msgpack":
	default:
		return fmt.Errorf("ENCODING must be json or msgpack, got %q", c.Encoding)
	}
	if c.MotionDriver == "adxl335" {
		seen := map[int]string{}
		for name, ch := range map[string]int{
			"ACCEL_CHANNEL_X": c.AccelChannelX,
			"ACCEL_CHANNEL_Y": c.AccelChannelY,
			"ACCEL_CHANNEL_Z": c.AccelChannelZ,
			"FSR_CHANNEL":     c.FSRChannel,
		} {
			if other, ok := seen[ch]; ok {
				return fmt.Errorf("%s and %s both use ADC channel %d", name, other, ch)
			}
			seen[ch] = name
		}
	}
	if c.Transport == "mqtt" && c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.Transport == "serial" && c.SerialPort == "" {
		return fmt.Errorf("SERIAL_PORT is required")
	}
	if c.DeviceName == "" {
		return fmt.Errorf("DEVICE_NAME is required")
	}
	return nil
}

// Millis converts a millisecond config value into a time.Duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// NewLogger creates a configured logger instance.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger, nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once so repeated calls keep the first result.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
