// Package config loads go-posture settings from the environment.
//
// A .env file in the working directory is read first when present; real
// environment variables always win over it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultAPIURL            = "http://localhost:8000"
	DefaultPort              = "8000"
	DefaultDataFile          = "posture_data.json"
	DefaultMonitorDataFile   = "posture_monitor.json"
	DefaultDataLogFile       = "posture_session.csv"
	DefaultStoreBackend      = "file"
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisKey          = "posture:state"
	DefaultMonitorRedisKey   = "posture:monitor"
	DefaultMQTTTopicPrefix   = "posture"
	DefaultCameraDevice      = "0"
	DefaultCalibrationFrames = 50
	DefaultHealthInterval    = 10 * time.Second
	DefaultLogLevel          = "info"
)

// Store backends.
const (
	StoreFile  = "file"
	StoreRedis = "redis"
)

// Config holds runtime settings shared by the monitor and API binaries.
// Flag parsing is done in cmd/; this struct is data only.
type Config struct {
	// Remote aggregator the monitor pushes to. Empty disables HTTP sync.
	APIURL string

	// Port the HTTP API listens on.
	Port string

	// Persistence. DataFile and RedisKey belong to the API; the monitor
	// keeps its own document under MonitorDataFile / MonitorRedisKey.
	StoreBackend    string // "file" or "redis"
	DataFile        string
	MonitorDataFile string
	DataLogFile     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisKey        string
	MonitorRedisKey string

	// MQTT event publishing. Empty broker disables it.
	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string

	// Capture and detection.
	CameraDevice string
	DetectorURL  string

	// Alerting. Empty means log-only alerts.
	AlertSound string

	CalibrationFrames int
	HealthInterval    time.Duration

	LogLevel string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		APIURL:            DefaultAPIURL,
		Port:              DefaultPort,
		StoreBackend:      DefaultStoreBackend,
		DataFile:          DefaultDataFile,
		MonitorDataFile:   DefaultMonitorDataFile,
		DataLogFile:       DefaultDataLogFile,
		RedisAddr:         DefaultRedisAddr,
		RedisKey:          DefaultRedisKey,
		MonitorRedisKey:   DefaultMonitorRedisKey,
		MQTTClientID:      "posture-monitor",
		MQTTTopicPrefix:   DefaultMQTTTopicPrefix,
		CameraDevice:      DefaultCameraDevice,
		CalibrationFrames: DefaultCalibrationFrames,
		HealthInterval:    DefaultHealthInterval,
		LogLevel:          DefaultLogLevel,
	}
}

// Load reads .env (if any) and applies environment overrides to Default().
func Load() Config {
	// A missing .env is normal; system env vars are used instead.
	_ = godotenv.Load()

	cfg := Default()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() {
	c.APIURL = getEnv("POSTURE_API_URL", c.APIURL)
	c.Port = getEnv("PORT", c.Port)
	c.StoreBackend = getEnv("POSTURE_STORE", c.StoreBackend)
	c.DataFile = getEnv("POSTURE_DATA_FILE", c.DataFile)
	c.MonitorDataFile = getEnv("POSTURE_MONITOR_DATA_FILE", c.MonitorDataFile)
	c.DataLogFile = getEnv("DATA_LOG_FILE", c.DataLogFile)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.RedisKey = getEnv("REDIS_KEY", c.RedisKey)
	c.MonitorRedisKey = getEnv("REDIS_MONITOR_KEY", c.MonitorRedisKey)
	c.MQTTBroker = getEnv("MQTT_BROKER", c.MQTTBroker)
	c.MQTTClientID = getEnv("MQTT_CLIENT_ID", c.MQTTClientID)
	c.MQTTTopicPrefix = getEnv("MQTT_TOPIC_PREFIX", c.MQTTTopicPrefix)
	c.CameraDevice = getEnv("CAMERA_DEVICE", c.CameraDevice)
	c.DetectorURL = getEnv("DETECTOR_URL", c.DetectorURL)
	c.AlertSound = getEnv("ALERT_SOUND", c.AlertSound)
	c.CalibrationFrames = getEnvInt("CALIBRATION_FRAMES", c.CalibrationFrames)
	c.HealthInterval = getEnvDuration("HEALTH_INTERVAL", c.HealthInterval)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case StoreFile:
		if c.DataFile == "" || c.MonitorDataFile == "" {
			return fmt.Errorf("config: POSTURE_DATA_FILE and POSTURE_MONITOR_DATA_FILE are required for the file store")
		}
		if filepath.Clean(c.DataFile) == filepath.Clean(c.MonitorDataFile) {
			return fmt.Errorf("config: monitor and api cannot share state file %q", c.DataFile)
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("config: REDIS_ADDR is required for the redis store")
		}
		if c.RedisKey == c.MonitorRedisKey {
			return fmt.Errorf("config: monitor and api cannot share redis key %q", c.RedisKey)
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.StoreBackend)
	}
	if c.CalibrationFrames <= 0 {
		return fmt.Errorf("config: CALIBRATION_FRAMES must be positive, got %d", c.CalibrationFrames)
	}
	if c.HealthInterval <= 0 {
		return fmt.Errorf("config: HEALTH_INTERVAL must be positive, got %v", c.HealthInterval)
	}
	return nil
}

// ForMonitor returns the config the monitor persists with: the same
// backend, pointed at the monitor's own file or key.
func (c Config) ForMonitor() Config {
	c.DataFile = c.MonitorDataFile
	c.RedisKey = c.MonitorRedisKey
	return c
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
