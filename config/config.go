package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the ClimaSense anomaly pipeline
type Config struct {
	Pipeline PipelineConfig
	Server   ServerConfig
	MQTT     MQTTConfig
	Ledger   LedgerConfig
}

// PipelineConfig holds the tunables shared by the offline stages.
// Defaults match the values the firmware was built against.
type PipelineConfig struct {
	WindowLength       int     // samples per window
	LatentDim          int     // reconstruction model bottleneck
	KFactor            float64 // threshold = mean + k * std
	ValFraction        float64
	SplitSeed          uint64
	SimulatorSeed      uint64
	NormalSamples      int
	AnomalySamples     int
	RepWindows         int // representative windows saved by the trainer
	CalibrationWindows int // representative windows used by the converter
	ProgressEvery      int

	SensorCSV          string
	ModelFile          string
	QuantizedModelFile string
	RepWindowsFile     string
	MSEValFile         string
	MSEUint8File       string
	FloatThresholdFile string
	Uint8ThresholdFile string
	TrainingReportFile string
	HeaderFile         string
	HeaderArrayName    string
}

// ServerConfig holds HTTP server configuration for the live monitor
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxReadings    int
	MaxEvents      int
	StatusInterval time.Duration
}

// MQTTConfig holds MQTT broker configuration
type MQTTConfig struct {
	BrokerURL       string
	ClientID        string
	Username        string
	Password        string
	KeepAlive       time.Duration
	PingTimeout     time.Duration
	ConnectRetry    bool
	TopicSensorData string
	TopicAnomalies  string
}

// LedgerConfig selects where threshold runs and anomaly events are recorded.
// Driver is "sqlite", "postgres" or "none".
type LedgerConfig struct {
	Driver   string
	Path     string // sqlite file
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Enabled reports whether a ledger driver is configured
func (l LedgerConfig) Enabled() bool {
	return l.Driver != "" && l.Driver != "none"
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			WindowLength:       getIntEnv("WINDOW", 10),
			LatentDim:          getIntEnv("LATENT", 8),
			KFactor:            getFloatEnv("K_FACTOR", 3.0),
			ValFraction:        getFloatEnv("VAL_FRACTION", 0.2),
			SplitSeed:          uint64(getIntEnv("SPLIT_SEED", 42)),
			SimulatorSeed:      uint64(getIntEnv("SIMULATOR_SEED", 7)),
			NormalSamples:      getIntEnv("SIM_NORMAL_SAMPLES", 6000),
			AnomalySamples:     getIntEnv("SIM_ANOMALY_SAMPLES", 200),
			RepWindows:         getIntEnv("REP_WINDOWS_N", 1000),
			CalibrationWindows: getIntEnv("CALIBRATION_WINDOWS_N", 200),
			ProgressEvery:      200,

			SensorCSV:          getEnv("SENSOR_CSV", "sensor_data.csv"),
			ModelFile:          getEnv("MODEL_FILE", "ae_model.bin"),
			QuantizedModelFile: getEnv("QUANT_MODEL_FILE", "ae_uint8.bin"),
			RepWindowsFile:     getEnv("REP_WINDOWS_FILE", "rep_windows.npy"),
			MSEValFile:         getEnv("MSE_VAL_FILE", "mse_val.npy"),
			MSEUint8File:       getEnv("MSE_UINT8_FILE", "mse_uint8.npy"),
			FloatThresholdFile: getEnv("FLOAT_THRESHOLD_FILE", "float_threshold.txt"),
			Uint8ThresholdFile: getEnv("UINT8_THRESHOLD_FILE", "uint8_threshold.txt"),
			TrainingReportFile: getEnv("TRAINING_REPORT_FILE", "training_report.xlsx"),
			HeaderFile:         getEnv("HEADER_FILE", "ae_model_data.h"),
			HeaderArrayName:    getEnv("HEADER_ARRAY_NAME", "ae_model_data"),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			MaxReadings:    getIntEnv("MONITOR_MAX_READINGS", 1000),
			MaxEvents:      getIntEnv("MONITOR_MAX_EVENTS", 1000),
			StatusInterval: getDurationEnv("MONITOR_STATUS_INTERVAL", 30*time.Second),
		},
		MQTT: MQTTConfig{
			BrokerURL:       getMQTTBrokerURL(),
			ClientID:        getEnv("MQTT_CLIENT_ID", "climasense_monitor"),
			Username:        getEnv("MQTT_USERNAME", ""),
			Password:        getEnv("MQTT_PASSWORD", ""),
			KeepAlive:       getDurationEnv("MQTT_KEEP_ALIVE", 30*time.Second),
			PingTimeout:     getDurationEnv("MQTT_PING_TIMEOUT", 10*time.Second),
			ConnectRetry:    getBoolEnv("MQTT_CONNECT_RETRY", true),
			TopicSensorData: getEnv("MQTT_TOPIC_SENSOR_DATA", "climasense/sensors/data"),
			TopicAnomalies:  getEnv("MQTT_TOPIC_ANOMALIES", "climasense/anomalies"),
		},
		Ledger: LedgerConfig{
			Driver:   strings.ToLower(getEnv("LEDGER_DRIVER", "sqlite")),
			Path:     getEnv("LEDGER_PATH", "climasense_runs.db"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "climasense"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
	}
}

// getEnv returns environment variable value or default if not set
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv returns duration environment variable value or default if not set
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getBoolEnv returns boolean environment variable value or default if not set
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getIntEnv returns integer environment variable value or default if not set
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getFloatEnv returns float environment variable value or default if not set
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getMQTTBrokerURL returns MQTT broker URL with tcp:// prefix if not present
// Supports both "localhost:1883" and "tcp://localhost:1883" formats
func getMQTTBrokerURL() string {
	broker := getEnv("MQTT_BROKER", getEnv("MQTT_BROKER_URL", "tcp://localhost:1883"))

	if broker != "" && !strings.HasPrefix(broker, "tcp:") && !strings.HasPrefix(broker, "ssl") &&
		!strings.HasPrefix(broker, "ws") {
		return "tcp://" + broker
	}
	return broker
}
