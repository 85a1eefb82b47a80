package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Pipeline.WindowLength != 10 {
		t.Errorf("Expected window length 10, got %d", cfg.Pipeline.WindowLength)
	}
	if cfg.Pipeline.KFactor != 3.0 {
		t.Errorf("Expected k factor 3.0, got %v", cfg.Pipeline.KFactor)
	}
	if cfg.Pipeline.RepWindows != 1000 {
		t.Errorf("Expected 1000 representative windows, got %d", cfg.Pipeline.RepWindows)
	}
	if cfg.Pipeline.SensorCSV != "sensor_data.csv" {
		t.Errorf("Expected sensor_data.csv, got %s", cfg.Pipeline.SensorCSV)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Expected 15s read timeout, got %v", cfg.Server.ReadTimeout)
	}
	if !cfg.Ledger.Enabled() {
		t.Error("Expected sqlite ledger to be enabled by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WINDOW", "16")
	t.Setenv("K_FACTOR", "2.5")
	t.Setenv("LEDGER_DRIVER", "None")
	t.Setenv("MQTT_KEEP_ALIVE", "not-a-duration")

	cfg := Load()

	if cfg.Pipeline.WindowLength != 16 {
		t.Errorf("Expected window length 16, got %d", cfg.Pipeline.WindowLength)
	}
	if cfg.Pipeline.KFactor != 2.5 {
		t.Errorf("Expected k factor 2.5, got %v", cfg.Pipeline.KFactor)
	}
	if cfg.Ledger.Enabled() {
		t.Error("Expected ledger to be disabled")
	}
	if cfg.MQTT.KeepAlive != 30*time.Second {
		t.Errorf("Expected invalid duration to fall back to 30s, got %v", cfg.MQTT.KeepAlive)
	}
}

func TestGetMQTTBrokerURL(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected string
	}{
		{name: "bare host", value: "broker.local:1883", expected: "tcp://broker.local:1883"},
		{name: "tcp scheme", value: "tcp://broker.local:1883", expected: "tcp://broker.local:1883"},
		{name: "ssl scheme", value: "ssl://broker.local:8883", expected: "ssl://broker.local:8883"},
		{name: "websocket scheme", value: "wss://broker.local/mqtt", expected: "wss://broker.local/mqtt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MQTT_BROKER", tt.value)
			if got := getMQTTBrokerURL(); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}
