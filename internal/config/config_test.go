package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load("", "")
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	if cfg.Detector.URL != "" {
		t.Errorf("Detector.URL = %q, want empty", cfg.Detector.URL)
	}
	if cfg.Detector.Timeout != 5*time.Second {
		t.Errorf("Detector.Timeout = %v, want 5s", cfg.Detector.Timeout)
	}
	if cfg.Detector.IdentifierField != 1 {
		t.Errorf("Detector.IdentifierField = %d, want 1", cfg.Detector.IdentifierField)
	}
	if cfg.Refresh.Interval != 5*time.Second {
		t.Errorf("Refresh.Interval = %v, want 5s", cfg.Refresh.Interval)
	}
	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, "127.0.0.1:8080")
	}
	if cfg.Server.ActionRate != 5 || cfg.Server.ActionBurst != 10 {
		t.Errorf("action limit = %v/%d, want 5/10", cfg.Server.ActionRate, cfg.Server.ActionBurst)
	}
	if cfg.MQTT.Enabled || cfg.MQTT.Topic != "maxdetector" || cfg.MQTT.QoS != 1 {
		t.Errorf("MQTT = %+v, want disabled defaults", cfg.MQTT)
	}
	if cfg.Discovery.Service != "_http._tcp" || cfg.Discovery.Timeout != 3*time.Second {
		t.Errorf("Discovery = %+v", cfg.Discovery)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "mdpanel.yaml", `
detector:
  url: http://192.168.4.1
  timeout: 8s
refresh:
  interval: 2s
log:
  level: debug
`)
	cfg, err := load(path, "")
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.Detector.URL != "http://192.168.4.1" {
		t.Errorf("Detector.URL = %q", cfg.Detector.URL)
	}
	if cfg.Detector.Timeout != 8*time.Second {
		t.Errorf("Detector.Timeout = %v, want 8s", cfg.Detector.Timeout)
	}
	if cfg.Refresh.Interval != 2*time.Second {
		t.Errorf("Refresh.Interval = %v, want 2s", cfg.Refresh.Interval)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Errorf("unset keys should keep defaults, Server.Addr = %q", cfg.Server.Addr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := load(filepath.Join(t.TempDir(), "nope.yaml"), ""); err == nil {
		t.Fatal("load() with missing explicit file should fail")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "mdpanel.yaml", "detector:\n  url: http://10.0.0.1\n")
	t.Setenv("MDPANEL_DETECTOR_URL", "http://10.0.0.2")
	t.Setenv("MDPANEL_REFRESH_INTERVAL", "750ms")

	cfg, err := load(path, "")
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.Detector.URL != "http://10.0.0.2" {
		t.Errorf("Detector.URL = %q, want env value", cfg.Detector.URL)
	}
	if cfg.Refresh.Interval != 750*time.Millisecond {
		t.Errorf("Refresh.Interval = %v, want 750ms", cfg.Refresh.Interval)
	}
}

func TestDotEnv(t *testing.T) {
	const key = "MDPANEL_SERVER_ADDR"
	t.Setenv(key, "")
	os.Unsetenv(key)
	t.Cleanup(func() { os.Unsetenv(key) })

	dotenv := writeFile(t, ".env", key+"=0.0.0.0:9000\n")
	cfg, err := load("", dotenv)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:9000" {
		t.Errorf("Server.Addr = %q, want value from .env", cfg.Server.Addr)
	}
}

func TestDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	t.Setenv("MDPANEL_LOG_LEVEL", "warn")
	dotenv := writeFile(t, ".env", "MDPANEL_LOG_LEVEL=debug\n")

	cfg, err := load("", dotenv)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
}

func TestMissingDotEnvIsIgnored(t *testing.T) {
	if _, err := load("", filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("load() error = %v", err)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"short timeout", map[string]string{"MDPANEL_DETECTOR_TIMEOUT": "2s"}, "Config.Detector.Timeout"},
		{"bad url", map[string]string{"MDPANEL_DETECTOR_URL": "not a url"}, "Config.Detector.URL"},
		{"zero interval", map[string]string{"MDPANEL_REFRESH_INTERVAL": "0s"}, "Config.Refresh.Interval"},
		{"negative field", map[string]string{"MDPANEL_DETECTOR_IDENTIFIER_FIELD": "-1"}, "Config.Detector.IdentifierField"},
		{"bad level", map[string]string{"MDPANEL_LOG_LEVEL": "loud"}, "Config.Log.Level"},
		{"bad qos", map[string]string{"MDPANEL_MQTT_QOS": "3"}, "Config.MQTT.QoS"},
		{"mqtt without broker", map[string]string{"MDPANEL_MQTT_ENABLED": "true"}, "Config.MQTT.Broker"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := load("", "")
			if err == nil {
				t.Fatal("load() error = nil, want validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestMQTTEnabledWithBroker(t *testing.T) {
	t.Setenv("MDPANEL_MQTT_ENABLED", "true")
	t.Setenv("MDPANEL_MQTT_BROKER", "tcp://localhost:1883")

	cfg, err := load("", "")
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
}

func TestSettings(t *testing.T) {
	cfg, err := load("", "")
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	s := cfg.Settings()
	det, ok := s["detector"].(map[string]any)
	if !ok {
		t.Fatalf("settings[detector] = %T", s["detector"])
	}
	if det["timeout"] != "5s" {
		t.Errorf("detector.timeout = %v, want 5s", det["timeout"])
	}
}
