package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

const validConfig = `
site:
  id: "optics-lab"
  name: "Optics Lab Bench 3"
database:
  path: "./data/spectra.db"
mqtt:
  broker:
    host: "broker.local"
    port: 1883
  qos: 1
spectrographs:
  - id: "spg-red"
    device_index: 0
    ini_path: "/etc/spectra/red.ini"
    refresh_interval: 30
  - id: "spg-blue"
    device_index: 1
    ini_path: "/etc/spectra/blue.ini"
`

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "optics-lab" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "optics-lab")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if len(cfg.Spectrographs) != 2 {
		t.Fatalf("len(Spectrographs) = %d, want 2", len(cfg.Spectrographs))
	}
	if cfg.Spectrographs[0].GetRefreshInterval() != 30*time.Second {
		t.Errorf("GetRefreshInterval() = %v, want 30s", cfg.Spectrographs[0].GetRefreshInterval())
	}
	if cfg.Spectrographs[1].RefreshInterval != 0 {
		t.Errorf("Spectrographs[1].RefreshInterval = %d, want 0", cfg.Spectrographs[1].RefreshInterval)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "site:\n  id: \"minimal\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "./data/spectra.db" {
		t.Errorf("Database.Path = %q, want default", cfg.Database.Path)
	}
	if !cfg.Database.WALMode {
		t.Error("Database.WALMode = false, want default true")
	}
	if cfg.MQTT.QoS != 1 {
		t.Errorf("MQTT.QoS = %d, want default 1", cfg.MQTT.QoS)
	}
	if cfg.API.Port != 8090 {
		t.Errorf("API.Port = %d, want default 8090", cfg.API.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want default info", cfg.Logging.Level)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SPECTRA_MQTT_HOST", "env-broker")
	t.Setenv("SPECTRA_DATABASE_PATH", "/var/lib/spectra/env.db")

	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "env-broker" {
		t.Errorf("MQTT.Broker.Host = %q, want env override", cfg.MQTT.Broker.Host)
	}
	if cfg.Database.Path != "/var/lib/spectra/env.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() error = nil, want error for missing file")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "missing site id",
			mutate:  func(c *Config) { c.Site.ID = "" },
			wantSub: "site.id is required",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantSub: "mqtt.qos",
		},
		{
			name:    "invalid api port",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantSub: "api.port",
		},
		{
			name: "duplicate unit id",
			mutate: func(c *Config) {
				c.Spectrographs = []SpectrographUnit{{ID: "dup"}, {ID: "dup"}}
			},
			wantSub: "duplicated",
		},
		{
			name: "negative device index",
			mutate: func(c *Config) {
				c.Spectrographs = []SpectrographUnit{{ID: "u1", DeviceIndex: -1}}
			},
			wantSub: "device_index",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}
