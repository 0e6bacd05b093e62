package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PYMEASURE_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:8080", cfg.API.Listen)
	assert.Equal(t, 10*time.Second, cfg.API.CommandTimeout)
	assert.False(t, cfg.Auth.Enabled)
	assert.Empty(t, cfg.Instruments)
	assert.Equal(t, 256, cfg.Telemetry.BufferSize)
	assert.Equal(t, 15*time.Second, cfg.Telemetry.HeartbeatInterval)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
instruments:
  - name: sa
    model: rs-fsq
    resource: TCPIP::10.0.0.5::5025::SOCKET
    units:
      frequency: MHz
    timeout: 30s
  - name: sg
    model: rs-smb100a
    resource: GPIB0::29::INSTR
    pacing: 50ms
gpib:
  port: /dev/ttyACM0
  baud: 115200
  readTimeout: 2s
  writeDelay: 10ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	require.Len(t, cfg.Instruments, 2)
	assert.Equal(t, "MHz", cfg.Instruments[0].Units.Frequency)
	assert.Equal(t, "DBM", cfg.Instruments[0].Units.Power)
	assert.Equal(t, 30*time.Second, cfg.Instruments[0].Timeout)
	assert.Equal(t, "GHz", cfg.Instruments[1].Units.Frequency)
	assert.Equal(t, 50*time.Millisecond, cfg.Instruments[1].Pacing)
	assert.Equal(t, "/dev/ttyACM0", cfg.GPIB.Port)
	assert.Equal(t, 10*time.Millisecond, cfg.GPIB.WriteDelay)
}

func TestLoadFromEnvPath(t *testing.T) {
	path := writeConfig(t, "api:\n  listen: 0.0.0.0:9000\n")
	t.Setenv("PYMEASURE_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.API.Listen)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PYMEASURE_CONFIG", "")
	t.Setenv("PYMEASURE_LOG_LEVEL", "trace")
	t.Setenv("PYMEASURE_LOG_JSON", "true")
	t.Setenv("PYMEASURE_AUTH_SECRET", "s3cret")
	t.Setenv("PYMEASURE_GPIB_PORT", "/dev/ttyUSB3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "trace", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "s3cret", cfg.Auth.Secret)
	assert.Equal(t, "/dev/ttyUSB3", cfg.GPIB.Port)
}

func TestEnvOverrideInvalidBool(t *testing.T) {
	t.Setenv("PYMEASURE_CONFIG", "")
	t.Setenv("PYMEASURE_LOG_JSON", "sometimes")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown field", "bogus: 1\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"missing name", "instruments:\n  - model: rs-fsq\n    resource: SIM::rs-fsq\n"},
		{"duplicate name", "instruments:\n  - {name: a, model: rs-fsq, resource: 'SIM::rs-fsq'}\n  - {name: a, model: rs-fsq, resource: 'SIM::rs-fsq'}\n"},
		{"bad resource", "instruments:\n  - {name: a, model: rs-fsq, resource: 'USB::1'}\n"},
		{"auth without secret", "auth:\n  enabled: true\n"},
		{"auth algorithm", "auth:\n  enabled: true\n  algorithm: none\n"},
		{"bad cidr", "simulator:\n  allowedCidrs: ['10.0.0.0/33']\n"},
		{"zero command timeout", "api:\n  commandTimeout: 0s\n"},
		{"negative telemetry buffer", "telemetry:\n  bufferSize: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PYMEASURE_CONFIG", "")
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
