package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/presence-engine/attendance"
	"github.com/warp/presence-engine/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "attendance.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Server.DemoScenarios)
	assert.True(t, cfg.Monitor.Enabled)
	assert.Equal(t, time.Hour, cfg.Monitor.Interval)
	assert.Equal(t, 7, cfg.Monitor.LookbackDays)

	policy, err := cfg.AttendancePolicy()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jakarta", policy.Location.String())
	assert.Equal(t, 500.0, policy.GeofenceRadius)
	assert.Equal(t, 12, policy.LateLimitHour)
	assert.True(t, policy.HourlyRate.Equal(attendance.DefaultPolicy().HourlyRate))
	assert.Equal(t, attendance.DefaultPolicy().NonWorkdayReasons, policy.NonWorkdayReasons)
	assert.Equal(t, attendance.DefaultOvertimeNote, policy.OvertimeNote)
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  cors:
    allow_origins: ["https://scan.campus.test"]
  demo_scenarios: true
db:
  path: /var/lib/presence/attendance.db
stale_monitor:
  interval: 15m
  lookback_days: 14
log:
  level: debug
  format: console
policy:
  timezone: Asia/Makassar
  site:
    latitude: -5.1477
    longitude: 119.4327
  geofence_radius_m: 250
  hourly_rate: "30000.50"
  require_nonworkday_reason: true
  nonworkday_reasons: ["Campus Event"]
  auto_overtime_note: true
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://scan.campus.test"}, cfg.Server.CORS.AllowOrigins)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.True(t, cfg.Server.DemoScenarios)
	assert.Equal(t, 15*time.Minute, cfg.Monitor.Interval)
	assert.Equal(t, 14, cfg.Monitor.LookbackDays)

	policy, err := cfg.AttendancePolicy()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Makassar", policy.Location.String())
	assert.InDelta(t, -5.1477, policy.Site.Latitude, 1e-9)
	assert.Equal(t, 250.0, policy.GeofenceRadius)
	assert.Equal(t, "30000.5", policy.HourlyRate.String())
	assert.True(t, policy.RequireNonWorkdayReason)
	assert.Equal(t, []string{"Campus Event"}, policy.NonWorkdayReasons)
	assert.True(t, policy.AutoOvertimeNote)
	// untouched keys keep defaults
	assert.Equal(t, 4, policy.MinWorkHours)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")
	t.Setenv("PRESENCE_SERVER_PORT", "7070")
	t.Setenv("PRESENCE_POLICY_LATE_LIMIT_HOUR", "10")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Policy.LateLimitHour)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown timezone", "policy:\n  timezone: Mars/Olympus\n"},
		{"bad rate", "policy:\n  hourly_rate: lots\n"},
		{"negative radius", "policy:\n  geofence_radius_m: -1\n"},
		{"cap below minimum", "policy:\n  max_payable_hours: 2\n"},
		{"zero monitor interval", "stale_monitor:\n  interval: 0s\n"},
		{"lookback too long", "stale_monitor:\n  lookback_days: 400\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
