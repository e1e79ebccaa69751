// Package config loads process configuration from defaults, an optional
// YAML file, and PRESENCE_* environment variables (highest priority).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // policy.timezone must resolve on hosts without zoneinfo

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/warp/presence-engine/attendance"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Log      LogConfig      `mapstructure:"log"`
	Policy   PolicySettings `mapstructure:"policy"`
	Monitor  MonitorConfig  `mapstructure:"stale_monitor"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	CORS CORSConfig `mapstructure:"cors"`

	// DemoScenarios exposes /api/scenarios, which can wipe the store.
	DemoScenarios bool `mapstructure:"demo_scenarios"`
}

// MonitorConfig drives the stale check-in monitor.
type MonitorConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	LookbackDays int           `mapstructure:"lookback_days"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type DatabaseConfig struct {
	// Path is the SQLite file; ":memory:" for a throwaway database.
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

type SiteConfig struct {
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
}

// PolicySettings is the raw form of attendance.PolicyConfig.
type PolicySettings struct {
	Timezone                string     `mapstructure:"timezone"`
	Site                    SiteConfig `mapstructure:"site"`
	GeofenceRadiusM         float64    `mapstructure:"geofence_radius_m"`
	MinWorkHours            int        `mapstructure:"min_work_hours"`
	MaxPayableHours         int        `mapstructure:"max_payable_hours"`
	LateLimitHour           int        `mapstructure:"late_limit_hour"`
	EarlyLeaveHour          int        `mapstructure:"early_leave_hour"`
	OvertimeHour            int        `mapstructure:"overtime_hour"`
	HourlyRate              string     `mapstructure:"hourly_rate"`
	RequireNonWorkdayReason bool       `mapstructure:"require_nonworkday_reason"`
	NonWorkdayReasons       []string   `mapstructure:"nonworkday_reasons"`
	AutoOvertimeNote        bool       `mapstructure:"auto_overtime_note"`
	OvertimeNote            string     `mapstructure:"overtime_note"`
}

// Load reads configuration. An empty path searches ./config.yaml and
// ./config/config.yaml; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("PRESENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if _, err := cfg.AttendancePolicy(); err != nil {
		return nil, err
	}
	if cfg.Monitor.Enabled && cfg.Monitor.Interval <= 0 {
		return nil, fmt.Errorf("invalid stale_monitor.interval %v", cfg.Monitor.Interval)
	}
	if cfg.Monitor.LookbackDays < 1 || cfg.Monitor.LookbackDays > 366 {
		return nil, fmt.Errorf("invalid stale_monitor.lookback_days %d", cfg.Monitor.LookbackDays)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := attendance.DefaultPolicy()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173", "http://localhost:8080"})

	v.SetDefault("server.demo_scenarios", false)

	v.SetDefault("db.path", "attendance.db")

	v.SetDefault("stale_monitor.enabled", true)
	v.SetDefault("stale_monitor.interval", time.Hour)
	v.SetDefault("stale_monitor.lookback_days", 7)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("policy.timezone", "Asia/Jakarta")
	v.SetDefault("policy.site.latitude", 0.0)
	v.SetDefault("policy.site.longitude", 0.0)
	v.SetDefault("policy.geofence_radius_m", def.GeofenceRadius)
	v.SetDefault("policy.min_work_hours", def.MinWorkHours)
	v.SetDefault("policy.max_payable_hours", def.MaxPayableHours)
	v.SetDefault("policy.late_limit_hour", def.LateLimitHour)
	v.SetDefault("policy.early_leave_hour", def.EarlyLeaveHour)
	v.SetDefault("policy.overtime_hour", def.OvertimeHour)
	v.SetDefault("policy.hourly_rate", def.HourlyRate.String())
	v.SetDefault("policy.require_nonworkday_reason", def.RequireNonWorkdayReason)
	v.SetDefault("policy.nonworkday_reasons", def.NonWorkdayReasons)
	v.SetDefault("policy.auto_overtime_note", def.AutoOvertimeNote)
	v.SetDefault("policy.overtime_note", def.OvertimeNote)
}

// AttendancePolicy converts the settings into a validated policy.
func (c *Config) AttendancePolicy() (attendance.PolicyConfig, error) {
	p := c.Policy

	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return attendance.PolicyConfig{}, fmt.Errorf("invalid policy.timezone %q: %w", p.Timezone, err)
	}
	rate, err := decimal.NewFromString(p.HourlyRate)
	if err != nil {
		return attendance.PolicyConfig{}, fmt.Errorf("invalid policy.hourly_rate %q: %w", p.HourlyRate, err)
	}

	policy := attendance.PolicyConfig{
		Location:                loc,
		Site:                    attendance.Coordinate{Latitude: p.Site.Latitude, Longitude: p.Site.Longitude},
		GeofenceRadius:          p.GeofenceRadiusM,
		MinWorkHours:            p.MinWorkHours,
		MaxPayableHours:         p.MaxPayableHours,
		LateLimitHour:           p.LateLimitHour,
		EarlyLeaveHour:          p.EarlyLeaveHour,
		OvertimeHour:            p.OvertimeHour,
		HourlyRate:              rate,
		RequireNonWorkdayReason: p.RequireNonWorkdayReason,
		NonWorkdayReasons:       p.NonWorkdayReasons,
		AutoOvertimeNote:        p.AutoOvertimeNote,
		OvertimeNote:            p.OvertimeNote,
	}
	if err := policy.Validate(); err != nil {
		return attendance.PolicyConfig{}, err
	}
	return policy, nil
}
