package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Share     ShareConfig     `mapstructure:"share"`
	Device    DeviceConfig    `mapstructure:"device"`
	Retention RetentionConfig `mapstructure:"retention"`
	Lock      LockConfig      `mapstructure:"lock"`
	Offsite   OffsiteConfig   `mapstructure:"offsite"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type ScheduleConfig struct {
	// Weekday whose first occurrence in the month triggers a backup.
	Weekday string `mapstructure:"weekday"`

	// Optional cron spec for resident mode. Empty means one-shot,
	// driven by an external scheduler.
	Cron string `mapstructure:"cron"`
}

type ShareConfig struct {
	Remote          string `mapstructure:"remote"`
	Subpath         string `mapstructure:"subpath"`
	MountPoint      string `mapstructure:"mount_point"`
	CredentialsFile string `mapstructure:"credentials_file"`
	Version         string `mapstructure:"version"`
}

type DeviceConfig struct {
	Hostname string `mapstructure:"hostname"`
	Exporter string `mapstructure:"exporter"`

	// Command exporter: firmware export command writing to stdout.
	ExportCommand string   `mapstructure:"export_command"`
	ExportArgs    []string `mapstructure:"export_args"`

	// Files exporter: device database/secret files to pack.
	ConfigFiles []string `mapstructure:"config_files"`
}

type RetentionConfig struct {
	Keep int `mapstructure:"keep"`
}

type LockConfig struct {
	Path string `mapstructure:"path"`
}

type OffsiteConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type NotifyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("app.name", "confkeep")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("schedule.weekday", "friday")
	v.SetDefault("share.version", "3.0")
	v.SetDefault("device.exporter", "command")
	v.SetDefault("retention.keep", 8)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func (s *ScheduleConfig) ParseWeekday() (time.Weekday, error) {
	day, ok := weekdays[strings.ToLower(s.Weekday)]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", s.Weekday)
	}
	return day, nil
}

func (c *Config) Validate() error {
	if _, err := c.Schedule.ParseWeekday(); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	if c.Share.Remote == "" {
		return fmt.Errorf("share.remote is required")
	}
	if !strings.HasPrefix(c.Share.Remote, "//") {
		return fmt.Errorf("share.remote must be a UNC path (//host/share)")
	}
	if c.Share.MountPoint == "" {
		return fmt.Errorf("share.mount_point is required")
	}
	if c.Share.CredentialsFile == "" {
		return fmt.Errorf("share.credentials_file is required")
	}

	if c.Device.Hostname == "" {
		return fmt.Errorf("device.hostname is required")
	}

	switch c.Device.Exporter {
	case "command":
		if c.Device.ExportCommand == "" {
			return fmt.Errorf("device.export_command is required for the command exporter")
		}
	case "files":
		if len(c.Device.ConfigFiles) == 0 {
			return fmt.Errorf("device.config_files is required for the files exporter")
		}
	default:
		return fmt.Errorf("unknown exporter type: %s", c.Device.Exporter)
	}

	if c.Offsite.Enabled && c.Offsite.Bucket == "" {
		return fmt.Errorf("offsite.bucket is required when offsite is enabled")
	}
	if c.Notify.Enabled && c.Notify.BotToken == "" {
		return fmt.Errorf("notify.bot_token is required when notify is enabled")
	}

	return nil
}
