// Package config loads runtime configuration from the environment, an
// optional .env file, and an optional YAML config file, in that order of
// precedence. All environment variables carry the ROSTERSYNC_ prefix.
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rosterlab/rostersync/pkg/errors"
	"github.com/rosterlab/rostersync/pkg/reconcile"
)

// SISConfig holds the source system connection settings.
type SISConfig struct {
	URL          string `mapstructure:"url" yaml:"url"`
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
}

// PlatformConfig holds the downstream platform connection settings.
type PlatformConfig struct {
	URL   string `mapstructure:"url" yaml:"url"`
	Token string `mapstructure:"token" yaml:"token"`
}

// Config is the complete runtime configuration of a sync run.
type Config struct {
	DryRun       bool               `mapstructure:"dry_run" yaml:"dry_run"`
	MaxBatchWait time.Duration      `mapstructure:"max_batch_wait" yaml:"max_batch_wait"`
	ArtifactDir  string             `mapstructure:"artifact_dir" yaml:"artifact_dir"`
	SnapshotFile string             `mapstructure:"snapshot_file" yaml:"snapshot_file"`
	Exclude      []string           `mapstructure:"exclude" yaml:"exclude"`
	LogLevel     string             `mapstructure:"log_level" yaml:"log_level"`
	SIS          SISConfig          `mapstructure:"sis" yaml:"sis"`
	Platform     PlatformConfig     `mapstructure:"platform" yaml:"platform"`
	Schedule     reconcile.Schedule `mapstructure:"schedule" yaml:"schedule"`
}

// Load reads configuration. A .env file in the working directory is applied
// to the environment first when present; configFile may be empty.
func Load(configFile string) (*Config, error) {
	// Missing .env is the common case outside deployments.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("rostersync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("dry_run", false)
	v.SetDefault("max_batch_wait", 5*time.Minute)
	v.SetDefault("artifact_dir", ".")
	v.SetDefault("log_level", "info")
	v.SetDefault("schedule.sync_classrooms", true)
	v.SetDefault("schedule.sync_rosters", true)
	v.SetDefault("schedule.sync_classroom_enrollment", true)
	v.SetDefault("schedule.sync_staff", false)

	// Binding makes AutomaticEnv reach nested keys during Unmarshal.
	for _, key := range []string{
		"dry_run", "max_batch_wait", "artifact_dir", "snapshot_file", "exclude", "log_level",
		"sis.url", "sis.client_id", "sis.client_secret",
		"platform.url", "platform.token",
		"schedule.sync_classrooms", "schedule.sync_rosters",
		"schedule.sync_classroom_enrollment", "schedule.sync_staff",
	} {
		_ = v.BindEnv(key)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every setting a live run needs is present.
func (c *Config) Validate() error {
	if c.SIS.URL == "" {
		return errors.NewValidationError("sis.url", "", "source system URL is required")
	}
	if c.SIS.ClientID == "" || c.SIS.ClientSecret == "" {
		return errors.NewValidationError("sis.client_id", "", "source system credentials are required")
	}
	if c.Platform.URL == "" {
		return errors.NewValidationError("platform.url", "", "platform URL is required")
	}
	if c.Platform.Token == "" {
		return errors.NewValidationError("platform.token", "", "platform access token is required")
	}
	return nil
}
