// Package config loads docrelay's configuration the way the teacher's
// gateway subproject loads its own: a YAML file read with
// github.com/spf13/viper, unmarshalled into a struct tagged with
// mapstructure, with environment variables able to override any key.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the configuration surface spec.md §6 names, plus the ambient
// knobs SPEC_FULL adds for the domain stack it wires in.
type Config struct {
	Port int `mapstructure:"port"`

	Broker struct {
		URL         string `mapstructure:"url"`
		Token       string `mapstructure:"token"`
		Tenant      string `mapstructure:"tenant"`
		Namespace   string `mapstructure:"namespace"`
		TopicPrefix string `mapstructure:"topicPrefix"`
	} `mapstructure:"broker"`

	Storage struct {
		Mode string `mapstructure:"mode"` // "s3" or "none"
	} `mapstructure:"storage"`

	SnapshotInterval int `mapstructure:"snapshotInterval"`

	Store struct {
		Endpoint  string `mapstructure:"endpoint"`
		Bucket    string `mapstructure:"bucket"`
		AccessKey string `mapstructure:"accessKey"`
		SecretKey string `mapstructure:"secretKey"`
		Region    string `mapstructure:"region"`
		UseSSL    bool   `mapstructure:"useSSL"`
	} `mapstructure:"store"`

	Auth struct {
		Strategy string `mapstructure:"strategy"` // "none" or "jwt"
		Secret   string `mapstructure:"secret"`
	} `mapstructure:"auth"`

	Audit struct {
		DSN string `mapstructure:"dsn"` // empty disables the audit trail
	} `mapstructure:"audit"`

	Presence struct {
		RedisAddr string `mapstructure:"redisAddr"` // empty disables presence
	} `mapstructure:"presence"`

	Replay struct {
		ReadTimeout            time.Duration `mapstructure:"readTimeout"`
		MaxConsecutiveTimeouts int           `mapstructure:"maxConsecutiveTimeouts"`
		WallClockCap           time.Duration `mapstructure:"wallClockCap"`
	} `mapstructure:"replay"`

	CreationRetry struct {
		Max     int           `mapstructure:"max"`
		Backoff time.Duration `mapstructure:"backoff"`
	} `mapstructure:"creationRetry"`
}

// Load reads config.yaml from the given search paths (falling back to
// ./config and . when none are given, matching the teacher's
// AddConfigPath usage) and overlays any DOCRELAY_-prefixed environment
// variable.
func Load(searchPaths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(searchPaths) == 0 {
		searchPaths = []string{"./config", "."}
	}
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("DOCRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("broker.tenant", "docrelay")
	v.SetDefault("broker.namespace", "default")
	v.SetDefault("storage.mode", "s3")
	v.SetDefault("snapshotInterval", 30)
	v.SetDefault("store.region", "us-east-1")
	v.SetDefault("auth.strategy", "none")
	v.SetDefault("replay.readTimeout", 2*time.Second)
	v.SetDefault("replay.maxConsecutiveTimeouts", 3)
	v.SetDefault("replay.wallClockCap", 15*time.Second)
	v.SetDefault("creationRetry.max", 3)
	v.SetDefault("creationRetry.backoff", 1*time.Second)
}
