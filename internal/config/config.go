package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// PINPOST_PINTEREST_ACCESS_TOKEN.
const EnvPrefix = "PINPOST"

// Config is the full deployment configuration.
type Config struct {
	Addr          string    `mapstructure:"addr"`
	PublicBaseURL string    `mapstructure:"public_base_url"`
	LogJSON       bool      `mapstructure:"log_json"`
	Store         Store     `mapstructure:"store"`
	S3            S3        `mapstructure:"s3"`
	Pinterest     Pinterest `mapstructure:"pinterest"`
	Mastodon      Mastodon  `mapstructure:"mastodon"`
	Bluesky       Bluesky   `mapstructure:"bluesky"`
}

// Store selects the object store backing uploads.
type Store struct {
	// Kind is "s3", "dir" or "" (uploads disabled).
	Kind string `mapstructure:"kind"`
	Dir  string `mapstructure:"dir"`
}

// S3 configures an S3-compatible bucket.
type S3 struct {
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PathStyle       bool   `mapstructure:"path_style"`
}

// Pinterest holds the pre-issued bearer token.
type Pinterest struct {
	AccessToken string `mapstructure:"access_token"`
	APIURL      string `mapstructure:"api_url"`
}

// Mastodon holds the Mastodon server credentials.
type Mastodon struct {
	Server       string `mapstructure:"server"`
	AccessToken  string `mapstructure:"access_token"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// Bluesky holds the Bluesky account credentials.
type Bluesky struct {
	Handle      string `mapstructure:"handle"`
	AppPassword string `mapstructure:"app_password"`
	PDSURL      string `mapstructure:"pds_url"`
}

// Configured reports whether any Mastodon setting was provided.
func (m Mastodon) Configured() bool {
	return m.Server != "" || m.AccessToken != ""
}

// Configured reports whether any Bluesky credential was provided.
func (b Bluesky) Configured() bool {
	return b.Handle != "" || b.AppPassword != ""
}

var defaults = map[string]any{
	"addr":                   ":8080",
	"public_base_url":        "",
	"log_json":               false,
	"store.kind":             "",
	"store.dir":              "media",
	"s3.bucket":              "",
	"s3.endpoint":            "",
	"s3.region":              "auto",
	"s3.access_key_id":       "",
	"s3.secret_access_key":   "",
	"s3.path_style":          true,
	"pinterest.access_token": "",
	"pinterest.api_url":      "https://api.pinterest.com",
	"mastodon.server":        "",
	"mastodon.access_token":  "",
	"mastodon.client_id":     "",
	"mastodon.client_secret": "",
	"bluesky.handle":         "",
	"bluesky.app_password":   "",
	"bluesky.pds_url":        "https://bsky.social",
}

// Load reads an optional YAML file and overlays PINPOST_* environment
// variables. An empty path looks for pinpost.yaml in the working directory
// and tolerates its absence; an explicit path must exist.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("pinpost")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.trim()

	return cfg, nil
}

func (c *Config) trim() {
	for _, s := range []*string{
		&c.Addr, &c.PublicBaseURL, &c.Store.Kind, &c.Store.Dir,
		&c.S3.Bucket, &c.S3.Endpoint, &c.S3.Region, &c.S3.AccessKeyID, &c.S3.SecretAccessKey,
		&c.Pinterest.AccessToken, &c.Pinterest.APIURL,
		&c.Mastodon.Server, &c.Mastodon.AccessToken, &c.Mastodon.ClientID, &c.Mastodon.ClientSecret,
		&c.Bluesky.Handle, &c.Bluesky.AppPassword, &c.Bluesky.PDSURL,
	} {
		*s = strings.TrimSpace(*s)
	}
	c.Store.Kind = strings.ToLower(c.Store.Kind)
}
