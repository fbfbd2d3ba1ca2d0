// Package config loads service configuration from defaults, an optional
// YAML file and NUDGE_ environment variables, in increasing precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables read as configuration. A double
// underscore separates nesting levels:
//
//	NUDGE_SWEEP__SECRET       -> sweep.secret
//	NUDGE_STORE__S3__BUCKET   -> store.s3.bucket
//	NUDGE_TIMEZONE            -> timezone
const EnvPrefix = "NUDGE_"

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendNATS   = "nats"
	BackendS3     = "s3"

	NotifyLog      = "log"
	NotifyPostmark = "postmark"
	NotifyEmailJS  = "emailjs"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Timezone string         `koanf:"timezone"`
	Store    StoreConfig    `koanf:"store"`
	Sweep    SweepConfig    `koanf:"sweep"`
	Registry RegistryConfig `koanf:"registry"`
	Notify   NotifyConfig   `koanf:"notify"`
}

type ServerConfig struct {
	Port      int    `koanf:"port"`
	StaticDir string `koanf:"static_dir"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type StoreConfig struct {
	Backend string     `koanf:"backend"`
	Path    string     `koanf:"path"` // sqlite database
	File    string     `koanf:"file"` // JSON file backend
	NATS    NATSConfig `koanf:"nats"`
	S3      S3Config   `koanf:"s3"`
}

type NATSConfig struct {
	URL    string `koanf:"url"`
	Bucket string `koanf:"bucket"`
}

type S3Config struct {
	Endpoint  string `koanf:"endpoint"`
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Prefix    string `koanf:"prefix"`
}

type SweepConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Interval      time.Duration `koanf:"interval"`
	Secret        string        `koanf:"secret"`
	TrustedHeader string        `koanf:"trusted_header"`
	TrustedValue  string        `koanf:"trusted_value"`
	RateLimit     float64       `koanf:"rate_limit"` // requests per second per client
	RateBurst     int           `koanf:"rate_burst"`
}

type RegistryConfig struct {
	RejectPastDue bool `koanf:"reject_past_due"`
}

type NotifyConfig struct {
	Backend  string         `koanf:"backend"`
	To       string         `koanf:"to"`
	ToName   string         `koanf:"to_name"`
	Timeout  time.Duration  `koanf:"timeout"`
	Postmark PostmarkConfig `koanf:"postmark"`
	EmailJS  EmailJSConfig  `koanf:"emailjs"`
}

type PostmarkConfig struct {
	ServerToken string `koanf:"server_token"`
	From        string `koanf:"from"`
	APIURL      string `koanf:"api_url"`
}

type EmailJSConfig struct {
	ServiceID  string `koanf:"service_id"`
	TemplateID string `koanf:"template_id"`
	PublicKey  string `koanf:"public_key"`
	PrivateKey string `koanf:"private_key"`
	APIURL     string `koanf:"api_url"`
}

// Load reads configuration. An empty path skips the file layer; a
// non-empty path must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Store.File == "" {
			return fmt.Errorf("store.file is required for the file backend")
		}
	case BackendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite backend")
		}
	case BackendNATS:
		if c.Store.NATS.URL == "" || c.Store.NATS.Bucket == "" {
			return fmt.Errorf("store.nats.url and store.nats.bucket are required for the nats backend")
		}
	case BackendS3:
		if c.Store.S3.Bucket == "" {
			return fmt.Errorf("store.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown store backend: %s (supported: %s, %s, %s, %s, %s)",
			c.Store.Backend, BackendMemory, BackendFile, BackendSQLite, BackendNATS, BackendS3)
	}

	switch c.Notify.Backend {
	case NotifyLog:
	case NotifyPostmark:
		if c.Notify.Postmark.ServerToken == "" || c.Notify.Postmark.From == "" || c.Notify.To == "" {
			return fmt.Errorf("notify.postmark.server_token, notify.postmark.from and notify.to are required for postmark")
		}
	case NotifyEmailJS:
		e := c.Notify.EmailJS
		if e.ServiceID == "" || e.TemplateID == "" || e.PublicKey == "" || c.Notify.To == "" {
			return fmt.Errorf("notify.emailjs.service_id, template_id, public_key and notify.to are required for emailjs")
		}
	default:
		return fmt.Errorf("unknown notify backend: %s (supported: %s, %s, %s)",
			c.Notify.Backend, NotifyLog, NotifyPostmark, NotifyEmailJS)
	}

	if c.Sweep.Interval < time.Second {
		return fmt.Errorf("sweep.interval must be at least 1s")
	}
	if c.Notify.Timeout <= 0 {
		return fmt.Errorf("notify.timeout must be positive")
	}
	if c.Sweep.RateLimit <= 0 || c.Sweep.RateBurst <= 0 {
		return fmt.Errorf("sweep.rate_limit and sweep.rate_burst must be positive")
	}
	return nil
}
