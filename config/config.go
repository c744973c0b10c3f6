// Package config provides YAML configuration parsing for Pushcast.
//
// This package enables running Pushcast as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Release Alerts
//	port: ${PORT:-3000}
//	public_url: https://push.example.com
//
//	vapid:
//	  subject: mailto:ops@example.com
//	  public_key: ${VAPID_PUBLIC_KEY}
//	  private_key: ${VAPID_PRIVATE_KEY}
//
//	delivery:
//	  max_concurrency: 20
//	  timeout: 5s
//	  ttl: 12h
//	  urgency: high
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/pushcast"
)

// minDeliveryTimeout is the smallest per-delivery timeout accepted. Push
// services routinely take a few hundred milliseconds to answer.
const minDeliveryTimeout = 1 * time.Second

const (
	defaultPort           = 3000
	defaultSubject        = "mailto:admin@example.com"
	defaultMaxConcurrency = 10
	defaultTimeout        = 10 * time.Second
	defaultTTL            = 24 * time.Hour
)

// DefaultYAML is the configuration used when no file is given. Everything
// in it can be overridden from the environment.
const DefaultYAML = `
title: ${PUSHCAST_TITLE:-Pushcast}
host: ${PUSHCAST_HOST:-}
port: ${PORT:-3000}
public_url: ${PUSHCAST_PUBLIC_URL:-}
vapid:
  subject: ${VAPID_SUBJECT:-mailto:admin@example.com}
  public_key: ${VAPID_PUBLIC_KEY:-}
  private_key: ${VAPID_PRIVATE_KEY:-}
`

// Config is the root configuration structure for Pushcast.
//
// It maps directly to the YAML configuration file structure.
// Use [Load], [Parse] or [Default] to create a Config.
type Config struct {
	// Title is the admin page title. Defaults to "Pushcast" if not set.
	Title string `yaml:"title"`

	// Host is the interface to bind. Empty binds all interfaces.
	Host string `yaml:"host"`

	// Port is the HTTP server port. Defaults to 3000.
	Port int `yaml:"port"`

	// PublicURL overrides the LAN address reported to phones.
	PublicURL string `yaml:"public_url"`

	// VAPID holds the application server identity.
	VAPID VAPIDConfig `yaml:"vapid"`

	// Delivery tunes how broadcasts are sent.
	Delivery DeliveryConfig `yaml:"delivery"`
}

// VAPIDConfig holds the application server identity.
type VAPIDConfig struct {
	// Subject is a mailto: address or https URL. Defaults to
	// "mailto:admin@example.com".
	Subject string `yaml:"subject"`

	// PublicKey and PrivateKey must be set together. When both are empty a
	// temporary pair is generated at startup.
	PublicKey  string `yaml:"public_key"`
	PrivateKey string `yaml:"private_key"`
}

// DeliveryConfig tunes how broadcasts are sent.
type DeliveryConfig struct {
	// MaxConcurrency is the number of deliveries in flight. Defaults to 10.
	MaxConcurrency int `yaml:"max_concurrency"`

	// Timeout bounds each delivery. Defaults to 10s, minimum 1s.
	Timeout Duration `yaml:"timeout"`

	// TTL is how long push services hold messages for offline devices.
	// Defaults to 24h; "0s" is allowed and means deliver now or never.
	TTL *Duration `yaml:"ttl"`

	// Urgency is very-low, low, normal or high. Defaults to normal.
	Urgency string `yaml:"urgency"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		// submatches[2] is ":-..." (non-empty if default syntax was used)
		// submatches[3] is the actual default value (may be empty for ${VAR:-})
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Default parses [DefaultYAML] against the current environment.
func Default() (*Config, error) {
	return Parse([]byte(DefaultYAML))
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded across the whole document before it
// is decoded, so numeric fields such as port can come from the environment.
// Defaults are applied for every unset field, then the result is validated.
func Parse(data []byte) (*Config, error) {
	expanded, err := expandEnvVars(string(data))
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.VAPID.Subject == "" {
		c.VAPID.Subject = defaultSubject
	}
	if c.Delivery.MaxConcurrency == 0 {
		c.Delivery.MaxConcurrency = defaultMaxConcurrency
	}
	if c.Delivery.Timeout == 0 {
		c.Delivery.Timeout = Duration(defaultTimeout)
	}
	if c.Delivery.TTL == nil {
		ttl := Duration(defaultTTL)
		c.Delivery.TTL = &ttl
	}
	if c.Delivery.Urgency == "" {
		c.Delivery.Urgency = pushcast.UrgencyNormal
	}
}

// validate checks the config after defaults have been applied.
func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.PublicURL != "" {
		u, err := url.Parse(c.PublicURL)
		if err != nil {
			return fmt.Errorf("public_url: invalid url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("public_url: scheme must be http or https, got %q", u.Scheme)
		}
		if u.Host == "" {
			return fmt.Errorf("public_url: host is required")
		}
	}

	if (c.VAPID.PublicKey == "") != (c.VAPID.PrivateKey == "") {
		return fmt.Errorf("vapid: public_key and private_key must be set together")
	}

	if c.Delivery.MaxConcurrency < 1 {
		return fmt.Errorf("delivery.max_concurrency must be at least 1, got %d", c.Delivery.MaxConcurrency)
	}
	if c.Delivery.Timeout.Duration() < minDeliveryTimeout {
		return fmt.Errorf("delivery.timeout must be at least %s, got %s", minDeliveryTimeout, c.Delivery.Timeout.Duration())
	}
	if c.Delivery.TTL.Duration() < 0 {
		return fmt.Errorf("delivery.ttl cannot be negative, got %s", c.Delivery.TTL.Duration())
	}
	if !pushcast.ValidUrgency(c.Delivery.Urgency) {
		return fmt.Errorf("delivery.urgency must be very-low, low, normal or high, got %q", c.Delivery.Urgency)
	}

	return nil
}

// HasKeys reports whether a VAPID key pair is configured.
func (c *Config) HasKeys() bool {
	return c.VAPID.PublicKey != "" && c.VAPID.PrivateKey != ""
}
