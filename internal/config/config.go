// Package config resolves the Appmixer connection settings from KDL files
// and the environment.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultReconnectDelay is the fixed wait between event stream reconnects.
const DefaultReconnectDelay = 5 * time.Second

// Config holds everything needed to talk to an Appmixer tenant.
type Config struct {
	BaseURL     string
	AccessToken string
	Username    string
	Password    string

	// ReconnectDelay is the pause before re-opening a lost event stream.
	ReconnectDelay time.Duration
	// RequestTimeout bounds each REST call. Zero means no timeout.
	RequestTimeout time.Duration
}

// NewConfig creates an empty config.
func NewConfig() *Config {
	return &Config{}
}

// HasCredentials reports whether the login pair is complete.
func (c *Config) HasCredentials() bool {
	return c.Username != "" && c.Password != ""
}

// ApplyDefaults fills unset optional fields and normalizes the base URL.
func (c *Config) ApplyDefaults() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
}

// Validate checks the configuration surface: a base URL is required, and at
// least one credential path (access token or username/password) must be
// usable.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return &ConfigError{Field: "base-url", Reason: "is required (set APPMIXER_BASE_URL)"}
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigError{Field: "base-url", Reason: fmt.Sprintf("%q is not an http(s) URL", c.BaseURL)}
	}
	if c.AccessToken == "" && !c.HasCredentials() {
		return &ConfigError{
			Field:  "credentials",
			Reason: "set APPMIXER_ACCESS_TOKEN or both APPMIXER_USERNAME and APPMIXER_PASSWORD",
		}
	}
	if c.RequestTimeout < 0 {
		return &ConfigError{Field: "request-timeout", Reason: "must not be negative"}
	}
	return nil
}

// ConfigError reports a missing or malformed setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}
