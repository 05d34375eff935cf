package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	kdl "github.com/sblinch/kdl-go"
)

const (
	ProjectConfigFile = ".appmixer-mcp.kdl"
	UserConfigDir     = "appmixer-mcp"
	UserConfigFile    = "config.kdl"
)

// KDLConfig is the raw KDL structure for unmarshaling.
//
//	base-url "https://api.acme.appmixer.cloud"
//	username "me@acme.com"
//	password "secret"
//	reconnect-delay "5s"
type KDLConfig struct {
	BaseURL        string `kdl:"base-url"`
	AccessToken    string `kdl:"access-token"`
	Username       string `kdl:"username"`
	Password       string `kdl:"password"`
	ReconnectDelay string `kdl:"reconnect-delay"`
	RequestTimeout string `kdl:"request-timeout"`
}

// UserConfigPath returns the path to the user config file.
func UserConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, UserConfigDir, UserConfigFile)
}

// ProjectConfigPath returns the path to the project config file.
func ProjectConfigPath(dir string) string {
	return filepath.Join(dir, ProjectConfigFile)
}

// ConfigPaths returns all config file locations consulted by Load.
func ConfigPaths(projectDir string) map[string]string {
	return map[string]string{
		"user":    UserConfigPath(),
		"project": ProjectConfigPath(projectDir),
	}
}

// LoadUserConfig loads configuration from the user config file.
func LoadUserConfig() (*Config, error) {
	path := UserConfigPath()
	if path == "" {
		return NewConfig(), nil
	}
	return loadConfigFile(path, false)
}

// LoadProjectConfig loads configuration from the project config file.
func LoadProjectConfig(dir string) (*Config, error) {
	return loadConfigFile(ProjectConfigPath(dir), false)
}

// LoadFile loads an explicitly named config file, which must exist.
func LoadFile(path string) (*Config, error) {
	return loadConfigFile(path, true)
}

func loadConfigFile(path string, mustExist bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !mustExist {
		return NewConfig(), nil
	}
	if err != nil {
		return nil, err
	}

	cfg, err := ParseKDLConfig(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseKDLConfig parses KDL configuration data.
func ParseKDLConfig(data string) (*Config, error) {
	var raw KDLConfig
	if err := kdl.Unmarshal([]byte(data), &raw); err != nil {
		return nil, err
	}

	cfg := &Config{
		BaseURL:     raw.BaseURL,
		AccessToken: raw.AccessToken,
		Username:    raw.Username,
		Password:    raw.Password,
	}

	var err error
	if cfg.ReconnectDelay, err = parseDuration("reconnect-delay", raw.ReconnectDelay); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = parseDuration("request-timeout", raw.RequestTimeout); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &ConfigError{Field: field, Reason: fmt.Sprintf("%q is not a duration", s)}
	}
	return d, nil
}
