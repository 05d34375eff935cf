package config

import "os"

// Environment variables recognized by FromEnv.
const (
	BaseURLEnvVar     = "APPMIXER_BASE_URL"
	AccessTokenEnvVar = "APPMIXER_ACCESS_TOKEN"
	UsernameEnvVar    = "APPMIXER_USERNAME"
	PasswordEnvVar    = "APPMIXER_PASSWORD"
)

// Merge overlays override onto base. Non-empty fields in override win.
func Merge(base, override *Config) *Config {
	merged := NewConfig()
	for _, c := range []*Config{base, override} {
		if c == nil {
			continue
		}
		if c.BaseURL != "" {
			merged.BaseURL = c.BaseURL
		}
		if c.AccessToken != "" {
			merged.AccessToken = c.AccessToken
		}
		if c.Username != "" {
			merged.Username = c.Username
		}
		if c.Password != "" {
			merged.Password = c.Password
		}
		if c.ReconnectDelay > 0 {
			merged.ReconnectDelay = c.ReconnectDelay
		}
		if c.RequestTimeout > 0 {
			merged.RequestTimeout = c.RequestTimeout
		}
	}
	return merged
}

// FromEnv reads the APPMIXER_* variables through getenv.
func FromEnv(getenv func(string) string) *Config {
	return &Config{
		BaseURL:     getenv(BaseURLEnvVar),
		AccessToken: getenv(AccessTokenEnvVar),
		Username:    getenv(UsernameEnvVar),
		Password:    getenv(PasswordEnvVar),
	}
}

// Load resolves the effective configuration. Precedence, lowest first:
// user config, project config in projectDir, the explicit file (if any),
// environment. The result has defaults applied and is validated.
func Load(projectDir, explicitPath string) (*Config, error) {
	user, err := LoadUserConfig()
	if err != nil {
		return nil, err
	}

	project, err := LoadProjectConfig(projectDir)
	if err != nil {
		return nil, err
	}

	cfg := Merge(user, project)
	if explicitPath != "" {
		explicit, err := LoadFile(explicitPath)
		if err != nil {
			return nil, err
		}
		cfg = Merge(cfg, explicit)
	}

	cfg = Merge(cfg, FromEnv(os.Getenv))
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
