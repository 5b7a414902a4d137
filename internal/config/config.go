package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Actor roles supported by the backend's two route families.
const (
	RoleRecruiter = "recruiter"
	RoleApplicant = "applicant"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the local Web API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the local desk API.
	Listen string `yaml:"listen" json:"listen"`

	// BackendURL is the base URL of the remote recruitment backend.
	BackendURL string `yaml:"backend_url" json:"backend_url"`

	// Role selects which side of the portal this desk acts as:
	// "recruiter" or "applicant".
	Role string `yaml:"role" json:"role"`

	// Timezone is the IANA timezone used as the canonical display zone
	// for calendar day attribution (e.g. "Asia/Manila").
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic interview-schedule refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// PollSeconds is the message polling interval for the currently
	// selected conversation.
	PollSeconds int `yaml:"poll_seconds" json:"poll_seconds"`

	// IdleLogoutMinutes is the inactivity window after which the local
	// session is cleared and the desk drops back to logged-out state.
	IdleLogoutMinutes int `yaml:"idle_logout_minutes" json:"idle_logout_minutes"`

	// SessionPath is where the session token file is stored.
	SessionPath string `yaml:"session_path" json:"session_path"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// local endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:            "127.0.0.1:8090",
		BackendURL:        "http://127.0.0.1:8080",
		Role:              RoleRecruiter,
		Timezone:          "Asia/Manila",
		RefreshCron:       "*/15 * * * *",
		PollSeconds:       5,
		IdleLogoutMinutes: 30,
		SessionPath:       "./var/session.json",
		BasicAuth:         nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8090"
	}
	if c.BackendURL == "" {
		c.BackendURL = "http://127.0.0.1:8080"
	}
	switch c.Role {
	case RoleRecruiter, RoleApplicant:
		// ok
	default:
		c.Role = RoleRecruiter
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Manila"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if c.PollSeconds <= 0 {
		c.PollSeconds = 5
	}
	if c.IdleLogoutMinutes <= 0 {
		c.IdleLogoutMinutes = 30
	}
	if c.SessionPath == "" {
		c.SessionPath = "./var/session.json"
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".hiredesk-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the
// package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
