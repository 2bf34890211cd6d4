// Package settings manages persistent user settings for the pssctl CLI.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// Settings holds persistent user preferences
type Settings struct {
	// DefaultDevice is the device to use when -d is not specified
	DefaultDevice string `json:"default_device,omitempty"`

	// InventoryPath overrides the default inventory file
	InventoryPath string `json:"inventory,omitempty"`

	// AuditLogPath overrides the default audit log file
	AuditLogPath string `json:"audit_log,omitempty"`

	// RedisAddr enables the status snapshot store when set
	RedisAddr string `json:"redis_addr,omitempty"`

	// RedisDB selects the Redis database for the snapshot store
	RedisDB int `json:"redis_db,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "pssctl_settings.json"
	}
	return filepath.Join(home, ".pssctl", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetInventoryPath returns the inventory path (with fallback)
func (s *Settings) GetInventoryPath() string {
	if s.InventoryPath != "" {
		return s.InventoryPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "inventory.yaml"
	}
	return filepath.Join(home, ".pssctl", "inventory.yaml")
}

// GetAuditLogPath returns the audit log path (with fallback)
func (s *Settings) GetAuditLogPath() string {
	if s.AuditLogPath != "" {
		return s.AuditLogPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "pssctl_audit.log"
	}
	return filepath.Join(home, ".pssctl", "audit.log")
}

// field accessors keyed by the JSON name, for "pssctl settings get/set"
var fields = map[string]struct {
	get func(*Settings) string
	set func(*Settings, string) error
}{
	"default_device": {
		func(s *Settings) string { return s.DefaultDevice },
		func(s *Settings, v string) error { s.DefaultDevice = v; return nil },
	},
	"inventory": {
		func(s *Settings) string { return s.InventoryPath },
		func(s *Settings, v string) error { s.InventoryPath = v; return nil },
	},
	"audit_log": {
		func(s *Settings) string { return s.AuditLogPath },
		func(s *Settings, v string) error { s.AuditLogPath = v; return nil },
	},
	"redis_addr": {
		func(s *Settings) string { return s.RedisAddr },
		func(s *Settings, v string) error { s.RedisAddr = v; return nil },
	},
	"redis_db": {
		func(s *Settings) string { return strconv.Itoa(s.RedisDB) },
		func(s *Settings, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("redis_db must be a non-negative integer, got %q", v)
			}
			s.RedisDB = n
			return nil
		},
	},
}

// Keys returns the setting names accepted by Get and Set.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns a setting by name.
func (s *Settings) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("unknown setting %q", key)
	}
	return f.get(s), nil
}

// Set assigns a setting by name.
func (s *Settings) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}
	return f.set(s, value)
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
