// Package inventory loads the device inventory: how to reach each network
// element and which credentials to use.
package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/trungdtbk/pss1830/pkg/session"
	"github.com/trungdtbk/pss1830/pkg/util"
)

// Built-in connection defaults
const (
	DefaultPort           = 22
	DefaultCLIUser        = "cli"
	DefaultCLIPassword    = "cli"
	DefaultConnectTimeout = 30 * time.Second
	DefaultCommandTimeout = session.DefaultCommandTimeout
)

// Device is the connection profile of one network element.
type Device struct {
	Name string `yaml:"-"`
	Host string `yaml:"host"`
	Port int    `yaml:"port,omitempty"`

	// Operator account answering the shell's Username: challenge
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	PasswordEnv string `yaml:"password_env,omitempty"`

	// SSH account that opens the CLI
	CLIUser        string `yaml:"cli_user,omitempty"`
	CLIPassword    string `yaml:"cli_password,omitempty"`
	PrivateKeyFile string `yaml:"private_key_file,omitempty"`
	KnownHostsFile string `yaml:"known_hosts_file,omitempty"`

	CommandTimeout time.Duration `yaml:"command_timeout,omitempty"`
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
}

// Inventory maps device names to connection profiles.
type Inventory struct {
	Defaults Device             `yaml:"defaults"`
	Devices  map[string]*Device `yaml:"devices"`
}

// DefaultPath returns ~/.pssctl/inventory.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "inventory.yaml"
	}
	return filepath.Join(home, ".pssctl", "inventory.yaml")
}

// Load reads and validates an inventory file.
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading inventory %s: %w", path, err)
	}
	inv, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing inventory %s: %w", path, err)
	}
	return inv, nil
}

// Parse decodes and validates inventory YAML.
func Parse(data []byte) (*Inventory, error) {
	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, err
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Validate checks that every device can be resolved.
func (inv *Inventory) Validate() error {
	v := &util.ValidationBuilder{}
	v.Add(len(inv.Devices) > 0, "inventory has no devices")
	for _, name := range inv.Names() {
		d := inv.merge(name, inv.Devices[name])
		if d.Host == "" {
			v.AddErrorf("device %s: host is required", name)
		}
		if d.Port < 1 || d.Port > 65535 {
			v.AddErrorf("device %s: invalid port %d", name, d.Port)
		}
		if d.CommandTimeout < 0 || d.ConnectTimeout < 0 {
			v.AddErrorf("device %s: timeouts must not be negative", name)
		}
	}
	return v.Build()
}

// Names returns the device names in sorted order.
func (inv *Inventory) Names() []string {
	names := make([]string, 0, len(inv.Devices))
	for n := range inv.Devices {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Device returns the profile for name with defaults applied.
func (inv *Inventory) Device(name string) (*Device, error) {
	d, ok := inv.Devices[name]
	if !ok {
		return nil, util.NewValidationError(fmt.Sprintf("device %q not found in inventory", name))
	}
	return inv.merge(name, d), nil
}

func (inv *Inventory) merge(name string, d *Device) *Device {
	out := Device{
		Port:           DefaultPort,
		CLIUser:        DefaultCLIUser,
		CLIPassword:    DefaultCLIPassword,
		CommandTimeout: DefaultCommandTimeout,
		ConnectTimeout: DefaultConnectTimeout,
	}
	out.overlay(&inv.Defaults)
	if d != nil {
		out.overlay(d)
	}
	out.Name = name
	return &out
}

func (d *Device) overlay(o *Device) {
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	str(&d.Host, o.Host)
	str(&d.Username, o.Username)
	str(&d.Password, o.Password)
	str(&d.PasswordEnv, o.PasswordEnv)
	str(&d.CLIUser, o.CLIUser)
	str(&d.CLIPassword, o.CLIPassword)
	str(&d.PrivateKeyFile, o.PrivateKeyFile)
	str(&d.KnownHostsFile, o.KnownHostsFile)
	if o.Port != 0 {
		d.Port = o.Port
	}
	if o.CommandTimeout != 0 {
		d.CommandTimeout = o.CommandTimeout
	}
	if o.ConnectTimeout != 0 {
		d.ConnectTimeout = o.ConnectTimeout
	}
}

// ResolvePassword fills Password from PasswordEnv when it is unset. It
// reports whether a password is available.
func (d *Device) ResolvePassword(getenv func(string) string) bool {
	if d.Password == "" && d.PasswordEnv != "" {
		d.Password = getenv(d.PasswordEnv)
	}
	return d.Password != ""
}

// SSHConfig converts the profile into session dial parameters.
func (d *Device) SSHConfig() session.SSHConfig {
	return session.SSHConfig{
		Device:         d.Name,
		Host:           d.Host,
		Port:           d.Port,
		User:           d.CLIUser,
		Password:       d.CLIPassword,
		PrivateKeyFile: d.PrivateKeyFile,
		KnownHostsFile: d.KnownHostsFile,
		Login:          session.Login{Username: d.Username, Password: d.Password},
		ConnectTimeout: d.ConnectTimeout,
		CommandTimeout: d.CommandTimeout,
	}
}
