// Package config loads the hosts.yaml inventory.
//
// The inventory names the hosts to scan, SSH connection defaults merged
// into per-host entries, and interface name patterns to exclude from
// collection. Credentials may be given inline, via an environment
// variable (password_env), or as a key file path with ~ expansion.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// HostConfig is one host entry with defaults applied.
type HostConfig struct {
	Hostname    string
	Port        int
	Username    string
	AuthType    string
	KeyFile     string
	Password    string
	Timeout     time.Duration
	Description string
}

// Inventory is the processed hosts.yaml content.
type Inventory struct {
	Hosts             map[string]*HostConfig
	ExcludeInterfaces []string
}

type rawDefaults struct {
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	AuthType    string `yaml:"auth_type"`
	KeyFile     string `yaml:"key_file"`
	Password    string `yaml:"password"`
	PasswordEnv string `yaml:"password_env"`
	Timeout     int    `yaml:"timeout"`
}

type rawHost struct {
	Hostname    string  `yaml:"hostname"`
	Port        *int    `yaml:"port"`
	Username    *string `yaml:"username"`
	AuthType    *string `yaml:"auth_type"`
	KeyFile     *string `yaml:"key_file"`
	Password    *string `yaml:"password"`
	PasswordEnv *string `yaml:"password_env"`
	Timeout     *int    `yaml:"timeout"`
	Description string  `yaml:"description"`
}

type rawInventory struct {
	SSHDefaults       rawDefaults         `yaml:"ssh_defaults"`
	Hosts             map[string]*rawHost `yaml:"hosts"`
	ExcludeInterfaces []string            `yaml:"exclude_interfaces"`
}

// LoadInventory reads and processes an inventory file. Configuration
// problems (missing file, bad YAML, no usable hosts) are errors; hosts
// missing a hostname are skipped with a warning.
func LoadInventory(path string) (*Inventory, error) {
	path = expandHome(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inventory %s: %w", path, err)
	}

	var raw rawInventory
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse inventory %s: %w", path, err)
	}

	if len(raw.Hosts) == 0 {
		return nil, fmt.Errorf("inventory %s defines no hosts", path)
	}

	inv := &Inventory{
		Hosts:             make(map[string]*HostConfig, len(raw.Hosts)),
		ExcludeInterfaces: raw.ExcludeInterfaces,
	}

	defaults := raw.SSHDefaults
	if defaults.Port == 0 {
		defaults.Port = 22
	}
	if defaults.Username == "" {
		defaults.Username = "root"
	}
	if defaults.AuthType == "" {
		defaults.AuthType = "key"
	}
	if defaults.Timeout == 0 {
		defaults.Timeout = 10
	}

	for hostID, h := range raw.Hosts {
		if h == nil || h.Hostname == "" {
			log.WithField("host", hostID).Warn("host has no hostname, skipping")
			continue
		}

		cfg := &HostConfig{
			Hostname:    h.Hostname,
			Port:        defaults.Port,
			Username:    defaults.Username,
			AuthType:    defaults.AuthType,
			KeyFile:     defaults.KeyFile,
			Password:    resolvePassword(defaults.Password, defaults.PasswordEnv),
			Timeout:     time.Duration(defaults.Timeout) * time.Second,
			Description: h.Description,
		}
		if h.Port != nil {
			cfg.Port = *h.Port
		}
		if h.Username != nil {
			cfg.Username = *h.Username
		}
		if h.AuthType != nil {
			cfg.AuthType = *h.AuthType
		}
		if h.KeyFile != nil {
			cfg.KeyFile = *h.KeyFile
		}
		if h.Password != nil || h.PasswordEnv != nil {
			var pwd, pwdEnv string
			if h.Password != nil {
				pwd = *h.Password
			}
			if h.PasswordEnv != nil {
				pwdEnv = *h.PasswordEnv
			}
			cfg.Password = resolvePassword(pwd, pwdEnv)
		}
		if h.Timeout != nil {
			cfg.Timeout = time.Duration(*h.Timeout) * time.Second
		}
		cfg.KeyFile = expandHome(cfg.KeyFile)

		inv.Hosts[hostID] = cfg
	}

	if len(inv.Hosts) == 0 {
		return nil, fmt.Errorf("inventory %s has no usable hosts", path)
	}

	return inv, nil
}

// HostIDs returns all inventory host IDs, unsorted.
func (inv *Inventory) HostIDs() []string {
	ids := make([]string, 0, len(inv.Hosts))
	for id := range inv.Hosts {
		ids = append(ids, id)
	}
	return ids
}

// FilterHosts restricts the inventory to the given IDs. Unknown IDs are
// an error so typos fail loudly instead of silently scanning nothing.
func (inv *Inventory) FilterHosts(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	filtered := make(map[string]*HostConfig, len(ids))
	var unknown []string
	for _, id := range ids {
		if cfg, ok := inv.Hosts[id]; ok {
			filtered[id] = cfg
		} else {
			unknown = append(unknown, id)
		}
	}
	if len(filtered) == 0 {
		return fmt.Errorf("none of the requested hosts are in the inventory: %s", strings.Join(ids, ", "))
	}
	if len(unknown) > 0 {
		log.WithField("hosts", strings.Join(unknown, ", ")).Warn("requested hosts not in inventory")
	}
	inv.Hosts = filtered
	return nil
}

// resolvePassword prefers an inline password, then an env indirection.
func resolvePassword(password, passwordEnv string) string {
	if password != "" {
		return password
	}
	if passwordEnv != "" {
		return os.Getenv(passwordEnv)
	}
	return ""
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
