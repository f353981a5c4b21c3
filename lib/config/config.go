// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/ldbfs/lib/directory"
	"github.com/bureau-foundation/ldbfs/lib/iconsync"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "LDBFS_CONFIG"

// DefaultMountpoint is where the tree is mounted when nothing else is
// configured.
const DefaultMountpoint = "/run/ldb-fuse"

// Config is the ldbfs configuration.
type Config struct {
	// Database is the LDB file, SQLite snapshot or LDAP URL to serve.
	Database string `yaml:"database"`

	// Mountpoint is the directory the tree is mounted on. It is created
	// when missing.
	Mountpoint string `yaml:"mountpoint"`

	// AllowOther lets users other than the mounting user access the
	// tree. Requires user_allow_other in /etc/fuse.conf for non-root
	// mounts.
	AllowOther bool `yaml:"allow_other"`

	// Debug enables debug logging and FUSE request tracing.
	Debug bool `yaml:"debug"`

	Directory DirectoryConfig `yaml:"directory"`
	LDAP      LDAPConfig      `yaml:"ldap"`
	IconSync  IconSyncConfig  `yaml:"icon_sync"`
}

// DirectoryConfig configures how entries become users and sudoers.
type DirectoryConfig struct {
	// Hostname selects sudo rules. Empty uses the machine's hostname.
	Hostname string `yaml:"hostname"`

	// SudoUserSuffix is stripped from sudoUser values. Empty disables
	// stripping.
	SudoUserSuffix string `yaml:"sudo_user_suffix"`

	// UsersFilter selects every user entry.
	UsersFilter string `yaml:"users_filter"`

	// UserFilter and SudoersFilter are templates with exactly one %s,
	// replaced by the escaped user name and the hostname respectively.
	UserFilter    string `yaml:"user_filter"`
	SudoersFilter string `yaml:"sudoers_filter"`

	// LockTimeout bounds waiting for a writer to release an LDB file.
	LockTimeout time.Duration `yaml:"lock_timeout"`

	Attributes directory.Attributes `yaml:"attributes"`
}

// LDAPConfig applies when Database is an LDAP URL.
type LDAPConfig struct {
	BaseDN           string        `yaml:"base_dn"`
	BindDN           string        `yaml:"bind_dn"`
	BindPasswordFile string        `yaml:"bind_password_file"`
	Timeout          time.Duration `yaml:"timeout"`
}

// IconSyncConfig configures the periodic icon reconciliation job.
type IconSyncConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// Default returns the built-in configuration. Every field except
// Database has a usable value.
func Default() *Config {
	return &Config{
		Mountpoint: DefaultMountpoint,
		Directory: DirectoryConfig{
			SudoUserSuffix: directory.DefaultSudoUserSuffix,
			UsersFilter:    directory.DefaultUsersFilter,
			UserFilter:     directory.DefaultUserFilter,
			SudoersFilter:  directory.DefaultSudoersFilter,
			LockTimeout:    5 * time.Second,
			Attributes:     directory.DefaultAttributes(),
		},
		LDAP: LDAPConfig{
			Timeout: directory.DefaultLDAPTimeout,
		},
		IconSync: IconSyncConfig{
			Interval: iconsync.DefaultInterval,
		},
	}
}

// Load loads the file named by LDBFS_CONFIG, or returns Default when
// the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path over the defaults. Keys
// missing from the file keep their default values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Database = expandVars(c.Database, vars)
	c.Mountpoint = expandVars(c.Mountpoint, vars)
	c.LDAP.BindPasswordFile = expandVars(c.LDAP.BindPasswordFile, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors, reporting all of them.
func (c *Config) Validate() error {
	var errs []error

	if c.Database == "" {
		errs = append(errs, fmt.Errorf("database is required"))
	}
	if c.Mountpoint == "" {
		errs = append(errs, fmt.Errorf("mountpoint is required"))
	}

	if err := checkFilter(c.Directory.UsersFilter, false); err != nil {
		errs = append(errs, fmt.Errorf("directory.users_filter: %w", err))
	}
	if err := checkFilter(c.Directory.UserFilter, true); err != nil {
		errs = append(errs, fmt.Errorf("directory.user_filter: %w", err))
	}
	if err := checkFilter(c.Directory.SudoersFilter, true); err != nil {
		errs = append(errs, fmt.Errorf("directory.sudoers_filter: %w", err))
	}

	attributes := map[string]string{
		"name":       c.Directory.Attributes.Name,
		"uid_number": c.Directory.Attributes.UIDNumber,
		"modified":   c.Directory.Attributes.Modified,
		"photo":      c.Directory.Attributes.Photo,
		"thumbnail":  c.Directory.Attributes.Thumbnail,
		"sudo_user":  c.Directory.Attributes.SudoUser,
	}
	for _, key := range []string{"name", "uid_number", "modified", "photo", "thumbnail", "sudo_user"} {
		if attributes[key] == "" {
			errs = append(errs, fmt.Errorf("directory.attributes.%s is required", key))
		}
	}

	if c.Directory.LockTimeout <= 0 {
		errs = append(errs, fmt.Errorf("directory.lock_timeout must be positive"))
	}
	if c.LDAP.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("ldap.timeout must be positive"))
	}
	if c.IconSync.Interval <= 0 {
		errs = append(errs, fmt.Errorf("icon_sync.interval must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// checkFilter compiles filter, first substituting a sample value when
// it is a template.
func checkFilter(filter string, template bool) error {
	if template {
		if count := strings.Count(filter, "%s"); count != 1 {
			return fmt.Errorf("template %q must contain exactly one %%s, has %d", filter, count)
		}
		filter = fmt.Sprintf(filter, "x")
	}
	if filter == "" {
		return fmt.Errorf("filter is required")
	}
	_, err := directory.CompileFilter(filter)
	return err
}

// SourceOptions returns the options for directory.Open.
func (c *Config) SourceOptions(logger *slog.Logger) directory.Options {
	return directory.Options{
		LockTimeout: c.Directory.LockTimeout,
		LDAP: directory.LDAPOptions{
			BaseDN:           c.LDAP.BaseDN,
			BindDN:           c.LDAP.BindDN,
			BindPasswordFile: c.LDAP.BindPasswordFile,
			Timeout:          c.LDAP.Timeout,
		},
		Logger: logger,
	}
}

// ProviderConfig returns the configuration for directory.NewProvider.
func (c *Config) ProviderConfig(logger *slog.Logger) directory.ProviderConfig {
	return directory.ProviderConfig{
		Hostname:       c.Directory.Hostname,
		SudoUserSuffix: c.Directory.SudoUserSuffix,
		UsersFilter:    c.Directory.UsersFilter,
		UserFilter:     c.Directory.UserFilter,
		SudoersFilter:  c.Directory.SudoersFilter,
		Attributes:     c.Directory.Attributes,
		Logger:         logger,
	}
}
