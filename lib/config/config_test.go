// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ldbfs.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Mountpoint != "/run/ldb-fuse" {
		t.Errorf("mountpoint = %q", cfg.Mountpoint)
	}
	if cfg.Directory.UserFilter != "(name=%s)" {
		t.Errorf("user_filter = %q", cfg.Directory.UserFilter)
	}
	if cfg.Directory.SudoUserSuffix != "@ldap.luffy.ai" {
		t.Errorf("sudo_user_suffix = %q", cfg.Directory.SudoUserSuffix)
	}
	if cfg.Directory.Attributes.Photo != "jpegPhoto" {
		t.Errorf("attributes.photo = %q", cfg.Directory.Attributes.Photo)
	}
	if cfg.IconSync.Enabled || cfg.IconSync.Interval != 30*time.Minute {
		t.Errorf("icon_sync = %+v", cfg.IconSync)
	}

	// Only the database is missing.
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "database is required") {
		t.Fatalf("Validate() = %v, want database error", err)
	}
	cfg.Database = "/var/lib/sss/db/cache_example.com.ldb"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with database = %v", err)
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	t.Setenv("LDBFS_TEST_ROOT", "/srv/sssd")
	path := writeConfig(t, `
database: ${LDBFS_TEST_ROOT}/cache_example.com.ldb
mountpoint: ${LDBFS_TEST_MISSING:-/mnt/ldb}
allow_other: true
directory:
  hostname: build-01
  sudo_user_suffix: ""
  lock_timeout: 250ms
  attributes:
    photo: thumbnailPhoto
ldap:
  base_dn: dc=example,dc=com
  timeout: 3s
icon_sync:
  enabled: true
  interval: 1h
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Database != "/srv/sssd/cache_example.com.ldb" {
		t.Errorf("database = %q", cfg.Database)
	}
	if cfg.Mountpoint != "/mnt/ldb" {
		t.Errorf("mountpoint = %q", cfg.Mountpoint)
	}
	if !cfg.AllowOther {
		t.Error("allow_other not applied")
	}
	if cfg.Directory.SudoUserSuffix != "" {
		t.Errorf("sudo_user_suffix = %q, want empty", cfg.Directory.SudoUserSuffix)
	}
	if cfg.Directory.LockTimeout != 250*time.Millisecond {
		t.Errorf("lock_timeout = %v", cfg.Directory.LockTimeout)
	}
	if cfg.Directory.Attributes.Photo != "thumbnailPhoto" || cfg.Directory.Attributes.Name != "name" {
		t.Errorf("attributes = %+v", cfg.Directory.Attributes)
	}
	if cfg.Directory.UsersFilter != "(objectCategory=user)" {
		t.Errorf("users_filter lost its default: %q", cfg.Directory.UsersFilter)
	}
	if !cfg.IconSync.Enabled || cfg.IconSync.Interval != time.Hour {
		t.Errorf("icon_sync = %+v", cfg.IconSync)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	options := cfg.SourceOptions(nil)
	if options.LDAP.BaseDN != "dc=example,dc=com" || options.LDAP.Timeout != 3*time.Second {
		t.Errorf("SourceOptions().LDAP = %+v", options.LDAP)
	}
	provider := cfg.ProviderConfig(nil)
	if provider.Hostname != "build-01" || provider.Attributes.Photo != "thumbnailPhoto" {
		t.Errorf("ProviderConfig() = %+v", provider)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile succeeded on a missing file")
	}
	if _, err := LoadFile(writeConfig(t, "directory: [unclosed")); err == nil {
		t.Error("LoadFile succeeded on malformed YAML")
	}
	if _, err := LoadFile(writeConfig(t, "directory:\n  lock_timeout: soon\n")); err == nil {
		t.Error("LoadFile accepted an unparseable duration")
	}
}

func TestLoad(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load without %s: %v", EnvironmentVariable, err)
	}
	if cfg.Mountpoint != DefaultMountpoint {
		t.Errorf("mountpoint = %q", cfg.Mountpoint)
	}

	t.Setenv(EnvironmentVariable, writeConfig(t, "database: /tmp/cache.ldb\n"))
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database != "/tmp/cache.ldb" {
		t.Errorf("database = %q", cfg.Database)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Database = "/tmp/cache.ldb"
	cfg.Directory.UsersFilter = "(objectCategory=user"
	cfg.Directory.UserFilter = "(name=alice)"
	cfg.Directory.SudoersFilter = "(&(sudoHost=%s)(sudoUser=%s))"
	cfg.Directory.Attributes.UIDNumber = ""
	cfg.Directory.LockTimeout = 0
	cfg.IconSync.Interval = -time.Second

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted an invalid config")
	}
	for _, want := range []string{
		"directory.users_filter",
		"directory.user_filter",
		"directory.sudoers_filter",
		"directory.attributes.uid_number",
		"directory.lock_timeout",
		"icon_sync.interval",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate error missing %q:\n%v", want, err)
		}
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("LDBFS_TEST_VAR", "value")
	vars := map[string]string{"HOME": "/home/test"}
	tests := []struct {
		input, want string
	}{
		{"${HOME}/cache.ldb", "/home/test/cache.ldb"},
		{"${LDBFS_TEST_VAR}", "value"},
		{"${LDBFS_TEST_UNSET:-fallback}", "fallback"},
		{"${LDBFS_TEST_UNSET}", ""},
		{"plain", "plain"},
	}
	for _, test := range tests {
		if got := expandVars(test.input, vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}
