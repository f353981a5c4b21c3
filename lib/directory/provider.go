// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/bureau-foundation/ldbfs/lib/identity"
)

// Default filters. The user and sudoers filters are templates whose
// single %s receives an escaped value.
const (
	DefaultUsersFilter    = "(objectCategory=user)"
	DefaultUserFilter     = "(name=%s)"
	DefaultSudoersFilter  = "(&(sudoHost=%s)(sudoCommand=ALL))"
	DefaultSudoUserSuffix = "@ldap.luffy.ai"
)

// Attributes names the directory attributes a Provider reads.
type Attributes struct {
	Name      string `yaml:"name"`
	UIDNumber string `yaml:"uid_number"`
	Modified  string `yaml:"modified"`
	Photo     string `yaml:"photo"`
	Thumbnail string `yaml:"thumbnail"`
	SudoUser  string `yaml:"sudo_user"`
}

// DefaultAttributes returns the attribute names used by SSSD caches
// and Active Directory.
func DefaultAttributes() Attributes {
	return Attributes{
		Name:      "name",
		UIDNumber: "uidNumber",
		Modified:  "originalModifyTimestamp",
		Photo:     "jpegPhoto",
		Thumbnail: "thumbnailPhoto",
		SudoUser:  "sudoUser",
	}
}

func (a Attributes) user() []string {
	return []string{a.Name, a.UIDNumber, a.Modified, a.Photo, a.Thumbnail}
}

// ProviderConfig configures a Provider. Empty filter and attribute
// fields take their defaults; an empty SudoUserSuffix disables
// stripping.
type ProviderConfig struct {
	// Hostname selects sudo rules when ListSudoers is called without
	// a host. Empty uses os.Hostname.
	Hostname string

	SudoUserSuffix string
	UsersFilter    string
	UserFilter     string
	SudoersFilter  string
	Attributes     Attributes

	// Logger receives debug output. Nil discards it.
	Logger *slog.Logger
}

// ProviderError wraps any failure to query or interpret the directory.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return "directory " + e.Op + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Provider turns directory entries into users and sudoer lists. It
// holds no state besides its configuration and is safe for concurrent
// use.
type Provider struct {
	source Source
	config ProviderConfig
	logger *slog.Logger
}

// NewProvider returns a Provider reading from source.
func NewProvider(source Source, config ProviderConfig) *Provider {
	defaults := DefaultAttributes()
	fill := func(value *string, fallback string) {
		if *value == "" {
			*value = fallback
		}
	}
	fill(&config.UsersFilter, DefaultUsersFilter)
	fill(&config.UserFilter, DefaultUserFilter)
	fill(&config.SudoersFilter, DefaultSudoersFilter)
	fill(&config.Attributes.Name, defaults.Name)
	fill(&config.Attributes.UIDNumber, defaults.UIDNumber)
	fill(&config.Attributes.Modified, defaults.Modified)
	fill(&config.Attributes.Photo, defaults.Photo)
	fill(&config.Attributes.Thumbnail, defaults.Thumbnail)
	fill(&config.Attributes.SudoUser, defaults.SudoUser)

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Provider{source: source, config: config, logger: logger}
}

// ListUsers returns every user identity, in source order.
func (p *Provider) ListUsers(ctx context.Context) ([]identity.User, error) {
	entries, err := p.source.Search(ctx, p.config.UsersFilter, p.config.Attributes.user())
	if err != nil {
		return nil, &ProviderError{Op: "list users", Err: err}
	}
	users := make([]identity.User, 0, len(entries))
	for _, entry := range entries {
		user, err := p.userFromEntry(entry)
		if err != nil {
			return nil, &ProviderError{Op: "list users", Err: err}
		}
		users = append(users, user)
	}
	return users, nil
}

// GetUser returns the user whose name attribute equals name exactly.
// When several entries match, the first one wins. No match yields
// identity.ErrNotFound.
func (p *Provider) GetUser(ctx context.Context, name string) (identity.User, error) {
	filter := fmt.Sprintf(p.config.UserFilter, ldap.EscapeFilter(name))
	entries, err := p.source.Search(ctx, filter, p.config.Attributes.user())
	if err != nil {
		return identity.User{}, &ProviderError{Op: "get user", Err: err}
	}
	for _, entry := range entries {
		user, err := p.userFromEntry(entry)
		if err != nil {
			return identity.User{}, &ProviderError{Op: "get user", Err: err}
		}
		// Servers may match case-insensitively; the tree needs bytes.
		if user.Name == name {
			return user, nil
		}
	}
	return identity.User{}, fmt.Errorf("user %q: %w", name, identity.ErrNotFound)
}

// ListSudoers returns the users allowed to run any command with sudo
// on host, or on the configured host when host is empty. Every
// sudoUser value of every matching rule is included in order, with
// the legacy suffix removed.
func (p *Provider) ListSudoers(ctx context.Context, host string) (identity.SudoerSet, error) {
	if host == "" {
		host = p.config.Hostname
	}
	if host == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, &ProviderError{Op: "list sudoers", Err: err}
		}
		host = hostname
	}

	filter := fmt.Sprintf(p.config.SudoersFilter, ldap.EscapeFilter(host))
	entries, err := p.source.Search(ctx, filter, []string{p.config.Attributes.SudoUser})
	if err != nil {
		return nil, &ProviderError{Op: "list sudoers", Err: err}
	}
	var sudoers identity.SudoerSet
	for _, entry := range entries {
		for _, value := range entry.Values(p.config.Attributes.SudoUser) {
			name := string(value)
			if p.config.SudoUserSuffix != "" {
				name = strings.TrimSuffix(name, p.config.SudoUserSuffix)
			}
			sudoers = append(sudoers, name)
		}
	}
	p.logger.Debug("listed sudoers", "host", host, "rules", len(entries), "users", len(sudoers))
	return sudoers, nil
}

func (p *Provider) userFromEntry(entry Entry) (identity.User, error) {
	attributes := p.config.Attributes
	name, ok := entry.First(attributes.Name)
	if !ok {
		return identity.User{}, fmt.Errorf("entry %q has no %s attribute", entry.DN, attributes.Name)
	}
	uid, ok := entry.First(attributes.UIDNumber)
	if !ok {
		return identity.User{}, fmt.Errorf("entry %q has no %s attribute", entry.DN, attributes.UIDNumber)
	}
	user := identity.User{
		Name:      string(name),
		UIDNumber: string(uid),
	}
	if modified, ok := entry.First(attributes.Modified); ok {
		user.ModifiedAt = identity.ParseTimestamp(string(modified))
	}
	user.Photo, _ = entry.First(attributes.Photo)
	user.Thumbnail, _ = entry.First(attributes.Thumbnail)
	return user, nil
}
