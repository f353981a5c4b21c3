// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// DefaultLDAPTimeout bounds each LDAP operation when LDAPOptions
// leaves Timeout unset.
const DefaultLDAPTimeout = 10 * time.Second

// LDAPOptions configures an LDAPSource.
type LDAPOptions struct {
	// BaseDN is the subtree every search starts from.
	BaseDN string

	// BindDN and BindPasswordFile configure a simple bind. An empty
	// BindDN searches anonymously.
	BindDN           string
	BindPasswordFile string

	// Timeout bounds dialing and each request.
	Timeout time.Duration
}

// LDAPSource forwards searches to an LDAP server. Each search dials a
// fresh connection so concurrent callers share nothing.
type LDAPSource struct {
	url      string
	options  LDAPOptions
	password string
}

// OpenLDAP returns a source for the server at url. The bind password
// file, if configured, is read once here.
func OpenLDAP(url string, options LDAPOptions) (*LDAPSource, error) {
	if options.Timeout <= 0 {
		options.Timeout = DefaultLDAPTimeout
	}
	source := &LDAPSource{url: url, options: options}
	if options.BindPasswordFile != "" {
		data, err := os.ReadFile(options.BindPasswordFile)
		if err != nil {
			return nil, fmt.Errorf("ldap source: reading bind password: %w", err)
		}
		source.password = strings.TrimRight(string(data), "\r\n")
	}
	return source, nil
}

// connect dials and binds. The connection is closed when ctx ends so
// a cancelled caller never waits out the full timeout.
func (s *LDAPSource) connect(ctx context.Context) (*ldap.Conn, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	timeout := s.options.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	conn, err := ldap.DialURL(s.url, ldap.DialWithDialer(&net.Dialer{Timeout: timeout}))
	if err != nil {
		return nil, nil, fmt.Errorf("ldap source: dialing %s: %w", s.url, err)
	}
	conn.SetTimeout(timeout)
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	release := func() {
		stop()
		conn.Close()
	}

	if s.options.BindDN != "" {
		if err := conn.Bind(s.options.BindDN, s.password); err != nil {
			release()
			return nil, nil, fmt.Errorf("ldap source: binding as %s: %w", s.options.BindDN, err)
		}
	}
	return conn, release, nil
}

// Search implements Source.
func (s *LDAPSource) Search(ctx context.Context, filter string, attributes []string) ([]Entry, error) {
	if filter == "" {
		filter = "(objectClass=*)"
	}
	conn, release, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	request := ldap.NewSearchRequest(
		s.options.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, // no size limit
		int(s.options.Timeout/time.Second),
		false,
		filter,
		attributes,
		nil,
	)
	result, err := conn.Search(request)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("ldap source: searching %q: %w", filter, err)
	}

	entries := make([]Entry, 0, len(result.Entries))
	for _, found := range result.Entries {
		entries = append(entries, entryFromLDAP(found))
	}
	return entries, nil
}

// entryFromLDAP converts one search result. Attribute names that
// differ only in case are merged. Raw bytes are kept so binary values
// such as jpegPhoto survive; Values is used only when ByteValues is
// empty. Attributes without values are dropped.
func entryFromLDAP(found *ldap.Entry) Entry {
	entry := NewEntry(found.DN)
	for _, attribute := range found.Attributes {
		values := attribute.ByteValues
		if len(values) == 0 {
			for _, value := range attribute.Values {
				values = append(values, []byte(value))
			}
		}
		if len(values) > 0 {
			entry.Add(attribute.Name, values...)
		}
	}
	return entry
}

// Ping dials and binds.
func (s *LDAPSource) Ping(ctx context.Context) error {
	_, release, err := s.connect(ctx)
	if err != nil {
		return err
	}
	release()
	return nil
}

// Close is a no-op: connections live for one search.
func (s *LDAPSource) Close() error { return nil }
