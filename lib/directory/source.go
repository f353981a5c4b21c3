// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/bureau-foundation/ldbfs/lib/clock"
)

// Source answers directory searches.
//
// Implementations hold no mutable state between calls and are safe
// for concurrent use.
type Source interface {
	// Search returns the entries matching filter, restricted to the
	// named attributes (nil means all), in backend order.
	Search(ctx context.Context, filter string, attributes []string) ([]Entry, error)

	// Ping checks that the backend is reachable and readable.
	Ping(ctx context.Context) error

	// Close releases resources held by the source.
	Close() error
}

// ErrUnknownDatabase reports a location that is neither a supported
// URL nor a recognized database file.
var ErrUnknownDatabase = errors.New("directory: unrecognized database")

// Options configures Open. Fields that do not apply to the selected
// backend are ignored.
type Options struct {
	// LockTimeout bounds TDB read-lock acquisition for LDB files.
	LockTimeout time.Duration

	// Clock paces LDB lock retries. Nil uses the real clock.
	Clock clock.Clock

	// LDAP configures LDAP URLs.
	LDAP LDAPOptions

	// Logger receives backend diagnostics. Nil discards them.
	Logger *slog.Logger
}

// File signatures used to pick a backend for local paths.
var (
	tdbSignature    = []byte("TDB file")
	sqliteSignature = []byte("SQLite format 3\x00")
)

// Open selects a backend for location, opens it and pings it.
//
// ldap://, ldaps:// and ldapi:// URLs open an [LDAPSource]. Anything
// else is a filesystem path (optionally a file:// URL) whose leading
// bytes select [LDBSource] or [SnapshotSource].
func Open(ctx context.Context, location string, options Options) (Source, error) {
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}

	path := location
	if scheme, _, found := strings.Cut(location, "://"); found {
		switch strings.ToLower(scheme) {
		case "ldap", "ldaps", "ldapi":
			source, err := OpenLDAP(location, options.LDAP)
			if err != nil {
				return nil, err
			}
			return pinged(ctx, source)
		case "file":
			parsed, err := url.Parse(location)
			if err != nil {
				return nil, fmt.Errorf("directory: parsing %q: %w", location, err)
			}
			path = parsed.Path
		default:
			return nil, fmt.Errorf("%w: scheme %q", ErrUnknownDatabase, scheme)
		}
	}

	signature, err := readSignature(path)
	if err != nil {
		return nil, fmt.Errorf("directory: opening %s: %w", path, err)
	}

	switch {
	case bytes.HasPrefix(signature, tdbSignature):
		return pinged(ctx, OpenLDB(path, LDBOptions{
			LockTimeout: options.LockTimeout,
			Clock:       options.Clock,
			Logger:      options.Logger,
		}))
	case bytes.HasPrefix(signature, sqliteSignature):
		source, err := OpenSnapshot(path, options.Logger)
		if err != nil {
			return nil, err
		}
		return pinged(ctx, source)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownDatabase, path)
}

func readSignature(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	signature := make([]byte, len(sqliteSignature))
	count, err := io.ReadFull(file, signature)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return signature[:count], nil
}

func pinged(ctx context.Context, source Source) (Source, error) {
	if err := source.Ping(ctx); err != nil {
		source.Close()
		return nil, err
	}
	return source, nil
}
