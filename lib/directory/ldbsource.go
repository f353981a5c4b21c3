// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/ldbfs/lib/clock"
	"github.com/bureau-foundation/ldbfs/lib/ldb"
	"github.com/bureau-foundation/ldbfs/lib/tdb"
)

// LDBOptions configures an LDBSource.
type LDBOptions struct {
	// LockTimeout bounds read-lock acquisition. Zero uses
	// tdb.DefaultLockTimeout.
	LockTimeout time.Duration

	// Clock paces lock retries. Nil uses the real clock.
	Clock clock.Clock

	// Logger receives per-record decode warnings. Nil discards them.
	Logger *slog.Logger
}

// LDBSource searches an LDB file. Every search opens the file, takes
// read locks, walks the records and releases the locks, so concurrent
// writers (sssd) are blocked for the duration of one traversal only.
// Records are read as the traversal reaches them; the file is never
// copied whole.
type LDBSource struct {
	path    string
	options LDBOptions
	logger  *slog.Logger
}

// OpenLDB returns a source for the LDB file at path. The file is not
// touched until the first Search or Ping.
func OpenLDB(path string, options LDBOptions) *LDBSource {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LDBSource{path: path, options: options, logger: logger}
}

// dnKeyPrefix marks TDB keys holding LDB messages. Other keys (GUID
// index entries, sequence counters) are skipped.
var dnKeyPrefix = []byte("DN=")

func (s *LDBSource) view(fn func(*tdb.Database) error) error {
	err := tdb.View(s.path, tdb.ReadOptions{
		LockTimeout: s.options.LockTimeout,
		Clock:       s.options.Clock,
	}, fn)
	if err != nil {
		return fmt.Errorf("ldb source: reading %s: %w", s.path, err)
	}
	return nil
}

// Search implements Source.
func (s *LDBSource) Search(ctx context.Context, filter string, attributes []string) ([]Entry, error) {
	compiled, err := CompileFilter(filter)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	visit := func(key, value []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !bytes.HasPrefix(key, dnKeyPrefix) {
			return nil
		}
		message, err := ldb.Unpack(value)
		if err != nil {
			return fmt.Errorf("record %q: %w", bytes.TrimRight(key, "\x00"), err)
		}
		if message.Special() {
			return nil
		}
		entry := entryFromMessage(message)
		if compiled.Match(entry) {
			entries = append(entries, entry.Project(attributes))
		}
		return nil
	}
	err = s.view(func(database *tdb.Database) error {
		return database.Traverse(visit)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("ldb search",
		"path", s.path,
		"filter", filter,
		"matches", len(entries),
	)
	return entries, nil
}

func entryFromMessage(message ldb.Message) Entry {
	entry := NewEntry(message.DN)
	for _, element := range message.Elements {
		entry.Add(element.Name, element.Values...)
	}
	return entry
}

// Ping takes the read locks and parses the database header.
func (s *LDBSource) Ping(ctx context.Context) error {
	return s.view(func(*tdb.Database) error { return nil })
}

// Close is a no-op: no descriptors are held between searches.
func (s *LDBSource) Close() error { return nil }
