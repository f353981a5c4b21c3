// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/zeebo/blake3"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/ldbfs/lib/codec"
	"github.com/bureau-foundation/ldbfs/lib/sqlitepool"
)

// DefaultExportFilter selects the entries a mount needs: user
// identities and sudo rules.
const DefaultExportFilter = "(|(objectCategory=user)(objectClass=user)(objectClass=sudoRule))"

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS entries (
	dn         TEXT PRIMARY KEY,
	digest     BLOB NOT NULL,
	attributes BLOB NOT NULL
) WITHOUT ROWID;
`

// entryDomainKey keys the BLAKE3 digest of an encoded attribute map.
// Changing it forces every row to be rewritten on the next export.
var entryDomainKey = [32]byte{
	'l', 'd', 'b', 'f', 's', '.', 'd', 'i', 'r', 'e', 'c', 't', 'o', 'r', 'y', '.',
	'e', 'n', 't', 'r', 'y', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

func entryDigest(encoded []byte) []byte {
	hasher, err := blake3.NewKeyed(entryDomainKey[:])
	if err != nil {
		panic("directory: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(encoded)
	return hasher.Sum(nil)
}

// OpenSnapshotPool opens (creating if needed) a snapshot database and
// ensures its schema exists. It is the writer's side; OpenSnapshot
// serves an existing file read-only.
func OpenSnapshotPool(path string, logger *slog.Logger) (*sqlitepool.Pool, error) {
	return sqlitepool.Open(sqlitepool.Config{
		Path:     path,
		PoolSize: 4,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, snapshotSchema, nil)
		},
	})
}

// SnapshotSource searches a SQLite snapshot written by Export.
type SnapshotSource struct {
	pool *sqlitepool.Pool
}

// OpenSnapshot opens the snapshot at path read-only. The file is never
// written; Ping reports whether it actually holds a snapshot.
func OpenSnapshot(path string, logger *slog.Logger) (*SnapshotSource, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     path,
		PoolSize: 4,
		Logger:   logger,
		ReadOnly: true,
	})
	if err != nil {
		return nil, err
	}
	return &SnapshotSource{pool: pool}, nil
}

// Search implements Source by scanning every row in DN order.
func (s *SnapshotSource) Search(ctx context.Context, filter string, attributes []string) ([]Entry, error) {
	compiled, err := CompileFilter(filter)
	if err != nil {
		return nil, err
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot source: %w", err)
	}
	defer s.pool.Put(conn)

	var entries []Entry
	err = sqlitex.Execute(conn, "SELECT dn, attributes FROM entries ORDER BY dn", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			entry := NewEntry(stmt.ColumnText(0))
			encoded := make([]byte, stmt.ColumnLen(1))
			stmt.ColumnBytes(1, encoded)
			if err := codec.Unmarshal(encoded, &entry.Attributes); err != nil {
				return fmt.Errorf("decoding %q: %w", entry.DN, err)
			}
			if compiled.Match(entry) {
				entries = append(entries, entry.Project(attributes))
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot source: searching %q: %w", filter, err)
	}
	return entries, nil
}

// Ping checks that the database has an entries table. A SQLite file
// without one is some other application's database and fails with
// ErrUnknownDatabase.
func (s *SnapshotSource) Ping(ctx context.Context) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("snapshot source: %w", err)
	}
	defer s.pool.Put(conn)

	found := false
	err = sqlitex.Execute(conn, "SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'entries'", &sqlitex.ExecOptions{
		ResultFunc: func(*sqlite.Stmt) error {
			found = true
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("snapshot source: %w", err)
	}
	if !found {
		return fmt.Errorf("%w: SQLite database has no entries table", ErrUnknownDatabase)
	}
	if err := sqlitex.Execute(conn, "SELECT count(*) FROM entries", nil); err != nil {
		return fmt.Errorf("snapshot source: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *SnapshotSource) Close() error { return s.pool.Close() }

// Dump calls fn with every row's DN and encoded attribute map, in DN
// order. The attributes slice is only valid during the call.
func Dump(ctx context.Context, pool *sqlitepool.Pool, fn func(dn string, attributes []byte) error) error {
	conn, err := pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("dump: %w", err)
	}
	defer pool.Put(conn)

	var buffer []byte
	return sqlitex.Execute(conn, "SELECT dn, attributes FROM entries ORDER BY dn", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			buffer = slices.Grow(buffer[:0], stmt.ColumnLen(1))[:stmt.ColumnLen(1)]
			stmt.ColumnBytes(1, buffer)
			return fn(stmt.ColumnText(0), buffer)
		},
	})
}

// ExportResult counts what one Export changed.
type ExportResult struct {
	Inserted  int
	Updated   int
	Unchanged int
	Deleted   int
}

// Export copies the entries of source that match filter into the
// snapshot behind pool, in one transaction. Rows whose digest has not
// changed are left alone and rows for entries that no longer match
// are deleted, so running Export twice in a row writes nothing the
// second time. An empty filter uses DefaultExportFilter.
func Export(ctx context.Context, source Source, pool *sqlitepool.Pool, filter string) (result ExportResult, err error) {
	if filter == "" {
		filter = DefaultExportFilter
	}
	entries, err := source.Search(ctx, filter, nil)
	if err != nil {
		return ExportResult{}, fmt.Errorf("export: %w", err)
	}

	conn, err := pool.Take(ctx)
	if err != nil {
		return ExportResult{}, fmt.Errorf("export: %w", err)
	}
	defer pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return ExportResult{}, fmt.Errorf("export: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	existing := make(map[string][]byte)
	err = sqlitex.Execute(conn, "SELECT dn, digest FROM entries", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			digest := make([]byte, stmt.ColumnLen(1))
			stmt.ColumnBytes(1, digest)
			existing[stmt.ColumnText(0)] = digest
			return nil
		},
	})
	if err != nil {
		return ExportResult{}, fmt.Errorf("export: reading digests: %w", err)
	}

	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if seen[entry.DN] {
			continue
		}
		seen[entry.DN] = true

		encoded, err := codec.Marshal(entry.Attributes)
		if err != nil {
			return ExportResult{}, fmt.Errorf("export: encoding %q: %w", entry.DN, err)
		}
		digest := entryDigest(encoded)

		previous, found := existing[entry.DN]
		switch {
		case found && bytes.Equal(previous, digest):
			result.Unchanged++
			continue
		case found:
			result.Updated++
		default:
			result.Inserted++
		}
		err = sqlitex.Execute(conn,
			"INSERT INTO entries (dn, digest, attributes) VALUES (?, ?, ?) "+
				"ON CONFLICT(dn) DO UPDATE SET digest = excluded.digest, attributes = excluded.attributes",
			&sqlitex.ExecOptions{Args: []any{entry.DN, digest, encoded}})
		if err != nil {
			return ExportResult{}, fmt.Errorf("export: writing %q: %w", entry.DN, err)
		}
	}

	for dn := range existing {
		if seen[dn] {
			continue
		}
		if err := sqlitex.Execute(conn, "DELETE FROM entries WHERE dn = ?", &sqlitex.ExecOptions{Args: []any{dn}}); err != nil {
			return ExportResult{}, fmt.Errorf("export: deleting %q: %w", dn, err)
		}
		result.Deleted++
	}
	return result, nil
}
