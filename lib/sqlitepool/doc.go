// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens pools of SQLite connections for directory
// snapshots.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool and applies the
// same pragmas to every connection:
//
//   - journal_mode=WAL, so the mount keeps reading while ldbfs-export
//     rewrites rows.
//   - synchronous=NORMAL: a snapshot can always be regenerated from
//     the directory, so surviving a process crash is enough.
//   - busy_timeout: bounded wait for the writer lock, from
//     Config.BusyTimeout.
//   - temp_store=MEMORY.
//
// Callers [Pool.Take] a connection, use it from one goroutine, and
// [Pool.Put] it back:
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
package sqlitepool
