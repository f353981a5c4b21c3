// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/ldbfs/lib/sqlitepool"
)

func queryInt(t *testing.T, conn *sqlite.Conn, query string) int64 {
	t.Helper()
	var value int64
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			value = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	return value
}

func TestPragmas(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{BusyTimeout: 1500 * time.Millisecond})

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	var journalMode string
	err = sqlitex.Execute(conn, "PRAGMA journal_mode", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			journalMode = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q, want wal", journalMode)
	}
	if got := queryInt(t, conn, "PRAGMA synchronous"); got != 1 {
		t.Errorf("synchronous = %d, want 1 (NORMAL)", got)
	}
	if got := queryInt(t, conn, "PRAGMA busy_timeout"); got != 1500 {
		t.Errorf("busy_timeout = %d, want 1500", got)
	}
}

func TestOnConnectAndConcurrentReads(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, `CREATE TABLE IF NOT EXISTS numbers (value INTEGER NOT NULL);`, nil)
		},
	})

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take for setup: %v", err)
	}
	if err := sqlitex.ExecuteScript(conn, `INSERT INTO numbers (value) VALUES (1), (2), (3), (4), (5);`, nil); err != nil {
		t.Fatalf("INSERT: %v", err)
	}
	pool.Put(conn)

	const readers = 8
	var waitGroup sync.WaitGroup
	failures := make(chan error, readers)
	for range readers {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			conn, err := pool.Take(context.Background())
			if err != nil {
				failures <- err
				return
			}
			defer pool.Put(conn)

			var sum int64
			err = sqlitex.Execute(conn, "SELECT value FROM numbers", &sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					sum += stmt.ColumnInt64(0)
					return nil
				},
			})
			if err != nil {
				failures <- err
				return
			}
			if sum != 15 {
				failures <- fmt.Errorf("sum = %d, want 15", sum)
			}
		}()
	}
	waitGroup.Wait()
	close(failures)
	for err := range failures {
		t.Error(err)
	}
}

func TestReadOnlyLeavesFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreign.db")
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		t.Fatalf("OpenConn: %v", err)
	}
	if err := sqlitex.ExecuteScript(conn, `CREATE TABLE numbers (value INTEGER NOT NULL); INSERT INTO numbers (value) VALUES (7);`, nil); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close setup conn: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{Path: path, ReadOnly: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	conn, err = pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if got := queryInt(t, conn, "SELECT value FROM numbers"); got != 7 {
		t.Errorf("value = %d, want 7", got)
	}
	if got := queryInt(t, conn, "PRAGMA query_only"); got != 1 {
		t.Errorf("query_only = %d, want 1", got)
	}
	if err := sqlitex.ExecuteTransient(conn, "INSERT INTO numbers (value) VALUES (8)", nil); err == nil {
		t.Error("INSERT succeeded on a read-only pool")
	}
	pool.Put(conn)
	if err := pool.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile after: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("read-only pool modified the database file")
	}
	if _, err := os.Stat(path + "-wal"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("read-only pool left a WAL file (stat error %v)", err)
	}
}

func TestReadOnlyMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	pool, err := sqlitepool.Open(sqlitepool.Config{Path: path, ReadOnly: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	if conn, err := pool.Take(context.Background()); err == nil {
		pool.Put(conn)
		t.Fatal("Take succeeded for a missing read-only database")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("read-only pool created %s (stat error %v)", path, err)
	}
}

func TestEmptyPathRejected(t *testing.T) {
	if _, err := sqlitepool.Open(sqlitepool.Config{}); err == nil {
		t.Fatal("expected error for empty Path")
	}
}

func TestTakeHonorsCancellation(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{PoolSize: 1})

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pool.Take(ctx); err == nil {
		t.Fatal("Take succeeded on an exhausted pool with a cancelled context")
	}
}

func openTestPool(t *testing.T, cfg sqlitepool.Config) *sqlitepool.Pool {
	t.Helper()
	cfg.Path = filepath.Join(t.TempDir(), "snapshot.db")
	pool, err := sqlitepool.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return pool
}
