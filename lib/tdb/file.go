// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tdb

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/ldbfs/lib/clock"
)

// DefaultLockTimeout bounds lock acquisition when ReadOptions leaves
// LockTimeout unset.
const DefaultLockTimeout = 5 * time.Second

// lockRetryInterval is the pause between non-blocking lock attempts.
const lockRetryInterval = 10 * time.Millisecond

// ErrLockTimeout reports that a writer held the database for longer
// than the configured lock timeout.
var ErrLockTimeout = errors.New("tdb: timed out waiting for read lock")

// ReadOptions configures View.
type ReadOptions struct {
	// LockTimeout bounds how long View waits for writers to release
	// the database. Zero uses DefaultLockTimeout.
	LockTimeout time.Duration

	// Clock paces lock retries. Nil uses clock.Real().
	Clock clock.Clock
}

// View calls fn with a consistent view of the TDB file at path.
//
// The file is opened read-only and never modified. The read locks are
// held until fn returns, and the Database must not be used after
// that. Only the header, the hash table and the records fn's
// traversal reaches are read from disk. Locks are
// open-file-description locks, so concurrent View calls in one
// process do not release each other's locks.
func View(path string, options ReadOptions, fn func(*Database) error) error {
	if options.LockTimeout <= 0 {
		options.LockTimeout = DefaultLockTimeout
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(file, header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %s is shorter than the header", ErrCorrupt, path)
		}
		return fmt.Errorf("reading header of %s: %w", path, err)
	}
	_, hashSize, err := parseHeader(header)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	deadline := options.Clock.Now().Add(options.LockTimeout)
	regions := []lockRegion{
		{start: TransactionLockOffset, length: 1},
		{start: HeaderSize, length: 4 * int64(hashSize)},
	}
	for _, region := range regions {
		if err := readLock(file, region, options.Clock, deadline); err != nil {
			return fmt.Errorf("locking %s: %w", path, err)
		}
	}
	defer func() {
		for _, region := range regions {
			_ = setLock(file, region, unix.F_UNLCK)
		}
	}()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	database, err := NewReader(file, info.Size())
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return fn(database)
}

type lockRegion struct {
	start  int64
	length int64
}

// readLock retries a non-blocking shared lock until it succeeds or
// the deadline passes.
func readLock(file *os.File, region lockRegion, c clock.Clock, deadline time.Time) error {
	for {
		err := setLock(file, region, unix.F_RDLCK)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EAGAIN) && !errors.Is(err, unix.EACCES) && !errors.Is(err, unix.EINTR) {
			return err
		}
		if !c.Now().Before(deadline) {
			return ErrLockTimeout
		}
		c.Sleep(lockRetryInterval)
	}
}

func setLock(file *os.File, region lockRegion, lockType int16) error {
	lock := unix.Flock_t{
		Type:   lockType,
		Whence: io.SeekStart,
		Start:  region.start,
		Len:    region.length,
	}
	return unix.FcntlFlock(file.Fd(), unix.F_OFD_SETLK, &lock)
}
