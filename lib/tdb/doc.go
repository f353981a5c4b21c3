// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tdb reads Samba trivial database (TDB) files, the storage
// layer underneath LDB databases such as the SSSD cache.
//
// Only reading is supported. [View] gives a callback a consistent view
// of a live database: it acquires open-file-description read locks on
// the transaction lock byte and on the whole hash table, so writers
// using the standard fcntl locking protocol are held off until the
// callback returns. Lock acquisition never waits longer than
// [ReadOptions].LockTimeout. [Database.Traverse] walks every live
// record, reading each with pread rather than copying the file.
// [Parse] wraps an in-memory image and [NewReader] any io.ReaderAt.
//
// # File layout
//
// A 168-byte header (magic "TDB file\n", version, hash size, ...) is
// followed by the freelist head and hash_size bucket heads, each a
// 32-bit offset. Every bucket is a singly linked chain of records:
//
//	next | rec_len | key_len | data_len | full_hash | magic | key | data
//
// Integers are in the byte order of the host that created the file;
// files from a host of the other byte order are decoded transparently.
package tdb
