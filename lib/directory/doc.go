// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package directory reads identity records from a directory database
// and converts them into [identity] values.
//
// The package has two layers. A [Source] answers LDAP-style searches
// with untyped [Entry] records; three backends exist:
//
//   - [LDBSource] reads an LDB file such as an SSSD cache
//     (/var/lib/sss/db/cache_<domain>.ldb), taking TDB read locks for
//     a consistent snapshot and evaluating the filter in-process.
//   - [LDAPSource] forwards searches to an LDAP server.
//   - [SnapshotSource] reads a SQLite snapshot written by [Export].
//
// [Open] picks the backend from a location string. A [Provider] sits
// on top of any Source and is the only place untyped entries become
// typed users and sudoer lists. Nothing in this package caches: every
// Provider call runs a fresh search.
//
// Filters are LDAP filter strings (RFC 4515) on every backend. The
// file-backed sources support AND, OR, NOT, equality, presence and
// substring filters; see [CompileFilter].
package directory
