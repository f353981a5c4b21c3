// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ldb decodes LDB packed messages, the record format LDB
// stores as TDB values.
//
// A packed message is a distinguished name plus a list of
// multi-valued attributes. Two layouts share the same body and differ
// only in whether the DN is present:
//
//	format (u32 LE) | element count (u32 LE) | DN NUL |
//	  { name NUL | value count (u32 LE) | { length (u32 LE) | bytes | NUL } }
//
// The later "v2" layout used by Samba AD databases is detected and
// rejected with [ErrUnsupportedFormat]; SSSD caches are written in
// the layout above.
package ldb
