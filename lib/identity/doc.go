// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity holds the typed directory entities served by the
// ldbfs tree: [User] records and the [SudoerSet] for a host.
//
// Values are built by the directory provider on every query and are
// never mutated afterwards. The package also owns the naming rules
// derived from those values: image format sniffing for profile
// photos and thumbnails, the resulting file names, and the parsing of
// directory-service timestamps.
//
// Three error values describe why something cannot be named:
// [ErrNotFound] for an absent payload or record, and
// [ErrUnknownFormat] for a payload with no recognized image
// signature. Callers at the filesystem boundary treat both as
// "no such entry".
package identity
