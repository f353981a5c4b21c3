// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the ldbfs binaries.
//
// [GitCommit], [GitDirty], [BuildTime] and [Version] are injected with
// -ldflags -X, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/ldbfs/lib/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/ldbfs
//
// They keep their "unknown" / "0.1.0-dev" defaults in development
// builds and tests. [Info] is what --version prints; [Full] adds the
// Go toolchain and platform.
package version
