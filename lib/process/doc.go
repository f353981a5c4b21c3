// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds entrypoint helpers shared by the ldbfs
// binaries. [Fatal] reports an error from run() on stderr, where it is
// visible even when the structured logger was never built, and exits.
package process
