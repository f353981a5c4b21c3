// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireSend] and [RequireClosed] wrap the
// select-with-timeout pattern so tests that drive a fake clock still
// fail instead of hanging when an expected event never arrives. They
// are the only wall-clock waits in the test suite.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
