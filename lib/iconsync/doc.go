// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package iconsync points each user's login icon at their photo in
// the mounted ldbfs tree.
//
// A [Job] is one reconciliation pass. For every user with a
// recognizable photo it reads the icon path the [IconStore] currently
// holds and compares that file's bytes with the photo. The store is
// updated to <mountpoint>/users/<name>/photo.<ext> only when no icon
// is set, the icon file is gone, or its content differs. A second
// pass over unchanged data therefore writes nothing.
//
// A [Scheduler] runs a Job on a fixed interval. [AccountsStore] is
// the production IconStore, backed by AccountsService on the D-Bus
// system bus.
package iconsync
