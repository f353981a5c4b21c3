// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fuse serves a [vtree.Resolver] as a read-only FUSE
// filesystem.
//
// [Operations] is the path-level adapter: attribute query, directory
// listing and data read, each returning a syscall.Errno. Every
// failure, whether a missing path, a directory outage or an
// unrecognized image, becomes ENOENT; directory failures are logged at
// warn level. [Mount] builds go-fuse inodes on top of Operations. The
// inodes carry only their path and re-resolve on every callback, and
// kernel entry, attribute and negative caching are disabled, so the
// mount always reflects the directory's current contents.
package fuse
