// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package vtree maps paths in the ldbfs tree to virtual nodes and
// answers the three questions a filesystem asks about them: what is
// this path ([Resolver.Attr]), what does this directory contain
// ([Resolver.List]), and what bytes does this file hold
// ([Resolver.Read]).
//
// The tree is:
//
//	/
//	├── users/
//	│   └── <login-name>/
//	│       ├── photo.<ext>       present iff the user has a photo
//	│       └── thumbnail.<ext>   present iff the user has a thumbnail
//	└── sudoers.txt
//
// Nothing is cached. Every resolution queries the [Provider] afresh,
// so the tree always shows the directory's current state. The three
// projections derive from the same [Node] value, so for one provider
// snapshot a listed name always resolves, and a file's reported size
// always equals the number of bytes a full read returns.
package vtree
