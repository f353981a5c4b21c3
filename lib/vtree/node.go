// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vtree

import (
	"strings"

	"github.com/bureau-foundation/ldbfs/lib/identity"
)

// Kind classifies a resolved path.
type Kind int

const (
	NotFound Kind = iota
	Root
	UsersDir
	UserDir
	PhotoFile
	ThumbnailFile
	SudoersFile
)

var kindNames = [...]string{
	NotFound:      "not-found",
	Root:          "root",
	UsersDir:      "users-dir",
	UserDir:       "user-dir",
	PhotoFile:     "photo",
	ThumbnailFile: "thumbnail",
	SudoersFile:   "sudoers",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// IsDir reports whether nodes of this kind are directories.
func (k Kind) IsDir() bool {
	return k == Root || k == UsersDir || k == UserDir
}

// Node is a resolved path. User is set for UserDir, PhotoFile and
// ThumbnailFile and zero otherwise.
type Node struct {
	Kind Kind
	User identity.User
}

// Top-level names.
const (
	UsersName   = "users"
	SudoersName = "sudoers.txt"
)

// SplitPath splits path on "/" and drops empty segments, so "", "/"
// and "///" all name the root.
func SplitPath(path string) []string {
	var segments []string
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}
