// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound reports that a record or payload does not exist.
var ErrNotFound = errors.New("not found")

// User is one directory-service identity.
type User struct {
	// Name is the login name, used verbatim as a path segment.
	Name string

	// UIDNumber keys the user in the icon configuration store. It is
	// carried as the directory returned it and is not validated.
	UIDNumber string

	// ModifiedAt is the last-modified time in Unix seconds, or 0 when
	// the directory timestamp was missing or malformed.
	ModifiedAt int64

	// Photo and Thumbnail are raw image payloads. Nil or empty means
	// the attribute is absent.
	Photo     []byte
	Thumbnail []byte
}

// HasPhoto reports whether the user carries profile photo bytes.
func (u User) HasPhoto() bool { return len(u.Photo) > 0 }

// HasThumbnail reports whether the user carries thumbnail bytes.
func (u User) HasThumbnail() bool { return len(u.Thumbnail) > 0 }

// PhotoFilename returns "photo.<ext>" for the user's photo. It fails
// with ErrNotFound when there is no photo and ErrUnknownFormat when
// the payload cannot be sniffed.
func PhotoFilename(u User) (string, error) {
	if !u.HasPhoto() {
		return "", ErrNotFound
	}
	extension, err := PhotoExtension(u.Photo)
	if err != nil {
		return "", err
	}
	return "photo." + extension, nil
}

// ThumbnailFilename returns "thumbnail.<ext>" for the user's
// thumbnail, with the same failure modes as PhotoFilename.
func ThumbnailFilename(u User) (string, error) {
	if !u.HasThumbnail() {
		return "", ErrNotFound
	}
	extension, err := ThumbnailExtension(u.Thumbnail)
	if err != nil {
		return "", err
	}
	return "thumbnail." + extension, nil
}

// ValidSegment reports whether name can appear as a single path
// segment. Names that fail this check are opaque: they can never be
// resolved, so they must not be listed either.
func ValidSegment(name string) bool {
	switch name {
	case "", ".", "..":
		return false
	}
	return !strings.ContainsAny(name, "/\x00")
}

// timestampLayouts are the generalized-time shapes seen in SSSD
// caches and LDAP servers. Fractional seconds after the seconds field
// are accepted by time.Parse without a layout element.
var timestampLayouts = []string{
	"20060102150405Z0700",
	"20060102150405Z07:00",
}

// ParseTimestamp converts a directory timestamp such as
// "20240131093000Z" to Unix seconds. Malformed input yields 0.
func ParseTimestamp(value string) int64 {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Unix()
		}
	}
	return 0
}

// SudoerSet is the ordered list of usernames allowed to run any
// command with sudo on one host. Duplicates are preserved.
type SudoerSet []string

// Render returns the sudoers.txt payload: each name terminated by a
// newline, in order.
func (s SudoerSet) Render() []byte {
	size := 0
	for _, name := range s {
		size += len(name) + 1
	}
	rendered := make([]byte, 0, size)
	for _, name := range s {
		rendered = append(rendered, name...)
		rendered = append(rendered, '\n')
	}
	return rendered
}
