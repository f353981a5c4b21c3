// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import "strings"

// Entry is one untyped directory record. Attribute names are matched
// case-insensitively, as in LDAP.
type Entry struct {
	DN string

	// Attributes maps lowercased attribute names to their values.
	// Use Add to populate it so keys stay normalized.
	Attributes map[string][][]byte
}

// NewEntry returns an empty entry for dn.
func NewEntry(dn string) Entry {
	return Entry{DN: dn, Attributes: make(map[string][][]byte)}
}

// Add appends values to the named attribute.
func (e *Entry) Add(name string, values ...[]byte) {
	if e.Attributes == nil {
		e.Attributes = make(map[string][][]byte)
	}
	key := strings.ToLower(name)
	e.Attributes[key] = append(e.Attributes[key], values...)
}

// Values returns every value of the named attribute.
func (e Entry) Values(name string) [][]byte {
	return e.Attributes[strings.ToLower(name)]
}

// First returns the first value of the named attribute.
func (e Entry) First(name string) ([]byte, bool) {
	values := e.Values(name)
	if len(values) == 0 {
		return nil, false
	}
	return values[0], true
}

// Project returns a copy of e restricted to the named attributes. A
// nil list keeps everything.
func (e Entry) Project(attributes []string) Entry {
	if attributes == nil {
		return e
	}
	projected := NewEntry(e.DN)
	for _, name := range attributes {
		if values := e.Values(name); len(values) > 0 {
			projected.Attributes[strings.ToLower(name)] = values
		}
	}
	return projected
}
