// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"bytes"
	"errors"
	"fmt"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/go-ldap/ldap/v3"
)

// ErrUnsupportedFilter reports a filter component that in-process
// evaluation cannot answer, such as ordering or approximate matches.
var ErrUnsupportedFilter = errors.New("directory: unsupported filter")

// Filter is a compiled LDAP filter that can be evaluated against
// entries without a server.
type Filter struct {
	text string
	root *ber.Packet
}

// CompileFilter parses an RFC 4515 filter string. The empty string
// compiles to a filter that matches every entry.
//
// Equality compares raw bytes: no matching rules or case folding are
// applied to values. Attribute names are case-insensitive.
func CompileFilter(text string) (*Filter, error) {
	if text == "" {
		return &Filter{}, nil
	}
	root, err := ldap.CompileFilter(text)
	if err != nil {
		return nil, fmt.Errorf("directory: compiling filter %q: %w", text, err)
	}
	if err := checkSupported(root); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnsupportedFilter, text, err)
	}
	return &Filter{text: text, root: root}, nil
}

// String returns the filter text as compiled.
func (f *Filter) String() string { return f.text }

// Match reports whether entry satisfies the filter.
func (f *Filter) Match(entry Entry) bool {
	if f.root == nil {
		return true
	}
	return match(f.root, entry)
}

func checkSupported(packet *ber.Packet) error {
	switch packet.Tag {
	case ldap.FilterAnd, ldap.FilterOr, ldap.FilterNot:
		for _, child := range packet.Children {
			if err := checkSupported(child); err != nil {
				return err
			}
		}
		return nil
	case ldap.FilterEqualityMatch, ldap.FilterPresent, ldap.FilterSubstrings:
		return nil
	}
	return fmt.Errorf("%s", ldap.FilterMap[uint64(packet.Tag)])
}

func match(packet *ber.Packet, entry Entry) bool {
	switch packet.Tag {
	case ldap.FilterAnd:
		for _, child := range packet.Children {
			if !match(child, entry) {
				return false
			}
		}
		return true
	case ldap.FilterOr:
		for _, child := range packet.Children {
			if match(child, entry) {
				return true
			}
		}
		return false
	case ldap.FilterNot:
		return len(packet.Children) == 1 && !match(packet.Children[0], entry)
	case ldap.FilterPresent:
		return len(entry.Values(string(packetBytes(packet)))) > 0
	case ldap.FilterEqualityMatch:
		if len(packet.Children) != 2 {
			return false
		}
		attribute := string(packetBytes(packet.Children[0]))
		want := packetBytes(packet.Children[1])
		for _, value := range entry.Values(attribute) {
			if bytes.Equal(value, want) {
				return true
			}
		}
		return false
	case ldap.FilterSubstrings:
		if len(packet.Children) != 2 {
			return false
		}
		attribute := string(packetBytes(packet.Children[0]))
		for _, value := range entry.Values(attribute) {
			if matchSubstrings(value, packet.Children[1].Children) {
				return true
			}
		}
		return false
	}
	return false
}

// matchSubstrings checks initial, any and final components in order
// without letting them overlap.
func matchSubstrings(value []byte, parts []*ber.Packet) bool {
	rest := value
	for _, part := range parts {
		piece := packetBytes(part)
		switch part.Tag {
		case ldap.FilterSubstringsInitial:
			if !bytes.HasPrefix(rest, piece) {
				return false
			}
			rest = rest[len(piece):]
		case ldap.FilterSubstringsAny:
			index := bytes.Index(rest, piece)
			if index < 0 {
				return false
			}
			rest = rest[index+len(piece):]
		case ldap.FilterSubstringsFinal:
			if !bytes.HasSuffix(rest, piece) {
				return false
			}
			rest = rest[len(rest):]
		default:
			return false
		}
	}
	return true
}

func packetBytes(packet *ber.Packet) []byte {
	if packet.Data == nil {
		return nil
	}
	return packet.Data.Bytes()
}
