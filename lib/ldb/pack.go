// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ldb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Packing format markers, stored in the first four bytes.
const (
	FormatNoDN uint32 = 0x26011966
	Format     uint32 = 0x26011967
	FormatV2   uint32 = 0x26011968
)

var (
	// ErrTruncated reports a packed message that ends early.
	ErrTruncated = errors.New("ldb: truncated packed message")

	// ErrUnsupportedFormat reports a packing format this package does
	// not decode.
	ErrUnsupportedFormat = errors.New("ldb: unsupported packing format")
)

// Element is one attribute of a message.
type Element struct {
	Name   string
	Values [][]byte
}

// Message is a decoded LDB record.
type Message struct {
	DN       string
	Elements []Element
}

// Special reports whether the message is an LDB control record
// (@BASEINFO, @INDEX:..., @ATTRIBUTES) rather than directory data.
func (m Message) Special() bool {
	return strings.HasPrefix(m.DN, "@")
}

// Unpack decodes a packed message. Values are copied out of data.
func Unpack(data []byte) (Message, error) {
	if len(data) < 8 {
		return Message{}, ErrTruncated
	}
	format := binary.LittleEndian.Uint32(data[0:])
	count := binary.LittleEndian.Uint32(data[4:])
	reader := unpacker{data: data, position: 8}

	var message Message
	switch format {
	case Format:
		dn, err := reader.cstring()
		if err != nil {
			return Message{}, fmt.Errorf("dn: %w", err)
		}
		message.DN = dn
	case FormatNoDN:
	case FormatV2:
		return Message{}, fmt.Errorf("%w: v2 (%#x)", ErrUnsupportedFormat, format)
	default:
		return Message{}, fmt.Errorf("%w: %#x", ErrUnsupportedFormat, format)
	}

	// Every element needs at least a NUL and a value count, which
	// bounds the allocation for hostile counts.
	if uint64(count) > uint64(len(data)) {
		return Message{}, fmt.Errorf("%w: %d elements in %d bytes", ErrTruncated, count, len(data))
	}
	message.Elements = make([]Element, 0, count)
	for i := uint32(0); i < count; i++ {
		element, err := reader.element()
		if err != nil {
			return Message{}, fmt.Errorf("element %d: %w", i, err)
		}
		message.Elements = append(message.Elements, element)
	}
	return message, nil
}

type unpacker struct {
	data     []byte
	position int
}

func (u *unpacker) cstring() (string, error) {
	end := bytes.IndexByte(u.data[u.position:], 0)
	if end < 0 {
		return "", ErrTruncated
	}
	value := string(u.data[u.position : u.position+end])
	u.position += end + 1
	return value, nil
}

func (u *unpacker) uint32() (uint32, error) {
	if len(u.data)-u.position < 4 {
		return 0, ErrTruncated
	}
	value := binary.LittleEndian.Uint32(u.data[u.position:])
	u.position += 4
	return value, nil
}

func (u *unpacker) element() (Element, error) {
	name, err := u.cstring()
	if err != nil {
		return Element{}, err
	}
	count, err := u.uint32()
	if err != nil {
		return Element{}, err
	}
	if uint64(count)*5 > uint64(len(u.data)-u.position) {
		return Element{}, fmt.Errorf("%w: attribute %q claims %d values", ErrTruncated, name, count)
	}

	element := Element{Name: name, Values: make([][]byte, 0, count)}
	for i := uint32(0); i < count; i++ {
		length, err := u.uint32()
		if err != nil {
			return Element{}, err
		}
		// The value is followed by a NUL terminator.
		if uint64(length)+1 > uint64(len(u.data)-u.position) {
			return Element{}, fmt.Errorf("%w: attribute %q value %d", ErrTruncated, name, i)
		}
		value := make([]byte, length)
		copy(value, u.data[u.position:])
		u.position += int(length) + 1
		element.Values = append(element.Values, value)
	}
	return element, nil
}

// Pack encodes a message in the DN-carrying layout. It is the inverse
// of Unpack and is used to build fixture databases.
func Pack(message Message) []byte {
	var buffer bytes.Buffer
	var word [4]byte
	putUint32 := func(value uint32) {
		binary.LittleEndian.PutUint32(word[:], value)
		buffer.Write(word[:])
	}

	putUint32(Format)
	putUint32(uint32(len(message.Elements)))
	buffer.WriteString(message.DN)
	buffer.WriteByte(0)
	for _, element := range message.Elements {
		buffer.WriteString(element.Name)
		buffer.WriteByte(0)
		putUint32(uint32(len(element.Values)))
		for _, value := range element.Values {
			putUint32(uint32(len(value)))
			buffer.Write(value)
			buffer.WriteByte(0)
		}
	}
	return buffer.Bytes()
}

// Key returns the TDB key LDB stores a message under.
func Key(dn string) []byte {
	return append([]byte("DN="+dn), 0)
}
