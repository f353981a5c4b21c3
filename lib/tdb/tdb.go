// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tdb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"
)

const (
	// MagicFood opens every TDB file.
	MagicFood = "TDB file\n"

	// Version is the on-disk format version written by current tdb.
	Version uint32 = 0x26011967 + 6

	// RecordMagic marks a live record.
	RecordMagic uint32 = 0x26011999

	// DeadMagic marks a deleted record still linked into its chain.
	DeadMagic uint32 = 0xFEE1DEAD

	// HeaderSize is the size of the fixed file header. The freelist
	// head is stored immediately after it.
	HeaderSize = 168

	// RecordHeaderSize is the size of a record header.
	RecordHeaderSize = 24

	// TransactionLockOffset is the byte writers lock for the duration
	// of a transaction.
	TransactionLockOffset = 8

	versionOffset  = 32
	hashSizeOffset = 36
)

// ErrCorrupt reports a structurally invalid database image.
var ErrCorrupt = errors.New("tdb: corrupt database")

// Database is a read-only view of a TDB image. Records are read on
// demand; the hash table is loaded when the Database is created.
type Database struct {
	reader   io.ReaderAt
	size     int64
	order    binary.ByteOrder
	hashSize uint32
	buckets  []byte
}

// Parse validates the header of an in-memory TDB image. The image is
// retained, not copied.
func Parse(data []byte) (*Database, error) {
	return NewReader(bytes.NewReader(data), int64(len(data)))
}

// NewReader validates the header of the size-byte TDB image behind
// reader and loads its hash table. Only the header and the table are
// read here; Traverse reads each record as it reaches it.
func NewReader(reader io.ReaderAt, size int64) (*Database, error) {
	header := make([]byte, HeaderSize)
	if size < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, size)
	}
	if err := readAt(reader, header, 0); err != nil {
		return nil, err
	}
	order, hashSize, err := parseHeader(header)
	if err != nil {
		return nil, err
	}
	tableEnd := uint64(HeaderSize) + 4*(uint64(hashSize)+1)
	if uint64(size) < tableEnd {
		return nil, fmt.Errorf("%w: hash table of %d buckets exceeds file size %d", ErrCorrupt, hashSize, size)
	}
	// The freelist head precedes the bucket heads.
	buckets := make([]byte, 4*uint64(hashSize))
	if err := readAt(reader, buckets, HeaderSize+4); err != nil {
		return nil, err
	}
	return &Database{reader: reader, size: size, order: order, hashSize: hashSize, buckets: buckets}, nil
}

func readAt(reader io.ReaderAt, buffer []byte, offset int64) error {
	n, err := reader.ReadAt(buffer, offset)
	if n == len(buffer) {
		return nil
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: short read of %d bytes at offset %d", ErrCorrupt, len(buffer), offset)
		}
		return fmt.Errorf("tdb: reading %d bytes at offset %d: %w", len(buffer), offset, err)
	}
	return fmt.Errorf("%w: short read of %d bytes at offset %d", ErrCorrupt, len(buffer), offset)
}

// parseHeader checks the magic and version and returns the file's
// byte order and bucket count.
func parseHeader(header []byte) (binary.ByteOrder, uint32, error) {
	if len(header) < HeaderSize {
		return nil, 0, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(header))
	}
	if string(header[:len(MagicFood)]) != MagicFood {
		return nil, 0, fmt.Errorf("%w: missing %q magic", ErrCorrupt, MagicFood)
	}

	var order binary.ByteOrder
	switch raw := binary.LittleEndian.Uint32(header[versionOffset:]); raw {
	case Version:
		order = binary.LittleEndian
	case bits.ReverseBytes32(Version):
		order = binary.BigEndian
	default:
		return nil, 0, fmt.Errorf("tdb: unsupported version %#x", raw)
	}

	hashSize := order.Uint32(header[hashSizeOffset:])
	if hashSize == 0 {
		return nil, 0, fmt.Errorf("%w: zero hash size", ErrCorrupt)
	}
	return order, hashSize, nil
}

// HashSize returns the number of hash buckets.
func (d *Database) HashSize() uint32 { return d.hashSize }

// ByteOrder returns the byte order the file was written in.
func (d *Database) ByteOrder() binary.ByteOrder { return d.order }

// Traverse calls fn for every live record, bucket by bucket in chain
// order. Key and value are freshly allocated for each record. Traversal
// stops at the first error returned by fn, which Traverse returns
// unchanged.
func (d *Database) Traverse(fn func(key, value []byte) error) error {
	// A chain can never hold more records than fit in the file; more
	// steps than that means the chain loops.
	maxSteps := d.size/RecordHeaderSize + 1
	var steps int64

	for bucket := uint32(0); bucket < d.hashSize; bucket++ {
		offset := d.order.Uint32(d.buckets[4*bucket:])
		for offset != 0 {
			steps++
			if steps > maxSteps {
				return fmt.Errorf("%w: hash chain %d does not terminate", ErrCorrupt, bucket)
			}

			record, err := d.record(offset)
			if err != nil {
				return fmt.Errorf("bucket %d: %w", bucket, err)
			}
			if record.magic == RecordMagic {
				if err := fn(record.key, record.value); err != nil {
					return err
				}
			}
			offset = record.next
		}
	}
	return nil
}

type record struct {
	next  uint32
	magic uint32
	key   []byte
	value []byte
}

// record reads the record header at offset and, for a live record,
// its key and value.
func (d *Database) record(offset uint32) (record, error) {
	start := uint64(offset)
	if start < HeaderSize || start+RecordHeaderSize > uint64(d.size) {
		return record{}, fmt.Errorf("%w: record offset %d out of range", ErrCorrupt, offset)
	}
	header := make([]byte, RecordHeaderSize)
	if err := readAt(d.reader, header, int64(start)); err != nil {
		return record{}, err
	}
	next := d.order.Uint32(header[0:])
	recordLength := uint64(d.order.Uint32(header[4:]))
	keyLength := uint64(d.order.Uint32(header[8:]))
	dataLength := uint64(d.order.Uint32(header[12:]))
	magic := d.order.Uint32(header[20:])

	switch magic {
	case RecordMagic:
	case DeadMagic:
		return record{next: next, magic: magic}, nil
	default:
		return record{}, fmt.Errorf("%w: bad record magic %#x at offset %d", ErrCorrupt, magic, offset)
	}

	body := start + RecordHeaderSize
	if keyLength+dataLength > recordLength || body+keyLength+dataLength > uint64(d.size) {
		return record{}, fmt.Errorf("%w: record at offset %d overruns the file", ErrCorrupt, offset)
	}
	contents := make([]byte, keyLength+dataLength)
	if err := readAt(d.reader, contents, int64(body)); err != nil {
		return record{}, err
	}
	return record{
		next:  next,
		magic: magic,
		key:   contents[:keyLength:keyLength],
		value: contents[keyLength:],
	}, nil
}
