// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tdbtest builds TDB images for tests of packages that read
// TDB and LDB files.
package tdbtest

import (
	"encoding/binary"

	"github.com/bureau-foundation/ldbfs/lib/tdb"
)

// Record is one key/value pair to store.
type Record struct {
	Key   []byte
	Value []byte

	// Dead writes the record with the deleted-record magic. Readers
	// must skip it.
	Dead bool
}

// Build returns a TDB image holding records, using hashSize buckets.
// Records are assigned to buckets round-robin and chained in order,
// so small hash sizes exercise multi-record chains.
func Build(order binary.ByteOrder, hashSize uint32, records []Record) []byte {
	tableEnd := tdb.HeaderSize + 4*(int(hashSize)+1)
	image := make([]byte, tableEnd)
	copy(image, tdb.MagicFood)
	order.PutUint32(image[32:], tdb.Version)
	order.PutUint32(image[36:], hashSize)

	// tails[b] is the offset of the next-pointer field to patch when
	// appending to bucket b.
	tails := make([]int, hashSize)
	for bucket := range tails {
		tails[bucket] = tdb.HeaderSize + 4*(bucket+1)
	}

	for index, record := range records {
		offset := len(image)
		bucket := index % int(hashSize)
		order.PutUint32(image[tails[bucket]:], uint32(offset))
		tails[bucket] = offset

		magic := tdb.RecordMagic
		if record.Dead {
			magic = tdb.DeadMagic
		}
		header := make([]byte, tdb.RecordHeaderSize)
		length := len(record.Key) + len(record.Value)
		order.PutUint32(header[4:], uint32(length))
		order.PutUint32(header[8:], uint32(len(record.Key)))
		order.PutUint32(header[12:], uint32(len(record.Value)))
		order.PutUint32(header[20:], magic)

		image = append(image, header...)
		image = append(image, record.Key...)
		image = append(image, record.Value...)
	}
	return image
}
