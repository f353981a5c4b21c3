// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration ldbfs uses for directory
// snapshots.
//
// Snapshot rows store each entry's attributes as a CBOR map from
// attribute name to a list of byte strings. The row digest is taken
// over those bytes, so the encoding must be canonical: the encoder
// uses Core Deterministic Encoding (RFC 8949 §4.2), which sorts map
// keys and always picks the shortest form. Equal attribute maps
// always encode to equal bytes, and an unchanged entry keeps its
// digest across exports.
//
// The decoder rejects duplicate map keys so a hand-edited or damaged
// snapshot cannot smuggle two values for one attribute.
//
//	data, err := codec.Marshal(entry.Attributes)
//	err = codec.Unmarshal(data, &attributes)
package codec
