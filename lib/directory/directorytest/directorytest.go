// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package directorytest builds LDB fixture files for tests.
package directorytest

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/ldbfs/lib/directory"
	"github.com/bureau-foundation/ldbfs/lib/ldb"
	"github.com/bureau-foundation/ldbfs/lib/tdb/tdbtest"
)

// LDB returns an LDB image holding entries in order, plus the control
// records a real cache carries. A single hash bucket keeps traversal
// order equal to entry order.
func LDB(entries ...directory.Entry) []byte {
	records := []tdbtest.Record{
		{
			Key: ldb.Key("@BASEINFO"),
			Value: ldb.Pack(ldb.Message{DN: "@BASEINFO", Elements: []ldb.Element{
				{Name: "sequenceNumber", Values: [][]byte{[]byte("42")}},
			}}),
		},
		{Key: []byte("GUID=ignored\x00"), Value: []byte("not a packed message")},
	}
	for _, entry := range entries {
		message := ldb.Message{DN: entry.DN}
		for name, values := range entry.Attributes {
			message.Elements = append(message.Elements, ldb.Element{Name: name, Values: values})
		}
		records = append(records, tdbtest.Record{Key: ldb.Key(entry.DN), Value: ldb.Pack(message)})
	}
	return tdbtest.Build(binary.LittleEndian, 1, records)
}

// WriteLDB writes an LDB image for entries into a temporary directory
// and returns its path.
func WriteLDB(t testing.TB, entries ...directory.Entry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache_example.com.ldb")
	if err := os.WriteFile(path, LDB(entries...), 0o600); err != nil {
		t.Fatalf("writing LDB fixture: %v", err)
	}
	return path
}

// User returns an SSSD-style user entry. Empty modified and nil
// images omit the attribute.
func User(name, uidNumber, modified string, photo, thumbnail []byte) directory.Entry {
	entry := directory.NewEntry("name=" + name + ",cn=users,cn=example.com,cn=sysdb")
	entry.Add("objectCategory", []byte("user"))
	entry.Add("name", []byte(name))
	entry.Add("uidNumber", []byte(uidNumber))
	if modified != "" {
		entry.Add("originalModifyTimestamp", []byte(modified))
	}
	if photo != nil {
		entry.Add("jpegPhoto", photo)
	}
	if thumbnail != nil {
		entry.Add("thumbnailPhoto", thumbnail)
	}
	return entry
}

// SudoRule returns a sudo rule granting ALL on host to users.
func SudoRule(name, host string, users ...string) directory.Entry {
	entry := directory.NewEntry("cn=" + name + ",cn=sudorules,cn=custom,cn=example.com,cn=sysdb")
	entry.Add("objectClass", []byte("sudoRule"))
	entry.Add("sudoHost", []byte(host))
	entry.Add("sudoCommand", []byte("ALL"))
	for _, user := range users {
		entry.Add("sudoUser", []byte(user))
	}
	return entry
}

// PNG is a minimal payload carrying the PNG signature.
var PNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// JPEG is a minimal payload carrying a JFIF header.
var JPEG = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01")
