// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/ldbfs/lib/config"
	"github.com/bureau-foundation/ldbfs/lib/directory"
	"github.com/bureau-foundation/ldbfs/lib/directory/directorytest"
)

func TestParse(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")

	req, err := parse([]string{"--dump", "cache.ldb", "snapshot.db"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req.cfg.Database != "cache.ldb" || req.snapshot != "snapshot.db" {
		t.Errorf("parse = %+v", req)
	}
	if req.filter != directory.DefaultExportFilter || !req.dump {
		t.Errorf("filter = %q, dump = %v", req.filter, req.dump)
	}

	for _, args := range [][]string{
		{"cache.ldb"},
		{"cache.ldb", "snapshot.db", "extra"},
		{"--filter", "(objectClass=user", "cache.ldb", "snapshot.db"},
	} {
		if _, err := parse(args); err == nil {
			t.Errorf("parse(%q) succeeded", args)
		}
	}

	if req, err := parse([]string{"--version"}); req != nil || err != nil {
		t.Errorf("parse --version = %v, %v", req, err)
	}
}

func TestExportDumpsSnapshot(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	database := directorytest.WriteLDB(t,
		directorytest.User("alice", "1001", "", directorytest.PNG, nil),
		directorytest.SudoRule("admins", "build01", "alice"),
	)
	snapshot := filepath.Join(t.TempDir(), "snapshot.db")

	req, err := parse([]string{"--dump", "--filter", "(objectCategory=user)", database, snapshot})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var out bytes.Buffer
	if err := export(context.Background(), req, &out, nil); err != nil {
		t.Fatalf("export: %v", err)
	}

	dump := out.String()
	if !strings.Contains(dump, "name=alice,cn=users,cn=example.com,cn=sysdb\n") {
		t.Errorf("dump is missing alice:\n%s", dump)
	}
	if !strings.Contains(dump, "h'616c696365'") {
		t.Errorf("dump does not show attribute bytes:\n%s", dump)
	}
	if strings.Contains(dump, "admins") {
		t.Errorf("dump contains an entry outside --filter:\n%s", dump)
	}

	// The snapshot now mounts in place of the LDB file.
	source, err := directory.Open(context.Background(), snapshot, directory.Options{})
	if err != nil {
		t.Fatalf("Open snapshot: %v", err)
	}
	defer source.Close()
	users, err := directory.NewProvider(source, directory.ProviderConfig{}).ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 || users[0].Name != "alice" {
		t.Errorf("users = %+v", users)
	}
}
