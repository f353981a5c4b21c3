// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package iconsync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bureau-foundation/ldbfs/lib/identity"
)

var (
	alicePhoto = []byte("\x89PNG\r\n\x1a\nalice")
	bobPhoto   = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00bob")
)

type staticUsers struct {
	users []identity.User
	err   error
}

func (s *staticUsers) ListUsers(ctx context.Context) ([]identity.User, error) {
	return s.users, s.err
}

// memoryStore is an in-memory IconStore that records writes.
type memoryStore struct {
	mu       sync.Mutex
	icons    map[string]string
	unknown  map[string]bool
	failures map[string]error
	writes   []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		icons:    make(map[string]string),
		unknown:  make(map[string]bool),
		failures: make(map[string]error),
	}
}

func (m *memoryStore) IconPath(ctx context.Context, uid string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unknown[uid] {
		return "", ErrUnknownUser
	}
	if err := m.failures[uid]; err != nil {
		return "", err
	}
	return m.icons[uid], nil
}

func (m *memoryStore) SetIconPath(ctx context.Context, uid, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.icons[uid] = path
	m.writes = append(m.writes, uid)
	return nil
}

func (m *memoryStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

// materialize lays out photo files the way the mounted tree serves
// them, standing in for a live FUSE mount.
func materialize(t *testing.T, mountpoint string, users []identity.User) {
	t.Helper()
	for _, user := range users {
		filename, err := identity.PhotoFilename(user)
		if err != nil {
			continue
		}
		directory := filepath.Join(mountpoint, "users", user.Name)
		if err := os.MkdirAll(directory, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(directory, filename), user.Photo, 0o444); err != nil {
			t.Fatal(err)
		}
	}
}

func newTestJob(t *testing.T, users UserLister, store IconStore, mountpoint string) *Job {
	t.Helper()
	job, err := NewJob(Config{Users: users, Store: store, Mountpoint: mountpoint})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	return job
}

func TestJobIsIdempotent(t *testing.T) {
	mountpoint := t.TempDir()
	users := []identity.User{
		{Name: "alice", UIDNumber: "1001", Photo: alicePhoto},
		{Name: "bob", UIDNumber: "1002", Photo: bobPhoto},
		{Name: "carol", UIDNumber: "1003"},
		{Name: "erin", UIDNumber: "1005", Photo: []byte("unknown format")},
	}
	materialize(t, mountpoint, users)
	store := newMemoryStore()
	job := newTestJob(t, &staticUsers{users: users}, store, mountpoint)

	first, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first != (Result{Checked: 2, Updated: 2}) {
		t.Errorf("first pass = %+v", first)
	}
	if got := store.icons["1001"]; got != filepath.Join(mountpoint, "users", "alice", "photo.png") {
		t.Errorf("alice icon = %q", got)
	}
	if got := store.icons["1002"]; got != filepath.Join(mountpoint, "users", "bob", "photo.jpeg") {
		t.Errorf("bob icon = %q", got)
	}

	writes := store.writeCount()
	second, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second != (Result{Checked: 2, Unchanged: 2}) {
		t.Errorf("second pass = %+v", second)
	}
	if store.writeCount() != writes {
		t.Errorf("second pass wrote %d times", store.writeCount()-writes)
	}
}

func TestJobComparesContentNotPath(t *testing.T) {
	mountpoint := t.TempDir()
	users := []identity.User{{Name: "alice", UIDNumber: "1001", Photo: alicePhoto}}
	materialize(t, mountpoint, users)

	elsewhere := t.TempDir()
	sameContent := filepath.Join(elsewhere, "same.png")
	if err := os.WriteFile(sameContent, alicePhoto, 0o644); err != nil {
		t.Fatal(err)
	}
	store := newMemoryStore()
	store.icons["1001"] = sameContent
	job := newTestJob(t, &staticUsers{users: users}, store, mountpoint)

	result, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Unchanged != 1 || store.writeCount() != 0 {
		t.Errorf("identical icon content was rewritten: %+v", result)
	}

	// Changed content and a missing file both trigger a write.
	if err := os.WriteFile(sameContent, []byte("old photo"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result, _ := job.Run(context.Background()); result.Updated != 1 {
		t.Errorf("changed icon content not updated: %+v", result)
	}
	store.icons["1001"] = filepath.Join(elsewhere, "deleted.png")
	if result, _ := job.Run(context.Background()); result.Updated != 1 {
		t.Errorf("missing icon file not updated: %+v", result)
	}
}

func TestJobSkipsUnknownUsersAndContinuesOnFailure(t *testing.T) {
	mountpoint := t.TempDir()
	users := []identity.User{
		{Name: "ghost", UIDNumber: "2000", Photo: alicePhoto},
		{Name: "broken", UIDNumber: "2001", Photo: alicePhoto},
		{Name: "alice", UIDNumber: "1001", Photo: alicePhoto},
	}
	materialize(t, mountpoint, users)
	store := newMemoryStore()
	store.unknown["2000"] = true
	store.failures["2001"] = errors.New("bus timeout")
	job := newTestJob(t, &staticUsers{users: users}, store, mountpoint)

	result, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := Result{Checked: 3, Updated: 1, Skipped: 1, Failed: 1}
	if result != want {
		t.Errorf("Run = %+v, want %+v", result, want)
	}
	if _, ok := store.icons["1001"]; !ok {
		t.Error("alice was not reconciled after earlier failures")
	}
}

func TestJobAbortsOnProviderFailure(t *testing.T) {
	failure := errors.New("directory unavailable")
	store := newMemoryStore()
	job := newTestJob(t, &staticUsers{err: failure}, store, t.TempDir())
	if _, err := job.Run(context.Background()); !errors.Is(err, failure) {
		t.Errorf("Run error = %v, want provider failure", err)
	}
	if store.writeCount() != 0 {
		t.Error("failed pass wrote to the store")
	}
}

func TestJobIconPath(t *testing.T) {
	job := newTestJob(t, &staticUsers{}, newMemoryStore(), "/run/ldb-fuse")
	path, err := job.IconPath(identity.User{Name: "alice@example.com", Photo: alicePhoto})
	if err != nil {
		t.Fatalf("IconPath: %v", err)
	}
	if path != "/run/ldb-fuse/users/alice@example.com/photo.png" {
		t.Errorf("IconPath = %q", path)
	}
	if _, err := job.IconPath(identity.User{Name: "../etc", Photo: alicePhoto}); err == nil {
		t.Error("IconPath accepted a name that cannot be a path segment")
	}
	if _, err := job.IconPath(identity.User{Name: "carol"}); !errors.Is(err, identity.ErrNotFound) {
		t.Errorf("IconPath without photo error = %v", err)
	}
}

func TestNewJobValidates(t *testing.T) {
	store := newMemoryStore()
	users := &staticUsers{}
	for _, config := range []Config{
		{Store: store, Mountpoint: "/m"},
		{Users: users, Mountpoint: "/m"},
		{Users: users, Store: store},
	} {
		if _, err := NewJob(config); err == nil {
			t.Errorf("NewJob(%+v) succeeded", config)
		}
	}
}
