// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package iconsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/ldbfs/lib/identity"
	"github.com/bureau-foundation/ldbfs/lib/vtree"
)

// ErrUnknownUser reports a uid the icon store has no record of. The
// job skips such users.
var ErrUnknownUser = errors.New("iconsync: user unknown to icon store")

// IconStore reads and writes per-user icon paths, keyed by numeric
// uid.
type IconStore interface {
	// IconPath returns the configured icon file, or "" when none is
	// set.
	IconPath(ctx context.Context, uid string) (string, error)

	// SetIconPath points the user's icon at path.
	SetIconPath(ctx context.Context, uid, path string) error
}

// UserLister supplies the users to reconcile. directory.Provider
// implements it.
type UserLister interface {
	ListUsers(ctx context.Context) ([]identity.User, error)
}

// Config configures a Job.
type Config struct {
	// Users lists the directory's users.
	Users UserLister

	// Store is the icon configuration store.
	Store IconStore

	// Mountpoint is where the ldbfs tree is mounted; icon paths
	// point into it.
	Mountpoint string

	// Logger receives per-user outcomes. Nil discards them.
	Logger *slog.Logger
}

// Result counts the outcome of one pass. Users without a usable
// photo are not counted.
type Result struct {
	Checked   int
	Updated   int
	Unchanged int
	Skipped   int
	Failed    int
}

// Job is one reconciliation pass. It is safe to run from one
// goroutine at a time.
type Job struct {
	users      UserLister
	store      IconStore
	mountpoint string
	logger     *slog.Logger
}

// NewJob validates config and returns a Job.
func NewJob(config Config) (*Job, error) {
	if config.Users == nil {
		return nil, fmt.Errorf("iconsync: user lister is required")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("iconsync: icon store is required")
	}
	if config.Mountpoint == "" {
		return nil, fmt.Errorf("iconsync: mountpoint is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Job{
		users:      config.Users,
		store:      config.Store,
		mountpoint: config.Mountpoint,
		logger:     logger,
	}, nil
}

// IconPath returns where user's photo appears under the mount.
func (j *Job) IconPath(user identity.User) (string, error) {
	if !identity.ValidSegment(user.Name) {
		return "", fmt.Errorf("user name %q: %w", user.Name, identity.ErrNotFound)
	}
	filename, err := identity.PhotoFilename(user)
	if err != nil {
		return "", err
	}
	return filepath.Join(j.mountpoint, vtree.UsersName, user.Name, filename), nil
}

// Run performs one pass. A failure to list users aborts the pass; a
// store failure for one user is logged and counted, and the pass moves
// on.
func (j *Job) Run(ctx context.Context) (Result, error) {
	users, err := j.users.ListUsers(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("iconsync: listing users: %w", err)
	}

	var result Result
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		iconPath, err := j.IconPath(user)
		if err != nil {
			continue
		}
		result.Checked++

		switch outcome, err := j.reconcile(ctx, user, iconPath); {
		case errors.Is(err, ErrUnknownUser):
			j.logger.Debug("user unknown to icon store", "user", user.Name, "uid", user.UIDNumber)
			result.Skipped++
		case err != nil:
			j.logger.Warn("icon reconciliation failed", "user", user.Name, "uid", user.UIDNumber, "error", err)
			result.Failed++
		case outcome:
			j.logger.Info("user icon updated", "user", user.Name, "uid", user.UIDNumber, "icon", iconPath)
			result.Updated++
		default:
			result.Unchanged++
		}
	}
	return result, nil
}

// reconcile reports whether it wrote a new icon path.
func (j *Job) reconcile(ctx context.Context, user identity.User, iconPath string) (bool, error) {
	current, err := j.store.IconPath(ctx, user.UIDNumber)
	if err != nil {
		return false, err
	}
	if current != "" {
		content, err := os.ReadFile(current)
		if err == nil && bytes.Equal(content, user.Photo) {
			return false, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			j.logger.Debug("current icon unreadable", "user", user.Name, "icon", current, "error", err)
		}
	}
	if err := j.store.SetIconPath(ctx, user.UIDNumber, iconPath); err != nil {
		return false, err
	}
	return true, nil
}
