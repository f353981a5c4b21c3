// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"syscall"

	"github.com/bureau-foundation/ldbfs/lib/directory"
	"github.com/bureau-foundation/ldbfs/lib/identity"
	"github.com/bureau-foundation/ldbfs/lib/vtree"
)

// Operations binds a resolver to the three filesystem operations.
type Operations struct {
	resolver *vtree.Resolver
	logger   *slog.Logger
}

// NewOperations returns Operations over resolver. A nil logger
// discards diagnostics.
func NewOperations(resolver *vtree.Resolver, logger *slog.Logger) *Operations {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Operations{resolver: resolver, logger: logger}
}

// Getattr returns the attributes of path.
func (o *Operations) Getattr(ctx context.Context, path string) (vtree.Attr, syscall.Errno) {
	return o.getattr(ctx, vtree.SplitPath(path))
}

// Readdir returns the names in directory path, "." and ".." first.
func (o *Operations) Readdir(ctx context.Context, path string) ([]string, syscall.Errno) {
	_, names, errno := o.readdir(ctx, vtree.SplitPath(path))
	return names, errno
}

// Read returns up to length bytes of file path starting at offset.
func (o *Operations) Read(ctx context.Context, path string, offset, length int64) ([]byte, syscall.Errno) {
	return o.read(ctx, vtree.SplitPath(path), offset, length)
}

func (o *Operations) resolve(ctx context.Context, op string, segments []string) (vtree.Node, syscall.Errno) {
	node, err := o.resolver.Resolve(ctx, segments)
	if err != nil {
		return node, o.errno(op, segments, err)
	}
	if node.Kind == vtree.NotFound {
		return node, syscall.ENOENT
	}
	return node, 0
}

func (o *Operations) getattr(ctx context.Context, segments []string) (vtree.Attr, syscall.Errno) {
	node, errno := o.resolve(ctx, "getattr", segments)
	if errno != 0 {
		return vtree.Attr{}, errno
	}
	attr, err := o.resolver.Attr(ctx, node)
	if err != nil {
		return vtree.Attr{}, o.errno("getattr", segments, err)
	}
	return attr, 0
}

func (o *Operations) readdir(ctx context.Context, segments []string) (vtree.Kind, []string, syscall.Errno) {
	node, errno := o.resolve(ctx, "readdir", segments)
	if errno != 0 {
		return vtree.NotFound, nil, errno
	}
	names, err := o.resolver.List(ctx, node)
	if err != nil {
		return vtree.NotFound, nil, o.errno("readdir", segments, err)
	}
	return node.Kind, names, 0
}

func (o *Operations) read(ctx context.Context, segments []string, offset, length int64) ([]byte, syscall.Errno) {
	node, errno := o.resolve(ctx, "read", segments)
	if errno != 0 {
		return nil, errno
	}
	data, err := o.resolver.Read(ctx, node, offset, length)
	if err != nil {
		return nil, o.errno("read", segments, err)
	}
	return data, 0
}

// errno collapses every failure to ENOENT. Absence is routine and
// logged at debug; anything else means the directory misbehaved.
func (o *Operations) errno(op string, segments []string, err error) syscall.Errno {
	path := "/" + strings.Join(segments, "/")
	if errors.Is(err, identity.ErrNotFound) || errors.Is(err, identity.ErrUnknownFormat) {
		o.logger.Debug("path not found", "op", op, "path", path, "error", err)
		return syscall.ENOENT
	}
	var providerError *directory.ProviderError
	if errors.As(err, &providerError) {
		o.logger.Warn("directory query failed",
			"op", op,
			"path", path,
			"query", providerError.Op,
			"error", providerError.Err,
		)
		return syscall.ENOENT
	}
	o.logger.Warn("filesystem operation failed", "op", op, "path", path, "error", err)
	return syscall.ENOENT
}
