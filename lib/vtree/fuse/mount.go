// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/ldbfs/lib/vtree"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory to mount on. It is created when
	// missing and removed again by Unmount.
	Mountpoint string

	// Resolver answers every filesystem callback.
	Resolver *vtree.Resolver

	// AllowOther permits other users to read the mount. Requires
	// user_allow_other in /etc/fuse.conf when not running as root.
	AllowOther bool

	// Debug logs every FUSE request through go-fuse.
	Debug bool

	// Logger receives diagnostic messages. Nil discards them.
	Logger *slog.Logger
}

// Server is a mounted ldbfs tree.
type Server struct {
	server     *fuse.Server
	mountpoint string
	created    bool
	logger     *slog.Logger
}

// Mount mounts the tree at options.Mountpoint and returns once the
// kernel has accepted the mount.
func Mount(options Options) (*Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}

	created := false
	if _, err := os.Stat(options.Mountpoint); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
			return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
		}
		created = true
	} else if err != nil {
		return nil, fmt.Errorf("checking mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &node{operations: NewOperations(options.Resolver, options.Logger)}

	// The tree changes whenever the directory does; the kernel must
	// ask every time.
	var noCache time.Duration
	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &noCache,
		AttrTimeout:     &noCache,
		NegativeTimeout: &noCache,
		MountOptions: fuse.MountOptions{
			FsName:     "ldbfs",
			Name:       "ldbfs",
			AllowOther: options.AllowOther,
			Debug:      options.Debug,
		},
	})
	if err != nil {
		if created {
			os.Remove(options.Mountpoint)
		}
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("ldbfs mounted",
		"mountpoint", options.Mountpoint,
		"allow_other", options.AllowOther,
	)
	return &Server{
		server:     server,
		mountpoint: options.Mountpoint,
		created:    created,
		logger:     options.Logger,
	}, nil
}

// Mountpoint returns the directory the tree is mounted on.
func (s *Server) Mountpoint() string { return s.mountpoint }

// Wait blocks until the filesystem is unmounted, by Unmount or
// externally with fusermount -u.
func (s *Server) Wait() { s.server.Wait() }

// Unmount detaches the filesystem and removes the mountpoint if Mount
// created it.
func (s *Server) Unmount() error {
	if err := s.server.Unmount(); err != nil {
		return fmt.Errorf("unmounting %s: %w", s.mountpoint, err)
	}
	s.logger.Info("ldbfs unmounted", "mountpoint", s.mountpoint)
	if s.created {
		if err := os.Remove(s.mountpoint); err != nil {
			return fmt.Errorf("removing mountpoint %s: %w", s.mountpoint, err)
		}
	}
	return nil
}

// node is every inode in the tree: the root, directories and files
// alike. It holds its path and nothing else.
type node struct {
	gofuse.Inode
	operations *Operations
	segments   []string
}

var _ gofuse.InodeEmbedder = (*node)(nil)
var _ gofuse.NodeLookuper = (*node)(nil)
var _ gofuse.NodeGetattrer = (*node)(nil)
var _ gofuse.NodeReaddirer = (*node)(nil)
var _ gofuse.NodeOpener = (*node)(nil)
var _ gofuse.NodeReader = (*node)(nil)
var _ gofuse.NodeSetattrer = (*node)(nil)
var _ gofuse.NodeCreater = (*node)(nil)
var _ gofuse.NodeMkdirer = (*node)(nil)
var _ gofuse.NodeMknoder = (*node)(nil)
var _ gofuse.NodeSymlinker = (*node)(nil)
var _ gofuse.NodeLinker = (*node)(nil)
var _ gofuse.NodeUnlinker = (*node)(nil)
var _ gofuse.NodeRmdirer = (*node)(nil)
var _ gofuse.NodeRenamer = (*node)(nil)

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	segments := append(slices.Clip(n.segments), name)
	attr, errno := n.operations.getattr(ctx, segments)
	if errno != 0 {
		return nil, errno
	}
	fillAttr(&out.Attr, attr)

	child := &node{operations: n.operations, segments: segments}
	stable := gofuse.StableAttr{Mode: attr.Mode & syscall.S_IFMT, Ino: inodeNumber(segments)}
	out.Ino = stable.Ino
	return n.NewInode(ctx, child, stable), 0
}

func (n *node) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attr, errno := n.operations.getattr(ctx, n.segments)
	if errno != 0 {
		return errno
	}
	fillAttr(&out.Attr, attr)
	return 0
}

func (n *node) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	kind, names, errno := n.operations.readdir(ctx, n.segments)
	if errno != 0 {
		return nil, errno
	}
	entries := make([]fuse.DirEntry, 0, len(names))
	for _, name := range names {
		// go-fuse supplies "." and ".." itself.
		if name == "." || name == ".." {
			continue
		}
		segments := append(slices.Clip(n.segments), name)
		entries = append(entries, fuse.DirEntry{
			Name: name,
			Mode: childMode(kind, name),
			Ino:  inodeNumber(segments),
		})
	}
	return &sliceDirStream{entries: entries}, 0
}

func (n *node) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_TRUNC|syscall.O_APPEND) != 0 {
		return nil, 0, syscall.ENOTSUP
	}
	// Sizes can change between stat and read; bypass the page cache.
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (n *node) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, errno := n.operations.read(ctx, n.segments, off, int64(len(dest)))
	if errno != 0 {
		return nil, errno
	}
	return fuse.ReadResultData(data), 0
}

// The tree is read-only: every mutation fails with ENOTSUP.

func (n *node) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	return syscall.ENOTSUP
}

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	return nil, nil, 0, syscall.ENOTSUP
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	return nil, syscall.ENOTSUP
}

func (n *node) Mknod(ctx context.Context, name string, mode uint32, dev uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	return nil, syscall.ENOTSUP
}

func (n *node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	return nil, syscall.ENOTSUP
}

func (n *node) Link(ctx context.Context, target gofuse.InodeEmbedder, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	return nil, syscall.ENOTSUP
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	return syscall.ENOTSUP
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return syscall.ENOTSUP
}

func (n *node) Rename(ctx context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	return syscall.ENOTSUP
}

func fillAttr(out *fuse.Attr, attr vtree.Attr) {
	out.Mode = attr.Mode
	out.Size = attr.Size
	out.Blocks = (attr.Size + 511) / 512
	out.Nlink = attr.Nlink
	mtime := uint64(max(attr.Mtime, 0))
	out.Mtime = mtime
	out.Atime = mtime
	out.Ctime = mtime
}

// childMode gives the file type of a listed name without resolving
// it: the tree's shape fixes the type by depth.
func childMode(parent vtree.Kind, name string) uint32 {
	switch parent {
	case vtree.Root:
		if name == vtree.UsersName {
			return syscall.S_IFDIR
		}
		return syscall.S_IFREG
	case vtree.UsersDir:
		return syscall.S_IFDIR
	}
	return syscall.S_IFREG
}

// inodeNumber derives a stable inode number from a path so repeated
// lookups of one path map to one inode. 1 is reserved for the root.
func inodeNumber(segments []string) uint64 {
	sum := blake3.Sum256([]byte(strings.Join(segments, "/")))
	number := binary.LittleEndian.Uint64(sum[:8])
	if number <= 1 {
		number += 2
	}
	return number
}

// sliceDirStream implements fs.DirStream from a slice of entries.
type sliceDirStream struct {
	entries []fuse.DirEntry
	index   int
}

func (s *sliceDirStream) HasNext() bool {
	return s.index < len(s.entries)
}

func (s *sliceDirStream) Next() (fuse.DirEntry, syscall.Errno) {
	if s.index >= len(s.entries) {
		return fuse.DirEntry{}, syscall.EINVAL
	}
	entry := s.entries[s.index]
	s.index++
	return entry, 0
}

func (s *sliceDirStream) Close() {}
