// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vtree

import (
	"context"
	"errors"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/ldbfs/lib/identity"
)

// Provider supplies users and sudoers. directory.Provider implements
// it.
type Provider interface {
	ListUsers(ctx context.Context) ([]identity.User, error)
	GetUser(ctx context.Context, name string) (identity.User, error)
	ListSudoers(ctx context.Context, host string) (identity.SudoerSet, error)
}

// Resolver resolves paths against a Provider. It holds no other
// state and is safe for concurrent use.
type Resolver struct {
	provider Provider
}

// NewResolver returns a Resolver backed by provider.
func NewResolver(provider Provider) *Resolver {
	return &Resolver{provider: provider}
}

// resolution carries one Resolve call's state. The user lookup runs
// at most once, so rules 4 to 6 all see the same record.
type resolution struct {
	ctx      context.Context
	provider Provider
	segments []string

	looked bool
	user   identity.User
	found  bool
	err    error
}

func (r *resolution) lookupUser() (identity.User, bool, error) {
	if !r.looked {
		r.looked = true
		name := r.segments[1]
		if !identity.ValidSegment(name) {
			return r.user, false, nil
		}
		user, err := r.provider.GetUser(r.ctx, name)
		switch {
		case err == nil:
			r.user, r.found = user, true
		case !errors.Is(err, identity.ErrNotFound):
			r.err = err
		}
	}
	return r.user, r.found, r.err
}

// rule matches one path shape. A rule that does not apply returns
// ok=false and resolution moves on to the next rule.
type rule func(r *resolution) (node Node, ok bool, err error)

// rules are tried in order; the first match wins. Literal names come
// before parametric user segments.
var rules = []rule{
	// 1. /
	func(r *resolution) (Node, bool, error) {
		return Node{Kind: Root}, len(r.segments) == 0, nil
	},
	// 2. /users
	func(r *resolution) (Node, bool, error) {
		return Node{Kind: UsersDir}, len(r.segments) == 1 && r.segments[0] == UsersName, nil
	},
	// 3. /sudoers.txt
	func(r *resolution) (Node, bool, error) {
		return Node{Kind: SudoersFile}, len(r.segments) == 1 && r.segments[0] == SudoersName, nil
	},
	// 4. /users/<name>
	func(r *resolution) (Node, bool, error) {
		if len(r.segments) != 2 || r.segments[0] != UsersName {
			return Node{}, false, nil
		}
		user, found, err := r.lookupUser()
		return Node{Kind: UserDir, User: user}, found, err
	},
	// 5. /users/<name>/photo.<ext>
	func(r *resolution) (Node, bool, error) {
		return userFile(r, PhotoFile, identity.PhotoFilename)
	},
	// 6. /users/<name>/thumbnail.<ext>
	func(r *resolution) (Node, bool, error) {
		return userFile(r, ThumbnailFile, identity.ThumbnailFilename)
	},
}

func userFile(r *resolution, kind Kind, filename func(identity.User) (string, error)) (Node, bool, error) {
	if len(r.segments) != 3 || r.segments[0] != UsersName {
		return Node{}, false, nil
	}
	user, found, err := r.lookupUser()
	if err != nil || !found {
		return Node{}, false, err
	}
	// Absent or unsniffable payloads have no filename and never match.
	name, nameErr := filename(user)
	if nameErr != nil || name != r.segments[2] {
		return Node{}, false, nil
	}
	return Node{Kind: kind, User: user}, true, nil
}

// Resolve classifies segments. Provider failures are returned as
// errors; a path that names nothing yields a NotFound node and no
// error.
func (r *Resolver) Resolve(ctx context.Context, segments []string) (Node, error) {
	state := &resolution{ctx: ctx, provider: r.provider, segments: segments}
	for _, match := range rules {
		node, ok, err := match(state)
		if err != nil {
			return Node{}, err
		}
		if ok {
			return node, nil
		}
	}
	return Node{Kind: NotFound}, nil
}

// ResolvePath splits path and resolves it.
func (r *Resolver) ResolvePath(ctx context.Context, path string) (Node, error) {
	return r.Resolve(ctx, SplitPath(path))
}

// Attr is the metadata reported for a node.
type Attr struct {
	// Mode holds the file type bits and permissions.
	Mode  uint32
	Size  uint64
	Mtime int64
	Nlink uint32
}

// IsDir reports whether the attributes describe a directory.
func (a Attr) IsDir() bool { return a.Mode&unix.S_IFMT == unix.S_IFDIR }

const (
	dirMode  = unix.S_IFDIR | 0o555
	fileMode = unix.S_IFREG | 0o444
)

// Attr returns node's metadata. NotFound yields identity.ErrNotFound.
func (r *Resolver) Attr(ctx context.Context, node Node) (Attr, error) {
	switch node.Kind {
	case Root, UsersDir:
		return Attr{Mode: dirMode}, nil
	case UserDir:
		return Attr{Mode: dirMode, Mtime: node.User.ModifiedAt}, nil
	case PhotoFile:
		return Attr{Mode: fileMode, Size: uint64(len(node.User.Photo)), Mtime: node.User.ModifiedAt}, nil
	case ThumbnailFile:
		return Attr{Mode: fileMode, Size: uint64(len(node.User.Thumbnail)), Mtime: node.User.ModifiedAt}, nil
	case SudoersFile:
		rendered, err := r.sudoers(ctx)
		if err != nil {
			return Attr{}, err
		}
		return Attr{Mode: fileMode, Size: uint64(len(rendered))}, nil
	}
	return Attr{}, identity.ErrNotFound
}

// List returns the names in a directory node, starting with "." and
// "..". Non-directories yield identity.ErrNotFound.
func (r *Resolver) List(ctx context.Context, node Node) ([]string, error) {
	names := []string{".", ".."}
	switch node.Kind {
	case Root:
		return append(names, UsersName, SudoersName), nil
	case UsersDir:
		users, err := r.provider.ListUsers(ctx)
		if err != nil {
			return nil, err
		}
		for _, user := range users {
			if identity.ValidSegment(user.Name) {
				names = append(names, user.Name)
			}
		}
		return names, nil
	case UserDir:
		if name, err := identity.PhotoFilename(node.User); err == nil {
			names = append(names, name)
		}
		if name, err := identity.ThumbnailFilename(node.User); err == nil {
			names = append(names, name)
		}
		return names, nil
	}
	return nil, identity.ErrNotFound
}

// Read returns up to length bytes of a file node starting at offset.
// Reads past the end return what is left, possibly nothing; a
// negative offset or length reads nothing. Non-files yield
// identity.ErrNotFound.
func (r *Resolver) Read(ctx context.Context, node Node, offset, length int64) ([]byte, error) {
	var payload []byte
	switch node.Kind {
	case PhotoFile:
		payload = node.User.Photo
	case ThumbnailFile:
		payload = node.User.Thumbnail
	case SudoersFile:
		rendered, err := r.sudoers(ctx)
		if err != nil {
			return nil, err
		}
		payload = rendered
	default:
		return nil, identity.ErrNotFound
	}
	return clamp(payload, offset, length), nil
}

func (r *Resolver) sudoers(ctx context.Context) ([]byte, error) {
	sudoers, err := r.provider.ListSudoers(ctx, "")
	if err != nil {
		return nil, err
	}
	return sudoers.Render(), nil
}

func clamp(payload []byte, offset, length int64) []byte {
	size := int64(len(payload))
	if offset < 0 || length <= 0 || offset >= size {
		return []byte{}
	}
	end := size
	if length < size-offset {
		end = offset + length
	}
	return payload[offset:end]
}
