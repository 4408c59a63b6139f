// Package lakeops orchestrates folder and access control operations
// against a Data Lake storage account, translating identity names via
// the directory and classifying provider failures into a small error
// taxonomy. Every operation is a sequential pipeline of client calls:
// no shared mutable state between calls, no internal retries beyond
// the transport's own backoff.
package lakeops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/adlsctl/adlsctl/internal/aclspec"
	"github.com/adlsctl/adlsctl/internal/dfs"
	"github.com/adlsctl/adlsctl/internal/identity"
	"github.com/adlsctl/adlsctl/internal/rest"
)

// Store is the subset of the DFS client the operations need.
type Store interface {
	Exists(ctx context.Context, filesystem, path string) (bool, error)
	CreateDirectory(ctx context.Context, filesystem, path string, failIfExists bool) error
	DeleteDirectory(ctx context.Context, filesystem, path string) error
	Rename(ctx context.Context, srcFilesystem, srcPath, destFilesystem, destPath string) error
	GetAccessControl(ctx context.Context, filesystem, path string) (*dfs.AccessControl, error)
	SetAccessControl(ctx context.Context, filesystem, path string, acl aclspec.ACL) error
	UpdateAccessControlRecursive(ctx context.Context, filesystem, path string, mode dfs.UpdateMode, aclText string) (*dfs.RecursiveSummary, error)
}

// Resolver is the subset of the identity resolver the operations need.
type Resolver interface {
	Resolve(ctx context.Context, name string) (identity.Reference, error)
	ResolveObjectID(ctx context.Context, objectID string) (identity.Reference, error)
}

// Target addresses a folder: storage account, container (filesystem),
// and path within it. Path may use / or \ separators; it is
// normalized on use. An empty path addresses the container root.
type Target struct {
	Account   string
	Container string
	Path      string
}

// normalized returns the target with its path canonicalized.
func (t Target) normalized() Target {
	t.Path = aclspec.NormalizePath(t.Path)
	return t
}

// Folder is the handle returned by folder operations.
type Folder struct {
	Account   string
	Container string
	Path      string
}

// Ops carries the collaborating clients. One Ops is bound to one
// storage account (the Store addresses a single DFS endpoint).
type Ops struct {
	store    Store
	resolver Resolver
	classify Classifier
	logger   *slog.Logger
}

// New creates an Ops over a store and resolver with the default
// failure classifier.
func New(store Store, resolver Resolver, logger *slog.Logger) *Ops {
	if logger == nil {
		logger = slog.Default()
	}

	return &Ops{
		store:    store,
		resolver: resolver,
		classify: DefaultClassifier,
		logger:   logger,
	}
}

// SetClassifier swaps the failure classifier. Intended for hosts whose
// provider emits nonstandard error text.
func (o *Ops) SetClassifier(c Classifier) {
	if c != nil {
		o.classify = c
	}
}

// opError classifies and wraps an underlying failure with context.
func (o *Ops) opError(op string, t Target, identityName string, err error) error {
	return &OpError{
		Op:        op,
		Account:   t.Account,
		Container: t.Container,
		Path:      t.Path,
		Identity:  identityName,
		Err:       o.classify(err),
	}
}

// CreateFolder creates the folder (intermediate segments implicitly).
// When errorIfExists is set an existing path fails with
// ErrAlreadyExists; otherwise the call is idempotent and returns the
// existing folder.
func (o *Ops) CreateFolder(ctx context.Context, t Target, errorIfExists bool) (*Folder, error) {
	t = t.normalized()

	err := o.store.CreateDirectory(ctx, t.Container, t.Path, errorIfExists)
	if err != nil {
		// The store signals "already exists" as a failed precondition
		// on the If-None-Match guard.
		if errorIfExists && (errors.Is(err, rest.ErrPreconditionFailed) || errors.Is(err, rest.ErrConflict)) {
			return nil, o.opError("create folder", t, "", fmt.Errorf("%w: %w", ErrAlreadyExists, err))
		}

		return nil, o.opError("create folder", t, "", err)
	}

	return &Folder{Account: t.Account, Container: t.Container, Path: t.Path}, nil
}

// DeleteFolder removes the folder and its subtree unconditionally.
// A missing path is a silent no-op unless errorIfMissing is set, in
// which case it fails with ErrNotFound.
func (o *Ops) DeleteFolder(ctx context.Context, t Target, errorIfMissing bool) error {
	t = t.normalized()

	err := o.store.DeleteDirectory(ctx, t.Container, t.Path)
	if err != nil {
		if errors.Is(err, rest.ErrNotFound) {
			if errorIfMissing {
				return o.opError("delete folder", t, "", fmt.Errorf("%w: %w", ErrNotFound, err))
			}

			o.logger.Debug("delete: path already absent",
				slog.String("container", t.Container),
				slog.String("path", t.Path),
			)

			return nil
		}

		return o.opError("delete folder", t, "", err)
	}

	return nil
}

// MoveFolder renames a folder, overwriting any destination. The
// destination container defaults to the source container when empty.
func (o *Ops) MoveFolder(ctx context.Context, src Target, destContainer, destPath string) (*Folder, error) {
	src = src.normalized()

	if destContainer == "" {
		destContainer = src.Container
	}

	destPath = aclspec.NormalizePath(destPath)

	if err := o.store.Rename(ctx, src.Container, src.Path, destContainer, destPath); err != nil {
		return nil, o.opError("move folder", src, "", err)
	}

	return &Folder{Account: src.Account, Container: destContainer, Path: destPath}, nil
}
