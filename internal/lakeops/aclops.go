package lakeops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/adlsctl/adlsctl/internal/aclspec"
	"github.com/adlsctl/adlsctl/internal/dfs"
	"github.com/adlsctl/adlsctl/internal/identity"
)

// Propagation selects how far an ACL write reaches.
type Propagation int

const (
	// PropagateRecursive applies the change to the target and every
	// descendant. The default.
	PropagateRecursive Propagation = iota
	// PropagateSingleNode applies the change to the target path only.
	PropagateSingleNode
)

// AclOptions tunes SetACL and RemoveACL.
type AclOptions struct {
	// IncludeDefaultScope repeats the grant under the default scope so
	// new children inherit it. SetACL only.
	IncludeDefaultScope bool
	// SetContainerACL additionally writes a read-only grant for the
	// identity on the container root before touching the folder path,
	// so the identity can traverse to the folder. SetACL only.
	SetContainerACL bool
	Propagation     Propagation
}

// AclEntry is one row of a GetACL listing, enriched with directory
// display data. DisplayName and Kind are empty/unknown when the
// directory lookup for the entry degraded.
type AclEntry struct {
	DisplayName  string
	ObjectID     string
	Kind         identity.Kind
	Permissions  string
	DefaultScope bool
}

// resolveForACL resolves an identity name and maps it onto the store's
// principal tag vocabulary.
func (o *Ops) resolveForACL(ctx context.Context, name string) (identity.Reference, aclspec.Tag, error) {
	ref, err := o.resolver.Resolve(ctx, name)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return identity.Reference{}, "", fmt.Errorf("%w: %w", ErrIdentityNotFound, err)
		}

		return identity.Reference{}, "", err
	}

	tag := ref.Kind.PrincipalType()
	if tag == "" {
		return identity.Reference{}, "", fmt.Errorf("identity %q resolved to unsupported kind %s", name, ref.Kind)
	}

	return ref, tag, nil
}

// requireFolder verifies the target path exists.
func (o *Ops) requireFolder(ctx context.Context, op string, t Target) error {
	exists, err := o.store.Exists(ctx, t.Container, t.Path)
	if err != nil {
		return o.opError(op, t, "", err)
	}

	if !exists {
		return o.opError(op, t, "", ErrNotFound)
	}

	return nil
}

// SetACL grants the identity the given access level on the target
// folder. The write upserts a full mask plus the identity's entry;
// an existing entry for the same identity is replaced, never
// duplicated. Failures are classified and surfaced immediately; later
// scopes are not attempted after a failure.
func (o *Ops) SetACL(ctx context.Context, t Target, identityName string, level aclspec.AccessLevel, opts AclOptions) error {
	const op = "set acl"

	t = t.normalized()

	if err := o.requireFolder(ctx, op, t); err != nil {
		return err
	}

	ref, tag, err := o.resolveForACL(ctx, identityName)
	if err != nil {
		return o.opError(op, t, identityName, err)
	}

	o.logger.Info("setting acl",
		slog.String("container", t.Container),
		slog.String("path", t.Path),
		slog.String("identity", identityName),
		slog.String("object_id", ref.ObjectID),
		slog.String("level", string(level)),
	)

	// Container root grant first, as its own step: a failure here is
	// reported independently and stops the folder write; a later
	// folder failure does not roll this back.
	if opts.SetContainerACL {
		if err := o.grantContainerRead(ctx, t, tag, ref.ObjectID); err != nil {
			return o.opError(op, Target{Account: t.Account, Container: t.Container}, identityName, err)
		}
	}

	entries := aclspec.GrantEntries(aclspec.ScopeAccess, tag, ref.ObjectID, level)
	if opts.IncludeDefaultScope {
		entries = append(entries, aclspec.GrantEntries(aclspec.ScopeDefault, tag, ref.ObjectID, level)...)
	}

	if opts.Propagation == PropagateSingleNode {
		if err := o.applySingleNode(ctx, t, entries); err != nil {
			return o.opError(op, t, identityName, err)
		}

		return nil
	}

	if err := o.applyRecursive(ctx, t, dfs.ModeModify, formatEntries(entries)); err != nil {
		return o.opError(op, t, identityName, err)
	}

	return nil
}

// RemoveACL strips every entry for the identity from the target
// folder's ACL, across whichever scopes carry one.
func (o *Ops) RemoveACL(ctx context.Context, t Target, identityName string, opts AclOptions) error {
	const op = "remove acl"

	t = t.normalized()

	if err := o.requireFolder(ctx, op, t); err != nil {
		return err
	}

	ref, tag, err := o.resolveForACL(ctx, identityName)
	if err != nil {
		return o.opError(op, t, identityName, err)
	}

	o.logger.Info("removing acl",
		slog.String("container", t.Container),
		slog.String("path", t.Path),
		slog.String("identity", identityName),
		slog.String("object_id", ref.ObjectID),
	)

	if opts.Propagation == PropagateSingleNode {
		ac, acErr := o.store.GetAccessControl(ctx, t.Container, t.Path)
		if acErr != nil {
			return o.opError(op, t, identityName, acErr)
		}

		if setErr := o.store.SetAccessControl(ctx, t.Container, t.Path, ac.ACL.RemovePrincipal(tag, ref.ObjectID)); setErr != nil {
			return o.opError(op, t, identityName, setErr)
		}

		return nil
	}

	if err := o.applyRecursive(ctx, t, dfs.ModeRemove, aclspec.RemoveSpec(tag, ref.ObjectID)); err != nil {
		return o.opError(op, t, identityName, err)
	}

	return nil
}

// GetACL lists the named-principal entries on the target folder,
// enriched with directory display data. A directory miss for one
// entry degrades that entry instead of aborting the listing.
func (o *Ops) GetACL(ctx context.Context, t Target) ([]AclEntry, error) {
	const op = "get acl"

	t = t.normalized()

	if err := o.requireFolder(ctx, op, t); err != nil {
		return nil, err
	}

	ac, err := o.store.GetAccessControl(ctx, t.Container, t.Path)
	if err != nil {
		return nil, o.opError(op, t, "", err)
	}

	principals := ac.ACL.Principals()
	entries := make([]AclEntry, 0, len(principals))

	for _, e := range principals {
		entry := AclEntry{
			ObjectID:     e.Qualifier,
			Permissions:  e.Perms,
			DefaultScope: e.Scope == aclspec.ScopeDefault,
		}

		ref, lookupErr := o.resolver.ResolveObjectID(ctx, e.Qualifier)
		if lookupErr != nil {
			// Degrade, not fail: the object may have been deleted from
			// the directory while its ACL entry lingers.
			o.logger.Warn("directory lookup failed for acl entry",
				slog.String("object_id", e.Qualifier),
				slog.String("error", lookupErr.Error()),
			)
		} else {
			entry.DisplayName = ref.DisplayName
			entry.Kind = ref.Kind
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// grantContainerRead upserts a read-only mask and a read entry for the
// principal on the container root, single node.
func (o *Ops) grantContainerRead(ctx context.Context, t Target, tag aclspec.Tag, objectID string) error {
	root := Target{Account: t.Account, Container: t.Container}

	ac, err := o.store.GetAccessControl(ctx, root.Container, "")
	if err != nil {
		return err
	}

	acl := ac.ACL.
		Upsert(aclspec.Entry{Scope: aclspec.ScopeAccess, Tag: aclspec.TagMask, Perms: aclspec.PermsRead}).
		Upsert(aclspec.Entry{Scope: aclspec.ScopeAccess, Tag: tag, Qualifier: objectID, Perms: aclspec.PermsRead})

	return o.store.SetAccessControl(ctx, root.Container, "", acl)
}

// applySingleNode read-modify-writes the full ACL of the target path.
func (o *Ops) applySingleNode(ctx context.Context, t Target, entries []aclspec.Entry) error {
	ac, err := o.store.GetAccessControl(ctx, t.Container, t.Path)
	if err != nil {
		return err
	}

	acl := ac.ACL
	for _, e := range entries {
		acl = acl.Upsert(e)
	}

	return o.store.SetAccessControl(ctx, t.Container, t.Path, acl)
}

// applyRecursive delegates to the store's recursive update and turns a
// non-zero failure count into ErrPartialFailure.
func (o *Ops) applyRecursive(ctx context.Context, t Target, mode dfs.UpdateMode, aclText string) error {
	summary, err := o.store.UpdateAccessControlRecursive(ctx, t.Container, t.Path, mode, aclText)
	if err != nil {
		return err
	}

	if summary.FailureCount > 0 {
		return fmt.Errorf("%w: %d of %d entries failed%s",
			ErrPartialFailure,
			summary.FailureCount,
			summary.FailureCount+summary.DirectoriesSuccessful+summary.FilesSuccessful,
			firstFailures(summary.FailedEntries),
		)
	}

	return nil
}

// firstFailures renders up to three failed entries for the error message.
func firstFailures(entries []dfs.FailedEntry) string {
	if len(entries) == 0 {
		return ""
	}

	const maxShown = 3

	shown := entries
	if len(shown) > maxShown {
		shown = shown[:maxShown]
	}

	parts := make([]string, 0, len(shown))
	for _, e := range shown {
		parts = append(parts, fmt.Sprintf("%s (%s)", e.Name, e.ErrorMessage))
	}

	return "; first failures: " + strings.Join(parts, ", ")
}

// formatEntries renders entries in wire form for the recursive update.
func formatEntries(entries []aclspec.Entry) string {
	return aclspec.ACL(entries).Format()
}
