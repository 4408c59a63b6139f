// Package identity resolves human-readable identity names to directory
// object references. A name is tried as a user principal name, then a
// group display name, then a service principal display name; the first
// category that matches wins, so a display name that exists both as a
// user and a group resolves to the user.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/adlsctl/adlsctl/internal/aclspec"
	"github.com/adlsctl/adlsctl/internal/graph"
)

// ErrNotFound is returned when a name matches none of the three
// directory categories.
var ErrNotFound = errors.New("identity: not found in directory")

// Kind is the directory category a reference resolved to. The zero
// value means unresolved.
type Kind int

const (
	KindUnknown Kind = iota
	KindUser
	KindGroup
	KindServicePrincipal
)

// String returns the caller-facing category name.
func (k Kind) String() string {
	switch k {
	case KindUser:
		return "User"
	case KindGroup:
		return "Group"
	case KindServicePrincipal:
		return "ServicePrincipal"
	default:
		return "Unknown"
	}
}

// PrincipalType maps the directory category onto the store's ACL entry
// tag vocabulary. The store only distinguishes user and group
// principals, so service principals are written as user entries.
// Unknown kinds map to an empty tag, which no ACL entry will carry.
func (k Kind) PrincipalType() aclspec.Tag {
	switch k {
	case KindUser, KindServicePrincipal:
		return aclspec.TagUser
	case KindGroup:
		return aclspec.TagGroup
	default:
		return ""
	}
}

// Reference is a resolved directory identity. Immutable, produced
// fresh per resolution; never cached.
type Reference struct {
	ObjectID    string
	Kind        Kind
	DisplayName string
}

// Directory is the subset of the Graph client the resolver needs.
type Directory interface {
	FindUser(ctx context.Context, principalName string) (*graph.Object, error)
	FindGroup(ctx context.Context, displayName string) (*graph.Object, error)
	FindServicePrincipal(ctx context.Context, displayName string) (*graph.Object, error)
	ObjectByID(ctx context.Context, objectID string) (*graph.Object, error)
}

// Resolver resolves names and object IDs against a directory.
type Resolver struct {
	dir    Directory
	logger *slog.Logger
}

// NewResolver creates a Resolver over the given directory client.
func NewResolver(dir Directory, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{dir: dir, logger: logger}
}

// Resolve looks up a name as user, then group, then service principal.
// Each lookup is an exact match; the first hit is authoritative and no
// ambiguity detection is attempted. Returns ErrNotFound when all three
// categories miss.
func (r *Resolver) Resolve(ctx context.Context, name string) (Reference, error) {
	lookups := []struct {
		kind Kind
		find func(context.Context, string) (*graph.Object, error)
	}{
		{KindUser, r.dir.FindUser},
		{KindGroup, r.dir.FindGroup},
		{KindServicePrincipal, r.dir.FindServicePrincipal},
	}

	for _, l := range lookups {
		obj, err := l.find(ctx, name)
		if err != nil {
			return Reference{}, fmt.Errorf("identity: resolving %q as %s: %w", name, l.kind, err)
		}

		if obj != nil {
			r.logger.Debug("identity resolved",
				slog.String("name", name),
				slog.String("object_id", obj.ID),
				slog.String("kind", l.kind.String()),
			)

			return Reference{ObjectID: obj.ID, Kind: l.kind, DisplayName: obj.DisplayName}, nil
		}
	}

	return Reference{}, fmt.Errorf("identity: %q: %w", name, ErrNotFound)
}

// odataTypeKind maps the @odata.type discriminator of a directory
// object onto Kind.
func odataTypeKind(odataType string) Kind {
	switch strings.TrimPrefix(odataType, "#microsoft.graph.") {
	case "user":
		return KindUser
	case "group":
		return KindGroup
	case "servicePrincipal":
		return KindServicePrincipal
	default:
		return KindUnknown
	}
}

// ResolveObjectID looks an object ID back up for display purposes.
// Returns ErrNotFound when the directory has no object with that ID.
func (r *Resolver) ResolveObjectID(ctx context.Context, objectID string) (Reference, error) {
	obj, err := r.dir.ObjectByID(ctx, objectID)
	if err != nil {
		return Reference{}, fmt.Errorf("identity: looking up object %q: %w", objectID, err)
	}

	return Reference{
		ObjectID:    obj.ID,
		Kind:        odataTypeKind(obj.ODataType),
		DisplayName: obj.DisplayName,
	}, nil
}
