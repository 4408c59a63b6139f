// Package aclspec models POSIX-style access control entries for a
// hierarchical-namespace storage account and implements the x-ms-acl
// text codec. It is a leaf package: pure value manipulation, no I/O.
//
// The wire format is a comma-separated list of entries, each
// "[default:]tag:qualifier:perms", e.g.
//
//	user::rwx,group::r-x,other::---,user:1234-abcd:r-x,default:user:1234-abcd:r-x
//
// Qualifier is empty for the owning user/group and for other/mask
// entries; otherwise it is a directory object ID.
package aclspec

import (
	"fmt"
	"strings"
)

// Tag identifies the principal category of an ACL entry.
type Tag string

// Entry tags recognized by the store.
const (
	TagUser  Tag = "user"
	TagGroup Tag = "group"
	TagOther Tag = "other"
	TagMask  Tag = "mask"
)

// Scope distinguishes access entries (effective on the node itself)
// from default entries (inherited by new children).
type Scope int

const (
	ScopeAccess Scope = iota
	ScopeDefault
)

// String returns "access" or "default".
func (s Scope) String() string {
	if s == ScopeDefault {
		return "default"
	}

	return "access"
}

// AccessLevel is the caller-facing permission vocabulary. The mapping
// to rwx triplets is fixed and exhaustive — there are no other levels.
type AccessLevel string

const (
	AccessRead  AccessLevel = "Read"
	AccessWrite AccessLevel = "Write"
)

// Permission triplets for the two access levels and the mask entries.
const (
	PermsRead    = "r-x"
	PermsWrite   = "rwx"
	PermsNone    = "---"
	permsCharLen = 3
)

// ParseAccessLevel validates a caller-supplied access level string.
// Matching is case-sensitive: the vocabulary is exactly Read and Write.
func ParseAccessLevel(s string) (AccessLevel, error) {
	switch AccessLevel(s) {
	case AccessRead, AccessWrite:
		return AccessLevel(s), nil
	default:
		return "", fmt.Errorf("aclspec: invalid access level %q (want Read or Write)", s)
	}
}

// Perms returns the rwx triplet for the access level.
func (a AccessLevel) Perms() string {
	if a == AccessWrite {
		return PermsWrite
	}

	return PermsRead
}

// Entry is a single access control entry. Qualifier is empty for
// owner/group/other/mask entries, otherwise a directory object ID.
type Entry struct {
	Scope     Scope
	Tag       Tag
	Qualifier string
	Perms     string
}

// HasPrincipal reports whether the entry names a specific directory
// object (as opposed to the owning user/group, other, or mask).
func (e Entry) HasPrincipal() bool {
	return e.Qualifier != ""
}

// key is the identity of an entry within an ACL: at most one entry may
// exist per (scope, tag, qualifier).
type key struct {
	scope     Scope
	tag       Tag
	qualifier string
}

func (e Entry) keyOf() key {
	return key{scope: e.Scope, tag: e.Tag, qualifier: e.Qualifier}
}

// String renders the entry in x-ms-acl wire form.
func (e Entry) String() string {
	var b strings.Builder

	if e.Scope == ScopeDefault {
		b.WriteString("default:")
	}

	b.WriteString(string(e.Tag))
	b.WriteByte(':')
	b.WriteString(e.Qualifier)
	b.WriteByte(':')
	b.WriteString(e.Perms)

	return b.String()
}

// ACL is an ordered collection of entries. Order is preserved across
// parse/format and mutation so writes do not churn unrelated entries.
type ACL []Entry

// Parse decodes an x-ms-acl header value. An empty input yields an
// empty ACL. Entries must have a known tag and a 3-character
// permission triplet; default-scoped entries carry a leading
// "default:" element.
func Parse(text string) (ACL, error) {
	if strings.TrimSpace(text) == "" {
		return ACL{}, nil
	}

	parts := strings.Split(text, ",")
	acl := make(ACL, 0, len(parts))

	for _, raw := range parts {
		entry, err := parseEntry(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}

		acl = append(acl, entry)
	}

	return acl, nil
}

func parseEntry(raw string) (Entry, error) {
	fields := strings.Split(raw, ":")

	entry := Entry{Scope: ScopeAccess}

	if len(fields) == 4 {
		if fields[0] != "default" {
			return Entry{}, fmt.Errorf("aclspec: entry %q: expected default scope prefix, got %q", raw, fields[0])
		}

		entry.Scope = ScopeDefault
		fields = fields[1:]
	}

	if len(fields) != 3 {
		return Entry{}, fmt.Errorf("aclspec: malformed entry %q", raw)
	}

	switch Tag(fields[0]) {
	case TagUser, TagGroup, TagOther, TagMask:
		entry.Tag = Tag(fields[0])
	default:
		return Entry{}, fmt.Errorf("aclspec: entry %q: unknown tag %q", raw, fields[0])
	}

	entry.Qualifier = fields[1]

	if len(fields[2]) != permsCharLen {
		return Entry{}, fmt.Errorf("aclspec: entry %q: permissions %q are not a 3-character triplet", raw, fields[2])
	}

	entry.Perms = fields[2]

	return entry, nil
}

// Format renders the ACL in x-ms-acl wire form.
func (a ACL) Format() string {
	parts := make([]string, 0, len(a))
	for _, e := range a {
		parts = append(parts, e.String())
	}

	return strings.Join(parts, ",")
}

// Upsert sets the permissions for the entry's (scope, tag, qualifier),
// replacing an existing entry in place or appending a new one. The
// returned ACL is a copy; the receiver is not modified.
func (a ACL) Upsert(entry Entry) ACL {
	out := make(ACL, len(a))
	copy(out, a)

	k := entry.keyOf()
	for i := range out {
		if out[i].keyOf() == k {
			out[i].Perms = entry.Perms
			return out
		}
	}

	return append(out, entry)
}

// RemovePrincipal drops every entry naming the given (tag, qualifier)
// across both scopes. Ownerless entries never match. The returned ACL
// is a copy; the receiver is not modified.
func (a ACL) RemovePrincipal(tag Tag, qualifier string) ACL {
	out := make(ACL, 0, len(a))

	for _, e := range a {
		if e.Tag == tag && e.HasPrincipal() && e.Qualifier == qualifier {
			continue
		}

		out = append(out, e)
	}

	return out
}

// Principals returns the entries that name a specific directory object,
// in order. Owner/group/other/mask entries are skipped.
func (a ACL) Principals() []Entry {
	var out []Entry

	for _, e := range a {
		if e.HasPrincipal() {
			out = append(out, e)
		}
	}

	return out
}

// Find returns the entry for (scope, tag, qualifier) and whether it exists.
func (a ACL) Find(scope Scope, tag Tag, qualifier string) (Entry, bool) {
	k := key{scope: scope, tag: tag, qualifier: qualifier}
	for _, e := range a {
		if e.keyOf() == k {
			return e, true
		}
	}

	return Entry{}, false
}

// GrantEntries assembles the entries a grant writes for one scope: the
// rwx mask required for named-principal entries to be effective, plus
// the principal entry itself.
func GrantEntries(scope Scope, tag Tag, objectID string, level AccessLevel) []Entry {
	return []Entry{
		{Scope: scope, Tag: TagMask, Perms: PermsWrite},
		{Scope: scope, Tag: tag, Qualifier: objectID, Perms: level.Perms()},
	}
}

// RemoveSpec renders the partial entries (no permission field) that the
// store's recursive remove mode expects for the given principal, one
// per scope: "user:oid,default:user:oid".
func RemoveSpec(tag Tag, objectID string) string {
	access := fmt.Sprintf("%s:%s", tag, objectID)

	return access + ",default:" + access
}

// NormalizePath canonicalizes a caller-supplied folder path: backslash
// separators become forward slashes and a single leading separator is
// stripped. The empty string addresses the container root.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.TrimPrefix(p, "/")

	return p
}
