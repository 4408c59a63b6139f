package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adlsctl/adlsctl/internal/aclspec"
	"github.com/adlsctl/adlsctl/internal/graph"
)

// fakeDirectory is an in-memory Directory keyed by lookup name.
type fakeDirectory struct {
	users             map[string]*graph.Object
	groups            map[string]*graph.Object
	servicePrincipals map[string]*graph.Object
	objects           map[string]*graph.Object
	err               error
}

func (f *fakeDirectory) FindUser(_ context.Context, name string) (*graph.Object, error) {
	return f.users[name], f.err
}

func (f *fakeDirectory) FindGroup(_ context.Context, name string) (*graph.Object, error) {
	return f.groups[name], f.err
}

func (f *fakeDirectory) FindServicePrincipal(_ context.Context, name string) (*graph.Object, error) {
	return f.servicePrincipals[name], f.err
}

func (f *fakeDirectory) ObjectByID(_ context.Context, id string) (*graph.Object, error) {
	if obj, ok := f.objects[id]; ok {
		return obj, nil
	}

	return nil, errors.New("object not found")
}

func TestResolve_UserWinsOverGroup(t *testing.T) {
	dir := &fakeDirectory{
		users:  map[string]*graph.Object{"finance": {ID: "oid-user", DisplayName: "Finance"}},
		groups: map[string]*graph.Object{"finance": {ID: "oid-group", DisplayName: "Finance"}},
	}

	ref, err := NewResolver(dir, nil).Resolve(context.Background(), "finance")
	require.NoError(t, err)

	assert.Equal(t, "oid-user", ref.ObjectID)
	assert.Equal(t, KindUser, ref.Kind)
}

func TestResolve_GroupWhenNoUser(t *testing.T) {
	dir := &fakeDirectory{
		groups: map[string]*graph.Object{"Data Readers": {ID: "oid-grp", DisplayName: "Data Readers"}},
	}

	ref, err := NewResolver(dir, nil).Resolve(context.Background(), "Data Readers")
	require.NoError(t, err)

	assert.Equal(t, KindGroup, ref.Kind)
	assert.Equal(t, "oid-grp", ref.ObjectID)
	assert.Equal(t, "Data Readers", ref.DisplayName)
}

func TestResolve_ServicePrincipalLast(t *testing.T) {
	dir := &fakeDirectory{
		servicePrincipals: map[string]*graph.Object{"etl-app": {ID: "oid-sp", DisplayName: "etl-app"}},
	}

	ref, err := NewResolver(dir, nil).Resolve(context.Background(), "etl-app")
	require.NoError(t, err)
	assert.Equal(t, KindServicePrincipal, ref.Kind)
}

func TestResolve_NotFound(t *testing.T) {
	dir := &fakeDirectory{}

	_, err := NewResolver(dir, nil).Resolve(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_DirectoryError(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("directory unavailable")}

	_, err := NewResolver(dir, nil).Resolve(context.Background(), "alice@example.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "directory unavailable")
}

func TestResolveObjectID(t *testing.T) {
	dir := &fakeDirectory{
		objects: map[string]*graph.Object{
			"oid-grp": {ID: "oid-grp", DisplayName: "Data Readers", ODataType: "#microsoft.graph.group"},
		},
	}

	ref, err := NewResolver(dir, nil).ResolveObjectID(context.Background(), "oid-grp")
	require.NoError(t, err)

	assert.Equal(t, KindGroup, ref.Kind)
	assert.Equal(t, "Data Readers", ref.DisplayName)
}

func TestKind_PrincipalType(t *testing.T) {
	assert.Equal(t, aclspec.TagUser, KindUser.PrincipalType())
	assert.Equal(t, aclspec.TagGroup, KindGroup.PrincipalType())
	// The store has no principal kind for applications; service
	// principals are written as user entries.
	assert.Equal(t, aclspec.TagUser, KindServicePrincipal.PrincipalType())
	assert.Equal(t, aclspec.Tag(""), KindUnknown.PrincipalType())
}

func TestOdataTypeKind(t *testing.T) {
	assert.Equal(t, KindUser, odataTypeKind("#microsoft.graph.user"))
	assert.Equal(t, KindServicePrincipal, odataTypeKind("#microsoft.graph.servicePrincipal"))
	assert.Equal(t, KindUnknown, odataTypeKind("#microsoft.graph.device"))
	assert.Equal(t, KindUnknown, odataTypeKind(""))
}
