package lakeops

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adlsctl/adlsctl/internal/aclspec"
	"github.com/adlsctl/adlsctl/internal/dfs"
	"github.com/adlsctl/adlsctl/internal/identity"
	"github.com/adlsctl/adlsctl/internal/rest"
)

// baseACL is the ACL a fresh path starts with.
const baseACL = "user::rwx,group::r-x,other::---"

// fakeStore is an in-memory Store with real enough ACL semantics for
// orchestration tests: paths carry ACLs, recursive updates walk the
// subtree, and any call can be forced to fail.
type fakeStore struct {
	// acls maps "filesystem/path" (path may be empty for the root) to
	// the path's ACL.
	acls map[string]aclspec.ACL

	// failWith, when set, makes the named calls fail.
	failWith map[string]error

	// recursiveSummary, when set, is returned by recursive updates
	// instead of walking state.
	recursiveSummary *dfs.RecursiveSummary

	calls []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		acls:     make(map[string]aclspec.ACL),
		failWith: make(map[string]error),
	}
}

func (f *fakeStore) key(filesystem, path string) string {
	return filesystem + "/" + path
}

func (f *fakeStore) addPath(filesystem, path string) {
	acl, _ := aclspec.Parse(baseACL)
	f.acls[f.key(filesystem, path)] = acl
}

func (f *fakeStore) record(call string) error {
	f.calls = append(f.calls, call)
	return f.failWith[strings.SplitN(call, " ", 2)[0]]
}

func (f *fakeStore) Exists(_ context.Context, filesystem, path string) (bool, error) {
	if err := f.record("exists " + f.key(filesystem, path)); err != nil {
		return false, err
	}

	_, ok := f.acls[f.key(filesystem, path)]

	return ok, nil
}

func (f *fakeStore) CreateDirectory(_ context.Context, filesystem, path string, failIfExists bool) error {
	if err := f.record("create " + f.key(filesystem, path)); err != nil {
		return err
	}

	if _, ok := f.acls[f.key(filesystem, path)]; ok && failIfExists {
		return &rest.Error{StatusCode: 412, Code: "PathAlreadyExists", Err: rest.ErrPreconditionFailed}
	}

	f.addPath(filesystem, path)

	return nil
}

func (f *fakeStore) DeleteDirectory(_ context.Context, filesystem, path string) error {
	if err := f.record("delete " + f.key(filesystem, path)); err != nil {
		return err
	}

	key := f.key(filesystem, path)
	if _, ok := f.acls[key]; !ok {
		return &rest.Error{StatusCode: 404, Code: "PathNotFound", Err: rest.ErrNotFound}
	}

	for k := range f.acls {
		if k == key || strings.HasPrefix(k, key+"/") {
			delete(f.acls, k)
		}
	}

	return nil
}

func (f *fakeStore) Rename(_ context.Context, srcFS, srcPath, destFS, destPath string) error {
	if err := f.record(fmt.Sprintf("rename %s -> %s", f.key(srcFS, srcPath), f.key(destFS, destPath))); err != nil {
		return err
	}

	src := f.key(srcFS, srcPath)

	acl, ok := f.acls[src]
	if !ok {
		return &rest.Error{StatusCode: 404, Code: "PathNotFound", Err: rest.ErrNotFound}
	}

	delete(f.acls, src)
	f.acls[f.key(destFS, destPath)] = acl

	return nil
}

func (f *fakeStore) GetAccessControl(_ context.Context, filesystem, path string) (*dfs.AccessControl, error) {
	if err := f.record("getacl " + f.key(filesystem, path)); err != nil {
		return nil, err
	}

	acl, ok := f.acls[f.key(filesystem, path)]
	if !ok {
		return nil, &rest.Error{StatusCode: 404, Code: "PathNotFound", Err: rest.ErrNotFound}
	}

	return &dfs.AccessControl{Owner: "$superuser", Group: "$superuser", ACL: acl}, nil
}

func (f *fakeStore) SetAccessControl(_ context.Context, filesystem, path string, acl aclspec.ACL) error {
	if err := f.record("setacl " + f.key(filesystem, path)); err != nil {
		return err
	}

	f.acls[f.key(filesystem, path)] = acl

	return nil
}

func (f *fakeStore) UpdateAccessControlRecursive(
	_ context.Context, filesystem, path string, mode dfs.UpdateMode, aclText string,
) (*dfs.RecursiveSummary, error) {
	if err := f.record(fmt.Sprintf("recursive %s %s %s", mode, f.key(filesystem, path), aclText)); err != nil {
		return nil, err
	}

	if f.recursiveSummary != nil {
		return f.recursiveSummary, nil
	}

	prefix := f.key(filesystem, path)

	var touched int64

	for k, acl := range f.acls {
		if k != prefix && !strings.HasPrefix(k, prefix+"/") {
			continue
		}

		switch mode {
		case dfs.ModeModify:
			entries, err := aclspec.Parse(aclText)
			if err != nil {
				return nil, err
			}

			for _, e := range entries {
				acl = acl.Upsert(e)
			}
		case dfs.ModeRemove:
			for _, spec := range strings.Split(aclText, ",") {
				fields := strings.Split(spec, ":")
				if fields[0] == "default" {
					fields = fields[1:]
				}

				acl = acl.RemovePrincipal(aclspec.Tag(fields[0]), fields[1])
			}
		}

		f.acls[k] = acl
		touched++
	}

	return &dfs.RecursiveSummary{DirectoriesSuccessful: touched}, nil
}

// fakeResolver resolves from a fixed name table.
type fakeResolver struct {
	refs    map[string]identity.Reference
	byID    map[string]identity.Reference
	idErr   error
	nameErr error
}

func (f *fakeResolver) Resolve(_ context.Context, name string) (identity.Reference, error) {
	if f.nameErr != nil {
		return identity.Reference{}, f.nameErr
	}

	ref, ok := f.refs[name]
	if !ok {
		return identity.Reference{}, fmt.Errorf("identity: %q: %w", name, identity.ErrNotFound)
	}

	return ref, nil
}

func (f *fakeResolver) ResolveObjectID(_ context.Context, id string) (identity.Reference, error) {
	if f.idErr != nil {
		return identity.Reference{}, f.idErr
	}

	ref, ok := f.byID[id]
	if !ok {
		return identity.Reference{}, fmt.Errorf("identity: %q: %w", id, identity.ErrNotFound)
	}

	return ref, nil
}

func aliceResolver() *fakeResolver {
	alice := identity.Reference{ObjectID: "oid-alice", Kind: identity.KindUser, DisplayName: "Alice Adams"}
	readers := identity.Reference{ObjectID: "oid-readers", Kind: identity.KindGroup, DisplayName: "Data Readers"}

	return &fakeResolver{
		refs: map[string]identity.Reference{
			"alice@example.com": alice,
			"Data Readers":      readers,
		},
		byID: map[string]identity.Reference{
			"oid-alice":   alice,
			"oid-readers": readers,
		},
	}
}

func testTarget(path string) Target {
	return Target{Account: "mylake", Container: "dataset1", Path: path}
}

func TestCreateFolder_Idempotent(t *testing.T) {
	store := newFakeStore()
	ops := New(store, aliceResolver(), nil)

	f, err := ops.CreateFolder(context.Background(), testTarget("sampleA"), false)
	require.NoError(t, err)
	assert.Equal(t, "sampleA", f.Path)

	// Second create with errorIfExists=false succeeds.
	f, err = ops.CreateFolder(context.Background(), testTarget("sampleA"), false)
	require.NoError(t, err)
	assert.Equal(t, "sampleA", f.Path)
}

func TestCreateFolder_ErrorIfExists(t *testing.T) {
	store := newFakeStore()
	ops := New(store, aliceResolver(), nil)

	_, err := ops.CreateFolder(context.Background(), testTarget("sampleA"), true)
	require.NoError(t, err)

	_, err = ops.CreateFolder(context.Background(), testTarget("sampleA"), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "mylake", opErr.Account)
	assert.Equal(t, "create folder", opErr.Op)
}

func TestCreateFolder_NormalizesSeparators(t *testing.T) {
	store := newFakeStore()
	ops := New(store, aliceResolver(), nil)

	f, err := ops.CreateFolder(context.Background(), testTarget(`\dataset\raw`), false)
	require.NoError(t, err)
	assert.Equal(t, "dataset/raw", f.Path)
}

func TestDeleteFolder_MissingIsNoOp(t *testing.T) {
	store := newFakeStore()
	ops := New(store, aliceResolver(), nil)

	err := ops.DeleteFolder(context.Background(), testTarget("ghost"), false)
	assert.NoError(t, err)
}

func TestDeleteFolder_ErrorIfMissing(t *testing.T) {
	store := newFakeStore()
	ops := New(store, aliceResolver(), nil)

	err := ops.DeleteFolder(context.Background(), testTarget("ghost"), true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteFolder_RemovesSubtree(t *testing.T) {
	store := newFakeStore()
	store.addPath("dataset1", "sampleA")
	store.addPath("dataset1", "sampleA/raw")

	ops := New(store, aliceResolver(), nil)

	require.NoError(t, ops.DeleteFolder(context.Background(), testTarget("sampleA"), false))
	assert.NotContains(t, store.acls, "dataset1/sampleA/raw")
}

func TestMoveFolder_DefaultsDestContainer(t *testing.T) {
	store := newFakeStore()
	store.addPath("dataset1", "sampleA")

	ops := New(store, aliceResolver(), nil)

	f, err := ops.MoveFolder(context.Background(), testTarget("sampleA"), "", "archive/sampleA")
	require.NoError(t, err)

	assert.Equal(t, "dataset1", f.Container)
	assert.Contains(t, store.acls, "dataset1/archive/sampleA")
	assert.NotContains(t, store.acls, "dataset1/sampleA")
}

func TestMoveFolder_CrossContainer(t *testing.T) {
	store := newFakeStore()
	store.addPath("dataset1", "sampleA")

	ops := New(store, aliceResolver(), nil)

	f, err := ops.MoveFolder(context.Background(), testTarget("sampleA"), "backup", "sampleA")
	require.NoError(t, err)

	assert.Equal(t, "backup", f.Container)
	assert.Contains(t, store.acls, "backup/sampleA")
}

func TestMoveFolder_ProviderErrorSurfaced(t *testing.T) {
	store := newFakeStore()
	store.failWith["rename"] = errors.New("connection reset")

	ops := New(store, aliceResolver(), nil)

	_, err := ops.MoveFolder(context.Background(), testTarget("sampleA"), "", "dest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}
