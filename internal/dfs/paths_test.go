package dfs

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adlsctl/adlsctl/internal/rest"
)

// staticToken is a test TokenSource that returns a fixed token.
type staticToken string

func (t staticToken) Token() (string, error) {
	return string(t), nil
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()

	return NewClient(url, http.DefaultClient, staticToken("test-token"), slog.Default())
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "https://mylake.dfs.core.windows.net", EndpointURL("mylake"))
}

func TestCreateDirectory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/dataset1/sampleA", r.URL.Path)
		assert.Equal(t, "directory", r.URL.Query().Get("resource"))
		assert.Empty(t, r.Header.Get("If-None-Match"))

		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).CreateDirectory(context.Background(), "dataset1", "sampleA", false)
	require.NoError(t, err)
}

func TestCreateDirectory_FailIfExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "*", r.Header.Get("If-None-Match"))

		w.Header().Set("x-ms-error-code", "PathAlreadyExists")
		w.WriteHeader(http.StatusPreconditionFailed)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).CreateDirectory(context.Background(), "dataset1", "sampleA", true)
	assert.ErrorIs(t, err, rest.ErrPreconditionFailed)
}

func TestCreateDirectory_EncodesSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fs/sample%20set/v%231", r.URL.EscapedPath())
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).CreateDirectory(context.Background(), "fs", "sample set/v#1", false)
	require.NoError(t, err)
}

func TestDeleteDirectory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/dataset1/sampleA", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("recursive"))

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).DeleteDirectory(context.Background(), "dataset1", "sampleA")
	require.NoError(t, err)
}

func TestDeleteDirectory_Missing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("x-ms-error-code", "PathNotFound")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).DeleteDirectory(context.Background(), "dataset1", "gone")
	assert.ErrorIs(t, err, rest.ErrNotFound)
}

func TestRename(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/archive/sampleA", r.URL.Path)
		assert.Equal(t, "legacy", r.URL.Query().Get("mode"))
		assert.Equal(t, "/dataset1/sampleA", r.Header.Get("x-ms-rename-source"))

		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).Rename(context.Background(), "dataset1", "sampleA", "archive", "sampleA")
	require.NoError(t, err)
}

func TestExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "getStatus", r.URL.Query().Get("action"))

		if r.URL.Path == "/dataset1/present" {
			w.WriteHeader(http.StatusOK)
			return
		}

		w.Header().Set("x-ms-error-code", "PathNotFound")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	ok, err := client.Exists(context.Background(), "dataset1", "present")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.Exists(context.Background(), "dataset1", "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExists_RootPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dataset1/", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ok, err := newTestClient(t, srv.URL).Exists(context.Background(), "dataset1", "")
	require.NoError(t, err)
	assert.True(t, ok)
}
