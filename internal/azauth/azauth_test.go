package azauth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/adlsctl/adlsctl/internal/tokenfile"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockAuthServer mimics the two endpoints the device code flow uses.
func mockAuthServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/devicecode", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, defaultClientID, r.Form.Get("client_id"))
		assert.Contains(t, r.Form.Get("scope"), "offline_access")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"device_code":      "dev-code-1",
			"user_code":        "ABCD-1234",
			"verification_uri": "https://microsoft.com/devicelogin",
			"expires_in":       900,
			"interval":         1,
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-" + r.Form.Get("grant_type"),
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func mockConfig(server *httptest.Server, resource Resource) *oauth2.Config {
	return &oauth2.Config{
		ClientID: defaultClientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:      server.URL + "/token",
			DeviceAuthURL: server.URL + "/devicecode",
		},
		Scopes: resource.Scopes,
	}
}

func TestDoLogin_SavesToken(t *testing.T) {
	server := mockAuthServer(t)
	store := tokenfile.NewStore(t.TempDir())

	var shown DeviceAuth
	display := func(da DeviceAuth) { shown = da }

	err := doLogin(context.Background(), store, "organizations",
		mockConfig(server, ResourceGraph), display, testLogger())
	require.NoError(t, err)

	assert.Equal(t, "ABCD-1234", shown.UserCode)
	assert.Equal(t, "https://microsoft.com/devicelogin", shown.VerificationURI)

	tok, tenant, err := store.Load(ResourceGraph.Name)
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "refresh-1", tok.RefreshToken)
	assert.Equal(t, "organizations", tenant)
}

func TestLogout_RemovesAllTokens(t *testing.T) {
	store := tokenfile.NewStore(t.TempDir())
	for _, name := range AllResources {
		require.NoError(t, store.Save(name, &oauth2.Token{AccessToken: "x"}, "t"))
	}

	require.NoError(t, Logout(store, testLogger()))

	for _, name := range AllResources {
		tok, _, err := store.Load(name)
		require.NoError(t, err)
		assert.Nil(t, tok, "token %s should be gone", name)
	}
}

func TestLogout_AlreadyLoggedOut(t *testing.T) {
	store := tokenfile.NewStore(t.TempDir())
	assert.NoError(t, Logout(store, testLogger()))
}

func TestTokenSource_NotLoggedIn(t *testing.T) {
	store := tokenfile.NewStore(t.TempDir())

	_, err := TokenSource(context.Background(), store, "organizations",
		ResourceStorage, nil, testLogger())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestTokenSource_UsesSavedValidToken(t *testing.T) {
	store := tokenfile.NewStore(t.TempDir())
	require.NoError(t, store.Save(ResourceStorage.Name, &oauth2.Token{
		AccessToken: "saved-access",
		Expiry:      time.Now().Add(time.Hour),
	}, "organizations"))

	src, err := TokenSource(context.Background(), store, "organizations",
		ResourceStorage, nil, testLogger())
	require.NoError(t, err)

	// No HTTP client wired: any refresh attempt would fail, proving
	// the saved token was used as-is.
	token, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "saved-access", token)
}

func TestTokenSource_BootstrapsFromLoginRefreshToken(t *testing.T) {
	server := mockAuthServer(t)
	store := tokenfile.NewStore(t.TempDir())

	// Only the login resource has a token; storage must mint its own
	// via the refresh grant.
	require.NoError(t, store.Save(ResourceGraph.Name, &oauth2.Token{
		AccessToken:  "graph-access",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(time.Hour),
	}, "organizations"))

	src, err := TokenSource(context.Background(), store, "organizations",
		ResourceStorage, server.Client(), testLogger())
	require.NoError(t, err)

	// Redirect the refresh grant at the mock server.
	src.src = mockConfig(server, ResourceStorage).
		TokenSource(context.Background(), &oauth2.Token{RefreshToken: "refresh-1"})

	token, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "access-refresh_token", token)

	// The minted token is persisted under the storage resource.
	saved, tenant, err := store.Load(ResourceStorage.Name)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "access-refresh_token", saved.AccessToken)
	assert.Equal(t, "organizations", tenant)
}

func TestTokenSource_TenantMismatch(t *testing.T) {
	store := tokenfile.NewStore(t.TempDir())
	require.NoError(t, store.Save(ResourceGraph.Name, &oauth2.Token{
		AccessToken:  "graph-access",
		RefreshToken: "refresh-1",
	}, "contoso.onmicrosoft.com"))

	_, err := TokenSource(context.Background(), store, "fabrikam.onmicrosoft.com",
		ResourceGraph, nil, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "re-login required")
}

func TestSavingSource_DoesNotRewriteUnchangedToken(t *testing.T) {
	store := tokenfile.NewStore(t.TempDir())
	require.NoError(t, store.Save(ResourceARM.Name, &oauth2.Token{
		AccessToken: "stable",
		Expiry:      time.Now().Add(time.Hour),
	}, "organizations"))

	src, err := TokenSource(context.Background(), store, "organizations",
		ResourceARM, nil, testLogger())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		token, tokErr := src.Token()
		require.NoError(t, tokErr)
		assert.Equal(t, "stable", token)
	}
}

func TestEndpoint_TenantInURLs(t *testing.T) {
	ep := endpoint("contoso.onmicrosoft.com")
	assert.Equal(t, "https://login.microsoftonline.com/contoso.onmicrosoft.com/oauth2/v2.0/token", ep.TokenURL)
	assert.Equal(t, "https://login.microsoftonline.com/contoso.onmicrosoft.com/oauth2/v2.0/devicecode", ep.DeviceAuthURL)
}
