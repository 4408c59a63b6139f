// Package azauth handles Azure AD authentication for the CLI: a
// device-code login against the v2.0 endpoint, plus per-resource token
// sources. Azure access tokens are audience-scoped, so the storage and
// management planes cannot reuse the Graph access token; they mint
// their own from the refresh token saved at login.
package azauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/adlsctl/adlsctl/internal/tokenfile"
)

// Azure AD application registered for adlsctl (public client, multi-tenant).
const defaultClientID = "b06f05b0-95be-4b9c-b4a7-d3ac67dabee3"

// DefaultTenant lets any work or school account sign in; a config
// tenant pins the directory.
const DefaultTenant = "organizations"

// ErrNotLoggedIn is returned when no saved token exists.
var ErrNotLoggedIn = errors.New("azauth: not logged in")

// Resource identifies one token audience and the scopes requested for it.
type Resource struct {
	// Name keys the token file.
	Name   string
	Scopes []string
}

// The three audiences the CLI talks to. Graph is the login resource:
// its token file carries the shared refresh token.
var (
	ResourceGraph = Resource{
		Name: "graph",
		Scopes: []string{
			"offline_access",
			"https://graph.microsoft.com/User.Read",
			"https://graph.microsoft.com/Directory.Read.All",
		},
	}
	ResourceStorage = Resource{
		Name:   "storage",
		Scopes: []string{"offline_access", "https://storage.azure.com/user_impersonation"},
	}
	ResourceARM = Resource{
		Name:   "arm",
		Scopes: []string{"offline_access", "https://management.azure.com/user_impersonation"},
	}
)

// AllResources lists every token file a logout must remove.
var AllResources = []string{ResourceGraph.Name, ResourceStorage.Name, ResourceARM.Name}

// endpoint builds the v2.0 OAuth2 endpoint for a tenant.
func endpoint(tenant string) oauth2.Endpoint {
	base := "https://login.microsoftonline.com/" + tenant + "/oauth2/v2.0"

	return oauth2.Endpoint{
		AuthURL:       base + "/authorize",
		TokenURL:      base + "/token",
		DeviceAuthURL: base + "/devicecode",
	}
}

// oauthConfig builds the oauth2 config for a tenant and resource.
func oauthConfig(tenant string, resource Resource) *oauth2.Config {
	return &oauth2.Config{
		ClientID: defaultClientID,
		Endpoint: endpoint(tenant),
		Scopes:   resource.Scopes,
	}
}

// DeviceAuth holds the device code fields the CLI displays to the user.
type DeviceAuth struct {
	UserCode        string
	VerificationURI string
}

// Login performs the device code flow for the Graph resource and saves
// the resulting token (including the cross-resource refresh token).
// display is called with the user code and verification URL; the call
// then blocks polling until the user authorizes or ctx is canceled.
func Login(
	ctx context.Context,
	store *tokenfile.Store,
	tenant string,
	display func(DeviceAuth),
	logger *slog.Logger,
) error {
	return doLogin(ctx, store, tenant, oauthConfig(tenant, ResourceGraph), display, logger)
}

// doLogin implements the device code flow. Accepts a pre-built
// oauth2.Config so tests can inject a mock endpoint.
func doLogin(
	ctx context.Context,
	store *tokenfile.Store,
	tenant string,
	cfg *oauth2.Config,
	display func(DeviceAuth),
	logger *slog.Logger,
) error {
	logger.Info("starting device code auth flow", slog.String("tenant", tenant))

	da, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return fmt.Errorf("azauth: device auth request failed: %w", err)
	}

	logger.Info("device code received, waiting for user authorization")

	display(DeviceAuth{UserCode: da.UserCode, VerificationURI: da.VerificationURI})

	tok, err := cfg.DeviceAccessToken(ctx, da)
	if err != nil {
		return fmt.Errorf("azauth: device code authorization failed: %w", err)
	}

	if saveErr := store.Save(ResourceGraph.Name, tok, tenant); saveErr != nil {
		return fmt.Errorf("azauth: saving token: %w", saveErr)
	}

	logger.Info("login successful",
		slog.String("path", store.Path(ResourceGraph.Name)),
		slog.Time("expiry", tok.Expiry),
	)

	return nil
}

// Logout removes every saved token file. Missing files are fine
// (already logged out).
func Logout(store *tokenfile.Store, logger *slog.Logger) error {
	if err := store.RemoveAll(AllResources...); err != nil {
		return fmt.Errorf("azauth: removing tokens: %w", err)
	}

	logger.Info("logout: removed saved tokens", slog.String("dir", store.Dir()))

	return nil
}

// TokenSource returns a token source for one resource. It prefers the
// resource's own saved token; when none exists it bootstraps from the
// login resource's refresh token. Refreshed tokens are persisted so
// later invocations skip the refresh round-trip.
//
// ctx must outlive the TokenSource — it is bound into the underlying
// oauth2 source for silent refresh.
func TokenSource(
	ctx context.Context,
	store *tokenfile.Store,
	tenant string,
	resource Resource,
	httpClient *http.Client,
	logger *slog.Logger,
) (*SavingSource, error) {
	tok, savedTenant, err := store.Load(resource.Name)
	if err != nil {
		return nil, err
	}

	if tok == nil || (savedTenant != "" && savedTenant != tenant) {
		// Bootstrap from the login resource's refresh token.
		loginTok, loginTenant, loadErr := store.Load(ResourceGraph.Name)
		if loadErr != nil {
			return nil, loadErr
		}

		if loginTok == nil || loginTok.RefreshToken == "" {
			return nil, ErrNotLoggedIn
		}

		if loginTenant != "" && loginTenant != tenant {
			return nil, fmt.Errorf("azauth: saved login is for tenant %q, config wants %q (re-login required)", loginTenant, tenant)
		}

		// Force a refresh-grant exchange for this resource's audience.
		tok = &oauth2.Token{RefreshToken: loginTok.RefreshToken}
	}

	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}

	cfg := oauthConfig(tenant, resource)

	src := &SavingSource{
		src:      cfg.TokenSource(ctx, tok),
		store:    store,
		resource: resource.Name,
		tenant:   tenant,
		logger:   logger,
	}

	// A still-valid saved token needs no re-persist on first use.
	if tok.Valid() {
		src.lastAccess = tok.AccessToken
	}

	return src, nil
}

// SavingSource adapts an oauth2.TokenSource to the transport's
// interface and persists tokens whenever a refresh produced a new one.
type SavingSource struct {
	mu         sync.Mutex
	src        oauth2.TokenSource
	store      *tokenfile.Store
	resource   string
	tenant     string
	lastAccess string
	logger     *slog.Logger
}

// Token returns a valid bearer token, refreshing and persisting as
// needed.
func (s *SavingSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.src.Token()
	if err != nil {
		return "", fmt.Errorf("azauth: obtaining token for %s: %w", s.resource, err)
	}

	if tok.AccessToken != s.lastAccess {
		if saveErr := s.store.Save(s.resource, tok, s.tenant); saveErr != nil {
			// Persisting is best-effort: the in-memory token still works
			// for this invocation.
			s.logger.Warn("failed to persist refreshed token",
				slog.String("resource", s.resource),
				slog.String("error", saveErr.Error()),
			)
		} else {
			s.logger.Debug("persisted refreshed token",
				slog.String("resource", s.resource),
				slog.Time("expiry", tok.Expiry),
			)
		}

		s.lastAccess = tok.AccessToken
	}

	return tok.AccessToken, nil
}
