// Package graph queries the Microsoft Graph directory: users, groups,
// service principals, and reverse lookups by object ID. It owns OData
// filter construction (including quote escaping) so callers never
// concatenate filter strings themselves.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/adlsctl/adlsctl/internal/rest"
)

// BaseURL is the production Graph endpoint.
const BaseURL = "https://graph.microsoft.com/v1.0"

// Client wraps the shared transport with directory-specific calls.
type Client struct {
	rest   *rest.Client
	logger *slog.Logger
}

// NewClient creates a directory client. baseURL is typically BaseURL;
// tests point it at an httptest server.
func NewClient(baseURL string, httpClient *http.Client, token rest.TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		rest:   rest.NewClient(baseURL, httpClient, token, logger),
		logger: logger,
	}
}

// Object is a directory object in any of the three categories this
// system resolves. UserPrincipalName is empty for groups and service
// principals.
type Object struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName"`
	// ODataType is the @odata.type discriminator, set on reverse
	// lookups ("#microsoft.graph.user" etc.).
	ODataType string `json:"@odata.type"` //nolint:tagliatelle // OData annotation key
}

type listResponse struct {
	Value []Object `json:"value"`
}

// escapeFilterValue doubles embedded single quotes so a value is safe
// inside an OData string literal.
func escapeFilterValue(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

// findOne runs an exact-match $filter query against a collection and
// returns the first hit, or nil when nothing matched.
func (c *Client) findOne(ctx context.Context, collection, field, value string) (*Object, error) {
	filter := fmt.Sprintf("%s eq '%s'", field, escapeFilterValue(value))
	path := fmt.Sprintf("/%s?$filter=%s", collection, url.QueryEscape(filter))

	resp, err := c.rest.Do(ctx, rest.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var list listResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("graph: decoding %s response: %w", collection, err)
	}

	if len(list.Value) == 0 {
		return nil, nil
	}

	return &list.Value[0], nil
}

// FindUser looks up a user by exact userPrincipalName.
// Returns (nil, nil) when no user matches.
func (c *Client) FindUser(ctx context.Context, principalName string) (*Object, error) {
	c.logger.Debug("looking up user", slog.String("upn", principalName))

	return c.findOne(ctx, "users", "userPrincipalName", principalName)
}

// FindGroup looks up a group by exact displayName.
// Returns (nil, nil) when no group matches.
func (c *Client) FindGroup(ctx context.Context, displayName string) (*Object, error) {
	c.logger.Debug("looking up group", slog.String("display_name", displayName))

	return c.findOne(ctx, "groups", "displayName", displayName)
}

// FindServicePrincipal looks up a service principal by exact displayName.
// Returns (nil, nil) when no service principal matches.
func (c *Client) FindServicePrincipal(ctx context.Context, displayName string) (*Object, error) {
	c.logger.Debug("looking up service principal", slog.String("display_name", displayName))

	return c.findOne(ctx, "servicePrincipals", "displayName", displayName)
}

// ObjectByID fetches any directory object by ID. The ODataType field
// carries the concrete type discriminator.
func (c *Client) ObjectByID(ctx context.Context, objectID string) (*Object, error) {
	path := "/directoryObjects/" + url.PathEscape(objectID)

	resp, err := c.rest.Do(ctx, rest.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var obj Object
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return nil, fmt.Errorf("graph: decoding directory object: %w", err)
	}

	return &obj, nil
}

// Me returns the signed-in user. Used by whoami and preflight checks.
func (c *Client) Me(ctx context.Context) (*Object, error) {
	resp, err := c.rest.Do(ctx, rest.Request{Method: http.MethodGet, Path: "/me"})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var obj Object
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return nil, fmt.Errorf("graph: decoding me response: %w", err)
	}

	return &obj, nil
}
