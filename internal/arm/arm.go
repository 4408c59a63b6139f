// Package arm resolves management-plane resources: subscriptions by
// display name and storage accounts to their DFS endpoints.
package arm

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

// BaseURL is the production Azure Resource Manager endpoint.
const BaseURL = "https://management.azure.com"

// API versions for the resource types this client touches.
const (
	subscriptionsAPIVersion  = "2022-12-01"
	storageAccountAPIVersion = "2023-01-01"
)

// Client wraps the shared transport with management-plane calls.
type Client struct {
	rest   *rest.Client
	logger *slog.Logger
}

// NewClient creates an ARM client. baseURL is typically BaseURL; tests
// point it at an httptest server.
func NewClient(baseURL string, httpClient *http.Client, token rest.TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		rest:   rest.NewClient(baseURL, httpClient, token, logger),
		logger: logger,
	}
}

// Subscription is the subset of subscription metadata the CLI surfaces.
type Subscription struct {
	ID          string `json:"subscriptionId"`
	DisplayName string `json:"displayName"`
	State       string `json:"state"`
	TenantID    string `json:"tenantId"`
}

type subscriptionList struct {
	Value    []Subscription `json:"value"`
	NextLink string         `json:"nextLink"`
}

// ListSubscriptions returns every subscription visible to the caller,
// following pagination.
func (c *Client) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	path := "/subscriptions?api-version=" + subscriptionsAPIVersion

	var subs []Subscription

	for path != "" {
		resp, err := c.rest.Do(ctx, rest.Request{Method: http.MethodGet, Path: path})
		if err != nil {
			return nil, err
		}

		var page subscriptionList
		decodeErr := json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()

		if decodeErr != nil {
			return nil, fmt.Errorf("arm: decoding subscriptions response: %w", decodeErr)
		}

		subs = append(subs, page.Value...)

		path = ""
		if page.NextLink != "" {
			stripped, stripErr := c.stripBaseURL(page.NextLink)
			if stripErr != nil {
				return nil, stripErr
			}

			path = stripped
		}
	}

	return subs, nil
}

// FindSubscription resolves a subscription by display name
// (case-insensitive) or by subscription ID. Returns (nil, nil) when
// nothing matches.
func (c *Client) FindSubscription(ctx context.Context, nameOrID string) (*Subscription, error) {
	subs, err := c.ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	for i := range subs {
		if strings.EqualFold(subs[i].DisplayName, nameOrID) || strings.EqualFold(subs[i].ID, nameOrID) {
			return &subs[i], nil
		}
	}

	return nil, nil
}

// StorageAccount is the subset of storage account metadata a DFS
// client needs.
type StorageAccount struct {
	Name        string
	Location    string
	DfsEndpoint string
	HnsEnabled  bool
}

type storageAccountResponse struct {
	Name       string `json:"name"`
	Location   string `json:"location"`
	Properties struct {
		IsHnsEnabled     bool `json:"isHnsEnabled"`
		PrimaryEndpoints struct {
			Dfs string `json:"dfs"`
		} `json:"primaryEndpoints"`
	} `json:"properties"`
}

// GetStorageAccount fetches a storage account and its DFS endpoint.
// A missing account surfaces as rest.ErrNotFound.
func (c *Client) GetStorageAccount(ctx context.Context, subscriptionID, resourceGroup, accountName string) (*StorageAccount, error) {
	c.logger.Debug("resolving storage account",
		slog.String("subscription", subscriptionID),
		slog.String("resource_group", resourceGroup),
		slog.String("account", accountName),
	)

	path := fmt.Sprintf(
		"/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Storage/storageAccounts/%s?api-version=%s",
		url.PathEscape(subscriptionID),
		url.PathEscape(resourceGroup),
		url.PathEscape(accountName),
		storageAccountAPIVersion,
	)

	resp, err := c.rest.Do(ctx, rest.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var sa storageAccountResponse
	if err := json.NewDecoder(resp.Body).Decode(&sa); err != nil {
		return nil, fmt.Errorf("arm: decoding storage account response: %w", err)
	}

	return &StorageAccount{
		Name:        sa.Name,
		Location:    sa.Location,
		DfsEndpoint: strings.TrimSuffix(sa.Properties.PrimaryEndpoints.Dfs, "/"),
		HnsEnabled:  sa.Properties.IsHnsEnabled,
	}, nil
}

// stripBaseURL removes the client's base URL prefix from a full URL,
// returning the path + query string for use with the transport.
func (c *Client) stripBaseURL(fullURL string) (string, error) {
	if !strings.HasPrefix(fullURL, BaseURL) {
		// Paginated links always point at the management endpoint;
		// tests use relative links instead.
		if strings.HasPrefix(fullURL, "/") {
			return fullURL, nil
		}

		return "", fmt.Errorf("arm: nextLink URL %q does not match base URL %q", fullURL, BaseURL)
	}

	return fullURL[len(BaseURL):], nil
}
