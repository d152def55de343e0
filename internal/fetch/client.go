// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

// Package fetch provides the HTTP client used to retrieve registry documents,
// plugin manifests, and module bundles.
package fetch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/modfed/modfed/pkg/errutil"
)

// DefaultTimeout bounds a single document or bundle fetch. The loading
// engine's contract does not require a timeout, but an unbounded fetch would
// hang its caller indefinitely, so every request carries one.
const DefaultTimeout = 10 * time.Second

// Client fetches documents over HTTP. All failures carry the FETCH_FAILED code.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a fetch client. A non-positive timeout selects DefaultTimeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTPClient wraps an existing http.Client (for testing).
// Panics if httpClient is nil.
func NewClientWithHTTPClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		panic("fetch: httpClient cannot be nil")
	}
	return &Client{httpClient: httpClient}
}

// Get retrieves url and returns the response body.
// Non-2xx responses are failures.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, oops.In("fetch").Code(errutil.CodeFetchFailed).With("url", url).Wrap(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, oops.In("fetch").Code(errutil.CodeFetchFailed).With("url", url).Wrap(err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, oops.In("fetch").
			Code(errutil.CodeFetchFailed).
			With("url", url).
			With("status", resp.StatusCode).
			New("unexpected status")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, oops.In("fetch").Code(errutil.CodeFetchFailed).With("url", url).Wrap(err)
	}

	return body, nil
}

// GetJSON retrieves url and decodes the response body into v.
// A body that is not valid JSON for v is a fetch failure.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return oops.In("fetch").
			Code(errutil.CodeFetchFailed).
			With("url", url).
			Hint("body is not valid JSON").
			Wrap(err)
	}
	return nil
}
