// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ModFed Contributors

package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modfed/modfed/internal/fetch"
	"github.com/modfed/modfed/pkg/errutil"
)

func TestClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("bundle-bytes")) //nolint:errcheck // test server
	}))
	defer srv.Close()

	c := fetch.NewClient(0)
	body, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte("bundle-bytes"), body)
}

func TestClient_Get_NonOKStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "not found", status: http.StatusNotFound},
		{name: "server error", status: http.StatusInternalServerError},
		{name: "redirect not followed as success", status: http.StatusNotModified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := fetch.NewClient(0)
			_, err := c.Get(context.Background(), srv.URL)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, errutil.CodeFetchFailed)
			errutil.AssertErrorContext(t, err, "status", tt.status)
		})
	}
}

func TestClient_Get_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	srv.Close() // shut down before the request

	c := fetch.NewClient(0)
	_, err := c.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errutil.HasCode(err, errutil.CodeFetchFailed))
}

func TestClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"calendar","name":"Calendar"}`)) //nolint:errcheck // test server
	}))
	defer srv.Close()

	var doc struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	c := fetch.NewClient(0)
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, &doc))
	assert.Equal(t, "calendar", doc.ID)
	assert.Equal(t, "Calendar", doc.Name)
}

func TestClient_GetJSON_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"id": not json`)) //nolint:errcheck // test server
	}))
	defer srv.Close()

	var doc map[string]any
	c := fetch.NewClient(0)
	err := c.GetJSON(context.Background(), srv.URL, &doc)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, errutil.CodeFetchFailed)
}
