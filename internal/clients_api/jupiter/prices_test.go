package jupiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"solana-wallet/internal/infra/retry"
	"solana-wallet/internal/infra/transport"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/api/v1/prices", transport.New(transport.Options{
		Name:      "jupiter-test",
		RateLimit: -1,
		Retry:     &retry.Options{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}))
}

func TestFetchPrices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/prices", r.URL.Path)
		assert.Equal(t, "list_address=MintA,MintB,MintC", r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"prices":{"MintA":1.2345,"MintB":null,"Other":3}}`))
	})

	prices, err := client.FetchPrices(context.Background(), []string{"MintA", "MintB", "MintC"})
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.True(t, prices["MintA"].Equal(decimal.RequireFromString("1.2345")))
}

func TestFetchPrices_KeepsExistingQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "vs=usd&list_address=Mint+A,MintB", r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"prices":{"Mint A":2}}`))
	}))
	t.Cleanup(server.Close)
	client := NewClient(server.URL+"/prices?vs=usd", transport.New(transport.Options{Name: "jupiter-test", RateLimit: -1}))

	prices, err := client.FetchPrices(context.Background(), []string{"Mint A", "MintB"})
	require.NoError(t, err)
	assert.True(t, prices["Mint A"].Equal(decimal.NewFromInt(2)))
}

func TestFetchPrices_EmptyBatchSkipsRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	})
	prices, err := client.FetchPrices(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestFetchPrices_BadPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>blocked</html>`))
	})
	_, err := client.FetchPrices(context.Background(), []string{"MintA"})
	assert.Error(t, err)
}

func TestFetchPrices_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, err := client.FetchPrices(context.Background(), []string{"MintA"})
	var he *retry.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusForbidden, he.StatusCode)
}
