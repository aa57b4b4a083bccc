package shipping

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sakashimaa/go-storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testAddress() domain.Address {
	return domain.Address{
		Name:       "Test User",
		Line1:      "1 Main St",
		City:       "Springfield",
		PostalCode: "12345",
		Country:    "US",
	}
}

func TestFlatRate(t *testing.T) {
	cost, err := FlatRate(500).Quote(context.Background(), testAddress())
	require.NoError(t, err)
	assert.Equal(t, int64(500), cost)
}

func TestHTTPRateSource_Quote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/quote", r.URL.Path)

		var req quoteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "12345", req.Address.PostalCode)

		json.NewEncoder(w).Encode(quoteResponse{Cost: 1250})
	}))
	defer server.Close()

	source := NewHTTPRateSource(server.URL, 500, zap.NewNop())

	cost, err := source.Quote(context.Background(), testAddress())
	require.NoError(t, err)
	assert.Equal(t, int64(1250), cost)
}

func TestHTTPRateSource_FallsBackOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	source := NewHTTPRateSource(server.URL, 500, zap.NewNop())

	cost, err := source.Quote(context.Background(), testAddress())
	require.NoError(t, err)
	assert.Equal(t, int64(500), cost)
}

func TestHTTPRateSource_FallsBackOnNegativeCost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(quoteResponse{Cost: -1})
	}))
	defer server.Close()

	source := NewHTTPRateSource(server.URL, 500, zap.NewNop())

	cost, err := source.Quote(context.Background(), testAddress())
	require.NoError(t, err)
	assert.Equal(t, int64(500), cost)
}

func TestHTTPRateSource_FallsBackOnUnreachableService(t *testing.T) {
	source := NewHTTPRateSource("http://127.0.0.1:1", 750, zap.NewNop())

	cost, err := source.Quote(context.Background(), testAddress())
	require.NoError(t, err)
	assert.Equal(t, int64(750), cost)
}

func TestHTTPRateSource_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	source := NewHTTPRateSource(server.URL, 500, zap.NewNop())

	for i := 0; i < 10; i++ {
		cost, err := source.Quote(context.Background(), testAddress())
		require.NoError(t, err)
		assert.Equal(t, int64(500), cost)
	}

	// The breaker tripped partway through, so not every call reached the
	// server.
	assert.Less(t, calls.Load(), int64(10))
}
