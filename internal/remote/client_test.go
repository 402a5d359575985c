package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_cart/cart-sync/internal/domain"
	"github.com/fjod/go_cart/cart-sync/pkg/circuitbreaker"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	breaker := circuitbreaker.DefaultSettings("carts-test")
	breaker.ConsecutiveFailures = 3
	breaker.Timeout = time.Hour

	fixed := time.Date(2026, 10, 16, 23, 30, 0, 0, time.UTC)
	client := NewClient(Config{
		BaseURL: srv.URL + "/",
		Timeout: 200 * time.Millisecond,
		Breaker: breaker,
	}, WithClock(func() time.Time { return fixed }))
	return client, &hits
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestFetchServerCart_Success(t *testing.T) {
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/carts/user/5", r.URL.Path)
		writeJSON(w, http.StatusOK, `[{"id":1,"userId":5,"date":"2020-03-02","products":[{"productId":1,"quantity":4}]}]`)
	})

	carts, err := client.FetchServerCart(context.Background(), 5)

	require.NoError(t, err)
	require.Len(t, carts, 1)
	assert.Equal(t, int64(1), carts[0].ID)
	assert.Equal(t, int64(5), carts[0].UserID)
	assert.Equal(t, []domain.RemoteProduct{{ProductID: 1, Quantity: 4}}, carts[0].Products)
}

func TestFetchServerCart_NonSuccessIsNetworkError(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusBadGateway} {
		client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, status, `{"error":"nope"}`)
		})

		_, err := client.FetchServerCart(context.Background(), 5)

		var netErr *domain.NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.Equal(t, status, netErr.StatusCode)
		assert.ErrorIs(t, err, domain.ErrNetwork)
	}
}

func TestFetchServerCart_UndecodableBody(t *testing.T) {
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"not":"an array"}`)
	})

	_, err := client.FetchServerCart(context.Background(), 5)

	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.ErrorContains(t, err, "decode response")
}

func TestFetchServerCart_Timeout(t *testing.T) {
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	})

	_, err := client.FetchServerCart(context.Background(), 5)

	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestSubmitOrder_PayloadShape(t *testing.T) {
	var body map[string]any
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/carts", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusCreated, `{"id":11,"userId":3}`)
	})

	receipt, err := client.SubmitOrder(context.Background(), 3, []domain.LineItem{
		{ProductID: "7", Name: "Ring", UnitPrice: decimal.NewFromInt(168), Quantity: 2},
		{ProductID: " 12 ", UnitPrice: decimal.NewFromInt(9), Quantity: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(11), receipt.OrderID)
	assert.Equal(t, float64(3), body["userId"])
	assert.Equal(t, "2026-10-16", body["date"])
	products := body["products"].([]any)
	require.Len(t, products, 2)
	first := products[0].(map[string]any)
	assert.Equal(t, float64(7), first["productId"])
	assert.Equal(t, float64(2), first["quantity"])
	assert.NotContains(t, first, "price")
	assert.Equal(t, float64(12), products[1].(map[string]any)["productId"])
}

func TestSubmitOrder_NonNumericProductID(t *testing.T) {
	client, hits := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{"id":1}`)
	})

	_, err := client.SubmitOrder(context.Background(), 3, []domain.LineItem{{ProductID: "abc", Quantity: 1}})

	assert.ErrorIs(t, err, domain.ErrInvalidProductID)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestSubmitOrder_ClientErrorIsValidation(t *testing.T) {
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"error":"bad"}`)
	})

	_, err := client.SubmitOrder(context.Background(), 3, []domain.LineItem{{ProductID: "1", Quantity: 1}})

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.False(t, errors.Is(err, domain.ErrNetwork))
}

func TestSubmitOrder_ServerErrorIsNetwork(t *testing.T) {
	client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, `{}`)
	})

	_, err := client.SubmitOrder(context.Background(), 3, []domain.LineItem{{ProductID: "1", Quantity: 1}})

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusServiceUnavailable, netErr.StatusCode)
}

func TestClient_NoRetry(t *testing.T) {
	client, hits := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{}`)
	})

	_, err := client.FetchServerCart(context.Background(), 1)

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	client, hits := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{}`)
	})

	for i := 0; i < 3; i++ {
		_, err := client.FetchServerCart(context.Background(), 1)
		require.ErrorIs(t, err, domain.ErrNetwork)
	}
	_, err := client.FetchServerCart(context.Background(), 1)

	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.True(t, circuitbreaker.IsOpen(errors.Unwrap(err)))
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	client, hits := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, `{}`)
	})

	for i := 0; i < 5; i++ {
		_, err := client.SubmitOrder(context.Background(), 1, []domain.LineItem{{ProductID: "1", Quantity: 1}})
		require.ErrorIs(t, err, domain.ErrValidation)
	}

	assert.Equal(t, int32(5), atomic.LoadInt32(hits))
}
