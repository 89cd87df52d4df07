package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Authorize(t *testing.T) {
	t.Parallel()

	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/charges", r.URL.Path)
		require.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "ch_123", "captured": false})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test")
	res, err := client.Authorize(context.Background(), "tok_visa", 2500, "usd", "Tickets", map[string]string{"order_id": "order-1"})
	require.NoError(t, err)

	assert.Equal(t, "ch_123", res.ExternalID)
	assert.NotEmpty(t, res.Raw)
	assert.Equal(t, "2500", gotForm["amount"])
	assert.Equal(t, "usd", gotForm["currency"])
	assert.Equal(t, "tok_visa", gotForm["source"])
	assert.Equal(t, "false", gotForm["capture"])
	assert.Equal(t, "order-1", gotForm["metadata[order_id]"])
}

func TestClient_AuthorizeDeclined(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"type": "card_error", "code": "card_declined", "message": "Your card was declined."},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test")
	_, err := client.Authorize(context.Background(), "tok_chargeDeclined", 2500, "usd", "Tickets", nil)

	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.True(t, gwErr.Declined)
	assert.Equal(t, "card_declined", gwErr.Code)
	assert.Equal(t, "authorize", gwErr.Op)
}

func TestClient_CaptureAndReverse(t *testing.T) {
	t.Parallel()

	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/v1/refunds" {
			require.Equal(t, "ch_123", r.PostForm.Get("charge"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "ch_123", "captured": true})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test")

	res, err := client.Capture(context.Background(), "ch_123")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Raw)

	require.NoError(t, client.Reverse(context.Background(), "ch_123"))
	assert.Equal(t, []string{"/v1/charges/ch_123/capture", "/v1/refunds"}, paths)
}

func TestClient_TransportErrorIsNotDecline(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test", WithHTTPClient(&http.Client{Timeout: 5 * time.Millisecond}))
	_, err := client.Capture(context.Background(), "ch_123")

	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.False(t, gwErr.Declined)
	assert.Error(t, gwErr.Err)
}

func TestClient_MalformedAuthorizeResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object":"charge"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test")
	_, err := client.Authorize(context.Background(), "tok_visa", 1000, "usd", "Tickets", nil)

	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "invalid_response", gwErr.Code)
}
