package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/farmlink/farmlink/internal/negotiation"
	"github.com/farmlink/farmlink/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ negotiation.API = (*Client)(nil)

const negotiationJSON = `{
	"id": "neg-1",
	"status": "COUNTER_OFFER",
	"offer": {"id": "off-mil", "title": "Mil", "price": 500, "quantity": 120, "unit": "kg", "userId": "u-awa"},
	"messages": [
		{"id": "m1", "content": "Bonjour", "user": {"id": "u-moussa", "name": "Moussa"}, "createdAt": "2026-03-14T09:30:00Z"},
		{"id": "m2", "content": "Je propose 450 fcfa pour 80 kg", "price": 450, "quantity": 80, "type": "counter_offer", "userId": "u-moussa", "timestamp": 1773480660000, "clientId": "local-1"}
	]
}`

func newClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(Opts{BaseURL: url + "/", UserID: "u-moussa"})
	require.NoError(t, err)
	return c
}

func TestGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/negotiations/neg-1", r.URL.Path)
		assert.Equal(t, "u-moussa", r.Header.Get(wire.HeaderUserID))
		assert.Empty(t, r.Header.Get(wire.HeaderIdempotencyKey))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(negotiationJSON))
	}))
	defer server.Close()

	n, err := newClient(t, server.URL).Get(context.Background(), "neg-1")
	require.NoError(t, err)

	assert.Equal(t, "COUNTER_OFFER", n.Status)
	require.NotNil(t, n.Offer)
	assert.Equal(t, "kg", n.Offer.Unit)
	require.Len(t, n.Messages, 2)
	assert.Equal(t, "Moussa", n.Messages[0].User.Name)
	assert.True(t, n.Messages[0].CreatedAt.Valid())
	assert.True(t, n.Messages[1].Timestamp.Valid())
	assert.Equal(t, time.UnixMilli(1773480660000).UTC(), n.Messages[1].Timestamp.Time)
	assert.Equal(t, "local-1", n.Messages[1].ClientID)
}

func TestUpdate(t *testing.T) {
	received := make(chan wire.UpdateRequest, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "local-1", r.Header.Get(wire.HeaderIdempotencyKey))
		var body wire.UpdateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		received <- body
		w.Write([]byte(negotiationJSON))
	}))
	defer server.Close()

	price, qty := 450.0, 80.0
	req := wire.UpdateRequest{Message: "Je propose 450 fcfa pour 80 kg", Price: &price, Quantity: &qty, Status: "COUNTER_OFFER"}
	n, err := newClient(t, server.URL).Update(context.Background(), "neg-1", req, "local-1")
	require.NoError(t, err)
	assert.Equal(t, "neg-1", n.ID)
	assert.Equal(t, req, <-received)
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		body       string
		wantMsg    string
		wantNotFnd bool
	}{
		{"json error body", http.StatusNotFound, `{"error":"negotiation not found"}`, "negotiation not found", true},
		{"plain body", http.StatusInternalServerError, "boom\n", "boom", false},
		{"forbidden", http.StatusForbidden, `{"error":"only the listing owner may accept or reject"}`, "only the listing owner may accept or reject", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newClient(t, server.URL).Get(context.Background(), "neg-1")
			require.Error(t, err)

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.code, se.Code)
			assert.Equal(t, tt.wantMsg, se.Message)
			assert.Equal(t, tt.wantNotFnd, errors.Is(err, ErrNotFound))
		})
	}
}

func TestDecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}))
	defer server.Close()

	_, err := newClient(t, server.URL).Get(context.Background(), "neg-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Opts{})
	assert.Error(t, err)
}

func TestContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(negotiationJSON))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newClient(t, server.URL).Get(ctx, "neg-1")
	assert.ErrorIs(t, err, context.Canceled)
}
