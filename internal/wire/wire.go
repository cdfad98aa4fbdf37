// Package wire defines the JSON shapes of the negotiation HTTP surface.
//
// Server responses always carry createdAt and a nested user on messages.
// Decoding is lenient: older records may carry timestamp or flat
// userId/userName instead, and the client normalizes both.
package wire

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// HTTP headers used by the negotiation API.
const (
	HeaderUserID         = "X-User-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// User is the display identity embedded in listings and messages.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Offer is a seller listing as returned by the API.
type Offer struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	Location string  `json:"location,omitempty"`
	UserID   string  `json:"userId"`
	User     *User   `json:"user,omitempty"`
}

// Demand is a buyer listing as returned by the API.
type Demand struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	MaxPrice float64 `json:"maxPrice"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	Location string  `json:"location,omitempty"`
	UserID   string  `json:"userId"`
	User     *User   `json:"user,omitempty"`
}

// Message is one thread entry.
type Message struct {
	ID        string     `json:"id,omitempty"`
	Content   string     `json:"content"`
	Price     *float64   `json:"price,omitempty"`
	Quantity  *float64   `json:"quantity,omitempty"`
	Type      string     `json:"type,omitempty"`
	UserID    string     `json:"userId,omitempty"`
	UserName  string     `json:"userName,omitempty"`
	User      *User      `json:"user,omitempty"`
	Timestamp *Timestamp `json:"timestamp,omitempty"`
	CreatedAt *Timestamp `json:"createdAt,omitempty"`
	ClientID  string     `json:"clientId,omitempty"`
}

// Negotiation is the record returned by GET and PUT /negotiations/{id}.
type Negotiation struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	OfferID     string    `json:"offerId,omitempty"`
	DemandID    string    `json:"demandId,omitempty"`
	Offer       *Offer    `json:"offer,omitempty"`
	Demand      *Demand   `json:"demand,omitempty"`
	InitiatorID string    `json:"initiatorId,omitempty"`
	Messages    []Message `json:"messages"`
}

// UpdateRequest is the body of PUT /negotiations/{id}.
type UpdateRequest struct {
	Message  string   `json:"message,omitempty"`
	Price    *float64 `json:"price,omitempty"`
	Quantity *float64 `json:"quantity,omitempty"`
	Status   string   `json:"status,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Timestamp decodes RFC 3339 strings or Unix milliseconds. Anything else
// decodes as the zero time so one bad field never fails a whole record.
type Timestamp struct {
	time.Time
}

// At wraps t for use in a Message.
func At(t time.Time) *Timestamp {
	return &Timestamp{Time: t}
}

// Valid reports whether the timestamp carries a usable instant.
func (t *Timestamp) Valid() bool {
	return t != nil && !t.Time.IsZero()
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	t.Time = time.Time{}
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	if s[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil || unquoted == "" {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, unquoted); err == nil {
			t.Time = parsed.UTC()
		}
		return nil
	}
	if ms, err := strconv.ParseFloat(s, 64); err == nil {
		t.Time = time.UnixMilli(int64(ms)).UTC()
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}
