// Package negotiation is the client-side view model of a marketplace
// negotiation thread. Sends are applied optimistically, then reconciled
// against the server's response or rolled back on failure.
package negotiation

import (
	"context"
	"errors"
	"time"

	"github.com/farmlink/farmlink/internal/wire"
)

// Status is the server-authoritative state of a negotiation.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusAccepted     Status = "ACCEPTED"
	StatusRejected     Status = "REJECTED"
	StatusCounterOffer Status = "COUNTER_OFFER"
	StatusCompleted    Status = "COMPLETED"
)

// MessageType classifies a thread entry.
type MessageType string

const (
	TypeMessage      MessageType = "message"
	TypeOffer        MessageType = "offer"
	TypeCounterOffer MessageType = "counter_offer"
)

// ListingKind says which side of the market a listing is on.
type ListingKind string

const (
	ListingOffer  ListingKind = "offer"
	ListingDemand ListingKind = "demand"
)

var (
	ErrEmptyMessage        = errors.New("message is empty")
	ErrNoSession           = errors.New("no user session")
	ErrNotLoaded           = errors.New("no negotiation loaded")
	ErrInvalidCounterOffer = errors.New("counter-offer requires a positive price and quantity")
	ErrNotOwner            = errors.New("only the listing owner may accept or reject")
	ErrNotPending          = errors.New("negotiation is not pending")
	ErrStale               = errors.New("response arrived for a stale view")
)

// Listing is the offer or demand a negotiation is about. For a demand,
// Price holds the buyer's maximum price.
type Listing struct {
	Kind      ListingKind
	ID        string
	Title     string
	Price     float64
	Quantity  float64
	Unit      string
	Location  string
	OwnerID   string
	OwnerName string
}

// Message is one entry of the canonical thread.
type Message struct {
	ID        string
	Content   string
	Price     *float64
	Quantity  *float64
	Type      MessageType
	UserID    string
	UserName  string
	Timestamp time.Time
	// ClientID is the optimistic id this message was sent under, when the
	// server echoed one.
	ClientID string
	// Pending marks an optimistic message no server response has confirmed.
	Pending bool
}

// Negotiation is the canonical in-memory record.
type Negotiation struct {
	ID          string
	Status      Status
	Listing     *Listing
	InitiatorID string
	Messages    []Message
}

// IsOwner reports whether userID owns the referenced listing.
func (n *Negotiation) IsOwner(userID string) bool {
	return userID != "" && n.Listing != nil && n.Listing.OwnerID == userID
}

// Unit returns the listing's quantity unit, or "" when there is no listing.
func (n *Negotiation) Unit() string {
	if n.Listing == nil {
		return ""
	}
	return n.Listing.Unit
}

// Clone returns a copy that shares no mutable state with n.
func (n Negotiation) Clone() Negotiation {
	out := n
	if n.Listing != nil {
		l := *n.Listing
		out.Listing = &l
	}
	out.Messages = append([]Message(nil), n.Messages...)
	return out
}

// Identity is the signed-in user.
type Identity struct {
	UserID string
	Name   string
}

// Session supplies the current identity. ok is false when nobody is signed in.
type Session interface {
	Identity() (id Identity, ok bool)
}

// StaticSession is a Session fixed at construction.
type StaticSession Identity

// Identity implements Session.
func (s StaticSession) Identity() (Identity, bool) {
	return Identity(s), s.UserID != ""
}

// API is the Negotiation API the view model talks to.
type API interface {
	Get(ctx context.Context, id string) (*wire.Negotiation, error)
	Update(ctx context.Context, id string, req wire.UpdateRequest, idempotencyKey string) (*wire.Negotiation, error)
}
