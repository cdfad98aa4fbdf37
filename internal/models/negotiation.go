package models

import "time"

// Negotiation statuses.
const (
	StatusPending      = "PENDING"
	StatusAccepted     = "ACCEPTED"
	StatusRejected     = "REJECTED"
	StatusCounterOffer = "COUNTER_OFFER"
	StatusCompleted    = "COMPLETED"
)

// Message types.
const (
	MessageTypeMessage      = "message"
	MessageTypeOffer        = "offer"
	MessageTypeCounterOffer = "counter_offer"
)

// Negotiation is the thread between a listing owner and the initiator.
// Exactly one of OfferID and DemandID is set.
type Negotiation struct {
	ID          string  `gorm:"primaryKey;size:32"`
	Status      string  `gorm:"size:16;default:PENDING;index"`
	OfferID     *string `gorm:"size:32;index"`
	DemandID    *string `gorm:"size:32;index"`
	InitiatorID string  `gorm:"size:32;not null;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Offer     *Offer               `gorm:"foreignKey:OfferID"`
	Demand    *Demand              `gorm:"foreignKey:DemandID"`
	Initiator User                 `gorm:"foreignKey:InitiatorID"`
	Messages  []NegotiationMessage `gorm:"foreignKey:NegotiationID"`
}

// OwnerID returns the user who owns the referenced listing, or "" if the
// listing was not loaded.
func (n *Negotiation) OwnerID() string {
	switch {
	case n.Offer != nil:
		return n.Offer.UserID
	case n.Demand != nil:
		return n.Demand.UserID
	}
	return ""
}

// Unit returns the quantity unit of the referenced listing.
func (n *Negotiation) Unit() string {
	switch {
	case n.Offer != nil:
		return n.Offer.Unit
	case n.Demand != nil:
		return n.Demand.Unit
	}
	return ""
}

// NegotiationMessage is one entry of a negotiation thread.
type NegotiationMessage struct {
	ID            string `gorm:"primaryKey;size:32"`
	NegotiationID string `gorm:"size:32;not null;index"`
	UserID        string `gorm:"size:32;not null"`
	Content       string `gorm:"type:text"`
	Price         *float64
	Quantity      *float64
	Type          string `gorm:"size:16;default:message"`
	ClientID      string `gorm:"size:64"`
	CreatedAt     time.Time

	User User `gorm:"foreignKey:UserID"`
}

// IdempotencyKey records a mutation already applied to a negotiation.
type IdempotencyKey struct {
	NegotiationID string    `gorm:"primaryKey;size:32"`
	Key           string    `gorm:"primaryKey;size:64"`
	CreatedAt     time.Time `gorm:"index"`
}
