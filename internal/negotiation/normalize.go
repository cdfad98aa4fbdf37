package negotiation

import (
	"time"

	"github.com/farmlink/farmlink/internal/wire"
	"github.com/google/uuid"
)

// Normalize converts a wire record into the canonical shape. Missing fields
// are defaulted rather than rejected: status to PENDING, message type to
// "message", message timestamp to createdAt and then to now, and message id
// to a synthesized one. Repeated ids are collapsed by Dedupe.
func Normalize(raw *wire.Negotiation, now time.Time) Negotiation {
	if raw == nil {
		return Negotiation{}
	}
	n := Negotiation{
		ID:          raw.ID,
		Status:      Status(raw.Status),
		Listing:     normalizeListing(raw),
		InitiatorID: raw.InitiatorID,
		Messages:    make([]Message, 0, len(raw.Messages)),
	}
	if n.Status == "" {
		n.Status = StatusPending
	}
	for _, m := range raw.Messages {
		n.Messages = append(n.Messages, normalizeMessage(m, now))
	}
	n.Messages = Dedupe(n.Messages)
	return n
}

func normalizeListing(raw *wire.Negotiation) *Listing {
	switch {
	case raw.Offer != nil:
		o := raw.Offer
		l := &Listing{
			Kind:     ListingOffer,
			ID:       o.ID,
			Title:    o.Title,
			Price:    o.Price,
			Quantity: o.Quantity,
			Unit:     o.Unit,
			Location: o.Location,
		}
		l.OwnerID, l.OwnerName = ownerOf(o.UserID, o.User)
		return l
	case raw.Demand != nil:
		d := raw.Demand
		l := &Listing{
			Kind:     ListingDemand,
			ID:       d.ID,
			Title:    d.Title,
			Price:    d.MaxPrice,
			Quantity: d.Quantity,
			Unit:     d.Unit,
			Location: d.Location,
		}
		l.OwnerID, l.OwnerName = ownerOf(d.UserID, d.User)
		return l
	}
	return nil
}

// ownerOf prefers the flat id and falls back to the nested user.
func ownerOf(userID string, u *wire.User) (id, name string) {
	id = userID
	if u != nil {
		if id == "" {
			id = u.ID
		}
		name = u.Name
	}
	return id, name
}

func normalizeMessage(m wire.Message, now time.Time) Message {
	out := Message{
		ID:       m.ID,
		Content:  m.Content,
		Price:    m.Price,
		Quantity: m.Quantity,
		Type:     MessageType(m.Type),
		UserID:   m.UserID,
		UserName: m.UserName,
		ClientID: m.ClientID,
	}
	if m.User != nil {
		if out.UserID == "" {
			out.UserID = m.User.ID
		}
		if out.UserName == "" {
			out.UserName = m.User.Name
		}
	}
	switch {
	case m.Timestamp.Valid():
		out.Timestamp = m.Timestamp.Time
	case m.CreatedAt.Valid():
		out.Timestamp = m.CreatedAt.Time
	default:
		out.Timestamp = now
	}
	if out.Type == "" {
		out.Type = TypeMessage
	}
	if out.ID == "" {
		out.ID = "srv-" + uuid.NewString()
	}
	return out
}
