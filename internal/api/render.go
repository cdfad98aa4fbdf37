package api

import (
	"github.com/farmlink/farmlink/internal/models"
	"github.com/farmlink/farmlink/internal/wire"
)

// toWire renders a loaded negotiation. Messages always carry createdAt and
// a nested user.
func toWire(n *models.Negotiation) *wire.Negotiation {
	out := &wire.Negotiation{
		ID:          n.ID,
		Status:      n.Status,
		InitiatorID: n.InitiatorID,
		Messages:    make([]wire.Message, 0, len(n.Messages)),
	}
	if n.Offer != nil {
		o := n.Offer
		out.OfferID = o.ID
		out.Offer = &wire.Offer{
			ID:       o.ID,
			Title:    o.Title,
			Price:    o.Price,
			Quantity: o.Quantity,
			Unit:     o.Unit,
			Location: o.Location,
			UserID:   o.UserID,
			User:     userRef(o.UserID, o.User),
		}
	}
	if n.Demand != nil {
		d := n.Demand
		out.DemandID = d.ID
		out.Demand = &wire.Demand{
			ID:       d.ID,
			Title:    d.Title,
			MaxPrice: d.MaxPrice,
			Quantity: d.Quantity,
			Unit:     d.Unit,
			Location: d.Location,
			UserID:   d.UserID,
			User:     userRef(d.UserID, d.User),
		}
	}
	for _, m := range n.Messages {
		out.Messages = append(out.Messages, wire.Message{
			ID:        m.ID,
			Content:   m.Content,
			Price:     m.Price,
			Quantity:  m.Quantity,
			Type:      m.Type,
			User:      userRef(m.UserID, m.User),
			CreatedAt: wire.At(m.CreatedAt),
			ClientID:  m.ClientID,
		})
	}
	return out
}

func userRef(id string, u models.User) *wire.User {
	return &wire.User{ID: id, Name: u.Name}
}
