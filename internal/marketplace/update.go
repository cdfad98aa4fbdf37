package marketplace

import (
	"errors"
	"fmt"
	"time"

	"github.com/farmlink/farmlink/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Event kinds.
const (
	EventMessage      = "message"
	EventCounterOffer = "counter_offer"
	EventStatus       = "status"
)

// Event describes an applied mutation, for notifications.
type Event struct {
	NegotiationID  string
	Kind           string
	ActorID        string
	ActorName      string
	ListingTitle   string
	Unit           string
	Content        string
	Price          *float64
	Quantity       *float64
	PreviousStatus string
	Status         string
}

// UpdateOpts holds the fields of a PUT /negotiations/{id} request.
type UpdateOpts struct {
	Message        string
	Price          *float64
	Quantity       *float64
	Status         string
	IdempotencyKey string
}

// UpdateResult is the outcome of Update.
type UpdateResult struct {
	Negotiation *models.Negotiation
	Event       Event
	// Replayed is set when the idempotency key was already applied; the
	// negotiation is returned as it stands and nothing was written.
	Replayed bool
}

// Update applies a message and/or status change on behalf of actorID.
func Update(db *gorm.DB, id, actorID string, opts UpdateOpts) (*UpdateResult, error) {
	if opts.Message == "" && opts.Status == "" {
		return nil, fmt.Errorf("marketplace: update %s: %w", id, ErrNothingToUpdate)
	}
	if err := validateAmounts(opts); err != nil {
		return nil, fmt.Errorf("marketplace: update %s: %w", id, err)
	}

	var event Event
	replayed := false
	err := db.Transaction(func(tx *gorm.DB) error {
		var n models.Negotiation
		if err := tx.Preload("Offer").Preload("Demand").Where("id = ?", id).First(&n).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("marketplace: %s: %w", id, ErrNotFound)
			}
			return fmt.Errorf("marketplace: load %s for update: %w", id, err)
		}
		if !IsParticipant(&n, actorID) {
			return fmt.Errorf("marketplace: update %s: %w", id, ErrNotParticipant)
		}

		if opts.IdempotencyKey != "" {
			seen, err := keySeen(tx, id, opts.IdempotencyKey)
			if err != nil {
				return err
			}
			if seen {
				replayed = true
				return nil
			}
		}

		if err := checkStatusChange(&n, actorID, opts.Status); err != nil {
			return fmt.Errorf("marketplace: update %s: %w", id, err)
		}

		// Record the key first so a concurrent duplicate fails on the
		// primary key before writing anything else.
		if opts.IdempotencyKey != "" {
			key := models.IdempotencyKey{NegotiationID: id, Key: opts.IdempotencyKey, CreatedAt: time.Now().UTC()}
			if err := tx.Create(&key).Error; err != nil {
				return fmt.Errorf("marketplace: record idempotency key: %w", err)
			}
		}

		event = Event{
			NegotiationID:  id,
			Kind:           EventMessage,
			ActorID:        actorID,
			ListingTitle:   listingTitle(&n),
			Unit:           n.Unit(),
			Content:        opts.Message,
			Price:          opts.Price,
			Quantity:       opts.Quantity,
			PreviousStatus: n.Status,
			Status:         n.Status,
		}

		if opts.Message != "" {
			m := models.NegotiationMessage{
				ID:            NewID(),
				NegotiationID: id,
				UserID:        actorID,
				Content:       opts.Message,
				Price:         opts.Price,
				Quantity:      opts.Quantity,
				Type:          messageType(opts),
				ClientID:      opts.IdempotencyKey,
				CreatedAt:     time.Now().UTC(),
			}
			if err := tx.Omit(clause.Associations).Create(&m).Error; err != nil {
				return fmt.Errorf("marketplace: append message to %s: %w", id, err)
			}
		}

		updates := map[string]interface{}{"updated_at": time.Now().UTC()}
		if opts.Status != "" {
			updates["status"] = opts.Status
			event.Status = opts.Status
			event.Kind = EventStatus
			if opts.Status == models.StatusCounterOffer {
				event.Kind = EventCounterOffer
			}
		}
		if err := tx.Model(&models.Negotiation{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("marketplace: update %s: %w", id, err)
		}

		var actor models.User
		if err := tx.Where("id = ?", actorID).First(&actor).Error; err == nil {
			event.ActorName = actor.Name
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) && opts.IdempotencyKey != "" {
		// Lost a race with the same key; the winner's write stands.
		err, replayed = nil, true
	}
	if err != nil {
		return nil, err
	}

	n, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	if replayed {
		return &UpdateResult{Negotiation: n, Replayed: true}, nil
	}
	return &UpdateResult{Negotiation: n, Event: event}, nil
}

// validateAmounts rejects negative amounts and incomplete counter-offers.
func validateAmounts(opts UpdateOpts) error {
	if (opts.Price != nil && *opts.Price < 0) || (opts.Quantity != nil && *opts.Quantity < 0) {
		return ErrInvalidAmount
	}
	if opts.Status == models.StatusCounterOffer {
		if opts.Price == nil || opts.Quantity == nil || *opts.Price <= 0 || *opts.Quantity <= 0 {
			return ErrInvalidCounterOffer
		}
	}
	return nil
}

// checkStatusChange enforces the requestable statuses, owner-only
// accept/reject, and ValidTransitions.
func checkStatusChange(n *models.Negotiation, actorID, to string) error {
	if to == "" {
		return nil
	}
	switch to {
	case models.StatusAccepted, models.StatusRejected:
		if actorID != n.OwnerID() {
			return ErrNotOwner
		}
	case models.StatusCounterOffer:
	default:
		return ErrInvalidStatus
	}
	if !isValidTransition(n.Status, to) {
		return fmt.Errorf("%w from %q to %q; valid transitions: %v", ErrInvalidTransition, n.Status, to, ValidTransitions[n.Status])
	}
	return nil
}

// messageType classifies an appended message from the request shape.
func messageType(opts UpdateOpts) string {
	switch {
	case opts.Status == models.StatusCounterOffer:
		return models.MessageTypeCounterOffer
	case opts.Price != nil:
		return models.MessageTypeOffer
	default:
		return models.MessageTypeMessage
	}
}

func keySeen(tx *gorm.DB, negotiationID, key string) (bool, error) {
	var count int64
	if err := tx.Model(&models.IdempotencyKey{}).
		Where(&models.IdempotencyKey{NegotiationID: negotiationID, Key: key}).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("marketplace: check idempotency key: %w", err)
	}
	return count > 0, nil
}

func listingTitle(n *models.Negotiation) string {
	switch {
	case n.Offer != nil:
		return n.Offer.Title
	case n.Demand != nil:
		return n.Demand.Title
	}
	return ""
}
