// Package marketplace implements negotiation records on the server side:
// creation, retrieval, and the mutations behind PUT /negotiations/{id}.
package marketplace

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/farmlink/farmlink/internal/models"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound            = errors.New("negotiation not found")
	ErrListingNotFound     = errors.New("listing not found")
	ErrInvalidListing      = errors.New("exactly one of offer or demand is required")
	ErrSelfNegotiation     = errors.New("cannot negotiate on your own listing")
	ErrNotParticipant      = errors.New("user is not a participant in this negotiation")
	ErrNotOwner            = errors.New("only the listing owner may accept or reject")
	ErrInvalidStatus       = errors.New("status must be ACCEPTED, REJECTED or COUNTER_OFFER")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidCounterOffer = errors.New("counter-offer requires a positive price and quantity")
	ErrInvalidAmount       = errors.New("price and quantity must not be negative")
	ErrNothingToUpdate     = errors.New("nothing to update")
)

// ValidTransitions maps each status to the statuses a PUT may move it to.
// COMPLETED is never reachable from here.
var ValidTransitions = map[string][]string{
	models.StatusPending:      {models.StatusAccepted, models.StatusRejected, models.StatusCounterOffer},
	models.StatusCounterOffer: {models.StatusCounterOffer, models.StatusAccepted, models.StatusRejected},
}

// isValidTransition checks whether a status transition is allowed.
func isValidTransition(from, to string) bool {
	for _, s := range ValidTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewID returns a new lexicographically sortable record ID.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// CreateOpts holds parameters for opening a negotiation.
type CreateOpts struct {
	OfferID     string
	DemandID    string
	InitiatorID string
	Message     string // optional opening message
}

// Create opens a PENDING negotiation on exactly one listing.
func Create(db *gorm.DB, opts CreateOpts) (*models.Negotiation, error) {
	if (opts.OfferID == "") == (opts.DemandID == "") {
		return nil, fmt.Errorf("marketplace: create: %w", ErrInvalidListing)
	}
	if opts.InitiatorID == "" {
		return nil, fmt.Errorf("marketplace: create: initiator is required")
	}

	var id string
	err := db.Transaction(func(tx *gorm.DB) error {
		ownerID, err := listingOwner(tx, opts.OfferID, opts.DemandID)
		if err != nil {
			return err
		}
		if ownerID == opts.InitiatorID {
			return fmt.Errorf("marketplace: create: %w", ErrSelfNegotiation)
		}

		n := models.Negotiation{
			ID:          NewID(),
			Status:      models.StatusPending,
			InitiatorID: opts.InitiatorID,
		}
		if opts.OfferID != "" {
			n.OfferID = &opts.OfferID
		} else {
			n.DemandID = &opts.DemandID
		}
		if err := tx.Omit(clause.Associations).Create(&n).Error; err != nil {
			return fmt.Errorf("marketplace: create: %w", err)
		}

		if opts.Message != "" {
			m := models.NegotiationMessage{
				ID:            NewID(),
				NegotiationID: n.ID,
				UserID:        opts.InitiatorID,
				Content:       opts.Message,
				Type:          models.MessageTypeMessage,
				CreatedAt:     time.Now().UTC(),
			}
			if err := tx.Omit(clause.Associations).Create(&m).Error; err != nil {
				return fmt.Errorf("marketplace: create opening message: %w", err)
			}
		}
		id = n.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return Get(db, id)
}

// listingOwner returns the owning user of the referenced offer or demand.
func listingOwner(db *gorm.DB, offerID, demandID string) (string, error) {
	var ownerID string
	var err error
	if offerID != "" {
		var o models.Offer
		err = db.Select("user_id").Where("id = ?", offerID).First(&o).Error
		ownerID = o.UserID
	} else {
		var d models.Demand
		err = db.Select("user_id").Where("id = ?", demandID).First(&d).Error
		ownerID = d.UserID
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("marketplace: %w", ErrListingNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("marketplace: load listing: %w", err)
	}
	return ownerID, nil
}

// Get retrieves a negotiation with its listing, owners and ordered messages.
func Get(db *gorm.DB, id string) (*models.Negotiation, error) {
	var n models.Negotiation
	err := db.
		Preload("Offer.User").
		Preload("Demand.User").
		Preload("Initiator").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Messages.User").
		Where("id = ?", id).
		First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("marketplace: %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("marketplace: get %s: %w", id, err)
	}
	return &n, nil
}

// IsParticipant reports whether userID is the initiator or the listing owner.
func IsParticipant(n *models.Negotiation, userID string) bool {
	return userID != "" && (userID == n.InitiatorID || userID == n.OwnerID())
}
