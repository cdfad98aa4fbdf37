// Package db handles connections, schema migration and fixture seeding.
package db

import (
	"fmt"
	"time"

	"github.com/farmlink/farmlink/internal/config"
	"github.com/farmlink/farmlink/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model for migration, parents first.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Offer{},
		&models.Demand{},
		&models.Negotiation{},
		&models.NegotiationMessage{},
		&models.IdempotencyKey{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// DropTables drops every model's table, children first.
func DropTables(db *gorm.DB) error {
	if err := db.Migrator().DropTable(AllModels()...); err != nil {
		return fmt.Errorf("db: drop tables: %w", err)
	}
	return nil
}

// SeedCounts reports how many rows of each kind a seed run touched.
type SeedCounts struct {
	Users        int
	Offers       int
	Demands      int
	Negotiations int
	Messages     int
}

// SeedFixtures upserts users and listings, and creates negotiations that do
// not exist yet together with their opening messages. Re-running with the
// same fixtures never duplicates messages.
func SeedFixtures(db *gorm.DB, f *config.Fixtures) (SeedCounts, error) {
	var counts SeedCounts
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, uf := range f.Users {
			u := models.User{ID: uf.ID, Name: uf.Name, Email: uf.Email}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "email"}),
			}).Create(&u).Error; err != nil {
				return fmt.Errorf("db: seed user %q: %w", uf.ID, err)
			}
			counts.Users++
		}

		for _, of := range f.Offers {
			o := models.Offer{
				ID:       of.ID,
				UserID:   of.UserID,
				Title:    of.Title,
				Price:    of.Price,
				Quantity: of.Quantity,
				Unit:     of.Unit,
				Location: of.Location,
			}
			if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"user_id", "title", "price", "quantity", "unit", "location"}),
			}).Create(&o).Error; err != nil {
				return fmt.Errorf("db: seed offer %q: %w", of.ID, err)
			}
			counts.Offers++
		}

		for _, df := range f.Demands {
			d := models.Demand{
				ID:       df.ID,
				UserID:   df.UserID,
				Title:    df.Title,
				MaxPrice: df.MaxPrice,
				Quantity: df.Quantity,
				Unit:     df.Unit,
				Location: df.Location,
			}
			if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"user_id", "title", "max_price", "quantity", "unit", "location"}),
			}).Create(&d).Error; err != nil {
				return fmt.Errorf("db: seed demand %q: %w", df.ID, err)
			}
			counts.Demands++
		}

		for _, nf := range f.Negotiations {
			created, err := seedNegotiation(tx, nf)
			if err != nil {
				return err
			}
			if created {
				counts.Negotiations++
				counts.Messages += len(nf.Messages)
			}
		}
		return nil
	})
	if err != nil {
		return SeedCounts{}, err
	}
	return counts, nil
}

// seedNegotiation inserts a negotiation and its messages unless a row with
// the same id already exists.
func seedNegotiation(tx *gorm.DB, nf config.NegotiationFixture) (bool, error) {
	var existing int64
	if err := tx.Model(&models.Negotiation{}).Where("id = ?", nf.ID).Count(&existing).Error; err != nil {
		return false, fmt.Errorf("db: check negotiation %q: %w", nf.ID, err)
	}
	if existing > 0 {
		return false, nil
	}

	n := models.Negotiation{
		ID:          nf.ID,
		Status:      models.StatusPending,
		InitiatorID: nf.InitiatorID,
	}
	if nf.OfferID != "" {
		n.OfferID = &nf.OfferID
	}
	if nf.DemandID != "" {
		n.DemandID = &nf.DemandID
	}
	if err := tx.Omit(clause.Associations).Create(&n).Error; err != nil {
		return false, fmt.Errorf("db: seed negotiation %q: %w", nf.ID, err)
	}

	base := time.Now().UTC().Truncate(time.Second).Add(-time.Duration(len(nf.Messages)) * time.Minute)
	for i, mf := range nf.Messages {
		m := models.NegotiationMessage{
			ID:            fmt.Sprintf("%s-m%d", nf.ID, i+1),
			NegotiationID: nf.ID,
			UserID:        mf.UserID,
			Content:       mf.Content,
			Type:          models.MessageTypeMessage,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		if err := tx.Omit(clause.Associations).Create(&m).Error; err != nil {
			return false, fmt.Errorf("db: seed message %d of %q: %w", i+1, nf.ID, err)
		}
	}
	return true, nil
}
