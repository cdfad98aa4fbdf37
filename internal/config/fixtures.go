package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Fixtures is a seed document for users, listings and negotiations.
type Fixtures struct {
	Users        []UserFixture        `yaml:"users"`
	Offers       []OfferFixture       `yaml:"offers"`
	Demands      []DemandFixture      `yaml:"demands"`
	Negotiations []NegotiationFixture `yaml:"negotiations"`
}

// UserFixture seeds a marketplace user.
type UserFixture struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// OfferFixture seeds a seller listing.
type OfferFixture struct {
	ID       string  `yaml:"id"`
	UserID   string  `yaml:"user_id"`
	Title    string  `yaml:"title"`
	Price    float64 `yaml:"price"`
	Quantity float64 `yaml:"quantity"`
	Unit     string  `yaml:"unit"`
	Location string  `yaml:"location"`
}

// DemandFixture seeds a buyer listing.
type DemandFixture struct {
	ID       string  `yaml:"id"`
	UserID   string  `yaml:"user_id"`
	Title    string  `yaml:"title"`
	MaxPrice float64 `yaml:"max_price"`
	Quantity float64 `yaml:"quantity"`
	Unit     string  `yaml:"unit"`
	Location string  `yaml:"location"`
}

// NegotiationFixture seeds a negotiation and its opening messages.
type NegotiationFixture struct {
	ID          string           `yaml:"id"`
	OfferID     string           `yaml:"offer_id"`
	DemandID    string           `yaml:"demand_id"`
	InitiatorID string           `yaml:"initiator_id"`
	Messages    []MessageFixture `yaml:"messages"`
}

// MessageFixture seeds one message of a negotiation.
type MessageFixture struct {
	UserID  string `yaml:"user_id"`
	Content string `yaml:"content"`
}

// LoadFixtures reads and validates a fixtures YAML file.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read fixtures %s: %w", path, err)
	}
	return ParseFixtures(data)
}

// ParseFixtures unmarshals and validates a fixtures document.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse fixtures: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Fixtures) validate() error {
	var errs []string
	users := make(map[string]bool, len(f.Users))
	for i, u := range f.Users {
		if u.ID == "" {
			errs = append(errs, fmt.Sprintf("users[%d].id is required", i))
		}
		users[u.ID] = true
	}
	for i, o := range f.Offers {
		if o.ID == "" || o.Title == "" {
			errs = append(errs, fmt.Sprintf("offers[%d]: id and title are required", i))
		}
		if !users[o.UserID] {
			errs = append(errs, fmt.Sprintf("offers[%d]: unknown user %q", i, o.UserID))
		}
	}
	for i, d := range f.Demands {
		if d.ID == "" || d.Title == "" {
			errs = append(errs, fmt.Sprintf("demands[%d]: id and title are required", i))
		}
		if !users[d.UserID] {
			errs = append(errs, fmt.Sprintf("demands[%d]: unknown user %q", i, d.UserID))
		}
	}
	for i, n := range f.Negotiations {
		if (n.OfferID == "") == (n.DemandID == "") {
			errs = append(errs, fmt.Sprintf("negotiations[%d]: exactly one of offer_id or demand_id is required", i))
		}
		if !users[n.InitiatorID] {
			errs = append(errs, fmt.Sprintf("negotiations[%d]: unknown initiator %q", i, n.InitiatorID))
		}
		for j, m := range n.Messages {
			if !users[m.UserID] || m.Content == "" {
				errs = append(errs, fmt.Sprintf("negotiations[%d].messages[%d]: known user and content are required", i, j))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: fixtures validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
