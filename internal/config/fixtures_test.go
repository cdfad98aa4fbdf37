package config

import (
	"strings"
	"testing"
)

const fixturesYAML = `
users:
  - id: u-awa
    name: Awa Traoré
    email: awa@example.ml
  - id: u-moussa
    name: Moussa Keita

offers:
  - id: off-mil
    user_id: u-awa
    title: Mil de Ségou
    price: 500
    quantity: 120
    unit: kg
    location: Ségou

demands:
  - id: dem-riz
    user_id: u-moussa
    title: Riz paddy
    max_price: 350
    quantity: 2
    unit: tonne
    location: Mopti

negotiations:
  - id: neg-1
    offer_id: off-mil
    initiator_id: u-moussa
    messages:
      - user_id: u-moussa
        content: Bonjour, le mil est-il encore disponible ?
      - user_id: u-awa
        content: Oui, 120 kg.
`

func TestParseFixtures(t *testing.T) {
	f, err := ParseFixtures([]byte(fixturesYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Users) != 2 {
		t.Errorf("len(Users) = %d, want 2", len(f.Users))
	}
	if len(f.Offers) != 1 || f.Offers[0].Price != 500 || f.Offers[0].Unit != "kg" {
		t.Errorf("Offers = %+v", f.Offers)
	}
	if len(f.Demands) != 1 || f.Demands[0].MaxPrice != 350 {
		t.Errorf("Demands = %+v", f.Demands)
	}
	if len(f.Negotiations) != 1 {
		t.Fatalf("len(Negotiations) = %d, want 1", len(f.Negotiations))
	}
	if got := len(f.Negotiations[0].Messages); got != 2 {
		t.Errorf("len(Messages) = %d, want 2", got)
	}
}

func TestParseFixtures_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing user id",
			yaml:    "users:\n  - name: nobody\n",
			wantErr: "users[0].id is required",
		},
		{
			name:    "offer with unknown owner",
			yaml:    "offers:\n  - id: o1\n    title: Mil\n    user_id: ghost\n",
			wantErr: `offers[0]: unknown user "ghost"`,
		},
		{
			name: "negotiation with both listings",
			yaml: `
users: [{id: u1}]
negotiations:
  - offer_id: o1
    demand_id: d1
    initiator_id: u1
`,
			wantErr: "exactly one of offer_id or demand_id",
		},
		{
			name: "negotiation with no listing",
			yaml: `
users: [{id: u1}]
negotiations:
  - initiator_id: u1
`,
			wantErr: "exactly one of offer_id or demand_id",
		},
		{
			name: "message without content",
			yaml: `
users: [{id: u1}]
negotiations:
  - offer_id: o1
    initiator_id: u1
    messages:
      - user_id: u1
`,
			wantErr: "negotiations[0].messages[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixtures([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}
