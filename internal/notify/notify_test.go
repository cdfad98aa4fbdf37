package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/farmlink/farmlink/internal/marketplace"
)

func f(v float64) *float64 { return &v }

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   marketplace.Event
		want string
	}{
		{
			name: "message",
			ev:   marketplace.Event{Kind: marketplace.EventMessage, ActorName: "Moussa", ListingTitle: "Mil", Content: "Bonjour"},
			want: `Moussa on "Mil": Bonjour`,
		},
		{
			name: "counter-offer",
			ev: marketplace.Event{
				Kind: marketplace.EventCounterOffer, ActorName: "Moussa", ListingTitle: "Mil",
				Price: f(450), Quantity: f(80), Unit: "kg",
			},
			want: `Moussa countered on "Mil": 450 fcfa for 80 kg`,
		},
		{
			name: "status",
			ev: marketplace.Event{
				Kind: marketplace.EventStatus, ActorName: "Awa", ListingTitle: "Mil",
				PreviousStatus: "PENDING", Status: "ACCEPTED",
			},
			want: `Awa moved "Mil" from PENDING to ACCEPTED`,
		},
		{
			name: "falls back to ids",
			ev:   marketplace.Event{Kind: marketplace.EventMessage, ActorID: "u-1", NegotiationID: "neg-1", Content: "hi"},
			want: `u-1 on neg-1: hi`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatEvent(tt.ev); got != tt.want {
				t.Errorf("FormatEvent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatEvent_TruncatesLongMessages(t *testing.T) {
	ev := marketplace.Event{Kind: marketplace.EventMessage, ActorName: "A", ListingTitle: "T", Content: strings.Repeat("é", 500)}
	got := FormatEvent(ev)
	if !strings.HasSuffix(got, "…") {
		t.Errorf("expected ellipsis, got %q", got)
	}
	if n := len([]rune(got)); n > 220 {
		t.Errorf("formatted length = %d runes", n)
	}
}

type recorder struct {
	events []marketplace.Event
	err    error
}

func (r *recorder) Notify(_ context.Context, ev marketplace.Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestMulti(t *testing.T) {
	errA := errors.New("slack down")
	a := &recorder{err: errA}
	b := &recorder{}
	ev := marketplace.Event{NegotiationID: "neg-1"}

	err := Multi{a, b, Nop{}}.Notify(context.Background(), ev)
	if !errors.Is(err, errA) {
		t.Errorf("err = %v, want to wrap %v", err, errA)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("delivered a=%d b=%d, want 1 each", len(a.events), len(b.events))
	}

	if err := (Multi{b}).Notify(context.Background(), ev); err != nil {
		t.Errorf("err = %v, want nil", err)
	}
}
