// Package notify fans negotiation events out to chat channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/farmlink/farmlink/internal/marketplace"
	"github.com/farmlink/farmlink/internal/negotiation"
)

// Notifier delivers one event. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, ev marketplace.Event) error
}

// Nop discards every event.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, marketplace.Event) error { return nil }

// Multi delivers to each notifier in turn and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, ev marketplace.Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FormatEvent renders ev as a one-line chat message.
func FormatEvent(ev marketplace.Event) string {
	who := ev.ActorName
	if who == "" {
		who = ev.ActorID
	}
	where := fmt.Sprintf("%q", ev.ListingTitle)
	if ev.ListingTitle == "" {
		where = ev.NegotiationID
	}

	switch ev.Kind {
	case marketplace.EventCounterOffer:
		var b strings.Builder
		fmt.Fprintf(&b, "%s countered on %s", who, where)
		if ev.Price != nil && ev.Quantity != nil {
			fmt.Fprintf(&b, ": %s fcfa for %s", negotiation.FormatAmount(*ev.Price), negotiation.FormatAmount(*ev.Quantity))
			if ev.Unit != "" {
				b.WriteString(" " + ev.Unit)
			}
		}
		return b.String()
	case marketplace.EventStatus:
		return fmt.Sprintf("%s moved %s from %s to %s", who, where, ev.PreviousStatus, ev.Status)
	default:
		return fmt.Sprintf("%s on %s: %s", who, where, truncate(ev.Content, 200))
	}
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
