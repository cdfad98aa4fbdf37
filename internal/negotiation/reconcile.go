package negotiation

import (
	"sort"
	"time"
)

// Reconcile merges a server response into the prior local state. Status,
// listing and participants come from server. The thread is prior, then delta
// unless prior already holds it, then the server's messages, deduplicated
// and ordered by timestamp.
func Reconcile(prior Negotiation, delta *Message, server Negotiation) Negotiation {
	out := server.Clone()
	if out.ID == "" {
		out.ID = prior.ID
	}
	if out.Listing == nil && prior.Listing != nil {
		l := *prior.Listing
		out.Listing = &l
	}

	msgs := make([]Message, 0, len(prior.Messages)+1+len(server.Messages))
	msgs = append(msgs, prior.Messages...)
	if delta != nil && indexOf(prior.Messages, delta.ID) < 0 {
		msgs = append(msgs, *delta)
	}
	msgs = append(msgs, server.Messages...)

	out.Messages = Dedupe(msgs)
	sortByTimestamp(out.Messages)
	return out
}

type identityKey struct {
	userID  string
	content string
	second  int64
}

func keyOf(m Message) identityKey {
	return identityKey{userID: m.UserID, content: m.Content, second: m.Timestamp.Truncate(time.Second).Unix()}
}

// Dedupe collapses repeated copies of the same message, keeping first-seen
// order. Confirmed messages are unique by id and are never merged with each
// other, even when two carry the same user, content and second.
//
// A pending message is resolved against the confirmed ones: a message whose
// clientId or id equals the pending id is its echo, and otherwise one
// unclaimed confirmed message without a clientId that shares (user, content,
// timestamp to the second) stands for it. The confirmed copy takes the
// pending message's place. Each confirmed message resolves at most one
// pending message.
func Dedupe(msgs []Message) []Message {
	keep := make([]bool, len(msgs))
	byID := make(map[string]int, len(msgs))
	echoOf := make(map[string]int)
	byKey := make(map[identityKey][]int)

	for i, m := range msgs {
		if m.Pending {
			continue
		}
		if _, dup := byID[m.ID]; dup && m.ID != "" {
			continue
		}
		keep[i] = true
		if m.ID != "" {
			byID[m.ID] = i
		}
		if m.ClientID == "" {
			k := keyOf(m)
			byKey[k] = append(byKey[k], i)
		} else if _, ok := echoOf[m.ClientID]; !ok {
			echoOf[m.ClientID] = i
		}
	}

	claimed := make(map[int]bool)
	slot := make(map[int]int)
	seenPending := make(map[string]bool)
	resolve := func(pending, confirmed int) {
		claimed[confirmed] = true
		if confirmed > pending {
			keep[pending] = true
			keep[confirmed] = false
			slot[pending] = confirmed
		}
	}
	for i, m := range msgs {
		if !m.Pending || seenPending[m.ID] {
			continue
		}
		seenPending[m.ID] = true
		if j, ok := echoOf[m.ID]; ok && !claimed[j] {
			resolve(i, j)
			continue
		}
		if j, ok := byID[m.ID]; ok && !claimed[j] {
			resolve(i, j)
			continue
		}
		if j, ok := firstUnclaimed(byKey[keyOf(m)], claimed); ok {
			resolve(i, j)
			continue
		}
		keep[i] = true
	}

	out := make([]Message, 0, len(msgs))
	for i, m := range msgs {
		if !keep[i] {
			continue
		}
		if j, ok := slot[i]; ok {
			m = msgs[j]
		}
		out = append(out, m)
	}
	return out
}

func firstUnclaimed(candidates []int, claimed map[int]bool) (int, bool) {
	for _, j := range candidates {
		if !claimed[j] {
			return j, true
		}
	}
	return 0, false
}

func sortByTimestamp(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}

func indexOf(msgs []Message, id string) int {
	for i := range msgs {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}

// removeByID returns msgs without the message carrying id.
func removeByID(msgs []Message, id string) []Message {
	i := indexOf(msgs, id)
	if i < 0 {
		return msgs
	}
	out := make([]Message, 0, len(msgs)-1)
	out = append(out, msgs[:i]...)
	return append(out, msgs[i+1:]...)
}
