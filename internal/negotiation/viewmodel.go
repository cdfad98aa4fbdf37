package negotiation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/farmlink/farmlink/internal/logging"
	"github.com/farmlink/farmlink/internal/wire"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errEmptyResponse = errors.New("empty response")

// Opts configures a ViewModel. API and Session are required.
type Opts struct {
	API     API
	Session Session
	Logger  *zap.Logger
	Locale  string           // counter-offer text locale, default fr
	Now     func() time.Time // default time.Now
	NewID   func() string    // optimistic message ids, default "local-<uuid>"
}

// ViewModel holds the state of one negotiation page. It is safe for
// concurrent use; the lock is never held across an API call.
type ViewModel struct {
	api     API
	session Session
	log     *zap.Logger
	locale  string
	now     func() time.Time
	newID   func() string

	mu       sync.Mutex
	gen      uint64
	neg      *Negotiation
	notFound bool
	draft    string
	alert    string
}

// New returns an empty ViewModel.
func New(opts Opts) *ViewModel {
	vm := &ViewModel{
		api:     opts.API,
		session: opts.Session,
		log:     logging.OrNop(opts.Logger).Named("negotiation"),
		locale:  opts.Locale,
		now:     opts.Now,
		newID:   opts.NewID,
	}
	if vm.locale == "" {
		vm.locale = LocaleFR
	}
	if vm.now == nil {
		vm.now = time.Now
	}
	if vm.newID == nil {
		vm.newID = func() string { return "local-" + uuid.NewString() }
	}
	return vm
}

// Load fetches and normalizes negotiation id, replacing any current state.
// On failure the view is left in the not-found state.
func (vm *ViewModel) Load(ctx context.Context, id string) error {
	vm.mu.Lock()
	vm.gen++
	gen := vm.gen
	vm.neg = nil
	vm.notFound = false
	vm.alert = ""
	vm.mu.Unlock()

	raw, err := vm.api.Get(ctx, id)
	if err == nil && raw == nil {
		err = errEmptyResponse
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if gen != vm.gen {
		vm.log.Debug("discarding stale load", zap.String("negotiation", id))
		return ErrStale
	}
	if err != nil {
		vm.notFound = true
		vm.log.Warn("load failed", zap.String("negotiation", id), zap.Error(err))
		return fmt.Errorf("negotiation: load %s: %w", id, err)
	}
	n := Normalize(raw, vm.now())
	vm.neg = &n
	return nil
}

// SendMessage appends text to the thread immediately, then sends it as
// typed. Whitespace-only text is rejected. The input draft is cleared. On
// failure the appended message is removed again and an alert is raised.
func (vm *ViewModel) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	vm.mu.Lock()
	ident, err := vm.preconditions()
	if err != nil {
		vm.mu.Unlock()
		return err
	}
	local := Message{
		ID:        vm.newID(),
		Content:   text,
		Type:      TypeMessage,
		UserID:    ident.UserID,
		UserName:  ident.Name,
		Timestamp: vm.now(),
		Pending:   true,
	}
	gen, negID := vm.appendLocal(local)
	vm.draft = ""
	vm.mu.Unlock()

	raw, err := vm.api.Update(ctx, negID, wire.UpdateRequest{Message: text}, local.ID)
	return vm.settle(gen, local, raw, err, "send message")
}

// MakeCounterOffer proposes price for quantity of the listing's unit. The
// descriptive message is appended immediately, as for SendMessage.
func (vm *ViewModel) MakeCounterOffer(ctx context.Context, price, quantity float64) error {
	if price <= 0 || quantity <= 0 {
		return ErrInvalidCounterOffer
	}

	vm.mu.Lock()
	ident, err := vm.preconditions()
	if err != nil {
		vm.mu.Unlock()
		return err
	}
	text := CounterOfferText(vm.locale, price, quantity, vm.neg.Unit())
	local := Message{
		ID:        vm.newID(),
		Content:   text,
		Price:     &price,
		Quantity:  &quantity,
		Type:      TypeCounterOffer,
		UserID:    ident.UserID,
		UserName:  ident.Name,
		Timestamp: vm.now(),
		Pending:   true,
	}
	gen, negID := vm.appendLocal(local)
	vm.mu.Unlock()

	req := wire.UpdateRequest{
		Message:  text,
		Price:    &price,
		Quantity: &quantity,
		Status:   string(StatusCounterOffer),
	}
	raw, err := vm.api.Update(ctx, negID, req, local.ID)
	return vm.settle(gen, local, raw, err, "counter-offer")
}

// AcceptOffer accepts a pending negotiation. Only the listing owner may.
func (vm *ViewModel) AcceptOffer(ctx context.Context) error {
	return vm.decide(ctx, StatusAccepted)
}

// RejectOffer rejects a pending negotiation. Only the listing owner may.
func (vm *ViewModel) RejectOffer(ctx context.Context) error {
	return vm.decide(ctx, StatusRejected)
}

// decide sends a status-only change. There is nothing to show
// optimistically; on success the server's record replaces local state.
func (vm *ViewModel) decide(ctx context.Context, status Status) error {
	vm.mu.Lock()
	ident, err := vm.preconditions()
	if err != nil {
		vm.mu.Unlock()
		return err
	}
	if !vm.neg.IsOwner(ident.UserID) {
		vm.mu.Unlock()
		return ErrNotOwner
	}
	if vm.neg.Status != StatusPending {
		current := vm.neg.Status
		vm.mu.Unlock()
		return fmt.Errorf("%w: status is %s", ErrNotPending, current)
	}
	gen, negID := vm.gen, vm.neg.ID
	vm.mu.Unlock()

	raw, err := vm.api.Update(ctx, negID, wire.UpdateRequest{Status: string(status)}, vm.newID())
	if err == nil && raw == nil {
		err = errEmptyResponse
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if gen != vm.gen || vm.neg == nil {
		vm.log.Debug("discarding stale status response", zap.String("negotiation", negID))
		return ErrStale
	}
	op := strings.ToLower(string(status))
	if err != nil {
		vm.alert = alertText(op, err)
		vm.log.Warn("status change failed", zap.String("negotiation", negID), zap.String("status", string(status)), zap.Error(err))
		return fmt.Errorf("negotiation: %s: %w", op, err)
	}
	n := Normalize(raw, vm.now())
	vm.neg = &n
	return nil
}

// preconditions checks the session and loaded state. Callers hold mu.
func (vm *ViewModel) preconditions() (Identity, error) {
	var ident Identity
	ok := false
	if vm.session != nil {
		ident, ok = vm.session.Identity()
	}
	if !ok {
		return Identity{}, ErrNoSession
	}
	if vm.neg == nil {
		return Identity{}, ErrNotLoaded
	}
	return ident, nil
}

// appendLocal adds an optimistic message. Callers hold mu.
func (vm *ViewModel) appendLocal(m Message) (gen uint64, negID string) {
	vm.neg.Messages = append(vm.neg.Messages, m)
	vm.log.Debug("optimistic append", zap.String("negotiation", vm.neg.ID), zap.String("message", m.ID))
	return vm.gen, vm.neg.ID
}

// settle applies the outcome of a message send: reconcile on success,
// roll back the optimistic message on failure.
func (vm *ViewModel) settle(gen uint64, local Message, raw *wire.Negotiation, err error, op string) error {
	if err == nil && raw == nil {
		err = errEmptyResponse
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if gen != vm.gen || vm.neg == nil {
		vm.log.Debug("discarding stale send response", zap.String("message", local.ID))
		return ErrStale
	}
	if err != nil {
		vm.neg.Messages = removeByID(vm.neg.Messages, local.ID)
		vm.alert = alertText(op, err)
		vm.log.Warn("send failed, rolled back", zap.String("negotiation", vm.neg.ID), zap.String("message", local.ID), zap.Error(err))
		return fmt.Errorf("negotiation: %s: %w", op, err)
	}
	merged := Reconcile(*vm.neg, &local, Normalize(raw, vm.now()))
	vm.neg = &merged
	return nil
}

func alertText(op string, err error) string {
	return fmt.Sprintf("%s failed: %v", op, err)
}

// Close detaches the view. Responses still in flight are discarded.
func (vm *ViewModel) Close() {
	vm.mu.Lock()
	vm.gen++
	vm.mu.Unlock()
}

// Snapshot returns a copy of the current negotiation. ok is false until a
// Load succeeds.
func (vm *ViewModel) Snapshot() (n Negotiation, ok bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.neg == nil {
		return Negotiation{}, false
	}
	return vm.neg.Clone(), true
}

// Messages returns a copy of the rendered thread.
func (vm *ViewModel) Messages() []Message {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.neg == nil {
		return nil
	}
	return append([]Message(nil), vm.neg.Messages...)
}

// NotFound reports whether the last Load failed.
func (vm *ViewModel) NotFound() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.notFound
}

// CanDecide reports whether the current user may accept or reject now.
func (vm *ViewModel) CanDecide() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	ident, err := vm.preconditions()
	return err == nil && vm.neg.IsOwner(ident.UserID) && vm.neg.Status == StatusPending
}

// Alert returns the pending user-facing error, if any.
func (vm *ViewModel) Alert() string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.alert
}

// DismissAlert clears the pending alert.
func (vm *ViewModel) DismissAlert() {
	vm.mu.Lock()
	vm.alert = ""
	vm.mu.Unlock()
}

// SetDraft stores the message input.
func (vm *ViewModel) SetDraft(s string) {
	vm.mu.Lock()
	vm.draft = s
	vm.mu.Unlock()
}

// Draft returns the message input.
func (vm *ViewModel) Draft() string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.draft
}
