package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/billforge/invoicing-api/internal/application/dto"
	"github.com/billforge/invoicing-api/internal/client/draftapi"
	"github.com/billforge/invoicing-api/internal/domain/entity"
	"github.com/billforge/invoicing-api/internal/domain/gst"
	"github.com/billforge/invoicing-api/pkg/logger"
)

// State of the controller's draft with respect to the remote store.
type State int

const (
	StateClean State = iota
	StateDirty
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateSaving:
		return "saving"
	default:
		return "unknown"
	}
}

// TaxResult outcome of a tax computation request. Fallback is true when
// the remote service was unreachable and the local engine produced the
// breakdown instead; Warning carries the user-facing message for that
// case.
type TaxResult struct {
	Breakdown entity.TaxBreakdown
	Fallback  bool
	Warning   string
}

// Controller is the single owner of the invoice currently being edited:
// the in-memory draft, the dirty flag, the local backup slot and the
// autosave scheduler. Nothing else mutates these. All methods are safe
// for concurrent use, though the intended caller is a single UI loop.
type Controller struct {
	remote    RemoteStore
	customers CustomerDirectory
	backup    BackupStore
	notify    Notifier
	log       *logger.Logger
	sched     *AutoSaveScheduler

	mu        sync.Mutex
	draft     *entity.InvoiceDraft
	dirty     bool
	saving    bool
	editSeq   uint64
	lastSaved time.Time
	// sessionToken identifies the draft instance across async completions.
	// Regenerated on load/reset/submit; a remote call that settles under
	// an older token is stale and its result is discarded silently.
	sessionToken string
}

// Config for a controller.
type Config struct {
	Remote    RemoteStore
	Customers CustomerDirectory
	Backup    BackupStore
	Notify    Notifier // optional
	Log       *logger.Logger
	Debounce  time.Duration
}

// NewController starts an edit session with a fresh empty draft. No
// remote call happens until the first persist.
func NewController(cfg Config) *Controller {
	if cfg.Notify == nil {
		cfg.Notify = NoopNotifier{}
	}
	c := &Controller{
		remote:       cfg.Remote,
		customers:    cfg.Customers,
		backup:       cfg.Backup,
		notify:       cfg.Notify,
		log:          cfg.Log,
		draft:        newDraft(),
		sessionToken: uuid.New().String(),
	}
	c.sched = NewAutoSaveScheduler(cfg.Debounce, c.persist)
	return c
}

func newDraft() *entity.InvoiceDraft {
	now := time.Now()
	return &entity.InvoiceDraft{
		InvoiceNumber: fmt.Sprintf("DRAFT-%d", now.UnixNano()),
		IssueDate:     now,
		DueDate:       now.AddDate(0, 0, 15),
		Currency:      "INR",
		Status:        entity.StatusDraft,
		Shipping:      decimal.Zero,
		Discount:      decimal.Zero,
		Totals:        entity.ZeroBreakdown(),
	}
}

// Draft returns a copy of the current draft.
func (c *Controller) Draft() *entity.InvoiceDraft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.Clone()
}

// State reports Clean, Dirty or Saving. The three are mutually
// exclusive; Saving wins while a write is in flight.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.saving {
		return StateSaving
	}
	if c.dirty {
		return StateDirty
	}
	return StateClean
}

// LastSaved reports the timestamp of the last successful remote persist.
func (c *Controller) LastSaved() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSaved
}

// Apply mutates the draft through fn (field set or bulk merge). The
// mutation runs on a copy first: when it leaves the items invalid, the
// edit is rejected with ErrInvalidLineItem and the draft is unchanged.
// A committed edit marks the draft dirty, writes the local backup
// synchronously and schedules an autosave.
func (c *Controller) Apply(fn func(d *entity.InvoiceDraft)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.draft.Clone()
	fn(next)
	if err := gst.ValidateItems(next.Items); err != nil {
		return err
	}
	// id, status and number are not editable via Apply
	next.ID = c.draft.ID
	next.Status = c.draft.Status
	next.InvoiceNumber = c.draft.InvoiceNumber

	c.draft = next
	c.markDirtyLocked()
	return nil
}

// SetItems replaces the line items.
func (c *Controller) SetItems(items []entity.InvoiceItem) error {
	return c.Apply(func(d *entity.InvoiceDraft) {
		d.Items = append([]entity.InvoiceItem(nil), items...)
	})
}

// SetNotes replaces notes and terms.
func (c *Controller) SetNotes(notes, terms string) error {
	return c.Apply(func(d *entity.InvoiceDraft) {
		d.Notes = notes
		d.Terms = terms
	})
}

// SetSeller replaces the origin party.
func (c *Controller) SetSeller(p entity.Party) error {
	return c.Apply(func(d *entity.InvoiceDraft) { d.Seller = p })
}

// SetBuyer replaces the destination party.
func (c *Controller) SetBuyer(p entity.Party) error {
	return c.Apply(func(d *entity.InvoiceDraft) { d.Buyer = p })
}

// markDirtyLocked: local backup first (synchronous, survives a crash in
// the debounce window), then the debounced remote write.
func (c *Controller) markDirtyLocked() {
	c.dirty = true
	c.editSeq++
	if err := c.backup.Write(c.draft); err != nil {
		// Backup is best-effort: losing it degrades crash recovery, not
		// the edit itself.
		c.log.Warn().Err(err).Msg("write draft backup")
	}
	c.sched.Schedule()
}

// LoadCustomer resolves a customer and merges billing data into the
// buyer party. Items, notes and every other user-edited section are
// never touched. On lookup failure the draft is left unmodified and a
// CustomerLookupError is returned.
func (c *Controller) LoadCustomer(ctx context.Context, customerID string) error {
	customer, err := c.customers.GetCustomer(ctx, customerID)
	if err != nil {
		return &CustomerLookupError{CustomerID: customerID, Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	buyer := &c.draft.Buyer
	buyer.Name = customer.Name
	if customer.BillingAddress != "" {
		buyer.Address = customer.BillingAddress
	} else {
		buyer.Address = customer.ShippingAddress
	}
	buyer.State = customer.State
	buyer.GSTIN = customer.GSTIN
	c.markDirtyLocked()
	return nil
}

// RecalcTotals client-side tax computation, used directly by the UI or
// as the fallback when the remote tax service is unreachable.
// Idempotent: recomputing over unchanged items yields identical totals.
func (c *Controller) RecalcTotals() (entity.TaxBreakdown, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recalcLocked()
}

func (c *Controller) recalcLocked() (entity.TaxBreakdown, error) {
	bd, items, err := gst.Compute(gst.Input{
		Items:       c.draft.Items,
		SellerState: c.draft.Seller.State,
		BuyerState:  c.draft.Buyer.State,
		Shipping:    c.draft.Shipping,
		Discount:    c.draft.Discount,
	})
	if err != nil {
		// Missing jurisdiction: totals stay pending, draft untouched.
		return entity.TaxBreakdown{}, err
	}
	if !equalBreakdown(c.draft.Totals, bd) {
		c.draft.Totals = bd
		if items != nil {
			c.draft.Items = items
		}
		c.markDirtyLocked()
	}
	return bd, nil
}

// ServerCalculateTax requests the authoritative breakdown from the
// remote service. On a network-class failure it degrades to the local
// engine and reports the fallback as a non-fatal warning; a server
// rejection (invalid payload) is returned as the error it is.
func (c *Controller) ServerCalculateTax(ctx context.Context) (*TaxResult, error) {
	c.mu.Lock()
	if err := gst.ValidateItems(c.draft.Items); err != nil {
		// Rejected locally, never sent to the server.
		c.mu.Unlock()
		return nil, err
	}
	req := dto.CalculateTaxRequest{
		Items:       append([]entity.InvoiceItem(nil), c.draft.Items...),
		SellerState: c.draft.Seller.State,
		BuyerState:  c.draft.Buyer.State,
		Shipping:    c.draft.Shipping,
		Discount:    c.draft.Discount,
	}
	token := c.sessionToken
	c.mu.Unlock()

	resp, err := c.remote.CalculateTax(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.sessionToken {
		// Draft identity changed while the call was in flight: the result
		// belongs to a draft that no longer exists. Dropped silently, no
		// result and no error.
		return nil, nil
	}
	if err != nil {
		if draftapi.IsTransport(err) {
			bd, recalcErr := c.recalcLocked()
			if recalcErr != nil {
				return nil, recalcErr
			}
			c.log.Warn().Err(err).Msg("tax service unreachable, using local totals")
			return &TaxResult{
				Breakdown: bd,
				Fallback:  true,
				Warning:   "tax service unreachable, totals computed locally",
			}, nil
		}
		return nil, err
	}

	c.draft.Totals = resp.Breakdown
	if resp.Items != nil {
		c.draft.Items = resp.Items
	}
	c.markDirtyLocked()
	return &TaxResult{Breakdown: resp.Breakdown}, nil
}

// SaveDraftManually forces an immediate remote persist, bypassing the
// debounce window but sharing the in-flight gate with autosave: a manual
// save requested during an in-flight write coalesces into the next
// available write.
func (c *Controller) SaveDraftManually() error {
	return c.sched.Flush()
}

// persist is the single write path for both autosave and manual save.
// It sends the snapshot current at call time; a failure keeps the dirty
// flag so a later cycle retries.
func (c *Controller) persist() error {
	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	snapshot := c.draft.Clone()
	token := c.sessionToken
	seq := c.editSeq
	c.saving = true
	c.mu.Unlock()

	ctx := context.Background()
	var env *entity.DraftEnvelope
	var err error
	if snapshot.ID == "" {
		env, err = c.remote.CreateDraft(ctx, snapshot)
	} else {
		env, err = c.remote.UpdateDraft(ctx, snapshot.ID, snapshot)
	}

	c.mu.Lock()
	c.saving = false
	if token != c.sessionToken {
		// The draft this write belonged to is gone; drop the result.
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.mu.Unlock()
		c.log.Warn().Err(err).Msg("draft persist failed, will retry")
		return err
	}
	if c.draft.ID == "" {
		c.draft.ID = env.ID
	}
	c.lastSaved = env.UpdatedAt
	if c.editSeq == seq {
		c.dirty = false
	}
	c.mu.Unlock()

	c.notify.DraftSaved(env)
	return nil
}

// LoadDraft replaces the session's draft with the remote envelope.
func (c *Controller) LoadDraft(ctx context.Context, draftID string) error {
	env, err := c.remote.GetDraft(ctx, draftID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sched.Cancel()
	draft := env.Draft
	c.draft = &draft
	c.draft.ID = env.ID
	c.dirty = false
	c.lastSaved = env.UpdatedAt
	c.sessionToken = uuid.New().String()
	// Remote is source of truth now; stale backup would only confuse a
	// later restore.
	if err := c.backup.Clear(); err != nil {
		c.log.Warn().Err(err).Msg("clear draft backup")
	}
	return nil
}

// RestoreBackup offers the interrupted session's draft at startup.
// Returns false when no backup exists. A restored draft is dirty: its
// edits never reached the remote store.
func (c *Controller) RestoreBackup() (bool, error) {
	rec, err := c.backup.Read()
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	draft := rec.Draft
	c.draft = &draft
	c.sessionToken = uuid.New().String()
	c.markDirtyLocked()
	return true, nil
}

// Reset discards the draft: remote delete when an identifier exists,
// local backup cleared, fresh empty draft in memory. Any pending
// autosave timer dies with the old draft; an in-flight write is left to
// finish and its result discarded by the token guard.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	c.sched.Cancel()
	oldID := c.draft.ID
	c.draft = newDraft()
	c.dirty = false
	c.lastSaved = time.Time{}
	c.sessionToken = uuid.New().String()
	if err := c.backup.Clear(); err != nil {
		c.log.Warn().Err(err).Msg("clear draft backup")
	}
	c.mu.Unlock()

	if oldID != "" {
		if err := c.remote.DeleteDraft(ctx, oldID); err != nil {
			return err
		}
		c.notify.DraftDiscarded(oldID)
	}
	return nil
}

// Submit finalizes the draft into an invoice: a one-way transition out
// of the draft model. Unsynced edits are persisted first through the
// shared write gate.
func (c *Controller) Submit(ctx context.Context) (*dto.SubmitDraftResponse, error) {
	c.mu.Lock()
	needsSave := c.dirty || c.draft.ID == ""
	c.mu.Unlock()
	if needsSave {
		if err := c.sched.Flush(); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	id := c.draft.ID
	c.mu.Unlock()
	if id == "" {
		return nil, errors.New("session: draft has no remote identifier")
	}

	resp, err := c.remote.SubmitDraft(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.sched.Cancel()
	c.draft.Status = entity.StatusSubmitted
	c.draft.InvoiceNumber = resp.InvoiceNumber
	c.dirty = false
	c.sessionToken = uuid.New().String()
	if err := c.backup.Clear(); err != nil {
		c.log.Warn().Err(err).Msg("clear draft backup")
	}
	c.mu.Unlock()

	c.notify.DraftDiscarded(id)
	return resp, nil
}

// Close tears the session down: pending autosave timers are cancelled.
func (c *Controller) Close() {
	c.sched.Cancel()
}

func equalBreakdown(a, b entity.TaxBreakdown) bool {
	return a.Subtotal.Equal(b.Subtotal) &&
		a.CGST.Equal(b.CGST) &&
		a.SGST.Equal(b.SGST) &&
		a.IGST.Equal(b.IGST) &&
		a.Shipping.Equal(b.Shipping) &&
		a.Discount.Equal(b.Discount) &&
		a.Total.Equal(b.Total)
}
