package billing_test

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billforge/invoicing-api/internal/application/billing"
	"github.com/billforge/invoicing-api/internal/application/dto"
	"github.com/billforge/invoicing-api/internal/domain"
	"github.com/billforge/invoicing-api/internal/domain/entity"
)

// ── fakes ────────────────────────────────────────────────────────────────

type fakeDraftRepo struct {
	mu        sync.Mutex
	drafts    map[string]*entity.DraftEnvelope
	submitted map[string]*entity.DraftEnvelope
}

func newFakeDraftRepo() *fakeDraftRepo {
	return &fakeDraftRepo{
		drafts:    map[string]*entity.DraftEnvelope{},
		submitted: map[string]*entity.DraftEnvelope{},
	}
}

func (r *fakeDraftRepo) Create(_ context.Context, env *entity.DraftEnvelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *env
	r.drafts[env.ID] = &cp
	return nil
}

func (r *fakeDraftRepo) Update(_ context.Context, env *entity.DraftEnvelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drafts[env.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *env
	r.drafts[env.ID] = &cp
	return nil
}

func (r *fakeDraftRepo) GetByID(_ context.Context, id string) (*entity.DraftEnvelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	env, ok := r.drafts[id]
	if !ok {
		// Submitted rows are invisible to the draft read path.
		return nil, nil
	}
	cp := *env
	return &cp, nil
}

func (r *fakeDraftRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, id)
	return nil
}

func (r *fakeDraftRepo) ListByOwner(_ context.Context, ownerID string, limit, offset int) ([]*entity.DraftEnvelope, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*entity.DraftEnvelope
	for _, env := range r.drafts {
		if env.OwnerID == ownerID {
			cp := *env
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *fakeDraftRepo) MarkSubmitted(_ context.Context, id, invoiceNumber string) (*entity.DraftEnvelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	env, ok := r.drafts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	env.Draft.Status = entity.StatusSubmitted
	env.Draft.InvoiceNumber = invoiceNumber
	env.UpdatedAt = time.Now().UTC()
	delete(r.drafts, id)
	r.submitted[id] = env
	return env, nil
}

type fakeCustomerRepo struct {
	customers map[string]*entity.Customer
}

func (r *fakeCustomerRepo) GetByID(_ context.Context, id string) (*entity.Customer, error) {
	return r.customers[id], nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	saved     []string
	discarded []string
}

func (p *recordingPublisher) DraftSaved(_ context.Context, env *entity.DraftEnvelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = append(p.saved, env.ID)
}

func (p *recordingPublisher) DraftDiscarded(_ context.Context, id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.discarded = append(p.discarded, id)
}

func newTestUseCase() (*billing.DraftUseCase, *fakeDraftRepo, *recordingPublisher) {
	repo := newFakeDraftRepo()
	customers := &fakeCustomerRepo{customers: map[string]*entity.Customer{
		"cust-1": {ID: "cust-1", OwnerID: "owner-1", Name: "Bharat Retail", State: "Karnataka", GSTIN: "29AAACB2894G1ZK"},
	}}
	pub := &recordingPublisher{}
	return billing.NewDraftUseCase(repo, customers, pub), repo, pub
}

func saveRequest(sellerState, buyerState string) dto.SaveDraftRequest {
	return dto.SaveDraftRequest{Draft: entity.InvoiceDraft{
		InvoiceNumber: "DRAFT-77",
		Currency:      "INR",
		Seller:        entity.Party{Name: "Acme", State: sellerState},
		Buyer:         entity.Party{Name: "Bharat", State: buyerState},
		Items: []entity.InvoiceItem{{
			Description:    "consulting",
			Quantity:       decimal.NewFromInt(2),
			UnitPrice:      decimal.NewFromInt(100),
			TaxRatePercent: decimal.NewFromInt(18),
		}},
	}}
}

// ── tests ────────────────────────────────────────────────────────────────

func TestDraftUseCase_CreateAssignsIDAndAuthoritativeTotals(t *testing.T) {
	uc, _, pub := newTestUseCase()

	env, err := uc.CreateDraft(context.Background(), "owner-1", saveRequest("Delhi", "Delhi"))
	require.NoError(t, err)
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, env.ID, env.Draft.ID)
	assert.Equal(t, "owner-1", env.OwnerID)

	// Server recomputes regardless of what the client sent.
	assert.True(t, env.Draft.Totals.CGST.Equal(decimal.RequireFromString("18")))
	assert.True(t, env.Draft.Totals.SGST.Equal(decimal.RequireFromString("18")))
	assert.True(t, env.Draft.Totals.IGST.IsZero())
	assert.True(t, env.Draft.Totals.Total.Equal(decimal.RequireFromString("236")))
	assert.Equal(t, []string{env.ID}, pub.saved)
}

func TestDraftUseCase_CreateWithoutJurisdictionIsStorable(t *testing.T) {
	uc, _, _ := newTestUseCase()

	in := saveRequest("", "")
	in.Draft.Totals = entity.ZeroBreakdown()
	env, err := uc.CreateDraft(context.Background(), "owner-1", in)
	require.NoError(t, err, "a draft is a work in progress, missing states must not block saving")
	assert.True(t, env.Draft.Totals.Total.IsZero(), "client totals kept as pending values")
}

func TestDraftUseCase_SaveLoadRoundTrip(t *testing.T) {
	uc, _, _ := newTestUseCase()

	created, err := uc.CreateDraft(context.Background(), "owner-1", saveRequest("Delhi", "Maharashtra"))
	require.NoError(t, err)

	got, err := uc.GetDraft(context.Background(), "owner-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Draft.Seller, got.Draft.Seller)
	assert.True(t, created.Draft.Totals.IGST.Equal(got.Draft.Totals.IGST))
	require.Len(t, got.Draft.Items, 1)
	assert.True(t, got.Draft.Items[0].TaxAmount.Equal(decimal.RequireFromString("36")))
}

func TestDraftUseCase_OwnershipIsEnforced(t *testing.T) {
	uc, _, _ := newTestUseCase()

	created, err := uc.CreateDraft(context.Background(), "owner-1", saveRequest("Delhi", "Delhi"))
	require.NoError(t, err)

	_, err = uc.GetDraft(context.Background(), "owner-2", created.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	err = uc.DeleteDraft(context.Background(), "owner-2", created.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = uc.GetDraft(context.Background(), "", created.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestDraftUseCase_PatchMergesIntoStoredPayload(t *testing.T) {
	uc, _, _ := newTestUseCase()

	in := saveRequest("Delhi", "Delhi")
	in.Draft.Notes = "payment due in 15 days"
	in.Draft.Terms = "net 15"
	created, err := uc.CreateDraft(context.Background(), "owner-1", in)
	require.NoError(t, err)

	// A partial body carrying only the buyer: everything else keeps its
	// stored value instead of being zeroed.
	patch := dto.PatchDraftRequest{Draft: json.RawMessage(`{"buyer":{"name":"Bharat","state":"Maharashtra"}}`)}
	updated, err := uc.UpdateDraft(context.Background(), "owner-1", created.ID, patch)
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.Draft.ID, "identifier is server-owned and survives the update")
	assert.Equal(t, "payment due in 15 days", updated.Draft.Notes, "field absent from the patch must keep its stored value")
	assert.Equal(t, "net 15", updated.Draft.Terms)
	assert.Equal(t, "Acme", updated.Draft.Seller.Name)
	require.Len(t, updated.Draft.Items, 1, "stored items survive a patch that omits them")
	assert.Equal(t, "Maharashtra", updated.Draft.Buyer.State)
	assert.True(t, updated.Draft.Totals.IGST.Equal(decimal.RequireFromString("36")), "totals recomputed for the new jurisdiction")
	assert.True(t, updated.Draft.Totals.CGST.IsZero())

	// Fields present in the patch replace the stored ones.
	patch = dto.PatchDraftRequest{Draft: json.RawMessage(`{"notes":"revised"}`)}
	updated, err = uc.UpdateDraft(context.Background(), "owner-1", created.ID, patch)
	require.NoError(t, err)
	assert.Equal(t, "revised", updated.Draft.Notes)
	assert.Equal(t, "Maharashtra", updated.Draft.Buyer.State, "earlier patch outcome is the new stored value")
}

func TestDraftUseCase_PatchCannotMoveStatusOrID(t *testing.T) {
	uc, _, _ := newTestUseCase()

	created, err := uc.CreateDraft(context.Background(), "owner-1", saveRequest("Delhi", "Delhi"))
	require.NoError(t, err)

	patch := dto.PatchDraftRequest{Draft: json.RawMessage(`{"id":"forged","status":"submitted"}`)}
	updated, err := uc.UpdateDraft(context.Background(), "owner-1", created.ID, patch)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.Draft.ID)
	assert.Equal(t, entity.StatusDraft, updated.Draft.Status, "submission only happens through the submit endpoint")
}

func TestDraftUseCase_UpdateUnknownDraftIsNotFound(t *testing.T) {
	uc, _, _ := newTestUseCase()
	patch := dto.PatchDraftRequest{Draft: json.RawMessage(`{"notes":"x"}`)}
	_, err := uc.UpdateDraft(context.Background(), "owner-1", "nope", patch)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	created, err := uc.CreateDraft(context.Background(), "owner-1", saveRequest("Delhi", "Delhi"))
	require.NoError(t, err)
	_, err = uc.UpdateDraft(context.Background(), "owner-1", created.ID, dto.PatchDraftRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "empty patch body is rejected, not applied")
}

func TestDraftUseCase_ListPaginates(t *testing.T) {
	uc, _, _ := newTestUseCase()

	for i := 0; i < 5; i++ {
		_, err := uc.CreateDraft(context.Background(), "owner-1", saveRequest("Delhi", "Delhi"))
		require.NoError(t, err)
		time.Sleep(time.Millisecond) // distinct UpdatedAt ordering
	}
	_, err := uc.CreateDraft(context.Background(), "owner-2", saveRequest("Delhi", "Delhi"))
	require.NoError(t, err)

	out, err := uc.ListDrafts(context.Background(), "owner-1", dto.PageRequest{Limit: 2, Offset: 0})
	require.NoError(t, err)
	assert.Len(t, out.Items, 2)
	assert.Equal(t, 5, out.Page.Total, "other owners' drafts are not counted")

	rest, err := uc.ListDrafts(context.Background(), "owner-1", dto.PageRequest{Limit: 10, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, rest.Items, 1)
}

func TestDraftUseCase_SubmitIsOneWay(t *testing.T) {
	uc, repo, pub := newTestUseCase()

	created, err := uc.CreateDraft(context.Background(), "owner-1", saveRequest("Delhi", "Maharashtra"))
	require.NoError(t, err)

	out, err := uc.SubmitDraft(context.Background(), "owner-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, out.ID)
	assert.NotEmpty(t, out.InvoiceNumber)
	assert.NotEqual(t, "DRAFT-77", out.InvoiceNumber, "placeholder replaced by the final number")

	// The id is gone from the draft read path.
	_, err = uc.GetDraft(context.Background(), "owner-1", created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Submitting twice reports the conflict, not a silent re-submit.
	_, err = uc.SubmitDraft(context.Background(), "owner-1", created.ID)
	assert.ErrorIs(t, err, domain.ErrDraftSubmitted)

	assert.Equal(t, entity.StatusSubmitted, repo.submitted[created.ID].Draft.Status)
	assert.Equal(t, []string{created.ID}, pub.discarded)
}

func TestDraftUseCase_SubmitRefusesIncompleteDrafts(t *testing.T) {
	uc, _, _ := newTestUseCase()

	noItems := saveRequest("Delhi", "Delhi")
	noItems.Draft.Items = nil
	created, err := uc.CreateDraft(context.Background(), "owner-1", noItems)
	require.NoError(t, err)
	_, err = uc.SubmitDraft(context.Background(), "owner-1", created.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	noState, err := uc.CreateDraft(context.Background(), "owner-1", saveRequest("", ""))
	require.NoError(t, err)
	_, err = uc.SubmitDraft(context.Background(), "owner-1", noState.ID)
	assert.ErrorIs(t, err, domain.ErrMissingJurisdiction)
}

func TestDraftUseCase_DeletePublishesDiscard(t *testing.T) {
	uc, repo, pub := newTestUseCase()

	created, err := uc.CreateDraft(context.Background(), "owner-1", saveRequest("Delhi", "Delhi"))
	require.NoError(t, err)
	require.NoError(t, uc.DeleteDraft(context.Background(), "owner-1", created.ID))

	env, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Nil(t, env)
	assert.Equal(t, []string{created.ID}, pub.discarded)
}

func TestDraftUseCase_CalculateTaxMatchesWorkedExample(t *testing.T) {
	uc, _, _ := newTestUseCase()

	out, err := uc.CalculateTax(context.Background(), dto.CalculateTaxRequest{
		Items: []entity.InvoiceItem{{
			Description:    "goods",
			Quantity:       decimal.NewFromInt(2),
			UnitPrice:      decimal.NewFromInt(100),
			TaxRatePercent: decimal.NewFromInt(18),
		}},
		SellerState: "Delhi",
		BuyerState:  "delhi ", // normalization: case and whitespace
		Shipping:    decimal.Zero,
		Discount:    decimal.Zero,
	})
	require.NoError(t, err)
	assert.True(t, out.Breakdown.CGST.Equal(decimal.RequireFromString("18")))
	assert.True(t, out.Breakdown.SGST.Equal(decimal.RequireFromString("18")))
	assert.True(t, out.Breakdown.IGST.IsZero())
	assert.True(t, out.Breakdown.Total.Equal(decimal.RequireFromString("236")))
}

func TestDraftUseCase_GetCustomerScopedToOwner(t *testing.T) {
	uc, _, _ := newTestUseCase()

	got, err := uc.GetCustomer(context.Background(), "owner-1", "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "Bharat Retail", got.Name)
	assert.Equal(t, "Karnataka", got.State)

	_, err = uc.GetCustomer(context.Background(), "owner-2", "cust-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = uc.GetCustomer(context.Background(), "owner-1", "cust-404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
