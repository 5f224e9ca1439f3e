package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Narimm/OpenVPMS-sub018/internal/model"
)

// ── Test doubles ─────────────────────────────────────────────────────────────

type stubPriceView struct {
	prices []*ExistingPrice
}

var _ ExistingPriceView = (*stubPriceView)(nil)

func (s *stubPriceView) PricesForProduct(_ context.Context, _ uuid.UUID, kind Kind) ([]*ExistingPrice, error) {
	var out []*ExistingPrice
	for _, p := range s.prices {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out, nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func unitRec(price, cost string, from, to *time.Time) *PriceRecord {
	return &PriceRecord{Kind: UnitPrice, Price: dec(price), Cost: dec(cost), From: from, To: to, Line: 2}
}

func fixedRec(price, cost string, def bool, from, to *time.Time) *PriceRecord {
	return &PriceRecord{Kind: FixedPrice, Price: dec(price), Cost: dec(cost), Default: def, From: from, To: to, Line: 2}
}

// ownedBy turns rec into a persisted price belonging to owner.
func ownedBy(owner uuid.UUID, rec *PriceRecord) *ExistingPrice {
	rec.ID = uuid.New()
	return &ExistingPrice{PriceRecord: *rec, OwnerID: owner}
}

func testProduct() *model.Product {
	return &model.Product{ID: uuid.New(), Name: "Amoxicillin 250mg Tablets"}
}

func setFor(p *model.Product, recs ...*PriceRecord) *ProductPriceSet {
	s := NewProductPriceSet(p.ID.String(), p.Name, 1)
	for _, r := range recs {
		s.AddPrice(r)
	}
	return s
}

func reconcile(t *testing.T, p *model.Product, existing []*ExistingPrice, set *ProductPriceSet) (*ProductPriceSet, error) {
	t.Helper()
	r := NewReconciler(&stubPriceView{prices: existing})
	return r.Reconcile(context.Background(), p, set)
}

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, &ImportError{Code: code}), "want %s, got %v", code, err)
}

// ── Reconcile ────────────────────────────────────────────────────────────────

func TestReconcileNoChanges(t *testing.T) {
	p := testProduct()
	existing := ownedBy(p.ID, unitRec("10.00", "5.00", date(2023, 1, 1), nil))

	imported := unitRec("10.00", "5.00", date(2023, 1, 1), nil)
	imported.ID = existing.ID

	changes, err := reconcile(t, p, []*ExistingPrice{existing}, setFor(p, imported))
	require.NoError(t, err)
	assert.Nil(t, changes)
}

func TestReconcilePrintedNameChange(t *testing.T) {
	p := testProduct()
	set := setFor(p)
	set.PrintedName = "Amoxicillin tabs"

	changes, err := reconcile(t, p, nil, set)
	require.NoError(t, err)
	require.NotNil(t, changes)
	assert.Equal(t, "Amoxicillin tabs", changes.PrintedName)
	assert.Empty(t, changes.FixedPrices)
	assert.Empty(t, changes.UnitPrices)
}

func TestReconcilePriceUpdate(t *testing.T) {
	p := testProduct()
	existing := ownedBy(p.ID, unitRec("10.00", "5.00", date(2023, 1, 1), nil))

	imported := unitRec("12.00", "6.00", date(2023, 1, 1), nil)
	imported.ID = existing.ID

	changes, err := reconcile(t, p, []*ExistingPrice{existing}, setFor(p, imported))
	require.NoError(t, err)
	require.NotNil(t, changes)
	require.Len(t, changes.UnitPrices, 1)
	assert.Equal(t, existing.ID, changes.UnitPrices[0].ID)
	assert.True(t, changes.UnitPrices[0].Price.Equal(dec("12.00")))
}

func TestReconcileDateOnlyChangeIsUpdate(t *testing.T) {
	p := testProduct()
	existing := ownedBy(p.ID, unitRec("10.00", "5.00", date(2023, 1, 1), nil))

	// same values, a closing date added
	imported := unitRec("10.00", "5.00", date(2023, 1, 1), date(2023, 6, 30))
	imported.ID = existing.ID

	changes, err := reconcile(t, p, []*ExistingPrice{existing}, setFor(p, imported))
	require.NoError(t, err)
	require.NotNil(t, changes)
	require.Len(t, changes.UnitPrices, 1)
	assert.Equal(t, existing.ID, changes.UnitPrices[0].ID)
	require.NotNil(t, changes.UnitPrices[0].To)
}

func TestReconcileMaxDiscountOnlyChangeIgnored(t *testing.T) {
	p := testProduct()
	rec := unitRec("10.00", "5.00", date(2023, 1, 1), nil)
	rec.MaxDiscount = dec("10")
	existing := ownedBy(p.ID, rec)

	imported := unitRec("10.00", "5.00", date(2023, 1, 1), nil)
	imported.ID = existing.ID
	imported.MaxDiscount = dec("25")

	changes, err := reconcile(t, p, []*ExistingPrice{existing}, setFor(p, imported))
	require.NoError(t, err)
	assert.Nil(t, changes)
}

func TestReconcileMissingFromDate(t *testing.T) {
	p := testProduct()
	imported := unitRec("10.00", "5.00", nil, nil)
	imported.Line = 7

	_, err := reconcile(t, p, nil, setFor(p, imported))
	requireCode(t, err, NoFromDate)
	assert.Equal(t, 7, AsImportError(err).Line)
}

func TestReconcilePriceNotFound(t *testing.T) {
	p := testProduct()
	imported := unitRec("10.00", "5.00", date(2023, 1, 1), nil)
	imported.ID = uuid.New()

	_, err := reconcile(t, p, nil, setFor(p, imported))
	requireCode(t, err, PriceNotFound)
}

// ── Creations ────────────────────────────────────────────────────────────────

func TestReconcileFixedOverlapAllowed(t *testing.T) {
	p := testProduct()
	existing := ownedBy(p.ID, fixedRec("20.00", "10.00", true, date(2023, 1, 1), date(2023, 12, 31)))

	imported := fixedRec("25.00", "10.00", false, date(2023, 6, 1), date(2023, 8, 31))

	changes, err := reconcile(t, p, []*ExistingPrice{existing}, setFor(p, imported))
	require.NoError(t, err)
	require.NotNil(t, changes)
	require.Len(t, changes.FixedPrices, 1)
	// pure creation: the bounded existing price is left alone
	assert.Equal(t, uuid.Nil, changes.FixedPrices[0].ID)
}

func TestReconcileUnitOverlapRejected(t *testing.T) {
	p := testProduct()
	existing := ownedBy(p.ID, unitRec("10.00", "5.00", date(2023, 1, 1), date(2023, 12, 31)))

	imported := unitRec("12.00", "5.00", date(2023, 6, 1), date(2023, 8, 31))

	_, err := reconcile(t, p, []*ExistingPrice{existing}, setFor(p, imported))
	requireCode(t, err, UnitPriceOverlap)
}

func TestReconcileAddAfterExisting(t *testing.T) {
	p := testProduct()
	existing := ownedBy(p.ID, unitRec("10.00", "5.00", date(2023, 1, 1), date(2023, 6, 30)))

	imported := unitRec("12.00", "6.00", date(2023, 7, 1), nil)

	changes, err := reconcile(t, p, []*ExistingPrice{existing}, setFor(p, imported))
	require.NoError(t, err)
	require.NotNil(t, changes)
	require.Len(t, changes.UnitPrices, 1)
	assert.Equal(t, uuid.Nil, changes.UnitPrices[0].ID)
}

func TestReconcileDuplicateUnitRows(t *testing.T) {
	p := testProduct()
	a := unitRec("10.00", "5.00", date(2023, 1, 1), nil)
	b := unitRec("12.00", "5.00", date(2023, 1, 1), nil)

	_, err := reconcile(t, p, nil, setFor(p, a, b))
	requireCode(t, err, DuplicateUnitPrice)
}

func TestReconcileIdenticalRowsCollapse(t *testing.T) {
	p := testProduct()
	a := unitRec("10.00", "5.00", date(2023, 1, 1), nil)
	b := unitRec("10.00", "5.00", date(2023, 1, 1), nil)

	changes, err := reconcile(t, p, nil, setFor(p, a, b))
	require.NoError(t, err)
	require.NotNil(t, changes)
	assert.Len(t, changes.UnitPrices, 1)
}

// ── Closing open-ended prices ────────────────────────────────────────────────

func TestReconcileClosesOpenEndedUnitPrice(t *testing.T) {
	p := testProduct()
	existing := ownedBy(p.ID, unitRec("10.00", "5.00", date(2023, 1, 1), nil))

	imported := unitRec("12.00", "6.00", date(2024, 1, 1), nil)

	changes, err := reconcile(t, p, []*ExistingPrice{existing}, setFor(p, imported))
	require.NoError(t, err)
	require.NotNil(t, changes)
	require.Len(t, changes.UnitPrices, 2)

	closed, created := changes.UnitPrices[0], changes.UnitPrices[1]
	assert.Equal(t, existing.ID, closed.ID)
	require.NotNil(t, closed.To)
	assert.Equal(t, *date(2023, 12, 31), *closed.To)
	assert.Equal(t, uuid.Nil, created.ID)
}

func TestReconcileClosesOpenEndedFixedPrice(t *testing.T) {
	p := testProduct()
	existing := ownedBy(p.ID, fixedRec("20.00", "10.00", true, date(2023, 1, 1), nil))

	imported := fixedRec("22.00", "10.00", true, date(2024, 1, 1), nil)

	changes, err := reconcile(t, p, []*ExistingPrice{existing}, setFor(p, imported))
	require.NoError(t, err)
	require.NotNil(t, changes)
	require.Len(t, changes.FixedPrices, 2)
	require.NotNil(t, changes.FixedPrices[0].To)
	assert.Equal(t, *date(2023, 12, 31), *changes.FixedPrices[0].To)
}

func TestReconcileRejectsMixedStartDates(t *testing.T) {
	p := testProduct()
	existing := ownedBy(p.ID, unitRec("10.00", "5.00", date(2023, 1, 1), nil))

	a := unitRec("12.00", "6.00", date(2024, 1, 1), date(2024, 1, 31))
	b := unitRec("14.00", "7.00", date(2024, 2, 1), nil)

	_, err := reconcile(t, p, []*ExistingPrice{existing}, setFor(p, a, b))
	requireCode(t, err, CannotCloseExistingPrice)
}

func TestReconcileClosingDateBeforeExistingStart(t *testing.T) {
	p := testProduct()
	existing := ownedBy(p.ID, unitRec("10.00", "5.00", date(2023, 6, 1), nil))

	// starts the same day the open-ended price does, so closing it would need
	// an end date before its own start
	imported := unitRec("12.00", "6.00", date(2023, 6, 1), date(2023, 12, 31))

	_, err := reconcile(t, p, []*ExistingPrice{existing}, setFor(p, imported))
	requireCode(t, err, FromDateGreaterThanToDate)
}

// A non-default fixed price starting the very day an open-ended default one
// did coexists with it: the new price is created and the old stays open.
func TestReconcileFixedPriceSameDayCoexists(t *testing.T) {
	p := testProduct()
	existing := ownedBy(p.ID, fixedRec("50.00", "25.00", true, date(2024, 1, 1), nil))

	imported := fixedRec("60.00", "25.00", false, date(2024, 1, 1), nil)

	changes, err := reconcile(t, p, []*ExistingPrice{existing}, setFor(p, imported))
	require.NoError(t, err)
	require.NotNil(t, changes)
	require.Len(t, changes.FixedPrices, 1)
	assert.Equal(t, uuid.Nil, changes.FixedPrices[0].ID)
	assert.Nil(t, changes.FixedPrices[0].To)
}

// A record that is both updated (reopened) and then closed by a creation in
// the same import must appear in the change set exactly once, carrying the
// closing date.
func TestReconcileUpdatedThenClosedEmittedOnce(t *testing.T) {
	p := testProduct()
	existing := ownedBy(p.ID, unitRec("11.00", "5.00", date(2023, 1, 1), date(2023, 3, 31)))

	reopened := unitRec("11.00", "5.00", date(2023, 1, 1), nil)
	reopened.ID = existing.ID
	created := unitRec("12.00", "6.00", date(2023, 6, 1), nil)

	changes, err := reconcile(t, p, []*ExistingPrice{existing}, setFor(p, reopened, created))
	require.NoError(t, err)
	require.NotNil(t, changes)
	require.Len(t, changes.UnitPrices, 2)

	closed, added := changes.UnitPrices[0], changes.UnitPrices[1]
	assert.Equal(t, existing.ID, closed.ID)
	require.NotNil(t, closed.To)
	assert.Equal(t, *date(2023, 5, 31), *closed.To)
	assert.Equal(t, uuid.Nil, added.ID)
}

// Two open-ended fixed prices both intersect the new one, so neither can be
// singled out for closing and the new price is simply created.
func TestReconcileMultipleFixedMatchesCreateWithoutClosing(t *testing.T) {
	p := testProduct()
	a := ownedBy(p.ID, fixedRec("20.00", "10.00", true, date(2023, 1, 1), nil))
	b := ownedBy(p.ID, fixedRec("30.00", "15.00", false, date(2023, 3, 1), nil))

	imported := fixedRec("25.00", "12.00", false, date(2024, 1, 1), nil)

	changes, err := reconcile(t, p, []*ExistingPrice{a, b}, setFor(p, imported))
	require.NoError(t, err)
	require.NotNil(t, changes)
	require.Len(t, changes.FixedPrices, 1)
	assert.Equal(t, uuid.Nil, changes.FixedPrices[0].ID)
}

// ── Linked prices ────────────────────────────────────────────────────────────

func TestReconcileLinkedPriceChangeRejected(t *testing.T) {
	p := testProduct()
	template := uuid.New()
	linked := ownedBy(template, unitRec("10.00", "5.00", date(2023, 1, 1), nil))

	imported := unitRec("12.00", "5.00", date(2023, 1, 1), nil)
	imported.ID = linked.ID

	_, err := reconcile(t, p, []*ExistingPrice{linked}, setFor(p, imported))
	requireCode(t, err, CannotUpdateLinkedPrice)
}

func TestReconcileLinkedPriceIdenticalIgnored(t *testing.T) {
	p := testProduct()
	template := uuid.New()
	linked := ownedBy(template, unitRec("10.00", "5.00", date(2023, 1, 1), nil))

	imported := unitRec("10.00", "5.00", date(2023, 1, 1), nil)
	imported.ID = linked.ID

	changes, err := reconcile(t, p, []*ExistingPrice{linked}, setFor(p, imported))
	require.NoError(t, err)
	assert.Nil(t, changes)
}

func TestReconcileLinkedPriceNeverClosed(t *testing.T) {
	p := testProduct()
	template := uuid.New()
	linked := ownedBy(template, unitRec("10.00", "5.00", date(2023, 1, 1), nil))

	imported := unitRec("12.00", "6.00", date(2024, 1, 1), nil)

	changes, err := reconcile(t, p, []*ExistingPrice{linked}, setFor(p, imported))
	require.NoError(t, err)
	require.NotNil(t, changes)
	require.Len(t, changes.UnitPrices, 1)
	assert.Equal(t, uuid.Nil, changes.UnitPrices[0].ID)
}
