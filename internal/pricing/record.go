// Package pricing implements the price list reconciliation engine: it compares
// the prices held against a product with the rows of an uploaded price list and
// produces the minimal set of creations, updates and closures needed to bring
// the catalogue in line, without ever letting two unit prices of one product
// overlap in time.
package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind distinguishes the two price archetypes.
// Fixed prices are flat, quantity-independent amounts; any number may be
// simultaneously active, with one flagged as the display default. Unit prices
// are per-unit amounts; at most one may be active at any instant.
type Kind string

const (
	FixedPrice Kind = "fixed"
	UnitPrice  Kind = "unit"
)

// PriceRecord is one price, either parsed from an import row or loaded from
// the store. ID == uuid.Nil means the record is not yet persisted.
type PriceRecord struct {
	ID          uuid.UUID
	Kind        Kind
	Price       decimal.Decimal
	Cost        decimal.Decimal
	MaxDiscount decimal.Decimal
	From        *time.Time // required before reconciliation
	To          *time.Time // nil = open-ended
	Default     bool       // fixed prices only
	Groups      []string   // pricing group codes; membership-only semantics
	Line        int        // originating row, for error reporting
}

// SamePrice reports whether two records are "the same price": price and cost
// match, and for fixed prices the default flag matches. Dates, max discount,
// pricing groups and identity are deliberately excluded.
func (p *PriceRecord) SamePrice(other *PriceRecord) bool {
	if !p.Price.Equal(other.Price) || !p.Cost.Equal(other.Cost) {
		return false
	}
	return p.Kind != FixedPrice || p.Default == other.Default
}

// DateEquals reports whether two records cover the same dates, ignoring any
// time-of-day component.
func (p *PriceRecord) DateEquals(other *PriceRecord) bool {
	return dateEqual(p.From, other.From) && dateEqual(p.To, other.To)
}

// Equals reports full value equality for reconciliation purposes: same price
// and same dates.
func (p *PriceRecord) Equals(other *PriceRecord) bool {
	return p.SamePrice(other) && p.DateEquals(other)
}

// Intersects reports whether the [From, To) ranges of two records overlap.
// A nil To is treated as +infinity.
func (p *PriceRecord) Intersects(other *PriceRecord) bool {
	return rangesIntersect(p.From, p.To, other.From, other.To)
}

// rangeKey is a canonical map key for a record's date range, at day
// granularity. Ranges are keyed, not ordered: when two rows share a key the
// first row wins, matching the original row order of the document.
type rangeKey struct {
	from time.Time
	to   time.Time // zero value = open-ended
}

func keyFor(p *PriceRecord) rangeKey {
	var k rangeKey
	if p.From != nil {
		k.from = dayFloor(*p.From)
	}
	if p.To != nil {
		k.to = dayFloor(*p.To)
	}
	return k
}

// dayFloor truncates a timestamp to midnight in its own location.
func dayFloor(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func dateEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return dayFloor(*a).Equal(dayFloor(*b))
}

// rangesIntersect reports whether [from1, to1) and [from2, to2) share any day.
// Nil end dates are open-ended; nil start dates are treated as -infinity,
// though reconciliation rejects those before any interval math runs.
func rangesIntersect(from1, to1, from2, to2 *time.Time) bool {
	startsBefore := func(from, to *time.Time) bool {
		if from == nil || to == nil {
			return true
		}
		return dayFloor(*from).Before(dayFloor(*to))
	}
	return startsBefore(from1, to2) && startsBefore(from2, to1)
}

// ExistingPrice is a persisted price as seen by the reconciler. OwnerID is the
// product the price actually belongs to; when it differs from the product being
// reconciled, the price is linked from a price template and must not be
// mutated.
type ExistingPrice struct {
	PriceRecord
	OwnerID uuid.UUID
}

// LinkedTo reports whether the price is linked rather than owned by productID.
func (e *ExistingPrice) LinkedTo(productID uuid.UUID) bool {
	return e.OwnerID != productID
}
