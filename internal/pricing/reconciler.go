package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Narimm/OpenVPMS-sub018/internal/model"
)

// ExistingPriceView supplies the persisted prices of a product, including
// prices linked from templates. The reconciler only queries a kind when the
// import actually carries rows of that kind.
type ExistingPriceView interface {
	PricesForProduct(ctx context.Context, productID uuid.UUID, kind Kind) ([]*ExistingPrice, error)
}

// Reconciler determines the changes between a product's persisted prices and
// one imported ProductPriceSet.
type Reconciler struct {
	view ExistingPriceView
}

func NewReconciler(view ExistingPriceView) *Reconciler {
	return &Reconciler{view: view}
}

// Reconcile compares a product with its imported data and returns the change
// set, or nil if nothing needs to happen. Any returned *ImportError aborts the
// whole product: no partial change set is ever produced.
//
// The change set contains three flavours of record:
//   - creations: ID == uuid.Nil, to be persisted as new prices
//   - updates: ID set, fields replace the stored price
//   - closures: ID set, an existing open-ended price whose To has been
//     computed as the day before the incoming price starts
func (r *Reconciler) Reconcile(ctx context.Context, product *model.Product, imported *ProductPriceSet) (*ProductPriceSet, error) {
	existingFixed, err := r.existing(ctx, product.ID, imported, FixedPrice)
	if err != nil {
		return nil, err
	}
	existingUnit, err := r.existing(ctx, product.ID, imported, UnitPrice)
	if err != nil {
		return nil, err
	}

	if err := checkPrices(product.ID, imported.UnitPrices, existingUnit); err != nil {
		return nil, err
	}
	if err := checkPrices(product.ID, imported.FixedPrices, existingFixed); err != nil {
		return nil, err
	}

	fixedChanges, err := priceChanges(product.ID, imported.FixedPrices, existingFixed)
	if err != nil {
		return nil, err
	}
	unitChanges, err := priceChanges(product.ID, imported.UnitPrices, existingUnit)
	if err != nil {
		return nil, err
	}

	printedNameChanged := imported.PrintedName != printedName(product)
	if len(fixedChanges) == 0 && len(unitChanges) == 0 && !printedNameChanged {
		return nil, nil
	}

	result := imported.changeSet()
	result.FixedPrices = fixedChanges
	result.UnitPrices = unitChanges
	return result, nil
}

// existing fetches the persisted prices of one kind, or nothing when the
// import has no rows of that kind to compare against.
func (r *Reconciler) existing(ctx context.Context, productID uuid.UUID, imported *ProductPriceSet, kind Kind) ([]*ExistingPrice, error) {
	if len(imported.Prices(kind)) == 0 {
		return nil, nil
	}
	return r.view.PricesForProduct(ctx, productID, kind)
}

func printedName(product *model.Product) string {
	if product.PrintedName == nil {
		return ""
	}
	return *product.PrintedName
}

// checkPrices verifies that every row has a start date, that rows referencing
// a price id point at a price the product actually has, and that rows pointing
// at linked prices do not try to change them.
func checkPrices(productID uuid.UUID, imported []*PriceRecord, existing []*ExistingPrice) error {
	for _, rec := range imported {
		if rec.From == nil {
			return newError(NoFromDate, rec.Line)
		}
		if rec.ID == uuid.Nil {
			continue
		}
		match := findByID(rec.ID, existing)
		if match == nil {
			return newError(PriceNotFound, rec.Line)
		}
		if match.LinkedTo(productID) && !rec.Equals(&match.PriceRecord) {
			return newError(CannotUpdateLinkedPrice, rec.Line)
		}
	}
	return nil
}

// priceChanges runs the per-kind reconciliation: duplicate elimination, no-op
// dropping, updates, then creations against the merged view.
func priceChanges(productID uuid.UUID, imported []*PriceRecord, existing []*ExistingPrice) ([]*PriceRecord, error) {
	dupFree, err := removeDuplicates(imported, existing)
	if err != nil {
		return nil, err
	}

	// Updates first. In the same pass, work out whether all creations share a
	// single start date: only then may they atomically close open-ended prices.
	var result []*PriceRecord
	var from *time.Time
	sameFromDate := true
	for _, rec := range dupFree {
		if rec.ID != uuid.Nil {
			update, err := updatedPrice(productID, rec, existing)
			if err != nil {
				return nil, err
			}
			if update != nil {
				result = append(result, update)
			}
		} else {
			if from == nil {
				from = rec.From
			} else if rec.From != nil && !dateEqual(from, rec.From) {
				sameFromDate = false
			}
		}
	}

	merged := mergeView(productID, result, existing)

	for _, rec := range dupFree {
		if rec.ID != uuid.Nil {
			continue
		}
		create, closed, err := applyCreation(rec, merged, sameFromDate)
		if err != nil {
			return nil, err
		}
		// A record updated in the earlier pass shares its pointer with the
		// merged view, so a closure may land on something already collected.
		if closed != nil && !containsID(result, closed.ID) {
			result = append(result, closed)
		}
		if create {
			result = append(result, rec)
		}
	}
	return result, nil
}

// removeDuplicates collapses repeated rows and drops rows that exactly match a
// persisted price (no action required).
//
// Rows with an id are keyed by id: a repeat with different values is an error,
// a repeat with equal values collapses. Rows without an id are keyed by date
// range: equal-valued repeats collapse, differing unit prices error, differing
// fixed prices are all kept (multiple fixed prices per period are legal).
// Range key collisions follow a first-wins policy in document order.
func removeDuplicates(imported []*PriceRecord, existing []*ExistingPrice) ([]*PriceRecord, error) {
	unique := imported
	if len(imported) > 1 {
		unique = make([]*PriceRecord, 0, len(imported))
		byID := make(map[uuid.UUID]*PriceRecord)
		byRange := make(map[rangeKey]*PriceRecord)
		for _, rec := range imported {
			if rec.ID == uuid.Nil {
				continue
			}
			if prev := byID[rec.ID]; prev != nil {
				if !rec.Equals(prev) {
					return nil, newError(duplicateCode(rec.Kind), rec.Line)
				}
				continue
			}
			byID[rec.ID] = rec
			key := keyFor(rec)
			if byRange[key] != nil {
				if rec.Kind == UnitPrice {
					return nil, newError(DuplicateUnitPrice, rec.Line)
				}
			} else {
				byRange[key] = rec
			}
			unique = append(unique, rec)
		}
		for _, rec := range imported {
			if rec.ID != uuid.Nil {
				continue
			}
			key := keyFor(rec)
			if prev := byRange[key]; prev != nil {
				if !rec.SamePrice(prev) {
					if rec.Kind == UnitPrice {
						return nil, newError(DuplicateUnitPrice, rec.Line)
					}
					unique = append(unique, rec)
				}
				// equal values on the same range: exact duplicate, collapse
			} else {
				byRange[key] = rec
				unique = append(unique, rec)
			}
		}
	}

	var result []*PriceRecord
	for _, rec := range unique {
		noop := false
		for _, ex := range existing {
			if rec.Equals(&ex.PriceRecord) {
				noop = true
				break
			}
		}
		if !noop {
			result = append(result, rec)
		}
	}
	return result, nil
}

func duplicateCode(kind Kind) ErrorCode {
	if kind == FixedPrice {
		return DuplicateFixedPrice
	}
	return DuplicateUnitPrice
}

// updatedPrice returns rec if it really updates the existing price it
// references, nil if there is nothing to do.
func updatedPrice(productID uuid.UUID, rec *PriceRecord, existing []*ExistingPrice) (*PriceRecord, error) {
	match := findByID(rec.ID, existing)
	if match == nil {
		return nil, newError(PriceNotFound, rec.Line)
	}
	if match.LinkedTo(productID) {
		if !rec.SamePrice(&match.PriceRecord) {
			return nil, newError(CannotUpdateLinkedPrice, rec.Line)
		}
		return nil, nil
	}
	if rec.SamePrice(&match.PriceRecord) && rec.DateEquals(&match.PriceRecord) {
		return nil, nil
	}
	if rec.Kind == UnitPrice {
		if err := checkOverlap(rec, existing); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// checkOverlap rejects a unit price whose dates intersect any existing price
// other than the one it updates.
func checkOverlap(rec *PriceRecord, existing []*ExistingPrice) error {
	for _, ex := range existing {
		if ex.ID != rec.ID && rec.Intersects(&ex.PriceRecord) {
			return newError(UnitPriceOverlap, rec.Line)
		}
	}
	return nil
}

// mergedPrice is one entry of the merged view: the persisted set with applied
// updates substituted in. Updates are substituted by pointer, so a closure
// that lands on an updated record flows into the change set record directly.
type mergedPrice struct {
	rec    *PriceRecord
	linked bool
}

func mergeView(productID uuid.UUID, updates []*PriceRecord, existing []*ExistingPrice) []*mergedPrice {
	merged := make([]*mergedPrice, 0, len(existing))
	for _, ex := range existing {
		var update *PriceRecord
		for _, u := range updates {
			if u.ID == ex.ID {
				update = u
				break
			}
		}
		if update != nil {
			merged = append(merged, &mergedPrice{rec: update})
		} else {
			rec := ex.PriceRecord
			merged = append(merged, &mergedPrice{rec: &rec, linked: ex.LinkedTo(productID)})
		}
	}
	return merged
}

// applyCreation decides what a new (id-less) record means against the merged
// view: a pure creation, a no-op, an error, or a creation that additionally
// closes an open-ended price the day before the new one starts.
func applyCreation(rec *PriceRecord, merged []*mergedPrice, sameFromDate bool) (create bool, closed *PriceRecord, err error) {
	match, err := intersectMatch(rec, merged)
	if err != nil {
		return false, nil, err
	}
	if match == nil {
		create = true
	} else {
		dateMatch := rec.DateEquals(match.rec)
		priceMatch := rec.SamePrice(match.rec)
		switch {
		case dateMatch && priceMatch:
			// matches an existing price but carries no identifier; ignore it
			return false, nil, nil
		case match.linked:
			// linked prices cannot be touched; treat as if nothing intersected
			match = nil
			create = true
		default:
			if rec.Kind == UnitPrice && (dateMatch || match.rec.To != nil) {
				return false, nil, newError(UnitPriceOverlap, rec.Line)
			}
			create = true
		}
	}

	if create && match != nil && match.rec.To == nil {
		if !sameFromDate {
			return false, nil, newError(CannotCloseExistingPrice, rec.Line)
		}
		closing := dayFloor(*rec.From).AddDate(0, 0, -1)
		if match.rec.From != nil && closing.Before(dayFloor(*match.rec.From)) {
			if rec.Kind == FixedPrice {
				// Fixed prices may coexist: a new one starting the day the
				// open-ended one did is created alongside, with no closure.
				return true, nil, nil
			}
			return false, nil, newError(FromDateGreaterThanToDate, rec.Line)
		}
		match.rec.To = &closing
		closed = match.rec
	}
	return create, closed, nil
}

// intersectMatch returns the merged entry whose dates intersect rec.
// With multiple matches, unit prices error out and fixed prices return no
// match: multiple overlapping fixed prices are legal and none can be singled
// out for closing.
func intersectMatch(rec *PriceRecord, merged []*mergedPrice) (*mergedPrice, error) {
	var matches []*mergedPrice
	for _, m := range merged {
		if m.rec.ID != rec.ID && rec.Intersects(m.rec) {
			matches = append(matches, m)
		}
	}
	switch {
	case len(matches) == 0:
		return nil, nil
	case len(matches) == 1:
		return matches[0], nil
	case rec.Kind == UnitPrice:
		return nil, newError(UnitPriceOverlap, rec.Line)
	default:
		return nil, nil
	}
}

func containsID(recs []*PriceRecord, id uuid.UUID) bool {
	for _, r := range recs {
		if r.ID == id {
			return true
		}
	}
	return false
}

func findByID(id uuid.UUID, existing []*ExistingPrice) *ExistingPrice {
	for _, ex := range existing {
		if ex.ID == id {
			return ex
		}
	}
	return nil
}

// AsImportError unwraps err as an *ImportError, or nil if it is anything else.
func AsImportError(err error) *ImportError {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie
	}
	return nil
}
