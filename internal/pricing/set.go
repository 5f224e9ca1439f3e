package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/Narimm/OpenVPMS-sub018/internal/model"
)

// ProductPriceSet aggregates everything one import document says about a
// single product: product-level fields plus the fixed and unit price rows, in
// their original row order. Row order matters: duplicate detection and the
// first-wins date-range policy both depend on it.
type ProductPriceSet struct {
	ProductID   string // external identifier as it appears in the document
	Name        string
	PrintedName string
	TaxRate     decimal.Decimal
	Line        int

	FixedPrices []*PriceRecord
	UnitPrices  []*PriceRecord

	// Ref is the resolved catalogue product, set by the batch reconciler.
	Ref *model.Product

	// Err marks the whole product as unprocessable.
	Err *ImportError
}

// NewProductPriceSet returns an empty set for a product row.
func NewProductPriceSet(productID, name string, line int) *ProductPriceSet {
	return &ProductPriceSet{ProductID: productID, Name: name, Line: line}
}

// AddPrice appends a record to the sequence for its kind, preserving insertion
// order. Used while assembling a set during document parsing.
func (s *ProductPriceSet) AddPrice(rec *PriceRecord) {
	switch rec.Kind {
	case FixedPrice:
		s.FixedPrices = append(s.FixedPrices, rec)
	case UnitPrice:
		s.UnitPrices = append(s.UnitPrices, rec)
	}
}

// Prices returns the records of the given kind.
func (s *ProductPriceSet) Prices(kind Kind) []*PriceRecord {
	if kind == FixedPrice {
		return s.FixedPrices
	}
	return s.UnitPrices
}

// Empty reports whether the set carries no price rows at all.
func (s *ProductPriceSet) Empty() bool {
	return len(s.FixedPrices) == 0 && len(s.UnitPrices) == 0
}

// changeSet returns a result set that shares the product-level fields of s but
// holds only the records that require action.
func (s *ProductPriceSet) changeSet() *ProductPriceSet {
	return &ProductPriceSet{
		ProductID:   s.ProductID,
		Name:        s.Name,
		PrintedName: s.PrintedName,
		TaxRate:     s.TaxRate,
		Line:        s.Line,
		Ref:         s.Ref,
	}
}
