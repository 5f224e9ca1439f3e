package pricing

import "fmt"

// ErrorCode classifies why a product's price data could not be reconciled.
// Every code is a data problem in the uploaded price list, never a transient
// failure, so there is no retry path.
type ErrorCode string

const (
	// NoFromDate: a price row has no start date.
	NoFromDate ErrorCode = "no_from_date"
	// PriceNotFound: a row references a price id that does not exist on the product.
	PriceNotFound ErrorCode = "price_not_found"
	// CannotUpdateLinkedPrice: a row tried to change a price linked from a price template.
	CannotUpdateLinkedPrice ErrorCode = "cannot_update_linked_price"
	// DuplicateFixedPrice: two rows reference the same fixed price with different values.
	DuplicateFixedPrice ErrorCode = "duplicate_fixed_price"
	// DuplicateUnitPrice: two rows define conflicting unit prices for the same id or date range.
	DuplicateUnitPrice ErrorCode = "duplicate_unit_price"
	// UnitPriceOverlap: a unit price's date range would intersect another unit price.
	UnitPriceOverlap ErrorCode = "unit_price_overlap"
	// CannotCloseExistingPrice: closing an open-ended price requires all new prices
	// to roll over on a single start date.
	CannotCloseExistingPrice ErrorCode = "cannot_close_existing_price"
	// FromDateGreaterThanToDate: the computed closing date falls before the
	// existing price's own start date.
	FromDateGreaterThanToDate ErrorCode = "from_date_greater_than_to_date"
	// InvalidName: the imported product name does not match the stored product.
	InvalidName ErrorCode = "invalid_name"
	// NotFound: the product referenced by the import does not exist.
	NotFound ErrorCode = "not_found"
)

var messages = map[ErrorCode]string{
	NoFromDate:                "a price start date is required",
	PriceNotFound:             "price not found",
	CannotUpdateLinkedPrice:   "cannot update a price linked from a price template",
	DuplicateFixedPrice:       "duplicate fixed price",
	DuplicateUnitPrice:        "duplicate unit price",
	UnitPriceOverlap:          "unit price dates overlap an existing unit price",
	CannotCloseExistingPrice:  "cannot close existing price: new prices have different start dates",
	FromDateGreaterThanToDate: "price start date is after the computed end date",
	InvalidName:               "product name does not match the existing product",
	NotFound:                  "product not found",
}

// ImportError is the only error type the reconciliation engine produces.
// It always carries the source line of the offending row so batch reports can
// point users back at their spreadsheet.
type ImportError struct {
	Code ErrorCode
	Line int
}

func newError(code ErrorCode, line int) *ImportError {
	return &ImportError{Code: code, Line: line}
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message())
}

// Message returns the explanation without the line prefix, for batch reports
// that show the line in its own column.
func (e *ImportError) Message() string {
	msg, ok := messages[e.Code]
	if !ok {
		msg = string(e.Code)
	}
	return msg
}

// Is lets errors.Is match on the code alone, ignoring the line.
func (e *ImportError) Is(target error) bool {
	other, ok := target.(*ImportError)
	return ok && other.Code == e.Code && (other.Line == 0 || other.Line == e.Line)
}
