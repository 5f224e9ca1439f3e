// Package importer reads uploaded price list documents and applies reconciled
// change sets to the catalogue.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Narimm/OpenVPMS-sub018/internal/pricing"
)

// Column layout of a price list document. One row describes a product and at
// most one fixed and one unit price; products spanning several prices repeat
// across consecutive rows.
var header = []string{
	"Product Id",
	"Product Name",
	"Printed Name",
	"Fixed Price Id",
	"Fixed Price",
	"Fixed Cost",
	"Fixed Price Max Discount",
	"Fixed Price Start Date",
	"Fixed Price End Date",
	"Default Fixed Price",
	"Fixed Price Groups",
	"Unit Price Id",
	"Unit Price",
	"Unit Cost",
	"Unit Price Max Discount",
	"Unit Price Start Date",
	"Unit Price End Date",
	"Unit Price Groups",
	"Tax Rate",
}

const (
	colProductID = iota
	colName
	colPrintedName
	colFixedID
	colFixedPrice
	colFixedCost
	colFixedMaxDiscount
	colFixedFrom
	colFixedTo
	colFixedDefault
	colFixedGroups
	colUnitID
	colUnitPrice
	colUnitCost
	colUnitMaxDiscount
	colUnitFrom
	colUnitTo
	colUnitGroups
	colTaxRate
)

// newPriceID marks a price row that has no persisted counterpart yet.
const newPriceID = "-1"

// Candidate date layouts, in detection priority order. Day-month-year is
// preferred when a document is ambiguous.
var dateLayouts = [][]string{
	{"2/1/2006", "2/1/06"},
	{"2006-1-2"},
	{"1/2/2006", "1/2/06"},
}

// RowError is a parse-level problem with one row of the document. Unlike
// reconciliation errors these never abort the read: the row's product is
// dropped and reading continues.
type RowError struct {
	Line    int
	Message string
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Document is the parsed form of an uploaded price list: product sets in
// first-appearance order plus the rows that could not be parsed.
type Document struct {
	Products []*pricing.ProductPriceSet
	Errors   []RowError
}

// Reader parses CSV price lists. The zero value is not usable; construct with
// NewReader.
type Reader struct{}

func NewReader() *Reader { return &Reader{} }

// Read parses a full price list document. Rows are grouped by product id in
// order of first appearance. A row that fails to parse poisons its whole
// product: partial price sets must never reach the reconciler.
func (r *Reader) Read(src io.Reader) (*Document, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read price list: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read price list: document is empty")
	}
	if err := checkHeader(rows[0]); err != nil {
		return nil, err
	}

	layouts, err := detectDateLayouts(rows[1:])
	if err != nil {
		return nil, err
	}

	doc := &Document{}
	sets := make(map[string]*pricing.ProductPriceSet)
	poisoned := make(map[string]bool)

	for i, row := range rows[1:] {
		line := i + 2 // 1-based, after the header
		if blankRow(row) {
			continue
		}
		if len(row) != len(header) {
			doc.Errors = append(doc.Errors, RowError{Line: line, Message: fmt.Sprintf("expected %d columns, got %d", len(header), len(row))})
			continue
		}

		productID := strings.TrimSpace(row[colProductID])
		if productID == "" {
			doc.Errors = append(doc.Errors, RowError{Line: line, Message: "a product id is required"})
			continue
		}

		set := sets[productID]
		if set == nil {
			set = pricing.NewProductPriceSet(productID, strings.TrimSpace(row[colName]), line)
			set.PrintedName = strings.TrimSpace(row[colPrintedName])
			sets[productID] = set
			doc.Products = append(doc.Products, set)
		}

		if err := parseRow(set, row, line, layouts); err != nil {
			doc.Errors = append(doc.Errors, *err)
			poisoned[productID] = true
		}
	}

	if len(poisoned) > 0 {
		kept := doc.Products[:0]
		for _, set := range doc.Products {
			if !poisoned[set.ProductID] {
				kept = append(kept, set)
			}
		}
		doc.Products = kept
	}
	return doc, nil
}

func checkHeader(row []string) error {
	if len(row) != len(header) {
		return fmt.Errorf("read price list: expected %d header columns, got %d", len(header), len(row))
	}
	for i, want := range header {
		if !strings.EqualFold(strings.TrimSpace(row[i]), want) {
			return fmt.Errorf("read price list: column %d: expected %q, got %q", i+1, want, row[i])
		}
	}
	return nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// detectDateLayouts sniffs every date cell in the document and returns the
// first candidate layout family consistent with all of them. Ambiguous
// day/month documents resolve to day-month-year.
func detectDateLayouts(rows [][]string) ([]string, error) {
	var cells []string
	for _, row := range rows {
		if len(row) != len(header) {
			continue
		}
		for _, col := range []int{colFixedFrom, colFixedTo, colUnitFrom, colUnitTo} {
			if v := strings.TrimSpace(row[col]); v != "" {
				cells = append(cells, v)
			}
		}
	}
	if len(cells) == 0 {
		return dateLayouts[0], nil
	}

	for _, layouts := range dateLayouts {
		ok := true
		for _, cell := range cells {
			if _, err := parseDate(cell, layouts); err != nil {
				ok = false
				break
			}
		}
		if ok {
			return layouts, nil
		}
	}
	return nil, fmt.Errorf("read price list: no supported date format matches the document")
}

func parseDate(value string, layouts []string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", value)
}

// parseRow extracts the fixed and unit price blocks of one row into the
// product's set. Returns a RowError on the first problem; the caller drops the
// whole product.
func parseRow(set *pricing.ProductPriceSet, row []string, line int, layouts []string) *RowError {
	if tax := strings.TrimSpace(row[colTaxRate]); tax != "" {
		rate, err := decimal.NewFromString(tax)
		if err != nil {
			return &RowError{Line: line, Message: fmt.Sprintf("invalid tax rate %q", tax)}
		}
		set.TaxRate = rate
	}

	fixed, rerr := parsePrice(row, line, layouts, pricing.FixedPrice,
		colFixedID, colFixedPrice, colFixedCost, colFixedMaxDiscount, colFixedFrom, colFixedTo, colFixedGroups)
	if rerr != nil {
		return rerr
	}
	if fixed != nil {
		def := strings.TrimSpace(row[colFixedDefault])
		if def != "" {
			v, err := strconv.ParseBool(def)
			if err != nil {
				return &RowError{Line: line, Message: fmt.Sprintf("invalid default flag %q", def)}
			}
			fixed.Default = v
		}
		set.AddPrice(fixed)
	}

	unit, rerr := parsePrice(row, line, layouts, pricing.UnitPrice,
		colUnitID, colUnitPrice, colUnitCost, colUnitMaxDiscount, colUnitFrom, colUnitTo, colUnitGroups)
	if rerr != nil {
		return rerr
	}
	if unit != nil {
		set.AddPrice(unit)
	}
	return nil
}

// parsePrice reads one price block. An entirely empty block means the row
// carries no price of that kind. A block with a price requires cost and max
// discount; dates stay optional here because their absence is a
// reconciliation-level error with its own code.
func parsePrice(row []string, line int, layouts []string, kind pricing.Kind,
	idCol, priceCol, costCol, discountCol, fromCol, toCol, groupsCol int) (*pricing.PriceRecord, *RowError) {

	label := "fixed"
	if kind == pricing.UnitPrice {
		label = "unit"
	}

	priceVal := strings.TrimSpace(row[priceCol])
	if priceVal == "" {
		return nil, nil
	}

	rec := &pricing.PriceRecord{Kind: kind, Line: line}

	price, err := decimal.NewFromString(priceVal)
	if err != nil {
		return nil, &RowError{Line: line, Message: fmt.Sprintf("invalid %s price %q", label, priceVal)}
	}
	rec.Price = price

	costVal := strings.TrimSpace(row[costCol])
	if costVal == "" {
		return nil, &RowError{Line: line, Message: fmt.Sprintf("a value for %s cost is required", label)}
	}
	cost, err := decimal.NewFromString(costVal)
	if err != nil {
		return nil, &RowError{Line: line, Message: fmt.Sprintf("invalid %s cost %q", label, costVal)}
	}
	rec.Cost = cost

	discountVal := strings.TrimSpace(row[discountCol])
	if discountVal == "" {
		return nil, &RowError{Line: line, Message: fmt.Sprintf("a value for %s price max discount is required", label)}
	}
	discount, err := decimal.NewFromString(discountVal)
	if err != nil {
		return nil, &RowError{Line: line, Message: fmt.Sprintf("invalid %s price max discount %q", label, discountVal)}
	}
	rec.MaxDiscount = discount

	if idVal := strings.TrimSpace(row[idCol]); idVal != "" && idVal != newPriceID {
		id, err := uuid.Parse(idVal)
		if err != nil {
			return nil, &RowError{Line: line, Message: fmt.Sprintf("invalid %s price id %q", label, idVal)}
		}
		rec.ID = id
	}

	if fromVal := strings.TrimSpace(row[fromCol]); fromVal != "" {
		from, err := parseDate(fromVal, layouts)
		if err != nil {
			return nil, &RowError{Line: line, Message: fmt.Sprintf("invalid %s price start date %q", label, fromVal)}
		}
		rec.From = &from
	}
	if toVal := strings.TrimSpace(row[toCol]); toVal != "" {
		to, err := parseDate(toVal, layouts)
		if err != nil {
			return nil, &RowError{Line: line, Message: fmt.Sprintf("invalid %s price end date %q", label, toVal)}
		}
		rec.To = &to
	}
	if rec.From != nil && rec.To != nil && rec.To.Before(*rec.From) {
		return nil, &RowError{Line: line, Message: fmt.Sprintf("%s price end date precedes its start date", label)}
	}

	if groups := strings.TrimSpace(row[groupsCol]); groups != "" {
		rec.Groups = splitGroups(groups)
	}
	return rec, nil
}

func splitGroups(v string) []string {
	fields := strings.FieldsFunc(v, func(r rune) bool {
		return r == ' ' || r == ',' || r == ';'
	})
	return fields
}
