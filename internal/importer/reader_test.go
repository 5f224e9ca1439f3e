package importer

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildCSV(t *testing.T, rows ...[]string) strings.Reader {
	t.Helper()
	var b strings.Builder
	w := csv.NewWriter(&b)
	require.NoError(t, w.Write(header))
	for _, row := range rows {
		require.NoError(t, w.Write(row))
	}
	w.Flush()
	require.NoError(t, w.Error())
	return *strings.NewReader(b.String())
}

// row builds a full-width row with the given cells filled in.
func row(cells map[int]string) []string {
	r := make([]string, len(header))
	for i, v := range cells {
		r[i] = v
	}
	return r
}

func read(t *testing.T, rows ...[]string) *Document {
	t.Helper()
	src := buildCSV(t, rows...)
	doc, err := NewReader().Read(&src)
	require.NoError(t, err)
	return doc
}

func TestReadGroupsRowsByProduct(t *testing.T) {
	productID := uuid.NewString()
	doc := read(t,
		row(map[int]string{
			colProductID: productID, colName: "Product A", colPrintedName: "A",
			colFixedID: "-1", colFixedPrice: "1.08", colFixedCost: "0.6", colFixedMaxDiscount: "10",
			colFixedFrom: "2012-04-02", colFixedTo: "2012-06-01", colFixedDefault: "true",
			colUnitID: "-1", colUnitPrice: "2.55", colUnitCost: "1.5", colUnitMaxDiscount: "10",
			colUnitFrom: "2012-04-03", colUnitTo: "2012-06-02",
			colTaxRate: "5.0",
		}),
		row(map[int]string{
			colProductID: productID, colName: "Product A",
			colUnitID: "-1", colUnitPrice: "3.20", colUnitCost: "2.0", colUnitMaxDiscount: "10",
			colUnitFrom: "2012-06-02",
		}),
	)

	require.Empty(t, doc.Errors)
	require.Len(t, doc.Products, 1)

	set := doc.Products[0]
	assert.Equal(t, productID, set.ProductID)
	assert.Equal(t, "Product A", set.Name)
	assert.Equal(t, "A", set.PrintedName)
	assert.True(t, set.TaxRate.Equal(decimal.RequireFromString("5.0")))
	assert.Equal(t, 2, set.Line)

	require.Len(t, set.FixedPrices, 1)
	require.Len(t, set.UnitPrices, 2)
	assert.True(t, set.FixedPrices[0].Default)
	assert.Equal(t, 2, set.UnitPrices[0].Line)
	assert.Equal(t, 3, set.UnitPrices[1].Line)
	assert.Nil(t, set.UnitPrices[1].To)
}

func TestReadPriceIDs(t *testing.T) {
	id := uuid.New()
	doc := read(t,
		row(map[int]string{
			colProductID: uuid.NewString(), colName: "Product A",
			colUnitID: id.String(), colUnitPrice: "2.55", colUnitCost: "1.5", colUnitMaxDiscount: "10",
			colUnitFrom: "2012-04-03",
		}),
		row(map[int]string{
			colProductID: uuid.NewString(), colName: "Product B",
			colUnitID: "-1", colUnitPrice: "2.55", colUnitCost: "1.5", colUnitMaxDiscount: "10",
			colUnitFrom: "2012-04-03",
		}),
	)

	require.Empty(t, doc.Errors)
	require.Len(t, doc.Products, 2)
	assert.Equal(t, id, doc.Products[0].UnitPrices[0].ID)
	assert.Equal(t, uuid.Nil, doc.Products[1].UnitPrices[0].ID)
}

// ── Date format detection ────────────────────────────────────────────────────

func TestReadDayMonthYearDates(t *testing.T) {
	doc := read(t, row(map[int]string{
		colProductID: uuid.NewString(), colName: "Product A",
		colUnitID: "-1", colUnitPrice: "2.55", colUnitCost: "1.5", colUnitMaxDiscount: "10",
		colUnitFrom: "02/04/2012",
	}))

	require.Empty(t, doc.Errors)
	from := doc.Products[0].UnitPrices[0].From
	require.NotNil(t, from)
	assert.Equal(t, time.Date(2012, 4, 2, 0, 0, 0, 0, time.UTC), *from)
}

// An unambiguous day value elsewhere in the document forces month-day-year for
// every date in it.
func TestReadMonthDayYearDates(t *testing.T) {
	doc := read(t, row(map[int]string{
		colProductID: uuid.NewString(), colName: "Product A",
		colUnitID: "-1", colUnitPrice: "2.55", colUnitCost: "1.5", colUnitMaxDiscount: "10",
		colUnitFrom: "04/23/12", colUnitTo: "06/01/12",
	}))

	require.Empty(t, doc.Errors)
	from := doc.Products[0].UnitPrices[0].From
	to := doc.Products[0].UnitPrices[0].To
	require.NotNil(t, from)
	require.NotNil(t, to)
	assert.Equal(t, time.Date(2012, 4, 23, 0, 0, 0, 0, time.UTC), *from)
	assert.Equal(t, time.Date(2012, 6, 1, 0, 0, 0, 0, time.UTC), *to)
}

func TestReadAmbiguousDatesPreferDayMonthYear(t *testing.T) {
	doc := read(t, row(map[int]string{
		colProductID: uuid.NewString(), colName: "Product A",
		colUnitID: "-1", colUnitPrice: "2.55", colUnitCost: "1.5", colUnitMaxDiscount: "10",
		colUnitFrom: "02/04/12",
	}))

	require.Empty(t, doc.Errors)
	from := doc.Products[0].UnitPrices[0].From
	require.NotNil(t, from)
	assert.Equal(t, time.Date(2012, 4, 2, 0, 0, 0, 0, time.UTC), *from)
}

func TestReadUnrecognisedDates(t *testing.T) {
	src := buildCSV(t, row(map[int]string{
		colProductID: uuid.NewString(), colName: "Product A",
		colUnitID: "-1", colUnitPrice: "2.55", colUnitCost: "1.5", colUnitMaxDiscount: "10",
		colUnitFrom: "April 3rd 2012",
	}))
	_, err := NewReader().Read(&src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "date format")
}

// ── Row validation ───────────────────────────────────────────────────────────

func TestReadMissingCost(t *testing.T) {
	doc := read(t, row(map[int]string{
		colProductID: uuid.NewString(), colName: "Product A",
		colFixedID: "-1", colFixedPrice: "1.08", colFixedMaxDiscount: "10",
		colFixedFrom: "2012-04-02",
	}))

	require.Len(t, doc.Errors, 1)
	assert.Equal(t, 2, doc.Errors[0].Line)
	assert.Contains(t, doc.Errors[0].Message, "fixed cost is required")
	assert.Empty(t, doc.Products)
}

func TestReadMissingMaxDiscount(t *testing.T) {
	doc := read(t, row(map[int]string{
		colProductID: uuid.NewString(), colName: "Product A",
		colUnitID: "-1", colUnitPrice: "2.55", colUnitCost: "1.5",
		colUnitFrom: "2012-04-03",
	}))

	require.Len(t, doc.Errors, 1)
	assert.Contains(t, doc.Errors[0].Message, "unit price max discount is required")
}

// A bad row must drop its whole product, not just itself, while other products
// in the document survive.
func TestReadBadRowPoisonsItsProduct(t *testing.T) {
	badID := uuid.NewString()
	goodID := uuid.NewString()
	doc := read(t,
		row(map[int]string{
			colProductID: badID, colName: "Product A",
			colUnitID: "-1", colUnitPrice: "2.55", colUnitCost: "1.5", colUnitMaxDiscount: "10",
			colUnitFrom: "2012-04-03",
		}),
		row(map[int]string{
			colProductID: badID, colName: "Product A",
			colUnitID: "-1", colUnitPrice: "not-a-number", colUnitCost: "1.5", colUnitMaxDiscount: "10",
		}),
		row(map[int]string{
			colProductID: goodID, colName: "Product B",
			colFixedID: "-1", colFixedPrice: "1.08", colFixedCost: "0.6", colFixedMaxDiscount: "10",
			colFixedFrom: "2012-04-02",
		}),
	)

	require.Len(t, doc.Errors, 1)
	require.Len(t, doc.Products, 1)
	assert.Equal(t, goodID, doc.Products[0].ProductID)
}

func TestReadRejectsInvertedDateRange(t *testing.T) {
	doc := read(t, row(map[int]string{
		colProductID: uuid.NewString(), colName: "Product A",
		colUnitID: "-1", colUnitPrice: "2.55", colUnitCost: "1.5", colUnitMaxDiscount: "10",
		colUnitFrom: "2012-06-01", colUnitTo: "2012-04-02",
	}))

	require.Len(t, doc.Errors, 1)
	assert.Equal(t, 2, doc.Errors[0].Line)
	assert.Contains(t, doc.Errors[0].Message, "end date precedes its start date")
	assert.Empty(t, doc.Products)
}

func TestReadRejectsUnknownHeader(t *testing.T) {
	src := strings.NewReader("Id,Name\n1,Widget\n")
	_, err := NewReader().Read(src)
	require.Error(t, err)
}

func TestReadGroups(t *testing.T) {
	doc := read(t, row(map[int]string{
		colProductID: uuid.NewString(), colName: "Product A",
		colUnitID: "-1", colUnitPrice: "2.55", colUnitCost: "1.5", colUnitMaxDiscount: "10",
		colUnitFrom: "2012-04-03", colUnitGroups: "WHOLESALE RETAIL",
	}))

	require.Empty(t, doc.Errors)
	assert.Equal(t, []string{"WHOLESALE", "RETAIL"}, doc.Products[0].UnitPrices[0].Groups)
}

