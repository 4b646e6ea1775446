package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noon = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func testLedger() Ledger {
	return NewLedger("2025-03-14", []ProductStock{
		{ProductID: "burger", Name: "Burger", UnitPriceCents: 1200, AvailableStock: 5, IsAvailable: true},
		{ProductID: "fries", Name: "Fries", UnitPriceCents: 400, AvailableStock: 2, IsAvailable: true},
		{ProductID: "shake", Name: "Shake", UnitPriceCents: 600, AvailableStock: 10, IsAvailable: false},
	}, "", noon)
}

func testSettings() Settings {
	return Settings{MaxOrdersPerSlot: 5, CutoffTime: "22:00", SlotIntervalMinutes: 15}
}

func TestValidDate(t *testing.T) {
	assert.True(t, ValidDate("2025-03-14"))
	assert.True(t, ValidDate("2024-02-29"))
	assert.False(t, ValidDate("2025-02-30"))
	assert.False(t, ValidDate("2025-13-01"))
	assert.False(t, ValidDate("14-03-2025"))
	assert.False(t, ValidDate(""))
}

func TestValidSlot(t *testing.T) {
	for _, s := range []string{"00:00", "09:45", "13:15", "23:59"} {
		assert.True(t, ValidSlot(s), s)
	}
	for _, s := range []string{"24:00", "9:45", "12:60", "1315", ""} {
		assert.False(t, ValidSlot(s), s)
	}
}

func TestValidateRequest(t *testing.T) {
	lines := []Line{{ProductID: "burger", Qty: 1}}

	assert.Nil(t, ValidateRequest("2025-03-14", "13:15", lines))
	assert.Equal(t, CodeInvalidDate, ValidateRequest("2025-3-14", "13:15", lines).Code)
	assert.Equal(t, CodeInvalidSlotFormat, ValidateRequest("2025-03-14", "25:00", lines).Code)
	assert.Equal(t, CodeInvalidItems, ValidateRequest("2025-03-14", "13:15", nil).Code)

	se := ValidateRequest("2025-03-14", "13:15", []Line{{ProductID: "burger", Qty: 0}})
	require.NotNil(t, se)
	assert.Equal(t, CodeInvalidItems, se.Code)
	assert.Equal(t, "burger", se.ProductID)

	se = ValidateRequest("2025-03-14", "13:15", []Line{{ProductID: "burger", Qty: MaxLineQty + 1}})
	require.NotNil(t, se)
	assert.Equal(t, CodeInvalidItems, se.Code)
	assert.Equal(t, MaxLineQty+1, se.Requested)
	assert.Nil(t, ValidateRequest("2025-03-14", "13:15", []Line{{ProductID: "burger", Qty: MaxLineQty}}))
}

func TestEvaluate_HugeQuantitiesDoNotWrap(t *testing.T) {
	huge := math.MaxInt/2 + 1
	lines := []Line{{ProductID: "fries", Qty: huge}, {ProductID: "fries", Qty: huge}}

	assert.Equal(t, math.MaxInt, aggregate(lines)["fries"])

	ev := Evaluate(testLedger(), testSettings(), "13:15", lines, noon)
	require.False(t, ev.OK())
	assert.Equal(t, CodeOutOfStock, ev.First().Code)
	assert.Equal(t, 2, ev.First().Available)
}

func TestReserve_NeverBelowZero(t *testing.T) {
	l := testLedger()
	l.Reserve("13:15", []Line{{ProductID: "fries", Qty: 5}}, noon)
	assert.Equal(t, 0, l.Products["fries"].AvailableStock)
}

func TestEvaluate_OK(t *testing.T) {
	ev := Evaluate(testLedger(), testSettings(), "13:15", []Line{{ProductID: "burger", Qty: 2}}, noon)
	assert.True(t, ev.OK())
	assert.Nil(t, ev.First())
	assert.Empty(t, ev.Warnings)
}

func TestEvaluate_ClosedStopsEvaluation(t *testing.T) {
	l := testLedger()
	l.Close(noon)
	l.SlotOccupancy["13:15"] = 5

	ev := Evaluate(l, testSettings(), "13:15", []Line{{ProductID: "missing", Qty: 1}}, noon)
	require.Len(t, ev.Violations, 1)
	assert.Equal(t, CodeRestaurantClosed, ev.First().Code)
}

func TestEvaluate_Cutoff(t *testing.T) {
	late := time.Date(2025, 3, 14, 22, 5, 0, 0, time.UTC)
	lines := []Line{{ProductID: "burger", Qty: 1}}

	ev := Evaluate(testLedger(), testSettings(), "13:15", lines, late)
	require.False(t, ev.OK())
	assert.True(t, errors.Is(ev.First(), ErrCutoffPassed))

	tomorrow := testLedger()
	tomorrow.Date = "2025-03-15"
	assert.True(t, Evaluate(tomorrow, testSettings(), "13:15", lines, late).OK())

	atCutoff := time.Date(2025, 3, 14, 22, 0, 0, 0, time.UTC)
	assert.True(t, Evaluate(testLedger(), testSettings(), "13:15", lines, atCutoff).OK())
}

func TestEvaluate_LedgerCutoffOverridesSettings(t *testing.T) {
	l := testLedger()
	l.CutoffTime = "11:30"

	ev := Evaluate(l, testSettings(), "13:15", []Line{{ProductID: "burger", Qty: 1}}, noon)
	assert.Equal(t, CodeCutoffPassed, ev.First().Code)
}

func TestEvaluate_SlotFullAndItemsAccumulate(t *testing.T) {
	l := testLedger()
	l.SlotOccupancy["13:15"] = 5

	ev := Evaluate(l, testSettings(), "13:15", []Line{
		{ProductID: "fries", Qty: 3},
		{ProductID: "shake", Qty: 1},
		{ProductID: "ghost", Qty: 1},
	}, noon)

	require.Len(t, ev.Violations, 4)
	assert.Equal(t, CodeSlotFull, ev.Violations[0].Code)
	assert.Equal(t, 5, ev.Violations[0].Current)
	assert.Equal(t, 5, ev.Violations[0].Max)
	for _, v := range ev.Violations[1:] {
		assert.Equal(t, CodeOutOfStock, v.Code)
	}
	assert.Equal(t, 3, ev.Violations[1].Requested)
	assert.Equal(t, 2, ev.Violations[1].Available)
}

func TestEvaluate_AlmostFullWarning(t *testing.T) {
	l := testLedger()
	l.SlotOccupancy["13:15"] = 4

	ev := Evaluate(l, testSettings(), "13:15", []Line{{ProductID: "burger", Qty: 1}}, noon)
	assert.True(t, ev.OK())
	assert.Len(t, ev.Warnings, 1)
}

func TestEvaluate_DuplicateLinesAggregate(t *testing.T) {
	ev := Evaluate(testLedger(), testSettings(), "13:15", []Line{
		{ProductID: "fries", Qty: 1},
		{ProductID: "fries", Qty: 2},
	}, noon)

	require.Len(t, ev.Violations, 1)
	assert.Equal(t, 3, ev.First().Requested)
}

func TestEvaluate_ZeroCapacity(t *testing.T) {
	s := testSettings()
	s.MaxOrdersPerSlot = 0

	ev := Evaluate(testLedger(), s, "13:15", []Line{{ProductID: "burger", Qty: 1}}, noon)
	assert.Equal(t, CodeSlotFull, ev.First().Code)
}

func TestStockErrorIs(t *testing.T) {
	err := error(&StockError{Code: CodeSlotFull, Slot: "13:15"})
	assert.True(t, errors.Is(err, ErrSlotFull))
	assert.False(t, errors.Is(err, ErrOutOfStock))
	assert.Equal(t, CodeSlotFull, CodeOf(err))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))

	wrapped := TransactionFailed("commit", ErrConflict)
	assert.True(t, errors.Is(wrapped, ErrTransactionFailed))
	assert.True(t, errors.Is(wrapped, ErrConflict))
}
