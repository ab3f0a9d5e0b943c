package ledgerservice

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwell/tally/internal/apperr"
	"github.com/ashwell/tally/internal/models"
	"github.com/ashwell/tally/internal/testutil"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(testutil.TestLedger(t), testutil.TestHistory(t))
}

// seededService returns a service over the canonical two-record store:
// (income, salary, 1000, 2024-01-01) and (expense, rent, 500, 2024-01-01).
func seededService(t *testing.T) *Service {
	t.Helper()
	svc := newTestService(t)
	err := svc.ledger.ReplaceAll([]models.Record{
		models.FromRow([]string{"income", "salary", "1000", "2024-01-01"}),
		models.FromRow([]string{"expense", "rent", "500", "2024-01-01"}),
	}, "")
	require.NoError(t, err)
	return svc
}

func amountPtr(s string) *decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &v
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	svc := seededService(t)

	// The rent record is the only 500 match.
	matches, err := svc.FilterAmount(ctx, "500")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "002", matches[0].ID)
	assert.Equal(t, "rent", matches[0].Description)

	// Bump rent to 600; filtering for 500 now finds nothing.
	require.NoError(t, svc.Edit(ctx, "002", models.Update{Amount: amountPtr("600")}))
	matches, err = svc.FilterAmount(ctx, "500")
	require.NoError(t, err)
	assert.Empty(t, matches)

	// Two-phase delete of the salary record.
	prop, err := svc.ProposeDelete(ctx, "001")
	require.NoError(t, err)
	assert.Equal(t, "salary", prop.Record.Description)
	assert.NotEmpty(t, prop.Token)
	require.NoError(t, svc.ConfirmDelete(ctx, "001", prop.Token))

	// The remaining record re-addresses as 001.
	matches, err = svc.SearchKeyword(ctx, "rent")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "001", matches[0].ID)
}

func TestSummaryAllTotals(t *testing.T) {
	svc := seededService(t)
	out, err := svc.Summary(context.Background(), "all")
	require.NoError(t, err)

	assert.Contains(t, out, "All Transaction Info")
	assert.Contains(t, out, "| $1000.00")
	assert.Contains(t, out, "| $500.00")
	assert.Contains(t, out, "| +$500.00")
}

func TestSummaryWindowed(t *testing.T) {
	svc := newTestService(t)
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.ledger.ReplaceAll([]models.Record{
		models.FromRow([]string{"income", "inside", "100", "2024-06-10"}),
		models.FromRow([]string{"expense", "outside", "40", "2024-04-01"}),
		models.FromRow([]string{"expense", "undated", "7"}),
	}, ""))

	out, err := svc.Summary(context.Background(), "7")
	require.NoError(t, err)

	assert.Contains(t, out, "2024-06-08 -> 2024-06-15 Transaction Info")
	assert.Contains(t, out, "inside")
	assert.NotContains(t, out, "outside")
	// Undated records cannot be placed in a window.
	assert.NotContains(t, out, "undated")
	assert.Contains(t, out, "| $0.00") // no expense fell inside the window

	// The all-records query includes the undated record.
	all, err := svc.Summary(context.Background(), "all")
	require.NoError(t, err)
	assert.Contains(t, all, "undated")
}

func TestSummaryWindowFallback(t *testing.T) {
	svc := newTestService(t)
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	for _, window := range []string{"soon", "", "-3", "1.5"} {
		out, err := svc.Summary(context.Background(), window)
		require.NoError(t, err, "window %q", window)
		// The fallback is observable: the header names the 30-day range.
		assert.Contains(t, out, "2024-05-16 -> 2024-06-15", "window %q", window)
	}
}

func TestSummaryAbsentStore(t *testing.T) {
	svc := newTestService(t)
	out, err := svc.Summary(context.Background(), "all")
	require.NoError(t, err)
	assert.Contains(t, out, "| $0.00")
}

func TestSearchKeyword(t *testing.T) {
	ctx := context.Background()
	svc := seededService(t)

	matches, err := svc.SearchKeyword(ctx, "SAL")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "salary", matches[0].Description)

	matches, err = svc.SearchKeyword(ctx, "zzz")
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = svc.SearchKeyword(ctx, "   ")
	assert.ErrorIs(t, err, apperr.ErrEmptyQuery)
}

func TestFilterAmount(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	require.NoError(t, svc.ledger.ReplaceAll([]models.Record{
		models.FromRow([]string{"income", "pay", "10.00"}),
		models.FromRow([]string{"expense", "snack", "10.5"}),
	}, ""))

	// Textually different but numerically equal amounts match.
	matches, err := svc.FilterAmount(ctx, "10")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "pay", matches[0].Description)

	matches, err = svc.FilterAmount(ctx, "10.50")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	// No tolerance band: near misses stay misses.
	matches, err = svc.FilterAmount(ctx, "10.4999999999")
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = svc.FilterAmount(ctx, "ten")
	assert.ErrorIs(t, err, apperr.ErrInvalidAmount)
}

func TestEditRecordsHistory(t *testing.T) {
	ctx := context.Background()
	svc := seededService(t)

	require.NoError(t, svc.Edit(ctx, "002", models.Update{Amount: amountPtr("600")}))

	entries, err := svc.History(ctx, "002")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "rent", entries[0].Original.Description)
	assert.True(t, entries[0].Original.Amount.Equal(decimal.NewFromInt(500)),
		"history keeps the pre-edit snapshot")
	require.NotNil(t, entries[0].Updated.Amount)
	assert.True(t, entries[0].Updated.Amount.Equal(decimal.NewFromInt(600)))
}

func TestEditNoOpStillAppendsHistory(t *testing.T) {
	ctx := context.Background()
	svc := seededService(t)

	before, err := svc.ledger.LoadAll()
	require.NoError(t, err)

	// Identical values: no observable store change beyond the history entry.
	require.NoError(t, svc.Edit(ctx, "002", models.Update{Amount: amountPtr("500")}))

	after, err := svc.ledger.LoadAll()
	require.NoError(t, err)
	require.Len(t, after.Records, len(before.Records))
	for i := range before.Records {
		assert.True(t, after.Records[i].Equal(before.Records[i]), "record %d changed", i)
	}

	entries, err := svc.History(ctx, "002")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEditBackfillsDate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	require.NoError(t, svc.ledger.ReplaceAll([]models.Record{
		models.FromRow([]string{"expense", "rent", "500"}),
	}, ""))

	desc := "rent june"
	require.NoError(t, svc.Edit(ctx, "001", models.Update{Description: &desc}))

	snap, err := svc.ledger.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, "2024-06-15", snap.Records[0].Date)
}

func TestEditAddressingErrors(t *testing.T) {
	ctx := context.Background()
	svc := seededService(t)
	update := models.Update{Amount: amountPtr("1")}

	assert.ErrorIs(t, svc.Edit(ctx, "abc", update), apperr.ErrInvalidIdentifier)
	assert.ErrorIs(t, svc.Edit(ctx, "042", update), apperr.ErrOutOfRange)
	// Out of range is a refinement of not found.
	assert.ErrorIs(t, svc.Edit(ctx, "042", update), apperr.ErrNotFound)

	empty := newTestService(t)
	assert.ErrorIs(t, empty.Edit(ctx, "001", update), apperr.ErrStoreUnavailable)
}

func TestFailedEditLeavesNoHistory(t *testing.T) {
	ctx := context.Background()
	svc := seededService(t)

	require.Error(t, svc.Edit(ctx, "042", models.Update{Amount: amountPtr("1")}))

	entries, err := svc.History(ctx, "042")
	require.NoError(t, err)
	assert.Empty(t, entries, "history must never record an edit that did not apply")
}

func TestHistoryAppendOnlyAcrossEdits(t *testing.T) {
	ctx := context.Background()
	svc := seededService(t)

	for i, amount := range []string{"600", "700", "800"} {
		require.NoError(t, svc.Edit(ctx, "002", models.Update{Amount: amountPtr(amount)}))
		entries, err := svc.History(ctx, "002")
		require.NoError(t, err)
		require.Len(t, entries, i+1)
		// The first entry never changes.
		require.NotNil(t, entries[0].Updated.Amount)
		assert.True(t, entries[0].Updated.Amount.Equal(decimal.NewFromInt(600)))
	}
}

func TestHistoryNormalizesIdentifier(t *testing.T) {
	ctx := context.Background()
	svc := seededService(t)

	require.NoError(t, svc.Edit(ctx, "2", models.Update{Amount: amountPtr("650")}))

	entries, err := svc.History(ctx, "002")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = svc.History(ctx, "two")
	assert.ErrorIs(t, err, apperr.ErrInvalidIdentifier)
}

func TestDeleteShiftPolicy(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	require.NoError(t, svc.ledger.ReplaceAll([]models.Record{
		models.FromRow([]string{"income", "first", "1"}),
		models.FromRow([]string{"income", "second", "2"}),
		models.FromRow([]string{"income", "third", "3"}),
	}, ""))

	prop, err := svc.ProposeDelete(ctx, "001")
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmDelete(ctx, "001", prop.Token))

	// Every identifier after the deleted position shifted down by one. A
	// pre-shift identifier either falls out of range or resolves to the
	// record that now occupies the position; it never silently addresses
	// the deleted record's old neighbour by accident.
	_, err = svc.ProposeDelete(ctx, "003")
	assert.ErrorIs(t, err, apperr.ErrOutOfRange)

	prop, err = svc.ProposeDelete(ctx, "002")
	require.NoError(t, err)
	assert.Equal(t, "third", prop.Record.Description)
}

func TestConfirmTokenSingleUse(t *testing.T) {
	ctx := context.Background()
	svc := seededService(t)

	prop, err := svc.ProposeDelete(ctx, "001")
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmDelete(ctx, "001", prop.Token))

	err = svc.ConfirmDelete(ctx, "001", prop.Token)
	assert.ErrorIs(t, err, apperr.ErrConfirmExpired, "a token is consumed exactly once")
}

func TestConfirmWithoutToken(t *testing.T) {
	svc := seededService(t)
	err := svc.ConfirmDelete(context.Background(), "001", "")
	assert.ErrorIs(t, err, apperr.ErrConfirmExpired)
}

func TestConfirmTokenExpires(t *testing.T) {
	ctx := context.Background()
	svc := seededService(t)
	base := time.Now()
	svc.now = func() time.Time { return base }

	prop, err := svc.ProposeDelete(ctx, "001")
	require.NoError(t, err)

	svc.now = func() time.Time { return base.Add(confirmTTL + time.Second) }
	err = svc.ConfirmDelete(ctx, "001", prop.Token)
	assert.ErrorIs(t, err, apperr.ErrConfirmExpired)
}

func TestConfirmTokenBoundToIdentifier(t *testing.T) {
	ctx := context.Background()
	svc := seededService(t)

	prop, err := svc.ProposeDelete(ctx, "001")
	require.NoError(t, err)

	err = svc.ConfirmDelete(ctx, "002", prop.Token)
	assert.ErrorIs(t, err, apperr.ErrConfirmExpired)
}

func TestConfirmDetectsInterveningMutation(t *testing.T) {
	ctx := context.Background()
	svc := seededService(t)

	prop, err := svc.ProposeDelete(ctx, "002")
	require.NoError(t, err)

	// Another writer edits the record between propose and confirm.
	require.NoError(t, svc.Edit(ctx, "002", models.Update{Amount: amountPtr("999")}))

	err = svc.ConfirmDelete(ctx, "002", prop.Token)
	assert.ErrorIs(t, err, apperr.ErrConcurrentModification)

	// The record is still there.
	matches, err := svc.FilterAmount(ctx, "999")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestDeleteAddressingErrors(t *testing.T) {
	ctx := context.Background()
	svc := seededService(t)

	_, err := svc.ProposeDelete(ctx, "nope")
	assert.ErrorIs(t, err, apperr.ErrInvalidIdentifier)

	_, err = svc.ProposeDelete(ctx, "009")
	assert.ErrorIs(t, err, apperr.ErrOutOfRange)

	empty := newTestService(t)
	_, err = empty.ProposeDelete(ctx, "001")
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
}

func TestDeleteMalformedRecord(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	require.NoError(t, os.WriteFile(svc.ledger.Path(), []byte("income,salary\n"), 0o644))

	_, err := svc.ProposeDelete(ctx, "001")
	assert.ErrorIs(t, err, apperr.ErrMalformedRecord)
}

func TestAddAppendsRecord(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	for i := 1; i <= 3; i++ {
		rec := models.FromRow([]string{"income", fmt.Sprintf("pay %d", i), "10"})
		require.NoError(t, svc.Add(ctx, rec))
	}

	matches, err := svc.SearchKeyword(ctx, "pay")
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "001", matches[0].ID)
	assert.Equal(t, "pay 1", matches[0].Description)

	err = svc.Add(ctx, models.Record{Type: "loan", Description: "x", Amount: decimal.NewFromInt(1)})
	assert.Error(t, err)
}

func TestConcurrentMutationsNotLost(t *testing.T) {
	ctx := context.Background()
	svc := seededService(t)

	const editors = 6
	var wg sync.WaitGroup
	errs := make([]error, editors)
	for i := 0; i < editors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.Add(ctx, models.FromRow([]string{"expense", fmt.Sprintf("item %d", i), "1"}))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}
	snap, err := svc.ledger.LoadAll()
	require.NoError(t, err)
	assert.Len(t, snap.Records, 2+editors)
}
