// Package ledgerservice implements the query and mutation operations over
// the shared ledger store.
//
// Identifiers are positional and only valid against one snapshot, so every
// operation resolves its identifier against a fresh snapshot and every write
// presents the snapshot revision back to the store. A mutation racing with
// another writer fails with ErrConcurrentModification instead of silently
// overwriting the other's change.
package ledgerservice

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ashwell/tally/internal/apperr"
	"github.com/ashwell/tally/internal/history"
	"github.com/ashwell/tally/internal/ident"
	"github.com/ashwell/tally/internal/models"
	"github.com/ashwell/tally/internal/report"
	"github.com/ashwell/tally/internal/storage"
)

// defaultWindowDays is the summary window used when the requested window is
// neither "all" nor a number of days.
const defaultWindowDays = 30

// Service coordinates ledger store and history log operations.
type Service struct {
	ledger  *storage.Ledger
	history *history.Log
	pending *pendingDeletes
	now     func() time.Time
}

// NewService creates a ledger service.
func NewService(ledger *storage.Ledger, hist *history.Log) *Service {
	return &Service{
		ledger:  ledger,
		history: hist,
		pending: newPendingDeletes(confirmTTL),
		now:     time.Now,
	}
}

// Match is a query result: a record together with the identifier it
// currently resolves from.
type Match struct {
	ID string `json:"id"`
	models.Record
}

// Summary renders the report for a time window. window is "all" or a number
// of days back from today; anything else falls back to the default window,
// which is observable in the rendered date range.
func (s *Service) Summary(_ context.Context, window string) (string, error) {
	snap, err := s.ledger.LoadAll()
	if err != nil {
		return "", err
	}

	sum := report.Summary{}
	today := s.now()

	if window == "all" {
		sum.Title = "All Transaction Info"
		for _, rec := range snap.Records {
			if rec.Incomplete() {
				continue
			}
			sum.Lines = append(sum.Lines, line(rec))
			tally(&sum, rec)
		}
		return sum.Render(), nil
	}

	days, err := strconv.Atoi(strings.TrimSpace(window))
	if err != nil || days < 0 {
		days = defaultWindowDays
	}
	start := today.AddDate(0, 0, -days)
	sum.Title = fmt.Sprintf("%s -> %s Transaction Info",
		start.Format(models.DateFormat), today.Format(models.DateFormat))
	sum.Windowed = true

	for _, rec := range snap.Records {
		if rec.Incomplete() {
			continue
		}
		d, ok := rec.DateValue()
		if !ok {
			// Undated records cannot be placed in a window.
			continue
		}
		if d.Before(dateOnly(start)) || d.After(dateOnly(today)) {
			continue
		}
		sum.Lines = append(sum.Lines, line(rec))
		tally(&sum, rec)
	}
	return sum.Render(), nil
}

// SearchKeyword returns every record whose description contains keyword,
// case-insensitively, in store order.
func (s *Service) SearchKeyword(_ context.Context, keyword string) ([]Match, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, apperr.ErrEmptyQuery
	}
	snap, err := s.ledger.LoadAll()
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(keyword)
	matches := []Match{}
	for i, rec := range snap.Records {
		if rec.Incomplete() {
			continue
		}
		if strings.Contains(strings.ToLower(rec.Description), needle) {
			matches = append(matches, Match{ID: ident.FromPosition(i), Record: rec})
		}
	}
	return matches, nil
}

// FilterAmount returns every record whose amount equals raw exactly.
// Equality is decimal: "10" and "10.00" match the same records.
func (s *Service) FilterAmount(_ context.Context, raw string) ([]Match, error) {
	want, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", apperr.ErrInvalidAmount, raw)
	}
	snap, err := s.ledger.LoadAll()
	if err != nil {
		return nil, err
	}
	matches := []Match{}
	for i, rec := range snap.Records {
		if rec.Incomplete() {
			continue
		}
		if rec.Amount.Equal(want) {
			matches = append(matches, Match{ID: ident.FromPosition(i), Record: rec})
		}
	}
	return matches, nil
}

// Edit applies a partial field update to the record at id and records the
// edit in the history log. The history entry is appended only after the
// rewrite is durable. Edits never change the sequence length, so they do
// not shift identifiers.
func (s *Service) Edit(_ context.Context, id string, u models.Update) error {
	if err := u.Validate(); err != nil {
		return err
	}

	var entry history.Entry
	err := s.ledger.Update(func(snap storage.Snapshot) ([]models.Record, error) {
		if !snap.Exists {
			return nil, apperr.ErrStoreUnavailable
		}
		pos, err := ident.ToPosition(id, len(snap.Records))
		if err != nil {
			return nil, err
		}
		rec := snap.Records[pos]
		if rec.Incomplete() {
			return nil, apperr.ErrMalformedRecord
		}

		records := make([]models.Record, len(snap.Records))
		copy(records, snap.Records)
		records[pos] = u.Apply(rec, s.now().Format(models.DateFormat))

		entry = history.Entry{
			Identifier: ident.FromPosition(pos),
			At:         s.now(),
			Original:   rec,
			Updated:    u,
		}
		return records, nil
	})
	if err != nil {
		return err
	}
	return s.history.Append(entry)
}

// History returns the ordered edit history for an identifier. Identifiers
// are not bounds-checked against the current store: history survives the
// record it describes.
func (s *Service) History(_ context.Context, id string) ([]history.Entry, error) {
	n, err := ident.Parse(id)
	if err != nil {
		return nil, err
	}
	return s.history.List(ident.FromPosition(n - 1))
}

// Proposal is the reversible half of a delete: the record that would be
// removed plus a single-use token that the confirmation must present.
type Proposal struct {
	Record models.Record
	Token  string
}

// ProposeDelete resolves id, validates the record, and returns it together
// with a confirmation token. Nothing is removed.
func (s *Service) ProposeDelete(_ context.Context, id string) (Proposal, error) {
	snap, err := s.ledger.LoadAll()
	if err != nil {
		return Proposal{}, err
	}
	if !snap.Exists {
		return Proposal{}, apperr.ErrStoreUnavailable
	}
	pos, err := ident.ToPosition(id, len(snap.Records))
	if err != nil {
		return Proposal{}, err
	}
	rec := snap.Records[pos]
	if rec.Incomplete() {
		return Proposal{}, apperr.ErrMalformedRecord
	}
	token := s.pending.add(ident.FromPosition(pos), rec, s.now())
	return Proposal{Record: rec, Token: token}, nil
}

// ConfirmDelete consumes a proposal token and removes the record. The
// identifier is re-resolved against the current store; if the addressed
// record no longer matches the proposed one the delete fails with
// ErrConcurrentModification and the token is spent either way.
func (s *Service) ConfirmDelete(_ context.Context, id, token string) error {
	p, err := s.pending.take(token, s.now())
	if err != nil {
		return err
	}
	n, err := ident.Parse(id)
	if err != nil {
		return err
	}
	if ident.FromPosition(n-1) != p.identifier {
		return fmt.Errorf("%w: token was issued for a different record", apperr.ErrConfirmExpired)
	}

	return s.ledger.Update(func(snap storage.Snapshot) ([]models.Record, error) {
		if !snap.Exists {
			return nil, apperr.ErrStoreUnavailable
		}
		pos, err := ident.ToPosition(id, len(snap.Records))
		if err != nil {
			return nil, err
		}
		if !snap.Records[pos].Equal(p.record) {
			return nil, fmt.Errorf("storage changed since proposal: %w", apperr.ErrConcurrentModification)
		}
		records := make([]models.Record, 0, len(snap.Records)-1)
		records = append(records, snap.Records[:pos]...)
		records = append(records, snap.Records[pos+1:]...)
		return records, nil
	})
}

// Add appends a new record to the ledger, creating the backing file when it
// does not exist yet.
func (s *Service) Add(_ context.Context, rec models.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return s.ledger.Append(rec)
}

func line(rec models.Record) report.Line {
	return report.Line{
		Description: rec.Description,
		Date:        rec.Date,
		Expense:     rec.Type == models.TypeExpense,
		Amount:      rec.Amount,
	}
}

func tally(sum *report.Summary, rec models.Record) {
	if rec.Type == models.TypeExpense {
		sum.TotalExpense = sum.TotalExpense.Add(rec.Amount)
	} else {
		sum.TotalIncome = sum.TotalIncome.Add(rec.Amount)
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
