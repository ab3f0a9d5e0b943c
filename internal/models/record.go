// Package models defines the domain types for the ledger.
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ashwell/tally/internal/apperr"
)

// DateFormat is the calendar date layout used in the ledger file and the API.
const DateFormat = "2006-01-02"

// RecordType classifies a ledger record.
type RecordType string

const (
	TypeIncome  RecordType = "income"
	TypeExpense RecordType = "expense"
)

// ParseRecordType validates a record type string.
func ParseRecordType(s string) (RecordType, error) {
	switch RecordType(s) {
	case TypeIncome, TypeExpense:
		return RecordType(s), nil
	}
	return "", fmt.Errorf("models: unknown record type %q", s)
}

// Record is one ledger row: type, description, amount, optional date.
//
// A stored row with fewer than three fields (or an unreadable amount) cannot
// be interpreted as a record. Such rows are kept verbatim so that full
// rewrites of unrelated records preserve them; Incomplete reports that state.
type Record struct {
	Type        RecordType      `json:"type"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date,omitempty"`

	raw []string
}

// Incomplete reports whether the record came from a row that could not be
// interpreted and is only carried verbatim.
func (r Record) Incomplete() bool { return r.raw != nil }

// Equal reports whether two records hold the same values.
func (r Record) Equal(o Record) bool {
	if r.Incomplete() || o.Incomplete() {
		if len(r.raw) != len(o.raw) {
			return false
		}
		for i := range r.raw {
			if r.raw[i] != o.raw[i] {
				return false
			}
		}
		return true
	}
	return r.Type == o.Type &&
		r.Description == o.Description &&
		r.Amount.Equal(o.Amount) &&
		r.Date == o.Date
}

// DateValue parses the record's date. ok is false when the record has no
// date or the stored value is not a valid calendar date.
func (r Record) DateValue() (time.Time, bool) {
	if r.Date == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateFormat, r.Date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Validate checks the fields of a record built from user input.
func (r Record) Validate() error {
	if _, err := ParseRecordType(string(r.Type)); err != nil {
		return err
	}
	if r.Description == "" {
		return fmt.Errorf("models: description is required")
	}
	if r.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", apperr.ErrInvalidAmount)
	}
	if r.Date != "" {
		if _, err := time.Parse(DateFormat, r.Date); err != nil {
			return fmt.Errorf("models: invalid date %q: want %s", r.Date, DateFormat)
		}
	}
	return nil
}

// FromRow builds a Record from a stored CSV row. Rows with fewer than three
// fields or an unreadable amount are returned as incomplete records.
func FromRow(row []string) Record {
	if len(row) < 3 {
		return verbatim(row)
	}
	amount, err := decimal.NewFromString(row[2])
	if err != nil {
		return verbatim(row)
	}
	rec := Record{
		Type:        RecordType(row[0]),
		Description: row[1],
		Amount:      amount,
	}
	if len(row) >= 4 {
		rec.Date = row[3]
	}
	return rec
}

func verbatim(row []string) Record {
	raw := make([]string, len(row))
	copy(raw, row)
	if raw == nil {
		raw = []string{}
	}
	return Record{raw: raw}
}

// Row serializes the record back to a CSV row. Incomplete records round-trip
// to their original raw fields.
func (r Record) Row() []string {
	if r.Incomplete() {
		return r.raw
	}
	row := []string{string(r.Type), r.Description, r.Amount.String()}
	if r.Date != "" {
		row = append(row, r.Date)
	}
	return row
}
