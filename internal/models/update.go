package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ashwell/tally/internal/apperr"
)

// Update is a partial field set applied to a record by an edit. Nil fields
// are left untouched. The identifier itself is never part of an update.
type Update struct {
	Type        *RecordType      `json:"type,omitempty"`
	Description *string          `json:"description,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Date        *string          `json:"date,omitempty"`
}

// IsZero reports whether the update carries no fields at all.
func (u Update) IsZero() bool {
	return u.Type == nil && u.Description == nil && u.Amount == nil && u.Date == nil
}

// Validate checks every field present in the update.
func (u Update) Validate() error {
	if u.Type != nil {
		if _, err := ParseRecordType(string(*u.Type)); err != nil {
			return err
		}
	}
	if u.Description != nil && *u.Description == "" {
		return fmt.Errorf("models: description must not be empty")
	}
	if u.Amount != nil && u.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", apperr.ErrInvalidAmount)
	}
	if u.Date != nil {
		if _, err := time.Parse(DateFormat, *u.Date); err != nil {
			return fmt.Errorf("models: invalid date %q: want %s", *u.Date, DateFormat)
		}
	}
	return nil
}

// Apply returns a copy of rec with the update's fields overwritten. When
// neither the update nor the record carries a date, the edit day is recorded.
func (u Update) Apply(rec Record, today string) Record {
	out := rec
	if u.Type != nil {
		out.Type = *u.Type
	}
	if u.Description != nil {
		out.Description = *u.Description
	}
	if u.Amount != nil {
		out.Amount = *u.Amount
	}
	if u.Date != nil {
		out.Date = *u.Date
	} else if out.Date == "" {
		out.Date = today
	}
	return out
}
