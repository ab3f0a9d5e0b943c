package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/ashwell/tally/internal/apperr"
	"github.com/ashwell/tally/internal/ledgerservice"
	"github.com/ashwell/tally/internal/models"
)

// Handler holds the command handlers for the four service endpoints.
type Handler struct {
	svc      *ledgerservice.Service
	shutdown func(endpoint string)
}

// NewHandler creates a Handler. shutdown is invoked after an "end" command
// has been acknowledged.
func NewHandler(svc *ledgerservice.Service, shutdown func(endpoint string)) *Handler {
	if shutdown == nil {
		shutdown = func(string) {}
	}
	return &Handler{svc: svc, shutdown: shutdown}
}

// Summary serves the summary endpoint: commands summary and end.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	e, ok := decode(w, r)
	if !ok {
		return
	}
	switch e.Command {
	case "summary":
		text, err := h.svc.Summary(r.Context(), scalar(e.Window))
		if err != nil {
			respondErr(w, "summary", err)
			return
		}
		writeJSON(w, success(map[string]any{"report": text}))
	case "end":
		h.end(w, "summary")
	default:
		unknown(w, e.Command)
	}
}

// Edit serves the edit endpoint: commands edit, history, and end.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	e, ok := decode(w, r)
	if !ok {
		return
	}
	switch e.Command {
	case "edit":
		if err := validation.ValidateStruct(&e,
			validation.Field(&e.ID, validation.Required),
			validation.Field(&e.Data, validation.NotNil),
		); err != nil {
			writeJSON(w, failure(err.Error()))
			return
		}
		if e.Data.IsZero() {
			writeJSON(w, failure("data must set at least one field"))
			return
		}
		if err := h.svc.Edit(r.Context(), e.ID, *e.Data); err != nil {
			respondErr(w, "edit", err)
			return
		}
		writeJSON(w, success(map[string]any{"message": "Transaction updated successfully!"}))
	case "history":
		if e.ID == "" {
			writeJSON(w, failure("id is required"))
			return
		}
		entries, err := h.svc.History(r.Context(), e.ID)
		if err != nil {
			respondErr(w, "history", err)
			return
		}
		fields := map[string]any{"history": entries}
		if len(entries) == 0 {
			fields["message"] = "No edit history found"
		}
		writeJSON(w, success(fields))
	case "end":
		h.end(w, "edit")
	default:
		unknown(w, e.Command)
	}
}

// Delete serves the delete endpoint: the two-phase delete command and end.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	e, ok := decode(w, r)
	if !ok {
		return
	}
	switch e.Command {
	case "delete":
		if e.ID == "" {
			writeJSON(w, failure("id is required"))
			return
		}
		if !e.Confirm {
			prop, err := h.svc.ProposeDelete(r.Context(), e.ID)
			if err != nil {
				respondErr(w, "delete propose", err)
				return
			}
			writeJSON(w, success(map[string]any{
				"require_confirmation": true,
				"transaction":          prop.Record,
				"confirm_token":        prop.Token,
			}))
			return
		}
		if err := h.svc.ConfirmDelete(r.Context(), e.ID, e.Token); err != nil {
			respondErr(w, "delete confirm", err)
			return
		}
		writeJSON(w, success(map[string]any{
			"message": fmt.Sprintf("Transaction %s deleted successfully", e.ID),
		}))
	case "end":
		h.end(w, "delete")
	default:
		unknown(w, e.Command)
	}
}

// Search serves the search endpoint: search_keyword, filter_amount, add,
// and end.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	e, ok := decode(w, r)
	if !ok {
		return
	}
	switch e.Command {
	case "search_keyword":
		matches, err := h.svc.SearchKeyword(r.Context(), e.Keyword)
		if err != nil {
			respondErr(w, "search", err)
			return
		}
		writeJSON(w, success(map[string]any{"count": len(matches), "results": matches}))
	case "filter_amount":
		matches, err := h.svc.FilterAmount(r.Context(), scalar(e.Amount))
		if err != nil {
			respondErr(w, "filter", err)
			return
		}
		writeJSON(w, success(map[string]any{"count": len(matches), "results": matches}))
	case "add":
		rec, err := addRecord(e)
		if err != nil {
			writeJSON(w, failure(err.Error()))
			return
		}
		if err := h.svc.Add(r.Context(), rec); err != nil {
			respondErr(w, "add", err)
			return
		}
		writeJSON(w, success(map[string]any{
			"message": fmt.Sprintf("%s added!", rec.Type),
		}))
	case "end":
		h.end(w, "search")
	default:
		unknown(w, e.Command)
	}
}

func addRecord(e envelope) (models.Record, error) {
	if err := validation.ValidateStruct(&e,
		validation.Field(&e.Type, validation.Required,
			validation.In(string(models.TypeIncome), string(models.TypeExpense))),
		validation.Field(&e.Description, validation.Required),
		validation.Field(&e.Amount, validation.Required.Error("amount is required")),
		validation.Field(&e.Date, validation.Date(models.DateFormat)),
	); err != nil {
		return models.Record{}, err
	}
	amount, err := decimal.NewFromString(scalar(e.Amount))
	if err != nil {
		return models.Record{}, fmt.Errorf("%w: %q", apperr.ErrInvalidAmount, scalar(e.Amount))
	}
	return models.Record{
		Type:        models.RecordType(e.Type),
		Description: e.Description,
		Amount:      amount,
		Date:        e.Date,
	}, nil
}

func (h *Handler) end(w http.ResponseWriter, endpoint string) {
	writeJSON(w, success(map[string]any{
		"message": fmt.Sprintf("Transaction %s service shutting down", endpoint),
	}))
	h.shutdown(endpoint)
}

func decode(w http.ResponseWriter, r *http.Request) (envelope, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var e envelope
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeJSON(w, failure("invalid JSON envelope"))
		return envelope{}, false
	}
	if e.Command == "" {
		writeJSON(w, failure("command is required"))
		return envelope{}, false
	}
	return e, true
}

func unknown(w http.ResponseWriter, command string) {
	writeJSON(w, failure(fmt.Sprintf("Unknown command: %s", command)))
}

// respondErr maps service errors to result envelopes. Every error is a
// structured failure; the endpoint keeps serving subsequent requests.
func respondErr(w http.ResponseWriter, op string, err error) {
	msg := messageFor(err)
	if msg == "" {
		slog.Error("request failed", slog.String("op", op), slog.String("error", err.Error()))
		msg = err.Error()
	}
	writeJSON(w, failure(msg))
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, apperr.ErrStoreUnavailable):
		return "No transactions file found"
	case errors.Is(err, apperr.ErrInvalidIdentifier):
		return "Invalid transaction ID. Please enter a number."
	case errors.Is(err, apperr.ErrOutOfRange):
		return "Transaction ID not found (out of range)"
	case errors.Is(err, apperr.ErrNotFound):
		return "Transaction not found"
	case errors.Is(err, apperr.ErrMalformedRecord):
		return "Transaction has invalid format"
	case errors.Is(err, apperr.ErrInvalidAmount):
		return "Invalid amount provided"
	case errors.Is(err, apperr.ErrEmptyQuery):
		return "No keyword provided"
	case errors.Is(err, apperr.ErrConfirmExpired):
		return "Delete confirmation is no longer valid; request the delete again"
	case errors.Is(err, apperr.ErrConcurrentModification):
		return "Ledger changed while processing; retry the operation"
	case errors.Is(err, apperr.ErrStoreWriteFailed):
		return "Failed to save transactions"
	}
	return ""
}
