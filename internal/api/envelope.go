// Package api implements the command-envelope endpoints of the four ledger
// services using chi.
//
// Every request is a POST with a JSON envelope {"command": ..., ...}; every
// reply is {"success": ..., ...}. Errors are structured results, never HTTP
// failures: the transport answers 200 and the envelope carries the outcome.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashwell/tally/internal/models"
)

// envelope is the inbound command envelope. Fields beyond command are
// command-specific; fields a command does not use are ignored.
type envelope struct {
	Command string `json:"command"`

	// summary
	Window json.RawMessage `json:"window"`

	// edit / history / delete
	ID      string          `json:"id"`
	Data    *models.Update  `json:"data"`
	Confirm bool            `json:"confirm"`
	Token   string          `json:"confirm_token"`

	// search / filter
	Keyword string          `json:"keyword"`
	Amount  json.RawMessage `json:"amount"`

	// add
	Type        string `json:"type"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

// scalar renders a raw JSON value that may be either a string or a number as
// its exact text, so "10.00" sent as a string and 10.00 sent as a number
// both survive untouched.
func scalar(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

func success(fields map[string]any) map[string]any {
	out := map[string]any{"success": true}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func failure(msg string) map[string]any {
	return map[string]any{"success": false, "message": msg}
}
