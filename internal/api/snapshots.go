package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/healthscope/healthscope/pkg/account"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 365
)

type historyResponse struct {
	AccountID string                   `json:"account_id"`
	Snapshots []account.HealthSnapshot `json:"snapshots"`
}

// handleHistory returns an account's snapshots, most recent first.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", defaultHistoryLimit, 1, maxHistoryLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 365")
		return
	}

	ctx := r.Context()
	a, err := h.store.GetAccount(ctx, chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	history, err := h.store.History(ctx, a.ID, limit)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if history == nil {
		history = []account.HealthSnapshot{}
	}
	if len(history) > 0 {
		h.cache.Put(&history[0])
	}

	writeJSON(w, http.StatusOK, historyResponse{AccountID: a.ID, Snapshots: history})
}
