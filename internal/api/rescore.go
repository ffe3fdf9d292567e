package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type recomputeResponse struct {
	AccountsUpdated  int               `json:"accounts_updated"`
	SnapshotsCreated int               `json:"snapshots_created"`
	Errors           map[string]string `json:"errors"`
	ElapsedSeconds   float64           `json:"computation_time_seconds"`
}

// handleRecomputeAccount records one new snapshot for a stored account.
func (h *Handler) handleRecomputeAccount(w http.ResponseWriter, r *http.Request) {
	a, snap, err := h.recorder.RecordByID(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.cache.Put(snap)
	writeJSON(w, http.StatusOK, accountResponse{Account: a, LatestSnapshot: snap})
}

// handleRecomputePortfolio re-runs the scoring engine on every stored
// account. Per-account failures are reported in the body, not as a status.
func (h *Handler) handleRecomputePortfolio(w http.ResponseWriter, r *http.Request) {
	res, err := h.recorder.RecomputePortfolio(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	errs := res.Errors
	if errs == nil {
		errs = map[string]string{}
	}
	writeJSON(w, http.StatusOK, recomputeResponse{
		AccountsUpdated:  res.Updated,
		SnapshotsCreated: res.Updated,
		Errors:           errs,
		ElapsedSeconds:   res.Elapsed.Seconds(),
	})
}
