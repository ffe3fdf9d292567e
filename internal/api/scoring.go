package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/healthscope/healthscope/internal/playbook"
	"github.com/healthscope/healthscope/internal/portfolio"
	"github.com/healthscope/healthscope/pkg/account"
	"github.com/healthscope/healthscope/pkg/scoring"
)

type scoreResponse struct {
	scoring.Result
	Recommendations []playbook.Recommendation `json:"recommendations"`
}

type recommendRequest struct {
	RiskFactors []string `json:"risk_factors"`
	Limit       int      `json:"limit"`
}

type recommendResponse struct {
	AccountID       string                    `json:"account_id,omitempty"`
	RiskFactors     []string                  `json:"risk_factors"`
	Recommendations []playbook.Recommendation `json:"recommendations"`
}

// handleScore scores the account in the body without persisting anything.
func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	var a account.Account
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := a.Validate(); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	res := h.recorder.Engine().Score(&a)
	writeJSON(w, http.StatusOK, scoreResponse{
		Result:          res,
		Recommendations: h.playbooks.Recommend(account.Labels(res.NegativeFactors()), 0),
	})
}

func (h *Handler) handleListPlaybooks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.playbooks.All())
}

func (h *Handler) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.RiskFactors) == 0 {
		writeError(w, http.StatusBadRequest, "risk_factors is required")
		return
	}
	if req.Limit < 0 || req.Limit > 10 {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("limit must be between 1 and 10, or 0 for the default of %d", playbook.DefaultLimit))
		return
	}

	writeJSON(w, http.StatusOK, recommendResponse{
		RiskFactors:     req.RiskFactors,
		Recommendations: h.playbooks.Recommend(req.RiskFactors, req.Limit),
	})
}

func (h *Handler) handlePortfolioSummary(w http.ResponseWriter, r *http.Request) {
	s, err := portfolio.Load(r.Context(), h.store, h.now())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
