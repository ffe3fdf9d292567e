package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/healthscope/healthscope/internal/store"
	"github.com/healthscope/healthscope/pkg/account"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	listFactors     = 5
)

type accountSummary struct {
	account.Account
	TopFactors []account.HealthFactor `json:"top_factors"`
}

type listAccountsResponse struct {
	Accounts []accountSummary `json:"accounts"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

type accountResponse struct {
	Account        *account.Account        `json:"account"`
	LatestSnapshot *account.HealthSnapshot `json:"latest_snapshot"`
}

// latestSnapshot returns the account's current snapshot, checking the cache
// first. Accounts that were never scored yield nil.
func (h *Handler) latestSnapshot(ctx context.Context, a *account.Account) (*account.HealthSnapshot, error) {
	if a.LatestSnapshotID == "" {
		return nil, nil
	}
	if snap := h.cache.Get(a.LatestSnapshotID); snap != nil {
		return snap, nil
	}
	snap, err := h.store.LatestSnapshot(ctx, a.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	h.cache.Put(snap)
	return snap, nil
}

func queryInt(r *http.Request, name string, def, lo, hi int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return 0, false
	}
	return v, true
}

func (h *Handler) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.Filter{
		Segment: account.Segment(q.Get("segment")),
		Bucket:  account.Bucket(q.Get("bucket")),
		Region:  q.Get("region"),
	}
	if f.Segment != "" && !f.Segment.Valid() {
		writeError(w, http.StatusBadRequest, "segment must be one of SMB, Mid-Market, Enterprise")
		return
	}
	if f.Bucket != "" && !f.Bucket.Valid() {
		writeError(w, http.StatusBadRequest, "bucket must be one of Green, Amber, Red")
		return
	}

	page, ok := queryInt(r, "page", 1, 1, 1<<20)
	if !ok {
		writeError(w, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	pageSize, ok := queryInt(r, "page_size", defaultPageSize, 1, maxPageSize)
	if !ok {
		writeError(w, http.StatusBadRequest, "page_size must be between 1 and 100")
		return
	}

	ctx := r.Context()
	total, err := h.store.CountAccounts(ctx, f)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	f.Limit = pageSize
	f.Offset = (page - 1) * pageSize
	accounts, err := h.store.ListAccounts(ctx, f)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	resp := listAccountsResponse{
		Accounts: make([]accountSummary, 0, len(accounts)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for i := range accounts {
		item := accountSummary{Account: accounts[i], TopFactors: []account.HealthFactor{}}
		snap, err := h.latestSnapshot(ctx, &accounts[i])
		if err != nil {
			h.writeFailure(w, r, err)
			return
		}
		if snap != nil {
			factors := snap.Factors
			if len(factors) > listFactors {
				factors = factors[:listFactors]
			}
			item.TopFactors = factors
		}
		resp.Accounts = append(resp.Accounts, item)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a, err := h.store.GetAccount(ctx, chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	snap, err := h.latestSnapshot(ctx, a)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{Account: a, LatestSnapshot: snap})
}

// handleUpsertAccount creates or updates an account by name and records a
// snapshot for it.
func (h *Handler) handleUpsertAccount(w http.ResponseWriter, r *http.Request) {
	var a account.Account
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	// Identity and derived fields belong to the store.
	a.ID, a.HealthScore, a.HealthBucket, a.LatestSnapshotID = "", 0, "", ""

	if err := a.Validate(); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	ctx := r.Context()
	created, err := h.store.UpsertAccount(ctx, &a)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	snap, err := h.recorder.Record(ctx, &a)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.cache.Put(snap)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, accountResponse{Account: &a, LatestSnapshot: snap})
}

func (h *Handler) handleAccountRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a, err := h.store.GetAccount(ctx, chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	limit, ok := queryInt(r, "limit", 0, 1, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 10")
		return
	}

	snap, err := h.latestSnapshot(ctx, a)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	riskFactors := []string{}
	if snap != nil {
		riskFactors = account.Labels(snap.NegativeFactors())
	}

	writeJSON(w, http.StatusOK, recommendResponse{
		AccountID:       a.ID,
		RiskFactors:     riskFactors,
		Recommendations: h.playbooks.Recommend(riskFactors, limit),
	})
}
