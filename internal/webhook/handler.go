package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/healthscope/healthscope/internal/snapshot"
	"github.com/healthscope/healthscope/internal/store"
	"github.com/healthscope/healthscope/pkg/account"
)

// MaxBodyBytes bounds the size of a webhook request body.
const MaxBodyBytes = 10 << 20

// Handler processes incoming CRM webhook events.
type Handler struct {
	webhookSecret []byte
	store         store.Store
	recorder      *snapshot.Recorder
	log           *zap.Logger
}

// NewHandler creates a new webhook Handler.
func NewHandler(webhookSecret []byte, st store.Store, recorder *snapshot.Recorder) *Handler {
	return &Handler{
		webhookSecret: webhookSecret,
		store:         st,
		recorder:      recorder,
		log:           zap.L().Named("webhook"),
	}
}

// ServeHTTP handles incoming webhook requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respond(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}
	if len(body) > MaxBodyBytes {
		respond(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "body too large"})
		return
	}

	if err := VerifySignature(body, r.Header.Get(SignatureHeader), h.webhookSecret); err != nil {
		h.log.Warn("webhook signature verification failed", zap.Error(err))
		respond(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	env, event, err := ParseEvent(body)
	if err != nil {
		h.log.Warn("webhook parse error", zap.Error(err))
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if event == nil {
		h.log.Debug("ignoring webhook event", zap.String("event", env.Event))
		respond(w, http.StatusAccepted, map[string]string{"status": "ignored"})
		return
	}

	snap, err := h.handleAccountUpdated(r.Context(), event)
	switch {
	case errors.Is(err, account.ErrInvalid):
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	case err != nil:
		h.log.Error("handle account.updated event", zap.String("delivery_id", event.DeliveryID), zap.Error(err))
		respond(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	respond(w, http.StatusAccepted, map[string]string{
		"status":      "accepted",
		"account_id":  snap.AccountID,
		"snapshot_id": snap.ID,
	})
}

func (h *Handler) handleAccountUpdated(ctx context.Context, e *AccountUpdatedEvent) (*account.HealthSnapshot, error) {
	a := &e.Account
	// The CRM does not own identity or derived health fields.
	a.ID, a.HealthScore, a.HealthBucket, a.LatestSnapshotID = "", 0, "", ""

	if err := a.Validate(); err != nil {
		return nil, err
	}
	created, err := h.store.UpsertAccount(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("upsert account %s: %w", a.Name, err)
	}
	snap, err := h.recorder.Record(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("record snapshot for %s: %w", a.ID, err)
	}

	h.log.Info("account updated from crm",
		zap.String("account_id", a.ID),
		zap.String("delivery_id", e.DeliveryID),
		zap.Bool("created", created),
		zap.Float64("score", snap.Score),
		zap.String("bucket", string(snap.RiskLabel)),
	)
	return snap, nil
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
