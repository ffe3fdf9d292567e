package snapshot

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/healthscope/healthscope/pkg/account"
)

// Archiver writes history exports to blob storage and returns the object key.
type Archiver interface {
	PutExport(ctx context.Context, accountID, exportID string, data []byte) (string, error)
}

// Export is the document written by ExportHistory.
type Export struct {
	Account    *account.Account         `json:"account"`
	ExportedAt time.Time                `json:"exported_at"`
	History    []account.HealthSnapshot `json:"history"`
}

// ExportHistory writes the account's full snapshot history as JSON to the
// configured archiver and returns the object key.
func (r *Recorder) ExportHistory(ctx context.Context, accountID string) (string, error) {
	if r.archive == nil {
		return "", eris.New("export history: no archive configured")
	}

	a, err := r.store.GetAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	history, err := r.store.History(ctx, accountID, 0)
	if err != nil {
		return "", eris.Wrapf(err, "export history for %s", accountID)
	}

	now := r.now()
	doc := Export{Account: a, ExportedAt: now, History: history}
	if doc.History == nil {
		doc.History = []account.HealthSnapshot{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "marshal history export")
	}

	key, err := r.archive.PutExport(ctx, accountID, now.Format("20060102T150405Z"), data)
	if err != nil {
		return "", eris.Wrapf(err, "archive history for %s", accountID)
	}
	r.log.Info("history exported",
		zap.String("account_id", accountID),
		zap.String("key", key),
		zap.Int("snapshots", len(history)),
	)
	return key, nil
}
