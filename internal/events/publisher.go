// Package events publishes snapshot notifications to downstream consumers.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/healthscope/healthscope/pkg/account"
)

// SnapshotRecorded is emitted after a health snapshot has been committed.
type SnapshotRecorded struct {
	SnapshotID     string                 `json:"snapshot_id"`
	AccountID      string                 `json:"account_id"`
	AccountName    string                 `json:"account_name"`
	CalculatedAt   time.Time              `json:"calculated_at"`
	Score          float64                `json:"score"`
	Bucket         account.Bucket         `json:"bucket"`
	PreviousBucket account.Bucket         `json:"previous_bucket,omitempty"`
	TopFactors     []account.HealthFactor `json:"top_factors"`
}

// BucketChanged reports whether the account moved between risk buckets.
func (e SnapshotRecorded) BucketChanged() bool {
	return e.PreviousBucket != "" && e.PreviousBucket != e.Bucket
}

// Publisher delivers SnapshotRecorded events.
type Publisher interface {
	Publish(ctx context.Context, e SnapshotRecorded) error
	Close() error
}

// Noop discards every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, SnapshotRecorded) error { return nil }

func (Noop) Close() error { return nil }

// Recorder keeps published events in memory. Tests use it to observe what
// would have been sent.
type Recorder struct {
	mu     sync.Mutex
	events []SnapshotRecorded

	// Err, when set, is returned from every Publish.
	Err error
}

func (r *Recorder) Publish(_ context.Context, e SnapshotRecorded) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events in publish order.
func (r *Recorder) Events() []SnapshotRecorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SnapshotRecorded(nil), r.events...)
}

func (r *Recorder) Close() error { return nil }
