// Package snapshot records health snapshots: it scores an account, persists
// the snapshot together with the account's live health fields, and fans the
// result out to metrics and event consumers.
package snapshot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/healthscope/healthscope/internal/events"
	"github.com/healthscope/healthscope/internal/metrics"
	"github.com/healthscope/healthscope/internal/store"
	"github.com/healthscope/healthscope/pkg/account"
	"github.com/healthscope/healthscope/pkg/scoring"
)

// ErrUnsaved is returned when recording an account that has no stored ID.
var ErrUnsaved = errors.New("account has not been stored")

// DefaultConcurrency bounds portfolio recomputes when no limit is configured.
const DefaultConcurrency = 8

// Recorder turns accounts into persisted health snapshots.
type Recorder struct {
	store       store.Store
	engine      *scoring.Engine
	publisher   events.Publisher
	metrics     *metrics.Manager
	archive     Archiver
	log         *zap.Logger
	now         func() time.Time
	newID       func() string
	concurrency int

	locks sync.Map // account ID -> *sync.Mutex
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithPublisher sets the event publisher. Defaults to events.Noop.
func WithPublisher(p events.Publisher) Option {
	return func(r *Recorder) { r.publisher = p }
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithArchiver sets the blob store used by ExportHistory.
func WithArchiver(a Archiver) Option {
	return func(r *Recorder) { r.archive = a }
}

// WithLogger sets the logger. Defaults to zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(r *Recorder) { r.log = l }
}

// WithClock sets the source of snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithIDGenerator sets the snapshot ID generator.
func WithIDGenerator(f func() string) Option {
	return func(r *Recorder) { r.newID = f }
}

// WithConcurrency bounds how many accounts RecomputeAll scores at once.
func WithConcurrency(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewRecorder creates a Recorder that persists to st and scores with engine.
// A nil engine uses the default weights.
func NewRecorder(st store.Store, engine *scoring.Engine, opts ...Option) *Recorder {
	if engine == nil {
		engine = scoring.NewEngine()
	}
	r := &Recorder{
		store:       st,
		engine:      engine,
		publisher:   events.Noop{},
		log:         zap.L(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.New().String() },
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Engine returns the scoring engine used by the recorder.
func (r *Recorder) Engine() *scoring.Engine {
	return r.engine
}

func (r *Recorder) lockFor(accountID string) *sync.Mutex {
	mu, _ := r.locks.LoadOrStore(accountID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Record scores a, appends a snapshot and updates the account's live health
// fields, both in one store transaction. On success a's health fields are
// set from the new snapshot. Invalid accounts return an error wrapping
// account.ErrInvalid and never reach the store.
func (r *Recorder) Record(ctx context.Context, a *account.Account) (*account.HealthSnapshot, error) {
	if err := a.Validate(); err != nil {
		r.metrics.RecordFailure(metrics.ReasonInvalid)
		return nil, err
	}
	if a.ID == "" {
		r.metrics.RecordFailure(metrics.ReasonInvalid)
		return nil, eris.Wrapf(ErrUnsaved, "record %s", a.Key())
	}

	mu := r.lockFor(a.ID)
	mu.Lock()
	defer mu.Unlock()

	res := r.engine.Score(a)
	snap := &account.HealthSnapshot{
		ID:           r.newID(),
		AccountID:    a.ID,
		CalculatedAt: r.now(),
		Score:        res.Score,
		RiskLabel:    res.Bucket,
		Factors:      res.Factors,
	}

	if err := r.store.SaveSnapshot(ctx, snap); err != nil {
		r.metrics.RecordFailure(metrics.ReasonPersistence)
		return nil, eris.Wrapf(err, "record snapshot for %s", a.Key())
	}

	previous := a.HealthBucket
	a.HealthScore = snap.Score
	a.HealthBucket = snap.RiskLabel
	a.LatestSnapshotID = snap.ID
	a.UpdatedAt = snap.CalculatedAt

	r.metrics.SnapshotRecorded(previous, snap)

	log := r.log.With(zap.String("account_id", a.ID), zap.String("snapshot_id", snap.ID))
	log.Debug("snapshot recorded",
		zap.Float64("score", snap.Score),
		zap.String("bucket", string(snap.RiskLabel)),
		zap.Int("factors", len(snap.Factors)),
	)

	evt := events.SnapshotRecorded{
		SnapshotID:     snap.ID,
		AccountID:      a.ID,
		AccountName:    a.Name,
		CalculatedAt:   snap.CalculatedAt,
		Score:          snap.Score,
		Bucket:         snap.RiskLabel,
		PreviousBucket: previous,
		TopFactors:     snap.Factors,
	}
	if err := r.publisher.Publish(ctx, evt); err != nil {
		log.Warn("publish snapshot event failed", zap.Error(err))
	}
	return snap, nil
}

// RecordByID loads the stored account and records a snapshot for it.
func (r *Recorder) RecordByID(ctx context.Context, accountID string) (*account.Account, *account.HealthSnapshot, error) {
	a, err := r.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	snap, err := r.Record(ctx, a)
	if err != nil {
		return nil, nil, err
	}
	return a, snap, nil
}
