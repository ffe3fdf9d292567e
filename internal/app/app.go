// Package app wires configuration into the running components shared by
// the CLI and the service: store, blob storage, event publisher, metrics,
// snapshot recorder and CSV ingestion.
package app

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/healthscope/healthscope/internal/config"
	"github.com/healthscope/healthscope/internal/events"
	"github.com/healthscope/healthscope/internal/ingestion"
	"github.com/healthscope/healthscope/internal/metrics"
	"github.com/healthscope/healthscope/internal/snapshot"
	"github.com/healthscope/healthscope/internal/store"
	"github.com/healthscope/healthscope/pkg/scoring"
)

// Env holds the components built from one Config.
type Env struct {
	Config    *config.Config
	Store     store.Store
	Storage   ingestion.StorageClient
	Publisher events.Publisher
	Metrics   *metrics.Manager
	Engine    *scoring.Engine
	Recorder  *snapshot.Recorder
	Ingestion *ingestion.Service
}

// Open validates cfg and builds every component. On error, anything already
// opened is closed.
func Open(ctx context.Context, cfg *config.Config) (*Env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	weights, err := cfg.Weights()
	if err != nil {
		return nil, err
	}

	env := &Env{Config: cfg, Metrics: metrics.New()}

	env.Store, err = store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	env.Storage, err = ingestion.NewStorage(ctx, cfg.StorageOptions())
	if err != nil {
		_ = env.Close()
		return nil, eris.Wrap(err, "open blob storage")
	}

	env.Publisher, err = events.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		_ = env.Close()
		return nil, eris.Wrap(err, "open event publisher")
	}

	env.Engine = scoring.NewEngine(scoring.WithWeights(weights))
	env.Recorder = snapshot.NewRecorder(env.Store, env.Engine,
		snapshot.WithPublisher(env.Publisher),
		snapshot.WithMetrics(env.Metrics),
		snapshot.WithArchiver(env.Storage),
		snapshot.WithConcurrency(cfg.Recompute.Concurrency),
	)
	env.Ingestion = ingestion.NewService(env.Store, env.Recorder, env.Storage)

	zap.L().Info("environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("storage", cfg.Storage.Backend),
		zap.Int("kafka_brokers", len(cfg.Kafka.Brokers)),
	)
	return env, nil
}

// Close releases the publisher and the store.
func (e *Env) Close() error {
	var errs []error
	if e.Publisher != nil {
		errs = append(errs, e.Publisher.Close())
	}
	if e.Store != nil {
		errs = append(errs, e.Store.Close())
	}
	return errors.Join(errs...)
}
