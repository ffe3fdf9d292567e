package ingestion

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/healthscope/healthscope/internal/snapshot"
	"github.com/healthscope/healthscope/internal/store"
)

// Result reports the outcome of one CSV upload.
type Result struct {
	UploadID         string   `json:"upload_id"`
	ArchiveKey       string   `json:"archive_key,omitempty"`
	AccountsCreated  int      `json:"accounts_created"`
	AccountsUpdated  int      `json:"accounts_updated"`
	SnapshotsCreated int      `json:"snapshots_created"`
	Errors           []string `json:"errors"`
}

// Service orchestrates the ingestion pipeline: archive the raw upload,
// upsert each account, record a snapshot for it.
type Service struct {
	store    store.Store
	recorder *snapshot.Recorder
	storage  StorageClient
	log      *zap.Logger
	newID    func() string
}

// NewService creates a new ingestion Service. storage may be nil, in which
// case uploads are not archived.
func NewService(st store.Store, recorder *snapshot.Recorder, storage StorageClient) *Service {
	return &Service{
		store:    st,
		recorder: recorder,
		storage:  storage,
		log:      zap.L().Named("ingestion"),
		newID:    func() string { return uuid.New().String() },
	}
}

// Storage returns the blob storage client.
func (s *Service) Storage() StorageClient {
	return s.storage
}

// IngestCSV imports an account CSV. A bad header fails the whole upload
// with ErrInvalidCSV. Row failures are collected as "row N (name): message"
// and never stop the import.
func (s *Service) IngestCSV(ctx context.Context, r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "read upload")
	}

	rows, err := ParseCSV(data)
	if err != nil {
		return nil, err
	}

	res := &Result{UploadID: s.newID(), Errors: []string{}}
	log := s.log.With(zap.String("upload_id", res.UploadID))

	if s.storage != nil {
		key, err := s.storage.PutUpload(ctx, res.UploadID, data)
		if err != nil {
			return nil, eris.Wrapf(err, "archive upload %s", res.UploadID)
		}
		res.ArchiveKey = key
	}

	for _, row := range rows {
		if err := s.ingestRow(ctx, row, res); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("row %d (%s): %v", row.Number, row.Name, err))
		}
	}

	log.Info("csv ingested",
		zap.Int("rows", len(rows)),
		zap.Int("created", res.AccountsCreated),
		zap.Int("updated", res.AccountsUpdated),
		zap.Int("snapshots", res.SnapshotsCreated),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}

func (s *Service) ingestRow(ctx context.Context, row Row, res *Result) error {
	if row.Err != nil {
		return row.Err
	}
	a := row.Account
	if err := a.Validate(); err != nil {
		return err
	}

	created, err := s.store.UpsertAccount(ctx, a)
	if err != nil {
		return err
	}
	if created {
		res.AccountsCreated++
	} else {
		res.AccountsUpdated++
	}

	if _, err := s.recorder.Record(ctx, a); err != nil {
		return err
	}
	res.SnapshotsCreated++
	return nil
}
