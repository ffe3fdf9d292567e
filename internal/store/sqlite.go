package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/healthscope/healthscope/internal/platform"
	"github.com/healthscope/healthscope/pkg/account"
)

// SQLiteStore implements Store using modernc.org/sqlite. Timestamps are
// stored as unix nanoseconds and dates as YYYY-MM-DD text.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer at a time; read-then-write transactions would otherwise
	// fail with SQLITE_BUSY under concurrent recomputes.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Migrate applies pending schema migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	return eris.Wrap(platform.AutoMigrate(s.db, platform.DialectSQLite), "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteAccount(row scannable) (*account.Account, error) {
	var (
		a                     account.Account
		segment, risk, bucket string
		renewal, qbr          sql.NullString
		ttv                   sql.NullInt64
		nps                   sql.NullFloat64
		createdAt, updatedAt  int64
	)
	err := row.Scan(&a.ID, &a.Name, &segment, &a.Industry, &a.Region, &a.Owner, &a.ARR, &renewal,
		&a.ExpansionOpptyDollar, &risk, &a.ActiveUsers, &a.SeatsPurchased, &a.FeatureAdoption,
		&a.WeeklyActivePct, &ttv, &a.TicketsLast30d, &a.CriticalTickets90d,
		&a.SLABreaches90d, &nps, &qbr, &a.OnboardingPhase, &a.HealthScore, &bucket,
		&a.LatestSnapshotID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	a.Segment = account.Segment(segment)
	a.RenewalRisk = account.RenewalRisk(risk)
	a.HealthBucket = account.Bucket(bucket)
	a.CreatedAt = time.Unix(0, createdAt).UTC()
	a.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if ttv.Valid {
		v := int(ttv.Int64)
		a.TimeToValueDays = &v
	}
	if nps.Valid {
		v := nps.Float64
		a.NPS = &v
	}
	if a.RenewalDate, err = parseNullDate(renewal); err != nil {
		return nil, eris.Wrap(err, "renewal_date")
	}
	if a.QBRLastDate, err = parseNullDate(qbr); err != nil {
		return nil, eris.Wrap(err, "qbr_last_date")
	}
	return &a, nil
}

func parseNullDate(s sql.NullString) (*account.Date, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := account.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func sqliteDate(d *account.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func sqlitePlaceholder(int) string { return "?" }

func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*account.Account, error) {
	a, err := scanSQLiteAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get account %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get account %s", id)
	}
	return a, nil
}

func (s *SQLiteStore) GetAccountByName(ctx context.Context, name string) (*account.Account, error) {
	a, err := scanSQLiteAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get account named %q", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get account named %q", name)
	}
	return a, nil
}

func (s *SQLiteStore) ListAccounts(ctx context.Context, f Filter) ([]account.Account, error) {
	where, args := f.whereClause(sqlitePlaceholder, 1)
	query := `SELECT ` + accountColumns + ` FROM accounts` + where + ` ORDER BY name, id`
	if f.Limit > 0 || f.Offset > 0 {
		limit := f.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list accounts")
	}
	defer rows.Close()

	var out []account.Account
	for rows.Next() {
		a, err := scanSQLiteAccount(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan account")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate accounts")
}

func (s *SQLiteStore) CountAccounts(ctx context.Context, f Filter) (int, error) {
	where, args := f.whereClause(sqlitePlaceholder, 1)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM accounts`+where, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count accounts")
	}
	return n, nil
}

func (s *SQLiteStore) UpsertAccount(ctx context.Context, a *account.Account) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	now := s.now()
	existing, err := scanSQLiteAccount(tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE name = ?`, a.Name))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		existing = nil
	case err != nil:
		return false, eris.Wrapf(err, "sqlite: look up account %q", a.Name)
	}

	fields := []any{
		string(a.Segment), a.Industry, a.Region, a.Owner, a.ARR, sqliteDate(a.RenewalDate),
		a.ExpansionOpptyDollar, string(a.RenewalRisk), a.ActiveUsers, a.SeatsPurchased,
		a.FeatureAdoption, a.WeeklyActivePct, a.TimeToValueDays, a.TicketsLast30d,
		a.CriticalTickets90d, a.SLABreaches90d, a.NPS, sqliteDate(a.QBRLastDate), a.OnboardingPhase,
	}

	if existing == nil {
		a.ID = uuid.New().String()
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		a.HealthScore = 0
		a.HealthBucket = ""
		a.LatestSnapshotID = ""

		args := append([]any{a.ID, a.Name}, fields...)
		args = append(args, a.CreatedAt.UnixNano(), now.UnixNano())
		_, err = tx.ExecContext(ctx, `
			INSERT INTO accounts (id, name, segment, industry, region, cs_owner, arr, renewal_date,
				expansion_oppty_dollar, renewal_risk, active_users, seats_purchased, feature_x_adoption,
				weekly_active_pct, time_to_value_days, tickets_last_30d, critical_tickets_90d,
				sla_breaches_90d, nps, qbr_last_date, onboarding_phase, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			args...,
		)
		if err != nil {
			return false, eris.Wrapf(err, "sqlite: insert account %q", a.Name)
		}
	} else {
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
		a.HealthScore = existing.HealthScore
		a.HealthBucket = existing.HealthBucket
		a.LatestSnapshotID = existing.LatestSnapshotID

		args := append(fields, now.UnixNano(), a.ID)
		_, err = tx.ExecContext(ctx, `
			UPDATE accounts SET segment = ?, industry = ?, region = ?, cs_owner = ?, arr = ?,
				renewal_date = ?, expansion_oppty_dollar = ?, renewal_risk = ?, active_users = ?,
				seats_purchased = ?, feature_x_adoption = ?, weekly_active_pct = ?,
				time_to_value_days = ?, tickets_last_30d = ?, critical_tickets_90d = ?,
				sla_breaches_90d = ?, nps = ?, qbr_last_date = ?, onboarding_phase = ?, updated_at = ?
			WHERE id = ?`,
			args...,
		)
		if err != nil {
			return false, eris.Wrapf(err, "sqlite: update account %q", a.Name)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, eris.Wrapf(err, "sqlite: commit account %q", a.Name)
	}
	a.UpdatedAt = now
	return existing == nil, nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *account.HealthSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin snapshot transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET health_score = ?, health_bucket = ?, latest_snapshot_id = ?, updated_at = ? WHERE id = ?`,
		snap.Score, string(snap.RiskLabel), snap.ID, snap.CalculatedAt.UnixNano(), snap.AccountID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update account %s health", snap.AccountID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: account %s", snap.AccountID)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO health_snapshots (id, account_id, calculated_at, score, risk_label) VALUES (?, ?, ?, ?, ?)`,
		snap.ID, snap.AccountID, snap.CalculatedAt.UnixNano(), snap.Score, string(snap.RiskLabel),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert snapshot for account %s", snap.AccountID)
	}

	for i, f := range snap.Factors {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO snapshot_factors (snapshot_id, rank, label, impact) VALUES (?, ?, ?, ?)`,
			snap.ID, i+1, f.Label, f.Impact,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert factor %d for snapshot %s", i+1, snap.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrapf(err, "sqlite: commit snapshot for account %s", snap.AccountID)
	}
	return nil
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, accountID string) (*account.HealthSnapshot, error) {
	history, err := s.History(ctx, accountID, 1)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: no snapshots for account %s", accountID)
	}
	return &history[0], nil
}

func (s *SQLiteStore) History(ctx context.Context, accountID string, limit int) ([]account.HealthSnapshot, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, calculated_at, score, risk_label FROM health_snapshots
		WHERE account_id = ? ORDER BY calculated_at DESC, seq DESC LIMIT ?`,
		accountID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query history for account %s", accountID)
	}

	var (
		history []account.HealthSnapshot
		index   = make(map[string]int)
	)
	for rows.Next() {
		var (
			snap  account.HealthSnapshot
			at    int64
			label string
		)
		if err := rows.Scan(&snap.ID, &snap.AccountID, &at, &snap.Score, &label); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		snap.CalculatedAt = time.Unix(0, at).UTC()
		snap.RiskLabel = account.Bucket(label)
		snap.Factors = []account.HealthFactor{}
		index[snap.ID] = len(history)
		history = append(history, snap)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate snapshots")
	}
	if len(history) == 0 {
		return history, nil
	}

	args := make([]any, len(history))
	for i, h := range history {
		args[i] = h.ID
	}
	frows, err := s.db.QueryContext(ctx,
		`SELECT snapshot_id, label, impact FROM snapshot_factors
		WHERE snapshot_id IN (?`+strings.Repeat(", ?", len(args)-1)+`) ORDER BY snapshot_id, rank`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query snapshot factors")
	}
	defer frows.Close()

	for frows.Next() {
		var (
			id string
			f  account.HealthFactor
		)
		if err := frows.Scan(&id, &f.Label, &f.Impact); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot factor")
		}
		i := index[id]
		history[i].Factors = append(history[i].Factors, f)
	}
	return history, eris.Wrap(frows.Err(), "sqlite: iterate snapshot factors")
}
