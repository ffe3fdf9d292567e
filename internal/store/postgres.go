package store

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/healthscope/healthscope/pkg/account"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it in
// tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
	now  func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool. The schema is
// managed by platform.MigratePostgres.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresWithPool(pool), nil
}

func newPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

func pgPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

const accountColumns = `id, name, segment, industry, region, cs_owner, arr, renewal_date,
	expansion_oppty_dollar, renewal_risk, active_users, seats_purchased, feature_x_adoption,
	weekly_active_pct, time_to_value_days, tickets_last_30d, critical_tickets_90d,
	sla_breaches_90d, nps, qbr_last_date, onboarding_phase, health_score, health_bucket,
	latest_snapshot_id, created_at, updated_at`

func scanPostgresAccount(row pgx.Row) (*account.Account, error) {
	var (
		a                      account.Account
		segment, risk, bucket  string
		renewal, qbr           *time.Time
		ttv                    *int32
		activeUsers, seats     int32
		tickets, critical, sla int32
	)
	err := row.Scan(&a.ID, &a.Name, &segment, &a.Industry, &a.Region, &a.Owner, &a.ARR, &renewal,
		&a.ExpansionOpptyDollar, &risk, &activeUsers, &seats, &a.FeatureAdoption,
		&a.WeeklyActivePct, &ttv, &tickets, &critical,
		&sla, &a.NPS, &qbr, &a.OnboardingPhase, &a.HealthScore, &bucket,
		&a.LatestSnapshotID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.Segment = account.Segment(segment)
	a.RenewalRisk = account.RenewalRisk(risk)
	a.HealthBucket = account.Bucket(bucket)
	a.ActiveUsers = int(activeUsers)
	a.SeatsPurchased = int(seats)
	a.TicketsLast30d = int(tickets)
	a.CriticalTickets90d = int(critical)
	a.SLABreaches90d = int(sla)
	if ttv != nil {
		v := int(*ttv)
		a.TimeToValueDays = &v
	}
	if renewal != nil {
		a.RenewalDate = account.DatePtr(*renewal)
	}
	if qbr != nil {
		a.QBRLastDate = account.DatePtr(*qbr)
	}
	return &a, nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*account.Account, error) {
	a, err := scanPostgresAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get account %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get account %s", id)
	}
	return a, nil
}

func (s *PostgresStore) GetAccountByName(ctx context.Context, name string) (*account.Account, error) {
	a, err := scanPostgresAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get account named %q", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get account named %q", name)
	}
	return a, nil
}

func (s *PostgresStore) ListAccounts(ctx context.Context, f Filter) ([]account.Account, error) {
	where, args := f.whereClause(pgPlaceholder, 1)
	query := `SELECT ` + accountColumns + ` FROM accounts` + where + ` ORDER BY name, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += ` LIMIT ` + pgPlaceholder(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += ` OFFSET ` + pgPlaceholder(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list accounts")
	}
	defer rows.Close()

	var out []account.Account
	for rows.Next() {
		a, err := scanPostgresAccount(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan account")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate accounts")
}

func (s *PostgresStore) CountAccounts(ctx context.Context, f Filter) (int, error) {
	where, args := f.whereClause(pgPlaceholder, 1)
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM accounts`+where, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count accounts")
	}
	return int(n), nil
}

func (s *PostgresStore) UpsertAccount(ctx context.Context, a *account.Account) (bool, error) {
	now := s.now()
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	var (
		bucket  string
		created bool
	)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, name, segment, industry, region, cs_owner, arr, renewal_date,
			expansion_oppty_dollar, renewal_risk, active_users, seats_purchased, feature_x_adoption,
			weekly_active_pct, time_to_value_days, tickets_last_30d, critical_tickets_90d,
			sla_breaches_90d, nps, qbr_last_date, onboarding_phase, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23)
		ON CONFLICT (name) DO UPDATE SET
			segment = EXCLUDED.segment,
			industry = EXCLUDED.industry,
			region = EXCLUDED.region,
			cs_owner = EXCLUDED.cs_owner,
			arr = EXCLUDED.arr,
			renewal_date = EXCLUDED.renewal_date,
			expansion_oppty_dollar = EXCLUDED.expansion_oppty_dollar,
			renewal_risk = EXCLUDED.renewal_risk,
			active_users = EXCLUDED.active_users,
			seats_purchased = EXCLUDED.seats_purchased,
			feature_x_adoption = EXCLUDED.feature_x_adoption,
			weekly_active_pct = EXCLUDED.weekly_active_pct,
			time_to_value_days = EXCLUDED.time_to_value_days,
			tickets_last_30d = EXCLUDED.tickets_last_30d,
			critical_tickets_90d = EXCLUDED.critical_tickets_90d,
			sla_breaches_90d = EXCLUDED.sla_breaches_90d,
			nps = EXCLUDED.nps,
			qbr_last_date = EXCLUDED.qbr_last_date,
			onboarding_phase = EXCLUDED.onboarding_phase,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, health_score, health_bucket, latest_snapshot_id, (xmax = 0)`,
		uuid.New().String(), a.Name, string(a.Segment), a.Industry, a.Region, a.Owner, a.ARR,
		dateValue(a.RenewalDate), a.ExpansionOpptyDollar, string(a.RenewalRisk), a.ActiveUsers,
		a.SeatsPurchased, a.FeatureAdoption, a.WeeklyActivePct, a.TimeToValueDays, a.TicketsLast30d,
		a.CriticalTickets90d, a.SLABreaches90d, a.NPS, dateValue(a.QBRLastDate), a.OnboardingPhase,
		createdAt, now,
	).Scan(&a.ID, &a.CreatedAt, &a.HealthScore, &bucket, &a.LatestSnapshotID, &created)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: upsert account %q", a.Name)
	}
	a.HealthBucket = account.Bucket(bucket)
	a.UpdatedAt = now
	return created, nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *account.HealthSnapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin snapshot transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Updating the account first takes its row lock, which serializes
	// concurrent recomputes of the same account.
	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET health_score = $1, health_bucket = $2, latest_snapshot_id = $3, updated_at = $4 WHERE id = $5`,
		snap.Score, string(snap.RiskLabel), snap.ID, snap.CalculatedAt, snap.AccountID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update account %s health", snap.AccountID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: account %s", snap.AccountID)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO health_snapshots (id, account_id, calculated_at, score, risk_label) VALUES ($1, $2, $3, $4, $5)`,
		snap.ID, snap.AccountID, snap.CalculatedAt, snap.Score, string(snap.RiskLabel),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert snapshot for account %s", snap.AccountID)
	}

	if len(snap.Factors) > 0 {
		ranks := make([]int32, len(snap.Factors))
		labels := make([]string, len(snap.Factors))
		impacts := make([]float64, len(snap.Factors))
		for i, f := range snap.Factors {
			ranks[i] = int32(i + 1)
			labels[i] = f.Label
			impacts[i] = f.Impact
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO snapshot_factors (snapshot_id, rank, label, impact)
			SELECT $1, f.rank, f.label, f.impact
			FROM unnest($2::int[], $3::text[], $4::float8[]) AS f(rank, label, impact)`,
			snap.ID, ranks, labels, impacts,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert factors for snapshot %s", snap.ID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrapf(err, "postgres: commit snapshot for account %s", snap.AccountID)
	}
	return nil
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context, accountID string) (*account.HealthSnapshot, error) {
	history, err := s.History(ctx, accountID, 1)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "postgres: no snapshots for account %s", accountID)
	}
	return &history[0], nil
}

func (s *PostgresStore) History(ctx context.Context, accountID string, limit int) ([]account.HealthSnapshot, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, calculated_at, score, risk_label FROM health_snapshots
		WHERE account_id = $1 ORDER BY calculated_at DESC, seq DESC LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query history for account %s", accountID)
	}

	var (
		history []account.HealthSnapshot
		ids     []string
	)
	for rows.Next() {
		var (
			snap  account.HealthSnapshot
			label string
		)
		if err := rows.Scan(&snap.ID, &snap.AccountID, &snap.CalculatedAt, &snap.Score, &label); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		snap.RiskLabel = account.Bucket(label)
		snap.Factors = []account.HealthFactor{}
		history = append(history, snap)
		ids = append(ids, snap.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate snapshots")
	}
	if len(history) == 0 {
		return history, nil
	}

	factors, err := s.factorsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range history {
		if fs, ok := factors[history[i].ID]; ok {
			history[i].Factors = fs
		}
	}
	return history, nil
}

func (s *PostgresStore) factorsFor(ctx context.Context, snapshotIDs []string) (map[string][]account.HealthFactor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT snapshot_id, label, impact FROM snapshot_factors
		WHERE snapshot_id = ANY($1) ORDER BY snapshot_id, rank`,
		snapshotIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query snapshot factors")
	}
	defer rows.Close()

	out := make(map[string][]account.HealthFactor, len(snapshotIDs))
	for rows.Next() {
		var (
			id string
			f  account.HealthFactor
		)
		if err := rows.Scan(&id, &f.Label, &f.Impact); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot factor")
		}
		out[id] = append(out[id], f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate snapshot factors")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
