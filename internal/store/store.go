// Package store persists accounts and their append-only health snapshot
// history. Implementations exist for Postgres, SQLite and memory.
package store

import (
	"context"
	"errors"

	"github.com/healthscope/healthscope/pkg/account"
)

// ErrNotFound is returned when an account or snapshot does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence interface used by the snapshot recorder and the
// API.
type Store interface {
	GetAccount(ctx context.Context, id string) (*account.Account, error)
	GetAccountByName(ctx context.Context, name string) (*account.Account, error)
	ListAccounts(ctx context.Context, f Filter) ([]account.Account, error)
	CountAccounts(ctx context.Context, f Filter) (int, error)

	// UpsertAccount inserts a or updates the account with the same name. It
	// never touches the derived health fields. On return a.ID, a.CreatedAt
	// and the derived fields reflect the stored row.
	UpsertAccount(ctx context.Context, a *account.Account) (created bool, err error)

	// SaveSnapshot appends snap and sets the account's live health fields
	// from it in one transaction. Either both writes happen or neither does.
	SaveSnapshot(ctx context.Context, snap *account.HealthSnapshot) error

	// LatestSnapshot returns the most recent snapshot of an account.
	LatestSnapshot(ctx context.Context, accountID string) (*account.HealthSnapshot, error)
	// History returns up to limit snapshots, most recent first. A limit of
	// zero or less returns all of them.
	History(ctx context.Context, accountID string, limit int) ([]account.HealthSnapshot, error)

	Ping(ctx context.Context) error
	Close() error
}

// Filter narrows account listings. Zero values match everything.
type Filter struct {
	Segment account.Segment
	Bucket  account.Bucket
	Region  string
	Limit   int
	Offset  int
}

func (f Filter) matches(a *account.Account) bool {
	if f.Segment != "" && a.Segment != f.Segment {
		return false
	}
	if f.Bucket != "" && a.HealthBucket != f.Bucket {
		return false
	}
	if f.Region != "" && a.Region != f.Region {
		return false
	}
	return true
}

// whereClause renders the filter predicates with the given placeholder
// style, starting at argument index start.
func (f Filter) whereClause(placeholder func(n int) string, start int) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(column string, v any) {
		args = append(args, v)
		clauses = append(clauses, column+" = "+placeholder(start+len(args)-1))
	}
	if f.Segment != "" {
		add("segment", string(f.Segment))
	}
	if f.Bucket != "" {
		add("health_bucket", string(f.Bucket))
	}
	if f.Region != "" {
		add("region", f.Region)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

// dateValue converts an optional date to a driver value.
func dateValue(d *account.Date) any {
	if d == nil {
		return nil
	}
	return d.Time
}
