package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthscope/healthscope/pkg/account"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// forEachStore runs fn against every embedded backend.
func forEachStore(t *testing.T, fn func(t *testing.T, st Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newTestSQLiteStore(t)) })
}

func testAccount(name string) *account.Account {
	nps := 42.0
	ttv := 12
	return &account.Account{
		Name:            name,
		Segment:         account.SegmentMidMarket,
		Industry:        "Retail",
		Region:          "EMEA",
		Owner:           "dana",
		ARR:             120000,
		RenewalDate:     account.DatePtr(time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC)),
		ActiveUsers:     40,
		SeatsPurchased:  50,
		FeatureAdoption: 0.6,
		WeeklyActivePct: 0.7,
		TimeToValueDays: &ttv,
		TicketsLast30d:  3,
		NPS:             &nps,
		QBRLastDate:     account.DatePtr(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func testSnapshot(accountID, id string, at time.Time, score float64) *account.HealthSnapshot {
	return &account.HealthSnapshot{
		ID:           id,
		AccountID:    accountID,
		CalculatedAt: at,
		Score:        score,
		RiskLabel:    account.BucketAmber,
		Factors: []account.HealthFactor{
			{Label: "Detractor NPS", Impact: -9},
			{Label: "High feature adoption", Impact: 8},
		},
	}
}

func TestStore_UpsertAndGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		a := testAccount("Acme")

		created, err := st.UpsertAccount(ctx, a)
		require.NoError(t, err)
		assert.True(t, created)
		require.NotEmpty(t, a.ID)

		got, err := st.GetAccount(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "Acme", got.Name)
		assert.Equal(t, account.SegmentMidMarket, got.Segment)
		assert.Equal(t, "2027-01-15", got.RenewalDate.String())
		require.NotNil(t, got.NPS)
		assert.InDelta(t, 42.0, *got.NPS, 1e-9)
		require.NotNil(t, got.TimeToValueDays)
		assert.Equal(t, 12, *got.TimeToValueDays)
		assert.Empty(t, got.HealthBucket)

		byName, err := st.GetAccountByName(ctx, "Acme")
		require.NoError(t, err)
		assert.Equal(t, a.ID, byName.ID)
	})
}

func TestStore_UpsertUpdatesByName(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		a := testAccount("Acme")
		_, err := st.UpsertAccount(ctx, a)
		require.NoError(t, err)
		require.NoError(t, st.SaveSnapshot(ctx, testSnapshot(a.ID, "s1", time.Now().UTC(), 61)))

		b := testAccount("Acme")
		b.ARR = 250000
		b.NPS = nil
		created, err := st.UpsertAccount(ctx, b)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, a.ID, b.ID)

		got, err := st.GetAccount(ctx, a.ID)
		require.NoError(t, err)
		assert.InDelta(t, 250000, got.ARR, 1e-9)
		assert.Nil(t, got.NPS)
		// Derived fields survive an attribute update.
		assert.InDelta(t, 61, got.HealthScore, 1e-9)
		assert.Equal(t, "s1", got.LatestSnapshotID)

		n, err := st.CountAccounts(ctx, Filter{})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestStore_GetAccount_NotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		_, err := st.GetAccount(context.Background(), "missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_SaveSnapshot_UpdatesLiveFields(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		a := testAccount("Acme")
		_, err := st.UpsertAccount(ctx, a)
		require.NoError(t, err)

		at := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
		require.NoError(t, st.SaveSnapshot(ctx, testSnapshot(a.ID, "s1", at, 64.25)))

		got, err := st.GetAccount(ctx, a.ID)
		require.NoError(t, err)
		assert.InDelta(t, 64.25, got.HealthScore, 1e-9)
		assert.Equal(t, account.BucketAmber, got.HealthBucket)
		assert.Equal(t, "s1", got.LatestSnapshotID)

		latest, err := st.LatestSnapshot(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "s1", latest.ID)
		assert.True(t, at.Equal(latest.CalculatedAt))
		require.Len(t, latest.Factors, 2)
		assert.Equal(t, "Detractor NPS", latest.Factors[0].Label)
		assert.InDelta(t, -9, latest.Factors[0].Impact, 1e-9)
	})
}

func TestStore_SaveSnapshot_UnknownAccount(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		err := st.SaveSnapshot(ctx, testSnapshot("ghost", "s1", time.Now().UTC(), 50))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_History_Order(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		a := testAccount("Acme")
		_, err := st.UpsertAccount(ctx, a)
		require.NoError(t, err)

		t0 := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, st.SaveSnapshot(ctx, testSnapshot(a.ID, "s1", t0, 50)))
		require.NoError(t, st.SaveSnapshot(ctx, testSnapshot(a.ID, "s3", t0.Add(48*time.Hour), 70)))
		require.NoError(t, st.SaveSnapshot(ctx, testSnapshot(a.ID, "s2", t0.Add(24*time.Hour), 60)))
		// Same timestamp as s3; inserted later so it sorts first.
		require.NoError(t, st.SaveSnapshot(ctx, testSnapshot(a.ID, "s4", t0.Add(48*time.Hour), 72)))

		history, err := st.History(ctx, a.ID, 0)
		require.NoError(t, err)
		var ids []string
		for _, h := range history {
			ids = append(ids, h.ID)
		}
		assert.Equal(t, []string{"s4", "s3", "s2", "s1"}, ids)

		limited, err := st.History(ctx, a.ID, 2)
		require.NoError(t, err)
		require.Len(t, limited, 2)
		assert.Equal(t, "s4", limited[0].ID)
		assert.Len(t, limited[1].Factors, 2)
	})
}

func TestStore_ListAccounts_Filter(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		for i, seg := range []account.Segment{account.SegmentSMB, account.SegmentEnterprise, account.SegmentSMB} {
			a := testAccount(fmt.Sprintf("acct-%d", i))
			a.Segment = seg
			_, err := st.UpsertAccount(ctx, a)
			require.NoError(t, err)
		}

		smb, err := st.ListAccounts(ctx, Filter{Segment: account.SegmentSMB})
		require.NoError(t, err)
		require.Len(t, smb, 2)
		assert.Equal(t, "acct-0", smb[0].Name)
		assert.Equal(t, "acct-2", smb[1].Name)

		page, err := st.ListAccounts(ctx, Filter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "acct-1", page[0].Name)

		n, err := st.CountAccounts(ctx, Filter{Segment: account.SegmentEnterprise})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestStore_ConcurrentSnapshots(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		a := testAccount("Acme")
		_, err := st.UpsertAccount(ctx, a)
		require.NoError(t, err)

		base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for i := range 10 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- st.SaveSnapshot(ctx, testSnapshot(a.ID, fmt.Sprintf("s%02d", i), base.Add(time.Duration(i)*time.Minute), float64(i)))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		history, err := st.History(ctx, a.ID, 0)
		require.NoError(t, err)
		assert.Len(t, history, 10)
	})
}
