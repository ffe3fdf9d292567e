package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/healthscope/healthscope/internal/store"
	"github.com/healthscope/healthscope/pkg/account"
)

// BatchResult summarizes a multi-account recompute. Errors is keyed by
// account ID, or by name for accounts that were never stored.
type BatchResult struct {
	Updated int               `json:"accounts_updated"`
	Errors  map[string]string `json:"errors"`
	Elapsed time.Duration     `json:"-"`
}

// Failed returns the number of accounts that produced no snapshot.
func (b BatchResult) Failed() int {
	return len(b.Errors)
}

// RecomputeAll records a snapshot for every account with bounded
// parallelism. One account failing never stops the others; each failure is
// folded into the result and the batch itself never errors. Successful
// records update the live fields of the corresponding slice element.
func (r *Recorder) RecomputeAll(ctx context.Context, accounts []account.Account) BatchResult {
	start := time.Now()

	outcomes := make([]error, len(accounts))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i := range accounts {
		g.Go(func() error {
			_, outcomes[i] = r.Record(ctx, &accounts[i])
			return nil
		})
	}
	_ = g.Wait()

	res := BatchResult{Errors: make(map[string]string)}
	for i, err := range outcomes {
		if err == nil {
			res.Updated++
			continue
		}
		key := accounts[i].Key()
		if _, dup := res.Errors[key]; dup {
			key = fmt.Sprintf("%s#%d", key, i)
		}
		res.Errors[key] = err.Error()
	}
	res.Elapsed = time.Since(start)

	r.metrics.BatchCompleted(res.Elapsed, res.Updated, res.Failed())
	r.log.Info("recompute complete",
		zap.Int("accounts", len(accounts)),
		zap.Int("updated", res.Updated),
		zap.Int("failed", res.Failed()),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res
}

// RecomputePortfolio recomputes every stored account. Only a failure to
// list the accounts is returned as an error.
func (r *Recorder) RecomputePortfolio(ctx context.Context) (BatchResult, error) {
	accounts, err := r.store.ListAccounts(ctx, store.Filter{})
	if err != nil {
		return BatchResult{}, eris.Wrap(err, "list accounts for recompute")
	}
	return r.RecomputeAll(ctx, accounts), nil
}
