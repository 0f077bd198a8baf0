package main

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/civitas/internal/report"
)

type refresher interface {
	Refresh(ctx context.Context, now time.Time) (*report.RefreshResult, error)
}

// runSweep refreshes once, then every interval until ctx is done. A
// non-positive interval stops after the first pass.
func runSweep(ctx context.Context, svc refresher, every time.Duration, clock report.Clock, L log.Logger) {
	sweepOnce(ctx, svc, clock, L)
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sweepOnce(ctx, svc, clock, L)
		}
	}
}

func sweepOnce(ctx context.Context, svc refresher, clock report.Clock, L log.Logger) {
	res, err := svc.Refresh(ctx, clock.Now())
	if err != nil {
		if ctx.Err() == nil {
			L.Error(ctx, err, "archival sweep failed")
		}
		return
	}
	if res.ArchivedNow > 0 {
		L.Info(ctx, "archival sweep moved reports", "archived_now", res.ArchivedNow, "active", len(res.Active))
	}
}
