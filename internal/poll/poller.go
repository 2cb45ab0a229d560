// Package poll implements the request/response update channel: fetches with
// legacy fallback and the light/full tick cadence.
package poll

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/five82/dashsync/internal/dashboard"
	"github.com/five82/dashsync/internal/status"
)

// Poller fetches status documents, falling back to the legacy endpoint when
// the aggregated one fails. Concurrent fetches of the same kind share one
// request.
type Poller struct {
	client dashboard.StatusFetcher
	group  singleflight.Group
	logger *slog.Logger
}

// New returns a Poller using client.
func New(client dashboard.StatusFetcher, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{client: client, logger: logger}
}

// Fetch retrieves a light or full status document. A caller whose ctx ends
// stops waiting and drops the shared call so later callers start fresh. A
// live caller that joined a call cancelled by its owner retries once.
func (p *Poller) Fetch(ctx context.Context, light bool) (status.Snapshot, error) {
	key := "full"
	if light {
		key = "light"
	}
	for attempt := 0; ; attempt++ {
		ch := p.group.DoChan(key, func() (any, error) {
			return p.fetchWithFallback(ctx, light)
		})
		select {
		case <-ctx.Done():
			p.group.Forget(key)
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err == nil {
				return res.Val.(status.Snapshot), nil
			}
			if attempt == 0 && res.Shared && ctx.Err() == nil && isContextErr(res.Err) {
				p.group.Forget(key)
				continue
			}
			return nil, res.Err
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (p *Poller) fetchWithFallback(ctx context.Context, light bool) (status.Snapshot, error) {
	snap, err := p.client.FetchDashboard(ctx, light)
	if err == nil {
		return snap, nil
	}
	if ctx.Err() != nil || dashboard.IsAuth(err) {
		return nil, err
	}

	p.logger.Warn("dashboard endpoint failed, falling back to legacy status",
		"light", light,
		"error", err)

	snap, legacyErr := p.client.FetchLegacyStatus(ctx, light)
	if legacyErr != nil {
		p.logger.Warn("legacy status fetch failed", "light", light, "error", legacyErr)
		return nil, legacyErr
	}
	return snap, nil
}
