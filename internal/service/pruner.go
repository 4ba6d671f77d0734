package service

import (
	"context"
	"log/slog"
	"time"

	"go-identity/internal/logger"
	"go-identity/internal/metrics"
)

// Pruner deletes revocation entries and reset tokens past their expiry.
// Expiry is already enforced on read; pruning only reclaims space.
type Pruner struct {
	ledger   *RevocationLedger
	resets   *ResetService
	interval time.Duration
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

func NewPruner(ledger *RevocationLedger, resets *ResetService, interval time.Duration, m *metrics.Metrics, log *slog.Logger) *Pruner {
	if log == nil {
		log = slog.Default()
	}
	return &Pruner{
		ledger:   ledger,
		resets:   resets,
		interval: interval,
		metrics:  m,
		log:      log.With("component", "pruner"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run prunes every interval until ctx is done. A non-positive interval
// returns immediately.
func (p *Pruner) Run(ctx context.Context) {
	if p.interval <= 0 {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := p.PruneOnce(ctx); err != nil {
				logger.LogError(p.log, "prune expired records", err)
			}
		}
	}
}

// PruneOnce runs a single pass and reports how many revocation entries and
// reset tokens were removed.
func (p *Pruner) PruneOnce(ctx context.Context) (int64, int64, error) {
	now := p.now()

	revocations, err := p.ledger.Prune(ctx, now)
	if err != nil {
		return 0, 0, err
	}
	p.metrics.Pruned("revocation", revocations)

	resets, err := p.resets.Prune(ctx, now)
	if err != nil {
		return revocations, 0, err
	}
	p.metrics.Pruned("reset_token", resets)

	if revocations > 0 || resets > 0 {
		p.log.InfoContext(ctx, "expired records pruned", "revocations", revocations, "reset_tokens", resets)
	}
	return revocations, resets, nil
}
