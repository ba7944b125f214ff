package claimer

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Watch runs a claim for pool immediately and then on every tick of
// interval until ctx is done. A failed run is logged and retried on the next
// tick.
func (c *Claimer) Watch(ctx context.Context, pool solana.PublicKey, interval time.Duration) {
	ticker := c.opts.Clock.NewTicker(interval)
	defer ticker.Stop()

	log := c.log.With(zap.String("pool", pool.String()))
	log.Info("claim watcher started", zap.Duration("interval", interval))

	c.runLogged(ctx, log, pool)
	for {
		select {
		case <-ctx.Done():
			log.Info("claim watcher stopped")
			return
		case <-ticker.Chan():
			c.runLogged(ctx, log, pool)
		}
	}
}

func (c *Claimer) runLogged(ctx context.Context, log *zap.Logger, pool solana.PublicKey) {
	if _, err := c.Run(ctx, pool); err != nil && ctx.Err() == nil {
		log.Error("claim run failed", zap.Error(err))
	}
}
