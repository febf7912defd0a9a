package replay

import (
	"context"
	"log"
	"time"
)

// RunPruner calls Prune on every tick until ctx is cancelled.
func RunPruner(ctx context.Context, cache Cache, interval time.Duration, logger *log.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			purged, err := cache.Prune(now)
			if err != nil {
				logger.Printf("replay prune failed: err=%v", err)
				continue
			}
			if purged > 0 {
				logger.Printf("replay prune: purged=%d", purged)
			}
		}
	}
}
