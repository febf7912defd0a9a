package replay

import (
	"time"

	"github.com/davidahmann/pdogate/internal/ledger"
)

// LedgerCache keeps consumed nonces in a ledger.Store so replays are caught
// across restarts and across gateway replicas.
type LedgerCache struct {
	store  ledger.Store
	window time.Duration
}

func NewLedgerCache(store ledger.Store, window time.Duration) *LedgerCache {
	if window <= 0 {
		window = DefaultWindow
	}
	return &LedgerCache{store: store, window: window}
}

func (c *LedgerCache) Consume(namespace, nonce string, now time.Time) (bool, error) {
	now = now.UTC()
	return c.store.ConsumeNonce(ledger.NonceRecord{
		Namespace:   namespace,
		Nonce:       nonce,
		ConsumedAt:  now.Format(time.RFC3339),
		RetainUntil: now.Add(c.window).Format(time.RFC3339),
	})
}

func (c *LedgerCache) Prune(now time.Time) (int64, error) {
	return c.store.PurgeNonces(now.UTC().Format(time.RFC3339))
}
