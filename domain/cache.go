package domain

// Cache keys invalidated by the order command layer and the user channel.
// An invalidation means "refetch on next read", never that fresh data is
// already available.
const (
	CacheActiveOrders = "active-orders"
	CachePositions    = "polymarket-positions"
)

// CacheInvalidator signals dependent caches to refetch. Implementations
// must be idempotent; channels may deliver the same invalidation twice.
type CacheInvalidator interface {
	Invalidate(key string)
}

// InvalidatorFunc adapts a function to the CacheInvalidator interface.
type InvalidatorFunc func(key string)

func (f InvalidatorFunc) Invalidate(key string) { f(key) }
