package redis

// Future is the callback a Sender resolves when a Request completes.
// n identifies which element of a batch this resolution is for (always
// 0 for a single Send); Cancelled lets the sender skip serializing a
// result for a caller that has already given up, without blocking the
// read loop on it.
type Future interface {
	Resolve(res interface{}, n uint64)
	Cancelled() bool
}

// FuncFuture adapts a plain function to Future for callers that don't
// need cancellation (fire-and-forget acks, internal probes).
type FuncFuture func(res interface{}, n uint64)

func (f FuncFuture) Cancelled() bool                   { return false }
func (f FuncFuture) Resolve(res interface{}, n uint64) { f(res, n) }
