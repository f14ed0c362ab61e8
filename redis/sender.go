package redis

// Sender is the async primitive every routing layer (a single bridge,
// an endpoint, the multiplexer, a cluster) implements: submit work,
// get notified on a Future when it resolves. n identifies an element
// within a batch send.
type Sender interface {
	Send(r Request, cb Future, n uint64)
	SendMany(r []Request, cb Future, n uint64)
	SendTransaction(r []Request, cb Future, start uint64)
	Scanner(opts ScanOpts) Scanner
	EachShard(func(Sender, error) bool)
	Close()
}
