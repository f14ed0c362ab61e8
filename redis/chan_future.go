package redis

// ChanFutured wraps a Sender with the channel-close flavor of
// awaitable: the caller gets a *ChanFuture back immediately and reads
// Value()/Done() whenever it chooses to.
type ChanFutured struct {
	S Sender
}

func (s ChanFutured) Send(r Request) *ChanFuture {
	f := &ChanFuture{wait: make(chan struct{})}
	s.S.Send(r, f, 0)
	return f
}

func (s ChanFutured) SendMany(reqs []Request) ChanFutures {
	futures := make(ChanFutures, len(reqs))
	for i := range futures {
		futures[i] = &ChanFuture{wait: make(chan struct{})}
	}
	s.S.SendMany(reqs, futures, 0)
	return futures
}

func (s ChanFutured) SendTransaction(reqs []Request) *ChanTransaction {
	f := &ChanTransaction{ChanFuture: ChanFuture{wait: make(chan struct{})}}
	s.S.SendTransaction(reqs, f, 0)
	return f
}

// ChanFuture resolves by closing an internal channel; Value blocks
// until that happens.
type ChanFuture struct {
	r    interface{}
	wait chan struct{}
}

func (f *ChanFuture) Value() interface{} {
	<-f.wait
	return f.r
}

func (f *ChanFuture) Done() <-chan struct{} { return f.wait }

func (f *ChanFuture) Resolve(res interface{}, _ uint64) {
	f.r = res
	close(f.wait)
}

func (f *ChanFuture) Cancelled() bool { return false }

// ChanFutures is the batch-send flavor: Future.Resolve dispatches by
// index to the matching element's ChanFuture.
type ChanFutures []*ChanFuture

func (f ChanFutures) Cancelled() bool { return false }

func (f ChanFutures) Resolve(res interface{}, i uint64) {
	f[i].Resolve(res, i)
}

// ChanTransaction is ChanFuture specialized for SendTransaction:
// Results unwraps the EXEC reply the same way Sync.SendTransaction does.
type ChanTransaction struct {
	ChanFuture
}

func (f *ChanTransaction) Results() ([]interface{}, error) {
	<-f.wait
	return TransactionResponse(f.r)
}
