package bridge

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/redikit/redikit/internal/ring"
	"github.com/redikit/redikit/redis"
	"github.com/redikit/redikit/resp"
)

// ReplyHandler finalizes a Message once its RawResult has been
// classified into a ProcessResult. A bridge never decides what a
// NeedRedirect/NeedRetry status means on its own -- that decision
// belongs to whatever routing layer (an endpoint, a cluster strategy)
// sits above it and can resubmit the message elsewhere, so every
// bridge is constructed with one.
type ReplyHandler func(msg *redis.Message, result redis.ProcessResult)

// DefaultReplyHandler completes or fails msg directly, treating
// NeedRedirect/NeedRetry as plain failures. It is the handler a
// bridge gets when no routing layer sits above it (the bootstrap
// probe and tests).
func DefaultReplyHandler(msg *redis.Message, result redis.ProcessResult) {
	if result.Status == redis.Completed {
		msg.MarkCompleted(result.Value)
		return
	}
	err := result.Err
	if err == nil {
		err = redis.ErrServer.New("no routing layer installed to resolve status %v", result.Status)
	}
	msg.MarkFailed(err)
}

// Bridge owns one TCP connection's lifecycle: dialing, handshake,
// write loop, read loop, heartbeat and reconnection, per the data
// model's bridge state machine. Unlike the teacher's redisconn, which
// fans writes out across N independently-locked shards, a Bridge uses
// a single FIFO pair (backlog, in-flight) -- the spec's per-caller
// ordering invariant holds trivially with one queue, where the
// teacher's sharding only orders within a shard.
type Bridge struct {
	addr string
	role Role
	opts Options

	// id is a process-unique correlation id, generated once per Bridge
	// (not per reconnect generation) and included in the default
	// logger's lines so a support engineer can grep one connection's
	// entire lifetime out of a log stream shared by many bridges.
	id string

	state      int32 // atomic State
	protocol   int32 // atomic resp.Protocol, the generation's negotiated value
	generation uint64

	// selectedDB tracks which database this connection last issued
	// SELECT for, so Message.DB routing (mux's per-call db index) only
	// emits a SELECT when it actually changes, per §4.F's "Database
	// handle is a lightweight view bound to a db index". Set to opts.DB
	// at construction and again on every new connection, since a fresh
	// socket always re-selects via the handshake's default db.
	selectedDB int32

	backlog  *backlog
	inflight *inflight
	ready    *writeReady

	// submitMu serializes Submit/SubmitBatch admission so a
	// SubmitBatch's messages (a MULTI/body/EXEC sequence, an
	// ASKING+retry pair) land in the ready queue as a contiguous run --
	// no other goroutine's Submit can interleave between them, per
	// §4.E's "atomically (no reordering between the two)".
	submitMu sync.Mutex

	reply ReplyHandler
	push  func(resp.RawResult)

	closed    int32 // atomic
	closeOnce sync.Once
	stopc     chan struct{}
	donec     chan struct{}
}

// New constructs a Bridge and starts its supervising goroutine; the
// bridge begins dialing immediately. push receives every frame
// delivered unsolicited: RESP3 push frames on any bridge, and every
// frame at all on a Subscription-role bridge (RESP2 pub/sub replies
// are ordinary arrays indistinguishable from a command reply except by
// position, so a Subscription bridge treats its entire traffic as
// push). push may be nil for an interactive bridge that does not
// expect push traffic.
func New(addr string, opts Options, reply ReplyHandler, push func(resp.RawResult)) *Bridge {
	opts.setDefaults()
	if reply == nil {
		reply = DefaultReplyHandler
	}
	b := &Bridge{
		addr:     addr,
		role:     opts.Role,
		opts:     opts,
		id:       uuid.NewString(),
		backlog:  newBacklog(opts.BacklogCap),
		inflight: &inflight{},
		ready:    newWriteReady(opts.HighWatermark * 2),
		reply:    reply,
		push:     push,
		stopc:    make(chan struct{}),
		donec:    make(chan struct{}),
	}
	atomic.StoreInt32(&b.state, int32(Disconnected))
	atomic.StoreInt32(&b.protocol, int32(opts.Protocol))
	atomic.StoreInt32(&b.selectedDB, int32(opts.DB))
	go b.run()
	return b
}

func (b *Bridge) Addr() string         { return b.addr }
func (b *Bridge) Role() Role           { return b.role }

// ID is this bridge's process-unique correlation id, stable across
// reconnects, the same id the default logger prints.
func (b *Bridge) ID() string { return b.id }
func (b *Bridge) State() State         { return State(atomic.LoadInt32(&b.state)) }
func (b *Bridge) Protocol() resp.Protocol { return resp.Protocol(atomic.LoadInt32(&b.protocol)) }

func (b *Bridge) setState(s State) { atomic.StoreInt32(&b.state, int32(s)) }

// Stats reports the current depth of each of the three logical queues,
// used by the multiplexer's health reporting and Profiler gauges.
func (b *Bridge) Stats() (backlogLen, inflightLen, readyLen int) {
	return b.backlog.len(), b.inflight.len(), b.ready.depth()
}

// Submit admits msg for delivery. It never blocks the caller on the
// network: while disconnected it is queued to the backlog (or
// rejected, per BacklogPolicy); while connected it is hand off to the
// write loop's mailbox, subject to high-watermark backpressure unless
// msg.HighPriority().
func (b *Bridge) Submit(msg *redis.Message) {
	b.submitMu.Lock()
	defer b.submitMu.Unlock()
	b.submitLocked(msg)
}

// SubmitBatch admits every message in msgs as one uninterruptible
// sequence: no other Submit/SubmitBatch call can have its own messages
// land in between. Used for MULTI/body/EXEC and ASKING-then-retry,
// where the wire order across messages matters as much as each
// message's own delivery.
func (b *Bridge) SubmitBatch(msgs []*redis.Message) {
	b.submitMu.Lock()
	defer b.submitMu.Unlock()
	for _, msg := range msgs {
		b.submitLocked(msg)
	}
}

func (b *Bridge) submitLocked(msg *redis.Message) {
	if atomic.LoadInt32(&b.closed) != 0 {
		msg.MarkFailed(b.errDisposed(msg))
		return
	}
	msg.MarkQueued()
	if b.State().Ready() {
		b.admitReady(msg)
		return
	}
	if b.opts.BacklogPolicy == BacklogAndRetry && b.backlog.push(msg) {
		return
	}
	b.opts.Logger.Report(LogBacklogRejected, b, msg.Request.Cmd)
	msg.MarkFailed(b.errUnavailable(msg))
}

func (b *Bridge) admitReady(msg *redis.Message) {
	if msg.HighPriority() || b.ready.depth() < b.opts.HighWatermark || msg.Deadline.IsZero() {
		select {
		case b.ready.ch <- msg:
		case <-b.stopc:
			msg.MarkFailed(b.errDisposed(msg))
		}
		return
	}
	timer := time.NewTimer(time.Until(msg.Deadline))
	defer timer.Stop()
	select {
	case b.ready.ch <- msg:
	case <-timer.C:
		msg.MarkCancelled(b.errTimeoutBeforeWrite(msg))
	case <-b.stopc:
		msg.MarkFailed(b.errDisposed(msg))
	}
}

func (b *Bridge) drainBacklogInto() {
	for _, msg := range b.backlog.drain() {
		b.admitReady(msg)
	}
}

// Close stops the bridge. If allowPending is false, anything still
// sitting in the backlog is failed with ObjectDisposed; the caller is
// otherwise responsible for resubmitting backlogged work elsewhere
// (an endpoint table swap, a cluster redirect) before relying on it.
// In-flight messages are always failed -- their outcome became unknown
// the moment the socket closed underneath them, regardless of
// allowPending.
func (b *Bridge) Close(allowPending bool) {
	b.closeOnce.Do(func() {
		atomic.StoreInt32(&b.closed, 1)
		close(b.stopc)
	})
	<-b.donec
	if !allowPending {
		b.backlog.failAll(b.errDisposed(nil))
	}
}

func (b *Bridge) run() {
	defer close(b.donec)
	attempt := 0
	for {
		select {
		case <-b.stopc:
			return
		default:
		}

		conn, protocol, err := b.connectAndHandshake()
		if err != nil {
			attempt++
			b.setState(Disconnected)
			b.opts.Logger.Report(LogConnectFailed, b, err)
			timer := time.NewTimer(b.opts.ReconnectRetryPolicy.NextDelay(attempt))
			select {
			case <-timer.C:
			case <-b.stopc:
				timer.Stop()
				return
			}
			continue
		}
		attempt = 0

		gen := atomic.AddUint64(&b.generation, 1)
		atomic.StoreInt32(&b.protocol, int32(protocol))
		atomic.StoreInt32(&b.selectedDB, int32(b.opts.DB))
		b.setState(ConnectedEstablished)
		b.opts.Logger.Report(LogEstablished, b, protocol)

		failc := make(chan error, 2)
		connStop := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); b.writeLoop(conn, failc) }()
		go func() { defer wg.Done(); b.readLoop(conn, gen, failc) }()
		go b.heartbeatLoop(connStop, failc)

		b.drainBacklogInto()

		var failErr error
		select {
		case failErr = <-failc:
		case <-b.stopc:
			failErr = redis.ErrObjectDisposed.New("bridge closed")
		}
		close(connStop)
		b.setState(ConnectedFailing)
		b.opts.Logger.Report(LogFailing, b, failErr)
		conn.Close()
		wg.Wait()
		b.failInflight(failErr)
		b.setState(Disconnected)
		b.opts.Logger.Report(LogDisconnected, b, failErr)

		select {
		case <-b.stopc:
			return
		default:
		}
	}
}

func (b *Bridge) failInflight(cause error) {
	if cause == nil {
		cause = redis.ErrObjectDisposed.New("bridge closing")
	}
	for _, msg := range b.inflight.drainAll() {
		msg.MarkFailed(b.decorate(redis.ErrTimeoutAfterWrite.Wrap(cause, "connection failed while awaiting reply"), "reply-wait", msg))
	}
}

func (b *Bridge) heartbeatLoop(stop <-chan struct{}, failc chan<- error) {
	ticker := time.NewTicker(b.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.inflight.cancelOverdue(time.Now(), func(m *redis.Message) {
				m.MarkCancelled(b.errTimeoutAfterWrite(m))
			})
			if err := b.ping(); err != nil {
				select {
				case failc <- err:
				default:
				}
				return
			}
		case <-stop:
			return
		case <-b.stopc:
			return
		}
	}
}

func (b *Bridge) ping() error {
	resultc := make(chan interface{}, 1)
	msg := redis.NewMessage(redis.Req("PING"), redis.FlagHighPriority, redis.Void,
		redis.FuncFuture(func(res interface{}, _ uint64) { resultc <- res }))
	msg.MarkQueued()
	b.admitReady(msg)
	select {
	case res := <-resultc:
		if err, ok := res.(error); ok {
			return err
		}
		return nil
	case <-time.After(b.opts.SyncTimeout):
		b.opts.Logger.Report(LogHeartbeatTimeout, b)
		return b.decorate(redis.ErrTimeoutAfterWrite.New("heartbeat timed out waiting for PING reply"), "heartbeat", msg)
	}
}

func (b *Bridge) writeLoop(conn net.Conn, failc chan<- error) {
	w := bufio.NewWriterSize(conn, 64*1024)
	fb := borrowFrameBuffer()
	defer returnFrameBuffer(fb)
	for {
		var msg *redis.Message
		select {
		case msg = <-b.ready.ch:
		case <-b.stopc:
			return
		}
		for {
			if err := b.writeOne(w, &fb.b, msg); err != nil {
				select {
				case failc <- b.errConnectFailure("write", err):
				default:
				}
				return
			}
			select {
			case msg = <-b.ready.ch:
				continue
			default:
			}
			break
		}
		if err := w.Flush(); err != nil {
			select {
			case failc <- b.errConnectFailure("write", err):
			default:
			}
			return
		}
	}
}

func (b *Bridge) writeOne(w *bufio.Writer, buf *[]byte, msg *redis.Message) error {
	if !msg.Deadline.IsZero() && time.Now().After(msg.Deadline) {
		msg.MarkCancelled(b.errTimeoutBeforeWrite(msg))
		return nil
	}
	*buf = (*buf)[:0]
	if msg.DB >= 0 && int32(msg.DB) != atomic.LoadInt32(&b.selectedDB) {
		if err := b.writeSelect(w, buf, msg.DB); err != nil {
			msg.MarkFailed(b.errConnectFailure("write", err))
			return err
		}
	}
	encoded, err := resp.AppendCommand(*buf, msg.Request.Cmd, msg.Request.Args)
	if err != nil {
		msg.MarkFailed(b.decorate(redis.ErrConfiguration.Wrap(err, "command encode"), "encode", msg))
		return nil
	}
	*buf = encoded
	if _, err := w.Write(encoded); err != nil {
		msg.MarkFailed(b.errConnectFailure("write", err))
		return err
	}
	msg.MarkWritten()
	if msg.FireAndForget() {
		msg.MarkCompleted(nil)
		return nil
	}
	b.inflight.push(msg)
	msg.MarkAwaitingReply()
	return nil
}

// writeSelect writes an implicit "SELECT db" ahead of the caller's own
// command and enqueues a throwaway in-flight entry for its reply, so a
// Database view bound to a non-default db index (§4.F's "lightweight
// view bound to a db index") gets switched to transparently without
// breaking the bridge's single-FIFO reply pairing: the SELECT's ack is
// consumed and discarded by the read loop exactly like any other
// in-flight reply, one slot ahead of the real command's.
func (b *Bridge) writeSelect(w *bufio.Writer, buf *[]byte, db int) error {
	selectBuf, err := resp.AppendCommand((*buf)[:0], "SELECT", []interface{}{db})
	if err != nil {
		return err
	}
	if _, err := w.Write(selectBuf); err != nil {
		return err
	}
	atomic.StoreInt32(&b.selectedDB, int32(db))
	discard := redis.NewMessage(redis.Req("SELECT", db), redis.FlagHighPriority, redis.Void, nil)
	discard.MarkQueued()
	discard.MarkWritten()
	b.inflight.push(discard)
	*buf = selectBuf[:0]
	return nil
}

func (b *Bridge) readLoop(conn net.Conn, gen uint64, failc chan<- error) {
	dec := &resp.Decoder{Protocol: resp.Protocol(atomic.LoadInt32(&b.protocol))}
	var rb ring.Buffer
	chunk := make([]byte, 64*1024)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			rb.Grow(chunk[:n])
			for {
				v, derr := dec.Decode(&rb)
				if derr == ring.ErrNeedMore {
					break
				}
				if derr != nil {
					select {
					case failc <- b.errProtocol(derr):
					default:
					}
					return
				}
				b.dispatch(v)
			}
			rb.Compact()
		}
		if err != nil {
			select {
			case failc <- b.errConnectFailure("read", err):
			default:
			}
			return
		}
	}
}

func (b *Bridge) dispatch(v resp.RawResult) {
	if b.role == Subscription || v.Kind == resp.KindPush {
		if b.push != nil {
			b.push(v)
			return
		}
	}
	msg, ok := b.inflight.popFront()
	if !ok {
		return
	}
	if msg.State() == redis.StateCancelled {
		return
	}
	result := msg.Processor.TryProcess(v)
	b.reply(msg, result)
}
