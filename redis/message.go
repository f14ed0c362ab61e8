package redis

import (
	"sync/atomic"
	"time"

	"github.com/segmentio/ksuid"
)

// Flags is a bitset of per-message routing and delivery hints.
type Flags uint16

const (
	// FlagFireAndForget discards the server reply; the caller's future
	// completes on successful write instead of on reply.
	FlagFireAndForget Flags = 1 << iota
	// FlagDemandPrimary requires the message to run on a primary
	// endpoint; routing fails rather than falling back to a replica.
	FlagDemandPrimary
	// FlagDemandReplica requires a replica endpoint.
	FlagDemandReplica
	// FlagPreferPrimary routes to a primary when available, falling
	// back to a replica rather than failing.
	FlagPreferPrimary
	// FlagPreferReplica routes to a replica when available.
	FlagPreferReplica
	// FlagNoRedirect disables following MOVED/ASK for this message.
	FlagNoRedirect
	// FlagHighPriority bypasses the write-ready high-watermark
	// (internal PING/AUTH/HELLO/CLUSTER NODES/SUBSCRIBE traffic).
	FlagHighPriority
)

// State is a Message's lifecycle stage.
type State byte

const (
	StateCreated State = iota
	StateQueued
	StateWritten
	StateAwaitingReply
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateQueued:
		return "Queued"
	case StateWritten:
		return "Written"
	case StateAwaitingReply:
		return "AwaitingReply"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	case StateCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// terminal reports whether s is one of the three lifecycle end states.
func (s State) terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Message is the in-flight unit submitted to a Sender: a Request plus
// routing flags, a result processor, the caller's Future sink, and the
// tick timestamps used to diagnose which stage a failure happened at.
type Message struct {
	Request Request
	DB      int // -1 = unselected
	Flags   Flags

	Processor Processor
	Sink      Future
	SinkIndex uint64

	Attempt int

	TraceID string

	// Deadline, if non-zero, is the caller-provided or AsyncTimeout-
	// derived point past which the bridge's suspension points
	// (enqueue, send, reply-wait) give up and fail the message with
	// TimeoutBeforeWrite or TimeoutAfterWrite rather than waiting
	// indefinitely.
	Deadline time.Time

	// state is an atomic State: the bridge's own write/read loops drive
	// it through Queued/Written/AwaitingReply/Completed/Failed
	// single-threaded per message, but a deadline sweep (heartbeatLoop
	// cancelling an overdue in-flight message) can race that sequence
	// from a second goroutine, so every transition goes through
	// atomic load/CAS rather than a plain field.
	state atomic.Int32

	CreationTick time.Time
	EnqueueTick  time.Time
	SendTick     time.Time
	ResponseTick time.Time
	CompleteTick time.Time
}

// NewMessage constructs a Message in state Created, stamping
// CreationTick and assigning a ksuid-derived TraceID for diagnosability
// (attached to any error the message eventually produces).
func NewMessage(req Request, flags Flags, proc Processor, sink Future) *Message {
	m := &Message{
		Request:      req,
		DB:           -1,
		Flags:        flags,
		Processor:    proc,
		Sink:         sink,
		TraceID:      ksuid.New().String(),
		CreationTick: time.Now(),
	}
	m.state.Store(int32(StateCreated))
	return m
}

// State returns the message's current lifecycle stage.
func (m *Message) State() State { return State(m.state.Load()) }

// transition moves m to next, stamping the tick for the transition if
// stamp is non-nil. It panics on a transition out of a terminal state,
// enforcing the monotonicity invariant: ticks are non-decreasing and
// each transition is observed at most once. Reserved for the bridge's
// own single-threaded write/read sequence for a given message; a
// transition that can race a deadline sweep uses cancel instead.
func (m *Message) transition(next State, stamp *time.Time) {
	if m.State().terminal() {
		panic("redis: message transition attempted from terminal state " + m.State().String())
	}
	m.state.Store(int32(next))
	if stamp != nil {
		*stamp = time.Now()
	}
}

// cancel transitions m to Cancelled unless it has already reached a
// terminal state, via CAS so it can race safely against the bridge's
// own completion of the same message (a reply arriving just as its
// deadline passes) without double-resolving the sink. Returns whether
// the cancellation took effect.
func (m *Message) cancel(err error) bool {
	for {
		prev := State(m.state.Load())
		if prev.terminal() {
			return false
		}
		if m.state.CompareAndSwap(int32(prev), int32(StateCancelled)) {
			m.CompleteTick = time.Now()
			if m.Sink != nil && !m.Sink.Cancelled() {
				m.Sink.Resolve(err, m.SinkIndex)
			}
			return true
		}
	}
}

func (m *Message) MarkQueued()       { m.transition(StateQueued, &m.EnqueueTick) }
func (m *Message) MarkWritten()      { m.transition(StateWritten, &m.SendTick) }
func (m *Message) MarkAwaitingReply() { m.transition(StateAwaitingReply, nil) }

func (m *Message) MarkCompleted(res interface{}) {
	m.transition(StateCompleted, &m.CompleteTick)
	m.ResponseTick = m.CompleteTick
	if m.Sink != nil {
		m.Sink.Resolve(res, m.SinkIndex)
	}
}

func (m *Message) MarkFailed(err error) {
	m.transition(StateFailed, &m.CompleteTick)
	if m.Sink != nil {
		m.Sink.Resolve(err, m.SinkIndex)
	}
}

// MarkCancelled transitions m to Cancelled with err as the sink's
// resolved value -- used when a Deadline expires before write (the
// caller never sees a reply) or while awaiting one (the bridge's
// heartbeat sweep tombstones the in-flight slot instead; the real
// reply, if it eventually arrives, is discarded by Bridge.dispatch's
// own State() check rather than resolving the sink a second time).
// Returns whether the cancellation took effect, i.e. m had not already
// reached a terminal state.
func (m *Message) MarkCancelled(err error) bool {
	return m.cancel(err)
}

// FireAndForget reports whether m should complete on successful write
// without waiting for a server reply.
func (m *Message) FireAndForget() bool { return m.Flags&FlagFireAndForget != 0 }

// HighPriority reports whether m bypasses write-ready backpressure.
func (m *Message) HighPriority() bool { return m.Flags&FlagHighPriority != 0 }
