// Package redis implements the message/result layer above the wire
// codec: the Message lifecycle state machine, typed result processors,
// the error taxonomy, and the synchronous/channel/context call facades
// over the async Sender interface.
package redis

import (
	"github.com/joomcode/errorx"
)

// Namespace roots every error kind this client can return. A single
// *errorx.Error is the universal error value, returned wherever the
// async API surfaces an error result.
var Namespace = errorx.NewNamespace("redis")

var (
	// ErrConfiguration covers bad Options/Config: empty address lists,
	// contradictory timeouts, unresolvable DNS names.
	ErrConfiguration = Namespace.NewType("configuration")

	// ErrConnectionUnavailable is returned for a request submitted while
	// no healthy connection exists for its target shard/role.
	ErrConnectionUnavailable = Namespace.NewType("connection_unavailable")

	// ErrConnectionFailure covers the bridge's own connect/handshake
	// failures. Subtypes distinguish dial, auth and handshake-protocol
	// failures so callers can tell a bad password from a network
	// partition.
	ErrConnectionFailure         = Namespace.NewType("connection_failure")
	ErrConnectionFailureDial     = ErrConnectionFailure.NewSubtype("dial")
	ErrConnectionFailureAuth     = ErrConnectionFailure.NewSubtype("auth")
	ErrConnectionFailureHandshake = ErrConnectionFailure.NewSubtype("handshake")

	// ErrTimeoutBeforeWrite is returned when a request's deadline elapses
	// while it is still queued, before any bytes reached the socket --
	// the request is known never to have been sent.
	ErrTimeoutBeforeWrite = Namespace.NewType("timeout_before_write")

	// ErrTimeoutAfterWrite is returned when a request's deadline elapses
	// after it was written -- whether the server processed it is unknown.
	ErrTimeoutAfterWrite = Namespace.NewType("timeout_after_write")

	// ErrServer wraps a RESP error reply from the server itself (a "-"
	// frame); PropCommand/PropKey carry the request that provoked it.
	// Subtypes carry the §7 prefix classification for the server errors
	// that are terminal rather than retried/redirected locally (MOVED/
	// ASK become a Redirect, LOADING/TRYAGAIN/CLUSTERDOWN/NOSCRIPT a
	// NeedRetry/NeedScriptLoad status -- neither reaches these subtypes
	// unless the retry itself is exhausted or declined).
	ErrServer              = Namespace.NewType("server")
	ErrServerBusy          = ErrServer.NewSubtype("busy")
	ErrServerNoAuth        = ErrServer.NewSubtype("noauth")
	ErrServerWrongPass     = ErrServer.NewSubtype("wrongpass")
	ErrServerReadOnly      = ErrServer.NewSubtype("readonly")
	ErrServerMasterDown    = ErrServer.NewSubtype("masterdown")
	ErrServerCrossSlot     = ErrServer.NewSubtype("crossslot")
	ErrServerNoScript      = ErrServer.NewSubtype("noscript")
	ErrServerLoading       = ErrServer.NewSubtype("loading")
	ErrServerTryAgain      = ErrServer.NewSubtype("tryagain")
	ErrServerClusterDown   = ErrServer.NewSubtype("clusterdown")

	// ErrExecAbort is EXEC returning nil because a watched key changed.
	ErrExecAbort = Namespace.NewType("exec_abort")

	// ErrWatchFailed marks a transaction's precondition (a Condition)
	// failing client-side before EXEC was even attempted.
	ErrWatchFailed = Namespace.NewType("watch_failed")

	// ErrTransactionAborted covers a transaction abandoned for a reason
	// other than a failed Condition or a nil EXEC. Its Redirected
	// subtype is the Open-Question resolution for an ASK/MOVED arriving
	// mid-transaction: rather than silently retrying the whole
	// WATCH/MULTI/EXEC sequence against a different endpoint (which
	// could re-evaluate conditions against different server state),
	// the transaction fails outright and the caller decides whether to
	// retry.
	ErrTransactionAborted           = Namespace.NewType("transaction_aborted")
	ErrTransactionAbortedRedirected = ErrTransactionAborted.NewSubtype("redirected")

	// ErrProtocolDecode covers malformed frames: the resp.DecodeError is
	// attached as the cause.
	ErrProtocolDecode = Namespace.NewType("protocol_decode")

	// ErrCrossSlot is returned when a pipeline, transaction, or EachShard
	// key set maps to more than one hash slot.
	ErrCrossSlot = Namespace.NewType("cross_slot")

	// ErrMultiKeyOnDifferentServers is ErrCrossSlot's cluster-topology
	// flavor: the keys hash to slots currently owned by different nodes.
	ErrMultiKeyOnDifferentServers = ErrCrossSlot.NewSubtype("multi_key_different_servers")

	// ErrObjectDisposed is returned by any operation on a Sender,
	// Multiplexer, or Cluster after Close.
	ErrObjectDisposed = Namespace.NewType("object_disposed")

	// ErrNoEndpoint is returned when a RoutingStrategy has no endpoint
	// satisfying a request's role demand (DemandReplica with no known
	// replica, a redirect to a topology that doesn't support it).
	ErrNoEndpoint = Namespace.NewType("no_endpoint")
)

// Registered properties, attached to errors with WithProperty so
// callers can extract structured context without string-parsing
// Error().
var (
	PropEndpoint   = errorx.RegisterProperty("endpoint")
	PropRole       = errorx.RegisterProperty("role")
	PropCommand    = errorx.RegisterProperty("command")
	PropKey        = errorx.RegisterProperty("key")
	PropStage      = errorx.RegisterProperty("stage")
	PropQueueDepth = errorx.RegisterProperty("queue_depth")
	PropTraceID    = errorx.RegisterProperty("trace_id")
	PropRedirect   = errorx.RegisterProperty("redirect")
)

// withProperty sets p on err only if not already set, so a wrapping
// layer never clobbers a more specific property set closer to the
// origin of the error.
func withProperty(err *errorx.Error, p errorx.Property, v interface{}) *errorx.Error {
	if _, ok := err.Property(p); ok {
		return err
	}
	return err.WithProperty(p, v)
}

// WithCommandContext decorates err with the command name, routing key
// and trace id of the request that produced it, skipping any already set.
func WithCommandContext(err *errorx.Error, cmd string, key []byte, traceID string) *errorx.Error {
	err = withProperty(err, PropCommand, cmd)
	if len(key) > 0 {
		err = withProperty(err, PropKey, string(key))
	}
	if traceID != "" {
		err = withProperty(err, PropTraceID, traceID)
	}
	return err
}

// IsRetryable reports whether the request that produced err is safe to
// retry against a (possibly different) endpoint: everything except a
// request-shape error (ErrConfiguration, ErrCrossSlot), a server
// logic error (ErrServer, ErrExecAbort, ErrWatchFailed), an aborted
// transaction (ErrTransactionAborted) or a closed client
// (ErrObjectDisposed), since those will fail identically anywhere.
func IsRetryable(err *errorx.Error) bool {
	switch {
	case errorx.IsOfType(err, ErrConfiguration):
		return false
	case errorx.IsOfType(err, ErrCrossSlot):
		return false
	case errorx.IsOfType(err, ErrServer):
		return false
	case errorx.IsOfType(err, ErrExecAbort):
		return false
	case errorx.IsOfType(err, ErrWatchFailed):
		return false
	case errorx.IsOfType(err, ErrTransactionAborted):
		return false
	case errorx.IsOfType(err, ErrObjectDisposed):
		return false
	default:
		return true
	}
}
