package bridge

import (
	"crypto/tls"
	"time"

	"github.com/redikit/redikit/resp"
)

// BacklogPolicy governs admission of writes submitted while the
// bridge is not yet ConnectedEstablished, per §4.D queue 1.
type BacklogPolicy int

const (
	// FailFast rejects immediately with ConnectionUnavailable.
	FailFast BacklogPolicy = iota
	// BacklogAndRetry admits up to Options.BacklogCap, then rejects.
	BacklogAndRetry
)

// Options configures one Bridge. Field names mirror the teacher's
// redisconn.Opts where the concept carries over (ReconnectPause renamed
// ReconnectRetryPolicy to express §6's linear/exponential/fixed knob),
// extended with the RESP3 handshake and backpressure knobs the spec
// names in §6 that the teacher -- being RESP2-only -- never needed.
type Options struct {
	Role Role

	// Protocol selects the desired wire protocol. Auto attempts HELLO 3
	// and falls back to RESP2 on "-ERR unknown command", per §4.D step 2.
	Protocol resp.Protocol

	User         string
	Password     string
	ClientName   string
	LibName      string
	LibVer       string
	DB           int
	TLSConfig    *tls.Config

	ConnectTimeout time.Duration
	// SyncTimeout bounds both the handshake round trip and how overdue
	// a heartbeat reply may be before the bridge fails itself.
	SyncTimeout      time.Duration
	HeartbeatInterval time.Duration
	KeepAlive        time.Duration

	BacklogPolicy BacklogPolicy
	BacklogCap    int
	// HighWatermark is the WriteReady queue depth past which
	// non-high-priority Submit calls block or time out, per §4.D
	// "Backpressure".
	HighWatermark int

	ReconnectRetryPolicy RetryPolicy

	Logger Logger
}

func (o *Options) setDefaults() {
	if o.SyncTimeout <= 0 {
		o.SyncTimeout = time.Second
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = o.SyncTimeout
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = time.Second
	}
	if o.BacklogCap <= 0 {
		o.BacklogCap = 4096
	}
	if o.HighWatermark <= 0 {
		o.HighWatermark = 8192
	}
	if o.ReconnectRetryPolicy == nil {
		o.ReconnectRetryPolicy = DefaultRetryPolicy
	}
	if o.Logger == nil {
		o.Logger = defaultLogger{}
	}
	if o.LibName == "" {
		o.LibName = "redikit"
	}
}
