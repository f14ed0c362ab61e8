package bridge

import (
	"github.com/joomcode/errorx"

	"github.com/redikit/redikit/redis"
)

// decorate stamps err with this bridge's endpoint/role and, if msg is
// non-nil, the command/key/trace-id of the request that provoked it --
// the structured context §7 requires every bridge-originated error to
// carry instead of a formatted string.
func (b *Bridge) decorate(err *errorx.Error, stage string, msg *redis.Message) *errorx.Error {
	err = err.WithProperty(redis.PropEndpoint, b.addr).
		WithProperty(redis.PropRole, b.role.String()).
		WithProperty(redis.PropStage, stage)
	if msg != nil {
		err = redis.WithCommandContext(err, msg.Request.Cmd, firstKey(msg.Request), msg.TraceID)
	}
	return err
}

func firstKey(req redis.Request) []byte {
	if k, ok := req.Key(); ok {
		return k
	}
	return nil
}

func (b *Bridge) errConnectFailure(stage string, cause error) *errorx.Error {
	var t *errorx.Type
	switch stage {
	case "dial":
		t = redis.ErrConnectionFailureDial
	case "auth":
		t = redis.ErrConnectionFailureAuth
	case "handshake":
		t = redis.ErrConnectionFailureHandshake
	default:
		t = redis.ErrConnectionFailure
	}
	return b.decorate(t.Wrap(cause, stage), stage, nil)
}

func (b *Bridge) errUnavailable(msg *redis.Message) *errorx.Error {
	return b.decorate(redis.ErrConnectionUnavailable.New("bridge %s is not accepting writes (state %s)", b.addr, b.State()), "enqueue", msg)
}

func (b *Bridge) errDisposed(msg *redis.Message) *errorx.Error {
	return b.decorate(redis.ErrObjectDisposed.New("bridge %s is closed", b.addr), "enqueue", msg)
}

func (b *Bridge) errTimeoutBeforeWrite(msg *redis.Message) *errorx.Error {
	return b.decorate(redis.ErrTimeoutBeforeWrite.New("deadline exceeded before write"), "enqueue", msg)
}

func (b *Bridge) errTimeoutAfterWrite(msg *redis.Message) *errorx.Error {
	return b.decorate(redis.ErrTimeoutAfterWrite.New("deadline exceeded awaiting reply"), "reply-wait", msg)
}

func (b *Bridge) errProtocol(cause error) *errorx.Error {
	return b.decorate(redis.ErrProtocolDecode.Wrap(cause, "malformed frame"), "decode", nil)
}
