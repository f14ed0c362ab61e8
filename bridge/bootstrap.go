package bridge

import (
	"errors"
	"net"
	"time"

	"github.com/redikit/redikit/internal/ring"
	"github.com/redikit/redikit/resp"
)

// DefaultDumbTimeout bounds a Dumb.Do call when Timeout is left unset.
var DefaultDumbTimeout = 5 * time.Second

// Dumb is a minimal synchronous connection with none of a Bridge's
// state machine, queues, or reconnection policy -- used for the
// cluster topology bootstrap probe (CLUSTER NODES against a seed
// address) and sentinel polling, where a fire-and-wait round trip is
// all that's needed. Grounded on the teacher's redisdumb.Conn.
type Dumb struct {
	Addr     string
	Protocol resp.Protocol
	Timeout  time.Duration

	conn net.Conn
	rb   ring.Buffer
	dec  resp.Decoder
}

var errDumbUnavailable = errors.New("bridge: dumb connection unavailable after retry")

func (d *Dumb) ensureConn() error {
	if d.conn != nil {
		return nil
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDumbTimeout
	}
	conn, err := net.DialTimeout("tcp", d.Addr, timeout)
	if err != nil {
		return err
	}
	d.conn = conn
	d.rb = ring.Buffer{}
	protocol := d.Protocol
	if protocol == 0 {
		protocol = resp.RESP2
	}
	d.dec = resp.Decoder{Protocol: protocol}
	return nil
}

// Do issues one command and blocks for its reply, reconnecting once
// (per the teacher's own retry-once-on-a-stale-socket pattern) if the
// connection was left broken by a previous call.
func (d *Dumb) Do(cmd string, args ...interface{}) (resp.RawResult, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDumbTimeout
	}
	for attempt := 0; attempt < 2; attempt++ {
		if err := d.ensureConn(); err != nil {
			return resp.RawResult{}, err
		}
		d.conn.SetDeadline(time.Now().Add(timeout))
		buf, err := resp.AppendCommand(nil, cmd, args)
		if err != nil {
			return resp.RawResult{}, err
		}
		if _, err := d.conn.Write(buf); err != nil {
			d.Close()
			continue
		}
		v, err := d.readOne(timeout)
		if err != nil {
			d.Close()
			continue
		}
		return v, nil
	}
	return resp.RawResult{}, errDumbUnavailable
}

func (d *Dumb) readOne(timeout time.Duration) (resp.RawResult, error) {
	chunk := make([]byte, 4096)
	for {
		v, err := d.dec.Decode(&d.rb)
		if err == nil {
			return v, nil
		}
		if err != ring.ErrNeedMore {
			return resp.RawResult{}, err
		}
		d.conn.SetDeadline(time.Now().Add(timeout))
		n, rerr := d.conn.Read(chunk)
		if n > 0 {
			d.rb.Grow(chunk[:n])
		}
		if rerr != nil {
			return resp.RawResult{}, rerr
		}
	}
}

func (d *Dumb) Close() {
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
}
