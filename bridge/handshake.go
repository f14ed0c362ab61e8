package bridge

import (
	"bytes"
	"crypto/tls"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/joomcode/errorx"

	"github.com/redikit/redikit/internal/ring"
	"github.com/redikit/redikit/resp"
)

// connectAndHandshake dials b.addr, performs the optional TLS upgrade
// and the HELLO/AUTH/CLIENT/SELECT sequence of §4.D, and returns a
// connection ready for the write/read loops plus the protocol actually
// negotiated with the server.
func (b *Bridge) connectAndHandshake() (net.Conn, resp.Protocol, error) {
	b.setState(Connecting)
	b.opts.Logger.Report(LogConnecting, b)

	dialer := net.Dialer{Timeout: b.opts.ConnectTimeout, KeepAlive: b.opts.KeepAlive}
	conn, err := dialer.Dial("tcp", b.addr)
	if err != nil {
		return nil, 0, b.errConnectFailure("dial", err)
	}
	b.opts.Logger.Report(LogConnected, b, conn.LocalAddr(), conn.RemoteAddr())

	if b.opts.TLSConfig != nil {
		tconn := tls.Client(conn, b.opts.TLSConfig)
		tconn.SetDeadline(time.Now().Add(b.opts.ConnectTimeout))
		if err := tconn.Handshake(); err != nil {
			conn.Close()
			return nil, 0, b.errConnectFailure("dial", err)
		}
		tconn.SetDeadline(time.Time{})
		conn = tconn
	}

	b.setState(Handshaking)
	b.opts.Logger.Report(LogHandshaking, b)

	h := &handshaker{conn: conn, dec: resp.Decoder{Protocol: resp.RESP3}}
	protocol, err := h.negotiate(b)
	if err != nil {
		conn.Close()
		b.opts.Logger.Report(LogHandshakeFailed, b, err)
		return nil, 0, err
	}
	return conn, protocol, nil
}

// handshaker runs a synchronous request/response exchange over a raw
// net.Conn -- the handshake happens before the write/read loops exist,
// so it owns the socket outright rather than going through the
// backlog/in-flight/write-ready queues a live bridge uses.
type handshaker struct {
	conn net.Conn
	rb   ring.Buffer
	dec  resp.Decoder
}

func (h *handshaker) exchange(deadline time.Time, cmd string, args ...interface{}) (resp.RawResult, error) {
	h.conn.SetDeadline(deadline)
	buf, err := resp.AppendCommand(nil, cmd, args)
	if err != nil {
		return resp.RawResult{}, err
	}
	if _, err := h.conn.Write(buf); err != nil {
		return resp.RawResult{}, err
	}
	return h.readOne()
}

func (h *handshaker) readOne() (resp.RawResult, error) {
	chunk := make([]byte, 4096)
	for {
		v, err := h.dec.Decode(&h.rb)
		if err == nil {
			return v, nil
		}
		if err != ring.ErrNeedMore {
			return resp.RawResult{}, err
		}
		n, rerr := h.conn.Read(chunk)
		if n > 0 {
			h.rb.Grow(chunk[:n])
		}
		if rerr != nil {
			return resp.RawResult{}, rerr
		}
	}
}

// negotiate runs handshake steps 2-5 of §4.D and returns the protocol
// ultimately in effect.
func (h *handshaker) negotiate(b *Bridge) (resp.Protocol, error) {
	deadline := time.Now().Add(b.opts.SyncTimeout)
	protocol := resp.RESP2

	wantResp3 := b.opts.Protocol == 0 || b.opts.Protocol == resp.RESP3
	if wantResp3 {
		args := []interface{}{3}
		if b.opts.Password != "" {
			args = append(args, "AUTH", authUser(b.opts.User), b.opts.Password)
		}
		if b.opts.ClientName != "" {
			args = append(args, "SETNAME", b.opts.ClientName)
		}
		res, err := h.exchange(deadline, "HELLO", args...)
		switch {
		case err != nil:
			return 0, b.errConnectFailure("handshake", err)
		case res.Kind == resp.KindError && isUnknownCommand(res.Bytes):
			b.opts.Logger.Report(LogProtocolDowngrade, b)
		case res.Kind == resp.KindError:
			return 0, classifyHandshakeError(b, res.Bytes)
		default:
			protocol = resp.RESP3
		}
	}

	if protocol == resp.RESP2 {
		if err := h.legacyAuthAndName(b, deadline); err != nil {
			return 0, err
		}
	}

	h.bestEffortSetInfo(b, deadline)

	if b.opts.DB != 0 {
		res, err := h.exchange(deadline, "SELECT", b.opts.DB)
		if err != nil {
			return 0, b.errConnectFailure("handshake", err)
		}
		if res.Kind == resp.KindError {
			return 0, classifyHandshakeError(b, res.Bytes)
		}
	}

	return protocol, nil
}

func (h *handshaker) legacyAuthAndName(b *Bridge, deadline time.Time) error {
	if b.opts.Password != "" {
		var res resp.RawResult
		var err error
		if b.opts.User != "" {
			res, err = h.exchange(deadline, "AUTH", b.opts.User, b.opts.Password)
		} else {
			res, err = h.exchange(deadline, "AUTH", b.opts.Password)
		}
		if err != nil {
			return b.errConnectFailure("handshake", err)
		}
		if res.Kind == resp.KindError {
			return classifyHandshakeError(b, res.Bytes)
		}
	}
	if b.opts.ClientName != "" {
		if _, err := h.exchange(deadline, "CLIENT", "SETNAME", b.opts.ClientName); err != nil {
			return b.errConnectFailure("handshake", err)
		}
	}
	return nil
}

// bestEffortSetInfo issues CLIENT SETINFO per §4.D step 4, ignoring
// failures: older servers don't implement the subcommand and that is
// not a reason to abandon an otherwise-healthy connection.
func (h *handshaker) bestEffortSetInfo(b *Bridge, deadline time.Time) {
	if b.opts.LibName != "" {
		h.exchange(deadline, "CLIENT", "SETINFO", "lib-name", b.opts.LibName)
	}
	if b.opts.LibVer != "" {
		h.exchange(deadline, "CLIENT", "SETINFO", "lib-ver", b.opts.LibVer)
	}
}

func authUser(user string) string {
	if user == "" {
		return "default"
	}
	return user
}

func isUnknownCommand(msg []byte) bool {
	return bytes.Contains(bytes.ToUpper(msg), []byte("UNKNOWN COMMAND"))
}

// classifyHandshakeError distinguishes an authentication failure
// (terminal for the endpoint, per §4.D) from any other handshake-stage
// server error (retryable).
func classifyHandshakeError(b *Bridge, msg []byte) *errorx.Error {
	text := string(msg)
	upper := strings.ToUpper(text)
	if strings.Contains(upper, "NOAUTH") || strings.Contains(upper, "WRONGPASS") || strings.Contains(upper, "INVALID PASSWORD") {
		return b.errConnectFailure("auth", errors.New(text))
	}
	return b.errConnectFailure("handshake", errors.New(text))
}
