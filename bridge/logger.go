package bridge

import "log"

// LogKind tags one reportable bridge lifecycle event, mirroring the
// teacher's ConnLogKind enum (redisconn/logger.go) extended with the
// handshake/backlog/heartbeat events this bridge's richer state
// machine introduces.
type LogKind int

const (
	LogConnecting LogKind = iota
	LogConnected
	LogConnectFailed
	LogHandshaking
	LogHandshakeFailed
	LogEstablished
	LogDisconnected
	LogFailing
	LogDisconnecting
	LogBacklogRejected
	LogHeartbeatTimeout
	LogProtocolDowngrade
)

// Logger receives bridge lifecycle events. The default implementation
// writes through the standard log package, exactly the teacher's
// ambient choice -- no third-party logging library is introduced here
// because none of the example repos' domain stack reaches for one
// either.
type Logger interface {
	Report(event LogKind, b *Bridge, v ...interface{})
}

type defaultLogger struct{}

// Every line carries b.id so a support engineer can grep one
// connection's entire lifetime -- across however many reconnects --
// out of a log stream shared by every bridge in the process.
func (defaultLogger) Report(event LogKind, b *Bridge, v ...interface{}) {
	switch event {
	case LogConnecting:
		log.Printf("bridge[%s/%s/%s]: connecting", b.addr, b.role, b.id)
	case LogConnected:
		log.Printf("bridge[%s/%s/%s]: connected (local=%v remote=%v)", b.addr, b.role, b.id, v[0], v[1])
	case LogConnectFailed:
		log.Printf("bridge[%s/%s/%s]: connect failed: %v", b.addr, b.role, b.id, v)
	case LogHandshaking:
		log.Printf("bridge[%s/%s/%s]: handshaking", b.addr, b.role, b.id)
	case LogHandshakeFailed:
		log.Printf("bridge[%s/%s/%s]: handshake failed: %v", b.addr, b.role, b.id, v)
	case LogEstablished:
		log.Printf("bridge[%s/%s/%s]: established (protocol=%v)", b.addr, b.role, b.id, v)
	case LogDisconnected:
		log.Printf("bridge[%s/%s/%s]: disconnected: %v", b.addr, b.role, b.id, v)
	case LogFailing:
		log.Printf("bridge[%s/%s/%s]: failing: %v", b.addr, b.role, b.id, v)
	case LogDisconnecting:
		log.Printf("bridge[%s/%s/%s]: closing", b.addr, b.role, b.id)
	case LogBacklogRejected:
		log.Printf("bridge[%s/%s/%s]: backlog rejected message: %v", b.addr, b.role, b.id, v)
	case LogHeartbeatTimeout:
		log.Printf("bridge[%s/%s/%s]: heartbeat timeout", b.addr, b.role, b.id)
	case LogProtocolDowngrade:
		log.Printf("bridge[%s/%s/%s]: downgraded to RESP2", b.addr, b.role, b.id)
	default:
		log.Printf("bridge[%s/%s/%s]: unexpected event %d: %v", b.addr, b.role, b.id, event, v)
	}
}
