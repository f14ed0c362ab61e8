package mux

import (
	"github.com/redikit/redikit/bridge"
	"github.com/redikit/redikit/redis"
)

// defaultConnectRetry is the retry cap used when cfg.ConnectRetry
// hasn't been defaulted yet -- e.g. a RoutingStrategy built directly
// in a test without going through Config.setDefaults. It matches
// setDefaults' own default.
const defaultConnectRetry = 3

// NewRedirectAwareReplyHandler builds a bridge.ReplyHandler that asks
// strategy where to go next on NeedRedirect/NeedRetry/NeedScriptLoad
// and resubmits, instead of failing outright -- the behavior every
// RoutingStrategy's endpoints share, since the bridge itself never
// interprets a MOVED/ASK/TRYAGAIN/NOSCRIPT reply on its own
// (bridge.DefaultReplyHandler treats them as failures; this handler is
// what an Endpoint installs in its place). strategy need not be fully
// populated yet when this is called: Route/Reroute are only invoked
// once traffic actually starts flowing, well after a strategy
// constructor finishes building its endpoint table. cfg is read
// lazily inside the returned closure (not at construction time) so
// that cfg.ConnectRetry and cfg.Scripts reflect Config.setDefaults'
// work even though every RoutingStrategy is built before mux.New
// calls it.
func NewRedirectAwareReplyHandler(strategy RoutingStrategy, cfg *Config) bridge.ReplyHandler {
	retryCap := func() int {
		if cfg.ConnectRetry > 0 {
			return cfg.ConnectRetry
		}
		return defaultConnectRetry
	}

	return func(msg *redis.Message, result redis.ProcessResult) {
		switch result.Status {
		case redis.Completed:
			msg.MarkCompleted(result.Value)

		case redis.NeedRetry:
			if msg.Attempt >= retryCap() {
				msg.MarkFailed(result.Err)
				return
			}
			msg.Attempt++
			ep, err := strategy.Route(msg)
			if err != nil {
				msg.MarkFailed(redis.ErrServer.Wrap(err, "retry routing failed"))
				return
			}
			ep.Interactive.Submit(msg)

		case redis.NeedScriptLoad:
			if msg.Attempt >= retryCap() {
				msg.MarkFailed(result.Err)
				return
			}
			sha, ok := scriptSHA(msg.Request)
			if !ok || cfg.Scripts == nil {
				msg.MarkFailed(result.Err)
				return
			}
			body, ok := cfg.Scripts.Get(sha)
			if !ok {
				// Never seen this body via EVAL on this Sender -- nothing
				// to SCRIPT LOAD, so the NOSCRIPT stands.
				msg.MarkFailed(result.Err)
				return
			}
			msg.Attempt++
			ep, err := strategy.Route(msg)
			if err != nil {
				msg.MarkFailed(redis.ErrServer.Wrap(err, "script-load retry routing failed"))
				return
			}
			load := redis.NewMessage(redis.Req("SCRIPT", "LOAD", body), redis.FlagHighPriority, redis.Void, nil)
			load.DB = msg.DB
			// SCRIPT LOAD must land immediately ahead of the retried
			// EVALSHA on the same bridge, atomically, the same way an ASK
			// redirect precedes its retry -- a sequential Submit pair
			// would leave a gap another caller's message could land in.
			ep.Interactive.SubmitBatch([]*redis.Message{load, msg})

		case redis.NeedRedirect:
			if msg.Flags&redis.FlagNoRedirect != 0 {
				// A transaction's WATCH/MULTI/body/EXEC messages carry
				// FlagNoRedirect: once SubmitBatch has pinned them to one
				// physical bridge, silently rerouting just one of them
				// would split the sequence across two connections. Per
				// the Open Question resolution, the transaction aborts
				// instead of retrying.
				msg.MarkFailed(redis.ErrTransactionAbortedRedirected.New(
					"redirected mid-transaction to %s", result.Redirect.Addr))
				return
			}
			if msg.Attempt >= retryCap() {
				msg.MarkFailed(redis.ErrServer.New("redirect declined after %d attempts", msg.Attempt))
				return
			}
			msg.Attempt++
			if err := strategy.Reroute(msg, result.Redirect); err != nil {
				msg.MarkFailed(redis.ErrServer.Wrap(err, "redirect failed"))
				return
			}

		default:
			err := result.Err
			if err == nil {
				err = redis.ErrServer.New("unknown process status %v", result.Status)
			}
			msg.MarkFailed(err)
		}
	}
}

// scriptSHA extracts the SHA1 digest EVALSHA's first argument carries,
// so a NOSCRIPT reply can be looked up in the Multiplexer's
// ScriptCache.
func scriptSHA(req redis.Request) (string, bool) {
	if len(req.Args) == 0 {
		return "", false
	}
	body, ok := redis.BodyArg(req.Args[0])
	if !ok {
		return "", false
	}
	return string(body), true
}
