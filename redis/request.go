package redis

// Request is a single command frame: name plus positional arguments,
// exactly as they will be serialized by the wire codec.
type Request struct {
	Cmd  string
	Args []interface{}
}

// Req builds a Request from a command name and its arguments.
func Req(cmd string, args ...interface{}) Request {
	return Request{Cmd: cmd, Args: args}
}

// Key extracts the routing key argument for req, or false if req
// carries no key (an admin command, or one whose key position is
// unclear enough that routing must fall back to any endpoint).
func (req Request) Key() (Key, bool) {
	hint := hints[req.Cmd]
	if hint.noKey {
		return nil, false
	}
	pos := hint.keyPos
	if len(req.Args) <= pos {
		return nil, false
	}
	return argToKey(req.Args[pos])
}

func argToKey(arg interface{}) (Key, bool) {
	switch v := arg.(type) {
	case string:
		return Key(v), true
	case []byte:
		return Key(v), true
	default:
		return nil, false
	}
}

// commandHint carries the client-side dispatch metadata for one
// command name: arity, whether it writes, is admin-only, may run on a
// replica, participates in pub/sub subscription state, or terminates a
// transaction body.
type commandHint struct {
	minArity int
	maxArity int // -1 means unbounded
	writes   bool
	admin    bool
	replicaOK bool
	pubsub    bool
	txnTerm   bool // EXEC, DISCARD
	noKey     bool
	keyPos    int
}

// defaultHint is applied to any command name absent from the table:
// "writes, primary-only, non-admin", per §6.
var defaultHint = commandHint{minArity: 0, maxArity: -1, writes: true}

var hints = map[string]commandHint{
	"GET":        {minArity: 1, maxArity: 1, writes: false, replicaOK: true},
	"MGET":       {minArity: 1, maxArity: -1, writes: false, replicaOK: true},
	"SET":        {minArity: 2, maxArity: -1, writes: true},
	"SETNX":      {minArity: 2, maxArity: 2, writes: true},
	"SETEX":      {minArity: 3, maxArity: 3, writes: true},
	"DEL":        {minArity: 1, maxArity: -1, writes: true},
	"EXISTS":     {minArity: 1, maxArity: -1, writes: false, replicaOK: true},
	"EXPIRE":     {minArity: 2, maxArity: -1, writes: true},
	"TTL":        {minArity: 1, maxArity: 1, writes: false, replicaOK: true},
	"INCR":       {minArity: 1, maxArity: 1, writes: true},
	"INCRBY":     {minArity: 2, maxArity: 2, writes: true},
	"DECR":       {minArity: 1, maxArity: 1, writes: true},
	"APPEND":     {minArity: 2, maxArity: 2, writes: true},
	"STRLEN":     {minArity: 1, maxArity: 1, writes: false, replicaOK: true},
	"HSET":       {minArity: 3, maxArity: -1, writes: true},
	"HGET":       {minArity: 2, maxArity: 2, writes: false, replicaOK: true},
	"HGETALL":    {minArity: 1, maxArity: 1, writes: false, replicaOK: true},
	"HDEL":       {minArity: 2, maxArity: -1, writes: true},
	"HEXISTS":    {minArity: 2, maxArity: 2, writes: false, replicaOK: true},
	"HLEN":       {minArity: 1, maxArity: 1, writes: false, replicaOK: true},
	"LPUSH":      {minArity: 2, maxArity: -1, writes: true},
	"RPUSH":      {minArity: 2, maxArity: -1, writes: true},
	"LPOP":       {minArity: 1, maxArity: 2, writes: true},
	"RPOP":       {minArity: 1, maxArity: 2, writes: true},
	"LRANGE":     {minArity: 3, maxArity: 3, writes: false, replicaOK: true},
	"LINDEX":     {minArity: 2, maxArity: 2, writes: false, replicaOK: true},
	"SADD":       {minArity: 2, maxArity: -1, writes: true},
	"SREM":       {minArity: 2, maxArity: -1, writes: true},
	"SMEMBERS":   {minArity: 1, maxArity: 1, writes: false, replicaOK: true},
	"ZADD":       {minArity: 3, maxArity: -1, writes: true},
	"ZSCORE":     {minArity: 2, maxArity: 2, writes: false, replicaOK: true},
	"ZRANGE":     {minArity: 3, maxArity: -1, writes: false, replicaOK: true},
	"ZCOUNT":     {minArity: 3, maxArity: 3, writes: false, replicaOK: true},
	"ZRANGEBYLEX": {minArity: 3, maxArity: -1, writes: false, replicaOK: true},
	"GEOADD":     {minArity: 4, maxArity: -1, writes: true},
	"GEOPOS":     {minArity: 1, maxArity: -1, writes: false, replicaOK: true},
	"XADD":       {minArity: 4, maxArity: -1, writes: true},
	"XRANGE":     {minArity: 3, maxArity: -1, writes: false, replicaOK: true},
	"SCAN":       {minArity: 1, maxArity: -1, writes: false, admin: true, replicaOK: true, noKey: true},
	"HSCAN":      {minArity: 2, maxArity: -1, writes: false, replicaOK: true},
	"SSCAN":      {minArity: 2, maxArity: -1, writes: false, replicaOK: true},
	"ZSCAN":      {minArity: 2, maxArity: -1, writes: false, replicaOK: true},
	"PING":       {minArity: 0, maxArity: 1, writes: false, admin: true, replicaOK: true, noKey: true},
	"AUTH":       {minArity: 1, maxArity: 2, writes: false, admin: true, noKey: true},
	"HELLO":      {minArity: 0, maxArity: -1, writes: false, admin: true, noKey: true},
	"SELECT":     {minArity: 1, maxArity: 1, writes: false, admin: true, noKey: true},
	"CLIENT":     {minArity: 1, maxArity: -1, writes: false, admin: true, noKey: true},
	"CLUSTER":    {minArity: 1, maxArity: -1, writes: false, admin: true, replicaOK: true, noKey: true},
	"INFO":       {minArity: 0, maxArity: 1, writes: false, admin: true, replicaOK: true, noKey: true},
	"COMMAND":    {minArity: 0, maxArity: -1, writes: false, admin: true, noKey: true},
	"SUBSCRIBE":   {minArity: 1, maxArity: -1, writes: false, pubsub: true, noKey: true},
	"UNSUBSCRIBE": {minArity: 0, maxArity: -1, writes: false, pubsub: true, noKey: true},
	"PSUBSCRIBE":   {minArity: 1, maxArity: -1, writes: false, pubsub: true, noKey: true},
	"PUNSUBSCRIBE": {minArity: 0, maxArity: -1, writes: false, pubsub: true, noKey: true},
	"SSUBSCRIBE":   {minArity: 1, maxArity: -1, writes: false, pubsub: true, noKey: true},
	"SUNSUBSCRIBE": {minArity: 0, maxArity: -1, writes: false, pubsub: true, noKey: true},
	"PUBLISH":    {minArity: 2, maxArity: 2, writes: false, pubsub: true},
	"WATCH":      {minArity: 1, maxArity: -1, writes: false, admin: true},
	"UNWATCH":    {minArity: 0, maxArity: 0, writes: false, admin: true, noKey: true},
	"MULTI":      {minArity: 0, maxArity: 0, writes: false, admin: true, noKey: true},
	"EXEC":       {minArity: 0, maxArity: 0, writes: true, admin: true, txnTerm: true, noKey: true},
	"DISCARD":    {minArity: 0, maxArity: 0, writes: false, admin: true, txnTerm: true, noKey: true},
	"ASKING":     {minArity: 0, maxArity: 0, writes: false, admin: true, noKey: true},
	"EVAL":       {minArity: 2, maxArity: -1, writes: true, keyPos: 1},
	"EVALSHA":    {minArity: 2, maxArity: -1, writes: true, keyPos: 1},
	"SCRIPT":     {minArity: 1, maxArity: -1, writes: false, admin: true, noKey: true},
	"BITOP":      {minArity: 3, maxArity: -1, writes: true, keyPos: 1},
	"RANDOMKEY":  {minArity: 0, maxArity: 0, writes: false, replicaOK: true, noKey: true},
}

// Hint returns the client-side dispatch metadata for cmd, falling back
// to defaultHint ("writes, primary-only, non-admin") for unknown names.
func Hint(cmd string) (writes, admin, replicaOK, pubsub, txnTerminator bool) {
	h, ok := hints[cmd]
	if !ok {
		h = defaultHint
	}
	return h.writes, h.admin, h.replicaOK, h.pubsub, h.txnTerm
}
