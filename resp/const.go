// Package resp implements the RESP2/RESP3 wire codec: encoding outbound
// command frames and decoding inbound frames into a RawResult. It is the
// streaming parser/writer described as the byte buffer & token layer
// plus the codec itself; everything above the wire shape (error
// classification, typed result extraction) lives in package redis.
package resp

// Wire type markers, dispatched on in Decoder.decodeValue.
const (
	typeSimpleString   = '+'
	typeError          = '-'
	typeInteger        = ':'
	typeBulkString     = '$'
	typeArray          = '*'
	typeMap            = '%'
	typeSet            = '~'
	typePush           = '>'
	typeDouble         = ','
	typeBoolean        = '#'
	typeBigNumber      = '('
	typeVerbatimString = '='
	typeNull           = '_'
	typeAttribute      = '|'
)

// Prebuilt one-shot command frames used during the bridge handshake,
// where allocating through AppendCommand would be wasted effort.
const (
	PingFrame    = "*1\r\n$4\r\nPING\r\n"
	AskingFrame  = "*1\r\n$6\r\nASKING\r\n"
	MultiFrame   = "*1\r\n$5\r\nMULTI\r\n"
	ExecFrame    = "*1\r\n$4\r\nEXEC\r\n"
	DiscardFrame = "*1\r\n$7\r\nDISCARD\r\n"
)

// Protocol identifies which RESP generation a bridge has negotiated.
type Protocol int

const (
	RESP2 Protocol = 2
	RESP3 Protocol = 3
)
