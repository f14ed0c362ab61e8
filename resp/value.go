package resp

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind tags the wire shape a RawResult was decoded from. It is a closed
// set mirroring the RESP2/RESP3 grammar exactly, per the data model's
// "tagged union of the RESP wire shapes".
type Kind byte

const (
	KindNull Kind = iota
	KindSimpleString
	KindError
	KindInteger
	KindBulkString
	KindArray
	KindMap
	KindSet
	KindPush
	KindDouble
	KindBoolean
	KindBigNumber
	KindVerbatimString
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindSimpleString:
		return "SimpleString"
	case KindError:
		return "Error"
	case KindInteger:
		return "Integer"
	case KindBulkString:
		return "BulkString"
	case KindArray:
		return "Array"
	case KindMap:
		return "Map"
	case KindSet:
		return "Set"
	case KindPush:
		return "Push"
	case KindDouble:
		return "Double"
	case KindBoolean:
		return "Boolean"
	case KindBigNumber:
		return "BigNumber"
	case KindVerbatimString:
		return "VerbatimString"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

// RawResult is the decoded, un-interpreted shape of a single RESP
// frame. Exactly one of the payload fields is meaningful for a given
// Kind:
//
//	KindSimpleString, KindError      -> Bytes (text, no CRLF)
//	KindInteger                      -> Int
//	KindBulkString, KindVerbatimString -> Bytes (the null bulk string decodes as KindNull with IsNull set)
//	KindArray, KindSet                -> Array
//	KindMap                           -> Array, always even length, alternating key/value
//	KindPush                          -> Array; Array[0] is conventionally the push type
//	KindDouble                        -> Double
//	KindBoolean                       -> Bool
//	KindBigNumber                     -> Bytes holds the decimal text
//
// A Null array (RESP "*-1\r\n") and an empty array ("*0\r\n") are both
// represented with Kind == KindArray; IsNull distinguishes them, per
// the invariant that the two are never conflated.
type RawResult struct {
	Kind   Kind
	IsNull bool

	Int    int64
	Double float64
	Bool   bool
	Bytes  []byte
	Array  []RawResult

	// VerbatimFormat holds the 3-byte format tag ("txt", "mkd", ...)
	// for KindVerbatimString.
	VerbatimFormat [3]byte

	// Attrs is reserved for a RESP3 attribute frame preceding this
	// value. Decoder never sets it, so it is always nil: attributes
	// reach callers only through Decoder.AttributeHandler. Per §9 the
	// end-user surface for attributes beyond logging is deliberately
	// left as that handler.
	Attrs *RawResult
}

// Null reports whether this result represents the RESP null value,
// however it was spelled on the wire (RESP2 "$-1"/"*-1" or RESP3 "_").
func (r RawResult) Null() bool {
	return r.Kind == KindNull || r.IsNull
}

// BigNumber parses a KindBigNumber payload into an arbitrary-precision
// decimal. It is an error to call this on any other Kind.
func (r RawResult) BigNumber() (decimal.Decimal, error) {
	if r.Kind != KindBigNumber {
		return decimal.Decimal{}, fmt.Errorf("resp: BigNumber called on %s", r.Kind)
	}
	return decimal.NewFromString(string(r.Bytes))
}
