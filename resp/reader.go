package resp

import (
	"fmt"

	"github.com/redikit/redikit/internal/ring"
)

// DecodeError reports a malformed frame and the token class the
// decoder expected to find. Decoder leaves Offset at zero, and the
// bridge wraps a DecodeError without attaching any command id.
type DecodeError struct {
	Offset   int
	Expected string
	Err      error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resp: decode error at offset %d, expected %s: %s", e.Offset, e.Expected, e.Err)
	}
	return fmt.Sprintf("resp: decode error at offset %d, expected %s", e.Offset, e.Expected)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder decodes RESP2 or RESP3 frames out of a ring.Buffer. It holds
// no socket state of its own: callers Grow the buffer as bytes arrive
// and call Decode once per expected frame, exactly like bufio.Scanner's
// underlying contract, so that a partial frame ("need more bytes")
// never advances the buffer position (the decoder progress invariant).
type Decoder struct {
	// Protocol gates whether RESP3-only type markers are accepted. A
	// RESP3 marker seen while Protocol == RESP2 is a hard decode error
	// (§4.B "Downgrade").
	Protocol Protocol

	// AttributeHandler, if set, receives every RESP3 attribute frame
	// decoded at any nesting level. Attributes never occupy a slot in
	// their parent's declared length; if AttributeHandler is nil,
	// attributes are decoded and discarded.
	AttributeHandler func(RawResult)
}

// Decode reads exactly one frame (recursively decoding any nested
// array/map/set/push elements) from buf. It returns ring.ErrNeedMore,
// leaving buf's read position exactly where it was before the call, if
// the frame is not fully buffered yet -- even when some of its nested
// elements were individually complete, per the decoder progress
// invariant.
func (d *Decoder) Decode(buf *ring.Buffer) (RawResult, error) {
	mark := buf.Mark()
	v, err := d.decodeValue(buf)
	if err != nil {
		buf.Rewind(mark)
		return RawResult{}, err
	}
	return v, nil
}

func (d *Decoder) decodeValue(buf *ring.Buffer) (RawResult, error) {
	for {
		b, ok := buf.Peek()
		if !ok {
			return RawResult{}, ring.ErrNeedMore
		}
		if b != typeAttribute || d.Protocol < RESP3 {
			// Under RESP2 decodeTagged rejects the attribute marker too.
			return d.decodeTagged(buf, b)
		}
		attr, err := d.decodeMapBody(buf, KindMap)
		if err != nil {
			return RawResult{}, err
		}
		if d.AttributeHandler != nil {
			d.AttributeHandler(attr)
		}
		// loop: the real value for this slot follows the attribute frame.
	}
}

func (d *Decoder) decodeTagged(buf *ring.Buffer, tag byte) (RawResult, error) {
	if d.Protocol < RESP3 {
		switch tag {
		case typeMap, typeSet, typePush, typeDouble, typeBoolean, typeBigNumber, typeVerbatimString, typeNull, typeAttribute:
			return RawResult{}, &DecodeError{Expected: "RESP2 frame", Err: fmt.Errorf("unexpected RESP3 marker %q while negotiated as RESP2", tag)}
		}
	}

	switch tag {
	case typeSimpleString:
		return d.decodeLine(buf, KindSimpleString)
	case typeError:
		return d.decodeLine(buf, KindError)
	case typeInteger:
		return d.decodeInteger(buf)
	case typeBulkString:
		return d.decodeBulkString(buf)
	case typeArray:
		return d.decodeArray(buf, KindArray)
	case typeMap:
		return d.decodeMapBody(buf, KindMap)
	case typeSet:
		return d.decodeArray(buf, KindSet)
	case typePush:
		return d.decodeArray(buf, KindPush)
	case typeDouble:
		return d.decodeDouble(buf)
	case typeBoolean:
		return d.decodeBoolean(buf)
	case typeBigNumber:
		return d.decodeBigNumber(buf)
	case typeVerbatimString:
		return d.decodeVerbatim(buf)
	case typeNull:
		return d.decodeNull(buf)
	default:
		return RawResult{}, &DecodeError{Expected: "type marker", Err: fmt.Errorf("unknown header byte %q", tag)}
	}
}

func (d *Decoder) decodeLine(buf *ring.Buffer, kind Kind) (RawResult, error) {
	line, err := buf.Line()
	if err != nil {
		return RawResult{}, err
	}
	// line includes the leading type byte; drop it.
	return RawResult{Kind: kind, Bytes: append([]byte(nil), line[1:]...)}, nil
}

func (d *Decoder) decodeInteger(buf *ring.Buffer) (RawResult, error) {
	line, err := buf.Line()
	if err != nil {
		return RawResult{}, err
	}
	v, perr := ring.ParseInt(line[1:])
	if perr != nil {
		return RawResult{}, &DecodeError{Expected: "integer", Err: perr}
	}
	return RawResult{Kind: KindInteger, Int: v}, nil
}

func (d *Decoder) decodeDouble(buf *ring.Buffer) (RawResult, error) {
	line, err := buf.Line()
	if err != nil {
		return RawResult{}, err
	}
	v, perr := ring.ParseDouble(line[1:])
	if perr != nil {
		return RawResult{}, &DecodeError{Expected: "double", Err: perr}
	}
	return RawResult{Kind: KindDouble, Double: v}, nil
}

func (d *Decoder) decodeBoolean(buf *ring.Buffer) (RawResult, error) {
	line, err := buf.Line()
	if err != nil {
		return RawResult{}, err
	}
	if len(line) != 2 {
		return RawResult{}, &DecodeError{Expected: "boolean", Err: fmt.Errorf("malformed boolean line %q", line)}
	}
	switch line[1] {
	case 't':
		return RawResult{Kind: KindBoolean, Bool: true}, nil
	case 'f':
		return RawResult{Kind: KindBoolean, Bool: false}, nil
	default:
		return RawResult{}, &DecodeError{Expected: "boolean", Err: fmt.Errorf("malformed boolean marker %q", line[1])}
	}
}

func (d *Decoder) decodeBigNumber(buf *ring.Buffer) (RawResult, error) {
	line, err := buf.Line()
	if err != nil {
		return RawResult{}, err
	}
	return RawResult{Kind: KindBigNumber, Bytes: append([]byte(nil), line[1:]...)}, nil
}

func (d *Decoder) decodeBulkString(buf *ring.Buffer) (RawResult, error) {
	line, err := buf.Line()
	if err != nil {
		return RawResult{}, err
	}
	n, perr := ring.ParseInt(line[1:])
	if perr != nil {
		return RawResult{}, &DecodeError{Expected: "bulk string length", Err: perr}
	}
	if n < 0 {
		return RawResult{Kind: KindNull, IsNull: true}, nil
	}
	payload, terr := buf.Take(int(n))
	if terr != nil {
		return RawResult{}, terr
	}
	return RawResult{Kind: KindBulkString, Bytes: append([]byte(nil), payload...)}, nil
}

func (d *Decoder) decodeVerbatim(buf *ring.Buffer) (RawResult, error) {
	line, err := buf.Line()
	if err != nil {
		return RawResult{}, err
	}
	n, perr := ring.ParseInt(line[1:])
	if perr != nil {
		return RawResult{}, &DecodeError{Expected: "verbatim string length", Err: perr}
	}
	payload, terr := buf.Take(int(n))
	if terr != nil {
		return RawResult{}, terr
	}
	if len(payload) < 4 || payload[3] != ':' {
		return RawResult{}, &DecodeError{Expected: "verbatim string format tag", Err: fmt.Errorf("malformed verbatim payload %q", payload)}
	}
	res := RawResult{Kind: KindVerbatimString, Bytes: append([]byte(nil), payload[4:]...)}
	copy(res.VerbatimFormat[:], payload[:3])
	return res, nil
}

func (d *Decoder) decodeNull(buf *ring.Buffer) (RawResult, error) {
	if _, err := buf.Line(); err != nil {
		return RawResult{}, err
	}
	return RawResult{Kind: KindNull, IsNull: true}, nil
}

func (d *Decoder) decodeArray(buf *ring.Buffer, kind Kind) (RawResult, error) {
	line, err := buf.Line()
	if err != nil {
		return RawResult{}, err
	}
	n, perr := ring.ParseInt(line[1:])
	if perr != nil {
		return RawResult{}, &DecodeError{Expected: "array length", Err: perr}
	}
	if n < 0 {
		return RawResult{Kind: KindArray, IsNull: true}, nil
	}
	elems, derr := d.decodeN(buf, int(n))
	if derr != nil {
		return RawResult{}, derr
	}
	return RawResult{Kind: kind, Array: elems}, nil
}

// decodeMapBody decodes a RESP3 map or attribute frame: a declared
// pair count N followed by 2N elements, stored flattened key/value in
// Array.
func (d *Decoder) decodeMapBody(buf *ring.Buffer, kind Kind) (RawResult, error) {
	line, err := buf.Line()
	if err != nil {
		return RawResult{}, err
	}
	n, perr := ring.ParseInt(line[1:])
	if perr != nil {
		return RawResult{}, &DecodeError{Expected: "map pair count", Err: perr}
	}
	if n < 0 {
		return RawResult{Kind: kind, IsNull: true}, nil
	}
	elems, derr := d.decodeN(buf, int(n)*2)
	if derr != nil {
		return RawResult{}, derr
	}
	return RawResult{Kind: kind, Array: elems}, nil
}

// decodeN decodes exactly n sibling values. Rewinding on a partial
// decode is handled once, at the top of Decode.
func (d *Decoder) decodeN(buf *ring.Buffer, n int) ([]RawResult, error) {
	elems := make([]RawResult, 0, n)
	for i := 0; i < n; i++ {
		v, err := d.decodeValue(buf)
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)
	}
	return elems, nil
}
