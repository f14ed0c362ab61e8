package resp

import (
	"testing"

	"github.com/redikit/redikit/internal/ring"
)

func decodeAll(t *testing.T, proto Protocol, frame string) RawResult {
	t.Helper()
	d := &Decoder{Protocol: proto}
	var buf ring.Buffer
	buf.Grow([]byte(frame))
	v, err := d.Decode(&buf)
	if err != nil {
		t.Fatalf("decode(%q): %v", frame, err)
	}
	if buf.Len() != 0 {
		t.Fatalf("decode(%q) left %d trailing bytes", frame, buf.Len())
	}
	return v
}

func TestDecodeRESP2Basics(t *testing.T) {
	if v := decodeAll(t, RESP2, "+OK\r\n"); v.Kind != KindSimpleString || string(v.Bytes) != "OK" {
		t.Fatalf("simple string: %+v", v)
	}
	if v := decodeAll(t, RESP2, "-ERR boom\r\n"); v.Kind != KindError || string(v.Bytes) != "ERR boom" {
		t.Fatalf("error: %+v", v)
	}
	if v := decodeAll(t, RESP2, ":42\r\n"); v.Kind != KindInteger || v.Int != 42 {
		t.Fatalf("integer: %+v", v)
	}
	if v := decodeAll(t, RESP2, "$-1\r\n"); !v.Null() {
		t.Fatalf("null bulk string should be Null(): %+v", v)
	}
	if v := decodeAll(t, RESP2, "$0\r\n\r\n"); v.Null() || v.Kind != KindBulkString || len(v.Bytes) != 0 {
		t.Fatalf("empty bulk string must not equal null bulk string: %+v", v)
	}
	if v := decodeAll(t, RESP2, "*-1\r\n"); !v.Null() {
		t.Fatalf("null array should be Null(): %+v", v)
	}
	if v := decodeAll(t, RESP2, "*0\r\n"); v.Null() || v.Kind != KindArray || len(v.Array) != 0 {
		t.Fatalf("empty array must not equal null array: %+v", v)
	}
}

func TestDecodeRESP3Additions(t *testing.T) {
	if v := decodeAll(t, RESP3, "#t\r\n"); v.Kind != KindBoolean || !v.Bool {
		t.Fatalf("boolean true: %+v", v)
	}
	if v := decodeAll(t, RESP3, ",3.14\r\n"); v.Kind != KindDouble || v.Double != 3.14 {
		t.Fatalf("double: %+v", v)
	}
	if v := decodeAll(t, RESP3, ",nan\r\n"); v.Kind != KindDouble || !isNaN(v.Double) {
		t.Fatalf("nan double: %+v", v)
	}
	if v := decodeAll(t, RESP3, "(3492890328409238509324850943850943825024385\r\n"); v.Kind != KindBigNumber {
		t.Fatalf("bignumber: %+v", v)
	}
	if v := decodeAll(t, RESP3, "=15\r\ntxt:Some string\r\n"); v.Kind != KindVerbatimString || string(v.VerbatimFormat[:]) != "txt" || string(v.Bytes) != "Some string" {
		t.Fatalf("verbatim: %+v", v)
	}
	if v := decodeAll(t, RESP3, "_\r\n"); !v.Null() {
		t.Fatalf("resp3 null: %+v", v)
	}
	if v := decodeAll(t, RESP3, "%2\r\n$1\r\na\r\n:1\r\n$1\r\nb\r\n:2\r\n"); v.Kind != KindMap || len(v.Array) != 4 {
		t.Fatalf("map: %+v", v)
	}
	if v := decodeAll(t, RESP3, "~2\r\n:1\r\n:2\r\n"); v.Kind != KindSet || len(v.Array) != 2 {
		t.Fatalf("set: %+v", v)
	}
	if v := decodeAll(t, RESP3, ">2\r\n$7\r\nmessage\r\n$2\r\nhi\r\n"); v.Kind != KindPush || len(v.Array) != 2 {
		t.Fatalf("push: %+v", v)
	}
}

func TestDecodeRESP3MarkerRejectedUnderRESP2(t *testing.T) {
	d := &Decoder{Protocol: RESP2}
	var buf ring.Buffer
	buf.Grow([]byte("#t\r\n"))
	if _, err := d.Decode(&buf); err == nil {
		t.Fatalf("expected hard error decoding RESP3 marker under RESP2")
	}
}

func TestAttributesDoNotOccupyASlot(t *testing.T) {
	var seen []RawResult
	d := &Decoder{Protocol: RESP3, AttributeHandler: func(r RawResult) { seen = append(seen, r) }}
	var buf ring.Buffer
	buf.Grow([]byte("*2\r\n|1\r\n$3\r\nttl\r\n:10\r\n$1\r\na\r\n$1\r\nb\r\n"))
	v, err := d.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Kind != KindArray || len(v.Array) != 2 {
		t.Fatalf("attribute ate a slot: %+v", v)
	}
	if len(seen) != 1 {
		t.Fatalf("expected one attribute callback, got %d", len(seen))
	}
}

func TestDecoderProgressOnSplitFrames(t *testing.T) {
	whole := []byte("*3\r\n:1\r\n:2\r\n:3\r\n")
	for split := 0; split < len(whole); split++ {
		d := &Decoder{Protocol: RESP2}
		var buf ring.Buffer
		buf.Grow(whole[:split])
		before := buf.Mark()
		_, err := d.Decode(&buf)
		if err == nil {
			continue // lucky split landed on a frame boundary later tested anyway
		}
		if buf.Mark() != before {
			t.Fatalf("split=%d: partial decode moved the cursor despite ErrNeedMore", split)
		}
		buf.Grow(whole[split:])
		v, err := d.Decode(&buf)
		if err != nil {
			t.Fatalf("split=%d: decode after completing frame: %v", split, err)
		}
		if len(v.Array) != 3 || v.Array[2].Int != 3 {
			t.Fatalf("split=%d: wrong result %+v", split, v)
		}
	}
}

func TestEncodeCommandShortestDecimal(t *testing.T) {
	buf, err := AppendCommand(nil, "SET", []interface{}{"foo", 42, 3.5})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := "*4\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$2\r\n42\r\n$3\r\n3.5\r\n"
	if string(buf) != want {
		t.Fatalf("got %q, want %q", buf, want)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	buf, err := AppendCommand(nil, "GET", []interface{}{"foo"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	d := &Decoder{Protocol: RESP2}
	var rb ring.Buffer
	rb.Grow(buf)
	v, err := d.Decode(&rb)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Kind != KindArray || len(v.Array) != 2 {
		t.Fatalf("unexpected shape: %+v", v)
	}
	if string(v.Array[0].Bytes) != "GET" || string(v.Array[1].Bytes) != "foo" {
		t.Fatalf("unexpected payload: %+v", v)
	}
}

func isNaN(f float64) bool { return f != f }
