package resp

import (
	"fmt"
	"strconv"
)

// AppendCommand serializes cmd and its args as a RESP command frame
// ("*N\r\n" followed by N bulk strings) onto buf and returns the
// extended slice. Numeric arguments are rendered in shortest decimal
// form; this client never emits the inline (space-delimited) encoding.
func AppendCommand(buf []byte, cmd string, args []interface{}) ([]byte, error) {
	buf = appendHeader(buf, typeArray, int64(len(args)+1))
	buf = appendBulkString(buf, cmd)
	for _, arg := range args {
		var err error
		buf, err = appendArg(buf, arg)
		if err != nil {
			return nil, fmt.Errorf("resp: command %q: %w", cmd, err)
		}
	}
	return buf, nil
}

func appendArg(buf []byte, arg interface{}) ([]byte, error) {
	switch v := arg.(type) {
	case string:
		return appendBulkString(buf, v), nil
	case []byte:
		return appendBulkBytes(buf, v), nil
	case bool:
		if v {
			return appendBulkString(buf, "1"), nil
		}
		return appendBulkString(buf, "0"), nil
	case nil:
		return appendBulkString(buf, ""), nil
	case int:
		return appendBulkInt(buf, int64(v)), nil
	case int8:
		return appendBulkInt(buf, int64(v)), nil
	case int16:
		return appendBulkInt(buf, int64(v)), nil
	case int32:
		return appendBulkInt(buf, int64(v)), nil
	case int64:
		return appendBulkInt(buf, v), nil
	case uint:
		return appendBulkInt(buf, int64(v)), nil
	case uint8:
		return appendBulkInt(buf, int64(v)), nil
	case uint16:
		return appendBulkInt(buf, int64(v)), nil
	case uint32:
		return appendBulkInt(buf, int64(v)), nil
	case uint64:
		return appendBulkInt(buf, int64(v)), nil
	case float32:
		return appendBulkString(buf, strconv.FormatFloat(float64(v), 'f', -1, 32)), nil
	case float64:
		return appendBulkString(buf, strconv.FormatFloat(v, 'f', -1, 64)), nil
	case fmt.Stringer:
		return appendBulkString(buf, v.String()), nil
	default:
		return nil, fmt.Errorf("argument type %T is not serializable", arg)
	}
}

func appendHeader(buf []byte, tag byte, n int64) []byte {
	buf = append(buf, tag)
	buf = strconv.AppendInt(buf, n, 10)
	return append(buf, '\r', '\n')
}

func appendBulkString(buf []byte, s string) []byte {
	buf = appendHeader(buf, typeBulkString, int64(len(s)))
	buf = append(buf, s...)
	return append(buf, '\r', '\n')
}

func appendBulkBytes(buf []byte, s []byte) []byte {
	buf = appendHeader(buf, typeBulkString, int64(len(s)))
	buf = append(buf, s...)
	return append(buf, '\r', '\n')
}

func appendBulkInt(buf []byte, v int64) []byte {
	return appendBulkString(buf, strconv.FormatInt(v, 10))
}
