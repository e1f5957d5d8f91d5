package llsd

import (
	"bytes"
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// Binary wire format: one tag byte per value, big-endian fixed-width
// payloads, 4-byte big-endian length prefixes for variable-width ones.
//
//	!        undefined
//	1 0      boolean true / false
//	i        int32
//	r        float64 bits
//	u        16 raw uuid bytes
//	d        float64 seconds since epoch
//	s l b    length-prefixed string / uri / raw bytes
//	[ ... ]  element count, then elements
//	{ k.. }  entry count, then (k + key, value) pairs
//
// A leading "<? LLSD/Binary ?>" header line is detected and skipped on
// decode. The escaped string forms '"' and '\'' are accepted on decode
// for compatibility; the encoder always emits the length-prefixed form.

// DefaultMaxDepth bounds array/map nesting on decode.
const DefaultMaxDepth = 128

const binaryHeaderMark = "LLSD/Binary"

// DecodeOptions configures the decoders of all formats.
type DecodeOptions struct {
	// MaxDepth caps container nesting; 0 means DefaultMaxDepth.
	MaxDepth int
}

func (o DecodeOptions) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

// MarshalBinary encodes a value. Encoding a well-formed Value cannot
// fail, so no error is returned.
func MarshalBinary(v *Value) []byte {
	return appendBinary(nil, v)
}

// AppendBinaryHeader prepends the optional binary header line.
func AppendBinaryHeader(encoded []byte) []byte {
	return append([]byte("<? "+binaryHeaderMark+" ?>\n"), encoded...)
}

func appendBinary(dst []byte, v *Value) []byte {
	switch v.Kind() {
	case KindUndefined:
		return append(dst, '!')
	case KindBoolean:
		if v.boolVal {
			return append(dst, '1')
		}
		return append(dst, '0')
	case KindInteger:
		dst = append(dst, 'i')
		return binary.BigEndian.AppendUint32(dst, uint32(v.intVal))
	case KindReal:
		dst = append(dst, 'r')
		return binary.BigEndian.AppendUint64(dst, math.Float64bits(v.realVal))
	case KindUUID:
		dst = append(dst, 'u')
		return append(dst, v.uuidVal[:]...)
	case KindDate:
		dst = append(dst, 'd')
		secs := float64(v.timeVal.Unix()) + float64(v.timeVal.Nanosecond())/1e9
		return binary.BigEndian.AppendUint64(dst, math.Float64bits(secs))
	case KindString:
		return appendSized(dst, 's', []byte(v.strVal))
	case KindURI:
		return appendSized(dst, 'l', []byte(v.strVal))
	case KindBinary:
		return appendSized(dst, 'b', v.binVal)
	case KindArray:
		dst = append(dst, '[')
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(v.arrVal)))
		for _, e := range v.arrVal {
			dst = appendBinary(dst, e)
		}
		return append(dst, ']')
	case KindMap:
		dst = append(dst, '{')
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(v.mapVal)))
		for _, e := range v.mapVal {
			dst = appendSized(dst, 'k', []byte(e.Key))
			dst = appendBinary(dst, e.Value)
		}
		return append(dst, '}')
	default:
		return append(dst, '!')
	}
}

func appendSized(dst []byte, tag byte, payload []byte) []byte {
	dst = append(dst, tag)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...)
}

// UnmarshalBinary decodes one value from the buffer. Trailing bytes
// after the root value are ignored.
func UnmarshalBinary(data []byte) (*Value, error) {
	return UnmarshalBinaryOptions(data, DecodeOptions{})
}

// UnmarshalBinaryOptions decodes with an explicit depth bound.
func UnmarshalBinaryOptions(data []byte, opts DecodeOptions) (*Value, error) {
	r := &binReader{data: data, maxDepth: opts.maxDepth()}
	if err := r.skipHeader(); err != nil {
		return nil, err
	}
	return r.readValue(0)
}

type binReader struct {
	data     []byte
	pos      int
	maxDepth int
}

func (r *binReader) remaining() int {
	return len(r.data) - r.pos
}

func (r *binReader) readByte() (byte, *Error) {
	if r.pos >= len(r.data) {
		return 0, newErr(ErrTruncated, "unexpected end of input").at(r.pos)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// take returns n raw bytes, bounds-checked against the remaining input
// before any allocation.
func (r *binReader) take(n int) ([]byte, *Error) {
	if n > r.remaining() {
		return nil, newErr(ErrTruncated, "need %d bytes, have %d", n, r.remaining()).at(r.pos)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *binReader) readU32() (uint32, *Error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *binReader) readF64() (float64, *Error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

func (r *binReader) readSized() ([]byte, *Error) {
	n, err := r.readU32()
	if err != nil {
		return nil, err
	}
	return r.take(int(n))
}

func (r *binReader) readUTF8(what string) (string, *Error) {
	start := r.pos
	b, err := r.readSized()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", newErr(ErrEncoding, "%s is not valid UTF-8", what).at(start)
	}
	return string(b), nil
}

func (r *binReader) skipHeader() *Error {
	if r.remaining() == 0 || r.data[r.pos] != '<' {
		return nil
	}
	end := bytes.IndexByte(r.data[r.pos:], '>')
	if end < 0 || !bytes.Contains(r.data[r.pos:r.pos+end+1], []byte(binaryHeaderMark)) {
		return newErr(ErrMalformed, "unexpected binary header").at(r.pos)
	}
	r.pos += end + 1
	for r.remaining() > 0 {
		switch r.data[r.pos] {
		case ' ', '\t', '\r', '\n':
			r.pos++
		default:
			return nil
		}
	}
	return nil
}

func (r *binReader) readValue(depth int) (*Value, error) {
	start := r.pos
	tag, err := r.readByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case '!':
		return Undefined(), nil
	case '1':
		return Boolean(true), nil
	case '0':
		return Boolean(false), nil
	case 'i':
		b, err := r.take(4)
		if err != nil {
			return nil, err
		}
		return Integer(int32(binary.BigEndian.Uint32(b))), nil
	case 'r':
		f, err := r.readF64()
		if err != nil {
			return nil, err
		}
		return Real(f), nil
	case 'u':
		b, err := r.take(16)
		if err != nil {
			return nil, err
		}
		var u [16]byte
		copy(u[:], b)
		return &Value{kind: KindUUID, uuidVal: u}, nil
	case 'd':
		f, err := r.readF64()
		if err != nil {
			return nil, err
		}
		return Date(dateFromEpoch(f)), nil
	case 's':
		s, err := r.readUTF8("string")
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case 'l':
		s, err := r.readUTF8("uri")
		if err != nil {
			return nil, err
		}
		return URI(s), nil
	case 'b':
		b, err := r.readSized()
		if err != nil {
			return nil, err
		}
		return Binary(append([]byte(nil), b...)), nil
	case '"', '\'':
		s, end, uerr := unescapeQuoted(r.data, r.pos, tag)
		if uerr != nil {
			return nil, uerr
		}
		r.pos = end
		return String(s), nil
	case '[':
		return r.readArray(depth)
	case '{':
		return r.readMap(depth)
	default:
		return nil, newErr(ErrUnknownTag, "unknown tag byte 0x%02x", tag).at(start)
	}
}

func (r *binReader) readArray(depth int) (*Value, error) {
	if depth >= r.maxDepth {
		return nil, newErr(ErrDepthExceeded, "nesting exceeds %d", r.maxDepth).at(r.pos - 1)
	}
	count, err := r.readU32()
	if err != nil {
		return nil, err
	}
	// One byte per element is the floor, so a count beyond the remaining
	// input can never complete.
	if int64(count) > int64(r.remaining()) {
		return nil, newErr(ErrTruncated, "array count %d exceeds remaining input", count).at(r.pos)
	}
	elems := make([]*Value, 0, count)
	for i := uint32(0); i < count; i++ {
		e, verr := r.readValue(depth + 1)
		if verr != nil {
			return nil, verr
		}
		elems = append(elems, e)
	}
	if err := r.expectClose(']'); err != nil {
		return nil, err
	}
	return Array(elems...), nil
}

func (r *binReader) readMap(depth int) (*Value, error) {
	if depth >= r.maxDepth {
		return nil, newErr(ErrDepthExceeded, "nesting exceeds %d", r.maxDepth).at(r.pos - 1)
	}
	count, err := r.readU32()
	if err != nil {
		return nil, err
	}
	if int64(count) > int64(r.remaining()) {
		return nil, newErr(ErrTruncated, "map count %d exceeds remaining input", count).at(r.pos)
	}
	m := &Value{kind: KindMap, mapVal: make([]MapEntry, 0, count)}
	for i := uint32(0); i < count; i++ {
		start := r.pos
		tag, berr := r.readByte()
		if berr != nil {
			return nil, berr
		}
		if tag != 'k' {
			return nil, newErr(ErrMalformed, "expected key tag 'k', got 0x%02x", tag).at(start)
		}
		key, kerr := r.readUTF8("map key")
		if kerr != nil {
			return nil, kerr
		}
		if m.Get(key) != nil {
			return nil, newErr(ErrDuplicateKey, "duplicate map key %q", key).at(start)
		}
		val, verr := r.readValue(depth + 1)
		if verr != nil {
			return nil, verr
		}
		m.mapVal = append(m.mapVal, MapEntry{Key: key, Value: val})
	}
	if err := r.expectClose('}'); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *binReader) expectClose(want byte) *Error {
	start := r.pos
	b, err := r.readByte()
	if err != nil {
		return err
	}
	if b != want {
		return newErr(ErrMalformed, "expected %q, got 0x%02x", want, b).at(start)
	}
	return nil
}
