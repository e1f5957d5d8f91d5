package llsd

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Notation is the compact human-typeable text form:
//
//	!                undefined
//	true / false     boolean (1 / 0 with DigitBoolean)
//	i42              integer
//	r3.14            real (rnan, rinf, r-inf for non-finite)
//	u<uuid>          uuid, canonical hyphenated hex
//	'text'           string, backslash-escaped
//	d"RFC3339"       date
//	l"uri"           uri
//	b64"...."        binary (b16"HEX" with HexBinary; b(len)"raw" accepted)
//	[v,v,...]        array
//	{'k':v,...}      map
//
// Commas between elements are optional on parse; whitespace separates.

// NotationOptions configures the notation printer.
type NotationOptions struct {
	// Pretty adds newlines and indentation.
	Pretty bool

	// Indent string for pretty mode (default "  ").
	Indent string

	// DigitBoolean prints booleans as 1/0 instead of true/false.
	DigitBoolean bool

	// HexBinary prints binary as b16"HEX" instead of b64"...".
	HexBinary bool
}

// DefaultNotationOptions returns the canonical printer settings.
func DefaultNotationOptions() NotationOptions {
	return NotationOptions{Indent: "  "}
}

// MarshalNotation prints a value in canonical notation.
func MarshalNotation(v *Value) []byte {
	return MarshalNotationOptions(v, DefaultNotationOptions())
}

// MarshalNotationOptions prints with custom options.
func MarshalNotationOptions(v *Value, opts NotationOptions) []byte {
	if opts.Indent == "" {
		opts.Indent = "  "
	}
	e := &notationEmitter{opts: opts}
	e.emit(v, 0)
	return e.out
}

type notationEmitter struct {
	out  []byte
	opts NotationOptions
}

func (e *notationEmitter) emit(v *Value, depth int) {
	switch v.Kind() {
	case KindUndefined:
		e.out = append(e.out, '!')
	case KindBoolean:
		e.out = append(e.out, notationBool(v.boolVal, e.opts.DigitBoolean)...)
	case KindInteger:
		e.out = append(e.out, 'i')
		e.out = strconv.AppendInt(e.out, int64(v.intVal), 10)
	case KindReal:
		e.out = append(e.out, 'r')
		e.out = append(e.out, formatReal(v.realVal)...)
	case KindUUID:
		e.out = append(e.out, 'u')
		e.out = append(e.out, v.uuidVal.String()...)
	case KindString:
		e.out = append(e.out, '\'')
		e.out = appendEscaped(e.out, v.strVal)
		e.out = append(e.out, '\'')
	case KindDate:
		e.out = append(e.out, 'd', '"')
		e.out = append(e.out, formatDate(v.timeVal)...)
		e.out = append(e.out, '"')
	case KindURI:
		e.out = append(e.out, 'l', '"')
		e.out = appendEscaped(e.out, v.strVal)
		e.out = append(e.out, '"')
	case KindBinary:
		if e.opts.HexBinary {
			e.out = append(e.out, 'b', '1', '6', '"')
			const hexdigits = "0123456789ABCDEF"
			for _, b := range v.binVal {
				e.out = append(e.out, hexdigits[b>>4], hexdigits[b&0x0f])
			}
		} else {
			e.out = append(e.out, 'b', '6', '4', '"')
			e.out = append(e.out, base64.StdEncoding.EncodeToString(v.binVal)...)
		}
		e.out = append(e.out, '"')
	case KindArray:
		e.emitArray(v, depth)
	case KindMap:
		e.emitMap(v, depth)
	}
}

func (e *notationEmitter) emitArray(v *Value, depth int) {
	e.out = append(e.out, '[')
	for i, elem := range v.arrVal {
		if i > 0 {
			e.out = append(e.out, ',')
		}
		e.newline(depth + 1)
		e.emit(elem, depth+1)
	}
	if len(v.arrVal) > 0 {
		e.newline(depth)
	}
	e.out = append(e.out, ']')
}

func (e *notationEmitter) emitMap(v *Value, depth int) {
	e.out = append(e.out, '{')
	for i, entry := range v.mapVal {
		if i > 0 {
			e.out = append(e.out, ',')
		}
		e.newline(depth + 1)
		e.out = append(e.out, '\'')
		e.out = appendEscaped(e.out, entry.Key)
		e.out = append(e.out, '\'', ':')
		e.emit(entry.Value, depth+1)
	}
	if len(v.mapVal) > 0 {
		e.newline(depth)
	}
	e.out = append(e.out, '}')
}

func (e *notationEmitter) newline(depth int) {
	if !e.opts.Pretty {
		return
	}
	e.out = append(e.out, '\n')
	for i := 0; i < depth; i++ {
		e.out = append(e.out, e.opts.Indent...)
	}
}

func notationBool(b, digit bool) string {
	switch {
	case digit && b:
		return "1"
	case digit:
		return "0"
	case b:
		return "true"
	default:
		return "false"
	}
}

// ============================================================
// Parser
// ============================================================

// UnmarshalNotation parses one notation value. Empty or all-whitespace
// input yields Undefined. Trailing input past the value is ignored.
func UnmarshalNotation(data []byte) (*Value, error) {
	return UnmarshalNotationOptions(data, DecodeOptions{})
}

// UnmarshalNotationOptions parses with an explicit depth bound.
func UnmarshalNotationOptions(data []byte, opts DecodeOptions) (*Value, error) {
	p := &notationParser{data: data, maxDepth: opts.maxDepth()}
	p.skipWhitespace()
	if p.pos >= len(p.data) {
		return Undefined(), nil
	}
	return p.parseValue(0)
}

type notationParser struct {
	data     []byte
	pos      int
	maxDepth int
}

func (p *notationParser) skipWhitespace() {
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.pos++
		default:
			return
		}
	}
}

func (p *notationParser) peek() (byte, bool) {
	if p.pos >= len(p.data) {
		return 0, false
	}
	return p.data[p.pos], true
}

// parseValue consumes exactly one value, leaving the cursor at the first
// byte past it.
func (p *notationParser) parseValue(depth int) (*Value, error) {
	if depth >= p.maxDepth {
		return nil, newErr(ErrDepthExceeded, "nesting exceeds %d", p.maxDepth).at(p.pos)
	}
	p.skipWhitespace()
	c, ok := p.peek()
	if !ok {
		return nil, newErr(ErrTruncated, "unexpected end of input").at(p.pos)
	}
	switch c {
	case '!':
		p.pos++
		return Undefined(), nil
	case '0':
		p.pos++
		return Boolean(false), nil
	case '1':
		p.pos++
		return Boolean(true), nil
	case 't', 'T':
		p.pos++
		if err := p.literalTail("rue"); err != nil {
			return nil, err
		}
		return Boolean(true), nil
	case 'f', 'F':
		p.pos++
		if err := p.literalTail("alse"); err != nil {
			return nil, err
		}
		return Boolean(false), nil
	case 'i', 'I':
		p.pos++
		return p.parseInteger()
	case 'r', 'R':
		p.pos++
		return p.parseReal()
	case 'u', 'U':
		p.pos++
		return p.parseUUID()
	case '\'', '"':
		p.pos++
		s, err := p.unescape(c)
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case 'l', 'L':
		p.pos++
		if err := p.expect('"'); err != nil {
			return nil, err
		}
		s, err := p.unescape('"')
		if err != nil {
			return nil, err
		}
		return URI(s), nil
	case 'd', 'D':
		p.pos++
		if err := p.expect('"'); err != nil {
			return nil, err
		}
		start := p.pos
		s, err := p.unescape('"')
		if err != nil {
			return nil, err
		}
		t, terr := parseDate(s)
		if terr != nil {
			return nil, newErr(ErrMalformed, "invalid date literal %q", s).at(start)
		}
		return Date(t), nil
	case 'b', 'B':
		p.pos++
		return p.parseBinary()
	case '[':
		p.pos++
		return p.parseArray(depth)
	case '{':
		p.pos++
		return p.parseMap(depth)
	default:
		return nil, newErr(ErrUnknownTag, "no value starts with %q", c).at(p.pos)
	}
}

// literalTail consumes the remainder of a keyword, case-insensitively.
// A bare sigil at end of input or before a delimiter is accepted, the
// way the short forms t and f are.
func (p *notationParser) literalTail(tail string) *Error {
	for i := 0; i < len(tail); i++ {
		c, ok := p.peek()
		if !ok || isNotationDelim(c) {
			if i == 0 {
				return nil
			}
			return newErr(ErrMalformed, "incomplete literal").at(p.pos)
		}
		if c != tail[i] && c != tail[i]-('a'-'A') {
			return newErr(ErrMalformed, "unexpected byte %q in literal", c).at(p.pos)
		}
		p.pos++
	}
	return nil
}

func isNotationDelim(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', ',', ']', '}', ':':
		return true
	}
	return false
}

func (p *notationParser) parseInteger() (*Value, error) {
	start := p.pos
	if c, ok := p.peek(); ok && (c == '-' || c == '+') {
		p.pos++
	}
	for {
		c, ok := p.peek()
		if !ok || c < '0' || c > '9' {
			break
		}
		p.pos++
	}
	lit := string(p.data[start:p.pos])
	n, err := strconv.ParseInt(lit, 10, 32)
	if err != nil {
		return nil, newErr(ErrMalformed, "invalid integer literal %q", lit).at(start)
	}
	return Integer(int32(n)), nil
}

func (p *notationParser) parseReal() (*Value, error) {
	start := p.pos
	for _, lit := range []string{"nan", "inf", "-inf"} {
		if p.matchFold(lit) {
			switch lit {
			case "nan":
				return Real(math.NaN()), nil
			case "inf":
				return Real(math.Inf(1)), nil
			default:
				return Real(math.Inf(-1)), nil
			}
		}
	}
	for {
		c, ok := p.peek()
		if !ok {
			break
		}
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' {
			p.pos++
			continue
		}
		break
	}
	lit := string(p.data[start:p.pos])
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return nil, newErr(ErrMalformed, "invalid real literal %q", lit).at(start)
	}
	return Real(f), nil
}

func (p *notationParser) matchFold(lit string) bool {
	if p.pos+len(lit) > len(p.data) {
		return false
	}
	for i := 0; i < len(lit); i++ {
		c := p.data[p.pos+i]
		if c|0x20 != lit[i] && c != lit[i] {
			return false
		}
	}
	p.pos += len(lit)
	return true
}

func (p *notationParser) parseUUID() (*Value, error) {
	start := p.pos
	for {
		c, ok := p.peek()
		if !ok {
			break
		}
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') || c == '-' {
			p.pos++
			continue
		}
		break
	}
	lit := string(p.data[start:p.pos])
	u, err := uuid.Parse(lit)
	if err != nil {
		return nil, newErr(ErrMalformed, "invalid uuid literal %q", lit).at(start)
	}
	return UUID(u), nil
}

func (p *notationParser) parseBinary() (*Value, error) {
	start := p.pos - 1
	c, ok := p.peek()
	if !ok {
		return nil, newErr(ErrTruncated, "unexpected end of binary literal").at(p.pos)
	}
	switch c {
	case '6': // b64"...."
		p.pos++
		if err := p.expect('4'); err != nil {
			return nil, err
		}
		if err := p.expect('"'); err != nil {
			return nil, err
		}
		lit, err := p.scanUntil('"')
		if err != nil {
			return nil, err
		}
		raw, derr := base64.StdEncoding.DecodeString(lit)
		if derr != nil {
			return nil, newErr(ErrEncoding, "invalid base64: %v", derr).at(start)
		}
		return Binary(raw), nil
	case '1': // b16"HEX"
		p.pos++
		if err := p.expect('6'); err != nil {
			return nil, err
		}
		if err := p.expect('"'); err != nil {
			return nil, err
		}
		var raw []byte
		for {
			c, ok := p.peek()
			if !ok {
				return nil, newErr(ErrUnterminated, "binary literal missing closing quote").at(start)
			}
			p.pos++
			if c == '"' {
				return Binary(raw), nil
			}
			hi, herr := hexNibble(c)
			if herr != nil {
				return nil, herr.at(p.pos - 1)
			}
			lc, ok := p.peek()
			if !ok {
				return nil, newErr(ErrUnterminated, "binary literal missing closing quote").at(start)
			}
			p.pos++
			lo, herr := hexNibble(lc)
			if herr != nil {
				return nil, herr.at(p.pos - 1)
			}
			raw = append(raw, hi<<4|lo)
		}
	case '(': // b(len)"raw bytes"
		p.pos++
		digits, err := p.scanUntil(')')
		if err != nil {
			return nil, err
		}
		n, aerr := strconv.Atoi(digits)
		if aerr != nil {
			return nil, newErr(ErrMalformed, "invalid binary length %q", digits).at(start)
		}
		if err := p.expect('"'); err != nil {
			return nil, err
		}
		if n > len(p.data)-p.pos {
			return nil, newErr(ErrTruncated, "binary length %d exceeds remaining input", n).at(p.pos)
		}
		raw := append([]byte(nil), p.data[p.pos:p.pos+n]...)
		p.pos += n
		if err := p.expect('"'); err != nil {
			return nil, err
		}
		return Binary(raw), nil
	default:
		return nil, newErr(ErrMalformed, "invalid binary literal").at(start)
	}
}

func hexNibble(c byte) (byte, *Error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, newErr(ErrMalformed, "invalid hex digit %q", c)
	}
}

func (p *notationParser) parseArray(depth int) (*Value, error) {
	open := p.pos - 1
	var elems []*Value
	for {
		p.skipWhitespace()
		c, ok := p.peek()
		if !ok {
			return nil, newErr(ErrUnterminated, "array missing closing ']'").at(open)
		}
		switch c {
		case ']':
			p.pos++
			return Array(elems...), nil
		case ',':
			p.pos++
		default:
			e, err := p.parseValue(depth + 1)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
	}
}

func (p *notationParser) parseMap(depth int) (*Value, error) {
	open := p.pos - 1
	m := &Value{kind: KindMap}
	for {
		p.skipWhitespace()
		c, ok := p.peek()
		if !ok {
			return nil, newErr(ErrUnterminated, "map missing closing '}'").at(open)
		}
		switch c {
		case '}':
			p.pos++
			return m, nil
		case ',':
			p.pos++
		case '\'', '"':
			keyStart := p.pos
			p.pos++
			key, err := p.unescape(c)
			if err != nil {
				return nil, err
			}
			if m.Get(key) != nil {
				return nil, newErr(ErrDuplicateKey, "duplicate map key %q", key).at(keyStart)
			}
			p.skipWhitespace()
			if err := p.expect(':'); err != nil {
				return nil, err
			}
			val, verr := p.parseValue(depth + 1)
			if verr != nil {
				return nil, verr
			}
			m.mapVal = append(m.mapVal, MapEntry{Key: key, Value: val})
		default:
			return nil, newErr(ErrMalformed, "invalid byte %q in map, expected quoted key", c).at(p.pos)
		}
	}
}

func (p *notationParser) expect(want byte) *Error {
	c, ok := p.peek()
	if !ok {
		return newErr(ErrTruncated, "unexpected end of input, expected %q", want).at(p.pos)
	}
	if c != want {
		return newErr(ErrMalformed, "expected %q, got %q", want, c).at(p.pos)
	}
	p.pos++
	return nil
}

// scanUntil consumes through the delimiter and returns the bytes before it.
func (p *notationParser) scanUntil(delim byte) (string, *Error) {
	start := p.pos
	for p.pos < len(p.data) {
		if p.data[p.pos] == delim {
			s := string(p.data[start:p.pos])
			p.pos++
			return s, nil
		}
		p.pos++
	}
	return "", newErr(ErrUnterminated, "literal missing closing %q", delim).at(start)
}

func (p *notationParser) unescape(delim byte) (string, *Error) {
	s, end, err := unescapeQuoted(p.data, p.pos, delim)
	if err != nil {
		return "", err
	}
	p.pos = end
	return s, nil
}

// ============================================================
// Shared text helpers
// ============================================================

// appendEscaped writes s with the notation escape table: named escapes
// for the C control set, \xNN for remaining control and non-ASCII
// bytes, backslash-escaped quotes.
func appendEscaped(dst []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			dst = append(dst, '\\', '\\')
		case '\'':
			dst = append(dst, '\\', '\'')
		case '"':
			dst = append(dst, '\\', '"')
		case 0x07:
			dst = append(dst, '\\', 'a')
		case 0x08:
			dst = append(dst, '\\', 'b')
		case 0x0c:
			dst = append(dst, '\\', 'f')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		case 0x0b:
			dst = append(dst, '\\', 'v')
		default:
			if c < 0x20 || c >= 0x7f {
				dst = append(dst, fmt.Sprintf("\\x%02x", c)...)
			} else {
				dst = append(dst, c)
			}
		}
	}
	return dst
}

// unescapeQuoted decodes a backslash-escaped literal starting at pos
// (just past the opening quote) and ending at the unescaped delimiter.
// Returns the decoded string and the position past the closing quote.
func unescapeQuoted(data []byte, pos int, delim byte) (string, int, *Error) {
	start := pos
	var buf []byte
	for pos < len(data) {
		c := data[pos]
		pos++
		if c == delim {
			if !utf8.Valid(buf) {
				return "", 0, newErr(ErrEncoding, "string is not valid UTF-8").at(start)
			}
			return string(buf), pos, nil
		}
		if c != '\\' {
			buf = append(buf, c)
			continue
		}
		if pos >= len(data) {
			break
		}
		esc := data[pos]
		pos++
		switch esc {
		case 'a':
			buf = append(buf, 0x07)
		case 'b':
			buf = append(buf, 0x08)
		case 'f':
			buf = append(buf, 0x0c)
		case 'n':
			buf = append(buf, '\n')
		case 'r':
			buf = append(buf, '\r')
		case 't':
			buf = append(buf, '\t')
		case 'v':
			buf = append(buf, 0x0b)
		case 'x':
			if pos+1 >= len(data) {
				return "", 0, newErr(ErrUnterminated, "string missing closing %q", delim).at(start)
			}
			hi, err := hexNibble(data[pos])
			if err != nil {
				return "", 0, err.at(pos)
			}
			lo, err := hexNibble(data[pos+1])
			if err != nil {
				return "", 0, err.at(pos + 1)
			}
			buf = append(buf, hi<<4|lo)
			pos += 2
		default:
			buf = append(buf, esc)
		}
	}
	return "", 0, newErr(ErrUnterminated, "string missing closing %q", delim).at(start)
}

func formatReal(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func parseReal(s string) (float64, error) {
	switch s {
	case "nan":
		return math.NaN(), nil
	case "inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(s, 64)
}

func formatDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func dateFromEpoch(secs float64) time.Time {
	sec := int64(secs)
	nsec := int64((secs - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}
