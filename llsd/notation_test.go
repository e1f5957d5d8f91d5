package llsd

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotationGolden(t *testing.T) {
	tests := []struct {
		name string
		in   *Value
		want string
	}{
		{"undefined", Undefined(), "!"},
		{"true", Boolean(true), "true"},
		{"false", Boolean(false), "false"},
		{"integer", Integer(42), "i42"},
		{"negative integer", Integer(-7), "i-7"},
		{"real", Real(3.25), "r3.25"},
		{"real nan", Real(math.NaN()), "rnan"},
		{"real inf", Real(math.Inf(1)), "rinf"},
		{"real neg inf", Real(math.Inf(-1)), "r-inf"},
		{"string", String("hi"), "'hi'"},
		{"string escapes", String("a'b\"c\\d\n"), `'a\'b\"c\\d\n'`},
		{"uri", URI("https://example.com"), `l"https://example.com"`},
		{"binary", Binary([]byte{0xde, 0xad}), `b64"3q0="`},
		{"empty array", Array(), "[]"},
		{"array", Array(Integer(1), Boolean(true)), "[i1,true]"},
		{"map", Map(Entry("a", Integer(1))), "{'a':i1}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(MarshalNotation(tt.in)))
		})
	}
}

func TestNotationHexBinary(t *testing.T) {
	out := MarshalNotationOptions(Binary([]byte{0xde, 0xad}), NotationOptions{HexBinary: true})
	assert.Equal(t, `b16"DEAD"`, string(out))
}

func TestNotationDigitBoolean(t *testing.T) {
	out := MarshalNotationOptions(Array(Boolean(true), Boolean(false)), NotationOptions{DigitBoolean: true})
	assert.Equal(t, "[1,0]", string(out))
}

func TestNotationPretty(t *testing.T) {
	v := Map(Entry("a", Array(Integer(1), Integer(2))))
	out := MarshalNotationOptions(v, NotationOptions{Pretty: true, Indent: "  "})
	want := "{\n  'a':[\n    i1,\n    i2\n  ]\n}"
	assert.Equal(t, want, string(out))

	back, err := UnmarshalNotation(out)
	require.NoError(t, err)
	assert.True(t, v.Equal(back))
}

func TestNotationRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   *Value
	}{
		{"undefined", Undefined()},
		{"boolean", Boolean(true)},
		{"min int32", Integer(math.MinInt32)},
		{"max int32", Integer(math.MaxInt32)},
		{"real zero", Real(0)},
		{"real", Real(1.0 / 3.0)},
		{"real max", Real(math.MaxFloat64)},
		{"real lowest", Real(-math.MaxFloat64)},
		{"real nan", Real(math.NaN())},
		{"uuid", UUID(mustUUID(t, "6bad258e-06f0-4a87-a659-493117c9c162"))},
		{"date", Date(time.Unix(1620000000, 0))},
		{"string control bytes", String("tab\there\x01\x7fend")},
		{"string unicode", String("héllo 日本")},
		{"uri", URI("https://example.com/x?a=1&b=2")},
		{"binary", Binary([]byte{0, 1, 254, 255})},
		{"document", sampleDocument(t)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnmarshalNotation(MarshalNotation(tt.in))
			require.NoError(t, err)
			assert.True(t, tt.in.Equal(got), "text %q", MarshalNotation(tt.in))
		})
	}
}

func TestNotationParseForms(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *Value
	}{
		{"bare t", "t", Boolean(true)},
		{"bare f", "f", Boolean(false)},
		{"digit true", "1", Boolean(true)},
		{"digit false", "0", Boolean(false)},
		{"uppercase TRUE", "TRUE", Boolean(true)},
		{"positive sign", "i+3", Integer(3)},
		{"negative integer", "i-3", Integer(-3)},
		{"real exponent", "r1.5e3", Real(1500)},
		{"uppercase real", "R2.5", Real(2.5)},
		{"double quoted string", `"hi"`, String("hi")},
		{"hex escape", `'\x41'`, String("A")},
		{"hex binary lowercase", `b16"dead"`, Binary([]byte{0xde, 0xad})},
		{"raw binary", "b(3)\"a\x00b\"", Binary([]byte{'a', 0, 'b'})},
		{"empty base64", `b64""`, Binary(nil)},
		{"whitespace and commas optional", "[ i1 i2 , i3 ]", Array(Integer(1), Integer(2), Integer(3))},
		{"empty input", "", Undefined()},
		{"whitespace input", "  \n\t ", Undefined()},
		{"map", `{'a': i1, 'b': 'x'}`, Map(Entry("a", Integer(1)), Entry("b", String("x")))},
		{"double quoted key", `{"a":i1}`, Map(Entry("a", Integer(1)))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnmarshalNotation([]byte(tt.in))
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got kind %v", got.Kind())
		})
	}
}

func TestNotationParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		kind ErrKind
	}{
		{"unknown sigil", "?", ErrUnknownTag},
		{"unterminated string", "'abc", ErrUnterminated},
		{"unterminated array", "[i1,i2", ErrUnterminated},
		{"unterminated map", "{'a':i1", ErrUnterminated},
		{"integer overflow", "i99999999999", ErrMalformed},
		{"integer no digits", "i", ErrMalformed},
		{"bad real", "r..", ErrMalformed},
		{"bad uuid", "uzz", ErrMalformed},
		{"bad date", `d"not a date"`, ErrMalformed},
		{"bad base64", `b64"@@@@"`, ErrEncoding},
		{"bad hex", `b16"xy"`, ErrMalformed},
		{"raw binary too long", `b(99)"x"`, ErrTruncated},
		{"map key unquoted", "{a:i1}", ErrMalformed},
		{"map missing colon", "{'a' i1}", ErrMalformed},
		{"duplicate key", "{'a':i1,'a':i2}", ErrDuplicateKey},
		{"truncated literal", "tr", ErrMalformed},
		{"missing value after colon", "{'a':", ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalNotation([]byte(tt.in))
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.kind), "want %v, got %v", tt.kind, err)
		})
	}
}

func TestNotationDepthBound(t *testing.T) {
	in := strings.Repeat("[", DefaultMaxDepth+8)
	_, err := UnmarshalNotation([]byte(in))
	assert.True(t, IsKind(err, ErrDepthExceeded), "%v", err)

	// Inside the bound the same nesting is only unterminated.
	_, err = UnmarshalNotationOptions([]byte(in), DecodeOptions{MaxDepth: DefaultMaxDepth + 64})
	assert.True(t, IsKind(err, ErrUnterminated), "%v", err)
}

func TestNotationErrorOffset(t *testing.T) {
	_, err := UnmarshalNotation([]byte("[i1,?]"))
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 4, e.Offset)
}

func TestNotationInvalidUTF8(t *testing.T) {
	_, err := UnmarshalNotation([]byte{'\'', 0xff, 0xfe, '\''})
	assert.True(t, IsKind(err, ErrEncoding), "%v", err)
}

func BenchmarkNotationParse(b *testing.B) {
	data := []byte(`{'id':i7,'items':['a','b',r1.5],'when':d"2021-05-03T00:00:00Z"}`)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := UnmarshalNotation(data); err != nil {
			b.Fatal(err)
		}
	}
}
