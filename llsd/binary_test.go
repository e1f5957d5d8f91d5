package llsd

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	u, err := uuid.Parse(s)
	require.NoError(t, err)
	return u
}

// sampleDocument covers every variant, nested containers included.
func sampleDocument(t *testing.T) *Value {
	t.Helper()
	return Map(
		Entry("undef", Undefined()),
		Entry("yes", Boolean(true)),
		Entry("no", Boolean(false)),
		Entry("count", Integer(-42)),
		Entry("ratio", Real(3.25)),
		Entry("name", String("héllo \"world\"\n")),
		Entry("id", UUID(mustUUID(t, "d7f4aeca-88f1-42a1-b385-b97b18abb255"))),
		Entry("when", Date(time.Unix(1620000000, 0))),
		Entry("link", URI("https://example.com/a?b=c&d=e")),
		Entry("blob", Binary([]byte{0x00, 0x01, 0xfe, 0xff})),
		Entry("items", Array(
			Integer(1),
			Array(String("nested")),
			Map(Entry("k", Real(0.5))),
		)),
	)
}

func TestBinaryGoldenScalars(t *testing.T) {
	tests := []struct {
		name string
		in   *Value
		want []byte
	}{
		{"undefined", Undefined(), []byte{'!'}},
		{"true", Boolean(true), []byte{'1'}},
		{"false", Boolean(false), []byte{'0'}},
		{"integer", Integer(42), []byte{'i', 0, 0, 0, 42}},
		{"negative integer", Integer(-1), []byte{'i', 0xff, 0xff, 0xff, 0xff}},
		{"real one", Real(1.0), []byte{'r', 0x3f, 0xf0, 0, 0, 0, 0, 0, 0}},
		{"string", String("hi"), []byte{'s', 0, 0, 0, 2, 'h', 'i'}},
		{"uri", URI("x"), []byte{'l', 0, 0, 0, 1, 'x'}},
		{"binary", Binary([]byte{0xde, 0xad}), []byte{'b', 0, 0, 0, 2, 0xde, 0xad}},
		{"empty array", Array(), []byte{'[', 0, 0, 0, 0, ']'}},
		{"empty map", Map(), []byte{'{', 0, 0, 0, 0, '}'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MarshalBinary(tt.in))
		})
	}
}

func TestBinaryGoldenMap(t *testing.T) {
	v := Map(Entry("a", Integer(1)))
	want := []byte{
		'{', 0, 0, 0, 1,
		'k', 0, 0, 0, 1, 'a',
		'i', 0, 0, 0, 1,
		'}',
	}
	assert.Equal(t, want, MarshalBinary(v))
}

func TestBinaryRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   *Value
	}{
		{"undefined", Undefined()},
		{"boolean", Boolean(true)},
		{"min int32", Integer(math.MinInt32)},
		{"max int32", Integer(math.MaxInt32)},
		{"real zero", Real(0)},
		{"real pi", Real(3.141592653589793)},
		{"real max", Real(math.MaxFloat64)},
		{"real lowest", Real(-math.MaxFloat64)},
		{"real nan", Real(math.NaN())},
		{"real neg inf", Real(math.Inf(-1))},
		{"zero uuid", UUID(uuid.UUID{})},
		{"date", Date(time.Unix(1620000000, 0))},
		{"epoch", Date(time.Unix(0, 0))},
		{"empty string", String("")},
		{"unicode string", String("héllo \x00 world 日本")},
		{"uri", URI("https://example.com/path?q=1")},
		{"binary", Binary([]byte{0, 1, 2, 255})},
		{"empty binary", Binary(nil)},
		{"document", sampleDocument(t)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnmarshalBinary(MarshalBinary(tt.in))
			require.NoError(t, err)
			assert.True(t, tt.in.Equal(got), "decoded %v", got.Kind())
		})
	}
}

// Every proper prefix of a valid encoding must fail as truncated, never
// succeed and never misreport a different failure.
func TestBinaryTruncation(t *testing.T) {
	data := MarshalBinary(sampleDocument(t))
	for i := 0; i < len(data); i++ {
		_, err := UnmarshalBinary(data[:i])
		require.Error(t, err, "prefix of %d bytes", i)
		assert.True(t, IsKind(err, ErrTruncated), "prefix of %d bytes: %v", i, err)
	}
}

func TestBinaryUnknownTag(t *testing.T) {
	_, err := UnmarshalBinary([]byte{'z'})
	assert.True(t, IsKind(err, ErrUnknownTag), "%v", err)
}

func TestBinaryCountBeyondInput(t *testing.T) {
	// count says a billion elements, buffer holds none
	_, err := UnmarshalBinary([]byte{'[', 0x3b, 0x9a, 0xca, 0x00})
	assert.True(t, IsKind(err, ErrTruncated), "%v", err)
}

func TestBinaryDepthBound(t *testing.T) {
	var data []byte
	for i := 0; i < DefaultMaxDepth+8; i++ {
		data = append(data, '[', 0, 0, 0, 1)
	}
	data = append(data, '!')
	_, err := UnmarshalBinary(data)
	assert.True(t, IsKind(err, ErrDepthExceeded), "%v", err)

	_, err = UnmarshalBinaryOptions(data, DecodeOptions{MaxDepth: DefaultMaxDepth + 64})
	assert.True(t, IsKind(err, ErrTruncated), "raised bound should read past the old limit: %v", err)
}

func TestBinaryHeaderSkip(t *testing.T) {
	data := AppendBinaryHeader(MarshalBinary(Integer(7)))
	v, err := UnmarshalBinary(data)
	require.NoError(t, err)
	n, err := v.AsInteger()
	require.NoError(t, err)
	assert.Equal(t, int32(7), n)
}

func TestBinaryBadHeader(t *testing.T) {
	_, err := UnmarshalBinary([]byte("<? something else ?>\n!"))
	assert.True(t, IsKind(err, ErrMalformed), "%v", err)
}

func TestBinaryEscapedStringForms(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"single quoted", []byte(`'hi'`), "hi"},
		{"double quoted", []byte(`"hi"`), "hi"},
		{"named escape", []byte(`'a\tb'`), "a\tb"},
		{"hex escape", []byte(`'\x41\x42'`), "AB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := UnmarshalBinary(tt.in)
			require.NoError(t, err)
			s, err := v.AsString()
			require.NoError(t, err)
			assert.Equal(t, tt.want, s)
		})
	}

	_, err := UnmarshalBinary([]byte(`'never closed`))
	assert.True(t, IsKind(err, ErrUnterminated), "%v", err)
}

func TestBinaryDuplicateMapKey(t *testing.T) {
	data := []byte{
		'{', 0, 0, 0, 2,
		'k', 0, 0, 0, 1, 'a', '!',
		'k', 0, 0, 0, 1, 'a', '!',
		'}',
	}
	_, err := UnmarshalBinary(data)
	assert.True(t, IsKind(err, ErrDuplicateKey), "%v", err)
}

func TestBinaryMissingKeyTag(t *testing.T) {
	data := []byte{
		'{', 0, 0, 0, 1,
		's', 0, 0, 0, 1, 'a', '!', // 's' where 'k' is required
		'}',
	}
	_, err := UnmarshalBinary(data)
	assert.True(t, IsKind(err, ErrMalformed), "%v", err)
}

func TestBinaryWrongClosingByte(t *testing.T) {
	data := []byte{'[', 0, 0, 0, 1, '!', '}'}
	_, err := UnmarshalBinary(data)
	assert.True(t, IsKind(err, ErrMalformed), "%v", err)
}

func TestBinaryInvalidStringUTF8(t *testing.T) {
	data := []byte{'s', 0, 0, 0, 2, 0xff, 0xfe}
	_, err := UnmarshalBinary(data)
	assert.True(t, IsKind(err, ErrEncoding), "%v", err)
}

func TestBinaryTrailingBytesIgnored(t *testing.T) {
	data := append(MarshalBinary(Integer(1)), 0xde, 0xad)
	v, err := UnmarshalBinary(data)
	require.NoError(t, err)
	assert.Equal(t, KindInteger, v.Kind())
}

func TestBinaryDateSubsecond(t *testing.T) {
	in := Date(time.Unix(1620000000, 500_000_000))
	got, err := UnmarshalBinary(MarshalBinary(in))
	require.NoError(t, err)
	when, err := got.AsDate()
	require.NoError(t, err)
	assert.Equal(t, int64(1620000000), when.Unix())
	assert.InDelta(t, 500_000_000, when.Nanosecond(), 1000)
}

func BenchmarkBinaryMarshal(b *testing.B) {
	v := Map(
		Entry("id", Integer(7)),
		Entry("items", Array(String("a"), String("b"), Real(1.5))),
	)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		MarshalBinary(v)
	}
}

func BenchmarkBinaryUnmarshal(b *testing.B) {
	data := MarshalBinary(Map(
		Entry("id", Integer(7)),
		Entry("items", Array(String("a"), String("b"), Real(1.5))),
	))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := UnmarshalBinary(data); err != nil {
			b.Fatal(err)
		}
	}
}
