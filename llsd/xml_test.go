package llsd

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXMLGolden(t *testing.T) {
	tests := []struct {
		name string
		in   *Value
		want string
	}{
		{"undefined", Undefined(), "<llsd><undef/></llsd>"},
		{"true", Boolean(true), "<llsd><boolean>1</boolean></llsd>"},
		{"false", Boolean(false), "<llsd><boolean>0</boolean></llsd>"},
		{"integer", Integer(-42), "<llsd><integer>-42</integer></llsd>"},
		{"real", Real(3.25), "<llsd><real>3.25</real></llsd>"},
		{"real nan", Real(math.NaN()), "<llsd><real>nan</real></llsd>"},
		{"string", String("hi"), "<llsd><string>hi</string></llsd>"},
		{"string escaped", String(`a<b>&'"`), "<llsd><string>a&lt;b&gt;&amp;&apos;&quot;</string></llsd>"},
		{"string carriage return", String("a\rb"), "<llsd><string>a&#13;b</string></llsd>"},
		{"uri", URI("https://e.com?a=1&b=2"), "<llsd><uri>https://e.com?a=1&amp;b=2</uri></llsd>"},
		{"binary", Binary([]byte{0xde, 0xad}), "<llsd><binary>3q0=</binary></llsd>"},
		{"empty array", Array(), "<llsd><array/></llsd>"},
		{"empty map", Map(), "<llsd><map/></llsd>"},
		{"array", Array(Integer(1)), "<llsd><array><integer>1</integer></array></llsd>"},
		{"map", Map(Entry("a", Integer(1))), "<llsd><map><key>a</key><integer>1</integer></map></llsd>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(MarshalXML(tt.in)))
		})
	}
}

func TestXMLIndent(t *testing.T) {
	out := string(MarshalXMLIndent(Map(Entry("a", Integer(1)))))
	assert.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`), out)
	assert.Contains(t, out, "\n  <map>")

	back, err := UnmarshalXML([]byte(out))
	require.NoError(t, err)
	assert.True(t, Map(Entry("a", Integer(1))).Equal(back))
}

func TestXMLRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   *Value
	}{
		{"undefined", Undefined()},
		{"boolean", Boolean(true)},
		{"min int32", Integer(math.MinInt32)},
		{"real nan", Real(math.NaN())},
		{"real inf", Real(math.Inf(1))},
		{"uuid", UUID(mustUUID(t, "d7f4aeca-88f1-42a1-b385-b97b18abb255"))},
		{"date", Date(time.Unix(1620000000, 0))},
		{"string reserved chars", String(`<tag attr="x">&'done'</tag>`)},
		{"string carriage return", String("a\rb\r\nc")},
		{"string unicode", String("héllo 日本")},
		{"binary", Binary([]byte{0, 1, 254, 255})},
		{"document", sampleDocument(t)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnmarshalXML(MarshalXML(tt.in))
			require.NoError(t, err)
			assert.True(t, tt.in.Equal(got), "xml %s", MarshalXML(tt.in))
		})
	}
}

func TestXMLDecodeForms(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *Value
	}{
		{"empty llsd", "<llsd/>", Undefined()},
		{"empty llsd pair", "<llsd></llsd>", Undefined()},
		{"boolean true word", "<llsd><boolean>true</boolean></llsd>", Boolean(true)},
		{"boolean false word", "<llsd><boolean>false</boolean></llsd>", Boolean(false)},
		{"empty boolean", "<llsd><boolean/></llsd>", Boolean(false)},
		{"empty integer", "<llsd><integer/></llsd>", Integer(0)},
		{"empty real", "<llsd><real/></llsd>", Real(0)},
		{"empty string", "<llsd><string/></llsd>", String("")},
		{"empty binary", "<llsd><binary/></llsd>", Binary(nil)},
		{"empty uuid", "<llsd><uuid/></llsd>", &Value{kind: KindUUID}},
		{"padded integer", "<llsd><integer> 7 </integer></llsd>", Integer(7)},
		{"real -inf", "<llsd><real>-inf</real></llsd>", Real(math.Inf(-1))},
		{"base64 with whitespace", "<llsd><binary>3q\n0=</binary></llsd>", Binary([]byte{0xde, 0xad})},
		{"whitespace between elements", "<llsd>\n  <array>\n    <integer>1</integer>\n  </array>\n</llsd>", Array(Integer(1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnmarshalXML([]byte(tt.in))
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got kind %v", got.Kind())
		})
	}
}

func TestXMLDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		kind ErrKind
	}{
		{"wrong root", "<html></html>", ErrUnknownTag},
		{"unknown element", "<llsd><float>1</float></llsd>", ErrUnknownTag},
		{"bad boolean", "<llsd><boolean>maybe</boolean></llsd>", ErrMalformed},
		{"bad integer", "<llsd><integer>x</integer></llsd>", ErrMalformed},
		{"integer overflow", "<llsd><integer>99999999999</integer></llsd>", ErrMalformed},
		{"bad uuid", "<llsd><uuid>zz</uuid></llsd>", ErrMalformed},
		{"bad date", "<llsd><date>yesterday</date></llsd>", ErrMalformed},
		{"bad base64", "<llsd><binary>@@@@</binary></llsd>", ErrEncoding},
		{"unsupported encoding attr", `<llsd><binary encoding="base16">00</binary></llsd>`, ErrUnsupported},
		{"map value without key", "<llsd><map><integer>1</integer></map></llsd>", ErrMalformed},
		{"key without value", "<llsd><map><key>a</key></map></llsd>", ErrMalformed},
		{"duplicate key", "<llsd><map><key>a</key><integer>1</integer><key>a</key><integer>2</integer></map></llsd>", ErrDuplicateKey},
		{"element inside scalar", "<llsd><integer><string>1</string></integer></llsd>", ErrMalformed},
		{"stray text in array", "<llsd><array>oops</array></llsd>", ErrMalformed},
		{"truncated document", "<llsd><array><integer>1</integer>", ErrTruncated},
		{"empty input", "", ErrTruncated},
		{"unbalanced tags", "<llsd><string>x</integer></llsd>", ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalXML([]byte(tt.in))
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.kind), "want %v, got %v", tt.kind, err)
		})
	}
}

func TestXMLDepthBound(t *testing.T) {
	depth := DefaultMaxDepth + 8
	in := "<llsd>" + strings.Repeat("<array>", depth) + "<undef/>" +
		strings.Repeat("</array>", depth) + "</llsd>"
	_, err := UnmarshalXML([]byte(in))
	assert.True(t, IsKind(err, ErrDepthExceeded), "%v", err)

	_, err = UnmarshalXMLOptions([]byte(in), DecodeOptions{MaxDepth: depth + 8})
	assert.NoError(t, err)
}

func BenchmarkXMLUnmarshal(b *testing.B) {
	data := MarshalXML(Map(
		Entry("id", Integer(7)),
		Entry("items", Array(String("a"), String("b"), Real(1.5))),
	))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := UnmarshalXML(data); err != nil {
			b.Fatal(err)
		}
	}
}
