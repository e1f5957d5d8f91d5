package llsd

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// The XML serialization wraps one value element inside an <llsd> root:
//
//	<llsd><map>
//	  <key>id</key><uuid>d7f4aeca-88f1-42a1-b385-b97b18abb255</uuid>
//	  <key>size</key><integer>1024</integer>
//	</map></llsd>
//
// Scalar elements carry their canonical text form; <binary> carries
// base64. An empty <llsd/> decodes as Undefined, and empty scalar
// elements decode to the variant's zero value.

// XMLOptions configures the XML printer.
type XMLOptions struct {
	// Pretty inserts newlines and indentation between elements.
	Pretty bool

	// Indent string for pretty mode (default "  ").
	Indent string

	// Declaration prepends the <?xml version="1.0" ?> header.
	Declaration bool
}

// MarshalXML serializes a value as a compact <llsd> document.
func MarshalXML(v *Value) []byte {
	return MarshalXMLOptions(v, XMLOptions{})
}

// MarshalXMLIndent serializes with indentation and an XML declaration.
func MarshalXMLIndent(v *Value) []byte {
	return MarshalXMLOptions(v, XMLOptions{Pretty: true, Declaration: true})
}

// MarshalXMLOptions serializes with custom options.
func MarshalXMLOptions(v *Value, opts XMLOptions) []byte {
	if opts.Indent == "" {
		opts.Indent = "  "
	}
	e := &xmlEmitter{opts: opts}
	if opts.Declaration {
		e.out = append(e.out, `<?xml version="1.0" encoding="UTF-8"?>`...)
		e.nl()
	}
	e.out = append(e.out, "<llsd>"...)
	e.nl()
	e.emit(v, 1)
	e.nl()
	e.out = append(e.out, "</llsd>"...)
	return e.out
}

type xmlEmitter struct {
	out  []byte
	opts XMLOptions
}

func (e *xmlEmitter) emit(v *Value, depth int) {
	e.indent(depth)
	switch v.Kind() {
	case KindUndefined:
		e.out = append(e.out, "<undef/>"...)
	case KindBoolean:
		if v.boolVal {
			e.tagged("boolean", "1")
		} else {
			e.tagged("boolean", "0")
		}
	case KindInteger:
		e.tagged("integer", strconv.FormatInt(int64(v.intVal), 10))
	case KindReal:
		e.tagged("real", formatReal(v.realVal))
	case KindUUID:
		e.tagged("uuid", v.uuidVal.String())
	case KindString:
		e.out = append(e.out, "<string>"...)
		e.out = appendXMLEscaped(e.out, v.strVal)
		e.out = append(e.out, "</string>"...)
	case KindDate:
		e.tagged("date", formatDate(v.timeVal))
	case KindURI:
		e.out = append(e.out, "<uri>"...)
		e.out = appendXMLEscaped(e.out, v.strVal)
		e.out = append(e.out, "</uri>"...)
	case KindBinary:
		e.out = append(e.out, "<binary>"...)
		e.out = append(e.out, base64.StdEncoding.EncodeToString(v.binVal)...)
		e.out = append(e.out, "</binary>"...)
	case KindArray:
		if len(v.arrVal) == 0 {
			e.out = append(e.out, "<array/>"...)
			return
		}
		e.out = append(e.out, "<array>"...)
		for _, elem := range v.arrVal {
			e.nl()
			e.emit(elem, depth+1)
		}
		e.nl()
		e.indent(depth)
		e.out = append(e.out, "</array>"...)
	case KindMap:
		if len(v.mapVal) == 0 {
			e.out = append(e.out, "<map/>"...)
			return
		}
		e.out = append(e.out, "<map>"...)
		for _, entry := range v.mapVal {
			e.nl()
			e.indent(depth + 1)
			e.out = append(e.out, "<key>"...)
			e.out = appendXMLEscaped(e.out, entry.Key)
			e.out = append(e.out, "</key>"...)
			e.nl()
			e.emit(entry.Value, depth+1)
		}
		e.nl()
		e.indent(depth)
		e.out = append(e.out, "</map>"...)
	}
}

func (e *xmlEmitter) tagged(name, text string) {
	e.out = append(e.out, '<')
	e.out = append(e.out, name...)
	e.out = append(e.out, '>')
	e.out = append(e.out, text...)
	e.out = append(e.out, '<', '/')
	e.out = append(e.out, name...)
	e.out = append(e.out, '>')
}

func (e *xmlEmitter) nl() {
	if e.opts.Pretty {
		e.out = append(e.out, '\n')
	}
}

func (e *xmlEmitter) indent(depth int) {
	if !e.opts.Pretty {
		return
	}
	for i := 0; i < depth; i++ {
		e.out = append(e.out, e.opts.Indent...)
	}
}

func appendXMLEscaped(dst []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '&':
			dst = append(dst, "&amp;"...)
		case '<':
			dst = append(dst, "&lt;"...)
		case '>':
			dst = append(dst, "&gt;"...)
		case '\'':
			dst = append(dst, "&apos;"...)
		case '"':
			dst = append(dst, "&quot;"...)
		case '\r':
			// a raw CR would be normalized to LF on parse
			dst = append(dst, "&#13;"...)
		default:
			dst = append(dst, c)
		}
	}
	return dst
}

// ============================================================
// Decoder
// ============================================================

// UnmarshalXML parses an <llsd> document.
func UnmarshalXML(data []byte) (*Value, error) {
	return UnmarshalXMLOptions(data, DecodeOptions{})
}

// UnmarshalXMLOptions parses with an explicit depth bound.
func UnmarshalXMLOptions(data []byte, opts DecodeOptions) (*Value, error) {
	d := &xmlDecoder{dec: xml.NewDecoder(bytes.NewReader(data)), maxDepth: opts.maxDepth()}
	root, err := d.nextStart()
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, newErr(ErrTruncated, "document has no root element")
	}
	if root.Name.Local != "llsd" {
		return nil, d.errAt(ErrUnknownTag, "unexpected root element <%s>", root.Name.Local)
	}
	inner, err := d.nextStart()
	if err != nil {
		return nil, err
	}
	if inner == nil {
		// <llsd/> with no payload
		return Undefined(), nil
	}
	return d.parseElement(*inner, 0)
}

type xmlDecoder struct {
	dec      *xml.Decoder
	maxDepth int
}

func (d *xmlDecoder) errAt(kind ErrKind, format string, args ...any) *Error {
	return newErr(kind, format, args...).at(int(d.dec.InputOffset()))
}

func (d *xmlDecoder) token() (xml.Token, *Error) {
	tok, err := d.dec.Token()
	if err != nil {
		return nil, d.mapXMLErr(err)
	}
	return tok, nil
}

// mapXMLErr classifies decoder failures: anything that amounts to the
// input ending early is Truncated, the rest is Malformed. The stock
// decoder reports EOF inside an open element as a syntax error, so the
// message has to be inspected.
func (d *xmlDecoder) mapXMLErr(err error) *Error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return d.errAt(ErrTruncated, "unexpected end of document")
	}
	var syn *xml.SyntaxError
	if errors.As(err, &syn) && strings.Contains(syn.Msg, "unexpected EOF") {
		return d.errAt(ErrTruncated, "unexpected end of document")
	}
	return d.errAt(ErrMalformed, "%v", err)
}

// nextStart skips to the next start element, ignoring whitespace,
// comments and directives. Returns nil when the enclosing element (or
// the document) ends first.
func (d *xmlDecoder) nextStart() (*xml.StartElement, *Error) {
	for {
		tok, err := d.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, d.mapXMLErr(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return &t, nil
		case xml.EndElement:
			return nil, nil
		case xml.CharData:
			if len(bytes.TrimSpace(t)) != 0 {
				return nil, d.errAt(ErrMalformed, "unexpected text %q", string(t))
			}
		default:
			// comments, directives, processing instructions
		}
	}
}

func (d *xmlDecoder) parseElement(se xml.StartElement, depth int) (*Value, error) {
	if depth >= d.maxDepth {
		return nil, d.errAt(ErrDepthExceeded, "nesting exceeds %d", d.maxDepth)
	}
	name := se.Name.Local
	switch name {
	case "array":
		return d.parseArray(se, depth)
	case "map":
		return d.parseMap(se, depth)
	}

	text, err := d.text(name)
	if err != nil {
		return nil, err
	}
	switch name {
	case "undef":
		return Undefined(), nil
	case "boolean":
		switch strings.TrimSpace(text) {
		case "", "0", "false":
			return Boolean(false), nil
		case "1", "true":
			return Boolean(true), nil
		}
		return nil, d.errAt(ErrMalformed, "invalid boolean %q", text)
	case "integer":
		t := strings.TrimSpace(text)
		if t == "" {
			return Integer(0), nil
		}
		n, perr := strconv.ParseInt(t, 10, 32)
		if perr != nil {
			return nil, d.errAt(ErrMalformed, "invalid integer %q", t)
		}
		return Integer(int32(n)), nil
	case "real":
		t := strings.TrimSpace(text)
		if t == "" {
			return Real(0), nil
		}
		f, perr := parseReal(t)
		if perr != nil {
			return nil, d.errAt(ErrMalformed, "invalid real %q", t)
		}
		return Real(f), nil
	case "uuid":
		t := strings.TrimSpace(text)
		if t == "" {
			return &Value{kind: KindUUID}, nil
		}
		u, perr := uuid.Parse(t)
		if perr != nil {
			return nil, d.errAt(ErrMalformed, "invalid uuid %q", t)
		}
		return UUID(u), nil
	case "string":
		return String(text), nil
	case "date":
		t := strings.TrimSpace(text)
		if t == "" {
			return Date(time.Unix(0, 0)), nil
		}
		when, perr := parseDate(t)
		if perr != nil {
			return nil, d.errAt(ErrMalformed, "invalid date %q", t)
		}
		return Date(when), nil
	case "uri":
		return URI(text), nil
	case "binary":
		for _, attr := range se.Attr {
			if attr.Name.Local == "encoding" && attr.Value != "base64" {
				return nil, d.errAt(ErrUnsupported, "binary encoding %q", attr.Value)
			}
		}
		raw, derr := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(text), ""))
		if derr != nil {
			return nil, d.errAt(ErrEncoding, "invalid base64: %v", derr)
		}
		return Binary(raw), nil
	default:
		return nil, d.errAt(ErrUnknownTag, "unexpected element <%s>", name)
	}
}

// text collects the character data of a scalar element through its end tag.
func (d *xmlDecoder) text(name string) (string, *Error) {
	var sb strings.Builder
	for {
		tok, err := d.token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.EndElement:
			return sb.String(), nil
		case xml.StartElement:
			return "", d.errAt(ErrMalformed, "unexpected element <%s> inside <%s>", t.Name.Local, name)
		}
	}
}

func (d *xmlDecoder) parseArray(se xml.StartElement, depth int) (*Value, error) {
	var elems []*Value
	for {
		child, err := d.nextStart()
		if err != nil {
			return nil, err
		}
		if child == nil {
			return Array(elems...), nil
		}
		elem, perr := d.parseElement(*child, depth+1)
		if perr != nil {
			return nil, perr
		}
		elems = append(elems, elem)
	}
}

func (d *xmlDecoder) parseMap(se xml.StartElement, depth int) (*Value, error) {
	m := &Value{kind: KindMap}
	for {
		child, err := d.nextStart()
		if err != nil {
			return nil, err
		}
		if child == nil {
			return m, nil
		}
		if child.Name.Local != "key" {
			return nil, d.errAt(ErrMalformed, "expected <key>, got <%s>", child.Name.Local)
		}
		key, kerr := d.text("key")
		if kerr != nil {
			return nil, kerr
		}
		if m.Get(key) != nil {
			return nil, d.errAt(ErrDuplicateKey, "duplicate map key %q", key)
		}
		valElem, verr := d.nextStart()
		if verr != nil {
			return nil, verr
		}
		if valElem == nil {
			return nil, d.errAt(ErrMalformed, "key %q has no value element", key)
		}
		val, perr := d.parseElement(*valElem, depth+1)
		if perr != nil {
			return nil, perr
		}
		m.mapVal = append(m.mapVal, MapEntry{Key: key, Value: val})
	}
}
