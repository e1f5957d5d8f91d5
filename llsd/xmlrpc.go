package llsd

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"strconv"
	"strings"
	"time"
)

// The XML-RPC bridge maps values onto the classic methodCall /
// methodResponse envelopes. The mapping is lossy by design:
//
//	Integer -> <int>           Boolean -> <boolean>1|0</boolean>
//	Real    -> <double>        String  -> <string>
//	Date    -> <dateTime.iso8601>      Binary -> <base64>
//	UUID    -> <string> (hyphenated)   URI    -> <string>
//	Array   -> <array><data>   Map     -> <struct><member>
//
// Undefined has no XML-RPC equivalent and is rejected unless AllowNil
// maps it to the <nil/> extension. Decoding a bridged document never
// recovers UUID or URI kinds; they come back as String.

// XMLRPC is a decoded or to-be-encoded envelope.
type XMLRPC struct {
	method string
	value  *Value
	call   bool
	fault  bool
}

// NewMethodCall builds a call envelope carrying one parameter.
func NewMethodCall(method string, v *Value) *XMLRPC {
	return &XMLRPC{method: method, value: v, call: true}
}

// NewMethodResponse builds a response envelope.
func NewMethodResponse(v *Value) *XMLRPC {
	return &XMLRPC{value: v}
}

// NewFault builds a fault response with the conventional
// faultCode/faultString struct.
func NewFault(code int32, message string) *XMLRPC {
	return &XMLRPC{
		fault: true,
		value: Map(
			Entry("faultCode", Integer(code)),
			Entry("faultString", String(message)),
		),
	}
}

// Method returns the method name; empty for responses.
func (r *XMLRPC) Method() string { return r.method }

// Value returns the envelope payload.
func (r *XMLRPC) Value() *Value { return r.value }

// IsCall reports whether the envelope is a methodCall.
func (r *XMLRPC) IsCall() bool { return r.call }

// IsFault reports whether the envelope is a fault response.
func (r *XMLRPC) IsFault() bool { return r.fault }

// XMLRPCOptions configures the bridge.
type XMLRPCOptions struct {
	// AllowNil maps Undefined to the <nil/> extension instead of
	// failing with ErrUnsupported.
	AllowNil bool

	// MaxDepth bounds decoder nesting (DefaultMaxDepth when zero).
	MaxDepth int
}

// MarshalXMLRPC encodes an envelope with default options.
func MarshalXMLRPC(r *XMLRPC) ([]byte, error) {
	return MarshalXMLRPCOptions(r, XMLRPCOptions{})
}

// MarshalXMLRPCOptions encodes an envelope.
func MarshalXMLRPCOptions(r *XMLRPC, opts XMLRPCOptions) ([]byte, error) {
	var out []byte
	out = append(out, `<?xml version="1.0"?>`...)
	switch {
	case r.call:
		out = append(out, "<methodCall><methodName>"...)
		out = appendXMLEscaped(out, r.method)
		out = append(out, "</methodName><params><param><value>"...)
		var err *Error
		out, err = appendRPCValue(out, r.value, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, "</value></param></params></methodCall>"...)
	case r.fault:
		out = append(out, "<methodResponse><fault><value>"...)
		var err *Error
		out, err = appendRPCValue(out, r.value, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, "</value></fault></methodResponse>"...)
	default:
		out = append(out, "<methodResponse><params><param><value>"...)
		var err *Error
		out, err = appendRPCValue(out, r.value, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, "</value></param></params></methodResponse>"...)
	}
	return out, nil
}

func appendRPCValue(dst []byte, v *Value, opts XMLRPCOptions) ([]byte, *Error) {
	switch v.Kind() {
	case KindUndefined:
		if !opts.AllowNil {
			return nil, newErr(ErrUnsupported, "undefined has no XML-RPC mapping")
		}
		return append(dst, "<nil/>"...), nil
	case KindBoolean:
		if v.boolVal {
			return append(dst, "<boolean>1</boolean>"...), nil
		}
		return append(dst, "<boolean>0</boolean>"...), nil
	case KindInteger:
		dst = append(dst, "<int>"...)
		dst = strconv.AppendInt(dst, int64(v.intVal), 10)
		return append(dst, "</int>"...), nil
	case KindReal:
		dst = append(dst, "<double>"...)
		dst = append(dst, formatReal(v.realVal)...)
		return append(dst, "</double>"...), nil
	case KindString:
		dst = append(dst, "<string>"...)
		dst = appendXMLEscaped(dst, v.strVal)
		return append(dst, "</string>"...), nil
	case KindUUID:
		dst = append(dst, "<string>"...)
		dst = append(dst, v.uuidVal.String()...)
		return append(dst, "</string>"...), nil
	case KindURI:
		dst = append(dst, "<string>"...)
		dst = appendXMLEscaped(dst, v.strVal)
		return append(dst, "</string>"...), nil
	case KindDate:
		dst = append(dst, "<dateTime.iso8601>"...)
		dst = append(dst, formatDate(v.timeVal)...)
		return append(dst, "</dateTime.iso8601>"...), nil
	case KindBinary:
		dst = append(dst, "<base64>"...)
		dst = append(dst, base64.StdEncoding.EncodeToString(v.binVal)...)
		return append(dst, "</base64>"...), nil
	case KindArray:
		dst = append(dst, "<array><data>"...)
		for _, elem := range v.arrVal {
			dst = append(dst, "<value>"...)
			var err *Error
			dst, err = appendRPCValue(dst, elem, opts)
			if err != nil {
				return nil, err
			}
			dst = append(dst, "</value>"...)
		}
		return append(dst, "</data></array>"...), nil
	case KindMap:
		dst = append(dst, "<struct>"...)
		for _, entry := range v.mapVal {
			dst = append(dst, "<member><name>"...)
			dst = appendXMLEscaped(dst, entry.Key)
			dst = append(dst, "</name><value>"...)
			var err *Error
			dst, err = appendRPCValue(dst, entry.Value, opts)
			if err != nil {
				return nil, err
			}
			dst = append(dst, "</value></member>"...)
		}
		return append(dst, "</struct>"...), nil
	default:
		return nil, newErr(ErrUnsupported, "kind %s has no XML-RPC mapping", v.Kind())
	}
}

// ============================================================
// Decoder
// ============================================================

// UnmarshalXMLRPC decodes a methodCall or methodResponse document.
// Zero parameters decode as Undefined; more than one fold into an
// Array in order.
func UnmarshalXMLRPC(data []byte) (*XMLRPC, error) {
	return UnmarshalXMLRPCOptions(data, XMLRPCOptions{})
}

// UnmarshalXMLRPCOptions decodes an envelope.
func UnmarshalXMLRPCOptions(data []byte, opts XMLRPCOptions) (*XMLRPC, error) {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	d := &xmlDecoder{dec: xml.NewDecoder(bytes.NewReader(data)), maxDepth: maxDepth}
	root, err := d.nextStart()
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, newErr(ErrTruncated, "document has no root element")
	}
	switch root.Name.Local {
	case "methodCall":
		return d.parseMethodCall()
	case "methodResponse":
		return d.parseMethodResponse()
	default:
		return nil, d.errAt(ErrUnknownTag, "unexpected root element <%s>", root.Name.Local)
	}
}

func (d *xmlDecoder) parseMethodCall() (*XMLRPC, error) {
	first, err := d.nextStart()
	if err != nil {
		return nil, err
	}
	if first == nil || first.Name.Local != "methodName" {
		return nil, d.errAt(ErrMalformed, "methodCall missing <methodName>")
	}
	method, terr := d.text("methodName")
	if terr != nil {
		return nil, terr
	}
	value := Undefined()
	next, err := d.nextStart()
	if err != nil {
		return nil, err
	}
	if next != nil {
		if next.Name.Local != "params" {
			return nil, d.errAt(ErrMalformed, "expected <params>, got <%s>", next.Name.Local)
		}
		v, perr := d.parseParams()
		if perr != nil {
			return nil, perr
		}
		value = v
	}
	return &XMLRPC{method: strings.TrimSpace(method), value: value, call: true}, nil
}

func (d *xmlDecoder) parseMethodResponse() (*XMLRPC, error) {
	first, err := d.nextStart()
	if err != nil {
		return nil, err
	}
	if first == nil {
		return &XMLRPC{value: Undefined()}, nil
	}
	switch first.Name.Local {
	case "params":
		value, perr := d.parseParams()
		if perr != nil {
			return nil, perr
		}
		return &XMLRPC{value: value}, nil
	case "fault":
		inner, ferr := d.nextStart()
		if ferr != nil {
			return nil, ferr
		}
		if inner == nil || inner.Name.Local != "value" {
			return nil, d.errAt(ErrMalformed, "fault missing <value>")
		}
		value, verr := d.parseRPCValue(0)
		if verr != nil {
			return nil, verr
		}
		return &XMLRPC{value: value, fault: true}, nil
	default:
		return nil, d.errAt(ErrMalformed, "expected <params> or <fault>, got <%s>", first.Name.Local)
	}
}

// parseParams consumes the children of <params>.
func (d *xmlDecoder) parseParams() (*Value, error) {
	var values []*Value
	for {
		param, err := d.nextStart()
		if err != nil {
			return nil, err
		}
		if param == nil {
			break
		}
		if param.Name.Local != "param" {
			return nil, d.errAt(ErrMalformed, "expected <param>, got <%s>", param.Name.Local)
		}
		inner, err := d.nextStart()
		if err != nil {
			return nil, err
		}
		if inner == nil || inner.Name.Local != "value" {
			return nil, d.errAt(ErrMalformed, "param missing <value>")
		}
		v, perr := d.parseRPCValue(0)
		if perr != nil {
			return nil, perr
		}
		values = append(values, v)
		// consume </param>
		extra, err := d.nextStart()
		if err != nil {
			return nil, err
		}
		if extra != nil {
			return nil, d.errAt(ErrMalformed, "unexpected element <%s> in <param>", extra.Name.Local)
		}
	}
	switch len(values) {
	case 0:
		return Undefined(), nil
	case 1:
		return values[0], nil
	default:
		return Array(values...), nil
	}
}

// parseRPCValue consumes the contents of a <value> element through its
// end tag. Bare text with no typed child is a string, per convention.
func (d *xmlDecoder) parseRPCValue(depth int) (*Value, error) {
	if depth >= d.maxDepth {
		return nil, d.errAt(ErrDepthExceeded, "nesting exceeds %d", d.maxDepth)
	}
	var sb strings.Builder
	for {
		tok, err := d.token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.EndElement:
			return String(sb.String()), nil
		case xml.StartElement:
			if strings.TrimSpace(sb.String()) != "" {
				return nil, d.errAt(ErrMalformed, "text %q mixed with <%s> in <value>", sb.String(), t.Name.Local)
			}
			v, perr := d.parseRPCTyped(t, depth)
			if perr != nil {
				return nil, perr
			}
			extra, serr := d.nextStart()
			if serr != nil {
				return nil, serr
			}
			if extra != nil {
				return nil, d.errAt(ErrMalformed, "unexpected second element <%s> in <value>", extra.Name.Local)
			}
			return v, nil
		}
	}
}

func (d *xmlDecoder) parseRPCTyped(se xml.StartElement, depth int) (*Value, error) {
	name := se.Name.Local
	switch name {
	case "array":
		return d.parseRPCArray(depth)
	case "struct":
		return d.parseRPCStruct(depth)
	}

	text, terr := d.text(name)
	if terr != nil {
		return nil, terr
	}
	switch name {
	case "int", "i4":
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 32)
		if err != nil {
			return nil, d.errAt(ErrMalformed, "invalid int %q", text)
		}
		return Integer(int32(n)), nil
	case "boolean":
		switch strings.TrimSpace(text) {
		case "0", "false":
			return Boolean(false), nil
		case "1", "true":
			return Boolean(true), nil
		}
		return nil, d.errAt(ErrMalformed, "invalid boolean %q", text)
	case "double":
		f, err := parseReal(strings.TrimSpace(text))
		if err != nil {
			return nil, d.errAt(ErrMalformed, "invalid double %q", text)
		}
		return Real(f), nil
	case "string":
		return String(text), nil
	case "dateTime.iso8601":
		t := strings.TrimSpace(text)
		when, err := parseDate(t)
		if err != nil {
			// classic XML-RPC timestamps omit hyphens and zone
			when, err = time.Parse("20060102T15:04:05", t)
			if err != nil {
				return nil, d.errAt(ErrMalformed, "invalid dateTime %q", t)
			}
		}
		return Date(when), nil
	case "base64":
		raw, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(text), ""))
		if err != nil {
			return nil, d.errAt(ErrEncoding, "invalid base64: %v", err)
		}
		return Binary(raw), nil
	case "nil":
		return Undefined(), nil
	default:
		return nil, d.errAt(ErrUnknownTag, "unexpected element <%s>", name)
	}
}

func (d *xmlDecoder) parseRPCArray(depth int) (*Value, error) {
	data, err := d.nextStart()
	if err != nil {
		return nil, err
	}
	if data == nil || data.Name.Local != "data" {
		return nil, d.errAt(ErrMalformed, "array missing <data>")
	}
	var elems []*Value
	for {
		child, err := d.nextStart()
		if err != nil {
			return nil, err
		}
		if child == nil {
			break
		}
		if child.Name.Local != "value" {
			return nil, d.errAt(ErrMalformed, "expected <value>, got <%s>", child.Name.Local)
		}
		elem, perr := d.parseRPCValue(depth + 1)
		if perr != nil {
			return nil, perr
		}
		elems = append(elems, elem)
	}
	// consume </array>
	extra, err := d.nextStart()
	if err != nil {
		return nil, err
	}
	if extra != nil {
		return nil, d.errAt(ErrMalformed, "unexpected element <%s> after <data>", extra.Name.Local)
	}
	return Array(elems...), nil
}

func (d *xmlDecoder) parseRPCStruct(depth int) (*Value, error) {
	m := &Value{kind: KindMap}
	for {
		member, err := d.nextStart()
		if err != nil {
			return nil, err
		}
		if member == nil {
			return m, nil
		}
		if member.Name.Local != "member" {
			return nil, d.errAt(ErrMalformed, "expected <member>, got <%s>", member.Name.Local)
		}
		nameElem, err := d.nextStart()
		if err != nil {
			return nil, err
		}
		if nameElem == nil || nameElem.Name.Local != "name" {
			return nil, d.errAt(ErrMalformed, "member missing <name>")
		}
		key, terr := d.text("name")
		if terr != nil {
			return nil, terr
		}
		if m.Get(key) != nil {
			return nil, d.errAt(ErrDuplicateKey, "duplicate struct member %q", key)
		}
		valElem, err := d.nextStart()
		if err != nil {
			return nil, err
		}
		if valElem == nil || valElem.Name.Local != "value" {
			return nil, d.errAt(ErrMalformed, "member %q missing <value>", key)
		}
		val, perr := d.parseRPCValue(depth + 1)
		if perr != nil {
			return nil, perr
		}
		m.mapVal = append(m.mapVal, MapEntry{Key: key, Value: val})
		// consume </member>
		extra, err := d.nextStart()
		if err != nil {
			return nil, err
		}
		if extra != nil {
			return nil, d.errAt(ErrMalformed, "unexpected element <%s> in <member>", extra.Name.Local)
		}
	}
}
