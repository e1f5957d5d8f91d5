// Package llsd implements LLSD, a self-describing structured data model
// with four interoperable wire encodings.
//
// LLSD values form a small closed set of types:
//
//	Scalars:    undefined, boolean, integer, real, string, uuid, date, uri, binary
//	Containers: array (ordered), map (string-keyed, insertion-ordered)
//
// A single in-memory Value carries any of these, and each codec is a pure
// function between Values and byte buffers.
//
// # Encodings
//
//	Binary:   tagged, length-prefixed, big-endian ("i" + int32, "s" + len + bytes, ...)
//	XML:      element-per-value (<llsd><map><key>k</key><integer>1</integer>...)
//	Notation: compact human-typeable text (i42, r3.14, 'str', [...], {'k':v})
//	XML-RPC:  lossy bridge onto the XML-RPC value vocabulary
//
// # Example
//
//	v := llsd.Map(
//	  llsd.Entry("name", llsd.String("Arsenal")),
//	  llsd.Entry("rank", llsd.Integer(1)),
//	)
//	text := llsd.MarshalNotation(v)          // {'name':'Arsenal','rank':i1}
//	back, err := llsd.UnmarshalNotation(text)
//
// # Error Handling
//
// All decoders return *Error carrying a Kind discriminant (ErrTruncated,
// ErrUnknownTag, ErrDepthExceeded, ...) plus a byte offset or element path,
// so callers match on kind instead of parsing messages. Malformed input
// never panics; every length is bounds-checked and every recursive descent
// is depth-bounded.
//
// # XML-RPC Bridge
//
// XML-RPC has no native uuid or uri type; both serialize as plain strings
// and decode back as String values. Undefined has no mapping and fails with
// ErrUnsupported unless the AllowNil option enables the <nil/> extension.
package llsd
