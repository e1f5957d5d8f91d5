package llsd

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindBoolean
	KindInteger
	KindReal
	KindString
	KindUUID
	KindDate
	KindURI
	KindBinary
	KindArray
	KindMap
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindString:
		return "string"
	case KindUUID:
		return "uuid"
	case KindDate:
		return "date"
	case KindURI:
		return "uri"
	case KindBinary:
		return "binary"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is an LLSD value. The zero Value is Undefined.
type Value struct {
	kind Kind

	// Scalar payloads (only one valid based on kind)
	boolVal bool
	intVal  int32
	realVal float64
	strVal  string // String and URI
	binVal  []byte
	uuidVal uuid.UUID
	timeVal time.Time

	// Container payloads
	arrVal []*Value
	mapVal []MapEntry
}

// MapEntry is one key-value pair of a map. Map entries keep insertion
// order so every codec serializes deterministically.
type MapEntry struct {
	Key   string
	Value *Value
}

// ============================================================
// Constructors
// ============================================================

// Undefined creates an undefined value.
func Undefined() *Value {
	return &Value{kind: KindUndefined}
}

// Boolean creates a boolean value.
func Boolean(v bool) *Value {
	return &Value{kind: KindBoolean, boolVal: v}
}

// Integer creates a 32-bit integer value.
func Integer(v int32) *Value {
	return &Value{kind: KindInteger, intVal: v}
}

// Real creates a 64-bit float value.
func Real(v float64) *Value {
	return &Value{kind: KindReal, realVal: v}
}

// String creates a string value.
func String(v string) *Value {
	return &Value{kind: KindString, strVal: v}
}

// UUID creates a uuid value.
func UUID(v uuid.UUID) *Value {
	return &Value{kind: KindUUID, uuidVal: v}
}

// Date creates a date value, normalized to UTC.
func Date(v time.Time) *Value {
	return &Value{kind: KindDate, timeVal: v.UTC()}
}

// URI creates a uri value. The text is kept verbatim; syntactic
// validation happens on extraction, not construction.
func URI(v string) *Value {
	return &Value{kind: KindURI, strVal: v}
}

// Binary creates a binary value.
func Binary(v []byte) *Value {
	return &Value{kind: KindBinary, binVal: v}
}

// Array creates an array value.
func Array(elems ...*Value) *Value {
	return &Value{kind: KindArray, arrVal: elems}
}

// Map creates a map value from entries. Duplicate keys keep the last
// entry; use MapBuilder for the rejecting policy.
func Map(entries ...MapEntry) *Value {
	v := &Value{kind: KindMap}
	for _, e := range entries {
		v.Set(e.Key, e.Value)
	}
	return v
}

// Entry creates a MapEntry for use in Map construction.
func Entry(key string, value *Value) MapEntry {
	return MapEntry{Key: key, Value: value}
}

// ============================================================
// Accessors
// ============================================================

// Kind returns the variant discriminant. A nil Value is Undefined.
func (v *Value) Kind() Kind {
	if v == nil {
		return KindUndefined
	}
	return v.kind
}

// IsUndefined returns true for nil or explicitly undefined values.
func (v *Value) IsUndefined() bool {
	return v == nil || v.kind == KindUndefined
}

// AsBoolean returns the boolean payload.
func (v *Value) AsBoolean() (bool, error) {
	if v.Kind() != KindBoolean {
		return false, mismatch(KindBoolean, v.Kind())
	}
	return v.boolVal, nil
}

// AsInteger returns the integer payload.
func (v *Value) AsInteger() (int32, error) {
	if v.Kind() != KindInteger {
		return 0, mismatch(KindInteger, v.Kind())
	}
	return v.intVal, nil
}

// AsReal returns the real payload.
func (v *Value) AsReal() (float64, error) {
	if v.Kind() != KindReal {
		return 0, mismatch(KindReal, v.Kind())
	}
	return v.realVal, nil
}

// AsString returns the string payload.
func (v *Value) AsString() (string, error) {
	if v.Kind() != KindString {
		return "", mismatch(KindString, v.Kind())
	}
	return v.strVal, nil
}

// AsUUID returns the uuid payload.
func (v *Value) AsUUID() (uuid.UUID, error) {
	if v.Kind() != KindUUID {
		return uuid.UUID{}, mismatch(KindUUID, v.Kind())
	}
	return v.uuidVal, nil
}

// AsDate returns the date payload.
func (v *Value) AsDate() (time.Time, error) {
	if v.Kind() != KindDate {
		return time.Time{}, mismatch(KindDate, v.Kind())
	}
	return v.timeVal, nil
}

// AsURI returns the uri payload as text.
func (v *Value) AsURI() (string, error) {
	if v.Kind() != KindURI {
		return "", mismatch(KindURI, v.Kind())
	}
	return v.strVal, nil
}

// AsBinary returns the binary payload.
func (v *Value) AsBinary() ([]byte, error) {
	if v.Kind() != KindBinary {
		return nil, mismatch(KindBinary, v.Kind())
	}
	return v.binVal, nil
}

// AsArray returns the array elements.
func (v *Value) AsArray() ([]*Value, error) {
	if v.Kind() != KindArray {
		return nil, mismatch(KindArray, v.Kind())
	}
	return v.arrVal, nil
}

// AsMap returns the map entries in insertion order.
func (v *Value) AsMap() ([]MapEntry, error) {
	if v.Kind() != KindMap {
		return nil, mismatch(KindMap, v.Kind())
	}
	return v.mapVal, nil
}

func mismatch(want, got Kind) *Error {
	return newErr(ErrTypeMismatch, "expected %s, got %s", want, got)
}

// Len returns the length of an array or map, 0 otherwise.
func (v *Value) Len() int {
	if v == nil {
		return 0
	}
	switch v.kind {
	case KindArray:
		return len(v.arrVal)
	case KindMap:
		return len(v.mapVal)
	default:
		return 0
	}
}

// Get returns a map entry value by key, or nil.
func (v *Value) Get(key string) *Value {
	if v == nil || v.kind != KindMap {
		return nil
	}
	for _, e := range v.mapVal {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}

// Has reports whether a map contains the key.
func (v *Value) Has(key string) bool {
	return v.Get(key) != nil
}

// Index returns the i-th array element.
func (v *Value) Index(i int) (*Value, error) {
	if v.Kind() != KindArray {
		return nil, mismatch(KindArray, v.Kind())
	}
	if i < 0 || i >= len(v.arrVal) {
		return nil, newErr(ErrRange, "index %d out of bounds (len=%d)", i, len(v.arrVal))
	}
	return v.arrVal[i], nil
}

// ============================================================
// Mutators
// ============================================================

// Set sets a map entry, overwriting an existing key. An undefined value
// becomes a map; any other kind returns a TypeMismatch error.
func (v *Value) Set(key string, val *Value) error {
	switch v.kind {
	case KindUndefined:
		v.kind = KindMap
	case KindMap:
	default:
		return mismatch(KindMap, v.kind)
	}
	for i := range v.mapVal {
		if v.mapVal[i].Key == key {
			v.mapVal[i].Value = val
			return nil
		}
	}
	v.mapVal = append(v.mapVal, MapEntry{Key: key, Value: val})
	return nil
}

// Delete removes a map entry by key, if present.
func (v *Value) Delete(key string) {
	if v == nil || v.kind != KindMap {
		return
	}
	for i := range v.mapVal {
		if v.mapVal[i].Key == key {
			v.mapVal = append(v.mapVal[:i], v.mapVal[i+1:]...)
			return
		}
	}
}

// Append adds an element to an array. An undefined value becomes an
// array; any other kind returns a TypeMismatch error.
func (v *Value) Append(val *Value) error {
	switch v.kind {
	case KindUndefined:
		v.kind = KindArray
	case KindArray:
	default:
		return mismatch(KindArray, v.kind)
	}
	v.arrVal = append(v.arrVal, val)
	return nil
}

// Clear resets the value to Undefined.
func (v *Value) Clear() {
	*v = Value{}
}

// ============================================================
// Navigation
// ============================================================

// Pointer resolves a JSON-pointer style path ("/a/0/b", with ~0 and ~1
// unescaping) against nested maps and arrays. Returns nil when the path
// does not resolve.
func (v *Value) Pointer(pointer string) *Value {
	if pointer == "" {
		return v
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil
	}
	cur := v
	for _, token := range strings.Split(pointer, "/")[1:] {
		token = strings.ReplaceAll(token, "~1", "/")
		token = strings.ReplaceAll(token, "~0", "~")
		switch cur.Kind() {
		case KindArray:
			i, err := strconv.Atoi(token)
			if err != nil || i < 0 || i >= len(cur.arrVal) {
				return nil
			}
			cur = cur.arrVal[i]
		case KindMap:
			cur = cur.Get(token)
			if cur == nil {
				return nil
			}
		default:
			return nil
		}
	}
	return cur
}

// ============================================================
// Equality and copying
// ============================================================

// Equal reports structural equality. Arrays are order-sensitive; maps
// compare by key set and values regardless of entry order. Reals compare
// by bit pattern so NaN equals NaN across a round-trip.
func (v *Value) Equal(other *Value) bool {
	if v.Kind() != other.Kind() {
		return false
	}
	switch v.Kind() {
	case KindUndefined:
		return true
	case KindBoolean:
		return v.boolVal == other.boolVal
	case KindInteger:
		return v.intVal == other.intVal
	case KindReal:
		return math.Float64bits(v.realVal) == math.Float64bits(other.realVal)
	case KindString, KindURI:
		return v.strVal == other.strVal
	case KindUUID:
		return v.uuidVal == other.uuidVal
	case KindDate:
		return v.timeVal.Equal(other.timeVal)
	case KindBinary:
		if len(v.binVal) != len(other.binVal) {
			return false
		}
		for i := range v.binVal {
			if v.binVal[i] != other.binVal[i] {
				return false
			}
		}
		return true
	case KindArray:
		if len(v.arrVal) != len(other.arrVal) {
			return false
		}
		for i := range v.arrVal {
			if !v.arrVal[i].Equal(other.arrVal[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.mapVal) != len(other.mapVal) {
			return false
		}
		for _, e := range v.mapVal {
			o := other.Get(e.Key)
			if o == nil || !e.Value.Equal(o) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Clone returns a deep copy sharing no mutable state with the original.
func (v *Value) Clone() *Value {
	if v == nil {
		return Undefined()
	}
	out := *v
	switch v.kind {
	case KindBinary:
		out.binVal = append([]byte(nil), v.binVal...)
	case KindArray:
		out.arrVal = make([]*Value, len(v.arrVal))
		for i, e := range v.arrVal {
			out.arrVal[i] = e.Clone()
		}
	case KindMap:
		out.mapVal = make([]MapEntry, len(v.mapVal))
		for i, e := range v.mapVal {
			out.mapVal[i] = MapEntry{Key: e.Key, Value: e.Value.Clone()}
		}
	}
	return &out
}

// ============================================================
// Map builder
// ============================================================

// MapBuilder assembles a map with chained insertion. Inserting a key
// twice is an ErrDuplicateKey reported by Build; this is the hard-error
// half of the duplicate-key policy, matching what the decoders enforce.
type MapBuilder struct {
	entries []MapEntry
	err     *Error
}

// NewMap returns an empty map builder.
func NewMap() *MapBuilder {
	return &MapBuilder{}
}

// Set appends a key-value pair. The first duplicate key poisons the
// builder; further calls are no-ops.
func (b *MapBuilder) Set(key string, val *Value) *MapBuilder {
	if b.err != nil {
		return b
	}
	for _, e := range b.entries {
		if e.Key == key {
			b.err = newErr(ErrDuplicateKey, "duplicate map key %q", key).in(key)
			return b
		}
	}
	b.entries = append(b.entries, MapEntry{Key: key, Value: val})
	return b
}

// Build returns the map value, or the first duplicate-key error.
func (b *MapBuilder) Build() (*Value, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &Value{kind: KindMap, mapVal: b.entries}, nil
}
