package llsd

import (
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

// Scalar conversion layer. The As* accessors on Value are strict; the
// helpers here apply the cross-kind coercions the wire formats rely on
// (integer/real/boolean/numeric-string interchange) and the element-wise
// container conversions, reporting the failing index or key.

// ============================================================
// Numeric coercion
// ============================================================

// Int64Of converts Integer, Real (truncating), Boolean (0/1) or a
// numeric String to int64.
func Int64Of(v *Value) (int64, error) {
	switch v.Kind() {
	case KindInteger:
		return int64(v.intVal), nil
	case KindReal:
		return int64(v.realVal), nil
	case KindBoolean:
		if v.boolVal {
			return 1, nil
		}
		return 0, nil
	case KindString:
		n, err := strconv.ParseInt(v.strVal, 10, 64)
		if err != nil {
			return 0, newErr(ErrMalformed, "invalid integer literal %q", v.strVal)
		}
		return n, nil
	default:
		return 0, mismatch(KindInteger, v.Kind())
	}
}

// Float64Of converts Real, Integer, Boolean (0/1) or a numeric String
// to float64.
func Float64Of(v *Value) (float64, error) {
	switch v.Kind() {
	case KindReal:
		return v.realVal, nil
	case KindInteger:
		return float64(v.intVal), nil
	case KindBoolean:
		if v.boolVal {
			return 1, nil
		}
		return 0, nil
	case KindString:
		f, err := strconv.ParseFloat(v.strVal, 64)
		if err != nil {
			return 0, newErr(ErrMalformed, "invalid real literal %q", v.strVal)
		}
		return f, nil
	default:
		return 0, mismatch(KindReal, v.Kind())
	}
}

// Number returns a numeric payload as float64 if the value is Integer
// or Real.
func (v *Value) Number() (float64, bool) {
	switch v.Kind() {
	case KindInteger:
		return float64(v.intVal), true
	case KindReal:
		return v.realVal, true
	default:
		return 0, false
	}
}

// IsNumeric returns true for Integer or Real.
func (v *Value) IsNumeric() bool {
	k := v.Kind()
	return k == KindInteger || k == KindReal
}

type integerType interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// IntegerAs narrows a coerced int64 into any native integer width,
// failing with ErrRange when the value does not fit.
func IntegerAs[T integerType](v *Value) (T, error) {
	n, err := Int64Of(v)
	if err != nil {
		return 0, err
	}
	t := T(n)
	if int64(t) != n || (n < 0) != (t < 0) {
		return 0, newErr(ErrRange, "value %d does not fit in %T", n, t)
	}
	return t, nil
}

// ============================================================
// Identifier, uri, string coercion
// ============================================================

// UUIDOf accepts a UUID value or its canonical textual form as a String.
func UUIDOf(v *Value) (uuid.UUID, error) {
	switch v.Kind() {
	case KindUUID:
		return v.uuidVal, nil
	case KindString:
		u, err := uuid.Parse(v.strVal)
		if err != nil {
			return uuid.UUID{}, newErr(ErrMalformed, "invalid uuid literal %q", v.strVal)
		}
		return u, nil
	default:
		return uuid.UUID{}, mismatch(KindUUID, v.Kind())
	}
}

// URLOf parses a URI or String value into a *url.URL. Empty URI text
// yields nil without error.
func URLOf(v *Value) (*url.URL, error) {
	var raw string
	switch v.Kind() {
	case KindURI, KindString:
		raw = v.strVal
	default:
		return nil, mismatch(KindURI, v.Kind())
	}
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, newErr(ErrEncoding, "invalid uri %q: %v", raw, err)
	}
	return u, nil
}

// URIFromURL creates a uri value from a parsed URL.
func URIFromURL(u *url.URL) *Value {
	if u == nil {
		return URI("")
	}
	return URI(u.String())
}

// StringOf converts any scalar to its canonical textual form. Containers
// and Undefined fail with TypeMismatch.
func StringOf(v *Value) (string, error) {
	switch v.Kind() {
	case KindString, KindURI:
		return v.strVal, nil
	case KindBoolean:
		if v.boolVal {
			return "true", nil
		}
		return "false", nil
	case KindInteger:
		return strconv.FormatInt(int64(v.intVal), 10), nil
	case KindReal:
		return formatReal(v.realVal), nil
	case KindUUID:
		return v.uuidVal.String(), nil
	case KindDate:
		return formatDate(v.timeVal), nil
	default:
		return "", mismatch(KindString, v.Kind())
	}
}

// BoolOf converts Boolean, a nonzero number, or the literals
// "true"/"false"/"1"/"0" to bool.
func BoolOf(v *Value) (bool, error) {
	switch v.Kind() {
	case KindBoolean:
		return v.boolVal, nil
	case KindInteger:
		return v.intVal != 0, nil
	case KindReal:
		return v.realVal != 0 && !math.IsNaN(v.realVal), nil
	case KindString:
		switch v.strVal {
		case "true", "1":
			return true, nil
		case "false", "0", "":
			return false, nil
		}
		return false, newErr(ErrMalformed, "invalid boolean literal %q", v.strVal)
	default:
		return false, mismatch(KindBoolean, v.Kind())
	}
}

// ============================================================
// Optional and container conversion
// ============================================================

// Optional applies extract unless the value is Undefined, which maps to
// absent (ok=false) with no error.
func Optional[T any](v *Value, extract func(*Value) (T, error)) (out T, ok bool, err error) {
	if v.IsUndefined() {
		return out, false, nil
	}
	out, err = extract(v)
	return out, err == nil, err
}

// ArrayOf applies extract element-wise over an array, failing on the
// first bad element and reporting its index.
func ArrayOf[T any](v *Value, extract func(*Value) (T, error)) ([]T, error) {
	elems, err := v.AsArray()
	if err != nil {
		return nil, err
	}
	out := make([]T, len(elems))
	for i, e := range elems {
		out[i], err = extract(e)
		if err != nil {
			return nil, wrapPath(err, fmt.Sprintf("[%d]", i))
		}
	}
	return out, nil
}

// MapOf applies extract entry-wise over a map, failing on the first bad
// entry and reporting its key.
func MapOf[T any](v *Value, extract func(*Value) (T, error)) (map[string]T, error) {
	entries, err := v.AsMap()
	if err != nil {
		return nil, err
	}
	out := make(map[string]T, len(entries))
	for _, e := range entries {
		t, err := extract(e.Value)
		if err != nil {
			return nil, wrapPath(err, e.Key)
		}
		out[e.Key] = t
	}
	return out, nil
}

// Strings extracts an array of strings.
func Strings(v *Value) ([]string, error) {
	return ArrayOf(v, (*Value).AsString)
}

// Integers extracts an array of 32-bit integers.
func Integers(v *Value) ([]int32, error) {
	return ArrayOf(v, (*Value).AsInteger)
}

// Reals extracts an array of float64 values with numeric coercion.
func Reals(v *Value) ([]float64, error) {
	return ArrayOf(v, Float64Of)
}

// StringMap extracts a map of strings.
func StringMap(v *Value) (map[string]string, error) {
	return MapOf(v, (*Value).AsString)
}

// ArrayFrom builds an array value by converting each native element.
func ArrayFrom[T any](items []T, construct func(T) *Value) *Value {
	elems := make([]*Value, len(items))
	for i, it := range items {
		elems[i] = construct(it)
	}
	return Array(elems...)
}

// MapFrom builds a map value from a native map. Key order is sorted by
// the caller if determinism matters; Go map iteration order is used here.
func MapFrom[T any](items map[string]T, construct func(T) *Value) *Value {
	v := &Value{kind: KindMap, mapVal: make([]MapEntry, 0, len(items))}
	for k, it := range items {
		v.mapVal = append(v.mapVal, MapEntry{Key: k, Value: construct(it)})
	}
	return v
}

func wrapPath(err error, elem string) error {
	e, ok := err.(*Error)
	if !ok {
		return err
	}
	if e.Path == "" {
		e.Path = elem
	} else {
		e.Path = elem + "/" + e.Path
	}
	return e
}
