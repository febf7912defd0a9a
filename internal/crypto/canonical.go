package crypto

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Canonicalize encodes v as canonical JSON bytes: object keys sorted, no
// insignificant whitespace, strings NFC-normalised, nil members dropped.
func Canonicalize(v any) ([]byte, error) {
	enc := encoder{stripNulls: true}
	if err := enc.value(v); err != nil {
		return nil, err
	}
	return enc.buf.Bytes(), nil
}

// CanonicalizeSubset canonicalizes only the named members of m. Members that
// are missing or nil are omitted, so the output is independent of every key
// outside fields.
func CanonicalizeSubset(m map[string]any, fields []string) ([]byte, error) {
	view := make(map[string]any, len(fields))
	for _, field := range fields {
		if value, ok := m[field]; ok && !isNilValue(value) {
			view[field] = value
		}
	}
	return Canonicalize(view)
}

type encoder struct {
	buf        bytes.Buffer
	stripNulls bool
}

type mapEntry struct {
	key   string
	value any
}

func (e *encoder) value(v any) error {
	if v == nil {
		e.buf.WriteString("null")
		return nil
	}

	if n, ok := v.(json.Number); ok {
		return e.number(n)
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.String:
		return e.string(rv.String())
	case reflect.Bool:
		e.buf.WriteString(strconv.FormatBool(rv.Bool()))
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.buf.WriteString(strconv.FormatInt(rv.Int(), 10))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		e.buf.WriteString(strconv.FormatUint(rv.Uint(), 10))
		return nil
	case reflect.Float32, reflect.Float64:
		return ErrFloatNotAllowed
	case reflect.Map:
		return e.object(rv)
	case reflect.Slice, reflect.Array:
		return e.array(rv)
	case reflect.Invalid:
		e.buf.WriteString("null")
		return nil
	default:
		return ErrUnsupportedType
	}
}

func (e *encoder) string(s string) error {
	encoded, err := json.Marshal(norm.NFC.String(s))
	if err != nil {
		return err
	}
	e.buf.Write(encoded)
	return nil
}

func (e *encoder) number(n json.Number) error {
	if hasFraction(n.String()) {
		return ErrFloatNotAllowed
	}
	value, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return ErrFloatNotAllowed
	}
	e.buf.WriteString(strconv.FormatInt(value, 10))
	return nil
}

func (e *encoder) object(rv reflect.Value) error {
	if rv.Type().Key().Kind() != reflect.String {
		return ErrNonStringMapKey
	}

	entries := make([]mapEntry, 0, rv.Len())
	seen := map[string]struct{}{}

	for _, key := range rv.MapKeys() {
		keyStr := norm.NFC.String(key.String())
		if _, ok := seen[keyStr]; ok {
			return ErrKeyCollision
		}
		seen[keyStr] = struct{}{}

		val := rv.MapIndex(key).Interface()
		if e.stripNulls && isNilValue(val) {
			continue
		}
		entries = append(entries, mapEntry{key: keyStr, value: val})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].key < entries[j].key
	})

	e.buf.WriteByte('{')
	for i, entry := range entries {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		if err := e.string(entry.key); err != nil {
			return err
		}
		e.buf.WriteByte(':')
		if err := e.value(entry.value); err != nil {
			return err
		}
	}
	e.buf.WriteByte('}')
	return nil
}

func (e *encoder) array(rv reflect.Value) error {
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		e.buf.WriteString("null")
		return nil
	}

	e.buf.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		if err := e.value(rv.Index(i).Interface()); err != nil {
			return err
		}
	}
	e.buf.WriteByte(']')
	return nil
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice:
		return rv.IsNil()
	default:
		return false
	}
}

func hasFraction(s string) bool {
	for _, r := range s {
		if r == '.' || r == 'e' || r == 'E' {
			return true
		}
	}
	return false
}
