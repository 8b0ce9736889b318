// Package canon produces byte-stable JSON encodings of record projections.
//
// The encoding rules are fixed so that the output can be hashed and signed:
//
//   - object keys are sorted lexicographically (byte order of their UTF-8 form);
//   - array elements keep their order;
//   - object members whose value is nil are omitted, so an explicit null and an
//     absent field produce the same bytes (nil array elements stay as null);
//   - integers are written in base 10, floats in their shortest round-trip form
//     without redundant precision (1.0 is written as 1);
//   - json.Number values keep every significant digit: leading zeros,
//     trailing fractional zeros and the sign of zero are dropped, nothing else;
//   - time.Time values become ISO-8601 UTC strings with millisecond precision;
//   - []byte values become standard base64 strings;
//   - no insignificant whitespace and no HTML escaping.
//
// Values without a canonical form (functions, channels, complex numbers, structs
// other than time.Time, NaN and infinities, strings that are not valid UTF-8)
// are rejected with an *UnsupportedValueError.
package canon

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// TimeLayout is the layout used for every time.Time in canonical output.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// ErrUnsupportedValueKind is matched by every *UnsupportedValueError.
var ErrUnsupportedValueKind = errors.New("unsupported value kind")

// UnsupportedValueError reports a value with no canonical form and where it was found.
type UnsupportedValueError struct {
	Path string
	Kind string
}

func (e *UnsupportedValueError) Error() string {
	return fmt.Sprintf("canon: unsupported value kind %s at %s", e.Kind, e.Path)
}

func (e *UnsupportedValueError) Unwrap() error { return ErrUnsupportedValueKind }

var (
	timeType   = reflect.TypeOf(time.Time{})
	numberType = reflect.TypeOf(json.Number(""))
	bytesType  = reflect.TypeOf([]byte(nil))
)

// Marshal returns the canonical encoding of v.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, reflect.ValueOf(v), "$"); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FormatTime renders t the way Marshal does.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func encode(buf *bytes.Buffer, v reflect.Value, path string) error {
	v, isNil := deref(v)
	if isNil {
		buf.WriteString("null")
		return nil
	}

	switch v.Type() {
	case timeType:
		return writeString(buf, FormatTime(v.Interface().(time.Time)), path)
	case numberType:
		return writeNumber(buf, json.Number(v.String()), path)
	case bytesType:
		return writeString(buf, base64.StdEncoding.EncodeToString(v.Bytes()), path)
	}

	switch v.Kind() {
	case reflect.Bool:
		buf.WriteString(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		buf.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		s, ok := formatFloat(v.Float())
		if !ok {
			return &UnsupportedValueError{Path: path, Kind: "non-finite float"}
		}
		buf.WriteString(s)
	case reflect.String:
		return writeString(buf, v.String(), path)
	case reflect.Map:
		return encodeMap(buf, v, path)
	case reflect.Slice, reflect.Array:
		buf.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, v.Index(i), fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return &UnsupportedValueError{Path: path, Kind: v.Type().String()}
	}
	return nil
}

func encodeMap(buf *bytes.Buffer, v reflect.Value, path string) error {
	if v.Type().Key().Kind() != reflect.String {
		return &UnsupportedValueError{Path: path, Kind: "map key " + v.Type().Key().String()}
	}

	keys := make([]string, 0, v.Len())
	values := make(map[string]reflect.Value, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		if _, isNil := deref(iter.Value()); isNil {
			continue
		}
		k := iter.Key().String()
		keys = append(keys, k)
		values[k] = iter.Value()
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, k, path+"."+k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := encode(buf, values[k], path+"."+k); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// deref strips interfaces and pointers and reports whether the value is nil.
// Nil maps and slices count as nil.
func deref(v reflect.Value) (reflect.Value, bool) {
	for {
		if !v.IsValid() {
			return v, true
		}
		switch v.Kind() {
		case reflect.Interface, reflect.Pointer:
			if v.IsNil() {
				return v, true
			}
			v = v.Elem()
		case reflect.Map, reflect.Slice:
			return v, v.IsNil()
		default:
			return v, false
		}
	}
}

func writeString(buf *bytes.Buffer, s string, path string) error {
	// encoding/json would replace bad bytes with U+FFFD and merge distinct inputs
	if !utf8.ValidString(s) {
		return &UnsupportedValueError{Path: path, Kind: "invalid UTF-8 string"}
	}
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}

var numberPattern = regexp.MustCompile(`^(-?)([0-9]+)(?:\.([0-9]+))?(?:[eE]([+-]?[0-9]+))?$`)

// maxExponent bounds the decimal exponent of a json.Number.
const maxExponent = 1 << 20

// writeNumber normalizes the decimal text of n without going through
// float64, so numbers that differ in any significant digit stay distinct.
// The output has the same shape as formatFloat.
func writeNumber(buf *bytes.Buffer, n json.Number, path string) error {
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		buf.WriteString(strconv.FormatInt(i, 10))
		return nil
	}

	m := numberPattern.FindStringSubmatch(string(n))
	if m == nil {
		return &UnsupportedValueError{Path: path, Kind: "malformed number"}
	}
	negative, digits := m[1] == "-", m[2]+m[3]
	exp := -len(m[3])
	if m[4] != "" {
		e, err := strconv.Atoi(m[4])
		if err != nil || e > maxExponent || e < -maxExponent {
			return &UnsupportedValueError{Path: path, Kind: "number exponent out of range"}
		}
		exp += e
	}

	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		buf.WriteByte('0')
		return nil
	}
	trimmed := strings.TrimRight(digits, "0")
	exp += len(digits) - len(trimmed)
	digits = trimmed

	if negative {
		buf.WriteByte('-')
	}
	buf.WriteString(formatDecimal(digits, exp))
	return nil
}

// formatDecimal renders digits*10^exp. digits has no leading or trailing
// zeros. Plain notation is used for magnitudes in [1e-6, 1e21).
func formatDecimal(digits string, exp int) string {
	n := len(digits)
	sci := exp + n - 1
	if sci < -6 || sci >= 21 {
		var b strings.Builder
		b.WriteByte(digits[0])
		if n > 1 {
			b.WriteByte('.')
			b.WriteString(digits[1:])
		}
		b.WriteByte('e')
		if sci >= 0 {
			b.WriteByte('+')
		}
		b.WriteString(strconv.Itoa(sci))
		return b.String()
	}
	switch point := n + exp; {
	case exp >= 0:
		return digits + strings.Repeat("0", exp)
	case point > 0:
		return digits[:point] + "." + digits[point:]
	default:
		return "0." + strings.Repeat("0", -point) + digits
	}
}

// formatFloat follows the ECMAScript number-to-string shape used by
// encoding/json: plain decimal notation between 1e-6 and 1e21, exponent
// notation outside it.
func formatFloat(f float64) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	if f == 0 {
		return "0", true
	}
	abs := math.Abs(f)
	if abs < 1e-6 || abs >= 1e21 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		// 1e-07 -> 1e-7
		if n := len(s); n >= 4 && s[n-4] == 'e' && s[n-3] == '-' && s[n-2] == '0' {
			s = s[:n-2] + s[n-1:]
		}
		return s, true
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}
