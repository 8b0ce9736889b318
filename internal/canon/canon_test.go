package canon

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_IgnoresInsertionOrder(t *testing.T) {
	a := map[string]any{}
	a["b"] = 2
	a["a"] = map[string]any{"y": 2, "x": 1}

	b := map[string]any{}
	b["a"] = map[string]any{"x": 1, "y": 2}
	b["b"] = 2

	ca, err := Marshal(a)
	require.NoError(t, err)
	cb, err := Marshal(b)
	require.NoError(t, err)

	assert.Equal(t, ca, cb)
	assert.Equal(t, `{"a":{"x":1,"y":2},"b":2}`, string(ca))
}

func TestMarshal_ArraysKeepOrder(t *testing.T) {
	got, err := Marshal(map[string]any{"steps": []any{"z", "a", 3}})
	require.NoError(t, err)
	assert.Equal(t, `{"steps":["z","a",3]}`, string(got))

	swapped, err := Marshal(map[string]any{"steps": []any{"a", "z", 3}})
	require.NoError(t, err)
	assert.NotEqual(t, got, swapped)
}

func TestMarshal_NullEqualsAbsent(t *testing.T) {
	var missing *time.Time
	withNil, err := Marshal(map[string]any{"id": "x", "finalizedAt": missing, "notes": nil})
	require.NoError(t, err)
	without, err := Marshal(map[string]any{"id": "x"})
	require.NoError(t, err)

	assert.Equal(t, string(without), string(withNil))
	assert.Equal(t, `{"id":"x"}`, string(withNil))
}

func TestMarshal_NilArrayElementStaysNull(t *testing.T) {
	got, err := Marshal([]any{1, nil, "x"})
	require.NoError(t, err)
	assert.Equal(t, `[1,null,"x"]`, string(got))
}

func TestMarshal_Primitives(t *testing.T) {
	ts := time.Date(2026, 3, 1, 14, 5, 9, 123456789, time.FixedZone("EET", 2*3600))

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"integral float", 1.0, `1`},
		{"fraction", 1.5, `1.5`},
		{"negative zero", math.Copysign(0, -1), `0`},
		{"tiny", 0.0000001, `1e-7`},
		{"huge", 1e21, `1e+21`},
		{"int64", int64(9007199254740993), `9007199254740993`},
		{"uint", uint8(7), `7`},
		{"json number int", json.Number("42"), `42`},
		{"json number float", json.Number("2.50"), `2.5`},
		{"bool", true, `true`},
		{"html not escaped", "<a&b>", `"<a&b>"`},
		{"unicode", "Grüße", `"Grüße"`},
		{"time normalized to utc", ts, `"2026-03-01T12:05:09.123Z"`},
		{"bytes", []byte{1, 2, 3}, `"AQID"`},
		{"typed string map", map[string]string{"b": "2", "a": "1"}, `{"a":"1","b":"2"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshal_JSONNumbersKeepSignificantDigits(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"12345678901234567890", "12345678901234567890"},
		{"12345678901234567891", "12345678901234567891"},
		{"-98765432109876543210.500", "-98765432109876543210.5"},
		{"0.10000000000000000001", "0.10000000000000000001"},
		{"3.14159265358979323846264", "3.14159265358979323846264"},
		{"1.0", "1"},
		{"-0.000", "0"},
		{"007.50", "7.5"},
		{"1e21", "1e+21"},
		{"1.2345678901234567890123e30", "1.2345678901234567890123e+30"},
		{"0.0000001", "1e-7"},
		{"0.000001", "0.000001"},
		{"25E-1", "2.5"},
		{"1E2", "100"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Marshal(json.Number(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	a, err := Marshal(map[string]any{"n": json.Number("12345678901234567890")})
	require.NoError(t, err)
	b, err := Marshal(map[string]any{"n": json.Number("12345678901234567891")})
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "numbers beyond int64 must not collapse")

	a, err = Marshal(json.Number("0.10000000000000000001"))
	require.NoError(t, err)
	b, err = Marshal(json.Number("0.1"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "digits past float64 precision must not collapse")
}

func TestMarshal_JSONNumberShapeMatchesFloat(t *testing.T) {
	for _, f := range []float64{1.5, 0.25, 1e21, 1e-7, 123456.789, -2.5e-9} {
		fromFloat, err := Marshal(f)
		require.NoError(t, err)
		fromNumber, err := Marshal(json.Number(strconv.FormatFloat(f, 'g', -1, 64)))
		require.NoError(t, err)
		assert.Equal(t, string(fromFloat), string(fromNumber))
	}
}

func TestMarshal_UnsupportedKinds(t *testing.T) {
	type opaque struct{ X int }

	tests := []struct {
		name string
		in   any
		path string
	}{
		{"function", map[string]any{"cb": func() {}}, "$.cb"},
		{"channel", map[string]any{"a": []any{make(chan int)}}, "$.a[0]"},
		{"struct", map[string]any{"s": opaque{X: 1}}, "$.s"},
		{"nan", map[string]any{"n": math.NaN()}, "$.n"},
		{"complex", complex(1, 2), "$"},
		{"int keyed map", map[int]string{1: "a"}, "$"},
		{"invalid utf-8 value", map[string]any{"title": "ok\xff"}, "$.title"},
		{"invalid utf-8 key", map[string]any{"k\xfe": 1}, "$.k\xfe"},
		{"malformed number", map[string]any{"n": json.Number("1.2.3")}, "$.n"},
		{"runaway exponent", map[string]any{"n": json.Number("1e99999999")}, "$.n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Marshal(tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsupportedValueKind))

			var uerr *UnsupportedValueError
			require.ErrorAs(t, err, &uerr)
			assert.Equal(t, tt.path, uerr.Path)
		})
	}
}

func TestMarshal_RepeatedCallsAreStable(t *testing.T) {
	in := map[string]any{
		"payload": map[string]any{"q3": []any{"yes", 2.25}, "q1": "n/a"},
		"id":      "form-1",
	}
	first, err := Marshal(in)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Marshal(in)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}
