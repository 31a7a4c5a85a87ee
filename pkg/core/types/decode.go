package types

import (
	"errors"
	"fmt"
	"image/color"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// ErrDecode is returned when a raw value cannot be coerced to its declared type.
var ErrDecode = errors.New("cannot decode value")

// Decode coerces a raw ingestion string into the Go value for t:
//
//	boolean -> bool
//	integer -> int64
//	real    -> float64
//	string  -> string
//	color   -> color.RGBA
//	shape   -> ShapeKind
//	list    -> []string
//	none    -> the raw string
func Decode(t AttributeType, raw string) (any, error) {
	s := strings.TrimSpace(raw)
	switch t.Kind {
	case KindBoolean:
		return decodeBool(s)
	case KindInteger:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			// Some writers emit integral reals ("3.0").
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil || f != float64(int64(f)) {
				return nil, fmt.Errorf("%w: %q as integer", ErrDecode, raw)
			}
			v = int64(f)
		}
		return v, nil
	case KindReal:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q as real", ErrDecode, raw)
		}
		return v, nil
	case KindString:
		return raw, nil
	case KindColor:
		return decodeColor(s)
	case KindShape:
		if s == "" {
			return t.Shape, nil
		}
		shape, ok := ParseShape(s)
		if !ok {
			return nil, fmt.Errorf("%w: unknown shape %q", ErrDecode, raw)
		}
		return shape, nil
	case KindList:
		return decodeList(s), nil
	default:
		return raw, nil
	}
}

func decodeBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: %q as boolean", ErrDecode, s)
	}
	return v, nil
}

// decodeColor accepts #RRGGBB, #RRGGBBAA and "r,g,b[,a]".
func decodeColor(s string) (color.RGBA, error) {
	if hex, ok := strings.CutPrefix(s, "#"); ok {
		if len(hex) != 6 && len(hex) != 8 {
			return color.RGBA{}, fmt.Errorf("%w: color %q", ErrDecode, s)
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("%w: color %q", ErrDecode, s)
		}
		if len(hex) == 6 {
			v = v<<8 | 0xff
		}
		return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return color.RGBA{}, fmt.Errorf("%w: color %q", ErrDecode, s)
	}
	channels := [4]uint8{0, 0, 0, 0xff}
	for i, p := range parts {
		c, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("%w: color %q", ErrDecode, s)
		}
		channels[i] = uint8(c)
	}
	return color.RGBA{R: channels[0], G: channels[1], B: channels[2], A: channels[3]}, nil
}

func decodeList(s string) []string {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// Off returns the neutral value reported by a deactivated interval of type t.
func Off(t AttributeType) any {
	switch t.Kind {
	case KindBoolean:
		return false
	case KindInteger:
		return int64(0)
	case KindReal:
		return 0.0
	case KindString:
		return ""
	case KindColor:
		return color.RGBA{}
	case KindShape:
		return ShapeNone
	case KindList:
		return []string(nil)
	default:
		return nil
	}
}

// Equal compares two values. Decoded lists compare element-wise, so nil and
// empty lists are equal. Other values go through reflect.DeepEqual, so
// slices and maps handed in by callers compare structurally.
func Equal(a, b any) bool {
	la, aok := a.([]string)
	lb, bok := b.([]string)
	if aok || bok {
		return aok && bok && slices.Equal(la, lb)
	}
	return reflect.DeepEqual(a, b)
}
