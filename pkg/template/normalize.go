package template

import (
	"encoding/json"
	"fmt"
)

// Largest magnitude an integer can have and still survive the trip through a
// float64 number value.
const maxExactInt = 1 << 53

// Normalize rewrites the body into the exact form it decodes back to: every
// number becomes a float64 and nested maps and lists are copied.  Integers that
// a float64 cannot hold exactly, and values that have no equivalent in the
// encoded form, fail with ErrEncode.
func (this *Template) Normalize() error {
	if this.Body == nil {
		return nil
	}
	body, err := normalizeMap(this.Body, "body")
	if err != nil {
		return err
	}
	this.Body = body
	return nil
}

func normalizeMap(m map[string]interface{}, at string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		n, err := normalizeValue(v, at+"."+k)
		if err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, nil
}

func normalizeValue(v interface{}, at string) (interface{}, error) {
	switch v := v.(type) {
	case nil, bool, string, float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return exactInt(int64(v), at)
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return exactInt(v, at)
	case uint:
		return exactUint(uint64(v), at)
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return exactUint(v, at)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return exactInt(i, at)
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrEncode, at, err)
		}
		return f, nil
	case map[string]interface{}:
		return normalizeMap(v, at)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, e := range v {
			n, err := normalizeValue(e, fmt.Sprintf("%s[%d]", at, i))
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s: unsupported type %T", ErrEncode, at, v)
}

func exactInt(i int64, at string) (interface{}, error) {
	if i > maxExactInt || i < -maxExactInt {
		return nil, fmt.Errorf("%w: %s: integer %d out of range", ErrEncode, at, i)
	}
	return float64(i), nil
}

func exactUint(u uint64, at string) (interface{}, error) {
	if u > maxExactInt {
		return nil, fmt.Errorf("%w: %s: integer %d out of range", ErrEncode, at, u)
	}
	return float64(u), nil
}

