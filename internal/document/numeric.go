package document

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

var (
	ErrNotInteger = errors.New("value is not an integer or out of range")
	ErrNotFloat   = errors.New("value is not a valid float")
)

// ToInt64 converts a stored numeric payload into an int64.
// Floats are accepted only when they carry an integral value.
func ToInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, ErrNotInteger
		}
		return int64(n), nil
	case float32:
		return floatToInt64(float64(n))
	case float64:
		return floatToInt64(n)
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
		return i, nil
	}
	return 0, ErrNotInteger
}

// floatToInt64 accepts [-2^63, 2^63); float64(math.MaxInt64) rounds up to 2^63
func floatToInt64(f float64) (int64, error) {
	if f != math.Trunc(f) || f >= 1<<63 || f < math.MinInt64 {
		return 0, ErrNotInteger
	}
	return int64(f), nil
}

// ToFloat64 converts a stored numeric payload into a float64
func ToFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, ErrNotFloat
		}
		return f, nil
	}
	i, err := ToInt64(v)
	if err != nil {
		return 0, ErrNotFloat
	}
	return float64(i), nil
}

// IsNumeric reports whether the value can take part in an increment
func IsNumeric(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// ToString renders a stored value the way it is handed to text clients
func ToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return strconv.FormatInt(t.UnixMilli(), 10)
	}
	if i, err := ToInt64(v); err == nil {
		return strconv.FormatInt(i, 10)
	}
	return fmt.Sprint(v)
}
