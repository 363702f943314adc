package sink

import (
	"fmt"
	"strconv"
	"time"
)

// Column returns the index of a column in the dataset, or an error naming
// the missing column.
func (d *Dataset) Column(name string) (int, error) {
	for i, c := range d.Columns {
		if c == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("column %q not in result", name)
}

// AsInt64 converts a value read back from a store to int64.
func AsInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to int64", v)
}

func AsFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(x, 64)
	case []byte:
		return strconv.ParseFloat(string(x), 64)
	}
	return 0, fmt.Errorf("cannot convert %T to float64", v)
}

func AsTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case *time.Time:
		if x != nil {
			return x.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot convert %T to time", v)
}

func AsString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	}
	return "", fmt.Errorf("cannot convert %T to string", v)
}
