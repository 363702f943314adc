package extract

import (
	"fmt"
	"time"

	"learngen/sink"
)

type kind int

const (
	kindString kind = iota
	kindLong
	kindDouble
	kindBool
	kindTimestamp
)

// plain unwraps typed nil pointers and widens integer types.
func plain(v any) any {
	switch x := v.(type) {
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC()
	case time.Time:
		return x.UTC()
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case float32:
		return float64(x)
	case []byte:
		return string(x)
	}
	return v
}

// columnKinds infers one kind per column from the first non-null value.
// All-null columns are strings.
func columnKinds(ds *sink.Dataset) []kind {
	kinds := make([]kind, len(ds.Columns))
	for i := range ds.Columns {
		for _, row := range ds.Rows {
			v := plain(row[i])
			if v == nil {
				continue
			}
			switch v.(type) {
			case int64:
				kinds[i] = kindLong
			case float64:
				kinds[i] = kindDouble
			case bool:
				kinds[i] = kindBool
			case time.Time:
				kinds[i] = kindTimestamp
			}
			break
		}
	}
	return kinds
}

// cell converts v to the Go value stored for kind k. nil stays nil.
func cell(k kind, v any) (any, error) {
	v = plain(v)
	if v == nil {
		return nil, nil
	}
	switch k {
	case kindLong:
		return sink.AsInt64(v)
	case kindDouble:
		return sink.AsFloat64(v)
	case kindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("cannot convert %T to bool", v)
		}
		return b, nil
	case kindTimestamp:
		t, err := sink.AsTime(v)
		if err != nil {
			return nil, err
		}
		return t.UnixMicro(), nil
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}
