package driver

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Value is the narrowed representation a driver sees in a parameter slot:
// nil, bool, int64, uint64, float64, string, []byte or time.Time. The core
// marshaller converts every supported native type down to this set before
// the bind call crosses the contract.
type Value any

var (
	// ErrQueueFull is returned by PipelineSendPrepared/PipelineSendQuery
	// when the send queue is at capacity. The send may be retried after
	// draining.
	ErrQueueFull = errors.New("pipeline queue full")
	// ErrNoPipeline is returned when a backend does not implement the
	// Pipeliner extension.
	ErrNoPipeline = errors.New("pipeline not supported by backend")
)

const timeLayout = "2006-01-02 15:04:05"

// Store converts the column value src into the native storage dest points
// to. It is the single conversion path shared by driver implementations
// when they honor a BindResult destination.
func Store(dest any, src Value) error {
	switch d := dest.(type) {
	case *Value:
		*d = src
	case *any:
		*d = src
	case *bool:
		switch s := src.(type) {
		case bool:
			*d = s
		case int64:
			*d = s != 0
		case uint64:
			*d = s != 0
		default:
			return storeErr(dest, src)
		}
	case *int8:
		n, err := asInt(src)
		if err != nil {
			return storeErr(dest, src)
		}
		*d = int8(n)
	case *int16:
		n, err := asInt(src)
		if err != nil {
			return storeErr(dest, src)
		}
		*d = int16(n)
	case *int32:
		n, err := asInt(src)
		if err != nil {
			return storeErr(dest, src)
		}
		*d = int32(n)
	case *int64:
		n, err := asInt(src)
		if err != nil {
			return storeErr(dest, src)
		}
		*d = n
	case *int:
		n, err := asInt(src)
		if err != nil {
			return storeErr(dest, src)
		}
		*d = int(n)
	case *uint8:
		n, err := asUint(src)
		if err != nil {
			return storeErr(dest, src)
		}
		*d = uint8(n)
	case *uint16:
		n, err := asUint(src)
		if err != nil {
			return storeErr(dest, src)
		}
		*d = uint16(n)
	case *uint32:
		n, err := asUint(src)
		if err != nil {
			return storeErr(dest, src)
		}
		*d = uint32(n)
	case *uint64:
		n, err := asUint(src)
		if err != nil {
			return storeErr(dest, src)
		}
		*d = n
	case *uint:
		n, err := asUint(src)
		if err != nil {
			return storeErr(dest, src)
		}
		*d = uint(n)
	case *float32:
		f, err := asFloat(src)
		if err != nil {
			return storeErr(dest, src)
		}
		*d = float32(f)
	case *float64:
		f, err := asFloat(src)
		if err != nil {
			return storeErr(dest, src)
		}
		*d = f
	case *string:
		switch s := src.(type) {
		case string:
			*d = s
		case []byte:
			*d = string(s)
		case nil:
			*d = ""
		case int64:
			*d = strconv.FormatInt(s, 10)
		case uint64:
			*d = strconv.FormatUint(s, 10)
		case float64:
			*d = strconv.FormatFloat(s, 'g', -1, 64)
		case time.Time:
			*d = s.Format(timeLayout)
		default:
			return storeErr(dest, src)
		}
	case *[]byte:
		switch s := src.(type) {
		case []byte:
			buf := make([]byte, len(s))
			copy(buf, s)
			*d = buf
		case string:
			*d = []byte(s)
		case nil:
			*d = nil
		default:
			return storeErr(dest, src)
		}
	case *time.Time:
		switch s := src.(type) {
		case time.Time:
			*d = s
		case string:
			t, err := parseTime(s)
			if err != nil {
				return storeErr(dest, src)
			}
			*d = t
		case []byte:
			t, err := parseTime(string(s))
			if err != nil {
				return storeErr(dest, src)
			}
			*d = t
		default:
			return storeErr(dest, src)
		}
	default:
		return fmt.Errorf("driver: unsupported result destination %T", dest)
	}
	return nil
}

func asInt(src Value) (int64, error) {
	switch s := src.(type) {
	case int64:
		return s, nil
	case uint64:
		return int64(s), nil
	case float64:
		return int64(s), nil
	case bool:
		if s {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseInt(s, 10, 64)
	case []byte:
		return strconv.ParseInt(string(s), 10, 64)
	}
	return 0, fmt.Errorf("driver: not an integer: %T", src)
}

func asUint(src Value) (uint64, error) {
	switch s := src.(type) {
	case uint64:
		return s, nil
	case int64:
		return uint64(s), nil
	case float64:
		return uint64(s), nil
	case string:
		return strconv.ParseUint(s, 10, 64)
	case []byte:
		return strconv.ParseUint(string(s), 10, 64)
	}
	return 0, fmt.Errorf("driver: not an unsigned integer: %T", src)
}

func asFloat(src Value) (float64, error) {
	switch s := src.(type) {
	case float64:
		return s, nil
	case int64:
		return float64(s), nil
	case uint64:
		return float64(s), nil
	case string:
		return strconv.ParseFloat(s, 64)
	case []byte:
		return strconv.ParseFloat(string(s), 64)
	}
	return 0, fmt.Errorf("driver: not a float: %T", src)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{timeLayout, time.RFC3339, time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("driver: cannot parse time %q", s)
}

func storeErr(dest any, src Value) error {
	return fmt.Errorf("driver: cannot store %T into %T", src, dest)
}
