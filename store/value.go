package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/probewatch/probewatch/measurement"
)

// flattenValue converts produced field values into driver-friendly ones.
// String lists collapse to a comma-joined string, nil boolean pointers to
// SQL NULL.
func flattenValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []string:
		if t == nil {
			return ""
		}
		return strings.Join(t, ",")
	case *bool:
		if t == nil {
			return nil
		}
		return *t
	default:
		return v
	}
}

func csvString(v interface{}) string {
	switch t := flattenValue(v).(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "t"
		}
		return "f"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format(measurement.StartTimeLayout)
	default:
		return fmt.Sprintf("%v", t)
	}
}
