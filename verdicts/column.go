package verdicts

import "strconv"

// Query results come back loosely typed; these helpers tolerate the value
// shapes the different drivers produce.

func columnString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	}
	return ""
}

func columnInt(v interface{}) int {
	switch t := v.(type) {
	case int:
		return t
	case int32:
		return int(t)
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	case []byte:
		n, _ := strconv.Atoi(string(t))
		return n
	}
	return 0
}

func columnIntString(v interface{}) string {
	return strconv.Itoa(columnInt(v))
}
