package measurement

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Kind tags the closed set of JSON value shapes.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Value is a tagged JSON value. Only the field matching Kind is meaningful.
type Value struct {
	Kind   Kind
	Bool   bool
	Number json.Number
	Str    string
	Array  []Value
	Object map[string]Value
}

func fromInterface(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Value{Kind: KindNull}
	case bool:
		return Value{Kind: KindBool, Bool: t}
	case json.Number:
		return Value{Kind: KindNumber, Number: t}
	case string:
		return Value{Kind: KindString, Str: t}
	case []interface{}:
		arr := make([]Value, 0, len(t))
		for _, item := range t {
			arr = append(arr, fromInterface(item))
		}
		return Value{Kind: KindArray, Array: arr}
	case map[string]interface{}:
		obj := make(map[string]Value, len(t))
		for k, item := range t {
			obj[k] = fromInterface(item)
		}
		return Value{Kind: KindObject, Object: obj}
	}
	return Value{Kind: KindNull}
}

// ParseValue decodes raw JSON into a tagged Value, preserving numbers as
// their literal representation.
func ParseValue(raw []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return Value{}, errors.Wrap(err, "parse json value")
	}
	return fromInterface(v), nil
}

func (v Value) toInterface() interface{} {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Number
	case KindString:
		return v.Str
	case KindArray:
		arr := make([]interface{}, 0, len(v.Array))
		for _, item := range v.Array {
			arr = append(arr, item.toInterface())
		}
		return arr
	case KindObject:
		obj := make(map[string]interface{}, len(v.Object))
		for k, item := range v.Object {
			obj[k] = item.toInterface()
		}
		return obj
	}
	return nil
}

func (v Value) Encode() ([]byte, error) {
	return json.Marshal(v.toInterface())
}

// TrimStrings removes object entries whose string value exceeds maxStringSize
// bytes and recurses into nested objects and arrays. Oversized strings inside
// arrays are kept: only keyed entries are dropped, matching the behavior of
// the measurement archivers this pipeline ingests from.
func (v Value) TrimStrings(maxStringSize int) Value {
	switch v.Kind {
	case KindObject:
		trimmed := make(map[string]Value, len(v.Object))
		for k, item := range v.Object {
			if item.Kind == KindString && len(item.Str) > maxStringSize {
				continue
			}
			trimmed[k] = item.TrimStrings(maxStringSize)
		}
		return Value{Kind: KindObject, Object: trimmed}
	case KindArray:
		trimmed := make([]Value, 0, len(v.Array))
		for _, item := range v.Array {
			trimmed = append(trimmed, item.TrimStrings(maxStringSize))
		}
		return Value{Kind: KindArray, Array: trimmed}
	}
	return v
}
