package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a YAML value of unknown shape: with-inputs, env values, matrix
// axes, trigger configs and any field the model does not name explicitly.
// The zero Value is null and means "absent".
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	List  []Value
	Map   Map
}

// Entry is one key/value pair of a Map.
type Entry struct {
	Key   string
	Value Value
}

// Map is a string-keyed mapping that keeps insertion order.
type Map []Entry

func Null() Value { return Value{} }
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }
func String(s string) Value { return Value{Kind: KindString, Str: s} }
func List(vs ...Value) Value { return Value{Kind: KindList, List: vs} }
func MapValue(m Map) Value { return Value{Kind: KindMap, Map: m} }
func EmptyMap() Value { return Value{Kind: KindMap, Map: Map{}} }

// Strings builds a list value of string scalars.
func Strings(ss ...string) Value {
	vs := make([]Value, len(ss))
	for i, s := range ss {
		vs[i] = String(s)
	}
	return List(vs...)
}

func (v Value) IsNull() bool { return v.Kind == KindNull }

// AsString returns the scalar as a string. Lists and maps report false.
func (v Value) AsString() (string, bool) {
	switch v.Kind {
	case KindString:
		return v.Str, true
	case KindBool:
		return strconv.FormatBool(v.Bool), true
	case KindInt:
		return strconv.FormatInt(v.Int, 10), true
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64), true
	default:
		return "", false
	}
}

// StringList returns the string scalars of a list value, or the value itself
// when it is a single scalar.
func (v Value) StringList() []string {
	switch v.Kind {
	case KindList:
		out := make([]string, 0, len(v.List))
		for _, item := range v.List {
			if s, ok := item.AsString(); ok {
				out = append(out, s)
			}
		}
		return out
	case KindNull, KindMap:
		return nil
	default:
		s, _ := v.AsString()
		return []string{s}
	}
}

// String renders the value for display. Scalars print bare, collections
// print in flow style.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindList:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		parts := make([]string, len(v.Map))
		for i, e := range v.Map {
			parts[i] = e.Key + ": " + e.Value.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		s, _ := v.AsString()
		return s
	}
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindList:
		if v.List == nil {
			return Value{Kind: KindList}
		}
		out := make([]Value, len(v.List))
		for i, item := range v.List {
			out[i] = item.Clone()
		}
		return Value{Kind: KindList, List: out}
	case KindMap:
		return Value{Kind: KindMap, Map: v.Map.Clone()}
	default:
		return v
	}
}

// Equal reports structural equality. Map key order is not significant.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	case KindString:
		return v.Str == o.Str
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return v.Map.Equal(o.Map)
	}
	return false
}

// Get returns the value stored under key.
func (m Map) Get(key string) (Value, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Has reports whether key is present.
func (m Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set replaces the value under key in place, or appends a new entry.
func (m *Map) Set(key string, v Value) {
	for i := range *m {
		if (*m)[i].Key == key {
			(*m)[i].Value = v
			return
		}
	}
	*m = append(*m, Entry{Key: key, Value: v})
}

// Delete removes key, keeping the order of the remaining entries.
func (m *Map) Delete(key string) {
	for i := range *m {
		if (*m)[i].Key == key {
			*m = append((*m)[:i:i], (*m)[i+1:]...)
			return
		}
	}
}

// Keys returns the keys in insertion order.
func (m Map) Keys() []string {
	keys := make([]string, len(m))
	for i, e := range m {
		keys[i] = e.Key
	}
	return keys
}

func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for i, e := range m {
		out[i] = Entry{Key: e.Key, Value: e.Value.Clone()}
	}
	return out
}

func (m Map) Equal(o Map) bool {
	if len(m) != len(o) {
		return false
	}
	for _, e := range m {
		ov, ok := o.Get(e.Key)
		if !ok || !e.Value.Equal(ov) {
			return false
		}
	}
	return true
}

// FromAny converts a decoded YAML or JSON tree into a Value. Mappings decoded
// with yaml.UseOrderedMap keep their order; plain Go maps are sorted by key.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Value{}
	case Value:
		return t
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int8:
		return Int(int64(t))
	case int16:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint:
		return Int(int64(t)) //nolint:gosec // workflow integers are small
	case uint8:
		return Int(int64(t))
	case uint16:
		return Int(int64(t))
	case uint32:
		return Int(int64(t))
	case uint64:
		return Int(int64(t)) //nolint:gosec // workflow integers are small
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i)
		}
		f, _ := t.Float64()
		return Float(f)
	case string:
		return String(t)
	case time.Time:
		return String(t.Format(time.RFC3339))
	case []any:
		out := make([]Value, len(t))
		for i, item := range t {
			out[i] = FromAny(item)
		}
		return List(out...)
	case yaml.MapSlice:
		m := make(Map, 0, len(t))
		for _, item := range t {
			m.Set(keyString(item.Key), FromAny(item.Value))
		}
		return MapValue(m)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := make(Map, 0, len(t))
		for _, k := range keys {
			m = append(m, Entry{Key: k, Value: FromAny(t[k])})
		}
		return MapValue(m)
	case map[any]any:
		keys := make([]string, 0, len(t))
		byKey := make(map[string]any, len(t))
		for k, item := range t {
			ks := keyString(k)
			keys = append(keys, ks)
			byKey[ks] = item
		}
		sort.Strings(keys)
		m := make(Map, 0, len(t))
		for _, k := range keys {
			m = append(m, Entry{Key: k, Value: FromAny(byKey[k])})
		}
		return MapValue(m)
	default:
		return String(fmt.Sprint(t))
	}
}

func keyString(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	if k == nil {
		return "null"
	}
	return fmt.Sprint(k)
}

// YAML converts the value into the tree handed to the YAML encoder. Maps
// become yaml.MapSlice so key order is kept on output.
func (v Value) YAML() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindList:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			out[i] = item.YAML()
		}
		return out
	case KindMap:
		return v.Map.YAML()
	}
	return nil
}

func (m Map) YAML() yaml.MapSlice {
	out := make(yaml.MapSlice, len(m))
	for i, e := range m {
		out[i] = yaml.MapItem{Key: e.Key, Value: e.Value.YAML()}
	}
	return out
}

// Interface converts the value into plain Go maps and slices, the shape
// expected by generic tree walkers such as JSONPath evaluators.
func (v Value) Interface() any {
	switch v.Kind {
	case KindList:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.Map))
		for _, e := range v.Map {
			out[e.Key] = e.Value.Interface()
		}
		return out
	default:
		return v.YAML()
	}
}

// MarshalJSON writes maps as objects in insertion order.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindList:
		if len(v.List) == 0 {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case KindMap:
		return v.Map.MarshalJSON()
	default:
		return json.Marshal(v.YAML())
	}
}

func (m Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := e.Value.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("encoding %q: %w", e.Key, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes any JSON value. Object key order is preserved.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	out, err := decodeJSON(dec)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// UnmarshalJSON decodes a JSON object, or null as an empty map.
func (m *Map) UnmarshalJSON(data []byte) error {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	switch v.Kind {
	case KindMap:
		*m = v.Map
	case KindNull:
		*m = nil
	default:
		return fmt.Errorf("expected an object, got %s", data)
	}
	return nil
}

func decodeJSON(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := Map{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, _ := keyTok.(string)
				item, err := decodeJSON(dec)
				if err != nil {
					return Value{}, err
				}
				m.Set(key, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return MapValue(m), nil
		case '[':
			list := []Value{}
			for dec.More() {
				item, err := decodeJSON(dec)
				if err != nil {
					return Value{}, err
				}
				list = append(list, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return List(list...), nil
		}
		return Value{}, fmt.Errorf("unexpected delimiter %q", t)
	default:
		return FromAny(t), nil
	}
}
