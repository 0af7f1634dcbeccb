package ir

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"slices"
	"time"
	"unicode/utf16"
)

// IRValue is a sealed interface representing a canonical, hashable value.
// Any Go value used as a filter operand can be reduced to an IRValue by
// MakeHashable; two values that reduce to the same IRValue hash equally.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNull represents nil.
type IRNull struct{}

func (IRNull) irValue() {}

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRInt represents any signed integer.
type IRInt int64

func (IRInt) irValue() {}

// IRUint represents an unsigned integer.
type IRUint uint64

func (IRUint) irValue() {}

// IRFloat represents a floating point number.
type IRFloat float64

func (IRFloat) irValue() {}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray is an ordered tuple. Slices and arrays reduce to it.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject is a string-keyed mapping. Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// IRMapEntry is one key/value pair of an IRMap.
type IRMapEntry struct {
	Key   IRValue
	Value IRValue
}

// IRMap is a mapping with arbitrary keys, stored as key/value pairs sorted by
// the canonical encoding of the key.
type IRMap []IRMapEntry

func (IRMap) irValue() {}

// IRTagged wraps a value with a type tag so that structurally equal values
// of different Go types do not collide.
type IRTagged struct {
	Tag   string
	Value IRValue
}

func (IRTagged) irValue() {}

// Hashable lets a type provide its own canonical form instead of the
// reflection-based fallback.
type Hashable interface {
	HashKey() (IRValue, error)
}

// UnhashableValueError reports a value that is neither hashable nor
// iterable, such as a func.
type UnhashableValueError struct {
	Type string
}

func (e *UnhashableValueError) Error() string {
	return fmt.Sprintf("unhashable type: %s", e.Type)
}

// maxDepth bounds recursion through self-referencing maps and slices.
const maxDepth = 256

// MakeHashable reduces v to its canonical IRValue.
//
// Mappings become sorted key/value pairs, other iterables become tuples,
// structs become tagged field tuples and pointers hash by identity.
// Funcs and unsafe pointers return *UnhashableValueError.
func MakeHashable(v any) (IRValue, error) {
	return makeHashable(v, 0)
}

func makeHashable(v any, depth int) (IRValue, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("value nested deeper than %d levels", maxDepth)
	}

	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case Hashable:
		return val.HashKey()
	case string:
		return IRString(val), nil
	case bool:
		return IRBool(val), nil
	case int:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case float64:
		return IRFloat(val), nil
	case []byte:
		return IRTagged{Tag: "bytes", Value: IRString(hex.EncodeToString(val))}, nil
	case time.Time:
		return IRTagged{Tag: "time", Value: IRString(val.UTC().Format(time.RFC3339Nano))}, nil
	case time.Duration:
		return IRTagged{Tag: "duration", Value: IRInt(val)}, nil
	}

	return fromReflect(reflect.ValueOf(v), depth)
}

// fromReflect handles everything the fast path in makeHashable does not.
// Children are routed back through makeHashable so Hashable implementations
// nested inside containers are honoured.
func fromReflect(rv reflect.Value, depth int) (IRValue, error) {
	child := func(c reflect.Value) (IRValue, error) {
		if c.CanInterface() {
			return makeHashable(c.Interface(), depth+1)
		}
		return fromReflect(c, depth+1)
	}

	switch rv.Kind() {
	case reflect.Invalid:
		return IRNull{}, nil
	case reflect.Bool:
		return IRBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IRInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return IRUint(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return IRFloat(rv.Float()), nil
	case reflect.Complex64, reflect.Complex128:
		c := rv.Complex()
		return IRTagged{Tag: "complex", Value: IRArray{IRFloat(real(c)), IRFloat(imag(c))}}, nil
	case reflect.String:
		return IRString(rv.String()), nil

	case reflect.Slice, reflect.Array:
		arr := make(IRArray, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem, err := child(rv.Index(i))
			if err != nil {
				return nil, err
			}
			arr[i] = elem
		}
		return arr, nil

	case reflect.Map:
		entries := make(IRMap, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k, err := child(iter.Key())
			if err != nil {
				return nil, err
			}
			val, err := child(iter.Value())
			if err != nil {
				return nil, err
			}
			entries = append(entries, IRMapEntry{Key: k, Value: val})
		}
		if err := sortEntries(entries); err != nil {
			return nil, err
		}
		return entries, nil

	case reflect.Struct:
		fields := make(IRArray, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			f, err := child(rv.Field(i))
			if err != nil {
				return nil, err
			}
			fields[i] = f
		}
		return IRTagged{Tag: rv.Type().String(), Value: fields}, nil

	case reflect.Interface:
		if rv.IsNil() {
			return IRNull{}, nil
		}
		return child(rv.Elem())

	case reflect.Pointer, reflect.Chan:
		if rv.IsNil() {
			return IRNull{}, nil
		}
		return IRTagged{Tag: rv.Type().String(), Value: IRUint(rv.Pointer())}, nil

	default:
		return nil, &UnhashableValueError{Type: rv.Type().String()}
	}
}

// sortEntries orders map entries by the canonical bytes of their keys.
func sortEntries(entries IRMap) error {
	keys := make(map[int][]byte, len(entries))
	for i, e := range entries {
		b, err := MarshalCanonical(e.Key)
		if err != nil {
			return err
		}
		keys[i] = b
	}
	idx := make([]int, len(entries))
	for i := range idx {
		idx[i] = i
	}
	slices.SortFunc(idx, func(a, b int) int {
		return compareBytes(keys[a], keys[b])
	})
	sorted := make(IRMap, len(entries))
	for i, j := range idx {
		sorted[i] = entries[j]
	}
	copy(entries, sorted)
	return nil
}

func compareBytes(a, b []byte) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// CRITICAL: Go's sort.Strings uses UTF-8 which produces DIFFERENT order.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	if len(a16) < len(b16) {
		return -1
	}
	if len(a16) > len(b16) {
		return 1
	}
	return 0
}
