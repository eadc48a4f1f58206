package ddd

import (
	"encoding"
	"encoding/json"
	"reflect"
	"strconv"
)

var (
	eventBaseType       = reflect.TypeOf(EventBase{})
	jsonMarshalerType   = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	jsonUnmarshalerType = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()
)

// ValidatePayload checks that the own properties of ev are plain data,
// so that they survive a round trip through the wire format unchanged.
//
// Allowed are booleans, integers, floats, strings, nil, and slices,
// arrays, string keyed maps, pointers and exported-field structs built
// from those, nested to any depth. Anything else, including identifiers,
// time values and other value objects with hidden state or custom
// marshalling, is rejected with *InvalidPayloadError naming the path of
// the offending property.
func ValidatePayload(ev Event) error {
	v := reflect.ValueOf(ev)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return &InvalidPayloadError{Event: TypeName(ev), Path: "", Reason: "own properties must be a struct"}
	}
	w := payloadWalker{visiting: make(map[visit]struct{})}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type == eventBaseType {
			continue
		}
		if !f.IsExported() {
			return &InvalidPayloadError{Event: TypeName(ev), Path: f.Name, Reason: "is not exported"}
		}
		if reason := w.check(v.Field(i), f.Name); reason != nil {
			reason.Event = TypeName(ev)
			return reason
		}
	}
	return nil
}

// visit identifies a reference on the current path. The type is part of
// the key because a struct and its first field share an address.
type visit struct {
	ptr uintptr
	typ reflect.Type
}

type payloadWalker struct {
	visiting map[visit]struct{}
}

// enter marks the reference held by v as being walked. It reports false
// when the reference is already on the path, which means v is cyclic.
func (w payloadWalker) enter(v reflect.Value) (leave func(), ok bool) {
	key := visit{ptr: v.Pointer(), typ: v.Type()}
	if _, seen := w.visiting[key]; seen {
		return nil, false
	}
	w.visiting[key] = struct{}{}
	return func() { delete(w.visiting, key) }, true
}

func (w payloadWalker) check(v reflect.Value, path string) *InvalidPayloadError {
	fail := func(reason string) *InvalidPayloadError {
		return &InvalidPayloadError{Path: path, Reason: reason}
	}

	if v.Kind() != reflect.Interface && v.Kind() != reflect.Pointer && hasCustomMarshalling(v.Type()) {
		return fail("is not a primitive")
	}

	switch v.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return nil
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		if v.Kind() == reflect.Interface {
			return w.check(v.Elem(), path)
		}
		if hasCustomMarshalling(v.Type()) {
			return fail("is not a primitive")
		}
		leave, ok := w.enter(v)
		if !ok {
			return fail("is a cyclic reference")
		}
		defer leave()
		return w.check(v.Elem(), path)
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Len() > 0 {
			leave, ok := w.enter(v)
			if !ok {
				return fail("is a cyclic reference")
			}
			defer leave()
		}
		for i := 0; i < v.Len(); i++ {
			if err := w.check(v.Index(i), path+"["+strconv.Itoa(i)+"]"); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fail("is a map without string keys")
		}
		if v.IsNil() {
			return nil
		}
		leave, ok := w.enter(v)
		if !ok {
			return fail("is a cyclic reference")
		}
		defer leave()
		iter := v.MapRange()
		for iter.Next() {
			if err := w.check(iter.Value(), path+"."+iter.Key().String()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				return fail("is not a primitive")
			}
			if err := w.check(v.Field(i), path+"."+f.Name); err != nil {
				return err
			}
		}
		return nil
	default:
		return fail("is not a primitive")
	}
}

func hasCustomMarshalling(t reflect.Type) bool {
	return t.Implements(jsonMarshalerType) ||
		t.Implements(textMarshalerType) ||
		reflect.PointerTo(t).Implements(jsonUnmarshalerType)
}
