package reflectx

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// A path is a dot separated chain of property names where each segment
// may carry one or more [index] suffixes: "user.roles[0].name" or
// "rows[2][3]". Index text is used as a key for maps and as a position
// for slices and arrays.

type segment struct {
	name    string
	indexes []string
}

// Root returns the leading property name of a path, the part before the
// first dot or index bracket.
func Root(path string) string {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' || path[i] == '[' {
			return path[:i]
		}
	}
	return path
}

// GetPath resolves path against v. The boolean result is false when a
// segment cannot be resolved: a missing map key, an index out of range,
// a nil link in the middle of the path, or a property the type does not
// have. An empty path resolves to v itself.
func GetPath(v any, path string) (any, bool) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if len(segs) > 0 && !rv.IsValid() {
		return nil, false
	}
	for _, seg := range segs {
		var ok bool
		rv, ok = resolveSegment(rv, seg)
		if !ok {
			return nil, false
		}
	}
	if !rv.IsValid() {
		return nil, true
	}
	return rv.Interface(), true
}

// TypeOfPath reports the static type path resolves to on t. It sees
// through pointers but not through interface values, so a path into a
// map[string]any reports no type.
func TypeOfPath(t reflect.Type, path string) (reflect.Type, bool) {
	segs, err := splitPath(path)
	if err != nil || t == nil {
		return nil, false
	}
	for _, seg := range segs {
		var ok bool
		if seg.name != "" {
			t, ok = typeOfName(t, seg.name)
			if !ok {
				return nil, false
			}
		}
		for range seg.indexes {
			t, ok = typeOfIndex(t)
			if !ok {
				return nil, false
			}
		}
	}
	return t, true
}

// SetPath assigns val to the property path names on v. Struct targets
// must be reachable through a pointer so the field is assignable. Nil
// pointers along the way are allocated when they are settable.
func SetPath(v any, path string, val any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	var accs []accessor
	for _, seg := range segs {
		if seg.name != "" {
			accs = append(accs, accessor{name: seg.name})
		}
		for _, idx := range seg.indexes {
			accs = append(accs, accessor{name: idx, isIndex: true})
		}
	}
	if len(accs) == 0 {
		return fmt.Errorf("reflectx: empty path")
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return fmt.Errorf("reflectx: cannot assign %q on nil value", path)
	}
	for _, acc := range accs[:len(accs)-1] {
		rv, err = stepForWrite(rv, acc, path)
		if err != nil {
			return err
		}
	}
	return assignLast(rv, accs[len(accs)-1], val, path)
}

type accessor struct {
	name    string
	isIndex bool
}

func splitPath(path string) ([]segment, error) {
	if path == "" {
		return nil, nil
	}
	var segs []segment
	for _, part := range strings.Split(path, ".") {
		name := part
		var indexes []string
		if i := strings.IndexByte(part, '['); i >= 0 {
			name = part[:i]
			rest := part[i:]
			for rest != "" {
				if rest[0] != '[' {
					return nil, fmt.Errorf("reflectx: malformed segment %q in path %q", part, path)
				}
				j := strings.IndexByte(rest, ']')
				if j < 0 {
					return nil, fmt.Errorf("reflectx: unbalanced index in segment %q of path %q", part, path)
				}
				idx := rest[1:j]
				if idx == "" {
					return nil, fmt.Errorf("reflectx: empty index in segment %q of path %q", part, path)
				}
				indexes = append(indexes, idx)
				rest = rest[j+1:]
			}
		}
		if name == "" && len(indexes) == 0 {
			return nil, fmt.Errorf("reflectx: empty segment in path %q", path)
		}
		segs = append(segs, segment{name: name, indexes: indexes})
	}
	return segs, nil
}

func resolveSegment(rv reflect.Value, seg segment) (reflect.Value, bool) {
	if seg.name != "" {
		var ok bool
		rv, ok = resolveName(rv, seg.name)
		if !ok {
			return reflect.Value{}, false
		}
	}
	for _, idx := range seg.indexes {
		var ok bool
		rv, ok = resolveIndex(rv, idx)
		if !ok {
			return reflect.Value{}, false
		}
	}
	return rv, true
}

func resolveName(rv reflect.Value, name string) (reflect.Value, bool) {
	rv, ok := indirect(rv)
	if !ok {
		return reflect.Value{}, false
	}
	switch rv.Kind() {
	case reflect.Map:
		return mapIndex(rv, name)
	case reflect.Struct:
		prop, ok := Meta(rv.Type()).Property(name)
		if !ok {
			return reflect.Value{}, false
		}
		return fieldByIndex(rv, prop.Index)
	}
	return reflect.Value{}, false
}

func resolveIndex(rv reflect.Value, idx string) (reflect.Value, bool) {
	rv, ok := indirect(rv)
	if !ok {
		return reflect.Value{}, false
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		n, err := strconv.Atoi(idx)
		if err != nil || n < 0 || n >= rv.Len() {
			return reflect.Value{}, false
		}
		return rv.Index(n), true
	case reflect.Map:
		return mapIndex(rv, idx)
	}
	return reflect.Value{}, false
}

func indirect(rv reflect.Value) (reflect.Value, bool) {
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	return rv, rv.IsValid()
}

// fieldByIndex walks an index path, stopping at nil embedded pointers
// instead of panicking the way reflect.Value.FieldByIndex would.
func fieldByIndex(rv reflect.Value, index []int) (reflect.Value, bool) {
	for n, i := range index {
		if n > 0 {
			for rv.Kind() == reflect.Ptr {
				if rv.IsNil() {
					return reflect.Value{}, false
				}
				rv = rv.Elem()
			}
		}
		rv = rv.Field(i)
	}
	return rv, true
}

func mapIndex(rv reflect.Value, key string) (reflect.Value, bool) {
	kv, ok := convertKey(rv.Type().Key(), key)
	if !ok {
		return reflect.Value{}, false
	}
	out := rv.MapIndex(kv)
	if !out.IsValid() {
		return reflect.Value{}, false
	}
	return out, true
}

func convertKey(kt reflect.Type, key string) (reflect.Value, bool) {
	switch kt.Kind() {
	case reflect.String:
		return reflect.ValueOf(key).Convert(kt), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(n).Convert(kt), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(n).Convert(kt), true
	case reflect.Interface:
		if kt.NumMethod() == 0 {
			return reflect.ValueOf(key), true
		}
	}
	return reflect.Value{}, false
}

func indirectType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func typeOfName(t reflect.Type, name string) (reflect.Type, bool) {
	t = indirectType(t)
	switch t.Kind() {
	case reflect.Map:
		return t.Elem(), true
	case reflect.Struct:
		prop, ok := Meta(t).Property(name)
		if !ok {
			return nil, false
		}
		return prop.Type, true
	}
	return nil, false
}

func typeOfIndex(t reflect.Type) (reflect.Type, bool) {
	t = indirectType(t)
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return t.Elem(), true
	}
	return nil, false
}

func stepForWrite(rv reflect.Value, acc accessor, path string) (reflect.Value, error) {
	rv, err := indirectForWrite(rv, path)
	if err != nil {
		return reflect.Value{}, err
	}
	switch rv.Kind() {
	case reflect.Map:
		kv, ok := convertKey(rv.Type().Key(), acc.name)
		if !ok {
			return reflect.Value{}, fmt.Errorf("reflectx: cannot key %s with %q in path %q", rv.Type(), acc.name, path)
		}
		out := rv.MapIndex(kv)
		if !out.IsValid() {
			return reflect.Value{}, fmt.Errorf("reflectx: no entry %q in path %q", acc.name, path)
		}
		return out, nil
	case reflect.Struct:
		if acc.isIndex {
			return reflect.Value{}, fmt.Errorf("reflectx: cannot index struct %s in path %q", rv.Type(), path)
		}
		prop, ok := Meta(rv.Type()).Property(acc.name)
		if !ok {
			return reflect.Value{}, fmt.Errorf("reflectx: type %s has no property %q in path %q", rv.Type(), acc.name, path)
		}
		return fieldByIndexAlloc(rv, prop.Index, path)
	case reflect.Slice, reflect.Array:
		n, err := strconv.Atoi(acc.name)
		if err != nil || n < 0 || n >= rv.Len() {
			return reflect.Value{}, fmt.Errorf("reflectx: index %q out of range in path %q", acc.name, path)
		}
		return rv.Index(n), nil
	}
	return reflect.Value{}, fmt.Errorf("reflectx: cannot descend into %s in path %q", rv.Kind(), path)
}

func assignLast(rv reflect.Value, acc accessor, val any, path string) error {
	rv, err := indirectForWrite(rv, path)
	if err != nil {
		return err
	}
	switch rv.Kind() {
	case reflect.Map:
		return setMapKey(rv, acc.name, val, path)
	case reflect.Struct:
		if acc.isIndex {
			return fmt.Errorf("reflectx: cannot index struct %s in path %q", rv.Type(), path)
		}
		prop, ok := Meta(rv.Type()).Property(acc.name)
		if !ok {
			return fmt.Errorf("reflectx: type %s has no property %q in path %q", rv.Type(), acc.name, path)
		}
		field, err := fieldByIndexAlloc(rv, prop.Index, path)
		if err != nil {
			return err
		}
		if !field.CanSet() {
			return fmt.Errorf("reflectx: property %q is not assignable in path %q, pass a pointer", acc.name, path)
		}
		return assign(field, val, path)
	case reflect.Slice:
		if !acc.isIndex {
			return fmt.Errorf("reflectx: slice %s needs an index in path %q", rv.Type(), path)
		}
		n, err := strconv.Atoi(acc.name)
		if err != nil || n < 0 || n >= rv.Len() {
			return fmt.Errorf("reflectx: index %q out of range in path %q", acc.name, path)
		}
		return assign(rv.Index(n), val, path)
	}
	return fmt.Errorf("reflectx: cannot assign into %s in path %q", rv.Kind(), path)
}

func indirectForWrite(rv reflect.Value, path string) (reflect.Value, error) {
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			if rv.Kind() == reflect.Ptr && rv.CanSet() {
				rv.Set(reflect.New(rv.Type().Elem()))
				continue
			}
			return reflect.Value{}, fmt.Errorf("reflectx: nil value in path %q", path)
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return reflect.Value{}, fmt.Errorf("reflectx: invalid value in path %q", path)
	}
	return rv, nil
}

func fieldByIndexAlloc(rv reflect.Value, index []int, path string) (reflect.Value, error) {
	for n, i := range index {
		if n > 0 {
			for rv.Kind() == reflect.Ptr {
				if rv.IsNil() {
					if !rv.CanSet() {
						return reflect.Value{}, fmt.Errorf("reflectx: nil embedded pointer in path %q", path)
					}
					rv.Set(reflect.New(rv.Type().Elem()))
				}
				rv = rv.Elem()
			}
		}
		rv = rv.Field(i)
	}
	return rv, nil
}

func setMapKey(m reflect.Value, key string, val any, path string) error {
	kv, ok := convertKey(m.Type().Key(), key)
	if !ok {
		return fmt.Errorf("reflectx: cannot key %s with %q in path %q", m.Type(), key, path)
	}
	et := m.Type().Elem()
	if val == nil {
		m.SetMapIndex(kv, reflect.Zero(et))
		return nil
	}
	sv := reflect.ValueOf(val)
	switch {
	case sv.Type().AssignableTo(et):
	case convertibleValue(sv.Type(), et):
		sv = sv.Convert(et)
	default:
		return fmt.Errorf("reflectx: cannot assign %s to %s in path %q", sv.Type(), et, path)
	}
	m.SetMapIndex(kv, sv)
	return nil
}

func assign(dst reflect.Value, val any, path string) error {
	if val == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	sv := reflect.ValueOf(val)
	switch {
	case sv.Type().AssignableTo(dst.Type()):
		dst.Set(sv)
	case convertibleValue(sv.Type(), dst.Type()):
		dst.Set(sv.Convert(dst.Type()))
	default:
		return fmt.Errorf("reflectx: cannot assign %s to %s in path %q", sv.Type(), dst.Type(), path)
	}
	return nil
}

// convertibleValue rejects the numeric-to-string conversion reflect
// would otherwise perform, which turns 65 into "A" rather than "65".
func convertibleValue(src, dst reflect.Type) bool {
	if dst.Kind() == reflect.String && src.Kind() != reflect.String {
		return false
	}
	return src.ConvertibleTo(dst)
}
