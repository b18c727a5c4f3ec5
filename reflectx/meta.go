// Package reflectx provides cached struct introspection and dotted path
// navigation over arbitrary Go values.
//
// Statement properties such as "user.address.city" or "items[0].id" are
// resolved through this package, both when reading parameter values and
// when writing generated keys back into a parameter.
package reflectx

import (
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/puzpuzpuz/xsync/v3"
)

// Property describes a single addressable property of a struct type.
type Property struct {
	// Name is the property name used in statements. It comes from the
	// field's db tag when present, otherwise from the Go field name
	// with its first rune lowered.
	Name string

	// Field is the Go field name the property maps to.
	Field string

	// Type is the declared field type.
	Type reflect.Type

	// Index is the field index path from the struct root, including
	// the steps through embedded structs.
	Index []int
}

// TypeMeta holds the resolved property set of a struct type.
type TypeMeta struct {
	// Type is the struct type the metadata was built for.
	Type reflect.Type

	// Properties lists all resolved properties in declaration order,
	// shallowest embedding level first.
	Properties []Property

	byName map[string]int
	byFold map[string]int
}

var metaCache = xsync.NewMapOf[reflect.Type, *TypeMeta]()

// Meta returns the property metadata for t, building and caching it on
// first use. Pointer types are unwrapped to their element type. Meta
// panics if the unwrapped type is not a struct.
func Meta(t reflect.Type) *TypeMeta {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		panic("reflectx: Meta of non-struct type " + t.String())
	}
	meta, _ := metaCache.LoadOrCompute(t, func() *TypeMeta {
		return buildMeta(t)
	})
	return meta
}

// Property resolves a property by name. Exact matches win; otherwise
// the lookup falls back to a case-insensitive match so that names such
// as "ID" and "id" still find each other.
func (m *TypeMeta) Property(name string) (Property, bool) {
	if i, ok := m.byName[name]; ok {
		return m.Properties[i], true
	}
	if i, ok := m.byFold[strings.ToLower(name)]; ok {
		return m.Properties[i], true
	}
	return Property{}, false
}

func buildMeta(t reflect.Type) *TypeMeta {
	meta := &TypeMeta{
		Type:   t,
		byName: make(map[string]int),
		byFold: make(map[string]int),
	}

	type node struct {
		typ   reflect.Type
		index []int
	}

	seen := map[reflect.Type]bool{t: true}
	taken := map[string]bool{}
	level := []node{{typ: t}}

	for len(level) > 0 {
		var next []node
		levelProps := map[string][]Property{}
		var levelOrder []string

		for _, n := range level {
			for i := 0; i < n.typ.NumField(); i++ {
				f := n.typ.Field(i)
				index := append(append([]int(nil), n.index...), i)

				if f.Anonymous {
					ft := f.Type
					if ft.Kind() == reflect.Ptr {
						ft = ft.Elem()
					}
					if ft.Kind() == reflect.Struct && !seen[ft] {
						seen[ft] = true
						next = append(next, node{typ: ft, index: index})
					}
					// An embedded field only becomes a property of its
					// own when it carries an explicit db tag.
					if dbTag(f) == "" {
						continue
					}
				}
				if f.PkgPath != "" {
					continue
				}
				name := propertyName(f)
				if name == "" || taken[name] {
					continue
				}
				if _, ok := levelProps[name]; !ok {
					levelOrder = append(levelOrder, name)
				}
				levelProps[name] = append(levelProps[name], Property{
					Name:  name,
					Field: f.Name,
					Type:  f.Type,
					Index: index,
				})
			}
		}

		// Shallower levels win. A name claimed twice on the same level
		// is ambiguous and dropped, and stays blocked for deeper levels.
		for _, name := range levelOrder {
			props := levelProps[name]
			taken[name] = true
			if len(props) > 1 {
				continue
			}
			meta.byName[name] = len(meta.Properties)
			meta.Properties = append(meta.Properties, props[0])
		}
		level = next
	}

	for i, p := range meta.Properties {
		lower := strings.ToLower(p.Name)
		if _, ok := meta.byFold[lower]; !ok {
			meta.byFold[lower] = i
		}
	}
	return meta
}

func propertyName(f reflect.StructField) string {
	if tag := dbTag(f); tag != "" {
		if tag == "-" {
			return ""
		}
		return tag
	}
	return lowerFirst(f.Name)
}

func dbTag(f reflect.StructField) string {
	tag := f.Tag.Get("db")
	if i := strings.IndexByte(tag, ','); i >= 0 {
		tag = tag[:i]
	}
	return tag
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || !unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
