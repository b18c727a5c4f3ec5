// Package compiler compiles statement templates into driver-ready SQL.
// Every #{...} placeholder becomes a positional ? and a parameter
// descriptor that records how the value is resolved and bound.
package compiler

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/satishbabariya/sqlmapper-go/mapping"
	"github.com/satishbabariya/sqlmapper-go/parsing"
	"github.com/satishbabariya/sqlmapper-go/reflectx"
	"github.com/satishbabariya/sqlmapper-go/types"
)

// Compiler scans templates and builds parameter descriptors against a
// codec registry. It holds no mutable state, one instance is shared by
// every statement.
type Compiler struct {
	registry *types.Registry
	shrink   bool
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithShrinkWhitespace collapses whitespace runs in templates before
// they are scanned.
func WithShrinkWhitespace() Option {
	return func(c *Compiler) {
		c.shrink = true
	}
}

// NewCompiler creates a compiler resolving codecs from the given
// registry.
func NewCompiler(registry *types.Registry, opts ...Option) *Compiler {
	c := &Compiler{registry: registry}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile turns template text into a BoundStatement: SQL with one ?
// per placeholder and the descriptors in encounter order. paramType is
// the declared parameter type, additional carries render-time bindings
// whose dynamic types take priority when a property is resolved.
func (c *Compiler) Compile(template string, paramType reflect.Type, additional map[string]any) (*mapping.BoundStatement, error) {
	if c.shrink {
		template = shrinkWhitespace(template)
	}
	var (
		params   []mapping.ParameterMapping
		firstErr error
	)
	parser := parsing.NewTokenParser("#{", "}", func(content string) string {
		pm, err := c.buildMapping(content, paramType, additional)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if err == nil {
			params = append(params, pm)
		}
		return "?"
	})
	compiled := parser.Parse(template)
	if firstErr != nil {
		return nil, firstErr
	}
	return mapping.NewBoundStatement(compiled, params), nil
}

const validAttributes = "goType, javaType, jdbcType, jdbcTypeName, mode, numericScale, resultMap, typeHandler"

func (c *Compiler) buildMapping(content string, paramType reflect.Type, additional map[string]any) (mapping.ParameterMapping, error) {
	where := "#{" + content + "}"
	attrs, err := parsing.ParseExpression(content)
	if err != nil {
		return mapping.ParameterMapping{}, &BuildError{Context: where, Cause: err}
	}
	property := attrs["property"]
	pm := mapping.ParameterMapping{
		Property: property,
		Mode:     mapping.In,
		HostType: c.hostType(property, paramType, additional, attrs["jdbcType"]),
	}

	var handlerName string
	for _, name := range sortedKeys(attrs) {
		value := attrs[name]
		switch name {
		case "property":
		case "goType", "javaType":
			t, ok := namedType(value)
			if !ok {
				return pm, &BuildError{Context: where, Cause: fmt.Errorf("unknown host type %q", value)}
			}
			pm.HostType = t
		case "jdbcType":
			db, ok := types.DBTypeOf(value)
			if !ok {
				return pm, &BuildError{Context: where, Cause: fmt.Errorf("unknown wire type %q", value)}
			}
			pm.DBType = db
		case "jdbcTypeName":
			pm.DBTypeName = value
		case "mode":
			m, ok := paramMode(value)
			if !ok {
				return pm, &BuildError{Context: where, Cause: fmt.Errorf("unknown parameter mode %q", value)}
			}
			pm.Mode = m
		case "numericScale":
			scale, err := strconv.Atoi(value)
			if err != nil {
				return pm, &BuildError{Context: where, Cause: fmt.Errorf("numericScale %q is not an integer", value)}
			}
			pm.Scale = &scale
		case "resultMap":
			pm.ResultMapID = value
		case "typeHandler":
			handlerName = value
		case "expression":
			return pm, &BuildError{Context: where, Cause: errors.New("expression based parameters are not supported yet")}
		default:
			return pm, &BuildError{Context: where, Cause: fmt.Errorf("invalid attribute %q, valid attributes are %s", name, validAttributes)}
		}
	}

	if handlerName != "" {
		h, err := c.registry.BuildNamed(handlerName, pm.HostType)
		if err != nil {
			return pm, &BuildError{Context: where, Cause: err}
		}
		pm.TypeHandler = h
	} else {
		pm.TypeHandler = c.registry.Handler(pm.HostType, pm.DBType)
	}

	if pm.DBType == types.Cursor {
		if pm.ResultMapID == "" {
			return pm, &BuildError{Context: where, Cause: fmt.Errorf("missing result map for cursor parameter %q", property)}
		}
	} else if pm.TypeHandler == nil {
		return pm, &BuildError{Context: where, Cause: fmt.Errorf("no type handler for property %q of type %s", property, pm.HostType)}
	}
	return pm, nil
}

var (
	anyType    = reflect.TypeOf((*any)(nil)).Elem()
	cursorType = reflect.TypeOf((*sql.Rows)(nil))
)

// hostType resolves the Go type a placeholder binds from, before
// attribute overrides. Render-time bindings win, then a parameter type
// that is itself a registered scalar, then introspection of the
// parameter type.
func (c *Compiler) hostType(property string, paramType reflect.Type, additional map[string]any, dbTypeName string) reflect.Type {
	if value, ok := additionalValue(additional, property); ok {
		if value == nil {
			return anyType
		}
		return reflect.TypeOf(value)
	}
	if paramType != nil && c.registry.HasHandler(paramType) {
		return paramType
	}
	if db, ok := types.DBTypeOf(dbTypeName); ok && db == types.Cursor {
		return cursorType
	}
	if property == "" || paramType == nil || indirectKind(paramType) == reflect.Map {
		return anyType
	}
	if t, ok := reflectx.TypeOfPath(paramType, property); ok {
		return t
	}
	return anyType
}

// additionalValue resolves a property against render-time bindings:
// the path's root selects the binding, the remainder is navigated
// into the bound value.
func additionalValue(additional map[string]any, property string) (any, bool) {
	if len(additional) == 0 || property == "" {
		return nil, false
	}
	root := reflectx.Root(property)
	value, ok := additional[root]
	if !ok {
		return nil, false
	}
	rest := strings.TrimPrefix(property[len(root):], ".")
	if rest == "" {
		return value, true
	}
	leaf, ok := reflectx.GetPath(value, rest)
	if !ok {
		return nil, true
	}
	return leaf, true
}

var namedTypes = map[string]reflect.Type{
	"string":    reflect.TypeOf(""),
	"bool":      reflect.TypeOf(false),
	"boolean":   reflect.TypeOf(false),
	"int":       reflect.TypeOf(int(0)),
	"integer":   reflect.TypeOf(int(0)),
	"int8":      reflect.TypeOf(int8(0)),
	"int16":     reflect.TypeOf(int16(0)),
	"short":     reflect.TypeOf(int16(0)),
	"int32":     reflect.TypeOf(int32(0)),
	"int64":     reflect.TypeOf(int64(0)),
	"long":      reflect.TypeOf(int64(0)),
	"uint":      reflect.TypeOf(uint(0)),
	"uint8":     reflect.TypeOf(uint8(0)),
	"uint16":    reflect.TypeOf(uint16(0)),
	"uint32":    reflect.TypeOf(uint32(0)),
	"uint64":    reflect.TypeOf(uint64(0)),
	"float":     reflect.TypeOf(float32(0)),
	"float32":   reflect.TypeOf(float32(0)),
	"float64":   reflect.TypeOf(float64(0)),
	"double":    reflect.TypeOf(float64(0)),
	"bytes":     reflect.TypeOf([]byte(nil)),
	"[]byte":    reflect.TypeOf([]byte(nil)),
	"time":      reflect.TypeOf(time.Time{}),
	"time.time": reflect.TypeOf(time.Time{}),
	"date":      reflect.TypeOf(time.Time{}),
	"any":       anyType,
	"object":    anyType,
}

// namedType resolves a goType/javaType attribute value, matched
// case-insensitively.
func namedType(name string) (reflect.Type, bool) {
	t, ok := namedTypes[strings.ToLower(name)]
	return t, ok
}

func paramMode(name string) (mapping.ParamMode, bool) {
	switch strings.ToUpper(name) {
	case "IN":
		return mapping.In, true
	case "OUT":
		return mapping.Out, true
	case "INOUT":
		return mapping.InOut, true
	}
	return mapping.In, false
}

func indirectKind(t reflect.Type) reflect.Kind {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind()
}

func sortedKeys(attrs map[string]string) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func shrinkWhitespace(template string) string {
	return strings.Join(strings.Fields(template), " ")
}
