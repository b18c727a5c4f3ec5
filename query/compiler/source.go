package compiler

import (
	"reflect"

	"github.com/satishbabariya/sqlmapper-go/dynamic"
	"github.com/satishbabariya/sqlmapper-go/mapping"
)

// NewSource builds the bind strategy for template text. Text whose
// only placeholders are #{...} compiles once and every bind reuses the
// result. ${...} substitution defers rendering and compilation to bind
// time.
func NewSource(c *Compiler, text string) (mapping.Source, error) {
	node := dynamic.NewTextNode(text)
	if node.IsDynamic() {
		return NewDynamicSource(c, node), nil
	}
	return NewRawSource(c, text)
}

// RawSource serves a statement compiled at construction time.
type RawSource struct {
	bound *mapping.BoundStatement
}

// NewRawSource compiles the template immediately.
func NewRawSource(c *Compiler, text string) (*RawSource, error) {
	bound, err := c.Compile(text, nil, nil)
	if err != nil {
		return nil, err
	}
	return &RawSource{bound: bound}, nil
}

// Bind implements mapping.Source. Every call returns a fresh statement
// sharing the compiled SQL and descriptors.
func (s *RawSource) Bind(param any) (*mapping.BoundStatement, error) {
	return mapping.NewBoundStatement(s.bound.SQL, s.bound.Params), nil
}

// DynamicSource renders a node tree and compiles the result on every
// bind, so the SQL shape can follow the parameter object.
type DynamicSource struct {
	compiler *Compiler
	root     dynamic.Node
}

// NewDynamicSource wraps a fragment tree.
func NewDynamicSource(c *Compiler, root dynamic.Node) *DynamicSource {
	return &DynamicSource{compiler: c, root: root}
}

// Bind implements mapping.Source. Bindings made while rendering, loop
// items and bound expressions, are carried into the statement so the
// binder can reach them.
func (s *DynamicSource) Bind(param any) (*mapping.BoundStatement, error) {
	ctx := dynamic.NewContext(param)
	if _, err := s.root.Apply(ctx); err != nil {
		return nil, err
	}
	var paramType reflect.Type
	if param != nil {
		paramType = reflect.TypeOf(param)
	}
	bound, err := s.compiler.Compile(ctx.SQL(), paramType, ctx.Bindings())
	if err != nil {
		return nil, err
	}
	for name, value := range ctx.Bindings() {
		bound.SetAdditionalBinding(name, value)
	}
	return bound, nil
}

var (
	_ mapping.Source = (*RawSource)(nil)
	_ mapping.Source = (*DynamicSource)(nil)
)
