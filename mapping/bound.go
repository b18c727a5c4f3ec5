package mapping

import (
	"reflect"
	"strings"

	"github.com/satishbabariya/sqlmapper-go/reflectx"
	"github.com/satishbabariya/sqlmapper-go/types"
)

// ParamMode tells whether a placeholder sends a value, receives one, or
// both. Out and InOut only apply to Call statements.
type ParamMode int

const (
	In ParamMode = iota
	Out
	InOut
)

// String returns the mode name.
func (m ParamMode) String() string {
	switch m {
	case Out:
		return "OUT"
	case InOut:
		return "INOUT"
	default:
		return "IN"
	}
}

// ParameterMapping describes one placeholder of a compiled statement,
// in positional order.
type ParameterMapping struct {
	// Property is the dotted path resolved against the parameter object
	// or the statement's additional bindings.
	Property string
	Mode     ParamMode
	// HostType is the Go type the bound value is expected to have, when
	// it could be determined at compile time.
	HostType reflect.Type
	DBType   types.DBType
	// DBTypeName carries a driver-specific type name that maps to no
	// DBType.
	DBTypeName string
	// Scale applies to decimal wire types.
	Scale *int
	// TypeHandler converts the value, resolved at compile time.
	TypeHandler types.TypeHandler
	// ResultMapID names the row shape of a cursor-valued out parameter.
	ResultMapID string
}

// Source produces the executable form of a statement for one parameter
// object.
type Source interface {
	Bind(param any) (*BoundStatement, error)
}

// BoundStatement is a statement ready for execution: final SQL with ?
// placeholders and the parameter mappings in placeholder order.
// Additional bindings carry values created during templating, loop
// items and bound expressions, which are not reachable from the
// parameter object itself.
type BoundStatement struct {
	SQL    string
	Params []ParameterMapping

	additional ParamMap
}

// NewBoundStatement wraps compiled SQL and its mappings.
func NewBoundStatement(sql string, params []ParameterMapping) *BoundStatement {
	return &BoundStatement{SQL: sql, Params: params, additional: make(ParamMap)}
}

// HasAdditionalBinding reports whether the root of the given property
// path was bound during templating.
func (b *BoundStatement) HasAdditionalBinding(path string) bool {
	_, ok := b.additional[reflectx.Root(path)]
	return ok
}

// AdditionalBinding resolves a property path against the additional
// bindings: the path's root selects the binding and the remainder is
// navigated into the bound value.
func (b *BoundStatement) AdditionalBinding(path string) (any, bool) {
	root := reflectx.Root(path)
	value, ok := b.additional[root]
	if !ok {
		return nil, false
	}
	rest := strings.TrimPrefix(path[len(root):], ".")
	if rest == "" {
		return value, true
	}
	return reflectx.GetPath(value, rest)
}

// SetAdditionalBinding records a templating-scoped value under a flat
// name.
func (b *BoundStatement) SetAdditionalBinding(name string, value any) {
	b.additional[name] = value
}
