package dynamic

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/satishbabariya/sqlmapper-go/reflectx"
)

// ExprError reports a template expression that could not be parsed or
// evaluated.
type ExprError struct {
	Expression string
	Err        error
}

func (e *ExprError) Error() string {
	return fmt.Sprintf("expression %q: %v", e.Expression, e.Err)
}

func (e *ExprError) Unwrap() error { return e.Err }

var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Float", Pattern: `\d+\.\d+`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "String", Pattern: `'[^']*'|"[^"]*"`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Op", Pattern: `==|!=|<=|>=|&&|\|\|`},
	{Name: "Punct", Pattern: `[-+!<>()\[\].,]`},
})

type exprAST struct {
	Or []*andExpr `@@ ( ( "||" | "or" ) @@ )*`
}

type andExpr struct {
	And []*comparison `@@ ( ( "&&" | "and" ) @@ )*`
}

type comparison struct {
	Left  *additive `@@`
	Op    string    `( @( "==" | "!=" | "<=" | ">=" | "<" | ">" | "eq" | "neq" | "lt" | "lte" | "gt" | "gte" )`
	Right *additive `@@ )?`
}

type additive struct {
	Left *unary   `@@`
	Ops  []*addOp `@@*`
}

type addOp struct {
	Op    string `@( "+" | "-" )`
	Right *unary `@@`
}

type unary struct {
	Not   bool     `( @( "!" | "not" )`
	Minus bool     `| @"-" )?`
	Base  *primary `@@`
}

type primary struct {
	Len    *propPath `"len" "(" @@ ")"`
	Sub    *exprAST  `| "(" @@ ")"`
	True   bool      `| @"true"`
	False  bool      `| @"false"`
	Nil    bool      `| @( "null" | "nil" )`
	Str    *strLit   `| @String`
	Number *float64  `| @( Float | Int )`
	Path   *propPath `| @@`
}

type propPath struct {
	Root string     `@Ident`
	Hops []*pathHop `@@*`
}

type pathHop struct {
	Name  string `"." @Ident`
	Index *int   `| "[" @Int "]"`
}

type strLit string

func (s *strLit) Capture(values []string) error {
	raw := values[0]
	*s = strLit(raw[1 : len(raw)-1])
	return nil
}

var exprParser = participle.MustBuild[exprAST](
	participle.Lexer(exprLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// Expr is a compiled template expression.
type Expr struct {
	src string
	ast *exprAST
}

// ParseExpr compiles an expression of the template predicate language:
// property paths with index hops, literals, len on collections,
// comparisons, boolean operators and string or numeric addition.
func ParseExpr(src string) (*Expr, error) {
	ast, err := exprParser.ParseString("", src)
	if err != nil {
		return nil, &ExprError{Expression: src, Err: err}
	}
	return &Expr{src: src, ast: ast}, nil
}

var exprCache = xsync.NewMapOf[string, *Expr]()

// cachedExpr reuses compiled expressions across renders.
func cachedExpr(src string) (*Expr, error) {
	if e, ok := exprCache.Load(src); ok {
		return e, nil
	}
	e, err := ParseExpr(src)
	if err != nil {
		return nil, err
	}
	exprCache.Store(src, e)
	return e, nil
}

// Eval evaluates the expression. Property roots resolve against the
// context's bindings first, then against the parameter object; missing
// properties evaluate to nil.
func (e *Expr) Eval(ctx *Context) (any, error) {
	v, err := e.ast.eval(ctx)
	if err != nil {
		return nil, &ExprError{Expression: e.src, Err: err}
	}
	return v, nil
}

// Bool evaluates the expression and reduces it to a condition with
// truthy.
func (e *Expr) Bool(ctx *Context) (bool, error) {
	v, err := e.Eval(ctx)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

// String returns the source text of the expression.
func (e *Expr) String() string { return e.src }

func (e *exprAST) eval(ctx *Context) (any, error) {
	if len(e.Or) == 1 {
		return e.Or[0].eval(ctx)
	}
	for _, alt := range e.Or {
		v, err := alt.eval(ctx)
		if err != nil {
			return nil, err
		}
		if truthy(v) {
			return true, nil
		}
	}
	return false, nil
}

func (a *andExpr) eval(ctx *Context) (any, error) {
	if len(a.And) == 1 {
		return a.And[0].eval(ctx)
	}
	for _, term := range a.And {
		v, err := term.eval(ctx)
		if err != nil {
			return nil, err
		}
		if !truthy(v) {
			return false, nil
		}
	}
	return true, nil
}

func (c *comparison) eval(ctx *Context) (any, error) {
	left, err := c.Left.eval(ctx)
	if err != nil {
		return nil, err
	}
	if c.Op == "" {
		return left, nil
	}
	right, err := c.Right.eval(ctx)
	if err != nil {
		return nil, err
	}
	return compare(c.Op, left, right)
}

func (a *additive) eval(ctx *Context) (any, error) {
	v, err := a.Left.eval(ctx)
	if err != nil {
		return nil, err
	}
	for _, op := range a.Ops {
		right, err := op.Right.eval(ctx)
		if err != nil {
			return nil, err
		}
		v, err = addValues(op.Op, v, right)
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (u *unary) eval(ctx *Context) (any, error) {
	v, err := u.Base.eval(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case u.Not:
		return !truthy(v), nil
	case u.Minus:
		f, ok := numValue(v)
		if !ok {
			return nil, fmt.Errorf("cannot negate %T", v)
		}
		return -f, nil
	}
	return v, nil
}

func (p *primary) eval(ctx *Context) (any, error) {
	switch {
	case p.Len != nil:
		return lenValue(evalPath(ctx, p.Len.String()))
	case p.Sub != nil:
		return p.Sub.eval(ctx)
	case p.True:
		return true, nil
	case p.False:
		return false, nil
	case p.Nil:
		return nil, nil
	case p.Str != nil:
		return string(*p.Str), nil
	case p.Number != nil:
		return *p.Number, nil
	case p.Path != nil:
		return evalPath(ctx, p.Path.String()), nil
	}
	return nil, nil
}

func (p *propPath) String() string {
	var b strings.Builder
	b.WriteString(p.Root)
	for _, hop := range p.Hops {
		if hop.Index != nil {
			fmt.Fprintf(&b, "[%d]", *hop.Index)
		} else {
			b.WriteByte('.')
			b.WriteString(hop.Name)
		}
	}
	return b.String()
}

// evalPath resolves a property path: the root is looked up in the
// bindings first, then the whole path is resolved against the
// parameter object.
func evalPath(ctx *Context, path string) any {
	root := reflectx.Root(path)
	if v, ok := ctx.bindings[root]; ok {
		rest := strings.TrimPrefix(path[len(root):], ".")
		if rest == "" {
			return v
		}
		value, _ := reflectx.GetPath(v, rest)
		return value
	}
	value, _ := reflectx.GetPath(ctx.param, path)
	return value
}

// lenValue counts elements of a string, slice, array or map. Nil and
// missing properties count as zero.
func lenValue(v any) (any, error) {
	if v == nil {
		return 0, nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return 0, nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), nil
	}
	return nil, fmt.Errorf("cannot take len of %T", v)
}

// truthy reduces a value to a condition: nil and zero numbers are
// false, strings and collections are true when non-empty, everything
// else is true.
func truthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return false
		}
		return truthy(rv.Elem().Interface())
	}
	return true
}

func compare(op string, left, right any) (any, error) {
	switch op {
	case "eq":
		op = "=="
	case "neq":
		op = "!="
	case "lt":
		op = "<"
	case "lte":
		op = "<="
	case "gt":
		op = ">"
	case "gte":
		op = ">="
	}
	switch op {
	case "==":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	}
	return order(op, left, right)
}

// looseEqual compares across numeric widths and named string or bool
// types; nil equals nil and nothing else.
func looseEqual(left, right any) bool {
	ln, rn := isNilValue(left), isNilValue(right)
	if ln || rn {
		return ln && rn
	}
	if lf, ok := numValue(left); ok {
		rf, ok := numValue(right)
		return ok && lf == rf
	}
	if ls, ok := strValue(left); ok {
		rs, ok := strValue(right)
		return ok && ls == rs
	}
	if lt, ok := timeValue(left); ok {
		rt, ok := timeValue(right)
		return ok && lt.Equal(rt)
	}
	if lb, ok := boolValue(left); ok {
		rb, ok := boolValue(right)
		return ok && lb == rb
	}
	return reflect.DeepEqual(left, right)
}

func order(op string, left, right any) (any, error) {
	if lf, ok := numValue(left); ok {
		if rf, ok := numValue(right); ok {
			return orderResult(op, compareFloat(lf, rf)), nil
		}
	}
	if ls, ok := strValue(left); ok {
		if rs, ok := strValue(right); ok {
			return orderResult(op, strings.Compare(ls, rs)), nil
		}
	}
	if lt, ok := timeValue(left); ok {
		if rt, ok := timeValue(right); ok {
			return orderResult(op, compareTime(lt, rt)), nil
		}
	}
	return nil, fmt.Errorf("cannot compare %T and %T with %s", left, right, op)
}

func addValues(op string, left, right any) (any, error) {
	if op == "+" {
		if ls, ok := strValue(left); ok {
			if rs, ok := strValue(right); ok {
				return ls + rs, nil
			}
			return ls + fmt.Sprint(right), nil
		}
		if rs, ok := strValue(right); ok {
			return fmt.Sprint(left) + rs, nil
		}
	}
	lf, lok := numValue(left)
	rf, rok := numValue(right)
	if lok && rok {
		if op == "+" {
			return lf + rf, nil
		}
		return lf - rf, nil
	}
	return nil, fmt.Errorf("cannot apply %s to %T and %T", op, left, right)
}

func orderResult(op string, cmp int) bool {
	switch op {
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	}
	return cmp >= 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}

func numValue(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func strValue(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

func timeValue(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	}
	return time.Time{}, false
}

func boolValue(v any) (bool, bool) {
	if v == nil {
		return false, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Bool {
		return rv.Bool(), true
	}
	return false, false
}

// isSimpleValue tells scalar parameters apart from structured ones.
func isSimpleValue(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.(time.Time); ok {
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
