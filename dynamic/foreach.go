package dynamic

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/satishbabariya/sqlmapper-go/parsing"
)

// ItemPrefix starts every itemized loop binding.
const ItemPrefix = "__frch_"

// Foreach configures a ForeachNode.
type Foreach struct {
	// Collection is the expression producing the slice, array or map
	// to iterate.
	Collection string
	// Item and Index name the per-iteration bindings: the element and
	// its position, or the value and key when iterating a map.
	Item  string
	Index string
	// Open and Close wrap a non-empty rendering; Separator goes
	// between iterations that produced output.
	Open      string
	Close     string
	Separator string
	// Nullable renders nothing for a nil collection instead of
	// failing.
	Nullable bool
}

// ForeachNode renders its contents once per element, rebinding Item
// and Index each round and rewriting their placeholders to itemized
// names that stay valid after the loop ends.
type ForeachNode struct {
	cfg      Foreach
	expr     *Expr
	contents Node
}

// NewForeachNode compiles the collection expression.
func NewForeachNode(contents Node, cfg Foreach) (*ForeachNode, error) {
	expr, err := ParseExpr(cfg.Collection)
	if err != nil {
		return nil, err
	}
	return &ForeachNode{cfg: cfg, expr: expr, contents: contents}, nil
}

var errNilCollection = errors.New("evaluated to nil")

// Apply implements Node.
func (n *ForeachNode) Apply(ctx *Context) (bool, error) {
	items, err := n.items(ctx)
	if err != nil {
		return false, err
	}
	if len(items) == 0 {
		return true, nil
	}
	if n.cfg.Open != "" {
		ctx.AppendSQL(n.cfg.Open)
	}
	first := true
	for _, it := range items {
		prefix := ""
		if !first && n.cfg.Separator != "" {
			prefix = n.cfg.Separator
		}
		out := &prefixSink{dst: ctx.sink, prefix: prefix}
		seq := ctx.UniqueNumber()
		if n.cfg.Index != "" {
			ctx.Bind(n.cfg.Index, it.key)
			ctx.Bind(itemize(n.cfg.Index, seq), it.key)
		}
		if n.cfg.Item != "" {
			ctx.Bind(n.cfg.Item, it.value)
			ctx.Bind(itemize(n.cfg.Item, seq), it.value)
		}
		iter := ctx.derive(&rewriteSink{dst: out, rewrite: n.rewriter(seq)})
		if _, err := n.contents.Apply(iter); err != nil {
			return false, err
		}
		if first {
			first = !out.applied
		}
	}
	if n.cfg.Close != "" {
		ctx.AppendSQL(n.cfg.Close)
	}
	ctx.Unbind(n.cfg.Item)
	ctx.Unbind(n.cfg.Index)
	return true, nil
}

type iteration struct {
	key   any
	value any
}

// items resolves the collection expression into ordered iterations.
// Map entries iterate in key order so renders are deterministic.
func (n *ForeachNode) items(ctx *Context) ([]iteration, error) {
	value, err := n.expr.Eval(ctx)
	if err != nil {
		return nil, err
	}
	if isNilValue(value) {
		if n.cfg.Nullable {
			return nil, nil
		}
		return nil, &ExprError{Expression: n.expr.String(), Err: errNilCollection}
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]iteration, rv.Len())
		for i := range items {
			items[i] = iteration{key: i, value: rv.Index(i).Interface()}
		}
		return items, nil
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		items := make([]iteration, 0, len(keys))
		for _, k := range keys {
			items = append(items, iteration{key: k.Interface(), value: rv.MapIndex(k).Interface()})
		}
		return items, nil
	}
	return nil, &ExprError{Expression: n.expr.String(), Err: fmt.Errorf("value of type %T is not iterable", value)}
}

// itemize builds the binding name for one iteration of a loop.
func itemize(name string, seq int) string {
	return fmt.Sprintf("%s%s_%d", ItemPrefix, name, seq)
}

// rewriter returns the placeholder rewrite for one iteration: a #{...}
// whose content starts with the item or index name gets the itemized
// name instead.
func (n *ForeachNode) rewriter(seq int) func(string) string {
	parser := parsing.NewTokenParser("#{", "}", func(content string) string {
		replaced := rewriteRoot(content, n.cfg.Item, seq)
		if replaced == content && n.cfg.Index != "" {
			replaced = rewriteRoot(content, n.cfg.Index, seq)
		}
		return "#{" + replaced + "}"
	})
	return parser.Parse
}

// rewriteRoot swaps a placeholder's leading name for its itemized form
// when the name stands alone, that is followed by a property hop, an
// attribute separator, whitespace or the end of the content.
func rewriteRoot(content, name string, seq int) string {
	if name == "" {
		return content
	}
	trimmed := strings.TrimLeft(content, " \t\n\r\v\f")
	if !strings.HasPrefix(trimmed, name) {
		return content
	}
	rest := trimmed[len(name):]
	if rest != "" {
		switch rest[0] {
		case '.', ',', ':':
		case ' ', '\t', '\n', '\r', '\v', '\f':
		default:
			return content
		}
	}
	return itemize(name, seq) + rest
}

var _ Node = (*ForeachNode)(nil)
