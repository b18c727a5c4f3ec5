package dynamic

import (
	"fmt"

	"github.com/satishbabariya/sqlmapper-go/parsing"
)

// Node is one element of a statement template.
type Node interface {
	// Apply renders the node into the context. The boolean reports
	// whether the node contributed output, which choose uses to pick a
	// branch.
	Apply(ctx *Context) (bool, error)
}

// MixedNode applies its children in order.
type MixedNode struct {
	Contents []Node
}

// NewMixedNode groups nodes into one.
func NewMixedNode(contents ...Node) *MixedNode {
	return &MixedNode{Contents: contents}
}

// Apply implements Node.
func (n *MixedNode) Apply(ctx *Context) (bool, error) {
	for _, child := range n.Contents {
		if _, err := child.Apply(ctx); err != nil {
			return false, err
		}
	}
	return true, nil
}

// StaticTextNode emits its text unchanged.
type StaticTextNode struct {
	Text string
}

// NewStaticTextNode wraps literal template text.
func NewStaticTextNode(text string) *StaticTextNode {
	return &StaticTextNode{Text: text}
}

// Apply implements Node.
func (n *StaticTextNode) Apply(ctx *Context) (bool, error) {
	ctx.AppendSQL(n.Text)
	return true, nil
}

// TextNode emits text after substituting ${...} regions with evaluated
// values, spliced into the SQL verbatim. #{...} placeholders are left
// for the compiler.
type TextNode struct {
	Text string
}

// NewTextNode wraps template text that may contain ${...} regions.
func NewTextNode(text string) *TextNode {
	return &TextNode{Text: text}
}

// IsDynamic reports whether the text contains ${...} regions and so
// must be rendered per execution.
func (n *TextNode) IsDynamic() bool {
	dynamic := false
	parser := parsing.NewTokenParser("${", "}", func(string) string {
		dynamic = true
		return ""
	})
	parser.Parse(n.Text)
	return dynamic
}

// Apply implements Node.
func (n *TextNode) Apply(ctx *Context) (bool, error) {
	var firstErr error
	parser := parsing.NewTokenParser("${", "}", func(content string) string {
		value, err := n.substitute(ctx, content)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return ""
		}
		return value
	})
	sql := parser.Parse(n.Text)
	if firstErr != nil {
		return false, firstErr
	}
	ctx.AppendSQL(sql)
	return true, nil
}

func (n *TextNode) substitute(ctx *Context, content string) (string, error) {
	// A scalar parameter is additionally reachable as "value".
	if ctx.param == nil {
		ctx.Bind("value", nil)
	} else if isSimpleValue(ctx.param) {
		ctx.Bind("value", ctx.param)
	}
	expr, err := cachedExpr(content)
	if err != nil {
		return "", err
	}
	value, err := expr.Eval(ctx)
	if err != nil {
		return "", err
	}
	if value == nil {
		return "", nil
	}
	return fmt.Sprint(value), nil
}

// IfNode renders its contents when its test expression holds.
type IfNode struct {
	Test     *Expr
	Contents Node
}

// NewIfNode compiles the test expression.
func NewIfNode(test string, contents Node) (*IfNode, error) {
	expr, err := ParseExpr(test)
	if err != nil {
		return nil, err
	}
	return &IfNode{Test: expr, Contents: contents}, nil
}

// Apply implements Node.
func (n *IfNode) Apply(ctx *Context) (bool, error) {
	ok, err := n.Test.Bool(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if _, err := n.Contents.Apply(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// ChooseNode renders the first branch whose condition holds, or the
// default branch when none does.
type ChooseNode struct {
	Whens   []*IfNode
	Default Node
}

// NewChooseNode builds a branch switch; def may be nil.
func NewChooseNode(whens []*IfNode, def Node) *ChooseNode {
	return &ChooseNode{Whens: whens, Default: def}
}

// Apply implements Node.
func (n *ChooseNode) Apply(ctx *Context) (bool, error) {
	for _, when := range n.Whens {
		applied, err := when.Apply(ctx)
		if err != nil {
			return false, err
		}
		if applied {
			return true, nil
		}
	}
	if n.Default != nil {
		if _, err := n.Default.Apply(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// BindNode evaluates an expression once and exposes the result as a
// named binding for the rest of the render.
type BindNode struct {
	Name string
	Expr *Expr
}

// NewBindNode compiles the bound expression.
func NewBindNode(name, expression string) (*BindNode, error) {
	expr, err := ParseExpr(expression)
	if err != nil {
		return nil, err
	}
	return &BindNode{Name: name, Expr: expr}, nil
}

// Apply implements Node.
func (n *BindNode) Apply(ctx *Context) (bool, error) {
	value, err := n.Expr.Eval(ctx)
	if err != nil {
		return false, err
	}
	ctx.Bind(n.Name, value)
	return true, nil
}

var (
	_ Node = (*MixedNode)(nil)
	_ Node = (*StaticTextNode)(nil)
	_ Node = (*TextNode)(nil)
	_ Node = (*IfNode)(nil)
	_ Node = (*ChooseNode)(nil)
	_ Node = (*BindNode)(nil)
)
