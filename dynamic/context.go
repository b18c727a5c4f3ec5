// Package dynamic renders statement templates: a tree of nodes emits
// SQL fragments and records the bindings made along the way, driven by
// a small predicate language evaluated against the parameter object.
package dynamic

import (
	"strings"
)

// ParameterKey is the binding under which the parameter object itself
// is reachable from every template expression.
const ParameterKey = "_parameter"

// Context collects the SQL fragments and bindings produced while a
// node tree is applied. Derived contexts share bindings, the parameter
// object and the fragment counter, only the output differs.
type Context struct {
	param    any
	bindings map[string]any
	seq      *int
	sink     appendSink
}

// NewContext prepares a render pass over the given parameter object.
func NewContext(param any) *Context {
	seq := 0
	return &Context{
		param:    param,
		bindings: map[string]any{ParameterKey: param},
		seq:      &seq,
		sink:     &joinSink{},
	}
}

// AppendSQL emits one SQL fragment.
func (c *Context) AppendSQL(sql string) {
	c.sink.appendSQL(sql)
}

// Bind records a named value visible to expressions and placeholders
// for the rest of the render.
func (c *Context) Bind(name string, value any) {
	c.bindings[name] = value
}

// Unbind drops a named value.
func (c *Context) Unbind(name string) {
	if name != "" {
		delete(c.bindings, name)
	}
}

// Bindings returns the live binding map shared by all derived
// contexts.
func (c *Context) Bindings() map[string]any {
	return c.bindings
}

// Param returns the parameter object of this render.
func (c *Context) Param() any {
	return c.param
}

// UniqueNumber returns the next render-scoped sequence number, used to
// itemize loop bindings.
func (c *Context) UniqueNumber() int {
	n := *c.seq
	*c.seq++
	return n
}

// SQL returns the rendered statement.
func (c *Context) SQL() string {
	return strings.TrimSpace(c.sink.String())
}

func (c *Context) derive(s appendSink) *Context {
	return &Context{param: c.param, bindings: c.bindings, seq: c.seq, sink: s}
}

type appendSink interface {
	appendSQL(sql string)
	String() string
}

// joinSink separates fragments with a single space, counting empty
// fragments like any other.
type joinSink struct {
	sb     strings.Builder
	joined bool
}

func (s *joinSink) appendSQL(sql string) {
	if s.joined {
		s.sb.WriteByte(' ')
	}
	s.joined = true
	s.sb.WriteString(sql)
}

func (s *joinSink) String() string {
	return s.sb.String()
}

// rawSink concatenates fragments verbatim. Trim bodies are captured
// this way before filtering.
type rawSink struct {
	sb strings.Builder
}

func (s *rawSink) appendSQL(sql string) {
	s.sb.WriteString(sql)
}

func (s *rawSink) String() string {
	return s.sb.String()
}

// prefixSink emits its prefix once, in front of the first fragment
// that is not blank.
type prefixSink struct {
	dst     appendSink
	prefix  string
	applied bool
}

func (s *prefixSink) appendSQL(sql string) {
	if !s.applied && strings.TrimSpace(sql) != "" {
		s.dst.appendSQL(s.prefix)
		s.applied = true
	}
	s.dst.appendSQL(sql)
}

func (s *prefixSink) String() string {
	return s.dst.String()
}

// rewriteSink passes fragments through a placeholder rewriter before
// forwarding them.
type rewriteSink struct {
	dst     appendSink
	rewrite func(sql string) string
}

func (s *rewriteSink) appendSQL(sql string) {
	s.dst.appendSQL(s.rewrite(sql))
}

func (s *rewriteSink) String() string {
	return s.dst.String()
}
