package parsing

import (
	"fmt"
	"strings"
)

// ParseError reports a malformed placeholder expression and the byte
// offset where the scan stopped.
type ParseError struct {
	Expression string
	Pos        int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing error in {%s} in position %d", e.Expression, e.Pos)
}

// ParseExpression parses the content of a placeholder into its attribute
// map. The grammar is
//
//	expression ::= "(" inner ")" attrs | property [":" dbtype] attrs
//	attrs      ::= ("," name "=" value)*
//
// The returned map holds "expression" or "property", "jdbcType" when the
// colon form is present, and one entry per name=value attribute. Names and
// values are trimmed of surrounding whitespace.
func ParseExpression(expr string) (map[string]string, error) {
	s := &exprScanner{src: expr, attrs: make(map[string]string, 4)}
	i := s.skipWS(0)
	if i >= len(expr) {
		return nil, s.errAt(i)
	}
	var err error
	if expr[i] == '(' {
		err = s.parenExpression(i + 1)
	} else {
		err = s.property(i)
	}
	if err != nil {
		return nil, err
	}
	return s.attrs, nil
}

type exprScanner struct {
	src   string
	attrs map[string]string
}

func (s *exprScanner) errAt(pos int) error {
	return &ParseError{Expression: s.src, Pos: pos}
}

func (s *exprScanner) skipWS(p int) int {
	for ; p < len(s.src); p++ {
		if s.src[p] > 0x20 {
			return p
		}
	}
	return len(s.src)
}

func (s *exprScanner) skipUntil(p int, stop string) int {
	for ; p < len(s.src); p++ {
		if strings.IndexByte(stop, s.src[p]) >= 0 {
			return p
		}
	}
	return len(s.src)
}

func (s *exprScanner) trimmed(start, end int) string {
	return strings.TrimSpace(s.src[start:end])
}

// parenExpression captures a parenthesized expression, tracking nesting
// depth, then hands the rest to the attribute tail.
func (s *exprScanner) parenExpression(left int) error {
	depth := 1
	right := left
	for right < len(s.src) && depth > 0 {
		switch s.src[right] {
		case '(':
			depth++
		case ')':
			depth--
		}
		right++
	}
	if depth > 0 {
		return s.errAt(len(s.src))
	}
	s.attrs["expression"] = s.src[left : right-1]
	return s.attrTail(right)
}

func (s *exprScanner) property(left int) error {
	right := s.skipUntil(left, ",:")
	if prop := s.trimmed(left, right); prop != "" {
		s.attrs["property"] = prop
	}
	return s.attrTail(right)
}

// attrTail parses the optional ":dbtype" suffix and ",name=value"
// attributes that may follow the property or expression head.
func (s *exprScanner) attrTail(p int) error {
	p = s.skipWS(p)
	if p >= len(s.src) {
		return nil
	}
	switch s.src[p] {
	case ':':
		return s.dbType(p + 1)
	case ',':
		return s.options(p + 1)
	}
	return s.errAt(p)
}

func (s *exprScanner) dbType(p int) error {
	left := s.skipWS(p)
	right := s.skipUntil(left, ",")
	if right <= left {
		return s.errAt(p)
	}
	s.attrs["jdbcType"] = s.trimmed(left, right)
	if right < len(s.src) {
		return s.options(right + 1)
	}
	return nil
}

func (s *exprScanner) options(p int) error {
	for {
		left := s.skipWS(p)
		if left >= len(s.src) {
			return nil
		}
		eq := s.skipUntil(left, "=")
		if eq >= len(s.src) {
			return s.errAt(left)
		}
		name := s.trimmed(left, eq)
		end := s.skipUntil(eq+1, ",")
		s.attrs[name] = s.trimmed(eq+1, end)
		if end >= len(s.src) {
			return nil
		}
		p = end + 1
	}
}
