package dynamic

import "strings"

// TrimNode captures the output of its contents and fixes the edges:
// configured leading or trailing tokens are stripped, and a prefix and
// suffix are put around a non-empty body.
type TrimNode struct {
	contents        Node
	prefix          string
	suffix          string
	prefixOverrides []string
	suffixOverrides []string
}

// NewTrimNode builds a trim with pipe-separated override lists, as in
// "AND |OR ". Override matching is case-insensitive.
func NewTrimNode(contents Node, prefix, prefixOverrides, suffix, suffixOverrides string) *TrimNode {
	return &TrimNode{
		contents:        contents,
		prefix:          prefix,
		suffix:          suffix,
		prefixOverrides: parseOverrides(prefixOverrides),
		suffixOverrides: parseOverrides(suffixOverrides),
	}
}

var whereOverrides = []string{"AND ", "OR ", "AND\n", "OR\n", "AND\r", "OR\r", "AND\t", "OR\t"}

// NewWhereNode prepends WHERE to a non-empty body and strips a leading
// AND or OR left over from skipped conditions.
func NewWhereNode(contents Node) *TrimNode {
	return &TrimNode{contents: contents, prefix: "WHERE", prefixOverrides: whereOverrides}
}

var commaOverrides = []string{","}

// NewSetNode prepends SET to a non-empty body and strips stray commas
// from both edges.
func NewSetNode(contents Node) *TrimNode {
	return &TrimNode{
		contents:        contents,
		prefix:          "SET",
		prefixOverrides: commaOverrides,
		suffixOverrides: commaOverrides,
	}
}

func parseOverrides(overrides string) []string {
	if overrides == "" {
		return nil
	}
	parts := strings.Split(overrides, "|")
	for i, p := range parts {
		parts[i] = strings.ToUpper(p)
	}
	return parts
}

// Apply implements Node. The body is captured verbatim, filtered and
// appended to the surrounding context as a single fragment.
func (n *TrimNode) Apply(ctx *Context) (bool, error) {
	capture := &rawSink{}
	applied, err := n.contents.Apply(ctx.derive(capture))
	if err != nil {
		return false, err
	}
	ctx.AppendSQL(n.filter(capture.String()))
	return applied, nil
}

// filter trims the body and applies the edge rules. Override removal
// drops the token text but not its trailing whitespace.
func (n *TrimNode) filter(body string) string {
	sql := strings.TrimSpace(body)
	upper := strings.ToUpper(sql)
	if upper == "" {
		return sql
	}
	for _, override := range n.prefixOverrides {
		if strings.HasPrefix(upper, override) {
			sql = sql[len(strings.TrimSpace(override)):]
			break
		}
	}
	if n.prefix != "" {
		sql = n.prefix + " " + sql
	}
	for _, override := range n.suffixOverrides {
		if strings.HasSuffix(upper, override) || strings.HasSuffix(upper, strings.TrimSpace(override)) {
			sql = sql[:len(sql)-len(strings.TrimSpace(override))]
			break
		}
	}
	if n.suffix != "" {
		sql = sql + " " + n.suffix
	}
	return sql
}

var _ Node = (*TrimNode)(nil)
