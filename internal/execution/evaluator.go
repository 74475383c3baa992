package execution

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// NodeView is what expressions see of a finished node.
type NodeView struct {
	Status string
	Output any
	Error  string
}

// Env is the namespace visible to expressions and templates. Paths
// resolve against three roots: "nodes.<id>" exposes predecessor views,
// "variables.<name>" (or a bare name) exposes workflow variables, and
// "output" exposes the source node's output when evaluating an edge
// condition.
type Env struct {
	Variables map[string]any
	Nodes     map[string]NodeView
	Output    any
}

// Evaluator is the handle the scheduler uses for edge conditions,
// expression parameters and templates.
type Evaluator interface {
	Eval(expr string, env *Env) (any, error)
	EvalBool(expr string, env *Env) (bool, error)
	Interpolate(tmpl string, env *Env) (string, error)
}

// EvalFunc is a function callable from expressions.
type EvalFunc func(args []any) (any, error)

// ExprEvaluator is a recursive descent evaluator over a small expression
// language: path lookups with dot and bracket accessors, ==/!=/</<=/>/>=
// comparisons, &&, || and ! on truthiness, literals, parentheses and
// built-in functions len, empty and exists.
type ExprEvaluator struct {
	funcs map[string]EvalFunc
}

// NewEvaluator returns an evaluator with the built-in functions
// registered.
func NewEvaluator() *ExprEvaluator {
	e := &ExprEvaluator{funcs: make(map[string]EvalFunc)}

	e.Register("len", func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("len takes one argument, got %d", len(args))
		}
		switch v := args[0].(type) {
		case string:
			return int64(len(v)), nil
		case []any:
			return int64(len(v)), nil
		case map[string]any:
			return int64(len(v)), nil
		}
		return nil, fmt.Errorf("len takes a string, array or object, got %T", args[0])
	})
	e.Register("empty", func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("empty takes one argument, got %d", len(args))
		}
		switch v := args[0].(type) {
		case nil:
			return true, nil
		case string:
			return v == "", nil
		case []any:
			return len(v) == 0, nil
		case map[string]any:
			return len(v) == 0, nil
		}
		return false, nil
	})
	e.Register("exists", func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("exists takes one argument, got %d", len(args))
		}
		return args[0] != nil, nil
	})
	return e
}

// Register adds a custom function.
func (e *ExprEvaluator) Register(name string, fn EvalFunc) { e.funcs[name] = fn }

// Eval parses and evaluates the expression against the environment.
func (e *ExprEvaluator) Eval(expr string, env *Env) (any, error) {
	toks, err := scan(expr)
	if err != nil {
		return nil, types.WrapError(types.EXPRESSION_INVALID, "scanning expression "+strconv.Quote(expr), err)
	}
	p := &evalParser{toks: toks, env: env, funcs: e.funcs}
	result, err := p.or()
	if err != nil {
		if types.CodeOf(err) == types.VARIABLE_RESOLUTION_FAILED {
			return nil, err
		}
		return nil, types.WrapError(types.EXPRESSION_INVALID, "evaluating expression "+strconv.Quote(expr), err)
	}
	if p.peek().kind != tokEOF {
		return nil, types.NewErrorf(types.EXPRESSION_INVALID, "trailing input in expression %q", expr)
	}
	return result, nil
}

// EvalBool evaluates the expression and reduces the result to its
// truthiness: nil, false, zero numbers, empty strings and empty
// containers are false, everything else is true.
func (e *ExprEvaluator) EvalBool(expr string, env *Env) (bool, error) {
	result, err := e.Eval(expr, env)
	if err != nil {
		return false, err
	}
	return truthy(result), nil
}

// Interpolate replaces every {{ expr }} region of the template with the
// stringified result of evaluating expr.
func (e *ExprEvaluator) Interpolate(tmpl string, env *Env) (string, error) {
	var b strings.Builder
	rest := tmpl
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.Index(rest[open:], "}}")
		if end < 0 {
			return "", types.NewErrorf(types.EXPRESSION_INVALID, "unterminated {{ in template %q", tmpl)
		}
		b.WriteString(rest[:open])
		inner := strings.TrimSpace(rest[open+2 : open+end])
		result, err := e.Eval(inner, env)
		if err != nil {
			return "", err
		}
		b.WriteString(stringify(result))
		rest = rest[open+end+2:]
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case int:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return true
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}

// --- lexer ---

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokNumber
	tokString
	tokDot
	tokComma
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokOp  // == != < <= > >=
	tokAnd // &&
	tokOr  // ||
	tokNot // !
)

type tok struct {
	kind tokKind
	text string
}

func scan(expr string) ([]tok, error) {
	var toks []tok
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '.':
			toks = append(toks, tok{tokDot, "."})
			i++
		case c == ',':
			toks = append(toks, tok{tokComma, ","})
			i++
		case c == '(':
			toks = append(toks, tok{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, tok{tokRParen, ")"})
			i++
		case c == '[':
			toks = append(toks, tok{tokLBracket, "["})
			i++
		case c == ']':
			toks = append(toks, tok{tokRBracket, "]"})
			i++
		case strings.HasPrefix(expr[i:], "&&"):
			toks = append(toks, tok{tokAnd, "&&"})
			i += 2
		case strings.HasPrefix(expr[i:], "||"):
			toks = append(toks, tok{tokOr, "||"})
			i += 2
		case strings.HasPrefix(expr[i:], "=="), strings.HasPrefix(expr[i:], "!="),
			strings.HasPrefix(expr[i:], "<="), strings.HasPrefix(expr[i:], ">="):
			toks = append(toks, tok{tokOp, expr[i : i+2]})
			i += 2
		case c == '<' || c == '>':
			toks = append(toks, tok{tokOp, string(c)})
			i++
		case c == '!':
			toks = append(toks, tok{tokNot, "!"})
			i++
		case c == '"' || c == '\'':
			quote := c
			j := i + 1
			var sb strings.Builder
			for j < len(expr) && expr[j] != quote {
				if expr[j] == '\\' && j+1 < len(expr) {
					sb.WriteByte(expr[j+1])
					j += 2
					continue
				}
				sb.WriteByte(expr[j])
				j++
			}
			if j >= len(expr) {
				return nil, fmt.Errorf("unterminated string literal at offset %d", i)
			}
			toks = append(toks, tok{tokString, sb.String()})
			i = j + 1
		case c >= '0' && c <= '9':
			j := i
			for j < len(expr) && (expr[j] >= '0' && expr[j] <= '9' || expr[j] == '.') {
				j++
			}
			toks = append(toks, tok{tokNumber, expr[i:j]})
			i = j
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
			j := i
			for j < len(expr) && (expr[j] == '_' || expr[j] == '-' ||
				expr[j] >= 'a' && expr[j] <= 'z' ||
				expr[j] >= 'A' && expr[j] <= 'Z' ||
				expr[j] >= '0' && expr[j] <= '9') {
				j++
			}
			toks = append(toks, tok{tokIdent, expr[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	return append(toks, tok{kind: tokEOF}), nil
}

// --- parser / evaluator ---

type evalParser struct {
	toks  []tok
	pos   int
	env   *Env
	funcs map[string]EvalFunc
}

func (p *evalParser) peek() tok {
	if p.pos >= len(p.toks) {
		return tok{kind: tokEOF}
	}
	return p.toks[p.pos]
}

func (p *evalParser) next() tok {
	t := p.peek()
	p.pos++
	return t
}

func (p *evalParser) expect(kind tokKind, what string) error {
	if p.peek().kind != kind {
		return fmt.Errorf("expected %s, got %q", what, p.peek().text)
	}
	p.pos++
	return nil
}

func (p *evalParser) or() (any, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.pos++
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = truthy(left) || truthy(right)
	}
	return left, nil
}

func (p *evalParser) and() (any, error) {
	left, err := p.not()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.pos++
		right, err := p.not()
		if err != nil {
			return nil, err
		}
		left = truthy(left) && truthy(right)
	}
	return left, nil
}

func (p *evalParser) not() (any, error) {
	if p.peek().kind == tokNot {
		p.pos++
		operand, err := p.not()
		if err != nil {
			return nil, err
		}
		return !truthy(operand), nil
	}
	return p.comparison()
}

func (p *evalParser) comparison() (any, error) {
	left, err := p.primary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokOp {
		return left, nil
	}
	op := p.next().text
	right, err := p.primary()
	if err != nil {
		return nil, err
	}
	return compareAny(left, right, op)
}

func (p *evalParser) primary() (any, error) {
	switch t := p.peek(); t.kind {
	case tokNumber:
		p.pos++
		return strconv.ParseFloat(t.text, 64)
	case tokString:
		p.pos++
		return t.text, nil
	case tokLParen:
		p.pos++
		inner, err := p.or()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	case tokIdent:
		switch t.text {
		case "true":
			p.pos++
			return true, nil
		case "false":
			p.pos++
			return false, nil
		case "null", "nil":
			p.pos++
			return nil, nil
		}
		p.pos++
		if p.peek().kind == tokLParen {
			return p.call(t.text)
		}
		return p.path(t.text)
	}
	return nil, fmt.Errorf("unexpected token %q", p.peek().text)
}

func (p *evalParser) call(name string) (any, error) {
	fn, ok := p.funcs[name]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", name)
	}
	p.pos++ // (
	var args []any
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.or()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.pos++
		}
	}
	if err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	return fn(args)
}

// path evaluates a root identifier followed by any mix of .field and
// [index] accessors.
func (p *evalParser) path(root string) (any, error) {
	current, err := p.root(root)
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokDot:
			p.pos++
			if p.peek().kind != tokIdent {
				return nil, fmt.Errorf("expected field name after '.'")
			}
			field := p.next().text
			current = accessField(current, field)
		case tokLBracket:
			p.pos++
			index, err := p.or()
			if err != nil {
				return nil, err
			}
			if err := p.expect(tokRBracket, "]"); err != nil {
				return nil, err
			}
			current, err = accessIndex(current, index)
			if err != nil {
				return nil, err
			}
		default:
			return current, nil
		}
	}
}

// root resolves the leading identifier of a path. "nodes" and
// "variables" are reserved namespaces; "output" is the edge-condition
// shorthand for the source node's output; anything else falls back to a
// workflow variable of that name.
func (p *evalParser) root(name string) (any, error) {
	switch name {
	case "nodes":
		if err := p.expect(tokDot, "'.' after nodes"); err != nil {
			return nil, err
		}
		if p.peek().kind != tokIdent && p.peek().kind != tokNumber {
			return nil, fmt.Errorf("expected node id after 'nodes.'")
		}
		nodeID := p.next().text
		view, ok := p.env.Nodes[nodeID]
		if !ok {
			return nil, types.NewErrorf(types.VARIABLE_RESOLUTION_FAILED, "no recorded result for node %q", nodeID)
		}
		return map[string]any{
			"status": view.Status,
			"output": view.Output,
			"error":  view.Error,
		}, nil
	case "variables":
		if err := p.expect(tokDot, "'.' after variables"); err != nil {
			return nil, err
		}
		if p.peek().kind != tokIdent {
			return nil, fmt.Errorf("expected variable name after 'variables.'")
		}
		name = p.next().text
		return p.variable(name)
	case "output":
		return p.env.Output, nil
	default:
		return p.variable(name)
	}
}

func (p *evalParser) variable(name string) (any, error) {
	v, ok := p.env.Variables[name]
	if !ok {
		return nil, types.NewErrorf(types.VARIABLE_RESOLUTION_FAILED, "unknown variable %q", name)
	}
	return v, nil
}

func accessField(v any, field string) any {
	if m, ok := v.(map[string]any); ok {
		return m[field]
	}
	return nil
}

func accessIndex(v, index any) (any, error) {
	switch container := v.(type) {
	case []any:
		n, ok := toNumber(index)
		if !ok {
			return nil, fmt.Errorf("array index must be a number, got %T", index)
		}
		i := int(n)
		if i < 0 || i >= len(container) {
			return nil, types.NewErrorf(types.VARIABLE_RESOLUTION_FAILED, "index %d out of bounds (len %d)", i, len(container))
		}
		return container[i], nil
	case map[string]any:
		key, ok := index.(string)
		if !ok {
			return nil, fmt.Errorf("object index must be a string, got %T", index)
		}
		return container[key], nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("cannot index %T", v)
}

func compareAny(left, right any, op string) (any, error) {
	switch op {
	case "==":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	}

	if ln, lok := toNumber(left); lok {
		if rn, rok := toNumber(right); rok {
			switch op {
			case "<":
				return ln < rn, nil
			case "<=":
				return ln <= rn, nil
			case ">":
				return ln > rn, nil
			case ">=":
				return ln >= rn, nil
			}
		}
	}
	ls, lok := left.(string)
	rs, rok := right.(string)
	if lok && rok {
		switch op {
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}
	return nil, fmt.Errorf("cannot order %T against %T", left, right)
}

// looseEqual compares with numeric promotion so an int64 from a node
// output equals a float64 literal from the expression text.
func looseEqual(left, right any) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	if ln, ok := toNumber(left); ok {
		if rn, rok := toNumber(right); rok {
			return ln == rn
		}
		return false
	}
	switch l := left.(type) {
	case bool:
		r, ok := right.(bool)
		return ok && l == r
	case string:
		r, ok := right.(string)
		return ok && l == r
	}
	return false
}

func toNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	}
	return 0, false
}
