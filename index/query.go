package index

import "strings"

// Query is a parsed search query.
type Query struct {
	text string
	root node
}

// String returns the normalized form of the query, with every operator and
// field made explicit.
func (q *Query) String() string {
	return q.root.String()
}

// Text returns the query as written.
func (q *Query) Text() string {
	return q.text
}

type node interface {
	String() string
}

// termNode matches a single word. An empty field means every field.
type termNode struct {
	field string
	text  string
}

func (n *termNode) String() string { return fieldPrefix(n.field) + n.text }

// phraseNode matches words at consecutive positions.
type phraseNode struct {
	field string
	text  string
}

func (n *phraseNode) String() string { return fieldPrefix(n.field) + `"` + n.text + `"` }

type andNode struct {
	children []node
}

func (n *andNode) String() string { return joinNodes(n.children, " AND ") }

type orNode struct {
	children []node
}

func (n *orNode) String() string { return joinNodes(n.children, " OR ") }

// notNode excludes its child's matches from the enclosing group.
type notNode struct {
	child node
	pos   int
}

func (n *notNode) String() string { return "NOT " + n.child.String() }

func fieldPrefix(field string) string {
	if field == "" {
		return ""
	}
	return field + ":"
}

func joinNodes(nodes []node, sep string) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokPhrase
	tokField
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokNot
	tokAndNot
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

var keywords = map[string]tokenKind{
	"AND":    tokAnd,
	"OR":     tokOr,
	"NOT":    tokNot,
	"ANDNOT": tokAndNot,
}

// lex splits a query into tokens. Operators are recognized in uppercase only.
// A "name:" prefix is a field only for indexed fields; any other prefix stays
// part of the word.
func lex(query string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(query) {
		c := query[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '"':
			end := strings.IndexByte(query[i+1:], '"')
			if end < 0 {
				return nil, &QueryError{Query: query, Offset: i, Msg: "unterminated quote"}
			}
			tokens = append(tokens, token{kind: tokPhrase, text: query[i+1 : i+1+end], pos: i})
			i += end + 2
		default:
			start := i
			for i < len(query) && !strings.ContainsRune(" \t\n\r()\"", rune(query[i])) {
				if query[i] == ':' && isField(query[start:i]) {
					break
				}
				i++
			}
			if i < len(query) && query[i] == ':' && i > start {
				tokens = append(tokens, token{kind: tokField, text: query[start:i], pos: start})
				i++
				continue
			}
			word := query[start:i]
			kind, ok := keywords[word]
			if !ok {
				kind = tokWord
			}
			tokens = append(tokens, token{kind: kind, text: word, pos: start})
		}
	}
	return append(tokens, token{kind: tokEOF, pos: len(query)}), nil
}

// Parse parses a query string.
//
// Grammar, loosest binding first:
//
//	or      = and { ["OR"] and }
//	and     = unary { ("AND" | "ANDNOT") unary }
//	unary   = "NOT" unary | primary
//	primary = [field ":"] ( word | '"' phrase '"' | "(" or ")" )
//
// Adjacent clauses are OR-ed. Negated clauses exclude their matches from
// the group they appear in, so every group needs at least one positive
// clause. Errors are *QueryError values wrapping ErrQuerySyntax.
func Parse(query string) (*Query, error) {
	tokens, err := lex(query)
	if err != nil {
		return nil, err
	}
	p := &parser{query: query, tokens: tokens}

	if p.peek().kind == tokEOF {
		return nil, p.errorAt(0, "empty query")
	}
	root, err := p.parseOr("")
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorAt(tok.pos, "unbalanced parenthesis")
	}
	return &Query{text: query, root: root}, nil
}

type parser struct {
	query  string
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorAt(offset int, msg string) *QueryError {
	return &QueryError{Query: p.query, Offset: offset, Msg: msg}
}

// startsOperand reports whether tok can begin a clause.
func startsOperand(tok token) bool {
	switch tok.kind {
	case tokWord, tokPhrase, tokField, tokLParen, tokNot:
		return true
	}
	return false
}

func (p *parser) parseOr(field string) (node, error) {
	var children []node
	for {
		tok := p.peek()
		if tok.kind == tokEOF || tok.kind == tokRParen {
			break
		}
		if tok.kind == tokOr {
			p.next()
			if len(children) == 0 || !startsOperand(p.peek()) {
				return nil, p.errorAt(tok.pos, "dangling operator OR")
			}
			continue
		}
		if !startsOperand(tok) {
			return nil, p.errorAt(tok.pos, "dangling operator "+tok.text)
		}
		child, err := p.parseAnd(field)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	if len(children) == 0 {
		tok := p.peek()
		if tok.kind == tokRParen {
			return nil, p.errorAt(tok.pos, "unbalanced parenthesis")
		}
		return nil, p.errorAt(tok.pos, "empty query")
	}
	if err := p.checkPositive(children); err != nil {
		return nil, err
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return &orNode{children: children}, nil
}

func (p *parser) parseAnd(field string) (node, error) {
	left, err := p.parseUnary(field)
	if err != nil {
		return nil, err
	}

	var children []node
	for {
		tok := p.peek()
		if tok.kind != tokAnd && tok.kind != tokAndNot {
			break
		}
		p.next()
		if !startsOperand(p.peek()) {
			return nil, p.errorAt(tok.pos, "dangling operator "+tok.text)
		}
		right, err := p.parseUnary(field)
		if err != nil {
			return nil, err
		}
		if children == nil {
			children = []node{left}
		}
		if tok.kind == tokAndNot {
			right = negate(right, tok.pos)
		}
		children = append(children, right)
	}

	if children == nil {
		return left, nil
	}
	if err := p.checkPositive(children); err != nil {
		return nil, err
	}
	return &andNode{children: children}, nil
}

func (p *parser) parseUnary(field string) (node, error) {
	tok := p.peek()
	if tok.kind != tokNot {
		return p.parsePrimary(field)
	}
	p.next()
	if !startsOperand(p.peek()) {
		return nil, p.errorAt(tok.pos, "dangling operator NOT")
	}
	child, err := p.parseUnary(field)
	if err != nil {
		return nil, err
	}
	return negate(child, tok.pos), nil
}

// negate wraps n in a notNode; a double negation cancels out.
func negate(n node, pos int) node {
	if inner, ok := n.(*notNode); ok {
		return inner.child
	}
	return &notNode{child: n, pos: pos}
}

func (p *parser) parsePrimary(field string) (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokField:
		next := p.peek()
		if next.kind != tokWord && next.kind != tokPhrase && next.kind != tokLParen {
			return nil, p.errorAt(tok.pos, "field "+tok.text+" has no operand")
		}
		return p.parsePrimary(tok.text)
	case tokWord:
		return &termNode{field: field, text: tok.text}, nil
	case tokPhrase:
		return &phraseNode{field: field, text: tok.text}, nil
	case tokLParen:
		if p.peek().kind == tokRParen {
			return nil, p.errorAt(tok.pos, "empty group")
		}
		inner, err := p.parseOr(field)
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, p.errorAt(tok.pos, "unbalanced parenthesis")
		}
		p.next()
		return inner, nil
	case tokRParen:
		return nil, p.errorAt(tok.pos, "unbalanced parenthesis")
	}
	return nil, p.errorAt(tok.pos, "dangling operator "+tok.text)
}

// checkPositive rejects groups made only of negated clauses.
func (p *parser) checkPositive(children []node) error {
	for _, c := range children {
		if _, ok := c.(*notNode); !ok {
			return nil
		}
	}
	return p.errorAt(children[0].(*notNode).pos, "negation needs a positive clause")
}
