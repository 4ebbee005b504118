package predicate

import (
	"fmt"
	"sort"
	"strings"
)

// Format selects the FROM-list syntax a Parser accepts.
type Format string

const (
	// FormatCrossProduct accepts `t1 a, t2 b` table lists.
	FormatCrossProduct Format = "cp"
	// FormatJoinOn accepts `t1 a INNER JOIN t2 b ON (cond)` table lists.
	// Separator-delimited tables are still accepted between joins.
	FormatJoinOn Format = "jo"
)

// ParseFormat converts a configuration value into a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCrossProduct, "":
		return FormatCrossProduct, nil
	case FormatJoinOn:
		return FormatJoinOn, nil
	}
	return "", fmt.Errorf("invalid query format %q: must be %q or %q", s, FormatCrossProduct, FormatJoinOn)
}

// Options configures a Parser.
type Options struct {
	Format Format
	// Separator delimits tables in the FROM list. Defaults to ','.
	Separator rune
	// RequireWhere rejects queries without a WHERE clause.
	RequireWhere bool
}

// DefaultOptions returns cross-product format, comma separator and a
// required WHERE clause.
func DefaultOptions() Options {
	return Options{Format: FormatCrossProduct, Separator: ',', RequireWhere: true}
}

// Parser turns count queries into Query values. The zero value is not
// usable; create parsers with NewParser.
type Parser struct {
	opts Options
}

// NewParser creates a Parser. Missing options fall back to DefaultOptions.
func NewParser(opts Options) *Parser {
	if opts.Separator == 0 {
		opts.Separator = ','
	}
	if opts.Format == "" {
		opts.Format = FormatCrossProduct
	}
	return &Parser{opts: opts}
}

// Options returns the parser configuration.
func (p *Parser) Options() Options {
	return p.opts
}

// Parse parses one count query.
func (p *Parser) Parse(query string) (*Query, error) {
	toks, err := Tokenize(query, p.opts.Separator)
	if err != nil {
		return nil, &MalformedQueryError{Query: query, Reason: err.Error()}
	}
	toks = trimStatement(toks)

	i := 0
	if len(toks) > 0 && toks[0].Is("SELECT") {
		for i < len(toks) && !toks[i].Is("FROM") {
			i++
		}
		if i == len(toks) {
			return nil, &MalformedQueryError{Query: query, Reason: "missing FROM keyword"}
		}
	}
	if i < len(toks) && toks[i].Is("FROM") {
		i++
	}

	whereIdx := -1
	for j := i; j < len(toks); j++ {
		if toks[j].Is("WHERE") {
			whereIdx = j
			break
		}
	}

	fromToks := toks[i:]
	var whereToks []Token
	if whereIdx >= 0 {
		fromToks = toks[i:whereIdx]
		whereToks = toks[whereIdx+1:]
		if len(whereToks) == 0 {
			return nil, &MalformedQueryError{Query: query, Reason: "empty WHERE clause"}
		}
	} else if p.opts.RequireWhere {
		return nil, &MalformedQueryError{Query: query, Reason: "missing WHERE clause"}
	}

	tables, onClauses, err := p.parseTables(query, fromToks)
	if err != nil {
		return nil, err
	}

	q := &Query{Tables: tables}
	aliases := q.Aliases()

	clauses := onClauses
	if whereToks != nil {
		whereClauses, err := splitConjunction(query, whereToks)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, whereClauses...)
	}

	seenJoins := make(map[string]bool)
	for _, clause := range clauses {
		pred, err := buildPredicate(query, clause, aliases)
		if err != nil {
			return nil, err
		}
		if pred.IsJoin() {
			key := pred.String()
			if seenJoins[key] {
				continue
			}
			seenJoins[key] = true
			q.Joins = append(q.Joins, pred)
			continue
		}
		q.Selections = append(q.Selections, pred)
	}

	return q, nil
}

// ParseClause parses a single `operand operator operand` clause. Join
// predicates have their qualifiers rewritten through aliases, which may be nil.
func (p *Parser) ParseClause(clause string, aliases map[string]string) (Predicate, error) {
	toks, err := Tokenize(clause, p.opts.Separator)
	if err != nil {
		return Predicate{}, &MalformedPredicateError{Clause: clause, Reason: err.Error()}
	}
	toks = trimStatement(toks)
	return buildPredicate(clause, toks, aliases)
}

// trimStatement drops the EOF marker and trailing semicolons.
func trimStatement(toks []Token) []Token {
	n := len(toks)
	for n > 0 && (toks[n-1].Type == TokenEOF || toks[n-1].Type == TokenSemicolon) {
		n--
	}
	return toks[:n]
}

func (p *Parser) parseTables(query string, toks []Token) ([]TableRef, [][]Token, error) {
	if len(toks) == 0 {
		return nil, nil, &MalformedQueryError{Query: query, Reason: "empty table list"}
	}

	var (
		tables  []TableRef
		clauses [][]Token
	)
	i := 0
	readTable := func() error {
		start := i
		for i < len(toks) && toks[i].Type != TokenSeparator && !toks[i].Is("INNER") && !toks[i].Is("JOIN") && !toks[i].Is("ON") {
			i++
		}
		ref, err := tableRef(query, toks[start:i])
		if err != nil {
			return err
		}
		tables = append(tables, ref)
		return nil
	}

	if err := readTable(); err != nil {
		return nil, nil, err
	}
	for i < len(toks) {
		tok := toks[i]
		switch {
		case tok.Type == TokenSeparator:
			i++
			if err := readTable(); err != nil {
				return nil, nil, err
			}
		case tok.Is("INNER") || tok.Is("JOIN"):
			if p.opts.Format != FormatJoinOn {
				return nil, nil, &MalformedQueryError{Query: query, Reason: fmt.Sprintf("JOIN syntax requires query format %q", FormatJoinOn)}
			}
			if tok.Is("INNER") {
				i++
				if i >= len(toks) || !toks[i].Is("JOIN") {
					return nil, nil, &MalformedQueryError{Query: query, Reason: "expected JOIN after INNER"}
				}
			}
			i++
			if err := readTable(); err != nil {
				return nil, nil, err
			}
			if i >= len(toks) || !toks[i].Is("ON") {
				return nil, nil, &MalformedQueryError{Query: query, Reason: "expected ON after joined table"}
			}
			i++
			cond, next, err := joinCondition(query, toks, i)
			if err != nil {
				return nil, nil, err
			}
			i = next
			split, err := splitConjunction(query, cond)
			if err != nil {
				return nil, nil, err
			}
			clauses = append(clauses, split...)
		default:
			return nil, nil, &MalformedQueryError{Query: query, Reason: fmt.Sprintf("unexpected %s %q in table list", tok.Type, tok.Value)}
		}
	}

	seen := make(map[string]bool, len(tables))
	for _, t := range tables {
		q := t.Qualifier()
		if seen[q] {
			return nil, nil, &MalformedQueryError{Query: query, Reason: fmt.Sprintf("duplicate table alias %q", q)}
		}
		seen[q] = true
	}

	sort.SliceStable(tables, func(a, b int) bool {
		if tables[a].Name != tables[b].Name {
			return tables[a].Name < tables[b].Name
		}
		return tables[a].Alias < tables[b].Alias
	})
	return tables, clauses, nil
}

// joinCondition returns the tokens of an ON condition starting at i, and the
// index just past it. Parenthesized conditions run to the matching paren;
// bare ones run to the next separator or JOIN.
func joinCondition(query string, toks []Token, i int) ([]Token, int, error) {
	if i >= len(toks) {
		return nil, i, &MalformedQueryError{Query: query, Reason: "empty ON condition"}
	}
	if toks[i].Type != TokenLParen {
		start := i
		for i < len(toks) && toks[i].Type != TokenSeparator && !toks[i].Is("INNER") && !toks[i].Is("JOIN") {
			i++
		}
		if start == i {
			return nil, i, &MalformedQueryError{Query: query, Reason: "empty ON condition"}
		}
		return toks[start:i], i, nil
	}

	depth := 0
	start := i + 1
	for ; i < len(toks); i++ {
		switch toks[i].Type {
		case TokenLParen:
			depth++
		case TokenRParen:
			depth--
			if depth == 0 {
				if start == i {
					return nil, i, &MalformedQueryError{Query: query, Reason: "empty ON condition"}
				}
				return toks[start:i], i + 1, nil
			}
		}
	}
	return nil, i, &MalformedQueryError{Query: query, Reason: "unbalanced parentheses in ON condition"}
}

func tableRef(query string, toks []Token) (TableRef, error) {
	for _, t := range toks {
		if t.Type != TokenIdent && !t.Is("AS") {
			return TableRef{}, &MalformedQueryError{Query: query, Reason: fmt.Sprintf("unexpected %s %q in table list", t.Type, t.Value)}
		}
	}
	if len(toks) == 3 && toks[1].Is("AS") {
		toks = []Token{toks[0], toks[2]}
	}
	switch len(toks) {
	case 1:
		if toks[0].Type == TokenIdent {
			return TableRef{Name: toks[0].Value, Alias: toks[0].Value}, nil
		}
	case 2:
		if toks[0].Type == TokenIdent && toks[1].Type == TokenIdent {
			return TableRef{Name: toks[0].Value, Alias: toks[1].Value}, nil
		}
	case 0:
		return TableRef{}, &MalformedQueryError{Query: query, Reason: "empty table entry"}
	}
	return TableRef{}, &MalformedQueryError{Query: query, Reason: fmt.Sprintf("cannot read table entry %q", spanText(query, toks))}
}

// splitConjunction splits tokens on AND. OR and parentheses are rejected.
func splitConjunction(query string, toks []Token) ([][]Token, error) {
	var (
		out   [][]Token
		start = 0
	)
	for i, t := range toks {
		switch {
		case t.Is("OR"):
			return nil, &MalformedPredicateError{Clause: spanText(query, toks), Reason: "OR is not supported"}
		case t.Type == TokenLParen || t.Type == TokenRParen:
			return nil, &MalformedPredicateError{Clause: spanText(query, toks), Reason: "nested expressions are not supported"}
		case t.Is("AND"):
			if i == start {
				return nil, &MalformedPredicateError{Clause: spanText(query, toks), Reason: "empty clause around AND"}
			}
			out = append(out, toks[start:i])
			start = i + 1
		}
	}
	if start >= len(toks) {
		return nil, &MalformedPredicateError{Clause: spanText(query, toks), Reason: "empty clause around AND"}
	}
	return append(out, toks[start:]), nil
}

// buildPredicate assembles `operand operator operand` into a Predicate.
func buildPredicate(query string, toks []Token, aliases map[string]string) (Predicate, error) {
	clause := spanText(query, toks)
	fail := func(reason string) (Predicate, error) {
		return Predicate{}, &MalformedPredicateError{Clause: clause, Reason: reason}
	}

	opIdx := -1
	for i, t := range toks {
		if t.Type == TokenOperator || t.Is("IS") {
			opIdx = i
			break
		}
	}
	if opIdx < 0 {
		return fail("no comparison operator")
	}

	op := Operator(toks[opIdx].Value)
	rhsStart := opIdx + 1
	if toks[opIdx].Is("IS") {
		op = OpIs
		if rhsStart < len(toks) && toks[rhsStart].Is("NOT") {
			op = OpNe
			rhsStart++
		}
	}
	if !op.Valid() {
		return fail(fmt.Sprintf("unsupported operator %q", op))
	}
	if opIdx != 1 || len(toks)-rhsStart != 1 {
		return fail("expected attribute, operator and value")
	}

	left, right := toks[0], toks[rhsStart]
	switch {
	case left.Type == TokenIdent && right.Type == TokenIdent:
		return Predicate{
			Attribute:      rewriteQualifier(left.Value, aliases),
			Operator:       op,
			RightAttribute: rewriteQualifier(right.Value, aliases),
			Kind:           KindJoin,
		}, nil
	case left.Type == TokenIdent:
		lit, ok, err := literal(right)
		if err != nil {
			return fail(err.Error())
		}
		if !ok {
			return fail(fmt.Sprintf("unexpected %s %q on right-hand side", right.Type, right.Value))
		}
		return Predicate{Attribute: left.Value, Operator: op, Value: lit, Kind: KindSelection}, nil
	case right.Type == TokenIdent:
		lit, ok, err := literal(left)
		if err != nil {
			return fail(err.Error())
		}
		if !ok || op == OpIs {
			return fail(fmt.Sprintf("unexpected %s %q on left-hand side", left.Type, left.Value))
		}
		return Predicate{Attribute: right.Value, Operator: op.Mirror(), Value: lit, Kind: KindSelection}, nil
	}
	return fail("clause references no attribute")
}

func literal(t Token) (Literal, bool, error) {
	switch {
	case t.Type == TokenNumber:
		lit, err := NumberLiteral(t.Value)
		if err != nil {
			return Literal{}, false, fmt.Errorf("invalid number %q", t.Value)
		}
		return lit, true, nil
	case t.Type == TokenString:
		return StringLiteral(t.Value), true, nil
	case t.Is("NULL"):
		return NullLiteral(), true, nil
	}
	return Literal{}, false, nil
}

// spanText returns the source text covered by toks.
func spanText(src string, toks []Token) string {
	if len(toks) == 0 {
		return ""
	}
	start, end := toks[0].Pos, toks[len(toks)-1].End
	if start < 0 || end > len(src) || start > end {
		return ""
	}
	return strings.TrimSpace(src[start:end])
}
