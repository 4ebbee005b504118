package predicate

import (
	"strconv"
	"strings"
)

// Operator is a comparison operator from the closed set the pipeline accepts.
type Operator string

const (
	OpEq Operator = "="
	OpNe Operator = "!="
	OpLt Operator = "<"
	OpGt Operator = ">"
	OpLe Operator = "<="
	OpGe Operator = ">="
	OpIs Operator = "IS"
)

// Operators lists the closed operator set in longest-match-first order.
var Operators = []Operator{OpLe, OpNe, OpGe, OpEq, OpLt, OpGt, OpIs}

// Valid reports whether o is one of the supported operators.
func (o Operator) Valid() bool {
	for _, op := range Operators {
		if op == o {
			return true
		}
	}
	return false
}

// Mirror returns the operator that keeps the comparison true when both
// operands are swapped (a < b  <=>  b > a).
func (o Operator) Mirror() Operator {
	switch o {
	case OpLt:
		return OpGt
	case OpGt:
		return OpLt
	case OpLe:
		return OpGe
	case OpGe:
		return OpLe
	default:
		return o
	}
}

// Kind classifies a predicate.
type Kind int

const (
	// KindSelection compares an attribute against a literal.
	KindSelection Kind = iota
	// KindJoin compares two attributes.
	KindJoin
)

func (k Kind) String() string {
	if k == KindJoin {
		return "join"
	}
	return "selection"
}

// LiteralKind tells how a literal was written in the query.
type LiteralKind int

const (
	LiteralNumber LiteralKind = iota
	LiteralString
	LiteralNull
)

// Literal is the right-hand side of a selection predicate.
type Literal struct {
	Kind LiteralKind
	// Text is the literal as written, without surrounding quotes.
	Text string
	// Number is set for LiteralNumber.
	Number float64
}

// NumberLiteral builds a numeric literal from its text form.
func NumberLiteral(text string) (Literal, error) {
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Literal{}, err
	}
	return Literal{Kind: LiteralNumber, Text: text, Number: n}, nil
}

// StringLiteral builds a quoted-string literal.
func StringLiteral(text string) Literal {
	return Literal{Kind: LiteralString, Text: text}
}

// NullLiteral is the NULL literal.
func NullLiteral() Literal {
	return Literal{Kind: LiteralNull, Text: "NULL"}
}

// String renders the literal back into query syntax.
func (l Literal) String() string {
	switch l.Kind {
	case LiteralString:
		return "'" + strings.ReplaceAll(l.Text, "'", "''") + "'"
	case LiteralNull:
		return "NULL"
	default:
		return l.Text
	}
}

// Predicate is a single comparison extracted from a WHERE clause.
type Predicate struct {
	// Attribute is the left-hand attribute, qualified (alias.column) or bare.
	Attribute string
	Operator  Operator
	// Value is the literal of a selection predicate.
	Value Literal
	// RightAttribute is the right-hand attribute of a join predicate.
	RightAttribute string
	Kind           Kind
}

// IsJoin reports whether p compares two attributes.
func (p Predicate) IsJoin() bool {
	return p.Kind == KindJoin
}

// Column returns the attribute with any qualifier stripped.
func (p Predicate) Column() string {
	return StripQualifier(p.Attribute)
}

func (p Predicate) String() string {
	if p.IsJoin() {
		return p.Attribute + " " + string(p.Operator) + " " + p.RightAttribute
	}
	return p.Attribute + " " + string(p.Operator) + " " + p.Value.String()
}

// TableRef is one entry of a FROM list.
type TableRef struct {
	Name  string `yaml:"name"`
	Alias string `yaml:"alias"`
}

// Qualifier returns the name attributes of this table are prefixed with.
func (t TableRef) Qualifier() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

func (t TableRef) String() string {
	if t.Alias == "" || t.Alias == t.Name {
		return t.Name
	}
	return t.Name + " " + t.Alias
}

// Query is the parsed form of one count query.
type Query struct {
	// Tables is sorted by table name, then alias.
	Tables     []TableRef
	Joins      []Predicate
	Selections []Predicate
}

// Key is the canonical join-shape key of the query: the sorted table list
// joined by commas.
func (q *Query) Key() string {
	return TablesKey(q.Tables)
}

// TablesKey renders a sorted table list as a canonical key.
func TablesKey(tables []TableRef) string {
	parts := make([]string, len(tables))
	for i, t := range tables {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}

// Aliases maps every alias and table name of the query to its table name.
func (q *Query) Aliases() map[string]string {
	return AliasMap(q.Tables)
}

// AliasMap maps every alias and table name to the table name.
func AliasMap(tables []TableRef) map[string]string {
	m := make(map[string]string, len(tables)*2)
	for _, t := range tables {
		m[t.Name] = t.Name
		if t.Alias != "" {
			m[t.Alias] = t.Name
		}
	}
	return m
}

// Resolve rewrites an alias-qualified attribute to table.column. Bare or
// unknown qualifiers are returned unchanged.
func (q *Query) Resolve(attr string) string {
	return rewriteQualifier(attr, q.Aliases())
}

// SelectionAttributes returns the resolved attributes of all selection
// predicates in query order.
func (q *Query) SelectionAttributes() []string {
	out := make([]string, len(q.Selections))
	for i, p := range q.Selections {
		out[i] = q.Resolve(p.Attribute)
	}
	return out
}

// StripQualifier drops everything up to the last dot.
func StripQualifier(attr string) string {
	if i := strings.LastIndexByte(attr, '.'); i >= 0 {
		return attr[i+1:]
	}
	return attr
}

// SplitQualifier splits alias.column. The qualifier is empty for bare names.
func SplitQualifier(attr string) (qualifier, column string) {
	if i := strings.LastIndexByte(attr, '.'); i >= 0 {
		return attr[:i], attr[i+1:]
	}
	return "", attr
}

func rewriteQualifier(attr string, aliases map[string]string) string {
	q, col := SplitQualifier(attr)
	if q == "" {
		return attr
	}
	if table, ok := aliases[q]; ok {
		return table + "." + col
	}
	return attr
}
