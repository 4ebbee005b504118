package schema

import (
	"fmt"
	"strings"
)

// nullSentinel is what NULLs of non-integer columns are coalesced to when a
// join is materialized. It is part of every categorical encoding built from
// a column that holds NULLs.
const nullSentinel = "-1"

// quoteIdent quotes an SQL identifier, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// projection is one column of a materialized relation.
type projection struct {
	alias       string
	column      string
	name        string
	categorical bool
}

// joinCondition is an equality between two alias-qualified columns.
type joinCondition struct {
	left, right string
	op          string
}

func qualified(attr string) string {
	i := strings.LastIndexByte(attr, '.')
	if i < 0 {
		return quoteIdent(attr)
	}
	return quoteIdent(attr[:i]) + "." + quoteIdent(attr[i+1:])
}

// materializeSQL renders the statement that stores the unfiltered join.
// The statement is idempotent by relation name.
func materializeSQL(relation string, from []fromItem, joins []joinCondition, cols []projection) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(quoteIdent(relation))
	b.WriteString(" AS SELECT ")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		src := quoteIdent(c.alias) + "." + quoteIdent(c.column)
		if c.categorical {
			src = fmt.Sprintf("COALESCE(CAST(%s AS TEXT), '%s')", src, nullSentinel)
		}
		b.WriteString(src)
		b.WriteString(" AS ")
		b.WriteString(quoteIdent(c.name))
	}
	b.WriteString(" FROM ")
	for i, f := range from {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(f.table))
		b.WriteString(" AS ")
		b.WriteString(quoteIdent(f.alias))
	}
	for i, j := range joins {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString(qualified(j.left))
		b.WriteString(" " + j.op + " ")
		b.WriteString(qualified(j.right))
	}
	return b.String()
}

type fromItem struct {
	table, alias string
}

func columnTypesSQL() string {
	return "SELECT name, type FROM pragma_table_info(?) ORDER BY cid"
}

func countSQL(relation string) string {
	return "SELECT COUNT(*) FROM " + quoteIdent(relation)
}

func rangeSQL(relation, column string) string {
	c := quoteIdent(column)
	return fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s", c, c, quoteIdent(relation))
}

// distinctSQL lists the distinct values of a column with their counts.
// Ordering is bytewise so the result is deterministic before it is sorted
// again in Go.
func distinctSQL(relation, column string) string {
	c := quoteIdent(column)
	return fmt.Sprintf("SELECT %s, COUNT(*) FROM %s WHERE %s IS NOT NULL GROUP BY %s ORDER BY %s COLLATE BINARY",
		c, quoteIdent(relation), c, c, c)
}

func dropSQL(relation string) string {
	return "DROP TABLE IF EXISTS " + quoteIdent(relation)
}
