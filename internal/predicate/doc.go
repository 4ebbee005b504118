// Package predicate parses count queries into a table list and classified
// predicates.
//
// The accepted grammar is deliberately small:
//
//	[SELECT COUNT(*)] FROM <table-list> WHERE <clause> {AND <clause>}
//
// where <table-list> is either a cross product (`title t, cast_info ci`) or,
// in join-on format, `title t INNER JOIN cast_info ci ON (t.id = ci.movie_id)`.
// Each <clause> is `operand operator operand`. OR, parentheses in the WHERE
// clause and subqueries are rejected with a MalformedPredicateError.
//
// Parsing happens in two steps. Tokenize turns the input into identifier,
// number, string, operator, keyword and punctuation tokens; the Parser then
// assembles tokens into predicates. Operator recognition is done by the
// lexer, so `<=` can never be split into `<` followed by `=`.
//
// Classification:
//   - Selection predicate: the right-hand side is a literal (number, quoted
//     string or NULL), e.g. `t.kind_id <= 2`.
//   - Join predicate: the right-hand side is an attribute reference, e.g.
//     `t.id = ci.movie_id`. Alias prefixes on both sides are rewritten to the
//     full table name.
//
// Table lists are sorted by table name. The sorted list is the canonical key
// used to group queries of the same join shape (Query.Key).
//
// A Parser holds only its Options and is safe for concurrent use.
package predicate
