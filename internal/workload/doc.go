// Package workload turns a query workload into statistics requests.
//
// A workload is either a .sql file of count statements separated by a
// semicolon and a newline, or a .csv/.tsv file with one query per line in
// the form
//
//	tables#joins#selections[#cardinality]
//
// where every block is split on the inner separator and selections are
// flattened attribute,operator,value triples.
//
// Queries are grouped by their canonical table key. Every group becomes one
// schema.Request holding the sorted join predicates and the sorted
// selection attributes seen across the group, in table.column form. Groups
// are numbered in order of first appearance; the numbered set is saved as a
// solution file that the collect step reads back.
package workload
