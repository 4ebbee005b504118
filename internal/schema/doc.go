// Package schema holds query-set layouts and the registry that builds them.
//
// A query-set is the set of queries that join the same tables. All of its
// queries share one vector layout: the selection attributes sorted by name,
// where attribute i owns slot i. Each attribute carries a (min, max, step)
// range and, for columns without integer affinity, a categorical encoding
// that maps the sorted distinct values to their positions.
//
// # Building
//
// Registry.Build materializes the unfiltered join as a named relation
// (CREATE TABLE IF NOT EXISTS, so repeated builds are idempotent), reads its
// row count and then per-attribute statistics:
//
//   - integer columns: MIN and MAX, step 1
//   - other columns: distinct values with counts, NULL coalesced to "-1",
//     sorted bytewise; range (0, n-1), step 1
//
// Any missing table, column or statistic fails the whole build with a
// SchemaLookupError. Builds are memoized per request key and concurrent
// builds of one key run once.
//
// # Persistence
//
// A Catalog is saved as a YAML meta file keyed by query-set id. Loading
// validates the document against an embedded CUE schema before decoding,
// then checks range and ordering invariants.
package schema
