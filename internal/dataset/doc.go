// Package dataset turns query batches into training matrices.
//
// A batch is a semicolon-delimited file with a header row:
//
//	querySetID;query;encodings;max_card;min_max_step;estimated_cardinality;true_cardinality
//
// encodings and min_max_step are YAML flow values (Python literal reprs
// parse as YAML flow). When present they are compared against the meta file
// and any difference aborts the run: vectors built against drifted
// statistics would not be index-compatible.
//
// The output matrix is written twice: <name>.parquet with one row per
// query (query_set_id, features) and key/value metadata, and <name>.csv
// with a header of query_set_id,f0..fN.
package dataset
