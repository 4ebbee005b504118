// Package store provides the SQLite-backed database connector.
//
// The statistics registry talks to the database only through three calls:
//   - Execute: statements without results (CREATE TABLE ... AS, DROP TABLE)
//   - FetchOne: single-row aggregations (COUNT, MIN/MAX)
//   - FetchAll: multi-row reads (column metadata, distinct values with counts)
//
// Every statement is logged at debug level before it runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One open connection: materialized relations and the aggregations
//     over them always share a connection
package store
