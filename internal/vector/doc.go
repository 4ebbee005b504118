// Package vector encodes parsed queries as fixed-width feature vectors.
//
// A vector has MaxPredicates slots of four fields each. Slot i belongs to the
// i-th attribute of the query-set, so two queries filtering the same
// attribute write it to the same place. A slot holds the operator's one-hot
// code and the normalized literal:
//
//	=, IS  [0,0,1]      <   [1,0,0]      <=  [1,0,1]
//	>      [0,1,0]      >=  [0,1,1]      !=  [1,1,0]
//
// Normalized values lie in (0, 1]; all-zero slots mean "no predicate".
// Optional trailing fields carry ln(max_card) and the estimated and true
// cardinalities normalized as ln(c)/ln(max_card).
package vector
