// Package distance provides vector distance and normalization primitives
// shared by the record store and the IVF index.
//
// All functions assume both arguments have the same length; enforcing
// dimensionality is the caller's responsibility.
package distance
