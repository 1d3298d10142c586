// Package ir defines the serializable descriptor vocabulary shared by the
// compiler and the executor: value descriptors (expressions), condition
// descriptors (predicates), and action descriptors (statements).
//
// Descriptors are created once at compile time, treated as immutable, and
// consumed repeatedly at execution time. Every descriptor round-trips
// through a kind-discriminated JSON encoding, since the trees cross a
// network boundary from the authoring system to execution environments.
package ir
