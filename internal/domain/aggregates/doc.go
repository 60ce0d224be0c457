// Package aggregates defines the domain-facing write boundaries of the
// content-ordering and learner-progress engine.
//
// Contracts here stay free of persistence and transport concerns; each one
// marks a semantic boundary whose invariants must hold atomically after every
// completed mutation.
package aggregates
