// Package hierarchy derives the four-level catalog structure
// (Title -> Production -> Tier -> Model) from raw machine rows.
//
// Derivation is a pure function of its input rows, curated pins and the
// identity directory: the same input always yields the same Hierarchy,
// sorted the same way. The deriver never drops a row. Rows it cannot place
// are reported as a DerivationError, and organization strings it cannot
// match are reported as Unresolved alongside the brands it had to create.
package hierarchy
