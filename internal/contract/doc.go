// Package contract checks a resolved catalog before it is published.
//
// Violations are structural defects that block publication: duplicate
// identifiers, entities whose parent is missing or of the wrong kind, and
// tiers without exactly one default model. Warnings come from CEL rules
// evaluated per entity and never block.
package contract
