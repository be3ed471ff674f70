// Package resolve materializes catalog entities from the provenance ledger.
//
// For every claim key the active claim with the highest source priority
// wins; equal priorities fall back to the most recent claim. Winners are
// coerced into the declared column type for their entity kind. Values that
// fail coercion leave the column empty and produce a Warning. Fields without
// a declared column are kept verbatim in the entity's Extra side-map.
//
// Resolution never writes claims. ResolveAll is a total recompute over the
// whole ledger and replaces the staged resolved rows in one transaction.
package resolve
