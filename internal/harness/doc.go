// Package harness runs end-to-end catalog scenarios against the real
// reconciliation pipeline.
//
// Each scenario runs in a fresh in-memory database with a deterministic
// clock and sequential run and snapshot IDs, so the same scenario always
// produces byte-identical golden output.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario checks"
//	steps:
//	  - run:
//	      rows: [rows.json]
//	      flat: [flat.yaml]
//	      overrides: [curated.yaml]
//	  - set_priority: { source: ipdb, priority: 300 }
//	  - republish: true
//	assertions:
//	  - type: field
//	    entity: model:G1-M1
//	    field: year
//	    value: 1997
//	  - type: published
//	    step: 2
//	    expect: false
//
// Input paths are relative to the scenario file.
//
// # Assertion Types
//
//   - field: a resolved field of the final catalog equals value, or is
//     missing when absent is set
//   - entity: an entity exists (or not, with absent), optionally checking
//     its parent and default flag
//   - entity_count: the final catalog has count entities of kind
//   - published: whether step published a new snapshot
//   - violation: some step (or the given one) reported a violation code,
//     optionally for one entity
//   - unresolved: some step (or the given one) reported raw as unresolved
//
// # Golden Files
//
// The golden output of a scenario lists each step's outcome followed by
// the hierarchy derived by the last run step. Regenerate with:
//
//	go test ./internal/harness -update
package harness
