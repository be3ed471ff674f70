// Package pipeline runs a full reconciliation pass and publishes the
// resulting catalog.
//
// A run ensures the sources exist, rebuilds the identity directory, derives
// the hierarchy, writes structural entities and claims, resolves every
// entity, validates the result and, only if validation passes, publishes a
// new immutable snapshot. The previously published snapshot stays current
// until the new one is committed.
package pipeline
