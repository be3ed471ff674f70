package ir

// Version constants for the catalog snapshot format.
const (
	// SnapshotVersion is the resolved catalog snapshot schema version.
	SnapshotVersion = "1"

	// EngineVersion is the pinbase engine version.
	EngineVersion = "0.1.0"
)
