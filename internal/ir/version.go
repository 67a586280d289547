package ir

// Version constants for the description format and engine.
const (
	// FormatVersion is the NetworkSpec schema version.
	FormatVersion = "1"

	// EngineVersion is the synthnet engine version.
	EngineVersion = "0.1.0"
)
