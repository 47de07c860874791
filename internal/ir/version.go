package ir

// Version constants for plan identity.
const (
	// IRVersion is the target IR schema version. Stored with every logged
	// plan so that a schema change never reuses stale entries.
	IRVersion = "1"

	// TranslatorVersion is the querylift translator version.
	TranslatorVersion = "0.1.0"
)
