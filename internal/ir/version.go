package ir

// Version constants for the record wire format and the recorder.
const (
	// WireVersion is the record wire format version.
	WireVersion = "1"

	// RecorderVersion is the TimeCat recorder version, reported in HEAD records.
	RecorderVersion = "0.1.0"
)
