package log

// Canonical field names for structured logging.
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"

	FieldPeer      = "peer"
	FieldElapsedMS = "elapsed_ms"
	FieldOK        = "ok"

	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
)
