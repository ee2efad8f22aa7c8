package entities

// Dashboard tabs
const (
	TabICU       = "icu"
	TabEmergency = "emergency"
	TabStaff     = "staff"
	TabLoad      = "load"
	TabBatch     = "batch"
)

// InlineError is a recoverable failure shown next to the form that caused it
type InlineError struct {
	Message       string
	MissingFields []string
}

// RenderRequest carries everything one render pass needs. Requested is false
// until the user runs a prediction; nothing here outlives the response.
type RenderRequest struct {
	RequestID string
	CSRFToken string
	ActiveTab string
	Requested bool

	ClinicalForm ClinicalInput
	LoadForm     LoadInput

	Clinical *ClinicalReport
	Load     *LoadReport
	Batch    *BatchReport
	Error    *InlineError
}
