package types

// Status is the lifecycle of the current operation.
type Status string

const (
	StatusNone       Status = "none"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// OperationState tracks the current extract/summarize/save operation.
// Summary is only set when Completed, Error only when Error.
type OperationState struct {
	Status        Status `json:"status"`
	Summary       string `json:"summary,omitempty"`
	URL           string `json:"url,omitempty"`
	Title         string `json:"title,omitempty"`
	Error         string `json:"error,omitempty"`
	IsExtractOnly bool   `json:"isExtractOnly,omitempty"`
}

// PersistedSummary is the durable copy of a completed operation that lets a
// reopened popup restore its preview.
type PersistedSummary struct {
	Summary       string `json:"summary"`
	URL           string `json:"url,omitempty"`
	Title         string `json:"title,omitempty"`
	IsExtractOnly bool   `json:"isExtractOnly,omitempty"`
	Timestamp     int64  `json:"timestamp"` // unix millis
}

// Attachment describes a file already uploaded to the note service.
type Attachment struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// QuickNoteDraft is the popup's unsent quick note.
type QuickNoteDraft struct {
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Scenario selects which include-URL flag and tag apply to a save.
type Scenario string

const (
	ScenarioSummary   Scenario = "summary"
	ScenarioExtract   Scenario = "extract"
	ScenarioImage     Scenario = "image"
	ScenarioQuickNote Scenario = "quickNote"
	ScenarioSelection Scenario = "selection"
)

// Valid reports whether s is a known scenario.
func (s Scenario) Valid() bool {
	switch s {
	case ScenarioSummary, ScenarioExtract, ScenarioImage, ScenarioQuickNote, ScenarioSelection:
		return true
	}
	return false
}

// ScenarioFor returns the scenario used when saving the result of a content
// request.
func ScenarioFor(extractOnly bool) Scenario {
	if extractOnly {
		return ScenarioExtract
	}
	return ScenarioSummary
}
