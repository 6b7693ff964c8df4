package types

type ArenaEventType string

const (
	EventScoreUpdated        ArenaEventType = "score_updated"
	EventRequirementsMissing ArenaEventType = "requirements_missing"
	EventSetupFailed         ArenaEventType = "setup_failed"
)

// ArenaEventPayload is the closed set of payload shapes that may be appended
// to the arena feed. Each event type maps to exactly one variant so
// serialization stays exhaustive and reviewable.
type ArenaEventPayload interface {
	EventType() ArenaEventType
}

// CheckSummaryPayload narrates a completed evaluation. Used for both
// score_updated and requirements_missing depending on whether the required
// files were present.
type CheckSummaryPayload struct {
	CommitSHA       string `json:"commitSha"`
	RequiredFilesOk bool   `json:"requiredFilesOk"`
	ManifestOk      bool   `json:"hackathonJsonOk"`
	ReadmeOk        bool   `json:"readmeOk"`
	DemoOk          bool   `json:"demoOk"`
	SetupOk         bool   `json:"setupOk"`
	TotalScore      int    `json:"totalScore"`
}

func (p CheckSummaryPayload) EventType() ArenaEventType {
	if p.RequiredFilesOk {
		return EventScoreUpdated
	}
	return EventRequirementsMissing
}

// PipelineFailedPayload records a pipeline-fatal failure for one project in
// one tick. The raw error message is the only evidence that survives.
type PipelineFailedPayload struct {
	Error string `json:"error"`
}

func (PipelineFailedPayload) EventType() ArenaEventType {
	return EventSetupFailed
}
