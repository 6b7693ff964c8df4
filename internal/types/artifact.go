package types

import "time"

type (
	// Outcome booleans for the deterministic checks run against one project
	// in one tick.
	Checks struct {
		RequiredFilesOk bool `json:"requiredFilesOk"`
		HackathonJSONOk bool `json:"hackathonJsonOk"`
		ReadmeOk        bool `json:"readmeOk"`
		DemoOk          bool `json:"demoOk"`
		SetupAttempted  bool `json:"setupAttempted"`
		SetupOk         bool `json:"setupOk"`
	}

	// Structured error strings for checks that failed in an expected way.
	// nil means the check did not error.
	CheckErrors struct {
		HackathonJSONErrors *string `json:"hackathonJsonErrors"`
		DemoErr             *string `json:"demoErr"`
	}

	// Advisory signals derived from the README. Not pass/fail gates.
	ReadmeFindings struct {
		Size          int  `json:"size"`
		HasDemoLink   bool `json:"hasDemoLink"`
		HasRunSection bool `json:"hasRunSection"`
	}

	TimingMS struct {
		Total int64 `json:"total"`
	}

	// EvaluationArtifact is the immutable record of everything one tick
	// observed about one project. Persisted verbatim as JSON.
	EvaluationArtifact struct {
		TickAt          time.Time       `json:"tickAt"`
		RepoURL         string          `json:"repoUrl"`
		CommitSHA       string          `json:"commitSha"`
		Checks          Checks          `json:"checks"`
		Errors          CheckErrors     `json:"errors"`
		ReadmeFindings  *ReadmeFindings `json:"readmeFindings"`
		FileTreeSummary []string        `json:"fileTreeSummary"`
		Languages       map[string]int  `json:"languages,omitempty"`
		TimingMS        TimingMS        `json:"timingMs"`
	}

	// A single deterministic point deduction.
	Penalty struct {
		Key    string `json:"key"`
		Points int    `json:"points"`
		Reason string `json:"reason"`
	}

	// ScoreBreakdown carries the base score and the (unimplemented) judge
	// contribution. Judges stays null until judge scoring exists.
	ScoreBreakdown struct {
		Base   int    `json:"base"`
		Judges any    `json:"judges"`
		Note   string `json:"note"`
	}
)
