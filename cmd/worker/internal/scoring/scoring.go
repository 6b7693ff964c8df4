package scoring

import (
	"github.com/agentwars/arena-api/internal/types"
)

// Base score before deductions. Judge-based scoring is an unimplemented
// extension point, so every project starts from zero and can only lose
// points.
const Base = 0

type rule struct {
	key     string
	points  int
	reason  string
	applies func(types.Checks) bool
}

// Fixed rule table. Penalty order in the output follows this table, never
// the insertion order of findings.
var rules = []rule{
	{
		key:    "missing_hackathon_json",
		points: 25,
		reason: "hackathon.json missing or invalid",
		applies: func(c types.Checks) bool {
			return !c.HackathonJSONOk
		},
	},
	{
		key:    "missing_readme",
		points: 10,
		reason: "README.md missing",
		applies: func(c types.Checks) bool {
			return !c.ReadmeOk
		},
	},
	{
		key:    "demo_unreachable",
		points: 15,
		reason: "demo URL unreachable",
		applies: func(c types.Checks) bool {
			return !c.DemoOk
		},
	},
	{
		key:    "setup_failed",
		points: 5,
		reason: "setup commands did not all succeed",
		applies: func(c types.Checks) bool {
			return c.SetupAttempted && !c.SetupOk
		},
	},
}

// Evaluate maps check outcomes to the applicable penalties and the clamped
// total. Deterministic: identical checks always produce the identical list
// and total.
func Evaluate(checks types.Checks) ([]types.Penalty, int) {
	penalties := make([]types.Penalty, 0, len(rules))
	sum := 0
	for _, r := range rules {
		if !r.applies(checks) {
			continue
		}
		penalties = append(penalties, types.Penalty{
			Key:    r.key,
			Points: r.points,
			Reason: r.reason,
		})
		sum += r.points
	}

	total := Base - sum
	if total < 0 {
		total = 0
	}

	return penalties, total
}

// Breakdown carries the score composition alongside the total. Judges stays
// null until judge-based scoring exists.
func Breakdown() types.ScoreBreakdown {
	return types.ScoreBreakdown{
		Base:   Base,
		Judges: nil,
		Note:   "deterministic checks only",
	}
}
