package engine

import (
	"github.com/ezextender/backend/internal/precedent"
	"github.com/ezextender/backend/internal/rules"
)

// Evidence is the single best policy clause shown to the reviewer. Policy
// evidence stays auditable per-clause; precedent is summarized in Stats.
type Evidence struct {
	Source     string  `json:"source"`
	Label      string  `json:"label,omitempty"`
	Similarity float64 `json:"similarity"`
	Snippet    string  `json:"snippet"`
}

// DecisionPayload is the engine's per-request output. Ephemeral.
type DecisionPayload struct {
	Decision     string             `json:"decision"`
	Via          string             `json:"via"`
	Recommend    string             `json:"recommend,omitempty"`
	Confidence   float64            `json:"confidence"`
	Explanation  string             `json:"explanation"`
	Evidence     []Evidence         `json:"evidence"`
	Precedent    *precedent.Stats   `json:"precedent,omitempty"`
	DeadlineMeta rules.DeadlineMeta `json:"deadline_meta"`
}

// ReviewResult confirms what RecordReview stored.
type ReviewResult struct {
	OK      bool   `json:"ok"`
	CaseID  string `json:"case_id"`
	Tag     string `json:"tag"`
	Outcome string `json:"outcome"`
}
