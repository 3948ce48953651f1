package engine

import (
	"strings"

	"github.com/ezextender/backend/internal/retrieval"
)

// Cue tables are data, not control flow: extend the lists, not the scan.
var (
	denyCues = []string{
		"not sufficient",
		"not valid",
		"deny",
		"insufficient",
		"not acceptable",
	}

	allowCues = []string{
		"bereavement",
		"death",
		"immediate family",
		"hospital",
		"serious injury",
		"broken wrist",
	}
)

// Override is the fast-path verdict produced when high-similarity policy
// evidence carries an unambiguous lexical marker.
type Override struct {
	Recommend  string
	Confidence float64
}

// strongCue scans policy hits only. If exactly one of {strong deny, strong
// allow} fires, voting is short-circuited; if both or neither fire the
// aggregate scoring decides. Ambiguous high-similarity evidence must not
// force a decision.
func strongCue(policyHits []retrieval.Hit, threshold float64) *Override {
	strongDeny := false
	strongAllow := false

	for _, hit := range policyHits {
		if hit.Similarity < threshold {
			continue
		}

		label := strings.ToLower(hit.Metadata["label"])
		text := strings.ToLower(hit.Document)

		if label == "deny" && containsAny(text, denyCues) {
			strongDeny = true
		}
		if label == "allow" && containsAny(text, allowCues) {
			strongAllow = true
		}
	}

	confidence := threshold
	if confidence < 0.65 {
		confidence = 0.65
	}

	if strongDeny && !strongAllow {
		return &Override{Recommend: "deny", Confidence: confidence}
	}
	if strongAllow && !strongDeny {
		return &Override{Recommend: "approve", Confidence: confidence}
	}
	return nil
}

func containsAny(text string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(text, cue) {
			return true
		}
	}
	return false
}
