package taxonomy

import "strings"

// Tag is the coarse category used to bucket precedent statistics.
type Tag string

const (
	TagBereavement   Tag = "bereavement"
	TagSeriousInjury Tag = "serious_injury"
	TagMinorIllness  Tag = "minor_illness"
	TagTravel        Tag = "travel"
	TagOther         Tag = "other"
)

// tagRule maps substring cues to a tag. Rules are evaluated in order and
// the first match wins, so more severe categories come first.
type tagRule struct {
	tag      Tag
	keywords []string
}

var tagRules = []tagRule{
	{TagBereavement, []string{"bereavement", "passed away", "funeral", "death"}},
	{TagSeriousInjury, []string{"hospital", "hospitalized", "surgery", "broken wrist", "injury"}},
	{TagMinorIllness, []string{"flu", "cold", "common cold"}},
	{TagTravel, []string{"vacation", "travel", "trip", "holiday"}},
}

// TagReason classifies free-text reasons into exactly one tag.
// Identical input always yields the identical tag.
func TagReason(raw string) Tag {
	s := strings.ToLower(raw)
	for _, rule := range tagRules {
		for _, kw := range rule.keywords {
			if strings.Contains(s, kw) {
				return rule.tag
			}
		}
	}
	return TagOther
}

// AllTags lists every tag in priority order, fallback last.
func AllTags() []Tag {
	return []Tag{TagBereavement, TagSeriousInjury, TagMinorIllness, TagTravel, TagOther}
}

// IsValidTag reports whether s is one of the known tags.
func IsValidTag(s string) bool {
	for _, tag := range AllTags() {
		if string(tag) == s {
			return true
		}
	}
	return false
}
