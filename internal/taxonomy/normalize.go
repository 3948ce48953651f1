package taxonomy

import "strings"

// synonymFolds are applied in order on the already-rewritten string; later
// entries see the effect of earlier ones. The folded form is only ever used
// to build retrieval queries; raw text is what gets embedded and stored.
var synonymFolds = []struct {
	from string
	to   string
}{
	{"passed away", "death bereavement"},
	{"funeral", "death bereavement"},
	{"grandfather", "family member"},
	{"flu", "common cold minor illness"},
}

// NormalizeReason lower-cases the text and folds synonyms to improve
// similarity matching. Pure and stable: same input, same output.
func NormalizeReason(text string) string {
	s := strings.ToLower(text)
	for _, fold := range synonymFolds {
		s = strings.ReplaceAll(s, fold.from, fold.to)
	}
	return s
}
