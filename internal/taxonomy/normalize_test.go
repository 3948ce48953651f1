package taxonomy

import "testing"

func TestNormalizeReason(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"My grandfather passed away", "my family member death bereavement"},
		{"FLU symptoms", "common cold minor illness symptoms"},
		{"Attending a funeral tomorrow", "attending a death bereavement tomorrow"},
		{"no cues here", "no cues here"},
		{"", ""},
	}

	for _, c := range cases {
		if got := NormalizeReason(c.in); got != c.want {
			t.Fatalf("NormalizeReason(%q): expected %q, got %q", c.in, c.want, got)
		}
	}
}

func TestNormalizeReasonStable(t *testing.T) {
	in := "Grandfather's funeral, caught the flu"
	first := NormalizeReason(in)
	if got := NormalizeReason(in); got != first {
		t.Fatalf("expected stable normalization, got %q then %q", first, got)
	}
}
