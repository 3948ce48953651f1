package taxonomy

import "testing"

func TestTagReason(t *testing.T) {
	cases := []struct {
		reason string
		want   Tag
	}{
		{"My grandfather passed away", TagBereavement},
		{"Death in the family, need time for funeral", TagBereavement},
		{"Cold/flu for two days", TagMinorIllness},
		{"Common cold, minor symptoms", TagMinorIllness},
		{"Hospitalized for surgery, recovery expected 1 week", TagSeriousInjury},
		{"Going on vacation next week", TagTravel},
		{"My laptop broke", TagOther},
		{"", TagOther},
	}

	for _, c := range cases {
		if got := TagReason(c.reason); got != c.want {
			t.Fatalf("TagReason(%q): expected %s, got %s", c.reason, c.want, got)
		}
	}
}

func TestTagReasonPriority(t *testing.T) {
	// Bereavement outranks illness when both cues appear.
	if got := TagReason("Caught the flu after my grandmother's funeral"); got != TagBereavement {
		t.Fatalf("expected bereavement to win over minor_illness, got %s", got)
	}

	// Injury outranks travel.
	if got := TagReason("Broke my wrist on a trip"); got != TagSeriousInjury {
		t.Fatalf("expected serious_injury to win over travel, got %s", got)
	}
}

func TestTagReasonDeterministic(t *testing.T) {
	reason := "hospitalized after a travel accident, death in family"
	first := TagReason(reason)
	for i := 0; i < 10; i++ {
		if got := TagReason(reason); got != first {
			t.Fatalf("expected stable tag, got %s then %s", first, got)
		}
	}
}

func TestTagReasonCaseInsensitive(t *testing.T) {
	if got := TagReason("MY GRANDFATHER PASSED AWAY"); got != TagBereavement {
		t.Fatalf("expected bereavement regardless of case, got %s", got)
	}
}

func TestIsValidTag(t *testing.T) {
	for _, tag := range AllTags() {
		if !IsValidTag(string(tag)) {
			t.Fatalf("expected %s to be valid", tag)
		}
	}
	if IsValidTag("weather") {
		t.Fatalf("expected unknown tag to be invalid")
	}
}
