package rules

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// DefaultAutoApproveHours is the horizon beyond which requests auto-qualify
// without any evidence lookup.
const DefaultAutoApproveHours = 48.0

var isoZPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)

// Clock supplies "now" so demos and tests can freeze time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns wall-clock UTC.
func SystemClock() Clock { return systemClock{} }

type frozenClock struct {
	at time.Time
}

func (f frozenClock) Now() time.Time { return f.at }

// FrozenClock pins "now" to the given ISO timestamp.
func FrozenClock(iso string) (Clock, error) {
	at, err := ParseDeadline(iso)
	if err != nil {
		return nil, fmt.Errorf("invalid frozen clock value: %w", err)
	}
	return frozenClock{at: at}, nil
}

// ParseDeadline accepts exactly 'YYYY-MM-DDTHH:MM:SSZ', or the same
// timestamp with a '+00:00' suffix. Anything else is rejected.
func ParseDeadline(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, fmt.Errorf("empty deadline string, expected 'YYYY-MM-DDTHH:MM:SSZ'")
	}

	s = strings.ToUpper(strings.TrimSpace(s))
	if strings.HasSuffix(s, "+00:00") {
		s = s[:len(s)-6] + "Z"
	}

	if !isoZPattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("bad ISO timestamp %q, expected 'YYYY-MM-DDTHH:MM:SSZ'", s)
	}

	t, err := time.Parse("2006-01-02T15:04:05Z", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad ISO timestamp %q: %w", s, err)
	}

	return t.UTC(), nil
}

// HoursToDeadline returns the signed hour distance from now to the deadline.
func HoursToDeadline(deadlineISO string, clock Clock) (float64, error) {
	deadline, err := ParseDeadline(deadlineISO)
	if err != nil {
		return 0, err
	}
	return deadline.Sub(clock.Now()).Hours(), nil
}

// AutoApprove reports whether the deadline is far enough out to approve
// without consulting evidence, along with the hours remaining.
func AutoApprove(deadlineISO string, horizon float64, clock Clock) (bool, float64, error) {
	hours, err := HoursToDeadline(deadlineISO, clock)
	if err != nil {
		return false, 0, err
	}
	return hours > horizon, hours, nil
}

// DeadlineMeta is attached to every decision response regardless of which
// path produced it.
type DeadlineMeta struct {
	NowUTC          string  `json:"now_utc"`
	DeadlineUTC     string  `json:"deadline_utc"`
	HoursToDeadline float64 `json:"hours_to_deadline"`
	Within48h       bool    `json:"within_48h"`
	Beyond48h       bool    `json:"beyond_48h"`
}

func Meta(deadlineISO string, horizon float64, clock Clock) (DeadlineMeta, error) {
	deadline, err := ParseDeadline(deadlineISO)
	if err != nil {
		return DeadlineMeta{}, err
	}

	now := clock.Now()
	hours := deadline.Sub(now).Hours()

	return DeadlineMeta{
		NowUTC:          now.Format("2006-01-02T15:04:05Z"),
		DeadlineUTC:     deadline.Format("2006-01-02T15:04:05Z"),
		HoursToDeadline: round1(hours),
		Within48h:       hours >= 0 && hours <= horizon,
		Beyond48h:       hours > horizon,
	}, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
