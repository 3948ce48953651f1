package models

import "time"

// PrecedentCase is one adjudicated request in the append-only log. Cases
// are never mutated or deleted.
type PrecedentCase struct {
	ID             string
	RawText        string
	NormalizedText string
	Tag            string
	Outcome        string
	Reviewer       string
	DaysRequested  int
	DeadlineISO    string
	CreatedAt      time.Time
}

// TagCounter is the derived per-tag aggregate. It must always equal the sum
// of increments over the precedent log.
type TagCounter struct {
	Tag   string
	Allow int
	Deny  int
}

// DecisionRecord is the audit row written for every Decide call.
type DecisionRecord struct {
	ID         string
	ReasonText string
	Tag        string
	Recommend  string
	Via        string
	Confidence float64
	LatencyMS  int
	CreatedAt  time.Time
}
