package evaluation

import (
	"context"
	"errors"
	"testing"

	"github.com/ezextender/backend/internal/engine"
	"github.com/ezextender/backend/internal/rules"
	"github.com/ezextender/backend/internal/storage/models"
)

type fakeDecider struct {
	verdicts map[string]*engine.DecisionPayload
	err      error
}

func (f *fakeDecider) Decide(ctx context.Context, req engine.DecideRequest) (*engine.DecisionPayload, error) {
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.verdicts[req.ReasonText]; ok {
		return p, nil
	}
	return &engine.DecisionPayload{Decision: "needs_review", Via: "policy_rag_low_conf"}, nil
}

type fakeCaseSource struct {
	cases []models.PrecedentCase
	err   error
}

func (f *fakeCaseSource) ListCases(ctx context.Context, limit int) ([]models.PrecedentCase, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.cases) {
		return f.cases[:limit], nil
	}
	return f.cases, nil
}

func verdict(recommend string, confidence float64) *engine.DecisionPayload {
	return &engine.DecisionPayload{
		Decision:   "recommendation",
		Via:        "policy_rag",
		Recommend:  recommend,
		Confidence: confidence,
	}
}

func testClock(t *testing.T) rules.Clock {
	t.Helper()
	clock, err := rules.FrozenClock("2026-09-01T00:00:00Z")
	if err != nil {
		t.Fatalf("failed to freeze clock: %v", err)
	}
	return clock
}

func TestReplayCountsAgreement(t *testing.T) {
	decider := &fakeDecider{verdicts: map[string]*engine.DecisionPayload{
		"grandfather passed away": verdict("approve", 0.9),
		"cold for two days":       verdict("approve", 0.7),
		"hospitalized for a week": verdict("approve", 0.8),
	}}
	source := &fakeCaseSource{cases: []models.PrecedentCase{
		{ID: "1", RawText: "grandfather passed away", Outcome: "allow"},
		{ID: "2", RawText: "cold for two days", Outcome: "deny"},
		{ID: "3", RawText: "hospitalized for a week", Outcome: "allow"},
		{ID: "4", RawText: "something unusual", Outcome: "deny"},
	}}

	e := NewEvaluator(decider, source, testClock(t))
	report, err := e.Replay(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.TotalCases != 4 {
		t.Fatalf("expected 4 cases, got %d", report.TotalCases)
	}
	if report.Agreed != 2 || report.Disagreed != 1 || report.NeedsReview != 1 {
		t.Fatalf("expected 2 agreed, 1 disagreed, 1 needs_review, got %+v", report)
	}

	want := 2.0 / 3.0
	if diff := report.AgreementRate - want; diff > 0.001 || diff < -0.001 {
		t.Fatalf("expected agreement rate near %v, got %v", want, report.AgreementRate)
	}
}

func TestReplayCountsErrors(t *testing.T) {
	decider := &fakeDecider{err: errors.New("engine down")}
	source := &fakeCaseSource{cases: []models.PrecedentCase{
		{ID: "1", RawText: "a", Outcome: "allow"},
		{ID: "2", RawText: "b", Outcome: "deny"},
	}}

	e := NewEvaluator(decider, source, testClock(t))
	report, err := e.Replay(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Errors != 2 || report.Agreed != 0 {
		t.Fatalf("expected all cases to error, got %+v", report)
	}
	if report.AgreementRate != 0 {
		t.Fatalf("expected zero agreement rate, got %v", report.AgreementRate)
	}
}

func TestReplaySourceFailure(t *testing.T) {
	source := &fakeCaseSource{err: errors.New("db down")}
	e := NewEvaluator(&fakeDecider{}, source, testClock(t))

	if _, err := e.Replay(context.Background(), 10); err == nil {
		t.Fatalf("expected error when case source fails")
	}
}

func TestReplayAppliesLimit(t *testing.T) {
	source := &fakeCaseSource{cases: []models.PrecedentCase{
		{ID: "1", RawText: "a", Outcome: "allow"},
		{ID: "2", RawText: "b", Outcome: "allow"},
		{ID: "3", RawText: "c", Outcome: "allow"},
	}}

	e := NewEvaluator(&fakeDecider{}, source, testClock(t))
	report, err := e.Replay(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.TotalCases != 2 {
		t.Fatalf("expected limit of 2 applied, got %d", report.TotalCases)
	}
}
