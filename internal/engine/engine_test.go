package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ezextender/backend/internal/precedent"
	"github.com/ezextender/backend/internal/retrieval"
	"github.com/ezextender/backend/internal/rules"
	"github.com/ezextender/backend/internal/storage/models"
)

type fakeSearcher struct {
	mu      sync.Mutex
	hits    map[string][]retrieval.Hit
	queried []string
}

func (f *fakeSearcher) Search(ctx context.Context, collection, queryText string, k int) []retrieval.Hit {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queried = append(f.queried, collection)
	return f.hits[collection]
}

func (f *fakeSearcher) queriedCollections() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.queried))
	copy(out, f.queried)
	return out
}

type fakeCounterStore struct {
	counters map[string]models.TagCounter
	cases    []*models.PrecedentCase
	failCase bool
}

func (f *fakeCounterStore) RecordCase(ctx context.Context, pc *models.PrecedentCase) error {
	if f.failCase {
		return errors.New("counter store down")
	}
	f.cases = append(f.cases, pc)
	return nil
}

func (f *fakeCounterStore) GetCounter(ctx context.Context, tag string) (models.TagCounter, error) {
	if c, ok := f.counters[tag]; ok {
		return c, nil
	}
	return models.TagCounter{Tag: tag}, nil
}

type fakeVectorIndex struct {
	upserts int
	fail    bool
}

func (f *fakeVectorIndex) Upsert(ctx context.Context, collection string, records []retrieval.Record) error {
	if f.fail {
		return errors.New("vector index down")
	}
	f.upserts += len(records)
	return nil
}

func (f *fakeVectorIndex) Query(ctx context.Context, collection, queryText string, k int) ([]retrieval.Match, error) {
	return nil, nil
}

func (f *fakeVectorIndex) Count(ctx context.Context, collection string) (int64, error) {
	return 0, nil
}

func (f *fakeVectorIndex) Clear(ctx context.Context, collection string) error {
	return nil
}

func testClock(t *testing.T) rules.Clock {
	t.Helper()
	clock, err := rules.FrozenClock("2026-09-01T00:00:00Z")
	if err != nil {
		t.Fatalf("failed to freeze clock: %v", err)
	}
	return clock
}

func newTestEngine(t *testing.T, searcher *fakeSearcher, store *fakeCounterStore, index *fakeVectorIndex) *Engine {
	t.Helper()
	clock := testClock(t)
	recorder := precedent.NewRecorder(index, store, "PrecedentCases", clock)
	return New(searcher, recorder, store, nil, clock, Options{})
}

func TestDecideBeyond48hSkipsRetrieval(t *testing.T) {
	searcher := &fakeSearcher{}
	eng := newTestEngine(t, searcher, &fakeCounterStore{}, &fakeVectorIndex{})

	payload, err := eng.Decide(context.Background(), DecideRequest{
		DeadlineISO: "2026-09-05T00:00:00Z",
		ReasonText:  "My grandfather passed away",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if payload.Decision != "approve" || payload.Via != "rule_beyond_48h" {
		t.Fatalf("expected rule_beyond_48h approve, got %s via %s", payload.Decision, payload.Via)
	}
	if payload.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0, got %v", payload.Confidence)
	}
	if len(searcher.queriedCollections()) != 0 {
		t.Fatalf("expected no retrieval beyond 48h, queried %v", searcher.queriedCollections())
	}
	if !payload.DeadlineMeta.Beyond48h {
		t.Fatalf("expected beyond_48h meta flag")
	}
}

func TestDecideWithin48hQueriesBothCollections(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string][]retrieval.Hit{
		"PolicyDoc": {
			policyHit("allow", "ALLOW: bereavement in the immediate family qualifies", 0.8),
		},
		"PrecedentCases": {
			precedentHit("allow", 0.7),
		},
	}}
	store := &fakeCounterStore{counters: map[string]models.TagCounter{
		"bereavement": {Tag: "bereavement", Allow: 3, Deny: 0},
	}}
	eng := newTestEngine(t, searcher, store, &fakeVectorIndex{})

	payload, err := eng.Decide(context.Background(), DecideRequest{
		DeadlineISO: "2026-09-01T12:00:00Z",
		ReasonText:  "My grandfather passed away",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	queried := searcher.queriedCollections()
	if len(queried) != 2 {
		t.Fatalf("expected both collections queried, got %v", queried)
	}

	if payload.Recommend != "approve" {
		t.Fatalf("expected approve, got %q", payload.Recommend)
	}
	if payload.Via != "policy_rag" {
		t.Fatalf("expected policy_rag, got %s", payload.Via)
	}
	if len(payload.Evidence) != 1 {
		t.Fatalf("expected one evidence item, got %d", len(payload.Evidence))
	}
	if payload.Precedent == nil || payload.Precedent.Allow != 3 {
		t.Fatalf("expected precedent stats with 3 allows, got %+v", payload.Precedent)
	}
}

func TestDecideEmptyEvidenceNeedsReview(t *testing.T) {
	searcher := &fakeSearcher{}
	eng := newTestEngine(t, searcher, &fakeCounterStore{}, &fakeVectorIndex{})

	payload, err := eng.Decide(context.Background(), DecideRequest{
		DeadlineISO: "2026-09-01T12:00:00Z",
		ReasonText:  "something unusual happened",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if payload.Decision != "needs_review" || payload.Via != "policy_rag_low_conf" {
		t.Fatalf("expected needs_review via policy_rag_low_conf, got %s via %s", payload.Decision, payload.Via)
	}
	if payload.Confidence != 0 {
		t.Fatalf("expected zero confidence, got %v", payload.Confidence)
	}
	if len(payload.Evidence) != 0 {
		t.Fatalf("expected empty evidence, got %d items", len(payload.Evidence))
	}
	if payload.Precedent == nil || payload.Precedent.Allow != 0 || payload.Precedent.Deny != 0 {
		t.Fatalf("expected zeroed precedent stats, got %+v", payload.Precedent)
	}
}

func TestDecideStrongCueOverride(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string][]retrieval.Hit{
		"PolicyDoc": {
			policyHit("deny", "DENY: a common cold alone is not sufficient", 0.9),
			policyHit("allow", "ALLOW: serious cases", 0.2),
		},
	}}
	eng := newTestEngine(t, searcher, &fakeCounterStore{}, &fakeVectorIndex{})

	payload, err := eng.Decide(context.Background(), DecideRequest{
		DeadlineISO: "2026-09-01T12:00:00Z",
		ReasonText:  "Cold/flu for two days",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if payload.Recommend != "deny" {
		t.Fatalf("expected deny from strong cue, got %q", payload.Recommend)
	}
	if payload.Decision != "recommendation" {
		t.Fatalf("expected a recommendation, got %s", payload.Decision)
	}
	if payload.Confidence < 0.65 {
		t.Fatalf("expected confidence at least 0.65, got %v", payload.Confidence)
	}
}

func TestDecideInvalidDeadline(t *testing.T) {
	eng := newTestEngine(t, &fakeSearcher{}, &fakeCounterStore{}, &fakeVectorIndex{})

	_, err := eng.Decide(context.Background(), DecideRequest{
		DeadlineISO: "tomorrow",
		ReasonText:  "anything",
	})
	if err == nil {
		t.Fatalf("expected error for bad deadline")
	}

	engErr, ok := AsError(err)
	if !ok || engErr.Kind != KindInvalidDeadlineFormat {
		t.Fatalf("expected invalid_deadline_format, got %v", err)
	}
}

func TestRecordReviewNormalizesOutcome(t *testing.T) {
	store := &fakeCounterStore{}
	index := &fakeVectorIndex{}
	eng := newTestEngine(t, &fakeSearcher{}, store, index)

	result, err := eng.RecordReview(context.Background(), ReviewRequest{
		ReasonText: "My grandfather passed away",
		Outcome:    "Approve",
		Reviewer:   "r1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.OK {
		t.Fatalf("expected ok result")
	}
	if result.Outcome != "allow" {
		t.Fatalf("expected outcome folded to allow, got %s", result.Outcome)
	}
	if result.Tag != "bereavement" {
		t.Fatalf("expected bereavement tag, got %s", result.Tag)
	}
	if index.upserts != 1 {
		t.Fatalf("expected one vector upsert, got %d", index.upserts)
	}
	if len(store.cases) != 1 {
		t.Fatalf("expected one stored case, got %d", len(store.cases))
	}
}

func TestRecordReviewInvalidOutcome(t *testing.T) {
	store := &fakeCounterStore{}
	index := &fakeVectorIndex{}
	eng := newTestEngine(t, &fakeSearcher{}, store, index)

	_, err := eng.RecordReview(context.Background(), ReviewRequest{
		ReasonText: "anything",
		Outcome:    "maybe",
	})
	if err == nil {
		t.Fatalf("expected error for invalid outcome")
	}

	engErr, ok := AsError(err)
	if !ok || engErr.Kind != KindInvalidOutcome {
		t.Fatalf("expected invalid_outcome, got %v", err)
	}
	if index.upserts != 0 || len(store.cases) != 0 {
		t.Fatalf("expected no writes on validation failure")
	}
}

func TestRecordReviewIndexDownFailsHard(t *testing.T) {
	store := &fakeCounterStore{}
	index := &fakeVectorIndex{fail: true}
	eng := newTestEngine(t, &fakeSearcher{}, store, index)

	_, err := eng.RecordReview(context.Background(), ReviewRequest{
		ReasonText: "Cold/flu for two days",
		Outcome:    "deny",
	})
	if err == nil {
		t.Fatalf("expected error when index is unavailable")
	}

	engErr, ok := AsError(err)
	if !ok || engErr.Kind != KindRetrievalUnavailable {
		t.Fatalf("expected retrieval_unavailable, got %v", err)
	}
	if len(store.cases) != 0 {
		t.Fatalf("expected no counter write after failed index write")
	}
}

func TestRecordReviewValidatesDeadlineWhenPresent(t *testing.T) {
	eng := newTestEngine(t, &fakeSearcher{}, &fakeCounterStore{}, &fakeVectorIndex{})

	_, err := eng.RecordReview(context.Background(), ReviewRequest{
		ReasonText:  "anything",
		Outcome:     "allow",
		DeadlineISO: "next tuesday",
	})
	if err == nil {
		t.Fatalf("expected error for malformed optional deadline")
	}

	engErr, ok := AsError(err)
	if !ok || engErr.Kind != KindInvalidDeadlineFormat {
		t.Fatalf("expected invalid_deadline_format, got %v", err)
	}
}
