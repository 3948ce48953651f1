package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeIndex struct {
	matches []Match
	err     error
	queries int
}

func (f *fakeIndex) Upsert(ctx context.Context, collection string, records []Record) error {
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, collection, queryText string, k int) ([]Match, error) {
	f.queries++
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

func (f *fakeIndex) Count(ctx context.Context, collection string) (int64, error) {
	return int64(len(f.matches)), nil
}

func (f *fakeIndex) Clear(ctx context.Context, collection string) error {
	return nil
}

func TestDistanceToSimilarity(t *testing.T) {
	cases := []struct {
		distance float64
		want     float64
	}{
		{0.0, 1.0},
		{0.25, 0.75},
		{1.0, 0.0},
		{2.0, 0.0},
		{-0.5, 1.0},
	}

	for _, c := range cases {
		if got := DistanceToSimilarity(c.distance); got != c.want {
			t.Fatalf("DistanceToSimilarity(%v): expected %v, got %v", c.distance, c.want, got)
		}
	}
}

func TestSearchRanksByDescendingSimilarity(t *testing.T) {
	index := &fakeIndex{matches: []Match{
		{ID: "a", Document: "weaker", Distance: 0.6},
		{ID: "b", Document: "strongest", Distance: 0.1},
		{ID: "c", Document: "middle", Distance: 0.3},
	}}

	r := New(index, time.Second)
	hits := r.Search(context.Background(), "PolicyDoc", "query", 5)

	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].Document != "strongest" || hits[1].Document != "middle" || hits[2].Document != "weaker" {
		t.Fatalf("expected descending similarity order, got %q, %q, %q",
			hits[0].Document, hits[1].Document, hits[2].Document)
	}
	if hits[0].Similarity != 0.9 {
		t.Fatalf("expected top similarity 0.9, got %v", hits[0].Similarity)
	}
}

func TestSearchSimilarityClamped(t *testing.T) {
	index := &fakeIndex{matches: []Match{
		{ID: "a", Document: "far", Distance: 1.8},
	}}

	r := New(index, time.Second)
	hits := r.Search(context.Background(), "PolicyDoc", "query", 5)

	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].Similarity != 0 {
		t.Fatalf("expected similarity clamped to 0, got %v", hits[0].Similarity)
	}
}

func TestSearchDegradesToEmptyOnError(t *testing.T) {
	index := &fakeIndex{err: errors.New("index down")}

	r := New(index, time.Second)
	hits := r.Search(context.Background(), "PolicyDoc", "query", 5)

	if len(hits) != 0 {
		t.Fatalf("expected no hits when index is unavailable, got %d", len(hits))
	}
}

func TestSearchFallsBackToCollectionSource(t *testing.T) {
	index := &fakeIndex{matches: []Match{
		{ID: "a", Document: "doc", Distance: 0.2, Metadata: map[string]string{"source": "handbook.md"}},
		{ID: "b", Document: "doc2", Distance: 0.4},
	}}

	r := New(index, time.Second)
	hits := r.Search(context.Background(), "PolicyDoc", "query", 5)

	if hits[0].Source != "handbook.md" {
		t.Fatalf("expected metadata source, got %q", hits[0].Source)
	}
	if hits[1].Source != "PolicyDoc" {
		t.Fatalf("expected collection fallback source, got %q", hits[1].Source)
	}
}

func TestSearchDefaultsTopK(t *testing.T) {
	index := &fakeIndex{}
	r := New(index, time.Second)

	r.Search(context.Background(), "PolicyDoc", "query", 0)
	if index.queries != 1 {
		t.Fatalf("expected one query, got %d", index.queries)
	}
}
