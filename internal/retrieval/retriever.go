package retrieval

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ezextender/backend/internal/metrics"
	"github.com/ezextender/backend/pkg/logger"
)

const DefaultTopK = 5

// Hit is one ranked piece of evidence from a similarity query. Hits are
// produced fresh per lookup and never persisted.
type Hit struct {
	Document   string            `json:"document"`
	Metadata   map[string]string `json:"metadata"`
	Similarity float64           `json:"similarity"`
	Source     string            `json:"source"`
}

// Match is a raw nearest-neighbor result from the vector index, carrying a
// cosine-style distance in [0,2].
type Match struct {
	ID       string
	Document string
	Metadata map[string]string
	Distance float64
}

// Record is what gets upserted into a collection.
type Record struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Index is the vector-index contract. Implementations serialize individual
// reads/writes; queries are safe to run in parallel.
type Index interface {
	Upsert(ctx context.Context, collection string, records []Record) error
	Query(ctx context.Context, collection, queryText string, k int) ([]Match, error)
	Count(ctx context.Context, collection string) (int64, error)
	Clear(ctx context.Context, collection string) error
}

// Retriever turns index matches into ranked, similarity-scored hits.
type Retriever struct {
	index   Index
	timeout time.Duration
}

func New(index Index, timeout time.Duration) *Retriever {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Retriever{index: index, timeout: timeout}
}

// Search returns the top-k hits ranked by descending similarity. An empty
// or unavailable collection yields an empty result, never an error: callers
// treat missing evidence as "no signal".
func (r *Retriever) Search(ctx context.Context, collection, queryText string, k int) []Hit {
	if k <= 0 {
		k = DefaultTopK
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	matches, err := r.index.Query(ctx, collection, queryText, k)
	if err != nil {
		logger.Warn("Evidence retrieval unavailable, treating as no signal",
			zap.String("collection", collection),
			zap.Error(err),
		)
		metrics.RetrievalFailures.WithLabelValues(collection).Inc()
		return nil
	}

	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		meta := m.Metadata
		if meta == nil {
			meta = map[string]string{}
		}

		source := meta["source"]
		if source == "" {
			source = collection
		}

		hits = append(hits, Hit{
			Document:   m.Document,
			Metadata:   meta,
			Similarity: DistanceToSimilarity(m.Distance),
			Source:     source,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	return hits
}

// DistanceToSimilarity converts a cosine-style distance into a similarity
// clamped to [0,1].
func DistanceToSimilarity(distance float64) float64 {
	sim := 1.0 - distance
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
