package milvus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/ezextender/backend/internal/retrieval"
	"github.com/ezextender/backend/pkg/logger"
)

// Embedder supplies vectors for stored and queried text. The index is
// agnostic to the model behind it as long as cosine distance applies.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Client stores embedded text plus JSON metadata per collection and answers
// nearest-neighbor queries. It implements retrieval.Index.
type Client struct {
	client    client.Client
	embedder  Embedder
	vectorDim int
}

func NewClient(ctx context.Context, endpoint string, embedder Embedder, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized", zap.String("endpoint", endpoint))

	return &Client{
		client:    c,
		embedder:  embedder,
		vectorDim: vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

// EnsureCollection creates and loads the collection if it does not exist.
func (m *Client) EnsureCollection(ctx context.Context, collection string) error {
	has, err := m.client.HasCollection(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", collection))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: collection,
		Description:    "Embedded evidence text with JSON metadata",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "4096",
				},
			},
			{
				Name:     "metadata",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "4096",
				},
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.IP, 1024)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	err = m.client.CreateIndex(ctx, collection, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, collection, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", collection))

	return nil
}

func (m *Client) Upsert(ctx context.Context, collection string, records []retrieval.Record) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Text
	}

	embeddings, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed records: %w", err)
	}
	if len(embeddings) != len(records) {
		return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(records))
	}

	ids := make([]string, len(records))
	metas := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metas[i] = string(meta)
	}

	_, err = m.client.Insert(
		ctx,
		collection,
		"",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("metadata", metas),
	)
	if err != nil {
		return fmt.Errorf("failed to insert records: %w", err)
	}

	err = m.client.Flush(ctx, collection, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Records inserted into vector index",
		zap.String("collection", collection),
		zap.Int("count", len(records)),
	)

	return nil
}

func (m *Client) Query(ctx context.Context, collection, queryText string, k int) ([]retrieval.Match, error) {
	embedding, err := m.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		collection,
		[]string{},
		"",
		[]string{"id", "text", "metadata"},
		[]entity.Vector{entity.FloatVector(embedding)},
		"embedding",
		entity.IP,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	matches := make([]retrieval.Match, 0)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			idCol := sr.Fields.GetColumn("id")
			textCol := sr.Fields.GetColumn("text")
			metaCol := sr.Fields.GetColumn("metadata")

			id, _ := idCol.Get(i)
			text, _ := textCol.Get(i)
			rawMeta, _ := metaCol.Get(i)

			meta := map[string]string{}
			if s, ok := rawMeta.(string); ok && s != "" {
				json.Unmarshal([]byte(s), &meta)
			}

			// IP over normalized embeddings is cosine similarity;
			// distance = 1 - score keeps the [0,2] contract.
			matches = append(matches, retrieval.Match{
				ID:       id.(string),
				Document: text.(string),
				Metadata: meta,
				Distance: 1.0 - float64(sr.Scores[i]),
			})
		}
	}

	logger.Debug("Vector search completed",
		zap.String("collection", collection),
		zap.Int("topK", k),
		zap.Int("results", len(matches)),
	)

	return matches, nil
}

func (m *Client) Count(ctx context.Context, collection string) (int64, error) {
	stats, err := m.client.GetCollectionStatistics(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection statistics: %w", err)
	}

	var count int64
	fmt.Sscanf(stats["row_count"], "%d", &count)
	return count, nil
}

// Clear drops and recreates the collection. Re-ingestion replaces the
// policy corpus wholesale, never incrementally.
func (m *Client) Clear(ctx context.Context, collection string) error {
	has, err := m.client.HasCollection(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		if err := m.client.DropCollection(ctx, collection); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
	}

	return m.EnsureCollection(ctx, collection)
}
