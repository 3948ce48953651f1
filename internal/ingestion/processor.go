package ingestion

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	prose "github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/ezextender/backend/internal/metrics"
	"github.com/ezextender/backend/internal/retrieval"
	"github.com/ezextender/backend/pkg/logger"
)

const (
	LabelAllow   = "allow"
	LabelDeny    = "deny"
	LabelUnknown = "unknown"
)

// markerPattern anchors explicit clause markers at line starts.
var markerPattern = regexp.MustCompile(`(?im)^(ALLOW|DENY)\s*:`)

// Labels from explicit markers are confident; these keyword fallbacks are a
// confidence-degrading heuristic for marker-less chunks, not ground truth.
var (
	allowHintKeywords = []string{"bereavement", "death", "hospital", "broken wrist"}
	denyHintKeywords  = []string{"flu", "common cold", "vacation", "travel"}
)

// Clause is one atomic unit of policy text headed for the vector index.
// Immutable once ingested; the corpus is replaced wholesale on re-ingest.
type Clause struct {
	Source string
	Text   string
	Label  string
}

type Result struct {
	Documents int `json:"documents"`
	Skipped   int `json:"skipped"`
	Clauses   int `json:"clauses"`
}

// Processor rebuilds the policy collection from a batch of documents.
type Processor struct {
	store        DocumentStore
	index        retrieval.Index
	collection   string
	chunkSize    int
	chunkOverlap int
}

func NewProcessor(store DocumentStore, index retrieval.Index, collection string, chunkSize, chunkOverlap int) *Processor {
	if chunkSize <= 0 {
		chunkSize = 1400
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 120
	}
	return &Processor{
		store:        store,
		index:        index,
		collection:   collection,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// IngestBatch clears the policy collection and re-ingests every document.
// A document that fails conversion is skipped with a warning; the batch
// never aborts for one bad file.
func (p *Processor) IngestBatch(ctx context.Context, docs []Document) (*Result, error) {
	if err := p.index.Clear(ctx, p.collection); err != nil {
		return nil, fmt.Errorf("failed to clear policy collection: %w", err)
	}

	result := &Result{}
	var records []retrieval.Record

	for _, doc := range docs {
		text, err := p.store.Ingest(ctx, doc)
		if err != nil {
			logger.Warn("Skipping document",
				zap.String("source", doc.SourceID),
				zap.Error(err),
			)
			metrics.DocumentsSkipped.Inc()
			result.Skipped++
			continue
		}

		clauses := ExtractClauses(text, doc.SourceID)
		if len(clauses) == 0 {
			for _, chunk := range p.chunkText(text) {
				clauses = append(clauses, Clause{
					Source: doc.SourceID,
					Text:   chunk,
					Label:  InferLabel(chunk),
				})
			}
		}

		for _, clause := range clauses {
			records = append(records, retrieval.Record{
				ID:   uuid.New().String(),
				Text: clause.Text,
				Metadata: map[string]string{
					"source": clause.Source,
					"label":  clause.Label,
				},
			})
		}

		result.Documents++
		result.Clauses += len(clauses)
	}

	if len(records) > 0 {
		if err := p.index.Upsert(ctx, p.collection, records); err != nil {
			return nil, fmt.Errorf("failed to upsert policy clauses: %w", err)
		}
		metrics.PolicyClausesIngested.Add(float64(len(records)))
	}

	logger.Info("Policy corpus ingested",
		zap.Int("documents", result.Documents),
		zap.Int("skipped", result.Skipped),
		zap.Int("clauses", result.Clauses),
	)

	return result, nil
}

// ExtractClauses pulls atomic ALLOW:/DENY: rules out of the text. Each
// clause runs from its marker to the next marker (or end of text), and its
// label is set confidently from the marker itself.
func ExtractClauses(text, source string) []Clause {
	text = cleanText(text)

	locs := markerPattern.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	clauses := make([]Clause, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}

		label := strings.ToLower(text[loc[2]:loc[3]])
		body := strings.TrimSpace(text[loc[1]:end])
		if body == "" {
			continue
		}

		clauses = append(clauses, Clause{
			Source: source,
			Text:   fmt.Sprintf("%s: %s", strings.ToUpper(label), body),
			Label:  label,
		})
	}

	return clauses
}

// InferLabel guesses a label for a marker-less chunk. Unknown is a valid
// answer and contributes no score at decision time.
func InferLabel(chunk string) string {
	s := strings.ToLower(chunk)

	if strings.Contains(s, "allow:") {
		return LabelAllow
	}
	if strings.Contains(s, "deny:") {
		return LabelDeny
	}
	for _, kw := range allowHintKeywords {
		if strings.Contains(s, kw) {
			return LabelAllow
		}
	}
	for _, kw := range denyHintKeywords {
		if strings.Contains(s, kw) {
			return LabelDeny
		}
	}
	return LabelUnknown
}

// chunkText packs sentences into overlapping chunks so ALLOW/DENY wording
// stays with its context. Falls back to fixed-size slicing when sentence
// segmentation fails.
func (p *Processor) chunkText(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithExtraction(false),
		prose.WithTagging(false),
	)
	if err != nil {
		logger.Warn("Sentence segmentation failed, falling back to fixed chunks", zap.Error(err))
		return p.sliceText(text)
	}

	sentences := doc.Sentences()
	if len(sentences) == 0 {
		return p.sliceText(text)
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		piece := strings.TrimSpace(current.String())
		if piece != "" {
			chunks = append(chunks, piece)
		}
		current.Reset()
	}

	for _, sentence := range sentences {
		s := strings.TrimSpace(sentence.Text)
		if s == "" {
			continue
		}

		if current.Len() > 0 && current.Len()+len(s)+1 > p.chunkSize {
			tail := overlapTail(current.String(), p.chunkOverlap)
			flush()
			if tail != "" {
				current.WriteString(tail)
				current.WriteString(" ")
			}
		}

		current.WriteString(s)
		current.WriteString(" ")
	}
	flush()

	return chunks
}

func (p *Processor) sliceText(text string) []string {
	var chunks []string
	step := p.chunkSize - p.chunkOverlap
	if step < 1 {
		step = 1
	}

	for i := 0; i < len(text); i += step {
		end := i + p.chunkSize
		if end > len(text) {
			end = len(text)
		}
		piece := strings.TrimSpace(text[i:end])
		if piece != "" {
			chunks = append(chunks, piece)
		}
		if end == len(text) {
			break
		}
	}

	return chunks
}

// overlapTail returns the last whole words of the chunk, up to roughly
// maxLen characters, to carry context into the next chunk.
func overlapTail(chunk string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}

	chunk = strings.TrimSpace(chunk)
	if len(chunk) <= maxLen {
		return chunk
	}

	tail := chunk[len(chunk)-maxLen:]
	if idx := strings.IndexByte(tail, ' '); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}
