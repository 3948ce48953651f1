package precedent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ezextender/backend/internal/retrieval"
	"github.com/ezextender/backend/internal/rules"
	"github.com/ezextender/backend/internal/storage/models"
	"github.com/ezextender/backend/internal/taxonomy"
	"github.com/ezextender/backend/pkg/logger"
)

var (
	// ErrInvalidOutcome rejects review outcomes outside {allow, deny}
	// after synonym normalization. Nothing is written in that case.
	ErrInvalidOutcome = errors.New("outcome must be 'allow' or 'deny'")

	// ErrIndexUnavailable marks a failed vector write. Write paths surface
	// this rather than silently dropping the case.
	ErrIndexUnavailable = errors.New("precedent index unavailable")
)

// NormalizeOutcome folds reviewer synonyms onto the two canonical outcomes.
func NormalizeOutcome(outcome string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case "allow", "approve":
		return "allow", nil
	case "deny", "reject":
		return "deny", nil
	default:
		return "", fmt.Errorf("%w, got %q", ErrInvalidOutcome, outcome)
	}
}

// Store is the durable side of a recorded review: the append-only case log
// plus the derived per-tag counters, updated atomically.
type Store interface {
	RecordCase(ctx context.Context, pc *models.PrecedentCase) error
	GetCounter(ctx context.Context, tag string) (models.TagCounter, error)
}

type ReviewInput struct {
	RawText       string
	Outcome       string
	Tag           string
	Reviewer      string
	DeadlineISO   string
	DaysRequested int
}

// Recorder persists adjudicated cases into the vector index and the counter
// store. Append-only: repeated identical submissions create repeated
// entries and repeated increments.
type Recorder struct {
	index      retrieval.Index
	store      Store
	collection string
	clock      rules.Clock
}

func NewRecorder(index retrieval.Index, store Store, collection string, clock rules.Clock) *Recorder {
	return &Recorder{
		index:      index,
		store:      store,
		collection: collection,
		clock:      clock,
	}
}

// Record validates the outcome, infers the tag when absent, embeds the RAW
// reason text for future similarity lookups, and appends case + counter
// increment. Validation failures happen before any side effect.
func (r *Recorder) Record(ctx context.Context, input ReviewInput) (*models.PrecedentCase, error) {
	outcome, err := NormalizeOutcome(input.Outcome)
	if err != nil {
		return nil, err
	}

	tag := input.Tag
	if tag == "" {
		tag = string(taxonomy.TagReason(input.RawText))
	}

	pc := &models.PrecedentCase{
		ID:             uuid.New().String(),
		RawText:        input.RawText,
		NormalizedText: taxonomy.NormalizeReason(input.RawText),
		Tag:            tag,
		Outcome:        outcome,
		Reviewer:       input.Reviewer,
		DaysRequested:  input.DaysRequested,
		DeadlineISO:    input.DeadlineISO,
		CreatedAt:      r.clock.Now(),
	}

	metadata := map[string]string{
		"type":     "precedent",
		"outcome":  outcome,
		"tag":      tag,
		"raw":      pc.RawText,
		"norm":     pc.NormalizedText,
		"ts":       strconv.FormatInt(pc.CreatedAt.Unix(), 10),
		"reviewer": pc.Reviewer,
	}
	if pc.DaysRequested > 0 {
		metadata["days_requested"] = strconv.Itoa(pc.DaysRequested)
	}
	if pc.DeadlineISO != "" {
		metadata["deadline_iso"] = pc.DeadlineISO
	}

	// The raw requester text is what gets embedded; the normalized form
	// rides along as metadata only.
	err = r.index.Upsert(ctx, r.collection, []retrieval.Record{{
		ID:       pc.ID,
		Text:     pc.RawText,
		Metadata: metadata,
	}})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	if err := r.store.RecordCase(ctx, pc); err != nil {
		return nil, fmt.Errorf("failed to record precedent case: %w", err)
	}

	logger.Info("Review recorded as precedent",
		zap.String("case_id", pc.ID),
		zap.String("tag", tag),
		zap.String("outcome", outcome),
	)

	return pc, nil
}

// Stats summarizes the per-tag history shown to reviewers. Precedent is
// reported in aggregate; individual cases stay in the index.
type Stats struct {
	Tag       string  `json:"tag"`
	Allow     int     `json:"allow"`
	Deny      int     `json:"deny"`
	AllowRate float64 `json:"allow_rate"`
	Hint      string  `json:"hint"`
}

func (r *Recorder) StatsFor(ctx context.Context, tag string) (Stats, error) {
	counter, err := r.store.GetCounter(ctx, tag)
	if err != nil {
		return Stats{Tag: tag}, err
	}
	return BuildStats(counter), nil
}

func BuildStats(counter models.TagCounter) Stats {
	stats := Stats{
		Tag:   counter.Tag,
		Allow: counter.Allow,
		Deny:  counter.Deny,
	}

	total := counter.Allow + counter.Deny
	if total > 0 {
		stats.AllowRate = float64(counter.Allow) / float64(total)
	}

	switch {
	case total == 0:
		stats.Hint = "No precedent recorded yet."
	case stats.AllowRate >= 0.6:
		stats.Hint = "Historically approved in similar cases."
	case stats.AllowRate <= 0.4:
		stats.Hint = "Historically denied in similar cases."
	default:
		stats.Hint = "Mixed precedent."
	}

	return stats
}
