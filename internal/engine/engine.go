package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ezextender/backend/internal/metrics"
	"github.com/ezextender/backend/internal/precedent"
	"github.com/ezextender/backend/internal/retrieval"
	"github.com/ezextender/backend/internal/rules"
	"github.com/ezextender/backend/internal/storage/models"
	"github.com/ezextender/backend/internal/taxonomy"
	"github.com/ezextender/backend/pkg/logger"
)

// Searcher is the read side of the evidence store. An empty result means
// "no signal", never a fatal condition.
type Searcher interface {
	Search(ctx context.Context, collection, queryText string, k int) []retrieval.Hit
}

// HistoryStore audits every decision. Best-effort: a failed audit write
// never fails the decision.
type HistoryStore interface {
	InsertDecision(ctx context.Context, record *models.DecisionRecord) error
}

type Options struct {
	MinConfidence       float64
	PrecedentWeight     float64
	StrongCueThreshold  float64
	TopK                int
	AutoApproveHours    float64
	SnippetMaxLen       int
	PolicyCollection    string
	PrecedentCollection string
}

func (o *Options) applyDefaults() {
	if o.MinConfidence == 0 {
		o.MinConfidence = 0.60
	}
	if o.PrecedentWeight == 0 {
		o.PrecedentWeight = 0.35
	}
	if o.StrongCueThreshold == 0 {
		o.StrongCueThreshold = 0.58
	}
	if o.TopK == 0 {
		o.TopK = retrieval.DefaultTopK
	}
	if o.AutoApproveHours == 0 {
		o.AutoApproveHours = rules.DefaultAutoApproveHours
	}
	if o.SnippetMaxLen == 0 {
		o.SnippetMaxLen = 300
	}
	if o.PolicyCollection == "" {
		o.PolicyCollection = "PolicyDoc"
	}
	if o.PrecedentCollection == "" {
		o.PrecedentCollection = "PrecedentCases"
	}
}

// Engine blends the time rule, policy evidence, and precedent evidence into
// a recommendation or an escalation. All collaborators are injected.
type Engine struct {
	searcher Searcher
	recorder *precedent.Recorder
	counters precedent.Store
	history  HistoryStore
	clock    rules.Clock
	opts     Options
}

func New(searcher Searcher, recorder *precedent.Recorder, counters precedent.Store, history HistoryStore, clock rules.Clock, opts Options) *Engine {
	opts.applyDefaults()
	if clock == nil {
		clock = rules.SystemClock()
	}
	return &Engine{
		searcher: searcher,
		recorder: recorder,
		counters: counters,
		history:  history,
		clock:    clock,
		opts:     opts,
	}
}

type DecideRequest struct {
	DeadlineISO   string
	DaysRequested int
	ReasonText    string
}

type ReviewRequest struct {
	DeadlineISO   string
	DaysRequested int
	ReasonText    string
	Outcome       string
	Reviewer      string
}

// Decide runs the full pipeline: deadline rule short-circuit, then the
// evidence blend. The deadline meta is attached on every path.
func (e *Engine) Decide(ctx context.Context, req DecideRequest) (*DecisionPayload, error) {
	startTime := time.Now()
	decisionID := uuid.New().String()

	meta, err := rules.Meta(req.DeadlineISO, e.opts.AutoApproveHours, e.clock)
	if err != nil {
		return nil, newError(KindInvalidDeadlineFormat, "invalid deadline", err)
	}

	if meta.Beyond48h {
		payload := &DecisionPayload{
			Decision:     "approve",
			Via:          "rule_beyond_48h",
			Recommend:    "approve",
			Confidence:   1.0,
			Explanation:  fmt.Sprintf("%.1fh to deadline (> %.0fh): auto-approve.", meta.HoursToDeadline, e.opts.AutoApproveHours),
			Evidence:     []Evidence{},
			DeadlineMeta: meta,
		}
		e.recordDecision(ctx, decisionID, req.ReasonText, "", payload, startTime)
		return payload, nil
	}

	tag := taxonomy.TagReason(req.ReasonText)
	query := taxonomy.NormalizeReason(req.ReasonText)

	// Policy and precedent lookups are pure reads; run them in parallel.
	var policyHits, precedentHits []retrieval.Hit
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		policyHits = e.searcher.Search(ctx, e.opts.PolicyCollection, query, e.opts.TopK)
	}()
	go func() {
		defer wg.Done()
		precedentHits = e.searcher.Search(ctx, e.opts.PrecedentCollection, query, e.opts.TopK)
	}()
	wg.Wait()

	metrics.EvidenceHitsCount.WithLabelValues("policy").Observe(float64(len(policyHits)))
	metrics.EvidenceHitsCount.WithLabelValues("precedent").Observe(float64(len(precedentHits)))

	strong := strongCue(policyHits, e.opts.StrongCueThreshold)
	summary := aggregate(policyHits, precedentHits, e.opts.PrecedentWeight, e.opts.MinConfidence, strong)

	stats, err := e.counters.GetCounter(ctx, string(tag))
	if err != nil {
		logger.Warn("Failed to load precedent counters", zap.Error(err))
		stats = models.TagCounter{Tag: string(tag)}
	}
	precedentStats := precedent.BuildStats(stats)

	payload := &DecisionPayload{
		Recommend:    summary.Recommend,
		Confidence:   round3(summary.Confidence),
		Evidence:     topEvidence(policyHits, e.opts.SnippetMaxLen),
		Precedent:    &precedentStats,
		DeadlineMeta: meta,
	}

	if summary.NeedsReview {
		payload.Decision = "needs_review"
		payload.Via = "policy_rag_low_conf"
		payload.Explanation = "Evidence not decisive; escalate to reviewer."
	} else {
		payload.Decision = "recommendation"
		payload.Via = "policy_rag"
		payload.Explanation = "Policy + precedent similarity blend with similarity-weighted voting."
	}

	logger.Info("Decision produced",
		zap.String("decision_id", decisionID),
		zap.String("tag", string(tag)),
		zap.String("recommend", payload.Recommend),
		zap.Float64("confidence", payload.Confidence),
		zap.Bool("strong_cue", strong != nil),
	)

	e.recordDecision(ctx, decisionID, req.ReasonText, string(tag), payload, startTime)

	return payload, nil
}

// RecordReview validates early and writes nothing on failure. A vector
// index outage surfaces as retrieval_unavailable: silently losing a
// reviewer decision is worse than making them retry.
func (e *Engine) RecordReview(ctx context.Context, req ReviewRequest) (*ReviewResult, error) {
	if req.DeadlineISO != "" {
		if _, err := rules.ParseDeadline(req.DeadlineISO); err != nil {
			return nil, newError(KindInvalidDeadlineFormat, "invalid deadline", err)
		}
	}

	pc, err := e.recorder.Record(ctx, precedent.ReviewInput{
		RawText:       req.ReasonText,
		Outcome:       req.Outcome,
		Reviewer:      req.Reviewer,
		DeadlineISO:   req.DeadlineISO,
		DaysRequested: req.DaysRequested,
	})
	if err != nil {
		if errors.Is(err, precedent.ErrInvalidOutcome) {
			return nil, newError(KindInvalidOutcome, "invalid outcome", err)
		}
		if errors.Is(err, precedent.ErrIndexUnavailable) {
			return nil, newError(KindRetrievalUnavailable, "precedent store unavailable", err)
		}
		return nil, err
	}

	metrics.ReviewsRecorded.WithLabelValues(pc.Tag, pc.Outcome).Inc()

	return &ReviewResult{
		OK:      true,
		CaseID:  pc.ID,
		Tag:     pc.Tag,
		Outcome: pc.Outcome,
	}, nil
}

// PrecedentStats exposes the per-tag aggregate to the gateway.
func (e *Engine) PrecedentStats(ctx context.Context, tag string) (precedent.Stats, error) {
	counter, err := e.counters.GetCounter(ctx, tag)
	if err != nil {
		return precedent.Stats{Tag: tag}, err
	}
	return precedent.BuildStats(counter), nil
}

func (e *Engine) recordDecision(ctx context.Context, id, reasonText, tag string, payload *DecisionPayload, startTime time.Time) {
	latency := int(time.Since(startTime).Milliseconds())

	metrics.DecisionTotal.WithLabelValues(recommendLabel(payload.Recommend), payload.Via).Inc()
	metrics.DecisionDuration.WithLabelValues(payload.Via).Observe(time.Since(startTime).Seconds())
	metrics.ConfidenceScore.Observe(payload.Confidence)

	if e.history == nil {
		return
	}

	err := e.history.InsertDecision(ctx, &models.DecisionRecord{
		ID:         id,
		ReasonText: reasonText,
		Tag:        tag,
		Recommend:  payload.Recommend,
		Via:        payload.Via,
		Confidence: payload.Confidence,
		LatencyMS:  latency,
		CreatedAt:  e.clock.Now(),
	})
	if err != nil {
		logger.Warn("Failed to record decision history", zap.Error(err))
	}
}

func topEvidence(policyHits []retrieval.Hit, snippetMaxLen int) []Evidence {
	if len(policyHits) == 0 {
		return []Evidence{}
	}

	top := policyHits[0]
	snippet := top.Document
	if len(snippet) > snippetMaxLen {
		snippet = snippet[:snippetMaxLen] + "..."
	}

	return []Evidence{{
		Source:     top.Source,
		Label:      top.Metadata["label"],
		Similarity: round3(top.Similarity),
		Snippet:    snippet,
	}}
}

func recommendLabel(recommend string) string {
	if recommend == "" {
		return "none"
	}
	return recommend
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
