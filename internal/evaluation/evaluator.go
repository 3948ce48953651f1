package evaluation

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ezextender/backend/internal/engine"
	"github.com/ezextender/backend/internal/rules"
	"github.com/ezextender/backend/internal/storage/models"
	"github.com/ezextender/backend/pkg/logger"
)

// Decider is the slice of the engine the evaluator needs.
type Decider interface {
	Decide(ctx context.Context, req engine.DecideRequest) (*engine.DecisionPayload, error)
}

// CaseSource yields recorded precedent cases, newest first.
type CaseSource interface {
	ListCases(ctx context.Context, limit int) ([]models.PrecedentCase, error)
}

// Report summarizes how often the engine agrees with past human reviewers
// when their own cases are replayed through it.
type Report struct {
	TotalCases    int     `json:"total_cases"`
	Agreed        int     `json:"agreed"`
	Disagreed     int     `json:"disagreed"`
	NeedsReview   int     `json:"needs_review"`
	Errors        int     `json:"errors"`
	AgreementRate float64 `json:"agreement_rate"`
	AvgConfidence float64 `json:"avg_confidence"`
}

type Evaluator struct {
	decider Decider
	cases   CaseSource
	clock   rules.Clock
}

func NewEvaluator(decider Decider, cases CaseSource, clock rules.Clock) *Evaluator {
	if clock == nil {
		clock = rules.SystemClock()
	}
	return &Evaluator{decider: decider, cases: cases, clock: clock}
}

// Replay runs up to limit recorded cases back through the decision engine.
// Each replay uses a deadline inside the evidence window so the time rule
// cannot short-circuit the comparison.
func (e *Evaluator) Replay(ctx context.Context, limit int) (*Report, error) {
	if limit <= 0 {
		limit = 100
	}

	cases, err := e.cases.ListCases(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load precedent cases: %w", err)
	}

	deadline := e.clock.Now().Add(24 * time.Hour).Format("2006-01-02T15:04:05Z")

	report := &Report{TotalCases: len(cases)}
	var confidenceSum float64
	var decided int

	for _, pc := range cases {
		payload, err := e.decider.Decide(ctx, engine.DecideRequest{
			DeadlineISO:   deadline,
			DaysRequested: pc.DaysRequested,
			ReasonText:    pc.RawText,
		})
		if err != nil {
			logger.Warn("Replay decision failed",
				zap.String("case_id", pc.ID),
				zap.Error(err),
			)
			report.Errors++
			continue
		}

		confidenceSum += payload.Confidence
		decided++

		if payload.Recommend == "" {
			report.NeedsReview++
			continue
		}

		if sameVerdict(payload.Recommend, pc.Outcome) {
			report.Agreed++
		} else {
			report.Disagreed++
		}
	}

	if report.Agreed+report.Disagreed > 0 {
		report.AgreementRate = round3(float64(report.Agreed) / float64(report.Agreed+report.Disagreed))
	}
	if decided > 0 {
		report.AvgConfidence = round3(confidenceSum / float64(decided))
	}

	logger.Info("Precedent replay completed",
		zap.Int("total", report.TotalCases),
		zap.Int("agreed", report.Agreed),
		zap.Int("disagreed", report.Disagreed),
		zap.Int("needs_review", report.NeedsReview),
	)

	return report, nil
}

func sameVerdict(recommend, outcome string) bool {
	switch recommend {
	case "approve":
		return outcome == "allow"
	case "deny":
		return outcome == "deny"
	default:
		return false
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
