package engine

import (
	"strings"

	"github.com/ezextender/backend/internal/retrieval"
)

type scoreSummary struct {
	AllowScore  float64
	DenyScore   float64
	Confidence  float64
	Recommend   string
	NeedsReview bool
}

// aggregate blends similarity-weighted policy and precedent votes. Policy
// hits vote via their stored label, precedent hits via their outcome;
// anything unlabeled (or labeled unknown) contributes no score.
func aggregate(policyHits, precedentHits []retrieval.Hit, precedentWeight, minConfidence float64, strong *Override) scoreSummary {
	polAllow, polDeny := sumByMetadata(policyHits, "label")
	preAllow, preDeny := sumByMetadata(precedentHits, "outcome")

	policyWeight := 1.0 - precedentWeight
	summary := scoreSummary{
		AllowScore: policyWeight*polAllow + precedentWeight*preAllow,
		DenyScore:  policyWeight*polDeny + precedentWeight*preDeny,
	}

	total := summary.AllowScore + summary.DenyScore
	if total > 1e-9 {
		if summary.AllowScore >= summary.DenyScore {
			summary.Confidence = summary.AllowScore / total
		} else {
			summary.Confidence = summary.DenyScore / total
		}
	}

	if strong != nil {
		summary.Recommend = strong.Recommend
		if strong.Confidence > summary.Confidence {
			summary.Confidence = strong.Confidence
		}
		return summary
	}

	if summary.Confidence < minConfidence || total <= 1e-9 {
		summary.NeedsReview = true
		return summary
	}

	if summary.AllowScore >= summary.DenyScore {
		summary.Recommend = "approve"
	} else {
		summary.Recommend = "deny"
	}
	return summary
}

func sumByMetadata(hits []retrieval.Hit, key string) (allow, deny float64) {
	for _, hit := range hits {
		switch strings.ToLower(hit.Metadata[key]) {
		case "allow":
			allow += hit.Similarity
		case "deny":
			deny += hit.Similarity
		}
	}
	return allow, deny
}
