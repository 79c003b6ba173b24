package classifier

import (
	"context"
	"fmt"
	"math"

	"media-pipeline/internal/store"
)

// Category is one axis of sensitivity scoring.
type Category struct {
	Key   string
	Label string
}

// Categories is the closed category set, in declaration order. Reasons are
// emitted in this order.
var Categories = []Category{
	{Key: "violence", Label: "Violent content"},
	{Key: "adult", Label: "Adult content"},
	{Key: "hate", Label: "Hate speech"},
	{Key: "drugs", Label: "Drug-related content"},
	{Key: "language", Label: "Explicit language"},
}

// Thresholds configures flagging. A category is exceeded when its score
// meets or passes its threshold; the overall threshold applies to the
// weighted overall score.
type Thresholds struct {
	Categories map[string]int
	Overall    int
}

// DefaultThresholds returns the stock threshold configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Categories: map[string]int{
			"violence": 70,
			"adult":    60,
			"hate":     50,
			"drugs":    70,
			"language": 80,
		},
		Overall: 65,
	}
}

// Result is a full classification outcome.
type Result struct {
	Status         store.SensitivityStatus
	OverallScore   int
	CategoryScores map[string]store.CategoryScore
	Reasons        []string
}

// ProgressFunc reports classifier-internal progress (percent, message).
// May be nil.
type ProgressFunc func(percent int, message string)

// Classifier scores one asset. Implementations only read the asset's
// backing file, never mutate it, and must be safe for concurrent use.
type Classifier interface {
	Classify(ctx context.Context, asset *store.Asset, progress ProgressFunc) (Result, error)
}

// Score derives a Result from raw category scores. Categories absent from
// scores count as zero.
//
// The overall score is round(0.6*max + 0.4*mean): the maximum is weighted
// more heavily than the average so a single severe category flags the
// asset even when everything else is quiet.
func Score(scores map[string]int, th Thresholds) Result {
	r := Result{
		CategoryScores: make(map[string]store.CategoryScore, len(Categories)),
	}

	maxScore := 0
	sum := 0
	for _, cat := range Categories {
		score := scores[cat.Key]
		exceeded := score >= th.Categories[cat.Key]
		r.CategoryScores[cat.Key] = store.CategoryScore{
			Score:             score,
			ExceededThreshold: exceeded,
		}
		if exceeded {
			r.Reasons = append(r.Reasons, fmt.Sprintf("%s detected (score: %d)", cat.Label, score))
		}
		if score > maxScore {
			maxScore = score
		}
		sum += score
	}

	mean := float64(sum) / float64(len(Categories))
	r.OverallScore = int(math.Round(0.6*float64(maxScore) + 0.4*mean))

	if len(r.Reasons) > 0 || r.OverallScore >= th.Overall {
		r.Status = store.SensitivityFlagged
	} else {
		r.Status = store.SensitivitySafe
	}

	return r
}
