package classifier

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/store"
)

// Mock synthesizes pseudo-random category scores. It stands in for a real
// moderation service in demo and development environments; the threshold
// and flagging contract is identical.
type Mock struct {
	thresholds Thresholds

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMock creates a mock scorer. A zero seed derives one from the clock.
func NewMock(th Thresholds, seed int64) *Mock {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Mock{
		thresholds: th,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Classify produces a synthetic classification for the asset. Scores skew
// low, with an occasional spike so flagged verdicts show up in demos.
func (m *Mock) Classify(ctx context.Context, asset *store.Asset, progress ProgressFunc) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	report(progress, 92, "Scanning content")

	scores := make(map[string]int, len(Categories))
	m.mu.Lock()
	for _, cat := range Categories {
		if m.rng.Intn(10) == 0 {
			// Rare spike into potentially-flagged territory.
			scores[cat.Key] = 55 + m.rng.Intn(46)
		} else {
			scores[cat.Key] = m.rng.Intn(40)
		}
	}
	m.mu.Unlock()

	report(progress, 96, "Evaluating category scores")

	result := Score(scores, m.thresholds)
	logging.Debug("mock classifier scored asset %s: overall=%d status=%s",
		asset.ID, result.OverallScore, result.Status)
	return result, nil
}

// Static replays fixed category scores. Used in tests and in deployments
// that want deterministic verdicts.
type Static struct {
	thresholds Thresholds
	scores     map[string]int
}

// NewStatic creates a classifier that always returns the given scores.
func NewStatic(th Thresholds, scores map[string]int) *Static {
	return &Static{thresholds: th, scores: scores}
}

// Classify scores the asset with the fixed score set.
func (s *Static) Classify(ctx context.Context, asset *store.Asset, progress ProgressFunc) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	report(progress, 92, "Scanning content")
	report(progress, 96, "Evaluating category scores")

	return Score(s.scores, s.thresholds), nil
}

func report(progress ProgressFunc, percent int, message string) {
	if progress != nil {
		progress(percent, message)
	}
}
