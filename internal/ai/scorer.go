package ai

import (
	"context"

	"github.com/avoronkov/talent-scout/internal/candidate"
)

// StageScorer scores how well a candidate record matches a rule stage's
// keywords, on a 0-100 scale. Implementations may call remote services; the
// evaluator applies its own retry budget and degrades to a deterministic
// keyword-overlap score when the scorer keeps failing.
type StageScorer interface {
	ScoreStage(ctx context.Context, record candidate.Record, keywords []string) (float64, error)
}
