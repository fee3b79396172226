package rules

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/avoronkov/talent-scout/internal/ai"
	"github.com/avoronkov/talent-scout/internal/candidate"
	"github.com/avoronkov/talent-scout/internal/retry"
)

// DefaultPassThreshold is the pass score a staged spec uses when no stage
// specifies one. Tuned in the field, not derived; keep configurable.
const DefaultPassThreshold = 60.0

// Result is the verdict of one evaluation call. Produced fresh every time:
// the rule spec may change between calls, so results are never cached.
type Result struct {
	Pass        bool
	Score       float64
	Threshold   float64
	Reason      string
	FailedStage string
}

// Evaluator checks candidate records against rule specs.
type Evaluator struct {
	logger    *zap.Logger
	scorer    ai.StageScorer
	retry     retry.Policy
	threshold float64
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithScorer enables remote scoring for stages that request it.
func WithScorer(scorer ai.StageScorer) Option {
	return func(e *Evaluator) { e.scorer = scorer }
}

// WithRetryPolicy overrides the retry budget for remote scoring.
func WithRetryPolicy(p retry.Policy) Option {
	return func(e *Evaluator) { e.retry = p }
}

// WithPassThreshold overrides the default pass threshold.
func WithPassThreshold(threshold float64) Option {
	return func(e *Evaluator) { e.threshold = threshold }
}

func NewEvaluator(logger *zap.Logger, opts ...Option) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Evaluator{
		logger:    logger,
		retry:     retry.Default,
		threshold: DefaultPassThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns the verdict for the record under the spec. An empty spec
// admits everyone. Malformed rule leaves fail closed and are logged, never
// surfaced as errors.
func (e *Evaluator) Evaluate(ctx context.Context, record candidate.Record, spec Spec) Result {
	if spec.Empty() {
		return Result{Pass: true, Score: 100, Threshold: e.threshold, Reason: "no rules configured"}
	}

	if spec.Tree != nil && len(spec.Tree.Children) > 0 {
		return e.evaluateTree(record, spec.Tree)
	}

	return e.evaluateStages(ctx, record, spec.SortedStages())
}

func (e *Evaluator) evaluateTree(record candidate.Record, tree *Group) Result {
	if e.evalGroup(record, tree) {
		return Result{Pass: true, Score: 100, Threshold: e.threshold, Reason: "condition tree matched"}
	}
	return Result{Pass: false, Score: 0, Threshold: e.threshold, Reason: "condition tree rejected"}
}

func (e *Evaluator) evalGroup(record candidate.Record, g *Group) bool {
	// Empty groups are vacuously true for both operators.
	if len(g.Children) == 0 {
		return true
	}

	for _, child := range g.Children {
		matched := e.evalNode(record, child)
		if g.Op == OpAnd && !matched {
			return false
		}
		if g.Op == OpOr && matched {
			return true
		}
	}

	return g.Op == OpAnd
}

func (e *Evaluator) evalNode(record candidate.Record, n Node) bool {
	switch node := n.(type) {
	case *Group:
		return e.evalGroup(record, node)
	case *Condition:
		return e.evalCondition(record, node)
	default:
		return false
	}
}

func (e *Evaluator) evalCondition(record candidate.Record, c *Condition) bool {
	field := record.Field(c.Field)
	want := asString(c.Value)

	switch strings.TrimSpace(c.Operator) {
	case "equals":
		return asString(field) == want
	case "contains":
		if items, ok := field.([]string); ok {
			for _, item := range items {
				if strings.Contains(item, want) {
					return true
				}
			}
			return false
		}
		return strings.Contains(asString(field), want)
	case "startsWith":
		return strings.HasPrefix(asString(field), want)
	case "endsWith":
		return strings.HasSuffix(asString(field), want)
	case "greaterThan":
		return asFloat(field) > asFloat(c.Value)
	case "lessThan":
		return asFloat(field) < asFloat(c.Value)
	case "regex":
		re, err := regexp.Compile(want)
		if err != nil {
			e.logger.Warn("malformed rule regex treated as non-match",
				zap.String("field", c.Field),
				zap.String("pattern", want),
				zap.Error(err),
			)
			return false
		}
		return re.MatchString(asString(field))
	default:
		e.logger.Warn("unknown rule operator treated as non-match",
			zap.String("field", c.Field),
			zap.String("operator", c.Operator),
		)
		return false
	}
}

func (e *Evaluator) evaluateStages(ctx context.Context, record candidate.Record, stages []Stage) Result {
	if len(stages) == 0 {
		return Result{Pass: true, Score: 100, Threshold: e.threshold, Reason: "no enabled stages"}
	}

	scoredCount := 0
	for _, stage := range stages {
		if stage.PassScore != nil {
			scoredCount++
		}
	}

	lastScore := 100.0
	lastThreshold := e.threshold
	lastScoredType := ""

	for _, stage := range stages {
		score := e.stageScore(ctx, record, stage)

		if stage.MustMatch && score <= 0 {
			return Result{
				Pass:        false,
				Score:       score,
				Threshold:   lastThreshold,
				Reason:      fmt.Sprintf("mandatory stage %q did not match", stage.Type),
				FailedStage: stage.Type,
			}
		}

		if stage.PassScore == nil {
			continue
		}

		threshold := *stage.PassScore
		if threshold <= 0 {
			threshold = e.threshold
		}

		// Failing a non-mandatory scored stage only terminates evaluation
		// when it is the sole threshold-bearing stage; otherwise later
		// stages still get their say.
		if score < threshold && scoredCount == 1 {
			return Result{
				Pass:        false,
				Score:       score,
				Threshold:   threshold,
				Reason:      fmt.Sprintf("stage %q scored %.0f below threshold %.0f", stage.Type, score, threshold),
				FailedStage: stage.Type,
			}
		}

		lastScore = score
		lastThreshold = threshold
		lastScoredType = stage.Type
	}

	result := Result{
		Score:     lastScore,
		Threshold: lastThreshold,
	}

	if lastScore >= lastThreshold {
		result.Pass = true
		result.Reason = "all stages passed"
		return result
	}

	result.Reason = fmt.Sprintf("aggregate score %.0f below threshold %.0f", lastScore, lastThreshold)
	result.FailedStage = lastScoredType
	return result
}

// stageScore computes the stage's 0-100 score. Stages that opt into remote
// scoring go through the retry budget first and degrade to the deterministic
// keyword-overlap score when the remote side keeps failing.
func (e *Evaluator) stageScore(ctx context.Context, record candidate.Record, stage Stage) float64 {
	if stage.UseAI && e.scorer != nil {
		var remote float64
		err := e.retry.Do(ctx, func(ctx context.Context) error {
			score, err := e.scorer.ScoreStage(ctx, record, stage.Keywords)
			if err != nil {
				return err
			}
			remote = score
			return nil
		})
		if err == nil {
			return clampScore(remote)
		}
		e.logger.Warn("remote stage scoring failed, falling back to keyword overlap",
			zap.String("stage", stage.Type),
			zap.Error(err),
		)
	}

	return KeywordOverlap(stageText(record, stage.Type), stage.Keywords)
}

// KeywordOverlap scores how many of the configured keywords appear in the
// text, scaled to 0-100. An empty keyword list is vacuously a full match.
func KeywordOverlap(text string, keywords []string) float64 {
	configured := 0
	matched := 0
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		configured++
		if strings.Contains(text, kw) {
			matched++
		}
	}

	if configured == 0 {
		return 100
	}
	return float64(matched) / float64(configured) * 100
}

// stageText picks the record field a stage type scores against, falling back
// to the free-text blob when the structured field came up empty.
func stageText(record candidate.Record, stageType string) string {
	var text string
	switch strings.TrimSpace(stageType) {
	case "position":
		text = record.TargetPosition
	case "skills":
		text = strings.Join(record.SkillTags, " ")
	case "education", "degree":
		text = record.Education
	case "company":
		text = strings.Join(record.CompanyHistory, " ")
	case "school":
		text = strings.Join(record.SchoolHistory, " ")
	}

	if text == "" {
		return record.RawText
	}
	return text
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func asString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case []string:
		return strings.TrimSpace(strings.Join(val, " "))
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", val))
	}
}

// asFloat coerces both rule operands for numeric comparison. Non-numeric
// values coerce to 0.
func asFloat(v any) float64 {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case float64:
		return val
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
