package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/avoronkov/talent-scout/internal/candidate"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

var record = candidate.Record{
	CardID:         "c1",
	Name:           "张三",
	TargetPosition: "前端工程师",
	SkillTags:      []string{"React", "Node.js"},
}

func TestScoreStage(t *testing.T) {
	stub := &stubGenerator{response: `{"score": 85, "reason": "strong overlap"}`}
	scorer := NewScorer(stub, zap.NewNop(), 0)

	score, err := scorer.ScoreStage(context.Background(), record, []string{"React", "Vue"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 85 {
		t.Fatalf("expected score 85, got %v", score)
	}

	if stub.lastPrompt == "" {
		t.Fatalf("expected a prompt to be sent")
	}
	if !strings.Contains(stub.lastPrompt, "React") || !strings.Contains(stub.lastPrompt, "Vue") {
		t.Fatalf("prompt must carry record and keywords: %s", stub.lastPrompt)
	}
}

func TestScoreStageFencedResponse(t *testing.T) {
	stub := &stubGenerator{response: "```json\n{\"score\": \"42\", \"reason\": \"partial\"}\n```"}
	scorer := NewScorer(stub, zap.NewNop(), 0)

	score, err := scorer.ScoreStage(context.Background(), record, []string{"Go"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 42 {
		t.Fatalf("expected score 42, got %v", score)
	}
}

func TestScoreStageClampsRange(t *testing.T) {
	stub := &stubGenerator{response: `{"score": 150}`}
	scorer := NewScorer(stub, zap.NewNop(), 0)

	score, err := scorer.ScoreStage(context.Background(), record, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 100 {
		t.Fatalf("expected clamped score 100, got %v", score)
	}
}

func TestScoreStageErrors(t *testing.T) {
	stub := &stubGenerator{err: errors.New("quota")}
	scorer := NewScorer(stub, zap.NewNop(), 0)

	if _, err := scorer.ScoreStage(context.Background(), record, nil); err == nil {
		t.Fatalf("expected generator error to propagate")
	}

	stub = &stubGenerator{response: "not json"}
	scorer = NewScorer(stub, zap.NewNop(), 0)
	if _, err := scorer.ScoreStage(context.Background(), record, nil); err == nil {
		t.Fatalf("expected parse error")
	}

	stub = &stubGenerator{response: `{"reason": "no score"}`}
	scorer = NewScorer(stub, zap.NewNop(), 0)
	if _, err := scorer.ScoreStage(context.Background(), record, nil); err == nil {
		t.Fatalf("expected missing score error")
	}
}
