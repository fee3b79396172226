package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/avoronkov/talent-scout/internal/candidate"
	"github.com/avoronkov/talent-scout/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

// Scorer asks Gemini to score a candidate record against a rule stage's
// keywords. Implements ai.StageScorer.
type Scorer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewScorer(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scorer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// ScoreStage returns Gemini's 0-100 match score for the record against the
// stage keywords.
func (s *Scorer) ScoreStage(ctx context.Context, record candidate.Record, keywords []string) (float64, error) {
	recordJSON, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal record payload: %w", err)
	}

	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return 0, fmt.Errorf("marshal keywords payload: %w", err)
	}

	prompt := buildPrompt(string(recordJSON), string(keywordsJSON))

	s.logger.Debug("gemini stage score request",
		zap.String("card_id", record.CardID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return 0, err
	}

	s.logger.Debug("gemini stage score response",
		zap.String("card_id", record.CardID),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	score, reason, err := parseResponse(raw)
	if err != nil {
		return 0, err
	}

	s.logger.Debug("gemini stage score parsed",
		zap.String("card_id", record.CardID),
		zap.Float64("score", score),
		zap.String("reason", reason),
	)

	return score, nil
}

func buildPrompt(recordJSON, keywordsJSON string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Profile:\n{{RECORD_JSON}}\n\nKeywords:\n{{KEYWORDS_JSON}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{RECORD_JSON}}", recordJSON)
	prompt = strings.ReplaceAll(prompt, "{{KEYWORDS_JSON}}", keywordsJSON)
	return prompt
}

func parseResponse(raw string) (float64, string, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return 0, "", fmt.Errorf("parse gemini response: %w", err)
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		return 0, "", fmt.Errorf("gemini response has no usable score: %s", cleaned)
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	reason, _ := data["reason"].(string)
	return score, strings.TrimSpace(reason), nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
