package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yoockh/convopilot/internal/models"
)

var ErrBadAnalysis = errors.New("llm: malformed analysis response")

// PromptAnalyzer builds an analysis prompt, runs it through a Provider and
// parses the JSON answer.
type PromptAnalyzer struct {
	p Provider
}

func NewPromptAnalyzer(p Provider) *PromptAnalyzer {
	return &PromptAnalyzer{p: p}
}

func (a *PromptAnalyzer) Analyze(ctx context.Context, req AnalysisRequest) (*models.MessageAnalysis, error) {
	raw, err := Collect(a.p.StreamAnswer(ctx, BuildAnalysisPrompt(req)))
	if err != nil {
		return nil, err
	}
	return ParseAnalysis(raw)
}

func BuildAnalysisPrompt(req AnalysisRequest) string {
	lang := req.TargetLanguage
	if lang == "" {
		lang = "the target language"
	}
	level := req.Proficiency
	if level == "" {
		level = "unknown"
	}
	topic := ""
	if req.Topic != "" {
		topic = fmt.Sprintf("\nConversation topic: %s", req.Topic)
	}

	return fmt.Sprintf(`You are a %s tutor reviewing one message written by a learner.
Learner level: %s%s

Rules:
1. Answer with a single JSON object and nothing else
2. "detected_errors": array of {"type","text","message","start","end"}; type is one of grammar, vocabulary, spelling, punctuation, style
3. "corrections": array of {"original","corrected","explanation"}
4. "complexity_score": integer from 1 (very simple) to 10 (native-like)
5. "suggestions": array of short practice tips
6. Use empty arrays when the message has no errors

Message:
%s

JSON:`, lang, level, topic, req.Content)
}

// ParseAnalysis decodes a model answer, tolerating markdown code fences, and
// clamps the complexity score into range.
func ParseAnalysis(raw string) (*models.MessageAnalysis, error) {
	body := extractJSON(raw)
	if body == "" {
		return nil, ErrBadAnalysis
	}

	var out models.MessageAnalysis
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadAnalysis, err)
	}

	if out.ComplexityScore < models.MinComplexityScore {
		out.ComplexityScore = models.MinComplexityScore
	}
	if out.ComplexityScore > models.MaxComplexityScore {
		out.ComplexityScore = models.MaxComplexityScore
	}
	if out.DetectedErrors == nil {
		out.DetectedErrors = []models.DetectedError{}
	}
	if out.Corrections == nil {
		out.Corrections = []models.Correction{}
	}
	return &out, nil
}

func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i != -1 {
		rest := s[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j != -1 {
			s = strings.TrimSpace(rest[:j])
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end < start {
		return ""
	}
	return s[start : end+1]
}
