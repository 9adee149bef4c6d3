package llm

import (
	"context"

	"github.com/yoockh/convopilot/internal/models"
)

type Provider interface {
	// StreamAnswer returns a stream of text chunks (incremental).
	StreamAnswer(ctx context.Context, prompt string) (chunks <-chan string, errs <-chan error)
	Close() error
}

// AnalysisRequest describes one learner message to analyse.
type AnalysisRequest struct {
	Content        string
	TargetLanguage string // display name, ex: "Spanish"
	Proficiency    string
	Topic          string
}

// Analyzer produces grammar and vocabulary feedback for a learner message.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*models.MessageAnalysis, error)
}
