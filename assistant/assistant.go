/*
assistant.go - Text generation for HR reviewers

PURPOSE:
  Drafts two kinds of text: a short analysis of a leave request for the
  reviewer, and a polite rejection message for the employee. The output
  is opaque text. It never affects validation or state transitions.

CONTRACT:
  Every call returns a string within the configured timeout. Failures
  never surface as errors:
    - No generator configured (missing API key) -> fixed "unavailable" text
    - Generator error or timeout               -> fixed failure text
    - Empty response                           -> fixed "no response" text

TWO-PHASE REJECTION:
  The HTTP layer calls DraftRejectionMessage first, then passes the text
  to leave.Engine.SetStatus. The engine never waits on this package.

SEE ALSO:
  - gemini.go: Generator backed by the Gemini API
  - api/handlers.go: Callers
*/
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/warp/leave-engine/metrics"
)

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const (
	operationAnalysis  = "analysis"
	operationRejection = "rejection"

	FallbackAnalysisUnavailable = "AI analysis is unavailable (API key not configured)."
	FallbackAnalysisFailed      = "Failed to analyze the leave request."
	FallbackAnalysisEmpty       = "No response from the AI assistant."

	FallbackRejectionUnavailable = "Sorry, your leave request cannot be approved at this time."
	FallbackRejectionFailed      = "Sorry, your leave request has been rejected."
)

// AnalysisInput describes the request under review. HistoryDays is the
// annual leave already used this year.
type AnalysisInput struct {
	EmployeeName string
	Role         string
	LeaveType    string
	DurationDays int
	Reason       string
	HistoryDays  int
}

type Service struct {
	gen     Generator
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l.Named("assistant") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New returns a Service. A nil gen answers every call with fallback text.
func New(gen Generator, opts ...Option) *Service {
	s := &Service{
		gen:     gen,
		timeout: 10 * time.Second,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether a generator is configured.
func (s *Service) Enabled() bool { return s.gen != nil }

func (s *Service) AnalyzeLeaveRequest(ctx context.Context, in AnalysisInput) string {
	prompt := fmt.Sprintf(`As a professional HR assistant, give a short analysis (at most 2 sentences) of this leave request:
Name: %s
Role: %s
Leave type: %s
Duration: %d days
Reason: %s
Annual leave used this year: %d days.

Recommend politely whether it looks reasonable or needs further review.`,
		in.EmployeeName, in.Role, in.LeaveType, in.DurationDays, in.Reason, in.HistoryDays)

	return s.generate(ctx, operationAnalysis, prompt, fallbacks{
		unavailable: FallbackAnalysisUnavailable,
		failed:      FallbackAnalysisFailed,
		empty:       FallbackAnalysisEmpty,
	})
}

func (s *Service) DraftRejectionMessage(ctx context.Context, employeeName, managerReason string) string {
	prompt := fmt.Sprintf(
		"Write a polite, empathetic but firm leave rejection message for an employee named %s. Reason for rejection: %s. At most 30 words.",
		employeeName, managerReason)

	return s.generate(ctx, operationRejection, prompt, fallbacks{
		unavailable: FallbackRejectionUnavailable,
		failed:      FallbackRejectionFailed,
		empty:       FallbackRejectionFailed,
	})
}

type fallbacks struct {
	unavailable, failed, empty string
}

func (s *Service) generate(ctx context.Context, operation, prompt string, fb fallbacks) string {
	if s.gen == nil {
		s.metrics.AssistantFallback(operation, "no_key")
		return fb.unavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	text, err := s.gen.Generate(ctx, prompt)
	s.metrics.AssistantCall(operation, time.Since(start))

	if err != nil {
		s.metrics.AssistantFallback(operation, "error")
		s.logger.Warn("text generation failed", zap.String("operation", operation), zap.Error(err))
		return fb.failed
	}
	text = strings.TrimSpace(text)
	if text == "" {
		s.metrics.AssistantFallback(operation, "empty")
		return fb.empty
	}
	return text
}
