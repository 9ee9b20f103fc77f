// Package advisor asks Claude for a second opinion on sweep results.
//
// The advisor is strictly read-only: it never repairs, never blocks a
// sweep, and the engine runs identically without it. When no API key is
// available the advisor constructs in disabled form and every review
// request returns ErrDisabled.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/questlog/mechanicum/internal/guardian"
	"github.com/questlog/mechanicum/internal/repairlog"
)

// DefaultModel is used when the configuration does not name one.
const DefaultModel = "claude-sonnet-4-5"

// ErrDisabled is returned by review calls when no API key was present
// at construction time.
var ErrDisabled = errors.New("advisor disabled: no API key")

// Review is the advisor's verdict on one sweep.
type Review struct {
	// Verdict is one of "healthy", "attention", "investigate".
	Verdict string `json:"verdict"`
	// Summary is a short prose assessment of the sweep.
	Summary string `json:"summary"`
	// Concerns lists findings the advisor thinks deserve a human look.
	Concerns []string `json:"concerns"`
	// Recommendations lists concrete follow-up actions.
	Recommendations []string `json:"recommendations"`
}

// Config holds advisor configuration.
type Config struct {
	APIKey string // if empty, reads from ANTHROPIC_API_KEY env var
	Model  string // model to use (default: claude-sonnet-4-5)
	Logger *zap.Logger
}

// Advisor reviews sweep summaries through the Anthropic API.
type Advisor struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// New creates an advisor. A missing API key is not an error: the
// advisor comes up disabled and the engine carries on without review.
func New(cfg *Config) *Advisor {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		logger.Info("advisor disabled, no API key configured")
		return &Advisor{model: model, logger: logger}
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Advisor{
		client: &client,
		model:  model,
		logger: logger,
	}
}

// Enabled reports whether review calls can reach the API.
func (a *Advisor) Enabled() bool {
	return a.client != nil
}

// ReviewSweep sends one sweep summary plus recent repair history to the
// model and returns its structured verdict.
func (a *Advisor) ReviewSweep(ctx context.Context, summary *guardian.SweepSummary, recent []repairlog.Entry) (*Review, error) {
	if !a.Enabled() {
		return nil, ErrDisabled
	}
	if summary == nil {
		return nil, fmt.Errorf("sweep summary is required")
	}

	started := time.Now()
	prompt := buildReviewPrompt(summary, recent)

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var responseText string
	for _, block := range resp.Content {
		if block.Type == "text" {
			responseText += block.Text
		}
	}

	review, err := parseReview(responseText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse review response: %w", err)
	}

	a.logger.Info("sweep review complete",
		zap.String("verdict", review.Verdict),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("duration", time.Since(started)))
	return review, nil
}

// buildReviewPrompt renders the sweep summary and repair history into
// the review request.
func buildReviewPrompt(summary *guardian.SweepSummary, recent []repairlog.Entry) string {
	issues := "none"
	if len(summary.IssuesFound) > 0 {
		issues = strings.Join(summary.IssuesFound, ", ")
	}
	failures := "none"
	if len(summary.Failures) > 0 {
		failures = strings.Join(summary.Failures, "; ")
	}

	var history strings.Builder
	if len(recent) == 0 {
		history.WriteString("(no repairs on record)")
	}
	for _, e := range recent {
		fmt.Fprintf(&history, "- %s: %s (%s)\n",
			e.Timestamp.Format(time.RFC3339), e.Issue, e.Action)
	}

	return fmt.Sprintf(`You are reviewing one consistency sweep of a personal task tracker's data store. The engine detects and repairs corrupted mission records (duplicates, contradictory flags, invalid values).

Sweep kind: %s
Checks run: %d
Issues found: %s
Repairs applied: %d
Suggestions queued: %d
Check failures: %s
Resulting status: %s

Recent repair history:
%s

Please respond with a JSON object of the following structure:
{
  "verdict": "healthy|attention|investigate",
  "summary": "One-paragraph assessment of what this sweep says about data health",
  "concerns": ["Anything that looks like more than routine drift"],
  "recommendations": ["Concrete follow-up actions, empty if none needed"]
}

Focus on:
1. Is the issue rate normal drift or a sign of a systematic writer bug?
2. Do repeated repairs of the same issue suggest the repair is not sticking?
3. Did any check failures mask issues this sweep could not see?`,
		summary.Kind, summary.ChecksRun, issues, summary.RepairsApplied,
		summary.SuggestionsQueued, failures, summary.Status, history.String())
}

// parseReview decodes the model's JSON reply. Replies sometimes arrive
// wrapped in markdown fences or prose, so parsing falls back to the
// outermost brace pair before giving up.
func parseReview(text string) (*Review, error) {
	candidate := strings.TrimSpace(text)
	var r Review
	if err := json.Unmarshal([]byte(candidate), &r); err == nil && r.Verdict != "" {
		return &r, nil
	}

	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(candidate[start:end+1]), &r); err == nil && r.Verdict != "" {
			return &r, nil
		}
	}
	return nil, fmt.Errorf("no review object in response: %s", truncate(text, 200))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
