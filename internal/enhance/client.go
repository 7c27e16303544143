// Package enhance calls the external text-generation capability that turns
// static findings into richer descriptions, impact assessments, and
// truncation decisions. Calls are best-effort: bounded timeout, small retry
// budget, rate limited, and never required for a run to complete.
package enhance

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/codescope/codescope/internal/types"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-3-5-haiku-20241022"

// GetModel returns the configured model, checking CODESCOPE_MODEL first.
func GetModel(configured string) string {
	if configured != "" {
		return configured
	}
	if model := os.Getenv("CODESCOPE_MODEL"); model != "" {
		return model
	}
	return DefaultModel
}

// Request carries one file's context into the enhancement call.
type Request struct {
	Path            string
	Language        string
	Content         string
	Issues          []types.Issue
	DependencyCount int
}

// Response is the structured enhancement result for one file.
type Response struct {
	// Truncated is the capability's confirmation that a description can
	// stand in for the file content downstream.
	Truncated             bool              `json:"truncated"`
	Description           string            `json:"description"`
	BusinessImpact        string            `json:"business_impact"`
	ArchitecturalConcerns []string          `json:"architectural_concerns"`
	Suggestions           map[string]string `json:"enhanced_suggestions"`
}

// Client is the enhancement capability boundary. Implementations must be
// safe for concurrent use.
type Client interface {
	Enhance(ctx context.Context, req *Request) (*Response, error)
}

// Config holds settings for the Anthropic-backed client.
type Config struct {
	APIKey string // falls back to ANTHROPIC_API_KEY
	Model  string
	Retry  RetryConfig

	// CallsPerSecond caps the request rate (default 2).
	CallsPerSecond float64
	// MaxConcurrent caps in-flight calls (default 3).
	MaxConcurrent int64
}

// AnthropicClient implements Client against the Anthropic Messages API.
type AnthropicClient struct {
	client  *anthropic.Client
	model   string
	retry   RetryConfig
	limiter *rate.Limiter
	sem     *semaphore.Weighted
	breaker *breaker
}

// NewAnthropicClient builds a client from config, reading the API key from
// the environment when not provided.
func NewAnthropicClient(cfg Config) (*AnthropicClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	cps := cfg.CallsPerSecond
	if cps <= 0 {
		cps = 2
	}
	maxConc := cfg.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 3
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{
		client:  &client,
		model:   GetModel(cfg.Model),
		retry:   retry,
		limiter: rate.NewLimiter(rate.Limit(cps), 1),
		sem:     semaphore.NewWeighted(maxConc),
		breaker: newBreaker(retry.FailureThreshold, retry.OpenTimeout),
	}, nil
}

// Enhance requests a structured enhancement for one file. The response is
// parsed leniently: model output wrapped in code fences or prose still
// yields a usable Response.
func (c *AnthropicClient) Enhance(ctx context.Context, req *Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire enhancement slot: %w", err)
	}
	defer c.sem.Release(1)

	if err := c.breaker.allow(); err != nil {
		return nil, err
	}

	prompt := buildPrompt(req)

	var responseText string
	err := retryWithBackoff(ctx, c.retry, "enhance "+req.Path, func(attemptCtx context.Context) error {
		resp, apiErr := c.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: 1024,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		responseText = ""
		for _, block := range resp.Content {
			if block.Type == "text" {
				responseText += block.Text
			}
		}
		return nil
	})
	if err != nil {
		c.breaker.recordFailure()
		return nil, err
	}
	c.breaker.recordSuccess()

	parsed, err := ParseResponse(responseText)
	if err != nil {
		return nil, fmt.Errorf("malformed enhancement response for %s: %w", req.Path, err)
	}
	return parsed, nil
}

// maxPromptContent caps how much file content is sent per call.
const maxPromptContent = 2000

// buildPrompt renders the per-file enhancement prompt, including the static
// findings so suggestions can be keyed by issue id.
func buildPrompt(req *Request) string {
	content := req.Content
	if len(content) > maxPromptContent {
		content = content[:maxPromptContent] + "..."
	}

	var issueLines strings.Builder
	for _, issue := range req.Issues {
		fmt.Fprintf(&issueLines, "- id=%s severity=%s line=%d: %s\n",
			issue.ID, issue.Severity, issue.LineNumber, issue.Title)
	}
	if issueLines.Len() == 0 {
		issueLines.WriteString("(none)\n")
	}

	return fmt.Sprintf(`You are a code quality expert reviewing one file.

File: %s
Language: %s
Dependency count: %d
Detected issues:
%s
Content:
%s

Decide whether a brief description could stand in for this file's full content
in later review (only for simple, low-risk files), and enhance the detected
issues' suggestions.

IMPORTANT: Respond with ONLY valid JSON. No additional text before or after.

Response format:
{
  "truncated": false,
  "description": "Concise description of the file's purpose, main functions, and classes.",
  "business_impact": "Low - simple utility file",
  "architectural_concerns": ["Tight coupling detected"],
  "enhanced_suggestions": {
    "issue_id": "Specific, actionable improvement for this issue."
  }
}

Your response:`, req.Path, req.Language, req.DependencyCount, issueLines.String(), content)
}
