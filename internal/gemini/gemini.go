package gemini

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	// DefaultModelName is the Gemini model used when none is configured
	DefaultModelName = "gemini-1.5-pro"
	// FailedGeneration is returned in place of model output when the call does not succeed.
	// It contains no section marker, so it parses to zero items.
	FailedGeneration = "Failed to generate content. Please try again."
)

// Generator turns a prompt into raw model text. Implementations never return an
// error: a failed call yields FailedGeneration.
type Generator interface {
	Generate(ctx context.Context, prompt string) string
}

// IsFailure reports whether raw is the failure placeholder.
func IsFailure(raw string) bool {
	return raw == FailedGeneration
}

// Client wraps the Gemini client
type Client struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

// NewClient creates a new Gemini client. A zero timeout leaves the call bounded only by ctx.
func NewClient(ctx context.Context, apiKey, modelName string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	if modelName == "" {
		modelName = DefaultModelName
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.4)
	model.SetMaxOutputTokens(int32(8192))

	return &Client{
		client:  client,
		model:   model,
		timeout: timeout,
	}, nil
}

// Close closes the Gemini client
func (c *Client) Close() {
	c.client.Close()
}

// Generate makes exactly one request. Errors, empty candidates and timeouts are logged
// and collapse into FailedGeneration.
func (c *Client) Generate(ctx context.Context, prompt string) string {
	text, err := c.generate(ctx, prompt)
	if err != nil {
		log.Printf("ERROR: Gemini generation failed: %v", err)
		return FailedGeneration
	}
	return text
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("timed out after %s: %w", c.timeout, err)
		}
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return "", errors.New("no content generated")
	}

	if resp.UsageMetadata != nil {
		log.Printf("INFO: Gemini responded in %s (prompt tokens=%d, candidate tokens=%d)",
			time.Since(start).Round(time.Millisecond), resp.UsageMetadata.PromptTokenCount, resp.UsageMetadata.CandidatesTokenCount)
	}
	return text, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String())
}
