package semantic

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"github.com/coursekit/coursemap/pkg/errors"
)

// DefaultGeminiModel is the model used when none is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// geminiPreamble frames the request for the model. The machine-readable
// rules ride inside the request JSON itself; this only sets the output
// contract.
const geminiPreamble = "You are a course catalog matching service. " +
	"Apply the rules in the following request and respond with a single JSON object " +
	"containing the arrays matches, unmatched, and errors. No prose, no markdown fences.\n\n"

// GeminiClient implements Client against the Gemini API.
type GeminiClient struct {
	apiKey string
	model  string

	mu     sync.Mutex
	client *genai.Client // lazily created, reused across calls
}

// GeminiOption configures a GeminiClient.
type GeminiOption func(*GeminiClient)

// WithModel overrides the Gemini model id.
func WithModel(model string) GeminiOption {
	return func(c *GeminiClient) {
		c.model = model
	}
}

// NewGeminiClient creates a Gemini-backed matching client. The API key is
// required; credentials management beyond that is the caller's concern.
func NewGeminiClient(apiKey string, opts ...GeminiOption) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.NewConfigError("gemini", "API key required", nil)
	}
	c := &GeminiClient{
		apiKey: apiKey,
		model:  DefaultGeminiModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint implements Client.
func (c *GeminiClient) Endpoint() string {
	return "gemini:" + c.model
}

// getOrCreateClient returns the cached genai client, creating it on first use.
func (c *GeminiClient) getOrCreateClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  c.apiKey,
	})
	if err != nil {
		return nil, errors.WrapExternalCall(c.Endpoint(), 0, err)
	}

	c.client = client
	return client, nil
}

// Match implements Client. One generate call, JSON response MIME type, raw
// text returned as-is for the validator to pick apart.
func (c *GeminiClient) Match(ctx context.Context, request []byte) ([]byte, error) {
	client, err := c.getOrCreateClient(ctx)
	if err != nil {
		return nil, err
	}

	contents := genai.Text(geminiPreamble + string(request))
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	resp, err := client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, c.callError(ctx, err)
	}

	text := resp.Text()
	if text == "" {
		return nil, errors.NewExternalCallError(c.Endpoint(), 0, "empty response", nil)
	}
	return []byte(text), nil
}

// callError maps a generate failure onto the engine's error taxonomy,
// distinguishing caller timeouts and cancellations from service failures.
func (c *GeminiClient) callError(ctx context.Context, err error) error {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return errors.NewExternalCallError(c.Endpoint(), 0, "request timed out",
			fmt.Errorf("%w: %w", errors.ErrTimeout, err))
	case context.Canceled:
		return errors.NewExternalCallError(c.Endpoint(), 0, "request canceled",
			fmt.Errorf("%w: %w", errors.ErrCanceled, err))
	}
	return errors.WrapExternalCall(c.Endpoint(), 0, err)
}
