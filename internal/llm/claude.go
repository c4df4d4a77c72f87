package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ClaudeClient is the default LLM client used by the Router and every
// Persona, adapted one-for-one from the teacher's ClaudeProvider: same
// param-building and response-parsing shape, same OAuth-bearer middleware
// option for credential-less deployments.
type ClaudeClient struct {
	client      *anthropic.Client
	model       string
	tokenSource func() (string, error)
}

func NewClaudeClient(apiKey, model string) *ClaudeClient {
	client := anthropic.NewClient(
		option.WithAuthToken(apiKey),
		option.WithBaseURL("https://api.anthropic.com"),
	)
	return &ClaudeClient{client: &client, model: model}
}

// NewClaudeClientOAuth authenticates via OAuth Bearer token instead of
// x-api-key, mirroring subscription-based Claude access.
func NewClaudeClientOAuth(model string, tokenSource func() (string, error)) *ClaudeClient {
	client := anthropic.NewClient(
		option.WithBaseURL("https://api.anthropic.com"),
		option.WithMiddleware(oauthBearerMiddleware(tokenSource)),
	)
	return &ClaudeClient{client: &client, model: model, tokenSource: tokenSource}
}

func oauthBearerMiddleware(tokenSource func() (string, error)) option.Middleware {
	return func(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
		token, err := tokenSource()
		if err != nil {
			return nil, fmt.Errorf("refreshing OAuth token: %w", err)
		}
		req.Header.Del("X-Api-Key")
		req.Header.Del("x-api-key")
		req.Header.Set("Authorization", "Bearer "+token)
		return next(req)
	}
}

func (c *ClaudeClient) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	var opts []option.RequestOption
	if c.tokenSource != nil {
		tok, err := c.tokenSource()
		if err != nil {
			return ChatResponse{}, fmt.Errorf("refreshing token: %w", err)
		}
		opts = append(opts, option.WithAuthToken(tok))
	}

	params := buildClaudeParams(c.model, req)
	resp, err := c.client.Messages.New(ctx, params, opts...)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("claude API call: %w", err)
	}
	return parseClaudeResponse(resp), nil
}

func buildClaudeParams(model string, req ChatRequest) anthropic.MessageNewParams {
	var anthropicMessages []anthropic.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case "user":
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case "assistant":
			anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	maxTokens := int64(4096)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  anthropicMessages,
		MaxTokens: maxTokens,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	return params
}

func parseClaudeResponse(resp *anthropic.Message) ChatResponse {
	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.AsText().Text
		}
	}
	return ChatResponse{
		Content:      content,
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
}
