package llm

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"weekplan/internal/config"
	"weekplan/internal/shared"

	"github.com/go-resty/resty/v2"
)

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	http  *resty.Client
	model string
}

// NewOpenAIClient creates a new OpenAI API client.
func NewOpenAIClient(cfg *config.Config) *OpenAIClient {
	client := resty.New().
		SetBaseURL(cfg.OpenAIBaseURL).
		SetAuthToken(cfg.OpenAIAPIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.AssistantTimeout)

	return &OpenAIClient{http: client, model: cfg.OpenAIModel}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaFormat struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type responseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// GenerateJSON requests a strict json_schema response and returns the JSON text.
func (c *OpenAIClient) GenerateJSON(ctx context.Context, req JSONRequest) (ContentResponse, error) {
	body := chatRequest{
		Model:       c.model,
		Temperature: 0.1,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})

	if req.Schema != nil {
		name := req.Name
		if name == "" {
			name = "response"
		}
		body.ResponseFormat = responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchemaFormat{Name: name, Strict: true, Schema: strictSchema(req.Schema)},
		}
	} else {
		body.ResponseFormat = responseFormat{Type: "json_object"}
	}

	var out chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return ContentResponse{}, fmt.Errorf("openai api error: status=%d body=%s", resp.StatusCode(), resp.String())
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return ContentResponse{}, fmt.Errorf("no content generated")
	}

	return ContentResponse{
		Content: out.Choices[0].Message.Content,
		Usage: shared.TokenUsage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
			TotalTokens:      out.Usage.TotalTokens,
			Model:            c.model,
		},
	}, nil
}

// strictSchema renders s for strict mode: every object closes its
// properties and lists all of them as required.
func strictSchema(s *Schema) map[string]any {
	out := map[string]any{"type": string(s.Type)}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if s.Items != nil {
		out["items"] = strictSchema(s.Items)
	}
	if s.Type == TypeObject {
		props := make(map[string]any, len(s.Properties))
		required := make([]string, 0, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = strictSchema(p)
			required = append(required, name)
		}
		sort.Strings(required)
		out["properties"] = props
		out["required"] = required
		out["additionalProperties"] = false
	}
	return out
}
