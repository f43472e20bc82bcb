package llm

import (
	"context"
	"fmt"

	"weekplan/internal/config"
	"weekplan/internal/shared"
)

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// SchemaType is a JSON schema primitive.
type SchemaType string

const (
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
	TypeString  SchemaType = "string"
	TypeInteger SchemaType = "integer"
)

// Schema describes the JSON document a generator must return. It covers the
// subset both providers understand.
type Schema struct {
	Type        SchemaType
	Description string
	Properties  map[string]*Schema
	Items       *Schema
	Required    []string
}

// JSONRequest asks for a single JSON document matching Schema.
type JSONRequest struct {
	Name   string
	System string
	Prompt string
	Schema *Schema
}

// JSONGenerator generates structured JSON output.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, req JSONRequest) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}

// New returns the generator selected by the configured credentials, or
// nil when no assistant is configured.
func New(ctx context.Context, cfg *config.Config) (JSONGenerator, error) {
	switch cfg.AssistantProvider() {
	case "gemini":
		c, err := NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "openai":
		return NewOpenAIClient(cfg), nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown assistant provider %q", cfg.AssistantProvider())
	}
}
