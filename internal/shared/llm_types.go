package shared

import (
	"time"
)

// TokenUsage is what one assistant call consumed, as reported by the provider.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// AgentMeta describes one shopping consolidation call for the metrics store.
// Outcome holds how the reply fared in validation.
type AgentMeta struct {
	AgentName string
	Usage     TokenUsage
	Latency   time.Duration
	Outcome   string
}
