package memory

import "github.com/RCFilm/AiRC-LLM/engines"

//go:generate mockgen -source=memory.go -destination=mocks/memory.go -package=mocks
type Memory interface {
	Add(msg *engines.ChatMessage) error
	AddPrompt(prompt *engines.ChatPrompt) error
	PromptWithContext(nextMessages ...*engines.ChatMessage) (*engines.ChatPrompt, error)
}

type TextEmbedder interface {
	// Embed returns the vector for text. Failures wrap ErrEmbeddingUnavailable.
	Embed(text string) ([]float32, error)
}

type Vectorstore interface {
	Store(key []float32, value string) error
	FindNearest(key []float32, k int) ([]string, error)
}
