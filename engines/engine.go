package engines

//go:generate mockgen -source=engine.go -destination=mocks/engine.go -package=mocks
type LLM interface {
	Chat(prompt *ChatPrompt) (*ChatMessage, error)
}

// Embedder is implemented by backends that can embed text.
type Embedder interface {
	Embed(text string) ([]float32, error)
}

type ModelLister interface {
	ListModels() ([]Model, error)
}

// ModelManager is implemented by backends that serve local models.
type ModelManager interface {
	ModelLister
	ListRunningModels() ([]Model, error)
	// LoadModel asks the server to bring a model into memory.
	LoadModel(name string) error
}

type Model struct {
	Name string `json:"name"`
	Size int64  `json:"size,omitempty"`
}
