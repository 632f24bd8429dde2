package engines

import (
	"fmt"
	"net/http"
)

const defaultOllamaURL = "http://localhost:11434"

// Ollama talks to a local or remote Ollama server.
type Ollama struct {
	http           *jsonClient
	model          string
	embeddingModel string
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []*ChatMessage `json:"messages"`
	Stream   bool           `json:"stream"`
}

type ollamaChatResponse struct {
	Message *ChatMessage `json:"message"`
}

type ollamaEmbeddingsRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingsResponse struct {
	Embedding []float64 `json:"embedding"`
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaModelsResponse struct {
	Models []Model `json:"models"`
}

func NewOllama(cfg BackendConfig) (*Ollama, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: ollama needs a model", ErrInvalidConfig)
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = cfg.Model
	}
	return &Ollama{
		http:           newJSONClient(cfg, cfg.serverURL(defaultOllamaURL), nil),
		model:          cfg.Model,
		embeddingModel: embeddingModel,
	}, nil
}

func (o *Ollama) Chat(prompt *ChatPrompt) (*ChatMessage, error) {
	var res ollamaChatResponse
	err := o.http.do(http.MethodPost, "/api/chat", &ollamaChatRequest{
		Model:    o.model,
		Messages: prompt.History,
	}, &res)
	if err != nil {
		return nil, fmt.Errorf("failed to chat with %s: %w", o.model, err)
	}
	if res.Message == nil {
		return nil, ErrEmptyResponse
	}
	return res.Message, nil
}

func (o *Ollama) Embed(text string) ([]float32, error) {
	var res ollamaEmbeddingsResponse
	err := o.http.do(http.MethodPost, "/api/embeddings", &ollamaEmbeddingsRequest{
		Model:  o.embeddingModel,
		Prompt: text,
	}, &res)
	if err != nil {
		return nil, fmt.Errorf("failed to embed with %s: %w", o.embeddingModel, err)
	}
	if len(res.Embedding) == 0 {
		return nil, fmt.Errorf("%s returned an empty embedding", o.embeddingModel)
	}
	return toFloat32(res.Embedding), nil
}

func (o *Ollama) ListModels() ([]Model, error) {
	var res ollamaModelsResponse
	if err := o.http.do(http.MethodGet, "/api/tags", nil, &res); err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return res.Models, nil
}

func (o *Ollama) ListRunningModels() ([]Model, error) {
	var res ollamaModelsResponse
	if err := o.http.do(http.MethodGet, "/api/ps", nil, &res); err != nil {
		return nil, fmt.Errorf("failed to list running models: %w", err)
	}
	return res.Models, nil
}

// LoadModel issues an empty generate request, which makes Ollama load the
// model without producing output.
func (o *Ollama) LoadModel(name string) error {
	err := o.http.do(http.MethodPost, "/api/generate", &ollamaGenerateRequest{Model: name}, nil)
	if err != nil {
		return fmt.Errorf("failed to load model %s: %w", name, err)
	}
	return nil
}
