package engines

import (
	"fmt"
	"net/http"
)

const (
	defaultOpenAIURL   = "https://api.openai.com/v1"
	defaultDeepSeekURL = "https://api.deepseek.com"
)

// GPT speaks the OpenAI chat completions protocol, which DeepSeek serves as
// well.
type GPT struct {
	APIToken       string
	Model          string
	EmbeddingModel string
	// Dimensions asks the embedding model to shorten its vectors, 0 keeps
	// the model default.
	Dimensions int
	maxTokens  int
	http       *jsonClient
}

type ChatCompletionRequest struct {
	Model     string         `json:"model"`
	Messages  []*ChatMessage `json:"messages"`
	MaxTokens int            `json:"max_tokens,omitempty"`
}

type ChatCompletionResponse struct {
	Choices []struct {
		Message *ChatMessage `json:"message"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (gpt *GPT) Chat(prompt *ChatPrompt) (*ChatMessage, error) {
	var res ChatCompletionResponse
	err := gpt.http.do(http.MethodPost, "/chat/completions", &ChatCompletionRequest{
		Model:     gpt.Model,
		Messages:  prompt.History,
		MaxTokens: gpt.maxTokens,
	}, &res)
	if err != nil {
		return nil, fmt.Errorf("failed to chat with %s: %w", gpt.Model, err)
	}
	if len(res.Choices) == 0 || res.Choices[0].Message == nil {
		return nil, ErrEmptyResponse
	}
	return res.Choices[0].Message, nil
}

func (gpt *GPT) Embed(text string) ([]float32, error) {
	if gpt.EmbeddingModel == "" {
		return nil, fmt.Errorf("%w: no embedding model configured for %s", ErrInvalidConfig, gpt.Model)
	}
	var res embeddingResponse
	err := gpt.http.do(http.MethodPost, "/embeddings", &embeddingRequest{
		Model:      gpt.EmbeddingModel,
		Input:      text,
		Dimensions: gpt.Dimensions,
	}, &res)
	if err != nil {
		return nil, fmt.Errorf("failed to embed with %s: %w", gpt.EmbeddingModel, err)
	}
	if len(res.Data) == 0 || len(res.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%s returned an empty embedding", gpt.EmbeddingModel)
	}
	return toFloat32(res.Data[0].Embedding), nil
}

func (gpt *GPT) ListModels() ([]Model, error) {
	var res modelsResponse
	if err := gpt.http.do(http.MethodGet, "/models", nil, &res); err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	models := make([]Model, len(res.Data))
	for i, m := range res.Data {
		models[i] = Model{Name: m.ID}
	}
	return models, nil
}

func newGPT(cfg BackendConfig, fallbackURL string) (*GPT, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: %s needs a model", ErrInvalidConfig, cfg.Type)
	}
	return &GPT{
		APIToken:       cfg.APIKey,
		Model:          cfg.Model,
		EmbeddingModel: cfg.EmbeddingModel,
		Dimensions:     cfg.EmbeddingDimensions,
		maxTokens:      cfg.MaxTokens,
		http: newJSONClient(cfg, cfg.serverURL(fallbackURL), map[string]string{
			"Authorization": "Bearer " + cfg.APIKey,
		}),
	}, nil
}

func NewGPT(cfg BackendConfig) (*GPT, error) {
	return newGPT(cfg, defaultOpenAIURL)
}

func NewDeepSeek(cfg BackendConfig) (*GPT, error) {
	return newGPT(cfg, defaultDeepSeekURL)
}
