package engines

import "time"

// BackendConfig is everything a backend needs to talk to its server. Each
// backend instance gets its own copy; there is no process wide default.
type BackendConfig struct {
	Type                string        `yaml:"type" json:"type" jsonschema:"enum=ollama,enum=huggingface,enum=openai,enum=deepseek,enum=anthropic"`
	ServerURL           string        `yaml:"server_url" json:"server_url,omitempty" split_words:"true"`
	APIKey              string        `yaml:"api_key" json:"api_key,omitempty" split_words:"true"`
	Model               string        `yaml:"model" json:"model,omitempty"`
	EmbeddingModel      string        `yaml:"embedding_model" json:"embedding_model,omitempty" split_words:"true"`
	EmbeddingDimensions int           `yaml:"embedding_dimensions" json:"embedding_dimensions,omitempty" split_words:"true"`
	Timeout             time.Duration `yaml:"timeout" json:"timeout,omitempty"`
	MaxTokens           int           `yaml:"max_tokens" json:"max_tokens,omitempty" split_words:"true"`
	RequestsPerSecond   float64       `yaml:"requests_per_second" json:"requests_per_second,omitempty" split_words:"true"`
}

func (cfg BackendConfig) serverURL(fallback string) string {
	if cfg.ServerURL != "" {
		return cfg.ServerURL
	}
	return fallback
}

func (cfg BackendConfig) maxTokens(fallback int) int {
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return fallback
}
