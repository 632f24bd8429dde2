package engines

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	defaultHuggingFaceURL       = "https://api-inference.huggingface.co"
	defaultHuggingFaceMaxTokens = 512
)

// HuggingFace calls the hosted inference API. Chat prompts are rendered as
// a plain transcript for text generation models.
type HuggingFace struct {
	http           *jsonClient
	model          string
	embeddingModel string
	maxTokens      int
}

type hfGenerationRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters hfGenerationParams `json:"parameters"`
}

type hfGenerationParams struct {
	MaxNewTokens   int  `json:"max_new_tokens"`
	ReturnFullText bool `json:"return_full_text"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

type hfFeatureRequest struct {
	Inputs string `json:"inputs"`
}

func NewHuggingFace(cfg BackendConfig) (*HuggingFace, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: huggingface needs a model", ErrInvalidConfig)
	}
	var headers map[string]string
	if cfg.APIKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + cfg.APIKey}
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "sentence-transformers/all-MiniLM-L6-v2"
	}
	return &HuggingFace{
		http:           newJSONClient(cfg, cfg.serverURL(defaultHuggingFaceURL), headers),
		model:          cfg.Model,
		embeddingModel: embeddingModel,
		maxTokens:      cfg.maxTokens(defaultHuggingFaceMaxTokens),
	}, nil
}

func renderTranscript(history []*ChatMessage) string {
	var sb strings.Builder
	for _, msg := range history {
		role := string(msg.Role)
		if role == "" {
			role = string(ConvRoleUser)
		}
		sb.WriteString(strings.ToUpper(role[:1]) + role[1:])
		sb.WriteString(": ")
		sb.WriteString(msg.Text)
		sb.WriteString("\n")
	}
	sb.WriteString("Assistant:")
	return sb.String()
}

func (hf *HuggingFace) Chat(prompt *ChatPrompt) (*ChatMessage, error) {
	var res []hfGeneration
	err := hf.http.do(http.MethodPost, "/models/"+hf.model, &hfGenerationRequest{
		Inputs: renderTranscript(prompt.History),
		Parameters: hfGenerationParams{
			MaxNewTokens: hf.maxTokens,
		},
	}, &res)
	if err != nil {
		return nil, fmt.Errorf("failed to generate with %s: %w", hf.model, err)
	}
	if len(res) == 0 {
		return nil, ErrEmptyResponse
	}
	return &ChatMessage{
		Role: ConvRoleAssistant,
		Text: strings.TrimSpace(res[0].GeneratedText),
	}, nil
}

// Embed accepts both sentence level output and token level output, which is
// mean pooled.
func (hf *HuggingFace) Embed(text string) ([]float32, error) {
	var raw json.RawMessage
	err := hf.http.do(http.MethodPost, "/pipeline/feature-extraction/"+hf.embeddingModel, &hfFeatureRequest{Inputs: text}, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to embed with %s: %w", hf.embeddingModel, err)
	}

	var sentence []float32
	if err := json.Unmarshal(raw, &sentence); err == nil && len(sentence) > 0 {
		return sentence, nil
	}
	var tokens [][]float32
	if err := json.Unmarshal(raw, &tokens); err != nil || len(tokens) == 0 || len(tokens[0]) == 0 {
		return nil, fmt.Errorf("unexpected feature extraction output from %s", hf.embeddingModel)
	}
	pooled := make([]float32, len(tokens[0]))
	for _, token := range tokens {
		if len(token) != len(pooled) {
			return nil, fmt.Errorf("ragged feature extraction output from %s", hf.embeddingModel)
		}
		for i, v := range token {
			pooled[i] += v
		}
	}
	for i := range pooled {
		pooled[i] /= float32(len(tokens))
	}
	return pooled, nil
}
