package engines

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTranscript(t *testing.T) {
	got := renderTranscript([]*ChatMessage{
		{Role: ConvRoleSystem, Text: "be nice"},
		{Role: ConvRoleUser, Text: "hi"},
	})
	assert.Equal(t, "System: be nice\nUser: hi\nAssistant:", got)
}

func TestHuggingFace(t *testing.T) {
	featureOutput := `[0.25, 0.75]`
	mux := http.NewServeMux()
	mux.HandleFunc("/models/gpt2", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req hfGenerationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 64, req.Parameters.MaxNewTokens)
		assert.Equal(t, "User: hi\nAssistant:", req.Inputs)
		_, _ = w.Write([]byte(`[{"generated_text":" hello there "}]`))
	})
	mux.HandleFunc("/pipeline/feature-extraction/mini", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(featureOutput))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	hf, err := NewHuggingFace(BackendConfig{
		Type:              "huggingface",
		ServerURL:         server.URL,
		APIKey:            "secret",
		Model:             "gpt2",
		EmbeddingModel:    "mini",
		MaxTokens:         64,
		RequestsPerSecond: 100,
	})
	require.NoError(t, err)

	msg, err := hf.Chat(&ChatPrompt{History: []*ChatMessage{{Role: ConvRoleUser, Text: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, &ChatMessage{Role: ConvRoleAssistant, Text: "hello there"}, msg)

	vector, err := hf.Embed("hi")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, 0.75}, vector)

	featureOutput = `[[1, 2], [3, 4]]`
	vector, err = hf.Embed("hi")
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 3}, vector)

	featureOutput = `{"error":"loading"}`
	_, err = hf.Embed("hi")
	assert.Error(t, err)
}
