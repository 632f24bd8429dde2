package engines_test

import (
	"errors"
	"testing"

	"github.com/RCFilm/AiRC-LLM/engines"
	"github.com/RCFilm/AiRC-LLM/engines/mocks"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := engines.NewDefaultRegistry()
	assert.Equal(t, []string{"anthropic", "deepseek", "huggingface", "ollama", "openai"}, r.Backends())

	testCases := []struct {
		name    string
		cfg     engines.BackendConfig
		wantErr error
	}{
		{name: "ollama", cfg: engines.BackendConfig{Type: "ollama", Model: "llama3"}},
		{name: "huggingface", cfg: engines.BackendConfig{Type: "huggingface", Model: "gpt2"}},
		{name: "openai", cfg: engines.BackendConfig{Type: "openai", Model: "gpt-4o"}},
		{name: "deepseek", cfg: engines.BackendConfig{Type: "deepseek", Model: "deepseek-chat"}},
		{name: "anthropic", cfg: engines.BackendConfig{Type: "anthropic", Model: "claude-sonnet-4-5"}},
		{name: "unknown", cfg: engines.BackendConfig{Type: "llamafile"}, wantErr: engines.ErrUnknownBackend},
		{name: "missing model", cfg: engines.BackendConfig{Type: "ollama"}, wantErr: engines.ErrInvalidConfig},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			llm, err := r.New(tc.cfg)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, llm)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, llm)
		})
	}
}

func TestRegistryRegister(t *testing.T) {
	ctrl := gomock.NewController(t)
	llm := mocks.NewMockLLM(ctrl)
	llm.EXPECT().Chat(gomock.Any()).Return(&engines.ChatMessage{Role: engines.ConvRoleAssistant, Text: "ok"}, nil)

	r := engines.NewRegistry()
	var seen engines.BackendConfig
	require.NoError(t, r.Register("fake", func(cfg engines.BackendConfig) (engines.LLM, error) {
		seen = cfg
		return llm, nil
	}))
	err := r.Register("fake", func(engines.BackendConfig) (engines.LLM, error) { return nil, errors.New("unused") })
	require.ErrorIs(t, err, engines.ErrBackendRegistered)

	backend, err := r.New(engines.BackendConfig{Type: "fake", ServerURL: "http://example:1"})
	require.NoError(t, err)
	assert.Equal(t, "http://example:1", seen.ServerURL)

	msg, err := backend.Chat(&engines.ChatPrompt{})
	require.NoError(t, err)
	assert.Equal(t, "ok", msg.Text)
}
