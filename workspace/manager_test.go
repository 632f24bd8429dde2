package workspace

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RCFilm/AiRC-LLM/blobstore"
	"github.com/RCFilm/AiRC-LLM/engines"
	"github.com/RCFilm/AiRC-LLM/engines/mocks"
	"github.com/RCFilm/AiRC-LLM/memory"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 8

type embeddingLLM struct {
	*mocks.MockLLM
	*mocks.MockEmbedder
}

type managerFixture struct {
	manager *Manager
	repo    Repository
	blobs   *blobstore.MemoryStore
	llm     engines.LLM
}

func newManagerFixture(t *testing.T, llm engines.LLM, repo Repository, blobs *blobstore.MemoryStore, options ...func(*Options)) *managerFixture {
	t.Helper()
	registry := engines.NewRegistry()
	require.NoError(t, registry.Register("mock", func(cfg engines.BackendConfig) (engines.LLM, error) {
		return llm, nil
	}))
	if repo == nil {
		repo = NewJSONFileRepository(filepath.Join(t.TempDir(), "workspaces.json"))
	}
	if blobs == nil {
		blobs = blobstore.NewMemoryStore()
	}
	opts := Options{
		Repository: repo,
		Blobs:      blobs,
		Registry:   registry,
		Backends: map[string]engines.BackendConfig{
			"local": {Type: "mock", EmbeddingDimensions: testDimension},
			"wide":  {Type: "mock", EmbeddingDimensions: 1536},
		},
		MemoryDimension: testDimension,
		MemoryCapacity:  64,
		Compression:     memory.CompressionZSTD,
		HistoryLimit:    4,
		TopK:            2,
	}
	for _, option := range options {
		option(&opts)
	}
	manager, err := NewManager(opts)
	require.NoError(t, err)
	t.Cleanup(manager.Close)
	return &managerFixture{manager: manager, repo: repo, blobs: blobs, llm: llm}
}

func reply(text string) func(*engines.ChatPrompt) (*engines.ChatMessage, error) {
	return func(*engines.ChatPrompt) (*engines.ChatMessage, error) {
		return &engines.ChatMessage{Role: engines.ConvRoleAssistant, Text: text}, nil
	}
}

func TestManagerCreateGetRename(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newManagerFixture(t, mocks.NewMockLLM(ctrl), nil, nil)
	m := f.manager

	ws, err := m.Create("alpha", "local", "tiny")
	require.NoError(t, err)
	_, err = m.Create("alpha", "local", "")
	assert.ErrorIs(t, err, ErrWorkspaceExists)
	_, err = m.Create("beta", "nowhere", "")
	assert.ErrorIs(t, err, engines.ErrUnknownBackend)

	byID, err := m.Get(ws.ID.String())
	require.NoError(t, err)
	assert.Same(t, ws, byID)
	byName, err := m.Get("alpha")
	require.NoError(t, err)
	assert.Same(t, ws, byName)
	_, err = m.Get("gamma")
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)

	_, err = m.Create("beta", "local", "")
	require.NoError(t, err)
	assert.ErrorIs(t, m.Rename("alpha", "beta"), ErrWorkspaceExists)
	require.NoError(t, m.Rename("alpha", "able"))
	assert.Equal(t, "able", ws.Name())
	assert.Equal(t, []string{"able", "beta"}, workspaceNames(m.List()))
}

func workspaceNames(list []*Workspace) []string {
	names := make([]string, len(list))
	for i, ws := range list {
		names[i] = ws.Name()
	}
	return names
}

func TestManagerSendRecallsMemories(t *testing.T) {
	ctrl := gomock.NewController(t)
	llm := mocks.NewMockLLM(ctrl)
	f := newManagerFixture(t, llm, nil, nil)
	m := f.manager

	ws, err := m.Create("alpha", "local", "")
	require.NoError(t, err)
	ws.SetSetting(SystemPromptSetting, "you are terse")

	gomock.InOrder(
		llm.EXPECT().Chat(gomock.Any()).DoAndReturn(func(prompt *engines.ChatPrompt) (*engines.ChatMessage, error) {
			require.Len(t, prompt.History, 2)
			assert.Equal(t, engines.ConvRoleSystem, prompt.History[0].Role)
			assert.Equal(t, "you are terse", prompt.History[0].Text)
			assert.Equal(t, "where is the key?", prompt.History[1].Text)
			return reply("under the mat")(prompt)
		}),
		llm.EXPECT().Chat(gomock.Any()).DoAndReturn(func(prompt *engines.ChatPrompt) (*engines.ChatMessage, error) {
			texts := make([]string, len(prompt.History))
			for i, msg := range prompt.History {
				texts[i] = msg.Text
			}
			assert.Equal(t, []string{
				"you are terse",
				"where is the key?",
				"under the mat",
				"Relevant memories:\n- under the mat",
				"and the car?",
			}, texts)
			return reply("in the garage")(prompt)
		}),
	)

	msg, err := m.Send("alpha", "where is the key?")
	require.NoError(t, err)
	assert.Equal(t, "under the mat", msg.Text)
	assert.Equal(t, 1, ws.MemoryCount())

	_, err = m.Send("alpha", "and the car?")
	require.NoError(t, err)
	assert.Equal(t, 2, ws.MemoryCount())
	assert.Len(t, ws.History(), 4)
}

func TestManagerSendFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	llm := mocks.NewMockLLM(ctrl)
	m := newManagerFixture(t, llm, nil, nil).manager
	ws, err := m.Create("alpha", "local", "")
	require.NoError(t, err)

	llm.EXPECT().Chat(gomock.Any()).Return(nil, errors.New("connection refused"))
	_, err = m.Send("alpha", "hello")
	assert.ErrorContains(t, err, "connection refused")
	assert.Empty(t, ws.History())
	assert.Equal(t, 0, ws.MemoryCount())

	llm.EXPECT().Chat(gomock.Any()).Return(&engines.ChatMessage{}, nil)
	_, err = m.Send("alpha", "hello")
	assert.ErrorIs(t, err, engines.ErrEmptyResponse)
}

func TestManagerBackendEmbeddings(t *testing.T) {
	ctrl := gomock.NewController(t)
	llm := embeddingLLM{MockLLM: mocks.NewMockLLM(ctrl), MockEmbedder: mocks.NewMockEmbedder(ctrl)}
	m := newManagerFixture(t, llm, nil, nil).manager
	ws, err := m.Create("alpha", "local", "")
	require.NoError(t, err)

	vector := make([]float32, testDimension)
	vector[0] = 1
	llm.MockEmbedder.EXPECT().Embed("fact").Return(vector, nil)
	label, err := m.Remember("alpha", "fact")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), label)

	llm.MockEmbedder.EXPECT().Embed("short").Return([]float32{1, 2}, nil)
	_, err = m.Remember("alpha", "short")
	assert.ErrorIs(t, err, memory.ErrEmbeddingUnavailable)

	// a chat turn survives a failing embedding backend
	llm.MockEmbedder.EXPECT().Embed(gomock.Any()).Return(nil, errors.New("model not found")).AnyTimes()
	llm.MockLLM.EXPECT().Chat(gomock.Any()).DoAndReturn(reply("fine"))
	msg, err := m.Send("alpha", "hello")
	require.NoError(t, err)
	assert.Equal(t, "fine", msg.Text)
	assert.Equal(t, 1, ws.MemoryCount())

	matches, err := ws.Recall(vector, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "fact", matches[0].Text)
}

func TestManagerEmbeddingDimensionMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	// the embedder has no expectations: any call fails the test
	llm := embeddingLLM{MockLLM: mocks.NewMockLLM(ctrl), MockEmbedder: mocks.NewMockEmbedder(ctrl)}
	m := newManagerFixture(t, llm, nil, nil).manager
	ws, err := m.Create("alpha", "wide", "")
	require.NoError(t, err)

	llm.MockLLM.EXPECT().Chat(gomock.Any()).DoAndReturn(reply("noted")).Times(3)
	for _, text := range []string{"one", "two", "three"} {
		_, err := m.Send("alpha", text)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, ws.MemoryCount())

	_, err = m.Remember("alpha", "fact")
	require.NoError(t, err)
	matches, err := m.Query("alpha", "fact", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "fact", matches[0].Text)
}

func TestManagerCachesBackendEmbeddings(t *testing.T) {
	ctrl := gomock.NewController(t)
	llm := embeddingLLM{MockLLM: mocks.NewMockLLM(ctrl), MockEmbedder: mocks.NewMockEmbedder(ctrl)}
	m := newManagerFixture(t, llm, nil, nil, func(o *Options) { o.EmbeddingCache = 16 }).manager
	_, err := m.Create("alpha", "local", "")
	require.NoError(t, err)
	_, err = m.Create("beta", "local", "")
	require.NoError(t, err)

	vector := make([]float32, testDimension)
	vector[1] = 1
	llm.MockEmbedder.EXPECT().Embed("fact").Return(vector, nil).Times(1)

	_, err = m.Remember("alpha", "fact")
	require.NoError(t, err)
	// same backend and model, so the cache is shared across workspaces
	_, err = m.Remember("beta", "fact")
	require.NoError(t, err)
	matches, err := m.Query("alpha", "fact", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "fact", matches[0].Text)
}

func TestManagerSendSummarisedMemory(t *testing.T) {
	ctrl := gomock.NewController(t)
	llm := mocks.NewMockLLM(ctrl)
	m := newManagerFixture(t, llm, nil, nil).manager
	ws, err := m.Create("alpha", "local", "")
	require.NoError(t, err)
	ws.SetSetting(MemoryModeSetting, MemoryModeSummarised)

	gomock.InOrder(
		llm.EXPECT().Chat(gomock.Any()).DoAndReturn(func(prompt *engines.ChatPrompt) (*engines.ChatMessage, error) {
			require.Len(t, prompt.History, 2)
			assert.Equal(t, "Memory state:\n\n", prompt.History[0].Text)
			assert.Equal(t, "where is the key?", prompt.History[1].Text)
			return reply("under the mat")(prompt)
		}),
		llm.EXPECT().Chat(gomock.Any()).DoAndReturn(func(prompt *engines.ChatPrompt) (*engines.ChatMessage, error) {
			require.Len(t, prompt.History, 4)
			assert.Contains(t, prompt.History[2].Text, "where is the key?")
			assert.Contains(t, prompt.History[3].Text, "under the mat")
			return reply("the key is under the mat")(prompt)
		}),
		llm.EXPECT().Chat(gomock.Any()).DoAndReturn(func(prompt *engines.ChatPrompt) (*engines.ChatMessage, error) {
			require.Len(t, prompt.History, 4)
			assert.Equal(t, "Memory state:\n\nthe key is under the mat", prompt.History[2].Text)
			assert.Equal(t, "and the car?", prompt.History[3].Text)
			return reply("in the garage")(prompt)
		}),
		llm.EXPECT().Chat(gomock.Any()).DoAndReturn(reply("key under the mat, car in the garage")),
	)

	_, err = m.Send("alpha", "where is the key?")
	require.NoError(t, err)
	state, ok := ws.Setting(MemoryStateSetting)
	require.True(t, ok)
	assert.Equal(t, "the key is under the mat", state)

	msg, err := m.Send("alpha", "and the car?")
	require.NoError(t, err)
	assert.Equal(t, "in the garage", msg.Text)
	state, _ = ws.Setting(MemoryStateSetting)
	assert.Equal(t, "key under the mat, car in the garage", state)
	assert.Equal(t, 0, ws.MemoryCount())
	assert.Len(t, ws.History(), 4)

	ws.SetSetting(MemoryModeSetting, "telepathic")
	_, err = m.Send("alpha", "hello")
	assert.ErrorIs(t, err, engines.ErrInvalidConfig)
}

func TestManagerPersistence(t *testing.T) {
	ctrl := gomock.NewController(t)
	llm := mocks.NewMockLLM(ctrl)
	f := newManagerFixture(t, llm, nil, nil)
	ctx := context.Background()

	alpha, err := f.manager.Create("alpha", "local", "tiny")
	require.NoError(t, err)
	beta, err := f.manager.Create("beta", "local", "")
	require.NoError(t, err)
	for _, text := range []string{"one", "two", "three"} {
		_, err := f.manager.Remember("alpha", text)
		require.NoError(t, err)
	}
	alpha.AppendHistory(&engines.ChatMessage{Role: engines.ConvRoleUser, Text: "hi"})
	require.NoError(t, f.manager.SaveAll(ctx))

	names, err := f.blobs.List(ctx, "memory/")
	require.NoError(t, err)
	assert.Len(t, names, 2)

	// a damaged snapshot costs only that workspace its memory
	require.NoError(t, f.blobs.Put(ctx, snapshotKey(beta.ID), []byte("garbage")))

	reloaded := newManagerFixture(t, llm, f.repo, f.blobs).manager
	require.NoError(t, reloaded.LoadAll(ctx))
	assert.Equal(t, []string{"alpha", "beta"}, workspaceNames(reloaded.List()))

	got, err := reloaded.Get(alpha.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "tiny", got.Model())
	assert.Equal(t, alpha.History(), got.History())
	assert.Equal(t, 3, got.MemoryCount())

	matches, err := reloaded.Query("alpha", "two", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "two", matches[0].Text)

	gotBeta, err := reloaded.Get("beta")
	require.NoError(t, err)
	assert.Equal(t, 0, gotBeta.MemoryCount())

	require.NoError(t, reloaded.Remove(ctx, "alpha"))
	_, err = f.blobs.Get(ctx, snapshotKey(alpha.ID))
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
	_, err = reloaded.Get("alpha")
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)
}

func TestManagerLoadWithoutSnapshots(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newManagerFixture(t, mocks.NewMockLLM(ctrl), nil, nil)
	ctx := context.Background()
	_, err := f.manager.Create("alpha", "local", "")
	require.NoError(t, err)
	require.NoError(t, f.manager.SaveAll(ctx))

	reloaded := newManagerFixture(t, f.llm, f.repo, blobstore.NewMemoryStore()).manager
	require.NoError(t, reloaded.LoadAll(ctx))
	ws, err := reloaded.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, 0, ws.MemoryCount())
	assert.True(t, strings.HasPrefix(snapshotKey(ws.ID), "memory/"))
}
