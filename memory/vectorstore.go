package memory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/RCFilm/AiRC-LLM/engines"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const defaultTopK = 3

// VectorstoreMemory is a conversation memory that embeds the messages it
// sees and recalls the closest ones into later prompts.
type VectorstoreMemory struct {
	embedder TextEmbedder
	store    Vectorstore
	recent   *BufferMemory
	prompt   *engines.ChatPrompt
	topK     int
	roles    map[engines.ConvRole]bool
}

type VectorstoreMemoryOption func(memory *VectorstoreMemory)

// WithTopK sets how many memories are recalled per prompt.
func WithTopK(k int) VectorstoreMemoryOption {
	return func(memory *VectorstoreMemory) {
		memory.topK = k
	}
}

// WithRoles selects which message roles are written to the vector store.
// Only assistant messages are remembered by default.
func WithRoles(roles ...engines.ConvRole) VectorstoreMemoryOption {
	return func(memory *VectorstoreMemory) {
		memory.roles = lo.Associate(roles, func(role engines.ConvRole) (engines.ConvRole, bool) {
			return role, true
		})
	}
}

func NewVectorstoreMemory(embedder TextEmbedder, store Vectorstore, recentMessageLimit int, opts ...VectorstoreMemoryOption) *VectorstoreMemory {
	memory := &VectorstoreMemory{
		embedder: embedder,
		store:    store,
		recent:   NewBufferedMemory(recentMessageLimit),
		topK:     defaultTopK,
		roles:    map[engines.ConvRole]bool{engines.ConvRoleAssistant: true},
	}
	for _, opt := range opts {
		opt(memory)
	}
	return memory
}

func (memory *VectorstoreMemory) remember(msg *engines.ChatMessage) error {
	if !memory.roles[msg.Role] || strings.TrimSpace(msg.Text) == "" {
		return nil
	}
	embedding, err := memory.embedder.Embed(msg.Text)
	if err != nil {
		if errors.Is(err, ErrEmbeddingUnavailable) {
			log.WithError(err).Warn("message not remembered, no embedding available")
			return nil
		}
		return fmt.Errorf("failed to embed message: %w", err)
	}
	if err := memory.store.Store(embedding, msg.Text); err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}
	return nil
}

func (memory *VectorstoreMemory) Add(msg *engines.ChatMessage) error {
	if err := memory.recent.Add(msg); err != nil {
		return err
	}
	return memory.remember(msg)
}

func (memory *VectorstoreMemory) AddPrompt(prompt *engines.ChatPrompt) error {
	memory.prompt = prompt
	return nil
}

func (memory *VectorstoreMemory) PromptWithContext(nextMessages ...*engines.ChatMessage) (*engines.ChatPrompt, error) {
	recalled, err := memory.recall(nextMessages)
	if err != nil {
		return nil, err
	}
	for _, msg := range nextMessages {
		if err := memory.remember(msg); err != nil {
			return nil, err
		}
	}

	var history []*engines.ChatMessage
	if memory.prompt != nil {
		history = append(history, memory.prompt.History...)
	}
	if len(recalled) > 0 {
		history = append(history, &engines.ChatMessage{
			Role: engines.ConvRoleSystem,
			Text: "Relevant memories:\n- " + strings.Join(recalled, "\n- "),
		})
	}
	recent, err := memory.recent.PromptWithContext(nextMessages...)
	if err != nil {
		return nil, err
	}
	return &engines.ChatPrompt{
		History: append(history, recent.History...),
	}, nil
}

func (memory *VectorstoreMemory) recall(nextMessages []*engines.ChatMessage) ([]string, error) {
	if len(nextMessages) == 0 || memory.topK <= 0 {
		return nil, nil
	}
	query, _, ok := lo.FindLastIndexOf(nextMessages, func(msg *engines.ChatMessage) bool {
		return msg.Role == engines.ConvRoleUser
	})
	if !ok {
		query = nextMessages[len(nextMessages)-1]
	}
	if strings.TrimSpace(query.Text) == "" {
		return nil, nil
	}

	embedding, err := memory.embedder.Embed(query.Text)
	if err != nil {
		log.WithError(err).Warn("skipping memory recall, no embedding available")
		return nil, nil
	}
	texts, err := memory.store.FindNearest(embedding, memory.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to recall memories: %w", err)
	}
	return lo.Uniq(lo.Filter(texts, func(text string, _ int) bool {
		return text != ""
	})), nil
}
