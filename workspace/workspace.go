// Package workspace ties chat history, backend selection and long term
// memory together into named workspaces.
package workspace

import (
	"bytes"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/RCFilm/AiRC-LLM/engines"
	"github.com/RCFilm/AiRC-LLM/memory"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// SystemPromptSetting is the agent setting holding the system prompt that
// opens every chat turn.
const SystemPromptSetting = "system_prompt"

// MemoryModeSetting selects how chat turns use memory: "vector" (the default)
// recalls stored memories, "summarised" keeps a running summary in
// MemoryStateSetting.
const (
	MemoryModeSetting  = "memory_mode"
	MemoryStateSetting = "memory_state"

	MemoryModeVector     = "vector"
	MemoryModeSummarised = "summarised"
)

// Workspace is safe for concurrent use. Memory mutations and snapshots are
// serialized by the workspace lock; backend calls never hold it.
type Workspace struct {
	ID        uuid.UUID
	CreatedAt time.Time

	mu            sync.RWMutex
	name          string
	model         string
	backend       string
	agentSettings map[string]string
	history       []*engines.ChatMessage
	memory        *memory.Store
}

// Record is the persisted form of a workspace, minus its memory.
type Record struct {
	ID            uuid.UUID              `json:"id"`
	Name          string                 `json:"name"`
	Model         string                 `json:"model"`
	Backend       string                 `json:"backend"`
	ChatHistory   []*engines.ChatMessage `json:"chatHistory"`
	AgentSettings map[string]string      `json:"agentSettings,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
}

func New(name, backend, model string, store *memory.Store) *Workspace {
	return &Workspace{
		ID:            uuid.New(),
		CreatedAt:     time.Now().UTC(),
		name:          name,
		backend:       backend,
		model:         model,
		agentSettings: map[string]string{},
		memory:        store,
	}
}

func FromRecord(r Record, store *memory.Store) *Workspace {
	return &Workspace{
		ID:            r.ID,
		CreatedAt:     r.CreatedAt,
		name:          r.Name,
		backend:       r.Backend,
		model:         r.Model,
		agentSettings: lo.Assign(map[string]string{}, r.AgentSettings),
		history:       slices.Clone(r.ChatHistory),
		memory:        store,
	}
}

func (w *Workspace) Record() Record {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Record{
		ID:            w.ID,
		Name:          w.name,
		Model:         w.model,
		Backend:       w.backend,
		ChatHistory:   slices.Clone(w.history),
		AgentSettings: lo.Assign(map[string]string{}, w.agentSettings),
		CreatedAt:     w.CreatedAt,
	}
}

func (w *Workspace) Name() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.name
}

func (w *Workspace) setName(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.name = name
}

func (w *Workspace) Model() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.model
}

func (w *Workspace) SetModel(model string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.model = model
}

func (w *Workspace) Backend() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.backend
}

func (w *Workspace) Setting(key string) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.agentSettings[key]
	return v, ok
}

func (w *Workspace) SetSetting(key, value string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.agentSettings[key] = value
}

// History returns the chat history, oldest first.
func (w *Workspace) History() []*engines.ChatMessage {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.history)
}

func (w *Workspace) AppendHistory(msgs ...*engines.ChatMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.history = append(w.history, msgs...)
}

// Remember stores text in the workspace memory.
func (w *Workspace) Remember(embedding []float32, text string) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.memory.Add(embedding, text)
}

func (w *Workspace) Recall(embedding []float32, k int) ([]memory.Match, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.memory.QueryKNearest(embedding, k)
}

func (w *Workspace) MemoryCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.memory.Count()
}

func (w *Workspace) MemoryCapacity() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.memory.Capacity()
}

func (w *Workspace) MemoryDimension() int {
	return w.memory.Dimension()
}

// SnapshotBytes encodes the workspace memory.
func (w *Workspace) SnapshotBytes() ([]byte, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var buf bytes.Buffer
	if _, err := w.memory.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to snapshot memory of %s: %w", w.name, err)
	}
	return buf.Bytes(), nil
}

// RestoreSnapshot replaces the workspace memory. On error the current memory
// is kept.
func (w *Workspace) RestoreSnapshot(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.memory.ReadFrom(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to restore memory of %s: %w", w.name, err)
	}
	return nil
}

func (w *Workspace) RebuildMemory(capacity int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.memory.Rebuild(capacity)
}

// Vectorstore exposes the workspace memory under the workspace lock.
func (w *Workspace) Vectorstore() memory.Vectorstore {
	return lockedVectorstore{w: w}
}

type lockedVectorstore struct {
	w *Workspace
}

func (l lockedVectorstore) Store(key []float32, value string) error {
	_, err := l.w.Remember(key, value)
	return err
}

func (l lockedVectorstore) FindNearest(key []float32, k int) ([]string, error) {
	l.w.mu.RLock()
	defer l.w.mu.RUnlock()
	return l.w.memory.FindNearest(key, k)
}

// ReadMemory runs fn with the workspace memory held for reading. fn must not
// mutate the store.
func (w *Workspace) ReadMemory(fn func(store *memory.Store) error) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return fn(w.memory)
}
