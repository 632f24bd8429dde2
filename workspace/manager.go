package workspace

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/RCFilm/AiRC-LLM/blobstore"
	"github.com/RCFilm/AiRC-LLM/engines"
	"github.com/RCFilm/AiRC-LLM/memory"
	"github.com/RCFilm/AiRC-LLM/vectorindex"
	"github.com/google/uuid"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"
)

const (
	defaultHistoryLimit = 20
	snapshotWorkers     = 4
)

type Options struct {
	Repository Repository
	Blobs      blobstore.Store
	Registry   *engines.Registry
	// Backends maps the backend name stored in a workspace to its config.
	Backends        map[string]engines.BackendConfig
	MemoryDimension int
	MemoryCapacity  int
	IndexOptions    vectorindex.Options
	Compression     memory.Compression
	// HistoryLimit caps how many past messages are sent with each turn.
	HistoryLimit int
	TopK         int
	// Embedder is used for backends that cannot embed text or whose
	// embedding_dimensions differ from MemoryDimension.
	Embedder memory.TextEmbedder
	// EmbeddingCache is the number of backend embeddings cached per
	// backend and model, 0 disables caching.
	EmbeddingCache int64
}

// Manager owns the set of workspaces and their backends.
type Manager struct {
	opts Options

	mu         sync.RWMutex
	workspaces map[uuid.UUID]*Workspace

	llmMu     sync.Mutex
	llms      map[string]engines.LLM
	embedders map[string]memory.TextEmbedder
}

func NewManager(opts Options) (*Manager, error) {
	if opts.Repository == nil || opts.Blobs == nil {
		return nil, fmt.Errorf("%w: workspace manager needs a repository and a blob store", engines.ErrInvalidConfig)
	}
	if opts.Registry == nil {
		opts.Registry = engines.NewDefaultRegistry()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.TopK == 0 {
		opts.TopK = 3
	}
	if opts.Embedder == nil {
		opts.Embedder = memory.NewHashEmbedder(opts.MemoryDimension)
	}
	if _, err := memory.NewStore(opts.MemoryDimension, opts.MemoryCapacity, opts.indexOptions); err != nil {
		return nil, err
	}
	return &Manager{
		opts:       opts,
		workspaces: map[uuid.UUID]*Workspace{},
		llms:       map[string]engines.LLM{},
		embedders:  map[string]memory.TextEmbedder{},
	}, nil
}

func (opts Options) indexOptions(o *vectorindex.Options) {
	if opts.IndexOptions != (vectorindex.Options{}) {
		*o = opts.IndexOptions
	}
}

func (m *Manager) newStore() (*memory.Store, error) {
	store, err := memory.NewStore(m.opts.MemoryDimension, m.opts.MemoryCapacity, m.opts.indexOptions)
	if err != nil {
		return nil, err
	}
	store.SetCompression(m.opts.Compression)
	return store, nil
}

func snapshotKey(id uuid.UUID) string {
	return "memory/" + id.String() + ".snapshot"
}

func (m *Manager) Create(name, backend, model string) (*Workspace, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: workspace name is empty", engines.ErrInvalidConfig)
	}
	if _, ok := m.opts.Backends[backend]; !ok {
		return nil, fmt.Errorf("%w: %q", engines.ErrUnknownBackend, backend)
	}
	store, err := m.newStore()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findByName(name) != nil {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceExists, name)
	}
	ws := New(name, backend, model, store)
	m.workspaces[ws.ID] = ws
	log.WithFields(log.Fields{"workspace": name, "backend": backend, "model": model}).Info("workspace created")
	return ws, nil
}

func (m *Manager) findByName(name string) *Workspace {
	for _, ws := range m.workspaces {
		if ws.Name() == name {
			return ws
		}
	}
	return nil
}

// Get looks a workspace up by id or, failing that, by name.
func (m *Manager) Get(idOrName string) (*Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, err := uuid.Parse(idOrName); err == nil {
		if ws, ok := m.workspaces[id]; ok {
			return ws, nil
		}
	}
	if ws := m.findByName(idOrName); ws != nil {
		return ws, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrWorkspaceNotFound, idOrName)
}

// List returns the workspaces ordered by creation time.
func (m *Manager) List() []*Workspace {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := maps.Values(m.workspaces)
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].Name() < list[j].Name()
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

func (m *Manager) Rename(idOrName, newName string) error {
	if newName == "" {
		return fmt.Errorf("%w: workspace name is empty", engines.ErrInvalidConfig)
	}
	ws, err := m.Get(idOrName)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if other := m.findByName(newName); other != nil && other != ws {
		return fmt.Errorf("%w: %s", ErrWorkspaceExists, newName)
	}
	ws.setName(newName)
	return nil
}

// Remove forgets a workspace and deletes its memory snapshot.
func (m *Manager) Remove(ctx context.Context, idOrName string) error {
	ws, err := m.Get(idOrName)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.workspaces, ws.ID)
	m.mu.Unlock()

	if err := m.opts.Blobs.Delete(ctx, snapshotKey(ws.ID)); err != nil {
		return fmt.Errorf("failed to delete memory of %s: %w", ws.Name(), err)
	}
	log.WithField("workspace", ws.Name()).Info("workspace removed")
	return nil
}

// SaveAll persists every workspace record and memory snapshot.
func (m *Manager) SaveAll(ctx context.Context) error {
	list := m.List()
	records := lo.Map(list, func(ws *Workspace, _ int) Record { return ws.Record() })
	if err := m.opts.Repository.Save(records); err != nil {
		return fmt.Errorf("failed to save workspaces: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(snapshotWorkers)
	for _, ws := range list {
		ws := ws
		g.Go(func() error {
			data, err := ws.SnapshotBytes()
			if err != nil {
				return err
			}
			if err := m.opts.Blobs.Put(ctx, snapshotKey(ws.ID), data); err != nil {
				return fmt.Errorf("failed to store memory of %s: %w", ws.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// LoadAll replaces the managed workspaces with the persisted ones. A missing
// or unreadable snapshot leaves that workspace with empty memory.
func (m *Manager) LoadAll(ctx context.Context) error {
	records, err := m.opts.Repository.Load()
	if err != nil {
		return fmt.Errorf("failed to load workspaces: %w", err)
	}

	loaded := make([]*Workspace, len(records))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(snapshotWorkers)
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			store, err := m.newStore()
			if err != nil {
				return err
			}
			ws := FromRecord(rec, store)
			loaded[i] = ws

			logger := log.WithField("workspace", rec.Name)
			data, err := m.opts.Blobs.Get(ctx, snapshotKey(rec.ID))
			if errors.Is(err, blobstore.ErrNotFound) {
				logger.Info("no memory snapshot, starting empty")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to fetch memory of %s: %w", rec.Name, err)
			}
			if err := ws.RestoreSnapshot(data); err != nil {
				logger.WithError(err).Warn("memory snapshot unreadable, starting empty")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.workspaces = lo.Associate(loaded, func(ws *Workspace) (uuid.UUID, *Workspace) {
		return ws.ID, ws
	})
	return nil
}

func (m *Manager) backendConfig(ws *Workspace) (string, engines.BackendConfig, error) {
	name := ws.Backend()
	cfg, ok := m.opts.Backends[name]
	if !ok {
		return "", cfg, fmt.Errorf("%w: %q", engines.ErrUnknownBackend, name)
	}
	if model := ws.Model(); model != "" {
		cfg.Model = model
	}
	return name + "/" + cfg.Model, cfg, nil
}

// Backend returns the engine serving ws, creating it on first use.
func (m *Manager) Backend(ws *Workspace) (engines.LLM, error) {
	key, cfg, err := m.backendConfig(ws)
	if err != nil {
		return nil, err
	}

	m.llmMu.Lock()
	defer m.llmMu.Unlock()
	return m.backendLocked(key, cfg)
}

func (m *Manager) backendLocked(key string, cfg engines.BackendConfig) (engines.LLM, error) {
	if llm, ok := m.llms[key]; ok {
		return llm, nil
	}
	llm, err := m.opts.Registry.New(cfg)
	if err != nil {
		return nil, err
	}
	m.llms[key] = llm
	return llm, nil
}

// Embedder returns the embedder for ws. The backend embeds only when it can
// and its embedding_dimensions match the memory dimension; the fallback
// embedder serves every other workspace.
func (m *Manager) Embedder(ws *Workspace) (memory.TextEmbedder, error) {
	key, cfg, err := m.backendConfig(ws)
	if err != nil {
		return nil, err
	}
	if cfg.EmbeddingDimensions != m.opts.MemoryDimension {
		return m.opts.Embedder, nil
	}

	m.llmMu.Lock()
	defer m.llmMu.Unlock()
	if embedder, ok := m.embedders[key]; ok {
		return embedder, nil
	}
	llm, err := m.backendLocked(key, cfg)
	if err != nil {
		return nil, err
	}
	e, ok := llm.(engines.Embedder)
	if !ok {
		return m.opts.Embedder, nil
	}
	var embedder memory.TextEmbedder = backendEmbedder{embedder: e, dimension: m.opts.MemoryDimension}
	if m.opts.EmbeddingCache > 0 {
		cached, err := memory.NewCachedEmbedder(embedder, m.opts.EmbeddingCache)
		if err != nil {
			return nil, err
		}
		embedder = cached
	}
	m.embedders[key] = embedder
	return embedder, nil
}

// Close releases the embedding caches.
func (m *Manager) Close() {
	m.llmMu.Lock()
	defer m.llmMu.Unlock()
	for key, embedder := range m.embedders {
		if cached, ok := embedder.(*memory.CachedEmbedder); ok {
			cached.Close()
		}
		delete(m.embedders, key)
	}
}

// backendEmbedder reports every backend failure as a missing embedding so
// the chat turn can go on without memory.
type backendEmbedder struct {
	embedder  engines.Embedder
	dimension int
}

func (b backendEmbedder) Embed(text string) ([]float32, error) {
	vector, err := b.embedder.Embed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", memory.ErrEmbeddingUnavailable, err)
	}
	if len(vector) != b.dimension {
		return nil, fmt.Errorf("%w: backend returned %d dimensions, memory holds %d",
			memory.ErrEmbeddingUnavailable, len(vector), b.dimension)
	}
	return vector, nil
}

// Send runs one chat turn in the workspace and returns the reply.
func (m *Manager) Send(idOrName, text string) (*engines.ChatMessage, error) {
	ws, err := m.Get(idOrName)
	if err != nil {
		return nil, err
	}
	llm, err := m.Backend(ws)
	if err != nil {
		return nil, err
	}

	mode, _ := ws.Setting(MemoryModeSetting)
	var (
		mem        memory.Memory
		summarised *memory.SummarisedMemory
	)
	switch mode {
	case "", MemoryModeVector:
		embedder, err := m.Embedder(ws)
		if err != nil {
			return nil, err
		}
		mem = memory.NewVectorstoreMemory(embedder, ws.Vectorstore(), m.opts.HistoryLimit, memory.WithTopK(m.opts.TopK))
	case MemoryModeSummarised:
		summarised = memory.NewSummarisedMemory(m.opts.HistoryLimit, llm)
		if state, ok := ws.Setting(MemoryStateSetting); ok {
			summarised.SetState(state)
		}
		mem = summarised
	default:
		return nil, fmt.Errorf("%w: unknown %s %q", engines.ErrInvalidConfig, MemoryModeSetting, mode)
	}

	if err := mem.AddPrompt(&engines.ChatPrompt{History: m.openingHistory(ws)}); err != nil {
		return nil, err
	}
	userMsg := &engines.ChatMessage{Role: engines.ConvRoleUser, Text: text}
	prompt, err := mem.PromptWithContext(userMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	reply, err := llm.Chat(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to chat in %s: %w", ws.Name(), err)
	}
	if reply == nil || reply.Text == "" {
		return nil, fmt.Errorf("failed to chat in %s: %w", ws.Name(), engines.ErrEmptyResponse)
	}
	reply.Role = engines.ConvRoleAssistant
	ws.AppendHistory(userMsg, reply)

	logger := log.WithField("workspace", ws.Name())
	if summarised != nil {
		if err := summarised.Summarise(userMsg, reply); err != nil {
			logger.WithError(err).Warn("memory state not updated")
		} else {
			ws.SetSetting(MemoryStateSetting, summarised.State())
		}
		return reply, nil
	}
	if err := mem.Add(reply); err != nil {
		logger.WithError(err).Warn("reply not remembered")
	}
	return reply, nil
}

func (m *Manager) openingHistory(ws *Workspace) []*engines.ChatMessage {
	var history []*engines.ChatMessage
	if system, ok := ws.Setting(SystemPromptSetting); ok && system != "" {
		history = append(history, &engines.ChatMessage{Role: engines.ConvRoleSystem, Text: system})
	}
	past := ws.History()
	if len(past) > m.opts.HistoryLimit {
		past = past[len(past)-m.opts.HistoryLimit:]
	}
	return append(history, past...)
}

// Remember embeds text with the workspace embedder and stores it.
func (m *Manager) Remember(idOrName, text string) (uint64, error) {
	ws, err := m.Get(idOrName)
	if err != nil {
		return 0, err
	}
	embedder, err := m.Embedder(ws)
	if err != nil {
		return 0, err
	}
	vector, err := embedder.Embed(text)
	if err != nil {
		return 0, err
	}
	return ws.Remember(vector, text)
}

// Query returns the k memories closest to text.
func (m *Manager) Query(idOrName, text string, k int) ([]memory.Match, error) {
	ws, err := m.Get(idOrName)
	if err != nil {
		return nil, err
	}
	embedder, err := m.Embedder(ws)
	if err != nil {
		return nil, err
	}
	vector, err := embedder.Embed(text)
	if err != nil {
		return nil, err
	}
	return ws.Recall(vector, k)
}
