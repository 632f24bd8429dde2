package memory

import (
	"fmt"
	"slices"

	"github.com/RCFilm/AiRC-LLM/vectorindex"
	"github.com/samber/lo"
)

// Match is one retrieved memory.
type Match struct {
	Label    uint64
	Text     string
	Distance float32
}

// Store maps the labels of a vector index to the texts they were embedded
// from. Label i always refers to the i-th added text.
//
// A Store is not safe for concurrent use. Add, Load, LoadIndex, Rebuild and
// Reconcile need exclusive access; queries and saves may run concurrently
// with each other.
type Store struct {
	dimension   int
	index       *vectorindex.Index
	texts       []string
	compression Compression
	quarantined bool
}

func NewStore(dimension, capacity int, optFns ...func(o *vectorindex.Options)) (*Store, error) {
	index, err := vectorindex.New(dimension, capacity, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory index: %w", err)
	}
	return &Store{
		dimension:   dimension,
		index:       index,
		compression: CompressionZSTD,
	}, nil
}

// Add stores text under the next free label and returns it.
func (s *Store) Add(embedding []float32, text string) (uint64, error) {
	if s.quarantined {
		return 0, fmt.Errorf("failed to add memory: %w", ErrInconsistentState)
	}
	label := uint64(len(s.texts))
	if err := s.index.Insert(embedding, label); err != nil {
		return 0, fmt.Errorf("failed to add memory: %w", err)
	}
	s.texts = append(s.texts, text)
	return label, nil
}

// QueryNearest returns the text closest to q. The boolean is false when the
// store holds no records.
func (s *Store) QueryNearest(q []float32) (string, bool, error) {
	if s.index.Len() == 0 {
		return "", false, nil
	}
	matches, err := s.QueryKNearest(q, 1)
	if err != nil {
		return "", false, err
	}
	if len(matches) == 0 {
		return "", false, nil
	}
	return matches[0].Text, true, nil
}

func (s *Store) QueryKNearest(q []float32, k int) ([]Match, error) {
	if s.index.Len() == 0 {
		return []Match{}, nil
	}
	neighbors, err := s.index.QueryKNearest(q, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query memory: %w", err)
	}
	matches := make([]Match, len(neighbors))
	for i, n := range neighbors {
		matches[i] = Match{
			Label:    n.Label,
			Text:     s.text(n.Label),
			Distance: n.Distance,
		}
	}
	return matches, nil
}

func (s *Store) text(label uint64) string {
	if label >= uint64(len(s.texts)) {
		return ""
	}
	return s.texts[label]
}

func (s *Store) Count() int { return s.index.Len() }

func (s *Store) Dimension() int { return s.dimension }

func (s *Store) Capacity() int { return s.index.Capacity() }

// Consistent is false after LoadIndex was handed a text sequence that does
// not match the index.
func (s *Store) Consistent() bool { return !s.quarantined }

func (s *Store) Texts() []string { return slices.Clone(s.texts) }

func (s *Store) Embedding(label uint64) ([]float32, bool) {
	return s.index.Vector(label)
}

// SetCompression selects the encoding of the next snapshot.
func (s *Store) SetCompression(c Compression) { s.compression = c }

// SaveIndex writes only the index. The texts are expected to be persisted by
// the caller and handed back to LoadIndex.
func (s *Store) SaveIndex(path string) error {
	if err := s.index.SaveToFile(path); err != nil {
		return fmt.Errorf("failed to save memory index: %w", err)
	}
	return nil
}

// LoadIndex replaces the index with the one at path and adopts texts as the
// label to text mapping. When the counts differ the state is still loaded but
// the store is quarantined: queries keep working, Add fails until Reconcile
// or a consistent load.
func (s *Store) LoadIndex(path string, texts []string) error {
	index, err := s.emptyIndex(s.index.Capacity())
	if err != nil {
		return err
	}
	if err := index.LoadFromFile(path); err != nil {
		return fmt.Errorf("failed to load memory index: %w", err)
	}
	if err := checkLabels(index); err != nil {
		return err
	}

	s.index = index
	s.texts = slices.Clone(texts)
	s.quarantined = index.Len() != len(texts)
	if s.quarantined {
		return fmt.Errorf("%w: index holds %d records, %d texts supplied",
			ErrInconsistentState, index.Len(), len(texts))
	}
	return nil
}

// Reconcile truncates the index and the texts to their common prefix and
// lifts the quarantine.
func (s *Store) Reconcile() error {
	if !s.quarantined {
		return nil
	}
	n := min(s.index.Len(), len(s.texts))
	if n < s.index.Len() {
		index, err := s.rebuiltIndex(s.index.Capacity(), n)
		if err != nil {
			return err
		}
		s.index = index
	}
	s.texts = s.texts[:n]
	s.quarantined = false
	return nil
}

// Rebuild re-creates the index with a new capacity, inserting every record
// again in label order.
func (s *Store) Rebuild(capacity int) error {
	if s.quarantined {
		return fmt.Errorf("failed to rebuild memory: %w", ErrInconsistentState)
	}
	if capacity < s.Count() {
		return fmt.Errorf("%w: capacity %d is below the %d stored records", ErrConfiguration, capacity, s.Count())
	}
	index, err := s.rebuiltIndex(capacity, s.index.Len())
	if err != nil {
		return err
	}
	s.index = index
	return nil
}

func (s *Store) emptyIndex(capacity int) (*vectorindex.Index, error) {
	opts := s.index.Options()
	index, err := vectorindex.New(s.dimension, capacity, func(o *vectorindex.Options) { *o = opts })
	if err != nil {
		return nil, fmt.Errorf("failed to create memory index: %w", err)
	}
	return index, nil
}

func (s *Store) rebuiltIndex(capacity, n int) (*vectorindex.Index, error) {
	index, err := s.emptyIndex(capacity)
	if err != nil {
		return nil, err
	}
	for label := uint64(0); label < uint64(n); label++ {
		vector, _ := s.index.Vector(label)
		if err := index.Insert(vector, label); err != nil {
			return nil, fmt.Errorf("failed to re-insert record %d: %w", label, err)
		}
	}
	return index, nil
}

// checkLabels verifies that the index holds labels 0..n-1 in insertion order.
func checkLabels(index *vectorindex.Index) error {
	for i, label := range index.Labels() {
		if label != uint64(i) {
			return fmt.Errorf("%w: record %d carries label %d", ErrCorruptIndexFile, i, label)
		}
	}
	return nil
}

// Store implements Vectorstore.
func (s *Store) Store(key []float32, value string) error {
	_, err := s.Add(key, value)
	return err
}

// FindNearest implements Vectorstore.
func (s *Store) FindNearest(key []float32, k int) ([]string, error) {
	matches, err := s.QueryKNearest(key, k)
	if err != nil {
		return nil, err
	}
	return lo.Map(matches, func(m Match, _ int) string { return m.Text }), nil
}
