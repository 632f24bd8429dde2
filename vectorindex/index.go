// Package vectorindex implements a hierarchical navigable small world (HNSW)
// graph for nearest neighbour search over fixed dimension float32 vectors
// under the Euclidean metric.
//
// Every point carries a caller supplied label. Points are never updated or
// removed, and the number of points is bounded by the capacity given at
// construction. An Index is not safe for concurrent use: callers serialize
// Insert and ReadFrom against everything else.
package vectorindex

import (
	"fmt"
	"math"
	"math/rand"
	"slices"

	"github.com/bits-and-blooms/bitset"
)

// maxLevelCap bounds the layer a node can be assigned to.
const maxLevelCap = 16

// Options configures graph construction and search.
type Options struct {
	// M is the number of links a new node establishes per layer. Layer 0
	// keeps up to 2*M links per node.
	M int

	// EFConstruction is the size of the dynamic candidate list used while
	// inserting. Larger values build a better graph at a higher insert cost.
	EFConstruction int

	// EFSearch is the size of the dynamic candidate list used by queries.
	// The effective value is max(EFSearch, k).
	EFSearch int

	// Seed feeds the level generator, so a fixed insertion history always
	// produces the same graph.
	Seed int64
}

var DefaultOptions = Options{
	M:              16,
	EFConstruction: 200,
	EFSearch:       64,
	Seed:           42,
}

// Neighbor is a single query result.
type Neighbor struct {
	Label    uint64
	Distance float32
}

type node struct {
	label   uint64
	vector  []float32
	level   int
	friends [][]uint32
}

type Index struct {
	dimension  int
	capacity   int
	opts       Options
	mmax       int
	mmax0      int
	ml         float64
	rng        *rand.Rand
	nodes      []*node
	labels     map[uint64]uint32
	entryPoint uint32
	maxLevel   int
}

// New allocates an empty index for up to capacity points of the given
// dimension.
func New(dimension, capacity int, optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := validateConfig(dimension, capacity, opts); err != nil {
		return nil, err
	}
	return newIndex(dimension, capacity, opts), nil
}

func validateConfig(dimension, capacity int, opts Options) error {
	switch {
	case dimension <= 0:
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrConfiguration, dimension)
	case capacity <= 0:
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrConfiguration, capacity)
	case uint64(capacity) > math.MaxUint32:
		return fmt.Errorf("%w: capacity %d exceeds %d", ErrConfiguration, capacity, uint64(math.MaxUint32))
	case opts.M < 2:
		return fmt.Errorf("%w: M must be at least 2, got %d", ErrConfiguration, opts.M)
	case opts.EFConstruction < 1:
		return fmt.Errorf("%w: EFConstruction must be positive, got %d", ErrConfiguration, opts.EFConstruction)
	case opts.EFSearch < 1:
		return fmt.Errorf("%w: EFSearch must be positive, got %d", ErrConfiguration, opts.EFSearch)
	}
	return nil
}

func newIndex(dimension, capacity int, opts Options) *Index {
	return &Index{
		dimension: dimension,
		capacity:  capacity,
		opts:      opts,
		mmax:      opts.M,
		mmax0:     2 * opts.M,
		ml:        1 / math.Log(float64(opts.M)),
		rng:       rand.New(rand.NewSource(opts.Seed)),
		labels:    map[uint64]uint32{},
	}
}

func (idx *Index) Len() int { return len(idx.nodes) }

func (idx *Index) Dimension() int { return idx.dimension }

func (idx *Index) Capacity() int { return idx.capacity }

func (idx *Index) Options() Options { return idx.opts }

// Contains reports whether a point with the label exists.
func (idx *Index) Contains(label uint64) bool {
	_, ok := idx.labels[label]
	return ok
}

// Vector returns a copy of the vector stored under label.
func (idx *Index) Vector(label uint64) ([]float32, bool) {
	id, ok := idx.labels[label]
	if !ok {
		return nil, false
	}
	return slices.Clone(idx.nodes[id].vector), true
}

// Labels returns all labels in insertion order.
func (idx *Index) Labels() []uint64 {
	labels := make([]uint64, len(idx.nodes))
	for i, n := range idx.nodes {
		labels[i] = n.label
	}
	return labels
}

// Insert adds one point. The index is left untouched when an error is
// returned.
func (idx *Index) Insert(vector []float32, label uint64) error {
	if len(vector) != idx.dimension {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, idx.dimension, len(vector))
	}
	if len(idx.nodes) >= idx.capacity {
		return fmt.Errorf("%w: all %d slots are used", ErrCapacityExceeded, idx.capacity)
	}
	if idx.Contains(label) {
		return fmt.Errorf("%w: %d", ErrDuplicateLabel, label)
	}

	level := idx.randomLevel()
	n := &node{
		label:   label,
		vector:  slices.Clone(vector),
		level:   level,
		friends: make([][]uint32, level+1),
	}
	id := uint32(len(idx.nodes))
	idx.nodes = append(idx.nodes, n)
	idx.labels[label] = id

	if id == 0 {
		idx.entryPoint = 0
		idx.maxLevel = level
		return nil
	}

	ep := candidate{id: idx.entryPoint, distance: squaredL2(n.vector, idx.nodes[idx.entryPoint].vector)}
	for l := idx.maxLevel; l > level; l-- {
		ep = idx.greedyClosest(n.vector, ep, l)
	}

	for l := min(level, idx.maxLevel); l >= 0; l-- {
		candidates := idx.searchLayer(n.vector, ep, idx.opts.EFConstruction, l)
		selected := idx.selectNeighbors(candidates, idx.mmax)
		n.friends[l] = make([]uint32, 0, len(selected))
		for _, c := range selected {
			n.friends[l] = append(n.friends[l], c.id)
		}
		for _, c := range selected {
			idx.link(c.id, id, l)
		}
		ep = candidates[0]
	}

	if level > idx.maxLevel {
		idx.entryPoint = id
		idx.maxLevel = level
	}
	return nil
}

// QueryKNearest returns up to k points ordered by ascending Euclidean
// distance to vector. Equal distances are ordered by label.
func (idx *Index) QueryKNearest(vector []float32, k int) ([]Neighbor, error) {
	if len(vector) != idx.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, idx.dimension, len(vector))
	}
	if k <= 0 || len(idx.nodes) == 0 {
		return []Neighbor{}, nil
	}

	ep := candidate{id: idx.entryPoint, distance: squaredL2(vector, idx.nodes[idx.entryPoint].vector)}
	for l := idx.maxLevel; l > 0; l-- {
		ep = idx.greedyClosest(vector, ep, l)
	}
	found := idx.searchLayer(vector, ep, max(idx.opts.EFSearch, k), 0)

	results := make([]Neighbor, len(found))
	for i, c := range found {
		results[i] = Neighbor{
			Label:    idx.nodes[c.id].label,
			Distance: float32(math.Sqrt(float64(c.distance))),
		}
	}
	slices.SortFunc(results, func(a, b Neighbor) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		case a.Label < b.Label:
			return -1
		case a.Label > b.Label:
			return 1
		}
		return 0
	})
	return results[:min(k, len(results))], nil
}

func (idx *Index) randomLevel() int {
	level := int(math.Floor(-math.Log(1-idx.rng.Float64()) * idx.ml))
	return min(level, maxLevelCap)
}

// greedyClosest walks one layer towards q until no neighbour is closer.
func (idx *Index) greedyClosest(q []float32, ep candidate, level int) candidate {
	for changed := true; changed; {
		changed = false
		for _, friend := range idx.nodes[ep.id].friends[level] {
			c := candidate{id: friend, distance: squaredL2(q, idx.nodes[friend].vector)}
			if closer(c, ep) {
				ep = c
				changed = true
			}
		}
	}
	return ep
}

// searchLayer returns up to ef nodes of one layer closest to q, closest first.
func (idx *Index) searchLayer(q []float32, ep candidate, ef int, level int) []candidate {
	var visited bitset.BitSet
	visited.Set(uint(ep.id))

	frontier := &candidateQueue{}
	found := &candidateQueue{farthestFirst: true}
	frontier.push(ep)
	found.push(ep)

	for frontier.Len() > 0 {
		current := frontier.pop()
		if closer(found.top(), current) {
			break
		}
		for _, friend := range idx.nodes[current.id].friends[level] {
			if visited.Test(uint(friend)) {
				continue
			}
			visited.Set(uint(friend))

			c := candidate{id: friend, distance: squaredL2(q, idx.nodes[friend].vector)}
			if found.Len() < ef || closer(c, found.top()) {
				frontier.push(c)
				found.push(c)
				if found.Len() > ef {
					found.pop()
				}
			}
		}
	}

	result := make([]candidate, found.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = found.pop()
	}
	return result
}

// selectNeighbors keeps candidates that are closer to the base point than to
// any neighbour selected so far, then tops the selection up with the closest
// rejected ones. candidates must be sorted closest first.
func (idx *Index) selectNeighbors(candidates []candidate, m int) []candidate {
	if len(candidates) <= m {
		return candidates
	}
	selected := make([]candidate, 0, m)
	var rejected []candidate
	for _, c := range candidates {
		if len(selected) >= m {
			break
		}
		keep := true
		for _, s := range selected {
			if squaredL2(idx.nodes[c.id].vector, idx.nodes[s.id].vector) < c.distance {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c)
		} else {
			rejected = append(rejected, c)
		}
	}
	for _, c := range rejected {
		if len(selected) >= m {
			break
		}
		selected = append(selected, c)
	}
	return selected
}

// link adds a directed edge and shrinks the neighbour list when it outgrows
// the per-layer limit.
func (idx *Index) link(from, to uint32, level int) {
	n := idx.nodes[from]
	n.friends[level] = append(n.friends[level], to)

	limit := idx.mmax
	if level == 0 {
		limit = idx.mmax0
	}
	if len(n.friends[level]) <= limit {
		return
	}

	candidates := make([]candidate, len(n.friends[level]))
	for i, friend := range n.friends[level] {
		candidates[i] = candidate{id: friend, distance: squaredL2(n.vector, idx.nodes[friend].vector)}
	}
	slices.SortFunc(candidates, func(a, b candidate) int {
		switch {
		case closer(a, b):
			return -1
		case closer(b, a):
			return 1
		}
		return 0
	})

	selected := idx.selectNeighbors(candidates, limit)
	friends := make([]uint32, len(selected))
	for i, c := range selected {
		friends[i] = c.id
	}
	n.friends[level] = friends
}
