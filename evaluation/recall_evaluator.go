package evaluation

import (
	"math/rand"
	"sort"

	"github.com/RCFilm/AiRC-LLM/memory"
	"github.com/samber/lo"
)

// RecallCase is one nearest neighbour query against a memory store.
type RecallCase struct {
	Query []float32
	K     int
}

type recallTester struct {
	store *memory.Store
}

// NewRecallTester answers recall cases from the store index. The store must
// not be mutated while an evaluation runs.
func NewRecallTester(store *memory.Store) Tester[RecallCase, []memory.Match] {
	return &recallTester{store: store}
}

func (t *recallTester) Test(test RecallCase) ([]memory.Match, error) {
	return t.store.QueryKNearest(test.Query, test.K)
}

// RecallAtK scores a result by the share of the exact k nearest labels it
// contains. The exact answer comes from a linear scan of the store.
func RecallAtK(store *memory.Store) GoodnessFunction[RecallCase, []memory.Match] {
	return func(test RecallCase, matches []memory.Match, err error) float64 {
		if err != nil {
			return 0
		}
		truth := ExactNearest(store, test.Query, test.K)
		if len(truth) == 0 {
			return 1
		}
		found := lo.Associate(matches, func(m memory.Match) (uint64, bool) { return m.Label, true })
		hits := len(lo.Filter(truth, func(label uint64, _ int) bool { return found[label] }))
		return float64(hits) / float64(len(truth))
	}
}

// ExactNearest returns the labels of the k records closest to q, ordered by
// distance and then label.
func ExactNearest(store *memory.Store, q []float32, k int) []uint64 {
	type candidate struct {
		label    uint64
		distance float64
	}
	candidates := make([]candidate, 0, store.Count())
	for label := uint64(0); label < uint64(store.Count()); label++ {
		vector, ok := store.Embedding(label)
		if !ok || len(vector) != len(q) {
			continue
		}
		var d float64
		for i := range q {
			diff := float64(vector[i]) - float64(q[i])
			d += diff * diff
		}
		candidates = append(candidates, candidate{label: label, distance: d})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].label < candidates[j].label
	})
	if k < len(candidates) {
		candidates = candidates[:max(k, 0)]
	}
	return lo.Map(candidates, func(c candidate, _ int) uint64 { return c.label })
}

// RandomCases draws n queries uniformly from [-1, 1]^dimension.
func RandomCases(dimension, n, k int, seed int64) []RecallCase {
	rng := rand.New(rand.NewSource(seed))
	cases := make([]RecallCase, n)
	for i := range cases {
		q := make([]float32, dimension)
		for j := range q {
			q[j] = rng.Float32()*2 - 1
		}
		cases[i] = RecallCase{Query: q, K: k}
	}
	return cases
}
