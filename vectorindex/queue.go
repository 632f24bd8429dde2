package vectorindex

import "container/heap"

type candidate struct {
	id       uint32
	distance float32
}

// closer orders by distance, then by node id so equal distances pop in insertion order.
func closer(a, b candidate) bool {
	if a.distance != b.distance {
		return a.distance < b.distance
	}
	return a.id < b.id
}

// candidateQueue is a min-heap by default and a max-heap when farthestFirst is set.
type candidateQueue struct {
	items         []candidate
	farthestFirst bool
}

func (q *candidateQueue) Len() int { return len(q.items) }

func (q *candidateQueue) Less(i, j int) bool {
	if q.farthestFirst {
		return closer(q.items[j], q.items[i])
	}
	return closer(q.items[i], q.items[j])
}

func (q *candidateQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *candidateQueue) Push(x any) { q.items = append(q.items, x.(candidate)) }

func (q *candidateQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]
	return item
}

func (q *candidateQueue) top() candidate { return q.items[0] }

func (q *candidateQueue) push(c candidate) { heap.Push(q, c) }

func (q *candidateQueue) pop() candidate { return heap.Pop(q).(candidate) }
