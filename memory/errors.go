package memory

import (
	"errors"

	"github.com/RCFilm/AiRC-LLM/vectorindex"
)

var (
	ErrConfiguration     = vectorindex.ErrConfiguration
	ErrDimensionMismatch = vectorindex.ErrDimensionMismatch
	ErrCapacityExceeded  = vectorindex.ErrCapacityExceeded
	ErrCorruptIndexFile  = vectorindex.ErrCorruptIndexFile

	// ErrEmbeddingUnavailable is wrapped by embedders that could not produce
	// a vector for a text.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrInconsistentState is returned by mutations while the index and the
	// texts disagree on the number of records.
	ErrInconsistentState = errors.New("memory index and texts are out of sync")
)
