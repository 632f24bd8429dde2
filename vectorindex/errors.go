package vectorindex

import "errors"

var (
	ErrConfiguration     = errors.New("invalid index configuration")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrCapacityExceeded  = errors.New("index capacity exceeded")
	ErrDuplicateLabel    = errors.New("label already in use")
	ErrCorruptIndexFile  = errors.New("corrupt index file")
)
