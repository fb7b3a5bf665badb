package cluster

import "errors"

var (
	ErrTooFewSamples    = errors.New("cluster: too few samples")
	ErrShapeMismatch    = errors.New("cluster: shape mismatch")
	ErrUnknownAlgorithm = errors.New("cluster: unknown algorithm")
)
