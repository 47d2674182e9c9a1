package embedstore

import (
	"errors"
	"fmt"

	"github.com/melodex/embedstore/annindex"
	"github.com/melodex/embedstore/blobstore"
	"github.com/melodex/embedstore/vecstore"
)

var (
	// ErrNotFound is returned by GetVector when the key exists in
	// neither tier.
	ErrNotFound = errors.New("vector not found")

	// ErrIndexMissing is returned by Search when the backbone has no
	// published index yet. Upsert some vectors and promote first.
	ErrIndexMissing = errors.New("no index published for backbone")

	// ErrUnknownBackbone is returned for operations on a backbone
	// that has never seen an upsert.
	ErrUnknownBackbone = errors.New("unknown backbone")

	// ErrPromotionConflict is returned when a promotion is requested
	// for a backbone that already has one in flight.
	ErrPromotionConflict = errors.New("promotion already in flight for backbone")

	// ErrZeroVector is returned when an upserted or queried vector
	// has zero norm and no cosine score can be defined for it.
	ErrZeroVector = errors.New("vector has zero norm")

	// ErrClosed is returned for operations on a closed store.
	ErrClosed = errors.New("store is closed")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Backbone string
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch for backbone %q: expected %d, got %d", e.Backbone, e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// PromotionError wraps a failure inside a promotion cycle, naming the
// stage that failed. Any stage failing before publish leaves both
// tiers and the index untouched.
type PromotionError struct {
	Backbone string
	Stage    string
	cause    error
}

func (e *PromotionError) Error() string {
	return fmt.Sprintf("promotion of backbone %q failed during %s: %v", e.Backbone, e.Stage, e.cause)
}

func (e *PromotionError) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	if errors.Is(err, annindex.ErrIndexMissing) {
		return fmt.Errorf("%w: %w", ErrIndexMissing, err)
	}
	if errors.Is(err, vecstore.ErrUnknownBackbone) {
		return fmt.Errorf("%w: %w", ErrUnknownBackbone, err)
	}
	if errors.Is(err, vecstore.ErrZeroVector) || errors.Is(err, annindex.ErrZeroQuery) {
		return fmt.Errorf("%w: %w", ErrZeroVector, err)
	}

	// Dimension normalization.
	var sdm *vecstore.ErrDimensionMismatch
	if errors.As(err, &sdm) {
		return &ErrDimensionMismatch{Backbone: sdm.Backbone, Expected: sdm.Expected, Actual: sdm.Actual, cause: err}
	}
	var idm *annindex.ErrDimensionMismatch
	if errors.As(err, &idm) {
		return &ErrDimensionMismatch{Backbone: idm.Backbone, Expected: idm.Expected, Actual: idm.Actual, cause: err}
	}

	return err
}
