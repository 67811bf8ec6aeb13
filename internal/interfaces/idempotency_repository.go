package interfaces

import "context"

// IdempotencyRepository stores serialized operation results keyed by a
// caller-supplied idempotency key, so a repeated request returns the stored
// payload verbatim instead of redoing its side effects. Claiming a key before
// doing the work goes through Reserve, which is atomic: of two concurrent
// callers with the same key exactly one gets to perform the work.
//
//go:generate mockery --name IdempotencyRepository --output ./mocks --outpkg mocks --case=underscore
type IdempotencyRepository interface {
	// Get returns the stored payload for the key.
	// Returns ErrNotFound if the key has not been seen and ErrPending if the
	// key is reserved by an operation that has not stored its result yet.
	Get(ctx context.Context, key string) ([]byte, error)

	// Reserve atomically claims the key (SETNX). Returns false when another
	// caller already holds it, reserved or completed.
	Reserve(ctx context.Context, key string) (bool, error)

	// Put stores the payload under the key, replacing the reservation.
	Put(ctx context.Context, key string, payload []byte) error

	// Release drops the key so a retry can redo the work after a failure.
	Release(ctx context.Context, key string) error
}
