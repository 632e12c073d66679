package sluice

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/quayside/sluice/engine"
)

// SignatureHandle owns a loaded signature and mediates all access to it.
// The handle may be shared across any number of concurrent delta runs: the
// one-time hash table build and every engine call against the signature
// happen under its lock, so the engine itself never sees concurrency.
type SignatureHandle struct {
	mu       sync.Mutex
	sig      engine.Signature
	built    bool
	released bool
}

func newSignatureHandle(sig engine.Signature) *SignatureHandle {
	return &SignatureHandle{sig: sig}
}

// withSignature runs fn with exclusive access to the signature. Using a
// handle after Release fails with ErrInvalidState.
func (h *SignatureHandle) withSignature(fn func(engine.Signature) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released || h.sig == nil {
		return errors.WithStack(ErrInvalidState)
	}
	return fn(h.sig)
}

// build performs the one-time hash table construction. Safe to call from
// any number of delta runs; only the first does the work.
func (h *SignatureHandle) build() error {
	return h.withSignature(func(sig engine.Signature) error {
		if h.built {
			return nil
		}
		if err := sig.BuildHashTable(); err != nil {
			return errors.Wrap(err, "building signature hash table")
		}
		h.built = true
		return nil
	})
}

// Release frees the underlying signature. Idempotent; delta runs started
// before the release finish or fail cleanly with ErrInvalidState, they do
// not crash.
func (h *SignatureHandle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	h.released = true
	sig := h.sig
	h.sig = nil
	return errors.Wrap(sig.Free(), "freeing signature")
}
