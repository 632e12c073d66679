// Package sluice provides rsync-style incremental file synchronization as
// three streaming pipelines: signature generation (fingerprint a basis
// file), delta generation (describe new content against a signature), and
// patch application (rebuild the new content from basis + delta). All three
// run in bounded memory over files, in-memory buffers or live connections;
// see the stream package for the chunk-at-a-time driver and the framing
// package for carrying chunks over a raw socket.
package sluice

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/itchio/headway/state"
	"github.com/pkg/errors"

	"github.com/quayside/sluice/engine"
	"github.com/quayside/sluice/engine/native"
	"github.com/quayside/sluice/stream"
)

// Signature formats, re-exported from the native engine.
const (
	FormatMD4    = native.FormatMD4
	FormatBlake2 = native.FormatBlake2
)

// Config carries the knobs shared by all pipelines. It is a value: create
// one, hand it around by copy, never mutate it after construction. The zero
// value is usable and means "all defaults".
type Config struct {
	// BufferSize is the I/O granularity. It also bounds how far ahead delta
	// matching can look within one step. Zero means 64 KiB.
	BufferSize int
	// BlockLength is the signature block length. Zero lets the engine pick
	// one from the source size.
	BlockLength uint32
	// StrongLength truncates the strong hash stored per block. Zero means
	// the full hash for the chosen format.
	StrongLength uint32
	// Format selects the checksum/hash family embedded in signatures. Zero
	// means the engine default.
	Format engine.Magic
	// Engine overrides the transform engine. Nil means the native one.
	// Tests inject counting stubs here.
	Engine engine.Engine
	// Consumer receives progress and debug messages. May be nil.
	Consumer *state.Consumer
}

// minBufferSize keeps windows large enough that engine steps can always
// make progress on a full record.
const minBufferSize = 1024

// Validate checks the configuration. Zero values pass (they mean "auto").
func (c Config) Validate() error {
	if c.BufferSize != 0 {
		if err := validation.Validate(c.BufferSize, validation.Min(minBufferSize)); err != nil {
			return errors.WithMessage(ErrInsufficientBuffer, "BufferSize: "+err.Error())
		}
	}
	return errors.WithStack(validation.ValidateStruct(&c,
		validation.Field(&c.StrongLength, validation.Max(uint32(64))),
	))
}

func (c Config) engine() engine.Engine {
	if c.Engine != nil {
		return c.Engine
	}
	return native.New()
}

func (c Config) consumer() *state.Consumer {
	if c.Consumer != nil {
		return c.Consumer
	}
	return &state.Consumer{}
}

func (c Config) bufferSize() int {
	if c.BufferSize == 0 {
		return stream.DefaultBufferSize
	}
	return c.BufferSize
}

// deltaBufferSize sizes the delta pipeline's windows. Delta computation
// benefits from a longer run of input per step, so it gets larger windows
// than the other pipelines.
func (c Config) deltaBufferSize() int {
	return 2 * c.bufferSize()
}
