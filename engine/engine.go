// Package engine defines the contract between the streaming drivers and a
// transform engine: an incremental codec that turns buffer-at-a-time input
// into signature, delta, or patched output. The reference implementation
// lives in engine/native; tests substitute their own.
package engine

import (
	"fmt"
	"io"
)

// Result is the outcome of a single transform step. Values below
// firstFailure report progress, everything else is fatal to the job.
type Result int

const (
	// Done means the job has completed. No further steps are expected.
	Done Result = 0
	// Blocked means the engine needs another step before it can produce
	// more output, typically because the output window was too small.
	Blocked Result = 1
	// Running means the step made progress and the job should continue.
	Running Result = 2
)

const (
	firstFailure Result = 100

	// CodeIO means a read against an engine-held resource (such as the
	// patch basis) failed. Jobs that can report it also expose the
	// underlying error via an `Err() error` method.
	CodeIO Result = 100
	// CodeInputEnded means the input stream ended mid-record.
	CodeInputEnded Result = 101
	// CodeBadMagic means the stream started with an unrecognized magic
	// number.
	CodeBadMagic Result = 102
	// CodeCorrupt means the stream was recognized but is malformed.
	CodeCorrupt Result = 103
	// CodeInternal means the engine violated one of its own invariants.
	CodeInternal Result = 110
	// CodeParam means a job was created with unusable parameters.
	CodeParam Result = 111
)

// Progress returns true for the recognized progress values (Done, Blocked,
// Running). Any other result is a failure code.
func (r Result) Progress() bool {
	return r < firstFailure
}

func (r Result) String() string {
	switch r {
	case Done:
		return "done"
	case Blocked:
		return "blocked"
	case Running:
		return "running"
	case CodeIO:
		return "i/o error"
	case CodeInputEnded:
		return "input ended early"
	case CodeBadMagic:
		return "bad magic number"
	case CodeCorrupt:
		return "corrupt stream"
	case CodeInternal:
		return "internal error"
	case CodeParam:
		return "bad parameters"
	default:
		return fmt.Sprintf("unknown result (%d)", int(r))
	}
}

// Job is one run of the engine against a single logical stream.
//
// Step performs one bounded unit of work: it may consume bytes from in,
// produce bytes into out, and reports how many of each along with a Result.
// eof tells the engine that in holds the final bytes of the stream. Step
// never blocks and never retains in or out.
//
// Close releases the job's resources. It is idempotent and must be called
// exactly once on every exit path, including abandonment.
type Job interface {
	Step(in []byte, out []byte, eof bool) (consumed int, produced int, result Result)
	Close() error
}

// LoadJob is a Job that parses serialized signature bytes. Once the job
// reports Done, Signature returns the loaded structure. Ownership of the
// signature transfers to the caller; closing the job does not free it.
type LoadJob interface {
	Job
	Signature() (Signature, error)
}

// Signature is a loaded basis fingerprint.
//
// BuildHashTable performs the one-time indexing pass required before the
// signature can seed a delta job. It is not safe for concurrent use; callers
// serialize it (see sluice.SignatureHandle). Free releases the structure:
// any use afterwards fails, it does not crash.
type Signature interface {
	BuildHashTable() error
	Free() error
}

// Magic selects the checksum/hash algorithm family embedded in a signature.
type Magic uint32

// SignatureParams carries the concrete parameters for one signature job.
// Zero values for Format, BlockLength and StrongLength mean "let the engine
// choose"; NegotiateSignatureParams resolves them.
type SignatureParams struct {
	Format       Magic
	BlockLength  uint32
	StrongLength uint32
	// FileSize is the total size of the source. The signature encodes it so
	// that a delta job can treat the trailing short block correctly.
	FileSize int64
}

// Engine creates jobs. Implementations must allow independent jobs to run
// concurrently; a single Job is always driven from one goroutine.
type Engine interface {
	// NegotiateSignatureParams fills in the auto-selected fields of p based
	// on the source size. A negative size means the size could not be
	// determined, which is an error.
	NegotiateSignatureParams(sourceSize int64, p *SignatureParams) error

	SignatureJob(p SignatureParams) (Job, error)
	LoadSignatureJob() (LoadJob, error)
	// DeltaJob requires a signature whose hash table has been built.
	DeltaJob(sig Signature) (Job, error)
	// PatchJob consults basis at arbitrary offsets while applying a delta.
	PatchJob(basis io.ReaderAt) (Job, error)
}
