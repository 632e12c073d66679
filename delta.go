package sluice

import (
	"io"
	"os"

	"github.com/itchio/screw"
	"github.com/pkg/errors"

	"github.com/quayside/sluice/engine"
	"github.com/quayside/sluice/stream"
)

// NewDelta returns a lazy stream of delta bytes describing how source (the
// new content) differs from the basis fingerprinted by handle. The
// handle's one-time hash table build is triggered on the first pull if it
// has not happened yet; any number of delta runs may share one handle
// concurrently.
func NewDelta(cfg Config, handle *SignatureHandle, source io.Reader) *stream.Stream {
	start := func(s *stream.Stream) (engine.Job, io.Reader, error) {
		return deltaStart(cfg, handle, source)
	}
	return stream.New(start, deltaOptions(cfg))
}

// DeltaFile is NewDelta for a file path. A missing file is reported as
// ErrSourceNotFound before any resource is created.
func DeltaFile(cfg Config, handle *SignatureHandle, path string) (*stream.Stream, error) {
	if _, err := screw.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WithMessage(ErrSourceNotFound, path)
		}
		return nil, errors.Wrap(err, "inspecting delta source")
	}

	start := func(s *stream.Stream) (engine.Job, io.Reader, error) {
		f, err := screw.Open(path)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening delta source")
		}
		// The stream registers its source for closing; f must not be
		// added again or teardown closes it twice.
		return deltaStart(cfg, handle, f)
	}
	return stream.New(start, deltaOptions(cfg)), nil
}

// ComputeDelta runs the whole delta pipeline and returns the concatenated
// bytes. Only for deltas known to fit in memory.
func ComputeDelta(cfg Config, handle *SignatureHandle, source io.Reader) ([]byte, error) {
	return NewDelta(cfg, handle, source).Drain()
}

func deltaOptions(cfg Config) stream.Options {
	return stream.Options{
		Stage: stream.StageDelta,
		// Delta matching looks ahead across buffer boundaries; larger
		// windows mean fewer, longer steps.
		InputSize:  cfg.deltaBufferSize(),
		OutputSize: cfg.deltaBufferSize(),
	}
}

func deltaStart(cfg Config, handle *SignatureHandle, source io.Reader) (engine.Job, io.Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if err := handle.build(); err != nil {
		return nil, nil, err
	}

	var job engine.Job
	err := handle.withSignature(func(sig engine.Signature) error {
		j, err := cfg.engine().DeltaJob(sig)
		if err != nil {
			return errors.Wrap(err, "creating delta job")
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &lockedJob{handle: handle, job: job}, source, nil
}

// lockedJob routes every engine step through the handle's lock, so the
// engine never observes concurrent access to the shared signature. If the
// handle is released while a run is in flight, the run fails cleanly.
type lockedJob struct {
	handle *SignatureHandle
	job    engine.Job
	err    error
}

func (l *lockedJob) Step(in []byte, out []byte, eof bool) (int, int, engine.Result) {
	var consumed, produced int
	var result engine.Result
	err := l.handle.withSignature(func(engine.Signature) error {
		consumed, produced, result = l.job.Step(in, out, eof)
		return nil
	})
	if err != nil {
		l.err = err
		return 0, 0, engine.CodeInternal
	}
	return consumed, produced, result
}

// Err exposes the reason behind a failure code, if one is known.
func (l *lockedJob) Err() error {
	if l.err != nil {
		return l.err
	}
	if ej, ok := l.job.(interface{ Err() error }); ok {
		return ej.Err()
	}
	return nil
}

func (l *lockedJob) Close() error {
	return l.job.Close()
}
