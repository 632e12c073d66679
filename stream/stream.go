// Package stream turns a one-shot transform engine job into a lazy,
// pull-based sequence of output chunks. The driver owns the job, an input
// window refilled from a data source, and an output buffer; each call to
// Next runs engine steps until a chunk is produced or the job completes.
// Stopping early is always safe: Close (or abandoning the stream and
// calling Close) releases the job and every registered resource.
package stream

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"github.com/quayside/sluice/engine"
	"github.com/quayside/sluice/window"
)

// DefaultBufferSize is used for both windows when an option is left zero.
const DefaultBufferSize = 64 * 1024

// stallLimit bounds how many consecutive steps may make no progress (no
// input consumed, no output produced) before the driver declares the engine
// wedged instead of spinning.
const stallLimit = 64

// StartFunc performs lazy initialization on the first call to Next: open
// and validate the source, negotiate engine parameters, create the job.
// Extra resources (files, sockets) should be registered on s with AddCloser
// so every exit path releases them.
type StartFunc func(s *Stream) (engine.Job, io.Reader, error)

// Options configures a driver run.
type Options struct {
	// Stage labels engine failures from this run, e.g. "delta".
	Stage string
	// InputSize and OutputSize are the window capacities. Zero means
	// DefaultBufferSize.
	InputSize  int
	OutputSize int
}

// Stream drives exactly one job from creation to completion. It is not
// safe for concurrent use; independent streams are fully independent.
type Stream struct {
	opts  Options
	start StartFunc

	job     engine.Job
	source  io.Reader
	in      *window.Window
	out     []byte
	closers []io.Closer

	started  bool
	eof      bool
	finished bool
	closed   bool
	err      error
}

// New creates a stream. Nothing happens (no files open, no job exists)
// until the first call to Next.
func New(start StartFunc, opts Options) *Stream {
	if opts.InputSize == 0 {
		opts.InputSize = DefaultBufferSize
	}
	if opts.OutputSize == 0 {
		opts.OutputSize = DefaultBufferSize
	}
	return &Stream{
		opts:  opts,
		start: start,
	}
}

// AddCloser registers a resource to release when the stream ends, errors
// out, or is abandoned. Closers run after the job is closed, in reverse
// registration order.
func (s *Stream) AddCloser(c io.Closer) {
	s.closers = append(s.closers, c)
}

// Next returns the next output chunk. The chunk aliases the stream's
// output buffer and is only valid until the following call. The sequence
// ends with io.EOF; any other error is terminal and resources are already
// released by the time it is returned.
func (s *Stream) Next() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.finished || s.closed {
		// The final chunk has been handed back (or the caller abandoned
		// the stream): release everything.
		if err := s.Close(); err != nil {
			return nil, s.fail(errors.Wrap(err, "releasing job"))
		}
		return nil, io.EOF
	}

	if !s.started {
		s.started = true
		job, source, err := s.start(s)
		if err != nil {
			s.Close()
			return nil, s.fail(err)
		}
		s.job = job
		s.source = source
		s.in = window.New(s.opts.InputSize)
		s.out = make([]byte, s.opts.OutputSize)
		if c, ok := source.(io.Closer); ok {
			s.AddCloser(c)
		}
	}

	stalled := 0
	emptyFills := 0
	for {
		if !s.eof && s.in.Len() < s.in.Cap() {
			// Fill compacts as needed and performs at most one read.
			n, err := s.in.Fill(s.source)
			if err == io.EOF {
				s.eof = true
			} else if err != nil {
				s.Close()
				return nil, s.fail(errors.Wrap(err, "reading source"))
			} else if n == 0 {
				// The io.Reader contract allows transient zero-length
				// reads; a source stuck on them is treated as ended.
				emptyFills++
				if emptyFills >= stallLimit {
					s.eof = true
				}
			} else {
				emptyFills = 0
			}
		}

		consumed, produced, result := s.job.Step(s.in.Pending(), s.out, s.eof)
		s.in.Consume(consumed)

		if !result.Progress() {
			err := s.engineError(result)
			s.Close()
			return nil, s.fail(err)
		}

		if produced > 0 {
			if result == engine.Done {
				s.finished = true
			}
			return s.out[:produced], nil
		}

		if result == engine.Done {
			if err := s.Close(); err != nil {
				return nil, s.fail(errors.Wrap(err, "releasing job"))
			}
			return nil, io.EOF
		}

		// No input consumed and none can be added: nothing will change
		// unless the engine moves, so bound the retries.
		if consumed == 0 && (s.eof || s.in.Spare() == 0) {
			stalled++
			if stalled >= stallLimit {
				err := errors.Errorf("%s engine stalled without finishing", s.opts.Stage)
				s.Close()
				return nil, s.fail(err)
			}
		} else {
			stalled = 0
		}
	}
}

// Drain pulls the rest of the stream and concatenates it into one buffer.
// Only sensible for output known to fit in memory.
func (s *Stream) Drain() ([]byte, error) {
	var buf bytes.Buffer
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
		buf.Write(chunk)
	}
}

// WriteTo streams every chunk to w, returning the number of bytes written.
// The sink error, if any, terminates the run with resources released.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		n, err := w.Write(chunk)
		total += int64(n)
		if err != nil {
			s.Close()
			return total, errors.Wrap(err, "writing output")
		}
	}
}

// Close releases the job and all registered resources. Idempotent; safe to
// call at any point, including mid-stream abandonment.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var first error
	if s.job != nil {
		if err := s.job.Close(); err != nil && first == nil {
			first = err
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// fail records a terminal error so later calls keep returning it.
func (s *Stream) fail(err error) error {
	s.err = err
	return err
}

func (s *Stream) engineError(code engine.Result) error {
	var cause error
	if ej, ok := s.job.(interface{ Err() error }); ok {
		cause = ej.Err()
	}
	return &EngineError{
		Stage: s.opts.Stage,
		Code:  code,
		cause: cause,
	}
}
