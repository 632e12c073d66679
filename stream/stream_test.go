package stream_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside/sluice/engine"
	"github.com/quayside/sluice/stream"
)

// echoJob copies input to output and completes once it has seen eof and
// drained everything. It stands in for a real engine in driver tests.
type echoJob struct {
	closed int
}

func (j *echoJob) Step(in []byte, out []byte, eof bool) (int, int, engine.Result) {
	n := copy(out, in)
	if eof && n == len(in) {
		return n, n, engine.Done
	}
	if n == 0 && len(out) == 0 {
		return 0, 0, engine.Blocked
	}
	return n, n, engine.Running
}

func (j *echoJob) Close() error {
	j.closed++
	return nil
}

// stepFunc scripts arbitrary job behavior.
type stepFunc func(in []byte, out []byte, eof bool) (int, int, engine.Result)

type scriptedJob struct {
	step   stepFunc
	closed int
}

func (j *scriptedJob) Step(in []byte, out []byte, eof bool) (int, int, engine.Result) {
	return j.step(in, out, eof)
}

func (j *scriptedJob) Close() error {
	j.closed++
	return nil
}

type recordingCloser struct {
	name string
	log  *[]string
}

func (c *recordingCloser) Close() error {
	*c.log = append(*c.log, c.name)
	return nil
}

func TestStreamEchoesSource(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789abcdef"), 4096)
	job := &echoJob{}

	s := stream.New(func(s *stream.Stream) (engine.Job, io.Reader, error) {
		return job, bytes.NewReader(payload), nil
	}, stream.Options{Stage: "echo", InputSize: 1024, OutputSize: 768})

	result, err := s.Drain()
	require.NoError(t, err)
	assert.EqualValues(t, payload, result)
	assert.Equal(t, 1, job.closed)

	// The sequence stays ended.
	_, err = s.Next()
	assert.Equal(t, io.EOF, err)
}

func TestStreamStartIsLazy(t *testing.T) {
	started := false
	s := stream.New(func(s *stream.Stream) (engine.Job, io.Reader, error) {
		started = true
		return &echoJob{}, bytes.NewReader([]byte("hi")), nil
	}, stream.Options{})

	assert.False(t, started)
	_, err := s.Next()
	require.NoError(t, err)
	assert.True(t, started)
	require.NoError(t, s.Close())
}

func TestStreamStartFailure(t *testing.T) {
	boom := errors.New("no such basis")
	s := stream.New(func(s *stream.Stream) (engine.Job, io.Reader, error) {
		return nil, nil, boom
	}, stream.Options{})

	_, err := s.Next()
	assert.Equal(t, boom, errors.Cause(err))

	// Terminal errors are sticky.
	_, err2 := s.Next()
	assert.Equal(t, err, err2)
}

func TestStreamChunkWithDone(t *testing.T) {
	// An engine may hand back its last output in the same step that
	// reports Done. The chunk must still reach the caller, with cleanup
	// deferred to the following call.
	job := &scriptedJob{}
	job.step = func(in []byte, out []byte, eof bool) (int, int, engine.Result) {
		n := copy(out, "final")
		return len(in), n, engine.Done
	}

	s := stream.New(func(s *stream.Stream) (engine.Job, io.Reader, error) {
		return job, bytes.NewReader([]byte("x")), nil
	}, stream.Options{})

	chunk, err := s.Next()
	require.NoError(t, err)
	assert.EqualValues(t, []byte("final"), chunk)
	assert.Equal(t, 0, job.closed, "job must stay alive while the caller holds the chunk")

	_, err = s.Next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 1, job.closed)
}

func TestStreamEngineFailure(t *testing.T) {
	job := &scriptedJob{}
	job.step = func(in []byte, out []byte, eof bool) (int, int, engine.Result) {
		return 0, 0, engine.CodeCorrupt
	}

	s := stream.New(func(s *stream.Stream) (engine.Job, io.Reader, error) {
		return job, bytes.NewReader([]byte("junk")), nil
	}, stream.Options{Stage: stream.StagePatch})

	_, err := s.Next()
	require.Error(t, err)

	var engErr *stream.EngineError
	require.True(t, errors.As(err, &engErr))
	assert.Equal(t, stream.StagePatch, engErr.Stage)
	assert.Equal(t, engine.CodeCorrupt, engErr.Code)
	assert.Equal(t, 1, job.closed)
}

func TestStreamEngineFailureCause(t *testing.T) {
	cause := errors.New("basis went away")
	job := &causeJob{cause: cause}

	s := stream.New(func(s *stream.Stream) (engine.Job, io.Reader, error) {
		return job, bytes.NewReader([]byte("junk")), nil
	}, stream.Options{Stage: stream.StagePatch})

	_, err := s.Next()
	require.Error(t, err)

	var engErr *stream.EngineError
	require.True(t, errors.As(err, &engErr))
	assert.Equal(t, engine.CodeIO, engErr.Code)
	assert.Equal(t, cause, errors.Cause(err))
}

type causeJob struct {
	cause error
}

func (j *causeJob) Step(in []byte, out []byte, eof bool) (int, int, engine.Result) {
	return 0, 0, engine.CodeIO
}

func (j *causeJob) Err() error {
	return j.cause
}

func (j *causeJob) Close() error {
	return nil
}

func TestStreamStallGuard(t *testing.T) {
	job := &scriptedJob{}
	job.step = func(in []byte, out []byte, eof bool) (int, int, engine.Result) {
		// Wedged: consumes nothing, produces nothing, never finishes.
		return 0, 0, engine.Running
	}

	s := stream.New(func(s *stream.Stream) (engine.Job, io.Reader, error) {
		return job, bytes.NewReader([]byte("abc")), nil
	}, stream.Options{Stage: "wedge"})

	_, err := s.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stalled")
	assert.Equal(t, 1, job.closed)
}

func TestStreamEmptySource(t *testing.T) {
	job := &echoJob{}
	s := stream.New(func(s *stream.Stream) (engine.Job, io.Reader, error) {
		return job, bytes.NewReader(nil), nil
	}, stream.Options{})

	result, err := s.Drain()
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.Equal(t, 1, job.closed)
}

func TestStreamSourceReadError(t *testing.T) {
	boom := errors.New("disk on fire")
	job := &echoJob{}
	s := stream.New(func(s *stream.Stream) (engine.Job, io.Reader, error) {
		return job, &failingReader{err: boom}, nil
	}, stream.Options{})

	_, err := s.Next()
	assert.Equal(t, boom, errors.Cause(err))
	assert.Equal(t, 1, job.closed)
}

type failingReader struct {
	err error
}

func (r *failingReader) Read(p []byte) (int, error) {
	return 0, r.err
}

func TestStreamClosersRunInReverseOrder(t *testing.T) {
	var log []string
	job := &echoJob{}

	s := stream.New(func(s *stream.Stream) (engine.Job, io.Reader, error) {
		s.AddCloser(&recordingCloser{name: "first", log: &log})
		s.AddCloser(&recordingCloser{name: "second", log: &log})
		return job, bytes.NewReader([]byte("data")), nil
	}, stream.Options{})

	_, err := s.Drain()
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first"}, log)

	// Close is idempotent; nothing runs twice.
	require.NoError(t, s.Close())
	assert.Equal(t, []string{"second", "first"}, log)
	assert.Equal(t, 1, job.closed)
}

func TestStreamAbandonment(t *testing.T) {
	var log []string
	job := &echoJob{}

	payload := bytes.Repeat([]byte("z"), 1<<20)
	s := stream.New(func(s *stream.Stream) (engine.Job, io.Reader, error) {
		s.AddCloser(&recordingCloser{name: "source", log: &log})
		return job, bytes.NewReader(payload), nil
	}, stream.Options{InputSize: 1024, OutputSize: 1024})

	// Pull one chunk, then walk away.
	_, err := s.Next()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Equal(t, 1, job.closed)
	assert.Equal(t, []string{"source"}, log)
}

func TestStreamWriteTo(t *testing.T) {
	payload := bytes.Repeat([]byte("chunk"), 10000)
	s := stream.New(func(s *stream.Stream) (engine.Job, io.Reader, error) {
		return &echoJob{}, bytes.NewReader(payload), nil
	}, stream.Options{InputSize: 4096, OutputSize: 4096})

	var sink bytes.Buffer
	n, err := s.WriteTo(&sink)
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), n)
	assert.EqualValues(t, payload, sink.Bytes())
}
