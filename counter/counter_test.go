package counter_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/itchio/headway/state"
	"github.com/stretchr/testify/assert"

	"github.com/quayside/sluice/counter"
)

func TestReaderCount(t *testing.T) {
	cr := counter.NewReader(bytes.NewReader([]byte("some bytes")))
	buf, err := io.ReadAll(cr)
	assert.NoError(t, err)
	assert.EqualValues(t, []byte("some bytes"), buf)
	assert.EqualValues(t, 10, cr.Count())
}

func TestReaderNil(t *testing.T) {
	cr := counter.NewReader(nil)
	n, err := cr.Read(make([]byte, 128))
	assert.NoError(t, err)
	assert.Equal(t, 128, n)
	assert.EqualValues(t, 128, cr.Count())
}

func TestReaderCallback(t *testing.T) {
	var totals []int64
	cr := counter.NewReaderCallback(func(count int64) {
		totals = append(totals, count)
	}, bytes.NewReader([]byte("abcdef")))

	buf := make([]byte, 4)
	cr.Read(buf)
	cr.Read(buf)
	// EOF reads count nothing and must not fire the callback.
	_, err := cr.Read(buf)
	assert.Equal(t, io.EOF, err)

	assert.Equal(t, []int64{4, 6}, totals)
}

func TestReaderProgress(t *testing.T) {
	var progress []float64
	consumer := &state.Consumer{
		OnProgress: func(p float64) {
			progress = append(progress, p)
		},
	}

	data := make([]byte, 8)
	cr := counter.NewReaderProgress(consumer, int64(len(data)), bytes.NewReader(data))
	buf := make([]byte, 2)
	for {
		if _, err := cr.Read(buf); err == io.EOF {
			break
		}
	}

	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1.0}, progress)

	// Unknown totals degrade to plain counting, no progress reports.
	progress = nil
	cr = counter.NewReaderProgress(consumer, 0, bytes.NewReader(data))
	io.ReadAll(cr)
	assert.Empty(t, progress)
	assert.EqualValues(t, len(data), cr.Count())
}

func TestWriterCount(t *testing.T) {
	var sink bytes.Buffer
	cw := counter.NewWriter(&sink)
	cw.Write([]byte("hello "))
	cw.Write([]byte("world"))
	assert.EqualValues(t, 11, cw.Count())
	assert.Equal(t, "hello world", sink.String())
}

func TestWriterNilAndCallback(t *testing.T) {
	var last int64
	cw := counter.NewWriterCallback(func(count int64) {
		last = count
	}, nil)
	cw.Write(make([]byte, 256))
	cw.Write(make([]byte, 256))
	assert.EqualValues(t, 512, cw.Count())
	assert.EqualValues(t, 512, last)
}
