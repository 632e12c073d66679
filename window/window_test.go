package window_test

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quayside/sluice/window"
)

func TestWindowFillConsume(t *testing.T) {
	w := window.New(16)
	assert.EqualValues(t, 16, w.Cap())
	assert.EqualValues(t, 0, w.Len())
	assert.EqualValues(t, 16, w.Spare())

	src := bytes.NewReader([]byte("hello world"))
	n, err := w.Fill(src)
	assert.NoError(t, err)
	assert.EqualValues(t, 11, n)
	assert.EqualValues(t, []byte("hello world"), w.Pending())

	w.Consume(6)
	assert.EqualValues(t, []byte("world"), w.Pending())
	assert.EqualValues(t, 5, w.Len())

	// Draining completely resets the cursors so the full capacity
	// becomes writable again without a copy.
	w.Consume(5)
	assert.EqualValues(t, 0, w.Len())
	assert.EqualValues(t, 16, w.Spare())
}

func TestWindowCompactsBeforeFill(t *testing.T) {
	w := window.New(8)

	_, err := w.Fill(bytes.NewReader([]byte("abcdefgh")))
	assert.NoError(t, err)
	w.Consume(5)
	assert.EqualValues(t, []byte("fgh"), w.Pending())

	// The tail is full, but consuming made room at the front. Fill must
	// compact and use it.
	n, err := w.Fill(bytes.NewReader([]byte("12345")))
	assert.NoError(t, err)
	assert.EqualValues(t, 5, n)
	assert.EqualValues(t, []byte("fgh12345"), w.Pending())
}

func TestWindowFillAtCapacity(t *testing.T) {
	w := window.New(4)
	_, err := w.Fill(bytes.NewReader([]byte("abcd")))
	assert.NoError(t, err)

	n, err := w.Fill(bytes.NewReader([]byte("e")))
	assert.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestWindowFillEOF(t *testing.T) {
	w := window.New(8)
	_, err := w.Fill(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)
}

func TestWindowPartialReads(t *testing.T) {
	// A source that trickles bytes one at a time must still fill the
	// window correctly across many calls.
	payload := make([]byte, 64)
	rand.New(rand.NewSource(0x5107)).Read(payload)

	w := window.New(16)
	src := iotest(payload)

	var got []byte
	for {
		_, err := w.Fill(src)
		if err == io.EOF {
			break
		}
		assert.NoError(t, err)
		got = append(got, w.Pending()...)
		w.Consume(w.Len())
	}
	assert.EqualValues(t, payload, got)
}

// iotest returns a reader that yields one byte per Read call.
func iotest(p []byte) io.Reader {
	return &oneByteReader{buf: p}
}

type oneByteReader struct {
	buf []byte
	off int
}

func (r *oneByteReader) Read(p []byte) (int, error) {
	if r.off >= len(r.buf) {
		return 0, io.EOF
	}
	p[0] = r.buf[r.off]
	r.off++
	return 1, nil
}
