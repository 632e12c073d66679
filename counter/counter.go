// Package counter provides byte-counting reader and writer shims, used by
// the pipelines for progress reporting and output accounting.
package counter

import (
	"io"

	"github.com/itchio/headway/state"
)

// CountCallback is called with the running total after each operation.
type CountCallback func(count int64)

// Reader counts bytes read through it. With a nil underlying reader it
// counts "reads" of the full buffer size, which is occasionally useful in
// tests.
type Reader struct {
	count  int64
	reader io.Reader
	onRead CountCallback
}

func NewReader(reader io.Reader) *Reader {
	return &Reader{reader: reader}
}

func NewReaderCallback(onRead CountCallback, reader io.Reader) *Reader {
	return &Reader{
		reader: reader,
		onRead: onRead,
	}
}

// NewReaderProgress returns a Reader that reports fractional progress to
// consumer as bytes flow through, given the expected total. With a nil
// consumer or an unknown total it degrades to a plain counting reader.
func NewReaderProgress(consumer *state.Consumer, total int64, reader io.Reader) *Reader {
	if consumer == nil || total <= 0 {
		return NewReader(reader)
	}
	return NewReaderCallback(func(count int64) {
		consumer.Progress(float64(count) / float64(total))
	}, reader)
}

func (r *Reader) Count() int64 {
	return r.count
}

func (r *Reader) Read(buffer []byte) (n int, err error) {
	if r.reader == nil {
		n = len(buffer)
	} else {
		n, err = r.reader.Read(buffer)
	}

	r.count += int64(n)
	if r.onRead != nil && n > 0 {
		r.onRead(r.count)
	}
	return
}

// Writer counts bytes written through it.
type Writer struct {
	count   int64
	writer  io.Writer
	onWrite CountCallback
}

func NewWriter(writer io.Writer) *Writer {
	return &Writer{writer: writer}
}

func NewWriterCallback(onWrite CountCallback, writer io.Writer) *Writer {
	return &Writer{
		writer:  writer,
		onWrite: onWrite,
	}
}

func (w *Writer) Count() int64 {
	return w.count
}

func (w *Writer) Write(buffer []byte) (n int, err error) {
	if w.writer == nil {
		n = len(buffer)
	} else {
		n, err = w.writer.Write(buffer)
	}

	w.count += int64(n)
	if w.onWrite != nil && n > 0 {
		w.onWrite(w.count)
	}
	return
}
