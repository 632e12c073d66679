// Package framing carries arbitrary byte chunks over a raw connection as
// length-prefixed frames: a lowercase hex size, CRLF, the payload, CRLF.
// Any of the pipeline streams can be framed with WriteStream; the format
// defines no end-of-stream sentinel, so callers signal completion at the
// transport level (typically by closing the connection) or with their own
// convention.
package framing

import (
	"bufio"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

const (
	// maxHeaderSize bounds the hex size field: 16 hex digits covers any
	// uint64, plus the CRLF terminator.
	maxHeaderSize = 16 + 2
	// MaxChunkSize bounds what a reader will accept, to avoid letting a
	// malicious peer exhaust memory.
	MaxChunkSize = 64 * 1024 * 1024
)

var crlf = []byte{'\r', '\n'}

// Writer frames chunks onto an underlying stream.
type Writer struct {
	w      io.Writer
	header []byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:      w,
		header: make([]byte, 0, maxHeaderSize),
	}
}

// WriteChunk emits one frame. Zero-length payloads are legal on the wire
// (header and trailer only) though the pipelines never produce them.
func (fw *Writer) WriteChunk(p []byte) error {
	header := strconv.AppendUint(fw.header[:0], uint64(len(p)), 16)
	header = append(header, crlf...)
	if _, err := fw.w.Write(header); err != nil {
		return errors.Wrap(err, "writing frame header")
	}
	if len(p) > 0 {
		if _, err := fw.w.Write(p); err != nil {
			return errors.Wrap(err, "writing frame payload")
		}
	}
	if _, err := fw.w.Write(crlf); err != nil {
		return errors.Wrap(err, "writing frame trailer")
	}
	return nil
}

// Reader deframes chunks from an underlying stream.
type Reader struct {
	br      *bufio.Reader
	payload []byte
}

func NewReader(r io.Reader) *Reader {
	return &Reader{
		br: bufio.NewReader(r),
	}
}

// ReadChunk reads one frame and returns its payload. The returned slice is
// reused by the next call; copy it if it must outlive one iteration. A
// clean end of stream between frames surfaces as io.EOF; anything else
// (malformed or unterminated header, short payload, missing trailer) is a
// connection error.
func (fr *Reader) ReadChunk() ([]byte, error) {
	size, err := fr.readHeader()
	if err != nil {
		return nil, err
	}
	if size > MaxChunkSize {
		return nil, errors.Errorf("frame of %d bytes exceeds limit", size)
	}

	if cap(fr.payload) < int(size) {
		fr.payload = make([]byte, size)
	}
	payload := fr.payload[:size]
	// The transport may hand the payload over in any number of reads.
	if _, err := io.ReadFull(fr.br, payload); err != nil {
		return nil, errors.Wrap(err, "reading frame payload")
	}

	var trailer [2]byte
	if _, err := io.ReadFull(fr.br, trailer[:]); err != nil {
		return nil, errors.Wrap(err, "reading frame trailer")
	}
	if trailer[0] != '\r' || trailer[1] != '\n' {
		return nil, errors.New("frame missing trailing CRLF")
	}
	return payload, nil
}

// readHeader consumes the hex size field and its CRLF. Header bytes are
// read one at a time, so no payload byte is ever consumed prematurely and
// a frame smaller than any fixed window still parses without blocking.
func (fr *Reader) readHeader() (uint64, error) {
	var digits [maxHeaderSize]byte
	n := 0
	for {
		b, err := fr.br.ReadByte()
		if err != nil {
			if err == io.EOF && n == 0 {
				// Clean close between frames.
				return 0, io.EOF
			}
			return 0, errors.Wrap(err, "reading frame header")
		}
		if b == '\r' {
			break
		}
		if n == len(digits) {
			return 0, errors.New("unterminated frame header")
		}
		digits[n] = b
		n++
	}
	lf, err := fr.br.ReadByte()
	if err != nil {
		return 0, errors.Wrap(err, "reading frame header")
	}
	if lf != '\n' {
		return 0, errors.New("frame header CR without LF")
	}
	if n == 0 {
		return 0, errors.New("empty frame header")
	}

	size, err := strconv.ParseUint(string(digits[:n]), 16, 64)
	if err != nil {
		return 0, errors.Errorf("malformed frame header %q", digits[:n])
	}
	return size, nil
}
