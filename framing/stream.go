package framing

import (
	"io"

	"github.com/quayside/sluice/stream"
)

// WriteStream frames every chunk of s onto w, in order. It returns the
// total payload bytes sent. The stream's resources are released whether
// the transfer completes or fails.
func WriteStream(w io.Writer, s *stream.Stream) (int64, error) {
	fw := NewWriter(w)
	var total int64
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		if err := fw.WriteChunk(chunk); err != nil {
			s.Close()
			return total, err
		}
		total += int64(len(chunk))
	}
}

// ReadAll deframes chunks from r until the transport reports end of
// stream, concatenating the payloads.
func ReadAll(r io.Reader) ([]byte, error) {
	fr := NewReader(r)
	var result []byte
	for {
		chunk, err := fr.ReadChunk()
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			return nil, err
		}
		result = append(result, chunk...)
	}
}
