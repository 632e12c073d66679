package native

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/quayside/sluice/engine"
)

// Signature is a loaded basis fingerprint: one weak checksum and one
// truncated strong hash per block, plus enough geometry to know how large
// the trailing block really is.
type Signature struct {
	format       engine.Magic
	blockLength  uint32
	strongLength uint32
	fileSize     int64

	weaks []uint32
	// strongs holds all strong hashes back to back, strongLength bytes per
	// block.
	strongs []byte

	// table maps weak checksums to candidate block indices. The trailing
	// block is excluded when it is short; the delta job checks it separately
	// at end of input.
	table map[uint32][]int32
	built bool
	freed bool
}

var _ engine.Signature = (*Signature)(nil)

func (s *Signature) blockCount() int {
	return len(s.weaks)
}

// lastBlockSize returns the true size of the final block, which may be
// smaller than the block length.
func (s *Signature) lastBlockSize() uint32 {
	if s.fileSize == 0 {
		return 0
	}
	if rem := uint32(s.fileSize % int64(s.blockLength)); rem != 0 {
		return rem
	}
	return s.blockLength
}

func (s *Signature) strongAt(i int) []byte {
	off := i * int(s.strongLength)
	return s.strongs[off : off+int(s.strongLength)]
}

// BuildHashTable indexes the signature for delta search. It must complete
// before the signature seeds a delta job. Not safe for concurrent use;
// callers serialize (see the signature handle in the root package).
func (s *Signature) BuildHashTable() error {
	if s.freed {
		return errors.New("signature used after free")
	}
	if s.built {
		return nil
	}

	indexable := s.blockCount()
	if indexable > 0 && s.lastBlockSize() != s.blockLength {
		indexable--
	}

	s.table = make(map[uint32][]int32, indexable)
	for i := 0; i < indexable; i++ {
		w := s.weaks[i]
		s.table[w] = append(s.table[w], int32(i))
	}
	s.built = true
	return nil
}

// findMatch looks up a full-block window by weak checksum, confirming
// candidates with the strong hash. confirm is called lazily, at most once,
// to produce the window's strong hash.
func (s *Signature) findMatch(weak uint32, confirm func() []byte) (int, bool) {
	candidates := s.table[weak]
	if len(candidates) == 0 {
		return 0, false
	}
	strong := confirm()
	for _, i := range candidates {
		if bytes.Equal(s.strongAt(int(i)), strong) {
			return int(i), true
		}
	}
	return 0, false
}

// matchesLastBlock reports whether window matches the signature's trailing
// block. window must be exactly lastBlockSize bytes.
func (s *Signature) matchesLastBlock(window []byte, confirm func() []byte) bool {
	n := s.blockCount()
	if n == 0 {
		return false
	}
	if weakSum(window, s.blockLength) != s.weaks[n-1] {
		return false
	}
	return bytes.Equal(s.strongAt(n-1), confirm())
}

// Free releases the signature. Any later use fails with an error rather
// than crashing. Idempotent.
func (s *Signature) Free() error {
	s.freed = true
	s.weaks = nil
	s.strongs = nil
	s.table = nil
	s.built = false
	return nil
}
