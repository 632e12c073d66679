package native

import (
	"hash"

	"github.com/pkg/errors"
	"github.com/quayside/sluice/engine"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/md4"
)

func newStrongHasher(format engine.Magic) (hash.Hash, error) {
	switch format {
	case FormatMD4:
		return md4.New(), nil
	case FormatBlake2:
		h, err := blake2b.New256(nil)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return h, nil
	default:
		return nil, errors.Errorf("unknown signature format %#x", uint32(format))
	}
}

// strongSum hashes block and truncates the result to strongLength bytes,
// appending it to dst.
func strongSum(dst []byte, h hash.Hash, block []byte, strongLength uint32) []byte {
	h.Reset()
	h.Write(block)
	sum := h.Sum(nil)
	return append(dst, sum[:strongLength]...)
}
