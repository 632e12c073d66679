package native

import (
	"math"

	"github.com/pkg/errors"
	"github.com/quayside/sluice/engine"
)

// Signature formats. The magic selects the strong hash family; the weak
// rolling checksum is the same for both.
const (
	// FormatMD4 embeds truncated MD4 strong hashes.
	FormatMD4 engine.Magic = 0x72730136
	// FormatBlake2 embeds truncated BLAKE2b-256 strong hashes. This is the
	// default.
	FormatBlake2 engine.Magic = 0x72730137
)

const deltaMagic uint32 = 0x72730236

// Delta stream opcodes.
const (
	opEnd     = 0x00
	opLiteral = 0x41 // u32 length, then that many bytes
	opCopy    = 0x45 // u64 basis offset, u32 length
)

const (
	// sigHeaderSize is magic + block length + strong length + file size.
	sigHeaderSize = 4 + 4 + 4 + 8

	// minBlockLength has to be large enough that a signature record is a
	// small fraction of the block it describes.
	minBlockLength = 1 << 10
	// maxBlockLength bounds the window a delta job holds in memory. It also
	// keeps the weak checksum's weighting within uint32 range.
	maxBlockLength = 1 << 16
)

func maxStrongLength(format engine.Magic) (uint32, error) {
	switch format {
	case FormatMD4:
		return 16, nil
	case FormatBlake2:
		return 32, nil
	default:
		return 0, errors.Errorf("unknown signature format %#x", uint32(format))
	}
}

// optimalBlockLength picks a block length for a source of the given size,
// using the square-root rule from the rsync thesis, clamped to a sensible
// range.
func optimalBlockLength(sourceSize int64) uint32 {
	result := uint32(math.Sqrt(24.0 * float64(sourceSize)))
	if result < minBlockLength {
		result = minBlockLength
	} else if result > maxBlockLength {
		result = maxBlockLength
	}
	return result
}
