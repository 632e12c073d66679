package native

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRollsumRotateMatchesFresh(t *testing.T) {
	const blockLength = 256

	data := make([]byte, 4096)
	rand.New(rand.NewSource(0xf005ba11)).Read(data)

	// Prime with the first block, then slide one byte at a time. Every
	// rotated digest must equal the digest of a freshly-summed block at
	// the same offset; that equality is what makes the delta search see
	// the same weak sums the signature recorded.
	rs := NewRollsum(blockLength)
	rs.Update(data[:blockLength])

	for i := 1; i+blockLength <= len(data); i++ {
		rs.Rotate(data[i-1], data[i+blockLength-1])
		assert.Equal(t, weakSum(data[i:i+blockLength], blockLength), rs.Digest(), "offset %d", i)
	}
}

func TestRollsumShortBlockWeighting(t *testing.T) {
	// A trailing block shorter than blockLength is summed with full
	// blockLength weighting so both sides of the pipeline agree.
	const blockLength = 64
	block := []byte("short trailing block")

	rs := NewRollsum(blockLength)
	rs.Update(block)
	assert.Equal(t, weakSum(block, blockLength), rs.Digest())

	byBytes := NewRollsum(blockLength)
	for _, b := range block {
		byBytes.Update([]byte{b})
	}
	assert.Equal(t, rs.Digest(), byBytes.Digest())
}

func TestRollsumReset(t *testing.T) {
	rs := NewRollsum(32)
	rs.Update([]byte("some content"))
	rs.Reset()
	assert.EqualValues(t, 0, rs.Digest())

	rs.Update([]byte("other"))
	assert.Equal(t, weakSum([]byte("other"), 32), rs.Digest())
}

func TestOptimalBlockLengthBounds(t *testing.T) {
	assert.EqualValues(t, minBlockLength, optimalBlockLength(0))
	assert.EqualValues(t, minBlockLength, optimalBlockLength(1024))
	assert.EqualValues(t, maxBlockLength, optimalBlockLength(1<<40))

	mid := optimalBlockLength(50 * 1024 * 1024)
	assert.True(t, mid > minBlockLength && mid < maxBlockLength, "got %d", mid)
}
