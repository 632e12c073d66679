package native

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type copyOp struct {
	offset uint64
	length uint32
}

func parseCopyOps(t *testing.T, buf []byte) []copyOp {
	t.Helper()
	var ops []copyOp
	for len(buf) > 0 {
		require.Equal(t, byte(opCopy), buf[0])
		require.GreaterOrEqual(t, len(buf), 13, "truncated copy op")
		ops = append(ops, copyOp{
			offset: binary.BigEndian.Uint64(buf[1:9]),
			length: binary.BigEndian.Uint32(buf[9:13]),
		})
		buf = buf[13:]
	}
	return ops
}

func TestCopyCoalescingMergesAdjacentRuns(t *testing.T) {
	j := &deltaJob{}
	j.addCopy(0, 1024)
	j.addCopy(1024, 1024)
	j.addCopy(4096, 1024)
	j.flushCopy()

	ops := parseCopyOps(t, j.pending)
	require.Len(t, ops, 2)
	assert.EqualValues(t, 0, ops[0].offset)
	assert.EqualValues(t, 2048, ops[0].length)
	assert.EqualValues(t, 4096, ops[1].offset)
	assert.EqualValues(t, 1024, ops[1].length)
}

func TestCopyCoalescingStopsAtWireLimit(t *testing.T) {
	j := &deltaJob{}

	// Two adjacent runs whose sum no longer fits the op's u32 length
	// field must come out as two ops, not one truncated op.
	half := int64(maxCopyLength/2 + 1)
	j.addCopy(0, half)
	j.addCopy(half, half)
	j.flushCopy()

	ops := parseCopyOps(t, j.pending)
	require.Len(t, ops, 2)
	assert.EqualValues(t, 0, ops[0].offset)
	assert.EqualValues(t, half, ops[0].length)
	assert.EqualValues(t, uint64(half), ops[1].offset)
	assert.EqualValues(t, half, ops[1].length)
}
