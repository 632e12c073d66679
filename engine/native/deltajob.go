package native

import (
	"hash"
	"math"

	"github.com/balena-os/circbuf"
	"github.com/quayside/sluice/engine"
)

const (
	// maxLiteral caps the payload of a single literal op, bounding how much
	// unmatched data a delta job holds between flushes.
	maxLiteral = 1 << 15
	// pendingHighWater pauses input processing until staged output has
	// drained, keeping a step's memory footprint bounded.
	pendingHighWater = 1 << 16
	// maxCopyLength is the largest run a single copy op can encode; its
	// length field is a u32 on the wire. Longer matched runs split into
	// multiple ops.
	maxCopyLength = math.MaxUint32
)

// deltaJob computes delta bytes for new content against a loaded signature.
// It keeps a rolling window of one block of input; each position is probed
// by weak checksum and confirmed against the signature's strong hashes.
// Unmatched bytes accumulate into literal ops, matches become copy ops
// (coalesced when adjacent), everything staged through the emitter so steps
// stay bounded regardless of the caller's window sizes.
type deltaJob struct {
	sig    *Signature
	hasher hash.Hash

	emitter
	win    circbuf.Buffer
	winLen int
	weak   *Rollsum
	lit    []byte

	copyStart int64
	copyLen   int64

	wroteHeader bool
	finished    bool
	closed      bool
}

var _ engine.Job = (*deltaJob)(nil)

func newDeltaJob(sig *Signature, hasher hash.Hash) (*deltaJob, error) {
	win, err := circbuf.NewBuffer(int64(sig.blockLength))
	if err != nil {
		return nil, err
	}
	return &deltaJob{
		sig:    sig,
		hasher: hasher,
		win:    win,
		weak:   NewRollsum(sig.blockLength),
	}, nil
}

func (j *deltaJob) Step(in []byte, out []byte, eof bool) (int, int, engine.Result) {
	if j.closed {
		return 0, 0, engine.CodeInternal
	}

	produced := j.drain(out)
	if !j.empty() {
		return 0, produced, engine.Blocked
	}
	if j.finished {
		return 0, produced, engine.Done
	}

	if !j.wroteHeader {
		j.putUint32(deltaMagic)
		j.wroteHeader = true
	}

	var consumed int
	var result engine.Result
	if j.sig.blockCount() == 0 {
		// Empty basis: nothing can match, everything is literal.
		consumed, result = j.passThrough(in, eof)
	} else {
		consumed, result = j.search(in, eof)
	}
	if !result.Progress() {
		return consumed, produced, result
	}

	produced += j.drain(out[produced:])
	if !j.empty() {
		return consumed, produced, engine.Blocked
	}
	if j.finished {
		return consumed, produced, engine.Done
	}
	return consumed, produced, result
}

// passThrough chunks the whole input into literal ops.
func (j *deltaJob) passThrough(in []byte, eof bool) (int, engine.Result) {
	consumed := 0
	for consumed < len(in) && len(j.pending) < pendingHighWater {
		take := maxLiteral - len(j.lit)
		if take > len(in)-consumed {
			take = len(in) - consumed
		}
		j.lit = append(j.lit, in[consumed:consumed+take]...)
		consumed += take
		if len(j.lit) == maxLiteral {
			j.flushLiteral()
		}
	}
	if eof && consumed == len(in) {
		j.finish()
	}
	return consumed, engine.Running
}

// search runs the rolling-window match loop over as much input as fits
// within the staging bound.
func (j *deltaJob) search(in []byte, eof bool) (int, engine.Result) {
	blockLen := int(j.sig.blockLength)
	consumed := 0

	for len(j.pending) < pendingHighWater {
		// Fill the window up to one full block.
		if j.winLen < blockLen {
			take := blockLen - j.winLen
			if take > len(in)-consumed {
				take = len(in) - consumed
			}
			if take > 0 {
				chunk := in[consumed : consumed+take]
				if _, err := j.win.Write(chunk); err != nil {
					return consumed, engine.CodeInternal
				}
				j.weak.Update(chunk)
				j.winLen += take
				consumed += take
			}
			if j.winLen < blockLen {
				break
			}
		}

		if idx, ok := j.sig.findMatch(j.weak.Digest(), j.confirm); ok {
			j.flushLiteral()
			j.addCopy(int64(idx)*int64(blockLen), int64(blockLen))
			j.win.Reset()
			j.weak.Reset()
			j.winLen = 0
			continue
		}

		if consumed == len(in) {
			break
		}

		// No match: the window's head byte can never start one, so it
		// becomes literal data and the window slides one byte forward.
		head, err := j.win.Get(0)
		if err != nil {
			return consumed, engine.CodeInternal
		}
		next := in[consumed]
		consumed++
		j.lit = append(j.lit, head)
		j.weak.Rotate(head, next)
		if err := j.win.WriteByte(next); err != nil {
			return consumed, engine.CodeInternal
		}
		if len(j.lit) >= maxLiteral {
			j.flushLiteral()
		}
	}

	if eof && consumed == len(in) && len(j.pending) < pendingHighWater {
		j.finishSearch()
	}
	return consumed, engine.Running
}

// finishSearch handles the bytes left in the window at end of input: a last
// chance to match the signature's trailing short block, then literals.
func (j *deltaJob) finishSearch() {
	last := j.sig.lastBlockSize()
	window := j.win.Bytes()

	if last > 0 && last != j.sig.blockLength && j.winLen >= int(last) {
		tail := window[j.winLen-int(last):]
		confirm := func() []byte {
			return strongSum(nil, j.hasher, tail, j.sig.strongLength)
		}
		if j.sig.matchesLastBlock(tail, confirm) {
			j.lit = append(j.lit, window[:j.winLen-int(last)]...)
			j.flushLiteral()
			j.addCopy(int64(j.sig.blockCount()-1)*int64(j.sig.blockLength), int64(last))
			j.finish()
			return
		}
	}

	j.lit = append(j.lit, window...)
	j.finish()
}

// confirm produces the strong hash of the current full window, for match
// confirmation.
func (j *deltaJob) confirm() []byte {
	return strongSum(nil, j.hasher, j.win.Bytes(), j.sig.strongLength)
}

func (j *deltaJob) addCopy(offset, length int64) {
	if j.copyLen > 0 && j.copyStart+j.copyLen == offset && j.copyLen+length <= maxCopyLength {
		j.copyLen += length
		return
	}
	j.flushCopy()
	j.copyStart = offset
	j.copyLen = length
}

func (j *deltaJob) flushCopy() {
	if j.copyLen == 0 {
		return
	}
	j.putByte(opCopy)
	j.putUint64(uint64(j.copyStart))
	j.putUint32(uint32(j.copyLen))
	j.copyStart = 0
	j.copyLen = 0
}

func (j *deltaJob) flushLiteral() {
	if len(j.lit) == 0 {
		return
	}
	// A literal interrupts any run of adjacent copies.
	j.flushCopy()
	j.putByte(opLiteral)
	j.putUint32(uint32(len(j.lit)))
	j.put(j.lit)
	j.lit = j.lit[:0]
}

func (j *deltaJob) finish() {
	j.flushLiteral()
	j.flushCopy()
	j.putByte(opEnd)
	j.finished = true
}

func (j *deltaJob) Close() error {
	j.closed = true
	j.pending = nil
	j.lit = nil
	return nil
}
