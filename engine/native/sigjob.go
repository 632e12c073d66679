package native

import (
	"hash"

	"github.com/quayside/sluice/engine"
)

// sigJob generates signature bytes: a header followed by one weak+strong
// record per block of the source. Partial blocks are carried across steps
// so input may arrive in any chunking.
type sigJob struct {
	params engine.SignatureParams
	hasher hash.Hash

	emitter
	block       []byte
	wroteHeader bool
	flushed     bool
	closed      bool
}

var _ engine.Job = (*sigJob)(nil)

func (j *sigJob) Step(in []byte, out []byte, eof bool) (int, int, engine.Result) {
	if j.closed {
		return 0, 0, engine.CodeInternal
	}

	produced := j.drain(out)
	if !j.empty() {
		return 0, produced, engine.Blocked
	}

	if !j.wroteHeader {
		j.putUint32(uint32(j.params.Format))
		j.putUint32(j.params.BlockLength)
		j.putUint32(j.params.StrongLength)
		j.putUint64(uint64(j.params.FileSize))
		j.wroteHeader = true
	}

	consumed := 0
	blockLen := int(j.params.BlockLength)
	for consumed < len(in) {
		take := blockLen - len(j.block)
		if take > len(in)-consumed {
			take = len(in) - consumed
		}
		j.block = append(j.block, in[consumed:consumed+take]...)
		consumed += take
		if len(j.block) == blockLen {
			j.emitRecord()
		}

		produced += j.drain(out[produced:])
		if !j.empty() {
			return consumed, produced, engine.Blocked
		}
	}

	if !eof {
		return consumed, produced, engine.Running
	}

	if !j.flushed {
		if len(j.block) > 0 {
			// Trailing short block: the weak checksum still uses full
			// block-length weighting, matching the delta job's search.
			j.emitRecord()
		}
		j.flushed = true
	}

	produced += j.drain(out[produced:])
	if !j.empty() {
		return consumed, produced, engine.Blocked
	}
	return consumed, produced, engine.Done
}

func (j *sigJob) emitRecord() {
	j.putUint32(weakSum(j.block, j.params.BlockLength))
	j.pending = strongSum(j.pending, j.hasher, j.block, j.params.StrongLength)
	j.block = j.block[:0]
}

func (j *sigJob) Close() error {
	j.closed = true
	j.block = nil
	j.pending = nil
	return nil
}
