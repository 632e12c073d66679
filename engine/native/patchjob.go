package native

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/quayside/sluice/engine"
)

// patchJob applies delta bytes to reconstruct new content. Literal payloads
// stream straight from the input window to the output window; copy ops are
// served from the basis in output-window-sized slices, so neither side ever
// needs more than the caller's buffers.
type patchJob struct {
	basis io.ReaderAt

	taker
	sawMagic bool
	// pendingOp remembers an opcode whose arguments have not fully arrived
	// yet, so a step boundary can fall inside an op.
	pendingOp byte

	litRemaining  int64
	copyOffset    int64
	copyRemaining int64

	err    error
	closed bool
}

var _ engine.Job = (*patchJob)(nil)

func (j *patchJob) Step(in []byte, out []byte, eof bool) (int, int, engine.Result) {
	if j.closed {
		return 0, 0, engine.CodeInternal
	}

	consumed := 0
	produced := 0

	if !j.sawMagic {
		header, ok := j.take(in, &consumed, 4)
		if !ok {
			if eof {
				return consumed, produced, engine.CodeInputEnded
			}
			return consumed, produced, engine.Running
		}
		if binary.BigEndian.Uint32(header) != deltaMagic {
			return consumed, produced, engine.CodeBadMagic
		}
		j.sawMagic = true
	}

	for {
		if j.litRemaining > 0 {
			n := int64(len(in) - consumed)
			if n > j.litRemaining {
				n = j.litRemaining
			}
			if room := int64(len(out) - produced); n > room {
				n = room
			}
			if n == 0 {
				if len(out) == produced {
					return consumed, produced, engine.Blocked
				}
				if eof {
					return consumed, produced, engine.CodeInputEnded
				}
				return consumed, produced, engine.Running
			}
			copy(out[produced:], in[consumed:consumed+int(n)])
			consumed += int(n)
			produced += int(n)
			j.litRemaining -= n
			continue
		}

		if j.copyRemaining > 0 {
			n := int64(len(out) - produced)
			if n > j.copyRemaining {
				n = j.copyRemaining
			}
			if n == 0 {
				return consumed, produced, engine.Blocked
			}
			if _, err := j.basis.ReadAt(out[produced:produced+int(n)], j.copyOffset); err != nil {
				if err == io.EOF || err == io.ErrUnexpectedEOF {
					// The delta references a basis range that does not
					// exist: wrong or truncated basis.
					j.err = errors.New("delta copy past end of basis")
					return consumed, produced, engine.CodeCorrupt
				}
				j.err = errors.Wrap(err, "reading basis")
				return consumed, produced, engine.CodeIO
			}
			produced += int(n)
			j.copyOffset += n
			j.copyRemaining -= n
			continue
		}

		if j.pendingOp == 0 {
			op, ok := j.take(in, &consumed, 1)
			if !ok {
				if eof {
					return consumed, produced, engine.CodeInputEnded
				}
				return consumed, produced, engine.Running
			}
			if op[0] == opEnd {
				if consumed < len(in) || j.buffered() > 0 {
					return consumed, produced, engine.CodeCorrupt
				}
				return consumed, produced, engine.Done
			}
			j.pendingOp = op[0]
		}

		switch j.pendingOp {
		case opLiteral:
			arg, ok := j.take(in, &consumed, 4)
			if !ok {
				if eof {
					return consumed, produced, engine.CodeInputEnded
				}
				return consumed, produced, engine.Running
			}
			j.pendingOp = 0
			j.litRemaining = int64(binary.BigEndian.Uint32(arg))
			if j.litRemaining == 0 {
				return consumed, produced, engine.CodeCorrupt
			}
		case opCopy:
			arg, ok := j.take(in, &consumed, 12)
			if !ok {
				if eof {
					return consumed, produced, engine.CodeInputEnded
				}
				return consumed, produced, engine.Running
			}
			j.pendingOp = 0
			j.copyOffset = int64(binary.BigEndian.Uint64(arg))
			j.copyRemaining = int64(binary.BigEndian.Uint32(arg[8:]))
			if j.copyOffset < 0 || j.copyRemaining == 0 {
				return consumed, produced, engine.CodeCorrupt
			}
		default:
			return consumed, produced, engine.CodeCorrupt
		}
	}
}

// Err returns the underlying cause of an I/O failure code, if any.
func (j *patchJob) Err() error {
	return j.err
}

func (j *patchJob) Close() error {
	j.closed = true
	j.stash = nil
	return nil
}
