package native

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/quayside/sluice/engine"
)

// loadJob parses serialized signature bytes back into a Signature. The
// parse is fully incremental: input may be split at any byte boundary and
// the result is identical.
type loadJob struct {
	taker
	sig *Signature

	sawHeader   bool
	expectCount int
	recordSize  int

	done   bool
	closed bool
}

var _ engine.LoadJob = (*loadJob)(nil)

func (j *loadJob) Step(in []byte, out []byte, eof bool) (int, int, engine.Result) {
	if j.closed || j.done {
		return 0, 0, engine.CodeInternal
	}

	consumed := 0
	if !j.sawHeader {
		header, ok := j.take(in, &consumed, sigHeaderSize)
		if !ok {
			if eof {
				return consumed, 0, engine.CodeInputEnded
			}
			return consumed, 0, engine.Running
		}
		if result := j.parseHeader(header); result != engine.Running {
			return consumed, 0, result
		}
	}

	for len(j.sig.weaks) < j.expectCount {
		record, ok := j.take(in, &consumed, j.recordSize)
		if !ok {
			if eof {
				return consumed, 0, engine.CodeInputEnded
			}
			return consumed, 0, engine.Running
		}
		j.sig.weaks = append(j.sig.weaks, binary.BigEndian.Uint32(record))
		j.sig.strongs = append(j.sig.strongs, record[4:]...)
	}

	// All expected records parsed: anything further is garbage.
	if consumed < len(in) || j.buffered() > 0 {
		return consumed, 0, engine.CodeCorrupt
	}
	if !eof {
		return consumed, 0, engine.Running
	}
	j.done = true
	return consumed, 0, engine.Done
}

func (j *loadJob) parseHeader(header []byte) engine.Result {
	format := engine.Magic(binary.BigEndian.Uint32(header))
	maxStrong, err := maxStrongLength(format)
	if err != nil {
		return engine.CodeBadMagic
	}

	blockLength := binary.BigEndian.Uint32(header[4:])
	strongLength := binary.BigEndian.Uint32(header[8:])
	fileSize := binary.BigEndian.Uint64(header[12:])

	if blockLength == 0 || blockLength > maxBlockLength {
		return engine.CodeCorrupt
	}
	if strongLength == 0 || strongLength > maxStrong {
		return engine.CodeCorrupt
	}
	if fileSize > 1<<62 {
		return engine.CodeCorrupt
	}

	j.sig = &Signature{
		format:       format,
		blockLength:  blockLength,
		strongLength: strongLength,
		fileSize:     int64(fileSize),
	}
	blocks := int64(0)
	if fileSize > 0 {
		blocks = (int64(fileSize) + int64(blockLength) - 1) / int64(blockLength)
	}
	j.expectCount = int(blocks)
	j.recordSize = 4 + int(strongLength)
	j.sawHeader = true
	return engine.Running
}

// Signature hands over the parsed structure. Only valid once the job has
// reported Done; the caller owns (and eventually frees) the signature.
func (j *loadJob) Signature() (engine.Signature, error) {
	if !j.done || j.sig == nil {
		return nil, errors.New("signature load incomplete")
	}
	return j.sig, nil
}

func (j *loadJob) Close() error {
	j.closed = true
	j.stash = nil
	return nil
}
