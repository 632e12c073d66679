// Package native is the reference transform engine: a pure Go
// implementation of the rolling-checksum block-matching codec behind
// signature generation, delta generation and patch application. All jobs
// are incremental and operate on whatever input/output windows the driver
// provides, so memory stays bounded no matter the stream size.
package native

import (
	"io"

	"github.com/pkg/errors"
	"github.com/quayside/sluice/engine"
)

// Engine implements engine.Engine. It is stateless: jobs carry all state,
// so one Engine value can serve any number of concurrent jobs.
type Engine struct{}

var _ engine.Engine = Engine{}

// New returns the native engine.
func New() Engine {
	return Engine{}
}

// NegotiateSignatureParams resolves auto-selected signature parameters from
// the source size. A negative size means the size could not be determined.
func (Engine) NegotiateSignatureParams(sourceSize int64, p *engine.SignatureParams) error {
	if sourceSize < 0 {
		return errors.New("source size could not be determined")
	}
	if p.Format == 0 {
		p.Format = FormatBlake2
	}
	maxStrong, err := maxStrongLength(p.Format)
	if err != nil {
		return err
	}
	if p.BlockLength == 0 {
		p.BlockLength = optimalBlockLength(sourceSize)
	}
	if p.BlockLength > maxBlockLength {
		return errors.Errorf("block length %d exceeds maximum %d", p.BlockLength, maxBlockLength)
	}
	if p.StrongLength == 0 {
		p.StrongLength = maxStrong
	}
	if p.StrongLength > maxStrong {
		return errors.Errorf("strong hash length %d exceeds %d for this format", p.StrongLength, maxStrong)
	}
	p.FileSize = sourceSize
	return nil
}

func (Engine) SignatureJob(p engine.SignatureParams) (engine.Job, error) {
	maxStrong, err := maxStrongLength(p.Format)
	if err != nil {
		return nil, err
	}
	if p.BlockLength == 0 || p.BlockLength > maxBlockLength {
		return nil, errors.Errorf("unusable block length %d", p.BlockLength)
	}
	if p.StrongLength == 0 || p.StrongLength > maxStrong {
		return nil, errors.Errorf("unusable strong hash length %d", p.StrongLength)
	}
	if p.FileSize < 0 {
		return nil, errors.New("negative file size")
	}
	hasher, err := newStrongHasher(p.Format)
	if err != nil {
		return nil, err
	}
	return &sigJob{
		params: p,
		hasher: hasher,
		block:  make([]byte, 0, p.BlockLength),
	}, nil
}

func (Engine) LoadSignatureJob() (engine.LoadJob, error) {
	return &loadJob{}, nil
}

func (Engine) DeltaJob(sig engine.Signature) (engine.Job, error) {
	s, ok := sig.(*Signature)
	if !ok {
		return nil, errors.Errorf("foreign signature type %T", sig)
	}
	if s.freed {
		return nil, errors.New("signature used after free")
	}
	if !s.built {
		return nil, errors.New("signature hash table not built")
	}
	hasher, err := newStrongHasher(s.format)
	if err != nil {
		return nil, err
	}
	j, err := newDeltaJob(s, hasher)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return j, nil
}

func (Engine) PatchJob(basis io.ReaderAt) (engine.Job, error) {
	if basis == nil {
		return nil, errors.New("nil basis")
	}
	return &patchJob{basis: basis}, nil
}
