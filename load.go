package sluice

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/quayside/sluice/engine"
	"github.com/quayside/sluice/stream"
)

// LoadSignature parses serialized signature bytes into a shareable handle.
// The result is independent of how r chunks its bytes. Malformed input
// fails with ErrCorruptSignature (or a classified engine failure), never a
// generic error.
func LoadSignature(cfg Config, r io.Reader) (*SignatureHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	job, err := cfg.engine().LoadSignatureJob()
	if err != nil {
		return nil, errors.Wrap(err, "creating signature load job")
	}

	start := func(s *stream.Stream) (engine.Job, io.Reader, error) {
		return job, r, nil
	}
	run := stream.New(start, stream.Options{
		Stage:      stream.StageLoadSignature,
		InputSize:  cfg.bufferSize(),
		OutputSize: cfg.bufferSize(),
	})

	// The load job produces no output chunks; driving it to completion is
	// all that matters.
	if _, err := run.Drain(); err != nil {
		return nil, classifySignatureError(err)
	}

	sig, err := job.Signature()
	if err != nil {
		return nil, errors.WithMessage(ErrCorruptSignature, err.Error())
	}
	return newSignatureHandle(sig), nil
}

// LoadSignatureBytes is LoadSignature over an in-memory buffer.
func LoadSignatureBytes(cfg Config, buf []byte) (*SignatureHandle, error) {
	return LoadSignature(cfg, bytes.NewReader(buf))
}
