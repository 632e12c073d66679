package sluice

import (
	"io"
	"os"

	"github.com/itchio/savior"
	"github.com/itchio/savior/seeksource"
	"github.com/itchio/screw"
	"github.com/pkg/errors"

	"github.com/quayside/sluice/counter"
	"github.com/quayside/sluice/engine"
	"github.com/quayside/sluice/stream"
)

// NewSignature returns a lazy stream of signature bytes for source.
// Nothing is read and no job exists until the first chunk is pulled; at
// that point the engine negotiates concrete block and strong hash lengths
// from the source size for any parameter the config leaves at auto.
func NewSignature(cfg Config, source savior.SeekSource) *stream.Stream {
	start := func(s *stream.Stream) (engine.Job, io.Reader, error) {
		return signatureStart(cfg, source)
	}
	return stream.New(start, signatureOptions(cfg))
}

// SignatureFile is NewSignature for a file path. A missing file is
// reported as ErrSourceNotFound before any resource is created.
func SignatureFile(cfg Config, path string) (*stream.Stream, error) {
	if _, err := screw.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WithMessage(ErrSourceNotFound, path)
		}
		return nil, errors.Wrap(err, "inspecting signature source")
	}

	start := func(s *stream.Stream) (engine.Job, io.Reader, error) {
		f, err := screw.Open(path)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening signature source")
		}
		s.AddCloser(f)
		return signatureStart(cfg, seeksource.FromFile(f))
	}
	return stream.New(start, signatureOptions(cfg)), nil
}

// ComputeSignature runs the whole signature pipeline and returns the
// concatenated bytes. Only for sources known to fit in memory; prefer
// NewSignature for anything unbounded.
func ComputeSignature(cfg Config, source savior.SeekSource) ([]byte, error) {
	return NewSignature(cfg, source).Drain()
}

func signatureOptions(cfg Config) stream.Options {
	return stream.Options{
		Stage:      stream.StageSignature,
		InputSize:  cfg.bufferSize(),
		OutputSize: cfg.bufferSize(),
	}
}

func signatureStart(cfg Config, source savior.SeekSource) (engine.Job, io.Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if _, err := source.Resume(nil); err != nil {
		return nil, nil, errors.Wrap(err, "opening signature source")
	}

	eng := cfg.engine()
	params := engine.SignatureParams{
		Format:       cfg.Format,
		BlockLength:  cfg.BlockLength,
		StrongLength: cfg.StrongLength,
	}
	if err := eng.NegotiateSignatureParams(source.Size(), &params); err != nil {
		return nil, nil, errors.Wrap(err, "negotiating signature parameters")
	}

	job, err := eng.SignatureJob(params)
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating signature job")
	}

	consumer := cfg.consumer()
	consumer.Debugf("signature: block length %d, strong length %d", params.BlockLength, params.StrongLength)
	return job, counter.NewReaderProgress(consumer, source.Size(), source), nil
}
