package sluice

import (
	"bytes"
	"io"
	"os"

	"github.com/itchio/screw"
	"github.com/pkg/errors"

	"github.com/quayside/sluice/counter"
	"github.com/quayside/sluice/engine"
	"github.com/quayside/sluice/stream"
)

// NewPatch returns a lazy stream of reconstructed bytes: the result of
// applying delta to basis. The delta is fed to the engine incrementally
// from memory; the basis is consulted at arbitrary offsets as copy
// operations demand, and must stay open until the stream ends.
func NewPatch(cfg Config, delta []byte, basis io.ReaderAt) *stream.Stream {
	start := func(s *stream.Stream) (engine.Job, io.Reader, error) {
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
		job, err := cfg.engine().PatchJob(basis)
		if err != nil {
			return nil, nil, errors.Wrap(err, "creating patch job")
		}
		return job, bytes.NewReader(delta), nil
	}
	return stream.New(start, stream.Options{
		Stage:      stream.StagePatch,
		InputSize:  cfg.bufferSize(),
		OutputSize: cfg.bufferSize(),
	})
}

// Patch applies delta to basis and writes the reconstructed content to
// out as it is produced. It returns the number of bytes written.
func Patch(cfg Config, delta []byte, basis io.ReaderAt, out io.Writer) (int64, error) {
	cw := counter.NewWriter(out)
	if _, err := NewPatch(cfg, delta, basis).WriteTo(cw); err != nil {
		return cw.Count(), err
	}
	return cw.Count(), nil
}

// PatchFile applies delta to the basis file at basisPath and atomically
// replaces outPath with the result: the output is written to a temporary
// path beside the target and renamed into place, so a concurrent reader
// never observes a partially written target. Basis reads go through a
// small block cache since deltas revisit hot basis regions.
func PatchFile(cfg Config, delta []byte, basisPath string, outPath string) error {
	if _, err := screw.Stat(basisPath); err != nil {
		if os.IsNotExist(err) {
			return errors.WithMessage(ErrSourceNotFound, basisPath)
		}
		return errors.Wrap(err, "inspecting patch basis")
	}

	basis, err := screw.Open(basisPath)
	if err != nil {
		return errors.Wrap(err, "opening patch basis")
	}
	defer basis.Close()

	cached, err := newCachingReaderAt(basis, cfg.bufferSize(), basisCachePages)
	if err != nil {
		return errors.Wrap(err, "creating basis cache")
	}

	tmpPath := outPath + ".partial"
	out, err := screw.Create(tmpPath)
	if err != nil {
		return errors.Wrap(err, "creating temporary output")
	}

	n, err := Patch(cfg, delta, cached, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, "closing temporary output")
	}
	if err != nil {
		screw.Remove(tmpPath)
		return err
	}

	if err := screw.Rename(tmpPath, outPath); err != nil {
		screw.Remove(tmpPath)
		return errors.Wrap(err, "renaming output into place")
	}
	cfg.consumer().Debugf("patch: wrote %d bytes to %s", n, outPath)
	return nil
}
