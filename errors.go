package sluice

import (
	"github.com/pkg/errors"

	"github.com/quayside/sluice/engine"
	"github.com/quayside/sluice/stream"
)

var (
	// ErrSourceNotFound means a requested file does not exist. It is
	// detected before any job or resource is created.
	ErrSourceNotFound = errors.New("source file not found")
	// ErrInvalidState means a released or half-initialized resource was
	// used, typically a signature handle after Release.
	ErrInvalidState = errors.New("use of released resource")
	// ErrCorruptSignature means signature bytes could not be parsed.
	ErrCorruptSignature = errors.New("invalid or corrupt signature")
	// ErrInsufficientBuffer means the configured buffer sizes cannot
	// accommodate the operation.
	ErrInsufficientBuffer = errors.New("insufficient buffer size")
)

// EngineError reports a transform engine failure code; the Stage field
// says which pipeline it came from.
type EngineError = stream.EngineError

// IsNotFound reports whether err is (or wraps) ErrSourceNotFound.
func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrSourceNotFound
}

// AsEngineError extracts an engine failure from err, however deeply
// wrapped.
func AsEngineError(err error) (*EngineError, bool) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// classifySignatureError maps parse failures from the load pipeline onto
// ErrCorruptSignature, keeping the engine's detail in the message.
func classifySignatureError(err error) error {
	if ee, ok := AsEngineError(err); ok {
		switch ee.Code {
		case engine.CodeBadMagic, engine.CodeCorrupt, engine.CodeInputEnded:
			return errors.WithMessage(ErrCorruptSignature, ee.Error())
		}
	}
	return err
}
