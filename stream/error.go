package stream

import (
	"fmt"

	"github.com/quayside/sluice/engine"
)

// Stage labels for engine failures.
const (
	StageSignature     = "signature"
	StageLoadSignature = "load-signature"
	StageDelta         = "delta"
	StagePatch         = "patch"
)

// EngineError reports that the transform engine returned a failure code
// during a run. The stage distinguishes which pipeline failed.
type EngineError struct {
	Stage string
	Code  engine.Result
	cause error
}

func (e *EngineError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s failed: %s: %s", e.Stage, e.Code, e.cause)
	}
	return fmt.Sprintf("%s failed: %s", e.Stage, e.Code)
}

// Cause supports errors.Cause from github.com/pkg/errors.
func (e *EngineError) Cause() error {
	return e.cause
}

func (e *EngineError) Unwrap() error {
	return e.cause
}
