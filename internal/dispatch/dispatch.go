// Package dispatch defines the boundary contract for invoking a
// detector as a callable unit. The coordinator talks to ToolExecutor
// only, so detectors can run in-process today and behind a transport
// tomorrow without touching coordination logic.
package dispatch

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ErrorCode classifies a dispatch failure.
type ErrorCode string

const (
	CodeInvalidInput    ErrorCode = "invalid_input"
	CodeTimeout         ErrorCode = "timeout"
	CodeInternalFailure ErrorCode = "internal_failure"
)

// Error is a typed dispatch failure.
type Error struct {
	Code   ErrorCode
	Tool   string
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("dispatch %s: %s: %s", e.Tool, e.Code, e.Detail)
}

// Request is one tool invocation. The snapshot is shared read-only
// state for the whole analysis request; implementations must not
// mutate it.
type Request struct {
	Tool     string
	Tx       *domain.Transaction
	Snapshot *domain.ProfileSnapshot
}

// Response is a tool's reply: exactly one of Finding, Absent, or Err
// is meaningful.
type Response struct {
	Tool string

	// Finding is set when the tool evaluated and reported. A
	// zero-severity finding means evaluated clean.
	Finding *domain.Finding

	// Absent is set when the tool was not applicable to this input.
	Absent bool

	// Err is a typed failure; left nil on success.
	Err *Error
}
