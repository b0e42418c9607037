package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/opensource-finance/kestrel/internal/detector"
)

// ToolExecutor invokes one tool and returns its response. Dispatch
// must respect ctx cancellation: when the context expires before the
// tool finishes, the response carries a timeout error.
type ToolExecutor interface {
	// Dispatch runs the named tool against the request.
	Dispatch(ctx context.Context, req Request) Response

	// Tools lists the registered tool names, sorted.
	Tools() []string

	// RequiresHistory reports whether the named tool needs a user
	// history to be applicable.
	RequiresHistory(tool string) bool
}

// LocalExecutor runs detectors in-process. Each dispatch runs the
// detector on its own goroutine so a hung detector cannot stall the
// caller past its deadline.
type LocalExecutor struct {
	mu    sync.RWMutex
	tools map[string]detector.Detector
}

// NewLocalExecutor creates an executor over the given detectors.
func NewLocalExecutor(detectors ...detector.Detector) *LocalExecutor {
	tools := make(map[string]detector.Detector, len(detectors))
	for _, d := range detectors {
		tools[d.Name()] = d
	}
	return &LocalExecutor{tools: tools}
}

// Register adds a detector, replacing any existing tool of the same
// name.
func (e *LocalExecutor) Register(d detector.Detector) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tools[d.Name()] = d
}

func (e *LocalExecutor) Tools() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.tools))
	for name := range e.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *LocalExecutor) RequiresHistory(tool string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	d, ok := e.tools[tool]
	return ok && d.RequiresHistory()
}

// Dispatch runs the tool, converting panics to internal failures and
// context expiry to timeouts. The detector goroutine is left to
// finish on its own after a timeout; its late result is discarded.
func (e *LocalExecutor) Dispatch(ctx context.Context, req Request) Response {
	e.mu.RLock()
	d, ok := e.tools[req.Tool]
	e.mu.RUnlock()

	if !ok {
		return Response{Tool: req.Tool, Err: &Error{
			Code: CodeInvalidInput, Tool: req.Tool, Detail: "unknown tool",
		}}
	}
	if req.Tx == nil {
		return Response{Tool: req.Tool, Err: &Error{
			Code: CodeInvalidInput, Tool: req.Tool, Detail: "nil transaction",
		}}
	}

	done := make(chan Response, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Response{Tool: req.Tool, Err: &Error{
					Code: CodeInternalFailure, Tool: req.Tool,
					Detail: fmt.Sprintf("panic: %v", r),
				}}
			}
		}()

		finding, err := d.Analyze(ctx, req.Tx, req.Snapshot)
		switch {
		case err != nil:
			done <- Response{Tool: req.Tool, Err: &Error{
				Code: CodeInternalFailure, Tool: req.Tool, Detail: err.Error(),
			}}
		case finding == nil:
			done <- Response{Tool: req.Tool, Absent: true}
		default:
			done <- Response{Tool: req.Tool, Finding: finding}
		}
	}()

	select {
	case resp := <-done:
		return resp
	case <-ctx.Done():
		return Response{Tool: req.Tool, Err: &Error{
			Code: CodeTimeout, Tool: req.Tool, Detail: ctx.Err().Error(),
		}}
	}
}
