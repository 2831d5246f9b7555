// Package capability defines the uniform interface between the engine and
// its external collaborators. The engine dispatches every task unit through
// Executor and never depends on a collaborator's wire protocol.
package capability

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"maestro/pkg/models"
)

// ErrorKind classifies an execution failure for the retry coordinator.
type ErrorKind string

const (
	// KindTimeout is a transient failure: the collaborator did not answer in time.
	KindTimeout ErrorKind = "timeout"
	// KindUnavailable is a transient failure: the collaborator is temporarily down.
	KindUnavailable ErrorKind = "unavailable"
	// KindInvalidPayload is a permanent failure: the unit's payload is malformed.
	KindInvalidPayload ErrorKind = "invalid_payload"
	// KindPermissionDenied is a permanent failure: the collaborator refused access.
	KindPermissionDenied ErrorKind = "permission_denied"
	// KindInternal is a permanent failure with no more specific classification.
	KindInternal ErrorKind = "internal"
)

// Retryable returns true for transient kinds that the retry policy may re-dispatch.
func (k ErrorKind) Retryable() bool {
	return k == KindTimeout || k == KindUnavailable
}

// ExecutionError wraps a collaborator failure with its classification.
type ExecutionError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewError creates an ExecutionError with the given kind and message.
func NewError(kind ErrorKind, format string, args ...interface{}) *ExecutionError {
	return &ExecutionError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Classify extracts the ErrorKind from an error. Context deadline expiry maps
// to timeout; unclassified errors are treated as permanent.
func Classify(err error) ErrorKind {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindInternal
}

// Executor is the capability interface consumed by the scheduler.
// Execute runs a unit's payload against the external collaborator and
// returns an opaque success result, or an error classifiable via Classify.
type Executor interface {
	Execute(ctx context.Context, payload string) (string, error)
}

// Func adapts a plain function to the Executor interface.
type Func func(ctx context.Context, payload string) (string, error)

// Execute implements Executor.
func (f Func) Execute(ctx context.Context, payload string) (string, error) {
	return f(ctx, payload)
}

// Registry maps capabilities to their collaborator executors.
type Registry struct {
	mu        sync.RWMutex
	executors map[models.Capability]Executor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[models.Capability]Executor)}
}

// Register binds an executor to a capability, replacing any previous binding.
func (r *Registry) Register(cap models.Capability, exec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[cap] = exec
}

// Lookup returns the executor for a capability.
func (r *Registry) Lookup(cap models.Capability) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exec, ok := r.executors[cap]
	if !ok {
		return nil, NewError(KindInvalidPayload, "no collaborator registered for capability %q", cap)
	}
	return exec, nil
}

// Capabilities returns the registered capabilities.
func (r *Registry) Capabilities() []models.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make([]models.Capability, 0, len(r.executors))
	for c := range r.executors {
		caps = append(caps, c)
	}
	return caps
}
