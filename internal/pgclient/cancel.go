package pgclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNoSuchExecution is returned when a cancel request references an
// execution id with no statement in flight.
var ErrNoSuchExecution = errors.New("no in-flight statement for execution id")

// Canceler sends an out-of-band cancellation signal for one in-flight
// statement. *pgconn.PgConn satisfies it via CancelRequest, which opens a
// fresh connection to the server rather than reusing the busy one.
type Canceler interface {
	CancelRequest(ctx context.Context) error
}

// CancelRegistry maps caller-supplied execution ids to live cancellation
// handles. A handle is registered immediately before a statement is issued
// and removed right after it completes or fails, so the cancellable window
// is exactly "statement in flight".
type CancelRegistry struct {
	log *slog.Logger

	mu       sync.Mutex
	inflight map[string]Canceler
}

// NewCancelRegistry creates an empty registry. If logger is nil, a discard
// logger is used.
func NewCancelRegistry(logger *slog.Logger) *CancelRegistry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CancelRegistry{
		log:      logger,
		inflight: make(map[string]Canceler),
	}
}

// Register records the cancellation handle for an execution id. An empty
// id disables cancellation for the statement and is ignored.
func (r *CancelRegistry) Register(executionID string, c Canceler) {
	if executionID == "" || c == nil {
		return
	}
	r.mu.Lock()
	r.inflight[executionID] = c
	r.mu.Unlock()
}

// Unregister removes the handle for an execution id. Safe to call for ids
// that were never registered.
func (r *CancelRegistry) Unregister(executionID string) {
	if executionID == "" {
		return
	}
	r.mu.Lock()
	delete(r.inflight, executionID)
	r.mu.Unlock()
}

// Cancel sends a cancellation signal for the statement registered under
// executionID. The signal travels over a fresh connection; the executing
// task keeps running until the server acknowledges or the statement
// completes naturally. Unknown ids fail with ErrNoSuchExecution.
func (r *CancelRegistry) Cancel(ctx context.Context, executionID string) error {
	r.mu.Lock()
	c, ok := r.inflight[executionID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchExecution, executionID)
	}

	r.log.Debug("cancelling execution", "execution_id", executionID)

	// The network round-trip happens outside the critical section.
	if err := c.CancelRequest(ctx); err != nil {
		return fmt.Errorf("send cancel request for %q: %w", executionID, err)
	}
	return nil
}
