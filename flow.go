// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package solclient

import (
	"log/slog"
	"sync/atomic"

	"github.com/absmach/solclient/internal/native"
)

// Flow is a bound consumer attached to a queue, topic endpoint, or
// subscription. It is lifetime-bound to its Session and holds its own
// message/event closures, independent of the session's. Messages arrive only
// through the registered callback.
type Flow struct {
	h      native.FlowHandle
	sess   *Session
	cbh    callbackHandle
	log    *slog.Logger
	closed atomic.Bool
}

// Start resumes delivery on a flow created stopped or stopped with Stop.
func (f *Flow) Start() error {
	if f.closed.Load() {
		return ErrFlowClosed
	}
	if rc := native.FlowStart(f.h); !rc.IsOk() {
		return &FlowOperationError{Op: "start", Diagnostics: lastDiagnostics(rc)}
	}
	return nil
}

// Stop pauses delivery. Messages already handed to the callback are not
// recalled.
func (f *Flow) Stop() error {
	if f.closed.Load() {
		return ErrFlowClosed
	}
	if rc := native.FlowStop(f.h); !rc.IsOk() {
		return &FlowOperationError{Op: "stop", Diagnostics: lastDiagnostics(rc)}
	}
	return nil
}

// Close unbinds and destroys the flow and releases its callbacks.
// Unacknowledged messages return to the queue for redelivery. Failures are
// logged, never returned. Close is idempotent.
func (f *Flow) Close() {
	if !f.closed.CompareAndSwap(false, true) {
		return
	}
	if rc := native.FlowDestroy(f.h); !rc.IsOk() {
		f.log.Warn("flow destroy failed", "code", rc.String())
	}
	freeCallback(f.cbh)
}
