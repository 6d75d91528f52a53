// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package solclient is a safe binding layer over a handle-based,
// callback-driven messaging client engine. It exposes publish/subscribe,
// durable queue consumption (flows), request-reply, and replay-cache queries
// over a broker message bus, wrapping the engine's opaque handles, integer
// return codes, and function-pointer callbacks in ownership-checked types
// and closures.
//
// The resource hierarchy is Context -> Session -> (Flow | CacheSession).
// Parents must outlive children; Close on a parent logs and tears down
// leftover children rather than panicking.
package solclient

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/absmach/solclient/internal/native"
)

// LogLevel controls the engine's log verbosity, set once per process by the
// first NewContext call.
type LogLevel uint32

// Log levels.
const (
	LogCritical = LogLevel(native.LogCritical)
	LogError    = LogLevel(native.LogError)
	LogWarning  = LogLevel(native.LogWarning)
	LogNotice   = LogLevel(native.LogNotice)
	LogInfo     = LogLevel(native.LogInfo)
	LogDebug    = LogLevel(native.LogDebug)
)

// Engine global state is initialized at most once per process, no matter how
// many Context values are constructed.
var (
	initOnce sync.Once
	initRC   native.ReturnCode
)

// rawContext owns the native context handle. It is reference counted: every
// Session holds a reference, and the handle is destroyed only when the last
// holder releases it.
type rawContext struct {
	h    native.ContextHandle
	refs atomic.Int32
	log  *slog.Logger
}

func (r *rawContext) retain() {
	r.refs.Add(1)
}

func (r *rawContext) release() {
	if r.refs.Add(-1) != 0 {
		return
	}
	if rc := native.ContextDestroy(r.h); !rc.IsOk() {
		r.log.Warn("context destroy failed", "code", rc.String())
	}
}

// Context is a process-level handle to the engine's dispatch thread. All
// session and flow callbacks created from one Context run on that thread,
// serially, in arrival order.
type Context struct {
	raw    *rawContext
	log    *slog.Logger
	closed atomic.Bool
}

// NewContext initializes the engine (first call only) and creates a context
// with its own dispatch thread.
func NewContext(level LogLevel) (*Context, error) {
	initOnce.Do(func() {
		initRC = native.Initialize(uint32(level))
	})
	if !initRC.IsOk() {
		return nil, &InitializationError{lastDiagnostics(initRC)}
	}

	props := []string{native.ContextPropCreateThread, native.PropTrue}
	h, rc := native.ContextCreate(props)
	if !rc.IsOk() {
		return nil, &InitializationError{lastDiagnostics(rc)}
	}

	log := slog.Default().With("component", "solclient")
	raw := &rawContext{h: h, log: log}
	raw.refs.Store(1)
	return &Context{raw: raw, log: log}, nil
}

// SessionBuilder returns a builder for a session on this context.
func (c *Context) SessionBuilder() *SessionBuilder {
	return newSessionBuilder(c)
}

// Session creates and connects a session with the required properties and
// callbacks, using defaults for everything else.
func (c *Context) Session(host, vpn, username, password string, onMessage func(*InboundMessage), onEvent func(SessionEvent)) (*Session, error) {
	return c.SessionBuilder().
		Host(host).
		VPN(vpn).
		Username(username).
		Password(password).
		OnMessage(onMessage).
		OnEvent(onEvent).
		Build()
}

// Close releases the Context's own reference. The native context is
// destroyed once every Session derived from it has been closed as well.
// Close is idempotent.
func (c *Context) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.raw.release()
}
