// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package native

import (
	"log/slog"
	"sync"
)

// Opaque handles minted by the engine. Zero is never a valid handle.
type (
	ContextHandle      uint64
	SessionHandle      uint64
	FlowHandle         uint64
	CacheSessionHandle uint64
)

// Log levels accepted by Initialize.
const (
	LogCritical uint32 = 2
	LogError    uint32 = 3
	LogWarning  uint32 = 4
	LogNotice   uint32 = 5
	LogInfo     uint32 = 6
	LogDebug    uint32 = 7
)

// CallbackReturn is returned by message callbacks to tell the engine who owns
// the delivered message handle.
type CallbackReturn int32

const (
	// CallbackOk means the engine keeps ownership and frees the handle.
	CallbackOk CallbackReturn = 0
	// CallbackTakeMsg means the callback took ownership of the handle.
	CallbackTakeMsg CallbackReturn = 1
)

// SessionEventInfo describes a session event delivered to the event callback.
type SessionEventInfo struct {
	Code uint32
	Info string
}

// FlowEventInfo describes a flow event delivered to the flow event callback.
type FlowEventInfo struct {
	Code uint32
	Info string
}

// Callback function types. The engine invokes them from the owning context's
// dispatch goroutine, serially and in arrival order, with the opaque user
// value supplied at registration.
type (
	MessageCallback      func(session SessionHandle, msg MessageHandle, user uintptr) CallbackReturn
	SessionEventCallback func(session SessionHandle, event SessionEventInfo, user uintptr)
	FlowMessageCallback  func(flow FlowHandle, msg MessageHandle, user uintptr) CallbackReturn
	FlowEventCallback    func(flow FlowHandle, event FlowEventInfo, user uintptr)
)

// SessionFuncInfo carries the callback registration for a session. MsgCB must
// be non-nil for the lifetime of the session.
type SessionFuncInfo struct {
	MsgCB     MessageCallback
	MsgUser   uintptr
	EventCB   SessionEventCallback
	EventUser uintptr
}

// FlowFuncInfo carries the callback registration for a flow.
type FlowFuncInfo struct {
	MsgCB     FlowMessageCallback
	MsgUser   uintptr
	EventCB   FlowEventCallback
	EventUser uintptr
}

var lib = struct {
	mu            sync.Mutex
	initialized   bool
	logLevel      uint32
	log           *slog.Logger
	nextID        uint64
	contexts      map[ContextHandle]*contextState
	sessions      map[SessionHandle]*sessionState
	flows         map[FlowHandle]*flowState
	cacheSessions map[CacheSessionHandle]*cacheSessionState
	vpns          map[string]*vpnState
}{
	log:           slog.Default(),
	contexts:      make(map[ContextHandle]*contextState),
	sessions:      make(map[SessionHandle]*sessionState),
	flows:         make(map[FlowHandle]*flowState),
	cacheSessions: make(map[CacheSessionHandle]*cacheSessionState),
	vpns:          make(map[string]*vpnState),
}

func nextID() uint64 {
	lib.nextID++
	return lib.nextID
}

// Initialize sets up the engine's process-wide state. It is idempotent; the
// first call wins.
func Initialize(logLevel uint32) ReturnCode {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	if lib.initialized {
		return Ok
	}
	lib.initialized = true
	lib.logLevel = logLevel
	lib.log = slog.Default().With("component", "native")
	return Ok
}

// Cleanup tears down the engine's process-wide state, destroying any
// remaining contexts.
func Cleanup() ReturnCode {
	lib.mu.Lock()
	contexts := make([]*contextState, 0, len(lib.contexts))
	for _, ctx := range lib.contexts {
		contexts = append(contexts, ctx)
	}
	lib.mu.Unlock()

	for _, ctx := range contexts {
		ContextDestroy(ctx.h)
	}

	lib.mu.Lock()
	lib.initialized = false
	lib.vpns = make(map[string]*vpnState)
	lib.mu.Unlock()
	return Ok
}

// mailbox is an unbounded FIFO of dispatch work. Unbounded so that callbacks
// may re-enter the engine (publish from within a message callback) without
// deadlocking the dispatch goroutine.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
}

func newMailbox() *mailbox {
	mb := &mailbox{}
	mb.cond = sync.NewCond(&mb.mu)
	return mb
}

func (mb *mailbox) push(fn func()) bool {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return false
	}
	mb.queue = append(mb.queue, fn)
	mb.cond.Signal()
	return true
}

func (mb *mailbox) pop() (func(), bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for len(mb.queue) == 0 && !mb.closed {
		mb.cond.Wait()
	}
	if len(mb.queue) == 0 {
		return nil, false
	}
	fn := mb.queue[0]
	mb.queue = mb.queue[1:]
	return fn, true
}

func (mb *mailbox) close() {
	mb.mu.Lock()
	mb.closed = true
	mb.cond.Broadcast()
	mb.mu.Unlock()
}

// contextState owns one dispatch goroutine. All callbacks of all sessions
// created on the context run on it, one at a time, in arrival order.
type contextState struct {
	h    ContextHandle
	box  *mailbox
	done chan struct{}
}

func (ctx *contextState) run() {
	defer close(ctx.done)
	for {
		fn, ok := ctx.box.pop()
		if !ok {
			return
		}
		fn()
	}
}

func (ctx *contextState) dispatch(fn func()) {
	if !ctx.box.push(fn) {
		lib.log.Warn("dispatch on destroyed context dropped", "context", uint64(ctx.h))
	}
}

// ContextCreate creates a context and starts its dispatch thread.
func ContextCreate(props []string) (ContextHandle, ReturnCode) {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	if !lib.initialized {
		setLastError(SubCodeInvalidSessionOperation, "engine is not initialized")
		return 0, NotReady
	}
	if _, ok := parseProps(props); !ok {
		setLastError(SubCodeParamOutOfRange, "context property list is not a key/value sequence")
		return 0, Fail
	}
	ctx := &contextState{
		h:    ContextHandle(nextID()),
		box:  newMailbox(),
		done: make(chan struct{}),
	}
	lib.contexts[ctx.h] = ctx
	go ctx.run()
	return ctx.h, Ok
}

// ContextDestroy destroys the context, stopping its dispatch thread after the
// already queued work drains. Sessions still attached are destroyed first.
func ContextDestroy(h ContextHandle) ReturnCode {
	lib.mu.Lock()
	ctx, ok := lib.contexts[h]
	if !ok {
		lib.mu.Unlock()
		setLastError(SubCodeParamNullPtr, "context handle %d is not valid", h)
		return Fail
	}
	sessions := make([]*sessionState, 0)
	for _, s := range lib.sessions {
		if s.ctx == ctx {
			sessions = append(sessions, s)
		}
	}
	lib.mu.Unlock()

	for _, s := range sessions {
		lib.log.Warn("destroying context with live session", "session", uint64(s.h))
		SessionDestroy(s.h)
	}

	lib.mu.Lock()
	delete(lib.contexts, h)
	lib.mu.Unlock()

	ctx.box.close()
	<-ctx.done
	return Ok
}

// vpnState is the routing domain shared by every session connected to the
// same host and message-vpn pair.
type vpnState struct {
	mu         sync.Mutex
	subs       map[*sessionState]map[string]struct{}
	replyInbox map[string]*sessionState
	queues     map[string]*queueState
	cache      map[string][]cachedMsg
}

func vpnFor(host, vpn string) *vpnState {
	key := host + "/" + vpn
	v, ok := lib.vpns[key]
	if !ok {
		v = &vpnState{
			subs:       make(map[*sessionState]map[string]struct{}),
			replyInbox: make(map[string]*sessionState),
			queues:     make(map[string]*queueState),
			cache:      make(map[string][]cachedMsg),
		}
		lib.vpns[key] = v
	}
	return v
}
