// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package solclient

import (
	"log/slog"
	"sync"

	"github.com/absmach/solclient/internal/native"
)

// The engine accepts only a plain function value plus one opaque uintptr of
// user data per callback. User closures are therefore parked in a
// process-wide registry and the registry key travels as the user data; the
// function registered with the engine is always one of the fixed shims
// below, which resolve the key back to the closure and invoke it.
//
// Closures run on the engine's context dispatch goroutine, one at a time, in
// arrival order. They must be safe to move to that goroutine but are never
// invoked concurrently with themselves. A registry entry lives exactly as
// long as the Session or Flow that registered it.

type callbackHandle uintptr

var cbReg = struct {
	mu      sync.Mutex
	next    uintptr
	entries map[uintptr]any
}{entries: make(map[uintptr]any)}

func registerCallback(v any) callbackHandle {
	cbReg.mu.Lock()
	defer cbReg.mu.Unlock()
	cbReg.next++
	cbReg.entries[cbReg.next] = v
	return callbackHandle(cbReg.next)
}

// resolveCallback returns nil for a zero or unknown key. A user pointer the
// registry does not know results in a no-op shim invocation, never a
// dereference.
func resolveCallback(key uintptr) any {
	if key == 0 {
		return nil
	}
	cbReg.mu.Lock()
	defer cbReg.mu.Unlock()
	return cbReg.entries[key]
}

func freeCallback(h callbackHandle) {
	cbReg.mu.Lock()
	delete(cbReg.entries, uintptr(h))
	cbReg.mu.Unlock()
}

// sessionCallbacks is the registry entry for a session. onMessage and
// onEvent may be nil; the shims then accept and drop the delivery, because
// the engine requires a valid message callback at all times.
type sessionCallbacks struct {
	onMessage func(*InboundMessage)
	onEvent   func(SessionEvent)
	log       *slog.Logger
}

func sessionMessageShim(_ native.SessionHandle, msg native.MessageHandle, user uintptr) native.CallbackReturn {
	cbs, ok := resolveCallback(user).(*sessionCallbacks)
	if !ok || cbs.onMessage == nil {
		return native.CallbackOk
	}
	cbs.onMessage(newInboundMessage(msg))
	return native.CallbackTakeMsg
}

func sessionEventShim(_ native.SessionHandle, info native.SessionEventInfo, user uintptr) {
	cbs, ok := resolveCallback(user).(*sessionCallbacks)
	if !ok || cbs.onEvent == nil {
		return
	}
	event, known := sessionEventFromCode(info.Code)
	if !known {
		cbs.log.Warn("unknown session event dropped", "code", info.Code, "info", info.Info)
		return
	}
	cbs.onEvent(event)
}

// flowCallbacks is the registry entry for a flow. The flow handle is carried
// so delivered messages can be acknowledged.
type flowCallbacks struct {
	onMessage func(*FlowInboundMessage)
	onEvent   func(FlowEvent)
	log       *slog.Logger
}

func flowMessageShim(flow native.FlowHandle, msg native.MessageHandle, user uintptr) native.CallbackReturn {
	cbs, ok := resolveCallback(user).(*flowCallbacks)
	if !ok || cbs.onMessage == nil {
		return native.CallbackOk
	}
	cbs.onMessage(newFlowInboundMessage(msg, flow))
	return native.CallbackTakeMsg
}

func flowEventShim(_ native.FlowHandle, info native.FlowEventInfo, user uintptr) {
	cbs, ok := resolveCallback(user).(*flowCallbacks)
	if !ok || cbs.onEvent == nil {
		return
	}
	event, known := flowEventFromCode(info.Code)
	if !known {
		cbs.log.Warn("unknown flow event dropped", "code", info.Code, "info", info.Info)
		return
	}
	cbs.onEvent(event)
}
