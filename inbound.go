// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package solclient

import (
	"runtime"

	"github.com/absmach/solclient/internal/native"
)

// InboundMessage is a received message. The wrapper owns the native handle;
// Free releases it eagerly, and a finalizer backstops handles that are never
// freed explicitly. Slices returned by Payload and UserData alias
// engine-owned memory and are valid only until the message is freed.
type InboundMessage struct {
	message
}

func newInboundMessage(h native.MessageHandle) *InboundMessage {
	m := &InboundMessage{message{h: h}}
	runtime.SetFinalizer(m, func(m *InboundMessage) { m.Free() })
	return m
}

// IsRedelivered reports whether the engine redelivered this message.
func (m *InboundMessage) IsRedelivered() (bool, error) {
	v, rc := native.MsgIsRedelivered(m.h)
	if !rc.IsOk() {
		return false, &FieldError{Field: "redelivered", Code: rc}
	}
	return v, nil
}

// DiscardIndication reports whether the engine discarded one or more
// messages ahead of this one.
func (m *InboundMessage) DiscardIndication() (bool, error) {
	v, rc := native.MsgGetDiscardIndication(m.h)
	if !rc.IsOk() {
		return false, &FieldError{Field: "discard_indication", Code: rc}
	}
	return v, nil
}

// CacheRequestID returns the cache request ID for messages delivered in
// response to a cache request; live messages read back absent.
func (m *InboundMessage) CacheRequestID() (uint64, bool, error) {
	id, rc := native.MsgGetCacheRequestID(m.h)
	switch rc {
	case native.Ok:
		return id, true, nil
	case native.NotFound:
		return 0, false, nil
	default:
		return 0, false, &FieldError{Field: "cache_request_id", Code: rc}
	}
}

// FlowInboundMessage is a message delivered on a flow. It carries a
// non-owning copy of the flow handle so the message can be acknowledged; if
// the flow has been destroyed, Ack fails with ErrFlowFreedBeforeAck instead
// of touching a dead handle.
type FlowInboundMessage struct {
	InboundMessage
	flow native.FlowHandle
}

func newFlowInboundMessage(h native.MessageHandle, flow native.FlowHandle) *FlowInboundMessage {
	m := &FlowInboundMessage{InboundMessage: InboundMessage{message{h: h}}, flow: flow}
	runtime.SetFinalizer(m, func(m *FlowInboundMessage) { m.Free() })
	return m
}

// Ack acknowledges the message on its originating flow. Only meaningful in
// client-ack mode; acknowledging an already-settled message is a no-op.
func (m *FlowInboundMessage) Ack() error {
	if m.freed.Load() {
		return ErrMessageNotFound
	}
	rc := native.FlowSendAck(m.flow, m.h)
	if rc.IsOk() {
		return nil
	}
	if rc == native.NotFound {
		return ErrMessageNotFound
	}
	d := lastDiagnostics(rc)
	if d.SubCode == native.SubCodeUnknownFlowName {
		return ErrFlowFreedBeforeAck
	}
	return &AckError{d}
}
