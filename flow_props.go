// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package solclient

import (
	"strconv"

	"github.com/absmach/solclient/internal/native"
)

// AckMode selects how flow deliveries are settled.
type AckMode int

// Acknowledgement modes.
const (
	// AckModeAuto settles deliveries as soon as the callback returns.
	AckModeAuto AckMode = iota + 1
	// AckModeClient leaves settlement to FlowInboundMessage.Ack; unacked
	// messages are redelivered.
	AckModeClient
)

type flowBindKind int

const (
	bindNone flowBindKind = iota
	bindQueue
	bindTopicEndpoint
	bindSubscriber
)

// FlowBuilder assembles a consumer flow. Setters are infallible and
// chainable; Build validates, encodes, and binds in one step.
type FlowBuilder struct {
	sess *Session

	bindKind flowBindKind
	bindName string
	durable  *bool
	topic    *string

	windowSize          *int
	ackMode             *AckMode
	ackTimerMs          *int
	ackThreshold        *int
	startStopped        *bool
	selector            *string
	noLocal             *bool
	maxBindTries        *int
	bindTimeoutMs       *int
	maxUnackedMessages  *int
	browser             *bool
	activeFlowInd       *bool
	replayStartLocation *string
	maxReconnectTries   *int
	reconnectWaitMs     *int

	onMessage func(*FlowInboundMessage)
	onEvent   func(FlowEvent)
}

func newFlowBuilder(sess *Session) *FlowBuilder {
	return &FlowBuilder{sess: sess}
}

// BindQueue binds the flow to the named queue.
func (b *FlowBuilder) BindQueue(name string) *FlowBuilder {
	b.bindKind = bindQueue
	b.bindName = name
	return b
}

// BindTopicEndpoint binds the flow to the named topic endpoint; Topic must
// be set as well.
func (b *FlowBuilder) BindTopicEndpoint(name string) *FlowBuilder {
	b.bindKind = bindTopicEndpoint
	b.bindName = name
	return b
}

// BindSubscriber binds the flow as a plain subscriber of Topic.
func (b *FlowBuilder) BindSubscriber() *FlowBuilder {
	b.bindKind = bindSubscriber
	b.bindName = ""
	return b
}

// Durable selects a durable (default) or temporary bind target.
func (b *FlowBuilder) Durable(durable bool) *FlowBuilder {
	b.durable = &durable
	return b
}

// Topic sets the topic for topic-endpoint and subscriber binds.
func (b *FlowBuilder) Topic(topic string) *FlowBuilder {
	b.topic = &topic
	return b
}

// WindowSize sets the delivery window, 1 through 255.
func (b *FlowBuilder) WindowSize(n int) *FlowBuilder {
	b.windowSize = &n
	return b
}

// AckMode sets the acknowledgement mode.
func (b *FlowBuilder) AckMode(mode AckMode) *FlowBuilder {
	b.ackMode = &mode
	return b
}

// AckTimerMs sets the redelivery timer for unacknowledged messages, 20
// through 1500 ms.
func (b *FlowBuilder) AckTimerMs(ms int) *FlowBuilder {
	b.ackTimerMs = &ms
	return b
}

// AckThreshold sets the window-occupancy percentage that triggers a window
// update, 1 through 75.
func (b *FlowBuilder) AckThreshold(percent int) *FlowBuilder {
	b.ackThreshold = &percent
	return b
}

// StartStopped creates the flow with delivery paused; call Flow.Start to
// begin.
func (b *FlowBuilder) StartStopped(stopped bool) *FlowBuilder {
	b.startStopped = &stopped
	return b
}

// Selector sets the message selector expression.
func (b *FlowBuilder) Selector(selector string) *FlowBuilder {
	b.selector = &selector
	return b
}

// NoLocal excludes messages published on the same session.
func (b *FlowBuilder) NoLocal(noLocal bool) *FlowBuilder {
	b.noLocal = &noLocal
	return b
}

// MaxBindTries sets how many times the bind is attempted.
func (b *FlowBuilder) MaxBindTries(n int) *FlowBuilder {
	b.maxBindTries = &n
	return b
}

// BindTimeoutMs sets the per-attempt bind timeout.
func (b *FlowBuilder) BindTimeoutMs(ms int) *FlowBuilder {
	b.bindTimeoutMs = &ms
	return b
}

// MaxUnackedMessages caps outstanding unacknowledged messages; -1 means no
// cap.
func (b *FlowBuilder) MaxUnackedMessages(n int) *FlowBuilder {
	b.maxUnackedMessages = &n
	return b
}

// Browser makes the flow a non-consuming browser of the queue.
func (b *FlowBuilder) Browser(browser bool) *FlowBuilder {
	b.browser = &browser
	return b
}

// ActiveFlowIndication requests Active/Inactive flow events.
func (b *FlowBuilder) ActiveFlowIndication(enable bool) *FlowBuilder {
	b.activeFlowInd = &enable
	return b
}

// ReplayStartLocation requests replay from the given location ("BEGINNING"
// or a replication-group message ID).
func (b *FlowBuilder) ReplayStartLocation(location string) *FlowBuilder {
	b.replayStartLocation = &location
	return b
}

// MaxReconnectTries sets how many times a lost flow is rebound; -1 means
// forever.
func (b *FlowBuilder) MaxReconnectTries(n int) *FlowBuilder {
	b.maxReconnectTries = &n
	return b
}

// ReconnectRetryIntervalMs sets the wait between rebind attempts.
func (b *FlowBuilder) ReconnectRetryIntervalMs(ms int) *FlowBuilder {
	b.reconnectWaitMs = &ms
	return b
}

// OnMessage sets the closure invoked for every delivered message. The
// closure runs on the context dispatch thread.
func (b *FlowBuilder) OnMessage(fn func(*FlowInboundMessage)) *FlowBuilder {
	b.onMessage = fn
	return b
}

// OnEvent sets the closure invoked for flow events.
func (b *FlowBuilder) OnEvent(fn func(FlowEvent)) *FlowBuilder {
	b.onEvent = fn
	return b
}

func (b *FlowBuilder) check() ([]string, error) {
	if b.bindKind == bindNone {
		return nil, &MissingRequiredArgsError{Field: "bind_entity_id"}
	}
	if b.bindKind == bindQueue || b.bindKind == bindTopicEndpoint {
		durable := b.durable == nil || *b.durable
		if durable && b.bindName == "" {
			return nil, &MissingRequiredArgsError{Field: "bind_name"}
		}
	}
	if (b.bindKind == bindTopicEndpoint || b.bindKind == bindSubscriber) && b.topic == nil {
		return nil, &MissingRequiredArgsError{Field: "topic"}
	}
	if containsNUL(b.bindName) {
		return nil, &InvalidArgsError{Field: "bind_name"}
	}
	for field, v := range map[string]*string{
		"topic":                 b.topic,
		"selector":              b.selector,
		"replay_start_location": b.replayStartLocation,
	} {
		if v != nil && containsNUL(*v) {
			return nil, &InvalidArgsError{Field: field}
		}
	}

	ranges := []struct {
		field   string
		value   *int
		allowed string
		valid   func(int) bool
	}{
		{"window_size", b.windowSize, "1 to 255", func(v int) bool { return v >= 1 && v <= 255 }},
		{"ack_timer_ms", b.ackTimerMs, "20 to 1500", func(v int) bool { return v >= 20 && v <= 1500 }},
		{"ack_threshold", b.ackThreshold, "1 to 75", func(v int) bool { return v >= 1 && v <= 75 }},
		{"max_bind_tries", b.maxBindTries, ">= 1", func(v int) bool { return v >= 1 }},
		{"bind_timeout_ms", b.bindTimeoutMs, ">= 50", func(v int) bool { return v >= 50 }},
		{"max_unacked_messages", b.maxUnackedMessages, ">= -1", func(v int) bool { return v >= -1 }},
		{"max_reconnect_tries", b.maxReconnectTries, ">= -1", func(v int) bool { return v >= -1 }},
	}
	for _, r := range ranges {
		if r.value != nil && !r.valid(*r.value) {
			return nil, &InvalidRangeError{
				Field:   r.field,
				Allowed: r.allowed,
				Actual:  strconv.Itoa(*r.value),
			}
		}
	}

	pairs := make([]string, 0, 16)
	add := func(key, value string) {
		pairs = append(pairs, key, value)
	}
	switch b.bindKind {
	case bindQueue:
		add(native.FlowPropBindEntityID, native.FlowBindEntityQueue)
	case bindTopicEndpoint:
		add(native.FlowPropBindEntityID, native.FlowBindEntityTE)
	case bindSubscriber:
		add(native.FlowPropBindEntityID, native.FlowBindEntitySub)
	}
	if b.bindName != "" {
		add(native.FlowPropBindName, b.bindName)
	}
	if b.durable != nil && !*b.durable {
		add(native.FlowPropBindEntityDurable, native.PropFalse)
	}
	if b.topic != nil {
		add(native.FlowPropTopic, *b.topic)
	}
	if b.ackMode != nil && *b.ackMode == AckModeClient {
		add(native.FlowPropAckMode, native.FlowAckModeClient)
	}
	if b.startStopped != nil && *b.startStopped {
		add(native.FlowPropStartState, native.FlowStartStateStopped)
	}

	addInt := func(key string, v *int) {
		if v != nil {
			add(key, strconv.Itoa(*v))
		}
	}
	addBool := func(key string, v *bool) {
		if v == nil {
			return
		}
		if *v {
			add(key, native.PropTrue)
		} else {
			add(key, native.PropFalse)
		}
	}
	addInt(native.FlowPropWindowSize, b.windowSize)
	addInt(native.FlowPropAckTimer, b.ackTimerMs)
	addInt(native.FlowPropAckThreshold, b.ackThreshold)
	if b.selector != nil {
		add(native.FlowPropSelector, *b.selector)
	}
	addBool(native.FlowPropNoLocal, b.noLocal)
	addInt(native.FlowPropMaxBindTries, b.maxBindTries)
	addInt(native.FlowPropBindTimeout, b.bindTimeoutMs)
	addInt(native.FlowPropMaxUnackedMessages, b.maxUnackedMessages)
	addBool(native.FlowPropBrowser, b.browser)
	addBool(native.FlowPropActiveFlowInd, b.activeFlowInd)
	if b.replayStartLocation != nil {
		add(native.FlowPropReplayStartLocation, *b.replayStartLocation)
	}
	addInt(native.FlowPropMaxReconnectTries, b.maxReconnectTries)
	addInt(native.FlowPropReconnectRetryWait, b.reconnectWaitMs)
	return pairs, nil
}

// Build validates the configuration and binds the flow. Delivery begins
// before Build returns unless the flow was created stopped.
func (b *FlowBuilder) Build() (*Flow, error) {
	if b.sess.closed.Load() {
		return nil, ErrSessionClosed
	}
	raw, err := b.check()
	if err != nil {
		return nil, err
	}

	cbs := &flowCallbacks{
		onMessage: b.onMessage,
		onEvent:   b.onEvent,
		log:       b.sess.log,
	}
	cbh := registerCallback(cbs)
	funcs := native.FlowFuncInfo{
		MsgCB:     flowMessageShim,
		MsgUser:   uintptr(cbh),
		EventCB:   flowEventShim,
		EventUser: uintptr(cbh),
	}

	h, rc := native.FlowCreate(raw, b.sess.h, funcs)
	if !rc.IsOk() {
		freeCallback(cbh)
		return nil, &InitializationError{lastDiagnostics(rc)}
	}
	return &Flow{h: h, sess: b.sess, cbh: cbh, log: b.sess.log}, nil
}
