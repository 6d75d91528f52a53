// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package native

import (
	"time"

	"github.com/google/uuid"
)

// Flow event codes.
const (
	FlowEventUpNotice uint32 = iota
	FlowEventDownError
	FlowEventBindFailedError
	FlowEventRejectedMsgError
	FlowEventSessionDown
	FlowEventActive
	FlowEventInactive
	FlowEventReconnecting
	FlowEventReconnected
)

const (
	defaultFlowWindowSize = 255
	defaultFlowAckTimerMs = 1000
)

type endpointKind int

const (
	endpointQueue endpointKind = iota
	endpointTE
)

// queueState is a queue or topic-endpoint on a message vpn. Guarded by the
// owning vpn's mutex.
type queueState struct {
	name          string
	kind          endpointKind
	durable       bool
	topic         string
	maxRedelivery uint32
	quotaMB       int
	maxMsgSize    int

	backlog []*msgRecord
	flow    *flowState
}

func (q *queueState) enqueueLocked(w *msgRecord) {
	rec := *w
	q.backlog = append(q.backlog, &rec)
	q.deliverLocked()
}

// deliverLocked drains the backlog into the bound flow, respecting the flow
// window in client-ack mode.
func (q *queueState) deliverLocked() {
	f := q.flow
	if f == nil || !f.started || f.destroyed {
		return
	}
	for len(q.backlog) > 0 {
		if f.ackModeClient && f.inflight >= f.windowSize {
			return
		}
		rec := q.backlog[0]
		q.backlog = q.backlog[1:]
		f.deliverLocked(rec)
	}
}

type delivery struct {
	rec     *msgRecord
	timer   *time.Timer
	handles []MessageHandle
	count   uint32
	acked   bool
}

type flowState struct {
	h    FlowHandle
	sess *sessionState
	vpn  *vpnState
	q    *queueState

	ackModeClient bool
	ackTimerMs    int
	windowSize    int
	started       bool
	tempQueue     bool
	destroyed     bool

	funcs FlowFuncInfo

	inflight int
	unacked  map[MessageHandle]*delivery
}

// dispatchMsg hands an owned message handle to the flow's message callback on
// the context dispatch goroutine.
func (f *flowState) dispatchMsg(h MessageHandle) {
	f.sess.ctx.dispatch(func() {
		cb := f.funcs.MsgCB
		if cb == nil || cb(f.h, h, f.funcs.MsgUser) == CallbackOk {
			MsgFree(h)
		}
	})
}

func (f *flowState) dispatchEvent(code uint32, info string) {
	cb := f.funcs.EventCB
	if cb == nil {
		return
	}
	f.sess.ctx.dispatch(func() {
		cb(f.h, FlowEventInfo{Code: code, Info: info}, f.funcs.EventUser)
	})
}

// deliverLocked delivers one record, arming the redelivery timer in
// client-ack mode. Caller holds the vpn mutex.
func (f *flowState) deliverLocked(rec *msgRecord) {
	h := deliveryHandle(rec)
	if f.ackModeClient {
		d := &delivery{rec: rec, handles: []MessageHandle{h}}
		f.unacked[h] = d
		f.inflight++
		d.timer = time.AfterFunc(time.Duration(f.ackTimerMs)*time.Millisecond, func() {
			f.redeliver(d)
		})
	}
	f.dispatchMsg(h)
}

// redeliver re-sends an unacknowledged delivery with the redelivered flag
// set, until it is acknowledged or the endpoint's redelivery limit drops it.
func (f *flowState) redeliver(d *delivery) {
	f.vpn.mu.Lock()
	defer f.vpn.mu.Unlock()
	if d.acked || f.destroyed {
		return
	}
	d.count++
	if f.q.maxRedelivery > 0 && d.count > f.q.maxRedelivery {
		lib.log.Warn("message exceeded redelivery limit, dropping",
			"queue", f.q.name, "redeliveries", d.count-1)
		f.removeDeliveryLocked(d)
		f.q.deliverLocked()
		return
	}
	rec := *d.rec
	rec.redelivered = true
	d.rec = &rec
	h := deliveryHandle(&rec)
	d.handles = append(d.handles, h)
	f.unacked[h] = d
	d.timer = time.AfterFunc(time.Duration(f.ackTimerMs)*time.Millisecond, func() {
		f.redeliver(d)
	})
	f.dispatchMsg(h)
}

func (f *flowState) removeDeliveryLocked(d *delivery) {
	d.acked = true
	if d.timer != nil {
		d.timer.Stop()
	}
	for _, h := range d.handles {
		delete(f.unacked, h)
	}
	f.inflight--
}

// FlowCreate binds a consumer flow on the session according to the property
// list. The message callback in funcs must be non-nil. On success an
// UpNotice flow event is delivered and any queued backlog starts flowing.
func FlowCreate(props []string, sessH SessionHandle, funcs FlowFuncInfo) (FlowHandle, ReturnCode) {
	if funcs.MsgCB == nil {
		setLastError(SubCodeParamNullPtr, "flow message callback must not be nil")
		return 0, Fail
	}
	s, ok := lookupSession(sessH)
	if !ok {
		setLastError(SubCodeParamNullPtr, "session handle %d is not valid", sessH)
		return 0, Fail
	}
	if !s.isConnected() {
		setLastError(SubCodeInvalidSessionOperation, "session %d is not connected", sessH)
		return 0, NotReady
	}
	m, ok := parseProps(props)
	if !ok {
		setLastError(SubCodeParamOutOfRange, "flow property list is not a key/value sequence")
		return 0, Fail
	}

	entity := m[FlowPropBindEntityID]
	if entity == "" {
		entity = FlowBindEntitySub
	}
	bindName := m[FlowPropBindName]
	topic := m[FlowPropTopic]
	durable := propBool(m, FlowPropBindEntityDurable, true)

	v := s.vpn
	v.mu.Lock()
	defer v.mu.Unlock()

	var q *queueState
	var temp bool
	switch entity {
	case FlowBindEntityQueue:
		if durable {
			existing, found := v.queues[bindName]
			if bindName == "" || !found || existing.kind != endpointQueue {
				setLastError(SubCodeUnknownQueueName, "queue %q does not exist", bindName)
				return 0, Fail
			}
			q = existing
		} else {
			q, temp = tempQueueLocked(v, bindName, endpointQueue), true
		}
	case FlowBindEntityTE:
		if topic == "" {
			setLastError(SubCodeParamNullPtr, "topic endpoint bind requires a topic")
			return 0, Fail
		}
		if durable {
			existing, found := v.queues[bindName]
			if bindName == "" || !found || existing.kind != endpointTE {
				setLastError(SubCodeUnknownTeName, "topic endpoint %q does not exist", bindName)
				return 0, Fail
			}
			q = existing
		} else {
			q, temp = tempQueueLocked(v, bindName, endpointTE), true
		}
		q.topic = topic
	case FlowBindEntitySub:
		if topic == "" {
			setLastError(SubCodeParamNullPtr, "subscriber bind requires a topic")
			return 0, Fail
		}
		q, temp = tempQueueLocked(v, "", endpointQueue), true
		q.topic = topic
	default:
		setLastError(SubCodeParamOutOfRange, "bind entity %q is not valid", entity)
		return 0, Fail
	}

	if q.flow != nil {
		setLastError(SubCodeInvalidFlowOperation, "endpoint %q already has a bound flow", q.name)
		return 0, Fail
	}

	f := &flowState{
		sess:          s,
		vpn:           v,
		q:             q,
		ackModeClient: m[FlowPropAckMode] == FlowAckModeClient,
		ackTimerMs:    propInt(m, FlowPropAckTimer, defaultFlowAckTimerMs),
		windowSize:    propInt(m, FlowPropWindowSize, defaultFlowWindowSize),
		started:       m[FlowPropStartState] != FlowStartStateStopped,
		tempQueue:     temp,
		funcs:         funcs,
		unacked:       make(map[MessageHandle]*delivery),
	}

	lib.mu.Lock()
	f.h = FlowHandle(nextID())
	lib.flows[f.h] = f
	lib.mu.Unlock()

	q.flow = f
	f.dispatchEvent(FlowEventUpNotice, "flow up")
	q.deliverLocked()
	return f.h, Ok
}

func tempQueueLocked(v *vpnState, name string, kind endpointKind) *queueState {
	if name == "" {
		name = "#TMP/" + uuid.NewString()
	}
	q := &queueState{name: name, kind: kind, durable: false}
	v.queues[name] = q
	return q
}

// FlowStart resumes delivery on a stopped flow.
func FlowStart(h FlowHandle) ReturnCode {
	f, ok := lookupFlow(h)
	if !ok {
		setLastError(SubCodeUnknownFlowName, "flow handle %d is not valid", h)
		return Fail
	}
	f.vpn.mu.Lock()
	defer f.vpn.mu.Unlock()
	f.started = true
	f.q.deliverLocked()
	return Ok
}

// FlowStop pauses delivery on a flow. Messages already dispatched are not
// recalled.
func FlowStop(h FlowHandle) ReturnCode {
	f, ok := lookupFlow(h)
	if !ok {
		setLastError(SubCodeUnknownFlowName, "flow handle %d is not valid", h)
		return Fail
	}
	f.vpn.mu.Lock()
	defer f.vpn.mu.Unlock()
	f.started = false
	return Ok
}

// FlowSendAck acknowledges a delivered message in client-ack mode.
// Acknowledging an already-settled message is a no-op. An unknown message
// handle returns NotFound; an unknown flow handle fails with
// UNKNOWN_FLOW_NAME.
func FlowSendAck(h FlowHandle, msg MessageHandle) ReturnCode {
	f, ok := lookupFlow(h)
	if !ok {
		setLastError(SubCodeUnknownFlowName, "flow handle %d is not valid", h)
		return Fail
	}
	f.vpn.mu.Lock()
	defer f.vpn.mu.Unlock()
	d, ok := f.unacked[msg]
	if !ok {
		if _, valid := lookupMsg(msg); !valid {
			setLastError(SubCodeParamNullPtr, "message handle %d is not valid", msg)
			return NotFound
		}
		return Ok
	}
	f.removeDeliveryLocked(d)
	f.q.deliverLocked()
	return Ok
}

// FlowDestroy unbinds and destroys the flow. Unacknowledged deliveries are
// returned to the queue, flagged redelivered, for the next bound flow. A
// temporary queue created for the flow is removed with it.
func FlowDestroy(h FlowHandle) ReturnCode {
	lib.mu.Lock()
	f, ok := lib.flows[h]
	if !ok {
		lib.mu.Unlock()
		setLastError(SubCodeUnknownFlowName, "flow handle %d is not valid", h)
		return Fail
	}
	delete(lib.flows, h)
	lib.mu.Unlock()

	f.vpn.mu.Lock()
	defer f.vpn.mu.Unlock()
	f.destroyed = true
	f.started = false

	requeue := make([]*msgRecord, 0, len(f.unacked))
	seen := make(map[*delivery]struct{})
	for _, d := range f.unacked {
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		if d.timer != nil {
			d.timer.Stop()
		}
		rec := *d.rec
		rec.redelivered = true
		requeue = append(requeue, &rec)
	}
	f.unacked = make(map[MessageHandle]*delivery)
	f.inflight = 0

	if f.q.flow == f {
		f.q.flow = nil
	}
	if f.tempQueue {
		delete(f.vpn.queues, f.q.name)
	} else {
		f.q.backlog = append(requeue, f.q.backlog...)
	}
	return Ok
}

func lookupFlow(h FlowHandle) (*flowState, bool) {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	f, ok := lib.flows[h]
	return f, ok
}
