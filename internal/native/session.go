// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package native

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session event codes.
const (
	SessionEventUpNotice uint32 = iota
	SessionEventDownError
	SessionEventConnectFailedError
	SessionEventRejectedMsgError
	SessionEventSubscriptionError
	SessionEventRxMsgTooBigError
	SessionEventAcknowledgement
	SessionEventAssuredPublishingUp
	SessionEventAssuredDeliveryDown
	SessionEventTeUnsubscribeError
	SessionEventTeUnsubscribeOk
	SessionEventCanSend
	SessionEventReconnectingNotice
	SessionEventReconnectedNotice
	SessionEventProvisionError
	SessionEventProvisionOk
	SessionEventSubscriptionOk
	SessionEventVirtualRouterNameChanged
	SessionEventModifyPropOk
	SessionEventModifyPropFail
	SessionEventRepublishUnackedMessages
)

// Session lifecycle states.
const (
	sessionCreated int32 = iota
	sessionConnected
	sessionDisconnected
	sessionDestroyed
)

type sessionState struct {
	h   SessionHandle
	ctx *contextState
	vpn *vpnState

	host       string
	vpnName    string
	username   string
	clientName string

	compressionLevel int
	generateSendTS   bool
	ignoreDupSub     bool

	replyTopic string
	funcs      SessionFuncInfo

	state atomic.Int32

	mu      sync.Mutex
	pending map[string]chan MessageHandle
}

func (s *sessionState) isConnected() bool {
	return s.state.Load() == sessionConnected
}

func (s *sessionState) transitionFrom(from, to int32) bool {
	return s.state.CompareAndSwap(from, to)
}

// deliverMsg hands an owned message handle to the session's message callback
// on the context dispatch goroutine. If the callback does not take ownership,
// the engine frees the handle.
func (s *sessionState) deliverMsg(h MessageHandle) {
	s.ctx.dispatch(func() {
		cb := s.funcs.MsgCB
		if cb == nil || cb(s.h, h, s.funcs.MsgUser) == CallbackOk {
			MsgFree(h)
		}
	})
}

func (s *sessionState) deliverEvent(code uint32, info string) {
	cb := s.funcs.EventCB
	if cb == nil {
		return
	}
	s.ctx.dispatch(func() {
		cb(s.h, SessionEventInfo{Code: code, Info: info}, s.funcs.EventUser)
	})
}

func lookupSession(h SessionHandle) (*sessionState, bool) {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	s, ok := lib.sessions[h]
	return s, ok
}

// SessionCreate creates a session on the given context. The message callback
// in funcs must be non-nil; the engine requires a valid message callback for
// the lifetime of the session.
func SessionCreate(props []string, ctxH ContextHandle, funcs SessionFuncInfo) (SessionHandle, ReturnCode) {
	if funcs.MsgCB == nil {
		setLastError(SubCodeParamNullPtr, "session message callback must not be nil")
		return 0, Fail
	}
	m, ok := parseProps(props)
	if !ok {
		setLastError(SubCodeParamOutOfRange, "session property list is not a key/value sequence")
		return 0, Fail
	}

	lib.mu.Lock()
	ctx, ok := lib.contexts[ctxH]
	if !ok {
		lib.mu.Unlock()
		setLastError(SubCodeParamNullPtr, "context handle %d is not valid", ctxH)
		return 0, Fail
	}
	host := m[SessionPropHost]
	vpnName := m[SessionPropVPNName]
	if host == "" || vpnName == "" {
		lib.mu.Unlock()
		setLastError(SubCodeParamNullPtr, "session host and vpn name are required")
		return 0, Fail
	}

	s := &sessionState{
		h:                SessionHandle(nextID()),
		ctx:              ctx,
		vpn:              vpnFor(host, vpnName),
		host:             host,
		vpnName:          vpnName,
		username:         m[SessionPropUsername],
		clientName:       m[SessionPropClientName],
		compressionLevel: propInt(m, SessionPropCompressionLevel, 0),
		generateSendTS:   propBool(m, SessionPropGenerateSendTimestamp, false),
		ignoreDupSub:     propBool(m, SessionPropIgnoreDupSubError, false),
		replyTopic:       "#P2P/" + uuid.NewString(),
		funcs:            funcs,
		pending:          make(map[string]chan MessageHandle),
	}
	lib.sessions[s.h] = s
	lib.mu.Unlock()

	s.vpn.mu.Lock()
	s.vpn.replyInbox[s.replyTopic] = s
	s.vpn.mu.Unlock()
	return s.h, Ok
}

// SessionConnect connects the session to the broker. Connection is
// synchronous; on success an UpNotice event is delivered.
func SessionConnect(h SessionHandle) ReturnCode {
	s, ok := lookupSession(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "session handle %d is not valid", h)
		return Fail
	}
	if s.username == "" {
		setLastError(SubCodeLoginFailure, "session username is required")
		s.deliverEvent(SessionEventConnectFailedError, "login failure")
		return Fail
	}
	if !s.transitionFrom(sessionCreated, sessionConnected) &&
		!s.transitionFrom(sessionDisconnected, sessionConnected) {
		setLastError(SubCodeInvalidSessionOperation, "session %d cannot connect in its current state", h)
		return Fail
	}
	s.deliverEvent(SessionEventUpNotice, "session up")
	return Ok
}

// SessionDisconnect disconnects the session. Idempotent.
func SessionDisconnect(h SessionHandle) ReturnCode {
	s, ok := lookupSession(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "session handle %d is not valid", h)
		return Fail
	}
	s.transitionFrom(sessionConnected, sessionDisconnected)
	return Ok
}

// SessionDestroy destroys the session, tearing down any flows still bound to
// it, and releases its routing state.
func SessionDestroy(h SessionHandle) ReturnCode {
	lib.mu.Lock()
	s, ok := lib.sessions[h]
	if !ok {
		lib.mu.Unlock()
		setLastError(SubCodeParamNullPtr, "session handle %d is not valid", h)
		return Fail
	}
	delete(lib.sessions, h)
	flows := make([]*flowState, 0)
	for _, f := range lib.flows {
		if f.sess == s {
			flows = append(flows, f)
		}
	}
	caches := make([]*cacheSessionState, 0)
	for _, c := range lib.cacheSessions {
		if c.sess == s {
			caches = append(caches, c)
		}
	}
	lib.mu.Unlock()

	for _, f := range flows {
		lib.log.Warn("destroying session with live flow", "session", uint64(h), "flow", uint64(f.h))
		FlowDestroy(f.h)
	}
	for _, c := range caches {
		lib.log.Warn("destroying session with live cache session", "session", uint64(h), "cache_session", uint64(c.h))
		CacheSessionDestroy(c.h)
	}

	s.state.Store(sessionDestroyed)
	s.vpn.mu.Lock()
	delete(s.vpn.subs, s)
	delete(s.vpn.replyInbox, s.replyTopic)
	s.vpn.mu.Unlock()
	return Ok
}

// SessionTopicSubscribe adds a topic subscription. Blocking confirm: the
// subscription is active when the call returns.
func SessionTopicSubscribe(h SessionHandle, topic string) ReturnCode {
	s, ok := lookupSession(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "session handle %d is not valid", h)
		return Fail
	}
	if !s.isConnected() {
		setLastError(SubCodeInvalidSessionOperation, "session %d is not connected", h)
		return NotReady
	}
	if !subscriptionValid(topic) {
		setLastError(SubCodeInvalidTopicSyntax, "subscription %q is not valid", topic)
		return Fail
	}
	s.vpn.mu.Lock()
	subs := s.vpn.subs[s]
	if subs == nil {
		subs = make(map[string]struct{})
		s.vpn.subs[s] = subs
	}
	if _, dup := subs[topic]; dup && !s.ignoreDupSub {
		s.vpn.mu.Unlock()
		setLastError(SubCodeInvalidSessionOperation, "session %d is already subscribed to %q", h, topic)
		return Fail
	}
	subs[topic] = struct{}{}
	s.vpn.mu.Unlock()
	return Ok
}

// SessionTopicUnsubscribe removes a topic subscription. Blocking confirm: no
// further messages for the subscription are delivered after the call returns.
func SessionTopicUnsubscribe(h SessionHandle, topic string) ReturnCode {
	s, ok := lookupSession(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "session handle %d is not valid", h)
		return Fail
	}
	if !s.isConnected() {
		setLastError(SubCodeInvalidSessionOperation, "session %d is not connected", h)
		return NotReady
	}
	s.vpn.mu.Lock()
	defer s.vpn.mu.Unlock()
	subs := s.vpn.subs[s]
	if _, found := subs[topic]; !found {
		setLastError(SubCodeInvalidSessionOperation, "session %d is not subscribed to %q", h, topic)
		return Fail
	}
	delete(subs, topic)
	return Ok
}

// SessionSend publishes the message to its destination. The engine takes a
// copy; the caller keeps ownership of the handle.
func SessionSend(h SessionHandle, msg MessageHandle) ReturnCode {
	s, ok := lookupSession(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "session handle %d is not valid", h)
		return Fail
	}
	if !s.isConnected() {
		setLastError(SubCodeInvalidSessionOperation, "session %d is not connected", h)
		return NotReady
	}
	rec, ok := lookupMsg(msg)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", msg)
		return Fail
	}
	if rec.destType == DestNull {
		setLastError(SubCodeParamNullPtr, "message has no destination")
		return Fail
	}

	w, rc := s.wireRecord(rec)
	if !rc.IsOk() {
		return rc
	}
	return s.route(w)
}

func (s *sessionState) route(w *msgRecord) ReturnCode {
	switch w.destType {
	case DestTopic, DestTopicTemp:
		s.vpn.routeTopic(w.dest, w)
		return Ok
	case DestQueue, DestQueueTemp:
		return s.vpn.routeQueue(w.dest, w)
	default:
		setLastError(SubCodeParamOutOfRange, "destination type %d is not valid", w.destType)
		return Fail
	}
}

// wireRecord builds the engine-side copy of an outbound message, applying
// send-timestamp generation and payload compression as configured.
func (s *sessionState) wireRecord(rec *msgRecord) (*msgRecord, ReturnCode) {
	w := *rec
	if s.generateSendTS && w.senderTS == nil {
		ms := time.Now().UnixMilli()
		w.senderTS = &ms
	}
	if s.compressionLevel > 0 && w.hasPayload && !w.compressed {
		compressed, err := compressPayload(w.payload, s.compressionLevel)
		if err != nil {
			setLastError(SubCodeInternalError, "payload compression failed: %v", err)
			return nil, Fail
		}
		w.payload = compressed
		w.compressed = true
	}
	return &w, Ok
}

// SessionSendRequest publishes the message and blocks until a reply carrying
// the same correlation ID arrives or the timeout elapses. A timeout of zero
// blocks indefinitely. On success the caller owns the returned reply handle.
func SessionSendRequest(h SessionHandle, msg MessageHandle, timeoutMs uint32) (MessageHandle, ReturnCode) {
	s, ok := lookupSession(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "session handle %d is not valid", h)
		return 0, Fail
	}
	if !s.isConnected() {
		setLastError(SubCodeInvalidSessionOperation, "session %d is not connected", h)
		return 0, NotReady
	}
	rec, ok := lookupMsg(msg)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", msg)
		return 0, Fail
	}
	if rec.destType == DestNull {
		setLastError(SubCodeParamNullPtr, "message has no destination")
		return 0, Fail
	}

	if rec.correlationID == nil {
		corr := "#REQ" + uuid.NewString()
		rec.correlationID = &corr
	}
	rec.replyToType = DestTopic
	rec.replyTo = s.replyTopic

	corr := *rec.correlationID
	reply := make(chan MessageHandle, 1)
	s.mu.Lock()
	s.pending[corr] = reply
	s.mu.Unlock()

	w, rc := s.wireRecord(rec)
	if !rc.IsOk() {
		s.clearPending(corr)
		return 0, rc
	}
	if rc := s.route(w); !rc.IsOk() {
		s.clearPending(corr)
		return 0, rc
	}

	var timeout <-chan time.Time
	if timeoutMs > 0 {
		timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case replyMsg := <-reply:
		return replyMsg, Ok
	case <-timeout:
		s.clearPending(corr)
		setLastError(SubCodeTimeout, "request timed out after %d ms", timeoutMs)
		return 0, Fail
	}
}

func (s *sessionState) clearPending(corr string) {
	s.mu.Lock()
	delete(s.pending, corr)
	s.mu.Unlock()
}

// completePending resolves a blocked request, if one matches the correlation
// ID. Returns true if the reply was consumed.
func (s *sessionState) completePending(corr string, h MessageHandle) bool {
	s.mu.Lock()
	ch, ok := s.pending[corr]
	if ok {
		delete(s.pending, corr)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	ch <- h
	return true
}

// routeTopic fans the message out to every matching subscriber, topic
// endpoint, and the replay cache. Replies addressed to a session's reply
// inbox complete the blocked request instead of the message callback.
func (v *vpnState) routeTopic(topic string, w *msgRecord) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.replyInbox[topic]; ok {
		if w.correlationID != nil {
			h := deliveryHandle(w)
			if s.completePending(*w.correlationID, h) {
				return
			}
			MsgFree(h)
		}
		lib.log.Warn("reply with no pending request dropped", "topic", topic)
		return
	}

	v.cacheStore(topic, w)

	for s, subs := range v.subs {
		if !s.isConnected() {
			continue
		}
		for sub := range subs {
			if topicMatch(sub, topic) {
				s.deliverMsg(deliveryHandle(w))
				break
			}
		}
	}

	for _, q := range v.queues {
		if q.topic != "" && topicMatch(q.topic, topic) {
			q.enqueueLocked(w)
		}
	}
}

func (v *vpnState) routeQueue(name string, w *msgRecord) ReturnCode {
	v.mu.Lock()
	defer v.mu.Unlock()
	q, ok := v.queues[name]
	if !ok || q.kind != endpointQueue {
		setLastError(SubCodeUnknownQueueName, "queue %q does not exist", name)
		return Fail
	}
	q.enqueueLocked(w)
	return Ok
}

// subscriptionValid accepts topic strings that may carry wildcard levels.
func subscriptionValid(sub string) bool {
	if sub == "" || len(sub) > maxTopicLen {
		return false
	}
	return topicValid(sub)
}

// deliveryHandle allocates a fresh handle for one receiver, undoing wire
// compression so the callback sees the original payload.
func deliveryHandle(w *msgRecord) MessageHandle {
	d := *w
	if d.compressed {
		payload, err := decompressPayload(d.payload)
		if err != nil {
			lib.log.Warn("payload decompression failed", "err", err)
			payload = nil
		}
		d.payload = payload
		d.compressed = false
	}
	return allocMsg(&d)
}

// SessionEndpointProvision creates the endpoint described by the property
// list on the session's message vpn. With ignoreExists, provisioning an
// endpoint that already exists succeeds.
func SessionEndpointProvision(props []string, h SessionHandle, ignoreExists bool) ReturnCode {
	s, ok := lookupSession(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "session handle %d is not valid", h)
		return Fail
	}
	if !s.isConnected() {
		setLastError(SubCodeInvalidSessionOperation, "session %d is not connected", h)
		return NotReady
	}
	m, ok := parseProps(props)
	if !ok {
		setLastError(SubCodeParamOutOfRange, "endpoint property list is not a key/value sequence")
		return Fail
	}
	name := m[EndpointPropName]
	if name == "" {
		setLastError(SubCodeParamNullPtr, "endpoint name is required")
		return Fail
	}
	kind := endpointQueue
	if m[EndpointPropID] == EndpointIDTopicEndpoint {
		kind = endpointTE
	}

	s.vpn.mu.Lock()
	defer s.vpn.mu.Unlock()
	if existing, found := s.vpn.queues[name]; found {
		if !ignoreExists {
			setLastError(SubCodeEndpointAlreadyExists, "endpoint %q already exists", name)
			return Fail
		}
		if existing.kind != kind {
			setLastError(SubCodeEndpointPropertyMismatch, "endpoint %q exists with a different type", name)
			return Fail
		}
		return Ok
	}
	s.vpn.queues[name] = &queueState{
		name:          name,
		kind:          kind,
		durable:       propBool(m, EndpointPropDurable, true),
		maxRedelivery: uint32(propInt(m, EndpointPropMaxRedelivery, 0)),
		quotaMB:       propInt(m, EndpointPropQuotaMB, 0),
		maxMsgSize:    propInt(m, EndpointPropMaxMsgSize, 0),
	}
	return Ok
}

// SessionEndpointDeprovision removes the endpoint. With ignoreMissing,
// deprovisioning an unknown endpoint succeeds.
func SessionEndpointDeprovision(props []string, h SessionHandle, ignoreMissing bool) ReturnCode {
	s, ok := lookupSession(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "session handle %d is not valid", h)
		return Fail
	}
	if !s.isConnected() {
		setLastError(SubCodeInvalidSessionOperation, "session %d is not connected", h)
		return NotReady
	}
	m, ok := parseProps(props)
	if !ok {
		setLastError(SubCodeParamOutOfRange, "endpoint property list is not a key/value sequence")
		return Fail
	}
	name := m[EndpointPropName]
	if name == "" {
		setLastError(SubCodeParamNullPtr, "endpoint name is required")
		return Fail
	}

	s.vpn.mu.Lock()
	defer s.vpn.mu.Unlock()
	q, found := s.vpn.queues[name]
	if !found {
		if ignoreMissing {
			return Ok
		}
		setLastError(SubCodeUnknownQueueName, "endpoint %q does not exist", name)
		return Fail
	}
	if q.flow != nil {
		setLastError(SubCodeInvalidSessionOperation, "endpoint %q has a bound flow", name)
		return Fail
	}
	delete(s.vpn.queues, name)
	return Ok
}
