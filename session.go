// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package solclient

import (
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/absmach/solclient/internal/native"
)

// Session is one authenticated connection to the broker. It owns the native
// session handle, a retained reference to its parent Context, and the
// registered message/event closures, which stay alive exactly as long as the
// engine can invoke them.
//
// Publish, Subscribe, Unsubscribe, and Request are safe to call concurrently
// from multiple goroutines against the same Session; the engine serializes
// access internally. Callbacks run on the context dispatch thread, one at a
// time, in arrival order.
type Session struct {
	h      native.SessionHandle
	ctx    *rawContext
	cbs    *sessionCallbacks
	cbh    callbackHandle
	log    *slog.Logger
	closed atomic.Bool
}

// Publish sends the message to its destination, blocking until the engine
// confirms the send.
func (s *Session) Publish(msg *OutboundMessage) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if rc := native.SessionSend(s.h, msg.h); !rc.IsOk() {
		return &PublishError{lastDiagnostics(rc)}
	}
	return nil
}

// Subscribe adds a topic subscription, blocking until it is confirmed
// active.
func (s *Session) Subscribe(topic string) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if containsNUL(topic) {
		return &InvalidArgsError{Field: "topic"}
	}
	if rc := native.SessionTopicSubscribe(s.h, topic); !rc.IsOk() {
		return &SubscriptionError{Topic: topic, Diagnostics: lastDiagnostics(rc)}
	}
	return nil
}

// Unsubscribe removes a topic subscription, blocking until it is confirmed
// removed. Messages published afterwards are not delivered.
func (s *Session) Unsubscribe(topic string) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if containsNUL(topic) {
		return &InvalidArgsError{Field: "topic"}
	}
	if rc := native.SessionTopicUnsubscribe(s.h, topic); !rc.IsOk() {
		return &UnsubscriptionError{Topic: topic, Diagnostics: lastDiagnostics(rc)}
	}
	return nil
}

// Request publishes the message and blocks until a reply carrying the same
// correlation ID arrives or the timeout elapses. A correlation ID and
// reply-to destination are generated when the message has none. A zero
// timeout blocks indefinitely.
func (s *Session) Request(msg *OutboundMessage, timeout time.Duration) (*InboundMessage, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	timeoutMs := uint32(0)
	if timeout > 0 {
		timeoutMs = uint32(timeout.Milliseconds())
		// Sub-millisecond timeouts round up; zero means block forever.
		if timeoutMs == 0 {
			timeoutMs = 1
		}
	}
	reply, rc := native.SessionSendRequest(s.h, msg.h, timeoutMs)
	if !rc.IsOk() {
		d := lastDiagnostics(rc)
		return nil, &RequestError{Timeout: d.SubCode == native.SubCodeTimeout, Diagnostics: d}
	}
	return newInboundMessage(reply), nil
}

// EndpointProvision creates the endpoint on the broker, blocking until it is
// confirmed. With ignoreExists, provisioning an endpoint that already exists
// succeeds.
func (s *Session) EndpointProvision(props EndpointProps, ignoreExists bool) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	raw := props.toRaw()
	if rc := native.SessionEndpointProvision(raw, s.h, ignoreExists); !rc.IsOk() {
		return &EndpointProvisionError{Name: props.name, Diagnostics: lastDiagnostics(rc)}
	}
	return nil
}

// EndpointDeprovision removes the endpoint from the broker, blocking until
// it is confirmed. With ignoreMissing, deprovisioning an unknown endpoint
// succeeds.
func (s *Session) EndpointDeprovision(props EndpointProps, ignoreMissing bool) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	raw := props.toRaw()
	if rc := native.SessionEndpointDeprovision(raw, s.h, ignoreMissing); !rc.IsOk() {
		return &EndpointDeprovisionError{Name: props.name, Diagnostics: lastDiagnostics(rc)}
	}
	return nil
}

// FlowBuilder returns a builder for a consumer flow bound to this session.
func (s *Session) FlowBuilder() *FlowBuilder {
	return newFlowBuilder(s)
}

// CacheSession wraps this session for replay-cache queries. The returned
// CacheSession takes ownership: close it instead of the Session, and it
// destroys the native cache-session before closing the Session underneath.
// maxMsgs bounds the messages returned per cached topic (0 for all), maxAge
// drops cached messages older than the given age (0 for no limit).
func (s *Session) CacheSession(cacheName string, maxMsgs int, maxAge time.Duration, requestTimeout time.Duration) (*CacheSession, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	if cacheName == "" {
		return nil, &MissingRequiredArgsError{Field: "cache_name"}
	}
	if containsNUL(cacheName) {
		return nil, &InvalidArgsError{Field: "cache_name"}
	}
	raw := []string{
		native.CacheSessionPropCacheName, cacheName,
		native.CacheSessionPropMaxMsgs, itoa(maxMsgs),
		native.CacheSessionPropMaxAge, itoa(int(maxAge / time.Second)),
		native.CacheSessionPropRequestTimeout, itoa(int(requestTimeout / time.Millisecond)),
	}
	h, rc := native.CacheSessionCreate(raw, s.h)
	if !rc.IsOk() {
		return nil, &CacheRequestError{lastDiagnostics(rc)}
	}
	return &CacheSession{h: h, sess: s, log: s.log}, nil
}

// Disconnect disconnects the session from the broker without destroying it.
func (s *Session) Disconnect() error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if rc := native.SessionDisconnect(s.h); !rc.IsOk() {
		return &DisconnectError{lastDiagnostics(rc)}
	}
	return nil
}

// Close disconnects and destroys the session, releases the registered
// callbacks, and drops the session's reference on its Context. Failures are
// logged, never returned: teardown must not fail the surrounding operation.
// Close is idempotent.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	if rc := native.SessionDisconnect(s.h); !rc.IsOk() {
		s.log.Warn("session disconnect failed", "code", rc.String())
	}
	if rc := native.SessionDestroy(s.h); !rc.IsOk() {
		s.log.Warn("session destroy failed", "code", rc.String())
	}
	freeCallback(s.cbh)
	s.ctx.release()
}

func itoa(n int) string {
	if n < 0 {
		n = 0
	}
	return strconv.Itoa(n)
}
