// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package solclient

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHost = "tcp://localhost:55555"

func newTestContext(t *testing.T) *Context {
	t.Helper()
	ctx, err := NewContext(LogWarning)
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	t.Cleanup(ctx.Close)
	return ctx
}

// newTestSession connects a session on its own vpn, keyed by the test name so
// tests do not share routing state.
func newTestSession(t *testing.T, ctx *Context, onMessage func(*InboundMessage)) *Session {
	t.Helper()
	sess, err := ctx.Session(testHost, t.Name(), "default", "default", onMessage, nil)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	t.Cleanup(sess.Close)
	return sess
}

func directMessage(t *testing.T, topic, payload string) *OutboundMessage {
	t.Helper()
	msg, err := NewOutboundMessageBuilder().
		DeliveryMode(DeliveryModeDirect).
		Destination(TopicDestination(topic)).
		Payload([]byte(payload)).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return msg
}

func TestPublishSubscribe(t *testing.T) {
	ctx := newTestContext(t)
	received := make(chan *InboundMessage, 1)
	sess := newTestSession(t, ctx, func(m *InboundMessage) { received <- m })

	require.NoError(t, sess.Subscribe("test_topic"))

	msg := directMessage(t, "test_topic", "Hello")
	defer msg.Free()
	require.NoError(t, sess.Publish(msg))

	select {
	case in := <-received:
		defer in.Free()
		payload, ok, err := in.Payload()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("Hello"), payload)

		dest, ok, err := in.Destination()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, DestinationTopic, dest.Type)
		assert.Equal(t, "test_topic", dest.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ctx := newTestContext(t)
	received := make(chan *InboundMessage, 4)
	sess := newTestSession(t, ctx, func(m *InboundMessage) { received <- m })

	require.NoError(t, sess.Subscribe("gate/topic"))

	msg := directMessage(t, "gate/topic", "before")
	defer msg.Free()
	require.NoError(t, sess.Publish(msg))

	select {
	case in := <-received:
		in.Free()
	case <-time.After(2 * time.Second):
		t.Fatal("message before unsubscribe not delivered")
	}

	require.NoError(t, sess.Unsubscribe("gate/topic"))

	after := directMessage(t, "gate/topic", "after")
	defer after.Free()
	require.NoError(t, sess.Publish(after))

	select {
	case in := <-received:
		in.Free()
		t.Fatal("message delivered after unsubscribe")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFanOutToMultipleSessions(t *testing.T) {
	ctx := newTestContext(t)

	const subscribers = 3
	received := make(chan string, subscribers)
	for i := 0; i < subscribers; i++ {
		tag := fmt.Sprintf("sub-%d", i)
		sess, err := ctx.Session(testHost, t.Name(), "default", "default",
			func(m *InboundMessage) {
				defer m.Free()
				received <- tag
			}, nil)
		require.NoError(t, err)
		t.Cleanup(sess.Close)
		require.NoError(t, sess.Subscribe("fanout/topic"))
	}

	pub := newTestSession(t, ctx, nil)
	msg := directMessage(t, "fanout/topic", "broadcast")
	defer msg.Free()
	require.NoError(t, pub.Publish(msg))

	seen := make(map[string]bool)
	for i := 0; i < subscribers; i++ {
		select {
		case tag := <-received:
			seen[tag] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d subscribers received the message", len(seen), subscribers)
		}
	}
	assert.Len(t, seen, subscribers)
}

func TestConcurrentPublish(t *testing.T) {
	ctx := newTestContext(t)

	const (
		goroutines = 4
		perSender  = 25
	)
	received := make(chan struct{}, goroutines*perSender)
	sess := newTestSession(t, ctx, func(m *InboundMessage) {
		m.Free()
		received <- struct{}{}
	})
	require.NoError(t, sess.Subscribe("load/topic"))

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				msg := directMessage(t, "load/topic", "x")
				if err := sess.Publish(msg); err != nil {
					t.Error(err)
				}
				msg.Free()
			}
		}()
	}
	wg.Wait()

	for i := 0; i < goroutines*perSender; i++ {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d of %d messages", i, goroutines*perSender)
		}
	}
}

func TestSessionEventOnConnect(t *testing.T) {
	ctx := newTestContext(t)
	events := make(chan SessionEvent, 4)
	sess, err := ctx.Session(testHost, t.Name(), "default", "default", nil,
		func(ev SessionEvent) { events <- ev })
	require.NoError(t, err)
	t.Cleanup(sess.Close)

	select {
	case ev := <-events:
		assert.Equal(t, SessionEventUpNotice, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("no UpNotice event after connect")
	}
}

func TestRequestReply(t *testing.T) {
	ctx := newTestContext(t)

	var responder *Session
	responder, err := ctx.Session(testHost, t.Name(), "default", "default",
		func(req *InboundMessage) {
			defer req.Free()
			replyTo, ok, err := req.ReplyTo()
			if err != nil || !ok {
				t.Errorf("request has no reply-to: %v", err)
				return
			}
			corr, ok, err := req.CorrelationID()
			if err != nil || !ok {
				t.Errorf("request has no correlation ID: %v", err)
				return
			}
			reply, err := NewOutboundMessageBuilder().
				DeliveryMode(DeliveryModeDirect).
				Destination(replyTo).
				Payload([]byte("pong")).
				CorrelationID(corr).
				AsReply(true).
				Build()
			if err != nil {
				t.Errorf("build reply: %v", err)
				return
			}
			defer reply.Free()
			if err := responder.Publish(reply); err != nil {
				t.Errorf("publish reply: %v", err)
			}
		}, nil)
	require.NoError(t, err)
	t.Cleanup(responder.Close)
	require.NoError(t, responder.Subscribe("service/ping"))

	requestor := newTestSession(t, ctx, nil)
	req := directMessage(t, "service/ping", "ping")
	defer req.Free()

	reply, err := requestor.Request(req, 2*time.Second)
	require.NoError(t, err)
	defer reply.Free()

	payload, ok, err := reply.Payload()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("pong"), payload)

	isReply, err := reply.IsReply()
	require.NoError(t, err)
	assert.True(t, isReply)
}

func TestRequestTimeout(t *testing.T) {
	ctx := newTestContext(t)
	requestor := newTestSession(t, ctx, nil)

	req := directMessage(t, "service/nobody", "ping")
	defer req.Free()

	_, err := requestor.Request(req, 100*time.Millisecond)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.True(t, reqErr.Timeout)
}

func TestRequestSubMillisecondTimeout(t *testing.T) {
	ctx := newTestContext(t)
	requestor := newTestSession(t, ctx, nil)

	req := directMessage(t, "service/nobody", "ping")
	defer req.Free()

	// A timeout below the engine's millisecond resolution still times out
	// instead of degrading to block-forever.
	done := make(chan error, 1)
	go func() {
		_, err := requestor.Request(req, 500*time.Microsecond)
		done <- err
	}()
	select {
	case err := <-done:
		var reqErr *RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.True(t, reqErr.Timeout)
	case <-time.After(2 * time.Second):
		t.Fatal("request did not return within the timeout window")
	}
}

func TestClosedSessionRejectsOperations(t *testing.T) {
	ctx := newTestContext(t)
	sess, err := ctx.Session(testHost, t.Name(), "default", "default", nil, nil)
	require.NoError(t, err)

	sess.Close()
	sess.Close()

	assert.ErrorIs(t, sess.Subscribe("t"), ErrSessionClosed)
	assert.ErrorIs(t, sess.Unsubscribe("t"), ErrSessionClosed)
	msg := directMessage(t, "t", "x")
	defer msg.Free()
	assert.ErrorIs(t, sess.Publish(msg), ErrSessionClosed)
	_, err = sess.Request(msg, time.Second)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestCacheRequestReplaysPublishedMessages(t *testing.T) {
	ctx := newTestContext(t)

	pub := newTestSession(t, ctx, nil)
	for i := 0; i < 3; i++ {
		msg := directMessage(t, "market/data", fmt.Sprintf("tick-%d", i))
		require.NoError(t, pub.Publish(msg))
		msg.Free()
	}

	received := make(chan *InboundMessage, 8)
	consumer, err := ctx.Session(testHost, t.Name(), "default", "default",
		func(m *InboundMessage) { received <- m }, nil)
	require.NoError(t, err)

	cache, err := consumer.CacheSession("test_cache", 0, 0, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	require.NoError(t, cache.Request("market/data", 42))

	for i := 0; i < 3; i++ {
		select {
		case in := <-received:
			id, ok, err := in.CacheRequestID()
			require.NoError(t, err)
			require.True(t, ok, "cached delivery must carry the request ID")
			assert.Equal(t, uint64(42), id)
			in.Free()
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d of 3 cached messages", i)
		}
	}
}

func TestCacheRequestNoData(t *testing.T) {
	ctx := newTestContext(t)
	consumer, err := ctx.Session(testHost, t.Name(), "default", "default", nil, nil)
	require.NoError(t, err)

	cache, err := consumer.CacheSession("test_cache", 0, 0, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	err = cache.Request("nothing/here", 1)
	var cacheErr *CacheRequestError
	require.ErrorAs(t, err, &cacheErr)
}

func TestDuplicateSubscriptionIgnoredWhenConfigured(t *testing.T) {
	ctx := newTestContext(t)
	sess, err := ctx.SessionBuilder().
		Host(testHost).VPN(t.Name()).Username("default").Password("default").
		IgnoreDuplicateSubscriptionError(true).
		Build()
	require.NoError(t, err)
	t.Cleanup(sess.Close)

	require.NoError(t, sess.Subscribe("dup/topic"))
	require.NoError(t, sess.Subscribe("dup/topic"))

	strict := newTestSession(t, ctx, nil)
	require.NoError(t, strict.Subscribe("dup/topic"))
	var subErr *SubscriptionError
	require.ErrorAs(t, strict.Subscribe("dup/topic"), &subErr)
	assert.Equal(t, "dup/topic", subErr.Topic)
}
