// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package solclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func provisionQueue(t *testing.T, sess *Session, name string) {
	t.Helper()
	props, err := NewEndpointPropsBuilder().
		Queue(name).
		AccessType(AccessTypeExclusive).
		Build()
	require.NoError(t, err)
	require.NoError(t, sess.EndpointProvision(props, false))
	t.Cleanup(func() { _ = sess.EndpointDeprovision(props, true) })
}

func queueMessage(t *testing.T, queue, payload string) *OutboundMessage {
	t.Helper()
	msg, err := NewOutboundMessageBuilder().
		DeliveryMode(DeliveryModePersistent).
		Destination(QueueDestination(queue)).
		Payload([]byte(payload)).
		Build()
	require.NoError(t, err)
	return msg
}

func TestQueueFlowDelivery(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession(t, ctx, nil)
	provisionQueue(t, sess, "orders_queue")

	received := make(chan *FlowInboundMessage, 4)
	flow, err := sess.FlowBuilder().
		BindQueue("orders_queue").
		OnMessage(func(m *FlowInboundMessage) { received <- m }).
		Build()
	require.NoError(t, err)
	t.Cleanup(flow.Close)

	msg := queueMessage(t, "orders_queue", "order-1")
	defer msg.Free()
	require.NoError(t, sess.Publish(msg))

	select {
	case in := <-received:
		defer in.Free()
		payload, ok, err := in.Payload()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("order-1"), payload)
	case <-time.After(2 * time.Second):
		t.Fatal("queued message not delivered")
	}
}

func TestQueueBacklogDrainsOnBind(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession(t, ctx, nil)
	provisionQueue(t, sess, "backlog_queue")

	// Published before any flow is bound, held on the queue.
	msg := queueMessage(t, "backlog_queue", "held")
	defer msg.Free()
	require.NoError(t, sess.Publish(msg))

	received := make(chan *FlowInboundMessage, 1)
	flow, err := sess.FlowBuilder().
		BindQueue("backlog_queue").
		OnMessage(func(m *FlowInboundMessage) { received <- m }).
		Build()
	require.NoError(t, err)
	t.Cleanup(flow.Close)

	select {
	case in := <-received:
		in.Free()
	case <-time.After(2 * time.Second):
		t.Fatal("backlog not delivered on bind")
	}
}

func TestFlowStartStop(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession(t, ctx, nil)
	provisionQueue(t, sess, "paused_queue")

	received := make(chan *FlowInboundMessage, 4)
	flow, err := sess.FlowBuilder().
		BindQueue("paused_queue").
		StartStopped(true).
		OnMessage(func(m *FlowInboundMessage) { received <- m }).
		Build()
	require.NoError(t, err)
	t.Cleanup(flow.Close)

	msg := queueMessage(t, "paused_queue", "waiting")
	defer msg.Free()
	require.NoError(t, sess.Publish(msg))

	select {
	case in := <-received:
		in.Free()
		t.Fatal("stopped flow delivered a message")
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, flow.Start())
	select {
	case in := <-received:
		in.Free()
	case <-time.After(2 * time.Second):
		t.Fatal("started flow did not deliver")
	}
}

func TestClientAckRedelivery(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession(t, ctx, nil)
	provisionQueue(t, sess, "ack_queue")

	received := make(chan *FlowInboundMessage, 8)
	flow, err := sess.FlowBuilder().
		BindQueue("ack_queue").
		AckMode(AckModeClient).
		AckTimerMs(200).
		OnMessage(func(m *FlowInboundMessage) { received <- m }).
		Build()
	require.NoError(t, err)
	t.Cleanup(flow.Close)

	msg := queueMessage(t, "ack_queue", "needs-ack")
	defer msg.Free()
	require.NoError(t, sess.Publish(msg))

	var first *FlowInboundMessage
	select {
	case first = <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("first delivery missing")
	}
	redelivered, err := first.IsRedelivered()
	require.NoError(t, err)
	assert.False(t, redelivered)

	// Left unacknowledged, the message comes back flagged redelivered.
	var second *FlowInboundMessage
	select {
	case second = <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("redelivery missing")
	}
	redelivered, err = second.IsRedelivered()
	require.NoError(t, err)
	assert.True(t, redelivered)

	// Acknowledging settles the delivery; no further redelivery.
	require.NoError(t, second.Ack())
	select {
	case extra := <-received:
		extra.Free()
		t.Fatal("message redelivered after ack")
	case <-time.After(500 * time.Millisecond):
	}

	first.Free()
	second.Free()
}

func TestAckAfterFlowClose(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession(t, ctx, nil)
	provisionQueue(t, sess, "close_queue")

	received := make(chan *FlowInboundMessage, 1)
	flow, err := sess.FlowBuilder().
		BindQueue("close_queue").
		AckMode(AckModeClient).
		AckTimerMs(1500).
		OnMessage(func(m *FlowInboundMessage) { received <- m }).
		Build()
	require.NoError(t, err)

	msg := queueMessage(t, "close_queue", "orphan")
	defer msg.Free()
	require.NoError(t, sess.Publish(msg))

	var in *FlowInboundMessage
	select {
	case in = <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery missing")
	}
	defer in.Free()

	flow.Close()
	assert.ErrorIs(t, in.Ack(), ErrFlowFreedBeforeAck)
}

func TestFlowBindUnknownQueueFails(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession(t, ctx, nil)

	_, err := sess.FlowBuilder().
		BindQueue("no_such_queue").
		OnMessage(func(m *FlowInboundMessage) { m.Free() }).
		Build()
	var initErr *InitializationError
	require.ErrorAs(t, err, &initErr)
}

func TestSubscriberFlowReceivesTopic(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession(t, ctx, nil)

	received := make(chan *FlowInboundMessage, 1)
	flow, err := sess.FlowBuilder().
		BindSubscriber().
		Topic("flows/updates").
		OnMessage(func(m *FlowInboundMessage) { received <- m }).
		Build()
	require.NoError(t, err)
	t.Cleanup(flow.Close)

	msg := directMessage(t, "flows/updates", "update")
	defer msg.Free()
	require.NoError(t, sess.Publish(msg))

	select {
	case in := <-received:
		in.Free()
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber flow did not deliver")
	}
}

func TestProvisionExistingEndpoint(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession(t, ctx, nil)
	provisionQueue(t, sess, "twice_queue")

	props, err := NewEndpointPropsBuilder().Queue("twice_queue").Build()
	require.NoError(t, err)

	var provErr *EndpointProvisionError
	require.ErrorAs(t, sess.EndpointProvision(props, false), &provErr)
	assert.Equal(t, "twice_queue", provErr.Name)

	require.NoError(t, sess.EndpointProvision(props, true))
}
