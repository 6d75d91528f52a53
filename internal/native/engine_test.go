// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package native

import (
	"bytes"
	"testing"
	"time"
)

func newTestContext(t *testing.T) ContextHandle {
	t.Helper()
	if rc := Initialize(LogWarning); !rc.IsOk() {
		t.Fatalf("Initialize() = %v", rc)
	}
	ctx, rc := ContextCreate([]string{ContextPropCreateThread, PropTrue})
	if !rc.IsOk() {
		t.Fatalf("ContextCreate() = %v", rc)
	}
	t.Cleanup(func() { ContextDestroy(ctx) })
	return ctx
}

// newTestSession connects a session on its own vpn, keyed by the test name so
// tests do not share routing state.
func newTestSession(t *testing.T, ctx ContextHandle, funcs SessionFuncInfo) SessionHandle {
	t.Helper()
	if funcs.MsgCB == nil {
		funcs.MsgCB = func(SessionHandle, MessageHandle, uintptr) CallbackReturn {
			return CallbackOk
		}
	}
	props := []string{
		SessionPropHost, "tcp://localhost:55555",
		SessionPropVPNName, t.Name(),
		SessionPropUsername, "default",
	}
	h, rc := SessionCreate(props, ctx, funcs)
	if !rc.IsOk() {
		t.Fatalf("SessionCreate() = %v", rc)
	}
	if rc := SessionConnect(h); !rc.IsOk() {
		t.Fatalf("SessionConnect() = %v", rc)
	}
	t.Cleanup(func() { SessionDestroy(h) })
	return h
}

func TestSessionCreateRequiresMessageCallback(t *testing.T) {
	ctx := newTestContext(t)
	props := []string{
		SessionPropHost, "tcp://localhost:55555",
		SessionPropVPNName, t.Name(),
		SessionPropUsername, "default",
	}
	if _, rc := SessionCreate(props, ctx, SessionFuncInfo{}); rc != Fail {
		t.Errorf("SessionCreate with nil message callback = %v, want Fail", rc)
	}
	if got := GetLastErrorInfo().SubCode; got != SubCodeParamNullPtr {
		t.Errorf("subcode = %v, want SubCodeParamNullPtr", got)
	}
}

func TestSessionConnectRequiresUsername(t *testing.T) {
	ctx := newTestContext(t)
	events := make(chan SessionEventInfo, 1)
	funcs := SessionFuncInfo{
		MsgCB: func(SessionHandle, MessageHandle, uintptr) CallbackReturn {
			return CallbackOk
		},
		EventCB: func(_ SessionHandle, ev SessionEventInfo, _ uintptr) {
			events <- ev
		},
	}
	props := []string{
		SessionPropHost, "tcp://localhost:55555",
		SessionPropVPNName, t.Name(),
	}
	h, rc := SessionCreate(props, ctx, funcs)
	if !rc.IsOk() {
		t.Fatalf("SessionCreate() = %v", rc)
	}
	defer SessionDestroy(h)

	if rc := SessionConnect(h); rc != Fail {
		t.Fatalf("SessionConnect without username = %v, want Fail", rc)
	}
	if got := GetLastErrorInfo().SubCode; got != SubCodeLoginFailure {
		t.Errorf("subcode = %v, want SubCodeLoginFailure", got)
	}
	select {
	case ev := <-events:
		if ev.Code != SessionEventConnectFailedError {
			t.Errorf("event code = %d, want SessionEventConnectFailedError", ev.Code)
		}
	case <-time.After(time.Second):
		t.Error("no ConnectFailedError event delivered")
	}
}

func TestSubscribeRejectsInvalidTopic(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession(t, ctx, SessionFuncInfo{})

	if rc := SessionTopicSubscribe(sess, "a//b"); rc != Fail {
		t.Errorf("subscribe to a//b = %v, want Fail", rc)
	}
	if got := GetLastErrorInfo().SubCode; got != SubCodeInvalidTopicSyntax {
		t.Errorf("subcode = %v, want SubCodeInvalidTopicSyntax", got)
	}
}

func TestDuplicateSubscribeFails(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession(t, ctx, SessionFuncInfo{})

	if rc := SessionTopicSubscribe(sess, "dup/topic"); !rc.IsOk() {
		t.Fatalf("first subscribe = %v", rc)
	}
	if rc := SessionTopicSubscribe(sess, "dup/topic"); rc != Fail {
		t.Errorf("duplicate subscribe = %v, want Fail", rc)
	}
}

func TestPublishRoundTripThroughEngine(t *testing.T) {
	ctx := newTestContext(t)
	received := make(chan MessageHandle, 1)
	funcs := SessionFuncInfo{
		MsgCB: func(_ SessionHandle, msg MessageHandle, _ uintptr) CallbackReturn {
			received <- msg
			return CallbackTakeMsg
		},
	}
	sess := newTestSession(t, ctx, funcs)
	if rc := SessionTopicSubscribe(sess, "events/>"); !rc.IsOk() {
		t.Fatalf("subscribe = %v", rc)
	}

	msg, _ := MsgAlloc()
	defer MsgFree(msg)
	MsgSetDestination(msg, DestTopic, "events/orders/created")
	MsgSetBinaryAttachment(msg, []byte("payload"))
	if rc := SessionSend(sess, msg); !rc.IsOk() {
		t.Fatalf("SessionSend() = %v", rc)
	}

	select {
	case h := <-received:
		defer MsgFree(h)
		p, rc := MsgGetBinaryAttachment(h)
		if !rc.IsOk() || !bytes.Equal(p, []byte("payload")) {
			t.Errorf("delivered payload = %q, %v", p, rc)
		}
		destType, name, rc := MsgGetDestination(h)
		if !rc.IsOk() || destType != DestTopic || name != "events/orders/created" {
			t.Errorf("delivered destination = (%d, %q, %v)", destType, name, rc)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestCompressedPublishDeliversOriginalPayload(t *testing.T) {
	ctx := newTestContext(t)
	received := make(chan MessageHandle, 1)
	funcs := SessionFuncInfo{
		MsgCB: func(_ SessionHandle, msg MessageHandle, _ uintptr) CallbackReturn {
			received <- msg
			return CallbackTakeMsg
		},
	}
	props := []string{
		SessionPropHost, "tcp://localhost:55555",
		SessionPropVPNName, t.Name(),
		SessionPropUsername, "default",
		SessionPropCompressionLevel, "5",
	}
	sess, rc := SessionCreate(props, ctx, funcs)
	if !rc.IsOk() {
		t.Fatalf("SessionCreate() = %v", rc)
	}
	defer SessionDestroy(sess)
	if rc := SessionConnect(sess); !rc.IsOk() {
		t.Fatalf("SessionConnect() = %v", rc)
	}
	if rc := SessionTopicSubscribe(sess, "compressed/topic"); !rc.IsOk() {
		t.Fatalf("subscribe = %v", rc)
	}

	payload := bytes.Repeat([]byte("abcdefgh"), 512)
	msg, _ := MsgAlloc()
	defer MsgFree(msg)
	MsgSetDestination(msg, DestTopic, "compressed/topic")
	MsgSetBinaryAttachment(msg, payload)
	if rc := SessionSend(sess, msg); !rc.IsOk() {
		t.Fatalf("SessionSend() = %v", rc)
	}

	select {
	case h := <-received:
		defer MsgFree(h)
		p, rc := MsgGetBinaryAttachment(h)
		if !rc.IsOk() || !bytes.Equal(p, payload) {
			t.Errorf("delivered payload does not match original (rc %v, %d bytes)", rc, len(p))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestFlowAckProtocolCodes(t *testing.T) {
	// Unknown flow handle fails with UNKNOWN_FLOW_NAME; that is how the
	// binding layer tells a dead flow from a bad message handle.
	if rc := FlowSendAck(FlowHandle(999999), MessageHandle(1)); rc != Fail {
		t.Errorf("ack on unknown flow = %v, want Fail", rc)
	}
	if got := GetLastErrorInfo().SubCode; got != SubCodeUnknownFlowName {
		t.Errorf("subcode = %v, want SubCodeUnknownFlowName", got)
	}
}

func TestSendToUnknownQueueFails(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession(t, ctx, SessionFuncInfo{})

	msg, _ := MsgAlloc()
	defer MsgFree(msg)
	MsgSetDestination(msg, DestQueue, "no_such_queue")
	MsgSetBinaryAttachment(msg, []byte("x"))

	if rc := SessionSend(sess, msg); rc != Fail {
		t.Errorf("send to unknown queue = %v, want Fail", rc)
	}
	if got := GetLastErrorInfo().SubCode; got != SubCodeUnknownQueueName {
		t.Errorf("subcode = %v, want SubCodeUnknownQueueName", got)
	}
}

func msgTableSize() int {
	msgTab.mu.Lock()
	defer msgTab.mu.Unlock()
	return len(msgTab.msgs)
}

func TestUnmatchedReplyIsReleased(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession(t, ctx, SessionFuncInfo{})

	s, ok := lookupSession(sess)
	if !ok {
		t.Fatal("session state not found")
	}

	msg, _ := MsgAlloc()
	defer MsgFree(msg)
	MsgSetDestination(msg, DestTopic, s.replyTopic)
	MsgSetCorrelationID(msg, "#REQnobody-waiting")
	MsgSetAsReply(msg, true)

	before := msgTableSize()
	if rc := SessionSend(sess, msg); !rc.IsOk() {
		t.Fatalf("SessionSend() = %v", rc)
	}
	if got := msgTableSize(); got != before {
		t.Errorf("message table grew from %d to %d after a dropped reply", before, got)
	}
}

func TestDispatchOrderIsSerial(t *testing.T) {
	ctx := newTestContext(t)
	got := make([]int, 0, 10)
	done := make(chan struct{})
	received := 0
	funcs := SessionFuncInfo{
		MsgCB: func(_ SessionHandle, msg MessageHandle, _ uintptr) CallbackReturn {
			n, _ := MsgGetSequenceNumber(msg)
			got = append(got, int(n))
			received++
			if received == 10 {
				close(done)
			}
			return CallbackOk
		},
	}
	sess := newTestSession(t, ctx, funcs)
	if rc := SessionTopicSubscribe(sess, "ordered/topic"); !rc.IsOk() {
		t.Fatalf("subscribe = %v", rc)
	}

	for i := 0; i < 10; i++ {
		msg, _ := MsgAlloc()
		MsgSetDestination(msg, DestTopic, "ordered/topic")
		MsgSetBinaryAttachment(msg, []byte("x"))
		MsgSetSequenceNumber(msg, int64(i))
		if rc := SessionSend(sess, msg); !rc.IsOk() {
			t.Fatalf("SessionSend(%d) = %v", i, rc)
		}
		MsgFree(msg)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("only %d of 10 messages delivered", received)
	}
	for i, n := range got {
		if n != i {
			t.Fatalf("delivery order %v, want ascending sequence", got)
		}
	}
}
