// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package solclient

import (
	"fmt"
	"runtime"
	"time"

	"github.com/absmach/solclient/internal/native"
)

// OutboundMessage is a message constructed for publishing. It is produced
// only through OutboundMessageBuilder, which guarantees the mandatory fields
// (delivery mode, destination, payload) are set before the message can be
// sent. The engine copies the message on publish, so one OutboundMessage may
// be published repeatedly and freed at any point afterwards.
type OutboundMessage struct {
	message
}

func newOutboundMessage(h native.MessageHandle) *OutboundMessage {
	m := &OutboundMessage{message{h: h}}
	runtime.SetFinalizer(m, func(m *OutboundMessage) { m.Free() })
	return m
}

// OutboundMessageBuilder assembles an outbound message. Setters are
// infallible and chainable; all validation happens in Build.
type OutboundMessageBuilder struct {
	deliveryMode *DeliveryMode
	dest         *Destination
	payload      []byte
	hasPayload   bool
	correlation  *string
	cos          *ClassOfService
	seqNum       *int64
	priority     *uint8
	appMsgID     *string
	appMsgType   *string
	userData     []byte
	senderTS     *time.Time
	eliding      *bool
	isReply      *bool
}

// NewOutboundMessageBuilder returns an empty builder.
func NewOutboundMessageBuilder() *OutboundMessageBuilder {
	return &OutboundMessageBuilder{}
}

// DeliveryMode sets the delivery mode. Required.
func (b *OutboundMessageBuilder) DeliveryMode(m DeliveryMode) *OutboundMessageBuilder {
	b.deliveryMode = &m
	return b
}

// Destination sets the delivery target. Required.
func (b *OutboundMessageBuilder) Destination(d Destination) *OutboundMessageBuilder {
	b.dest = &d
	return b
}

// Payload sets the message payload. Required. The builder keeps a reference
// to the slice; do not mutate it after Build.
func (b *OutboundMessageBuilder) Payload(p []byte) *OutboundMessageBuilder {
	b.payload = p
	b.hasPayload = true
	return b
}

// CorrelationID sets the correlation ID.
func (b *OutboundMessageBuilder) CorrelationID(id string) *OutboundMessageBuilder {
	b.correlation = &id
	return b
}

// ClassOfService sets the class of service.
func (b *OutboundMessageBuilder) ClassOfService(c ClassOfService) *OutboundMessageBuilder {
	b.cos = &c
	return b
}

// SequenceNumber sets the sequence number.
func (b *OutboundMessageBuilder) SequenceNumber(n int64) *OutboundMessageBuilder {
	b.seqNum = &n
	return b
}

// Priority sets the message priority.
func (b *OutboundMessageBuilder) Priority(p uint8) *OutboundMessageBuilder {
	b.priority = &p
	return b
}

// ApplicationMessageID sets the application-defined message ID.
func (b *OutboundMessageBuilder) ApplicationMessageID(id string) *OutboundMessageBuilder {
	b.appMsgID = &id
	return b
}

// ApplicationMessageType sets the application-defined message type.
func (b *OutboundMessageBuilder) ApplicationMessageType(t string) *OutboundMessageBuilder {
	b.appMsgType = &t
	return b
}

// UserData sets the user-data field, limited to MaxUserDataLen bytes.
func (b *OutboundMessageBuilder) UserData(d []byte) *OutboundMessageBuilder {
	b.userData = d
	return b
}

// SenderTimestamp sets the sender timestamp.
func (b *OutboundMessageBuilder) SenderTimestamp(t time.Time) *OutboundMessageBuilder {
	b.senderTS = &t
	return b
}

// ElidingEligible marks the message as eligible for eliding.
func (b *OutboundMessageBuilder) ElidingEligible(eligible bool) *OutboundMessageBuilder {
	b.eliding = &eligible
	return b
}

// AsReply marks the message as a reply; responders set this together with
// the request's correlation ID.
func (b *OutboundMessageBuilder) AsReply(reply bool) *OutboundMessageBuilder {
	b.isReply = &reply
	return b
}

// MaxUserDataLen is the engine limit on the user-data field.
const MaxUserDataLen = native.MaxUserDataLen

// Build validates the assembled fields and produces the message. The native
// message is allocated before any field is set, so a failure part-way still
// releases it.
func (b *OutboundMessageBuilder) Build() (*OutboundMessage, error) {
	h, rc := native.MsgAlloc()
	if !rc.IsOk() {
		return nil, &InitializationError{lastDiagnostics(rc)}
	}
	msg := newOutboundMessage(h)

	if err := b.apply(msg); err != nil {
		msg.Free()
		return nil, err
	}
	return msg, nil
}

func (b *OutboundMessageBuilder) apply(msg *OutboundMessage) error {
	if b.deliveryMode == nil {
		return &MissingRequiredArgsError{Field: "delivery_mode"}
	}
	if b.dest == nil {
		return &MissingRequiredArgsError{Field: "destination"}
	}
	if !b.hasPayload {
		return &MissingRequiredArgsError{Field: "message"}
	}
	if containsNUL(b.dest.Name) {
		return &InvalidArgsError{Field: "destination"}
	}
	for field, v := range map[string]*string{
		"correlation_id":           b.correlation,
		"application_message_id":   b.appMsgID,
		"application_message_type": b.appMsgType,
	} {
		if v != nil && containsNUL(*v) {
			return &InvalidArgsError{Field: field}
		}
	}
	if len(b.userData) > MaxUserDataLen {
		return &InvalidRangeError{
			Field:   "user_data",
			Allowed: fmt.Sprintf("<= %d bytes", MaxUserDataLen),
			Actual:  fmt.Sprintf("%d bytes", len(b.userData)),
		}
	}

	h := msg.h
	if rc := native.MsgSetDeliveryMode(h, uint32(*b.deliveryMode)); !rc.IsOk() {
		return &FieldError{Field: "delivery_mode", Code: rc}
	}
	if rc := native.MsgSetDestination(h, int32(b.dest.Type), b.dest.Name); !rc.IsOk() {
		return &FieldError{Field: "destination", Code: rc}
	}
	if rc := native.MsgSetBinaryAttachment(h, b.payload); !rc.IsOk() {
		return &FieldError{Field: "payload", Code: rc}
	}
	if b.correlation != nil {
		if rc := native.MsgSetCorrelationID(h, *b.correlation); !rc.IsOk() {
			return &FieldError{Field: "correlation_id", Code: rc}
		}
	}
	if b.cos != nil {
		if rc := native.MsgSetClassOfService(h, uint32(*b.cos)); !rc.IsOk() {
			return &FieldError{Field: "class_of_service", Code: rc}
		}
	}
	if b.seqNum != nil {
		if rc := native.MsgSetSequenceNumber(h, *b.seqNum); !rc.IsOk() {
			return &FieldError{Field: "sequence_number", Code: rc}
		}
	}
	if b.priority != nil {
		if rc := native.MsgSetPriority(h, int32(*b.priority)); !rc.IsOk() {
			return &FieldError{Field: "priority", Code: rc}
		}
	}
	if b.appMsgID != nil {
		if rc := native.MsgSetApplicationMessageID(h, *b.appMsgID); !rc.IsOk() {
			return &FieldError{Field: "application_message_id", Code: rc}
		}
	}
	if b.appMsgType != nil {
		if rc := native.MsgSetApplicationMsgType(h, *b.appMsgType); !rc.IsOk() {
			return &FieldError{Field: "application_message_type", Code: rc}
		}
	}
	if b.userData != nil {
		if rc := native.MsgSetUserData(h, b.userData); !rc.IsOk() {
			return &FieldError{Field: "user_data", Code: rc}
		}
	}
	if b.senderTS != nil {
		if rc := native.MsgSetSenderTimestamp(h, b.senderTS.UnixMilli()); !rc.IsOk() {
			return &FieldError{Field: "sender_timestamp", Code: rc}
		}
	}
	if b.eliding != nil {
		if rc := native.MsgSetElidingEligible(h, *b.eliding); !rc.IsOk() {
			return &FieldError{Field: "eliding_eligible", Code: rc}
		}
	}
	if b.isReply != nil {
		if rc := native.MsgSetAsReply(h, *b.isReply); !rc.IsOk() {
			return &FieldError{Field: "is_reply", Code: rc}
		}
	}
	return nil
}
