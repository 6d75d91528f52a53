// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package solclient

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/absmach/solclient/internal/native"
)

// DeliveryMode selects the engine's delivery quality for an outbound
// message.
type DeliveryMode uint32

// Delivery modes.
const (
	DeliveryModeDirect        = DeliveryMode(native.DeliveryModeDirect)
	DeliveryModePersistent    = DeliveryMode(native.DeliveryModePersistent)
	DeliveryModeNonPersistent = DeliveryMode(native.DeliveryModeNonPersistent)
)

// String returns the symbolic name of the delivery mode.
func (m DeliveryMode) String() string {
	switch m {
	case DeliveryModeDirect:
		return "Direct"
	case DeliveryModePersistent:
		return "Persistent"
	case DeliveryModeNonPersistent:
		return "NonPersistent"
	default:
		return "Unknown"
	}
}

// ClassOfService is the engine's three-level message priority class.
type ClassOfService uint32

// Classes of service.
const (
	ClassOfService1 = ClassOfService(native.ClassOfService1)
	ClassOfService2 = ClassOfService(native.ClassOfService2)
	ClassOfService3 = ClassOfService(native.ClassOfService3)
)

// message wraps an owned native message handle and carries the shared field
// accessors. Accessors return (value, present, error): present is false with
// a nil error when the field is simply absent; the error is non-nil when the
// engine read fails or the raw value violates its expected representation.
type message struct {
	h     native.MessageHandle
	freed atomic.Bool
}

// Free releases the native message. Payload and user-data slices obtained
// from accessors must not be used afterwards. Free is idempotent.
func (m *message) Free() {
	if !m.freed.CompareAndSwap(false, true) {
		return
	}
	native.MsgFree(m.h)
}

// Payload returns the engine-owned payload bytes, valid until the message is
// freed.
func (m *message) Payload() ([]byte, bool, error) {
	p, rc := native.MsgGetBinaryAttachment(m.h)
	switch rc {
	case native.Ok:
		return p, true, nil
	case native.NotFound:
		return nil, false, nil
	default:
		return nil, false, &FieldError{Field: "payload", Code: rc}
	}
}

// UserData returns the engine-owned user-data bytes, valid until the message
// is freed.
func (m *message) UserData() ([]byte, bool, error) {
	d, rc := native.MsgGetUserData(m.h)
	switch rc {
	case native.Ok:
		return d, true, nil
	case native.NotFound:
		return nil, false, nil
	default:
		return nil, false, &FieldError{Field: "user_data", Code: rc}
	}
}

// Destination returns the message destination.
func (m *message) Destination() (Destination, bool, error) {
	destType, name, rc := native.MsgGetDestination(m.h)
	switch rc {
	case native.Ok:
		dest, ok := destinationFromRaw(destType, name)
		if !ok {
			return Destination{}, false, &FieldConversionError{Field: "destination"}
		}
		return dest, true, nil
	case native.NotFound:
		return Destination{}, false, nil
	default:
		return Destination{}, false, &FieldError{Field: "destination", Code: rc}
	}
}

// ReplyTo returns the reply-to destination, set on request messages.
func (m *message) ReplyTo() (Destination, bool, error) {
	destType, name, rc := native.MsgGetReplyTo(m.h)
	switch rc {
	case native.Ok:
		dest, ok := destinationFromRaw(destType, name)
		if !ok {
			return Destination{}, false, &FieldConversionError{Field: "reply_to"}
		}
		return dest, true, nil
	case native.NotFound:
		return Destination{}, false, nil
	default:
		return Destination{}, false, &FieldError{Field: "reply_to", Code: rc}
	}
}

// CorrelationID returns the correlation ID.
func (m *message) CorrelationID() (string, bool, error) {
	id, rc := native.MsgGetCorrelationID(m.h)
	switch rc {
	case native.Ok:
		return id, true, nil
	case native.NotFound:
		return "", false, nil
	default:
		return "", false, &FieldError{Field: "correlation_id", Code: rc}
	}
}

// ApplicationMessageID returns the application-defined message ID.
func (m *message) ApplicationMessageID() (string, bool, error) {
	id, rc := native.MsgGetApplicationMessageID(m.h)
	switch rc {
	case native.Ok:
		return id, true, nil
	case native.NotFound:
		return "", false, nil
	default:
		return "", false, &FieldError{Field: "application_message_id", Code: rc}
	}
}

// ApplicationMessageType returns the application-defined message type.
func (m *message) ApplicationMessageType() (string, bool, error) {
	t, rc := native.MsgGetApplicationMsgType(m.h)
	switch rc {
	case native.Ok:
		return t, true, nil
	case native.NotFound:
		return "", false, nil
	default:
		return "", false, &FieldError{Field: "application_message_type", Code: rc}
	}
}

// ClassOfService returns the message class of service.
func (m *message) ClassOfService() (ClassOfService, error) {
	cos, rc := native.MsgGetClassOfService(m.h)
	if !rc.IsOk() {
		return 0, &FieldError{Field: "class_of_service", Code: rc}
	}
	if cos > native.ClassOfService3 {
		return 0, &FieldConversionError{Field: "class_of_service"}
	}
	return ClassOfService(cos), nil
}

// DeliveryMode returns the message delivery mode.
func (m *message) DeliveryMode() (DeliveryMode, error) {
	mode, rc := native.MsgGetDeliveryMode(m.h)
	if !rc.IsOk() {
		return 0, &FieldError{Field: "delivery_mode", Code: rc}
	}
	switch mode {
	case native.DeliveryModeDirect, native.DeliveryModePersistent, native.DeliveryModeNonPersistent:
		return DeliveryMode(mode), nil
	default:
		return 0, &FieldConversionError{Field: "delivery_mode"}
	}
}

// Priority returns the message priority. A stored priority of -1 reads back
// as absent.
func (m *message) Priority() (uint8, bool, error) {
	p, rc := native.MsgGetPriority(m.h)
	if !rc.IsOk() {
		return 0, false, &FieldError{Field: "priority", Code: rc}
	}
	if p == -1 {
		return 0, false, nil
	}
	return uint8(p), true, nil
}

// SequenceNumber returns the message sequence number.
func (m *message) SequenceNumber() (int64, bool, error) {
	n, rc := native.MsgGetSequenceNumber(m.h)
	switch rc {
	case native.Ok:
		return n, true, nil
	case native.NotFound:
		return 0, false, nil
	default:
		return 0, false, &FieldError{Field: "sequence_number", Code: rc}
	}
}

// SenderTimestamp returns the sender timestamp.
func (m *message) SenderTimestamp() (time.Time, bool, error) {
	ms, rc := native.MsgGetSenderTimestamp(m.h)
	switch rc {
	case native.Ok:
		return time.UnixMilli(ms), true, nil
	case native.NotFound:
		return time.Time{}, false, nil
	default:
		return time.Time{}, false, &FieldError{Field: "sender_timestamp", Code: rc}
	}
}

// Expiration returns the message expiration in milliseconds since the Unix
// epoch; zero means the message never expires.
func (m *message) Expiration() (int64, error) {
	exp, rc := native.MsgGetExpiration(m.h)
	if !rc.IsOk() {
		return 0, &FieldError{Field: "expiration", Code: rc}
	}
	return exp, nil
}

// IsElidingEligible reports the eliding-eligible flag.
func (m *message) IsElidingEligible() (bool, error) {
	v, rc := native.MsgIsElidingEligible(m.h)
	if !rc.IsOk() {
		return false, &FieldError{Field: "eliding_eligible", Code: rc}
	}
	return v, nil
}

// IsReply reports whether the message is a reply.
func (m *message) IsReply() (bool, error) {
	v, rc := native.MsgIsReply(m.h)
	if !rc.IsOk() {
		return false, &FieldError{Field: "is_reply", Code: rc}
	}
	return v, nil
}

func containsNUL(s string) bool {
	return strings.IndexByte(s, 0) >= 0
}
