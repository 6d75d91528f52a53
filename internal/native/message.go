// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package native

import "sync"

// MessageHandle is an opaque reference to an engine-owned message.
type MessageHandle uint64

// Destination types.
const (
	DestNull      int32 = -1
	DestTopic     int32 = 0
	DestQueue     int32 = 1
	DestTopicTemp int32 = 2
	DestQueueTemp int32 = 3
)

// Delivery modes.
const (
	DeliveryModeDirect        uint32 = 0x00
	DeliveryModePersistent    uint32 = 0x10
	DeliveryModeNonPersistent uint32 = 0x20
)

// Class of service levels.
const (
	ClassOfService1 uint32 = 0
	ClassOfService2 uint32 = 1
	ClassOfService3 uint32 = 2
)

// MaxUserDataLen is the engine limit on the user-data field.
const MaxUserDataLen = 36

type msgRecord struct {
	payload  []byte
	userData []byte

	destType    int32
	dest        string
	replyToType int32
	replyTo     string

	correlationID *string
	appMsgID      *string
	appMsgType    *string

	deliveryMode uint32
	cos          uint32
	priority     int32
	seqNum       *int64
	senderTS     *int64
	expiration   int64

	elidingEligible bool
	isReply         bool
	redelivered     bool
	discard         bool

	cacheRequestID *uint64

	hasPayload bool
	compressed bool
}

var msgTab = struct {
	mu     sync.Mutex
	nextID uint64
	msgs   map[MessageHandle]*msgRecord
}{msgs: make(map[MessageHandle]*msgRecord)}

func newMsgRecord() *msgRecord {
	return &msgRecord{destType: DestNull, replyToType: DestNull, priority: -1}
}

func allocMsg(rec *msgRecord) MessageHandle {
	msgTab.mu.Lock()
	defer msgTab.mu.Unlock()
	msgTab.nextID++
	h := MessageHandle(msgTab.nextID)
	msgTab.msgs[h] = rec
	return h
}

func lookupMsg(h MessageHandle) (*msgRecord, bool) {
	msgTab.mu.Lock()
	defer msgTab.mu.Unlock()
	rec, ok := msgTab.msgs[h]
	return rec, ok
}

// MsgAlloc allocates an empty message and returns its handle.
func MsgAlloc() (MessageHandle, ReturnCode) {
	return allocMsg(newMsgRecord()), Ok
}

// MsgFree releases the message. The handle is invalid afterwards.
func MsgFree(h MessageHandle) ReturnCode {
	msgTab.mu.Lock()
	defer msgTab.mu.Unlock()
	if _, ok := msgTab.msgs[h]; !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return Fail
	}
	delete(msgTab.msgs, h)
	return Ok
}

// MsgDup allocates an independent copy of the message.
func MsgDup(h MessageHandle) (MessageHandle, ReturnCode) {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return 0, Fail
	}
	dup := *rec
	return allocMsg(&dup), Ok
}

// MsgSetBinaryAttachment sets the message payload. The engine keeps its own
// reference to the bytes; the caller must not mutate them afterwards.
func MsgSetBinaryAttachment(h MessageHandle, payload []byte) ReturnCode {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return Fail
	}
	rec.payload = payload
	rec.hasPayload = true
	return Ok
}

// MsgGetBinaryAttachment returns the engine-owned payload bytes. The slice is
// valid until the message is freed.
func MsgGetBinaryAttachment(h MessageHandle) ([]byte, ReturnCode) {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return nil, Fail
	}
	if !rec.hasPayload {
		return nil, NotFound
	}
	return rec.payload, Ok
}

// MsgSetUserData sets the user-data field, bounded by MaxUserDataLen.
func MsgSetUserData(h MessageHandle, data []byte) ReturnCode {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return Fail
	}
	if len(data) > MaxUserDataLen {
		setLastError(SubCodeParamOutOfRange, "user data exceeds %d bytes", MaxUserDataLen)
		return Fail
	}
	rec.userData = data
	return Ok
}

// MsgGetUserData returns the engine-owned user-data bytes.
func MsgGetUserData(h MessageHandle) ([]byte, ReturnCode) {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return nil, Fail
	}
	if rec.userData == nil {
		return nil, NotFound
	}
	return rec.userData, Ok
}

// MsgSetDestination sets the destination type and name.
func MsgSetDestination(h MessageHandle, destType int32, name string) ReturnCode {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return Fail
	}
	rec.destType = destType
	rec.dest = name
	return Ok
}

// MsgGetDestination returns the destination type and name.
func MsgGetDestination(h MessageHandle) (int32, string, ReturnCode) {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return DestNull, "", Fail
	}
	if rec.destType == DestNull {
		return DestNull, "", NotFound
	}
	return rec.destType, rec.dest, Ok
}

// MsgSetReplyTo sets the reply-to destination.
func MsgSetReplyTo(h MessageHandle, destType int32, name string) ReturnCode {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return Fail
	}
	rec.replyToType = destType
	rec.replyTo = name
	return Ok
}

// MsgGetReplyTo returns the reply-to destination.
func MsgGetReplyTo(h MessageHandle) (int32, string, ReturnCode) {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return DestNull, "", Fail
	}
	if rec.replyToType == DestNull {
		return DestNull, "", NotFound
	}
	return rec.replyToType, rec.replyTo, Ok
}

// MsgSetCorrelationID sets the correlation ID.
func MsgSetCorrelationID(h MessageHandle, id string) ReturnCode {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return Fail
	}
	rec.correlationID = &id
	return Ok
}

// MsgGetCorrelationID returns the correlation ID.
func MsgGetCorrelationID(h MessageHandle) (string, ReturnCode) {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return "", Fail
	}
	if rec.correlationID == nil {
		return "", NotFound
	}
	return *rec.correlationID, Ok
}

// MsgSetApplicationMessageID sets the application message ID.
func MsgSetApplicationMessageID(h MessageHandle, id string) ReturnCode {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return Fail
	}
	rec.appMsgID = &id
	return Ok
}

// MsgGetApplicationMessageID returns the application message ID.
func MsgGetApplicationMessageID(h MessageHandle) (string, ReturnCode) {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return "", Fail
	}
	if rec.appMsgID == nil {
		return "", NotFound
	}
	return *rec.appMsgID, Ok
}

// MsgSetApplicationMsgType sets the application message type.
func MsgSetApplicationMsgType(h MessageHandle, t string) ReturnCode {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return Fail
	}
	rec.appMsgType = &t
	return Ok
}

// MsgGetApplicationMsgType returns the application message type.
func MsgGetApplicationMsgType(h MessageHandle) (string, ReturnCode) {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return "", Fail
	}
	if rec.appMsgType == nil {
		return "", NotFound
	}
	return *rec.appMsgType, Ok
}

// MsgSetDeliveryMode sets the delivery mode.
func MsgSetDeliveryMode(h MessageHandle, mode uint32) ReturnCode {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return Fail
	}
	switch mode {
	case DeliveryModeDirect, DeliveryModePersistent, DeliveryModeNonPersistent:
	default:
		setLastError(SubCodeParamOutOfRange, "delivery mode %d is not valid", mode)
		return Fail
	}
	rec.deliveryMode = mode
	return Ok
}

// MsgGetDeliveryMode returns the delivery mode.
func MsgGetDeliveryMode(h MessageHandle) (uint32, ReturnCode) {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return 0, Fail
	}
	return rec.deliveryMode, Ok
}

// MsgSetClassOfService sets the class of service.
func MsgSetClassOfService(h MessageHandle, cos uint32) ReturnCode {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return Fail
	}
	if cos > ClassOfService3 {
		setLastError(SubCodeParamOutOfRange, "class of service %d is not valid", cos)
		return Fail
	}
	rec.cos = cos
	return Ok
}

// MsgGetClassOfService returns the class of service.
func MsgGetClassOfService(h MessageHandle) (uint32, ReturnCode) {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return 0, Fail
	}
	return rec.cos, Ok
}

// MsgSetPriority sets the priority (0-255).
func MsgSetPriority(h MessageHandle, priority int32) ReturnCode {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return Fail
	}
	if priority < -1 || priority > 255 {
		setLastError(SubCodeParamOutOfRange, "priority %d is not valid", priority)
		return Fail
	}
	rec.priority = priority
	return Ok
}

// MsgGetPriority returns the priority; -1 means unset.
func MsgGetPriority(h MessageHandle) (int32, ReturnCode) {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return -1, Fail
	}
	return rec.priority, Ok
}

// MsgSetSequenceNumber sets the sequence number.
func MsgSetSequenceNumber(h MessageHandle, n int64) ReturnCode {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return Fail
	}
	rec.seqNum = &n
	return Ok
}

// MsgGetSequenceNumber returns the sequence number.
func MsgGetSequenceNumber(h MessageHandle) (int64, ReturnCode) {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return 0, Fail
	}
	if rec.seqNum == nil {
		return 0, NotFound
	}
	return *rec.seqNum, Ok
}

// MsgSetSenderTimestamp sets the sender timestamp in milliseconds since the
// Unix epoch.
func MsgSetSenderTimestamp(h MessageHandle, ms int64) ReturnCode {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return Fail
	}
	rec.senderTS = &ms
	return Ok
}

// MsgGetSenderTimestamp returns the sender timestamp in milliseconds since
// the Unix epoch.
func MsgGetSenderTimestamp(h MessageHandle) (int64, ReturnCode) {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return 0, Fail
	}
	if rec.senderTS == nil {
		return 0, NotFound
	}
	return *rec.senderTS, Ok
}

// MsgSetExpiration sets the expiration in milliseconds since the Unix epoch.
func MsgSetExpiration(h MessageHandle, ms int64) ReturnCode {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return Fail
	}
	rec.expiration = ms
	return Ok
}

// MsgGetExpiration returns the expiration; 0 means never.
func MsgGetExpiration(h MessageHandle) (int64, ReturnCode) {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return 0, Fail
	}
	return rec.expiration, Ok
}

// MsgSetElidingEligible marks the message as eligible for eliding.
func MsgSetElidingEligible(h MessageHandle, eligible bool) ReturnCode {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return Fail
	}
	rec.elidingEligible = eligible
	return Ok
}

// MsgIsElidingEligible reports the eliding-eligible flag.
func MsgIsElidingEligible(h MessageHandle) (bool, ReturnCode) {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return false, Fail
	}
	return rec.elidingEligible, Ok
}

// MsgSetAsReply marks the message as a reply.
func MsgSetAsReply(h MessageHandle, reply bool) ReturnCode {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return Fail
	}
	rec.isReply = reply
	return Ok
}

// MsgIsReply reports the reply flag.
func MsgIsReply(h MessageHandle) (bool, ReturnCode) {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return false, Fail
	}
	return rec.isReply, Ok
}

// MsgIsRedelivered reports whether the message has been redelivered.
func MsgIsRedelivered(h MessageHandle) (bool, ReturnCode) {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return false, Fail
	}
	return rec.redelivered, Ok
}

// MsgGetDiscardIndication reports whether the engine discarded one or more
// messages before this one.
func MsgGetDiscardIndication(h MessageHandle) (bool, ReturnCode) {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return false, Fail
	}
	return rec.discard, Ok
}

// MsgGetCacheRequestID returns the cache request ID for messages delivered by
// a cache request.
func MsgGetCacheRequestID(h MessageHandle) (uint64, ReturnCode) {
	rec, ok := lookupMsg(h)
	if !ok {
		setLastError(SubCodeParamNullPtr, "message handle %d is not valid", h)
		return 0, Fail
	}
	if rec.cacheRequestID == nil {
		return 0, NotFound
	}
	return *rec.cacheRequestID, Ok
}
