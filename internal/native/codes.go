// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package native exposes the client engine boundary: opaque integer handles,
// integer return codes, flat key/value property arrays, function-pointer plus
// opaque-user-data callbacks, and a mutable last-error diagnostic record. The
// engine behind it emulates the broker-side semantics (topic routing, queue
// flows with acknowledgement, request-reply matching, cache replay) in
// process, so the binding layer above it is specified and tested against the
// same contract a linked native client library would present.
package native

import (
	"fmt"
	"sync"
)

// ReturnCode is the status returned by every engine call.
type ReturnCode int32

// Engine return codes. Any raw value outside this set maps to Fail.
const (
	Fail        ReturnCode = -1
	Ok          ReturnCode = 0
	WouldBlock  ReturnCode = 1
	InProgress  ReturnCode = 2
	NotReady    ReturnCode = 3
	EndOfStream ReturnCode = 4
	NotFound    ReturnCode = 5
	NoEvent     ReturnCode = 6
	Incomplete  ReturnCode = 7
	Rollback    ReturnCode = 8
)

// ReturnCodeFromRaw maps a raw engine status to a ReturnCode. Unrecognized
// values collapse to Fail, never to Ok.
func ReturnCodeFromRaw(v int32) ReturnCode {
	switch rc := ReturnCode(v); rc {
	case Ok, WouldBlock, InProgress, NotReady, EndOfStream, NotFound, NoEvent, Incomplete, Rollback, Fail:
		return rc
	default:
		return Fail
	}
}

// IsOk reports whether the code is Ok.
func (rc ReturnCode) IsOk() bool {
	return rc == Ok
}

// String returns a human-readable description of the return code.
func (rc ReturnCode) String() string {
	switch rc {
	case Ok:
		return "Ok - the call was successful"
	case WouldBlock:
		return "WouldBlock - the call would block, but non-blocking was requested"
	case InProgress:
		return "InProgress - the call is in progress (non-blocking mode)"
	case NotReady:
		return "NotReady - the object is not ready (for example, the session is not connected)"
	case EndOfStream:
		return "EndOfStream - a structured container iteration reached end of stream"
	case NotFound:
		return "NotFound - the named field or object was not found"
	case NoEvent:
		return "NoEvent - there is no event to process"
	case Incomplete:
		return "Incomplete - the call completed some, but not all, of the requested function"
	case Rollback:
		return "Rollback - the transaction has been rolled back"
	case Fail:
		return "Fail - the call failed"
	default:
		return fmt.Sprintf("unknown return code %d", int32(rc))
	}
}

// SubCode is the engine's secondary diagnostic code supplementing a failing
// return code.
type SubCode int32

// Diagnostic subcodes.
const (
	SubCodeOK SubCode = iota
	SubCodeInternalError
	SubCodeParamOutOfRange
	SubCodeParamNullPtr
	SubCodeInvalidTopicSyntax
	SubCodeLoginFailure
	SubCodeCommunicationError
	SubCodeTimeout
	SubCodeUnknownQueueName
	SubCodeUnknownTeName
	SubCodeUnknownFlowName
	SubCodeEndpointAlreadyExists
	SubCodeEndpointPropertyMismatch
	SubCodeInvalidSessionOperation
	SubCodeInvalidFlowOperation
	SubCodeMessageTooLarge
	SubCodeCacheNoData
	SubCodeCacheTimeout
	SubCodeCacheInvalidSession
)

// String returns the symbolic name of the subcode.
func (sc SubCode) String() string {
	switch sc {
	case SubCodeOK:
		return "OK"
	case SubCodeInternalError:
		return "INTERNAL_ERROR"
	case SubCodeParamOutOfRange:
		return "PARAM_OUT_OF_RANGE"
	case SubCodeParamNullPtr:
		return "PARAM_NULL_PTR"
	case SubCodeInvalidTopicSyntax:
		return "INVALID_TOPIC_SYNTAX"
	case SubCodeLoginFailure:
		return "LOGIN_FAILURE"
	case SubCodeCommunicationError:
		return "COMMUNICATION_ERROR"
	case SubCodeTimeout:
		return "TIMEOUT"
	case SubCodeUnknownQueueName:
		return "UNKNOWN_QUEUE_NAME"
	case SubCodeUnknownTeName:
		return "UNKNOWN_TE_NAME"
	case SubCodeUnknownFlowName:
		return "UNKNOWN_FLOW_NAME"
	case SubCodeEndpointAlreadyExists:
		return "ENDPOINT_ALREADY_EXISTS"
	case SubCodeEndpointPropertyMismatch:
		return "ENDPOINT_PROPERTY_MISMATCH"
	case SubCodeInvalidSessionOperation:
		return "INVALID_SESSION_OPERATION"
	case SubCodeInvalidFlowOperation:
		return "INVALID_FLOW_OPERATION"
	case SubCodeMessageTooLarge:
		return "MESSAGE_TOO_LARGE"
	case SubCodeCacheNoData:
		return "CACHE_NO_DATA"
	case SubCodeCacheTimeout:
		return "CACHE_TIMEOUT"
	case SubCodeCacheInvalidSession:
		return "CACHE_INVALID_SESSION"
	default:
		return fmt.Sprintf("SUBCODE_%d", int32(sc))
	}
}

// ErrorInfo is the diagnostic record associated with the most recent failing
// engine call. The record is a single mutable slot overwritten by every
// failing call; callers must read it immediately after observing a non-Ok
// return code, before issuing any other engine call.
type ErrorInfo struct {
	SubCode SubCode
	Info    string
}

var lastErr struct {
	mu   sync.Mutex
	info ErrorInfo
}

// GetLastErrorInfo returns the diagnostic record of the most recent failing
// engine call.
func GetLastErrorInfo() ErrorInfo {
	lastErr.mu.Lock()
	defer lastErr.mu.Unlock()
	return lastErr.info
}

func setLastError(sc SubCode, format string, args ...any) {
	lastErr.mu.Lock()
	lastErr.info = ErrorInfo{SubCode: sc, Info: fmt.Sprintf(format, args...)}
	lastErr.mu.Unlock()
}

func clearLastError() {
	lastErr.mu.Lock()
	lastErr.info = ErrorInfo{}
	lastErr.mu.Unlock()
}
