// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package solclient

import "github.com/absmach/solclient/internal/native"

// FlowEvent is an asynchronous notification delivered to a flow's event
// callback on the context dispatch thread.
type FlowEvent uint32

// Flow events.
const (
	FlowEventUpNotice         = FlowEvent(native.FlowEventUpNotice)
	FlowEventDownError        = FlowEvent(native.FlowEventDownError)
	FlowEventBindFailedError  = FlowEvent(native.FlowEventBindFailedError)
	FlowEventRejectedMsgError = FlowEvent(native.FlowEventRejectedMsgError)
	FlowEventSessionDown      = FlowEvent(native.FlowEventSessionDown)
	FlowEventActive           = FlowEvent(native.FlowEventActive)
	FlowEventInactive         = FlowEvent(native.FlowEventInactive)
	FlowEventReconnecting     = FlowEvent(native.FlowEventReconnecting)
	FlowEventReconnected      = FlowEvent(native.FlowEventReconnected)
)

// String returns the symbolic name of the event.
func (e FlowEvent) String() string {
	switch e {
	case FlowEventUpNotice:
		return "UpNotice"
	case FlowEventDownError:
		return "DownError"
	case FlowEventBindFailedError:
		return "BindFailedError"
	case FlowEventRejectedMsgError:
		return "RejectedMsgError"
	case FlowEventSessionDown:
		return "SessionDown"
	case FlowEventActive:
		return "Active"
	case FlowEventInactive:
		return "Inactive"
	case FlowEventReconnecting:
		return "Reconnecting"
	case FlowEventReconnected:
		return "Reconnected"
	default:
		return "Unknown"
	}
}

func flowEventFromCode(code uint32) (FlowEvent, bool) {
	if code > uint32(FlowEventReconnected) {
		return 0, false
	}
	return FlowEvent(code), true
}
