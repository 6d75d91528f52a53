// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package solclient

import "github.com/absmach/solclient/internal/native"

// SessionEvent is an asynchronous notification delivered to the session's
// event callback on the context dispatch thread.
type SessionEvent uint32

// Session events.
const (
	SessionEventUpNotice                 = SessionEvent(native.SessionEventUpNotice)
	SessionEventDownError                = SessionEvent(native.SessionEventDownError)
	SessionEventConnectFailedError       = SessionEvent(native.SessionEventConnectFailedError)
	SessionEventRejectedMsgError         = SessionEvent(native.SessionEventRejectedMsgError)
	SessionEventSubscriptionError        = SessionEvent(native.SessionEventSubscriptionError)
	SessionEventRxMsgTooBigError         = SessionEvent(native.SessionEventRxMsgTooBigError)
	SessionEventAcknowledgement          = SessionEvent(native.SessionEventAcknowledgement)
	SessionEventAssuredPublishingUp      = SessionEvent(native.SessionEventAssuredPublishingUp)
	SessionEventAssuredDeliveryDown      = SessionEvent(native.SessionEventAssuredDeliveryDown)
	SessionEventTeUnsubscribeError       = SessionEvent(native.SessionEventTeUnsubscribeError)
	SessionEventTeUnsubscribeOk          = SessionEvent(native.SessionEventTeUnsubscribeOk)
	SessionEventCanSend                  = SessionEvent(native.SessionEventCanSend)
	SessionEventReconnectingNotice       = SessionEvent(native.SessionEventReconnectingNotice)
	SessionEventReconnectedNotice        = SessionEvent(native.SessionEventReconnectedNotice)
	SessionEventProvisionError           = SessionEvent(native.SessionEventProvisionError)
	SessionEventProvisionOk              = SessionEvent(native.SessionEventProvisionOk)
	SessionEventSubscriptionOk           = SessionEvent(native.SessionEventSubscriptionOk)
	SessionEventVirtualRouterNameChanged = SessionEvent(native.SessionEventVirtualRouterNameChanged)
	SessionEventModifyPropOk             = SessionEvent(native.SessionEventModifyPropOk)
	SessionEventModifyPropFail           = SessionEvent(native.SessionEventModifyPropFail)
	SessionEventRepublishUnackedMessages = SessionEvent(native.SessionEventRepublishUnackedMessages)
)

// String returns the symbolic name of the event.
func (e SessionEvent) String() string {
	switch e {
	case SessionEventUpNotice:
		return "UpNotice"
	case SessionEventDownError:
		return "DownError"
	case SessionEventConnectFailedError:
		return "ConnectFailedError"
	case SessionEventRejectedMsgError:
		return "RejectedMsgError"
	case SessionEventSubscriptionError:
		return "SubscriptionError"
	case SessionEventRxMsgTooBigError:
		return "RxMsgTooBigError"
	case SessionEventAcknowledgement:
		return "Acknowledgement"
	case SessionEventAssuredPublishingUp:
		return "AssuredPublishingUp"
	case SessionEventAssuredDeliveryDown:
		return "AssuredDeliveryDown"
	case SessionEventTeUnsubscribeError:
		return "TeUnsubscribeError"
	case SessionEventTeUnsubscribeOk:
		return "TeUnsubscribeOk"
	case SessionEventCanSend:
		return "CanSend"
	case SessionEventReconnectingNotice:
		return "ReconnectingNotice"
	case SessionEventReconnectedNotice:
		return "ReconnectedNotice"
	case SessionEventProvisionError:
		return "ProvisionError"
	case SessionEventProvisionOk:
		return "ProvisionOk"
	case SessionEventSubscriptionOk:
		return "SubscriptionOk"
	case SessionEventVirtualRouterNameChanged:
		return "VirtualRouterNameChanged"
	case SessionEventModifyPropOk:
		return "ModifyPropOk"
	case SessionEventModifyPropFail:
		return "ModifyPropFail"
	case SessionEventRepublishUnackedMessages:
		return "RepublishUnackedMessages"
	default:
		return "Unknown"
	}
}

// sessionEventFromCode maps a raw engine event code onto the enumeration.
func sessionEventFromCode(code uint32) (SessionEvent, bool) {
	if code > uint32(SessionEventRepublishUnackedMessages) {
		return 0, false
	}
	return SessionEvent(code), true
}
