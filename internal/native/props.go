// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package native

import "strconv"

// Property keys. Engine calls that accept configuration take a flat ordered
// slice of alternating key/value strings; the pair order is significant to
// the engine's parser and the slice must stay alive for the duration of the
// call that consumes it.
const (
	ContextPropCreateThread = "CONTEXT_CREATE_THREAD"

	SessionPropHost                  = "SESSION_HOST"
	SessionPropVPNName               = "SESSION_VPN_NAME"
	SessionPropUsername              = "SESSION_USERNAME"
	SessionPropPassword              = "SESSION_PASSWORD"
	SessionPropClientName            = "SESSION_CLIENT_NAME"
	SessionPropApplicationDesc       = "SESSION_APPLICATION_DESCRIPTION"
	SessionPropBufferSize            = "SESSION_BUFFER_SIZE"
	SessionPropBlockWriteTimeout     = "SESSION_WRITE_TIMEOUT_MS"
	SessionPropConnectTimeout        = "SESSION_CONNECT_TIMEOUT_MS"
	SessionPropSubConfirmTimeout     = "SESSION_SUBCONFIRM_TIMEOUT_MS"
	SessionPropIgnoreDupSubError     = "SESSION_IGNORE_DUP_SUBSCRIPTION_ERROR"
	SessionPropTCPNoDelay            = "SESSION_TCP_NODELAY"
	SessionPropSocketSendBufSize     = "SESSION_SOCKET_SEND_BUF_SIZE"
	SessionPropSocketRcvBufSize      = "SESSION_SOCKET_RCV_BUF_SIZE"
	SessionPropKeepAliveInterval     = "SESSION_KEEP_ALIVE_INTERVAL_MS"
	SessionPropKeepAliveLimit        = "SESSION_KEEP_ALIVE_LIMIT"
	SessionPropCompressionLevel      = "SESSION_COMPRESSION_LEVEL"
	SessionPropConnectRetries        = "SESSION_CONNECT_RETRIES"
	SessionPropReconnectRetries      = "SESSION_RECONNECT_RETRIES"
	SessionPropReconnectRetryWait    = "SESSION_RECONNECT_RETRY_WAIT_MS"
	SessionPropGenerateRcvTimestamp  = "SESSION_RCV_TIMESTAMP"
	SessionPropGenerateSendTimestamp = "SESSION_SEND_TIMESTAMP"
	SessionPropGenerateSenderID      = "SESSION_SEND_SENDER_ID"
	SessionPropGenerateSequenceNum   = "SESSION_SEND_SEQUENCE_NUMBER"
	SessionPropSSLTrustStoreDir      = "SESSION_SSL_TRUST_STORE_DIR"
	SessionPropSSLValidateCert       = "SESSION_SSL_VALIDATE_CERTIFICATE"
	SessionPropConnectBlocking       = "SESSION_CONNECT_BLOCKING"
	SessionPropSendBlocking          = "SESSION_SEND_BLOCKING"
	SessionPropSubscribeBlocking     = "SESSION_SUBSCRIBE_BLOCKING"

	FlowPropBindTimeout             = "FLOW_BIND_TIMEOUT_MS"
	FlowPropBindEntityID            = "FLOW_BIND_ENTITY_ID"
	FlowPropBindEntityDurable       = "FLOW_BIND_ENTITY_DURABLE"
	FlowPropBindName                = "FLOW_BIND_NAME"
	FlowPropTopic                   = "FLOW_TOPIC"
	FlowPropWindowSize              = "FLOW_WINDOW_SIZE"
	FlowPropAckMode                 = "FLOW_ACKMODE"
	FlowPropAckTimer                = "FLOW_ACK_TIMER_MS"
	FlowPropAckThreshold            = "FLOW_ACK_THRESHOLD"
	FlowPropStartState              = "FLOW_START_STATE"
	FlowPropSelector                = "FLOW_SELECTOR"
	FlowPropNoLocal                 = "FLOW_NO_LOCAL"
	FlowPropMaxBindTries            = "FLOW_MAX_BIND_TRIES"
	FlowPropMaxUnackedMessages      = "FLOW_MAX_UNACKED_MESSAGES"
	FlowPropBrowser                 = "FLOW_BROWSER"
	FlowPropActiveFlowInd           = "FLOW_ACTIVE_FLOW_IND"
	FlowPropReplayStartLocation     = "FLOW_REPLAY_START_LOCATION"
	FlowPropMaxReconnectTries       = "FLOW_MAX_RECONNECT_TRIES"
	FlowPropReconnectRetryWait      = "FLOW_RECONNECT_RETRY_INTERVAL_MS"
	FlowPropRequiredOutcomeFailed   = "FLOW_REQUIRED_OUTCOME_FAILED"
	FlowPropRequiredOutcomeRejected = "FLOW_REQUIRED_OUTCOME_REJECTED"

	EndpointPropID              = "ENDPOINT_ID"
	EndpointPropName            = "ENDPOINT_NAME"
	EndpointPropDurable         = "ENDPOINT_DURABLE"
	EndpointPropPermission      = "ENDPOINT_PERMISSION"
	EndpointPropAccessType      = "ENDPOINT_ACCESSTYPE"
	EndpointPropQuotaMB         = "ENDPOINT_QUOTA_MB"
	EndpointPropMaxMsgSize      = "ENDPOINT_MAXMSG_SIZE"
	EndpointPropRespectsTTL     = "ENDPOINT_RESPECTS_MSG_TTL"
	EndpointPropDiscardBehavior = "ENDPOINT_DISCARD_BEHAVIOR"
	EndpointPropMaxRedelivery   = "ENDPOINT_MAX_MSG_REDELIVERY"

	CacheSessionPropCacheName      = "CACHESESSION_CACHE_NAME"
	CacheSessionPropMaxMsgs        = "CACHESESSION_MAX_MSGS"
	CacheSessionPropMaxAge         = "CACHESESSION_MAX_AGE"
	CacheSessionPropRequestTimeout = "CACHESESSION_REQUESTREPLY_TIMEOUT_MS"
)

// Property values for enumerated keys.
const (
	PropTrue  = "1"
	PropFalse = "0"

	FlowBindEntitySub   = "1"
	FlowBindEntityQueue = "2"
	FlowBindEntityTE    = "3"

	FlowAckModeAuto   = "1"
	FlowAckModeClient = "2"

	FlowStartStateStopped = "0"
	FlowStartStateStarted = "1"

	EndpointIDQueue         = "2"
	EndpointIDTopicEndpoint = "3"
	EndpointIDClientName    = "4"

	EndpointPermissionNone        = "n"
	EndpointPermissionReadOnly    = "r"
	EndpointPermissionConsume     = "c"
	EndpointPermissionModifyTopic = "m"
	EndpointPermissionDelete      = "d"

	EndpointAccessTypeExclusive    = "1"
	EndpointAccessTypeNonExclusive = "2"

	EndpointDiscardNotifySenderOn  = "1"
	EndpointDiscardNotifySenderOff = "2"
)

// parseProps parses a flat alternating key/value slice into a map. An odd
// element count is a caller contract violation.
func parseProps(props []string) (map[string]string, bool) {
	if len(props)%2 != 0 {
		return nil, false
	}
	m := make(map[string]string, len(props)/2)
	for i := 0; i+1 < len(props); i += 2 {
		m[props[i]] = props[i+1]
	}
	return m, true
}

func propInt(m map[string]string, key string, def int) int {
	v, ok := m[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func propBool(m map[string]string, key string, def bool) bool {
	v, ok := m[key]
	if !ok {
		return def
	}
	return v == PropTrue
}
