// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package solclient

import (
	"strconv"

	"github.com/absmach/solclient/internal/native"
)

// SessionBuilder assembles session configuration and callbacks. Setters are
// infallible and chainable; Build validates everything in one step: presence
// of the required fields, numeric ranges against the engine's documented
// limits, and string encoding (no embedded NUL bytes), then encodes the
// checked configuration into the engine's flat key/value property form and
// creates and connects the session.
type SessionBuilder struct {
	ctx *Context

	host     string
	vpn      string
	username string
	password string

	clientName             *string
	applicationDescription *string
	bufferSizeBytes        *int
	blockWriteTimeoutMs    *int
	connectTimeoutMs       *int
	subConfirmTimeoutMs    *int
	ignoreDupSubError      *bool
	tcpNoDelay             *bool
	socketSendBufSizeBytes *int
	socketRcvBufSizeBytes  *int
	keepAliveIntervalMs    *int
	keepAliveLimit         *int
	compressionLevel       *int
	connectRetries         *int
	reconnectRetries       *int
	reconnectRetryWaitMs   *int
	generateRcvTimestamps  *bool
	generateSendTimestamps *bool
	generateSenderID       *bool
	generateSequenceNumber *bool
	sslTrustStoreDir       *string
	sslValidateCertificate *bool

	onMessage func(*InboundMessage)
	onEvent   func(SessionEvent)
}

func newSessionBuilder(ctx *Context) *SessionBuilder {
	return &SessionBuilder{ctx: ctx}
}

// Host sets the broker host. Required.
func (b *SessionBuilder) Host(host string) *SessionBuilder {
	b.host = host
	return b
}

// VPN sets the message-vpn name. Required.
func (b *SessionBuilder) VPN(vpn string) *SessionBuilder {
	b.vpn = vpn
	return b
}

// Username sets the client username. Required.
func (b *SessionBuilder) Username(username string) *SessionBuilder {
	b.username = username
	return b
}

// Password sets the client password. Required.
func (b *SessionBuilder) Password(password string) *SessionBuilder {
	b.password = password
	return b
}

// ClientName sets the client name presented to the broker.
func (b *SessionBuilder) ClientName(name string) *SessionBuilder {
	b.clientName = &name
	return b
}

// ApplicationDescription sets the application description presented to the
// broker.
func (b *SessionBuilder) ApplicationDescription(desc string) *SessionBuilder {
	b.applicationDescription = &desc
	return b
}

// BufferSizeBytes sets the transport buffer size. Must be at least 1.
func (b *SessionBuilder) BufferSizeBytes(n int) *SessionBuilder {
	b.bufferSizeBytes = &n
	return b
}

// BlockWriteTimeoutMs sets the blocking-write timeout. Must be at least 1.
func (b *SessionBuilder) BlockWriteTimeoutMs(ms int) *SessionBuilder {
	b.blockWriteTimeoutMs = &ms
	return b
}

// ConnectTimeoutMs sets the connect timeout. Must be at least 1.
func (b *SessionBuilder) ConnectTimeoutMs(ms int) *SessionBuilder {
	b.connectTimeoutMs = &ms
	return b
}

// SubConfirmTimeoutMs sets the subscription-confirm timeout. Must be at
// least 1000.
func (b *SessionBuilder) SubConfirmTimeoutMs(ms int) *SessionBuilder {
	b.subConfirmTimeoutMs = &ms
	return b
}

// IgnoreDuplicateSubscriptionError makes duplicate subscriptions succeed.
func (b *SessionBuilder) IgnoreDuplicateSubscriptionError(ignore bool) *SessionBuilder {
	b.ignoreDupSubError = &ignore
	return b
}

// TCPNoDelay disables Nagle's algorithm on the transport.
func (b *SessionBuilder) TCPNoDelay(noDelay bool) *SessionBuilder {
	b.tcpNoDelay = &noDelay
	return b
}

// SocketSendBufferSizeBytes sets the socket send buffer. 0 uses the OS
// default; anything else must be at least 1024.
func (b *SessionBuilder) SocketSendBufferSizeBytes(n int) *SessionBuilder {
	b.socketSendBufSizeBytes = &n
	return b
}

// SocketRcvBufferSizeBytes sets the socket receive buffer. 0 uses the OS
// default; anything else must be at least 1024.
func (b *SessionBuilder) SocketRcvBufferSizeBytes(n int) *SessionBuilder {
	b.socketRcvBufSizeBytes = &n
	return b
}

// KeepAliveIntervalMs sets the keep-alive interval. 0 disables keep-alives;
// anything else must be at least 50.
func (b *SessionBuilder) KeepAliveIntervalMs(ms int) *SessionBuilder {
	b.keepAliveIntervalMs = &ms
	return b
}

// KeepAliveLimit sets how many consecutive keep-alives may go unanswered
// before the connection is considered down. Must be at least 3.
func (b *SessionBuilder) KeepAliveLimit(n int) *SessionBuilder {
	b.keepAliveLimit = &n
	return b
}

// CompressionLevel sets the payload compression level, 0 (off) through 9.
func (b *SessionBuilder) CompressionLevel(level int) *SessionBuilder {
	b.compressionLevel = &level
	return b
}

// ConnectRetries sets how many times the initial connect is retried.
// -1 retries forever.
func (b *SessionBuilder) ConnectRetries(n int) *SessionBuilder {
	b.connectRetries = &n
	return b
}

// ReconnectRetries sets how many times a lost connection is retried.
// -1 retries forever.
func (b *SessionBuilder) ReconnectRetries(n int) *SessionBuilder {
	b.reconnectRetries = &n
	return b
}

// ReconnectRetryWaitMs sets the wait between reconnect attempts.
func (b *SessionBuilder) ReconnectRetryWaitMs(ms int) *SessionBuilder {
	b.reconnectRetryWaitMs = &ms
	return b
}

// GenerateRcvTimestamps has the engine stamp received messages.
func (b *SessionBuilder) GenerateRcvTimestamps(generate bool) *SessionBuilder {
	b.generateRcvTimestamps = &generate
	return b
}

// GenerateSendTimestamps has the engine stamp sent messages that carry no
// sender timestamp.
func (b *SessionBuilder) GenerateSendTimestamps(generate bool) *SessionBuilder {
	b.generateSendTimestamps = &generate
	return b
}

// GenerateSenderID has the engine attach the sender ID to sent messages.
func (b *SessionBuilder) GenerateSenderID(generate bool) *SessionBuilder {
	b.generateSenderID = &generate
	return b
}

// GenerateSequenceNumber has the engine attach sequence numbers to sent
// messages that carry none.
func (b *SessionBuilder) GenerateSequenceNumber(generate bool) *SessionBuilder {
	b.generateSequenceNumber = &generate
	return b
}

// SSLTrustStoreDir sets the directory holding trusted certificates.
func (b *SessionBuilder) SSLTrustStoreDir(dir string) *SessionBuilder {
	b.sslTrustStoreDir = &dir
	return b
}

// SSLValidateCertificate controls broker certificate validation.
func (b *SessionBuilder) SSLValidateCertificate(validate bool) *SessionBuilder {
	b.sslValidateCertificate = &validate
	return b
}

// OnMessage sets the closure invoked for every received message. The
// closure runs on the context dispatch thread; it must not block
// indefinitely or it stalls all further delivery on the session.
func (b *SessionBuilder) OnMessage(fn func(*InboundMessage)) *SessionBuilder {
	b.onMessage = fn
	return b
}

// OnEvent sets the closure invoked for session events.
func (b *SessionBuilder) OnEvent(fn func(SessionEvent)) *SessionBuilder {
	b.onEvent = fn
	return b
}

// checkedSessionProps is the validated, engine-encodable configuration.
// Every value is already rendered in the engine's string form.
type checkedSessionProps struct {
	pairs []string
}

func (p *checkedSessionProps) add(key, value string) {
	p.pairs = append(p.pairs, key, value)
}

// toRaw returns the flat ordered key/value array handed to the engine. The
// backing storage is the checked record itself; callers pass the slice
// straight into the engine call and never retain it.
func (p *checkedSessionProps) toRaw() []string {
	return p.pairs
}

// check validates the unchecked fields and produces the encoded form.
func (b *SessionBuilder) check() (*checkedSessionProps, error) {
	required := []struct {
		field string
		value string
	}{
		{"host_name", b.host},
		{"vpn_name", b.vpn},
		{"username", b.username},
		{"password", b.password},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, &MissingRequiredArgsError{Field: r.field}
		}
		if containsNUL(r.value) {
			return nil, &InvalidArgsError{Field: r.field}
		}
	}
	optionalStrings := map[string]*string{
		"client_name":             b.clientName,
		"application_description": b.applicationDescription,
		"ssl_trust_store_dir":     b.sslTrustStoreDir,
	}
	for field, v := range optionalStrings {
		if v != nil && containsNUL(*v) {
			return nil, &InvalidArgsError{Field: field}
		}
	}

	ranges := []struct {
		field   string
		value   *int
		allowed string
		valid   func(int) bool
	}{
		{"buffer_size_bytes", b.bufferSizeBytes, ">= 1", func(v int) bool { return v >= 1 }},
		{"block_write_timeout_ms", b.blockWriteTimeoutMs, ">= 1", func(v int) bool { return v >= 1 }},
		{"connect_timeout_ms", b.connectTimeoutMs, ">= 1", func(v int) bool { return v >= 1 }},
		{"subconfirm_timeout_ms", b.subConfirmTimeoutMs, ">= 1000", func(v int) bool { return v >= 1000 }},
		{"socket_send_buffer_size_bytes", b.socketSendBufSizeBytes, "0 or >= 1024", func(v int) bool { return v == 0 || v >= 1024 }},
		{"socket_rcv_buffer_size_bytes", b.socketRcvBufSizeBytes, "0 or >= 1024", func(v int) bool { return v == 0 || v >= 1024 }},
		{"keep_alive_interval_ms", b.keepAliveIntervalMs, "0 or >= 50", func(v int) bool { return v == 0 || v >= 50 }},
		{"keep_alive_limit", b.keepAliveLimit, "3", func(v int) bool { return v >= 3 }},
		{"compression_level", b.compressionLevel, "0 to 9", func(v int) bool { return v >= 0 && v <= 9 }},
		{"connect_retries", b.connectRetries, ">= -1", func(v int) bool { return v >= -1 }},
		{"reconnect_retries", b.reconnectRetries, ">= -1", func(v int) bool { return v >= -1 }},
	}
	for _, r := range ranges {
		if r.value != nil && !r.valid(*r.value) {
			return nil, &InvalidRangeError{
				Field:   r.field,
				Allowed: r.allowed,
				Actual:  strconv.Itoa(*r.value),
			}
		}
	}

	p := &checkedSessionProps{}
	p.add(native.SessionPropHost, b.host)
	p.add(native.SessionPropVPNName, b.vpn)
	p.add(native.SessionPropUsername, b.username)
	p.add(native.SessionPropPassword, b.password)
	// Blocking-mode connect, send, and subscribe are the supported
	// configuration.
	p.add(native.SessionPropConnectBlocking, native.PropTrue)
	p.add(native.SessionPropSendBlocking, native.PropTrue)
	p.add(native.SessionPropSubscribeBlocking, native.PropTrue)

	addString := func(key string, v *string) {
		if v != nil {
			p.add(key, *v)
		}
	}
	addInt := func(key string, v *int) {
		if v != nil {
			p.add(key, strconv.Itoa(*v))
		}
	}
	addBool := func(key string, v *bool) {
		if v == nil {
			return
		}
		if *v {
			p.add(key, native.PropTrue)
		} else {
			p.add(key, native.PropFalse)
		}
	}

	addString(native.SessionPropClientName, b.clientName)
	addString(native.SessionPropApplicationDesc, b.applicationDescription)
	addInt(native.SessionPropBufferSize, b.bufferSizeBytes)
	addInt(native.SessionPropBlockWriteTimeout, b.blockWriteTimeoutMs)
	addInt(native.SessionPropConnectTimeout, b.connectTimeoutMs)
	addInt(native.SessionPropSubConfirmTimeout, b.subConfirmTimeoutMs)
	addBool(native.SessionPropIgnoreDupSubError, b.ignoreDupSubError)
	addBool(native.SessionPropTCPNoDelay, b.tcpNoDelay)
	addInt(native.SessionPropSocketSendBufSize, b.socketSendBufSizeBytes)
	addInt(native.SessionPropSocketRcvBufSize, b.socketRcvBufSizeBytes)
	addInt(native.SessionPropKeepAliveInterval, b.keepAliveIntervalMs)
	addInt(native.SessionPropKeepAliveLimit, b.keepAliveLimit)
	addInt(native.SessionPropCompressionLevel, b.compressionLevel)
	addInt(native.SessionPropConnectRetries, b.connectRetries)
	addInt(native.SessionPropReconnectRetries, b.reconnectRetries)
	addInt(native.SessionPropReconnectRetryWait, b.reconnectRetryWaitMs)
	addBool(native.SessionPropGenerateRcvTimestamp, b.generateRcvTimestamps)
	addBool(native.SessionPropGenerateSendTimestamp, b.generateSendTimestamps)
	addBool(native.SessionPropGenerateSenderID, b.generateSenderID)
	addBool(native.SessionPropGenerateSequenceNum, b.generateSequenceNumber)
	addString(native.SessionPropSSLTrustStoreDir, b.sslTrustStoreDir)
	addBool(native.SessionPropSSLValidateCert, b.sslValidateCertificate)
	return p, nil
}

// Build validates the configuration, creates the session, and connects it.
// Connection is synchronous: the session is usable when Build returns.
func (b *SessionBuilder) Build() (*Session, error) {
	if b.ctx.closed.Load() {
		return nil, ErrContextClosed
	}
	checked, err := b.check()
	if err != nil {
		return nil, err
	}

	cbs := &sessionCallbacks{
		onMessage: b.onMessage,
		onEvent:   b.onEvent,
		log:       b.ctx.log,
	}
	cbh := registerCallback(cbs)
	funcs := native.SessionFuncInfo{
		MsgCB:     sessionMessageShim,
		MsgUser:   uintptr(cbh),
		EventCB:   sessionEventShim,
		EventUser: uintptr(cbh),
	}

	h, rc := native.SessionCreate(checked.toRaw(), b.ctx.raw.h, funcs)
	if !rc.IsOk() {
		freeCallback(cbh)
		return nil, &InitializationError{lastDiagnostics(rc)}
	}
	if rc := native.SessionConnect(h); !rc.IsOk() {
		d := lastDiagnostics(rc)
		if rc := native.SessionDestroy(h); !rc.IsOk() {
			b.ctx.log.Warn("session destroy after failed connect failed", "code", rc.String())
		}
		freeCallback(cbh)
		return nil, &ConnectionError{d}
	}

	b.ctx.raw.retain()
	return &Session{
		h:   h,
		ctx: b.ctx.raw,
		cbs: cbs,
		cbh: cbh,
		log: b.ctx.log,
	}, nil
}
