// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package solclient

import (
	"errors"
	"fmt"
)

// Binding errors.
var (
	// Lifecycle errors.
	ErrContextClosed = errors.New("context has been closed")
	ErrSessionClosed = errors.New("session has been closed")
	ErrFlowClosed    = errors.New("flow has been closed")
	ErrMessageFreed  = errors.New("message has been freed")

	// Acknowledgement errors.
	ErrFlowFreedBeforeAck = errors.New("flow was freed before the message could be acknowledged")
	ErrMessageNotFound    = errors.New("message not found")
)

// InitializationError reports that the engine, a context, or a session
// failed to stand up.
type InitializationError struct {
	Diagnostics
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialization failed: %s", e.Diagnostics)
}

// ConnectionError reports that a session was created but its transport
// connect failed.
type ConnectionError struct {
	Diagnostics
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("session failed to connect: %s", e.Diagnostics)
}

// DisconnectError reports a failed session disconnect.
type DisconnectError struct {
	Diagnostics
}

func (e *DisconnectError) Error() string {
	return fmt.Sprintf("session failed to disconnect: %s", e.Diagnostics)
}

// SubscriptionError reports a failed subscribe on a topic.
type SubscriptionError struct {
	Topic string
	Diagnostics
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("session failed to subscribe to %q: %s", e.Topic, e.Diagnostics)
}

// UnsubscriptionError reports a failed unsubscribe on a topic.
type UnsubscriptionError struct {
	Topic string
	Diagnostics
}

func (e *UnsubscriptionError) Error() string {
	return fmt.Sprintf("session failed to unsubscribe from %q: %s", e.Topic, e.Diagnostics)
}

// PublishError reports a failed publish.
type PublishError struct {
	Diagnostics
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("could not publish message: %s", e.Diagnostics)
}

// RequestError reports a failed request-reply exchange. Timeout is set when
// the reply did not arrive within the caller's window.
type RequestError struct {
	Timeout bool
	Diagnostics
}

func (e *RequestError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("request timed out: %s", e.Diagnostics)
	}
	return fmt.Sprintf("request failed: %s", e.Diagnostics)
}

// EndpointProvisionError reports a failed endpoint provision.
type EndpointProvisionError struct {
	Name string
	Diagnostics
}

func (e *EndpointProvisionError) Error() string {
	return fmt.Sprintf("could not provision endpoint %q: %s", e.Name, e.Diagnostics)
}

// EndpointDeprovisionError reports a failed endpoint deprovision.
type EndpointDeprovisionError struct {
	Name string
	Diagnostics
}

func (e *EndpointDeprovisionError) Error() string {
	return fmt.Sprintf("could not deprovision endpoint %q: %s", e.Name, e.Diagnostics)
}

// CacheRequestError reports a failed cache session operation.
type CacheRequestError struct {
	Diagnostics
}

func (e *CacheRequestError) Error() string {
	return fmt.Sprintf("cache request failed: %s", e.Diagnostics)
}

// AckError reports a failed acknowledgement that is neither
// ErrFlowFreedBeforeAck nor ErrMessageNotFound.
type AckError struct {
	Diagnostics
}

func (e *AckError) Error() string {
	return fmt.Sprintf("could not acknowledge message: %s", e.Diagnostics)
}

// FlowOperationError reports a failed flow start or stop.
type FlowOperationError struct {
	Op string
	Diagnostics
}

func (e *FlowOperationError) Error() string {
	return fmt.Sprintf("flow %s failed: %s", e.Op, e.Diagnostics)
}

// MissingRequiredArgsError reports a builder field that must be set before
// Build.
type MissingRequiredArgsError struct {
	Field string
}

func (e *MissingRequiredArgsError) Error() string {
	return fmt.Sprintf("missing required argument: %s", e.Field)
}

// InvalidRangeError reports a builder field outside its documented range.
type InvalidRangeError struct {
	Field   string
	Allowed string
	Actual  string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("argument %s out of range: allowed %s, got %s", e.Field, e.Allowed, e.Actual)
}

// InvalidArgsError reports a string-like builder field carrying an embedded
// NUL byte, which the engine's string encoding forbids.
type InvalidArgsError struct {
	Field string
}

func (e *InvalidArgsError) Error() string {
	return fmt.Sprintf("argument %s contains an embedded NUL byte", e.Field)
}

// FieldError reports a message field read that failed at the engine level.
type FieldError struct {
	Field string
	Code  ReturnCode
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("failed to get field %s: %s", e.Field, e.Code)
}

// FieldConversionError reports a message field whose raw value violates the
// expected representation.
type FieldConversionError struct {
	Field string
}

func (e *FieldConversionError) Error() string {
	return fmt.Sprintf("failed to convert field %s", e.Field)
}
