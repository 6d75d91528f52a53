// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package solclient

import (
	"strconv"

	"github.com/absmach/solclient/internal/native"
)

// EndpointKind identifies the kind of broker endpoint being described.
type EndpointKind int

// Endpoint kinds.
const (
	EndpointQueue EndpointKind = iota + 1
	EndpointTopicEndpoint
	EndpointClientName
)

// EndpointPermission is the access level granted to other clients on a
// provisioned endpoint.
type EndpointPermission int

// Endpoint permissions, each including all lower levels.
const (
	PermissionNone EndpointPermission = iota + 1
	PermissionReadOnly
	PermissionConsume
	PermissionModifyTopic
	PermissionDelete
)

// EndpointAccessType selects exclusive or round-robin consumption.
type EndpointAccessType int

// Endpoint access types.
const (
	AccessTypeExclusive EndpointAccessType = iota + 1
	AccessTypeNonExclusive
)

// EndpointDiscardBehavior controls whether publishers are notified when the
// endpoint discards a message.
type EndpointDiscardBehavior int

// Discard behaviors.
const (
	DiscardNotifySenderOn EndpointDiscardBehavior = iota + 1
	DiscardNotifySenderOff
)

// EndpointProps is a validated, immutable endpoint description ready to pass
// to Session.EndpointProvision or EndpointDeprovision. Build one with
// EndpointPropsBuilder.
type EndpointProps struct {
	name  string
	pairs []string
}

func (p EndpointProps) toRaw() []string {
	return p.pairs
}

// EndpointPropsBuilder assembles an endpoint description. Setters are
// infallible and chainable; Build validates and encodes.
type EndpointPropsBuilder struct {
	kind EndpointKind
	name string

	durable         *bool
	permission      *EndpointPermission
	accessType      *EndpointAccessType
	quotaMB         *int
	maxMsgSize      *int
	respectsTTL     *bool
	discardBehavior *EndpointDiscardBehavior
	maxRedelivery   *int
}

// NewEndpointPropsBuilder returns an empty builder.
func NewEndpointPropsBuilder() *EndpointPropsBuilder {
	return &EndpointPropsBuilder{}
}

// Queue describes a queue endpoint with the given name.
func (b *EndpointPropsBuilder) Queue(name string) *EndpointPropsBuilder {
	b.kind = EndpointQueue
	b.name = name
	return b
}

// TopicEndpoint describes a topic endpoint with the given name.
func (b *EndpointPropsBuilder) TopicEndpoint(name string) *EndpointPropsBuilder {
	b.kind = EndpointTopicEndpoint
	b.name = name
	return b
}

// ClientName describes a client-name endpoint for point-to-point delivery.
func (b *EndpointPropsBuilder) ClientName(name string) *EndpointPropsBuilder {
	b.kind = EndpointClientName
	b.name = name
	return b
}

// Durable selects a durable (default) or temporary endpoint.
func (b *EndpointPropsBuilder) Durable(durable bool) *EndpointPropsBuilder {
	b.durable = &durable
	return b
}

// Permission sets the access level granted to other clients.
func (b *EndpointPropsBuilder) Permission(p EndpointPermission) *EndpointPropsBuilder {
	b.permission = &p
	return b
}

// AccessType selects exclusive or non-exclusive consumption.
func (b *EndpointPropsBuilder) AccessType(t EndpointAccessType) *EndpointPropsBuilder {
	b.accessType = &t
	return b
}

// QuotaMB sets the endpoint spool quota in megabytes.
func (b *EndpointPropsBuilder) QuotaMB(mb int) *EndpointPropsBuilder {
	b.quotaMB = &mb
	return b
}

// MaxMessageSize sets the largest message the endpoint accepts, in bytes.
func (b *EndpointPropsBuilder) MaxMessageSize(bytes int) *EndpointPropsBuilder {
	b.maxMsgSize = &bytes
	return b
}

// RespectsMessageTTL makes the endpoint honor per-message time to live.
func (b *EndpointPropsBuilder) RespectsMessageTTL(respects bool) *EndpointPropsBuilder {
	b.respectsTTL = &respects
	return b
}

// DiscardBehavior sets whether senders are notified of discards.
func (b *EndpointPropsBuilder) DiscardBehavior(d EndpointDiscardBehavior) *EndpointPropsBuilder {
	b.discardBehavior = &d
	return b
}

// MaxMessageRedelivery caps redelivery attempts before a message is
// discarded; 0 means unlimited.
func (b *EndpointPropsBuilder) MaxMessageRedelivery(n int) *EndpointPropsBuilder {
	b.maxRedelivery = &n
	return b
}

// Build validates the description and returns the encoded properties.
func (b *EndpointPropsBuilder) Build() (EndpointProps, error) {
	if b.kind == 0 {
		return EndpointProps{}, &MissingRequiredArgsError{Field: "id"}
	}
	if b.name == "" {
		return EndpointProps{}, &MissingRequiredArgsError{Field: "name"}
	}
	if containsNUL(b.name) {
		return EndpointProps{}, &InvalidArgsError{Field: "name"}
	}
	for field, v := range map[string]*int{
		"quota_mb":               b.quotaMB,
		"max_message_size":       b.maxMsgSize,
		"max_message_redelivery": b.maxRedelivery,
	} {
		if v != nil && *v < 0 {
			return EndpointProps{}, &InvalidRangeError{
				Field:   field,
				Allowed: ">= 0",
				Actual:  strconv.Itoa(*v),
			}
		}
	}

	pairs := make([]string, 0, 8)
	add := func(key, value string) {
		pairs = append(pairs, key, value)
	}
	switch b.kind {
	case EndpointQueue:
		add(native.EndpointPropID, native.EndpointIDQueue)
	case EndpointTopicEndpoint:
		add(native.EndpointPropID, native.EndpointIDTopicEndpoint)
	case EndpointClientName:
		add(native.EndpointPropID, native.EndpointIDClientName)
	}
	add(native.EndpointPropName, b.name)
	if b.durable != nil && !*b.durable {
		add(native.EndpointPropDurable, native.PropFalse)
	}
	if b.permission != nil {
		var perm string
		switch *b.permission {
		case PermissionNone:
			perm = native.EndpointPermissionNone
		case PermissionReadOnly:
			perm = native.EndpointPermissionReadOnly
		case PermissionConsume:
			perm = native.EndpointPermissionConsume
		case PermissionModifyTopic:
			perm = native.EndpointPermissionModifyTopic
		case PermissionDelete:
			perm = native.EndpointPermissionDelete
		default:
			return EndpointProps{}, &InvalidArgsError{Field: "permission"}
		}
		add(native.EndpointPropPermission, perm)
	}
	if b.accessType != nil {
		switch *b.accessType {
		case AccessTypeExclusive:
			add(native.EndpointPropAccessType, native.EndpointAccessTypeExclusive)
		case AccessTypeNonExclusive:
			add(native.EndpointPropAccessType, native.EndpointAccessTypeNonExclusive)
		default:
			return EndpointProps{}, &InvalidArgsError{Field: "access_type"}
		}
	}
	if b.quotaMB != nil {
		add(native.EndpointPropQuotaMB, strconv.Itoa(*b.quotaMB))
	}
	if b.maxMsgSize != nil {
		add(native.EndpointPropMaxMsgSize, strconv.Itoa(*b.maxMsgSize))
	}
	if b.respectsTTL != nil {
		if *b.respectsTTL {
			add(native.EndpointPropRespectsTTL, native.PropTrue)
		} else {
			add(native.EndpointPropRespectsTTL, native.PropFalse)
		}
	}
	if b.discardBehavior != nil {
		switch *b.discardBehavior {
		case DiscardNotifySenderOn:
			add(native.EndpointPropDiscardBehavior, native.EndpointDiscardNotifySenderOn)
		case DiscardNotifySenderOff:
			add(native.EndpointPropDiscardBehavior, native.EndpointDiscardNotifySenderOff)
		default:
			return EndpointProps{}, &InvalidArgsError{Field: "discard_behavior"}
		}
	}
	if b.maxRedelivery != nil {
		add(native.EndpointPropMaxRedelivery, strconv.Itoa(*b.maxRedelivery))
	}
	return EndpointProps{name: b.name, pairs: pairs}, nil
}
