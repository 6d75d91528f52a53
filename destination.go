// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package solclient

import "github.com/absmach/solclient/internal/native"

// DestinationType discriminates the kinds of delivery target the engine
// knows about.
type DestinationType int32

// Destination types.
const (
	DestinationTopic          = DestinationType(native.DestTopic)
	DestinationQueue          = DestinationType(native.DestQueue)
	DestinationTopicTemporary = DestinationType(native.DestTopicTemp)
	DestinationQueueTemporary = DestinationType(native.DestQueueTemp)
)

// String returns the symbolic name of the destination type.
func (t DestinationType) String() string {
	switch t {
	case DestinationTopic:
		return "Topic"
	case DestinationQueue:
		return "Queue"
	case DestinationTopicTemporary:
		return "TopicTemporary"
	case DestinationQueueTemporary:
		return "QueueTemporary"
	default:
		return "Unknown"
	}
}

// Destination is a typed delivery target: a topic or queue, durable or
// temporary, paired with its name.
type Destination struct {
	Type DestinationType
	Name string
}

// TopicDestination returns a topic destination.
func TopicDestination(name string) Destination {
	return Destination{Type: DestinationTopic, Name: name}
}

// QueueDestination returns a queue destination.
func QueueDestination(name string) Destination {
	return Destination{Type: DestinationQueue, Name: name}
}

func destinationFromRaw(destType int32, name string) (Destination, bool) {
	switch destType {
	case native.DestTopic, native.DestQueue, native.DestTopicTemp, native.DestQueueTemp:
		return Destination{Type: DestinationType(destType), Name: name}, true
	default:
		return Destination{}, false
	}
}
