package domain

import "strings"

// Topic is a coarse routing category derived from an event payload.
type Topic uint8

const (
	TopicSystem Topic = iota
	TopicTextInput
	TopicKeyInput
	TopicKeyOutput
	TopicStats
	TopicMonitoring
	TopicTelemetry
)

// AllTopics lists every topic in declaration order.
var AllTopics = []Topic{
	TopicSystem,
	TopicTextInput,
	TopicKeyInput,
	TopicKeyOutput,
	TopicStats,
	TopicMonitoring,
	TopicTelemetry,
}

func (t Topic) String() string {
	switch t {
	case TopicSystem:
		return "System"
	case TopicTextInput:
		return "TextInput"
	case TopicKeyInput:
		return "KeyInput"
	case TopicKeyOutput:
		return "KeyOutput"
	case TopicStats:
		return "Stats"
	case TopicMonitoring:
		return "Monitoring"
	case TopicTelemetry:
		return "Telemetry"
	default:
		return "Unknown"
	}
}

// TopicOf maps a payload to its routing topic. It is pure and total over the
// sealed DomainEvent set.
func TopicOf(e DomainEvent) Topic {
	return e.Topic()
}

// TopicSet is a fixed set of topics stored as a bit mask.
type TopicSet uint16

// NewTopicSet builds a set from topics.
func NewTopicSet(topics ...Topic) TopicSet {
	var s TopicSet
	for _, t := range topics {
		s |= 1 << t
	}
	return s
}

// Has reports whether t is in the set.
func (s TopicSet) Has(t Topic) bool {
	return s&(1<<t) != 0
}

// Topics returns the members in declaration order.
func (s TopicSet) Topics() []Topic {
	var out []Topic
	for _, t := range AllTopics {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s TopicSet) String() string {
	names := make([]string, 0, len(AllTopics))
	for _, t := range s.Topics() {
		names = append(names, t.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}
