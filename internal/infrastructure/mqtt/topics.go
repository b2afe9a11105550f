package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "cuebridge"

// Host topic kinds.
const (
	KindAnnotation = "annotation"
	KindEvent      = "event"
)

// Topics builds cuebridge MQTT topics under a configurable prefix.
//
//	topics := mqtt.NewTopics("cuebridge")
//	topics.HostAnnotation("stage-left")
//	// Returns: "cuebridge/host/stage-left/annotation"
type Topics struct {
	prefix string
}

// NewTopics returns a builder rooted at prefix. Surrounding slashes are
// trimmed and an empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the root segment.
func (t Topics) Prefix() string {
	return t.root()
}

func (t Topics) root() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// SystemStatus returns the retained hub status topic carrying online,
// offline and Last Will payloads.
//
// Example: cuebridge/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.root())
}

// HostAnnotation returns the topic a presentation host publishes slide
// annotations on.
//
// Example: cuebridge/host/stage-left/annotation
func (t Topics) HostAnnotation(source string) string {
	return fmt.Sprintf("%s/host/%s/%s", t.root(), source, KindAnnotation)
}

// HostEvent returns the topic for a named lifecycle event from a host.
//
// Example: cuebridge/host/stage-left/event/presentationstart
func (t Topics) HostEvent(source, name string) string {
	return fmt.Sprintf("%s/host/%s/%s/%s", t.root(), source, KindEvent, name)
}

// ModuleStatus returns the retained health topic for a module instance.
//
// Example: cuebridge/module/companion/stage/status
func (t Topics) ModuleStatus(moduleType, name string) string {
	return fmt.Sprintf("%s/module/%s/%s/status", t.root(), moduleType, name)
}

// AllHostAnnotations matches annotations from every host.
//
// Pattern: cuebridge/host/+/annotation
func (t Topics) AllHostAnnotations() string {
	return fmt.Sprintf("%s/host/+/%s", t.root(), KindAnnotation)
}

// AllHostEvents matches lifecycle events from every host.
//
// Pattern: cuebridge/host/+/event/+
func (t Topics) AllHostEvents() string {
	return fmt.Sprintf("%s/host/+/%s/+", t.root(), KindEvent)
}

// HostTopic is a decoded host topic.
type HostTopic struct {
	Source string
	Kind   string
	// Name is the event name, empty for annotations.
	Name string
}

// ParseHost decodes a topic produced by HostAnnotation or HostEvent.
func (t Topics) ParseHost(topic string) (HostTopic, bool) {
	rest, ok := strings.CutPrefix(topic, t.root()+"/host/")
	if !ok {
		return HostTopic{}, false
	}
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 2 && parts[1] == KindAnnotation && parts[0] != "":
		return HostTopic{Source: parts[0], Kind: KindAnnotation}, true
	case len(parts) == 3 && parts[1] == KindEvent && parts[0] != "" && parts[2] != "":
		return HostTopic{Source: parts[0], Kind: KindEvent, Name: parts[2]}, true
	}
	return HostTopic{}, false
}
