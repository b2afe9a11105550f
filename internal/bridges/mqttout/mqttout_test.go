package mqttout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/cuebridge/internal/module"
	"github.com/nerrad567/cuebridge/internal/trigger"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

type message struct {
	topic    string
	payload  string
	qos      byte
	retained bool
}

type fakePublisher struct {
	mu        sync.Mutex
	messages  []message
	err       error
	connected bool
}

func (p *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, message{topic, string(payload), qos, retained})
	return nil
}

func (p *fakePublisher) IsConnected() bool { return p.connected }

func fire(b *Bridge, raw ...string) error {
	spec := b.Triggers()[0]
	return b.Fire(context.Background(), trigger.Call{Tag: spec.Tag, Action: spec.Tag, Args: trigger.Coerce(spec.Args, raw)})
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestFire_Publishes(t *testing.T) {
	pub := &fakePublisher{connected: true}
	m, err := New("", map[string]any{"qos": 1, "retain": true, "prefix": "/stage/"}, module.Deps{Publisher: pub})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	b := m.(*Bridge)

	if err := fire(b, "lights/scene", "2"); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	want := message{"stage/lights/scene", "2", 1, true}
	if len(pub.messages) != 1 || pub.messages[0] != want {
		t.Errorf("messages = %+v, want %+v", pub.messages, want)
	}

	h := b.Status()
	if !h.Connected || h.Counters["published"] != 1 {
		t.Errorf("Status() = %+v", h)
	}
}

func TestFire_EmptyPayload(t *testing.T) {
	pub := &fakePublisher{}
	m, _ := New("", nil, module.Deps{Publisher: pub})

	if err := fire(m.(*Bridge), "cue/go"); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if pub.messages[0].payload != "" || pub.messages[0].qos != 0 {
		t.Errorf("message = %+v", pub.messages[0])
	}
}

func TestFire_Errors(t *testing.T) {
	pub := &fakePublisher{}
	m, _ := New("", nil, module.Deps{Publisher: pub})
	b := m.(*Bridge)

	tests := []struct {
		name    string
		raw     []string
		wantErr error
	}{
		{"no topic", nil, ErrMissingTopic},
		{"single level wildcard", []string{"a/+/b", "x"}, ErrWildcardTopic},
		{"multi level wildcard", []string{"a/#", "x"}, ErrWildcardTopic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := fire(b, tt.raw...); !errors.Is(err, tt.wantErr) {
				t.Errorf("Fire() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if len(pub.messages) != 0 {
		t.Errorf("published %d messages, want none", len(pub.messages))
	}
}

func TestFire_PublishFailure(t *testing.T) {
	brokerDown := errors.New("not connected")
	pub := &fakePublisher{err: brokerDown}
	m, _ := New("", nil, module.Deps{Publisher: pub})
	b := m.(*Bridge)

	if err := fire(b, "a/b", "1"); !errors.Is(err, brokerDown) {
		t.Errorf("Fire() error = %v, want wrapped publish error", err)
	}
	h := b.Status()
	if h.Connected || h.Counters["failed"] != 1 || h.Detail != "last error: not connected" {
		t.Errorf("Status() = %+v", h)
	}
}

func TestNew(t *testing.T) {
	if _, err := New("", nil, module.Deps{}); !errors.Is(err, ErrNoPublisher) {
		t.Errorf("New() without publisher error = %v, want ErrNoPublisher", err)
	}
	if _, err := New("", map[string]any{"qos": 3}, module.Deps{Publisher: &fakePublisher{}}); !errors.Is(err, module.ErrInvalidSettings) {
		t.Errorf("New() with qos 3 error = %v, want ErrInvalidSettings", err)
	}
}

func TestTriggers_NoLongForm(t *testing.T) {
	specs := (&Bridge{}).Triggers()
	if len(specs) != 1 || len(specs[0].Args) != 2 {
		t.Fatalf("Triggers() = %+v, want one trigger with two args", specs)
	}
}
