package mqtt

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/cuebridge/internal/infrastructure/config"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Info(string, ...any) {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "cuebridge-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		TopicPrefix: "cuebridge",
	}
}

// ─── Options ────────────────────────────────────────────────────────────────

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "show"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "cuebridge-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "show" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("want auto-reconnect with a clean session")
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}
	if opts.TLSConfig != nil {
		t.Error("TLSConfig set without tls enabled")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS 1.2 minimum not configured")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := pahomqtt.NewClientOptions()
	configureLWT(opts, NewTopics("show"), "hub-1")

	if !opts.WillEnabled || !opts.WillRetained {
		t.Error("will must be enabled and retained")
	}
	if opts.WillTopic != "show/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if !strings.Contains(string(opts.WillPayload), `"reason":"unexpected_disconnect"`) {
		t.Errorf("WillPayload = %s", opts.WillPayload)
	}
}

// ─── Validation without a broker ────────────────────────────────────────────

func TestClient_RejectsWhileDisconnected(t *testing.T) {
	c := newClient(testConfig())
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"publish empty topic", func() error { return c.Publish("", nil, 0, false) }, ErrInvalidTopic},
		{"publish bad qos", func() error { return c.Publish("a", nil, 3, false) }, ErrInvalidQoS},
		{"publish oversize", func() error { return c.Publish("a", make([]byte, maxPayloadSize+1), 0, false) }, ErrPublishFailed},
		{"publish disconnected", func() error { return c.Publish("a", []byte("x"), 1, false) }, ErrNotConnected},
		{"subscribe empty topic", func() error { return c.Subscribe("", 0, noop) }, ErrInvalidTopic},
		{"subscribe bad qos", func() error { return c.Subscribe("a", 9, noop) }, ErrInvalidQoS},
		{"subscribe nil handler", func() error { return c.Subscribe("a", 0, nil) }, ErrSubscribeFailed},
		{"subscribe disconnected", func() error { return c.Subscribe("a", 0, noop) }, ErrNotConnected},
		{"unsubscribe empty", func() error { return c.Unsubscribe("") }, ErrInvalidTopic},
		{"unsubscribe disconnected", func() error { return c.Unsubscribe("a") }, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after failed subscribes", c.SubscriptionCount())
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true for an unconnected client")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client = %v", err)
	}
}

func TestClient_DeliverRecoversPanics(t *testing.T) {
	c := newClient(testConfig())
	logger := &recordingLogger{}
	c.SetLogger(logger)

	c.deliver(func(string, []byte) error { panic("boom") }, "t", nil)
	c.deliver(func(string, []byte) error { return errors.New("bad payload") }, "t", nil)

	var got []byte
	c.deliver(func(_ string, p []byte) error { got = p; return nil }, "t", []byte("ok"))

	if len(logger.errors) != 1 || len(logger.warns) != 1 {
		t.Errorf("errors = %v, warns = %v; want one each", logger.errors, logger.warns)
	}
	if string(got) != "ok" {
		t.Errorf("payload = %q", got)
	}
}

func TestClient_DisconnectCallback(t *testing.T) {
	c := newClient(testConfig())
	var gotErr error
	c.SetOnDisconnect(func(err error) { gotErr = err })

	c.handleDisconnect(errors.New("link down"))

	if gotErr == nil || gotErr.Error() != "link down" {
		t.Errorf("callback error = %v", gotErr)
	}
}

// ─── Topics ─────────────────────────────────────────────────────────────────

func TestTopicBuilders(t *testing.T) {
	topics := NewTopics("cuebridge")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"SystemStatus", topics.SystemStatus(), "cuebridge/system/status"},
		{"HostAnnotation", topics.HostAnnotation("stage"), "cuebridge/host/stage/annotation"},
		{"HostEvent", topics.HostEvent("stage", "presentationstart"), "cuebridge/host/stage/event/presentationstart"},
		{"ModuleStatus", topics.ModuleStatus("companion", "foh"), "cuebridge/module/companion/foh/status"},
		{"AllHostAnnotations", topics.AllHostAnnotations(), "cuebridge/host/+/annotation"},
		{"AllHostEvents", topics.AllHostEvents(), "cuebridge/host/+/event/+"},
		{"trimmed prefix", NewTopics("/show/a/").SystemStatus(), "show/a/system/status"},
		{"empty prefix", NewTopics("").SystemStatus(), "cuebridge/system/status"},
		{"zero value", Topics{}.SystemStatus(), "cuebridge/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestTopics_ParseHost(t *testing.T) {
	topics := NewTopics("cuebridge")

	tests := []struct {
		topic  string
		want   HostTopic
		wantOK bool
	}{
		{"cuebridge/host/stage/annotation", HostTopic{Source: "stage", Kind: KindAnnotation}, true},
		{"cuebridge/host/stage/event/slideupdate", HostTopic{Source: "stage", Kind: KindEvent, Name: "slideupdate"}, true},
		{"cuebridge/host//annotation", HostTopic{}, false},
		{"cuebridge/host/stage/event/", HostTopic{}, false},
		{"cuebridge/host/stage/other", HostTopic{}, false},
		{"other/host/stage/annotation", HostTopic{}, false},
		{"cuebridge/host/stage/event/a/b", HostTopic{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, ok := topics.ParseHost(tt.topic)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseHost(%q) = %+v, %v; want %+v, %v", tt.topic, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
