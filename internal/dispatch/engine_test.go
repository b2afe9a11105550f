package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/cuebridge/internal/annotation"
	"github.com/nerrad567/cuebridge/internal/module"
	"github.com/nerrad567/cuebridge/internal/trigger"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

type mockGate struct {
	mu     sync.Mutex
	begins int
	ends   int
}

func (g *mockGate) BeginDispatch() func() {
	g.mu.Lock()
	g.begins++
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		g.ends++
		g.mu.Unlock()
	}
}

type mockHub struct {
	mu     sync.Mutex
	events []ProcessedEvent
}

func (h *mockHub) Broadcast(channel string, payload any) {
	if channel != ChannelProcessed {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, payload.(ProcessedEvent))
}

type mockRecorder struct {
	annotations int
	dispatched  map[string]bool
}

func (r *mockRecorder) AnnotationProcessed(int, bool) { r.annotations++ }

func (r *mockRecorder) InvocationDispatched(tag string, _ annotation.Form, matched bool) {
	if r.dispatched == nil {
		r.dispatched = make(map[string]bool)
	}
	r.dispatched[tag] = matched
}

// callLog records global handler invocations in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) handler(label string) trigger.Handler {
	return func(_ context.Context, c trigger.Call) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.calls = append(l.calls, label)
		return nil
	}
}

func (l *callLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// bridge is a minimal module.Module recording its calls.
type bridge struct {
	name  string
	specs []trigger.Spec
	log   *callLog
	fail  bool
}

func (b *bridge) Triggers() []trigger.Spec { return b.specs }
func (b *bridge) Close() error             { return nil }

func (b *bridge) Fire(_ context.Context, c trigger.Call) error {
	b.log.mu.Lock()
	b.log.calls = append(b.log.calls, b.name+":"+c.Tag)
	b.log.mu.Unlock()
	if b.fail {
		panic("bridge exploded")
	}
	return nil
}

func bridgeFactory(typ string, multi bool, log *callLog, specs ...trigger.Spec) module.Factory {
	return module.Factory{
		Type:  typ,
		Multi: multi,
		New: func(name string, settings map[string]any, _ module.Deps) (module.Module, error) {
			_, fail := settings["fail"]
			return &bridge{name: name, specs: specs, log: log, fail: fail}, nil
		},
	}
}

// newStack wires a trigger registry, module registry and engine.
func newStack(t *testing.T, factories ...module.Factory) (*Engine, *module.Registry, *trigger.Registry) {
	t.Helper()
	triggers := trigger.NewRegistry()
	modules := module.NewRegistry(triggers, module.Deps{})
	for _, f := range factories {
		if err := modules.RegisterFactory(f); err != nil {
			t.Fatalf("RegisterFactory(%s) error = %v", f.Type, err)
		}
	}
	return NewEngine(triggers, modules, nil), modules, triggers
}

var numArg = []trigger.ArgSpec{{Name: "n", Type: trigger.ArgNumber}}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestProcess_OrderAndResult(t *testing.T) {
	triggers := trigger.NewRegistry()
	log := &callLog{}
	for _, tag := range []string{"first", "second"} {
		if _, err := triggers.RegisterGlobal(trigger.Spec{Tag: tag}, log.handler(tag)); err != nil {
			t.Fatalf("RegisterGlobal() error = %v", err)
		}
	}
	gate := &mockGate{}
	hub := &mockHub{}
	rec := &mockRecorder{}
	e := NewEngine(triggers, gate, hub)
	e.SetRecorder(rec)

	res := e.Process(context.Background(), "second[] unknown[] first[]", trigger.HostContext{Source: "pro"})

	if got := log.get(); len(got) != 2 || got[0] != "second" || got[1] != "first" {
		t.Errorf("call order = %v, want [second first]", got)
	}
	want := []bool{true, false, true}
	if len(res.Matched) != len(want) {
		t.Fatalf("len(Matched) = %d, want %d", len(res.Matched), len(want))
	}
	for i := range want {
		if res.Matched[i] != want[i] {
			t.Errorf("Matched[%d] = %v, want %v", i, res.Matched[i], want[i])
		}
	}
	if !res.AnyMatched || !res.Allowed {
		t.Errorf("AnyMatched = %v, Allowed = %v", res.AnyMatched, res.Allowed)
	}
	if gate.begins != 1 || gate.ends != 1 {
		t.Errorf("gate begins/ends = %d/%d, want 1/1 for one annotation", gate.begins, gate.ends)
	}
	if len(hub.events) != 1 || hub.events[0].Source != "pro" {
		t.Errorf("broadcast events = %+v", hub.events)
	}
	if rec.annotations != 1 || rec.dispatched["unknown"] {
		t.Errorf("recorder = %+v", rec)
	}
}

func TestProcess_ZeroTriggersIsNoMatchNotError(t *testing.T) {
	e, _, _ := newStack(t)
	res := e.Process(context.Background(), "note[60] [log]hi[/log]", trigger.HostContext{})

	if res.AnyMatched {
		t.Error("AnyMatched = true with no triggers registered")
	}
	if len(res.Invocations) != 2 {
		t.Errorf("len(Invocations) = %d, want 2", len(res.Invocations))
	}
}

func TestProcess_EmptyText(t *testing.T) {
	e, _, _ := newStack(t)
	res := e.Process(context.Background(), "", trigger.HostContext{})
	if res.Invocations == nil || len(res.Invocations) != 0 || res.AnyMatched {
		t.Errorf("Process(\"\") = %+v", res)
	}
}

func TestDispatch_DisabledTriggerDoesNotFire(t *testing.T) {
	log := &callLog{}
	e, _, triggers := newStack(t)
	d, err := triggers.RegisterGlobal(trigger.Spec{Tag: "cue"}, log.handler("cue"))
	if err != nil {
		t.Fatalf("RegisterGlobal() error = %v", err)
	}
	if err := triggers.SetEnabled(context.Background(), d.ID, false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}

	inv := annotation.Invocation{Tag: "cue", Form: annotation.FormShort, Args: []string{}}
	if e.Dispatch(context.Background(), inv, trigger.HostContext{}) {
		t.Error("Dispatch() = true for disabled trigger")
	}
	if len(log.get()) != 0 {
		t.Error("disabled trigger handler ran")
	}
}

func TestDispatch_MultiInstanceTargeting(t *testing.T) {
	ctx := context.Background()
	log := &callLog{}
	e, modules, _ := newStack(t, bridgeFactory("companion", true, log, trigger.Spec{Tag: "cmd", Args: numArg}))
	err := modules.Configure(ctx, "companion", []module.InstanceConfig{
		{Name: "A", Enabled: true},
		{Name: "B", Enabled: true},
	})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	res := e.Process(ctx, "cmd[B,7]", trigger.HostContext{})
	if !res.AnyMatched {
		t.Fatal("cmd[B,7] matched nothing")
	}
	if got := log.get(); len(got) != 1 || got[0] != "B:cmd" {
		t.Errorf("calls = %v, want [B:cmd]", got)
	}

	res = e.Process(ctx, "cmd[C,7]", trigger.HostContext{})
	if res.AnyMatched {
		t.Error("cmd[C,7] matched an instance")
	}
}

func TestDispatch_FanOutInModuleOrder(t *testing.T) {
	ctx := context.Background()
	log := &callLog{}
	spec := trigger.Spec{Tag: "go"}
	e, modules, _ := newStack(t,
		bridgeFactory("lights", false, log, spec),
		bridgeFactory("video", false, log, spec),
		bridgeFactory("audio", false, log, spec),
	)
	// Configure out of registration order; dispatch order must not change.
	for _, typ := range []string{"audio", "video", "lights"} {
		if err := modules.Configure(ctx, typ, []module.InstanceConfig{{Enabled: true}}); err != nil {
			t.Fatalf("Configure(%s) error = %v", typ, err)
		}
	}

	if !e.Process(ctx, "go[]", trigger.HostContext{}).AnyMatched {
		t.Fatal("go[] matched nothing")
	}
	got := log.get()
	want := []string{"lights:go", "video:go", "audio:go"}
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("calls[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDispatch_FaultDoesNotStopLaterTags(t *testing.T) {
	ctx := context.Background()
	log := &callLog{}
	e, modules, _ := newStack(t,
		bridgeFactory("bad", false, log, trigger.Spec{Tag: "boom"}),
		bridgeFactory("good", false, log, trigger.Spec{Tag: "ok"}),
	)
	if err := modules.ConfigureAll(ctx, []module.InstanceConfig{
		{Type: "bad", Enabled: true, Settings: map[string]any{"fail": true}},
		{Type: "good", Enabled: true},
	}); err != nil {
		t.Fatalf("ConfigureAll() error = %v", err)
	}

	res := e.Process(ctx, "boom[] ok[]", trigger.HostContext{})
	if !res.Matched[0] || !res.Matched[1] {
		t.Errorf("Matched = %v, want both true", res.Matched)
	}
	if got := log.get(); len(got) != 2 || got[1] != "good:ok" {
		t.Errorf("calls = %v", got)
	}
}

func TestDispatch_DisabledModuleInstance(t *testing.T) {
	ctx := context.Background()
	log := &callLog{}
	e, modules, _ := newStack(t, bridgeFactory("midi", false, log, trigger.Spec{Tag: "note", Args: numArg}))
	if err := modules.Configure(ctx, "midi", []module.InstanceConfig{{Enabled: false}}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	if e.Process(ctx, "note[60]", trigger.HostContext{}).AnyMatched {
		t.Error("disabled instance matched")
	}
}

func TestSetAllow(t *testing.T) {
	ctx := context.Background()
	log := &callLog{}
	e, _, triggers := newStack(t)
	if _, err := triggers.RegisterGlobal(trigger.Spec{Tag: "cue"}, log.handler("cue")); err != nil {
		t.Fatalf("RegisterGlobal() error = %v", err)
	}

	e.SetAllow(false)
	res := e.Process(ctx, "cue[]", trigger.HostContext{})
	if res.Allowed || res.AnyMatched || len(res.Invocations) != 1 {
		t.Errorf("Process() while disallowed = %+v", res)
	}
	if e.Signal(ctx, "slideupdate", trigger.HostContext{}) {
		t.Error("Signal() fired while disallowed")
	}
	if len(log.get()) != 0 {
		t.Error("handler ran while dispatch was off")
	}

	e.SetAllow(true)
	if !e.Process(ctx, "cue[]", trigger.HostContext{}).AnyMatched {
		t.Error("Process() did not fire after re-allowing")
	}
}

func TestSignal(t *testing.T) {
	ctx := context.Background()
	var got trigger.Call
	e, _, triggers := newStack(t)
	_, err := triggers.RegisterGlobal(trigger.Spec{Tag: "~slideupdate~"}, func(_ context.Context, c trigger.Call) error {
		got = c
		return nil
	})
	if err != nil {
		t.Fatalf("RegisterGlobal() error = %v", err)
	}

	host := trigger.HostContext{Source: "pro", Slide: trigger.Slide{Index: 4, Notes: "go[]"}}
	if !e.Signal(ctx, "slideupdate", host) {
		t.Fatal("Signal() = false")
	}
	if got.Host.Signal != "slideupdate" || got.Host.Slide.Index != 4 {
		t.Errorf("host context = %+v", got.Host)
	}
	if e.Signal(ctx, "nothing", host) {
		t.Error("Signal() for unknown lifecycle tag = true")
	}
}

func TestSignal_ReachesEveryInstance(t *testing.T) {
	ctx := context.Background()
	log := &callLog{}
	e, modules, _ := newStack(t, bridgeFactory("pro", true, log, trigger.Spec{Tag: "~slideupdate~"}))
	if err := modules.Configure(ctx, "pro", []module.InstanceConfig{
		{Name: "left", Enabled: true},
		{Name: "right", Enabled: true},
	}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	if !e.Signal(ctx, "slideupdate", trigger.HostContext{}) {
		t.Fatal("Signal() = false")
	}
	if n := len(log.get()); n != 2 {
		t.Errorf("instances reached = %d, want 2", n)
	}
}

func TestDispatch_HandlerErrorStillMatches(t *testing.T) {
	e, _, triggers := newStack(t)
	_, err := triggers.RegisterGlobal(trigger.Spec{Tag: "fail"}, func(context.Context, trigger.Call) error {
		return errors.New("device offline")
	})
	if err != nil {
		t.Fatalf("RegisterGlobal() error = %v", err)
	}
	inv := annotation.Invocation{Tag: "fail", Form: annotation.FormShort, Args: []string{}}
	if !e.Dispatch(context.Background(), inv, trigger.HostContext{}) {
		t.Error("Dispatch() = false for a handler that ran and failed")
	}
}

func TestProcess_SignalsShareOnePass(t *testing.T) {
	ctx := context.Background()
	triggers := trigger.NewRegistry()
	gate := &mockGate{}
	e := NewEngine(triggers, gate, nil)

	var signals []string
	record := func(_ context.Context, c trigger.Call) error {
		signals = append(signals, c.Tag+"="+c.Host.Signal)
		return nil
	}
	for _, tag := range []string{"cue", "~slideupdate~"} {
		if _, err := triggers.RegisterGlobal(trigger.Spec{Tag: tag}, record); err != nil {
			t.Fatalf("RegisterGlobal(%s) error = %v", tag, err)
		}
	}

	res := e.Process(ctx, "cue[] other[]", trigger.HostContext{}, "slideupdate")
	want := []bool{true, false, true}
	if len(res.Matched) != len(want) {
		t.Fatalf("Matched = %v, want %v", res.Matched, want)
	}
	for i := range want {
		if res.Matched[i] != want[i] {
			t.Errorf("Matched = %v, want %v", res.Matched, want)
			break
		}
	}
	if res.Invocations[2].Tag != "~slideupdate~" || !res.AnyMatched {
		t.Errorf("result = %+v", res)
	}
	if gate.begins != 1 || gate.ends != 1 {
		t.Errorf("gate begins/ends = %d/%d, want one pass", gate.begins, gate.ends)
	}
	if len(signals) != 2 || signals[0] != "cue=" || signals[1] != "~slideupdate~=slideupdate" {
		t.Errorf("calls = %v", signals)
	}

	// A slide with no commands still reports the lifecycle match.
	if res := e.Process(ctx, "plain notes", trigger.HostContext{}, "slideupdate"); !res.AnyMatched {
		t.Errorf("signal-only pass = %+v, want AnyMatched", res)
	}
}
