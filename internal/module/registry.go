package module

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/cuebridge/internal/trigger"
)

// Registry owns module factories and their live instances.
//
// Thread Safety: gate serialises configuration (write side) against
// dispatch (read side, via BeginDispatch). mu guards the instance maps so
// ResolveOwner can run while a dispatch already holds the gate.
type Registry struct {
	gate sync.RWMutex

	mu        sync.RWMutex
	factories []Factory
	byType    map[string][]*Instance
	byID      map[string]*Instance
	singles   map[string]*Instance // kept records for single-instance types
	overrides map[string]bool

	triggers *trigger.Registry
	store    trigger.StateStore
	deps     Deps
	logger   Logger
}

var _ trigger.Resolver = (*Registry)(nil)

// NewRegistry creates a registry that registers instance triggers with
// triggers and installs itself as their owner resolver.
func NewRegistry(triggers *trigger.Registry, deps Deps) *Registry {
	r := &Registry{
		byType:    make(map[string][]*Instance),
		byID:      make(map[string]*Instance),
		singles:   make(map[string]*Instance),
		overrides: make(map[string]bool),
		triggers:  triggers,
		deps:      deps.WithDefaults(),
		logger:    noopLogger{},
	}
	triggers.SetResolver(r)
	return r
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetStateStore enables persistence of instance enable flags.
func (r *Registry) SetStateStore(s trigger.StateStore) {
	r.store = s
}

// LoadOverrides reads persisted instance flags. Call before ConfigureAll.
func (r *Registry) LoadOverrides(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	states, err := r.store.LoadStates(ctx)
	if err != nil {
		return fmt.Errorf("loading instance states: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides = states
	return nil
}

// RegisterFactory adds a module type. Registration order is dispatch order.
func (r *Registry) RegisterFactory(f Factory) error {
	if f.Type == "" || f.New == nil {
		return fmt.Errorf("%w: factory needs a type and constructor", ErrInvalidConfig)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.factories {
		if existing.Type == f.Type {
			return fmt.Errorf("%w: %s", ErrDuplicateType, f.Type)
		}
	}
	r.factories = append(r.factories, f)
	return nil
}

// Factories returns the registered factories in registration order.
func (r *Registry) Factories() []Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Factory(nil), r.factories...)
}

func (r *Registry) factory(moduleType string) (Factory, int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, f := range r.factories {
		if f.Type == moduleType {
			return f, i, true
		}
	}
	return Factory{}, 0, false
}

// BeginDispatch holds off configuration until the returned func is called.
func (r *Registry) BeginDispatch() (end func()) {
	r.gate.RLock()
	return r.gate.RUnlock
}

// Configure replaces every instance of moduleType with instances built from
// configs. Prior instances are fully disposed before new ones are created.
//
// Construction failures are returned joined; the instances that did build
// stay live.
func (r *Registry) Configure(ctx context.Context, moduleType string, configs []InstanceConfig) error {
	f, rank, ok := r.factory(moduleType)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, moduleType)
	}
	configs, err := normalise(f, configs)
	if err != nil {
		return err
	}

	r.gate.Lock()
	defer r.gate.Unlock()
	return r.configureLocked(ctx, f, rank, configs)
}

// configureLocked rebuilds one type from validated configs. Caller holds gate.
func (r *Registry) configureLocked(ctx context.Context, f Factory, rank int, configs []InstanceConfig) error {
	r.dispose(f.Type)

	var errs []error
	for _, cfg := range configs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := r.build(f, rank, cfg); err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", f.Type, cfg.Name, err))
		}
	}

	r.logger.Info("module configured",
		"type", f.Type,
		"instances", len(r.byTypeSnapshot(f.Type)),
		"failed", len(errs),
	)
	return errors.Join(errs...)
}

// ConfigureAll configures every registered type from one configuration
// list. Types without entries are configured with zero instances. The whole
// pass runs under one write gate, so dispatch sees either the old set of
// modules or the new one. A type whose entries fail validation keeps its
// current instances.
func (r *Registry) ConfigureAll(ctx context.Context, configs []InstanceConfig) error {
	grouped := make(map[string][]InstanceConfig)
	for _, c := range configs {
		grouped[c.Type] = append(grouped[c.Type], c)
	}

	type plan struct {
		f       Factory
		rank    int
		configs []InstanceConfig
	}
	var (
		plans []plan
		errs  []error
	)
	for rank, f := range r.Factories() {
		normalised, err := normalise(f, grouped[f.Type])
		delete(grouped, f.Type)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		plans = append(plans, plan{f: f, rank: rank, configs: normalised})
	}
	for t := range grouped {
		errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownType, t))
	}

	r.gate.Lock()
	defer r.gate.Unlock()
	for _, p := range plans {
		if err := r.configureLocked(ctx, p.f, p.rank, p.configs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func normalise(f Factory, configs []InstanceConfig) ([]InstanceConfig, error) {
	out := make([]InstanceConfig, len(configs))
	copy(out, configs)

	if !f.Multi {
		if len(out) > 1 {
			return nil, fmt.Errorf("%w: %s allows one instance, got %d", ErrInvalidConfig, f.Type, len(out))
		}
		for i := range out {
			out[i].Name = f.Type
		}
		return out, nil
	}

	seen := make(map[string]bool, len(out))
	for _, c := range out {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: %s instances need a name", ErrInvalidConfig, f.Type)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("%w: duplicate %s instance %q", ErrInvalidConfig, f.Type, c.Name)
		}
		seen[c.Name] = true
	}
	return out, nil
}

// dispose removes and closes every instance of moduleType. Caller holds gate.
func (r *Registry) dispose(moduleType string) {
	r.mu.Lock()
	old := r.byType[moduleType]
	delete(r.byType, moduleType)
	for _, inst := range old {
		delete(r.byID, inst.ID)
	}
	r.mu.Unlock()

	for _, inst := range old {
		r.triggers.RemoveOwner(inst.ID)
		if err := inst.mod.Close(); err != nil {
			r.logger.Warn("module close failed", "type", inst.Type, "instance", inst.Name, "error", err)
		}
		inst.mod = nil
	}
}

// build constructs and registers one instance. Caller holds gate.
func (r *Registry) build(f Factory, rank int, cfg InstanceConfig) error {
	inst := r.record(f, rank, cfg)

	mod, err := f.New(inst.Name, cfg.Settings, r.deps)
	if err != nil {
		return err
	}
	inst.mod = mod

	for _, spec := range mod.Triggers() {
		if _, err := r.triggers.Register(inst.ownerRef(), spec); err != nil {
			r.triggers.RemoveOwner(inst.ID)
			mod.Close() //nolint:errcheck // discarding a half-built instance
			inst.mod = nil
			return err
		}
	}

	r.mu.Lock()
	r.byType[f.Type] = append(r.byType[f.Type], inst)
	r.byID[inst.ID] = inst
	r.mu.Unlock()
	return nil
}

// record returns the Instance for cfg: the kept record for single-instance
// types, a fresh one otherwise.
func (r *Registry) record(f Factory, rank int, cfg InstanceConfig) *Instance {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !f.Multi {
		if inst, ok := r.singles[f.Type]; ok {
			// New configuration wins unless the flag was toggled or persisted.
			if _, overridden := r.overrides[inst.stateKey()]; !overridden {
				inst.enabled.Store(cfg.Enabled)
			}
			return inst
		}
	}

	inst := &Instance{
		ID:          uuid.NewString(),
		Type:        f.Type,
		Name:        cfg.Name,
		Multi:       f.Multi,
		Description: f.Description,
		rank:        rank,
	}
	enabled := cfg.Enabled
	if v, ok := r.overrides[inst.stateKey()]; ok {
		enabled = v
	}
	inst.enabled.Store(enabled)

	if !f.Multi {
		r.singles[f.Type] = inst
	}
	return inst
}

func (r *Registry) byTypeSnapshot(moduleType string) []*Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Instance(nil), r.byType[moduleType]...)
}

// ResolveOwner implements trigger.Resolver.
func (r *Registry) ResolveOwner(id string) (trigger.Owner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.byID[id]
	if !ok || inst.mod == nil {
		return nil, false
	}
	return inst, true
}

// SetEnabled toggles an instance and persists the flag.
func (r *Registry) SetEnabled(ctx context.Context, id string, enabled bool) error {
	r.mu.Lock()
	inst, ok := r.byID[id]
	if ok {
		inst.enabled.Store(enabled)
		r.overrides[inst.stateKey()] = enabled
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if r.store != nil {
		if err := r.store.SaveState(ctx, inst.stateKey(), enabled); err != nil {
			return fmt.Errorf("saving instance state: %w", err)
		}
	}
	r.logger.Info("module instance toggled", "type", inst.Type, "instance", inst.Name, "enabled", enabled)
	return nil
}

// Instances lists live instances in dispatch order.
func (r *Registry) Instances() []Info {
	end := r.BeginDispatch()
	defer end()

	var out []Info
	for _, f := range r.Factories() {
		for _, inst := range r.byTypeSnapshot(f.Type) {
			out = append(out, inst.info())
		}
	}
	return out
}

// Get returns one instance's info.
func (r *Registry) Get(id string) (Info, error) {
	end := r.BeginDispatch()
	defer end()

	r.mu.RLock()
	inst, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return inst.info(), nil
}

// RunStatusSampler calls sink with Instances every interval until ctx is
// done. It blocks; run it on its own goroutine.
func (r *Registry) RunStatusSampler(ctx context.Context, interval time.Duration, sink func(context.Context, []Info)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sink(ctx, r.Instances())
		}
	}
}

// Close disposes every instance.
func (r *Registry) Close() {
	r.gate.Lock()
	defer r.gate.Unlock()
	for _, f := range r.Factories() {
		r.dispose(f.Type)
	}
}
