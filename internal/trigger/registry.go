package trigger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nerrad567/cuebridge/internal/annotation"
)

// triggerNamespace seeds the name-based trigger IDs.
var triggerNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://cuebridge/trigger"))

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer receives fire and fault notifications (metrics).
type Observer interface {
	TriggerFired(moduleType, tag string)
	HandlerFault(moduleType, tag string)
}

type noopObserver struct{}

func (noopObserver) TriggerFired(string, string) {}
func (noopObserver) HandlerFault(string, string) {}

// Registry holds every registered trigger in dispatch order.
//
// Thread Safety: all methods are safe for concurrent use. Structural changes
// (Register, RemoveOwner) are expected only during module configuration,
// which the module registry serialises against dispatch.
type Registry struct {
	mu        sync.RWMutex
	defs      []*Definition // ordered by owner rank, then registration
	byID      map[string]*Definition
	overrides map[string]bool
	seq       uint64

	resolver Resolver
	store    StateStore
	observer Observer
	logger   Logger
}

// NewRegistry creates an empty trigger registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:      make(map[string]*Definition),
		overrides: make(map[string]bool),
		observer:  noopObserver{},
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetResolver sets how owner handles are resolved at fire time.
func (r *Registry) SetResolver(res Resolver) {
	r.resolver = res
}

// SetObserver sets the fire/fault observer.
func (r *Registry) SetObserver(o Observer) {
	r.observer = o
}

// SetStateStore enables persistence of enable flags.
func (r *Registry) SetStateStore(s StateStore) {
	r.store = s
}

// LoadOverrides reads persisted enable flags. They apply to definitions
// registered afterwards and to existing definitions with a matching key.
func (r *Registry) LoadOverrides(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	states, err := r.store.LoadStates(ctx)
	if err != nil {
		return fmt.Errorf("loading trigger states: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides = states
	for _, d := range r.defs {
		if enabled, ok := states[d.Key]; ok {
			d.enabled.Store(enabled)
		}
	}
	r.logger.Info("trigger states loaded", "count", len(states))
	return nil
}

// Register adds a trigger owned by a module instance. Multi-instance owners
// get an implicit leading instance selector argument.
func (r *Registry) Register(owner OwnerRef, spec Spec) (*Definition, error) {
	if owner.ID == "" {
		return nil, ErrNoOwner
	}
	return r.add(owner, spec, nil)
}

// RegisterGlobal adds an owner-less trigger served by handler.
func (r *Registry) RegisterGlobal(spec Spec, handler Handler) (*Definition, error) {
	if handler == nil {
		return nil, ErrNoOwner
	}
	return r.add(OwnerRef{Type: GlobalOwnerType, Rank: -1}, spec, handler)
}

func (r *Registry) add(owner OwnerRef, spec Spec, handler Handler) (*Definition, error) {
	if spec.Tag == "" || strings.ContainsAny(spec.Tag, " \t\r\n[],") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTag, spec.Tag)
	}
	if err := validateSpecs(spec.Args); err != nil {
		return nil, fmt.Errorf("%s: %w", spec.Tag, err)
	}

	args := make([]ArgSpec, 0, len(spec.Args)+1)
	if owner.Multi {
		args = append(args, ArgSpec{
			Name:        "instance",
			Type:        ArgString,
			Description: fmt.Sprintf("must be %q to target this instance", owner.Name),
		})
	}
	args = append(args, spec.Args...)

	action := spec.Action
	if action == "" {
		action = spec.Tag
	}

	d := &Definition{
		Tag:         spec.Tag,
		Description: spec.Description,
		OwnerID:     owner.ID,
		OwnerType:   owner.Type,
		OwnerName:   owner.Name,
		Multi:       owner.Multi,
		Args:        args,
		Action:      action,
		AllowLong:   allowsLongForm(spec.Args),
		handler:     handler,
		rank:        owner.Rank,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ordinal := 0
	for _, other := range r.defs {
		if other.OwnerID == owner.ID && other.OwnerType == owner.Type && other.Tag == spec.Tag {
			ordinal++
		}
	}
	if owner.ID == "" {
		d.Key = fmt.Sprintf("%s/%s#%d", GlobalOwnerType, spec.Tag, ordinal)
	} else {
		d.Key = fmt.Sprintf("%s/%s/%s#%d", owner.Type, owner.Name, spec.Tag, ordinal)
	}
	d.ID = uuid.NewSHA1(triggerNamespace, []byte(d.Key)).String()

	enabled := true
	if v, ok := r.overrides[d.Key]; ok {
		enabled = v
	}
	d.enabled.Store(enabled)

	r.seq++
	d.seq = r.seq

	idx := sort.Search(len(r.defs), func(i int) bool { return d.before(r.defs[i]) })
	r.defs = append(r.defs, nil)
	copy(r.defs[idx+1:], r.defs[idx:])
	r.defs[idx] = d
	r.byID[d.ID] = d

	r.logger.Debug("trigger registered", "tag", d.Tag, "key", d.Key, "enabled", enabled)
	return d, nil
}

// RemoveOwner drops every trigger owned by ownerID and returns how many
// were removed.
func (r *Registry) RemoveOwner(ownerID string) int {
	if ownerID == "" {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.defs[:0]
	removed := 0
	for _, d := range r.defs {
		if d.OwnerID == ownerID {
			delete(r.byID, d.ID)
			removed++
			continue
		}
		kept = append(kept, d)
	}
	for i := len(kept); i < len(r.defs); i++ {
		r.defs[i] = nil
	}
	r.defs = kept
	return removed
}

// Match returns the triggers an invocation of tag in the given form reaches,
// in dispatch order. Short-form and lifecycle tags match exactly; long form
// matches ignoring case and only triggers that accept long form.
func (r *Registry) Match(tag string, form annotation.Form) []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Definition
	for _, d := range r.defs {
		switch form {
		case annotation.FormLong:
			if d.AllowLong && strings.EqualFold(d.Tag, tag) {
				out = append(out, d)
			}
		default:
			if d.Tag == tag {
				out = append(out, d)
			}
		}
	}
	return out
}

// Fire runs one trigger for one invocation and reports whether it matched.
//
// A fault inside the handler is recovered and logged here; it never reaches
// the caller, and the trigger still counts as matched.
func (r *Registry) Fire(ctx context.Context, d *Definition, inv annotation.Invocation, host HostContext) bool {
	if !d.Enabled() {
		return false
	}

	var owner Owner
	if !d.Global() {
		if r.resolver == nil {
			return false
		}
		o, ok := r.resolver.ResolveOwner(d.OwnerID)
		if !ok || !o.Enabled() {
			return false
		}
		owner = o
	}

	// Long-form blocks and lifecycle signals carry no selector and reach
	// every instance.
	targeted := d.Multi && inv.Form == annotation.FormShort && !annotation.IsLifecycleTag(inv.Tag)
	specs := d.Args
	if d.Multi && !targeted {
		specs = d.declaredArgs()
	}

	args := Coerce(specs, inv.Args)
	if targeted {
		if len(args) == 0 || args[0].Str != owner.InstanceName() {
			return false
		}
		args = args[1:]
	}

	call := Call{
		TriggerID: d.ID,
		Tag:       d.Tag,
		Action:    d.Action,
		Form:      inv.Form,
		Args:      args,
		Host:      host,
	}
	r.invoke(ctx, d, owner, call)
	return true
}

func (r *Registry) invoke(ctx context.Context, d *Definition, owner Owner, call Call) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("trigger handler panic recovered",
				"tag", d.Tag,
				"trigger_id", d.ID,
				"module", d.OwnerType,
				"instance", d.OwnerName,
				"panic", p,
			)
			r.observer.HandlerFault(d.OwnerType, d.Tag)
		}
	}()

	r.observer.TriggerFired(d.OwnerType, d.Tag)

	var err error
	if owner == nil {
		err = d.handler(ctx, call)
	} else {
		err = owner.Invoke(ctx, call)
	}
	if err != nil {
		r.logger.Error("trigger handler failed",
			"tag", d.Tag,
			"trigger_id", d.ID,
			"module", d.OwnerType,
			"instance", d.OwnerName,
			"error", err,
		)
		r.observer.HandlerFault(d.OwnerType, d.Tag)
	}
}

// Get returns the trigger with the given ID.
func (r *Registry) Get(id string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

// Count returns the number of registered triggers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// List documents every trigger in dispatch order.
func (r *Registry) List() []Doc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := make([]Doc, 0, len(r.defs))
	for _, d := range r.defs {
		docs = append(docs, d.Doc())
	}
	return docs
}

// SetEnabled toggles a trigger and persists the flag when a store is set.
func (r *Registry) SetEnabled(ctx context.Context, id string, enabled bool) error {
	d, err := r.Get(id)
	if err != nil {
		return err
	}

	d.enabled.Store(enabled)

	r.mu.Lock()
	r.overrides[d.Key] = enabled
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SaveState(ctx, d.Key, enabled); err != nil {
			return fmt.Errorf("saving trigger state: %w", err)
		}
	}

	r.logger.Info("trigger toggled", "tag", d.Tag, "key", d.Key, "enabled", enabled)
	return nil
}
