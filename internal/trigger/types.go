package trigger

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/nerrad567/cuebridge/internal/annotation"
)

// GlobalOwnerType is the module type reported for owner-less triggers.
const GlobalOwnerType = "global"

// Slide is the presentation state the host reported with an event.
type Slide struct {
	Index int    `json:"index"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// HostContext describes the host event that caused a dispatch.
type HostContext struct {
	// Source identifies the presentation host that produced the event.
	Source string `json:"source"`
	// Signal is the lifecycle signal name, empty for annotation dispatches.
	Signal string `json:"signal,omitempty"`
	Slide  Slide  `json:"slide"`
	// Data carries the raw event payload for lifecycle handlers.
	Data map[string]any `json:"data,omitempty"`
}

// Call is what a handler receives for one fired trigger.
type Call struct {
	TriggerID string
	Tag       string
	// Action is the owner-defined handler selector, the tag unless the
	// module declared otherwise.
	Action string
	Form   annotation.Form
	Args   Args
	Host   HostContext
}

// Handler runs a global trigger. Module triggers are routed to their owner.
type Handler func(ctx context.Context, call Call) error

// Spec is a trigger declaration as written by a module.
type Spec struct {
	Tag         string
	Description string
	Args        []ArgSpec
	// Action defaults to Tag.
	Action string
}

// OwnerRef identifies the module instance registering triggers.
type OwnerRef struct {
	ID    string
	Type  string
	Name  string
	Multi bool
	// Rank orders owners for dispatch: lower fires first.
	Rank int
}

// Owner is a module instance resolved at fire time.
type Owner interface {
	Enabled() bool
	InstanceName() string
	Invoke(ctx context.Context, call Call) error
}

// Resolver maps owner handles to live owners.
type Resolver interface {
	ResolveOwner(id string) (Owner, bool)
}

// Definition is a registered trigger.
//
// Everything except the enabled flag is immutable after registration.
type Definition struct {
	ID          string
	Key         string
	Tag         string
	Description string
	OwnerID     string
	OwnerType   string
	OwnerName   string
	// Multi means the owner requires an instance selector as the first
	// short-form argument. Args then starts with that selector.
	Multi     bool
	Args      []ArgSpec
	Action    string
	AllowLong bool

	handler Handler
	rank    int
	seq     uint64
	enabled atomic.Bool
}

// Enabled reports the trigger's own enable flag.
func (d *Definition) Enabled() bool { return d.enabled.Load() }

// Global reports whether the trigger has no owning module instance.
func (d *Definition) Global() bool { return d.OwnerID == "" }

// declaredArgs returns the specs the module declared, without the selector.
func (d *Definition) declaredArgs() []ArgSpec {
	if d.Multi && len(d.Args) > 0 {
		return d.Args[1:]
	}
	return d.Args
}

func (d *Definition) before(o *Definition) bool {
	if d.rank != o.rank {
		return d.rank < o.rank
	}
	return d.seq < o.seq
}

// ─── Documentation ──────────────────────────────────────────────────────────

// ArgDoc documents one argument for the control UI.
type ArgDoc struct {
	Name        string  `json:"name"`
	Type        ArgType `json:"type"`
	Description string  `json:"description"`
	Optional    bool    `json:"optional"`
	Help        string  `json:"help,omitempty"`
	Example     string  `json:"example"`
}

// Doc is the published view of a trigger.
type Doc struct {
	ID           string   `json:"id"`
	Key          string   `json:"key"`
	Label        string   `json:"label"`
	Tag          string   `json:"tag"`
	Description  string   `json:"description"`
	ModuleType   string   `json:"module_type"`
	InstanceName string   `json:"instance_name,omitempty"`
	Enabled      bool     `json:"enabled"`
	AllowLong    bool     `json:"allow_long"`
	Args         []ArgDoc `json:"args"`
	Examples     []string `json:"examples"`
}

var argHelp = map[ArgType]string{
	ArgNumber:  "numbers can be integers or decimals, positive or negative",
	ArgString:  "strings with commas must be wrapped in quotes: ' \" or `",
	ArgBool:    "true for 1, true or on; anything else is false",
	ArgJSON:    "wrap json containing commas in single quotes or backticks",
	ArgDynamic: "any number of trailing values, passed through as text",
}

func argExample(s ArgSpec) string {
	switch s.Type {
	case ArgNumber:
		return "5"
	case ArgString:
		return "text without commas"
	case ArgBool:
		return "on"
	case ArgJSON:
		return `'{"key":"value"}'`
	default:
		return s.Name
	}
}

// Doc renders the trigger's documentation.
func (d *Definition) Doc() Doc {
	doc := Doc{
		ID:           d.ID,
		Key:          d.Key,
		Label:        "slide code: " + d.Tag,
		Tag:          d.Tag,
		Description:  d.Description,
		ModuleType:   d.OwnerType,
		InstanceName: d.OwnerName,
		Enabled:      d.Enabled(),
		AllowLong:    d.AllowLong,
		Args:         make([]ArgDoc, 0, len(d.Args)),
		Examples:     []string{},
	}

	names := make([]string, 0, len(d.Args))
	values := make([]string, 0, len(d.Args))
	for i, a := range d.Args {
		ex := argExample(a)
		if i == 0 && d.Multi {
			ex = d.OwnerName
		}
		doc.Args = append(doc.Args, ArgDoc{
			Name:        a.Name,
			Type:        a.Type,
			Description: a.Description,
			Optional:    a.Optional,
			Help:        argHelp[a.Type],
			Example:     ex,
		})
		names = append(names, a.Name+"_"+a.Type.String())
		values = append(values, ex)
	}

	if annotation.IsLifecycleTag(d.Tag) {
		doc.Label = "every " + strings.Trim(d.Tag, "~")
		return doc
	}

	doc.Examples = append(doc.Examples, fmt.Sprintf("%s[%s]", d.Tag, strings.Join(names, ",")))
	if len(values) > 0 {
		doc.Examples = append(doc.Examples, fmt.Sprintf("%s[%s]", d.Tag, strings.Join(values, ",")))
	}
	if d.AllowLong {
		doc.Examples = append(doc.Examples, fmt.Sprintf("[%s]\nanything at all, even , ' \" and brackets\n[/%s]", d.Tag, d.Tag))
	}
	return doc
}
