package module

import (
	"context"
	"sync/atomic"

	"github.com/nerrad567/cuebridge/internal/trigger"
)

// Instance is a configured module instance. The registry swaps its Module
// under the dispatch write lock; everything else is fixed for the life of
// the record.
type Instance struct {
	ID          string
	Type        string
	Name        string
	Multi       bool
	Description string

	rank    int
	enabled atomic.Bool
	mod     Module
}

var _ trigger.Owner = (*Instance)(nil)

// Enabled reports the instance enable flag.
func (i *Instance) Enabled() bool { return i.enabled.Load() }

// InstanceName returns the name short-form selectors must match.
func (i *Instance) InstanceName() string { return i.Name }

// Invoke routes a fired trigger to the module.
func (i *Instance) Invoke(ctx context.Context, call trigger.Call) error {
	return i.mod.Fire(ctx, call)
}

func (i *Instance) stateKey() string {
	return "instance:" + i.Type + "/" + i.Name
}

func (i *Instance) ownerRef() trigger.OwnerRef {
	return trigger.OwnerRef{
		ID:    i.ID,
		Type:  i.Type,
		Name:  i.Name,
		Multi: i.Multi,
		Rank:  i.rank,
	}
}

// Info is the published view of an instance.
type Info struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Name        string  `json:"name"`
	Multi       bool    `json:"multi"`
	Description string  `json:"description,omitempty"`
	Enabled     bool    `json:"enabled"`
	Health      *Health `json:"health,omitempty"`
}

func (i *Instance) info() Info {
	info := Info{
		ID:          i.ID,
		Type:        i.Type,
		Name:        i.Name,
		Multi:       i.Multi,
		Description: i.Description,
		Enabled:     i.Enabled(),
	}
	if sr, ok := i.mod.(StatusReporter); ok {
		h := sr.Status()
		info.Health = &h
	}
	return info
}
