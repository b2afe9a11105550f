// Package system provides the hub's own triggers. They have no owning
// module and stay registered for the life of the process.
package system

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/cuebridge/internal/module"
	"github.com/nerrad567/cuebridge/internal/trigger"
)

// ChannelPrefix namespaces channels written by broadcast[].
const ChannelPrefix = "user."

var (
	// ErrMissingChannel is returned by broadcast[] without a channel.
	ErrMissingChannel = errors.New("system: channel is required")

	// ErrNoHub is returned by broadcast[] when the event stream is disabled.
	ErrNoHub = errors.New("system: event stream is not available")
)

// Registrar is the part of the trigger registry used here.
type Registrar interface {
	RegisterGlobal(spec trigger.Spec, handler trigger.Handler) (*trigger.Definition, error)
}

// Triggers serves the global triggers.
type Triggers struct {
	logger module.Logger
	hub    module.Broadcaster
}

// New creates the handlers. hub may be nil.
func New(logger module.Logger, hub module.Broadcaster) *Triggers {
	if logger == nil {
		logger = module.NoopLogger()
	}
	return &Triggers{logger: logger, hub: hub}
}

// Entry pairs a declaration with its handler.
type Entry struct {
	Spec    trigger.Spec
	Handler trigger.Handler
}

// Specs lists the declarations with their handlers.
func (s *Triggers) Specs() []Entry {
	return []Entry{
		{
			Spec: trigger.Spec{
				Tag:         "log",
				Description: "writes the text to the hub log, e.g. [log]anything[/log]",
				Args:        []trigger.ArgSpec{{Name: "text", Type: trigger.ArgString, Description: "message"}},
			},
			Handler: s.log,
		},
		{
			Spec: trigger.Spec{
				Tag:         "broadcast",
				Description: `relays a json payload to event stream subscribers on "user.<channel>"`,
				Args: []trigger.ArgSpec{
					{Name: "channel", Type: trigger.ArgString, Description: "channel suffix"},
					{Name: "payload", Type: trigger.ArgJSON, Description: "json payload", Optional: true},
				},
			},
			Handler: s.broadcast,
		},
	}
}

// Register adds every system trigger to reg.
func (s *Triggers) Register(reg Registrar) error {
	for _, e := range s.Specs() {
		if _, err := reg.RegisterGlobal(e.Spec, e.Handler); err != nil {
			return fmt.Errorf("registering %s: %w", e.Spec.Tag, err)
		}
	}
	return nil
}

func (s *Triggers) log(_ context.Context, call trigger.Call) error {
	s.logger.Info("annotation log",
		"text", call.Args.Text(0),
		"source", call.Host.Source,
		"slide", call.Host.Slide.Index,
	)
	return nil
}

func (s *Triggers) broadcast(_ context.Context, call trigger.Call) error {
	channel := strings.TrimSpace(call.Args.Text(0))
	if channel == "" {
		return ErrMissingChannel
	}
	if s.hub == nil {
		return ErrNoHub
	}
	s.hub.Broadcast(ChannelPrefix+channel, map[string]any{
		"source":  call.Host.Source,
		"slide":   call.Host.Slide.Index,
		"payload": call.Args.JSON(1),
	})
	return nil
}
