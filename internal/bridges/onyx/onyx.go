package onyx

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/cuebridge/internal/module"
	"github.com/nerrad567/cuebridge/internal/trigger"
)

// ModuleType is the registry type name.
const ModuleType = "onyx"

const defaultPort = 2323

// Settings are decoded from the module's settings map.
type Settings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
}

// Factory returns the registry factory for the Onyx bridge.
func Factory() module.Factory {
	return module.Factory{
		Type:        ModuleType,
		Description: "Obsidian Onyx cuelist control over MxManager telnet",
		New:         New,
	}
}

// Bridge fires Onyx cuelists through a persistent Session.
type Bridge struct {
	session *Session
	logger  module.Logger
	meter   module.Meter
	wg      sync.WaitGroup
}

var (
	_ module.Module         = (*Bridge)(nil)
	_ module.StatusReporter = (*Bridge)(nil)
)

// New builds the bridge and starts connecting in the background.
func New(_ string, settings map[string]any, deps module.Deps) (module.Module, error) {
	cfg := Settings{Port: defaultPort, ReconnectInterval: defaultReconnectInterval}
	if err := module.DecodeSettings(settings, &cfg); err != nil {
		return nil, err
	}
	if cfg.Host == "" {
		return nil, ErrNoHost
	}

	deps = deps.WithDefaults()
	b := &Bridge{
		logger: deps.Logger,
		meter:  deps.Meter,
	}
	b.session = OpenSession(SessionConfig{
		Address:           net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		ReconnectInterval: cfg.ReconnectInterval,
	}, deps.Logger)
	return b, nil
}

func (b *Bridge) Triggers() []trigger.Spec {
	cuelist := trigger.ArgSpec{Name: "cuelist", Type: trigger.ArgNumber, Description: "onyx cuelist number"}
	return []trigger.Spec{
		{
			Tag:         "onyxgo",
			Description: "fire an onyx cuelist with an optional specific cue",
			Args: []trigger.ArgSpec{
				cuelist,
				{Name: "cue", Type: trigger.ArgNumber, Description: "cue number, defaults to the next cue", Optional: true},
			},
		},
		{
			Tag:         "onyxcue",
			Description: "go to a specific cue in an onyx cuelist",
			Args: []trigger.ArgSpec{
				cuelist,
				{Name: "cue", Type: trigger.ArgNumber, Description: "cue number"},
			},
		},
		{
			Tag:         "onyxrelease",
			Description: "release an onyx cuelist",
			Args:        []trigger.ArgSpec{cuelist},
		},
	}
}

// Command renders the MxManager telnet command for an action.
func Command(action string, args trigger.Args) (string, error) {
	if !args.Present(0) {
		return "", ErrMissingCuelist
	}
	list := args.Int(0)

	switch action {
	case "onyxgo":
		if args.Present(1) {
			return fmt.Sprintf("GTQ %d %d", list, args.Int(1)), nil
		}
		return fmt.Sprintf("GQL %d", list), nil
	case "onyxcue":
		if !args.Present(1) {
			return "", fmt.Errorf("onyx: onyxcue needs a cue number")
		}
		return fmt.Sprintf("GTQ %d %d", list, args.Int(1)), nil
	case "onyxrelease":
		return fmt.Sprintf("RQL %d", list), nil
	}
	return "", fmt.Errorf("onyx: unknown action %q", action)
}

// Fire sends the command in the background. A down session is reported
// immediately as ErrNotConnected.
func (b *Bridge) Fire(_ context.Context, call trigger.Call) error {
	cmd, err := Command(call.Action, call.Args)
	if err != nil {
		return err
	}
	if !b.session.Connected() {
		b.meter.TransportFault(ModuleType)
		return fmt.Errorf("%w: dropped %q", ErrNotConnected, cmd)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.session.Send(cmd); err != nil {
			b.meter.TransportFault(ModuleType)
			b.logger.Warn("onyx command failed", "command", cmd, "error", err)
			return
		}
		b.meter.MessagesSent(ModuleType, 1)
		b.logger.Debug("onyx command sent", "command", cmd)
	}()
	return nil
}

func (b *Bridge) Status() module.Health {
	st := b.session.Stats()
	detail := "connecting"
	if st.Connected {
		detail = "connected to " + b.session.cfg.Address
	}
	return module.Health{
		Connected: st.Connected,
		Detail:    detail,
		Counters: map[string]int64{
			"commands":   int64(st.CommandsTx),
			"errors":     int64(st.ErrorsTotal),
			"reconnects": int64(st.ReconnectsTotal),
		},
	}
}

// Close waits for pending sends, then closes the session.
func (b *Bridge) Close() error {
	b.wg.Wait()
	return b.session.Close()
}
