// Package companion drives Bitfocus Companion over its TCP remote-control
// port. Each command opens a short-lived connection, writes one line and
// expects a "+OK" reply.
package companion

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/cuebridge/internal/module"
	"github.com/nerrad567/cuebridge/internal/trigger"
)

// ModuleType is the registry type name.
const ModuleType = "companion"

const (
	defaultPort    = 51234
	defaultTimeout = 2 * time.Second
)

// Settings are decoded from the module's settings map.
type Settings struct {
	Host    string        `mapstructure:"host"`
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Factory returns the registry factory for Companion instances.
func Factory() module.Factory {
	return module.Factory{
		Type:        ModuleType,
		Description: "Bitfocus Companion button and page control",
		Multi:       true,
		New:         New,
	}
}

// Bridge is one Companion installation.
type Bridge struct {
	name   string
	addr   string
	cfg    Settings
	logger module.Logger
	hub    module.Broadcaster
	meter  module.Meter

	wg sync.WaitGroup

	mu          sync.Mutex
	lastCommand string
	lastResult  string
	lastOK      bool

	sent   atomic.Int64
	failed atomic.Int64
}

var (
	_ module.Module         = (*Bridge)(nil)
	_ module.StatusReporter = (*Bridge)(nil)
)

// New builds a Bridge from settings.
func New(name string, settings map[string]any, deps module.Deps) (module.Module, error) {
	cfg := Settings{Port: defaultPort, Timeout: defaultTimeout}
	if err := module.DecodeSettings(settings, &cfg); err != nil {
		return nil, err
	}
	if cfg.Host == "" {
		return nil, ErrNoHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	deps = deps.WithDefaults()
	b := &Bridge{
		name:   name,
		addr:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		cfg:    cfg,
		logger: deps.Logger,
		hub:    deps.Hub,
		meter:  deps.Meter,
	}
	return b, nil
}

// Triggers declares the button and page triggers. The registry prepends the
// instance selector, so authors write companionbutton[stage, 1, 4].
func (b *Bridge) Triggers() []trigger.Spec {
	return []trigger.Spec{
		{
			Tag:         "companionbutton",
			Description: "click a streamdeck button",
			Args: []trigger.ArgSpec{
				{Name: "page", Type: trigger.ArgNumber, Description: "companion page 1-99"},
				{Name: "button", Type: trigger.ArgNumber, Description: "button / bank number"},
			},
		},
		{
			Tag:         "companionpage",
			Description: "select a streamdeck page",
			Args: []trigger.ArgSpec{
				{Name: "page", Type: trigger.ArgNumber, Description: "companion page 1-99"},
				{Name: "surface", Type: trigger.ArgString, Description: "surface id"},
			},
		},
	}
}

// Fire validates the call and sends the command in the background.
func (b *Bridge) Fire(_ context.Context, call trigger.Call) error {
	cmd, err := Command(call.Action, call.Args)
	if err != nil {
		return err
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.send(cmd)
	}()
	return nil
}

// Command renders the protocol line for a trigger action.
func Command(action string, args trigger.Args) (string, error) {
	if !args.Present(0) || !args.Present(1) {
		return "", fmt.Errorf("%w: %s needs two arguments", ErrMissingArgument, action)
	}
	switch action {
	case "companionbutton":
		return fmt.Sprintf("BANK-PRESS %d %d", args.Int(0), args.Int(1)), nil
	case "companionpage":
		surface := strings.TrimSpace(args.Text(1))
		if surface == "" {
			return "", fmt.Errorf("%w: empty surface id", ErrMissingArgument)
		}
		return fmt.Sprintf("PAGE-SET %d %s", args.Int(0), surface), nil
	}
	return "", fmt.Errorf("companion: unknown action %q", action)
}

func (b *Bridge) send(cmd string) {
	err := b.exchange(cmd)

	b.mu.Lock()
	b.lastCommand = cmd
	b.lastOK = err == nil
	if err != nil {
		b.lastResult = err.Error()
	} else {
		b.lastResult = "command successful"
	}
	b.mu.Unlock()

	if err != nil {
		b.failed.Add(1)
		b.meter.TransportFault(ModuleType)
		b.logger.Warn("companion command failed", "instance", b.name, "command", cmd, "error", err)
	} else {
		b.sent.Add(1)
		b.meter.MessagesSent(ModuleType, 1)
		b.logger.Debug("companion command sent", "instance", b.name, "command", cmd)
	}

	if b.hub != nil {
		b.hub.Broadcast("module.update", map[string]any{
			"type":     ModuleType,
			"name":     b.name,
			"command":  cmd,
			"ok":       err == nil,
			"response": b.Status().Detail,
		})
	}
}

func (b *Bridge) exchange(cmd string) error {
	conn, err := net.DialTimeout("tcp", b.addr, b.cfg.Timeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", b.addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(b.cfg.Timeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && reply == "" {
		return fmt.Errorf("read reply: %w", err)
	}
	if !strings.Contains(reply, "+OK") {
		return fmt.Errorf("%w: %q", ErrCommandRejected, strings.TrimSpace(reply))
	}
	return nil
}

// Status reports the last command outcome. Companion connections are short
// lived, so Connected means the last exchange succeeded.
func (b *Bridge) Status() module.Health {
	b.mu.Lock()
	defer b.mu.Unlock()
	detail := "idle"
	if b.lastCommand != "" {
		detail = b.lastCommand + ": " + b.lastResult
	}
	return module.Health{
		Connected: b.lastCommand == "" || b.lastOK,
		Detail:    detail,
		Counters: map[string]int64{
			"sent":   b.sent.Load(),
			"failed": b.failed.Load(),
		},
	}
}

// Close waits for in-flight commands.
func (b *Bridge) Close() error {
	b.wg.Wait()
	return nil
}
