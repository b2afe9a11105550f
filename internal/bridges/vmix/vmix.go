// Package vmix drives vMix through its HTTP function API
// (GET /api/?Function=...&Input=...).
package vmix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/cuebridge/internal/annotation"
	"github.com/nerrad567/cuebridge/internal/module"
	"github.com/nerrad567/cuebridge/internal/trigger"
)

// ModuleType is the registry type name.
const ModuleType = "vmix"

const (
	defaultTimeout    = 3 * time.Second
	defaultDuration   = 1000
	slideUpdateSignal = "slideupdate"
	skipMarker        = "novmix"
)

var (
	// ErrNoURL is returned when the module has no API address.
	ErrNoURL = errors.New("vmix: url is required")

	// ErrMissingArgument is returned when a required argument is absent.
	ErrMissingArgument = errors.New("vmix: missing argument")

	// ErrRequestFailed wraps non-2xx API responses.
	ErrRequestFailed = errors.New("vmix: request failed")
)

// Settings are decoded from the module's settings map.
type Settings struct {
	// URL is the vMix web controller base, e.g. http://10.0.0.20:8088.
	URL string `mapstructure:"url"`
	// TitleInput receives slide text on every slide update. Empty disables
	// the lyrics handler.
	TitleInput string        `mapstructure:"title_input"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Factory returns the registry factory for the vMix bridge.
func Factory() module.Factory {
	return module.Factory{
		Type:        ModuleType,
		Description: "vMix switching, titles and overlays over the HTTP API",
		New:         New,
	}
}

// Bridge is the vMix module.
type Bridge struct {
	endpoint   string
	titleInput string
	client     *http.Client
	logger     module.Logger
	meter      module.Meter

	wg sync.WaitGroup

	overlayMu    sync.Mutex
	overlayTimer *time.Timer
	closed       bool

	mu         sync.Mutex
	lastResult string
	lastOK     bool

	sent   atomic.Int64
	failed atomic.Int64
}

var (
	_ module.Module         = (*Bridge)(nil)
	_ module.StatusReporter = (*Bridge)(nil)
)

// New builds the bridge. No request is made until a trigger fires.
func New(_ string, settings map[string]any, deps module.Deps) (module.Module, error) {
	cfg := Settings{Timeout: defaultTimeout}
	if err := module.DecodeSettings(settings, &cfg); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, ErrNoURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid url %q", module.ErrInvalidSettings, cfg.URL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	deps = deps.WithDefaults()
	return &Bridge{
		endpoint:   base.String() + "/api/",
		titleInput: cfg.TitleInput,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     deps.Logger,
		meter:      deps.Meter,
	}, nil
}

func (b *Bridge) Triggers() []trigger.Spec {
	input := func(desc string) trigger.ArgSpec {
		return trigger.ArgSpec{Name: "input", Type: trigger.ArgString, Description: desc, Optional: true}
	}
	duration := trigger.ArgSpec{Name: "duration", Type: trigger.ArgNumber, Description: "milliseconds, defaults to 1000", Optional: true}

	return []trigger.Spec{
		{
			Tag:         annotation.LifecycleTag(slideUpdateSignal),
			Description: `copies the slide text into the configured title input on every slide update unless the notes contain "novmix"`,
			Action:      "lyrics",
		},
		{
			Tag:         "vmixtrans",
			Description: "fires a vmix transition",
			Args: []trigger.ArgSpec{
				{Name: "transition", Type: trigger.ArgString, Description: "any vmix transition function (Fade, Cut, Merge...)"},
				input("input to make live, defaults to Preview"),
				duration,
			},
		},
		{
			Tag:         "vmixcut",
			Description: "cuts to an input",
			Args:        []trigger.ArgSpec{input("input to make live, defaults to Preview")},
		},
		{
			Tag:         "vmixfade",
			Description: "fades to an input",
			Args:        []trigger.ArgSpec{input("input to make live, defaults to Preview"), duration},
		},
		{
			Tag:         "vmixtext",
			Description: "sets the text of a title input",
			Args: []trigger.ArgSpec{
				{Name: "input", Type: trigger.ArgString, Description: "title input name or number"},
				{Name: "text", Type: trigger.ArgString, Description: "defaults to the current slide text", Optional: true},
				{Name: "field", Type: trigger.ArgString, Description: "text field name or index, defaults to 0", Optional: true},
			},
		},
		{
			Tag:         "vmixoverlay",
			Description: "switches an overlay channel; In or On with seconds reverts after that long",
			Args: []trigger.ArgSpec{
				{Name: "overlay", Type: trigger.ArgNumber, Description: "overlay channel 1-4, defaults to 1", Optional: true},
				{Name: "mode", Type: trigger.ArgString, Description: "In, Out, On, Off; empty toggles", Optional: true},
				input("overlay source, defaults to Preview"),
				{Name: "seconds", Type: trigger.ArgNumber, Description: "seconds before reverting", Optional: true},
			},
		},
		{
			Tag:         "vmixstream",
			Description: "starts or stops streaming",
			Args: []trigger.ArgSpec{
				{Name: "on", Type: trigger.ArgBool, Description: "on to start, off to stop"},
				{Name: "stream", Type: trigger.ArgNumber, Description: "stream number, defaults to 0", Optional: true},
			},
		},
		{
			Tag:         "vmix",
			Description: `sends raw API parameters, e.g. [vmix]{"Function":"Slide","Duration":3000}[/vmix]`,
			Args: []trigger.ArgSpec{
				{Name: "params", Type: trigger.ArgJSON, Description: "object of API parameters including Function"},
			},
		},
	}
}

// Request renders the API parameters for a call. A nil result with a nil
// error means there is nothing to send.
func (b *Bridge) Request(call trigger.Call) (url.Values, error) {
	a := call.Args
	switch call.Action {
	case "lyrics":
		if b.titleInput == "" || strings.Contains(call.Host.Slide.Notes, skipMarker) {
			return nil, nil
		}
		return setText(b.titleInput, call.Host.Slide.Text, "0"), nil

	case "vmixtrans":
		name := strings.TrimSpace(a.Text(0))
		if name == "" {
			return nil, fmt.Errorf("%w: transition", ErrMissingArgument)
		}
		return transition(name, a.Text(1), a.IntOr(2, defaultDuration)), nil

	case "vmixcut":
		return transition("Cut", a.Text(0), 0), nil

	case "vmixfade":
		return transition("Fade", a.Text(0), a.IntOr(1, defaultDuration)), nil

	case "vmixtext":
		if strings.TrimSpace(a.Text(0)) == "" {
			return nil, fmt.Errorf("%w: input", ErrMissingArgument)
		}
		text := call.Host.Slide.Text
		if a.Present(1) {
			text = a.Text(1)
		}
		sel := "0"
		if f := strings.TrimSpace(a.Text(2)); f != "" {
			sel = f
		}
		return setText(strings.TrimSpace(a.Text(0)), text, sel), nil

	case "vmixoverlay":
		return overlay(a.IntOr(0, 1), a.Text(1), a.Text(2)), nil

	case "vmixstream":
		fn := "StopStreaming"
		if a.Bool(0) {
			fn = "StartStreaming"
		}
		return url.Values{"Function": {fn}, "Value": {strconv.Itoa(a.IntOr(1, 0))}}, nil

	case "vmix":
		return raw(a.Object(0))
	}
	return nil, fmt.Errorf("vmix: unknown action %q", call.Action)
}

func transition(name, input string, durationMS int) url.Values {
	v := url.Values{"Function": {name}}
	if in := strings.TrimSpace(input); in != "" {
		v.Set("Input", in)
	}
	if name != "Cut" {
		v.Set("Duration", strconv.Itoa(durationMS))
	}
	return v
}

func setText(input, text, selection string) url.Values {
	v := url.Values{
		"Function": {"SetText"},
		"Input":    {input},
		"Value":    {text},
	}
	if _, err := strconv.Atoi(selection); err == nil {
		v.Set("SelectedIndex", selection)
	} else {
		v.Set("SelectedName", selection)
	}
	return v
}

func overlay(n int, mode, input string) url.Values {
	if n < 1 || n > 4 {
		n = 1
	}
	v := url.Values{"Function": {fmt.Sprintf("OverlayInput%d%s", n, normaliseMode(mode))}}
	if in := strings.TrimSpace(input); in != "" {
		v.Set("Input", in)
	}
	return v
}

func normaliseMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "in":
		return "In"
	case "out":
		return "Out"
	case "on":
		return "On"
	case "off":
		return "Off"
	}
	return ""
}

// raw flattens a JSON object into API parameters. Numbers keep their
// shortest decimal form; nested values are rejected.
func raw(obj map[string]any) (url.Values, error) {
	if _, ok := obj["Function"]; !ok {
		return nil, fmt.Errorf("%w: Function", ErrMissingArgument)
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	v := url.Values{}
	for _, k := range keys {
		switch val := obj[k].(type) {
		case string:
			v.Set(k, val)
		case float64:
			v.Set(k, strconv.FormatFloat(val, 'f', -1, 64))
		case bool:
			v.Set(k, strconv.FormatBool(val))
		default:
			return nil, fmt.Errorf("vmix: parameter %q must be a string, number or bool", k)
		}
	}
	return v, nil
}

// Fire sends the request in the background.
func (b *Bridge) Fire(_ context.Context, call trigger.Call) error {
	params, err := b.Request(call)
	if err != nil || params == nil {
		return err
	}
	b.dispatch(params)

	if call.Action == "vmixoverlay" {
		b.scheduleRevert(call.Args)
	}
	return nil
}

func (b *Bridge) dispatch(params url.Values) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.record(params, b.send(params))
	}()
}

// scheduleRevert flips an In/On overlay back after the requested seconds,
// replacing any earlier pending revert.
func (b *Bridge) scheduleRevert(a trigger.Args) {
	b.overlayMu.Lock()
	defer b.overlayMu.Unlock()

	if b.overlayTimer != nil {
		b.overlayTimer.Stop()
		b.overlayTimer = nil
	}
	mode := normaliseMode(a.Text(1))
	if b.closed || !a.Present(3) || (mode != "In" && mode != "On") {
		return
	}
	back := "Off"
	if mode == "In" {
		back = "Out"
	}
	revert := overlay(a.IntOr(0, 1), back, a.Text(2))
	delay := time.Duration(a.Number(3) * float64(time.Second))
	b.overlayTimer = time.AfterFunc(delay, func() {
		b.overlayMu.Lock()
		defer b.overlayMu.Unlock()
		if !b.closed {
			b.dispatch(revert)
		}
	})
}

func (b *Bridge) send(params url.Values) error {
	resp, err := b.client.Get(b.endpoint + "?" + params.Encode())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: HTTP %d: %s", ErrRequestFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (b *Bridge) record(params url.Values, err error) {
	fn := params.Get("Function")

	b.mu.Lock()
	b.lastOK = err == nil
	if err != nil {
		b.lastResult = fn + ": " + err.Error()
	} else {
		b.lastResult = fn + ": command successful"
	}
	b.mu.Unlock()

	if err != nil {
		b.failed.Add(1)
		b.meter.TransportFault(ModuleType)
		b.logger.Warn("vmix request failed", "function", fn, "error", err)
		return
	}
	b.sent.Add(1)
	b.meter.MessagesSent(ModuleType, 1)
	b.logger.Debug("vmix request sent", "function", fn)
}

func (b *Bridge) Status() module.Health {
	b.mu.Lock()
	defer b.mu.Unlock()
	detail := "idle"
	if b.lastResult != "" {
		detail = b.lastResult
	}
	return module.Health{
		Connected: b.lastResult == "" || b.lastOK,
		Detail:    detail,
		Counters: map[string]int64{
			"sent":   b.sent.Load(),
			"failed": b.failed.Load(),
		},
	}
}

// Close cancels a pending overlay revert and waits for in-flight requests.
func (b *Bridge) Close() error {
	b.overlayMu.Lock()
	b.closed = true
	if b.overlayTimer != nil {
		b.overlayTimer.Stop()
	}
	b.overlayMu.Unlock()

	b.wg.Wait()
	b.client.CloseIdleConnections()
	return nil
}
