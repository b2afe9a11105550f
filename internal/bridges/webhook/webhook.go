// Package webhook sends HTTP requests from annotations.
//
//	http[https://example.com/hook]                            GET
//	http[https://example.com/hook, '{"scene":2,"fade":1}']    POST application/json
//	http[https://example.com/hook, '{"scene":2}', token]      POST with Authorization: Bearer token
//
// Bodies containing commas must be quoted.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/cuebridge/internal/module"
	"github.com/nerrad567/cuebridge/internal/trigger"
)

// ModuleType is the registry type name.
const ModuleType = "webhook"

const defaultTimeout = 5 * time.Second

// Settings are decoded from the module's settings map.
type Settings struct {
	Timeout time.Duration `mapstructure:"timeout"`
	// Headers are added to every request.
	Headers map[string]string `mapstructure:"headers"`
}

// Factory returns the registry factory for the webhook bridge.
func Factory() module.Factory {
	return module.Factory{
		Type:        ModuleType,
		Description: "HTTP GET/POST requests",
		New:         New,
	}
}

// Bridge is the webhook module.
type Bridge struct {
	client  *http.Client
	headers map[string]string
	logger  module.Logger
	meter   module.Meter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	lastStatus string
	lastOK     bool

	sent   atomic.Int64
	failed atomic.Int64
}

var (
	_ module.Module         = (*Bridge)(nil)
	_ module.StatusReporter = (*Bridge)(nil)
)

// New builds the bridge.
func New(_ string, settings map[string]any, deps module.Deps) (module.Module, error) {
	cfg := Settings{Timeout: defaultTimeout}
	if err := module.DecodeSettings(settings, &cfg); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	deps = deps.WithDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		client:  &http.Client{Timeout: cfg.Timeout},
		headers: cfg.Headers,
		logger:  deps.Logger,
		meter:   deps.Meter,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

func (b *Bridge) Triggers() []trigger.Spec {
	return []trigger.Spec{{
		Tag:         "http",
		Description: "GET the url, or POST the json body to it when one is given",
		Args: []trigger.ArgSpec{
			{Name: "url", Type: trigger.ArgString, Description: "absolute http or https url"},
			{Name: "body", Type: trigger.ArgString, Description: "json request body", Optional: true},
			{Name: "bearer", Type: trigger.ArgString, Description: "bearer token", Optional: true},
		},
	}}
}

// NewRequest builds the request for one call. The body is sent verbatim
// after checking it is valid JSON.
func (b *Bridge) NewRequest(ctx context.Context, args trigger.Args) (*http.Request, error) {
	raw := strings.TrimSpace(args.Text(0))
	if raw == "" {
		return nil, ErrMissingURL
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}

	var req *http.Request
	body := strings.TrimSpace(args.Text(1))
	if body == "" {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	} else {
		if !json.Valid([]byte(body)) {
			return nil, fmt.Errorf("webhook: body is not valid json")
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader([]byte(body)))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("webhook: building request: %w", err)
	}

	for k, v := range b.headers {
		req.Header.Set(k, v)
	}
	if token := strings.TrimSpace(args.Text(2)); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// Fire validates the call and performs the request in the background.
func (b *Bridge) Fire(_ context.Context, call trigger.Call) error {
	req, err := b.NewRequest(b.ctx, call.Args)
	if err != nil {
		return err
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.record(req, b.do(req))
	}()
	return nil
}

func (b *Bridge) do(req *http.Request) error {
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
	}
	return nil
}

func (b *Bridge) record(req *http.Request, err error) {
	target := req.Method + " " + req.URL.Redacted()

	b.mu.Lock()
	b.lastOK = err == nil
	if err != nil {
		b.lastStatus = target + ": " + err.Error()
	} else {
		b.lastStatus = target + ": ok"
	}
	b.mu.Unlock()

	if err != nil {
		b.failed.Add(1)
		b.meter.TransportFault(ModuleType)
		b.logger.Warn("webhook failed", "method", req.Method, "url", req.URL.Redacted(), "error", err)
		return
	}
	b.sent.Add(1)
	b.meter.MessagesSent(ModuleType, 1)
	b.logger.Debug("webhook sent", "method", req.Method, "url", req.URL.Redacted())
}

func (b *Bridge) Status() module.Health {
	b.mu.Lock()
	defer b.mu.Unlock()
	detail := "idle"
	if b.lastStatus != "" {
		detail = b.lastStatus
	}
	return module.Health{
		Connected: b.lastStatus == "" || b.lastOK,
		Detail:    detail,
		Counters: map[string]int64{
			"sent":   b.sent.Load(),
			"failed": b.failed.Load(),
		},
	}
}

// Close aborts in-flight requests and waits for them to finish.
func (b *Bridge) Close() error {
	b.cancel()
	b.wg.Wait()
	b.client.CloseIdleConnections()
	return nil
}
