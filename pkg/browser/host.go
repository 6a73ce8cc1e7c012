// Package browser attaches to a running Chromium tab over the DevTools protocol and
// exposes it as the page the engine decorates.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/mafredri/cdp/rpcc"

	"nxenhance/pkg/dom"
)

const (
	DefaultDevToolsURL = "http://127.0.0.1:9222"
	DefaultTargetMatch = "my.nextdns.io"
	defaultEvalTimeout = 10 * time.Second
)

// ErrNoTarget is returned when no open tab matches the target filter.
var ErrNoTarget = errors.New("no matching browser tab")

// Options configures Attach.
type Options struct {
	// DevToolsURL is the HTTP endpoint of the browser's remote debugging port.
	DevToolsURL string
	// TargetMatch selects the first page whose URL contains it.
	TargetMatch string
	// CookieURLs are the URLs whose cookies SessionCookies returns.
	CookieURLs []string
	// EvalTimeout bounds page scripts that do not wait for the user.
	EvalTimeout time.Duration
	Logger      *slog.Logger
}

// evaluator runs a script in the page and returns its JSON result.
type evaluator func(ctx context.Context, expression string) (json.RawMessage, error)

// cookieReader returns the browser's cookies for urls.
type cookieReader func(ctx context.Context, urls []string) ([]*http.Cookie, error)

// Host is one attached tab. Sync and Document belong to the engine loop; the dialog,
// reload, download and cookie methods are safe from any goroutine.
type Host struct {
	eval       evaluator
	cookies    cookieReader
	cookieURLs []string
	timeout    time.Duration
	log        *slog.Logger
	conn       *rpcc.Conn

	doc       *dom.Document
	installed bool

	mu       sync.Mutex
	location string
}

// Attach connects to the first tab matching opts.TargetMatch.
func Attach(ctx context.Context, opts Options) (*Host, error) {
	if opts.DevToolsURL == "" {
		opts.DevToolsURL = DefaultDevToolsURL
	}
	if opts.TargetMatch == "" {
		opts.TargetMatch = DefaultTargetMatch
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	dt := devtool.New(opts.DevToolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list browser targets: %w", err)
	}
	var sel *devtool.Target
	for _, t := range targets {
		if t.Type == devtool.Page && strings.Contains(t.URL, opts.TargetMatch) {
			sel = t
			break
		}
	}
	if sel == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoTarget, opts.TargetMatch)
	}

	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		return nil, fmt.Errorf("connect to tab: %w", err)
	}
	client := cdp.NewClient(conn)

	h := newHost(runtimeEvaluator(client), networkCookies(client), opts, log)
	h.conn = conn
	h.location = sel.URL
	log.Info("attached to browser tab", "title", sel.Title, "url", sel.URL)
	return h, nil
}

func newHost(eval evaluator, cookies cookieReader, opts Options, log *slog.Logger) *Host {
	if log == nil {
		log = slog.Default()
	}
	timeout := opts.EvalTimeout
	if timeout <= 0 {
		timeout = defaultEvalTimeout
	}
	urls := opts.CookieURLs
	if len(urls) == 0 {
		urls = []string{"https://api.nextdns.io", "https://my.nextdns.io"}
	}
	doc, _ := dom.Parse("<html><head></head><body></body></html>")
	return &Host{
		eval:       eval,
		cookies:    cookies,
		cookieURLs: urls,
		timeout:    timeout,
		log:        log,
		doc:        doc,
	}
}

func runtimeEvaluator(client *cdp.Client) evaluator {
	return func(ctx context.Context, expression string) (json.RawMessage, error) {
		args := runtime.NewEvaluateArgs(expression).
			SetReturnByValue(true).
			SetAwaitPromise(true).
			SetUserGesture(true)
		reply, err := client.Runtime.Evaluate(ctx, args)
		if err != nil {
			return nil, err
		}
		if ex := reply.ExceptionDetails; ex != nil {
			text := ex.Text
			if ex.Exception != nil && ex.Exception.Description != nil {
				text = *ex.Exception.Description
			}
			return nil, fmt.Errorf("page script failed: %s", text)
		}
		return reply.Result.Value, nil
	}
}

func networkCookies(client *cdp.Client) cookieReader {
	return func(ctx context.Context, urls []string) ([]*http.Cookie, error) {
		reply, err := client.Network.GetCookies(ctx, network.NewGetCookiesArgs().SetURLs(urls))
		if err != nil {
			return nil, err
		}
		out := make([]*http.Cookie, 0, len(reply.Cookies))
		for _, c := range reply.Cookies {
			out = append(out, &http.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Secure:   c.Secure,
				HttpOnly: c.HTTPOnly,
			})
		}
		return out, nil
	}
}

// Close releases the DevTools connection.
func (h *Host) Close() error {
	if h.conn == nil {
		return nil
	}
	return h.conn.Close()
}

// Document returns the mirror of the page.
func (h *Host) Document() *dom.Document {
	return h.doc
}

// Location returns the URL seen by the last Sync, reading it from the page before the
// first one.
func (h *Host) Location(ctx context.Context) (string, error) {
	h.mu.Lock()
	location := h.location
	h.mu.Unlock()
	if location != "" && h.installed {
		return location, nil
	}
	var href string
	if err := h.call(ctx, locationJS, &href); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	h.setLocation(href)
	return href, nil
}

func (h *Host) setLocation(location string) {
	h.mu.Lock()
	h.location = location
	h.mu.Unlock()
}

type drainReply struct {
	Location string       `json:"location"`
	Records  []dom.Record `json:"records"`
	Events   []dom.Event  `json:"events"`
}

// Sync replays the mirror's edits in the page, then pulls page changes and interactions.
// A page that lost the bootstrap (reload, navigation) or a mirror that fell out of sync is
// re-read from scratch.
func (h *Host) Sync(ctx context.Context) ([]dom.Event, error) {
	if !h.installed {
		if err := h.install(ctx); err != nil {
			return nil, err
		}
	}

	if effects := h.doc.TakeEffects(); len(effects) > 0 {
		payload, err := json.Marshal(effects)
		if err != nil {
			return nil, fmt.Errorf("encode effects: %w", err)
		}
		var missed int
		if err := h.call(ctx, "(window.__nxe ? window.__nxe.apply("+string(payload)+") : -1)", &missed); err != nil {
			return nil, fmt.Errorf("apply effects: %w", err)
		}
		switch {
		case missed < 0:
			h.log.Info("page lost its state, re-reading")
			return nil, h.install(ctx)
		case missed > 0:
			h.log.Debug("effects for elements no longer in the page", "count", missed)
		}
	}

	var reply *drainReply
	if err := h.call(ctx, drainJS, &reply); err != nil {
		return nil, fmt.Errorf("drain page: %w", err)
	}
	if reply == nil {
		h.log.Info("page lost its state, re-reading")
		return nil, h.install(ctx)
	}
	h.setLocation(reply.Location)

	if err := h.doc.ApplyRemote(reply.Records); err != nil {
		if !errors.Is(err, dom.ErrOutOfSync) {
			return nil, fmt.Errorf("apply page changes: %w", err)
		}
		h.log.Debug("mirror out of sync, re-reading page", "error", err)
		if err := h.snapshot(ctx); err != nil {
			return nil, err
		}
	}
	return reply.Events, nil
}

// install injects the bootstrap if needed and replaces the mirror with a fresh snapshot.
func (h *Host) install(ctx context.Context) error {
	var present bool
	if err := h.call(ctx, presenceJS, &present); err != nil {
		return fmt.Errorf("check page bootstrap: %w", err)
	}
	if !present {
		if err := h.call(ctx, bootstrapJS, nil); err != nil {
			return fmt.Errorf("install bootstrap: %w", err)
		}
		h.log.Debug("bootstrap installed")
	}
	if err := h.snapshot(ctx); err != nil {
		return err
	}
	h.installed = true
	return nil
}

func (h *Host) snapshot(ctx context.Context) error {
	var page string
	if err := h.call(ctx, snapshotJS, &page); err != nil {
		return fmt.Errorf("snapshot page: %w", err)
	}
	if err := h.doc.Reset(page); err != nil {
		return err
	}
	var href string
	if err := h.call(ctx, locationJS, &href); err == nil {
		h.setLocation(href)
	}
	return nil
}

// Reload reloads the tab. The next Sync re-reads the page.
func (h *Host) Reload(ctx context.Context) error {
	if err := h.call(ctx, reloadJS, nil); err != nil {
		return fmt.Errorf("reload page: %w", err)
	}
	return nil
}

// Confirm shows a native confirmation dialog and waits for the user.
func (h *Host) Confirm(ctx context.Context, message string) (bool, error) {
	var ok bool
	if err := h.callUser(ctx, "confirm("+jsString(message)+")", &ok); err != nil {
		return false, fmt.Errorf("confirm: %w", err)
	}
	return ok, nil
}

// Alert shows a native alert and waits until it is dismissed.
func (h *Host) Alert(ctx context.Context, message string) error {
	if err := h.callUser(ctx, "alert("+jsString(message)+")", nil); err != nil {
		return fmt.Errorf("alert: %w", err)
	}
	return nil
}

// Download offers data as a JSON file download.
func (h *Host) Download(ctx context.Context, name string, data []byte) error {
	expr := `(function (name, text) {
  var url = URL.createObjectURL(new Blob([text], { type: 'application/json' }));
  var a = document.createElement('a');
  a.href = url;
  a.download = name;
  document.body.appendChild(a);
  a.click();
  a.remove();
  URL.revokeObjectURL(url);
  return true;
})(` + jsString(name) + `, ` + jsString(string(data)) + `)`
	if err := h.call(ctx, expr, nil); err != nil {
		return fmt.Errorf("download %s: %w", name, err)
	}
	h.log.Info("download offered", "file", name, "bytes", len(data))
	return nil
}

// SessionCookies returns the cookies of the logged-in web session.
func (h *Host) SessionCookies(ctx context.Context) ([]*http.Cookie, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	cookies, err := h.cookies(ctx, h.cookieURLs)
	if err != nil {
		return nil, fmt.Errorf("read session cookies: %w", err)
	}
	return cookies, nil
}

// call evaluates expression with the script timeout and decodes the result into out.
func (h *Host) call(ctx context.Context, expression string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.evaluate(ctx, expression, out)
}

// callUser evaluates without the script timeout; dialogs wait for the user.
func (h *Host) callUser(ctx context.Context, expression string, out any) error {
	return h.evaluate(ctx, expression, out)
}

func (h *Host) evaluate(ctx context.Context, expression string, out any) error {
	raw, err := h.eval(ctx, expression)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode script result: %w", err)
	}
	return nil
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
