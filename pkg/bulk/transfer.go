package bulk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/go-viper/mapstructure/v2"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/sync/errgroup"

	"nxenhance/pkg/nextdns"
)

var (
	singletonImports = []nextdns.Resource{nextdns.Security, nextdns.Privacy, nextdns.ParentalControl, nextdns.Settings}
	listImports      = []nextdns.Resource{nextdns.Rewrites, nextdns.Denylist, nextdns.Allowlist}
)

// ListReport counts the item requests of one imported list.
type ListReport struct {
	Total    int
	Imported int
	Finished int
}

// ImportReport holds the outcome of every resource touched by Import. A nil entry in
// Patched means the patch succeeded.
type ImportReport struct {
	Patched map[nextdns.Resource]error
	Lists   map[nextdns.Resource]ListReport
}

// Failed reports whether any patch or list item did not make it.
func (r *ImportReport) Failed() bool {
	for _, err := range r.Patched {
		if err != nil {
			return true
		}
	}
	for _, list := range r.Lists {
		if list.Imported < list.Total {
			return true
		}
	}
	return false
}

type listCounter struct {
	total    int
	imported atomic.Int64
	finished atomic.Int64
}

// Import applies an exported configuration document. Singleton resources are patched one
// after another, each failure logged and recorded without stopping the rest. The three
// lists are then replayed item by item, newest last, with the item delay before every
// request; completion is detected by polling the finished counters.
func (o *Orchestrator) Import(ctx context.Context, document []byte) (*ImportReport, error) {
	if !gjson.ValidBytes(document) {
		return nil, fmt.Errorf("import: document is not valid JSON")
	}
	doc := gjson.ParseBytes(document)
	if !doc.IsObject() {
		return nil, fmt.Errorf("import: document is not a JSON object")
	}

	o.progress.Start("Importing configuration")
	report := &ImportReport{
		Patched: make(map[nextdns.Resource]error),
		Lists:   make(map[nextdns.Resource]ListReport),
	}

	for _, res := range singletonImports {
		value := doc.Get(string(res))
		if !value.Exists() {
			continue
		}
		body := json.RawMessage(value.Raw)
		if res == nextdns.ParentalControl {
			reduced, err := reduceParentalControl(value.Raw)
			if err != nil {
				o.log.Error("error importing settings", "resource", res, "error", err)
				report.Patched[res] = err
				continue
			}
			body = reduced
		}
		o.log.Info("importing settings", "resource", res)
		_, err := o.client.Request(ctx, http.MethodPatch, string(res), body)
		if err != nil {
			o.log.Error("error importing settings", "resource", res, "error", err)
		}
		report.Patched[res] = err
	}

	counters := make(map[nextdns.Resource]*listCounter, len(listImports))
	g, gctx := errgroup.WithContext(ctx)
	for _, res := range listImports {
		items := doc.Get(string(res)).Array()
		counter := &listCounter{total: len(items)}
		counters[res] = counter
		g.Go(func() error {
			return o.importItems(gctx, ctx, res, items, counter)
		})
	}
	if err := g.Wait(); err != nil {
		o.progress.Done()
		return report, err
	}

	for !allFinished(counters) {
		if err := o.sleep(ctx, o.pollInterval); err != nil {
			o.progress.Done()
			return report, err
		}
	}

	for res, counter := range counters {
		report.Lists[res] = ListReport{
			Total:    counter.total,
			Imported: int(counter.imported.Load()),
			Finished: int(counter.finished.Load()),
		}
	}
	o.log.Info("all import requests have finished",
		"denylist", fmt.Sprintf("%d/%d", report.Lists[nextdns.Denylist].Imported, report.Lists[nextdns.Denylist].Total),
		"allowlist", fmt.Sprintf("%d/%d", report.Lists[nextdns.Allowlist].Imported, report.Lists[nextdns.Allowlist].Total),
		"rewrites", fmt.Sprintf("%d/%d", report.Lists[nextdns.Rewrites].Imported, report.Lists[nextdns.Rewrites].Total))
	o.finish(ctx)
	return report, nil
}

// importItems paces the item requests of one list. The requests themselves are not
// awaited; each one bumps the finished counter when it completes. Requests use reqCtx so
// that a failing sibling list does not abort them.
func (o *Orchestrator) importItems(ctx, reqCtx context.Context, list nextdns.Resource, items []gjson.Result, counter *listCounter) error {
	for i := len(items) - 1; i >= 0; i-- {
		if err := o.sleep(ctx, o.itemDelay); err != nil {
			counter.finished.Add(int64(i + 1))
			return err
		}
		item := json.RawMessage(items[i].Raw)
		go func() {
			defer counter.finished.Add(1)
			body, err := o.client.Request(reqCtx, http.MethodPost, string(list), item)
			if err != nil {
				o.log.Error("error importing item", "list", list, "item", string(item), "error", err)
				return
			}
			if !nextdns.Accepted(body) {
				o.log.Warn("import item rejected", "list", list, "item", string(item), "reply", strings.TrimSpace(body))
				return
			}
			counter.imported.Add(1)
		}()
	}
	return nil
}

func allFinished(counters map[nextdns.Resource]*listCounter) bool {
	for _, counter := range counters {
		if int(counter.finished.Load()) < counter.total {
			return false
		}
	}
	return true
}

type parentalToggle struct {
	ID     string `mapstructure:"id" json:"id"`
	Active bool   `mapstructure:"active" json:"active"`
}

type parentalControl struct {
	SafeSearch            any              `mapstructure:"safeSearch" json:"safeSearch,omitempty"`
	YoutubeRestrictedMode any              `mapstructure:"youtubeRestrictedMode" json:"youtubeRestrictedMode,omitempty"`
	BlockBypass           any              `mapstructure:"blockBypass" json:"blockBypass,omitempty"`
	Services              []parentalToggle `mapstructure:"services" json:"services"`
	Categories            []parentalToggle `mapstructure:"categories" json:"categories"`
}

// reduceParentalControl keeps the writable parental control fields; services and
// categories shrink to {id, active}.
func reduceParentalControl(raw string) (json.RawMessage, error) {
	var input map[string]any
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return nil, fmt.Errorf("decode parental control: %w", err)
	}
	var out parentalControl
	if err := mapstructure.Decode(input, &out); err != nil {
		return nil, fmt.Errorf("reduce parental control: %w", err)
	}
	if out.Services == nil {
		out.Services = []parentalToggle{}
	}
	if out.Categories == nil {
		out.Categories = []parentalToggle{}
	}
	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode parental control: %w", err)
	}
	return body, nil
}

// ExportFile is a rendered configuration export.
type ExportFile struct {
	Name string
	Data []byte
}

// ExportFileName returns the download name of an export.
func ExportFileName(name, profile string) string {
	return fmt.Sprintf("%s-%s-Export.json", name, profile)
}

var exportReductions = []struct {
	path string
	keys []string
}{
	{"privacy.blocklists", []string{"id"}},
	{"rewrites", []string{"name", "content"}},
	{"parentalcontrol.services", []string{"id", "active", "recreation"}},
}

// Export reads every profile resource and renders the reduced export document.
func (o *Orchestrator) Export(ctx context.Context, name, profile string) (ExportFile, error) {
	o.progress.Start("Exporting configuration")
	defer o.progress.Done()

	resources := nextdns.ExportResources
	data := make([]string, len(resources))
	g, gctx := errgroup.WithContext(ctx)
	for i, res := range resources {
		g.Go(func() error {
			body, err := o.client.Request(gctx, http.MethodGet, string(res), nil)
			if err != nil {
				return fmt.Errorf("export %s: %w", res, err)
			}
			value := gjson.Get(body, "data")
			if !value.Exists() {
				return fmt.Errorf("export %s: reply has no data", res)
			}
			data[i] = value.Raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		o.log.Error("export failed", "error", err)
		return ExportFile{}, err
	}

	doc, err := buildExport(resources, data)
	if err != nil {
		return ExportFile{}, err
	}
	file := ExportFile{
		Name: ExportFileName(name, profile),
		Data: []byte(gjson.Get(doc, "@pretty").Raw),
	}
	o.log.Info("exported configuration", "file", file.Name, "bytes", len(file.Data))
	return file, nil
}

func buildExport(resources []nextdns.Resource, data []string) (string, error) {
	doc := "{}"
	var err error
	for i, res := range resources {
		if doc, err = sjson.SetRaw(doc, string(res), data[i]); err != nil {
			return "", fmt.Errorf("export %s: %w", res, err)
		}
	}
	for _, r := range exportReductions {
		if doc, err = reduceArray(doc, r.path, r.keys...); err != nil {
			return "", fmt.Errorf("reduce %s: %w", r.path, err)
		}
	}
	return doc, nil
}

// reduceArray replaces the array at path with copies of its objects holding only keys.
func reduceArray(doc, path string, keys ...string) (string, error) {
	arr := gjson.Get(doc, path)
	if !arr.IsArray() {
		return doc, nil
	}
	out := "[]"
	for _, item := range arr.Array() {
		obj := "{}"
		for _, key := range keys {
			value := item.Get(key)
			if !value.Exists() {
				continue
			}
			var err error
			if obj, err = sjson.SetRaw(obj, key, value.Raw); err != nil {
				return "", err
			}
		}
		var err error
		if out, err = sjson.SetRaw(out, "-1", obj); err != nil {
			return "", err
		}
	}
	return sjson.SetRaw(doc, path, out)
}
