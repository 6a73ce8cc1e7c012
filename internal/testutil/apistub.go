// Package testutil provides an in-process fake of the NextDNS profile API.
package testutil

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/tidwall/gjson"
)

// Call records one request received by the stub.
type Call struct {
	Method string
	Path   string
	Body   string
	Header http.Header
}

// Reply is a scripted response.
type Reply struct {
	Status int
	Body   string
}

// NotFoundBody is the error body the API sends for unknown paths.
const NotFoundBody = `{"errors":[{"code":"notFound"}]}`

// APIStub serves /profiles/<profile>/... from in-memory state. Scripted replies for a
// method and path take precedence over the state handlers until they are used up.
type APIStub struct {
	URL     string
	Profile string

	// StickyClear accepts list clears without emptying the list.
	StickyClear bool
	// NoSuffixEndpoint answers every blocked suffix PUT with notFound.
	NoSuffixEndpoint bool

	server    *httptest.Server
	mu        sync.Mutex
	calls     []Call
	scripted  map[string][]Reply
	lists     map[string][]json.RawMessage
	resources map[string]string
}

// StartAPIStub starts a stub for profile and closes it when the test ends.
func StartAPIStub(t *testing.T, profile string) *APIStub {
	t.Helper()

	stub := &APIStub{
		Profile:   profile,
		scripted:  make(map[string][]Reply),
		lists:     make(map[string][]json.RawMessage),
		resources: make(map[string]string),
	}
	for _, name := range []string{"denylist", "allowlist", "rewrites"} {
		stub.lists[name] = nil
	}
	stub.server = httptest.NewServer(http.HandlerFunc(stub.serve))
	stub.URL = stub.server.URL
	t.Cleanup(stub.server.Close)
	return stub
}

// Script queues replies for method and path (relative to the profile).
func (s *APIStub) Script(method, path string, replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	s.scripted[key] = append(s.scripted[key], replies...)
}

// Repeat returns n copies of reply.
func Repeat(n int, reply Reply) []Reply {
	out := make([]Reply, n)
	for i := range out {
		out[i] = reply
	}
	return out
}

// SetList replaces a list with entries holding the given ids.
func (s *APIStub) SetList(name string, ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		raw, _ := json.Marshal(map[string]any{"id": id, "active": true})
		items = append(items, raw)
	}
	s.lists[name] = items
}

// ListIDs returns the ids of a list in insertion order.
func (s *APIStub) ListIDs(name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.lists[name]))
	for _, item := range s.lists[name] {
		ids = append(ids, gjson.GetBytes(item, "id").String())
	}
	return ids
}

// SetResource stores the data object returned for GET <name>.
func (s *APIStub) SetResource(name, data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[name] = data
}

// Resource returns the last body patched into name.
func (s *APIStub) Resource(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resources[name]
}

// Calls returns every request received so far.
func (s *APIStub) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Count returns how many requests matched method and started with pathPrefix.
func (s *APIStub) Count(method, pathPrefix string) int {
	n := 0
	for _, call := range s.Calls() {
		if call.Method == method && strings.HasPrefix(call.Path, pathPrefix) {
			n++
		}
	}
	return n
}

func (s *APIStub) serve(w http.ResponseWriter, r *http.Request) {
	prefix := "/profiles/" + s.Profile + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) && r.URL.Path != strings.TrimSuffix(prefix, "/") {
		writeReply(w, Reply{Status: http.StatusNotFound, Body: NotFoundBody})
		return
	}
	path := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, strings.TrimSuffix(prefix, "/")), "/")
	if r.URL.RawPath != "" {
		path = strings.TrimPrefix(strings.TrimPrefix(r.URL.RawPath, strings.TrimSuffix(prefix, "/")), "/")
	}
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: path, Body: string(body), Header: r.Header.Clone()})

	key := r.Method + " " + path
	if queue := s.scripted[key]; len(queue) > 0 {
		s.scripted[key] = queue[1:]
		writeReply(w, queue[0])
		return
	}
	writeReply(w, s.handle(r.Method, path, body))
}

func (s *APIStub) handle(method, path string, body []byte) Reply {
	name, rest, _ := strings.Cut(path, "/")

	switch {
	case method == http.MethodPatch && path == "":
		if !s.StickyClear {
			gjson.ParseBytes(body).ForEach(func(key, _ gjson.Result) bool {
				if _, ok := s.lists[key.String()]; ok {
					s.lists[key.String()] = nil
				}
				return true
			})
		}
		return Reply{Status: http.StatusOK, Body: "{}"}
	case method == http.MethodPut && name == "security" && strings.HasPrefix(rest, "blocked_tlds/"):
		if s.NoSuffixEndpoint {
			return Reply{Status: http.StatusNotFound, Body: NotFoundBody}
		}
		return Reply{Status: http.StatusOK, Body: "{}"}
	}

	if items, ok := s.lists[name]; ok {
		switch {
		case method == http.MethodGet && rest == "":
			return Reply{Status: http.StatusOK, Body: `{"data":` + encodeItems(items) + `}`}
		case method == http.MethodPost && rest == "":
			id := gjson.GetBytes(body, "id").String()
			for _, item := range items {
				if gjson.GetBytes(item, "id").String() == id && id != "" {
					return Reply{Status: http.StatusOK, Body: `{"errors":[{"code":"duplicate"}]}`}
				}
			}
			s.lists[name] = append(items, json.RawMessage(body))
			return Reply{Status: http.StatusOK, Body: `{"data":` + string(body) + `}`}
		case method == http.MethodDelete && strings.HasPrefix(rest, "hex:"):
			id := decodeHex(strings.TrimPrefix(rest, "hex:"))
			kept := items[:0:0]
			for _, item := range items {
				if gjson.GetBytes(item, "id").String() != id {
					kept = append(kept, item)
				}
			}
			if len(kept) == len(items) {
				return Reply{Status: http.StatusNotFound, Body: NotFoundBody}
			}
			s.lists[name] = kept
			return Reply{Status: http.StatusNoContent}
		}
	}

	if rest == "" {
		switch method {
		case http.MethodGet:
			data, ok := s.resources[name]
			if !ok {
				return Reply{Status: http.StatusNotFound, Body: NotFoundBody}
			}
			return Reply{Status: http.StatusOK, Body: `{"data":` + data + `}`}
		case http.MethodPatch:
			s.resources[name] = string(body)
			return Reply{Status: http.StatusOK, Body: "{}"}
		}
	}

	return Reply{Status: http.StatusNotFound, Body: NotFoundBody}
}

func encodeItems(items []json.RawMessage) string {
	if len(items) == 0 {
		return "[]"
	}
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = string(item)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// decodeHex reverses the unpadded hex id encoding for ASCII ids.
func decodeHex(value string) string {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return value
	}
	return string(raw)
}

func writeReply(w http.ResponseWriter, reply Reply) {
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if reply.Body != "" {
		_, _ = w.Write([]byte(reply.Body))
	}
}
