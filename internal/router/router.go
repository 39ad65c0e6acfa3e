// Package router implements the gateway's admission-aware dispatch table.
// Routes are matched in registration order; an entry registered with a nil
// handler marks its path as the upgrade target and hands the request to the
// admit callback instead of producing a response.
package router

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
)

// Wildcard matches any method or any path when used in a table entry.
const Wildcard = "*"

// Params holds named path parameters captured by a matched pattern.
type Params map[string]string

// Response is a terminal admin response: status code, optional headers,
// optional body. Admin outcomes normally carry an empty body.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// HandlerFunc produces the terminal response for a matched request.
type HandlerFunc func(r *http.Request, p Params) Response

// AdmitFunc receives requests whose matched entry has no handler bound,
// i.e. the connection-upgrade target.
type AdmitFunc func(w http.ResponseWriter, r *http.Request, p Params)

type route struct {
	method  string
	raw     string
	pattern *regexp.Regexp // nil for the wildcard pattern
	handler HandlerFunc
}

// Table is an ordered route table. Build it once at startup; it is
// read-only while serving.
type Table struct {
	routes  []route
	admit   AdmitFunc
	methods map[string]struct{}
}

// New creates an empty table. admit handles nil-handler matches; it may be
// nil if no admission route is registered.
func New(admit AdmitFunc) *Table {
	return &Table{admit: admit, methods: make(map[string]struct{})}
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Handle appends an entry. Pattern placeholders use {name} and capture one
// or more word characters; a duplicate placeholder name within one pattern
// is a configuration error. A nil handler marks the admission route.
func (t *Table) Handle(method, pattern string, h HandlerFunc) error {
	rt := route{method: method, raw: pattern, handler: h}
	if pattern != Wildcard {
		re, err := compilePattern(pattern)
		if err != nil {
			return err
		}
		rt.pattern = re
	}
	if method != Wildcard {
		t.methods[method] = struct{}{}
	}
	t.routes = append(t.routes, rt)
	return nil
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	trimmed := strings.TrimRight(pattern, "/")
	seen := make(map[string]struct{})
	var b strings.Builder
	b.WriteString("^")
	last := 0
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(trimmed, -1) {
		b.WriteString(regexp.QuoteMeta(trimmed[last:m[0]]))
		name := trimmed[m[2]:m[3]]
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate route parameter %q in pattern %s", name, pattern)
		}
		seen[name] = struct{}{}
		fmt.Fprintf(&b, `(?P<%s>\w+)`, name)
		last = m[1]
	}
	b.WriteString(regexp.QuoteMeta(trimmed[last:]))
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// ServeHTTP dispatches one request to exactly one terminal action.
func (t *Table) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", strings.Join(t.allowedMethods(), ", "))
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	path := strings.TrimRight(r.URL.Path, "/")
	for _, rt := range t.routes {
		params, ok := rt.match(path)
		if !ok {
			continue
		}
		// A path match with the wrong method keeps iterating so a later
		// wildcard entry can still catch the request.
		if rt.method != Wildcard && rt.method != r.Method {
			continue
		}
		if rt.handler == nil {
			if t.admit != nil {
				t.admit(w, r, params)
				return
			}
			break
		}
		writeResponse(w, rt.handler(r, params))
		return
	}
	writeResponse(w, Response{Status: http.StatusNotFound})
}

func (rt route) match(path string) (Params, bool) {
	if rt.pattern == nil {
		return Params{}, true
	}
	m := rt.pattern.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	params := make(Params)
	for i, name := range rt.pattern.SubexpNames() {
		if i > 0 && name != "" {
			params[name] = m[i]
		}
	}
	return params, true
}

func (t *Table) allowedMethods() []string {
	out := make([]string, 0, len(t.methods))
	for m := range t.methods {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// writeResponse merges default headers (set only when absent) and writes
// the terminal response.
func writeResponse(w http.ResponseWriter, resp Response) {
	h := w.Header()
	for k, vs := range resp.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	if h.Get("Access-Control-Allow-Origin") == "" {
		h.Set("Access-Control-Allow-Origin", "*")
	}
	w.WriteHeader(resp.Status)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}
