// Package devtoolstest provides a fake debug target for tests.
package devtoolstest

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/devtools"
)

// DefaultWebKitVersion is served by /json/version unless overridden.
const DefaultWebKitVersion = "537.36 (@cfede9db1d154de0468cb0538479f34c0755a0f4)"

// DefaultBuildHash is the hash embedded in DefaultWebKitVersion.
const DefaultBuildHash = "cfede9db1d154de0468cb0538479f34c0755a0f4"

// SeenHostHeader carries the Host header the target received, echoed back
// on every non-introspection response.
const SeenHostHeader = "X-Seen-Host"

// Target is an in-process stand-in for a browser's remote debugging port.
//
// It serves /json/list and /json/version, echoes WebSocket messages on
// /devtools/page/*, and answers everything else with the request line.
type Target struct {
	Server *httptest.Server

	mu       sync.Mutex
	pages    []devtools.PageDescriptor
	version  devtools.VersionInfo
	status   map[string]int
	calls    map[string]int
	notReady int
	hosts    []string
	tunnels  []*websocket.Conn
	upgrader websocket.Upgrader
}

// New starts a fake target that has one debuggable page, "ABC".
func New(t testing.TB) *Target {
	t.Helper()

	f := &Target{
		status: make(map[string]int),
		calls:  make(map[string]int),
		version: devtools.VersionInfo{
			Browser:         "HeadlessChrome/120.0.6099.109",
			ProtocolVersion: "1.3",
			WebKitVersion:   DefaultWebKitVersion,
		},
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/json/list", f.handleList)
	mux.HandleFunc("/json/version", f.handleVersion)
	mux.HandleFunc("/devtools/page/", f.handlePage)
	mux.HandleFunc("/", f.handleEcho)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)

	f.pages = []devtools.PageDescriptor{f.Page("ABC", "https://example.com/")}
	return f
}

// Close shuts the target down and drops open tunnels.
func (f *Target) Close() {
	f.mu.Lock()
	for _, c := range f.tunnels {
		c.Close()
	}
	f.tunnels = nil
	f.mu.Unlock()
	f.Server.Close()
}

// Host returns the host the target listens on.
func (f *Target) Host() string {
	host, _, _ := net.SplitHostPort(f.Server.Listener.Addr().String())
	return host
}

// Port returns the port the target listens on.
func (f *Target) Port() int {
	_, port, _ := net.SplitHostPort(f.Server.Listener.Addr().String())
	p, _ := strconv.Atoi(port)
	return p
}

// Page builds a page entry whose frontend URL points back at this target.
func (f *Target) Page(id, url string) devtools.PageDescriptor {
	return devtools.PageDescriptor{
		ID:                   id,
		Type:                 "page",
		Title:                id,
		URL:                  url,
		DevtoolsFrontendURL:  fmt.Sprintf("/devtools/inspector.html?ws=localhost:%d/devtools/page/%s", f.Port(), id),
		WebSocketDebuggerURL: fmt.Sprintf("ws://localhost:%d/devtools/page/%s", f.Port(), id),
	}
}

// SetPages replaces the /json/list payload.
func (f *Target) SetPages(pages ...devtools.PageDescriptor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = pages
}

// SetWebKitVersion replaces the version string in /json/version.
func (f *Target) SetWebKitVersion(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version.WebKitVersion = v
}

// SetStatus makes path answer with code and no body. Code 0 restores the
// normal response.
func (f *Target) SetStatus(path string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[path] = code
}

// NotReadyFor makes the next n /json/list requests report only about:blank.
func (f *Target) NotReadyFor(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notReady = n
}

// Calls returns how many requests path has received.
func (f *Target) Calls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

// Hosts returns the Host headers seen so far, oldest first.
func (f *Target) Hosts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.hosts...)
}

// TunnelCount returns how many WebSocket connections were accepted.
func (f *Target) TunnelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tunnels)
}

func (f *Target) record(r *http.Request) (status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[r.URL.Path]++
	f.hosts = append(f.hosts, r.Host)
	return f.status[r.URL.Path]
}

func (f *Target) handleList(w http.ResponseWriter, r *http.Request) {
	if code := f.record(r); code != 0 {
		w.WriteHeader(code)
		return
	}

	f.mu.Lock()
	pages := f.pages
	if f.notReady > 0 {
		f.notReady--
		pages = []devtools.PageDescriptor{{ID: "blank", Type: "page", URL: "about:blank"}}
	}
	f.mu.Unlock()

	writeJSON(w, pages)
}

func (f *Target) handleVersion(w http.ResponseWriter, r *http.Request) {
	if code := f.record(r); code != 0 {
		w.WriteHeader(code)
		return
	}

	f.mu.Lock()
	version := f.version
	f.mu.Unlock()

	writeJSON(w, version)
}

// handlePage echoes every WebSocket message back to the sender.
func (f *Target) handlePage(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		f.handleEcho(w, r)
		return
	}
	f.record(r)

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	f.mu.Lock()
	f.tunnels = append(f.tunnels, conn)
	f.mu.Unlock()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteMessage(mt, data); err != nil {
			return
		}
	}
}

func (f *Target) handleEcho(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	w.Header().Set(SeenHostHeader, r.Host)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "%s %s", r.Method, r.URL.RequestURI())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.Write(data)
}
