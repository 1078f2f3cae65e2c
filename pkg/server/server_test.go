package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fcapolini/markout/client"
	"github.com/fcapolini/markout/internal/errors"
	"github.com/fcapolini/markout/pkg/dom"
	"github.com/fcapolini/markout/pkg/middleware"
	"github.com/fcapolini/markout/pkg/page"
)

const indexHTML = `<html data-markout="0"><body><p data-markout="1"><!---t0-->x<!---/--></p></body></html>`

const indexSpec = `
id: "0"
values:
  name: Ada
children:
  - id: "1"
    values:
      text$0: {fn: concat, args: [{val: "Hello, "}, name]}
`

func newTestServer(t *testing.T, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"index.html": indexHTML,
		"index.yaml": indexSpec,
		"about.html": "<p>static</p>",
		"bad.html":   indexHTML,
		"bad.yaml":   `{id: "0", values: {a: {fn: nope}}}`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	s := New(page.NewFSStore(dir), opts...)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, string(body)
}

func TestPageName(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"", "index"},
		{"/", "index"},
		{"/about", "about"},
		{"/about.html", "about"},
		{"/blog/", "blog/index"},
		{"/blog/first", "blog/first"},
	}
	for _, tt := range tests {
		if got := PageName(tt.path); got != tt.want {
			t.Errorf("PageName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestServePages(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/", http.StatusOK, `<p data-markout="1"><!---t0-->Hello, Ada<!---/--></p>`},
		{"/index.html", http.StatusOK, "Hello, Ada"},
		{"/about", http.StatusOK, "<p>static</p>"},
		{"/missing", http.StatusNotFound, "E301"},
		{"/bad", http.StatusInternalServerError, "Internal Server Error"},
		{"/healthz", http.StatusOK, `"status":"ok"`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, body := get(t, ts.URL+tt.path)
			if status != tt.status {
				t.Errorf("status = %d, want %d (%s)", status, tt.status, body)
			}
			if !strings.Contains(body, tt.body) {
				t.Errorf("body %q does not contain %q", body, tt.body)
			}
		})
	}
}

func TestClientScript(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + client.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/javascript") {
		t.Errorf("unexpected response %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(string(body), "window.markout") {
		t.Error("expected the live client script")
	}

	cfg := DefaultConfig()
	cfg.Live = false
	_, static := newTestServer(t, WithConfig(cfg))
	if status, _ := get(t, static.URL+client.Path); status != http.StatusNotFound {
		t.Errorf("expected no client script without live sessions, got %d", status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := middleware.Prometheus(middleware.WithRegistry(reg))
	_, ts := newTestServer(t, WithMetrics(m, reg))

	get(t, ts.URL+"/")
	status, body := get(t, ts.URL+"/metrics")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	for _, want := range []string{
		`markout_http_requests_total{method="GET",route="/*",status="200"} 1`,
		"markout_refresh_duration_seconds_count",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output lacks %q", want)
		}
	}
}

func TestMetricsDisabled(t *testing.T) {
	_, ts := newTestServer(t)
	// Without metrics, /metrics is just another page name.
	if status, _ := get(t, ts.URL+"/metrics"); status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
}

func dial(t *testing.T, ts *httptest.Server, pagePath string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + LivePath + pagePath
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial %s: %v (status %d)", pagePath, err, status)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readReply(t *testing.T, conn *websocket.Conn) Reply {
	t.Helper()
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	// Decode into a loose shape: MarkoutError has no JSON decoder.
	var raw struct {
		Session string          `json:"session"`
		Seq     uint64          `json:"seq"`
		Patches []dom.Patch     `json:"patches"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	r := Reply{Session: raw.Session, Seq: raw.Seq, Patches: raw.Patches}
	if raw.Error != nil {
		var e struct {
			Code string `json:"code"`
		}
		json.Unmarshal(raw.Error, &e)
		r.Error = &errors.MarkoutError{Code: e.Code}
	}
	return r
}

func TestLiveSession(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dial(t, ts, "/index")

	hello := readReply(t, conn)
	if hello.Session == "" {
		t.Fatalf("expected a hello with a session id, got %+v", hello)
	}
	if n := s.Sessions(); n != 1 {
		t.Errorf("expected 1 open session, got %d", n)
	}

	if err := conn.WriteJSON(Message{Scope: "0", Key: "name", Value: "Grace"}); err != nil {
		t.Fatal(err)
	}
	got := readReply(t, conn)
	want := Reply{Seq: 1, Patches: []dom.Patch{{Op: dom.PatchSetText, Scope: "1", Value: "Hello, Grace"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reply mismatch (-want +got):\n%s", diff)
	}

	// Same value again: nothing changes, but the message is acknowledged.
	conn.WriteJSON(Message{Scope: "0", Key: "name", Value: "Grace"})
	if got := readReply(t, conn); got.Seq != 2 || len(got.Patches) != 0 {
		t.Errorf("expected an empty second reply, got %+v", got)
	}
}

func TestLiveSessionErrors(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts, "/index")
	readReply(t, conn)

	tests := []struct {
		name string
		msg  string
		code string
	}{
		{"unknown scope", `{"scope": "9", "key": "name", "value": 1}`, "E404"},
		{"unknown key", `{"scope": "1", "key": "nope", "value": 1}`, "E405"},
		{"lookup accessor", `{"scope": "1", "key": "$value", "value": 1}`, "E405"},
		{"parent accessor", `{"scope": "0", "key": "$parent", "value": null}`, "E405"},
		{"malformed", `{"scope": `, "E402"},
		{"missing key", `{"scope": "1"}`, "E402"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.msg)); err != nil {
				t.Fatal(err)
			}
			got := readReply(t, conn)
			if got.Error == nil || got.Error.Code != tt.code {
				t.Errorf("expected %s, got %+v", tt.code, got)
			}
		})
	}

	// The session survives errors.
	conn.WriteJSON(Message{Scope: "0", Key: "name", Value: "Linus"})
	if got := readReply(t, conn); got.Error != nil || len(got.Patches) != 1 {
		t.Errorf("expected patches after errors, got %+v", got)
	}
}

func TestLiveRejectedBeforeUpgrade(t *testing.T) {
	_, ts := newTestServer(t)
	tests := []struct {
		path   string
		status int
	}{
		{"/missing", http.StatusNotFound},
		{"/about", http.StatusBadRequest},
	}
	for _, tt := range tests {
		url := "ws" + strings.TrimPrefix(ts.URL, "http") + LivePath + tt.path
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			t.Errorf("%s: expected the upgrade to fail", tt.path)
			continue
		}
		if resp == nil || resp.StatusCode != tt.status {
			t.Errorf("%s: expected status %d, got %v", tt.path, tt.status, resp)
		}
	}
}

func TestLiveDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Live = false
	_, ts := newTestServer(t, WithConfig(cfg))
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + LivePath + "/index"
	if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Error("expected no live route")
	}
}

func TestShutdownClosesSessions(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "index.html"), []byte(indexHTML), 0o644)
	os.WriteFile(filepath.Join(dir, "index.yaml"), []byte(indexSpec), 0o644)
	s := New(page.NewFSStore(dir))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, ln) }()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+LivePath+"/index", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatal(err)
	}

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("expected a going away close, got %v", err)
	}
	if n := s.Sessions(); n != 0 {
		t.Errorf("expected no open session, got %d", n)
	}
}

func TestSameOriginCheck(t *testing.T) {
	tests := []struct {
		origin string
		ok     bool
	}{
		{"", true},
		{"http://example.com", true},
		{"http://evil.com", false},
		{"://bad", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := SameOriginCheck(r); got != tt.ok {
			t.Errorf("origin %q: got %v, want %v", tt.origin, got, tt.ok)
		}
	}
}
