package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/hashsync/pkg/format"
	"github.com/vango-dev/hashsync/pkg/hash"
	"github.com/vango-dev/hashsync/pkg/mapping"
	"github.com/vango-dev/hashsync/pkg/metrics"
	"github.com/vango-dev/hashsync/pkg/remote"
	"github.com/vango-dev/hashsync/pkg/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	srv := New(cfg)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts
}

func doJSON(t *testing.T, method, url, body string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, data
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	status, body := doJSON(t, http.MethodGet, ts.URL+"/healthz", "")
	if status != http.StatusOK || strings.TrimSpace(string(body)) != "ok" {
		t.Errorf("GET /healthz = %d %q", status, body)
	}
}

func TestFormatAPI(t *testing.T) {
	_, ts := newTestServer(t, Config{Format: format.NewQuery()})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   string
	}{
		{"query parameters keep order", http.MethodGet, "/api/format?page=home&debug&q=a+b", "", "page=home&debug&q=a+b"},
		{"no parameters", http.MethodGet, "/api/format", "", ""},
		{"json body", http.MethodPost, "/api/format", `{"data":{"z":4,"page":"x y"}}`, "z=4&page=x+y"},
		{"null data", http.MethodPost, "/api/format", `{"data":null}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doJSON(t, tt.method, ts.URL+tt.path, tt.body)
			if status != http.StatusOK {
				t.Fatalf("status = %d, body %s", status, body)
			}
			var resp FormatResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Hash != tt.want {
				t.Errorf("hash = %q, want %q", resp.Hash, tt.want)
			}
		})
	}
}

func TestParseAPI(t *testing.T) {
	_, ts := newTestServer(t, Config{Format: format.MustNew("{section}/{id}")})

	tests := []struct {
		name   string
		hash   string
		wantOK bool
		want   string
	}{
		{"matches", "#docs/intro", true, `{"section":"docs","id":"intro"}`},
		{"without hash sign", "docs/intro", true, `{"section":"docs","id":"intro"}`},
		{"no match", "#docs", false, `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(ParseRequest{Hash: tt.hash})
			status, out := doJSON(t, http.MethodPost, ts.URL+"/api/parse", string(body))
			if status != http.StatusOK {
				t.Fatalf("status = %d, body %s", status, out)
			}
			var resp struct {
				Data json.RawMessage `json:"data"`
				OK   bool            `json:"ok"`
			}
			if err := json.Unmarshal(out, &resp); err != nil {
				t.Fatal(err)
			}
			if resp.OK != tt.wantOK || string(resp.Data) != tt.want {
				t.Errorf("parse = %s %v, want %s %v", resp.Data, resp.OK, tt.want, tt.wantOK)
			}
		})
	}
}

func TestDiffAPI(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	status, body := doJSON(t, http.MethodPost, ts.URL+"/api/diff", `{"a":{"x":"1","y":"a"},"b":{"x":1,"z":true}}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %s", status, body)
	}
	var d map[string]struct {
		Op    string `json:"op"`
		Value any    `json:"value"`
	}
	if err := json.Unmarshal(body, &d); err != nil {
		t.Fatal(err)
	}
	if len(d) != 2 || d["y"].Op != "remove" || d["z"].Op != "add" {
		t.Errorf("diff = %s", body)
	}
	if _, ok := d["x"]; ok {
		t.Error(`"1" and 1 are loosely equal`)
	}

	_, body = doJSON(t, http.MethodPost, ts.URL+"/api/diff", `{"a":{"x":"1"},"b":{"x":"1"}}`)
	if strings.TrimSpace(string(body)) != "{}" {
		t.Errorf("equal mappings diff = %s, want {}", body)
	}
}

func TestBadRequests(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	tests := []struct {
		name string
		path string
		body string
	}{
		{"parse", "/api/parse", "not json"},
		{"diff", "/api/diff", `{"a":{"x":{"nested":1}}}`},
		{"format", "/api/format", `[1,2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doJSON(t, http.MethodPost, ts.URL+tt.path, tt.body)
			if status != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", status)
			}
			var resp struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Error.Code != "H400" {
				t.Errorf("code = %q, want H400", resp.Error.Code)
			}
		})
	}
}

func TestSnapshotsAPI(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"b", "a"} {
		snap := store.Snapshot{ID: id, Hash: "page=" + id, Data: mapping.New(mapping.KV("page", id)), UpdatedAt: time.Now()}
		if err := st.Save(ctx, snap); err != nil {
			t.Fatal(err)
		}
	}
	_, ts := newTestServer(t, Config{Store: st})

	status, body := doJSON(t, http.MethodGet, ts.URL+"/api/snapshots", "")
	if status != http.StatusOK || strings.TrimSpace(string(body)) != `{"ids":["a","b"]}` {
		t.Errorf("list = %d %s", status, body)
	}

	status, body = doJSON(t, http.MethodGet, ts.URL+"/api/snapshots/a", "")
	var snap store.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil || status != http.StatusOK {
		t.Fatalf("get = %d %s (%v)", status, body, err)
	}
	if snap.Hash != "page=a" || !mapping.Equal(snap.Data, mapping.New(mapping.KV("page", "a"))) {
		t.Errorf("snapshot = %+v", snap)
	}

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/snapshots/missing", http.StatusNotFound},
		{http.MethodGet, "/api/snapshots/bad.id", http.StatusBadRequest},
		{http.MethodDelete, "/api/snapshots/a", http.StatusNoContent},
		{http.MethodGet, "/api/snapshots/a", http.StatusNotFound},
	}
	for _, tt := range tests {
		if status, body := doJSON(t, tt.method, ts.URL+tt.path, ""); status != tt.want {
			t.Errorf("%s %s = %d, want %d (%s)", tt.method, tt.path, status, tt.want, body)
		}
	}
}

type wsMessage struct {
	Type    string         `json:"type"`
	Session string         `json:"session"`
	Hash    *string        `json:"hash"`
	Data    map[string]any `json:"data"`
	Diff    map[string]struct {
		Op string `json:"op"`
	} `json:"diff"`
}

func dialWS(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func readWS(t *testing.T, c *websocket.Conn) wsMessage {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg wsMessage
	if err := c.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestWebSocketSavesSnapshots(t *testing.T) {
	st := store.NewMemoryStore()
	coll := metrics.New()
	_, ts := newTestServer(t, Config{Format: format.NewQuery(), Store: st, Metrics: coll})

	c := dialWS(t, ts, "")
	if err := c.WriteJSON(remote.ClientMessage{Type: remote.TypeHello, Hash: "#page=home"}); err != nil {
		t.Fatal(err)
	}
	welcome := readWS(t, c)
	if welcome.Type != remote.TypeWelcome {
		t.Fatalf("got %+v, want welcome", welcome)
	}
	if ch := readWS(t, c); ch.Type != remote.TypeChange || ch.Diff["page"].Op != "add" {
		t.Fatalf("got %+v, want initial change", ch)
	}

	if err := c.WriteJSON(remote.ClientMessage{Type: remote.TypeHashChange, Hash: "#page=about&tab=2"}); err != nil {
		t.Fatal(err)
	}
	if ch := readWS(t, c); ch.Type != remote.TypeChange || ch.Data["page"] != "about" {
		t.Fatalf("got %+v, want change to about", ch)
	}

	snap, err := st.Load(context.Background(), welcome.Session)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Hash != "page=about&tab=2" {
		t.Errorf("saved hash = %q", snap.Hash)
	}

	status, body := doJSON(t, http.MethodGet, ts.URL+"/metrics", "")
	if status != http.StatusOK {
		t.Fatalf("GET /metrics = %d", status)
	}
	for _, want := range []string{
		"hashsync_connections_active 1",
		`hashsync_hash_reads_total{outcome="changed"} 2`,
		`hashsync_store_operations_total{op="save",result="ok"} 2`,
	} {
		if !bytes.Contains(body, []byte(want)) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestWebSocketResume(t *testing.T) {
	id := uuid.NewString()
	st := store.NewMemoryStore()
	saved := store.Snapshot{ID: id, Hash: "page=saved", Data: mapping.New(mapping.KV("page", "saved")), UpdatedAt: time.Now()}
	if err := st.Save(context.Background(), saved); err != nil {
		t.Fatal(err)
	}
	_, ts := newTestServer(t, Config{Format: format.NewQuery(), Store: st})

	c := dialWS(t, ts, "?session="+id)
	if err := c.WriteJSON(remote.ClientMessage{Type: remote.TypeHello}); err != nil {
		t.Fatal(err)
	}

	if w := readWS(t, c); w.Type != remote.TypeWelcome || w.Session != id {
		t.Fatalf("welcome = %+v, want session %s", w, id)
	}
	if ch := readWS(t, c); ch.Type != remote.TypeChange || ch.Data["page"] != "saved" {
		t.Fatalf("got %+v, want the restored data", ch)
	}
	set := readWS(t, c)
	if set.Type != remote.TypeSetHash || set.Hash == nil || *set.Hash != "page=saved" {
		t.Fatalf("got %+v, want sethash page=saved", set)
	}
}

func TestWebSocketBrowserHashWins(t *testing.T) {
	id := uuid.NewString()
	st := store.NewMemoryStore()
	_ = st.Save(context.Background(), store.Snapshot{ID: id, Data: mapping.New(mapping.KV("page", "saved"))})
	_, ts := newTestServer(t, Config{Format: format.NewQuery(), Store: st})

	c := dialWS(t, ts, "")
	if err := c.WriteJSON(remote.ClientMessage{Type: remote.TypeHello, Session: id, Hash: "page=live"}); err != nil {
		t.Fatal(err)
	}
	readWS(t, c) // welcome
	if ch := readWS(t, c); ch.Data["page"] != "live" {
		t.Errorf("got %+v, want the browser's hash", ch)
	}
}

func TestWebSocketDefaultPolicy(t *testing.T) {
	def := hash.DefaultValue(mapping.New(mapping.KV("section", "home"), mapping.KV("id", "index")))
	_, ts := newTestServer(t, Config{Format: format.MustNew("{section}/{id}"), Default: &def})

	c := dialWS(t, ts, "")
	if err := c.WriteJSON(remote.ClientMessage{Type: remote.TypeHello, Hash: "#not-a-match"}); err != nil {
		t.Fatal(err)
	}
	readWS(t, c) // welcome
	set := readWS(t, c)
	if set.Type != remote.TypeSetHash || set.Hash == nil || *set.Hash != "home/index" {
		t.Fatalf("got %+v, want sethash home/index", set)
	}
}

func TestServeShutdown(t *testing.T) {
	srv := New(Config{Logger: quietLogger(), ShutdownTimeout: 2 * time.Second})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := "ws://" + ln.Addr().String() + "/ws"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	if err := c.WriteJSON(remote.ClientMessage{Type: remote.TypeHello}); err != nil {
		t.Fatal(err)
	}
	readWS(t, c) // welcome

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return")
	}

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure) {
				t.Errorf("read after shutdown = %v, want a normal close", err)
			}
			break
		}
	}
}

func TestWebSocketRejectedAfterShutdown(t *testing.T) {
	srv, ts := newTestServer(t, Config{ShutdownTimeout: time.Second})
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	c, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		c.Close()
		t.Fatal("dial after Shutdown should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("response = %v, want 503", resp)
	}

	status, _ := doJSON(t, http.MethodGet, ts.URL+"/healthz", "")
	if status != http.StatusOK {
		t.Errorf("healthz after Shutdown = %d, want 200", status)
	}
}

func TestAllowOrigins(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header", nil, "", true},
		{"same origin", nil, "http://example.com", true},
		{"cross origin rejected", nil, "http://evil.com", false},
		{"listed origin", []string{"http://app.com"}, "http://app.com", true},
		{"wildcard", []string{"*"}, "http://any.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://example.com/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := AllowOrigins(tt.allowed)(r); got != tt.want {
				t.Errorf("AllowOrigins(%v)(%q) = %v, want %v", tt.allowed, tt.origin, got, tt.want)
			}
		})
	}
}
