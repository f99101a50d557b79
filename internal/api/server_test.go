package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jmurray2011/spindle/internal/logging"
	"github.com/jmurray2011/spindle/internal/record"
	"github.com/jmurray2011/spindle/internal/rules"
	"github.com/jmurray2011/spindle/internal/source"
	"github.com/jmurray2011/spindle/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeProvider struct {
	mu    sync.Mutex
	state source.State
}

func (p *fakeProvider) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == source.StateClosed {
		return source.ErrClosed
	}
	p.state = source.StateRunning
	return nil
}

func (p *fakeProvider) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = source.StatePaused
}

func (p *fakeProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = source.StateClosed
	return nil
}

func (p *fakeProvider) IsActive() bool { return p.State() == source.StateRunning }

func (p *fakeProvider) State() source.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fakeProvider) Name() string                    { return "app.log" }
func (p *fakeProvider) SetLogger(logging.Logger)        {}
func (p *fakeProvider) Information() source.Information { return source.Information{Name: "fake"} }
func (p *fakeProvider) Stats() map[string]int64         { return map[string]int64{"decoded": 3, "dropped": 1} }

func rec(typ, desc string) *record.Record {
	r := record.New()
	r.Type = typ
	r.Description = desc
	r.DateTime = time.Now()
	return r
}

func newTestServer(t *testing.T) (*Server, *store.Store, *fakeProvider, uuid.UUID) {
	t.Helper()
	st := store.New(store.WithMaxSize(1000))

	p := rules.NewPipeline()
	p.Classify.Add(rules.NewClassifier(
		rules.NewRule("health", rules.FieldDescription, rules.CaseSensitiveSubstring, "/health"),
		rules.Targets{Type: "NOISE"},
	))
	p.Filter.Add(rules.NewFilter(rules.NewRule("noise", rules.FieldType, rules.Exact, "NOISE")))
	p.Highlight.Add(rules.NewHighlighter(rules.NewRule("errors", rules.FieldType, rules.Exact, "ERROR"), rules.Style{Foreground: "1"}))

	fp := &fakeProvider{state: source.StateRunning}
	id := uuid.New()
	srv := NewServer(Config{
		Store:     st,
		Pipeline:  p,
		Instances: []Instance{{ID: id, URI: "file:///var/log/app.log", Kind: source.KindFile, Provider: fp}},
		Logger:    logging.NopLogger{},
	})
	t.Cleanup(func() { _ = srv.Stop() })
	return srv, st, fp, id
}

func do(t *testing.T, srv *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
}

type entriesResponse struct {
	Total   int              `json:"total"`
	Count   int              `json:"count"`
	Entries []map[string]any `json:"entries"`
}

func TestHealthEndpoint(t *testing.T) {
	srv, st, _, _ := newTestServer(t)
	st.AddBatch([]*record.Record{rec("INFO", "a")})

	w := do(t, srv, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]any
	decode(t, w, &body)
	if body["status"] != "ok" || body["entries"] != float64(1) || body["enabled"] != true {
		t.Errorf("health = %v", body)
	}
	if body["max_size"] != float64(1000) || body["dropped_notifications"] != float64(0) {
		t.Errorf("store stats = %v / %v", body["max_size"], body["dropped_notifications"])
	}
	if uptime, _ := body["uptime"].(string); !strings.HasSuffix(uptime, "s") || strings.Contains(uptime, ".") {
		t.Errorf("uptime = %v, want whole seconds", body["uptime"])
	}
}

func TestEntriesRawAndView(t *testing.T) {
	srv, st, _, _ := newTestServer(t)
	st.AddBatch([]*record.Record{
		rec("INFO", "GET /health 200"),
		rec("ERROR", "GET /orders 500"),
		rec("INFO", "GET /orders 200"),
	})

	var raw entriesResponse
	decode(t, do(t, srv, http.MethodGet, "/api/entries", nil), &raw)
	if raw.Total != 3 || len(raw.Entries) != 3 {
		t.Fatalf("raw = %+v", raw)
	}

	var view entriesResponse
	decode(t, do(t, srv, http.MethodGet, "/api/entries?view=1", nil), &view)
	if len(view.Entries) != 2 {
		t.Fatalf("view has %d entries, want 2 (health check filtered)", len(view.Entries))
	}
	if view.Entries[0]["highlight"] == nil || view.Entries[1]["highlight"] != nil {
		t.Errorf("highlight = %v / %v", view.Entries[0]["highlight"], view.Entries[1]["highlight"])
	}

	// The stored record is untouched by the view.
	if got := st.Entries()[0].Type; got != "INFO" {
		t.Errorf("stored record Type = %q after view, want INFO", got)
	}

	var limited entriesResponse
	decode(t, do(t, srv, http.MethodGet, "/api/entries?limit=1", nil), &limited)
	if len(limited.Entries) != 1 || limited.Entries[0]["description"] != "GET /orders 200" {
		t.Errorf("limit=1 = %+v", limited.Entries)
	}

	if w := do(t, srv, http.MethodGet, "/api/entries?limit=-2", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", w.Code)
	}
	if w := do(t, srv, http.MethodGet, "/api/entries?since=yesterday-ish", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad since status = %d", w.Code)
	}
}

func TestEntriesSince(t *testing.T) {
	srv, st, _, _ := newTestServer(t)
	old := rec("INFO", "old")
	old.DateTime = time.Now().Add(-2 * time.Hour)
	st.AddBatch([]*record.Record{old, rec("INFO", "recent")})

	var body entriesResponse
	decode(t, do(t, srv, http.MethodGet, "/api/entries?since=30m", nil), &body)
	if len(body.Entries) != 1 || body.Entries[0]["description"] != "recent" {
		t.Errorf("since=30m = %+v", body.Entries)
	}
}

func TestNewEntriesAndClear(t *testing.T) {
	srv, st, _, _ := newTestServer(t)
	st.AddBatch([]*record.Record{rec("INFO", "a"), rec("INFO", "b")})

	var first, second entriesResponse
	decode(t, do(t, srv, http.MethodGet, "/api/entries/new", nil), &first)
	decode(t, do(t, srv, http.MethodGet, "/api/entries/new", nil), &second)
	if first.Count != 2 || second.Count != 0 {
		t.Errorf("new entries counts = %d, %d; want 2, 0", first.Count, second.Count)
	}

	if w := do(t, srv, http.MethodDelete, "/api/entries", nil); w.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d", w.Code)
	}
	if st.Len() != 0 {
		t.Errorf("store has %d records after clear", st.Len())
	}
}

func TestSetEnabled(t *testing.T) {
	srv, st, _, _ := newTestServer(t)

	w := do(t, srv, http.MethodPut, "/api/enabled", []byte(`{"enabled": false}`))
	if w.Code != http.StatusOK || st.Enabled() {
		t.Fatalf("PUT enabled=false: status %d, store enabled %v", w.Code, st.Enabled())
	}
	if st.AddBatch([]*record.Record{rec("INFO", "x")}) {
		t.Error("disabled store accepted a batch")
	}

	if w := do(t, srv, http.MethodPut, "/api/enabled", []byte(`{}`)); w.Code != http.StatusBadRequest {
		t.Errorf("missing field status = %d, want 400", w.Code)
	}

	var body map[string]bool
	decode(t, do(t, srv, http.MethodGet, "/api/enabled", nil), &body)
	if body["enabled"] {
		t.Errorf("GET enabled = %v", body)
	}
}

func TestProvidersPauseAndStart(t *testing.T) {
	srv, _, fp, id := newTestServer(t)

	var list struct {
		Providers []providerJSON `json:"providers"`
	}
	decode(t, do(t, srv, http.MethodGet, "/api/providers", nil), &list)
	if len(list.Providers) != 1 || list.Providers[0].ID != id.String() || !list.Providers[0].Active {
		t.Fatalf("providers = %+v", list.Providers)
	}
	if stats := list.Providers[0].Stats; stats["decoded"] != 3 || stats["dropped"] != 1 {
		t.Errorf("stats = %v", stats)
	}

	if w := do(t, srv, http.MethodPost, "/api/providers/"+id.String()+"/pause", nil); w.Code != http.StatusOK {
		t.Fatalf("pause status = %d", w.Code)
	}
	if fp.State() != source.StatePaused {
		t.Errorf("State() = %v after pause", fp.State())
	}

	if w := do(t, srv, http.MethodPost, "/api/providers/"+id.String()+"/start", nil); w.Code != http.StatusOK {
		t.Fatalf("start status = %d", w.Code)
	}
	if !fp.IsActive() {
		t.Error("provider not active after start")
	}

	_ = fp.Close()
	if w := do(t, srv, http.MethodPost, "/api/providers/"+id.String()+"/start", nil); w.Code != http.StatusConflict {
		t.Errorf("start after close status = %d, want 409", w.Code)
	}

	if w := do(t, srv, http.MethodPost, "/api/providers/not-a-uuid/pause", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d", w.Code)
	}
}

func TestStreamSendsNewBatches(t *testing.T) {
	srv, st, _, _ := newTestServer(t)
	st.AddBatch([]*record.Record{rec("INFO", "before connect")})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream?view=1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { conn.Close() }()

	// The subscription is registered by the handler; retry until a batch
	// lands after it.
	var msg streamMessage
	deadline := time.Now().Add(5 * time.Second)
	for {
		st.AddBatch([]*record.Record{rec("INFO", "GET /health 200"), rec("ERROR", "boom")})
		_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		if err := conn.ReadJSON(&msg); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no stream message received")
		}
		// A timed-out read leaves the connection unusable; redial.
		conn.Close()
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("redial: %v", err)
		}
	}

	if msg.Added < 2 {
		t.Fatalf("Added = %d, want at least 2", msg.Added)
	}
	for _, e := range msg.Entries {
		if e.Record.Description == "before connect" {
			t.Error("stream replayed a record from before the connection")
		}
		if e.Record.Type == "NOISE" {
			t.Error("view stream included a filtered record")
		}
	}
}
