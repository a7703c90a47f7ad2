package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/sqlsession/internal/infrastructure/config"
	"github.com/nerrad567/sqlsession/internal/infrastructure/logging"
	"github.com/nerrad567/sqlsession/internal/session"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// testDeps returns dependencies backed by a fresh in-memory session.
func testDeps(t *testing.T, observers ...session.Observer) (Deps, *session.Session) {
	t.Helper()

	log := testLogger()
	s, err := session.Open(context.Background(), session.Options{
		Path:      ":memory:",
		Logger:    log,
		Observers: observers,
	})
	if err != nil {
		t.Fatalf("session.Open() error = %v", err)
	}
	t.Cleanup(s.Destroy)

	return Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{
				Secret:         testSecret,
				AccessTokenTTL: 15,
			},
		},
		Logger:  log,
		Store:   s,
		Version: "test",
	}, s
}

// testServer creates a Server over an in-memory session with a running hub.
func testServer(t *testing.T) (*Server, *session.Session) {
	t.Helper()

	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	deps, s := testDeps(t, hub)
	deps.Hub = hub

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv, s
}

func testLogger() *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, "test", io.Discard)
}

// testToken returns a valid bearer token for the test secret.
func testToken(t *testing.T) string {
	t.Helper()

	token, err := IssueToken([]byte(testSecret), "tester", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	return token
}

// do sends an authenticated request through the router.
func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken(t))
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)
	return w
}

// decode unmarshals a response body into v.
func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()

	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

// ─── Construction ──────────────────────────────────────────────────

func TestNew_MissingDeps(t *testing.T) {
	deps, _ := testDeps(t)

	tests := []struct {
		name   string
		mutate func(*Deps)
	}{
		{"no logger", func(d *Deps) { d.Logger = nil }},
		{"no store", func(d *Deps) { d.Store = nil }},
		{"no secret", func(d *Deps) { d.Security.JWT.Secret = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := deps
			tt.mutate(&d)
			if _, err := New(d); err == nil {
				t.Error("New() expected error, got nil")
			}
		})
	}
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var resp map[string]any
	decode(t, w, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["session_id"] != s.ID() {
		t.Errorf("session_id = %v, want %s", resp["session_id"], s.ID())
	}
	if resp["schema_version"] != float64(0) {
		t.Errorf("schema_version = %v, want 0", resp["schema_version"])
	}
}

func TestHealth_Destroyed(t *testing.T) {
	srv, s := testServer(t)
	s.Destroy()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/schema", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, http.MethodGet, "/api/v1/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Auth Tests ────────────────────────────────────────────────────

func TestAuth_Rejections(t *testing.T) {
	srv, _ := testServer(t)

	wrongSecret, err := IssueToken([]byte("another-secret-key-at-least-32-characters"), "tester", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	expired, err := IssueToken([]byte(testSecret), "tester", -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"empty token", "Bearer "},
		{"garbage", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + wrongSecret},
		{"expired", "Bearer " + expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/schema", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			srv.buildRouter().ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestIssueToken(t *testing.T) {
	if _, err := IssueToken(nil, "tester", time.Minute); err == nil {
		t.Error("IssueToken() with empty secret expected error")
	}
	if _, err := IssueToken([]byte(testSecret), "", time.Minute); err == nil {
		t.Error("IssueToken() with empty subject expected error")
	}

	token := testToken(t)
	claims, err := parseToken([]byte(testSecret), token)
	if err != nil {
		t.Fatalf("parseToken() error = %v", err)
	}
	if claims.Subject != "tester" {
		t.Errorf("Subject = %q, want tester", claims.Subject)
	}
	if claims.Issuer != tokenIssuer {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, tokenIssuer)
	}
}

func TestWSTicket_SingleUse(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/auth/ws-ticket", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	decode(t, w, &resp)
	ticket, ok := resp["ticket"].(string)
	if !ok || ticket == "" {
		t.Fatal("expected ticket to be a non-empty string")
	}

	entry, ok := srv.tickets.redeem(ticket)
	if !ok {
		t.Fatal("ticket should be valid on first use")
	}
	if entry.subject != "tester" {
		t.Errorf("ticket subject = %q, want tester", entry.subject)
	}
	if _, ok := srv.tickets.redeem(ticket); ok {
		t.Error("ticket should not be valid on second use")
	}
}

func TestWSTicket_Expiry(t *testing.T) {
	ts := newTicketStore()
	ticket := generateTicket()
	ts.tickets[ticket] = ticketEntry{expiresAt: time.Now().Add(-1 * time.Second)}

	if _, ok := ts.redeem(ticket); ok {
		t.Error("expired ticket should not be valid")
	}

	stale := ts.issue("tester")
	ts.tickets[stale] = ticketEntry{expiresAt: time.Now().Add(-1 * time.Second)}
	fresh := ts.issue("tester")
	ts.cleanExpired()
	if _, ok := ts.tickets[stale]; ok {
		t.Error("cleanExpired() kept an expired ticket")
	}
	if _, ok := ts.tickets[fresh]; !ok {
		t.Error("cleanExpired() removed a live ticket")
	}
}

// ─── Schema Tests ──────────────────────────────────────────────────

func TestMigrateEndpoint(t *testing.T) {
	srv, s := testServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/schema/migrations",
		`{"sql": "CREATE TABLE tasks (id TEXT PRIMARY KEY)", "from_version": 0, "to_version": 1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("migrate status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp schemaResponse
	decode(t, w, &resp)
	if resp.Version != 1 || resp.SessionID != s.ID() {
		t.Errorf("response = %+v, want version 1 for %s", resp, s.ID())
	}

	w = do(t, srv, http.MethodGet, "/api/v1/schema", "")
	decode(t, w, &resp)
	if resp.Version != 1 {
		t.Errorf("GET /schema version = %d, want 1", resp.Version)
	}
}

func TestMigrateEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"invalid json", `{`, http.StatusBadRequest, ErrCodeBadRequest},
		{"missing versions", `{"sql": "SELECT 1"}`, http.StatusBadRequest, ErrCodeValidation},
		{"negative version", `{"sql": "SELECT 1", "from_version": -1, "to_version": 1}`, http.StatusBadRequest, ErrCodeValidation},
		{"version above int32", `{"sql": "CREATE TABLE t (id TEXT)", "from_version": 0, "to_version": 4294967296}`, http.StatusBadRequest, ErrCodeValidation},
		{"version just above int32", `{"sql": "CREATE TABLE t (id TEXT)", "from_version": 0, "to_version": 2147483648}`, http.StatusBadRequest, ErrCodeValidation},
		{"incompatible", `{"sql": "SELECT 1", "from_version": 3, "to_version": 4}`, http.StatusConflict, ErrCodeConflict},
		{"bad sql", `{"sql": "CREATE TABLE", "from_version": 0, "to_version": 1}`, http.StatusBadRequest, ErrCodeSQL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, s := testServer(t)

			w := do(t, srv, http.MethodPost, "/api/v1/schema/migrations", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tt.wantCode, w.Body.String())
			}
			var apiErr Error
			decode(t, w, &apiErr)
			if apiErr.Code != tt.wantErr {
				t.Errorf("code = %q, want %q", apiErr.Code, tt.wantErr)
			}

			if v, err := s.SchemaVersion(context.Background()); err != nil || v != 0 {
				t.Errorf("SchemaVersion() = %d, %v; want 0 after rejected migration", v, err)
			}
		})
	}
}

func TestResetEndpoint(t *testing.T) {
	srv, s := testServer(t)

	if err := s.Migrate(context.Background(), "CREATE TABLE old (id TEXT)", 0, 1); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	s.MarkAsCached(session.CacheKey("old", "1"))

	w := do(t, srv, http.MethodPost, "/api/v1/schema/reset",
		`{"sql": "CREATE TABLE fresh (id TEXT PRIMARY KEY)", "version": 5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("reset status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	if v, err := s.SchemaVersion(context.Background()); err != nil || v != 5 {
		t.Errorf("SchemaVersion() = %d, %v; want 5", v, err)
	}
	if s.IsCached(session.CacheKey("old", "1")) {
		t.Error("record cache survived reset")
	}
	if _, err := s.Count(context.Background(), "SELECT count(*) FROM old"); err == nil {
		t.Error("old table survived reset")
	}
}

func TestResetEndpoint_Validation(t *testing.T) {
	srv, _ := testServer(t)

	for _, body := range []string{`{`, `{"version": 1}`, `{"sql": "CREATE TABLE t (id TEXT)"}`, `{"sql": "x", "version": -2}`, `{"sql": "CREATE TABLE t (id TEXT)", "version": 2147483648}`} {
		w := do(t, srv, http.MethodPost, "/api/v1/schema/reset", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("reset %s status = %d, want %d", body, w.Code, http.StatusBadRequest)
		}
	}
}

func TestDestroyedSession(t *testing.T) {
	srv, s := testServer(t)
	s.Destroy()

	w := do(t, srv, http.MethodPost, "/api/v1/schema/migrations",
		`{"sql": "CREATE TABLE t (id TEXT)", "from_version": 0, "to_version": 1}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("migrate on destroyed status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	w = do(t, srv, http.MethodGet, "/api/v1/schema", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("schema on destroyed status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

// ─── Cache Tests ───────────────────────────────────────────────────

func TestCacheEndpoints(t *testing.T) {
	srv, s := testServer(t)
	key := session.CacheKey("tasks", "t1")

	steps := []struct {
		method string
		want   bool
	}{
		{http.MethodGet, false},
		{http.MethodPut, true},
		{http.MethodGet, true},
		{http.MethodDelete, false},
		{http.MethodGet, false},
	}

	for i, step := range steps {
		w := do(t, srv, step.method, "/api/v1/cache/"+key, "")
		if w.Code != http.StatusOK {
			t.Fatalf("step %d %s status = %d, want %d", i, step.method, w.Code, http.StatusOK)
		}
		var resp cacheEntryResponse
		decode(t, w, &resp)
		if resp.Key != key || resp.Cached != step.want {
			t.Errorf("step %d %s = %+v, want cached=%v", i, step.method, resp, step.want)
		}
		if s.IsCached(key) != step.want {
			t.Errorf("step %d IsCached() = %v, want %v", i, s.IsCached(key), step.want)
		}
	}
}

// ─── Metrics Tests ─────────────────────────────────────────────────

func TestMetrics(t *testing.T) {
	srv, s := testServer(t)
	s.MarkAsCached("a$1")
	s.MarkAsCached("a$2")

	w := do(t, srv, http.MethodGet, "/api/v1/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want %d", w.Code, http.StatusOK)
	}

	var m SystemMetrics
	decode(t, w, &m)
	if m.Version != "test" {
		t.Errorf("Version = %q, want test", m.Version)
	}
	if m.Session.ID != s.ID() || m.Session.CachedRecords != 2 {
		t.Errorf("Session = %+v, want id %s with 2 cached records", m.Session, s.ID())
	}
	if m.Session.SchemaVersion == nil || *m.Session.SchemaVersion != 0 {
		t.Errorf("SchemaVersion = %v, want 0", m.Session.SchemaVersion)
	}
	if m.MQTT.Connected {
		t.Error("MQTT.Connected = true without a client")
	}
	if m.Runtime.Goroutines == 0 {
		t.Error("Runtime.Goroutines = 0")
	}
}

// ─── WebSocket Hub Tests ───────────────────────────────────────────

func TestWebSocketDeadlines(t *testing.T) {
	cfg := config.WebSocketConfig{PingInterval: 30, PongTimeout: 10}

	ping, read := keepalive(cfg)
	if ping != 30*time.Second {
		t.Errorf("ping interval = %v, want 30s", ping)
	}
	if read != 40*time.Second {
		t.Errorf("read deadline = %v, want 40s", read)
	}

	// A blocked write must give up well before the silence window closes.
	write := writeWait(cfg)
	if write != 10*time.Second {
		t.Errorf("writeWait() = %v, want 10s", write)
	}
	if write >= ping {
		t.Errorf("writeWait() = %v, want less than ping interval %v", write, ping)
	}
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()

	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := newTestHub(t)

	subscribed := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{SessionChannel(session.EventMigrated): {}},
	}
	other := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{SessionChannel(session.EventReset): {}},
	}
	hub.Register(subscribed)
	hub.Register(other)

	hub.SessionEvent(session.Event{Type: session.EventMigrated, SessionID: "s-1", FromVersion: 1, ToVersion: 2})

	select {
	case msg := <-subscribed.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.EventType != "session.migrated" {
			t.Errorf("event_type = %q, want %q", wsMsg.EventType, "session.migrated")
		}
		payload, _ := wsMsg.Payload.(map[string]any)
		if payload["to_version"] != float64(2) || payload["success"] != true {
			t.Errorf("payload = %v, want to_version 2 and success", payload)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}

	select {
	case <-other.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := newTestHub(t)

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	hub.Unregister(client) // second unregister must not double-close
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func TestHub_WildcardAndDrops(t *testing.T) {
	hub := newTestHub(t)

	all := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 1),
		subscriptions: map[string]struct{}{AllSessionChannels: {}},
	}
	hub.Register(all)

	hub.SessionEvent(session.Event{Type: session.EventOpened, SessionID: "s-1"})
	hub.SessionEvent(session.Event{Type: session.EventReset, SessionID: "s-1"})

	if got := len(all.send); got != 1 {
		t.Fatalf("queued messages = %d, want 1", got)
	}
	if got := hub.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1 for the full buffer", got)
	}

	// Non-session channels are not covered by the wildcard.
	if all.isSubscribed("system.status") {
		t.Error("wildcard matched a non-session channel")
	}
}

func TestWSClient_ChangeSubscriptions(t *testing.T) {
	hub := newTestHub(t)
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}

	reply := func(t *testing.T, frame string) WSMessage {
		t.Helper()
		client.handleMessage([]byte(frame))
		var msg WSMessage
		if err := json.Unmarshal(<-client.send, &msg); err != nil {
			t.Fatalf("unmarshal reply: %v", err)
		}
		return msg
	}

	tests := []struct {
		name     string
		frame    string
		wantType string
	}{
		{"subscribe known", `{"type":"subscribe","id":"1","payload":{"channels":["session.reset"]}}`, WSTypeResponse},
		{"unknown channel", `{"type":"subscribe","id":"2","payload":{"channels":["session.bogus"]}}`, WSTypeError},
		{"empty channels", `{"type":"subscribe","id":"3","payload":{"channels":[]}}`, WSTypeError},
		{"ping", `{"type":"ping","id":"4"}`, WSTypePong},
		{"unknown type", `{"type":"shout","id":"5"}`, WSTypeError},
		{"invalid json", `{`, WSTypeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reply(t, tt.frame); got.Type != tt.wantType {
				t.Errorf("reply type = %q, want %q", got.Type, tt.wantType)
			}
		})
	}

	if !client.isSubscribed(SessionChannel(session.EventReset)) {
		t.Error("client not subscribed to session.reset")
	}
	if client.isSubscribed("session.bogus") {
		t.Error("rejected channel was subscribed")
	}

	reply(t, `{"type":"unsubscribe","id":"6","payload":{"channels":["session.reset"]}}`)
	if client.isSubscribed(SessionChannel(session.EventReset)) {
		t.Error("still subscribed after unsubscribe")
	}
}

// ─── Live Server Tests ─────────────────────────────────────────────

func TestServer_StartAndClose(t *testing.T) {
	deps, _ := testDeps(t)
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start() expected error")
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestWebSocket_SessionEvents(t *testing.T) {
	srv, s := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"

	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Fatal("Dial() without credentials should fail")
	} else if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated dial status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	ticket := srv.tickets.issue("tester")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?ticket="+ticket, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	sub := `{"type": "subscribe", "id": "1", "payload": {"channels": ["session.migrated"]}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(sub)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	//nolint:errcheck // Test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var ack WSMessage
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("reading subscribe ack: %v", err)
	}
	if ack.Type != WSTypeResponse || ack.ID != "1" {
		t.Fatalf("ack = %+v, want response for id 1", ack)
	}

	if err := s.Migrate(context.Background(), "CREATE TABLE t (id TEXT)", 0, 1); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	var ev WSMessage
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if ev.Type != WSTypeEvent || ev.EventType != "session.migrated" {
		t.Errorf("event = %+v, want session.migrated event", ev)
	}
}
