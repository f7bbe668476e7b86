package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/smazurov/hlsnode/internal/api/models"
	"github.com/smazurov/hlsnode/internal/events"
	"github.com/smazurov/hlsnode/internal/records"
	"github.com/smazurov/hlsnode/internal/streams"
	"github.com/smazurov/hlsnode/internal/supervisor"
)

// mockStreamService keeps records in memory and hands out fake pids.
type mockStreamService struct {
	mu       sync.Mutex
	streams  map[int64]*streams.Stream
	nextID   int64
	nextPID  int
	startErr error
	stopErr  error
}

func newMockStreamService() *mockStreamService {
	return &mockStreamService{streams: make(map[int64]*streams.Stream), nextPID: 4000}
}

func (m *mockStreamService) ListStreams(_ context.Context) ([]streams.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]streams.Stream, 0, len(m.streams))
	for id := int64(1); id <= m.nextID; id++ {
		if st, ok := m.streams[id]; ok {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (m *mockStreamService) GetStream(_ context.Context, id int64) (*streams.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.streams[id]
	if !ok {
		return nil, streams.NewStreamError(streams.ErrCodeStreamNotFound, "stream not found", nil)
	}
	cp := *st
	return &cp, nil
}

func (m *mockStreamService) CreateStream(_ context.Context, params records.CreateParams) (*streams.Stream, error) {
	if err := params.Validate(); err != nil {
		return nil, streams.NewStreamError(streams.ErrCodeInvalidParams, "invalid stream parameters", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.streams {
		if st.Name == params.Name {
			return nil, streams.NewStreamError(streams.ErrCodeStreamExists, "name taken", nil)
		}
	}
	m.nextID++
	st := &streams.Stream{Record: records.Record{ID: m.nextID, Name: params.Name, SourceURL: params.SourceURL}}
	m.streams[st.ID] = st
	cp := *st
	return &cp, nil
}

func (m *mockStreamService) UpdateStream(_ context.Context, id int64, params records.UpdateParams) (*streams.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.streams[id]
	if !ok {
		return nil, streams.NewStreamError(streams.ErrCodeStreamNotFound, "stream not found", nil)
	}
	if params.Name != nil && *params.Name != st.Name && st.Running() {
		return nil, streams.NewStreamError(streams.ErrCodeStreamRunning, "stream is running", nil)
	}
	st.Record = params.Apply(st.Record)
	cp := *st
	return &cp, nil
}

func (m *mockStreamService) DeleteStream(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.streams[id]; !ok {
		return streams.NewStreamError(streams.ErrCodeStreamNotFound, "stream not found", nil)
	}
	delete(m.streams, id)
	return nil
}

func (m *mockStreamService) StartStream(_ context.Context, id int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return 0, m.startErr
	}
	st, ok := m.streams[id]
	if !ok {
		return 0, streams.NewStreamError(streams.ErrCodeStreamNotFound, "stream not found", nil)
	}
	if st.Running() {
		return 0, streams.NewStreamError(streams.ErrCodeStreamRunning, "already running", supervisor.ErrAlreadyRunning)
	}
	m.nextPID++
	st.PID = records.IntPtr(m.nextPID)
	st.Supervised = true
	return m.nextPID, nil
}

func (m *mockStreamService) StopStream(_ context.Context, pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopErr != nil {
		return m.stopErr
	}
	for _, st := range m.streams {
		if st.PID != nil && *st.PID == pid {
			st.PID = nil
			st.Supervised = false
		}
	}
	return nil
}

func (m *mockStreamService) RestartStream(ctx context.Context, id int64) (int, error) {
	m.mu.Lock()
	st, ok := m.streams[id]
	if ok && st.PID != nil {
		st.PID = nil
	}
	m.mu.Unlock()
	return m.StartStream(ctx, id)
}

func (m *mockStreamService) SupervisorStatus(_ context.Context) streams.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	status := streams.Status{
		Settings: supervisor.Settings{PollInterval: 10 * time.Second, StaleThreshold: 2 * time.Minute},
		Now:      now,
	}
	for _, st := range m.streams {
		if st.PID == nil {
			continue
		}
		status.Watchdogs = append(status.Watchdogs, supervisor.HandleInfo{
			PID:         *st.PID,
			RecordID:    st.ID,
			Name:        st.Name,
			OutputDir:   "/tmp/" + st.Name,
			StartedAt:   now.Add(-time.Minute),
			LastOutput:  now.Add(-3 * time.Second),
			OutputFiles: 4,
		})
	}
	return status
}

func newTestServer(t *testing.T, opts *Options) (humatest.TestAPI, *mockStreamService) {
	t.Helper()
	svc := newMockStreamService()
	if opts == nil {
		opts = &Options{}
	}
	opts.StreamService = svc
	server := NewServer(opts)
	return humatest.Wrap(t, server.API()), svc
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return v
}

func TestHealthAndVersion(t *testing.T) {
	api, _ := newTestServer(t, nil)

	resp := api.Get("/api/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("health status = %d", resp.Code)
	}
	if h := decode[models.HealthData](t, resp.Body.Bytes()); h.Status != "ok" {
		t.Errorf("health = %+v", h)
	}

	resp = api.Get("/api/version")
	if resp.Code != http.StatusOK {
		t.Fatalf("version status = %d", resp.Code)
	}
	if v := decode[models.VersionData](t, resp.Body.Bytes()); v.GoVersion == "" || v.Platform == "" {
		t.Errorf("version = %+v", v)
	}
}

func TestRecordCRUD(t *testing.T) {
	api, _ := newTestServer(t, nil)

	resp := api.Post("/api/records", map[string]any{"name": "camA", "url": "rtsp://example/a"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.Code, resp.Body.String())
	}
	created := decode[models.RecordData](t, resp.Body.Bytes())
	if created.ID != 1 || created.Name != "camA" || created.URL != "rtsp://example/a" || created.PID != nil {
		t.Errorf("created = %+v", created)
	}

	resp = api.Get("/api/records/1")
	if resp.Code != http.StatusOK {
		t.Fatalf("get status = %d", resp.Code)
	}

	resp = api.Put("/api/records/1", map[string]any{"name": "camB"})
	if resp.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", resp.Code, resp.Body.String())
	}
	if updated := decode[models.RecordData](t, resp.Body.Bytes()); updated.Name != "camB" || updated.URL != "rtsp://example/a" {
		t.Errorf("updated = %+v", updated)
	}

	resp = api.Get("/api/records")
	if list := decode[[]models.RecordData](t, resp.Body.Bytes()); len(list) != 1 {
		t.Errorf("list = %+v", list)
	}

	resp = api.Delete("/api/records/1")
	if resp.Code != http.StatusOK {
		t.Fatalf("delete status = %d", resp.Code)
	}
	resp = api.Get("/api/records/1")
	if resp.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", resp.Code)
	}
}

func TestRecordErrors(t *testing.T) {
	api, _ := newTestServer(t, nil)
	api.Post("/api/records", map[string]any{"name": "camA", "url": "rtsp://example/a"})

	tests := []struct {
		name   string
		resp   func() int
		status int
	}{
		{"duplicate name", func() int {
			return api.Post("/api/records", map[string]any{"name": "camA", "url": "rtsp://example/b"}).Code
		}, http.StatusConflict},
		{"invalid name", func() int {
			return api.Post("/api/records", map[string]any{"name": "a b", "url": "rtsp://example/b"}).Code
		}, http.StatusBadRequest},
		{"name too long", func() int {
			return api.Post("/api/records", map[string]any{"name": strings.Repeat("a", 51), "url": "rtsp://x/y"}).Code
		}, http.StatusUnprocessableEntity},
		{"missing record", func() int { return api.Get("/api/records/42").Code }, http.StatusNotFound},
		{"delete missing", func() int { return api.Delete("/api/records/42").Code }, http.StatusNotFound},
		{"start missing", func() int { return api.Post("/api/records/42/start").Code }, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.resp(); got != tt.status {
				t.Errorf("status = %d, want %d", got, tt.status)
			}
		})
	}
}

func TestStreamControl(t *testing.T) {
	api, _ := newTestServer(t, nil)
	api.Post("/api/records", map[string]any{"name": "camA", "url": "rtsp://example/a"})

	resp := api.Post("/api/records/1/start")
	if resp.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", resp.Code, resp.Body.String())
	}
	started := decode[models.StreamControlData](t, resp.Body.Bytes())
	if started.PID == nil || *started.PID == 0 {
		t.Fatalf("start response = %+v", started)
	}

	if code := api.Post("/api/records/1/start").Code; code != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", code)
	}
	if code := api.Put("/api/records/1", map[string]any{"name": "camZ"}).Code; code != http.StatusConflict {
		t.Errorf("rename while running status = %d, want 409", code)
	}

	resp = api.Get("/api/supervisor")
	sup := decode[models.SupervisorData](t, resp.Body.Bytes())
	if sup.Count != 1 || sup.Watchdogs[0].PID != *started.PID || sup.PollInterval != "10s" {
		t.Errorf("supervisor = %+v", sup)
	}
	if age := sup.Watchdogs[0].OutputAgeSec; age < 3 || age > 60 {
		t.Errorf("output age = %v", age)
	}

	resp = api.Post("/api/records/1/restart")
	restarted := decode[models.StreamControlData](t, resp.Body.Bytes())
	if resp.Code != http.StatusOK || restarted.PID == nil || *restarted.PID == *started.PID {
		t.Fatalf("restart = %d %+v", resp.Code, restarted)
	}

	path := "/api/streams/" + itoa(*restarted.PID) + "/stop"
	if code := api.Post(path).Code; code != http.StatusOK {
		t.Errorf("stop status = %d", code)
	}
	if code := api.Post(path).Code; code != http.StatusOK {
		t.Errorf("repeated stop status = %d", code)
	}
	if code := api.Post("/api/streams/0/stop").Code; code != http.StatusUnprocessableEntity {
		t.Errorf("stop pid 0 status = %d", code)
	}
}

func TestSpawnFailureMapsToBadGateway(t *testing.T) {
	api, svc := newTestServer(t, nil)
	api.Post("/api/records", map[string]any{"name": "camA", "url": "rtsp://example/a"})
	svc.startErr = streams.NewStreamError(streams.ErrCodeSpawnFailed, "transcoder missing", supervisor.ErrSpawnFailure)

	if code := api.Post("/api/records/1/start").Code; code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", code)
	}
}

func TestKillFailureMapsToBadGateway(t *testing.T) {
	api, svc := newTestServer(t, nil)
	svc.stopErr = streams.NewStreamError(streams.ErrCodeKillFailed, "failed to stop pid 4001", supervisor.ErrKillFailed)

	if code := api.Post("/api/streams/4001/stop").Code; code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", code)
	}
}

func TestBasicAuth(t *testing.T) {
	api, _ := newTestServer(t, &Options{AuthUsername: "admin", AuthPassword: "secret"})
	good := "Authorization: Basic " + base64.StdEncoding.EncodeToString([]byte("admin:secret"))
	bad := "Authorization: Basic " + base64.StdEncoding.EncodeToString([]byte("admin:nope"))

	if code := api.Get("/api/health").Code; code != http.StatusOK {
		t.Errorf("health should not need auth, got %d", code)
	}

	resp := api.Get("/api/records")
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("missing credentials status = %d", resp.Code)
	}
	if resp.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate header")
	}
	if code := api.Get("/api/records", bad).Code; code != http.StatusUnauthorized {
		t.Errorf("bad credentials status = %d", code)
	}
	if code := api.Get("/api/records", good).Code; code != http.StatusOK {
		t.Errorf("good credentials status = %d", code)
	}

	query := "/api/records?auth=" + base64.StdEncoding.EncodeToString([]byte("admin:secret"))
	if code := api.Get(query).Code; code != http.StatusOK {
		t.Errorf("query credentials status = %d", code)
	}
}

func TestCORSPreflight(t *testing.T) {
	api, _ := newTestServer(t, nil)

	resp := api.Do(http.MethodOptions, "/api/records")
	if resp.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", resp.Code)
	}
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin = %q", got)
	}

	resp = api.Get("/api/health")
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin on GET = %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hlsnode_supervisor_streams 0\n"))
	})
	api, _ := newTestServer(t, &Options{MetricsHandler: handler, AuthUsername: "a", AuthPassword: "b"})

	resp := api.Get("/metrics")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "hlsnode_supervisor_streams") {
		t.Errorf("metrics = %d %q", resp.Code, resp.Body.String())
	}
}

func TestEventRoutesNeedBus(t *testing.T) {
	withBus := NewServer(&Options{StreamService: newMockStreamService(), EventBus: events.New()})
	if _, ok := withBus.API().OpenAPI().Paths["/api/events"]; !ok {
		t.Error("expected /api/events with an event bus")
	}
	if _, ok := withBus.API().OpenAPI().Paths["/api/logs/stream"]; !ok {
		t.Error("expected /api/logs/stream with an event bus")
	}

	without := NewServer(&Options{StreamService: newMockStreamService()})
	if _, ok := without.API().OpenAPI().Paths["/api/events"]; ok {
		t.Error("/api/events should not be registered without a bus")
	}
}
