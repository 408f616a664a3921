package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lukaszchomatek/aji-vision-demo/internal/backend"
	"github.com/lukaszchomatek/aji-vision-demo/internal/config"
	"github.com/lukaszchomatek/aji-vision-demo/internal/events"
	"github.com/lukaszchomatek/aji-vision-demo/internal/history"
	"github.com/lukaszchomatek/aji-vision-demo/internal/imaging"
	"github.com/lukaszchomatek/aji-vision-demo/internal/model"
	"github.com/lukaszchomatek/aji-vision-demo/internal/pipeline"
	"github.com/lukaszchomatek/aji-vision-demo/internal/router"
	"github.com/lukaszchomatek/aji-vision-demo/internal/server/handler"
	"github.com/lukaszchomatek/aji-vision-demo/internal/session"
	"github.com/lukaszchomatek/aji-vision-demo/internal/worker"
)

type fakePipeline struct {
	caption string
}

func (p fakePipeline) Caption(ctx context.Context, image []byte, options model.Options) (string, error) {
	return p.caption, nil
}

func (p fakePipeline) Close() error {
	return nil
}

type testApp struct {
	engine *gin.Engine
	hub    *events.Hub
}

func newTestApp(t *testing.T, serverConfig config.ServerConfig) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	loader := pipeline.LoaderFunc(func(ctx context.Context, b backend.Backend, progress func(pipeline.Progress)) (pipeline.Pipeline, error) {
		progress(pipeline.Progress{Status: pipeline.ProgressStatusDone, Fraction: 1})
		return fakePipeline{caption: "a dog"}, nil
	})
	w := worker.New(backend.Static(false), loader)
	hub := events.NewHub()
	r := router.New(w.Inbox(), w.Outbox(), hub, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = w.Run(ctx) }()
	go func() { _ = r.Run(ctx) }()

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Shutdown() })

	s := session.New(r, store, imaging.DefaultConfig(), history.DisplayLimit)
	return &testApp{
		engine: InitRouter(serverConfig, handler.New(s, r, hub)),
		hub:    hub,
	}
}

func (a *testApp) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testApp) uploadImage(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	var img bytes.Buffer
	if err := png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 2048, 1024))); err != nil {
		t.Fatalf("Failed to encode fixture: %v", err)
	}
	return a.upload(t, path, img.Bytes())
}

func (a *testApp) upload(t *testing.T, path string, img []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "dog.png")
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	part.Write(img)
	if path == "/describe" {
		mw.WriteField("twoPass", "true")
		mw.WriteField("backend", "wasm")
	}
	mw.Close()
	return a.do(t, http.MethodPost, path, &body, mw.FormDataContentType())
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode response %s: %v", w.Body.String(), err)
	}
	return v
}

func TestGenerateFlow(t *testing.T) {
	app := newTestApp(t, config.ServerConfig{})

	w := app.do(t, http.MethodPost, "/generate", nil, "application/json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 without image, got %d", w.Code)
	}
	failed := decode[model.FailedHTTPResponse](t, w)
	if failed.Caption != session.NoImageCaption {
		t.Errorf("Expected caption %q, got %q", session.NoImageCaption, failed.Caption)
	}

	w = app.do(t, http.MethodPost, "/generate", bytes.NewBufferString(`{"options":{"maxNewTokens":0}}`), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 without image, got %d", w.Code)
	}
	if failed := decode[model.FailedHTTPResponse](t, w); failed.Caption != session.NoImageCaption {
		t.Errorf("Expected missing image reported before options, got %+v", failed)
	}

	w = app.uploadImage(t, "/image")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on upload, got %d: %s", w.Code, w.Body.String())
	}
	preview := decode[model.ImagePreview](t, w)
	if state := decode[model.StateResponse](t, app.do(t, http.MethodGet, "/state", nil, "")); state.Caption != session.ReadyCaption {
		t.Errorf("Expected ready caption after upload, got %q", state.Caption)
	}
	if !preview.Resized || preview.ResizedWidth != 1024 || preview.ResizedHeight != 512 {
		t.Errorf("Unexpected preview: %+v", preview)
	}

	w = app.do(t, http.MethodPost, "/generate", bytes.NewBufferString(`{"options":{"maxNewTokens":0}}`), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid options, got %d", w.Code)
	}

	w = app.do(t, http.MethodPost, "/generate", bytes.NewBufferString(`{"twoPass":true,"backendPreference":"webgpu"}`), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[model.GenerationResponse](t, w)
	if resp.Caption != "a dog" {
		t.Errorf("Expected caption a dog, got %q", resp.Caption)
	}
	if !regexp.MustCompile(`^cold \d+ ms / warm \d+ ms$`).MatchString(resp.TimeLabel) {
		t.Errorf("Unexpected time label %q", resp.TimeLabel)
	}
	if resp.Backend != backend.CPU {
		t.Errorf("Expected cpu fallback, got %s", resp.Backend)
	}
	if len(resp.History) != 1 {
		t.Errorf("Expected one history item, got %d", len(resp.History))
	}

	state := decode[model.StateResponse](t, app.do(t, http.MethodGet, "/state", nil, ""))
	if !state.HasImage || state.Busy || state.Caption != "a dog" {
		t.Errorf("Unexpected state: %+v", state)
	}
	if state.BackendUsed != backend.CPU || state.Status != "Model ready (cpu)." || state.Progress != 1 {
		t.Errorf("Expected worker notifications in state, got %+v", state)
	}
}

func TestUploadRejectsHugeDimensions(t *testing.T) {
	app := newTestApp(t, config.ServerConfig{})

	// a valid 1x1 PNG whose IHDR is rewritten to declare 40000x40000
	var img bytes.Buffer
	if err := png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatalf("Failed to encode fixture: %v", err)
	}
	forged := img.Bytes()
	binary.BigEndian.PutUint32(forged[16:], 40000)
	binary.BigEndian.PutUint32(forged[20:], 40000)
	binary.BigEndian.PutUint32(forged[29:], crc32.ChecksumIEEE(forged[12:29]))

	w := app.upload(t, "/image", forged)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected 413, got %d: %s", w.Code, w.Body.String())
	}
	if state := decode[model.StateResponse](t, app.do(t, http.MethodGet, "/state", nil, "")); state.HasImage {
		t.Error("Expected rejected upload to leave no image selected")
	}
}

func TestDescribe(t *testing.T) {
	app := newTestApp(t, config.ServerConfig{})

	w := app.uploadImage(t, "/describe")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[model.GenerationResponse](t, w)
	if resp.Caption != "a dog" || !strings.HasPrefix(resp.TimeLabel, "cold ") {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	app := newTestApp(t, config.ServerConfig{})
	app.uploadImage(t, "/image")
	if w := app.do(t, http.MethodPost, "/generate", nil, ""); w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	list := decode[struct {
		Items []model.HistoryItem `json:"items"`
	}](t, app.do(t, http.MethodGet, "/history", nil, ""))
	if len(list.Items) != 1 || list.Items[0].Caption != "a dog" {
		t.Errorf("Unexpected history: %+v", list.Items)
	}

	tests := []struct {
		path        string
		contentType string
		contains    string
		status      int
	}{
		{"/history/export", "application/yaml", "caption: a dog", http.StatusOK},
		{"/history/export?format=rss", "application/rss+xml; charset=utf-8", "<rss", http.StatusOK},
		{"/history/feed", "application/rss+xml; charset=utf-8", "<title>a dog</title>", http.StatusOK},
		{"/history/export?format=csv", "application/json; charset=utf-8", "unknown export format", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := app.do(t, http.MethodGet, tt.path, nil, "")
			if w.Code != tt.status {
				t.Fatalf("Expected %d, got %d", tt.status, w.Code)
			}
			if w.Header().Get("Content-Type") != tt.contentType {
				t.Errorf("Expected content type %s, got %s", tt.contentType, w.Header().Get("Content-Type"))
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("Expected body to contain %q, got %s", tt.contains, w.Body.String())
			}
		})
	}

	if w := app.do(t, http.MethodDelete, "/history", nil, ""); w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on clear, got %d", w.Code)
	}
	list = decode[struct {
		Items []model.HistoryItem `json:"items"`
	}](t, app.do(t, http.MethodGet, "/history", nil, ""))
	if len(list.Items) != 0 {
		t.Errorf("Expected empty history, got %d", len(list.Items))
	}
}

func TestPermissionCheck(t *testing.T) {
	app := newTestApp(t, config.ServerConfig{ApiKey: "secret"})

	if w := app.do(t, http.MethodGet, "/healthcheck", nil, ""); w.Code != http.StatusOK {
		t.Errorf("Expected healthcheck without key, got %d", w.Code)
	}
	if w := app.do(t, http.MethodGet, "/state", nil, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	req.Header.Set("API-KEY", "secret")
	w := httptest.NewRecorder()
	app.engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with key, got %d", w.Code)
	}
}

func TestProbe(t *testing.T) {
	app := newTestApp(t, config.ServerConfig{})

	if w := app.do(t, http.MethodPost, "/probe", nil, ""); w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", w.Code)
	}
	deadline := time.After(2 * time.Second)
	for app.hub.Snapshot().BackendHint != backend.Hint(false) {
		select {
		case <-deadline:
			t.Fatalf("Backend hint never arrived, state: %+v", app.hub.Snapshot())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestEventsStream(t *testing.T) {
	app := newTestApp(t, config.ServerConfig{})
	server := httptest.NewServer(app.engine)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/events", nil)
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer resp.Body.Close()

	lines := bufio.NewScanner(resp.Body)
	waitFor := func(event string) {
		t.Helper()
		for lines.Scan() {
			if lines.Text() == "event:"+event {
				return
			}
		}
		t.Fatalf("Stream ended before %s event: %v", event, lines.Err())
	}

	waitFor("state")
	probe, err := http.Post(server.URL+"/probe", "application/json", nil)
	if err != nil {
		t.Fatalf("Failed to probe: %v", err)
	}
	probe.Body.Close()
	waitFor("backend")
}
