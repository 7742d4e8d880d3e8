package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"research-agent-be/internal/pkg/logger"
	"research-agent-be/internal/pkg/serverutils"
	"research-agent-be/internal/repository/memory"
	"research-agent-be/internal/service"
	"research-agent-be/pkg/ingest"
	"research-agent-be/pkg/rag/orchestrator"
	"research-agent-be/pkg/retrieval/hybrid"
	"research-agent-be/pkg/store"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoAnswerer struct {
	last orchestrator.Request
}

func (e *echoAnswerer) Answer(_ context.Context, req orchestrator.Request) *store.Answer {
	e.last = req
	threadID := req.ThreadID
	if threadID == "" {
		threadID = "minted"
	}
	return &store.Answer{Text: "echo: " + req.Question, References: []store.Reference{}, ThreadID: threadID, Route: "general-knowledge"}
}

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
	Errors  interface{}            `json:"errors"`
}

type fixture struct {
	app      *fiber.App
	answerer *echoAnswerer
	threads  *memory.ThreadRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewNopLogger()
	threads := memory.NewThreadRepository(0)
	answerer := &echoAnswerer{}

	splitter, err := ingest.NewSplitter(200, 20)
	require.NoError(t, err)
	engine := hybrid.NewEngine(nil, 0, log)

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	NewHealthController("research-agent-backend").RegisterRoutes(app)
	api := app.Group("/api")
	NewQueryController(service.NewQueryService(answerer, threads, log)).RegisterRoutes(api)
	NewDocumentController(service.NewDocumentService(engine, ingest.NewIngestor(splitter, log), log)).RegisterRoutes(api)

	return &fixture{app: app, answerer: answerer, threads: threads}
}

func (f *fixture) do(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/docs/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	code, env := f.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, 200, code)
	assert.Equal(t, "ok", env.Data["status"])
}

func TestQuery(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantField string
	}{
		{"valid", `{"question":"What is RAG?","thread_id":"t-1"}`, 200, ""},
		{"with overrides", `{"question":"What is RAG?","config":{"top_k":3,"semantic_weight":0.7}}`, 200, ""},
		{"missing question", `{"thread_id":"t-1"}`, 400, "question"},
		{"override out of range", `{"question":"q","config":{"top_k":0}}`, 400, "config.top_k"},
		{"unknown top-level key", `{"question":"q","user":"x"}`, 400, ""},
		{"unknown config key", `{"question":"q","config":{"temperature":0.2}}`, 400, ""},
		{"malformed json", `{"question":`, 400, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			code, env := f.do(t, jsonRequest(http.MethodPost, "/api/query", tt.body))
			assert.Equal(t, tt.wantCode, code)
			if tt.wantCode == 200 {
				assert.True(t, env.Success)
				assert.Equal(t, "echo: What is RAG?", env.Data["answer"])
				assert.NotNil(t, env.Data["references"])
				return
			}
			assert.False(t, env.Success)
			if tt.wantField != "" {
				errs, ok := env.Errors.(map[string]interface{})
				require.True(t, ok)
				assert.Contains(t, errs, tt.wantField)
			}
		})
	}
}

func TestQuery_PassesOverrides(t *testing.T) {
	f := newFixture(t)
	code, env := f.do(t, jsonRequest(http.MethodPost, "/api/query", `{"question":"q","config":{"max_regenerations":0,"question_timeout_seconds":5}}`))
	require.Equal(t, 200, code)
	assert.Equal(t, "minted", env.Data["thread_id"])

	o := f.answerer.last.Overrides
	require.NotNil(t, o)
	assert.Equal(t, 0, *o.MaxRegenerations)
	assert.Equal(t, "5s", o.QuestionTimeout.String())
	assert.Nil(t, o.TopK)
}

func TestThreadEndpoints(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.threads.Append(context.Background(), "t-9",
		store.HumanTurn("What is BM25?"),
		store.AssistantTurn("A ranking function."),
	))

	code, env := f.do(t, httptest.NewRequest(http.MethodGet, "/api/thread/status/t-9", nil))
	require.Equal(t, 200, code)
	assert.Equal(t, float64(2), env.Data["message_count"])
	assert.Equal(t, true, env.Data["has_history"])

	code, _ = f.do(t, httptest.NewRequest(http.MethodPost, "/api/thread/reset", nil))
	assert.Equal(t, 400, code)

	code, env = f.do(t, httptest.NewRequest(http.MethodPost, "/api/thread/reset?thread_id=t-9", nil))
	require.Equal(t, 200, code)
	assert.Equal(t, float64(2), env.Data["cleared"])

	code, env = f.do(t, httptest.NewRequest(http.MethodGet, "/api/thread/status/t-9", nil))
	require.Equal(t, 200, code)
	assert.Equal(t, false, env.Data["has_history"])

	code, _ = f.do(t, httptest.NewRequest(http.MethodPost, "/api/thread/reset?thread_id=never-used", nil))
	assert.Equal(t, 200, code)
}

func TestDocumentEndpoints(t *testing.T) {
	f := newFixture(t)

	code, env := f.do(t, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, 200, code)
	assert.Equal(t, false, env.Data["has_documents"])

	code, env = f.do(t, uploadRequest(t, map[string]string{"self-debug.txt": "Self-debugging lets models repair code."}))
	require.Equal(t, 200, code)
	assert.Equal(t, float64(1), env.Data["indexed"])

	code, env = f.do(t, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, 200, code)
	assert.Equal(t, true, env.Data["has_documents"])
	assert.Equal(t, float64(1), env.Data["document_count"])

	code, env = f.do(t, httptest.NewRequest(http.MethodPost, "/api/vectordb/reset", nil))
	require.Equal(t, 200, code)
	assert.Equal(t, false, env.Data["has_documents"])
}

func TestUpload_Rejections(t *testing.T) {
	f := newFixture(t)

	code, env := f.do(t, uploadRequest(t, map[string]string{"slides.pptx": "binary"}))
	assert.Equal(t, 400, code)
	assert.False(t, env.Success)

	code, _ = f.do(t, jsonRequest(http.MethodPost, "/api/docs/upload", `{}`))
	assert.Equal(t, 400, code)
}
