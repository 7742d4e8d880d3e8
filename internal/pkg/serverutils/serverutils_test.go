package serverutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"research-agent-be/pkg/ingest"
	"research-agent-be/pkg/retrieval/hybrid"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleConfig struct {
	TopK *int `json:"top_k" validate:"omitempty,gte=1,lte=50"`
}

type sampleRequest struct {
	Question string        `json:"question" validate:"required"`
	Config   *sampleConfig `json:"config"`
}

func TestValidateRequest(t *testing.T) {
	zero := 0
	five := 5

	tests := []struct {
		name   string
		req    sampleRequest
		fields map[string]string
	}{
		{"valid", sampleRequest{Question: "What is RAG?", Config: &sampleConfig{TopK: &five}}, nil},
		{"missing question", sampleRequest{}, map[string]string{"question": "required"}},
		{"out of range", sampleRequest{Question: "q", Config: &sampleConfig{TopK: &zero}}, map[string]string{"config.top_k": "gte=1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.fields, verr.Fields)
		})
	}
}

func TestErrorHandlerMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"validation", &ValidationError{Fields: map[string]string{"question": "required"}}, 400},
		{"request error", NewRequestError(400, "no valid documents", []string{"a.pptx"}), 400},
		{"rebuild in progress", fmt.Errorf("reset: %w", hybrid.ErrRebuildInProgress), 409},
		{"unsupported file", ingest.ErrUnsupportedFile, 400},
		{"invalid corpus", fmt.Errorf("failed to index upload: %w", hybrid.ErrInvalidCorpus), 400},
		{"fiber error", fiber.ErrNotFound, 404},
		{"unknown", errors.New("boom"), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(ErrorHandlerMiddleware())
			app.Get("/", func(*fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, resp.StatusCode)

			raw, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			var body ErrorBody
			require.NoError(t, json.Unmarshal(raw, &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestSuccessResponse(t *testing.T) {
	res := SuccessResponse("ok", map[string]int{"n": 1})
	assert.True(t, res.Success)
	assert.Equal(t, "ok", res.Message)
	assert.Equal(t, 1, res.Data["n"])
}
