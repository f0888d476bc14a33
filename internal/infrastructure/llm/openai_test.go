package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandroruanova/preference-engine/internal/core/services/adaptive"
	"github.com/alejandroruanova/preference-engine/internal/core/services/engine"
	"github.com/alejandroruanova/preference-engine/internal/core/services/prompting"
	"github.com/alejandroruanova/preference-engine/internal/core/services/taxonomy"
	"github.com/alejandroruanova/preference-engine/internal/pkg/config"
	"github.com/alejandroruanova/preference-engine/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newTestClient(t *testing.T, handler http.HandlerFunc, imageModel string) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(&config.LLMConfig{
		OpenAIAPIKey:   "sk-test",
		OpenAIBaseURL:  srv.URL,
		TextModel:      "gpt-test",
		ImageModel:     imageModel,
		ImageSize:      "1024x1024",
		TimeoutSeconds: 5,
		MaxRetries:     2,
	}, logger.Discard(), WithBackoff(time.Millisecond))
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(&config.LLMConfig{}, logger.Discard())
	assert.Error(t, err)
}

func TestGenerateStructuredText(t *testing.T) {
	var got responsesRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{"output":[{"type":"message","content":[{"type":"output_text","text":"{\"lighting\":[\"soft\"]}"}]}]}`))
	}, "gpt-image-1")

	text, err := c.GenerateStructuredText(context.Background(), "system prompt", "user prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"lighting":["soft"]}`, text)

	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Input, 2)
	assert.Equal(t, "system", got.Input[0].Role)
	assert.Equal(t, "user prompt", got.Input[1].Content)
	require.NotNil(t, got.Text)
	assert.Equal(t, "json_object", got.Text.Format["type"])
}

func TestGenerateText_SendsNoResponseFormat(t *testing.T) {
	var body map[string]json.RawMessage
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"output":[{"type":"message","content":[{"type":"output_text","text":"A warm portrait at golden hour"}]}]}`))
	}, "gpt-image-1")

	text, err := c.GenerateText(context.Background(), "system prompt", "User request: a portrait")
	require.NoError(t, err)
	assert.Equal(t, "A warm portrait at golden hour", text)

	assert.Contains(t, body, "input")
	assert.NotContains(t, body, "text")
}

func TestGenerateStructuredText_Refusal(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output":[],"refusal":"not allowed"}`))
	}, "gpt-image-1")

	_, err := c.GenerateStructuredText(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

func TestGenerateStructuredText_EmptyOutput(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output":[{"type":"message","content":[{"type":"output_text","text":"  "}]}]}`))
	}, "gpt-image-1")

	_, err := c.GenerateStructuredText(context.Background(), "s", "u")
	assert.Error(t, err)
}

func TestDo_RetriesRateLimit(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"output":[{"type":"message","content":[{"type":"output_text","text":"{}"}]}]}`))
	}, "gpt-image-1")

	text, err := c.GenerateStructuredText(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, "{}", text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, "gpt-image-1")

	_, err := c.GenerateStructuredText(context.Background(), "s", "u")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDo_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}, "gpt-image-1")

	_, err := c.GenerateStructuredText(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGenerateImage(t *testing.T) {
	var got imagesGenerationRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{
				"b64_json":       base64.StdEncoding.EncodeToString(pngHeader),
				"revised_prompt": " a smiling person at the beach ",
			}},
		})
	}, "gpt-image-1")

	img, err := c.GenerateImage(context.Background(), "portrait, setting: beach")
	require.NoError(t, err)

	assert.Equal(t, pngHeader, img.Data)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, "a smiling person at the beach", img.RevisedPrompt)
	assert.Equal(t, "gpt-image-1", img.Model)

	assert.Empty(t, got.ResponseFormat, "gpt-image models do not take response_format")
	assert.Equal(t, 1, got.N)
}

func TestGenerateImage_LegacyModelAsksForBase64(t *testing.T) {
	var got imagesGenerationRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":[{"b64_json":"` + base64.StdEncoding.EncodeToString(pngHeader) + `"}]}`))
	}, "dall-e-3")

	_, err := c.GenerateImage(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "b64_json", got.ResponseFormat)
}

func TestGenerateImage_NoData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}, "gpt-image-1")

	_, err := c.GenerateImage(context.Background(), "prompt")
	assert.ErrorIs(t, err, engine.ErrNoImage)

	_, err = c.GenerateImage(context.Background(), "   ")
	assert.Error(t, err)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("soon"))
}

func TestClient_SatisfiesGenerators(t *testing.T) {
	var _ engine.ImageGenerator = (*Client)(nil)
	var _ prompting.TextGenerator = (*Client)(nil)
	var _ taxonomy.TextGenerator = (*Client)(nil)
	var _ adaptive.TextGenerator = (*Client)(nil)
}
