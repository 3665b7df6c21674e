package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"curriculumhub/pkg/aiinterface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&aiinterface.ClientConfig{
		APIKey:  "sk-test",
		BaseURL: server.URL + "/v1",
		Model:   "gpt-4o-mini",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", "req_err")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    "invalid_request_error",
			"code":    code,
		},
	})
}

func userRequest(content string) *aiinterface.ChatCompletionRequest {
	return &aiinterface.ChatCompletionRequest{
		Messages: []aiinterface.Message{{Role: "user", Content: content}},
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(&aiinterface.ClientConfig{})
	require.Error(t, err)

	var f *aiinterface.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, http.StatusUnauthorized, f.HTTPStatus)
}

func TestChatCompletion(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Request-Id", "req_abc")
		_, _ = fmt.Fprint(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Photosynthesis turns light into sugar."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 7, "total_tokens": 12}
		}`)
	})

	resp, err := client.ChatCompletion(context.Background(), userRequest("photosynthesis"))

	require.NoError(t, err)
	assert.Equal(t, "chatcmpl-1", resp.ID)
	assert.Equal(t, "req_abc", resp.RequestID)
	assert.Equal(t, "Photosynthesis turns light into sugar.", resp.Content)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
}

func TestChatCompletionStream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{"Prime ", "numbers ", "have two factors."}
		for _, c := range chunks {
			_, _ = fmt.Fprintf(w, "data: {\"id\":\"chatcmpl-s\",\"object\":\"chat.completion.chunk\",\"model\":\"gpt-4o-mini\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", c)
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	})

	req := userRequest("primes")
	req.Stream = true
	resp, err := client.ChatCompletion(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "Prime numbers have two factors.", resp.Content)
	assert.Equal(t, "chatcmpl-s", resp.ID)
}

func TestChatCompletionErrors(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		code     string
		message  string
		filtered bool
	}{
		{"凭证错误", http.StatusUnauthorized, "invalid_api_key", "Incorrect API key provided", false},
		{"限流", http.StatusTooManyRequests, "rate_limit_exceeded", "Rate limit reached", false},
		{"参数错误", http.StatusBadRequest, "invalid_value", "bad temperature", false},
		{"内容过滤", http.StatusBadRequest, "content_filter", "The response was filtered", true},
		{"后端错误", http.StatusInternalServerError, "server_error", "internal error", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeError(w, tc.status, tc.code, tc.message)
			})

			_, err := client.ChatCompletion(context.Background(), userRequest("hi"))
			require.Error(t, err)

			var f *aiinterface.Failure
			require.ErrorAs(t, err, &f)
			assert.Equal(t, tc.status, f.HTTPStatus)
			assert.Equal(t, tc.filtered, f.ContentFiltered)
			assert.Equal(t, tc.code, f.BackendCode)
			assert.Equal(t, "req_err", f.RequestID)
			assert.Equal(t, "gpt-4o-mini", f.Model)
		})
	}
}

func TestChatCompletionContentFilterFinishReason(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"id":"x","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":""},"finish_reason":"content_filter"}]}`)
	})

	_, err := client.ChatCompletion(context.Background(), userRequest("hi"))

	var f *aiinterface.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, http.StatusBadRequest, f.HTTPStatus)
	assert.True(t, f.ContentFiltered)
}

func TestChatCompletionEmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"id":"x","model":"gpt-4o-mini","choices":[]}`)
	})

	_, err := client.ChatCompletion(context.Background(), userRequest("hi"))

	var f *aiinterface.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, http.StatusBadGateway, f.HTTPStatus)
}

func TestChatCompletionConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL + "/v1"
	server.Close()

	client, err := NewClient(&aiinterface.ClientConfig{APIKey: "sk-test", BaseURL: baseURL, Timeout: time.Second})
	require.NoError(t, err)

	_, err = client.ChatCompletion(context.Background(), userRequest("hi"))

	var f *aiinterface.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, 0, f.HTTPStatus)
	assert.Equal(t, aiinterface.ConnCodeRefused, f.ConnErrorCode)
}

func TestListModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"object":"list","data":[{"id":"gpt-4o-mini","object":"model","owned_by":"openai"},{"id":"gpt-4o","object":"model","owned_by":"openai"}]}`)
	})

	models, err := client.ListModels(context.Background())

	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "gpt-4o-mini", models[0].ID)
	assert.Equal(t, "openai", models[0].OwnedBy)
}

func TestListModelsUnauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusUnauthorized, "invalid_api_key", "Incorrect API key provided")
	})

	_, err := client.ListModels(context.Background())

	var f *aiinterface.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, http.StatusUnauthorized, f.HTTPStatus)
}
