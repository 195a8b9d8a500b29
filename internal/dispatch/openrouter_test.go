// ABOUTME: Tests for the OpenRouter completion client.
// ABOUTME: Uses httptest servers to cover success, rejection, and network failure paths.

package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Complete(t *testing.T) {
	var gotReq chatRequest
	var gotAuth, gotReferer, gotTitle string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)

		gotAuth = r.Header.Get("Authorization")
		gotReferer = r.Header.Get("HTTP-Referer")
		gotTitle = r.Header.Get("X-Title")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  hello back\n"}}]}`))
	}))
	defer srv.Close()

	client := NewClient("sk-test", "https://example.com/aplmint", "aplmint", WithBaseURL(srv.URL))

	text, err := client.Complete(context.Background(), "hello", "deepseek/deepseek-chat:free")
	require.NoError(t, err)
	assert.Equal(t, "hello back", text)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "https://example.com/aplmint", gotReferer)
	assert.Equal(t, "aplmint", gotTitle)

	assert.Equal(t, "deepseek/deepseek-chat:free", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "You are a helpful assistant.", gotReq.Messages[0].Content)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
	assert.Equal(t, "hello", gotReq.Messages[1].Content)
}

func TestClient_Complete_ProviderRejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"bad credentials", http.StatusUnauthorized},
		{"invalid model", http.StatusBadRequest},
		{"provider quota", http.StatusTooManyRequests},
		{"server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			client := NewClient("sk-test", "", "", WithBaseURL(srv.URL))

			_, err := client.Complete(context.Background(), "hi", "m")
			assert.ErrorIs(t, err, ErrProviderRejected)
		})
	}
}

func TestClient_Complete_NetworkUnreachable(t *testing.T) {
	// A server that is already closed produces a transport-level failure.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient("sk-test", "", "", WithBaseURL(srv.URL))

	_, err := client.Complete(context.Background(), "hi", "m")
	assert.ErrorIs(t, err, ErrNetworkUnreachable)
}

func TestClient_Complete_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": not json`))
	}))
	defer srv.Close()

	client := NewClient("sk-test", "", "", WithBaseURL(srv.URL))

	_, err := client.Complete(context.Background(), "hi", "m")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrProviderRejected)
	assert.NotErrorIs(t, err, ErrNetworkUnreachable)
}

func TestClient_Complete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client := NewClient("sk-test", "", "", WithBaseURL(srv.URL))

	_, err := client.Complete(context.Background(), "hi", "m")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrProviderRejected)
}
