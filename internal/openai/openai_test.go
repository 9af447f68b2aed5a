package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ageless-collectibles/cardcataloger/internal/models"
	"github.com/ageless-collectibles/cardcataloger/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImages(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	front := filepath.Join(dir, "Box1-AA_0001_F.jpg")
	back := filepath.Join(dir, "Box1-AA_0001_B.png")
	require.NoError(t, os.WriteFile(front, []byte("front-bytes"), 0o644))
	require.NoError(t, os.WriteFile(back, []byte("back-bytes"), 0o644))
	return front, back
}

func completion(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": content}, "finish_reason": "stop"},
		},
	}
}

func noSleep() providers.RetryPolicy {
	policy := providers.DefaultRetryPolicy()
	policy.Sleeper = func(time.Duration) {}
	return policy
}

func TestAnalyzeSendsImagesAndDecodesJSON(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	front, back := writeImages(t)

	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(completion("```json\n{\"sku\":\"Box1-AA_0001\",\"conf\":0.91}\n```"))
	}))
	defer server.Close()

	p := New(WithBaseURL(server.URL), WithRetryPolicy(noSleep()))
	raw, err := p.Analyze(context.Background(), providers.Request{
		FrontImage:  front,
		BackImage:   back,
		Hints:       models.HintPayload{ItemID: "Box1-AA_0001", Rules: "rules text"},
		Model:       "gpt-test",
		MaxTokens:   900,
		Temperature: 0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Box1-AA_0001", raw["sku"])
	assert.Equal(t, 0.91, raw["conf"])

	assert.Equal(t, "gpt-test", captured.Model)
	assert.Equal(t, 900, captured.MaxTokens)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "rules text", captured.Messages[0].Content)
	encoded, err := json.Marshal(captured.Messages[1].Content)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), "data:image/jpeg;base64,")
	assert.Contains(t, string(encoded), "data:image/png;base64,")
	assert.Contains(t, string(encoded), "sku=Box1-AA_0001")
}

func TestAnalyzeRetriesRateLimitThenSucceeds(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	front, back := writeImages(t)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"slow down"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(completion(`{"sku":"Box1-AA_0001","conf":0.7}`))
	}))
	defer server.Close()

	p := New(WithBaseURL(server.URL), WithRetryPolicy(noSleep()))
	raw, err := p.Analyze(context.Background(), providers.Request{FrontImage: front, BackImage: back})
	require.NoError(t, err)
	assert.Equal(t, "Box1-AA_0001", raw["sku"])
	assert.Equal(t, int32(3), calls.Load())
}

func TestAnalyzeFailsFastOnPermanentStatus(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	front, back := writeImages(t)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad image"}`))
	}))
	defer server.Close()

	p := New(WithBaseURL(server.URL), WithRetryPolicy(noSleep()))
	_, err := p.Analyze(context.Background(), providers.Request{FrontImage: front, BackImage: back})
	require.Error(t, err)

	var statusErr *providers.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "openai", statusErr.Provider)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.False(t, statusErr.Retryable())
	assert.Equal(t, int32(1), calls.Load())
}

func TestAnalyzeMalformedContent(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	front, back := writeImages(t)

	for name, content := range map[string]string{"empty": "", "prose": "I can't tell which card this is."} {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(completion(content))
			}))
			defer server.Close()

			p := New(WithBaseURL(server.URL), WithRetryPolicy(noSleep()))
			_, err := p.Analyze(context.Background(), providers.Request{FrontImage: front, BackImage: back})
			require.ErrorIs(t, err, providers.ErrMalformedResponse)
		})
	}
}

func TestAnalyzeMissingCredential(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := New().Analyze(context.Background(), providers.Request{})
	require.ErrorIs(t, err, providers.ErrMissingCredential)
	assert.True(t, strings.Contains(err.Error(), "OPENAI_API_KEY"))
}

func TestAnalyzeObservesCancellation(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	front, back := writeImages(t)

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	p := New(WithBaseURL(server.URL), WithRetryPolicy(noSleep()))
	_, err := providers.CallWithTimeout(context.Background(), p, providers.Request{FrontImage: front, BackImage: back}, 50*time.Millisecond)
	require.ErrorIs(t, err, providers.ErrTimeout)
}
