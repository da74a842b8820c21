package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/recipe-assistant/backend/internal/logging"
)

func newTestLLM(t *testing.T, handler http.HandlerFunc, maxConcurrent int) *LLMService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewLLMService(LLMConfig{
		APIKey:        "test-api-key",
		APIURL:        server.URL + "/v1/chat/completions",
		Model:         "test-model",
		Timeout:       2 * time.Second,
		MaxConcurrent: maxConcurrent,
	}, logging.Discard())
}

func chatResponse(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
}

func TestLLMService_Complete(t *testing.T) {
	var got Request
	svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(chatResponse(`{"title":"Soup"}`))
	}, 2)

	content, err := svc.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, creativeOptions)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Soup"}`, content)
	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, "json_object", got.ResponseFormat["type"])
	assert.Equal(t, 0.9, got.Temperature)
}

func TestLLMService_CompleteErrors(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}, 1)
		_, err := svc.Complete(context.Background(), nil, preciseOptions)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 503")
	})

	t.Run("no choices", func(t *testing.T) {
		svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}, 1)
		_, err := svc.Complete(context.Background(), nil, preciseOptions)
		assert.EqualError(t, err, "no response from API")
	})

	t.Run("missing key", func(t *testing.T) {
		svc := NewLLMService(LLMConfig{APIURL: "http://127.0.0.1:1"}, logging.Discard())
		assert.False(t, svc.Configured())
		_, err := svc.Complete(context.Background(), nil, preciseOptions)
		assert.Error(t, err)
		assert.Error(t, svc.Ping(context.Background()))
	})

	t.Run("timeout", func(t *testing.T) {
		svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}, 1)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := svc.Complete(ctx, nil, preciseOptions)
		assert.Error(t, err)
	})
}

func TestLLMService_ConcurrencyCeiling(t *testing.T) {
	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		_ = json.NewEncoder(w).Encode(chatResponse(`{}`))
	}, 2)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Complete(context.Background(), nil, preciseOptions)
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool {
		active, _ := svc.Load()
		return active == 2
	}, time.Second, 10*time.Millisecond)

	close(release)
	wg.Wait()

	assert.Equal(t, int32(2), peak.Load())
	active, limit := svc.Load()
	assert.Zero(t, active)
	assert.Equal(t, 2, limit)
}

func TestLLMService_Ping(t *testing.T) {
	svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-api-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}, 1)

	assert.NoError(t, svc.Ping(context.Background()))
}
