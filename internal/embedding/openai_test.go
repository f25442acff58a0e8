package embedding

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestNewOpenAIClient_RequiresKey verifies a missing API key is surfaced as
// a configuration failure, not a latent runtime one.
func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIConfig{})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

// TestOpenAIClient_Embed verifies the happy path against a fake endpoint.
func TestOpenAIClient_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`)); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	vector, err := client.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	want := []float64{0.1, 0.2, 0.3}
	if len(vector) != len(want) {
		t.Fatalf("vector length = %d, want %d", len(vector), len(want))
	}
	for i := range want {
		if vector[i] != want[i] {
			t.Errorf("vector[%d] = %f, want %f", i, vector[i], want[i])
		}
	}
}

// TestOpenAIClient_Embed_Failures covers upstream failure modes, all mapped
// to ErrUnavailable.
func TestOpenAIClient_Embed_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
		},
		{
			name: "empty data",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte(`{"data":[]}`)); err != nil {
					t.Errorf("failed to write response: %v", err)
				}
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte(`not json`)); err != nil {
					t.Errorf("failed to write response: %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "test-key"})
			if err != nil {
				t.Fatalf("NewOpenAIClient() error = %v", err)
			}

			if _, err := client.Embed(context.Background(), "hello"); !errors.Is(err, ErrUnavailable) {
				t.Errorf("error = %v, want ErrUnavailable", err)
			}
		})
	}
}

// TestOpenAIClient_Embed_Unreachable verifies a connection failure maps to
// ErrUnavailable.
func TestOpenAIClient_Embed_Unreachable(t *testing.T) {
	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: "http://127.0.0.1:1", APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	if _, err := client.Embed(context.Background(), "hello"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

// TestCachedEmbedder_CacheKeyProperties verifies keys are deterministic per
// text and scoped by model.
func TestCachedEmbedder_CacheKeyProperties(t *testing.T) {
	a := NewCachedEmbedder(nil, nil, "model-a", nil)
	b := NewCachedEmbedder(nil, nil, "model-b", nil)

	if a.cacheKey("hello") != a.cacheKey("hello") {
		t.Error("cache key is not deterministic")
	}
	if a.cacheKey("hello") == a.cacheKey("world") {
		t.Error("distinct texts share a cache key")
	}
	if a.cacheKey("hello") == b.cacheKey("hello") {
		t.Error("distinct models share a cache key")
	}
}
