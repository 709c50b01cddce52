package browser

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, handler http.Handler) *AgentClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewAgentClient(AgentConfig{Endpoint: srv.URL}, zerolog.Nop())
}

func TestAgentClient_FocusedURL(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/focus" || r.Method != http.MethodGet {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://example.com/watch"})
	}))

	url, err := client.FocusedURL(context.Background())
	if err != nil {
		t.Fatalf("FocusedURL failed: %v", err)
	}
	if url != "https://example.com/watch" {
		t.Errorf("FocusedURL = %q", url)
	}
}

func TestAgentClient_NoFocusedPage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	_, err := client.FocusedURL(context.Background())
	if !errors.Is(err, ErrNoFocusedPage) {
		t.Errorf("Expected ErrNoFocusedPage, got %v", err)
	}
}

func TestAgentClient_EmptyURLTreatedAsUnfocused(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"url": ""})
	}))

	_, err := client.FocusedURL(context.Background())
	if !errors.Is(err, ErrNoFocusedPage) {
		t.Errorf("Expected ErrNoFocusedPage, got %v", err)
	}
}

func TestAgentClient_Navigate(t *testing.T) {
	var got navigateRequest

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/navigate" || r.Method != http.MethodPost {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := client.Navigate(context.Background(), "about:blank"); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}
	if got.URL != "about:blank" {
		t.Errorf("Agent received %q, want about:blank", got.URL)
	}
}

func TestAgentClient_ErrorStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	if _, err := client.FocusedURL(context.Background()); err == nil {
		t.Error("Expected error for 500 focus response")
	}
	if err := client.Navigate(context.Background(), "about:blank"); err == nil {
		t.Error("Expected error for 500 navigate response")
	}
}
