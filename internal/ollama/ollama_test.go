package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/booksnap/booksnap/internal/providers"
)

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if body["format"] != "json" {
			t.Errorf("Expected json format, got %v", body["format"])
		}
		if body["model"] != "llama3" {
			t.Errorf("Expected model llama3, got %v", body["model"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": `{"lines":["Umberto Eco"]}`})
	}))
	defer server.Close()

	got, err := New(server.URL).Generate(context.Background(), providers.Request{Model: "llama3", Prompt: "fix", JSON: true})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != `{"lines":["Umberto Eco"]}` {
		t.Errorf("Unexpected response %q", got)
	}
}

func TestGenerateNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := New(server.URL).Generate(context.Background(), providers.Request{Model: "missing"}); err == nil {
		t.Error("Expected error for 404 response")
	}
}
