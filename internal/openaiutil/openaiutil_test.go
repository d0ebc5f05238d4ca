package openaiutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{APIKey: "  "}, nil); err == nil {
		t.Fatalf("expected error for missing api key")
	}
}

func TestGenerateSendsRequestAndParsesReply(t *testing.T) {
	var gotAuth string
	var gotBody request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"  - one\n- two  "}}],"usage":{"prompt_tokens":12,"completion_tokens":5}}`)
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "sk-test", Endpoint: srv.URL}, srv.Client())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	res, err := c.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if res.Text != "- one\n- two" {
		t.Fatalf("expected trimmed reply, got %q", res.Text)
	}
	if res.PromptTokens != 12 || res.CompletionTokens != 5 {
		t.Fatalf("unexpected usage %+v", res)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if gotBody.Model != DefaultModel || len(gotBody.Messages) != 2 || gotBody.Messages[1].Content != "hello" {
		t.Fatalf("unexpected request %+v", gotBody)
	}
	if gotBody.ReasoningEffort != "minimal" {
		t.Fatalf("expected gpt-5 tuning, got %+v", gotBody)
	}
}

func TestGenerateSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 2000), http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, _ := New(Config{APIKey: "k", Endpoint: srv.URL}, srv.Client())
	_, err := c.Generate(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected 429 error, got %v", err)
	}
	if len(err.Error()) > maxErrorBody+100 {
		t.Fatalf("expected clipped error body, got %d bytes", len(err.Error()))
	}
}

func TestGenerateReportsAPIErrorAndEmptyChoices(t *testing.T) {
	replies := []string{
		`{"error":{"message":"bad model"}}`,
		`{"choices":[]}`,
	}
	for _, reply := range replies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, reply)
		}))
		c, _ := New(Config{APIKey: "k", Endpoint: srv.URL, Model: "gpt-4o-mini", Temperature: 0.3}, srv.Client())
		if _, err := c.Generate(context.Background(), "x"); err == nil {
			t.Fatalf("expected error for reply %s", reply)
		}
		srv.Close()
	}
}
