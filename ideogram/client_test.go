package ideogram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const okReply = `{
  "created": "2024-10-01T12:00:00Z",
  "data": [{
    "url": "https://ideogram.ai/api/images/ephemeral/abc.png",
    "prompt": "a lighthouse at dusk ___ (((steer)))",
    "resolution": "1024x1024",
    "is_image_safe": true,
    "seed": 12345,
    "style_type": "GENERAL"
  }]
}`

func TestClientGenerate_Success(t *testing.T) {
	var gotKey string
	var gotBody map[string]map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/generate" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get("Api-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, okReply)
	}))
	defer server.Close()

	client, err := NewClient("test-key", WithBaseURL(server.URL+"/"))
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}

	resp, err := client.Generate(context.Background(), DefaultParams().Request("a lighthouse at dusk"))
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if gotKey != "test-key" {
		t.Errorf("expected Api-Key header test-key, got %q", gotKey)
	}
	inner := gotBody["image_request"]
	if inner == nil {
		t.Fatalf("body missing image_request envelope: %v", gotBody)
	}
	if inner["aspect_ratio"] != "ASPECT_1_1" {
		t.Errorf("expected aspect_ratio ASPECT_1_1, got %v", inner["aspect_ratio"])
	}
	if _, ok := inner["resolution"]; ok {
		t.Error("resolution must not be sent alongside aspect_ratio")
	}
	if inner["model"] != "V_2" || inner["magic_prompt_option"] != "ON" || inner["style_type"] != "GENERAL" {
		t.Errorf("unexpected parameters: %v", inner)
	}
	if _, ok := inner["seed"]; ok {
		t.Error("nil seed should be omitted")
	}

	img, ok := resp.First()
	if !ok {
		t.Fatal("expected one image in response")
	}
	if img.Seed != 12345 || !img.IsImageSafe || img.Resolution != "1024x1024" {
		t.Errorf("unexpected image: %+v", img)
	}
}

func TestClientGenerate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"detail":"rate limited"}`)
	}))
	defer server.Close()

	logPath := filepath.Join(t.TempDir(), "requests.log")
	client, _ := NewClient("k", WithBaseURL(server.URL), WithRequestLog(NewRequestLog(logPath)))

	_, err := client.Generate(context.Background(), DefaultParams().Request("a lighthouse at dusk"))

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T (%v)", err, err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Body, "rate limited") {
		t.Errorf("expected body to be kept, got %q", apiErr.Body)
	}
	if !apiErr.Temporary() {
		t.Error("429 should be temporary")
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("request log not written: %v", err)
	}
	if !strings.Contains(string(data), `"StatusCode": 429`) {
		t.Errorf("request log missing status: %s", data)
	}
}

func TestClientGenerate_ValidatesBeforeSending(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client, _ := NewClient("k", WithBaseURL(server.URL))

	if _, err := client.Generate(context.Background(), Request{Prompt: "  ", Size: AspectRatio(Aspect1x1)}); !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("expected ErrEmptyPrompt, got %v", err)
	}
	if _, err := client.Generate(context.Background(), Request{Prompt: "a fox"}); !errors.Is(err, ErrNoSize) {
		t.Errorf("expected ErrNoSize, got %v", err)
	}
	if called {
		t.Error("invalid requests must not reach the service")
	}
}

func TestClientGenerate_RequestLogAppends(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, okReply)
	}))
	defer server.Close()

	logPath := filepath.Join(t.TempDir(), "requests.log")
	client, _ := NewClient("k", WithBaseURL(server.URL), WithRequestLog(NewRequestLog(logPath)))

	for i := 0; i < 2; i++ {
		if _, err := client.Generate(context.Background(), DefaultParams().Request("a lighthouse at dusk")); err != nil {
			t.Fatalf("Generate() error: %v", err)
		}
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	dec := json.NewDecoder(strings.NewReader(string(data)))
	count := 0
	for dec.More() {
		var entry RequestLogEntry
		if err := dec.Decode(&entry); err != nil {
			t.Fatalf("log entry %d is not JSON: %v", count, err)
		}
		if entry.Response == nil || len(entry.Response.Data) != 1 {
			t.Errorf("entry %d missing response", count)
		}
		count++
	}
	if count != 2 {
		t.Errorf("expected 2 log entries, got %d", count)
	}
}

func TestNewClient_RequiresKey(t *testing.T) {
	if _, err := NewClient(" "); err == nil {
		t.Error("expected error for empty API key")
	}
}
