package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tkoide/kwprobe/internal/config"
	kwerrors "github.com/tkoide/kwprobe/internal/errors"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	t.Setenv("KWPROBE_TEST_KEY", "test-key")
	cfg := config.DefaultConfig()
	cfg.Endpoint = server.URL
	cfg.APIKeyEnv = "KWPROBE_TEST_KEY"

	client, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func TestNew_MissingAPIKey(t *testing.T) {
	t.Setenv("KWPROBE_TEST_KEY", "")
	cfg := config.DefaultConfig()
	cfg.APIKeyEnv = "KWPROBE_TEST_KEY"

	_, err := New(cfg, zerolog.Nop())
	if !kwerrors.Is(err, kwerrors.ErrInvalidRequest) {
		t.Errorf("New error = %v, want INVALID_REQUEST", err)
	}
}

func TestCall_BasicResponse(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Error("missing api key header")
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "hello "}, {"text": "world"}}}},
			},
		})
	})

	res, err := client.Call(context.Background(), "say hi", "be brief", false)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if res.Text != "hello world" {
		t.Errorf("Text = %q, want 'hello world'", res.Text)
	}
	if len(res.Citations) != 0 {
		t.Errorf("Citations = %v, want none without search", res.Citations)
	}
	if !strings.HasSuffix(gotPath, "/models/gemini-2.5-flash:generateContent") {
		t.Errorf("path = %q", gotPath)
	}
	if _, ok := gotBody["systemInstruction"]; !ok {
		t.Error("context not sent as system instruction")
	}
	if _, ok := gotBody["tools"]; ok {
		t.Error("tools attached without search")
	}
}

func TestCall_SearchGrounding(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["tools"]; !ok {
			t.Error("google_search tool not attached")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{"parts": []map[string]any{{"text": "solar is growing fast"}}},
				"groundingMetadata": map[string]any{
					"groundingChunks": []map[string]any{
						{"web": map[string]any{"uri": "https://g.example/a", "title": "Energy Report"}},
						{"web": map[string]any{"uri": "https://g.example/b", "title": ""}},
					},
					"groundingSupports": []map[string]any{
						{"segment": map[string]any{"endIndex": 5}, "groundingChunkIndices": []int{0}},
					},
				},
			}},
		})
	})

	res, err := client.Call(context.Background(), "solar?", "", true)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if len(res.Citations) != 2 {
		t.Fatalf("len(Citations) = %d, want 2", len(res.Citations))
	}
	if res.Citations[0].Title != "Energy Report" {
		t.Errorf("Citations[0].Title = %q", res.Citations[0].Title)
	}
	// Untitled chunks fall back to the URI.
	if res.Citations[1].Title != "https://g.example/b" {
		t.Errorf("Citations[1].Title = %q", res.Citations[1].Title)
	}
	if res.Text != "solar[1](https://g.example/a) is growing fast" {
		t.Errorf("Text = %q, link marker missing or misplaced", res.Text)
	}
}

func TestCall_APIError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 429, "message": "Resource has been exhausted"},
		})
	})

	_, err := client.Call(context.Background(), "hi", "", false)
	if !kwerrors.Is(err, kwerrors.ErrProvider) {
		t.Fatalf("Call error = %v, want PROVIDER_ERROR", err)
	}
	if !strings.Contains(err.Error(), "Resource has been exhausted") {
		t.Errorf("error message lost provider detail: %v", err)
	}
}

func TestCall_EmptyCandidates(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	})

	_, err := client.Call(context.Background(), "hi", "", false)
	if !kwerrors.Is(err, kwerrors.ErrProvider) {
		t.Errorf("Call error = %v, want PROVIDER_ERROR", err)
	}
}

func TestInjectCitationLinks_DescendingOrder(t *testing.T) {
	meta := &groundingMetadata{}
	data := `{
		"groundingChunks": [
			{"web": {"uri": "https://g.example/a", "title": "A"}},
			{"web": {"uri": "https://g.example/b", "title": "B"}}
		],
		"groundingSupports": [
			{"segment": {"endIndex": 3}, "groundingChunkIndices": [0]},
			{"segment": {"endIndex": 7}, "groundingChunkIndices": [1]}
		]
	}`
	if err := json.Unmarshal([]byte(data), meta); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	got := injectCitationLinks("one two three", meta)
	want := "one[1](https://g.example/a) two[2](https://g.example/b) three"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestInjectCitationLinks_OutOfRangeIgnored(t *testing.T) {
	meta := &groundingMetadata{}
	data := `{
		"groundingChunks": [{"web": {"uri": "https://g.example/a", "title": "A"}}],
		"groundingSupports": [
			{"segment": {"endIndex": 999}, "groundingChunkIndices": [0]},
			{"segment": {"endIndex": 3}, "groundingChunkIndices": [5]}
		]
	}`
	if err := json.Unmarshal([]byte(data), meta); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got := injectCitationLinks("abc def", meta); got != "abc def" {
		t.Errorf("got %q, want text unchanged", got)
	}
}
