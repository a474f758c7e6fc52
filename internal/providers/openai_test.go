package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["stream"] != true {
			t.Errorf("stream = %v, want true", body["stream"])
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n", line)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func deltaLine(content string) string {
	return fmt.Sprintf(`data: {"choices":[{"delta":{"content":%q}}]}`, content)
}

func TestChatStream(t *testing.T) {
	srv := sseServer(t, []string{
		deltaLine("Hello"),
		deltaLine(" there"),
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":4,"total_tokens":16}}`,
		"data: [DONE]",
		deltaLine("never seen"),
	})

	p := NewOpenAIProvider("test", "test-key", srv.URL, "test-model")

	var chunks []StreamChunk
	resp, err := p.ChatStream(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	}, func(c StreamChunk) {
		chunks = append(chunks, c)
	})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}

	if resp.Content != "Hello there" {
		t.Errorf("Content = %q, want %q", resp.Content, "Hello there")
	}
	if resp.FinishReason != "stop" {
		t.Errorf("FinishReason = %q, want stop", resp.FinishReason)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 16 {
		t.Errorf("Usage = %+v, want total 16", resp.Usage)
	}

	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 2 content + 1 done", len(chunks))
	}
	if chunks[0].Content != "Hello" || chunks[1].Content != " there" {
		t.Errorf("content chunks = %q, %q", chunks[0].Content, chunks[1].Content)
	}
	if !chunks[2].Done {
		t.Error("last chunk should be the done marker")
	}

	// Streamed content equals the concatenation of content chunks.
	var joined string
	for _, c := range chunks {
		joined += c.Content
	}
	if joined != resp.Content {
		t.Errorf("chunk concatenation = %q, response = %q", joined, resp.Content)
	}
}

func TestChatStreamIgnoresGarbageLines(t *testing.T) {
	srv := sseServer(t, []string{
		": keepalive comment",
		"data: {not json",
		deltaLine("ok"),
		"data: [DONE]",
	})

	p := NewOpenAIProvider("test", "test-key", srv.URL, "test-model")
	resp, err := p.ChatStream(context.Background(), ChatRequest{}, nil)
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q, want %q", resp.Content, "ok")
	}
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["model"] != "test-model" {
			t.Errorf("model = %v, want default applied", body["model"])
		}
		if body["max_tokens"] != float64(100) {
			t.Errorf("max_tokens = %v, want 100", body["max_tokens"])
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"answer"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test", "test-key", srv.URL, "test-model")
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "q"}},
		Options:  map[string]interface{}{OptMaxTokens: 100},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "answer" {
		t.Errorf("Content = %q, want %q", resp.Content, "answer")
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 7 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
}

func TestChatHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"bad key"}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test", "bad-key", srv.URL, "test-model")
	_, err := p.Chat(context.Background(), ChatRequest{})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want HTTPError", err)
	}
	if httpErr.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", httpErr.Status)
	}
}

func TestNewGroqDefaults(t *testing.T) {
	p := NewGroq("k", "llama-3.3-70b-versatile")
	if p.Name() != "groq" {
		t.Errorf("Name() = %q", p.Name())
	}
	if p.DefaultModel() != "llama-3.3-70b-versatile" {
		t.Errorf("DefaultModel() = %q", p.DefaultModel())
	}
	if p.apiBase != GroqAPIBase {
		t.Errorf("apiBase = %q, want %q", p.apiBase, GroqAPIBase)
	}
}
