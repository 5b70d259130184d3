package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// staticTokens is a TokenSource with a controllable token and an
// invalidation counter.
type staticTokens struct {
	token       string
	invalidated atomic.Int64
}

func (s *staticTokens) Token(ctx context.Context) (string, error) {
	return s.token, nil
}

func (s *staticTokens) Invalidate() error {
	s.invalidated.Add(1)
	s.token = "refreshed-token"
	return nil
}

func newTestCodeAssist(t *testing.T, handler http.Handler) (*CodeAssistProvider, *staticTokens) {
	t.Helper()
	t.Setenv("GOOGLE_CLOUD_PROJECT", "test-project")

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tokens := &staticTokens{token: "test-token"}
	p := NewCodeAssistProvider(tokens, "gemini-2.5-pro", 1024, 0.2).
		WithHTTPClient(server.Client())
	p.endpoint = server.URL
	return p, tokens
}

func TestCodeAssistChatTranslatesRequest(t *testing.T) {
	var captured map[string]interface{}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1internal:generateContent", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("expected bearer token, got %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != codeAssistUserAgent {
			t.Errorf("unexpected user agent %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		fmt.Fprint(w, `{"response":{"candidates":[{"content":{"role":"model","parts":[{"text":"hello"}]}}],"usageMetadata":{"promptTokenCount":7,"candidatesTokenCount":3,"totalTokenCount":10}}}`)
	})

	p, _ := newTestCodeAssist(t, mux)

	resp, err := p.Chat(context.Background(), []ChatMessage{
		SystemMessage("Be brief."),
		UserMessage("Say hello"),
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("expected content 'hello', got %q", resp.Content)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 10 {
		t.Errorf("expected usage total 10, got %+v", resp.Usage)
	}

	if captured["model"] != "gemini-2.5-pro" {
		t.Errorf("expected model in payload, got %v", captured["model"])
	}
	if captured["project"] != "test-project" {
		t.Errorf("expected project from env, got %v", captured["project"])
	}
	request, _ := captured["request"].(map[string]interface{})
	if request == nil {
		t.Fatal("payload missing request envelope")
	}
	if _, ok := request["systemInstruction"]; !ok {
		t.Error("system message not mapped to systemInstruction")
	}
	contents, _ := request["contents"].([]interface{})
	if len(contents) != 1 {
		t.Fatalf("expected 1 content (system extracted), got %d", len(contents))
	}
	genConfig, _ := request["generationConfig"].(map[string]interface{})
	if genConfig["maxOutputTokens"] != float64(1024) {
		t.Errorf("expected maxOutputTokens 1024, got %v", genConfig["maxOutputTokens"])
	}
}

func TestCodeAssistChatRefreshesOn401(t *testing.T) {
	var calls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/v1internal:generateContent", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"code":401}}`)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer refreshed-token" {
			t.Errorf("retry should carry refreshed token, got %q", got)
		}
		fmt.Fprint(w, `{"response":{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}}`)
	})

	p, tokens := newTestCodeAssist(t, mux)

	resp, err := p.Chat(context.Background(), []ChatMessage{UserMessage("hi")})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("expected 'ok', got %q", resp.Content)
	}
	if got := tokens.invalidated.Load(); got != 1 {
		t.Errorf("expected exactly 1 invalidation, got %d", got)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected exactly 2 requests (one retry), got %d", got)
	}
}

func TestCodeAssistChatWithToolsReturnsToolCalls(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1internal:generateContent", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]interface{}
		_ = json.Unmarshal(body, &payload)
		request, _ := payload["request"].(map[string]interface{})
		if _, ok := request["tools"]; !ok {
			t.Error("tool declarations missing from request")
		}
		fmt.Fprint(w, `{"response":{"candidates":[{"content":{"parts":[{"functionCall":{"name":"read_file","args":{"path":"a.txt"}}}]}}]}}`)
	})

	p, _ := newTestCodeAssist(t, mux)

	resp, err := p.ChatWithTools(context.Background(), []ChatMessage{UserMessage("read a.txt")}, []ToolDefinition{
		{Name: "read_file", Description: "Read a file", Parameters: map[string]interface{}{"type": "object"}},
	})
	if err != nil {
		t.Fatalf("ChatWithTools failed: %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "read_file" {
		t.Fatalf("expected read_file tool call, got %+v", resp.ToolCalls)
	}
	var args map[string]string
	if err := json.Unmarshal(resp.ToolCalls[0].Arguments, &args); err != nil {
		t.Fatalf("tool call args not JSON: %v", err)
	}
	if args["path"] != "a.txt" {
		t.Errorf("expected path arg 'a.txt', got %q", args["path"])
	}
}

func TestCodeAssistStreamChat(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1internal:streamGenerateContent", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("alt") != "sse" {
			t.Errorf("expected alt=sse, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"response\":{\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Hel\"}]}}]}}\n\n")
		fmt.Fprint(w, "data: not-json\n\n")
		fmt.Fprint(w, "data: {\"response\":{\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"lo\"}]}}],\"usageMetadata\":{\"promptTokenCount\":5,\"candidatesTokenCount\":2,\"totalTokenCount\":7}}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	p, _ := newTestCodeAssist(t, mux)

	chunks := make(chan string, 16)
	usage, err := p.StreamChat(context.Background(), []ChatMessage{UserMessage("hi")}, chunks)
	close(chunks)
	if err != nil {
		t.Fatalf("StreamChat failed: %v", err)
	}

	var full string
	var count int
	for chunk := range chunks {
		full += chunk
		count++
	}
	if full != "Hello" {
		t.Errorf("expected reassembled 'Hello', got %q", full)
	}
	if count != 2 {
		t.Errorf("expected 2 deltas, got %d", count)
	}
	if usage == nil || usage.TotalTokens != 7 {
		t.Errorf("expected usage from final chunk, got %+v", usage)
	}
}

func TestCodeAssistProjectDiscoveryOnboards(t *testing.T) {
	var loadCalls, onboardCalls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/v1internal:loadCodeAssist", func(w http.ResponseWriter, r *http.Request) {
		loadCalls.Add(1)
		body, _ := io.ReadAll(r.Body)
		var payload map[string]interface{}
		_ = json.Unmarshal(body, &payload)
		metadata, _ := payload["metadata"].(map[string]interface{})
		if metadata["pluginType"] != "GEMINI" {
			t.Errorf("expected GEMINI plugin metadata, got %v", metadata)
		}
		// No currentTier: the client must onboard.
		fmt.Fprint(w, `{"allowedTiers":[{"id":"free-tier","isDefault":true}]}`)
	})
	mux.HandleFunc("/v1internal:onboardUser", func(w http.ResponseWriter, r *http.Request) {
		onboardCalls.Add(1)
		body, _ := io.ReadAll(r.Body)
		var payload map[string]interface{}
		_ = json.Unmarshal(body, &payload)
		if payload["tierId"] != "free-tier" {
			t.Errorf("expected free-tier onboarding, got %v", payload["tierId"])
		}
		fmt.Fprint(w, `{"done":true,"response":{"cloudaicompanionProject":{"id":"managed-project"}}}`)
	})
	mux.HandleFunc("/v1internal:generateContent", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]interface{}
		_ = json.Unmarshal(body, &payload)
		if payload["project"] != "managed-project" {
			t.Errorf("expected onboarded project, got %v", payload["project"])
		}
		fmt.Fprint(w, `{"response":{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}}`)
	})

	p, _ := newTestCodeAssist(t, mux)
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")

	if _, err := p.Chat(context.Background(), []ChatMessage{UserMessage("hi")}); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	// Second request reuses the resolved project.
	if _, err := p.Chat(context.Background(), []ChatMessage{UserMessage("again")}); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if got := loadCalls.Load(); got != 1 {
		t.Errorf("expected 1 loadCodeAssist call, got %d", got)
	}
	if got := onboardCalls.Load(); got != 1 {
		t.Errorf("expected 1 onboardUser call, got %d", got)
	}
}

func TestCodeAssistProjectDiscoveryRetriesAfterFailure(t *testing.T) {
	var loadCalls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/v1internal:loadCodeAssist", func(w http.ResponseWriter, r *http.Request) {
		if loadCalls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"code":500}}`)
			return
		}
		fmt.Fprint(w, `{"cloudaicompanionProject":"recovered-project","currentTier":{"id":"standard"}}`)
	})

	p, _ := newTestCodeAssist(t, mux)
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")

	project, err := p.ensureProject(context.Background())
	if err != nil {
		t.Fatalf("ensureProject failed: %v", err)
	}
	if project != "" {
		t.Errorf("expected empty project while discovery is failing, got %q", project)
	}

	project, err = p.ensureProject(context.Background())
	if err != nil {
		t.Fatalf("ensureProject failed: %v", err)
	}
	if project != "recovered-project" {
		t.Errorf("expected discovery to be retried after a server error, got %q", project)
	}
	if got := loadCalls.Load(); got != 2 {
		t.Errorf("expected 2 loadCodeAssist calls, got %d", got)
	}
}

func TestCodeAssistProjectFromCurrentTier(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1internal:loadCodeAssist", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"cloudaicompanionProject":"existing-project","currentTier":{"id":"standard"}}`)
	})
	mux.HandleFunc("/v1internal:onboardUser", func(w http.ResponseWriter, r *http.Request) {
		t.Error("onboardUser should not be called when a tier is already set")
	})

	p, _ := newTestCodeAssist(t, mux)
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")

	project, err := p.ensureProject(context.Background())
	if err != nil {
		t.Fatalf("ensureProject failed: %v", err)
	}
	if project != "existing-project" {
		t.Errorf("expected 'existing-project', got %q", project)
	}
}

func TestConvertToCodeAssistContents(t *testing.T) {
	contents, system := convertToCodeAssistContents([]ChatMessage{
		SystemMessage("sys"),
		UserMessage("question"),
		{Role: "assistant", ToolCalls: []ToolCall{{ID: "grep", Name: "grep", Arguments: []byte(`{"pattern":"x"}`)}}},
		{Role: "tool", ToolCallID: "grep", Content: `{"matches":0}`},
		AssistantMessage("answer"),
	})

	if system != "sys" {
		t.Errorf("expected system 'sys', got %q", system)
	}
	if len(contents) != 4 {
		t.Fatalf("expected 4 contents, got %d", len(contents))
	}
	if contents[0].Role != "user" || contents[0].Parts[0].Text != "question" {
		t.Errorf("unexpected first content: %+v", contents[0])
	}
	if contents[1].Role != "model" || contents[1].Parts[0].FunctionCall == nil {
		t.Errorf("expected model functionCall, got %+v", contents[1])
	}
	if contents[2].Role != "user" || contents[2].Parts[0].FunctionResponse == nil {
		t.Errorf("expected functionResponse as user content, got %+v", contents[2])
	}
	if contents[2].Parts[0].FunctionResponse.Name != "grep" {
		t.Errorf("functionResponse should carry the tool call id, got %+v", contents[2].Parts[0].FunctionResponse)
	}
	if contents[3].Parts[0].Text != "answer" {
		t.Errorf("unexpected final content: %+v", contents[3])
	}
}
