// ABOUTME: Minimal fake chat backend for development and E2E testing.
// ABOUTME: Streams scripted NDJSON turns, including tool calls and stops.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8000", "Listen address")
	delay := flag.Duration("delay", 40*time.Millisecond, "Delay between streamed chunks")
	flag.Parse()

	b := &backend{
		delay:   *delay,
		stopped: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/chat", b.handleChat)
	mux.HandleFunc("/stop", b.handleStop)

	log.Printf("fake backend listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, mux))
}

type backend struct {
	delay time.Duration

	mu      sync.Mutex
	stopped map[string]bool
}

// chatRequest is the turn payload sent by the client.
type chatRequest struct {
	Messages []message `json:"messages"`
	Model    string    `json:"model"`
}

type message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
	Name      string     `json:"name,omitempty"`
}

type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

func (b *backend) handleStop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequestID string `json:"request_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RequestID == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	b.stopped[req.RequestID] = true
	b.mu.Unlock()
	log.Printf("stop requested for %s", req.RequestID)
	w.WriteHeader(http.StatusOK)
}

func (b *backend) isStopped(requestID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopped[requestID]
}

func (b *backend) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")

	requestID := uuid.NewString()
	emit := func(obj map[string]any) bool {
		if b.isStopped(requestID) {
			line, _ := json.Marshal(map[string]any{"status": "stopped"})
			fmt.Fprintf(w, "%s\n", line)
			flusher.Flush()
			return false
		}
		line, err := json.Marshal(obj)
		if err != nil {
			return false
		}
		fmt.Fprintf(w, "%s\n", line)
		flusher.Flush()
		time.Sleep(b.delay)
		return true
	}

	emit(map[string]any{"status": "started", "request_id": requestID})

	last := lastUserContent(req.Messages)
	lower := strings.ToLower(last)
	log.Printf("[%s] %d messages, model=%s", requestID, len(req.Messages), req.Model)

	switch {
	case strings.Contains(lower, "error"):
		emit(map[string]any{"error": "simulated backend failure"})
		return
	case hasToolResults(req.Messages):
		streamText(emit, "I ran the tool and here is what came back: everything looks good.")
	case strings.Contains(lower, "tool"):
		b.streamToolTurn(emit)
	default:
		streamText(emit, echoReply(last))
	}

	emit(map[string]any{"status": "finished"})
}

// streamText emits a reply as content deltas followed by the
// finalized assistant message.
func streamText(emit func(map[string]any) bool, reply string) {
	for _, word := range strings.SplitAfter(reply, " ") {
		if !emit(map[string]any{"content_delta": word}) {
			return
		}
	}
	emit(map[string]any{"assistant_message": map[string]any{"content": reply}})
}

// streamToolTurn requests a local tool call; the client executes it
// and comes back for a chained turn.
func (b *backend) streamToolTurn(emit func(map[string]any) bool) {
	callID := "call_" + uuid.NewString()[:8]
	if !emit(map[string]any{"tool_starting": "list_project_files", "tool_id": callID}) {
		return
	}
	emit(map[string]any{
		"status": "executing_tools",
		"assistant_message": map[string]any{
			"content": "Let me look at the project files.",
			"tool_calls": []map[string]any{
				{
					"id":   callID,
					"type": "function",
					"function": map[string]any{
						"name":      "list_project_files",
						"arguments": "{}",
					},
				},
			},
		},
	})
}

func lastUserContent(msgs []message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	return ""
}

// hasToolResults reports whether the tail of the conversation is tool
// output, meaning this request is the chained follow-up turn.
func hasToolResults(msgs []message) bool {
	return len(msgs) > 0 && msgs[len(msgs)-1].Role == "tool"
}

func echoReply(input string) string {
	lower := strings.ToLower(input)
	if strings.Contains(lower, "markdown") || strings.Contains(lower, "bullet") || strings.Contains(lower, "list") {
		return "Here is a **markdown** response:\n\n- First item\n- Second item with `code`\n- Third item\n\n> This is a blockquote."
	}
	return fmt.Sprintf("Echo: **%s**\n\nI received your message and am responding with some *formatted* text.", input)
}
