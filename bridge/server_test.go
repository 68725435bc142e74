package bridge

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/timoa/github-actions-gui/editor"
	"github.com/timoa/github-actions-gui/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := storage.NewMemStore()
	cache := editor.NewParseCache(time.Minute)
	s := NewServer("test", func() *editor.Session {
		return editor.NewSession(store, editor.WithParseCache(cache))
	}, cache, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp, out
}

func contentBody(t *testing.T, content string) string {
	t.Helper()
	b, err := json.Marshal(sourceRequest{Content: content})
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestAPIEndpoints(t *testing.T) {
	ts := newTestServer(t)
	body := contentBody(t, ciDoc)

	t.Run("parse", func(t *testing.T) {
		resp, out := postJSON(t, ts.URL+"/api/parse", body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d: %v", resp.StatusCode, out)
		}
		doc, ok := out["document"].(map[string]any)
		if !ok || doc["name"] != "CI" {
			t.Errorf("document = %v", out["document"])
		}
	})

	t.Run("format", func(t *testing.T) {
		_, out := postJSON(t, ts.URL+"/api/format", body)
		content, _ := out["content"].(string)
		if !strings.HasPrefix(content, "name: CI\n") {
			t.Errorf("content = %q", content)
		}
	})

	t.Run("lint", func(t *testing.T) {
		_, out := postJSON(t, ts.URL+"/api/lint", body)
		if _, ok := out["problems"].([]any); !ok {
			t.Errorf("problems = %v", out["problems"])
		}
	})

	t.Run("graph", func(t *testing.T) {
		_, out := postJSON(t, ts.URL+"/api/graph", body)
		order, _ := out["order"].([]any)
		if len(order) != 1 || order[0] != "build" {
			t.Errorf("order = %v", out["order"])
		}
		graph, _ := out["graph"].(map[string]any)
		if nodes, _ := graph["nodes"].([]any); len(nodes) != 3 {
			t.Errorf("nodes = %v", graph["nodes"])
		}
	})
}

func TestAPIErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{"content":`, http.StatusBadRequest},
		{"invalid yaml", contentBody(t, "jobs: [unclosed"), http.StatusUnprocessableEntity},
		{"binary content", contentBody(t, "name: a\x00b"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := postJSON(t, ts.URL+"/api/parse", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if out["error"] == "" || out["error"] == nil {
				t.Error("no error message")
			}
		})
	}
}

func TestWebsocketSession(t *testing.T) {
	ts := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	exchange := func(msg Message) Message {
		t.Helper()
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatal(err)
		}
		var reply Message
		if err := conn.ReadJSON(&reply); err != nil {
			t.Fatal(err)
		}
		return reply
	}

	reply := exchange(Message{Command: CmdSetSource, Content: ciDoc})
	if reply.Command != CmdState || reply.State == nil {
		t.Fatalf("reply = %+v", reply)
	}
	if _, ok := reply.State.Graph.Node("build"); !ok {
		t.Error("state has no build node")
	}

	reply = exchange(Message{Command: CmdEdit, Op: "addJob", Args: json.RawMessage(`{"needs":["build"]}`)})
	if !strings.Contains(reply.Content, "job-1:") {
		t.Errorf("content after addJob = %q", reply.Content)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{")); err != nil {
		t.Fatal(err)
	}
	var bad Message
	if err := conn.ReadJSON(&bad); err != nil {
		t.Fatal(err)
	}
	if bad.Command != CmdError {
		t.Errorf("reply to malformed message = %+v", bad)
	}
}
