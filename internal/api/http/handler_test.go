// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"

	agentpkg "classroom-agent/internal/agent"
	"classroom-agent/internal/api/http/middleware"
	"classroom-agent/internal/runtime/session"
)

// stubAgent 返回固定结果的 ChatAgent
type stubAgent struct {
	result *agentpkg.Result
	err    error
	seen   *session.Session
}

func (s *stubAgent) Chat(ctx context.Context, sess *session.Session) (*agentpkg.Result, error) {
	s.seen = sess
	if s.err != nil {
		return nil, s.err
	}
	sess.AddMessage("assistant", s.result.Answer)
	return s.result, nil
}

func buildChatServer(agent ChatAgent) *server.Hertz {
	manager := session.NewManager(session.NewMemoryStore())
	h := NewHandler(agent, manager)
	r := NewRouter(h, middleware.NewMiddleware())
	return r.Build(":0")
}

func performChat(s *server.Hertz, body []byte, withAuth bool) *ut.ResponseRecorder {
	headers := []ut.Header{{Key: "Content-Type", Value: "application/json"}}
	if withAuth {
		headers = append(headers, ut.Header{Key: "Authorization", Value: "Bearer test-token"})
	}
	return ut.PerformRequest(s.Engine, "POST", "/chat",
		&ut.Body{Body: bytes.NewReader(body), Len: len(body)}, headers...)
}

func TestChatEndpoint(t *testing.T) {
	stub := &stubAgent{result: &agentpkg.Result{
		Answer:     "Try Moore 110.",
		ToolCalled: true,
		Classrooms: []map[string]any{{"id": float64(1), "name": "Moore 110"}},
	}}
	s := buildChatServer(stub)

	body := []byte(`{"messages":[{"role":"user","content":"seminar room for 20"}]}`)
	w := performChat(s, body, true)
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("status = %d, body = %s", got, w.Result().Body())
	}

	var resp ChatResponse
	if err := json.Unmarshal(w.Result().Body(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Message != "Try Moore 110." {
		t.Errorf("message: %q", resp.Message)
	}
	if !resp.ToolCalled {
		t.Errorf("toolCalled should be true")
	}
	if len(resp.Classrooms) != 1 || resp.Classrooms[0]["name"] != "Moore 110" {
		t.Errorf("classrooms: %+v", resp.Classrooms)
	}
	if resp.SessionID == "" {
		t.Errorf("session_id should be set")
	}

	// 请求历史进入 Session
	if stub.seen == nil {
		t.Fatalf("agent not called")
	}
	msgs := stub.seen.CopyMessages()
	if len(msgs) == 0 || msgs[0].Content != "seminar room for 20" {
		t.Errorf("session messages: %+v", msgs)
	}
}

func TestChatRequiresAuthHeader(t *testing.T) {
	s := buildChatServer(&stubAgent{result: &agentpkg.Result{Answer: "hi"}})

	body := []byte(`{"messages":[{"role":"user","content":"hello"}]}`)
	w := performChat(s, body, false)
	if got := w.Result().StatusCode(); got != 401 {
		t.Fatalf("status = %d, want 401", got)
	}
	if !bytes.Contains(w.Result().Body(), []byte("authorization header required")) {
		t.Errorf("body: %s", w.Result().Body())
	}
}

func TestChatValidation(t *testing.T) {
	s := buildChatServer(&stubAgent{result: &agentpkg.Result{Answer: "hi"}})

	cases := []struct {
		name string
		body string
	}{
		{"empty messages", `{"messages":[]}`},
		{"no body", `{}`},
		{"blank user message", `{"messages":[{"role":"user","content":"   "}]}`},
		{"assistant last", `{"messages":[{"role":"assistant","content":"hi"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := performChat(s, []byte(tc.body), true)
			if got := w.Result().StatusCode(); got != 400 {
				t.Fatalf("status = %d, want 400, body = %s", got, w.Result().Body())
			}
		})
	}
}

func TestChatAgentError(t *testing.T) {
	s := buildChatServer(&stubAgent{err: errors.New("model unavailable")})

	body := []byte(`{"messages":[{"role":"user","content":"hello"}]}`)
	w := performChat(s, body, true)
	if got := w.Result().StatusCode(); got != 500 {
		t.Fatalf("status = %d, want 500", got)
	}
}

func TestChatSessionReuse(t *testing.T) {
	stub := &stubAgent{result: &agentpkg.Result{Answer: "ok"}}
	manager := session.NewManager(session.NewMemoryStore())
	h := NewHandler(stub, manager)
	r := NewRouter(h, middleware.NewMiddleware())
	s := r.Build(":0")

	body := []byte(`{"messages":[{"role":"user","content":"first"}]}`)
	w := performChat(s, body, true)
	var resp ChatResponse
	if err := json.Unmarshal(w.Result().Body(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	body2 := []byte(`{"messages":[{"role":"user","content":"second"}],"session_id":"` + resp.SessionID + `"}`)
	w2 := performChat(s, body2, true)
	var resp2 ChatResponse
	if err := json.Unmarshal(w2.Result().Body(), &resp2); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp2.SessionID != resp.SessionID {
		t.Errorf("session_id changed: %q vs %q", resp.SessionID, resp2.SessionID)
	}
}
