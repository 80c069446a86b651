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

package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"classroom-agent/internal/backend"
	"classroom-agent/internal/runtime/session"
)

// fakeChatModel 脚本化模型：按序返回预设回复，驱动真实的 ReAct 循环
type fakeChatModel struct {
	mu      sync.Mutex
	scripts []*schema.Message
	step    int
	seen    [][]*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, input)
	if f.step >= len(f.scripts) {
		return schema.AssistantMessage("out of script", nil), nil
	}
	msg := f.scripts[f.step]
	f.step++
	return msg, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

func toolCallMessage(name, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{
			{
				ID:       "call-1",
				Function: schema.FunctionCall{Name: name, Arguments: args},
			},
		},
	}
}

func newTestAgent(t *testing.T, backendURL string, fake *fakeChatModel) *Agent {
	t.Helper()
	client := backend.NewClient(backendURL, 2*time.Second)
	tools, err := NewTools(client, nil)
	if err != nil {
		t.Fatalf("NewTools: %v", err)
	}
	a, err := New(context.Background(), fake, tools, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestChatWithToolCall(t *testing.T) {
	var gotStyle, gotSize string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStyle = r.URL.Query().Get("style")
		gotSize = r.URL.Query().Get("size")
		w.Write([]byte(`{"classrooms":[{"id":1,"name":"Moore 110","capacity":24}]}`))
	}))
	defer srv.Close()

	fake := &fakeChatModel{scripts: []*schema.Message{
		toolCallMessage(ToolSearchClassrooms, `{"style":"seminar","size":20}`),
		schema.AssistantMessage("Moore 110 seats 24 and fits a seminar.", nil),
	}}
	a := newTestAgent(t, srv.URL, fake)

	sess := session.New("")
	sess.AddMessage("user", "I need a seminar room for 20 people")

	res, err := a.Chat(context.Background(), sess)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if res.Answer != "Moore 110 seats 24 and fits a seminar." {
		t.Errorf("answer: %q", res.Answer)
	}
	if !res.ToolCalled {
		t.Errorf("ToolCalled should be true")
	}
	if gotStyle != "seminar" || gotSize != "20" {
		t.Errorf("backend query: style=%q size=%q", gotStyle, gotSize)
	}
	if len(res.Classrooms) != 1 || res.Classrooms[0]["name"] != "Moore 110" {
		t.Errorf("classrooms: %+v", res.Classrooms)
	}

	// 最终回答写回会话
	msgs := sess.CopyMessages()
	last := msgs[len(msgs)-1]
	if last.Role != "assistant" || last.Content != res.Answer {
		t.Errorf("session tail: %+v", last)
	}

	// 首次模型调用：system prompt 在前，用户消息在后
	if len(fake.seen) == 0 {
		t.Fatalf("model never called")
	}
	first := fake.seen[0]
	if first[0].Role != schema.System {
		t.Errorf("first message role: %s", first[0].Role)
	}
	if first[len(first)-1].Role != schema.User {
		t.Errorf("last input role: %s", first[len(first)-1].Role)
	}
}

func TestChatWithoutToolCall(t *testing.T) {
	fake := &fakeChatModel{scripts: []*schema.Message{
		schema.AssistantMessage("Hi! Tell me what kind of classroom you need.", nil),
	}}
	a := newTestAgent(t, "http://127.0.0.1:1", fake)

	sess := session.New("")
	sess.AddMessage("user", "hello")

	res, err := a.Chat(context.Background(), sess)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if res.ToolCalled {
		t.Errorf("ToolCalled should be false")
	}
	if len(res.Classrooms) != 0 {
		t.Errorf("classrooms should be empty: %+v", res.Classrooms)
	}
}

// 工具失败时模型收到失败文本，最终仍产出回答而非错误
func TestChatToolFailureStillAnswers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	fake := &fakeChatModel{scripts: []*schema.Message{
		toolCallMessage(ToolSearchClassrooms, `{"style":"lab","size":15}`),
		schema.AssistantMessage("The search failed, please try again in a moment.", nil),
	}}
	a := newTestAgent(t, srv.URL, fake)

	sess := session.New("")
	sess.AddMessage("user", "find a lab for 15")

	res, err := a.Chat(context.Background(), sess)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if res.Answer == "" {
		t.Errorf("expected an answer")
	}
	if !res.ToolCalled {
		t.Errorf("tool was attempted, ToolCalled should be true")
	}
	if len(res.Classrooms) != 0 {
		t.Errorf("no classrooms on failure: %+v", res.Classrooms)
	}
}

func TestExtractClassrooms(t *testing.T) {
	records := []session.ToolCallRecord{
		{Tool: ToolSearchClassrooms, Output: `[{"id":1,"name":"A"}]`},
		{Tool: ToolSearchClassrooms, Output: `{"classrooms":[{"id":2,"name":"B"}]}`},
		{Tool: ToolSearchClassrooms, Output: `boom`, Err: "http 500"},
		{Tool: ToolSearchClassrooms, Output: `"not a list"`},
	}
	got := extractClassrooms(records)
	if len(got) != 2 {
		t.Fatalf("got %d classrooms: %+v", len(got), got)
	}
	if got[0]["name"] != "A" || got[1]["name"] != "B" {
		t.Errorf("classrooms: %+v", got)
	}
}
