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
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"classroom-agent/internal/runtime/session"
)

// defaultSystemPrompt 内置提示词；可被 agent.system_prompt 配置覆盖
const defaultSystemPrompt = "You are a classroom finder assistant. " +
	"Help users find campus classrooms that match their needs. " +
	"Use search_classrooms for style and size requirements, and " +
	"search_classrooms_with_amenities when the user also asks for equipment " +
	"such as projectors or whiteboards. Answer concisely based on tool results; " +
	"if a search fails, tell the user and suggest they try again."

// Config Agent 行为配置
type Config struct {
	SystemPrompt  string
	MaxSteps      int // ReAct 最大步数，<=0 使用默认 10
	HistoryRounds int // 带入模型的最近对话轮数，<=0 不限制
}

// Agent 对话循环封装：调模型 → 可能调工具 → 产出最终回答。
// 循环本身由 eino 预置 ReAct Agent 提供，这里只做消息转换与结果提取。
type Agent struct {
	ra            *react.Agent
	systemPrompt  string
	historyRounds int
}

// Result 一次对话的产出
type Result struct {
	Answer     string
	ToolCalled bool
	ToolCalls  []session.ToolCallRecord
	Classrooms []map[string]any
}

// New 创建 Agent
func New(ctx context.Context, cm model.ToolCallingChatModel, tools []tool.BaseTool, cfg Config) (*Agent, error) {
	maxStep := cfg.MaxSteps
	if maxStep <= 0 {
		maxStep = 10
	}
	ra, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: cm,
		ToolsConfig:      compose.ToolsNodeConfig{Tools: tools},
		MaxStep:          maxStep,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 ReAct Agent 失败: %w", err)
	}
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	return &Agent{
		ra:            ra,
		systemPrompt:  prompt,
		historyRounds: cfg.HistoryRounds,
	}, nil
}

// Chat 执行一次完整对话循环。Session 的最后一条消息应为用户输入；
// 最终回答与途中产生的工具观察都会写回 Session。
func (a *Agent) Chat(ctx context.Context, sess *session.Session) (*Result, error) {
	history := session.TrimRounds(sess.CopyMessages(), a.historyRounds)
	msgs := make([]*schema.Message, 0, len(history)+1)
	msgs = append(msgs, schema.SystemMessage(a.systemPrompt))
	for _, m := range history {
		switch m.Role {
		case "user":
			msgs = append(msgs, schema.UserMessage(m.Content))
		case "assistant":
			msgs = append(msgs, schema.AssistantMessage(m.Content, nil))
		case "system":
			msgs = append(msgs, schema.SystemMessage(m.Content))
		}
	}

	before := len(sess.CopyToolCalls())
	out, err := a.ra.Generate(session.WithSession(ctx, sess), msgs)
	if err != nil {
		return nil, fmt.Errorf("agent generate: %w", err)
	}

	sess.AddMessage("assistant", out.Content)
	records := sess.CopyToolCalls()[before:]
	return &Result{
		Answer:     out.Content,
		ToolCalled: len(records) > 0,
		ToolCalls:  records,
		Classrooms: extractClassrooms(records),
	}, nil
}

// extractClassrooms 从成功的工具观察中解析教室列表。
// 后端两种响应形态都接受：裸数组或 {"classrooms":[...]}
func extractClassrooms(records []session.ToolCallRecord) []map[string]any {
	var out []map[string]any
	for _, r := range records {
		if r.Err != "" || r.Output == "" {
			continue
		}
		var arr []map[string]any
		if err := json.Unmarshal([]byte(r.Output), &arr); err == nil {
			out = append(out, arr...)
			continue
		}
		var wrapped struct {
			Classrooms []map[string]any `json:"classrooms"`
		}
		if err := json.Unmarshal([]byte(r.Output), &wrapped); err == nil {
			out = append(out, wrapped.Classrooms...)
		}
	}
	return out
}
