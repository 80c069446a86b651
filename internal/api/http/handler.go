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
	"context"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	agentpkg "classroom-agent/internal/agent"
	"classroom-agent/internal/runtime/session"
	"classroom-agent/pkg/metrics"
)

// ChatAgent 对话循环（由 internal/agent 实现）
type ChatAgent interface {
	Chat(ctx context.Context, sess *session.Session) (*agentpkg.Result, error)
}

// Handler HTTP 请求处理器
type Handler struct {
	agent          ChatAgent
	sessionManager session.SessionManager
}

// NewHandler 创建 Handler
func NewHandler(agent ChatAgent, sm session.SessionManager) *Handler {
	return &Handler{agent: agent, sessionManager: sm}
}

// ChatMessage 请求中的一条历史消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest POST /chat 请求体。messages 为完整对话历史（最后一条为用户输入）；
// session_id 可选，携带时服务端沿用同一 Session 的工具观察记录
type ChatRequest struct {
	Messages  []ChatMessage `json:"messages"`
	SessionID string        `json:"session_id,omitempty"`
}

// ChatResponse POST /chat 响应体
type ChatResponse struct {
	Message    string           `json:"message"`
	Classrooms []map[string]any `json:"classrooms"`
	ToolCalled bool             `json:"toolCalled"`
	SessionID  string           `json:"session_id"`
}

// Chat 处理一次对话请求
// POST /chat
func (h *Handler) Chat(c context.Context, ctx *app.RequestContext) {
	start := time.Now()

	var req ChatRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Messages) == 0 {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "messages is required"})
		return
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" || strings.TrimSpace(last.Content) == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "last message must be a non-empty user message"})
		return
	}

	sess, err := h.sessionManager.GetOrCreate(c, req.SessionID)
	if err != nil {
		hlog.CtxErrorf(c, "get session failed: %v", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": "session unavailable"})
		return
	}
	// 调用方历史为准：请求携带的 messages 覆盖服务端已存历史
	msgs := make([]*session.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, &session.Message{Role: m.Role, Content: m.Content, Timestamp: time.Now()})
	}
	sess.SetMessages(msgs)

	res, err := h.agent.Chat(c, sess)
	if err != nil {
		metrics.ChatTotal.WithLabelValues("error").Inc()
		metrics.ChatDuration.Observe(time.Since(start).Seconds())
		hlog.CtxErrorf(c, "chat failed: %v", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": "chat failed"})
		return
	}

	if err := h.sessionManager.Save(c, sess); err != nil {
		hlog.CtxWarnf(c, "save session %s failed: %v", sess.ID, err)
	}

	metrics.ChatTotal.WithLabelValues("ok").Inc()
	metrics.ChatDuration.Observe(time.Since(start).Seconds())

	classrooms := res.Classrooms
	if classrooms == nil {
		classrooms = []map[string]any{}
	}
	ctx.JSON(consts.StatusOK, ChatResponse{
		Message:    res.Answer,
		Classrooms: classrooms,
		ToolCalled: res.ToolCalled,
		SessionID:  sess.ID,
	})
}

// HealthCheck 健康检查
// GET /health
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]string{"status": "ok"})
}

// Metrics Prometheus 文本格式指标
// GET /metrics
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	var buf strings.Builder
	if err := metrics.WritePrometheus(&buf); err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": "gather metrics failed"})
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4", []byte(buf.String()))
}
