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
	"testing"

	"github.com/cloudwego/hertz/pkg/common/ut"

	agentpkg "classroom-agent/internal/agent"
	"classroom-agent/internal/api/http/middleware"
	"classroom-agent/internal/runtime/session"
)

func chatOKResult() *agentpkg.Result {
	return &agentpkg.Result{Answer: "ok"}
}

func TestRouterHealth(t *testing.T) {
	h := NewHandler(nil, session.NewManager(session.NewMemoryStore()))
	r := NewRouter(h, middleware.NewMiddleware())
	s := r.Build(":0")

	w := ut.PerformRequest(s.Engine, "GET", "/health", &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("GET /health status = %d", got)
	}
	if !bytes.Contains(w.Result().Body(), []byte(`"status":"ok"`)) {
		t.Errorf("body: %s", w.Result().Body())
	}
}

func TestRouterMetrics(t *testing.T) {
	h := NewHandler(nil, session.NewManager(session.NewMemoryStore()))
	r := NewRouter(h, middleware.NewMiddleware())
	s := r.Build(":0")

	w := ut.PerformRequest(s.Engine, "GET", "/metrics", &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("GET /metrics status = %d", got)
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	h := NewHandler(nil, session.NewManager(session.NewMemoryStore()))
	r := NewRouter(h, middleware.NewMiddleware())
	s := r.Build(":0")

	w := ut.PerformRequest(s.Engine, "OPTIONS", "/chat", &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	if got := w.Result().StatusCode(); got != 204 {
		t.Fatalf("OPTIONS /chat status = %d, want 204", got)
	}
	if got := w.Result().Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRouterAuthDisabled(t *testing.T) {
	stub := &stubAgent{result: chatOKResult()}
	h := NewHandler(stub, session.NewManager(session.NewMemoryStore()))
	r := NewRouter(h, middleware.NewMiddleware())
	r.SetAuthEnabled(false)
	s := r.Build(":0")

	body := []byte(`{"messages":[{"role":"user","content":"hello"}]}`)
	w := ut.PerformRequest(s.Engine, "POST", "/chat",
		&ut.Body{Body: bytes.NewReader(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("status = %d, body = %s", got, w.Result().Body())
	}
}

func TestRouterRateLimit(t *testing.T) {
	stub := &stubAgent{result: chatOKResult()}
	h := NewHandler(stub, session.NewManager(session.NewMemoryStore()))
	r := NewRouter(h, middleware.NewMiddleware())
	r.SetRateLimit(1)
	s := r.Build(":0")

	body := []byte(`{"messages":[{"role":"user","content":"hello"}]}`)
	limited := false
	for i := 0; i < 5; i++ {
		w := ut.PerformRequest(s.Engine, "POST", "/chat",
			&ut.Body{Body: bytes.NewReader(body), Len: len(body)},
			ut.Header{Key: "Content-Type", Value: "application/json"},
			ut.Header{Key: "Authorization", Value: "Bearer t"})
		if w.Result().StatusCode() == 429 {
			limited = true
			break
		}
	}
	if !limited {
		t.Errorf("rate limit never triggered")
	}
}
