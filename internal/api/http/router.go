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
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/hertz-contrib/jwt"

	"classroom-agent/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler      *Handler
	middleware   *middleware.Middleware
	jwtAuth      *jwt.HertzJWTMiddleware
	authEnabled  bool
	rateLimitRPS int
}

// NewRouter 创建路由器；认证默认开启（/chat 要求 Authorization 头）
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{
		handler:     handler,
		middleware:  mw,
		authEnabled: true,
	}
}

// SetJWT 启用 JWT 认证（取代 Authorization 头存在性校验）
func (r *Router) SetJWT(auth *jwt.HertzJWTMiddleware) {
	r.jwtAuth = auth
}

// SetAuthEnabled 开关 /chat 的认证校验（本地调试用）
func (r *Router) SetAuthEnabled(enabled bool) {
	r.authEnabled = enabled
}

// SetRateLimit 启用全局 RPS 限流，rps<=0 不限流
func (r *Router) SetRateLimit(rps int) {
	r.rateLimitRPS = rps
}

// Build 注册全部路由并返回 Hertz Server
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	opts = append(opts, server.WithHostPorts(addr))
	h := server.Default(opts...)

	h.Use(r.middleware.CORS())
	h.Use(r.middleware.AccessLog())
	if r.rateLimitRPS > 0 {
		h.Use(r.middleware.RateLimit(r.rateLimitRPS))
	}

	h.GET("/health", r.handler.HealthCheck)
	h.GET("/metrics", r.handler.Metrics)

	if r.jwtAuth != nil {
		h.POST("/auth/login", r.jwtAuth.LoginHandler)
		h.GET("/auth/refresh", r.jwtAuth.RefreshHandler)
		h.POST("/chat", r.jwtAuth.MiddlewareFunc(), r.handler.Chat)
		return h
	}

	if r.authEnabled {
		h.POST("/chat", r.middleware.RequireAuth(), r.handler.Chat)
	} else {
		h.POST("/chat", r.handler.Chat)
	}
	return h
}
