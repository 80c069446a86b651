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

package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"classroom-agent/internal/agent"
	"classroom-agent/internal/api/http"
	"classroom-agent/internal/api/http/middleware"
	"classroom-agent/internal/app"
	"classroom-agent/internal/backend"
	"classroom-agent/internal/model/llm"
	"classroom-agent/internal/runtime/session"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 Model、Tools、Agent、Session、HTTP Router）
type App struct {
	config       *app.Bootstrap
	router       *http.Router
	hertz        *server.Hertz
	sessionStore session.SessionStore
	otelProvider otelProviderShutdown
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(ctx context.Context, bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config

	cm, err := llm.NewChatModel(ctx, cfg, bootstrap.Secrets)
	if err != nil {
		return nil, fmt.Errorf("初始化 ChatModel 失败: %w", err)
	}

	backendTimeout := parseDuration(cfg.Backend.Timeout, 15*time.Second)
	client := backend.NewClient(cfg.Backend.BaseURL, backendTimeout)

	var limiter *agent.ToolRateLimiter
	if len(cfg.RateLimits.Tools) > 0 {
		limits := make(map[string]agent.ToolLimitConfig, len(cfg.RateLimits.Tools))
		for name, l := range cfg.RateLimits.Tools {
			limits[name] = agent.ToolLimitConfig{QPS: l.QPS, MaxConcurrent: l.MaxConcurrent, Burst: l.Burst}
		}
		limiter = agent.NewToolRateLimiter(limits)
	}

	tools, err := agent.NewTools(client, limiter)
	if err != nil {
		return nil, fmt.Errorf("初始化工具失败: %w", err)
	}

	chatAgent, err := agent.New(ctx, cm, tools, agent.Config{
		SystemPrompt:  cfg.Agent.SystemPrompt,
		MaxSteps:      cfg.Agent.MaxSteps,
		HistoryRounds: cfg.Agent.HistoryRounds,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 Agent 失败: %w", err)
	}

	// 会话存储：postgres 时跨进程共享，否则内存
	var sessionStore session.SessionStore
	if cfg.Session.Type == "postgres" && cfg.Session.DSN != "" {
		pgStore, err := session.NewPostgresStore(ctx, cfg.Session.DSN)
		if err != nil {
			return nil, fmt.Errorf("初始化会话存储(postgres)失败: %w", err)
		}
		sessionStore = pgStore
		bootstrap.Logger.Info("会话存储使用 PostgreSQL 后端")
	} else {
		sessionStore = session.NewMemoryStore()
	}
	sessionManager := session.NewManager(sessionStore)

	handler := http.NewHandler(chatAgent, sessionManager)
	mw := middleware.NewMiddleware()
	router := http.NewRouter(handler, mw)

	if cfg.API.Middleware.DisableAuth {
		router.SetAuthEnabled(false)
	}
	if cfg.API.Middleware.RateLimit && cfg.API.Middleware.RateLimitRPS > 0 {
		router.SetRateLimit(cfg.API.Middleware.RateLimitRPS)
	}
	if cfg.API.Middleware.Auth && cfg.API.Middleware.JWTKey != "" {
		timeout := parseDuration(cfg.API.Middleware.JWTTimeout, time.Hour)
		maxRefresh := parseDuration(cfg.API.Middleware.JWTMaxRefresh, time.Hour)
		jwtAuth, err := middleware.NewJWTAuth([]byte(cfg.API.Middleware.JWTKey), timeout, maxRefresh)
		if err != nil {
			bootstrap.Logger.Warn("JWT 初始化失败，将回退为头检查", "error", err)
		} else {
			router.SetJWT(jwtAuth)
			bootstrap.Logger.Info("JWT 认证已启用")
		}
	}

	return &App{
		config:       bootstrap,
		router:       router,
		sessionStore: sessionStore,
	}, nil
}

// Run 启动 HTTP 服务，addr 如 ":8000"
func (a *App) Run(addr string) error {
	a.config.Logger.Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与 bootstrap 配置对齐
	output := os.Stdout
	if a.config.Config != nil && a.config.Config.Log.File != "" {
		f, err := os.OpenFile(a.config.Config.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	if a.config.Config != nil {
		switch a.config.Config.Log.Level {
		case "debug":
			levelVar.Set(slog.LevelDebug)
		case "warn":
			levelVar.Set(slog.LevelWarn)
		case "error":
			levelVar.Set(slog.LevelError)
		default:
			levelVar.Set(slog.LevelInfo)
		}
	}
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	// 可选：启用链路追踪（OpenTelemetry）
	if a.config.Config != nil && a.config.Config.Monitoring.Tracing.Enable {
		serviceName := a.config.Config.Monitoring.Tracing.ServiceName
		if serviceName == "" {
			serviceName = "classroom-agent"
		}
		exportEndpoint := a.config.Config.Monitoring.Tracing.ExportEndpoint
		if exportEndpoint == "" {
			exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		if exportEndpoint != "" {
			opts := []provider.Option{
				provider.WithServiceName(serviceName),
				provider.WithExportEndpoint(exportEndpoint),
			}
			if a.config.Config.Monitoring.Tracing.Insecure {
				opts = append(opts, provider.WithInsecure())
			}
			a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
			tracerOpt, tcfg := hertztracing.NewServerTracer()
			a.hertz = a.router.Build(addr, tracerOpt)
			a.hertz.Use(hertztracing.ServerMiddleware(tcfg))
			a.config.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
		} else {
			a.hertz = a.router.Build(addr)
		}
	} else {
		a.hertz = a.router.Build(addr)
	}
	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	if closer, ok := a.sessionStore.(interface{ Close() }); ok {
		closer.Close()
	}
	return nil
}

// parseDuration 解析时长字符串，无效或空时返回 defaultVal
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
