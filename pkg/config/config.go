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

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"classroom-agent/pkg/secrets"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Model      ModelConfig      `mapstructure:"model"`
	Backend    BackendConfig    `mapstructure:"backend"`
	Session    SessionConfig    `mapstructure:"session"`
	Secrets    secrets.Config   `mapstructure:"secrets"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Timeout    string           `mapstructure:"timeout"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Auth          bool   `mapstructure:"auth"`            // 与 jwt_key 同时配置时启用 JWT 校验
	DisableAuth   bool   `mapstructure:"disable_auth"`    // 关闭 /chat 的 Authorization 头检查（默认开启检查）
	JWTKey        string `mapstructure:"jwt_key"`         // JWT 签名 key
	JWTTimeout    string `mapstructure:"jwt_timeout"`     // 如 "1h"
	JWTMaxRefresh string `mapstructure:"jwt_max_refresh"` // 如 "1h"
	RateLimit     bool   `mapstructure:"rate_limit"`
	RateLimitRPS  int    `mapstructure:"rate_limit_rps"`
}

// AgentConfig Agent 行为配置
type AgentConfig struct {
	SystemPrompt  string `mapstructure:"system_prompt"`  // 空则使用内置提示词
	MaxSteps      int    `mapstructure:"max_steps"`      // ReAct 最大步数，<=0 使用默认 10
	HistoryRounds int    `mapstructure:"history_rounds"` // 带入模型的最近对话轮数，<=0 不限制
}

// ModelConfig 托管模型配置（OpenAI 兼容）
type ModelConfig struct {
	Provider string `mapstructure:"provider"` // 目前仅 openai
	Name     string `mapstructure:"name"`     // 模型名，如 gpt-4o
	APIKey   string `mapstructure:"api_key"`  // 支持 ${OPENAI_API_KEY} 占位
	BaseURL  string `mapstructure:"base_url"` // OpenAI 兼容网关地址，可选
}

// BackendConfig 教室数据库后端配置
type BackendConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout string `mapstructure:"timeout"` // 如 "15s"
}

// SessionConfig 会话存储配置
type SessionConfig struct {
	Type string `mapstructure:"type"` // memory | postgres
	DSN  string `mapstructure:"dsn"`  // Postgres 连接串，type=postgres 时必填，支持 ${DATABASE_URL}
}

// RateLimitsConfig 工具限流配置
type RateLimitsConfig struct {
	Tools map[string]ToolRateLimitConfig `mapstructure:"tools"`
}

// ToolRateLimitConfig 单个 Tool 的限流配置
type ToolRateLimitConfig struct {
	QPS           float64 `mapstructure:"qps"`
	MaxConcurrent int     `mapstructure:"max_concurrent"`
	Burst         int     `mapstructure:"burst"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	applyDefaults(&config)
	return &config, nil
}

// LoadAPIConfig 加载 API 服务配置：CONFIG_PATH 优先，默认 configs/config.yaml；
// 文件不存在时返回纯默认配置（原服务仅靠环境变量即可启动）
func LoadAPIConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "configs/config.yaml"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := &Config{}
		replaceEnvVars(config)
		applyDefaults(config)
		return config, nil
	}
	return LoadConfig(path)
}

// expandEnv 展开 ${VAR} 占位；非占位原样返回
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		if val := os.Getenv(strings.TrimSuffix(strings.TrimPrefix(s, "${"), "}")); val != "" {
			return val
		}
		return ""
	}
	return s
}

// replaceEnvVars 替换配置中的环境变量占位
func replaceEnvVars(config *Config) {
	config.Model.APIKey = expandEnv(config.Model.APIKey)
	config.Session.DSN = expandEnv(config.Session.DSN)
	config.Secrets.Token = expandEnv(config.Secrets.Token)
	if config.Backend.BaseURL == "" {
		config.Backend.BaseURL = os.Getenv("BACKEND_BASE_URL")
	} else {
		config.Backend.BaseURL = expandEnv(config.Backend.BaseURL)
	}
	if config.Model.APIKey == "" {
		config.Model.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if config.Model.BaseURL == "" {
		config.Model.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
}

// applyDefaults 填充缺省值（端口默认 8000，与原服务 PORT 缺省一致）
func applyDefaults(config *Config) {
	if config.API.Port <= 0 {
		if p := os.Getenv("PORT"); p != "" {
			fmt.Sscanf(p, "%d", &config.API.Port)
		}
	}
	if config.API.Port <= 0 {
		config.API.Port = 8000
	}
	if config.Model.Provider == "" {
		config.Model.Provider = "openai"
	}
	if config.Model.Name == "" {
		config.Model.Name = "gpt-4o"
	}
	if config.Backend.Timeout == "" {
		config.Backend.Timeout = "15s"
	}
	if config.Session.Type == "" {
		config.Session.Type = "memory"
	}
	if config.Agent.MaxSteps <= 0 {
		config.Agent.MaxSteps = 10
	}
	if !config.API.CORS.Enable && len(config.API.CORS.AllowOrigins) == 0 {
		// 原服务 CORS 放开全部来源
		config.API.CORS.Enable = true
		config.API.CORS.AllowOrigins = []string{"*"}
	}
}
