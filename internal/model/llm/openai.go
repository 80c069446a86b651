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

package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"classroom-agent/pkg/config"
	"classroom-agent/pkg/secrets"
)

// NewChatModel 按配置创建 OpenAI 兼容 ChatModel。
// API Key 优先取配置（含 ${ENV} 展开），为空时从 secret store 解析 OPENAI_API_KEY。
// base_url 非空时指向 OpenAI 兼容网关（托管模型部署场景）。
func NewChatModel(ctx context.Context, cfg *config.Config, store secrets.Store) (model.ToolCallingChatModel, error) {
	if cfg == nil {
		return nil, fmt.Errorf("model config is nil")
	}
	if cfg.Model.Provider != "" && cfg.Model.Provider != "openai" {
		return nil, fmt.Errorf("不支持的模型 provider: %s", cfg.Model.Provider)
	}

	apiKey := cfg.Model.APIKey
	if apiKey == "" && store != nil {
		if v, err := store.Get(ctx, "OPENAI_API_KEY"); err == nil {
			apiKey = v
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("model api key 未配置（model.api_key 或 OPENAI_API_KEY）")
	}

	mcfg := &openai.ChatModelConfig{
		Model:  cfg.Model.Name,
		APIKey: apiKey,
	}
	if cfg.Model.BaseURL != "" {
		mcfg.BaseURL = cfg.Model.BaseURL
	}
	cm, err := openai.NewChatModel(ctx, mcfg)
	if err != nil {
		return nil, fmt.Errorf("创建 ChatModel 失败: %w", err)
	}
	return cm, nil
}
