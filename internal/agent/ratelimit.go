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
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// ToolLimitConfig Tool 限流配置
type ToolLimitConfig struct {
	QPS           float64 // 每秒请求数限制
	MaxConcurrent int     // 最大并发数
	Burst         int     // 令牌桶容量，默认为 QPS
}

// ToolRateLimiter Tool 维度的限流器，支持 QPS + 并发控制
type ToolRateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*toolLimiter
}

type toolLimiter struct {
	rateLimiter *rate.Limiter
	semaphore   chan struct{}
}

// NewToolRateLimiter 创建 Tool 限流器；configs 为空时所有工具不限流
func NewToolRateLimiter(configs map[string]ToolLimitConfig) *ToolRateLimiter {
	t := &ToolRateLimiter{limiters: make(map[string]*toolLimiter)}
	for name, cfg := range configs {
		t.addToolLimiter(name, cfg)
	}
	return t
}

func (t *ToolRateLimiter) addToolLimiter(toolName string, config ToolLimitConfig) {
	if config.Burst == 0 {
		config.Burst = int(config.QPS)
	}
	limiter := &toolLimiter{}
	if config.QPS > 0 {
		limiter.rateLimiter = rate.NewLimiter(rate.Limit(config.QPS), config.Burst)
	}
	if config.MaxConcurrent > 0 {
		limiter.semaphore = make(chan struct{}, config.MaxConcurrent)
	}
	t.mu.Lock()
	t.limiters[toolName] = limiter
	t.mu.Unlock()
}

// Acquire 获取执行许可；返回的 release 必须在调用结束后执行。
// 未配置的工具直接放行。
func (t *ToolRateLimiter) Acquire(ctx context.Context, toolName string) (func(), error) {
	t.mu.RLock()
	limiter, ok := t.limiters[toolName]
	t.mu.RUnlock()
	if !ok {
		return func() {}, nil
	}

	if limiter.semaphore != nil {
		select {
		case limiter.semaphore <- struct{}{}:
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire concurrency slot for %s: %w", toolName, ctx.Err())
		}
	}
	release := func() {
		if limiter.semaphore != nil {
			<-limiter.semaphore
		}
	}

	if limiter.rateLimiter != nil {
		if err := limiter.rateLimiter.Wait(ctx); err != nil {
			release()
			return nil, fmt.Errorf("rate limit wait for %s: %w", toolName, err)
		}
	}
	return release, nil
}
