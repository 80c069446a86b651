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
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"

	"classroom-agent/internal/backend"
	"classroom-agent/internal/runtime/session"
	"classroom-agent/pkg/metrics"
)

// 工具名常量（模型按名选择工具）
const (
	ToolSearchClassrooms              = "search_classrooms"
	ToolSearchClassroomsWithAmenities = "search_classrooms_with_amenities"
)

var inferStringTool = func(name, desc string, fn func(context.Context, string) (string, error)) (tool.InvokableTool, error) {
	// 入参类型为 string：原样传入 JSON 字符串，由 fn 自行反序列化
	return utils.InferTool(name, desc, fn, utils.WithUnmarshalArguments(
		func(ctx context.Context, arguments string) (any, error) {
			return arguments, nil
		},
	))
}

// searchInput search_classrooms 入参（JSON）
type searchInput struct {
	Style string `json:"style"`
	Size  int    `json:"size"`
}

// amenitySearchInput search_classrooms_with_amenities 入参（JSON）
type amenitySearchInput struct {
	Style     string   `json:"style"`
	Size      int      `json:"size"`
	Amenities []string `json:"amenities"`
}

// NewTools 基于后端客户端创建两个教室查询工具。
// 失败策略：网络错误或非 2xx 一律转为文本结果交还模型（不返回 Go error），
// 由模型决定如何回答用户。
func NewTools(client *backend.Client, limiter *ToolRateLimiter) ([]tool.BaseTool, error) {
	basic, err := inferStringTool(
		ToolSearchClassrooms,
		"Search campus classrooms by teaching style and seat count. "+
			`input is JSON: {"style":"lecture|seminar|lab","size":30}`,
		func(ctx context.Context, input string) (string, error) {
			var in searchInput
			if err := json.Unmarshal([]byte(input), &in); err != nil {
				return fmt.Sprintf("invalid arguments for %s: %v", ToolSearchClassrooms, err), nil
			}
			return runTool(ctx, limiter, ToolSearchClassrooms, input, func(ctx context.Context) (string, error) {
				return client.SearchClassrooms(ctx, in.Style, in.Size)
			}), nil
		},
	)
	if err != nil {
		return nil, err
	}

	withAmenities, err := inferStringTool(
		ToolSearchClassroomsWithAmenities,
		"Search campus classrooms by teaching style, seat count and required amenities. "+
			`input is JSON: {"style":"seminar","size":30,"amenities":["projector","whiteboard"]}`,
		func(ctx context.Context, input string) (string, error) {
			var in amenitySearchInput
			if err := json.Unmarshal([]byte(input), &in); err != nil {
				return fmt.Sprintf("invalid arguments for %s: %v", ToolSearchClassroomsWithAmenities, err), nil
			}
			return runTool(ctx, limiter, ToolSearchClassroomsWithAmenities, input, func(ctx context.Context) (string, error) {
				return client.SearchClassroomsWithAmenities(ctx, in.Style, in.Size, in.Amenities)
			}), nil
		},
	)
	if err != nil {
		return nil, err
	}

	return []tool.BaseTool{basic, withAmenities}, nil
}

// runTool 执行一次工具调用：限流、计时、观察结果写回 Session。
// 返回值始终是交给模型的文本。
func runTool(ctx context.Context, limiter *ToolRateLimiter, name, input string, call func(context.Context) (string, error)) string {
	if limiter != nil {
		release, err := limiter.Acquire(ctx, name)
		if err != nil {
			metrics.ToolFailTotal.WithLabelValues(name).Inc()
			return fmt.Sprintf("classroom search unavailable: %v", err)
		}
		defer release()
	}

	start := time.Now()
	result, err := call(ctx)
	metrics.ToolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	sess := session.FromContext(ctx)
	if err != nil {
		metrics.ToolFailTotal.WithLabelValues(name).Inc()
		msg := fmt.Sprintf("classroom search failed: %v", err)
		if sess != nil {
			sess.AddObservation(name, input, "", err.Error())
		}
		return msg
	}
	if sess != nil {
		sess.AddObservation(name, input, result, "")
	}
	return result
}
