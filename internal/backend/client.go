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

package backend

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"classroom-agent/pkg/errors"
)

// Client 教室数据库后端客户端。查询失败（网络错误或非 2xx）直接返回 error，
// 不重试不退避，由调用方决定如何呈现给模型。
type Client struct {
	http *resty.Client
}

// NewClient 创建后端客户端；timeout<=0 时默认 15s
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &Client{http: c}
}

// amenitySearchRequest POST /api/classrooms/search 请求体
type amenitySearchRequest struct {
	Style     string   `json:"style"`
	Size      int      `json:"size"`
	Amenities []string `json:"amenities"`
}

// SearchClassrooms 按授课形式与容量查询教室，返回后端原始响应体
func (c *Client) SearchClassrooms(ctx context.Context, style string, size int) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"style": style,
			"size":  strconv.Itoa(size),
		}).
		Get("/api/classrooms")
	if err != nil {
		return "", errors.Wrap(err, "GET /api/classrooms")
	}
	if resp.StatusCode() == http.StatusNotFound {
		return "", errors.Wrap(errors.ErrNotFound, "GET /api/classrooms")
	}
	if resp.IsError() {
		return "", fmt.Errorf("GET /api/classrooms: status %d: %s", resp.StatusCode(), resp.String())
	}
	return resp.String(), nil
}

// SearchClassroomsWithAmenities 在形式与容量之上附加设施过滤，返回后端原始响应体
func (c *Client) SearchClassroomsWithAmenities(ctx context.Context, style string, size int, amenities []string) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(amenitySearchRequest{Style: style, Size: size, Amenities: amenities}).
		Post("/api/classrooms/search")
	if err != nil {
		return "", errors.Wrap(err, "POST /api/classrooms/search")
	}
	if resp.StatusCode() == http.StatusNotFound {
		return "", errors.Wrap(errors.ErrNotFound, "POST /api/classrooms/search")
	}
	if resp.IsError() {
		return "", fmt.Errorf("POST /api/classrooms/search: status %d: %s", resp.StatusCode(), resp.String())
	}
	return resp.String(), nil
}
