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

package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

func apiBaseURL() string {
	if u := os.Getenv("FINDER_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8000"
}

func apiToken() string {
	if t := os.Getenv("FINDER_API_TOKEN"); t != "" {
		return t
	}
	return "cli"
}

func newClient() *resty.Client {
	return resty.New().
		SetBaseURL(apiBaseURL()).
		SetTimeout(60 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+apiToken())
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResult struct {
	Message    string                   `json:"message"`
	Classrooms []map[string]interface{} `json:"classrooms"`
	ToolCalled bool                     `json:"toolCalled"`
	SessionID  string                   `json:"session_id"`
}

func postChat(messages []chatMessage, sessionID string) (*chatResult, error) {
	body := map[string]interface{}{"messages": messages}
	if sessionID != "" {
		body["session_id"] = sessionID
	}
	var out chatResult
	resp, err := newClient().R().
		SetBody(body).
		SetResult(&out).
		Post("/chat")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("POST /chat: %s", resp.String())
	}
	return &out, nil
}

func getHealth() (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/health")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("GET /health: %s", resp.String())
	}
	return out.Status, nil
}
