package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestChatLoopAccumulatesHistory(t *testing.T) {
	var calls [][]chatMessage
	send := func(messages []chatMessage, sessionID string) (*chatResult, error) {
		cp := make([]chatMessage, len(messages))
		copy(cp, messages)
		calls = append(calls, cp)
		return &chatResult{Message: "reply", SessionID: "session-1"}, nil
	}

	in := strings.NewReader("first question\nsecond question\nquit\n")
	var out bytes.Buffer
	chatLoop(in, &out, send)

	if len(calls) != 2 {
		t.Fatalf("send called %d times, want 2", len(calls))
	}
	// 第二次请求携带完整历史：user, assistant, user
	second := calls[1]
	if len(second) != 3 {
		t.Fatalf("second call history = %d messages, want 3", len(second))
	}
	if second[0].Content != "first question" || second[1].Role != "assistant" || second[2].Content != "second question" {
		t.Errorf("history: %+v", second)
	}
	if !strings.Contains(out.String(), "Agent: reply") {
		t.Errorf("output: %s", out.String())
	}
}

func TestChatLoopSkipsEmptyLines(t *testing.T) {
	var count int
	send := func(messages []chatMessage, sessionID string) (*chatResult, error) {
		count++
		return &chatResult{Message: "ok"}, nil
	}

	in := strings.NewReader("\n   \nhello\nexit\n")
	var out bytes.Buffer
	chatLoop(in, &out, send)

	if count != 1 {
		t.Errorf("send called %d times, want 1", count)
	}
}

func TestChatLoopSendFailureKeepsHistoryClean(t *testing.T) {
	var calls [][]chatMessage
	fail := true
	send := func(messages []chatMessage, sessionID string) (*chatResult, error) {
		cp := make([]chatMessage, len(messages))
		copy(cp, messages)
		calls = append(calls, cp)
		if fail {
			fail = false
			return nil, errors.New("connection refused")
		}
		return &chatResult{Message: "ok"}, nil
	}

	in := strings.NewReader("broken\nretry\nquit\n")
	var out bytes.Buffer
	chatLoop(in, &out, send)

	if len(calls) != 2 {
		t.Fatalf("send called %d times, want 2", len(calls))
	}
	// 失败的那条用户消息被回滚，重试时历史只含新消息
	if len(calls[1]) != 1 || calls[1][0].Content != "retry" {
		t.Errorf("retry history: %+v", calls[1])
	}
	if !strings.Contains(out.String(), "请求失败") {
		t.Errorf("output: %s", out.String())
	}
}
