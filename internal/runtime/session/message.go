package session

import (
	"time"
)

// Message 对话消息（role: user | assistant | system | tool）
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TrimRounds 保留最近 maxRounds 轮 user/assistant 消息；maxRounds<=0 原样返回
func TrimRounds(msgs []*Message, maxRounds int) []*Message {
	if maxRounds <= 0 || len(msgs) == 0 {
		return msgs
	}
	rounds := 0
	start := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			rounds++
			if rounds == maxRounds {
				start = i
				break
			}
		}
	}
	return msgs[start:]
}
