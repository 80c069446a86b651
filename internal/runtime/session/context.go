package session

import (
	"context"
)

type ctxKey struct{}

// WithSession 将 Session 注入 context，供工具回写观察结果
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext 取出 context 中的 Session，无则返回 nil
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
