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

package session

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore Postgres 实现：sessions 表，消息与工具调用以 JSONB 存储
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 创建基于 PostgreSQL 的 Session 存储并确保建表
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close 关闭连接池
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    messages   JSONB NOT NULL DEFAULT '[]'::jsonb,
    tool_calls JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`)
	return err
}

// Get 实现 SessionStore；不存在时返回 (nil, nil)
func (s *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	var (
		msgsRaw  []byte
		callsRaw []byte
		sess     = &Session{ID: id}
	)
	err := s.pool.QueryRow(ctx,
		`SELECT messages, tool_calls, created_at, updated_at FROM sessions WHERE id = $1`, id,
	).Scan(&msgsRaw, &callsRaw, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(msgsRaw, &sess.Messages); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(callsRaw, &sess.ToolCalls); err != nil {
		return nil, err
	}
	return sess, nil
}

// Put 实现 SessionStore（upsert）
func (s *PostgresStore) Put(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	msgsRaw, err := json.Marshal(sess.CopyMessages())
	if err != nil {
		return err
	}
	callsRaw, err := json.Marshal(sess.CopyToolCalls())
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO sessions (id, messages, tool_calls, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    messages = EXCLUDED.messages,
    tool_calls = EXCLUDED.tool_calls,
    updated_at = EXCLUDED.updated_at`,
		sess.ID, msgsRaw, callsRaw, sess.CreatedAt, sess.UpdatedAt)
	return err
}
