// Copyright 2026 fanjia1024
// Secret management abstraction

package secrets

import (
	"context"
)

// Store Secret 存储接口
type Store interface {
	// Get 获取 secret 值
	Get(ctx context.Context, key string) (string, error)

	// Set 设置 secret 值
	Set(ctx context.Context, key string, value string) error
}

// Config Secret Store 配置
type Config struct {
	Provider   string `mapstructure:"provider"`    // vault | env | memory
	Address    string `mapstructure:"address"`     // vault 地址
	Token      string `mapstructure:"token"`       // vault token
	PathPrefix string `mapstructure:"path_prefix"` // vault secret 路径前缀
}

// NewStore 创建 Secret Store，未知 provider 回退 env
func NewStore(config Config) (Store, error) {
	switch config.Provider {
	case "memory":
		return NewMemoryStore(), nil
	case "vault":
		return NewVaultStore(VaultConfig{
			Address:    config.Address,
			Token:      config.Token,
			PathPrefix: config.PathPrefix,
		})
	case "env", "":
		return NewEnvStore(), nil
	default:
		return NewEnvStore(), nil
	}
}
