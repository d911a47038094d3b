package configs

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultVaultCacheDir      = "vault/encrypted" // 密文本地缓存目录
	DefaultVaultScratchDir    = "vault/scratch"   // 解密临时输出目录
	DefaultVaultMaxUploadMB   = 100               // 最大上传大小（MB）
	DefaultVaultExpiryDays    = 0                 // 上传默认过期天数，0 表示永不过期
	DefaultVaultCacheMaxMB    = 2048              // 密文缓存上限（MB）
	DefaultVaultCacheTTLHours = 24                // 缓存条目最长驻留时间（小时）
	DefaultVaultShareBaseURL  = "http://localhost:8080/share"
)

// VaultConfig 加密存储核心配置：进程级对称密钥、两级存储目录、缓存边界与分享链接前缀.
// 密钥为 hex 编码的 32 字节（AES-256），启动时解析一次，进程生命周期内不可变.
type VaultConfig struct {
	KeyHex        string `mapstructure:"key"             rule:"required,len=64,hexadecimal"`
	CacheDir      string `mapstructure:"cache_dir"`
	ScratchDir    string `mapstructure:"scratch_dir"`
	MaxUploadMB   int64  `mapstructure:"max_upload_mb"   rule:"min=1"`
	ExpiryDays    int    `mapstructure:"expiry_days"     rule:"min=0"`
	CacheMaxMB    int64  `mapstructure:"cache_max_mb"    rule:"min=1"`
	CacheTTLHours int    `mapstructure:"cache_ttl_hours" rule:"min=1"`
	ShareBaseURL  string `mapstructure:"share_base_url"`
}

// Key 解码 hex 密钥为原始字节.
func (c *VaultConfig) Key() ([]byte, error) {
	key, err := hex.DecodeString(c.KeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode vault key: %w", err)
	}

	return key, nil
}

// Validate 校验密钥长度是否为 AES-256 规格.
func (c *VaultConfig) Validate() error {
	key, err := c.Key()
	if err != nil {
		return err
	}

	const aes256KeyLen = 32
	if len(key) != aes256KeyLen {
		return fmt.Errorf("vault key must be %d bytes, got %d", aes256KeyLen, len(key))
	}

	return nil
}

// MaxUploadBytes 返回最大上传字节数.
func (c *VaultConfig) MaxUploadBytes() int64 {
	return c.MaxUploadMB * 1024 * 1024
}

// CacheMaxBytes 返回密文缓存上限字节数.
func (c *VaultConfig) CacheMaxBytes() int64 {
	return c.CacheMaxMB * 1024 * 1024
}

// CacheTTL 返回缓存条目的最长驻留时间.
func (c *VaultConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// setDefaults 设置 Vault 配置的默认值. 密钥无默认值，必须显式提供.
func (c *VaultConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("vault.cache_dir", DefaultVaultCacheDir)
	v.SetDefault("vault.scratch_dir", DefaultVaultScratchDir)
	v.SetDefault("vault.max_upload_mb", DefaultVaultMaxUploadMB)
	v.SetDefault("vault.expiry_days", DefaultVaultExpiryDays)
	v.SetDefault("vault.cache_max_mb", DefaultVaultCacheMaxMB)
	v.SetDefault("vault.cache_ttl_hours", DefaultVaultCacheTTLHours)
	v.SetDefault("vault.share_base_url", DefaultVaultShareBaseURL)
}
