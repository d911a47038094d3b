// Package vault 实现密文引擎与完整性校验.
// 所有文件在写入存储前用 AES-256-GCM 加密，nonce 随机生成并与密文分开保存，
// 明文永不落入存储层.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"os"
)

const ciphertextFileMode = 0o600

// Engine 密文引擎，持有单一服务级密钥. 密钥在构造时校验一次，
// 运行期不再读取配置.
type Engine struct {
	aead cipher.AEAD
}

// NewEngine 用 32 字节密钥构建引擎.
func NewEngine(key []byte) (*Engine, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return &Engine{aead: aead}, nil
}

// EncryptFile 把 src 的明文加密后写入 dst，返回本次随机生成的 nonce.
// dst 以 0600 权限创建；同一明文每次加密产生不同密文.
func (e *Engine) EncryptFile(src, dst string) ([]byte, error) {
	plaintext, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read plaintext: %w", err)
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := e.aead.Seal(nil, nonce, plaintext, nil)

	if err := os.WriteFile(dst, ciphertext, ciphertextFileMode); err != nil {
		return nil, fmt.Errorf("write ciphertext: %w", err)
	}

	return nonce, nil
}

// DecryptFile 用保存的 nonce 解密 src，把明文写入 dst.
// 密文被篡改或 nonce 不匹配时 GCM 认证失败，不产生任何输出.
func (e *Engine) DecryptFile(src, dst string, nonce []byte) error {
	ciphertext, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read ciphertext: %w", err)
	}

	plaintext, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("decrypt: %w", err)
	}

	if err := os.WriteFile(dst, plaintext, ciphertextFileMode); err != nil {
		return fmt.Errorf("write plaintext: %w", err)
	}

	return nil
}
