package vault

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// HashFile 流式计算文件的 SHA-256 十六进制哈希.
// 对密文调用，结果与记录中的 ContentHash 比较即完成完整性校验.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyFile 校验文件哈希与期望值是否一致，返回实际哈希便于记录差异.
func VerifyFile(path, expected string) (bool, string, error) {
	actual, err := HashFile(path)
	if err != nil {
		return false, "", err
	}

	return actual == expected, actual, nil
}
