package util

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// 和原系统一致的 bcrypt 工作因子
const bcryptCost = 10

// HashPassword 使用 bcrypt 生成密码哈希（salt 内嵌在哈希串里）。
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword 验证明文密码与存储的哈希是否匹配（bcrypt 内部恒定时间比较）。
func CheckPassword(password, stored string) bool {
	if password == "" || stored == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}
