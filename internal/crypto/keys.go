package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Параметры Argon2id для хеширования пароля на клиенте
const (
	// Argon2Time - количество итераций (time cost)
	Argon2Time = 1
	// Argon2Memory - объем памяти в KB (64MB = 64*1024 KB)
	Argon2Memory = 64 * 1024
	// Argon2Threads - количество параллельных потоков
	Argon2Threads = 4
	// Argon2KeyLen - длина выходного ключа в байтах
	Argon2KeyLen = 32
	// SaltSize - размер соли в байтах
	SaltSize = 16
)

// saltContext отделяет соль этого приложения от других производных email
const saltContext = "warehouse-auth:password:"

// PasswordSalt возвращает детерминированную соль для email
// Соль должна быть одинаковой при регистрации и входе, поэтому выводится из email
func PasswordSalt(email string) []byte {
	sum := sha256.Sum256([]byte(saltContext + strings.ToLower(strings.TrimSpace(email))))
	return sum[:SaltSize]
}

// HashPassword вычисляет хеш пароля, который клиент отправляет на сервер
// Сервер никогда не видит пароль и сравнивает хеши побайтово
func HashPassword(email, password string) (string, error) {
	if email == "" {
		return "", fmt.Errorf("email cannot be empty")
	}
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	key := argon2.IDKey([]byte(password), PasswordSalt(email), Argon2Time, Argon2Memory, Argon2Threads, Argon2KeyLen)

	return hex.EncodeToString(key), nil
}
