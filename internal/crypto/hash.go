package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashToken хеширует refresh token для хранения на сервере
// В БД хранится только хеш, сам токен знает лишь клиент
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// EqualHashes сравнивает два хеша за постоянное время
// Пустые значения никогда не считаются равными
func EqualHashes(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
