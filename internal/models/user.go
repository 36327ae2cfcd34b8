package models

import "time"

// User представляет учетную запись пользователя вместе с состоянием входа
type User struct {
	CreatedAt             time.Time  `json:"created_at"`                         // время регистрации
	CodeCreatedAt         *time.Time `json:"code_created_at,omitempty"`          // когда выдан текущий код
	LastCodeRequestAt     *time.Time `json:"last_code_request_at,omitempty"`     // последний запрос кода (для cooldown)
	RefreshTokenExpiresAt *time.Time `json:"refresh_token_expires_at,omitempty"` // срок действия refresh token
	ID                    string     `json:"id"`                                 // UUID пользователя
	Email                 string     `json:"email"`                              // уникальный email (в нижнем регистре)
	PasswordHash          string     `json:"-"`                                  // хеш пароля, вычисленный клиентом
	VerificationCode      string     `json:"-"`                                  // одноразовый код, пусто если не выдан
	RefreshTokenHash      string     `json:"-"`                                  // SHA256 хеш активного refresh token
}

// HasVerificationCode сообщает, есть ли у пользователя выданный код
func (u *User) HasVerificationCode() bool {
	return u.VerificationCode != "" && u.CodeCreatedAt != nil
}

// HasRefreshToken сообщает, есть ли у пользователя активная сессия
func (u *User) HasRefreshToken() bool {
	return u.RefreshTokenHash != "" && u.RefreshTokenExpiresAt != nil
}
